package contact

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Key is a canonical comparison key. The zero Key is the absent marker: two
// absent keys never compare equal through Matches.
type Key struct {
	Value   string
	Present bool
}

// Matches reports whether both keys are present and equal.
func (k Key) Matches(other Key) bool {
	return k.Present && other.Present && k.Value == other.Value
}

// NormalizedView is the comparison form of a record.
type NormalizedView struct {
	Name   Key
	Emails []Key
	Phones []Key
}

// Normalize builds the comparison view of r. It does not modify r.
func Normalize(r *Record) NormalizedView {
	v := NormalizedView{Name: NormalizeName(r.FormattedName())}
	for _, e := range r.Emails() {
		if k := NormalizeEmail(e); k.Present {
			v.Emails = append(v.Emails, k)
		}
	}
	for _, p := range r.Phones() {
		if k := NormalizePhone(p); k.Present {
			v.Phones = append(v.Phones, k)
		}
	}
	return v
}

// NormalizeName lower-cases a display name and collapses its whitespace.
// Honorifics and suffixes are kept.
func NormalizeName(name string) Key {
	s := strings.Join(strings.Fields(norm.NFC.String(name)), " ")
	if s == "" {
		return Key{}
	}
	return Key{Value: cases.Lower(language.Und).String(s), Present: true}
}

// NormalizeEmail lower-cases the whole address. A vCard 4 "mailto:" URI
// prefix, in any case, is dropped.
func NormalizeEmail(email string) Key {
	s := strings.ToLower(strings.TrimSpace(email))
	s = strings.TrimSpace(strings.TrimPrefix(s, "mailto:"))
	if s == "" {
		return Key{}
	}
	return Key{Value: s, Present: true}
}

// NormalizePhone keeps the digits of a phone number. Numbers of seven or
// more digits are cut to their last ten so country-code variants line up.
func NormalizePhone(phone string) Key {
	var b strings.Builder
	for _, r := range norm.NFKC.String(phone) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return Key{}
	}
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return Key{Value: digits, Present: true}
}

// GuessName derives a display name from an email's local part, e.g.
// "jane.doe@x.com" becomes "Jane Doe".
func GuessName(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	title := cases.Title(language.Und)
	for i, p := range parts {
		parts[i] = title.String(strings.ToLower(p))
	}
	return strings.Join(parts, " ")
}
