// Package contact holds the in-memory contact record and the normalization
// rules used to compare records.
package contact

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Field names backing the typed accessors.
const (
	FieldUID           = "UID"
	FieldFormattedName = "FN"
	FieldName          = "N"
	FieldEmail         = "EMAIL"
	FieldTelephone     = "TEL"
	FieldAddress       = "ADR"
	FieldVersion       = "VERSION"
	FieldProductID     = "PRODID"
	FieldRevision      = "REV"
)

// Params are the property parameters of a raw field (TYPE, PREF, ...).
type Params map[string][]string

// RawField is one property line of a card.
type RawField struct {
	Value  string
	Params Params
	Group  string
}

func (f RawField) clone() RawField {
	out := RawField{Value: f.Value, Group: f.Group}
	if f.Params != nil {
		out.Params = make(Params, len(f.Params))
		for k, v := range f.Params {
			out.Params[k] = slices.Clone(v)
		}
	}
	return out
}

// Source identifies where a record was loaded from.
type Source struct {
	Path  string `json:"path" yaml:"path"`
	Index int    `json:"index" yaml:"index"`
}

// Record is a single contact. The raw field map is the source of truth; the
// typed accessors read from it and the setters write through to it.
type Record struct {
	fields map[string][]RawField
	source Source
}

// New returns an empty record.
func New() *Record {
	return &Record{fields: make(map[string][]RawField)}
}

// FromFields builds a record from raw fields. Field names are upper-cased and
// the values are copied.
func FromFields(fields map[string][]RawField, src Source) *Record {
	r := &Record{fields: make(map[string][]RawField, len(fields)), source: src}
	for name, values := range fields {
		for _, v := range values {
			r.Add(name, v)
		}
	}
	return r
}

// Source returns where the record was loaded from.
func (r *Record) Source() Source { return r.source }

// SetSource records where the record was loaded from.
func (r *Record) SetSource(src Source) { r.source = src }

// Keys returns the field names present on the record, sorted.
func (r *Record) Keys() []string {
	return slices.Sorted(maps.Keys(r.fields))
}

// Fields returns a deep copy of the raw field map.
func (r *Record) Fields() map[string][]RawField {
	out := make(map[string][]RawField, len(r.fields))
	for name, values := range r.fields {
		out[name] = cloneFields(values)
	}
	return out
}

// Get returns a copy of the raw entries for a field.
func (r *Record) Get(name string) []RawField {
	return cloneFields(r.fields[canonical(name)])
}

// Values returns the values of every entry for a field, in order.
func (r *Record) Values(name string) []string {
	entries := r.fields[canonical(name)]
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Value)
	}
	return out
}

// First returns the first value of a field, or "".
func (r *Record) First(name string) string {
	entries := r.fields[canonical(name)]
	if len(entries) == 0 {
		return ""
	}
	return entries[0].Value
}

// Has reports whether the field has at least one entry.
func (r *Record) Has(name string) bool {
	return len(r.fields[canonical(name)]) > 0
}

// Add appends an entry to a field.
func (r *Record) Add(name string, f RawField) {
	name = canonical(name)
	r.fields[name] = append(r.fields[name], f.clone())
}

// Set replaces a field with a single value, keeping the parameters of the
// existing first entry if there was one.
func (r *Record) Set(name, value string) {
	name = canonical(name)
	f := RawField{Value: value}
	if existing := r.fields[name]; len(existing) > 0 {
		f = existing[0].clone()
		f.Value = value
	}
	r.fields[name] = []RawField{f}
}

// Del removes a field.
func (r *Record) Del(name string) {
	delete(r.fields, canonical(name))
}

// UID returns the record's stable identifier, or "".
func (r *Record) UID() string { return strings.TrimSpace(r.First(FieldUID)) }

// SetUID replaces the UID.
func (r *Record) SetUID(uid string) { r.Set(FieldUID, uid) }

// FormattedName returns the display name (FN), or "".
func (r *Record) FormattedName() string { return strings.TrimSpace(r.First(FieldFormattedName)) }

// SetFormattedName replaces the display name.
func (r *Record) SetFormattedName(name string) { r.Set(FieldFormattedName, name) }

// Emails returns the EMAIL values as written in the card.
func (r *Record) Emails() []string { return nonEmpty(r.Values(FieldEmail)) }

// AddEmail appends an EMAIL entry.
func (r *Record) AddEmail(email string) { r.Add(FieldEmail, RawField{Value: email}) }

// Phones returns the TEL values as written in the card.
func (r *Record) Phones() []string { return nonEmpty(r.Values(FieldTelephone)) }

// AddPhone appends a TEL entry.
func (r *Record) AddPhone(phone string) { r.Add(FieldTelephone, RawField{Value: phone}) }

// Address returns the first non-empty ADR value, or "".
func (r *Record) Address() string {
	if all := r.Addresses(); len(all) > 0 {
		return all[0]
	}
	return ""
}

// Addresses returns every non-empty ADR value.
func (r *Record) Addresses() []string {
	var out []string
	for _, v := range r.Values(FieldAddress) {
		if strings.Trim(v, "; ") != "" {
			out = append(out, v)
		}
	}
	return out
}

// AddAddress appends an ADR entry.
func (r *Record) AddAddress(adr string) { r.Add(FieldAddress, RawField{Value: adr}) }

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	return &Record{fields: r.Fields(), source: r.source}
}

// String renders a short human label such as `Jane Doe <jane@x.com>`.
func (r *Record) String() string {
	name := r.FormattedName()
	emails := r.Emails()
	switch {
	case name != "" && len(emails) > 0:
		return fmt.Sprintf("%s <%s>", name, emails[0])
	case name != "":
		return name
	case len(emails) > 0:
		return "<" + emails[0] + ">"
	case r.UID() != "":
		return r.UID()
	default:
		return "(unnamed)"
	}
}

func canonical(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func cloneFields(in []RawField) []RawField {
	if in == nil {
		return nil
	}
	out := make([]RawField, len(in))
	for i, f := range in {
		out[i] = f.clone()
	}
	return out
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
