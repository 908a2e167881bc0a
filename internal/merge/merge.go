// Package merge combines two contact records describing the same person into
// one, without dropping data from either side.
package merge

import (
	"fmt"
	"maps"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sells-group/vcf-dupe/internal/contact"
)

// Fields that keep a single value. The value that loses is preserved under
// the matching X-MERGED-* field.
const (
	FieldMergedUID       = "X-MERGED-UID"
	FieldMergedName      = "X-MERGED-FN"
	FieldMergedVersion   = "X-MERGED-VERSION"
	FieldMergedProductID = "X-MERGED-PRODID"
	FieldMergedRevision  = "X-MERGED-REV"
)

// singleFields pairs each single-valued field with the field holding the
// values it lost in earlier and current merges.
var singleFields = []struct{ key, alt string }{
	{contact.FieldUID, FieldMergedUID},
	{contact.FieldFormattedName, FieldMergedName},
	{contact.FieldVersion, FieldMergedVersion},
	{contact.FieldProductID, FieldMergedProductID},
	{contact.FieldRevision, FieldMergedRevision},
}

func altField(key string) (string, bool) {
	for _, f := range singleFields {
		if f.key == key {
			return f.alt, true
		}
	}
	return "", false
}

func isMergedField(key string) bool {
	for _, f := range singleFields {
		if f.alt == key {
			return true
		}
	}
	return false
}

// Side selects one of the two merge inputs.
type Side int

// Sides.
const (
	SideA Side = iota
	SideB
)

func (s Side) String() string {
	if s == SideB {
		return "b"
	}
	return "a"
}

// Preferences maps an upper-case field name to the side whose value leads. A preferred
// side wins single-valued fields and is listed first for multi-valued ones.
// Fields without a preference follow the default rules.
type Preferences map[string]Side

func (p Preferences) lookup(field string) (Side, bool) {
	if p == nil {
		return SideA, false
	}
	s, ok := p[field]
	return s, ok
}

// Merge combines a and b with the default rules. Neither input is modified.
func Merge(a, b *contact.Record) *contact.Record {
	return MergeWith(a, b, nil)
}

// MergeWith combines a and b, letting prefs choose the leading side per field.
func MergeWith(a, b *contact.Record, prefs Preferences) *contact.Record {
	b = regroup(a, b)

	out := contact.New()
	out.SetSource(a.Source())

	handled := make(map[string]bool)
	for _, key := range unionKeys(a, b) {
		if isMergedField(key) {
			continue
		}
		first, second := a.Get(key), b.Get(key)
		side, preferred := prefs.lookup(key)
		if side == SideB {
			first, second = second, first
		}

		if alt, ok := altField(key); ok {
			if key == contact.FieldFormattedName && !preferred && runeLen(second) > runeLen(first) {
				first, second = second, first
			}
			mergeSingle(out, key, alt, first, second, priorValues(a, b, alt))
			handled[key] = true
			continue
		}

		switch key {
		case contact.FieldEmail:
			union(out, key, first, second, func(f contact.RawField) contact.Key {
				return contact.NormalizeEmail(f.Value)
			})
		case contact.FieldTelephone:
			union(out, key, first, second, func(f contact.RawField) contact.Key {
				return contact.NormalizePhone(f.Value)
			})
		default:
			union(out, key, first, second, func(f contact.RawField) contact.Key {
				return contact.Key{Value: f.Group + "\x00" + f.Value, Present: true}
			})
		}
	}
	// X-MERGED-* values whose main field neither side still carries.
	for _, f := range singleFields {
		if !handled[f.key] {
			mergeSingle(out, f.key, f.alt, nil, nil, priorValues(a, b, f.alt))
		}
	}

	if out.UID() == "" {
		out.SetUID(uuid.NewString())
	}
	if out.FormattedName() == "" {
		for _, e := range out.Emails() {
			if name := contact.GuessName(e); name != "" {
				out.SetFormattedName(name)
				break
			}
		}
	}
	return out
}

// mergeSingle keeps the first non-empty value under key. Every other
// distinct value, from either side or from earlier merges (prior), goes to
// alt.
func mergeSingle(out *contact.Record, key, alt string, first, second, prior []contact.RawField) {
	var kept string
	var lost []contact.RawField
	for _, f := range append(append([]contact.RawField{}, first...), second...) {
		v := strings.TrimSpace(f.Value)
		switch {
		case v == "":
		case kept == "":
			kept = v
			out.Add(key, f)
		default:
			lost = append(lost, contact.RawField{Value: f.Value})
		}
	}

	seen := map[string]bool{kept: true, "": true}
	for _, f := range append(prior, lost...) {
		v := strings.TrimSpace(f.Value)
		if seen[v] {
			continue
		}
		seen[v] = true
		out.Add(alt, f)
	}
}

func priorValues(a, b *contact.Record, alt string) []contact.RawField {
	return append(a.Get(alt), b.Get(alt)...)
}

// union appends first then second, skipping entries whose key was already
// added. Entries without a present key dedupe by exact value. Parameters of
// dropped duplicates are folded into the kept entry.
func union(out *contact.Record, name string, first, second []contact.RawField, keyOf func(contact.RawField) contact.Key) {
	var kept []contact.RawField
	index := make(map[string]int)
	for _, f := range append(append([]contact.RawField{}, first...), second...) {
		k := keyOf(f)
		id := "v:" + f.Value
		if k.Present {
			id = "k:" + k.Value
		}
		if i, ok := index[id]; ok {
			kept[i].Params = mergeParams(kept[i].Params, f.Params)
			continue
		}
		index[id] = len(kept)
		kept = append(kept, f)
	}
	for _, f := range kept {
		out.Add(name, f)
	}
}

func mergeParams(dst, src contact.Params) contact.Params {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(contact.Params, len(src))
	}
	for k, values := range src {
		for _, v := range values {
			if !containsFold(dst[k], v) {
				dst[k] = append(dst[k], v)
			}
		}
	}
	return dst
}

// regroup renames b's property groups that collide with a's, so grouped
// properties (item1.EMAIL, item1.X-ABLABEL) stay associated after the merge.
func regroup(a, b *contact.Record) *contact.Record {
	taken := groups(a)
	theirs := groups(b)
	clash := false
	for g := range theirs {
		clash = clash || taken[g]
	}
	if !clash {
		return b
	}

	used := maps.Clone(taken)
	maps.Copy(used, theirs)
	rename := make(map[string]string)
	next := 1

	fields := b.Fields()
	for _, name := range b.Keys() {
		for i, f := range fields[name] {
			g := strings.ToLower(f.Group)
			if g == "" || !taken[g] {
				continue
			}
			to, ok := rename[g]
			if !ok {
				for used[fmt.Sprintf("item%d", next)] {
					next++
				}
				to = fmt.Sprintf("item%d", next)
				used[to] = true
				rename[g] = to
			}
			fields[name][i].Group = to
		}
	}
	return contact.FromFields(fields, b.Source())
}

func groups(r *contact.Record) map[string]bool {
	out := make(map[string]bool)
	for _, entries := range r.Fields() {
		for _, f := range entries {
			if f.Group != "" {
				out[strings.ToLower(f.Group)] = true
			}
		}
	}
	return out
}

func unionKeys(a, b *contact.Record) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, k := range append(a.Keys(), b.Keys()...) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

func runeLen(entries []contact.RawField) int {
	for _, f := range entries {
		if v := strings.TrimSpace(f.Value); v != "" {
			return utf8.RuneCountInString(v)
		}
	}
	return 0
}

func containsFold(values []string, v string) bool {
	for _, x := range values {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}
