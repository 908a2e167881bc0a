// Package vcf converts vCard files to contact records and back.
package vcf

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/emersion/go-vcard"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vcf-dupe/internal/contact"
)

// DefaultVersion is written when a record carries no VERSION.
const DefaultVersion = "3.0"

// ParseError reports a file that could not be decoded. The file is excluded
// from the run as a whole.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "vcf: parse " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrNotVCard is wrapped by the ParseError of input that has content but no
// card.
var ErrNotVCard = eris.New("vcf: no BEGIN:VCARD")

// Decode reads every card from r. Any malformed card fails the whole input,
// and so does non-blank input that does not start with BEGIN:VCARD.
func Decode(r io.Reader, path string) ([]*contact.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	body := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\ufeff")))
	if len(body) == 0 {
		return nil, nil
	}
	first, _, _ := bytes.Cut(body, []byte("\n"))
	if !strings.EqualFold(strings.TrimSpace(string(first)), "BEGIN:VCARD") {
		return nil, &ParseError{Path: path, Err: ErrNotVCard}
	}

	dec := vcard.NewDecoder(bytes.NewReader(body))
	var out []*contact.Record
	for {
		card, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		out = append(out, fromCard(card, contact.Source{Path: path, Index: len(out)}))
	}
	if len(out) == 0 {
		return nil, &ParseError{Path: path, Err: ErrNotVCard}
	}
	return out, nil
}

// ReadFile decodes a .vcf file. Unreadable and malformed files both return a
// *ParseError.
func ReadFile(path string) ([]*contact.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return Decode(bytes.NewReader(data), path)
}

// Encode writes records as consecutive cards.
func Encode(w io.Writer, records ...*contact.Record) error {
	enc := vcard.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(toCard(r)); err != nil {
			return eris.Wrapf(err, "vcf: encode %s", r)
		}
	}
	return nil
}

// WriteFile encodes records to path, replacing any existing file.
func WriteFile(path string, records ...*contact.Record) error {
	var buf bytes.Buffer
	if err := Encode(&buf, records...); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "vcf: write %s", path)
	}
	return nil
}

// Expand turns a mix of files and directories into the list of .vcf files to
// load. Directories are scanned non-recursively; explicit files are kept
// whatever their extension. An explicit path that cannot be stat'ed is kept
// too, so that reading it reports a ParseError for that file alone.
func Expand(paths []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			add(p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, eris.Wrapf(err, "vcf: read dir %s", p)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".vcf") {
				continue
			}
			add(filepath.Join(p, e.Name()))
		}
	}
	return out, nil
}

func fromCard(card vcard.Card, src contact.Source) *contact.Record {
	fields := make(map[string][]contact.RawField, len(card))
	for name, entries := range card {
		for _, f := range entries {
			if f == nil {
				continue
			}
			raw := contact.RawField{Value: f.Value, Group: f.Group}
			if len(f.Params) > 0 {
				raw.Params = make(contact.Params, len(f.Params))
				for k, v := range f.Params {
					raw.Params[k] = slices.Clone(v)
				}
			}
			fields[name] = append(fields[name], raw)
		}
	}
	return contact.FromFields(fields, src)
}

func toCard(r *contact.Record) vcard.Card {
	card := make(vcard.Card)
	for name, entries := range r.Fields() {
		for _, e := range entries {
			f := &vcard.Field{Value: e.Value, Group: e.Group}
			if len(e.Params) > 0 {
				f.Params = make(vcard.Params, len(e.Params))
				for k, v := range e.Params {
					f.Params[k] = v
				}
			}
			card[name] = append(card[name], f)
		}
	}
	if len(card[vcard.FieldVersion]) == 0 {
		card[vcard.FieldVersion] = []*vcard.Field{{Value: DefaultVersion}}
	} else {
		card[vcard.FieldVersion] = card[vcard.FieldVersion][:1]
	}
	return card
}
