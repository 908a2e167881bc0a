package vcf

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vcf-dupe/internal/contact"
)

const twoCards = "BEGIN:VCARD\r\n" +
	"VERSION:3.0\r\n" +
	"FN:John Smith\r\n" +
	"EMAIL;TYPE=work:J@X.com\r\n" +
	"TEL:+1 555 123 4567\r\n" +
	"X-CUSTOM:keep me\r\n" +
	"END:VCARD\r\n" +
	"BEGIN:VCARD\r\n" +
	"VERSION:3.0\r\n" +
	"FN:Jane Doe\r\n" +
	"UID:jane-1\r\n" +
	"END:VCARD\r\n"

func TestDecode_MultipleCards(t *testing.T) {
	records, err := Decode(strings.NewReader(twoCards), "book.vcf")
	require.NoError(t, err)
	require.Len(t, records, 2)

	john := records[0]
	assert.Equal(t, "John Smith", john.FormattedName())
	assert.Equal(t, []string{"J@X.com"}, john.Emails())
	assert.Equal(t, []string{"+1 555 123 4567"}, john.Phones())
	assert.Equal(t, "keep me", john.First("X-CUSTOM"))
	assert.Equal(t, contact.Source{Path: "book.vcf", Index: 0}, john.Source())

	email := john.Get(contact.FieldEmail)
	require.Len(t, email, 1)
	assert.Equal(t, []string{"work"}, email[0].Params["TYPE"])

	assert.Equal(t, "jane-1", records[1].UID())
	assert.Equal(t, 1, records[1].Source().Index)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(strings.NewReader("NOT A VCARD\n"), "bad.vcf")
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "bad.vcf", pe.Path)
	assert.Contains(t, err.Error(), "bad.vcf")
}

func TestDecode_NotVCard(t *testing.T) {
	for name, input := range map[string]string{
		"plain text":        "hello world\r\nfoo bar\r\n",
		"leading garbage":   "junk\r\nBEGIN:VCARD\r\nVERSION:3.0\r\nFN:A\r\nEND:VCARD\r\n",
		"begin without end": "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:A\r\n",
	} {
		t.Run(name, func(t *testing.T) {
			records, err := Decode(strings.NewReader(input), "bad.vcf")
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "bad.vcf", pe.Path)
			assert.Empty(t, records)
		})
	}
}

func TestDecode_BlankAndBOM(t *testing.T) {
	records, err := Decode(strings.NewReader(" \r\n\n"), "blank.vcf")
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = Decode(strings.NewReader("\ufeffBEGIN:VCARD\r\nVERSION:3.0\r\nFN:A\r\nEND:VCARD\r\n"), "bom.vcf")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0].FormattedName())
}

func TestDecode_Empty(t *testing.T) {
	records, err := Decode(strings.NewReader(""), "empty.vcf")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEncode_RoundTrip(t *testing.T) {
	records, err := Decode(strings.NewReader(twoCards), "book.vcf")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, records...))

	again, err := Decode(&buf, "again.vcf")
	require.NoError(t, err)
	require.Len(t, again, 2)
	for i := range records {
		assert.Equal(t, records[i].Fields(), again[i].Fields())
	}
}

func TestEncode_AddsVersion(t *testing.T) {
	r := contact.New()
	r.SetFormattedName("No Version")

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, r))
	assert.Contains(t, buf.String(), "VERSION:3.0")
	assert.False(t, r.Has(contact.FieldVersion), "encode must not mutate the record")
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.vcf"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestWriteFileAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.vcf")
	r := contact.New()
	r.SetFormattedName("Written")
	r.AddEmail("w@x.com")

	require.NoError(t, WriteFile(path, r))
	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Written", got[0].FormattedName())
	assert.Equal(t, path, got[0].Source().Path)
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.vcf", "b.VCF", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(""), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.vcf"), 0o755))
	explicit := filepath.Join(dir, "notes.txt")

	got, err := Expand([]string{dir, explicit, filepath.Join(dir, "a.vcf")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.vcf"),
		filepath.Join(dir, "b.VCF"),
		explicit,
	}, got)
}

func TestExpand_MissingPathIsKept(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.vcf")
	got, err := Expand([]string{missing})
	require.NoError(t, err)
	assert.Equal(t, []string{missing}, got)

	_, err = ReadFile(missing)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, missing, pe.Path)
}
