package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want Key
	}{
		{"John Smith", Key{"john smith", true}},
		{"  JOHN   Smith  ", Key{"john smith", true}},
		{"Dr. John Smith Jr.", Key{"dr. john smith jr.", true}},
		{"José Ñúñez", Key{"josé ñúñez", true}},
		{"", Key{}},
		{"   \t", Key{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, Key{"j.smith@example.com", true}, NormalizeEmail(" J.Smith@Example.COM "))
	assert.Equal(t, Key{"a@b.c", true}, NormalizeEmail("mailto:a@b.c"))
	assert.Equal(t, Key{"a@b.c", true}, NormalizeEmail("Mailto:A@B.c"))
	assert.Equal(t, Key{"a@b.c", true}, NormalizeEmail("MAILTO:a@b.c"))
	assert.Equal(t, Key{}, NormalizeEmail("mailto:"))
	assert.Equal(t, Key{}, NormalizeEmail(""))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want Key
	}{
		{"(555) 123-4567", Key{"5551234567", true}},
		{"+1 555 123 4567", Key{"5551234567", true}},
		{"+44 20 7946 0958", Key{"2079460958", true}},
		{"123-45", Key{"12345", true}},
		{"５５５１２３４５６７", Key{"5551234567", true}},
		{"ext.", Key{}},
		{"", Key{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.in))
		})
	}
}

func TestKeyMatches_AbsentNeverMatches(t *testing.T) {
	assert.False(t, Key{}.Matches(Key{}))
	assert.False(t, Key{"a", true}.Matches(Key{}))
	assert.True(t, Key{"a", true}.Matches(Key{"a", true}))
}

func TestNormalize_DoesNotMutate(t *testing.T) {
	r := New()
	r.SetFormattedName("  Jane  DOE ")
	r.AddEmail("Jane@X.com")
	r.AddEmail("   ")
	r.AddPhone("n/a")
	r.AddPhone("555-1234")

	v := Normalize(r)

	assert.Equal(t, Key{"jane doe", true}, v.Name)
	assert.Equal(t, []Key{{"jane@x.com", true}}, v.Emails)
	assert.Equal(t, []Key{{"5551234", true}}, v.Phones)
	assert.Equal(t, "  Jane  DOE ", r.First(FieldFormattedName))
	assert.Equal(t, []string{"Jane@X.com"}, r.Emails())
}

func TestNormalize_EmptyRecord(t *testing.T) {
	v := Normalize(New())
	assert.False(t, v.Name.Present)
	assert.Empty(t, v.Emails)
	assert.Empty(t, v.Phones)
}

func TestGuessName(t *testing.T) {
	assert.Equal(t, "Jane Doe", GuessName("jane.doe@example.com"))
	assert.Equal(t, "John Q Public", GuessName("JOHN_q-public@x.org"))
	assert.Equal(t, "", GuessName("@x.org"))
}
