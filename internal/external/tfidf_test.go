package external

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vcf-dupe/internal/contact"
)

func rec(name string, emails, phones []string) *contact.Record {
	r := contact.New()
	if name != "" {
		r.SetFormattedName(name)
	}
	for _, e := range emails {
		r.AddEmail(e)
	}
	for _, p := range phones {
		r.AddPhone(p)
	}
	return r
}

func TestTFIDF_Unprepared(t *testing.T) {
	_, err := NewTFIDF().Score(context.Background(), rec("A", nil, nil), rec("B", nil, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestTFIDF_Score(t *testing.T) {
	john := rec("John Smith", []string{"john.smith@example.com"}, []string{"555-123-4567"})
	johnny := rec("John Smith", []string{"jsmith@work.com"}, []string{"(555) 123-4567"})
	mary := rec("Mary Jones", []string{"mary@jones.org"}, []string{"555-999-0000"})

	tf := NewTFIDF()
	tf.Prepare([]*contact.Record{john, johnny, mary})
	ctx := context.Background()

	self, err := tf.Score(ctx, john, john)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, self, 1e-9)

	near, err := tf.Score(ctx, john, johnny)
	require.NoError(t, err)
	far, err := tf.Score(ctx, john, mary)
	require.NoError(t, err)

	assert.Greater(t, near, far)
	assert.GreaterOrEqual(t, far, 0.0)

	rev, err := tf.Score(ctx, johnny, john)
	require.NoError(t, err)
	assert.InDelta(t, near, rev, 1e-12)
}

func TestTFIDF_NoTerms(t *testing.T) {
	tf := NewTFIDF()
	tf.Prepare(nil)
	_, err := tf.Score(context.Background(), rec("", nil, nil), rec("Bob Lee", nil, nil))
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestTerms(t *testing.T) {
	got := terms(rec("  José  Ángel ", []string{"Jo.A@X.com"}, []string{"+1 555 123 4567"}))
	assert.Equal(t, []string{"josé", "ángel", "jo", "com", "5551234567"}, got)
}
