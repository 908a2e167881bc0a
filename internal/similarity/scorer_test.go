package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vcf-dupe/internal/contact"
)

type mockExternal struct {
	mock.Mock
}

func (m *mockExternal) Score(ctx context.Context, a, b *contact.Record) (float64, error) {
	args := m.Called(ctx, a, b)
	return args.Get(0).(float64), args.Error(1)
}

func rec(uid, name string, emails, phones []string) *contact.Record {
	r := contact.New()
	if uid != "" {
		r.SetUID(uid)
	}
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

func TestScore_IdenticalNameAndEmail(t *testing.T) {
	a := rec("a", "John Smith", []string{"j@x.com"}, nil)
	b := rec("b", "John Smith", []string{"J@X.com"}, nil)

	res := NewScorer(nil).Score(context.Background(), a, b)

	assert.InDelta(t, 1.0, res.Score, 1e-9)
	assert.Equal(t, 1.0, res.Components[SignalEmail])
	assert.Equal(t, 1.0, res.Components[SignalName])
	assert.False(t, res.Has(SignalPhone))
}

func TestScore_NameOnlyWithOneSidedPhone(t *testing.T) {
	a := rec("a", "John Smith", nil, nil)
	b := rec("b", "Jon Smith", nil, []string{"5551234567"})

	res := NewScorer(nil).Score(context.Background(), a, b)

	require.Len(t, res.Components, 1)
	assert.InDelta(t, 0.9, res.Components[SignalName], 1e-9)
	assert.InDelta(t, 0.9, res.Score, 1e-9)
	assert.False(t, res.Has(SignalPhone), "phone absent on one side is excluded")
	assert.False(t, res.Has(SignalEmail))
}

func TestScore_NothingShared(t *testing.T) {
	a := rec("a", "Alice Jones", []string{"alice@a.com"}, []string{"111-111-1111"})
	b := rec("b", "Bob", []string{"bob@b.com"}, []string{"222-222-2222"})

	res := NewScorer(nil).Score(context.Background(), a, b)

	assert.Equal(t, 0.0, res.Components[SignalEmail])
	assert.Equal(t, 0.0, res.Components[SignalPhone])
	assert.Less(t, res.Score, 0.2)
}

func TestScore_NoSignals(t *testing.T) {
	res := NewScorer(nil).Score(context.Background(), contact.New(), contact.New())
	assert.Equal(t, 0.0, res.Score)
	assert.Empty(t, res.Components)
}

func TestScore_PhoneCountryCodeVariant(t *testing.T) {
	a := rec("a", "", nil, []string{"+1 (555) 123-4567"})
	b := rec("b", "", nil, []string{"555.123.4567", "999"})

	res := NewScorer(nil).Score(context.Background(), a, b)
	assert.Equal(t, 1.0, res.Components[SignalPhone])
	assert.Equal(t, 1.0, res.Score)
}

func TestScore_Symmetric(t *testing.T) {
	pairs := [][2]*contact.Record{
		{rec("a", "John Smith", nil, nil), rec("b", "Jon Smith", nil, []string{"5551234567"})},
		{rec("x", "Anna Karenina", []string{"anna@ru.ru"}, nil), rec("y", "Ana Karenina", []string{"a.k@ru.ru"}, nil)},
		{rec("", "Émile Zola", nil, []string{"0102030405"}), rec("", "Emile  Zola", nil, []string{"+33 1 02 03 04 05"})},
	}
	s := NewScorer(nil)
	for _, p := range pairs {
		ab := s.Score(context.Background(), p[0], p[1])
		ba := s.Score(context.Background(), p[1], p[0])
		assert.Equal(t, ab, ba)
	}
}

func TestScore_ExternalSignalIncluded(t *testing.T) {
	a := rec("a", "John Smith", nil, nil)
	b := rec("b", "John Smith", nil, nil)

	ext := &mockExternal{}
	ext.On("Score", mock.Anything, a, b).Return(0.5, nil)

	res := NewScorer(ext).Score(context.Background(), a, b)

	assert.Equal(t, 0.5, res.Components[SignalExternal])
	assert.InDelta(t, 0.75, res.Score, 1e-9)
	ext.AssertExpectations(t)
}

func TestScore_ExternalCalledInCanonicalOrder(t *testing.T) {
	a := rec("a", "John Smith", nil, nil)
	b := rec("b", "John Smith", nil, nil)

	ext := &mockExternal{}
	ext.On("Score", mock.Anything, a, b).Return(0.8, nil).Twice()

	s := NewScorer(ext)
	s.Score(context.Background(), a, b)
	s.Score(context.Background(), b, a)

	ext.AssertExpectations(t)
}

func TestScore_ExternalClamped(t *testing.T) {
	a := rec("a", "", []string{"a@x.com"}, nil)
	b := rec("b", "", []string{"a@x.com"}, nil)

	ext := &mockExternal{}
	ext.On("Score", mock.Anything, mock.Anything, mock.Anything).Return(1.7, nil)

	res := NewScorer(ext).Score(context.Background(), a, b)
	assert.Equal(t, 1.0, res.Components[SignalExternal])
	assert.Equal(t, 1.0, res.Score)
}

func TestScore_ExternalErrorDropsSignal(t *testing.T) {
	a := rec("a", "John Smith", []string{"j@x.com"}, nil)
	b := rec("b", "John Smith", []string{"j@x.com"}, nil)

	ext := &mockExternal{}
	ext.On("Score", mock.Anything, mock.Anything, mock.Anything).Return(0.0, errors.New("backend down"))

	res := NewScorer(ext).Score(context.Background(), a, b)

	assert.False(t, res.Has(SignalExternal))
	assert.Equal(t, 1.0, res.Score)
}

func TestCanonical(t *testing.T) {
	a := rec("a", "", nil, nil)
	b := rec("b", "", nil, nil)

	x, y := Canonical(b, a)
	assert.Same(t, a, x)
	assert.Same(t, b, y)

	p := contact.New()
	p.SetSource(contact.Source{Path: "f.vcf", Index: 2})
	q := contact.New()
	q.SetSource(contact.Source{Path: "f.vcf", Index: 1})
	x, y = Canonical(p, q)
	assert.Same(t, q, x)
	assert.Same(t, p, y)
}
