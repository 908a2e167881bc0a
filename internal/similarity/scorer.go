// Package similarity scores pairs of contact records and classifies the
// score into a match decision.
package similarity

import (
	"context"
	"errors"
	"math"

	"github.com/agext/levenshtein"
	"go.uber.org/zap"

	"github.com/sells-group/vcf-dupe/internal/contact"
)

// Signal names one input to the fused score.
type Signal string

// Signals in the order they are combined.
const (
	SignalName     Signal = "name"
	SignalEmail    Signal = "email"
	SignalPhone    Signal = "phone"
	SignalExternal Signal = "external"
)

// Result is the outcome of comparing two records. Components only holds the
// signals that took part in the score.
type Result struct {
	Score      float64            `json:"score" yaml:"score"`
	Components map[Signal]float64 `json:"components" yaml:"components"`
}

// Has reports whether the signal contributed to the score.
func (r Result) Has(s Signal) bool {
	_, ok := r.Components[s]
	return ok
}

// ExternalScorer produces a supplementary similarity in [0, 1]. Any error
// drops the external signal for that pair.
type ExternalScorer interface {
	Score(ctx context.Context, a, b *contact.Record) (float64, error)
}

// Scorer fuses the local name, email and phone signals with an optional
// external signal. It is safe for concurrent use when the external scorer is.
type Scorer struct {
	external ExternalScorer
}

// NewScorer creates a Scorer. A nil external scorer disables the external
// signal.
func NewScorer(external ExternalScorer) *Scorer {
	return &Scorer{external: external}
}

// Score compares a and b. The result does not depend on argument order.
func (s *Scorer) Score(ctx context.Context, a, b *contact.Record) Result {
	a, b = Canonical(a, b)
	na, nb := contact.Normalize(a), contact.Normalize(b)

	res := Result{Components: make(map[Signal]float64, 4)}

	if na.Name.Present && nb.Name.Present {
		res.Components[SignalName] = levenshtein.Similarity(na.Name.Value, nb.Name.Value, nil)
	}
	if v, ok := anyMatch(na.Emails, nb.Emails); ok {
		res.Components[SignalEmail] = v
	}
	if v, ok := anyMatch(na.Phones, nb.Phones); ok {
		res.Components[SignalPhone] = v
	}
	if s.external != nil {
		v, err := s.external.Score(ctx, a, b)
		switch {
		case err == nil:
			res.Components[SignalExternal] = clamp(v)
		case errors.Is(err, context.Canceled):
			// Run is shutting down; nothing to report.
		default:
			zap.L().Debug("similarity: external signal dropped",
				zap.Stringer("a", a),
				zap.Stringer("b", b),
				zap.Error(err),
			)
		}
	}

	if len(res.Components) == 0 {
		return res
	}
	var sum float64
	for _, sig := range []Signal{SignalName, SignalEmail, SignalPhone, SignalExternal} {
		if v, ok := res.Components[sig]; ok {
			sum += v
		}
	}
	res.Score = clamp(sum / float64(len(res.Components)))
	return res
}

// Canonical orders a pair deterministically so that callers which are not
// symmetric themselves (remote models, caches) see the same input for (a, b)
// and (b, a).
func Canonical(a, b *contact.Record) (*contact.Record, *contact.Record) {
	if less(b, a) {
		return b, a
	}
	return a, b
}

func less(a, b *contact.Record) bool {
	if ua, ub := a.UID(), b.UID(); ua != ub {
		return ua < ub
	}
	sa, sb := a.Source(), b.Source()
	if sa.Path != sb.Path {
		return sa.Path < sb.Path
	}
	if sa.Index != sb.Index {
		return sa.Index < sb.Index
	}
	return a.String() < b.String()
}

// anyMatch returns 1 when any present key matches, 0 when both sides have
// keys and none match, and false when either side has none.
func anyMatch(a, b []contact.Key) (float64, bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, false
	}
	for _, x := range a {
		for _, y := range b {
			if x.Matches(y) {
				return 1, true
			}
		}
	}
	return 0, true
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
