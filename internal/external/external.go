// Package external provides the optional similarity backends (local TF-IDF,
// Anthropic, OpenAI), the Guard that applies timeouts, retries, a circuit
// breaker, rate limiting and score caching to them, and the LLM merge
// advisors.
package external

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vcf-dupe/internal/contact"
	"github.com/sells-group/vcf-dupe/internal/merge"
)

// ErrUnavailable marks any failure of an external backend. Callers drop the
// external signal and carry on.
var ErrUnavailable = eris.New("external: backend unavailable")

// Backend scores a pair of records in [0, 1].
type Backend interface {
	Name() string
	Score(ctx context.Context, a, b *contact.Record) (float64, error)
}

// Preparer is implemented by backends that need the whole corpus before
// scoring.
type Preparer interface {
	Prepare(records []*contact.Record)
}

// Advice is an LLM recommendation for one candidate pair.
type Advice struct {
	Duplicate   bool              `json:"duplicate"`
	Confidence  float64           `json:"confidence"`
	Preferences merge.Preferences `json:"-"`
	Reasoning   string            `json:"reasoning"`
}

// SameScore converts the advice into a similarity: the confidence that the
// two records describe the same person.
func (a Advice) SameScore() float64 {
	if a.Duplicate {
		return a.Confidence
	}
	return 1 - a.Confidence
}

// Advisor recommends whether a possible duplicate should be merged. score is
// the fused local similarity, or negative when unknown.
type Advisor interface {
	Name() string
	Advise(ctx context.Context, a, b *contact.Record, score float64) (Advice, error)
}

// UnavailableError carries the backend failure behind ErrUnavailable.
type UnavailableError struct {
	Backend string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("external: %s unavailable: %v", e.Backend, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is matches ErrUnavailable.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

func unavailable(backend string, err error) error {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Backend: backend, Err: err}
}
