package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/vcf-dupe/internal/contact"
	"github.com/sells-group/vcf-dupe/internal/external"
	"github.com/sells-group/vcf-dupe/internal/merge"
	"github.com/sells-group/vcf-dupe/internal/similarity"
)

// Decision is the answer to a possible-duplicate prompt.
type Decision int

// Decisions.
const (
	Skip Decision = iota
	Accept
	Reject
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "skip"
	}
}

// ParseDecision maps a policy name to a Decision.
func ParseDecision(s string) (Decision, bool) {
	switch s {
	case "accept":
		return Accept, true
	case "reject":
		return Reject, true
	case "skip":
		return Skip, true
	default:
		return Skip, false
	}
}

// Candidate is a possible duplicate awaiting a decision.
type Candidate struct {
	A, B   *contact.Record
	Result similarity.Result
}

// Verdict is a confirmer's answer. Preferences only apply to Accept.
type Verdict struct {
	Decision    Decision
	Preferences merge.Preferences
	Note        string
}

// Confirmer decides possible duplicates. An error aborts the run.
type Confirmer interface {
	Confirm(ctx context.Context, c Candidate) (Verdict, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, c Candidate) (Verdict, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, c Candidate) (Verdict, error) {
	return f(ctx, c)
}

// PolicyConfirmer answers every candidate with the same decision.
func PolicyConfirmer(d Decision) Confirmer {
	return ConfirmFunc(func(context.Context, Candidate) (Verdict, error) {
		return Verdict{Decision: d, Note: "policy"}, nil
	})
}

// AdvisorConfirmer asks an LLM advisor. Advisor failures become Skip so a
// flaky API never aborts a run. Every answer goes to the decision log.
type AdvisorConfirmer struct {
	advisor external.Advisor
	log     *external.DecisionLog
}

// NewAdvisorConfirmer creates an AdvisorConfirmer. log may be nil.
func NewAdvisorConfirmer(advisor external.Advisor, log *external.DecisionLog) *AdvisorConfirmer {
	return &AdvisorConfirmer{advisor: advisor, log: log}
}

// Confirm implements Confirmer.
func (c *AdvisorConfirmer) Confirm(ctx context.Context, cand Candidate) (Verdict, error) {
	adv, err := c.advisor.Advise(ctx, cand.A, cand.B, cand.Result.Score)
	if c.log != nil {
		c.log.Record(c.advisor.Name(), cand.A, cand.B, cand.Result.Score, adv, err)
	}
	if err != nil {
		if ctx.Err() != nil {
			return Verdict{}, ctx.Err()
		}
		zap.L().Warn("pipeline: advisor failed, skipping pair",
			zap.String("advisor", c.advisor.Name()),
			zap.Stringer("a", cand.A),
			zap.Stringer("b", cand.B),
			zap.Error(err),
		)
		return Verdict{Decision: Skip, Note: "advisor error"}, nil
	}

	if !adv.Duplicate {
		return Verdict{Decision: Reject, Note: adv.Reasoning}, nil
	}
	return Verdict{Decision: Accept, Preferences: adv.Preferences, Note: adv.Reasoning}, nil
}
