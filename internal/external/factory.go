package external

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/vcf-dupe/internal/config"
	"github.com/sells-group/vcf-dupe/internal/cost"
)

// Option configures backends and advisors built by the factory functions.
type Option func(*options)

type options struct {
	usage *cost.Tracker
}

// WithUsage records the token usage of remote model calls in t.
func WithUsage(t *cost.Tracker) Option {
	return func(o *options) { o.usage = t }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewBackend builds the configured scoring backend. It returns nil for the
// "none" backend. Remote backends are wrapped in a Guard; the local TF-IDF
// backend is not.
func NewBackend(cfg config.Config, cache ScoreCache, opts ...Option) (Backend, error) {
	o := buildOptions(opts)
	switch cfg.External.Backend {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendTFIDF:
		return NewTFIDF(), nil
	case config.BackendAnthropic:
		b := NewAnthropic(cfg.Anthropic)
		b.usage = o.usage
		return NewGuard(b, cfg.External, cache), nil
	case config.BackendOpenAI:
		b := NewOpenAI(cfg.OpenAI)
		b.usage = o.usage
		return NewGuard(b, cfg.External, cache), nil
	default:
		return nil, &config.ConfigurationError{Key: "external.backend", Reason: "unknown backend " + cfg.External.Backend}
	}
}

// NewAdvisor builds the merge advisor for the configured LLM provider.
func NewAdvisor(cfg config.Config, opts ...Option) (Advisor, error) {
	o := buildOptions(opts)
	switch cfg.AdvisorProvider() {
	case config.BackendAnthropic:
		a := NewAnthropic(cfg.Anthropic)
		a.usage = o.usage
		return a, nil
	case config.BackendOpenAI:
		a := NewOpenAI(cfg.OpenAI)
		a.usage = o.usage
		return a, nil
	default:
		return nil, eris.New("external: advisor needs ANTHROPIC_API_KEY or OPENAI_API_KEY")
	}
}
