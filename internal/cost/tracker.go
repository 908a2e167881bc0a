package cost

import (
	"sort"
	"sync"
)

// Providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Usage counts the calls and tokens spent on one model.
type Usage struct {
	Calls            int
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

func (u *Usage) add(o Usage) {
	u.Calls += o.Calls
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheWriteTokens += o.CacheWriteTokens
	u.CacheReadTokens += o.CacheReadTokens
}

// Line is the usage and estimated cost of one provider/model.
type Line struct {
	Provider     string  `json:"provider" yaml:"provider"`
	Model        string  `json:"model" yaml:"model"`
	Calls        int     `json:"calls" yaml:"calls"`
	InputTokens  int64   `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int64   `json:"output_tokens" yaml:"output_tokens"`
	CostUSD      float64 `json:"cost_usd" yaml:"cost_usd"`
}

type key struct{ provider, model string }

// Tracker accumulates usage across concurrent calls. A nil Tracker ignores
// everything, so callers need not check.
type Tracker struct {
	calc *Calculator

	mu    sync.Mutex
	usage map[key]*Usage
}

// NewTracker creates a Tracker priced by calc.
func NewTracker(calc *Calculator) *Tracker {
	return &Tracker{calc: calc, usage: make(map[key]*Usage)}
}

// Add records one call.
func (t *Tracker) Add(provider, model string, u Usage) {
	if t == nil {
		return
	}
	if u.Calls == 0 {
		u.Calls = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key{provider, model}
	cur, ok := t.usage[k]
	if !ok {
		cur = &Usage{}
		t.usage[k] = cur
	}
	cur.add(u)
}

// Lines returns the priced usage sorted by provider and model.
func (t *Tracker) Lines() []Line {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := make([]Line, 0, len(t.usage))
	for k, u := range t.usage {
		lines = append(lines, Line{
			Provider:     k.provider,
			Model:        k.model,
			Calls:        u.Calls,
			InputTokens:  u.InputTokens + u.CacheWriteTokens + u.CacheReadTokens,
			OutputTokens: u.OutputTokens,
			CostUSD:      t.calc.Cost(k.provider, k.model, *u),
		})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Provider != lines[j].Provider {
			return lines[i].Provider < lines[j].Provider
		}
		return lines[i].Model < lines[j].Model
	})
	return lines
}

// Total is the estimated cost of everything tracked.
func Total(lines []Line) float64 {
	var sum float64
	for _, l := range lines {
		sum += l.CostUSD
	}
	return sum
}
