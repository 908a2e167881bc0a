package external

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vcf-dupe/internal/config"
	"github.com/sells-group/vcf-dupe/internal/contact"
	"github.com/sells-group/vcf-dupe/internal/cost"
	"github.com/sells-group/vcf-dupe/internal/resilience"
	"github.com/sells-group/vcf-dupe/pkg/anthropic"
)

const adviceMaxTokens = 512

// Anthropic asks a Claude model whether two records are the same person. It
// serves as both a scoring Backend and an Advisor.
type Anthropic struct {
	client anthropic.Client
	model  string
	usage  *cost.Tracker
}

// NewAnthropic creates the backend from config. The SDK's own retries are
// disabled; Guard owns the retry policy.
func NewAnthropic(cfg config.AnthropicConfig) *Anthropic {
	return NewAnthropicWithClient(anthropic.NewClient(cfg.Key, option.WithMaxRetries(0)), cfg.Model)
}

// NewAnthropicWithClient creates the backend around an existing client.
func NewAnthropicWithClient(client anthropic.Client, model string) *Anthropic {
	return &Anthropic{client: client, model: model}
}

// Name implements Backend and Advisor.
func (c *Anthropic) Name() string { return config.BackendAnthropic }

// Score implements Backend.
func (c *Anthropic) Score(ctx context.Context, a, b *contact.Record) (float64, error) {
	adv, err := c.Advise(ctx, a, b, -1)
	if err != nil {
		return 0, err
	}
	return adv.SameScore(), nil
}

// Advise implements Advisor.
func (c *Anthropic) Advise(ctx context.Context, a, b *contact.Record, score float64) (Advice, error) {
	temp := 0.0
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   adviceMaxTokens,
		System:      anthropic.CachedSystem(adviceInstructions),
		Messages:    []anthropic.Message{{Role: "user", Content: pairPrompt(a, b, score)}},
		Temperature: &temp,
	})
	if err != nil {
		if code := anthropic.StatusCode(err); resilience.IsTransientHTTPStatus(code) {
			return Advice{}, resilience.NewTransientError(err, code)
		}
		return Advice{}, err
	}
	resp.Usage.LogCost(c.model, "advise")
	c.usage.Add(cost.ProviderAnthropic, c.model, cost.Usage{
		InputTokens:      resp.Usage.InputTokens,
		OutputTokens:     resp.Usage.OutputTokens,
		CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
		CacheReadTokens:  resp.Usage.CacheReadInputTokens,
	})

	adv, err := parseAdvice(resp.Text())
	if err != nil {
		return Advice{}, eris.Wrap(err, "anthropic: parse reply")
	}
	return adv, nil
}
