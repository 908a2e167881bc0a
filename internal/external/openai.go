package external

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"

	"github.com/sells-group/vcf-dupe/internal/config"
	"github.com/sells-group/vcf-dupe/internal/contact"
	"github.com/sells-group/vcf-dupe/internal/cost"
	"github.com/sells-group/vcf-dupe/internal/resilience"
)

// OpenAI scores pairs by cosine similarity of their embeddings and advises
// on merges through chat completions.
type OpenAI struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	usage          *cost.Tracker

	mu         sync.Mutex
	embeddings map[string][]float32
}

// NewOpenAI creates the backend from config.
func NewOpenAI(cfg config.OpenAIConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.Key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client:         openai.NewClientWithConfig(clientCfg),
		chatModel:      cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		embeddings:     make(map[string][]float32),
	}
}

// Name implements Backend and Advisor.
func (c *OpenAI) Name() string { return config.BackendOpenAI }

// Score implements Backend. Embeddings are kept for the life of the backend,
// so each distinct record is embedded once per run.
func (c *OpenAI) Score(ctx context.Context, a, b *contact.Record) (float64, error) {
	ta, tb := describe(a), describe(b)

	missing := c.missing(ta, tb)
	if len(missing) > 0 {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: missing,
			Model: openai.EmbeddingModel(c.embeddingModel),
		})
		if err != nil {
			return 0, classifyOpenAIError(err)
		}
		c.usage.Add(cost.ProviderOpenAI, c.embeddingModel, cost.Usage{InputTokens: int64(resp.Usage.PromptTokens)})
		if len(resp.Data) != len(missing) {
			return 0, eris.Errorf("openai: got %d embeddings for %d inputs", len(resp.Data), len(missing))
		}
		c.mu.Lock()
		for _, d := range resp.Data {
			if d.Index >= 0 && d.Index < len(missing) {
				c.embeddings[missing[d.Index]] = d.Embedding
			}
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	ea, eb := c.embeddings[ta], c.embeddings[tb]
	c.mu.Unlock()
	if ea == nil || eb == nil {
		return 0, eris.New("openai: embedding missing from response")
	}
	return max(cosine(ea, eb), 0), nil
}

func (c *OpenAI) missing(texts ...string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, t := range texts {
		if _, ok := c.embeddings[t]; !ok && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Advise implements Advisor.
func (c *OpenAI) Advise(ctx context.Context, a, b *contact.Record, score float64) (Advice, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: adviceInstructions},
			{Role: openai.ChatMessageRoleUser, Content: pairPrompt(a, b, score)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Advice{}, classifyOpenAIError(err)
	}
	c.usage.Add(cost.ProviderOpenAI, c.chatModel, cost.Usage{
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	})
	if len(resp.Choices) == 0 {
		return Advice{}, eris.New("openai: no response choices")
	}

	adv, err := parseAdvice(resp.Choices[0].Message.Content)
	if err != nil {
		return Advice{}, eris.Wrap(err, "openai: parse reply")
	}
	return adv, nil
}

// classifyOpenAIError marks retryable HTTP failures as transient.
func classifyOpenAIError(err error) error {
	code := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		code = reqErr.HTTPStatusCode
	}
	if resilience.IsTransientHTTPStatus(code) {
		return resilience.NewTransientError(err, code)
	}
	return eris.Wrap(err, "openai: request")
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
