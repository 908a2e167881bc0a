package external

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vcf-dupe/internal/config"
	"github.com/sells-group/vcf-dupe/internal/cost"
	"github.com/sells-group/vcf-dupe/internal/merge"
)

func TestNewBackend(t *testing.T) {
	cfg := config.Config{
		External:  config.ExternalConfig{TimeoutSecs: 5, MaxRetries: 1},
		Anthropic: config.AnthropicConfig{Key: "k", Model: "m"},
		OpenAI:    config.OpenAIConfig{Key: "k", Model: "m", EmbeddingModel: "e"},
	}

	cfg.External.Backend = config.BackendNone
	b, err := NewBackend(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	cfg.External.Backend = config.BackendTFIDF
	b, err = NewBackend(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &TFIDF{}, b)

	for _, name := range []string{config.BackendAnthropic, config.BackendOpenAI} {
		cfg.External.Backend = name
		b, err = NewBackend(cfg, &memCache{})
		require.NoError(t, err)
		assert.IsType(t, &Guard{}, b)
		assert.Equal(t, name, b.Name())
	}

	cfg.External.Backend = "bogus"
	_, err = NewBackend(cfg, nil)
	var ce *config.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestNewAdvisor(t *testing.T) {
	_, err := NewAdvisor(config.Config{})
	assert.Error(t, err)

	adv, err := NewAdvisor(config.Config{OpenAI: config.OpenAIConfig{Key: "k"}})
	require.NoError(t, err)
	assert.Equal(t, config.BackendOpenAI, adv.Name())

	adv, err = NewAdvisor(config.Config{
		Anthropic: config.AnthropicConfig{Key: "k"},
		OpenAI:    config.OpenAIConfig{Key: "k"},
	})
	require.NoError(t, err)
	assert.Equal(t, config.BackendAnthropic, adv.Name())
}

func TestFactory_WithUsage(t *testing.T) {
	tracker := cost.NewTracker(nil)
	cfg := config.Config{
		External:  config.ExternalConfig{Backend: config.BackendOpenAI},
		Anthropic: config.AnthropicConfig{Key: "k", Model: "m"},
		OpenAI:    config.OpenAIConfig{Key: "k", Model: "m", EmbeddingModel: "e"},
	}

	b, err := NewBackend(cfg, nil, WithUsage(tracker))
	require.NoError(t, err)
	assert.Same(t, tracker, b.(*Guard).backend.(*OpenAI).usage)

	adv, err := NewAdvisor(cfg, WithUsage(tracker))
	require.NoError(t, err)
	assert.Same(t, tracker, adv.(*OpenAI).usage)

	cfg.External.Backend = config.BackendNone
	adv, err = NewAdvisor(cfg, WithUsage(tracker))
	require.NoError(t, err)
	assert.Same(t, tracker, adv.(*Anthropic).usage)
}

func TestDecisionLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ai_decisions.log")
	dl, err := OpenDecisionLog(path)
	require.NoError(t, err)

	a, b := rec("Jon", nil, nil), rec("Jonathan", nil, nil)
	dl.Record("anthropic", a, b, 0.87, Advice{
		Duplicate:   true,
		Confidence:  0.9,
		Preferences: merge.Preferences{"FN": merge.SideB},
		Reasoning:   "nickname",
	}, nil)
	dl.Record("anthropic", a, b, 0.81, Advice{}, errors.New("timeout"))
	require.NoError(t, dl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reasoning":"nickname"`)
	assert.Contains(t, string(data), `"FN":"b"`)
	assert.Contains(t, string(data), `"advisor failed"`)
}

func TestDecisionLog_Discard(t *testing.T) {
	dl, err := OpenDecisionLog("")
	require.NoError(t, err)
	dl.Record("openai", rec("A", nil, nil), rec("B", nil, nil), 0.9, Advice{}, nil)
	assert.NoError(t, dl.Close())
}
