package config

import (
	"fmt"
	"slices"
)

// ConfigurationError is a fatal configuration problem detected before any
// processing starts.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: invalid %s: %s", e.Key, e.Reason)
}

// ValidateThresholds checks the similarity band boundaries.
func ValidateThresholds(similarity, autoMerge float64) error {
	if !(similarity >= 0 && similarity <= 1) {
		return &ConfigurationError{
			Key:    "similarity_threshold",
			Reason: fmt.Sprintf("must be between 0.0 and 1.0 (got %.2f)", similarity),
		}
	}
	if !(autoMerge >= 0 && autoMerge <= 1) {
		return &ConfigurationError{
			Key:    "auto_merge_threshold",
			Reason: fmt.Sprintf("must be between 0.0 and 1.0 (got %.2f)", autoMerge),
		}
	}
	if similarity >= autoMerge {
		return &ConfigurationError{
			Key: "similarity_threshold",
			Reason: fmt.Sprintf("must be strictly less than auto_merge_threshold (got %.2f >= %.2f)",
				similarity, autoMerge),
		}
	}
	return nil
}

// Validate checks every setting the run depends on.
func (c Config) Validate() error {
	if err := ValidateThresholds(c.SimilarityThreshold, c.AutoMergeThreshold); err != nil {
		return err
	}
	if c.MergedDir == "" {
		return &ConfigurationError{Key: "merged_dir", Reason: "must not be empty"}
	}
	if !slices.Contains([]string{BlockingNone, BlockingInitial, BlockingPhonetic}, c.Blocking) {
		return &ConfigurationError{
			Key:    "blocking",
			Reason: fmt.Sprintf("must be none, initial or phonetic (got %q)", c.Blocking),
		}
	}
	if c.Workers <= 0 || c.Workers > 64 {
		return &ConfigurationError{Key: "workers", Reason: fmt.Sprintf("must be between 1 and 64 (got %d)", c.Workers)}
	}
	if !slices.Contains([]string{FormatText, FormatJSON, FormatYAML, FormatXLSX}, c.ResolveReportFormat()) {
		return &ConfigurationError{
			Key:    "report_format",
			Reason: fmt.Sprintf("must be text, json, yaml or xlsx (got %q)", c.ReportFormat),
		}
	}
	if c.ResolveReportFormat() == FormatXLSX && c.ReportFile == "" {
		return &ConfigurationError{Key: "report_file", Reason: "is required for the xlsx report format"}
	}
	return c.External.validate(c)
}

func (e ExternalConfig) validate(c Config) error {
	switch e.Backend {
	case BackendNone, BackendTFIDF:
	case BackendAnthropic:
		if c.Anthropic.Key == "" {
			return &ConfigurationError{Key: "anthropic.key", Reason: "is required for the anthropic backend (set ANTHROPIC_API_KEY)"}
		}
	case BackendOpenAI:
		if c.OpenAI.Key == "" {
			return &ConfigurationError{Key: "openai.key", Reason: "is required for the openai backend (set OPENAI_API_KEY)"}
		}
	default:
		return &ConfigurationError{
			Key:    "external.backend",
			Reason: fmt.Sprintf("must be none, tfidf, anthropic or openai (got %q)", e.Backend),
		}
	}
	if e.TimeoutSecs <= 0 || e.TimeoutSecs > 300 {
		return &ConfigurationError{Key: "external.timeout_secs", Reason: fmt.Sprintf("must be between 1 and 300 (got %d)", e.TimeoutSecs)}
	}
	if e.MaxRetries < 0 || e.MaxRetries > 1 {
		return &ConfigurationError{Key: "external.max_retries", Reason: fmt.Sprintf("must be 0 or 1 (got %d)", e.MaxRetries)}
	}
	if e.RequestsPerSecond < 0 {
		return &ConfigurationError{Key: "external.requests_per_second", Reason: "cannot be negative"}
	}
	if e.CacheTTLHours < 0 {
		return &ConfigurationError{Key: "external.cache_ttl_hours", Reason: "cannot be negative"}
	}
	return nil
}

// AdvisorProvider picks the LLM used for merge recommendations: the scoring
// backend when it is an LLM, otherwise whichever API key is configured.
// Returns "" when none is available.
func (c Config) AdvisorProvider() string {
	switch {
	case c.External.Backend == BackendAnthropic || c.External.Backend == BackendOpenAI:
		return c.External.Backend
	case c.Anthropic.Key != "":
		return BackendAnthropic
	case c.OpenAI.Key != "":
		return BackendOpenAI
	default:
		return ""
	}
}
