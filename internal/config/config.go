package config

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "vcard_dupechecker_config"

// Config holds the full application configuration. It is loaded once and
// passed by value; nothing mutates it during a run.
type Config struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	AutoMergeThreshold  float64 `yaml:"auto_merge_threshold" mapstructure:"auto_merge_threshold"`
	KeepOriginals       bool    `yaml:"keep_originals" mapstructure:"keep_originals"`
	MergedDir           string  `yaml:"merged_dir" mapstructure:"merged_dir"`
	LogFile             string  `yaml:"log_file" mapstructure:"log_file"`
	LogLevel            string  `yaml:"log_level" mapstructure:"log_level"`
	LogFormat           string  `yaml:"log_format" mapstructure:"log_format"`
	Blocking            string  `yaml:"blocking" mapstructure:"blocking"`
	Workers             int     `yaml:"workers" mapstructure:"workers"`
	ReportFile          string  `yaml:"report_file" mapstructure:"report_file"`
	ReportFormat        string  `yaml:"report_format" mapstructure:"report_format"`
	StateDB             string  `yaml:"state_db" mapstructure:"state_db"`

	External  ExternalConfig  `yaml:"external" mapstructure:"external"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
}

// ExternalConfig configures the optional external similarity backend.
type ExternalConfig struct {
	Backend           string  `yaml:"backend" mapstructure:"backend"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	CacheTTLHours     int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	DecisionLog       string  `yaml:"decision_log" mapstructure:"decision_log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	Model          string `yaml:"model" mapstructure:"model"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
}

// Blocking strategies.
const (
	BlockingNone     = "none"
	BlockingInitial  = "initial"
	BlockingPhonetic = "phonetic"
)

// External backends.
const (
	BackendNone      = "none"
	BackendTFIDF     = "tfidf"
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatXLSX = "xlsx"
)

// Load reads configuration from defaults, the config file and the
// environment. An explicit path must exist; the default file is optional.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("VCFDUPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.key", "VCFDUPE_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("openai.key", "VCFDUPE_OPENAI_KEY", "OPENAI_API_KEY")

	v.SetDefault("similarity_threshold", 0.8)
	v.SetDefault("auto_merge_threshold", 0.95)
	v.SetDefault("keep_originals", false)
	v.SetDefault("merged_dir", "merged_vcards")
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("blocking", BlockingInitial)
	v.SetDefault("workers", 4)
	v.SetDefault("report_file", "")
	v.SetDefault("report_format", "")
	v.SetDefault("state_db", "")
	v.SetDefault("external.backend", BackendNone)
	v.SetDefault("external.timeout_secs", 20)
	v.SetDefault("external.max_retries", 1)
	v.SetDefault("external.requests_per_second", 2.0)
	v.SetDefault("external.cache_ttl_hours", 168)
	v.SetDefault("external.decision_log", "ai_decisions.log")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.ReportFormat = cfg.ResolveReportFormat()

	return &cfg, nil
}

// ResolveReportFormat returns the configured report format, falling back to
// the report file's extension and then to text.
func (c Config) ResolveReportFormat() string {
	if c.ReportFormat != "" {
		return strings.ToLower(c.ReportFormat)
	}
	switch strings.ToLower(filepath.Ext(c.ReportFile)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatText
	}
}

// InitLogger initializes the global zap logger. Logs always go to stderr and
// additionally to log_file when set.
func InitLogger(cfg Config) error {
	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat, "stderr", cfg.LogFile)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	return nil
}

// NewLogger builds a zap logger writing to the given non-empty paths.
func NewLogger(level, format string, paths ...string) (*zap.Logger, error) {
	var zapCfg zap.Config
	if format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.DisableStacktrace = true
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(lvl)

	zapCfg.OutputPaths = zapCfg.OutputPaths[:0]
	for _, p := range paths {
		if p != "" {
			zapCfg.OutputPaths = append(zapCfg.OutputPaths, p)
		}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	return logger, nil
}
