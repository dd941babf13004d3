package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is constructed once at
// startup and passed explicitly to every component that needs it. There is
// no ambient global config state.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`

	// CompetitorsFile points at the competitor definitions (selectors,
	// pagination patterns). Kept out of the main config so selector churn
	// doesn't touch application settings.
	CompetitorsFile string `yaml:"competitors_file" mapstructure:"competitors_file"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Driver is one of "jsonl", "csv", "sqlite". Unknown drivers are
	// rejected at load time, not at first use.
	Driver string `yaml:"driver" mapstructure:"driver"`
	// DataDir is the root for file-backed drivers (data/raw, data/processed).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
	// DatabasePath is the SQLite file for the sqlite driver.
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`
}

// AnthropicConfig holds provider credentials and model selection.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	LiveModel  string `yaml:"live_model" mapstructure:"live_model"`
	BatchModel string `yaml:"batch_model" mapstructure:"batch_model"`
	MaxTokens  int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// EnrichConfig controls the enrichment router and live path.
type EnrichConfig struct {
	// BatchThreshold is the post count at or above which enrichment is
	// dispatched to the asynchronous batch path.
	BatchThreshold int `yaml:"batch_threshold" mapstructure:"batch_threshold"`
	// MaxAttempts bounds per-post live retries (including the first try).
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// PrimaryCompetitors and DXPCompetitors are folded into the enrichment
	// prompt as classification context.
	PrimaryCompetitors []string `yaml:"primary_competitors" mapstructure:"primary_competitors"`
	DXPCompetitors     []string `yaml:"dxp_competitors" mapstructure:"dxp_competitors"`
}

// BatchConfig controls the batch job lifecycle manager.
type BatchConfig struct {
	// WorkspaceDir holds per-competitor tracking files and chunk snapshots.
	WorkspaceDir string `yaml:"workspace_dir" mapstructure:"workspace_dir"`
	// MaxChunkMB bounds the estimated serialized size of one submitted chunk.
	MaxChunkMB int `yaml:"max_chunk_mb" mapstructure:"max_chunk_mb"`
}

// ScrapeConfig controls the blog scrapers.
type ScrapeConfig struct {
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Concurrency    int     `yaml:"concurrency" mapstructure:"concurrency"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	BatchSize      int     `yaml:"batch_size" mapstructure:"batch_size"`
}

// ExportConfig controls the export collaborator.
type ExportConfig struct {
	OutDir string `yaml:"out_dir" mapstructure:"out_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

var validDrivers = map[string]bool{"jsonl": true, "csv": true, "sqlite": true}

// Load reads configuration from config.yaml and BLOGWATCH_* environment
// variables, applies defaults, and validates the parts that must fail fast.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BLOGWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "jsonl")
	v.SetDefault("store.data_dir", "data")
	v.SetDefault("store.database_path", "data/blogwatch.db")
	v.SetDefault("anthropic.live_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.batch_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("enrich.batch_threshold", 10)
	v.SetDefault("enrich.max_attempts", 3)
	v.SetDefault("batch.workspace_dir", "workspace")
	v.SetDefault("batch.max_chunk_mb", 95)
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.requests_per_sec", 2.0)
	v.SetDefault("scrape.concurrency", 5)
	v.SetDefault("scrape.batch_size", 20)
	v.SetDefault("scrape.user_agent", "blogwatch/1.0 (+https://github.com/sells-group/blogwatch)")
	v.SetDefault("export.out_dir", "exports")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("competitors_file", "competitors.yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if !validDrivers[c.Store.Driver] {
		return &ConfigError{Setting: "store.driver", Err: eris.Errorf("unknown driver %q (valid: jsonl, csv, sqlite)", c.Store.Driver)}
	}
	if c.Enrich.BatchThreshold < 1 {
		return &ConfigError{Setting: "enrich.batch_threshold", Err: eris.Errorf("must be >= 1, got %d", c.Enrich.BatchThreshold)}
	}
	if c.Batch.MaxChunkMB < 1 {
		return &ConfigError{Setting: "batch.max_chunk_mb", Err: eris.Errorf("must be >= 1, got %d", c.Batch.MaxChunkMB)}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
