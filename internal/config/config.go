package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Listings  ListingsConfig  `yaml:"listings" mapstructure:"listings"`
	Gmail     GmailConfig     `yaml:"gmail" mapstructure:"gmail"`
	Sheets    SheetsConfig    `yaml:"sheets" mapstructure:"sheets"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Zones     ZonesConfig     `yaml:"zones" mapstructure:"zones"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ListingsConfig configures the marketplace search API client.
type ListingsConfig struct {
	BaseURL        string   `yaml:"base_url" mapstructure:"base_url"`
	APIKey         string   `yaml:"api_key" mapstructure:"api_key"`
	States         []string `yaml:"states" mapstructure:"states"`
	PageSize       int      `yaml:"page_size" mapstructure:"page_size"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs    int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int      `yaml:"max_retries" mapstructure:"max_retries"`
	MaxConcurrency int      `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// GmailConfig configures the outcome mailbox.
type GmailConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	Query    string `yaml:"query" mapstructure:"query"`
	PageSize int    `yaml:"page_size" mapstructure:"page_size"`
	// MarkRead controls whether processed messages lose the UNREAD label.
	MarkRead bool `yaml:"mark_read" mapstructure:"mark_read"`
}

// SheetsConfig configures the Google Sheets sink.
type SheetsConfig struct {
	Token         string `yaml:"token" mapstructure:"token"`
	SpreadsheetID string `yaml:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	BatchSize     int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// ExportConfig configures local file outputs.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ReconcileConfig configures reconciler behavior.
type ReconcileConfig struct {
	// Strict rejects outcomes for properties never seen as listings
	// instead of creating placeholder rows.
	Strict bool `yaml:"strict" mapstructure:"strict"`
}

// ZonesConfig configures the state-to-zone assignment.
type ZonesConfig struct {
	// File points at a YAML override of the built-in zone table.
	File string `yaml:"file" mapstructure:"file"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUCTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "auction-sync.db")
	v.SetDefault("listings.page_size", 100)
	v.SetDefault("listings.rate_limit", 5.0)
	v.SetDefault("listings.timeout_secs", 30)
	v.SetDefault("listings.max_retries", 3)
	v.SetDefault("listings.max_concurrency", 4)
	v.SetDefault("gmail.query", "is:unread (subject:\"Transaction Update\" OR subject:\"Property Removed\")")
	v.SetDefault("gmail.page_size", 200)
	v.SetDefault("gmail.mark_read", true)
	v.SetDefault("sheets.batch_size", 100)
	v.SetDefault("export.dir", "out")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
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
