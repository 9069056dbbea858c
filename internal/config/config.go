// Package config loads application configuration and initializes the
// global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	YouTube   YouTubeConfig   `yaml:"youtube" mapstructure:"youtube"`
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	Staleness StalenessConfig `yaml:"staleness" mapstructure:"staleness"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// YouTubeConfig holds Data API credentials and endpoint settings.
type YouTubeConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ScanConfig configures document discovery.
type ScanConfig struct {
	Extension   string   `yaml:"extension" mapstructure:"extension"`
	ExcludeDirs []string `yaml:"exclude_dirs" mapstructure:"exclude_dirs"`
}

// StalenessConfig configures the recency rule.
type StalenessConfig struct {
	MaxAgeYears int `yaml:"max_age_years" mapstructure:"max_age_years"`
}

// SearchConfig configures the replacement search pipeline.
type SearchConfig struct {
	MaxResults      int           `yaml:"max_results" mapstructure:"max_results"`
	MinDuration     time.Duration `yaml:"min_duration" mapstructure:"min_duration"`
	FuzzyThreshold  int           `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	KeywordCoverage float64       `yaml:"keyword_coverage" mapstructure:"keyword_coverage"`
	Concurrency     int           `yaml:"concurrency" mapstructure:"concurrency"`
}

// ReportConfig configures report output.
type ReportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
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
	v.SetEnvPrefix("LINKREFRESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. youtube.key defaults empty so the env binding is visible
	// to Unmarshal.
	v.SetDefault("youtube.key", "")
	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("scan.extension", ".md")
	v.SetDefault("scan.exclude_dirs", []string{"projects", "project", "assignment", "assignments"})
	v.SetDefault("staleness.max_age_years", 3)
	v.SetDefault("search.max_results", 50)
	v.SetDefault("search.min_duration", "5m")
	v.SetDefault("search.fuzzy_threshold", 70)
	v.SetDefault("search.keyword_coverage", 0.7)
	v.SetDefault("search.concurrency", 8)
	v.SetDefault("report.dir", ".")
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
