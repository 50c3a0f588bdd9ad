// Package config loads application configuration from a yaml file and the
// environment, and bootstraps the global logger.
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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
	Election ElectionConfig `yaml:"election" mapstructure:"election"`
	Matching MatchingConfig `yaml:"matching" mapstructure:"matching"`
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// HTTPConfig configures outbound fetches from state election sites.
type HTTPConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	CacheDir    string  `yaml:"cache_dir" mapstructure:"cache_dir"`
}

// ElectionConfig pins the election cycle being ingested.
type ElectionConfig struct {
	Year int `yaml:"year" mapstructure:"year"`
}

// MatchingConfig holds the deduplication thresholds.
type MatchingConfig struct {
	HighConfidence float64 `yaml:"high_confidence" mapstructure:"high_confidence"`
	Review         float64 `yaml:"review" mapstructure:"review"`
	UseExternalIDs bool    `yaml:"use_external_ids" mapstructure:"use_external_ids"`
}

// SourcesConfig holds per-state source endpoints.
type SourcesConfig struct {
	Maryland      MarylandConfig      `yaml:"maryland" mapstructure:"maryland"`
	Delaware      DelawareConfig      `yaml:"delaware" mapstructure:"delaware"`
	NorthCarolina NorthCarolinaConfig `yaml:"north_carolina" mapstructure:"north_carolina"`
}

// MarylandConfig holds the Maryland BOE CSV endpoints.
type MarylandConfig struct {
	StateCSV string `yaml:"state_csv" mapstructure:"state_csv"`
	LocalCSV string `yaml:"local_csv" mapstructure:"local_csv"`
}

// DelawareConfig holds the Delaware candidate-list pages. HTMLDir, when set,
// points at locally saved copies used instead of live fetches.
type DelawareConfig struct {
	GeneralURL     string `yaml:"general_url" mapstructure:"general_url"`
	PrimaryURL     string `yaml:"primary_url" mapstructure:"primary_url"`
	SchoolBoardURL string `yaml:"school_board_url" mapstructure:"school_board_url"`
	HTMLDir        string `yaml:"html_dir" mapstructure:"html_dir"`
}

// NorthCarolinaConfig holds the NC BOE candidate export.
type NorthCarolinaConfig struct {
	CSVURL string `yaml:"csv_url" mapstructure:"csv_url"`
}

// ServerConfig configures the review/webhook server.
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
	v.SetEnvPrefix("CANDIDATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("http.user_agent", "Candidate-Database-Updater/1.0")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.rate_per_sec", 2)
	v.SetDefault("http.cache_dir", "data")
	v.SetDefault("election.year", 2026)
	v.SetDefault("matching.high_confidence", 95)
	v.SetDefault("matching.review", 85)
	v.SetDefault("matching.use_external_ids", false)
	v.SetDefault("sources.maryland.state_csv",
		"https://elections.maryland.gov/elections/2026/Primary_candidates/gen_cand_lists_2026_1_ALL.csv")
	v.SetDefault("sources.maryland.local_csv",
		"https://elections.maryland.gov/elections/2026/Primary_candidates/gen_cand_lists_2026_1_by_county_ALL.csv")
	v.SetDefault("sources.delaware.general_url",
		"https://elections.delaware.gov/candidates/candidatelist/genl_fcddt_2026.shtml")
	v.SetDefault("sources.delaware.primary_url",
		"https://elections.delaware.gov/candidates/candidatelist/prim_fcddt_2026.shtml")
	v.SetDefault("sources.delaware.school_board_url",
		"https://elections.delaware.gov/candidates/candidatelist/sb_fcddt_2026.shtml")
	v.SetDefault("sources.north_carolina.csv_url",
		"https://s3.amazonaws.com/dl.ncsbe.gov/Elections/2026/Candidate%20Filing/Candidate_Listing_2026.csv")

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
