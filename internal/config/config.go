package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Fetch strategy names accepted by FetchStrategy.
const (
	FetchStrategyHTTP    = "http"
	FetchStrategyBrowser = "browser"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	BadgerDBPath     string `mapstructure:"BADGERDB_PATH"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`

	// FetchStrategy selects the metadata fetcher: "http" parses the raw
	// page, "browser" drives a headless browser for script-rendered sites.
	FetchStrategy   string        `mapstructure:"FETCH_STRATEGY"`
	MetadataTimeout time.Duration `mapstructure:"METADATA_TIMEOUT"`

	// Metadata cache tuning. Absence of a cache entry is always safe, so
	// these only trade memory against duplicate fetches.
	MetadataCacheTTL  time.Duration `mapstructure:"METADATA_CACHE_TTL"`
	MetadataCacheSize int           `mapstructure:"METADATA_CACHE_SIZE"`

	// AI tag-suggestion backend (any OpenAI-compatible chat endpoint).
	AIEndpoint string `mapstructure:"AI_ENDPOINT"`
	AIModel    string `mapstructure:"AI_MODEL"`
	AIAPIKey   string `mapstructure:"AI_API_KEY"`

	// DefaultPlan is the tier assigned to users until billing says
	// otherwise ("free" or "pro").
	DefaultPlan string `mapstructure:"DEFAULT_PLAN"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	err = viper.ReadInConfig()
	if err != nil {
		// A missing config file is fine when env vars carry the values.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if config.TelegramBotToken == "" {
		return Config{}, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	if config.AIAPIKey == "" {
		return Config{}, fmt.Errorf("AI_API_KEY is not set")
	}
	if config.BadgerDBPath == "" {
		config.BadgerDBPath = "./badger_data"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.FetchStrategy == "" {
		config.FetchStrategy = FetchStrategyHTTP
	}
	if config.FetchStrategy != FetchStrategyHTTP && config.FetchStrategy != FetchStrategyBrowser {
		return Config{}, fmt.Errorf("unknown FETCH_STRATEGY %q", config.FetchStrategy)
	}
	if config.MetadataTimeout <= 0 {
		config.MetadataTimeout = 15 * time.Second
	}
	if config.MetadataCacheTTL <= 0 {
		config.MetadataCacheTTL = 2 * time.Minute
	}
	if config.MetadataCacheSize <= 0 {
		config.MetadataCacheSize = 100
	}
	if config.AIEndpoint == "" {
		config.AIEndpoint = "https://api.openai.com/v1/chat/completions"
	}
	if config.AIModel == "" {
		config.AIModel = "gpt-4o-mini"
	}
	if config.DefaultPlan == "" {
		config.DefaultPlan = "free"
	}

	return config, nil
}
