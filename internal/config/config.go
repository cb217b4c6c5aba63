package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	LLM      LLM      `mapstructure:"llm"`
	Search   Search   `mapstructure:"search"`
	Images   Images   `mapstructure:"images"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Schedule Schedule `mapstructure:"schedule"`
	Database Database `mapstructure:"database"`
	Logging  Logging  `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug    bool   `mapstructure:"debug"`
	SiteURL  string `mapstructure:"site_url"` // Base URL used for internal links
	DataDir  string `mapstructure:"data_dir"`
	UserID   string `mapstructure:"user_id"` // Default user for CLI invocations
	BrandInfo string `mapstructure:"brand_info"`
}

// LLM holds completion provider configuration
type LLM struct {
	Provider    string        `mapstructure:"provider"` // "openai", "gemini", or "mock"
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Gemini      GeminiConfig  `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Search holds search/scrape provider configuration
type Search struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxResults    int           `mapstructure:"max_results"`
	Language      string        `mapstructure:"language"` // ISO 639-1; empty disables filtering
	RateLimit     time.Duration `mapstructure:"rate_limit"`
	MinRawContent int           `mapstructure:"min_raw_content"` // Floor for accepting search results
}

// Images holds image-generation provider configuration
type Images struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Model          string        `mapstructure:"model"`
	FallbackModel  string        `mapstructure:"fallback_model"`
	Width          int           `mapstructure:"width"`
	Height         int           `mapstructure:"height"`
	Steps          int           `mapstructure:"steps"`
	CFGScale       float64       `mapstructure:"cfg_scale"`
	PerArticle     int           `mapstructure:"per_article"`
}

// Pipeline holds article-generation tuning knobs
type Pipeline struct {
	MinSources        int           `mapstructure:"min_sources"`
	MaxSourceURLs     int           `mapstructure:"max_source_urls"`
	DraftWordTarget   int           `mapstructure:"draft_word_target"`
	ExternalLinkFloor int           `mapstructure:"external_link_floor"`
	InternalLinkFloor int           `mapstructure:"internal_link_floor"`
	InterCallDelay    time.Duration `mapstructure:"inter_call_delay"`
	SimilarityWindow  int           `mapstructure:"similarity_window"`
	TableCount        int           `mapstructure:"table_count"`
}

// Schedule holds batch/recurring generation configuration
type Schedule struct {
	InterArticleDelay time.Duration `mapstructure:"inter_article_delay"`
	MaxBatchSize      int           `mapstructure:"max_batch_size"`
}

// Database holds persistence configuration
type Database struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".blogsmith")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached global configuration. Intended for tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".blogsmith-cache")

	// LLM defaults
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.temperature", 0.9)
	viper.SetDefault("llm.gemini.model", "gemini-2.5-flash")

	// Search defaults
	viper.SetDefault("search.base_url", "https://api.tavily.com")
	viper.SetDefault("search.timeout", "30s")
	viper.SetDefault("search.max_results", 10)
	viper.SetDefault("search.language", "en")
	viper.SetDefault("search.rate_limit", "1s")
	viper.SetDefault("search.min_raw_content", 500)

	// Image defaults
	viper.SetDefault("images.base_url", "https://api.runware.ai/v1")
	viper.SetDefault("images.timeout", "60s")
	viper.SetDefault("images.model", "runware:100@1")
	viper.SetDefault("images.fallback_model", "runware:101@1")
	viper.SetDefault("images.width", 1024)
	viper.SetDefault("images.height", 576)
	viper.SetDefault("images.steps", 28)
	viper.SetDefault("images.cfg_scale", 3.5)
	viper.SetDefault("images.per_article", 2)

	// Pipeline defaults
	viper.SetDefault("pipeline.min_sources", 8)
	viper.SetDefault("pipeline.max_source_urls", 15)
	viper.SetDefault("pipeline.draft_word_target", 1000)
	viper.SetDefault("pipeline.external_link_floor", 7)
	viper.SetDefault("pipeline.internal_link_floor", 5)
	viper.SetDefault("pipeline.inter_call_delay", "2s")
	viper.SetDefault("pipeline.similarity_window", 20)
	viper.SetDefault("pipeline.table_count", 2)

	// Schedule defaults
	viper.SetDefault("schedule.inter_article_delay", "10s")
	viper.SetDefault("schedule.max_batch_size", 10)

	// Database defaults
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("llm.api_key", []string{
		"OPENAI_API_KEY",
		"AZURE_OPENAI_API_KEY",
	})

	bindEnvKeys("llm.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("search.api_key", []string{
		"TAVILY_API_KEY",
		"SEARCH_API_KEY",
	})

	bindEnvKeys("images.api_key", []string{
		"RUNWARE_API_KEY",
		"IMAGE_API_KEY",
	})

	bindEnvKeys("database.url", []string{
		"DATABASE_URL",
		"POSTGRES_URL",
	})
}

// bindEnvKeys binds multiple environment variable names to a config key
func bindEnvKeys(configKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(configKey, value)
			return
		}
	}
}

// validateConfig performs basic sanity checks on loaded values
func validateConfig(config *Config) error {
	switch config.LLM.Provider {
	case "openai", "gemini", "mock":
	default:
		return fmt.Errorf("unknown llm provider: %q (valid: openai, gemini, mock)", config.LLM.Provider)
	}

	if config.Pipeline.MaxSourceURLs < 1 {
		return fmt.Errorf("pipeline.max_source_urls must be at least 1")
	}
	if config.Schedule.MaxBatchSize < 1 {
		return fmt.Errorf("schedule.max_batch_size must be at least 1")
	}
	if config.Images.PerArticle < 0 {
		return fmt.Errorf("images.per_article must not be negative")
	}

	return nil
}
