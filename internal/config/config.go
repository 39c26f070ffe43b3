// Package config handles configuration loading for stockai.
// It supports YAML config files, a local .env file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"        yaml:"llm"`
	DataSource DataSourceConfig `mapstructure:"datasource" yaml:"datasource"`
	Cache      CacheConfig      `mapstructure:"cache"      yaml:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"  yaml:"ratelimit"`
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
	WS         WSConfig         `mapstructure:"ws"         yaml:"ws"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// LLMConfig holds the chat-completion backend settings. Any OpenAI-compatible
// endpoint works: OpenAI, Groq, or a local Ollama at /v1.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"    yaml:"provider"` // "openai", "groq", "ollama", "none"
	BaseURL     string        `mapstructure:"base_url"    yaml:"base_url"`
	APIKey      string        `mapstructure:"api_key"     yaml:"api_key"`
	Model       string        `mapstructure:"model"       yaml:"model"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"  yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"     yaml:"timeout"`

	// Fallbacks are tried in order when the primary endpoint is down.
	Fallbacks []LLMEndpoint `mapstructure:"fallbacks" yaml:"fallbacks"`
}

// LLMEndpoint is one extra chat-completion backend in the fallback chain.
type LLMEndpoint struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	APIKey   string `mapstructure:"api_key"  yaml:"api_key"`
	Model    string `mapstructure:"model"    yaml:"model"`
}

// DataSourceConfig holds upstream fetch settings.
type DataSourceConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"           yaml:"timeout"`
	RetryAttempts    int           `mapstructure:"retry_attempts"    yaml:"retry_attempts"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"       yaml:"retry_delay"`
	UserAgent        string        `mapstructure:"user_agent"        yaml:"user_agent"`
	DirectoryPath    string        `mapstructure:"directory_path"    yaml:"directory_path"`
	DirectoryURL     string        `mapstructure:"directory_url"     yaml:"directory_url"`
	DirectoryRefresh time.Duration `mapstructure:"directory_refresh" yaml:"directory_refresh"`
	NewsFeeds        []string      `mapstructure:"news_feeds"        yaml:"news_feeds"`
	MaxConcurrency   int           `mapstructure:"max_concurrency"   yaml:"max_concurrency"`
}

// CacheConfig holds TTLs for each cache class and the sweep schedule.
type CacheConfig struct {
	TTL   CacheTTLConfig `mapstructure:"ttl"   yaml:"ttl"`
	Sweep string         `mapstructure:"sweep" yaml:"sweep"` // cron schedule, e.g. "@every 5m"
}

// CacheTTLConfig lists the per-class TTLs.
type CacheTTLConfig struct {
	Price        time.Duration `mapstructure:"price"         yaml:"price"`
	Details      time.Duration `mapstructure:"details"       yaml:"details"`
	Historical   time.Duration `mapstructure:"historical"    yaml:"historical"`
	Corporate    time.Duration `mapstructure:"corporate"     yaml:"corporate"`
	Options      time.Duration `mapstructure:"options"       yaml:"options"`
	MarketStatus time.Duration `mapstructure:"market_status" yaml:"market_status"`
	Directory    time.Duration `mapstructure:"directory"     yaml:"directory"`
}

// RateLimitConfig holds per-endpoint request quotas per window. Clients
// are keyed by connection address; TrustProxy takes the address from
// True-Client-IP, X-Real-IP or X-Forwarded-For instead, which is only safe
// behind a proxy that sets those headers.
type RateLimitConfig struct {
	Window     time.Duration `mapstructure:"window"      yaml:"window"`
	TrustProxy bool          `mapstructure:"trust_proxy" yaml:"trust_proxy"`
	Ask        int           `mapstructure:"ask"         yaml:"ask"`
	Analyze    int           `mapstructure:"analyze"     yaml:"analyze"`
	Compare    int           `mapstructure:"compare"     yaml:"compare"`
	Stock      int           `mapstructure:"stock"       yaml:"stock"`
	News       int           `mapstructure:"news"        yaml:"news"`
	Options    int           `mapstructure:"options"     yaml:"options"`
	Market     int           `mapstructure:"market"      yaml:"market"`
	Symbols    int           `mapstructure:"symbols"     yaml:"symbols"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host         string        `mapstructure:"host"          yaml:"host"`
	Port         int           `mapstructure:"port"          yaml:"port"`
	CORSOrigins  []string      `mapstructure:"cors_origins"  yaml:"cors_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"  yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// WSConfig holds the market-status WebSocket feed settings.
type WSConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"        yaml:"level"`  // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"       yaml:"format"` // "text" or "json"
	File       string `mapstructure:"file"         yaml:"file"`   // empty disables file output
	MaxSizeMB  int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"  yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// envPrefix is the prefix for environment overrides, e.g. STOCKAI_LLM_MODEL.
const envPrefix = "STOCKAI"

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.stockai/config.yaml (home directory)
//  3. /etc/stockai/config.yaml (system)
//
// A .env file in the working directory is loaded first, so its values behave
// like real environment variables.
func Load() (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".stockai"))
	v.AddConfigPath("/etc/stockai")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

// Default returns the built-in defaults without reading any file or environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks values that would make the service misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if c.DataSource.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("datasource.retry_attempts must be at least 1"))
	}
	if c.DataSource.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("datasource.timeout must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("ratelimit.window must be positive"))
	}
	switch c.LLM.Provider {
	case "openai", "groq", "ollama", "none":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of openai, groq, ollama, none", c.LLM.Provider))
	}
	for i, fb := range c.LLM.Fallbacks {
		switch fb.Provider {
		case "openai", "groq", "ollama":
		default:
			errs = append(errs, fmt.Errorf("llm.fallbacks[%d].provider %q is not one of openai, groq, ollama", i, fb.Provider))
		}
	}
	return errors.Join(errs...)
}

// Addr returns the listen address for the API server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout", 30*time.Second)

	// Upstream defaults
	v.SetDefault("datasource.timeout", 10*time.Second)
	v.SetDefault("datasource.retry_attempts", 3)
	v.SetDefault("datasource.retry_delay", time.Second)
	v.SetDefault("datasource.user_agent", "")
	v.SetDefault("datasource.directory_path", filepath.Join("cache", "nse_stocks.json"))
	v.SetDefault("datasource.directory_url", "https://api.twelvedata.com/stocks?exchange=XNSE")
	v.SetDefault("datasource.directory_refresh", 24*time.Hour)
	v.SetDefault("datasource.news_feeds", []string{
		"https://www.moneycontrol.com/rss/marketreports.xml",
		"https://economictimes.indiatimes.com/markets/rssfeeds/1977021501.cms",
		"https://www.livemint.com/rss/markets",
	})
	v.SetDefault("datasource.max_concurrency", 5)

	// Cache TTL classes
	v.SetDefault("cache.ttl.price", 30*time.Second)
	v.SetDefault("cache.ttl.details", 5*time.Minute)
	v.SetDefault("cache.ttl.historical", 15*time.Minute)
	v.SetDefault("cache.ttl.corporate", time.Hour)
	v.SetDefault("cache.ttl.options", time.Minute)
	v.SetDefault("cache.ttl.market_status", 10*time.Second)
	v.SetDefault("cache.ttl.directory", 24*time.Hour)
	v.SetDefault("cache.sweep", "@every 5m")

	// Rate limits per client per window
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.trust_proxy", false)
	v.SetDefault("ratelimit.ask", 10)
	v.SetDefault("ratelimit.analyze", 10)
	v.SetDefault("ratelimit.compare", 5)
	v.SetDefault("ratelimit.stock", 20)
	v.SetDefault("ratelimit.news", 20)
	v.SetDefault("ratelimit.options", 10)
	v.SetDefault("ratelimit.market", 30)
	v.SetDefault("ratelimit.symbols", 20)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.read_timeout", 15*time.Second)
	v.SetDefault("api.write_timeout", 120*time.Second)

	v.SetDefault("ws.interval", 15*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
}

// overrideFromEnv fills the LLM key from the provider's conventional
// variable when no STOCKAI_ key is set.
func overrideFromEnv(cfg *Config) {
	if cfg.LLM.APIKey != "" {
		return
	}
	switch cfg.LLM.Provider {
	case "groq":
		cfg.LLM.APIKey = os.Getenv("GROQ_API_KEY")
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// loadDotEnv loads ./.env if present. Existing environment variables win.
func loadDotEnv() {
	_ = godotenv.Load()
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
