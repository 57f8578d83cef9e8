package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the gateway.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// AuthConfig contains bearer-token verification settings.
type AuthConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Issuer       string        `mapstructure:"issuer"`
	Audience     string        `mapstructure:"audience"`
	JWKSURL      string        `mapstructure:"jwks_url"` // derived from issuer when empty
	AdminSubject string        `mapstructure:"admin_subject"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// Normalize applies defaults for unset auth values.
func (a AuthConfig) Normalize() AuthConfig {
	a.Issuer = strings.TrimRight(strings.TrimSpace(a.Issuer), "/")
	if a.JWKSURL == "" && a.Issuer != "" {
		a.JWKSURL = a.Issuer + "/.well-known/jwks.json"
	}
	if a.CacheTTL <= 0 {
		a.CacheTTL = 10 * time.Minute
	}
	if a.FetchTimeout <= 0 {
		a.FetchTimeout = 10 * time.Second
	}
	return a
}

func (a AuthConfig) Validate() error {
	if !a.Enabled {
		return nil
	}
	if strings.TrimSpace(a.Issuer) == "" {
		return fmt.Errorf("auth.issuer is required when auth is enabled")
	}
	if strings.TrimSpace(a.Audience) == "" {
		return fmt.Errorf("auth.audience is required when auth is enabled")
	}
	return nil
}

// QuotaConfig controls per-caller admission limits.
type QuotaConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

func (q QuotaConfig) Validate() error {
	if q.Limit <= 0 {
		return fmt.Errorf("quota.limit must be > 0")
	}
	if q.Window <= 0 {
		return fmt.Errorf("quota.window must be > 0")
	}
	return nil
}

// LLMConfig contains generative-text provider settings.
type LLMConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxRounds int           `mapstructure:"max_tool_rounds"`
}

func (l LLMConfig) Validate() error {
	if l.APIKey == "" && os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("llm.api_key not configured (llm.api_key or GEMINI_API_KEY)")
	}
	return nil
}

// SearchConfig contains web-search capability settings.
type SearchConfig struct {
	Provider   string        `mapstructure:"provider"`
	APIKey     string        `mapstructure:"api_key"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Normalize applies defaults for unset search values.
func (s SearchConfig) Normalize() SearchConfig {
	if s.Provider == "" {
		s.Provider = "serper"
	}
	if s.MaxResults <= 0 {
		s.MaxResults = 5
	}
	if s.Timeout <= 0 {
		s.Timeout = 15 * time.Second
	}
	return s
}

// StorageConfig contains backing store configurations.
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains the counter-store connection settings.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" || strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.host and storage.redis.port are required")
	}
	return nil
}

// Addr returns the host:port address for the redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// TelemetryConfig contains monitoring settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	viper.SetDefault("server.address", ":8090")
	viper.SetDefault("auth.enabled", true)
	viper.SetDefault("quota.limit", 5)
	viper.SetDefault("quota.window", 24*time.Hour)
	viper.SetDefault("llm.model", "gemini-1.5-flash-latest")
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("llm.max_tool_rounds", 3)
	viper.SetDefault("search.provider", "serper")
	viper.SetDefault("search.max_results", 5)
	viper.SetDefault("storage.redis.timeout", 5*time.Second)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SCRIBE")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (SCRIBE_*)

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {             // Handle errors reading the config file
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Auth = config.Auth.Normalize()
	config.Search = config.Search.Normalize()

	if err := config.Auth.Validate(); err != nil {
		panic(err)
	}
	if err := config.Quota.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	return &config
}
