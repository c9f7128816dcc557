package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the reels agent
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Scraping  ScrapingConfig  `mapstructure:"scraping"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Session   SessionConfig   `mapstructure:"session"`
	Master    MasterConfig    `mapstructure:"master"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// LLMConfig contains the LLM provider configuration and per-model pricing
type LLMConfig struct {
	APIKey  string              `mapstructure:"api_key"`
	BaseURL string              `mapstructure:"base_url"`
	Model   string              `mapstructure:"model"`
	Timeout time.Duration       `mapstructure:"timeout"`
	Models  map[string]LLMModel `mapstructure:"models"`
}

// LLMModel carries per-model pricing in USD per million tokens
type LLMModel struct {
	APIName         string  `mapstructure:"api_name"`
	CostPerMTokIn   float64 `mapstructure:"cost_per_mtok_input"`
	CostPerMTokOut  float64 `mapstructure:"cost_per_mtok_output"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
}

// SearchConfig contains search vendor settings
type SearchConfig struct {
	Provider     string  `mapstructure:"provider"`
	APIKey       string  `mapstructure:"api_key"`
	MaxResults   int     `mapstructure:"max_results"`
	CostPerQuery float64 `mapstructure:"cost_per_query_usd"`
}

// ScrapingConfig contains scraping vendor settings
type ScrapingConfig struct {
	Provider    string  `mapstructure:"provider"`
	APIKey      string  `mapstructure:"api_key"`
	CostPerCall float64 `mapstructure:"cost_per_call_usd"`
}

// AgentConfig contains the tool-calling loop settings
type AgentConfig struct {
	MaxIterations      int           `mapstructure:"max_iterations"`
	PerCreatorCap      int           `mapstructure:"per_creator_cap"`
	MaxResults         int           `mapstructure:"max_results"`
	SandboxEnabled     bool          `mapstructure:"sandbox_enabled"`
	SandboxTimeout     time.Duration `mapstructure:"sandbox_timeout"`
	SandboxOutputCap   int           `mapstructure:"sandbox_output_limit"`
	SandboxInterpreter string        `mapstructure:"sandbox_interpreter"`
}

// SessionConfig selects the session store backend
type SessionConfig struct {
	Backend string      `mapstructure:"backend"` // memory, file, redis
	DataDir string      `mapstructure:"data_dir"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MasterConfig selects the master dataset backend
type MasterConfig struct {
	Backend  string         `mapstructure:"backend"` // csv, postgres
	CSVPath  string         `mapstructure:"csv_path"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPort int    `mapstructure:"metrics_port"`
	LogFile     string `mapstructure:"log_file"`
}

// ConnString builds a lib/pq connection string, preferring the full URL.
func (p PostgresConfig) ConnString() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	viper.SetConfigName("reelagent_config")
	viper.SetConfigType("json")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("REELAGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Config file is optional; defaults plus env cover the common case
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "30s")

	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("llm.timeout", "2m")
	viper.SetDefault("llm.models.gpt-4o.api_name", "gpt-4o")
	viper.SetDefault("llm.models.gpt-4o.cost_per_mtok_input", 2.5)
	viper.SetDefault("llm.models.gpt-4o.cost_per_mtok_output", 10.0)
	viper.SetDefault("llm.models.gpt-4o.max_output_tokens", 16384)
	viper.SetDefault("llm.models.gpt-4o-mini.api_name", "gpt-4o-mini")
	viper.SetDefault("llm.models.gpt-4o-mini.cost_per_mtok_input", 0.15)
	viper.SetDefault("llm.models.gpt-4o-mini.cost_per_mtok_output", 0.6)
	viper.SetDefault("llm.models.gpt-4o-mini.max_output_tokens", 16384)

	viper.SetDefault("search.provider", "serper")
	viper.SetDefault("search.max_results", 20)
	viper.SetDefault("search.cost_per_query_usd", 0.001)

	viper.SetDefault("scraping.provider", "scrapecreators")
	viper.SetDefault("scraping.cost_per_call_usd", 0.002)

	viper.SetDefault("agent.max_iterations", 10)
	viper.SetDefault("agent.per_creator_cap", 2)
	viper.SetDefault("agent.max_results", 50)
	viper.SetDefault("agent.sandbox_enabled", false)
	viper.SetDefault("agent.sandbox_timeout", "5s")
	viper.SetDefault("agent.sandbox_output_limit", 2000)
	viper.SetDefault("agent.sandbox_interpreter", "python3")

	viper.SetDefault("session.backend", "memory")
	viper.SetDefault("session.data_dir", "./data/sessions")
	viper.SetDefault("session.redis.host", "localhost")
	viper.SetDefault("session.redis.port", 6379)
	viper.SetDefault("session.redis.db", 0)
	viper.SetDefault("session.redis.ttl", "168h")

	viper.SetDefault("master.backend", "csv")
	viper.SetDefault("master.csv_path", "./data/master_reels.csv")
	viper.SetDefault("master.postgres.port", 5432)
	viper.SetDefault("master.postgres.sslmode", "disable")

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.metrics_port", 9090)
}

// overrideFromEnv overrides configuration with environment variables
func overrideFromEnv() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		viper.Set("llm.api_key", apiKey)
	}
	if apiKey := os.Getenv("SERPER_API_KEY"); apiKey != "" {
		viper.Set("search.api_key", apiKey)
	}
	if apiKey := os.Getenv("SCRAPECREATORS_API_KEY"); apiKey != "" {
		viper.Set("scraping.api_key", apiKey)
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		viper.Set("session.redis.host", host)
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("session.redis.port", p)
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		viper.Set("session.redis.password", password)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		viper.Set("master.postgres.url", url)
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		viper.Set("master.postgres.host", host)
	}
	if user := os.Getenv("POSTGRES_USER"); user != "" {
		viper.Set("master.postgres.user", user)
	}
	if pass := os.Getenv("POSTGRES_PASSWORD"); pass != "" {
		viper.Set("master.postgres.password", pass)
	}
	if db := os.Getenv("POSTGRES_DB"); db != "" {
		viper.Set("master.postgres.dbname", db)
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (set OPENAI_API_KEY)")
	}
	if config.Search.APIKey == "" {
		return fmt.Errorf("search.api_key is required (set SERPER_API_KEY)")
	}
	if config.Scraping.APIKey == "" {
		return fmt.Errorf("scraping.api_key is required (set SCRAPECREATORS_API_KEY)")
	}
	if _, ok := config.LLM.Models[config.LLM.Model]; !ok {
		return fmt.Errorf("model '%s' has no pricing entry under llm.models", config.LLM.Model)
	}
	switch config.Session.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown session backend '%s'", config.Session.Backend)
	}
	switch config.Master.Backend {
	case "csv", "postgres":
	default:
		return fmt.Errorf("unknown master backend '%s'", config.Master.Backend)
	}
	return nil
}
