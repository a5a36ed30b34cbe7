package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the venturist backend.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Databases DatabasesConfig `mapstructure:"databases"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Scrapers  ScrapersConfig  `mapstructure:"scrapers"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Index     IndexConfig     `mapstructure:"index"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug       bool     `mapstructure:"debug"`
	Listen      string   `mapstructure:"listen"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabasesConfig groups the backing stores.
type DatabasesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a postgres connection string, preferring the explicit URL.
func (p PostgresConfig) DSN() (string, error) {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (databases.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("databases.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("databases.postgres.dbname required when url is not provided")
	}
	return nil
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("databases.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("databases.redis.port required")
	}
	return nil
}

// LLMConfig contains LLM provider settings and model routing.
type LLMConfig struct {
	Provider       string           `mapstructure:"provider"` // openai
	APIKey         string           `mapstructure:"api_key"`
	BaseURL        string           `mapstructure:"base_url"`
	Timeout        time.Duration    `mapstructure:"timeout"`
	EmbeddingModel string           `mapstructure:"embedding_model"`
	Routing        LLMRoutingConfig `mapstructure:"routing"`
}

// LLMRoutingConfig picks a model per task kind.
type LLMRoutingConfig struct {
	TrendDiscovery string `mapstructure:"trend_discovery"`
	IdeaAnalysis   string `mapstructure:"idea_analysis"`
	CodeReview     string `mapstructure:"code_review"`
	Fallback       string `mapstructure:"fallback"`
}

// Model returns the routed model for a task, falling back as configured.
func (r LLMRoutingConfig) Model(task string) string {
	var m string
	switch task {
	case "trend_discovery":
		m = r.TrendDiscovery
	case "idea_analysis":
		m = r.IdeaAnalysis
	case "code_review":
		m = r.CodeReview
	}
	if m == "" {
		m = r.Fallback
	}
	return m
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key required (or VENTURIST_LLM_API_KEY)")
	}
	return nil
}

// ScrapersConfig contains source scraper settings.
type ScrapersConfig struct {
	Reddit RedditConfig `mapstructure:"reddit"`
}

// RedditConfig controls the Reddit listing scraper.
type RedditConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	UserAgent  string        `mapstructure:"user_agent"`
	BaseURL    string        `mapstructure:"base_url"`
	Subreddits []string      `mapstructure:"subreddits"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// GitHubConfig holds credentials for the review/codegen CLI.
type GitHubConfig struct {
	Token string `mapstructure:"token"`
}

// IndexConfig configures the Qdrant embedding index.
type IndexConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	APIKey     string `mapstructure:"api_key"`
	Collection string `mapstructure:"collection"`
	Dims       uint64 `mapstructure:"dims"`
}

func (i IndexConfig) Validate() error {
	if !i.Enabled {
		return nil
	}
	if strings.TrimSpace(i.URL) == "" {
		return fmt.Errorf("index.url required when index.enabled")
	}
	if strings.TrimSpace(i.Collection) == "" {
		return fmt.Errorf("index.collection required when index.enabled")
	}
	return nil
}

// SchedulerConfig carries the explicit job table; there is no module-level
// schedule state anywhere else.
type SchedulerConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Jobs    []ScheduledJob `mapstructure:"jobs"`
}

// ScheduledJob triggers one agent on a cron expression.
type ScheduledJob struct {
	AgentType string                 `mapstructure:"agent_type"`
	Cron      string                 `mapstructure:"cron"`
	Params    map[string]interface{} `mapstructure:"params"`
}

func (s SchedulerConfig) Validate() error {
	for _, j := range s.Jobs {
		if strings.TrimSpace(j.AgentType) == "" {
			return fmt.Errorf("scheduler.jobs[].agent_type required")
		}
		if strings.TrimSpace(j.Cron) == "" {
			return fmt.Errorf("scheduler.jobs[].cron required")
		}
	}
	return nil
}

// LoadConfig loads config from file and VENTURIST_* environment variables.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.listen", ":10010")
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.routing.fallback", "gpt-4o-mini")
	viper.SetDefault("scrapers.reddit.enabled", true)
	viper.SetDefault("scrapers.reddit.base_url", "https://www.reddit.com")
	viper.SetDefault("scrapers.reddit.user_agent", "venturist/1.0")
	viper.SetDefault("scrapers.reddit.timeout", "15s")
	viper.SetDefault("index.dims", 1536)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("VENTURIST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Databases.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Databases.Redis.Validate(); err != nil {
		panic(err)
	}
	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Index.Validate(); err != nil {
		panic(err)
	}
	if err := config.Scheduler.Validate(); err != nil {
		panic(err)
	}
	return &config
}
