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

const (
	DefaultNewsFeedURL   = "https://news.google.com/rss?hl=en-IN&gl=IN&ceid=IN:en"
	DefaultTrendsFeedURL = "https://trends.google.com/trending/rss?geo=IN"
	DefaultModel         = "gpt-4.1"
)

// Config is the single configuration object passed into every constructor.
// Nothing below the cmd layer reads the process environment directly.
type Config struct {
	Env     string        `mapstructure:"env"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Feeds   FeedsConfig   `mapstructure:"feeds"`
	Client  ClientConfig  `mapstructure:"client"`
	History HistoryConfig `mapstructure:"history"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ServerConfig contains HTTP listener and CORS settings.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigin  string        `mapstructure:"allowed_origin"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LLMConfig describes the language-model provider.
type LLMConfig struct {
	APIKey            string `mapstructure:"api_key"`
	ExtraKeys         string `mapstructure:"extra_keys"`
	BaseURL           string `mapstructure:"base_url"`
	Model             string `mapstructure:"model"`
	ResponseMode      string `mapstructure:"response_mode"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

type FeedsConfig struct {
	NewsURL   string        `mapstructure:"news_url"`
	TrendsURL string        `mapstructure:"trends_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ClientConfig is used by the terminal front-end when it calls the endpoint.
type ClientConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type HistoryConfig struct {
	Dir              string `mapstructure:"dir"`
	Capacity         int    `mapstructure:"capacity"`
	FallbackCapacity int    `mapstructure:"fallback_capacity"`
	QuotaBytes       int64  `mapstructure:"quota_bytes"`
}

// Configured reports whether a model provider credential is present.
func (c *Config) Configured() bool {
	return c != nil && strings.TrimSpace(c.LLM.APIKey) != ""
}

// APIKeys returns the primary key followed by any extra keys, without blanks.
func (c *Config) APIKeys() []string {
	var keys []string
	if k := strings.TrimSpace(c.LLM.APIKey); k != "" {
		keys = append(keys, k)
	}
	for _, k := range strings.Split(c.LLM.ExtraKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Load reads .env (if present), an optional YAML file and the environment,
// in increasing order of precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("log.level", "info")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origin", "*")
	v.SetDefault("server.request_timeout", 170*time.Second)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.extra_keys", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", DefaultModel)
	v.SetDefault("llm.response_mode", "json_object")
	v.SetDefault("llm.requests_per_minute", 60)

	v.SetDefault("feeds.news_url", DefaultNewsFeedURL)
	v.SetDefault("feeds.trends_url", DefaultTrendsFeedURL)
	v.SetDefault("feeds.timeout", 15*time.Second)

	v.SetDefault("client.endpoint", "http://localhost:8080/api/generate")
	v.SetDefault("client.timeout", 180*time.Second)

	v.SetDefault("history.dir", defaultHistoryDir())
	v.SetDefault("history.capacity", 20)
	v.SetDefault("history.fallback_capacity", 10)
	v.SetDefault("history.quota_bytes", 5<<20)
}

// bindLegacyEnv keeps the flat variable names the deployment already uses.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("llm.api_key", "OPENAI_API_KEY", "LLM_API_KEY")
	_ = v.BindEnv("llm.extra_keys", "OPENAI_EXTRA_KEYS")
	_ = v.BindEnv("llm.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("server.allowed_origin", "ALLOWED_ORIGIN")
	_ = v.BindEnv("server.addr", "KAHAANI_ADDR")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

func (c *Config) normalize() {
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	switch c.LLM.ResponseMode {
	case "off", "json_object", "json_schema":
	default:
		c.LLM.ResponseMode = "json_object"
	}
	if c.History.Capacity <= 0 {
		c.History.Capacity = 20
	}
	if c.History.FallbackCapacity <= 0 || c.History.FallbackCapacity > c.History.Capacity {
		c.History.FallbackCapacity = min(10, c.History.Capacity)
	}
	if c.Client.Timeout <= 0 {
		c.Client.Timeout = 180 * time.Second
	}
	if c.Feeds.Timeout <= 0 {
		c.Feeds.Timeout = 15 * time.Second
	}
}

func defaultHistoryDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".kahaani"
	}
	return filepath.Join(home, ".kahaani")
}
