package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for inkgen.
type Config struct {
	ListenAddr      string         `mapstructure:"listen_addr"`
	DataDir         string         `mapstructure:"data_dir"`
	LogLevel        string         `mapstructure:"log_level"`
	AllowAnonymous  bool           `mapstructure:"allow_anonymous"`
	DefaultProvider string         `mapstructure:"default_provider"`
	DefaultCapacity int            `mapstructure:"default_capacity"`
	RequestTimeout  string         `mapstructure:"request_timeout"`
	Providers       []string       `mapstructure:"providers"`
	OpenAI          ProviderConfig `mapstructure:"openai"`
	Gemini          ProviderConfig `mapstructure:"gemini"`
	WeChat          WeChatConfig   `mapstructure:"wechat"`
}

// ProviderConfig holds per-backend credentials and the model allow-list.
// A backend with no API key or an empty model list is excluded from use.
type ProviderConfig struct {
	APIKey  string   `mapstructure:"api_key"`
	BaseURL string   `mapstructure:"base_url"`
	Models  []string `mapstructure:"models"`
	RPS     float64  `mapstructure:"rps"`
}

// WeChatConfig holds the WeChat open-platform login settings.
type WeChatConfig struct {
	AppID       string `mapstructure:"app_id"`
	Secret      string `mapstructure:"secret"`
	RedirectURL string `mapstructure:"redirect_url"`
}

// Load reads configuration from file, environment, and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("data_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("allow_anonymous", false)
	v.SetDefault("default_capacity", 3)
	v.SetDefault("request_timeout", "120s")
	v.SetDefault("providers", []string{"gemini", "openai"})
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.rps", 2.0)
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.rps", 2.0)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/inkgen")
	}

	// Environment variables
	v.SetEnvPrefix("INKGEN")
	v.AutomaticEnv()

	// Bind specific env vars
	_ = v.BindEnv("providers", "INKGEN_PROVIDERS")
	_ = v.BindEnv("default_provider", "INKGEN_DEFAULT_PROVIDER")
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("openai.models", "OPENAI_MODELS")
	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("gemini.models", "GEMINI_MODELS")
	_ = v.BindEnv("wechat.app_id", "WECHAT_APP_ID")
	_ = v.BindEnv("wechat.secret", "WECHAT_SECRET")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Env vars deliver lists as comma-separated strings.
	cfg.Providers = splitList(cfg.Providers)
	cfg.OpenAI.Models = splitList(cfg.OpenAI.Models)
	cfg.Gemini.Models = splitList(cfg.Gemini.Models)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.DefaultCapacity < 0 {
		return fmt.Errorf("default_capacity must be >= 0, got %d", c.DefaultCapacity)
	}
	if _, err := time.ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request_timeout %q: %w", c.RequestTimeout, err)
	}
	for _, p := range c.Providers {
		if p != "openai" && p != "gemini" {
			return fmt.Errorf("unknown provider %q in providers list", p)
		}
	}
	return nil
}

// Timeout returns the parsed per-request backend timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// splitList expands elements that are themselves comma-separated lists,
// trimming whitespace and dropping empties.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
