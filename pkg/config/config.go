package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig                 `mapstructure:"app"`
	Gateways  map[string]GatewayConfig  `mapstructure:"gateways"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Memory    MemoryConfig              `mapstructure:"memory"`
	Capture   CaptureConfig             `mapstructure:"capture"`
	Pipeline  PipelineConfig            `mapstructure:"pipeline"`
	Server    ServerConfig              `mapstructure:"server"`
}

type AppConfig struct {
	Name      string `mapstructure:"name"`
	Workspace string `mapstructure:"workspace"`
	Prompts   string `mapstructure:"prompts"`
	LogDir    string `mapstructure:"log_dir"`
}

type GatewayConfig struct {
	Token   string `mapstructure:"token"`
	ChatID  int64  `mapstructure:"chat_id"`
	Enabled bool   `mapstructure:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	Enabled bool   `mapstructure:"enabled"`
}

type MemoryConfig struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
}

// CaptureConfig points at the local screen/audio capture service.
type CaptureConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	NotifyURL string `mapstructure:"notify_url"`
}

// PipelineConfig holds the tunable policy of the orchestration pipeline.
type PipelineConfig struct {
	FinanceConfidence   float64       `mapstructure:"finance_confidence"`
	DuplicateSimilarity float64       `mapstructure:"duplicate_similarity"`
	DuplicateWindow     int           `mapstructure:"duplicate_window"`
	RelevanceBatchSize  int           `mapstructure:"relevance_batch_size"`
	DefaultLookback     time.Duration `mapstructure:"default_lookback"`
	AnswerMaxLines      int           `mapstructure:"answer_max_lines"`
	SearchLimit         int           `mapstructure:"search_limit"`
	SearchMinLength     int           `mapstructure:"search_min_length"`
	ContentTypes        []string      `mapstructure:"content_types"`
	ExcludedWindows     []string      `mapstructure:"excluded_windows"`
	ExcludedApps        []string      `mapstructure:"excluded_apps"`
	FinanceProvider     string        `mapstructure:"finance_provider"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// ErrNoProvider is returned when no provider is enabled.
var ErrNoProvider = errors.New("no enabled provider found in config")

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "agentview")
	v.SetDefault("app.workspace", ".")
	v.SetDefault("app.prompts", "./prompts")
	v.SetDefault("app.log_dir", "logs")
	v.SetDefault("memory.type", "sqlite")
	v.SetDefault("memory.path", "agentview.db")
	v.SetDefault("capture.base_url", "http://localhost:3030")
	v.SetDefault("capture.notify_url", "http://localhost:11435")
	v.SetDefault("pipeline.finance_confidence", 0.7)
	v.SetDefault("pipeline.duplicate_similarity", 0.8)
	v.SetDefault("pipeline.duplicate_window", 20)
	v.SetDefault("pipeline.relevance_batch_size", 8)
	v.SetDefault("pipeline.default_lookback", "5m")
	v.SetDefault("pipeline.answer_max_lines", 10)
	v.SetDefault("pipeline.search_limit", 50)
	v.SetDefault("pipeline.search_min_length", 3)
	v.SetDefault("pipeline.content_types", []string{"ocr", "audio"})
	v.SetDefault("pipeline.excluded_windows", []string{"agentview", "hyprsqrl"})
	v.SetDefault("server.addr", "127.0.0.1:8787")
}

// LoadConfig reads the config file at path (yaml or json), layered over
// defaults and AGENTVIEW_* environment variables. A missing file is not
// an error when path is empty.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AGENTVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("providers.openai.api_key", "AGENTVIEW_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Env-only api key when the file has no openai section.
	if key := v.GetString("providers.openai.api_key"); key != "" {
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]ProviderConfig)
		}
		p := cfg.Providers["openai"]
		p.APIKey = key
		cfg.Providers["openai"] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the pipeline policy values.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.FinanceConfidence < 0 || p.FinanceConfidence > 1 {
		return fmt.Errorf("pipeline.finance_confidence must be within [0,1], got %v", p.FinanceConfidence)
	}
	if p.DuplicateSimilarity < 0 || p.DuplicateSimilarity > 1 {
		return fmt.Errorf("pipeline.duplicate_similarity must be within [0,1], got %v", p.DuplicateSimilarity)
	}
	if p.RelevanceBatchSize <= 0 {
		return fmt.Errorf("pipeline.relevance_batch_size must be positive")
	}
	if p.DefaultLookback <= 0 {
		return fmt.Errorf("pipeline.default_lookback must be positive")
	}
	return nil
}

// GetDefaultProvider returns the enabled provider, preferring openai.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	if p, ok := c.Providers["openai"]; ok && p.Enabled {
		return "openai", p
	}
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetProvider returns a named provider if it is enabled.
func (c *Config) GetProvider(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	if ok && p.Enabled {
		return p, true
	}
	return ProviderConfig{}, false
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled && tg.Token != "" {
		return tg, true
	}
	return GatewayConfig{}, false
}
