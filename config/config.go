// Package config loads the research-team settings from an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dshills/research-team/workflow"
	"github.com/dshills/research-team/workflow/model"
	"github.com/dshills/research-team/workflow/worker"
)

// Providers accepted in AI_PROVIDER.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreMySQL    = "mysql"
	StorePostgres = "postgres"
)

// Config holds the configuration for the application. Every key can be set
// in research-team.yaml or as an upper-case environment variable.
type Config struct {
	Provider string `mapstructure:"ai_provider"`

	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	GeminiModel  string `mapstructure:"gemini_model"`

	OpenAIAPIKey      string  `mapstructure:"openai_api_key"`
	OpenAIModel       string  `mapstructure:"openai_model"`
	OpenAIBaseURL     string  `mapstructure:"openai_base_url"`
	OpenAITemperature float64 `mapstructure:"openai_temperature"`

	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	AnthropicModel  string `mapstructure:"anthropic_model"`

	MaxTokens          int     `mapstructure:"max_tokens"`
	RequestTimeout     int     `mapstructure:"request_timeout"` // seconds
	GenerationRetries  int     `mapstructure:"generation_retries"`
	MaxResearchSources int     `mapstructure:"max_research_sources"`
	MinContentLength   int     `mapstructure:"min_content_length"`
	QualityThreshold   float64 `mapstructure:"quality_threshold"`

	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	LogFormat string `mapstructure:"log_format"`

	StoreDriver string        `mapstructure:"store_driver"`
	StoreDSN    string        `mapstructure:"store_dsn"`
	RegistryTTL time.Duration `mapstructure:"registry_ttl"`

	SearchURL      string `mapstructure:"search_url"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
}

var defaults = map[string]interface{}{
	"ai_provider":          ProviderGemini,
	"gemini_api_key":       "",
	"gemini_model":         "gemini-2.0-flash",
	"openai_api_key":       "",
	"openai_model":         "openai/gpt-4o-mini",
	"openai_base_url":      "https://openrouter.ai/api/v1",
	"openai_temperature":   0.7,
	"anthropic_api_key":    "",
	"anthropic_model":      "claude-3-5-haiku-latest",
	"max_tokens":           800,
	"request_timeout":      30,
	"generation_retries":   0,
	"max_research_sources": 3,
	"min_content_length":   500,
	"quality_threshold":    0.8,
	"host":                 "0.0.0.0",
	"port":                 5000,
	"log_format":           "text",
	"store_driver":         StoreMemory,
	"store_dsn":            "",
	"registry_ttl":         "0s",
	"search_url":           "",
	"tracing_enabled":      false,
}

// Load reads configFile, or research-team.yaml from . or ./config when
// configFile is empty, and overlays the environment. A missing default file
// is not an error.
func Load(configFile string) (*Config, error) {
	return LoadWith(viper.New(), configFile)
}

// LoadWith is Load on a caller-supplied viper instance.
func LoadWith(v *viper.Viper, configFile string) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("research-team")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	return &cfg, nil
}

// Validate returns every problem found, or nil.
func (c *Config) Validate() []string {
	var issues []string

	switch c.Provider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			issues = append(issues, "GEMINI_API_KEY is required when AI_PROVIDER=gemini")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			issues = append(issues, "OPENAI_API_KEY is required when AI_PROVIDER=openai")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			issues = append(issues, "ANTHROPIC_API_KEY is required when AI_PROVIDER=anthropic")
		}
	case ProviderMock:
	default:
		issues = append(issues, fmt.Sprintf("AI_PROVIDER %q is not one of gemini, openai, anthropic, mock", c.Provider))
	}

	if c.MaxTokens < 50 || c.MaxTokens > 4096 {
		issues = append(issues, fmt.Sprintf("MAX_TOKENS must be between 50 and 4096, got %d", c.MaxTokens))
	}
	if c.RequestTimeout <= 0 {
		issues = append(issues, "REQUEST_TIMEOUT must be positive")
	}
	if c.GenerationRetries < 0 {
		issues = append(issues, "GENERATION_RETRIES must not be negative")
	}
	if c.MaxResearchSources <= 0 {
		issues = append(issues, "MAX_RESEARCH_SOURCES must be positive")
	}
	if c.MinContentLength <= 0 {
		issues = append(issues, "MIN_CONTENT_LENGTH must be positive")
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		issues = append(issues, fmt.Sprintf("QUALITY_THRESHOLD must be between 0 and 1, got %v", c.QualityThreshold))
	}
	if c.Port <= 0 || c.Port > 65535 {
		issues = append(issues, fmt.Sprintf("PORT %d is out of range", c.Port))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		issues = append(issues, fmt.Sprintf("LOG_FORMAT %q is not one of text, json", c.LogFormat))
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite, StoreMySQL, StorePostgres:
		if c.StoreDSN == "" {
			issues = append(issues, fmt.Sprintf("STORE_DSN is required when STORE_DRIVER=%s", c.StoreDriver))
		}
	default:
		issues = append(issues, fmt.Sprintf("STORE_DRIVER %q is not one of memory, sqlite, mysql, postgres", c.StoreDriver))
	}
	if c.RegistryTTL < 0 {
		issues = append(issues, "REGISTRY_TTL must not be negative")
	}
	return issues
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// GenerationTimeout bounds a single generator call.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// RunDefaults are the options applied to requests that leave them empty.
func (c *Config) RunDefaults() workflow.RunOptions {
	opts := workflow.DefaultOptions()
	opts.MaxResearchSources = c.MaxResearchSources
	opts.QualityThreshold = workflow.Threshold(c.QualityThreshold)
	return opts
}

// WorkerConfig returns the worker tables with the configured budgets.
func (c *Config) WorkerConfig() worker.Config {
	wc := worker.DefaultConfig()
	wc.MaxTokens = c.MaxTokens
	wc.GenerationTimeout = c.GenerationTimeout()
	wc.Retry = model.RetryPolicy{
		MaxAttempts: c.GenerationRetries + 1,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
	wc.MinContentLength = c.MinContentLength
	return wc
}
