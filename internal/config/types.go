package config

import (
	"time"

	"github.com/raaihank/gdpr-sentinel/internal/analysis"
	"github.com/raaihank/gdpr-sentinel/internal/batch"
	"github.com/raaihank/gdpr-sentinel/internal/cache"
	"github.com/raaihank/gdpr-sentinel/internal/privacy"
	"github.com/raaihank/gdpr-sentinel/internal/store"
)

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer" mapstructure:"analyzer"`
	Taxonomy  TaxonomyConfig  `yaml:"taxonomy" mapstructure:"taxonomy"`
	Privacy   privacy.Config  `yaml:"privacy" mapstructure:"privacy"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Cache     cache.Config    `yaml:"cache" mapstructure:"cache"`
	Store     store.Config    `yaml:"store" mapstructure:"store"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
	Batch     batch.Config    `yaml:"batch" mapstructure:"batch"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// AnalyzerConfig selects the analysis strategy
type AnalyzerConfig struct {
	Strategy string    `yaml:"strategy" mapstructure:"strategy"` // auto, rule_based or llm
	LLM      LLMConfig `yaml:"llm" mapstructure:"llm"`
}

// LLMConfig contains the external model settings
type LLMConfig struct {
	Enabled          bool          `yaml:"enabled" mapstructure:"enabled"`
	BaseURL          string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey           string        `yaml:"api_key" mapstructure:"api_key"`
	Model            string        `yaml:"model" mapstructure:"model"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Temperature      float64       `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens        int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxChars         int           `yaml:"max_chars" mapstructure:"max_chars"`
	MaxResponseBytes int64         `yaml:"max_response_bytes" mapstructure:"max_response_bytes"`
}

// TaxonomyConfig points at an optional taxonomy file; empty uses the built-in one
type TaxonomyConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// RateLimitConfig contains per-client request limits
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Path            string        `yaml:"path" mapstructure:"path"`
	MaxConnections  int           `yaml:"max_connections" mapstructure:"max_connections"`
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Username        string        `yaml:"username" mapstructure:"username"` // optional basic auth
	Password        string        `yaml:"password" mapstructure:"password"`
	Events          EventsConfig  `yaml:"events" mapstructure:"events"`
}

// EventsConfig toggles broadcast event types
type EventsConfig struct {
	BroadcastAnalyses    bool `yaml:"broadcast_analyses" mapstructure:"broadcast_analyses"`
	BroadcastFallbacks   bool `yaml:"broadcast_fallbacks" mapstructure:"broadcast_fallbacks"`
	BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
}

// AnalysisConfig converts the analyzer section for the analysis package
func (c AnalyzerConfig) AnalysisConfig() analysis.Config {
	return analysis.Config{
		Strategy: c.Strategy,
		LLM: analysis.LLMConfig{
			Enabled:          c.LLM.Enabled,
			BaseURL:          c.LLM.BaseURL,
			APIKey:           c.LLM.APIKey,
			Model:            c.LLM.Model,
			Timeout:          c.LLM.Timeout,
			Temperature:      c.LLM.Temperature,
			MaxTokens:        c.LLM.MaxTokens,
			MaxChars:         c.LLM.MaxChars,
			MaxResponseBytes: c.LLM.MaxResponseBytes,
		},
	}
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    2 << 20,
		},
		Analyzer: AnalyzerConfig{
			Strategy: analysis.StrategyAuto,
			LLM: LLMConfig{
				Enabled:          false,
				BaseURL:          "https://api.openai.com/v1",
				Model:            "gpt-4o-mini",
				Timeout:          30 * time.Second,
				Temperature:      0.1,
				MaxTokens:        1024,
				MaxChars:         analysis.DefaultMaxChars,
				MaxResponseBytes: 4 << 20,
			},
		},
		Privacy: privacy.Config{
			Enabled:   true,
			Detectors: []string{"all"},
			Headers:   []string{"authorization", "x-api-key", "cookie", "x-auth-token", "x-access-token"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: cache.Config{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379/0",
			MaxConnections: 10,
			MinIdleConns:   2,
			DefaultTTL:     24 * time.Hour,
			KeyPrefix:      "gdpr",
		},
		Store: store.Config{
			Enabled:         false,
			Driver:          "sqlite",
			DatabaseURL:     "gdpr-sentinel.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 5,
			Burst:             20,
			CleanupInterval:   5 * time.Minute,
		},
		WebSocket: WebSocketConfig{
			Enabled:         true,
			Path:            "/ws",
			MaxConnections:  100,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    54 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageSize:  512,
			AllowedOrigins:  []string{"*"},
			Events: EventsConfig{
				BroadcastAnalyses:    true,
				BroadcastFallbacks:   true,
				BroadcastConnections: true,
			},
		},
		Batch: *batch.DefaultConfig(),
	}
	return cfg
}
