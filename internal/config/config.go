// Package config loads service configuration from YAML files and
// GDPR_SENTINEL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/raaihank/gdpr-sentinel/internal/analysis"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "GDPR_SENTINEL"

// envBindings are keys that may be set from the environment without a file
var envBindings = map[string][]string{
	"server.port":           nil,
	"analyzer.strategy":     nil,
	"analyzer.llm.enabled":  nil,
	"analyzer.llm.base_url": nil,
	"analyzer.llm.api_key":  {"OPENAI_API_KEY"},
	"analyzer.llm.model":    nil,
	"taxonomy.path":         nil,
	"logging.level":         nil,
	"logging.format":        nil,
	"cache.enabled":         nil,
	"cache.redis_url":       nil,
	"store.enabled":         nil,
	"store.driver":          nil,
	"store.database_url":    nil,
	"rate_limit.enabled":    nil,
	"websocket.enabled":     nil,
	"websocket.username":    nil,
	"websocket.password":    nil,
	"batch.worker_count":    nil,
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/gdpr-sentinel/")
	v.AddConfigPath("$HOME/.gdpr-sentinel/")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, fallbacks := range envBindings {
		names := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, fallbacks...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// a missing default config file is fine; defaults apply
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	config := GetDefaults()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Analyzer.Strategy {
	case analysis.StrategyAuto, analysis.StrategyRuleBased, analysis.StrategyLLM:
	default:
		return fmt.Errorf("invalid analyzer strategy: %s (must be auto, rule_based, or llm)", config.Analyzer.Strategy)
	}

	if config.Analyzer.LLM.MaxChars < 0 {
		return fmt.Errorf("invalid analyzer.llm.max_chars: %d", config.Analyzer.LLM.MaxChars)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.Store.Enabled && config.Store.Driver != "postgres" && config.Store.Driver != "sqlite" {
		return fmt.Errorf("invalid store driver: %s (must be postgres or sqlite)", config.Store.Driver)
	}

	if config.RateLimit.Enabled && (config.RateLimit.RequestsPerSecond <= 0 || config.RateLimit.Burst <= 0) {
		return fmt.Errorf("invalid rate limit: %v rps, burst %d", config.RateLimit.RequestsPerSecond, config.RateLimit.Burst)
	}

	if config.Batch.WorkerCount <= 0 {
		return fmt.Errorf("invalid batch worker count: %d", config.Batch.WorkerCount)
	}

	return nil
}

// Watch reloads configPath on change and hands every valid version to callback.
// Invalid edits are logged and ignored.
func Watch(configPath string, logger *zap.Logger, callback func(*Config)) error {
	v, err := newViper(configPath)
	if err != nil {
		return err
	}
	if v.ConfigFileUsed() == "" {
		return nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig, err := decode(v)
		if err != nil {
			logger.Warn("Ignoring invalid configuration change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		logger.Info("Configuration reloaded", zap.String("file", e.Name))
		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}
