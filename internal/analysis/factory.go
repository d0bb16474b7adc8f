package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/raaihank/gdpr-sentinel/internal/compliance"
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
	"go.uber.org/zap"
)

// Strategy names
const (
	StrategyAuto      = "auto"
	StrategyRuleBased = "rule_based"
	StrategyLLM       = "llm"
)

// LLMConfig configures the external model strategy
type LLMConfig struct {
	Enabled          bool
	BaseURL          string
	APIKey           string
	Model            string
	Timeout          time.Duration
	Temperature      float64
	MaxTokens        int
	MaxChars         int
	MaxResponseBytes int64
}

// Available reports whether the model strategy can be attempted
func (c LLMConfig) Available() bool {
	return c.Enabled && (c.APIKey != "" || c.BaseURL != "")
}

// Config selects the strategy
type Config struct {
	Strategy string
	LLM      LLMConfig
}

// Build wires a pipeline from configuration. With strategy auto the model is
// used only when enabled and a credential or base URL is present.
func Build(cfg Config, tax *taxonomy.Taxonomy, redactor Redactor, cache ReportCache, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rule := NewRuleBased(compliance.NewEngine(tax, logger))

	strategy := strings.ToLower(strings.TrimSpace(cfg.Strategy))
	if strategy == "" {
		strategy = StrategyAuto
	}

	useLLM := false
	switch strategy {
	case StrategyRuleBased:
	case StrategyLLM:
		if !cfg.LLM.Available() {
			return nil, fmt.Errorf("strategy %q requires analyzer.llm.enabled and an api key or base url", strategy)
		}
		useLLM = true
	case StrategyAuto:
		useLLM = cfg.LLM.Available()
	default:
		return nil, fmt.Errorf("unknown analysis strategy %q", cfg.Strategy)
	}

	if !useLLM {
		logger.Info("Using rule-based analysis")
		return NewPipeline(nil, rule, 0, logger), nil
	}

	provider := NewOpenAI(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Timeout, cfg.LLM.MaxResponseBytes)
	llm := NewLLM(provider, tax, LLMOptions{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		MaxChars:    cfg.LLM.MaxChars,
		Redactor:    redactor,
		Cache:       cache,
	}, logger)

	logger.Info("Using external model analysis with rule-based fallback",
		zap.String("model", cfg.LLM.Model),
		zap.Duration("timeout", cfg.LLM.Timeout),
	)
	return NewPipeline(llm, rule, cfg.LLM.Timeout, logger), nil
}
