package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/raaihank/gdpr-sentinel/internal/compliance"
	"github.com/raaihank/gdpr-sentinel/internal/privacy"
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
	"go.uber.org/zap"
)

// DefaultMaxChars is the document budget sent to the model
const DefaultMaxChars = 3000

const maxEvidenceChars = 200

// Redactor masks personal data before text leaves the process
type Redactor interface {
	Redact(text string) privacy.ProcessResult
}

// ReportCache stores model reports so identical documents skip the upstream call
type ReportCache interface {
	GetReport(ctx context.Context, key string) (*compliance.Report, bool, error)
	SetReport(ctx context.Context, key string, report *compliance.Report) error
}

// LLMOptions tune the model strategy
type LLMOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	MaxChars    int
	Redactor    Redactor
	Cache       ReportCache
}

// LLM asks a language model which indicators a document covers and scores the
// answer with the rule engine's assembler
type LLM struct {
	provider Provider
	engine   *compliance.Engine
	tax      *taxonomy.Taxonomy
	opts     LLMOptions
	prompt   string
	logger   *zap.Logger
}

// NewLLM creates the model strategy for tax
func NewLLM(provider Provider, tax *taxonomy.Taxonomy, opts LLMOptions, logger *zap.Logger) *LLM {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}

	return &LLM{
		provider: provider,
		engine:   compliance.NewEngine(tax, logger),
		tax:      tax,
		opts:     opts,
		prompt:   systemPrompt(tax),
		logger:   logger,
	}
}

func (l *LLM) Name() string { return string(compliance.SourceLLM) }

// Analyze returns an llm-sourced report. Every failure wraps
// ErrExternalAnalysisUnavailable except invalid input.
func (l *LLM) Analyze(ctx context.Context, text string) (*compliance.Report, error) {
	if err := compliance.ValidateText(text); err != nil {
		return nil, err
	}

	key := l.cacheKey(text)
	if l.opts.Cache != nil {
		report, ok, err := l.opts.Cache.GetReport(ctx, key)
		if err != nil {
			l.logger.Warn("Report cache lookup failed", zap.Error(err))
		} else if ok {
			l.logger.Debug("Report cache hit", zap.String("key", key))
			return report, nil
		}
	}

	document := truncate(text, l.opts.MaxChars)
	if l.opts.Redactor != nil {
		result := l.opts.Redactor.Redact(document)
		document = result.MaskedText
		if n := result.Total(); n > 0 {
			l.logger.Debug("Masked personal data before external analysis", zap.Int("count", n))
		}
	}

	resp, err := l.provider.ChatCompletion(ctx, &ChatRequest{
		Model:       l.opts.Model,
		Temperature: l.opts.Temperature,
		MaxTokens:   l.opts.MaxTokens,
		Messages: []Message{
			{Role: "system", Content: l.prompt},
			{Role: "user", Content: document},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalAnalysisUnavailable, err)
	}

	matches, err := l.parseVerdict(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalAnalysisUnavailable, err)
	}

	report := l.engine.AssembleFromMatches(matches, compliance.SourceLLM)

	if l.opts.Cache != nil {
		if err := l.opts.Cache.SetReport(ctx, key, report); err != nil {
			l.logger.Warn("Report cache store failed", zap.Error(err))
		}
	}
	return report, nil
}

type verdict struct {
	Indicators []struct {
		ID       string `json:"id"`
		Present  bool   `json:"present"`
		Evidence string `json:"evidence"`
	} `json:"indicators"`
}

// parseVerdict extracts the JSON object from a model answer and keeps the
// indicators the taxonomy knows
func (l *LLM) parseVerdict(content string) ([]compliance.MatchResult, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, errors.New("response contained no JSON object")
	}

	var v verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return nil, fmt.Errorf("decode model verdict: %w", err)
	}

	matches := make([]compliance.MatchResult, 0, len(v.Indicators))
	for _, ind := range v.Indicators {
		if _, ok := l.tax.Indicator(ind.ID); !ok {
			continue
		}
		m := compliance.MatchResult{IndicatorID: ind.ID, Found: ind.Present}
		if ind.Present {
			m.Pattern = truncate(strings.TrimSpace(ind.Evidence), maxEvidenceChars)
		}
		matches = append(matches, m)
	}
	if len(matches) == 0 {
		return nil, errors.New("verdict named no known indicators")
	}
	return matches, nil
}

func (l *LLM) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%s:%s", l.tax.Fingerprint()[:16], l.opts.Model, hex.EncodeToString(sum[:]))
}

func systemPrompt(tax *taxonomy.Taxonomy) string {
	var b strings.Builder
	b.WriteString("You are a GDPR compliance expert. Decide for each indicator below whether the document the user sends addresses it.\n")
	b.WriteString("Answer with a single JSON object of the form ")
	b.WriteString(`{"indicators":[{"id":"<indicator id>","present":true,"evidence":"<short quote>"}]}`)
	b.WriteString(" and include every indicator exactly once.\n\nIndicators:\n")
	for _, c := range tax.Categories() {
		for _, ind := range c.Indicators {
			fmt.Fprintf(&b, "- %s (%s): %s\n", ind.ID, c.Name, ind.Concept)
		}
	}
	return b.String()
}

// truncate cuts s to at most max runes, marking the cut with an ellipsis
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
