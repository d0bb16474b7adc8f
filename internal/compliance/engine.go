// Package compliance is the deterministic rule-based GDPR scoring engine. It
// matches indicator phrases in document text, scores category coverage,
// classifies the gaps and ranks remediation actions into a Report.
//
// The engine performs no I/O and holds no mutable state, so one Engine can
// serve any number of concurrent Analyze calls.
package compliance

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
	"go.uber.org/zap"
)

// ErrInvalidInput means the payload is not text (invalid UTF-8 or NUL bytes).
// Empty text is valid and yields a zero score.
var ErrInvalidInput = errors.New("invalid input: document is not UTF-8 text")

// Engine analyzes documents against one taxonomy
type Engine struct {
	version    string
	categories []taxonomy.Category
	catIndex   map[string]taxonomy.Category
	indIndex   map[string]taxonomy.Indicator
	compiled   []compiledIndicator
	logger     *zap.Logger
}

// NewEngine prepares an engine for tax. A nil logger discards output.
func NewEngine(tax *taxonomy.Taxonomy, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	categories := tax.Categories()
	e := &Engine{
		version:    tax.Version(),
		categories: categories,
		catIndex:   make(map[string]taxonomy.Category, len(categories)),
		indIndex:   make(map[string]taxonomy.Indicator, tax.IndicatorCount()),
		compiled:   compileIndicators(categories),
		logger:     logger,
	}
	for _, c := range categories {
		e.catIndex[c.ID] = c
		for _, ind := range c.Indicators {
			e.indIndex[ind.ID] = ind
		}
	}
	return e
}

// Analyze runs the rule-based engine over text with a fresh Engine
func Analyze(text string, tax *taxonomy.Taxonomy) (*Report, error) {
	return NewEngine(tax, nil).Analyze(text)
}

// Analyze matches, scores, classifies and ranks text into a rule_based report
func (e *Engine) Analyze(text string) (*Report, error) {
	if err := ValidateText(text); err != nil {
		return nil, err
	}

	matches := matchIndicators(text, e.compiled)
	report := e.build(matches, SourceRuleBased)

	e.logger.Debug("Rule-based analysis completed",
		zap.Int("document_length", len(text)),
		zap.Float64("overall_score", report.OverallScore),
		zap.Int("gaps", len(report.Gaps)),
		zap.Int("critical_gaps", report.CriticalGaps()),
	)
	return report, nil
}

// AssembleFromMatches builds a report from matches produced elsewhere, such as
// the LLM strategy. Indicators missing from matches count as not found and
// unknown indicator ids are dropped.
func (e *Engine) AssembleFromMatches(matches []MatchResult, source Source) *Report {
	byID := make(map[string]MatchResult, len(matches))
	for _, m := range matches {
		if _, ok := e.indIndex[m.IndicatorID]; !ok {
			e.logger.Debug("Ignoring match for unknown indicator", zap.String("indicator_id", m.IndicatorID))
			continue
		}
		if prev, seen := byID[m.IndicatorID]; seen && prev.Found {
			continue
		}
		byID[m.IndicatorID] = m
	}

	normalized := make([]MatchResult, 0, len(e.compiled))
	for _, ci := range e.compiled {
		m, ok := byID[ci.indicator.ID]
		if !ok {
			m = MatchResult{IndicatorID: ci.indicator.ID}
		}
		normalized = append(normalized, m)
	}
	return e.build(normalized, source)
}

// TaxonomyVersion returns the version of the taxonomy the engine was built for
func (e *Engine) TaxonomyVersion() string {
	return e.version
}

func (e *Engine) build(matches []MatchResult, source Source) *Report {
	found := make(map[string]bool, len(matches))
	for _, m := range matches {
		if m.Found {
			found[m.IndicatorID] = true
		}
	}

	scores, overall := scoreCategories(e.categories, found, e.logger)
	gaps := classifyGaps(e.categories, found)
	recs := generateRecommendations(gaps, e.catIndex, e.indIndex)

	return assemble(e.version, source, matches, scores, overall, gaps, recs)
}

// ValidateText rejects payloads that are not text
func ValidateText(text string) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: invalid UTF-8 sequence", ErrInvalidInput)
	}
	if strings.IndexByte(text, 0) >= 0 {
		return fmt.Errorf("%w: contains NUL bytes", ErrInvalidInput)
	}
	return nil
}
