// Package analysis selects and runs an analysis strategy. An optional external
// language model is tried first and the deterministic rule engine answers
// whenever it fails.
package analysis

import (
	"context"
	"errors"

	"github.com/raaihank/gdpr-sentinel/internal/compliance"
)

var (
	// ErrExternalAnalysisUnavailable means the external strategy could not
	// produce a report: not configured, unreachable, timed out, or answered
	// with something unusable.
	ErrExternalAnalysisUnavailable = errors.New("external analysis unavailable")

	// ErrAnalysisFailed means neither strategy produced a report
	ErrAnalysisFailed = errors.New("analysis failed")
)

// Analyzer turns document text into a compliance report
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*compliance.Report, error)
	Name() string
}

// RuleBased adapts the rule engine to Analyzer
type RuleBased struct {
	engine *compliance.Engine
}

// NewRuleBased wraps engine
func NewRuleBased(engine *compliance.Engine) *RuleBased {
	return &RuleBased{engine: engine}
}

// Analyze ignores ctx; the engine is pure and bounded by the input size
func (r *RuleBased) Analyze(_ context.Context, text string) (*compliance.Report, error) {
	return r.engine.Analyze(text)
}

func (r *RuleBased) Name() string { return string(compliance.SourceRuleBased) }

// Engine exposes the wrapped engine
func (r *RuleBased) Engine() *compliance.Engine { return r.engine }
