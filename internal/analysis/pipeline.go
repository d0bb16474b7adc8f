package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raaihank/gdpr-sentinel/internal/compliance"
	"go.uber.org/zap"
)

// Outcome is a report plus how it was produced
type Outcome struct {
	Report         *compliance.Report
	FellBack       bool
	FallbackReason string
	Duration       time.Duration
}

// Pipeline runs the primary strategy under a timeout and answers with the rule
// engine when it fails
type Pipeline struct {
	primary  Analyzer
	fallback *RuleBased
	timeout  time.Duration
	logger   *zap.Logger
}

// NewPipeline builds a pipeline. A nil primary means rule-based only.
func NewPipeline(primary Analyzer, fallback *RuleBased, timeout time.Duration, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger,
	}
}

// Strategy names the first strategy tried
func (p *Pipeline) Strategy() string {
	if p.primary == nil {
		return p.fallback.Name()
	}
	return p.primary.Name()
}

// Engine returns the rule engine backing the fallback
func (p *Pipeline) Engine() *compliance.Engine {
	return p.fallback.Engine()
}

// Analyze produces a report for text. Invalid input is returned as is; any
// primary failure falls back to the rule engine.
func (p *Pipeline) Analyze(ctx context.Context, text string) (*Outcome, error) {
	started := time.Now()

	if err := compliance.ValidateText(text); err != nil {
		return nil, err
	}

	if p.primary != nil {
		report, err := p.runPrimary(ctx, text)
		if err == nil {
			return &Outcome{Report: report, Duration: time.Since(started)}, nil
		}
		if errors.Is(err, compliance.ErrInvalidInput) {
			return nil, err
		}

		p.logger.Warn("External analysis failed, falling back to rule-based engine",
			zap.String("strategy", p.primary.Name()),
			zap.Error(err),
		)

		report, ferr := p.fallback.Analyze(ctx, text)
		if ferr != nil {
			return nil, fmt.Errorf("%w: %s: %v; rule_based: %v", ErrAnalysisFailed, p.primary.Name(), err, ferr)
		}
		return &Outcome{
			Report:         report,
			FellBack:       true,
			FallbackReason: err.Error(),
			Duration:       time.Since(started),
		}, nil
	}

	report, err := p.fallback.Analyze(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	return &Outcome{Report: report, Duration: time.Since(started)}, nil
}

func (p *Pipeline) runPrimary(ctx context.Context, text string) (*compliance.Report, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	report, err := p.primary.Analyze(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrExternalAnalysisUnavailable) {
			err = fmt.Errorf("%w: %v", ErrExternalAnalysisUnavailable, err)
		}
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("%w: empty report", ErrExternalAnalysisUnavailable)
	}
	return report, nil
}
