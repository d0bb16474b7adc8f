// Package app wires configuration into the shared services used by the
// server and the audit CLI.
package app

import (
	"fmt"

	"github.com/raaihank/gdpr-sentinel/internal/analysis"
	"github.com/raaihank/gdpr-sentinel/internal/cache"
	"github.com/raaihank/gdpr-sentinel/internal/config"
	"github.com/raaihank/gdpr-sentinel/internal/logger"
	"github.com/raaihank/gdpr-sentinel/internal/privacy"
	"github.com/raaihank/gdpr-sentinel/internal/store"
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
	"go.uber.org/zap"
)

// Services holds all initialized services. Cache and Store are nil when disabled.
type Services struct {
	Taxonomy *taxonomy.Taxonomy
	Detector *privacy.Detector
	Cache    *cache.ReportCache
	Store    *store.Store
	Pipeline *analysis.Pipeline
}

// LoadTaxonomy reads path, or returns the built-in taxonomy when path is empty
func LoadTaxonomy(path string) (*taxonomy.Taxonomy, error) {
	if path == "" {
		return taxonomy.Default()
	}
	return taxonomy.Load(path)
}

// Build initializes every service cfg enables. An unreachable cache is logged
// and skipped; an unreachable store is an error.
func Build(cfg *config.Config, log *logger.Logger) (*Services, error) {
	s := &Services{}

	tax, err := LoadTaxonomy(cfg.Taxonomy.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}
	s.Taxonomy = tax

	s.Detector, err = privacy.New(cfg.Privacy, log.WithComponent("privacy").Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create privacy detector: %w", err)
	}

	// interface values stay nil when a feature is off
	var redactor analysis.Redactor
	if cfg.Privacy.Enabled {
		redactor = s.Detector
	}

	var reportCache analysis.ReportCache
	if cfg.Cache.Enabled {
		rc, err := cache.NewReportCache(&cfg.Cache, log.WithComponent("cache").Logger)
		if err != nil {
			log.Warn("Report cache unavailable, continuing without it", zap.Error(err))
		} else {
			s.Cache = rc
			reportCache = rc
		}
	}

	if cfg.Store.Enabled {
		s.Store, err = store.NewStore(&cfg.Store, log.WithComponent("store").Logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize report store: %w", err)
		}
	}

	s.Pipeline, err = analysis.Build(cfg.Analyzer.AnalysisConfig(), tax, redactor, reportCache, log.WithComponent("analysis").Logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to build analysis pipeline: %w", err)
	}

	log.Info("Services initialized",
		zap.String("strategy", s.Pipeline.Strategy()),
		zap.String("taxonomy_version", tax.Version()),
		zap.Bool("cache", s.Cache != nil),
		zap.Bool("store", s.Store != nil),
	)
	return s, nil
}

// Close releases the cache and store connections
func (s *Services) Close() {
	if s.Cache != nil {
		s.Cache.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}
