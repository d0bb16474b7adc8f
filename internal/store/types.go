package store

import (
	"time"
)

// Record is a persisted analysis. The report is kept as its JSON encoding.
type Record struct {
	ID              string  `db:"id" json:"id"`
	DocumentName    string  `db:"document_name" json:"document_name"`
	DocumentHash    string  `db:"document_hash" json:"document_hash"`
	DocumentLength  int     `db:"document_length" json:"document_length"`
	Source          string  `db:"source" json:"source"`
	FellBack        bool    `db:"fell_back" json:"fell_back"`
	OverallScore    float64 `db:"overall_score" json:"overall_score"`
	GapCount        int     `db:"gap_count" json:"gap_count"`
	CriticalGaps    int     `db:"critical_gaps" json:"critical_gaps"`
	TaxonomyVersion string  `db:"taxonomy_version" json:"taxonomy_version"`
	ReportJSON      string  `db:"report_json" json:"-"`
	CreatedAt       int64   `db:"created_at" json:"created_at"`
}

// Created returns the creation time
func (r *Record) Created() time.Time {
	return time.UnixMilli(r.CreatedAt).UTC()
}

// ListOptions filters and pages record listings
type ListOptions struct {
	Limit        int
	Offset       int
	Source       string
	DocumentHash string
}

// Stats summarizes stored analyses
type Stats struct {
	TotalReports  int64   `db:"total" json:"total_reports"`
	AverageScore  float64 `db:"avg_score" json:"average_score"`
	LLMReports    int64   `db:"llm" json:"llm_reports"`
	FallbackCount int64   `db:"fallbacks" json:"fallback_count"`
}

// BatchInsertResult represents the result of a batch insert operation
type BatchInsertResult struct {
	Inserted int64         `json:"inserted"`
	Failed   int64         `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Config contains database configuration
type Config struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Driver          string        `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}
