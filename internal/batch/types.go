package batch

import (
	"path/filepath"
	"strings"
	"time"
)

// Document is one input row of a corpus
type Document struct {
	Name string `parquet:"name" json:"name"`
	Text string `parquet:"text" json:"text"`
}

// DocumentResult is the score summary for one document
type DocumentResult struct {
	Name            string  `parquet:"name" json:"name"`
	DocumentHash    string  `parquet:"document_hash" json:"document_hash"`
	OverallScore    float64 `parquet:"overall_score" json:"overall_score"`
	Source          string  `parquet:"source" json:"source"`
	FellBack        bool    `parquet:"fell_back" json:"fell_back"`
	GapCount        int64   `parquet:"gap_count" json:"gap_count"`
	CriticalGaps    int64   `parquet:"critical_gaps" json:"critical_gaps"`
	TaxonomyVersion string  `parquet:"taxonomy_version" json:"taxonomy_version"`
	RecordID        string  `parquet:"record_id" json:"record_id,omitempty"`
	Error           string  `parquet:"error" json:"error,omitempty"`
}

// Result summarizes a batch run
type Result struct {
	TotalRecords    int64            `json:"total_records"`
	ProcessedOK     int64            `json:"processed_ok"`
	ProcessedFailed int64            `json:"processed_failed"`
	Invalid         int64            `json:"invalid"`
	Fallbacks       int64            `json:"fallbacks"`
	Stored          int64            `json:"stored"`
	AverageScore    float64          `json:"average_score"`
	Duration        time.Duration    `json:"duration"`
	Documents       []DocumentResult `json:"documents"`
	Errors          []string         `json:"errors,omitempty"`
}

// Config contains batch pipeline configuration
type Config struct {
	BatchSize        int  `yaml:"batch_size" mapstructure:"batch_size"`
	WorkerCount      int  `yaml:"worker_count" mapstructure:"worker_count"`
	ValidateData     bool `yaml:"validate_data" mapstructure:"validate_data"`
	MaxDocumentBytes int  `yaml:"max_document_bytes" mapstructure:"max_document_bytes"`
	StoreResults     bool `yaml:"store_results" mapstructure:"store_results"`
	ProgressReport   int  `yaml:"progress_report" mapstructure:"progress_report"`
}

// DefaultConfig returns the batch defaults
func DefaultConfig() *Config {
	return &Config{
		BatchSize:        100,
		WorkerCount:      4,
		ValidateData:     true,
		MaxDocumentBytes: 1 << 20,
		StoreResults:     true,
		ProgressReport:   1000,
	}
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "jsonl"
	FormatText    FileFormat = "text"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	case ".parquet":
		return FormatParquet
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	default:
		return FormatText
	}
}
