// Package batch audits whole corpora of policy documents with a bounded
// worker pool and writes per-document score summaries.
package batch

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raaihank/gdpr-sentinel/internal/analysis"
	"github.com/raaihank/gdpr-sentinel/internal/store"
	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Analyzer produces a report outcome for one document
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*analysis.Outcome, error)
}

// Recorder persists analysis records
type Recorder interface {
	BatchInsert(ctx context.Context, recs []*store.Record) (*store.BatchInsertResult, error)
}

// Pipeline runs a corpus through the analyzer
type Pipeline struct {
	analyzer Analyzer
	recorder Recorder
	config   *Config
	logger   *zap.Logger
}

// NewPipeline creates a batch pipeline. recorder may be nil.
func NewPipeline(analyzer Analyzer, recorder Recorder, config *Config, logger *zap.Logger) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		analyzer: analyzer,
		recorder: recorder,
		config:   config,
		logger:   logger,
	}
}

// ProcessPath processes a corpus file or a directory of text documents
func (p *Pipeline) ProcessPath(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input: %w", err)
	}

	p.logger.Info("Starting batch audit",
		zap.String("path", path),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount))

	start := time.Now()
	result := &Result{Documents: []DocumentResult{}}

	if info.IsDir() {
		err = p.processDir(ctx, path, result)
	} else {
		err = p.processFile(ctx, path, result)
	}
	result.Duration = time.Since(start)
	result.AverageScore = averageScore(result.Documents)
	if err != nil {
		return result, err
	}

	p.logger.Info("Batch audit completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("invalid", result.Invalid),
		zap.Int64("fallbacks", result.Fallbacks),
		zap.Float64("average_score", result.AverageScore),
		zap.Duration("total_duration", result.Duration))

	return result, nil
}

func (p *Pipeline) processFile(ctx context.Context, filePath string, result *Result) error {
	format := DetectFileFormat(filePath)
	p.logger.Info("Detected file format", zap.String("format", string(format)))

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	switch format {
	case FormatCSV:
		if err := p.processCSV(ctx, file, result); err != nil {
			return fmt.Errorf("CSV processing failed: %w", err)
		}
	case FormatParquet:
		if err := p.processParquet(ctx, file, result); err != nil {
			return fmt.Errorf("Parquet processing failed: %w", err)
		}
	case FormatJSON:
		if err := p.processJSON(ctx, file, result); err != nil {
			return fmt.Errorf("JSON processing failed: %w", err)
		}
	default:
		data, err := io.ReadAll(file)
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}
		var docs []*Document
		doc := &Document{Name: filepath.Base(filePath), Text: string(data)}
		if p.validateDocument(doc, result) {
			docs = append(docs, doc)
		}
		return p.processBatches(ctx, sliceReader(docs, p.config.BatchSize), result)
	}
	return nil
}

// processDir analyzes every .txt and .md file directly under dir
func (p *Pipeline) processDir(ctx context.Context, dir string, result *Result) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	var docs []*Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			p.logger.Warn("Failed to read document", zap.String("name", entry.Name()), zap.Error(err))
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		doc := &Document{Name: entry.Name(), Text: string(data)}
		if p.validateDocument(doc, result) {
			docs = append(docs, doc)
		}
	}

	return p.processBatches(ctx, sliceReader(docs, p.config.BatchSize), result)
}

// processCSV expects a header with a text column and an optional name column
func (p *Pipeline) processCSV(ctx context.Context, r io.Reader, result *Result) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	textCol, nameCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "text", "document", "content":
			textCol = i
		case "name", "id", "document_name":
			nameCol = i
		}
	}
	if textCol < 0 {
		return fmt.Errorf("CSV header has no text column: %v", header)
	}
	p.logger.Info("CSV header detected", zap.Strings("columns", header))

	row := 0
	return p.processBatches(ctx, func() ([]*Document, error) {
		var batch []*Document
		for len(batch) < p.config.BatchSize {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				p.logger.Warn("Failed to read CSV record", zap.Error(err))
				result.Invalid++
				continue
			}
			row++
			if textCol >= len(record) {
				p.logger.Warn("CSV record missing text column", zap.Int("row", row))
				result.Invalid++
				continue
			}

			doc := &Document{Name: fmt.Sprintf("row-%d", row), Text: record[textCol]}
			if nameCol >= 0 && nameCol < len(record) && strings.TrimSpace(record[nameCol]) != "" {
				doc.Name = strings.TrimSpace(record[nameCol])
			}
			if p.validateDocument(doc, result) {
				batch = append(batch, doc)
			}
		}
		return batch, nil
	}, result)
}

func (p *Pipeline) processParquet(ctx context.Context, file *os.File, result *Result) error {
	reader := parquet.NewReader(file)
	defer reader.Close()

	return p.processBatches(ctx, func() ([]*Document, error) {
		var batch []*Document
		for len(batch) < p.config.BatchSize {
			var doc Document
			err := reader.Read(&doc)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read Parquet record: %w", err)
			}
			if p.validateDocument(&doc, result) {
				batch = append(batch, &doc)
			}
		}
		return batch, nil
	}, result)
}

// processJSON reads one JSON object per line
func (p *Pipeline) processJSON(ctx context.Context, r io.Reader, result *Result) error {
	decoder := json.NewDecoder(r)
	row := 0

	return p.processBatches(ctx, func() ([]*Document, error) {
		var batch []*Document
		for len(batch) < p.config.BatchSize {
			var doc Document
			err := decoder.Decode(&doc)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("failed to decode JSON record: %w", err)
			}
			row++
			if doc.Name == "" {
				doc.Name = fmt.Sprintf("row-%d", row)
			}
			if p.validateDocument(&doc, result) {
				batch = append(batch, &doc)
			}
		}
		return batch, nil
	}, result)
}

// processBatches drains readBatch until it returns an empty batch
func (p *Pipeline) processBatches(ctx context.Context, readBatch func() ([]*Document, error), result *Result) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := readBatch()
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		if err := p.processBatch(ctx, batch, result); err != nil {
			return err
		}

		if p.config.ProgressReport > 0 && result.TotalRecords%int64(p.config.ProgressReport) < int64(len(batch)) {
			p.logger.Info("Processing progress",
				zap.Int64("records_processed", result.TotalRecords),
				zap.Int64("records_ok", result.ProcessedOK),
				zap.Int64("records_failed", result.ProcessedFailed))
		}
	}
}

// processBatch analyzes a batch in parallel and keeps input order
func (p *Pipeline) processBatch(ctx context.Context, batch []*Document, result *Result) error {
	results := make([]DocumentResult, len(batch))
	records := make([]*store.Record, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.WorkerCount)

	for i, doc := range batch {
		g.Go(func() error {
			results[i], records[i] = p.analyzeDocument(gctx, doc)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var toStore []*store.Record
	for i, res := range results {
		result.TotalRecords++
		if res.Error != "" {
			result.ProcessedFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", res.Name, res.Error))
		} else {
			result.ProcessedOK++
			if res.FellBack {
				result.Fallbacks++
			}
			if records[i] != nil {
				toStore = append(toStore, records[i])
			}
		}
	}

	if p.recorder != nil && p.config.StoreResults && len(toStore) > 0 {
		inserted, err := p.recorder.BatchInsert(ctx, toStore)
		if err != nil {
			p.logger.Error("Failed to store batch results", zap.Error(err))
			result.Errors = append(result.Errors, err.Error())
			for i := range results {
				results[i].RecordID = ""
			}
		} else {
			result.Stored += inserted.Inserted
		}
	}

	result.Documents = append(result.Documents, results...)
	return nil
}

func (p *Pipeline) analyzeDocument(ctx context.Context, doc *Document) (DocumentResult, *store.Record) {
	res := DocumentResult{Name: doc.Name, DocumentHash: store.DocumentHash(doc.Text)}

	outcome, err := p.analyzer.Analyze(ctx, doc.Text)
	if err != nil {
		p.logger.Warn("Document analysis failed", zap.String("name", doc.Name), zap.Error(err))
		res.Error = err.Error()
		return res, nil
	}

	report := outcome.Report
	res.OverallScore = report.OverallScore
	res.Source = string(report.Source)
	res.FellBack = outcome.FellBack
	res.GapCount = int64(len(report.Gaps))
	res.CriticalGaps = int64(report.CriticalGaps())
	res.TaxonomyVersion = report.TaxonomyVersion

	if p.recorder == nil || !p.config.StoreResults {
		return res, nil
	}
	rec, err := store.NewRecord(doc.Name, doc.Text, report, outcome.FellBack)
	if err != nil {
		p.logger.Warn("Failed to build record", zap.String("name", doc.Name), zap.Error(err))
		return res, nil
	}
	res.RecordID = rec.ID
	return res, rec
}

// validateDocument rejects rows that cannot be meaningful policy documents
func (p *Pipeline) validateDocument(doc *Document, result *Result) bool {
	if !p.config.ValidateData {
		return true
	}
	if strings.TrimSpace(doc.Text) == "" {
		p.logger.Debug("Invalid record: empty text", zap.String("name", doc.Name))
		result.Invalid++
		return false
	}
	if p.config.MaxDocumentBytes > 0 && len(doc.Text) > p.config.MaxDocumentBytes {
		p.logger.Debug("Invalid record: text too long",
			zap.String("name", doc.Name),
			zap.Int("length", len(doc.Text)))
		result.Invalid++
		return false
	}
	return true
}

func sliceReader(docs []*Document, size int) func() ([]*Document, error) {
	return func() ([]*Document, error) {
		n := size
		if n > len(docs) {
			n = len(docs)
		}
		batch := docs[:n]
		docs = docs[n:]
		return batch, nil
	}
}

func averageScore(docs []DocumentResult) float64 {
	sum, n := 0.0, 0
	for _, d := range docs {
		if d.Error == "" {
			sum += d.OverallScore
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
