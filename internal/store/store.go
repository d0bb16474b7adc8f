// Package store persists analysis reports in PostgreSQL or SQLite.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/raaihank/gdpr-sentinel/internal/compliance"
	"github.com/raaihank/gdpr-sentinel/internal/export"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no record has the requested id
var ErrNotFound = errors.New("report not found")

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const schema = `
CREATE TABLE IF NOT EXISTS analysis_reports (
	id               TEXT PRIMARY KEY,
	document_name    TEXT NOT NULL,
	document_hash    TEXT NOT NULL,
	document_length  INTEGER NOT NULL,
	source           TEXT NOT NULL,
	fell_back        BOOLEAN NOT NULL,
	overall_score    DOUBLE PRECISION NOT NULL,
	gap_count        INTEGER NOT NULL,
	critical_gaps    INTEGER NOT NULL,
	taxonomy_version TEXT NOT NULL,
	report_json      TEXT NOT NULL,
	created_at       BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_reports_hash ON analysis_reports (document_hash);
CREATE INDEX IF NOT EXISTS idx_analysis_reports_created ON analysis_reports (created_at);
`

const columns = `id, document_name, document_hash, document_length, source, fell_back,
	overall_score, gap_count, critical_gaps, taxonomy_version, report_json, created_at`

const insertQuery = `
	INSERT INTO analysis_reports (` + columns + `)
	VALUES (:id, :document_name, :document_hash, :document_length, :source, :fell_back,
		:overall_score, :gap_count, :critical_gaps, :taxonomy_version, :report_json, :created_at)`

// Store handles report persistence
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore connects, configures the pool and creates the schema
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	driver := config.Driver
	if driver == "" {
		driver = "postgres"
	}
	if driver != "postgres" && driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sqlx.Connect(driver, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" && strings.Contains(config.DatabaseURL, ":memory:") {
		// an in-memory database lives only as long as its single connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if config.MaxOpenConns > 0 {
			db.SetMaxOpenConns(config.MaxOpenConns)
		}
		if config.MaxIdleConns > 0 {
			db.SetMaxIdleConns(config.MaxIdleConns)
		}
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	store := &Store{db: db, logger: logger}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Report store initialized successfully",
		zap.String("driver", driver),
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)))

	return store, nil
}

func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// NewRecord captures a report for storage. Only a hash of the document is kept.
func NewRecord(documentName, text string, report *compliance.Report, fellBack bool) (*Record, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	return &Record{
		ID:              uuid.NewString(),
		DocumentName:    documentName,
		DocumentHash:    DocumentHash(text),
		DocumentLength:  len(text),
		Source:          string(report.Source),
		FellBack:        fellBack,
		OverallScore:    report.OverallScore,
		GapCount:        len(report.Gaps),
		CriticalGaps:    report.CriticalGaps(),
		TaxonomyVersion: report.TaxonomyVersion,
		ReportJSON:      string(data),
		CreatedAt:       time.Now().UnixMilli(),
	}, nil
}

// DocumentHash is the hex SHA-256 of a document
func DocumentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Report decodes the stored report
func (r *Record) Report() (*compliance.Report, error) {
	return export.UnmarshalReport([]byte(r.ReportJSON))
}

// Insert stores a single record
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	if _, err := s.db.NamedExecContext(ctx, insertQuery, rec); err != nil {
		s.logger.Error("Failed to insert report", zap.Error(err), zap.String("id", rec.ID))
		return fmt.Errorf("failed to insert report: %w", err)
	}

	s.logger.Debug("Report inserted successfully",
		zap.String("id", rec.ID),
		zap.Float64("overall_score", rec.OverallScore))
	return nil
}

// BatchInsert stores records in one transaction
func (s *Store) BatchInsert(ctx context.Context, recs []*Record) (*BatchInsertResult, error) {
	result := &BatchInsertResult{}
	if len(recs) == 0 {
		return result, nil
	}
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareNamedContext(ctx, insertQuery)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, rec); err != nil {
			tx.Rollback()
			result.Failed = int64(len(recs))
			s.logger.Error("Batch insert failed", zap.Error(err))
			return result, fmt.Errorf("batch insert failed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		result.Failed = int64(len(recs))
		return result, fmt.Errorf("failed to commit batch: %w", err)
	}

	result.Inserted = int64(len(recs))
	result.Duration = time.Since(start)

	s.logger.Info("Batch insert completed",
		zap.Int64("inserted", result.Inserted),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// Get loads a record by id
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	query := s.db.Rebind("SELECT " + columns + " FROM analysis_reports WHERE id = ?")
	if err := s.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &rec, nil
}

// List returns records newest first
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	if opts.Limit <= 0 || opts.Limit > 500 {
		opts.Limit = 50
	}

	var where []string
	var args []interface{}
	if opts.Source != "" {
		where = append(where, "source = ?")
		args = append(args, opts.Source)
	}
	if opts.DocumentHash != "" {
		where = append(where, "document_hash = ?")
		args = append(args, opts.DocumentHash)
	}

	query := "SELECT " + columns + " FROM analysis_reports"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	recs := []*Record{}
	if err := s.db.SelectContext(ctx, &recs, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return recs, nil
}

// Delete removes a record
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM analysis_reports WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetStats returns database statistics
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	query := s.db.Rebind(`
		SELECT
			COUNT(*) AS total,
			COALESCE(AVG(overall_score), 0) AS avg_score,
			COUNT(CASE WHEN source = ? THEN 1 END) AS llm,
			COUNT(CASE WHEN fell_back THEN 1 END) AS fallbacks
		FROM analysis_reports`)

	var stats Stats
	if err := s.db.GetContext(ctx, &stats, query, string(compliance.SourceLLM)); err != nil {
		return nil, fmt.Errorf("failed to get report stats: %w", err)
	}
	return &stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL masks the password in a database URL for logging
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	if colon <= strings.Index(userPart, "://")+2 {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
