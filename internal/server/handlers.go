package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/gdpr-sentinel/internal/analysis"
	"github.com/raaihank/gdpr-sentinel/internal/compliance"
	"github.com/raaihank/gdpr-sentinel/internal/export"
	"github.com/raaihank/gdpr-sentinel/internal/logger"
	"github.com/raaihank/gdpr-sentinel/internal/store"
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
	"github.com/raaihank/gdpr-sentinel/internal/websocket"
	"go.uber.org/zap"
)

type analyzeRequest struct {
	Text         string `json:"text"`
	DocumentName string `json:"document_name"`
}

type analyzeResponse struct {
	ReportID       string             `json:"report_id,omitempty"`
	Strategy       string             `json:"strategy"`
	FellBack       bool               `json:"fell_back"`
	FallbackReason string             `json:"fallback_reason,omitempty"`
	DurationMS     float64            `json:"duration_ms"`
	Report         *compliance.Report `json:"report"`
}

type reportResponse struct {
	Record *store.Record      `json:"record"`
	Report *compliance.Report `json:"report"`
}

type taxonomyResponse struct {
	Fingerprint string              `json:"fingerprint"`
	Taxonomy    taxonomy.Definition `json:"taxonomy"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":              "gdpr-sentinel",
		"version":           Version,
		"strategy":          s.pipeline.Strategy(),
		"taxonomy_version":  s.taxonomy.Version(),
		"categories":        len(s.taxonomy.Categories()),
		"indicators":        s.taxonomy.IndicatorCount(),
		"privacy_enabled":   s.config.Privacy.Enabled,
		"privacy_detectors": s.detector.EnabledRules(),
		"store_enabled":     s.store != nil,
		"websocket_enabled": s.wsHub != nil,
	})
}

func (s *Server) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, taxonomyResponse{
		Fingerprint: s.taxonomy.Fingerprint(),
		Taxonomy:    s.taxonomy.Definition(),
	})
}

// handleAnalyze accepts a JSON body {"text", "document_name"} or a raw text body
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	req, status, err := s.readAnalyzeRequest(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	outcome, err := s.pipeline.Analyze(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, compliance.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error("Analysis failed", append(logger.DocumentFields(req.Text), zap.Error(err))...)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	resp := analyzeResponse{
		Strategy:       s.pipeline.Strategy(),
		FellBack:       outcome.FellBack,
		FallbackReason: outcome.FallbackReason,
		DurationMS:     float64(outcome.Duration.Microseconds()) / 1000,
		Report:         outcome.Report,
	}

	if s.store != nil {
		resp.ReportID = s.recordReport(r, req, outcome, log)
	}

	log.LogDocument("Document analyzed", req.Text,
		zap.String("report_id", resp.ReportID),
		zap.String("source", string(outcome.Report.Source)),
		zap.Float64("overall_score", outcome.Report.OverallScore),
		zap.Int("gaps", len(outcome.Report.Gaps)),
		zap.Bool("fell_back", outcome.FellBack),
	)
	s.publish(requestID, req.Text, resp)

	if format := r.URL.Query().Get("format"); format != "" && format != string(export.FormatJSON) {
		s.writePlan(w, outcome.Report, format)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) readAnalyzeRequest(w http.ResponseWriter, r *http.Request) (*analyzeRequest, int, error) {
	body := r.Body
	if s.config.Server.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, errors.New("document too large")
		}
		return nil, http.StatusBadRequest, errors.New("failed to read request body")
	}

	req := &analyzeRequest{DocumentName: r.URL.Query().Get("name")}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.Unmarshal(data, req); err != nil {
			return nil, http.StatusBadRequest, errors.New("invalid JSON body")
		}
	} else {
		req.Text = string(data)
	}
	return req, 0, nil
}

func (s *Server) recordReport(r *http.Request, req *analyzeRequest, outcome *analysis.Outcome, log *logger.Logger) string {
	rec, err := store.NewRecord(req.DocumentName, req.Text, outcome.Report, outcome.FellBack)
	if err == nil {
		err = s.store.Insert(r.Context(), rec)
	}
	if err != nil {
		log.Error("Failed to store report", zap.Error(err))
		return ""
	}
	return rec.ID
}

func (s *Server) publish(requestID, text string, resp analyzeResponse) {
	if s.wsHub == nil {
		return
	}
	if resp.FellBack {
		s.wsHub.PublishFallback(requestID, websocket.FallbackEvent{
			Strategy: resp.Strategy,
			Reason:   resp.FallbackReason,
		})
	}
	s.wsHub.PublishAnalysis(requestID, websocket.AnalysisEvent{
		ReportID:        resp.ReportID,
		DocumentLength:  len(text),
		DocumentSHA256:  store.DocumentHash(text),
		OverallScore:    resp.Report.OverallScore,
		GapCount:        len(resp.Report.Gaps),
		CriticalGaps:    resp.Report.CriticalGaps(),
		Source:          string(resp.Report.Source),
		FellBack:        resp.FellBack,
		TaxonomyVersion: resp.Report.TaxonomyVersion,
		DurationMS:      resp.DurationMS,
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	q := r.URL.Query()
	opts := store.ListOptions{
		Source:       q.Get("source"),
		DocumentHash: q.Get("document_hash"),
	}
	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	recs, err := s.store.List(r.Context(), opts)
	if err != nil {
		s.internalError(w, r, "Failed to list reports", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": recs,
		"count":   len(recs),
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rec, report, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{Record: rec, Report: report})
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	err := s.store.Delete(r.Context(), mux.Vars(r)["id"])
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "report not found")
	case err != nil:
		s.internalError(w, r, "Failed to delete report", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleActionPlan(w http.ResponseWriter, r *http.Request) {
	_, report, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	s.writePlan(w, report, r.URL.Query().Get("format"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{}
	if s.store != nil {
		st, err := s.store.GetStats(r.Context())
		if err != nil {
			s.internalError(w, r, "Failed to get report stats", err)
			return
		}
		stats["reports"] = st
	}
	if s.wsHub != nil {
		stats["websocket"] = s.wsHub.GetStats()
	}
	if s.limiter != nil {
		stats["rate_limited_clients"] = s.limiter.Clients()
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) (*store.Record, *compliance.Report, bool) {
	if !s.requireStore(w) {
		return nil, nil, false
	}

	rec, err := s.store.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return nil, nil, false
	}
	if err != nil {
		s.internalError(w, r, "Failed to get report", err)
		return nil, nil, false
	}

	report, err := rec.Report()
	if err != nil {
		s.internalError(w, r, "Stored report is unreadable", err)
		return nil, nil, false
	}
	return rec, report, true
}

func (s *Server) writePlan(w http.ResponseWriter, report *compliance.Report, rawFormat string) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan := export.BuildActionPlan(report, s.taxonomy)
	switch format {
	case export.FormatJSON:
		writeJSON(w, http.StatusOK, plan)
		return
	case export.FormatMarkdown:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	if err := export.WriteActionPlan(w, plan, format); err != nil {
		s.logger.Error("Failed to write action plan", zap.Error(err))
	}
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "report store is disabled")
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.WithRequestID(getRequestID(r.Context())).Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
