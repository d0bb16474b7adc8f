package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/raaihank/gdpr-sentinel/internal/analysis"
	"github.com/raaihank/gdpr-sentinel/internal/compliance"
	"github.com/raaihank/gdpr-sentinel/internal/store"
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
	"go.uber.org/zap"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

func ruleAnalyzer(tax *taxonomy.Taxonomy) Analyzer {
	return analysis.NewPipeline(nil, analysis.NewRuleBased(compliance.NewEngine(tax, nil)), 0, nil)
}

type stubAnalyzer struct {
	outcome *analysis.Outcome
	err     error
}

func (s stubAnalyzer) Analyze(ctx context.Context, text string) (*analysis.Outcome, error) {
	return s.outcome, s.err
}

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func mustNotError(t *testing.T, r *mcp.CallToolResult, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	if r.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(r))
	}
}

func mustBeToolError(t *testing.T, r *mcp.CallToolResult, err error, wantSubstr string) {
	t.Helper()
	if err != nil {
		t.Fatalf("expected tool error, got Go error: %v", err)
	}
	if !r.IsError {
		t.Fatalf("expected tool error, got success: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), wantSubstr) {
		t.Errorf("tool error %q does not contain %q", resultText(r), wantSubstr)
	}
}

// ─── AnalyzeTool Tests ───────────────────────────────────────────────────────

func TestAnalyzeTool_Definition(t *testing.T) {
	tax := taxonomy.MustDefault()
	def := NewAnalyzeTool(ruleAnalyzer(tax), tax).Definition()

	if def.Name != "analyze_policy" {
		t.Errorf("tool name = %q, want %q", def.Name, "analyze_policy")
	}
	if _, ok := def.InputSchema.Properties["text"]; !ok {
		t.Error("missing 'text' parameter")
	}
	found := false
	for _, r := range def.InputSchema.Required {
		if r == "text" {
			found = true
		}
	}
	if !found {
		t.Error("'text' should be required")
	}
}

func TestAnalyzeTool_Markdown(t *testing.T) {
	tax := taxonomy.MustDefault()
	tool := NewAnalyzeTool(ruleAnalyzer(tax), tax)

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"text": "We only process data with your explicit consent. You can withdraw consent at any time.",
	}))
	mustNotError(t, result, err)

	text := resultText(result)
	if !strings.Contains(text, "# GDPR Compliance Action Plan") {
		t.Errorf("expected markdown action plan, got:\n%s", text)
	}
	if strings.Contains(text, "language model was unavailable") {
		t.Error("rule-based only analysis must not carry a fallback note")
	}
}

func TestAnalyzeTool_JSON(t *testing.T) {
	tax := taxonomy.MustDefault()
	tool := NewAnalyzeTool(ruleAnalyzer(tax), tax)

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"text":   "explicit consent",
		"format": "json",
	}))
	mustNotError(t, result, err)

	var report compliance.Report
	if err := json.Unmarshal([]byte(resultText(result)), &report); err != nil {
		t.Fatalf("expected a JSON report: %v", err)
	}
	if report.OverallScore <= 0 {
		t.Errorf("expected a positive score, got %.1f", report.OverallScore)
	}
	if report.TaxonomyVersion != tax.Version() {
		t.Errorf("unexpected taxonomy version %q", report.TaxonomyVersion)
	}
}

func TestAnalyzeTool_FallbackNote(t *testing.T) {
	tax := taxonomy.MustDefault()
	report, err := compliance.Analyze("", tax)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	tool := NewAnalyzeTool(stubAnalyzer{outcome: &analysis.Outcome{Report: report, FellBack: true}}, tax)

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"text":   "anything",
		"format": "text",
	}))
	mustNotError(t, result, err)

	if !strings.HasPrefix(resultText(result), "Note: the language model was unavailable") {
		t.Errorf("expected fallback note, got:\n%s", resultText(result))
	}
}

func TestAnalyzeTool_Errors(t *testing.T) {
	tax := taxonomy.MustDefault()

	tests := []struct {
		name     string
		analyzer Analyzer
		args     map[string]interface{}
		want     string
	}{
		{"missing text", ruleAnalyzer(tax), map[string]interface{}{}, "'text' is required"},
		{"blank text", ruleAnalyzer(tax), map[string]interface{}{"text": "  \n"}, "'text' is required"},
		{"bad format", ruleAnalyzer(tax), map[string]interface{}{"text": "consent", "format": "pdf"}, "unknown export format"},
		{"invalid input", ruleAnalyzer(tax), map[string]interface{}{"text": "consent\x00"}, "invalid input"},
		{"analysis failure", stubAnalyzer{err: errors.New("disk on fire")}, map[string]interface{}{"text": "consent"}, "analysis failed: disk on fire"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewAnalyzeTool(tt.analyzer, tax).Handle(context.Background(), makeReq(tt.args))
			mustBeToolError(t, result, err, tt.want)
		})
	}
}

// ─── CategoriesTool Tests ────────────────────────────────────────────────────

func TestCategoriesTool_ListAll(t *testing.T) {
	tax := taxonomy.MustDefault()
	result, err := NewCategoriesTool(tax).Handle(context.Background(), makeReq(nil))
	mustNotError(t, result, err)

	text := resultText(result)
	for _, c := range tax.Categories() {
		if !strings.Contains(text, "("+c.ID+")") {
			t.Errorf("listing is missing category %s", c.ID)
		}
	}
}

func TestCategoriesTool_Detail(t *testing.T) {
	tax := taxonomy.MustDefault()
	tool := NewCategoriesTool(tax)

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"category": "consent"}))
	mustNotError(t, result, err)
	if !strings.Contains(resultText(result), "consent.explicit") {
		t.Errorf("expected indicator details, got:\n%s", resultText(result))
	}

	result, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"category": "nope"}))
	mustBeToolError(t, result, err, `unknown category "nope"`)
}

// ─── ReportTool Tests ────────────────────────────────────────────────────────

func TestReportTool(t *testing.T) {
	tax := taxonomy.MustDefault()
	st, err := store.NewStore(&store.Config{Enabled: true, Driver: "sqlite", DatabaseURL: ":memory:"}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	text := "explicit consent"
	report, err := compliance.Analyze(text, tax)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	rec, err := store.NewRecord("policy.txt", text, report, false)
	if err != nil {
		t.Fatalf("failed to build record: %v", err)
	}
	if err := st.Insert(context.Background(), rec); err != nil {
		t.Fatalf("failed to insert record: %v", err)
	}

	tool := NewReportTool(st, tax)

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": rec.ID, "format": "text"}))
	mustNotError(t, result, err)
	if !strings.Contains(resultText(result), "Overall score:") {
		t.Errorf("expected text action plan, got:\n%s", resultText(result))
	}

	result, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": "missing"}))
	mustBeToolError(t, result, err, "not found")

	result, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	mustBeToolError(t, result, err, "'id' is required")
}

func TestNewServer(t *testing.T) {
	tax := taxonomy.MustDefault()
	if s := NewServer("test", ruleAnalyzer(tax), tax, nil); s == nil {
		t.Fatal("expected a server")
	}
}
