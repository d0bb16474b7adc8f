package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/raaihank/gdpr-sentinel/internal/compliance"
	"github.com/raaihank/gdpr-sentinel/internal/export"
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
)

// AnalyzeTool handles the analyze_policy MCP tool.
type AnalyzeTool struct {
	analyzer Analyzer
	tax      *taxonomy.Taxonomy
}

// NewAnalyzeTool creates an AnalyzeTool.
func NewAnalyzeTool(analyzer Analyzer, tax *taxonomy.Taxonomy) *AnalyzeTool {
	return &AnalyzeTool{analyzer: analyzer, tax: tax}
}

// Definition returns the MCP tool definition for analyze_policy.
func (t *AnalyzeTool) Definition() mcp.Tool {
	return mcp.NewTool("analyze_policy",
		mcp.WithDescription(
			"Score a privacy policy or data processing document for GDPR coverage. Returns the overall "+
				"score, per-category scores and a ranked remediation plan for every missing requirement.",
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Full document text"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: markdown (default), text or json"),
		),
	)
}

// Handle processes the analyze_policy tool call.
func (t *AnalyzeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}

	format, err := export.ParseFormat(req.GetString("format", string(export.FormatMarkdown)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome, err := t.analyzer.Analyze(ctx, text)
	if err != nil {
		if errors.Is(err, compliance.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	if format == export.FormatJSON {
		data, err := export.MarshalReport(outcome.Report)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode report: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}

	var b strings.Builder
	if outcome.FellBack {
		b.WriteString("Note: the language model was unavailable, this report comes from the rule-based engine.\n\n")
	}
	if err := export.WriteActionPlan(&b, export.BuildActionPlan(outcome.Report, t.tax), format); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to render action plan: %v", err)), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}
