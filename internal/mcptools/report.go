package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/raaihank/gdpr-sentinel/internal/export"
	"github.com/raaihank/gdpr-sentinel/internal/store"
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
)

// ReportTool handles the get_report MCP tool.
type ReportTool struct {
	reports ReportReader
	tax     *taxonomy.Taxonomy
}

// NewReportTool creates a ReportTool.
func NewReportTool(reports ReportReader, tax *taxonomy.Taxonomy) *ReportTool {
	return &ReportTool{reports: reports, tax: tax}
}

// Definition returns the MCP tool definition for get_report.
func (t *ReportTool) Definition() mcp.Tool {
	return mcp.NewTool("get_report",
		mcp.WithDescription("Fetch the action plan of a previously stored analysis by its report id."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Report id returned by the HTTP API or the batch audit"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: markdown (default), text or json"),
		),
	)
}

// Handle processes the get_report tool call.
func (t *ReportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	format, err := export.ParseFormat(req.GetString("format", string(export.FormatMarkdown)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := t.reports.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("report %s not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load report: %v", err)), nil
	}
	report, err := rec.Report()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stored report is unreadable: %v", err)), nil
	}

	var b strings.Builder
	if err := export.WriteActionPlan(&b, export.BuildActionPlan(report, t.tax), format); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to render action plan: %v", err)), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}
