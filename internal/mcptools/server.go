// Package mcptools exposes the compliance analyzer as MCP tools so agents can
// score policy drafts over stdio.
//
// Each tool follows the same shape:
// - a struct holding its dependencies, built by a constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the call and returns a result
//
// Problems with the caller's input are tool errors, never Go errors.
package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"github.com/raaihank/gdpr-sentinel/internal/analysis"
	"github.com/raaihank/gdpr-sentinel/internal/store"
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
)

// Analyzer produces report outcomes
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*analysis.Outcome, error)
}

// ReportReader looks up stored reports
type ReportReader interface {
	Get(ctx context.Context, id string) (*store.Record, error)
}

// NewServer registers the tools on a new MCP server. reports may be nil, in
// which case get_report is not offered.
func NewServer(version string, analyzer Analyzer, tax *taxonomy.Taxonomy, reports ReportReader) *server.MCPServer {
	s := server.NewMCPServer(
		"gdpr-sentinel",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Score privacy policies and data processing documents against GDPR "+
			"requirements. Use list_categories to see what is checked, then analyze_policy on the document text."),
	)

	analyzeTool := NewAnalyzeTool(analyzer, tax)
	s.AddTool(analyzeTool.Definition(), analyzeTool.Handle)

	categoriesTool := NewCategoriesTool(tax)
	s.AddTool(categoriesTool.Definition(), categoriesTool.Handle)

	if reports != nil {
		reportTool := NewReportTool(reports, tax)
		s.AddTool(reportTool.Definition(), reportTool.Handle)
	}

	return s
}
