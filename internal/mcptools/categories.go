package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
)

// CategoriesTool handles the list_categories MCP tool.
type CategoriesTool struct {
	tax *taxonomy.Taxonomy
}

// NewCategoriesTool creates a CategoriesTool.
func NewCategoriesTool(tax *taxonomy.Taxonomy) *CategoriesTool {
	return &CategoriesTool{tax: tax}
}

// Definition returns the MCP tool definition for list_categories.
func (t *CategoriesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_categories",
		mcp.WithDescription("List the GDPR categories and indicators documents are scored against."),
		mcp.WithString("category",
			mcp.Description("Category id to show indicators and patterns for; omit to list all categories"),
		),
	)
}

// Handle processes the list_categories tool call.
func (t *CategoriesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder

	if id := req.GetString("category", ""); id != "" {
		c, ok := t.tax.Category(id)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown category %q", id)), nil
		}
		fmt.Fprintf(&b, "## %s (%s)\n\nWeight: %.2f\n\n", c.Name, c.ID, c.Weight)
		for _, ind := range c.Indicators {
			fmt.Fprintf(&b, "- **%s** [%s]: %s\n  patterns: %s\n", ind.ID, ind.Criticality, ind.Concept, strings.Join(ind.Patterns, ", "))
		}
		return mcp.NewToolResultText(b.String()), nil
	}

	fmt.Fprintf(&b, "## GDPR taxonomy %s\n\n", t.tax.Version())
	for _, c := range t.tax.Categories() {
		fmt.Fprintf(&b, "- **%s** (%s): weight %.2f, %d indicators\n", c.Name, c.ID, c.Weight, len(c.Indicators))
	}
	return mcp.NewToolResultText(b.String()), nil
}
