package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/raaihank/gdpr-sentinel/internal/mcptools"
	"github.com/spf13/cobra"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analyzer as MCP tools over stdio",
		Long: `Run an MCP server on stdin/stdout exposing analyze_policy and list_categories,
plus get_report when the store is enabled. Logs are written to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, log, services, err := setup(cmd, root, nil)
			if err != nil {
				return err
			}
			defer log.Sync()
			defer services.Close()

			var reports mcptools.ReportReader
			if services.Store != nil {
				reports = services.Store
			}

			s := mcptools.NewServer(version, services.Pipeline, services.Taxonomy, reports)
			return server.ServeStdio(s)
		},
	}
}
