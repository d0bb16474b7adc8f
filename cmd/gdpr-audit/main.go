// gdpr-audit scores documents for GDPR coverage from the command line.
//
// Usage:
//
//	gdpr-audit analyze policy.md --format markdown
//	gdpr-audit batch ./policies --summary scores.csv
//	gdpr-audit taxonomy --output yaml
//	gdpr-audit mcp
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "gdpr-audit",
		Short: "Score privacy documents for GDPR compliance gaps",
		Long: "gdpr-audit checks privacy policies and data processing documents against a GDPR\n" +
			"taxonomy and prints a ranked remediation plan for every missing requirement.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr (debug, info, warn, error)")

	root.AddCommand(newAnalyzeCmd(opts))
	root.AddCommand(newBatchCmd(opts))
	root.AddCommand(newTaxonomyCmd(opts))
	root.AddCommand(newMCPCmd(opts))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
