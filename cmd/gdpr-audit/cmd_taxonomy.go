package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/raaihank/gdpr-sentinel/internal/app"
	"github.com/raaihank/gdpr-sentinel/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type taxonomyOptions struct {
	output string
	file   string
}

func newTaxonomyCmd(root *rootOptions) *cobra.Command {
	opts := &taxonomyOptions{}

	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Show or validate the GDPR taxonomy",
		Long: `Print the taxonomy documents are scored against, or validate a taxonomy file.

Usage:
  gdpr-audit taxonomy                          # table of categories
  gdpr-audit taxonomy --output yaml > mine.yaml
  gdpr-audit taxonomy --file mine.yaml         # validate a custom taxonomy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTaxonomy(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "table", "Output: table, yaml or json")
	f.StringVar(&opts.file, "file", "", "Taxonomy file to load (default: taxonomy.path from config, else built-in)")
	return cmd
}

func runTaxonomy(cmd *cobra.Command, root *rootOptions, opts *taxonomyOptions) error {
	path := opts.file
	if path == "" {
		cfg, err := config.Load(root.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = cfg.Taxonomy.Path
	}

	tax, err := app.LoadTaxonomy(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch opts.output {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(tax.Definition()); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		data, err := json.MarshalIndent(tax.Definition(), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case "table":
		fmt.Fprintf(out, "Taxonomy %s (fingerprint %s)\n\n", tax.Version(), tax.Fingerprint()[:12])
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tWEIGHT\tINDICATORS")
		for _, c := range tax.Categories() {
			fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\n", c.ID, c.Name, c.Weight, len(c.Indicators))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output %q (must be table, yaml or json)", opts.output)
	}
}
