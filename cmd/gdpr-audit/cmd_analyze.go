package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/raaihank/gdpr-sentinel/internal/config"
	"github.com/raaihank/gdpr-sentinel/internal/export"
	"github.com/raaihank/gdpr-sentinel/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type analyzeOptions struct {
	format    string
	output    string
	strategy  string
	name      string
	store     bool
	failUnder float64
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Score one document and print its action plan",
		Long: `Analyze a single document and print the remediation plan.

Usage:
  gdpr-audit analyze policy.md                   # text action plan
  gdpr-audit analyze policy.md --format json     # full report
  cat policy.txt | gdpr-audit analyze -          # read from stdin
  gdpr-audit analyze policy.md --fail-under 70   # exit 1 below a score`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", "text", "Output format: text, markdown or json")
	f.StringVarP(&opts.output, "output", "o", "", "Write output to this file instead of stdout")
	f.StringVar(&opts.strategy, "strategy", "", "Override analyzer strategy: auto, rule_based or llm")
	f.StringVar(&opts.name, "name", "", "Document name recorded with the report (default: file name)")
	f.BoolVar(&opts.store, "store", false, "Persist the report in the configured store")
	f.Float64Var(&opts.failUnder, "fail-under", 0, "Exit with an error when the overall score is below this value")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions, args []string) error {
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	path := "-"
	if len(args) > 0 {
		path = args[0]
	}
	text, err := readDocument(cmd, path)
	if err != nil {
		return err
	}

	name := opts.name
	if name == "" && path != "-" {
		name = filepath.Base(path)
	}

	_, log, services, err := setup(cmd, root, func(cfg *config.Config) {
		if opts.strategy != "" {
			cfg.Analyzer.Strategy = opts.strategy
		}
		if opts.store {
			cfg.Store.Enabled = true
		}
	})
	if err != nil {
		return err
	}
	defer log.Sync()
	defer services.Close()

	outcome, err := services.Pipeline.Analyze(cmd.Context(), text)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", path, err)
	}
	if outcome.FellBack {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s analysis failed, report produced by the rule-based engine\n", services.Pipeline.Strategy())
	}

	if services.Store != nil {
		rec, err := store.NewRecord(name, text, outcome.Report, outcome.FellBack)
		if err == nil {
			err = services.Store.Insert(cmd.Context(), rec)
		}
		if err != nil {
			return fmt.Errorf("store report: %w", err)
		}
		log.Info("Report stored", zap.String("id", rec.ID))
		fmt.Fprintf(cmd.ErrOrStderr(), "report id: %s\n", rec.ID)
	}

	out := cmd.OutOrStdout()
	if opts.output != "" {
		file, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		out = file
	}

	if format == export.FormatJSON {
		data, err := export.MarshalReport(outcome.Report)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, string(data)); err != nil {
			return err
		}
	} else if err := export.WriteActionPlan(out, export.BuildActionPlan(outcome.Report, services.Taxonomy), format); err != nil {
		return err
	}

	if opts.failUnder > 0 && outcome.Report.OverallScore < opts.failUnder {
		return fmt.Errorf("overall score %.1f is below the required %.1f", outcome.Report.OverallScore, opts.failUnder)
	}
	return nil
}

func readDocument(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(data), nil
}
