package main

import (
	"fmt"
	"os"

	"github.com/raaihank/gdpr-sentinel/internal/batch"
	"github.com/raaihank/gdpr-sentinel/internal/config"
	"github.com/spf13/cobra"
)

type batchOptions struct {
	workers   int
	batchSize int
	summary   string
	strategy  string
	store     bool
}

func newBatchCmd(root *rootOptions) *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch <path>",
		Short: "Score a corpus of documents",
		Long: `Score every document in a corpus.

The path is a directory of .txt/.md files, or a CSV, JSON lines or Parquet file
with a text column. The summary format follows its extension (.csv, .jsonl, .parquet).

Usage:
  gdpr-audit batch ./policies
  gdpr-audit batch corpus.parquet --workers 8 --summary scores.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, root, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.workers, "workers", 0, "Parallel analyses (default: batch.worker_count)")
	f.IntVar(&opts.batchSize, "batch-size", 0, "Documents per batch (default: batch.batch_size)")
	f.StringVar(&opts.summary, "summary", "", "Write per-document scores to this file")
	f.StringVar(&opts.strategy, "strategy", "", "Override analyzer strategy: auto, rule_based or llm")
	f.BoolVar(&opts.store, "store", false, "Persist every report in the configured store")
	return cmd
}

func runBatch(cmd *cobra.Command, root *rootOptions, opts *batchOptions, path string) error {
	summaryFormat := batch.DetectFileFormat(opts.summary)
	if opts.summary != "" && summaryFormat == batch.FormatText {
		return fmt.Errorf("%w: %s", batch.ErrUnsupportedOutput, opts.summary)
	}

	cfg, log, services, err := setup(cmd, root, func(cfg *config.Config) {
		if opts.strategy != "" {
			cfg.Analyzer.Strategy = opts.strategy
		}
		if opts.store {
			cfg.Store.Enabled = true
		}
		if opts.workers > 0 {
			cfg.Batch.WorkerCount = opts.workers
		}
		if opts.batchSize > 0 {
			cfg.Batch.BatchSize = opts.batchSize
		}
	})
	if err != nil {
		return err
	}
	defer log.Sync()
	defer services.Close()

	var recorder batch.Recorder
	if services.Store != nil && cfg.Batch.StoreResults {
		recorder = services.Store
	}

	pipeline := batch.NewPipeline(services.Pipeline, recorder, &cfg.Batch, log.WithComponent("batch").Logger)
	result, err := pipeline.ProcessPath(cmd.Context(), path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Documents:     %d\n", result.TotalRecords)
	fmt.Fprintf(out, "Analyzed:      %d\n", result.ProcessedOK)
	fmt.Fprintf(out, "Failed:        %d\n", result.ProcessedFailed)
	fmt.Fprintf(out, "Invalid:       %d\n", result.Invalid)
	fmt.Fprintf(out, "Fallbacks:     %d\n", result.Fallbacks)
	fmt.Fprintf(out, "Stored:        %d\n", result.Stored)
	fmt.Fprintf(out, "Average score: %.1f\n", result.AverageScore)
	fmt.Fprintf(out, "Duration:      %s\n", result.Duration)

	if opts.summary == "" {
		return nil
	}
	file, err := os.Create(opts.summary)
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	if err := batch.WriteSummary(file, result.Documents, summaryFormat); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
