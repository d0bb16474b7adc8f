package batch

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/segmentio/parquet-go"
)

// ErrUnsupportedOutput is returned for an unknown summary format
var ErrUnsupportedOutput = errors.New("unsupported output format")

var summaryHeader = []string{
	"name", "document_hash", "overall_score", "source", "fell_back",
	"gap_count", "critical_gaps", "taxonomy_version", "record_id", "error",
}

// WriteSummary writes per-document results as csv, jsonl or parquet
func WriteSummary(w io.Writer, docs []DocumentResult, format FileFormat) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, docs)
	case FormatJSON:
		enc := json.NewEncoder(w)
		for _, d := range docs {
			if err := enc.Encode(d); err != nil {
				return fmt.Errorf("failed to write JSON summary: %w", err)
			}
		}
		return nil
	case FormatParquet:
		writer := parquet.NewGenericWriter[DocumentResult](w)
		if _, err := writer.Write(docs); err != nil {
			return fmt.Errorf("failed to write Parquet summary: %w", err)
		}
		return writer.Close()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedOutput, format)
	}
}

func writeCSV(w io.Writer, docs []DocumentResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for _, d := range docs {
		row := []string{
			d.Name,
			d.DocumentHash,
			strconv.FormatFloat(d.OverallScore, 'f', 1, 64),
			d.Source,
			strconv.FormatBool(d.FellBack),
			strconv.FormatInt(d.GapCount, 10),
			strconv.FormatInt(d.CriticalGaps, 10),
			d.TaxonomyVersion,
			d.RecordID,
			d.Error,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
