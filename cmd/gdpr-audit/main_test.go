package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raaihank/gdpr-sentinel/internal/compliance"
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
	"gopkg.in/yaml.v3"
)

const policy = "We rely on your explicit consent and you may withdraw consent at any time. " +
	"Personal data is encrypted at rest."

// run executes the CLI in-process and returns stdout
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnalyze_TextPlan(t *testing.T) {
	path := writeFile(t, t.TempDir(), "policy.txt", policy)

	out, err := run(t, "", "analyze", path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "GDPR Compliance Action Plan") || !strings.Contains(out, "Overall score:") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestAnalyze_JSONFromStdin(t *testing.T) {
	out, err := run(t, policy, "analyze", "-", "--format", "json")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var report compliance.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("expected JSON report: %v\n%s", err, out)
	}
	if report.Source != compliance.SourceRuleBased {
		t.Errorf("expected rule_based source, got %s", report.Source)
	}
	if report.OverallScore <= 0 {
		t.Errorf("expected a positive score, got %.1f", report.OverallScore)
	}
}

func TestAnalyze_OutputFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "policy.md", policy)
	outPath := filepath.Join(dir, "plan.md")

	out, err := run(t, "", "analyze", path, "--format", "markdown", "-o", outPath)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if out != "" {
		t.Errorf("expected nothing on stdout, got %q", out)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("plan not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "# GDPR Compliance Action Plan") {
		t.Errorf("unexpected plan:\n%s", data)
	}
}

func TestAnalyze_FailUnder(t *testing.T) {
	_, err := run(t, "", "analyze", "-", "--fail-under", "50")
	if err == nil || !strings.Contains(err.Error(), "below the required 50.0") {
		t.Fatalf("expected a score gate error, got %v", err)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown format", []string{"analyze", "-", "--format", "pdf"}, "unknown export format"},
		{"missing file", []string{"analyze", filepath.Join(t.TempDir(), "nope.txt")}, "read document"},
		{"bad strategy", []string{"analyze", "-", "--strategy", "magic"}, "unknown analysis strategy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestBatch_DirectoryWithCSVSummary(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "corpus")
	if err := os.Mkdir(corpus, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, corpus, "a.txt", policy)
	writeFile(t, corpus, "b.md", "We never mention anything relevant.")
	summary := filepath.Join(dir, "scores.csv")

	out, err := run(t, "", "batch", corpus, "--workers", "2", "--summary", summary)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if !strings.Contains(out, "Documents:     2") || !strings.Contains(out, "Analyzed:      2") {
		t.Errorf("unexpected batch output:\n%s", out)
	}

	file, err := os.Open(summary)
	if err != nil {
		t.Fatalf("summary not written: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv summary: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("expected header and 2 rows, got %d rows", len(rows))
	}
}

func TestBatch_UnsupportedSummary(t *testing.T) {
	_, err := run(t, "", "batch", t.TempDir(), "--summary", "scores.txt")
	if err == nil || !strings.Contains(err.Error(), "unsupported output format") {
		t.Fatalf("expected unsupported output error, got %v", err)
	}
}

func TestTaxonomy_Outputs(t *testing.T) {
	out, err := run(t, "", "taxonomy")
	if err != nil {
		t.Fatalf("taxonomy: %v", err)
	}
	for _, id := range []string{"consent", "data_breach", "third_party"} {
		if !strings.Contains(out, id) {
			t.Errorf("table is missing %s:\n%s", id, out)
		}
	}

	out, err = run(t, "", "taxonomy", "--output", "yaml")
	if err != nil {
		t.Fatalf("taxonomy yaml: %v", err)
	}
	var def taxonomy.Definition
	if err := yaml.Unmarshal([]byte(out), &def); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if _, err := taxonomy.New(def); err != nil {
		t.Errorf("exported taxonomy does not round trip: %v", err)
	}

	if _, err := run(t, "", "taxonomy", "--output", "xml"); err == nil {
		t.Error("expected unknown output to fail")
	}
}

func TestTaxonomy_ValidateFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.yaml", "version: x\ncategories: []\n")
	if _, err := run(t, "", "taxonomy", "--file", path); err == nil {
		t.Error("expected an invalid taxonomy file to fail")
	}
}
