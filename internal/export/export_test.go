package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/raaihank/gdpr-sentinel/internal/compliance"
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
)

func analyze(t *testing.T, text string) (*compliance.Report, *taxonomy.Taxonomy) {
	t.Helper()
	tax := taxonomy.MustDefault()
	r, err := compliance.Analyze(text, tax)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	return r, tax
}

func TestReportRoundTrip(t *testing.T) {
	for name, doc := range map[string]string{
		"Empty":   "",
		"Partial": "We rely on your explicit consent and encryption. Contact our data protection officer.",
	} {
		t.Run(name, func(t *testing.T) {
			report, _ := analyze(t, doc)

			data, err := MarshalReport(report)
			if err != nil {
				t.Fatalf("MarshalReport failed: %v", err)
			}
			decoded, err := UnmarshalReport(data)
			if err != nil {
				t.Fatalf("UnmarshalReport failed: %v", err)
			}
			if diff := cmp.Diff(report, decoded); diff != "" {
				t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	cases := map[string]string{
		"NotJSON":      "{not json",
		"UnknownField": `{"overall_score": 1, "surprise": true}`,
		"BadSeverity":  `{"gaps": [{"id": "x", "severity": "catastrophic"}]}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := UnmarshalReport([]byte(data)); !errors.Is(err, ErrMalformedReport) {
				t.Errorf("Expected ErrMalformedReport, got %v", err)
			}
		})
	}
}

func TestActionPlan(t *testing.T) {
	report, tax := analyze(t, "")
	plan := BuildActionPlan(report, tax)

	if len(plan.Items) != len(report.Recommendations) {
		t.Fatalf("Expected %d items, got %d", len(report.Recommendations), len(plan.Items))
	}
	for i, item := range plan.Items {
		if item.Rank != i+1 {
			t.Errorf("Item %d has rank %d", i, item.Rank)
		}
	}
	if plan.Items[0].Severity != taxonomy.Critical {
		t.Errorf("Expected first action to be critical, got %s", plan.Items[0].Severity)
	}
	if len(plan.KeyRequirements) == 0 || plan.Advisory == "" {
		t.Error("Expected advisory and key requirements from the taxonomy")
	}

	t.Run("Text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteActionPlan(&buf, plan, FormatText); err != nil {
			t.Fatalf("WriteActionPlan failed: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "Overall score: 0.0") {
			t.Errorf("Missing score line:\n%s", out)
		}
		if !strings.Contains(out, "1. [CRITICAL]") {
			t.Errorf("Missing first ranked action:\n%s", out)
		}
		if !strings.Contains(out, "Key requirements:") {
			t.Errorf("Missing key requirements:\n%s", out)
		}
	})

	t.Run("Markdown", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteActionPlan(&buf, plan, FormatMarkdown); err != nil {
			t.Fatalf("WriteActionPlan failed: %v", err)
		}
		if !strings.HasPrefix(buf.String(), "# GDPR Compliance Action Plan") {
			t.Errorf("Unexpected markdown header:\n%s", buf.String())
		}
		if !strings.Contains(buf.String(), "| 1 | critical |") {
			t.Errorf("Missing first table row:\n%s", buf.String())
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatText, "MD": FormatMarkdown, "json": FormatJSON, "txt": FormatText}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}
