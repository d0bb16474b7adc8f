// Package export serializes reports and renders remediation action plans.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/raaihank/gdpr-sentinel/internal/compliance"
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
)

// ErrMalformedReport is returned when a serialized report cannot be decoded
var ErrMalformedReport = errors.New("malformed report")

// Format selects the action plan rendering
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat maps a user supplied name to a Format
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText, "txt":
		return FormatText, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// MarshalReport encodes a report as indented JSON
func MarshalReport(r *compliance.Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// UnmarshalReport decodes a report, rejecting unknown fields
func UnmarshalReport(data []byte) (*compliance.Report, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var r compliance.Report
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if r.CategoryScores == nil {
		r.CategoryScores = []compliance.CategoryScore{}
	}
	if r.Gaps == nil {
		r.Gaps = []compliance.Gap{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []compliance.Recommendation{}
	}
	if r.Matches == nil {
		r.Matches = []compliance.MatchResult{}
	}
	return &r, nil
}

// ActionItem is one ranked remediation step in a plan
type ActionItem struct {
	Rank        int                  `json:"rank"`
	GapID       string               `json:"gap_id"`
	Category    string               `json:"category"`
	Severity    taxonomy.Criticality `json:"severity"`
	Description string               `json:"description"`
	Action      string               `json:"action"`
}

// ActionPlan is the exportable remediation plan for a report
type ActionPlan struct {
	Title           string       `json:"title"`
	Advisory        string       `json:"advisory,omitempty"`
	KeyRequirements []string     `json:"key_requirements"`
	OverallScore    float64      `json:"overall_score"`
	Source          string       `json:"source"`
	TaxonomyVersion string       `json:"taxonomy_version"`
	Items           []ActionItem `json:"items"`
}

// BuildActionPlan pairs each recommendation with its gap in priority order
func BuildActionPlan(r *compliance.Report, tax *taxonomy.Taxonomy) *ActionPlan {
	plan := &ActionPlan{
		Title:           "GDPR Compliance Action Plan",
		KeyRequirements: []string{},
		OverallScore:    r.OverallScore,
		Source:          string(r.Source),
		TaxonomyVersion: r.TaxonomyVersion,
		Items:           make([]ActionItem, 0, len(r.Recommendations)),
	}
	if tax != nil {
		plan.Advisory = tax.Advisory()
		plan.KeyRequirements = tax.KeyRequirements()
	}

	gaps := make(map[string]compliance.Gap, len(r.Gaps))
	for _, g := range r.Gaps {
		gaps[g.ID] = g
	}

	for _, rec := range r.Recommendations {
		g := gaps[rec.GapID]
		category := g.CategoryID
		if tax != nil {
			if c, ok := tax.Category(g.CategoryID); ok {
				category = c.Name
			}
		}
		plan.Items = append(plan.Items, ActionItem{
			Rank:        rec.PriorityRank,
			GapID:       rec.GapID,
			Category:    category,
			Severity:    g.Severity,
			Description: g.Description,
			Action:      rec.ActionText,
		})
	}
	return plan
}

// WriteActionPlan renders plan to w in the given format
func WriteActionPlan(w io.Writer, plan *ActionPlan, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	case FormatMarkdown:
		return writeMarkdown(w, plan)
	default:
		return writeText(w, plan)
	}
}

func writeText(w io.Writer, plan *ActionPlan) error {
	var b strings.Builder
	b.WriteString(plan.Title + "\n")
	b.WriteString(strings.Repeat("=", len(plan.Title)) + "\n\n")
	if plan.Advisory != "" {
		b.WriteString(plan.Advisory + "\n\n")
	}
	fmt.Fprintf(&b, "Overall score: %.1f (%s, taxonomy %s)\n\n", plan.OverallScore, plan.Source, plan.TaxonomyVersion)

	if len(plan.Items) == 0 {
		b.WriteString("No gaps found.\n")
	} else {
		b.WriteString("Actions:\n")
		for _, item := range plan.Items {
			fmt.Fprintf(&b, "%d. [%s] %s\n   %s\n", item.Rank, strings.ToUpper(string(item.Severity)), item.Description, item.Action)
		}
	}

	if len(plan.KeyRequirements) > 0 {
		b.WriteString("\nKey requirements:\n")
		for _, req := range plan.KeyRequirements {
			b.WriteString("- " + req + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeMarkdown(w io.Writer, plan *ActionPlan) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", plan.Title)
	if plan.Advisory != "" {
		fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(strings.TrimSpace(plan.Advisory), "\n", " "))
	}
	fmt.Fprintf(&b, "**Overall score:** %.1f  \n**Source:** %s  \n**Taxonomy:** %s\n\n", plan.OverallScore, plan.Source, plan.TaxonomyVersion)

	b.WriteString("## Actions\n\n")
	if len(plan.Items) == 0 {
		b.WriteString("No gaps found.\n")
	} else {
		b.WriteString("| Rank | Severity | Category | Gap | Action |\n")
		b.WriteString("|------|----------|----------|-----|--------|\n")
		for _, item := range plan.Items {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
				item.Rank, item.Severity, escapeCell(item.Category), escapeCell(item.Description), escapeCell(item.Action))
		}
	}

	if len(plan.KeyRequirements) > 0 {
		b.WriteString("\n## Key requirements\n\n")
		for _, req := range plan.KeyRequirements {
			b.WriteString("- " + req + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
