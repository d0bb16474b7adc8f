package compliance

import (
	"sort"

	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
)

// Source identifies which analysis strategy produced a report
type Source string

const (
	SourceRuleBased Source = "rule_based"
	SourceLLM       Source = "llm"
)

// Span is a byte range in the original document text
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// MatchResult records whether one indicator was found in a document
type MatchResult struct {
	IndicatorID string `json:"indicator_id"`
	Found       bool   `json:"found"`
	Pattern     string `json:"pattern,omitempty"`
	Span        *Span  `json:"span,omitempty"`
}

// CategoryScore is the coverage of a single category
type CategoryScore struct {
	CategoryID    string  `json:"category_id"`
	Found         int     `json:"found"`
	Total         int     `json:"total"`
	CoverageRatio float64 `json:"coverage_ratio"`
	WeightedScore float64 `json:"weighted_score"`
}

// Gap is a missing indicator
type Gap struct {
	ID          string               `json:"id"`
	CategoryID  string               `json:"category_id"`
	IndicatorID string               `json:"indicator_id"`
	Severity    taxonomy.Criticality `json:"severity"`
	Description string               `json:"description"`
}

// Recommendation is the remediation action for one gap
type Recommendation struct {
	GapID        string `json:"gap_id"`
	PriorityRank int    `json:"priority_rank"`
	ActionText   string `json:"action_text"`
}

// Report is the complete result of one analysis. It carries no timestamps or
// identifiers so identical inputs serialize to identical bytes. Callers treat
// it as read-only.
type Report struct {
	OverallScore    float64          `json:"overall_score"`
	CategoryScores  []CategoryScore  `json:"category_scores"`
	Gaps            []Gap            `json:"gaps"`
	Recommendations []Recommendation `json:"recommendations"`
	Matches         []MatchResult    `json:"matches"`
	Source          Source           `json:"source"`
	TaxonomyVersion string           `json:"taxonomy_version"`
}

// CriticalGaps counts gaps with critical severity
func (r *Report) CriticalGaps() int {
	n := 0
	for _, g := range r.Gaps {
		if g.Severity == taxonomy.Critical {
			n++
		}
	}
	return n
}

// Recommendation returns the recommendation for a gap id
func (r *Report) Recommendation(gapID string) (Recommendation, bool) {
	for _, rec := range r.Recommendations {
		if rec.GapID == gapID {
			return rec, true
		}
	}
	return Recommendation{}, false
}

// assemble packages the stage outputs into a report. Gaps are reordered to
// follow the rank of their recommendation.
func assemble(version string, source Source, matches []MatchResult, scores []CategoryScore, overall float64, gaps []Gap, recs []Recommendation) *Report {
	rank := make(map[string]int, len(recs))
	for _, rec := range recs {
		rank[rec.GapID] = rec.PriorityRank
	}

	orderedGaps := append([]Gap{}, gaps...)
	sort.SliceStable(orderedGaps, func(i, j int) bool {
		return rank[orderedGaps[i].ID] < rank[orderedGaps[j].ID]
	})

	orderedScores := append([]CategoryScore{}, scores...)
	sort.SliceStable(orderedScores, func(i, j int) bool {
		return orderedScores[i].CategoryID < orderedScores[j].CategoryID
	})

	return &Report{
		OverallScore:    overall,
		CategoryScores:  orderedScores,
		Gaps:            orderedGaps,
		Recommendations: append([]Recommendation{}, recs...),
		Matches:         append([]MatchResult{}, matches...),
		Source:          source,
		TaxonomyVersion: version,
	}
}
