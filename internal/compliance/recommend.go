package compliance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
)

// generateRecommendations ranks gaps and produces exactly one recommendation
// per gap. Order: severity, then category weight descending, then category id,
// then indicator id.
func generateRecommendations(gaps []Gap, categories map[string]taxonomy.Category, indicators map[string]taxonomy.Indicator) []Recommendation {
	ordered := append([]Gap{}, gaps...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra > rb
		}
		if wa, wb := categories[a.CategoryID].Weight, categories[b.CategoryID].Weight; wa != wb {
			return wa > wb
		}
		if a.CategoryID != b.CategoryID {
			return a.CategoryID < b.CategoryID
		}
		return a.IndicatorID < b.IndicatorID
	})

	recs := make([]Recommendation, len(ordered))
	for i, g := range ordered {
		recs[i] = Recommendation{
			GapID:        g.ID,
			PriorityRank: i + 1,
			ActionText:   actionText(categories[g.CategoryID], indicators[g.IndicatorID]),
		}
	}
	return recs
}

// actionText prefers the indicator template, then the category template
func actionText(c taxonomy.Category, ind taxonomy.Indicator) string {
	if s := strings.TrimSpace(ind.Remediation); s != "" {
		return s
	}
	if s := strings.TrimSpace(c.Remediation); s != "" {
		return s
	}
	return fmt.Sprintf("Address %s in the %s section of the document.", ind.Concept, c.Name)
}
