package compliance

import (
	"fmt"

	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
)

// classifyGaps emits a Gap for every indicator that was not found. Severity is
// the indicator's criticality; nothing else is inferred.
func classifyGaps(categories []taxonomy.Category, found map[string]bool) []Gap {
	var gaps []Gap
	for _, c := range categories {
		for _, ind := range c.Indicators {
			if found[ind.ID] {
				continue
			}
			gaps = append(gaps, Gap{
				ID:          ind.ID,
				CategoryID:  c.ID,
				IndicatorID: ind.ID,
				Severity:    ind.Criticality,
				Description: gapDescription(c, ind),
			})
		}
	}
	return gaps
}

func gapDescription(c taxonomy.Category, ind taxonomy.Indicator) string {
	return fmt.Sprintf("%s: missing %s", c.Name, ind.Concept)
}
