package compliance

import (
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
)

type compiledPattern struct {
	raw        string
	normalized string
}

type compiledIndicator struct {
	indicator taxonomy.Indicator
	patterns  []compiledPattern
}

func compileIndicators(categories []taxonomy.Category) []compiledIndicator {
	var out []compiledIndicator
	for _, c := range categories {
		for _, ind := range c.Indicators {
			ci := compiledIndicator{indicator: ind}
			for _, p := range ind.Patterns {
				n := normalizePattern(p)
				if n == "" {
					continue
				}
				ci.patterns = append(ci.patterns, compiledPattern{raw: p, normalized: n})
			}
			out = append(out, ci)
		}
	}
	return out
}

// matchIndicators produces one MatchResult per indicator. The earliest
// occurrence across an indicator's patterns wins; equal positions keep the
// pattern listed first.
func matchIndicators(text string, indicators []compiledIndicator) []MatchResult {
	doc := normalize(text)

	results := make([]MatchResult, 0, len(indicators))
	for _, ci := range indicators {
		result := MatchResult{IndicatorID: ci.indicator.ID}

		bestStart, bestEnd := -1, -1
		for _, p := range ci.patterns {
			start, end, ok := doc.find(p.normalized)
			if !ok {
				continue
			}
			if bestStart < 0 || start < bestStart {
				bestStart, bestEnd = start, end
				result.Pattern = p.raw
			}
		}

		if bestStart >= 0 {
			span := doc.span(bestStart, bestEnd)
			result.Found = true
			result.Span = &span
		}
		results = append(results, result)
	}
	return results
}
