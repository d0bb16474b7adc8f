package compliance

import (
	"math"
	"sort"

	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
	"go.uber.org/zap"
)

// scoreCategories computes per-category coverage and the overall score.
// Categories without indicators are left out of both.
func scoreCategories(categories []taxonomy.Category, found map[string]bool, logger *zap.Logger) ([]CategoryScore, float64) {
	sorted := append([]taxonomy.Category{}, categories...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	scores := make([]CategoryScore, 0, len(sorted))
	weightedSum := 0.0
	weightSum := 0.0

	for _, c := range sorted {
		total := len(c.Indicators)
		if total == 0 {
			logger.Warn("Category has no indicators, excluded from scoring",
				zap.String("category_id", c.ID))
			continue
		}

		hits := 0
		for _, ind := range c.Indicators {
			if found[ind.ID] {
				hits++
			}
		}

		coverage := float64(hits) / float64(total)
		weighted := coverage * c.Weight * 100

		scores = append(scores, CategoryScore{
			CategoryID:    c.ID,
			Found:         hits,
			Total:         total,
			CoverageRatio: coverage,
			WeightedScore: weighted,
		})
		weightedSum += weighted
		weightSum += c.Weight
	}

	if weightSum == 0 {
		return scores, 0
	}
	return scores, roundScore(weightedSum / weightSum)
}

// roundScore clamps to [0,100] and rounds half away from zero to one decimal
func roundScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		v = 100
	}
	return math.Round(v*10) / 10
}
