package service

import (
	"sort"

	"github.com/rideon/dispatch/internal/models"
)

// ScoreCandidates annotates each candidate with a weighted score in [0,1]
// and returns them best-first. The search radius is the normalization
// denominator for the proximity term, so a candidate on the edge of the
// radius scores zero on proximity.
//
// Ordering is fully deterministic: score descending, then distance
// ascending, then captain id ascending.
func ScoreCandidates(candidates []models.CaptainCandidate, cfg *models.MatchingConfig, radiusKm float64) []models.CaptainCandidate {
	scored := make([]models.CaptainCandidate, len(candidates))
	copy(scored, candidates)

	for i := range scored {
		scored[i].Score = scoreCandidate(&scored[i], cfg, radiusKm)
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		return a.CaptainID < b.CaptainID
	})

	return scored
}

func scoreCandidate(c *models.CaptainCandidate, cfg *models.MatchingConfig, radiusKm float64) float64 {
	proximity := 0.0
	if radiusKm > 0 {
		proximity = 1 - c.DistanceKm/radiusKm
		if proximity < 0 {
			proximity = 0
		}
	}

	return cfg.WeightETA*proximity +
		cfg.WeightAcceptance*(c.AcceptanceRate/100) +
		cfg.WeightRating*(c.Rating/5) +
		cfg.WeightCancellation*(1-c.CancellationRate/100)
}
