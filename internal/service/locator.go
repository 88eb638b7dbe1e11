package service

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/rideon/dispatch/internal/cache"
	"github.com/rideon/dispatch/internal/models"
	"github.com/rideon/dispatch/internal/repository"
)

// CandidateQuery describes one candidate search.
type CandidateQuery struct {
	PickupLat   float64
	PickupLng   float64
	VehicleType string
	City        string
	RadiusKm    float64
	Excluded    []string
	Now         time.Time
}

// LocatorService finds eligible captains within the current search radius.
type LocatorService interface {
	FindCandidates(ctx context.Context, q CandidateQuery) ([]models.CaptainCandidate, error)
}

type locatorService struct {
	captainRepo  repository.CaptainRepository
	metricsRepo  repository.CaptainMetricsRepository
	captainCache cache.CaptainLocationCache
}

func NewLocatorService(
	captainRepo repository.CaptainRepository,
	metricsRepo repository.CaptainMetricsRepository,
	captainCache cache.CaptainLocationCache,
) LocatorService {
	return &locatorService{
		captainRepo:  captainRepo,
		metricsRepo:  metricsRepo,
		captainCache: captainCache,
	}
}

// FindCandidates queries the Redis GEO set first and falls back to the
// captains table when the cache has nothing for the area. Eligibility:
// online, verified, active vehicle of the requested type, not excluded, not
// under cooldown, and a known location within the radius.
func (s *locatorService) FindCandidates(ctx context.Context, q CandidateQuery) ([]models.CaptainCandidate, error) {
	excluded := make(map[string]bool, len(q.Excluded))
	for _, id := range q.Excluded {
		excluded[id] = true
	}

	candidates, err := s.fromCache(ctx, q, excluded)
	if err != nil {
		log.Printf("locator: geo cache lookup failed, falling back to db: %v", err)
		candidates = nil
	}
	if len(candidates) == 0 {
		candidates, err = s.fromDatabase(ctx, q, excluded)
		if err != nil {
			return nil, err
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	return s.applyMetrics(ctx, candidates, q.Now)
}

func (s *locatorService) fromCache(ctx context.Context, q CandidateQuery, excluded map[string]bool) ([]models.CaptainCandidate, error) {
	if s.captainCache == nil {
		return nil, nil
	}
	nearby, err := s.captainCache.GetNearby(ctx, q.PickupLat, q.PickupLng, q.RadiusKm, q.VehicleType)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.CaptainCandidate, 0, len(nearby))
	for _, n := range nearby {
		if excluded[n.CaptainID] {
			continue
		}
		captain, err := s.captainRepo.GetByID(ctx, n.CaptainID)
		if err != nil {
			return nil, err
		}
		if !eligible(captain, q.VehicleType) {
			continue
		}
		loc, err := s.captainCache.GetLocation(ctx, n.CaptainID)
		if err != nil {
			return nil, err
		}
		c := models.CaptainCandidate{
			CaptainID:  captain.ID,
			VehicleID:  captain.VehicleID,
			DistanceKm: n.DistanceKm,
			Rating:     captain.Rating,
		}
		if loc != nil {
			c.Lat, c.Lng = loc.Lat, loc.Lng
		} else if captain.CurrentLat != nil && captain.CurrentLng != nil {
			c.Lat, c.Lng = *captain.CurrentLat, *captain.CurrentLng
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (s *locatorService) fromDatabase(ctx context.Context, q CandidateQuery, excluded map[string]bool) ([]models.CaptainCandidate, error) {
	captains, err := s.captainRepo.ListOnlineByVehicleType(ctx, q.VehicleType, q.City)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.CaptainCandidate, 0, len(captains))
	for _, captain := range captains {
		if excluded[captain.ID] || !eligible(captain, q.VehicleType) {
			continue
		}
		if captain.CurrentLat == nil || captain.CurrentLng == nil {
			continue
		}
		dist := Haversine(q.PickupLat, q.PickupLng, *captain.CurrentLat, *captain.CurrentLng)
		if dist > q.RadiusKm {
			continue
		}
		candidates = append(candidates, models.CaptainCandidate{
			CaptainID:  captain.ID,
			VehicleID:  captain.VehicleID,
			Lat:        *captain.CurrentLat,
			Lng:        *captain.CurrentLng,
			DistanceKm: dist,
			Rating:     captain.Rating,
		})
	}
	return candidates, nil
}

// applyMetrics attaches acceptance/cancellation rates and drops captains
// under an active cooldown. Captains with no history score neutrally.
func (s *locatorService) applyMetrics(ctx context.Context, candidates []models.CaptainCandidate, now time.Time) ([]models.CaptainCandidate, error) {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.CaptainID
	}
	metrics, err := s.metricsRepo.GetForCaptains(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := candidates[:0]
	for _, c := range candidates {
		m, ok := metrics[c.CaptainID]
		if !ok {
			c.AcceptanceRate = models.NeutralAcceptanceRate
			c.CancellationRate = models.NeutralCancellationRate
			if c.Rating == 0 {
				c.Rating = models.NeutralRating
			}
			out = append(out, c)
			continue
		}
		if m.InCooldown(now) {
			continue
		}
		c.AcceptanceRate = m.AcceptanceRate
		c.CancellationRate = m.CancellationRate
		out = append(out, c)
	}
	return out, nil
}

func eligible(captain *models.Captain, vehicleType string) bool {
	return captain != nil &&
		captain.Status == models.CaptainStatusOnline &&
		captain.Verified &&
		captain.VehicleActive &&
		captain.VehicleType == vehicleType
}

// Haversine returns the great-circle distance between two points in km.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}
