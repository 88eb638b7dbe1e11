package service

import (
	"context"
	"log"
	"time"

	"github.com/rideon/dispatch/internal/events"
	apperrors "github.com/rideon/dispatch/internal/errors"
	"github.com/rideon/dispatch/internal/models"
	"github.com/rideon/dispatch/internal/notification"
	"github.com/rideon/dispatch/internal/observability"
	"github.com/rideon/dispatch/internal/repository"
	"github.com/rideon/dispatch/pkg/utils"
)

const otpLength = 4

// DispatchService is the matching state machine. Each invocation is one
// attempt: it never schedules its own retries; the caller observes the retry
// signal and decides when to re-invoke.
type DispatchService interface {
	Match(ctx context.Context, req *models.MatchRideRequest) (*models.MatchResult, error)
}

type dispatchService struct {
	rideRepo    repository.RideRepository
	offerRepo   repository.OfferRepository
	captainRepo repository.CaptainRepository
	configRepo  repository.ConfigRepository
	store       repository.MatchStore
	locator     LocatorService
	offers      OfferService
	notifier    notification.Notifier
	events      *events.Publisher
}

func NewDispatchService(
	rideRepo repository.RideRepository,
	offerRepo repository.OfferRepository,
	captainRepo repository.CaptainRepository,
	configRepo repository.ConfigRepository,
	store repository.MatchStore,
	locator LocatorService,
	offers OfferService,
	notifier notification.Notifier,
	publisher *events.Publisher,
) DispatchService {
	return &dispatchService{
		rideRepo:    rideRepo,
		offerRepo:   offerRepo,
		captainRepo: captainRepo,
		configRepo:  configRepo,
		store:       store,
		locator:     locator,
		offers:      offers,
		notifier:    notifier,
		events:      publisher,
	}
}

func (s *dispatchService) Match(ctx context.Context, req *models.MatchRideRequest) (*models.MatchResult, error) {
	start := time.Now()
	observability.MatchAttemptsTotal.Inc()
	defer func() {
		observability.MatchLatency.Observe(time.Since(start).Seconds())
	}()

	ride, err := s.rideRepo.GetByID(ctx, req.RideID)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}

	ride, err = s.settleStaleOffer(ctx, ride)
	if err != nil {
		return nil, err
	}
	if !ride.IsMatchable() {
		return nil, apperrors.InvalidState("ride is not in a matchable state: " + ride.Status)
	}

	city := ride.City
	if req.City != "" {
		city = req.City
	}
	cfg, err := s.configRepo.GetMatchingConfig(ctx, city)
	if err != nil {
		return nil, err
	}

	attempts := ride.MatchingAttempts + 1
	if attempts > cfg.MaxRetryAttempts {
		observability.MatchExhaustedTotal.Inc()
		return exhausted(ride.CurrentRadiusKm), nil
	}

	radius := ride.CurrentRadiusKm
	if radius <= 0 {
		radius = cfg.InitialRadiusKm
	} else if attempts > 1 {
		radius = cfg.NextRadiusKm(radius)
	}

	candidates, err := s.locator.FindCandidates(ctx, CandidateQuery{
		PickupLat:   req.PickupLat,
		PickupLng:   req.PickupLng,
		VehicleType: req.VehicleType,
		City:        city,
		RadiusKm:    radius,
		Excluded:    ride.ExcludedCaptainIDs,
		Now:         start,
	})
	if err != nil {
		return nil, err
	}

	ranked := ScoreCandidates(candidates, cfg, radius)
	if len(ranked) > cfg.MaxOffersPerRide {
		ranked = ranked[:cfg.MaxOffersPerRide]
	}

	for _, candidate := range ranked {
		result, err := s.tryAssign(ctx, ride, candidate, radius, attempts, cfg)
		if err == apperrors.ErrCaptainUnavailable {
			// Another dispatch won this captain; fall through to the
			// next-ranked candidate.
			continue
		}
		if err == apperrors.ErrRideNotMatchable {
			return nil, apperrors.InvalidState("ride is no longer matchable")
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	return s.noCandidates(ctx, ride, cfg, radius, attempts)
}

// settleStaleOffer lazily expires a timed-out pending offer so the ride is
// re-matchable, and rejects matching while a live offer is still out.
func (s *dispatchService) settleStaleOffer(ctx context.Context, ride *models.Ride) (*models.Ride, error) {
	if ride.Status != models.RideStatusMatched {
		return ride, nil
	}
	pending, err := s.offerRepo.GetPendingByRideID(ctx, ride.ID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, apperrors.InvalidState("ride is already matched")
	}
	if !pending.IsExpired(time.Now()) {
		return nil, apperrors.InvalidState("ride has a pending offer awaiting response")
	}
	if err := s.offers.Expire(ctx, pending); err != nil {
		return nil, err
	}

	reloaded, err := s.rideRepo.GetByID(ctx, ride.ID)
	if err != nil {
		return nil, err
	}
	if reloaded == nil {
		return nil, apperrors.NotFound("ride")
	}
	return reloaded, nil
}

func (s *dispatchService) tryAssign(ctx context.Context, ride *models.Ride, candidate models.CaptainCandidate, radius float64, attempts int, cfg *models.MatchingConfig) (*models.MatchResult, error) {
	otp := utils.GenerateOTP(otpLength)

	offer, err := s.store.AssignCaptain(ctx, repository.AssignParams{
		RideID:       ride.ID,
		CaptainID:    candidate.CaptainID,
		VehicleID:    candidate.VehicleID,
		OTP:          otp,
		RadiusKm:     radius,
		Attempts:     attempts,
		OfferTimeout: cfg.OfferTimeout(),
	})
	if err != nil {
		return nil, err
	}

	observability.MatchesTotal.Inc()
	s.events.Publish(ctx, events.RideEvent{
		Type: events.TypeRideMatched, RideID: ride.ID,
		CaptainID: candidate.CaptainID, OfferID: offer.ID,
	})
	s.notifier.OfferCreated(ctx, offer, ride)

	result := &models.MatchResult{
		Matched:         true,
		OTP:             otp,
		ExpiresAt:       &offer.ExpiresAt,
		CurrentRadiusKm: radius,
		Message:         "captain assigned, awaiting acceptance",
	}
	captain, err := s.captainRepo.GetByID(ctx, candidate.CaptainID)
	if err != nil {
		log.Printf("dispatch: loading matched captain %s failed: %v", candidate.CaptainID, err)
	} else if captain != nil {
		result.Captain = captain.ToResponse()
	}
	return result, nil
}

func (s *dispatchService) noCandidates(ctx context.Context, ride *models.Ride, cfg *models.MatchingConfig, radius float64, attempts int) (*models.MatchResult, error) {
	applied, err := s.rideRepo.UpdateSearchProgress(ctx, ride.ID, radius, attempts)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost to a concurrent cancellation.
		return nil, apperrors.InvalidState("ride is no longer matchable")
	}

	if radius >= cfg.MaxRadiusKm || attempts >= cfg.MaxRetryAttempts {
		observability.MatchExhaustedTotal.Inc()
		return exhausted(radius), nil
	}

	return &models.MatchResult{
		Matched:         false,
		Retry:           true,
		CurrentRadiusKm: cfg.NextRadiusKm(radius),
		Message:         "no captains in range, retry with expanded radius",
	}, nil
}

func exhausted(radius float64) *models.MatchResult {
	return &models.MatchResult{
		Matched:         false,
		Retry:           false,
		CurrentRadiusKm: radius,
		Message:         "no captains available after exhausting search radius",
	}
}
