package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rideon/dispatch/internal/events"
	apperrors "github.com/rideon/dispatch/internal/errors"
	"github.com/rideon/dispatch/internal/models"
	"github.com/rideon/dispatch/internal/notification"
	"github.com/rideon/dispatch/internal/observability"
	"github.com/rideon/dispatch/internal/repository"
)

// CancellationService applies the city penalty matrix and commits the
// cancellation atomically with offer invalidation and captain release.
type CancellationService interface {
	Cancel(ctx context.Context, rideID string, req *models.CancelRideRequest) (*models.CancelRideResult, error)
}

type cancellationService struct {
	rideRepo   repository.RideRepository
	configRepo repository.ConfigRepository
	store      repository.MatchStore
	notifier   notification.Notifier
	events     *events.Publisher
}

func NewCancellationService(
	rideRepo repository.RideRepository,
	configRepo repository.ConfigRepository,
	store repository.MatchStore,
	notifier notification.Notifier,
	publisher *events.Publisher,
) CancellationService {
	return &cancellationService{
		rideRepo:   rideRepo,
		configRepo: configRepo,
		store:      store,
		notifier:   notifier,
		events:     publisher,
	}
}

func (s *cancellationService) Cancel(ctx context.Context, rideID string, req *models.CancelRideRequest) (*models.CancelRideResult, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}
	if !ride.IsCancellable() {
		return nil, apperrors.InvalidTransition(ride.Status, models.RideStatusCancelled)
	}

	if err := s.authorize(ride, req); err != nil {
		return nil, err
	}

	now := time.Now()
	elapsed := time.Duration(0)
	if ride.MatchedAt != nil {
		elapsed = now.Sub(*ride.MatchedAt)
	}

	rules, err := s.configRepo.ListPenaltyRules(ctx, ride.City, req.CancelledBy, ride.Status)
	if err != nil {
		return nil, err
	}
	rule := models.SelectPenaltyRule(rules, ride.City, elapsed)

	params := repository.CancelParams{
		RideID:      rideID,
		CancelledBy: req.CancelledBy,
		Now:         now,
		CaptainID:   ride.CaptainID,
	}
	if req.Reason != "" {
		reason := req.Reason
		params.Reason = &reason
	}
	if rule != nil {
		params.Fee = rule.PenaltyAmount
		params.PenaltyType = rule.PenaltyType
		params.Cooldown = rule.CooldownDuration()
	}

	outcome, err := s.store.CancelRide(ctx, params)
	if err == apperrors.ErrNotFound {
		return nil, apperrors.NotFound("ride")
	}
	if err == apperrors.ErrInvalidTransition {
		// Lost to a concurrent cancel or completion.
		return nil, apperrors.InvalidState("ride is no longer cancellable")
	}
	if err != nil {
		return nil, err
	}

	observability.CancellationsTotal.WithLabelValues(req.CancelledBy).Inc()
	if outcome.CooldownUntil != nil {
		observability.CooldownsTotal.Inc()
	}
	s.events.Publish(ctx, events.RideEvent{
		Type: events.TypeRideCancelled, RideID: rideID,
		CaptainID: derefOrEmpty(ride.CaptainID),
	})
	s.notifier.RideCancelled(ctx, ride, req.CancelledBy)

	return s.result(req.CancelledBy, params, outcome), nil
}

// authorize checks the requesting party against the ride. A captain may only
// cancel a ride currently assigned to them.
func (s *cancellationService) authorize(ride *models.Ride, req *models.CancelRideRequest) error {
	switch req.CancelledBy {
	case models.CancelledByRider:
		if ride.RiderID != req.UserID {
			return apperrors.BadRequest("ride does not belong to this rider")
		}
	case models.CancelledByCaptain:
		captainID := req.CaptainID
		if captainID == "" {
			captainID = req.UserID
		}
		if ride.CaptainID == nil || *ride.CaptainID != captainID {
			return apperrors.BadRequest("ride is not assigned to this captain")
		}
	default:
		return apperrors.BadRequest("cancelled_by must be rider or captain")
	}
	return nil
}

func (s *cancellationService) result(cancelledBy string, params repository.CancelParams, outcome *repository.CancelOutcome) *models.CancelRideResult {
	res := &models.CancelRideResult{
		Success:         true,
		CancellationFee: params.Fee,
		PenaltyType:     params.PenaltyType,
		Message:         "ride cancelled",
	}
	if params.Fee > 0 {
		res.Message = fmt.Sprintf("ride cancelled, cancellation fee %.2f applies", params.Fee)
	}
	if cancelledBy == models.CancelledByCaptain && outcome.CooldownUntil != nil {
		res.PenaltyType = models.PenaltyTypeCooldown
		res.Message = fmt.Sprintf("ride cancelled, daily limit reached, cooldown until %s",
			outcome.CooldownUntil.Format(time.RFC3339))
	}
	return res
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
