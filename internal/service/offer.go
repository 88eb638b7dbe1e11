package service

import (
	"context"
	"log"
	"time"

	"github.com/rideon/dispatch/internal/events"
	apperrors "github.com/rideon/dispatch/internal/errors"
	"github.com/rideon/dispatch/internal/models"
	"github.com/rideon/dispatch/internal/observability"
	"github.com/rideon/dispatch/internal/repository"
)

// OfferService processes captain responses and detected timeouts for live
// offers. Every transition is pending -> terminal exactly once; late
// responses are idempotent no-ops that never double-count metrics.
type OfferService interface {
	Respond(ctx context.Context, offerID string, req *models.OfferResponseRequest) (*models.OfferView, error)
	// Expire processes a timed-out offer: captain excluded, ride back to
	// searching, captain back online.
	Expire(ctx context.Context, offer *models.Offer) error
	GetPendingForCaptain(ctx context.Context, captainID string) ([]*models.OfferView, error)
}

type offerService struct {
	offerRepo   repository.OfferRepository
	rideRepo    repository.RideRepository
	captainRepo repository.CaptainRepository
	metricsRepo repository.CaptainMetricsRepository
	store       repository.MatchStore
	events      *events.Publisher
}

func NewOfferService(
	offerRepo repository.OfferRepository,
	rideRepo repository.RideRepository,
	captainRepo repository.CaptainRepository,
	metricsRepo repository.CaptainMetricsRepository,
	store repository.MatchStore,
	publisher *events.Publisher,
) OfferService {
	return &offerService{
		offerRepo:   offerRepo,
		rideRepo:    rideRepo,
		captainRepo: captainRepo,
		metricsRepo: metricsRepo,
		store:       store,
		events:      publisher,
	}
}

func (s *offerService) Respond(ctx context.Context, offerID string, req *models.OfferResponseRequest) (*models.OfferView, error) {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, apperrors.NotFound("offer")
	}
	if offer.CaptainID != req.CaptainID {
		return nil, apperrors.OfferNotForCaptain()
	}
	if offer.IsTerminal() {
		// Already resolved; acknowledge without touching metrics.
		return offer.ToView(), nil
	}

	now := time.Now()
	if offer.IsExpired(now) {
		// The timeout happened first; the response loses either way.
		if err := s.Expire(ctx, offer); err != nil {
			return nil, err
		}
		return nil, apperrors.OfferExpired()
	}

	switch req.Response {
	case models.OfferResponseAccept:
		return s.accept(ctx, offer, now)
	case models.OfferResponseDecline:
		return s.decline(ctx, offer, req.DeclineReason)
	default:
		return nil, apperrors.BadRequest("response must be accept or decline")
	}
}

func (s *offerService) accept(ctx context.Context, offer *models.Offer, now time.Time) (*models.OfferView, error) {
	applied, err := s.store.AcceptOffer(ctx, offer.ID)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a race: a cancellation or sweeper resolved the offer first.
		return nil, s.resolveStaleResponse(ctx, offer.ID)
	}

	s.recordOutcome(ctx, offer.CaptainID, models.OfferStatusAccepted, now.Sub(offer.SentAt).Seconds())
	observability.OfferOutcomesTotal.WithLabelValues(models.OfferStatusAccepted).Inc()
	s.events.Publish(ctx, events.RideEvent{
		Type: events.TypeOfferAccepted, RideID: offer.RideID,
		CaptainID: offer.CaptainID, OfferID: offer.ID,
	})

	offer.Status = models.OfferStatusAccepted
	offer.RespondedAt = &now
	view := offer.ToView()

	ride, err := s.rideRepo.GetByID(ctx, offer.RideID)
	if err == nil && ride != nil {
		view.Ride = ride.ToResponse()
		if captain, err := s.captainRepo.GetByID(ctx, offer.CaptainID); err == nil && captain != nil {
			view.Ride.Captain = captain.ToResponse()
		}
	}
	return view, nil
}

func (s *offerService) decline(ctx context.Context, offer *models.Offer, reason string) (*models.OfferView, error) {
	var declineReason *string
	if reason != "" {
		declineReason = &reason
	}

	applied, err := s.store.FailOffer(ctx, offer, models.OfferStatusDeclined, declineReason)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, s.resolveStaleResponse(ctx, offer.ID)
	}

	s.recordOutcome(ctx, offer.CaptainID, models.OfferStatusDeclined, 0)
	observability.OfferOutcomesTotal.WithLabelValues(models.OfferStatusDeclined).Inc()
	s.events.Publish(ctx, events.RideEvent{
		Type: events.TypeOfferDeclined, RideID: offer.RideID,
		CaptainID: offer.CaptainID, OfferID: offer.ID,
	})

	offer.Status = models.OfferStatusDeclined
	offer.DeclineReason = declineReason
	return offer.ToView(), nil
}

func (s *offerService) Expire(ctx context.Context, offer *models.Offer) error {
	applied, err := s.store.FailOffer(ctx, offer, models.OfferStatusExpired, nil)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	s.recordOutcome(ctx, offer.CaptainID, models.OfferStatusExpired, 0)
	observability.OfferOutcomesTotal.WithLabelValues(models.OfferStatusExpired).Inc()
	s.events.Publish(ctx, events.RideEvent{
		Type: events.TypeOfferExpired, RideID: offer.RideID,
		CaptainID: offer.CaptainID, OfferID: offer.ID,
	})
	return nil
}

func (s *offerService) GetPendingForCaptain(ctx context.Context, captainID string) ([]*models.OfferView, error) {
	offers, err := s.offerRepo.GetPendingByCaptainID(ctx, captainID)
	if err != nil {
		return nil, err
	}

	views := make([]*models.OfferView, 0, len(offers))
	for _, offer := range offers {
		view := offer.ToView()
		if ride, err := s.rideRepo.GetByID(ctx, offer.RideID); err == nil && ride != nil {
			view.Ride = ride.ToResponse()
		}
		views = append(views, view)
	}
	return views, nil
}

// resolveStaleResponse maps a lost conditional update to the caller-facing
// outcome based on where the offer actually ended up.
func (s *offerService) resolveStaleResponse(ctx context.Context, offerID string) error {
	current, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return err
	}
	if current == nil {
		return apperrors.NotFound("offer")
	}
	if current.Status == models.OfferStatusExpired {
		return apperrors.OfferExpired()
	}
	return apperrors.InvalidState("offer already resolved")
}

// Metrics counters are non-critical relative to the committed offer
// transition; a failed write is logged, not rolled back.
func (s *offerService) recordOutcome(ctx context.Context, captainID, outcome string, responseSecs float64) {
	if err := s.metricsRepo.RecordOfferOutcome(ctx, captainID, outcome, responseSecs); err != nil {
		log.Printf("offer: recording %s outcome for captain %s failed: %v", outcome, captainID, err)
	}
}
