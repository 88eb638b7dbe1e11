package service

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/rideon/dispatch/internal/errors"
	"github.com/rideon/dispatch/internal/models"
)

type offerFixture struct {
	offerRepo   *fakeOfferRepo
	rideRepo    *fakeRideRepo
	metricsRepo *fakeMetricsRepo
	store       *fakeMatchStore
	svc         OfferService
}

func newOfferFixture(rides []*models.Ride, offers []*models.Offer) *offerFixture {
	f := &offerFixture{
		offerRepo:   newFakeOfferRepo(offers...),
		rideRepo:    newFakeRideRepo(rides...),
		metricsRepo: newFakeMetricsRepo(),
		store:       newFakeMatchStore(),
	}
	f.store.rides = f.rideRepo
	f.svc = NewOfferService(f.offerRepo, f.rideRepo, newFakeCaptainRepo(), f.metricsRepo, f.store, nil)
	return f
}

func liveOffer(id, rideID, captainID string) *models.Offer {
	now := time.Now()
	return &models.Offer{
		ID: id, RideID: rideID, CaptainID: captainID,
		Status: models.OfferStatusPending, Sequence: 1,
		SentAt: now.Add(-5 * time.Second), ExpiresAt: now.Add(25 * time.Second),
	}
}

func TestRespondAccept(t *testing.T) {
	ride := pendingRide("r1")
	ride.Status = models.RideStatusMatched
	f := newOfferFixture([]*models.Ride{ride}, []*models.Offer{liveOffer("o1", "r1", "c1")})

	view, err := f.svc.Respond(context.Background(), "o1", &models.OfferResponseRequest{
		CaptainID: "c1", Response: models.OfferResponseAccept,
	})
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if view.Status != models.OfferStatusAccepted {
		t.Errorf("view status = %s, want accepted", view.Status)
	}

	if len(f.metricsRepo.outcomes) != 1 {
		t.Fatalf("recorded outcomes = %d, want 1", len(f.metricsRepo.outcomes))
	}
	out := f.metricsRepo.outcomes[0]
	if out.outcome != models.OfferStatusAccepted || out.captainID != "c1" {
		t.Errorf("outcome = %+v, want accepted for c1", out)
	}
	if out.responseSecs <= 0 {
		t.Errorf("response time = %v, want positive", out.responseSecs)
	}
}

func TestRespondDeclineExcludesCaptain(t *testing.T) {
	ride := pendingRide("r1")
	ride.Status = models.RideStatusMatched
	captainID := "c1"
	ride.CaptainID = &captainID
	f := newOfferFixture([]*models.Ride{ride}, []*models.Offer{liveOffer("o1", "r1", "c1")})

	view, err := f.svc.Respond(context.Background(), "o1", &models.OfferResponseRequest{
		CaptainID: "c1", Response: models.OfferResponseDecline, DeclineReason: "too far",
	})
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if view.Status != models.OfferStatusDeclined {
		t.Errorf("view status = %s, want declined", view.Status)
	}

	if got := f.rideRepo.rides["r1"].Status; got != models.RideStatusSearching {
		t.Errorf("ride status after decline = %s, want searching", got)
	}
	if !f.rideRepo.rides["r1"].IsExcluded("c1") {
		t.Error("declining captain should be excluded from the ride")
	}
	if len(f.metricsRepo.outcomes) != 1 || f.metricsRepo.outcomes[0].outcome != models.OfferStatusDeclined {
		t.Errorf("outcomes = %+v, want one declined", f.metricsRepo.outcomes)
	}
}

func TestRespondToResolvedOfferIsIdempotent(t *testing.T) {
	offer := liveOffer("o1", "r1", "c1")
	offer.Status = models.OfferStatusDeclined
	f := newOfferFixture([]*models.Ride{pendingRide("r1")}, []*models.Offer{offer})

	view, err := f.svc.Respond(context.Background(), "o1", &models.OfferResponseRequest{
		CaptainID: "c1", Response: models.OfferResponseDecline,
	})
	if err != nil {
		t.Fatalf("Respond() on resolved offer should acknowledge, got error: %v", err)
	}
	if view.Status != models.OfferStatusDeclined {
		t.Errorf("view status = %s, want declined", view.Status)
	}
	if len(f.metricsRepo.outcomes) != 0 {
		t.Errorf("repeat response must not double-count metrics, got %+v", f.metricsRepo.outcomes)
	}
	if len(f.store.failed) != 0 {
		t.Error("no store transition expected for a resolved offer")
	}
}

func TestRespondAfterTimeoutExpiresOffer(t *testing.T) {
	ride := pendingRide("r1")
	ride.Status = models.RideStatusMatched
	captainID := "c1"
	ride.CaptainID = &captainID

	offer := liveOffer("o1", "r1", "c1")
	offer.ExpiresAt = time.Now().Add(-time.Second)
	f := newOfferFixture([]*models.Ride{ride}, []*models.Offer{offer})

	_, err := f.svc.Respond(context.Background(), "o1", &models.OfferResponseRequest{
		CaptainID: "c1", Response: models.OfferResponseAccept,
	})
	apiErr, ok := err.(*apperrors.APIError)
	if !ok || apiErr.Code != "offer_expired" {
		t.Fatalf("expected offer_expired, got %v", err)
	}

	if offer.Status != models.OfferStatusExpired {
		t.Errorf("offer status = %s, want expired", offer.Status)
	}
	if len(f.metricsRepo.outcomes) != 1 || f.metricsRepo.outcomes[0].outcome != models.OfferStatusExpired {
		t.Errorf("outcomes = %+v, want one expired", f.metricsRepo.outcomes)
	}
	if got := f.rideRepo.rides["r1"].Status; got != models.RideStatusSearching {
		t.Errorf("ride status = %s, want searching after expiry", got)
	}
}

func TestRespondAcceptLosesRaceToCancellation(t *testing.T) {
	f := newOfferFixture([]*models.Ride{pendingRide("r1")}, []*models.Offer{liveOffer("o1", "r1", "c1")})
	f.store.acceptApplied = false
	// By the time the captain's accept lands, a cancellation expired the offer.
	f.offerRepo.offers["o1"].Status = models.OfferStatusExpired

	_, err := f.svc.Respond(context.Background(), "o1", &models.OfferResponseRequest{
		CaptainID: "c1", Response: models.OfferResponseAccept,
	})
	apiErr, ok := err.(*apperrors.APIError)
	if !ok || apiErr.Code != "offer_expired" {
		t.Fatalf("expected offer_expired, got %v", err)
	}
	if len(f.metricsRepo.outcomes) != 0 {
		t.Error("a lost accept must not record an accepted outcome")
	}
}

func TestRespondWrongCaptain(t *testing.T) {
	f := newOfferFixture(nil, []*models.Offer{liveOffer("o1", "r1", "c1")})

	_, err := f.svc.Respond(context.Background(), "o1", &models.OfferResponseRequest{
		CaptainID: "imposter", Response: models.OfferResponseAccept,
	})
	apiErr, ok := err.(*apperrors.APIError)
	if !ok || apiErr.Code != "forbidden" {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestExpireIsIdempotent(t *testing.T) {
	offer := liveOffer("o1", "r1", "c1")
	f := newOfferFixture([]*models.Ride{pendingRide("r1")}, []*models.Offer{offer})
	f.store.failApplied = false

	if err := f.svc.Expire(context.Background(), offer); err != nil {
		t.Fatalf("Expire() on already-resolved offer should be a no-op, got %v", err)
	}
	if len(f.metricsRepo.outcomes) != 0 {
		t.Error("no-op expiry must not record metrics")
	}
}
