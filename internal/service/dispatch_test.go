package service

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/rideon/dispatch/internal/errors"
	"github.com/rideon/dispatch/internal/models"
	"github.com/rideon/dispatch/internal/notification"
)

type dispatchFixture struct {
	rideRepo    *fakeRideRepo
	offerRepo   *fakeOfferRepo
	captainRepo *fakeCaptainRepo
	metricsRepo *fakeMetricsRepo
	store       *fakeMatchStore
	svc         DispatchService
}

func newDispatchFixture(rides []*models.Ride, captains []*models.Captain) *dispatchFixture {
	f := &dispatchFixture{
		rideRepo:    newFakeRideRepo(rides...),
		offerRepo:   newFakeOfferRepo(),
		captainRepo: newFakeCaptainRepo(captains...),
		metricsRepo: newFakeMetricsRepo(),
		store:       newFakeMatchStore(),
	}
	f.store.rides = f.rideRepo

	locator := NewLocatorService(f.captainRepo, f.metricsRepo, nil)
	offers := NewOfferService(f.offerRepo, f.rideRepo, f.captainRepo, f.metricsRepo, f.store, nil)
	f.svc = NewDispatchService(f.rideRepo, f.offerRepo, f.captainRepo, &fakeConfigRepo{},
		f.store, locator, offers, notification.NopNotifier{}, nil)
	return f
}

func pendingRide(id string) *models.Ride {
	return &models.Ride{
		ID:          id,
		RiderID:     "rider-1",
		PickupLat:   testLat,
		PickupLng:   testLng,
		VehicleType: models.VehicleTypeSedan,
		City:        "bangalore",
		Status:      models.RideStatusPending,
	}
}

func matchRequest(rideID string) *models.MatchRideRequest {
	return &models.MatchRideRequest{
		RideID:      rideID,
		PickupLat:   testLat,
		PickupLng:   testLng,
		VehicleType: models.VehicleTypeSedan,
		City:        "bangalore",
	}
}

func TestMatchAssignsNearestCaptain(t *testing.T) {
	ride := pendingRide("r1")
	captain := onlineCaptain("c1", models.VehicleTypeSedan, "bangalore", testLat+0.005, testLng)
	f := newDispatchFixture([]*models.Ride{ride}, []*models.Captain{captain})

	result, err := f.svc.Match(context.Background(), matchRequest("r1"))
	if err != nil {
		t.Fatalf("Match() error: %v", err)
	}

	if !result.Matched {
		t.Fatalf("expected a match, got %+v", result)
	}
	if result.Captain == nil || result.Captain.ID != "c1" {
		t.Errorf("matched captain = %+v, want c1", result.Captain)
	}
	if len(result.OTP) != 4 {
		t.Errorf("OTP = %q, want 4 digits", result.OTP)
	}
	if result.ExpiresAt == nil {
		t.Error("expected an offer deadline")
	}

	if len(f.store.assigned) != 1 {
		t.Fatalf("assignments = %d, want 1", len(f.store.assigned))
	}
	p := f.store.assigned[0]
	if p.RadiusKm != 1.5 {
		t.Errorf("first attempt radius = %v, want initial 1.5", p.RadiusKm)
	}
	if p.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", p.Attempts)
	}
	if p.OfferTimeout != 30*time.Second {
		t.Errorf("offer timeout = %v, want 30s", p.OfferTimeout)
	}
}

func TestMatchFallsToNextCandidateWhenCaptainRaceLost(t *testing.T) {
	ride := pendingRide("r1")
	best := onlineCaptain("best", models.VehicleTypeSedan, "bangalore", testLat+0.002, testLng)
	second := onlineCaptain("second", models.VehicleTypeSedan, "bangalore", testLat+0.008, testLng)
	f := newDispatchFixture([]*models.Ride{ride}, []*models.Captain{best, second})
	f.store.assignErrs["best"] = apperrors.ErrCaptainUnavailable

	result, err := f.svc.Match(context.Background(), matchRequest("r1"))
	if err != nil {
		t.Fatalf("Match() error: %v", err)
	}
	if !result.Matched || result.Captain == nil || result.Captain.ID != "second" {
		t.Fatalf("expected fallback to second candidate, got %+v", result)
	}
}

func TestMatchSkipsExcludedCaptains(t *testing.T) {
	ride := pendingRide("r1")
	ride.ExcludedCaptainIDs = []string{"declined-before"}
	near := onlineCaptain("declined-before", models.VehicleTypeSedan, "bangalore", testLat+0.001, testLng)
	other := onlineCaptain("other", models.VehicleTypeSedan, "bangalore", testLat+0.008, testLng)
	f := newDispatchFixture([]*models.Ride{ride}, []*models.Captain{near, other})

	result, err := f.svc.Match(context.Background(), matchRequest("r1"))
	if err != nil {
		t.Fatalf("Match() error: %v", err)
	}
	if !result.Matched || result.Captain.ID != "other" {
		t.Fatalf("excluded captain must never be re-offered, got %+v", result)
	}
}

func TestMatchNoCandidatesSignalsRetryWithExpandedRadius(t *testing.T) {
	ride := pendingRide("r1")
	f := newDispatchFixture([]*models.Ride{ride}, nil)

	result, err := f.svc.Match(context.Background(), matchRequest("r1"))
	if err != nil {
		t.Fatalf("Match() error: %v", err)
	}

	if result.Matched || !result.Retry {
		t.Fatalf("expected retry signal, got %+v", result)
	}
	if result.CurrentRadiusKm != 2.5 {
		t.Errorf("next radius = %v, want 2.5", result.CurrentRadiusKm)
	}
	if len(f.rideRepo.progressCalls) != 1 {
		t.Fatalf("progress calls = %d, want 1", len(f.rideRepo.progressCalls))
	}
	call := f.rideRepo.progressCalls[0]
	if call.radiusKm != 1.5 || call.attempts != 1 {
		t.Errorf("persisted progress = %+v, want radius 1.5 attempts 1", call)
	}
}

func TestMatchExpandsRadiusOnRetry(t *testing.T) {
	ride := pendingRide("r1")
	ride.Status = models.RideStatusSearching
	ride.CurrentRadiusKm = 1.5
	ride.MatchingAttempts = 1
	f := newDispatchFixture([]*models.Ride{ride}, nil)

	result, err := f.svc.Match(context.Background(), matchRequest("r1"))
	if err != nil {
		t.Fatalf("Match() error: %v", err)
	}

	call := f.rideRepo.progressCalls[0]
	if call.radiusKm != 2.5 || call.attempts != 2 {
		t.Errorf("persisted progress = %+v, want radius 2.5 attempts 2", call)
	}
	if !result.Retry || result.CurrentRadiusKm != 3.5 {
		t.Errorf("retry radius = %v, want 3.5", result.CurrentRadiusKm)
	}
}

func TestMatchSecondCallReachesFartherCandidate(t *testing.T) {
	ride := pendingRide("r1")
	// ~2.2km north of the pickup: outside the initial 1.5km radius, inside
	// the expanded 2.5km one.
	captain := onlineCaptain("c1", models.VehicleTypeSedan, "bangalore", testLat+0.02, testLng)
	f := newDispatchFixture([]*models.Ride{ride}, []*models.Captain{captain})

	first, err := f.svc.Match(context.Background(), matchRequest("r1"))
	if err != nil {
		t.Fatalf("first Match() error: %v", err)
	}
	if first.Matched || !first.Retry || first.CurrentRadiusKm != 2.5 {
		t.Fatalf("first call should signal retry at 2.5km, got %+v", first)
	}

	second, err := f.svc.Match(context.Background(), matchRequest("r1"))
	if err != nil {
		t.Fatalf("second Match() error: %v", err)
	}
	if !second.Matched || second.Captain == nil || second.Captain.ID != "c1" {
		t.Fatalf("second call should match the farther candidate, got %+v", second)
	}
	if got := f.store.assigned[0].RadiusKm; got != 2.5 {
		t.Errorf("assignment radius = %v, want 2.5", got)
	}
}

func TestMatchExhaustionByAttempts(t *testing.T) {
	ride := pendingRide("r1")
	ride.Status = models.RideStatusSearching
	ride.CurrentRadiusKm = 5.0
	ride.MatchingAttempts = 5
	f := newDispatchFixture([]*models.Ride{ride}, nil)

	result, err := f.svc.Match(context.Background(), matchRequest("r1"))
	if err != nil {
		t.Fatalf("Match() error: %v", err)
	}
	if result.Matched || result.Retry {
		t.Fatalf("expected exhaustion, got %+v", result)
	}
}

func TestMatchExhaustionByRadius(t *testing.T) {
	ride := pendingRide("r1")
	ride.Status = models.RideStatusSearching
	ride.CurrentRadiusKm = 5.0
	ride.MatchingAttempts = 2
	f := newDispatchFixture([]*models.Ride{ride}, nil)

	result, err := f.svc.Match(context.Background(), matchRequest("r1"))
	if err != nil {
		t.Fatalf("Match() error: %v", err)
	}
	if result.Matched || result.Retry {
		t.Fatalf("radius at maximum with no candidates should exhaust, got %+v", result)
	}
	// Exhaustion still leaves the ride in searching with its progress saved.
	if got := f.rideRepo.rides["r1"].Status; got != models.RideStatusSearching {
		t.Errorf("ride status after exhaustion = %s, want searching", got)
	}
}

func TestMatchLosesToConcurrentCancellation(t *testing.T) {
	ride := pendingRide("r1")
	f := newDispatchFixture([]*models.Ride{ride}, nil)
	f.rideRepo.searchProgressOK = false

	_, err := f.svc.Match(context.Background(), matchRequest("r1"))
	apiErr, ok := err.(*apperrors.APIError)
	if !ok || apiErr.Code != "invalid_state" {
		t.Fatalf("expected invalid_state error, got %v", err)
	}
}

func TestMatchRejectsUnmatchableRide(t *testing.T) {
	for _, status := range []string{
		models.RideStatusInProgress, models.RideStatusCompleted, models.RideStatusCancelled,
	} {
		ride := pendingRide("r1")
		ride.Status = status
		f := newDispatchFixture([]*models.Ride{ride}, nil)

		_, err := f.svc.Match(context.Background(), matchRequest("r1"))
		if apiErr, ok := err.(*apperrors.APIError); !ok || apiErr.Code != "invalid_state" {
			t.Errorf("status %s: expected invalid_state, got %v", status, err)
		}
	}
}

func TestMatchUnknownRide(t *testing.T) {
	f := newDispatchFixture(nil, nil)
	_, err := f.svc.Match(context.Background(), matchRequest("missing"))
	if apiErr, ok := err.(*apperrors.APIError); !ok || apiErr.Code != "not_found" {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestMatchRejectsRideWithLivePendingOffer(t *testing.T) {
	ride := pendingRide("r1")
	ride.Status = models.RideStatusMatched
	captainID := "c1"
	ride.CaptainID = &captainID
	f := newDispatchFixture([]*models.Ride{ride}, nil)

	now := time.Now()
	f.offerRepo.offers["o1"] = &models.Offer{
		ID: "o1", RideID: "r1", CaptainID: captainID,
		Status: models.OfferStatusPending, SentAt: now, ExpiresAt: now.Add(25 * time.Second),
	}

	_, err := f.svc.Match(context.Background(), matchRequest("r1"))
	if apiErr, ok := err.(*apperrors.APIError); !ok || apiErr.Code != "invalid_state" {
		t.Fatalf("expected invalid_state for live offer, got %v", err)
	}
}

func TestMatchExpiresStaleOfferAndContinues(t *testing.T) {
	ride := pendingRide("r1")
	ride.Status = models.RideStatusMatched
	ride.CurrentRadiusKm = 1.5
	ride.MatchingAttempts = 1
	captainID := "stale"
	ride.CaptainID = &captainID

	staleCaptain := onlineCaptain("stale", models.VehicleTypeSedan, "bangalore", testLat, testLng)
	staleCaptain.Status = models.CaptainStatusOnRide
	fresh := onlineCaptain("fresh", models.VehicleTypeSedan, "bangalore", testLat+0.004, testLng)

	f := newDispatchFixture([]*models.Ride{ride}, []*models.Captain{staleCaptain, fresh})

	past := time.Now().Add(-time.Minute)
	f.offerRepo.offers["o1"] = &models.Offer{
		ID: "o1", RideID: "r1", CaptainID: "stale",
		Status: models.OfferStatusPending, SentAt: past.Add(-30 * time.Second), ExpiresAt: past,
	}

	result, err := f.svc.Match(context.Background(), matchRequest("r1"))
	if err != nil {
		t.Fatalf("Match() error: %v", err)
	}

	if f.offerRepo.offers["o1"].Status != models.OfferStatusExpired {
		t.Errorf("stale offer status = %s, want expired", f.offerRepo.offers["o1"].Status)
	}
	if !result.Matched || result.Captain == nil || result.Captain.ID != "fresh" {
		t.Fatalf("expected a fresh assignment after lazy expiry, got %+v", result)
	}
	// The timed-out captain must not be offered the same ride again.
	if !f.rideRepo.rides["r1"].IsExcluded("stale") {
		t.Error("stale captain should be in the exclusion set")
	}
}
