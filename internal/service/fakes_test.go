package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rideon/dispatch/internal/cache"
	"github.com/rideon/dispatch/internal/models"
	"github.com/rideon/dispatch/internal/repository"
)

// In-memory fakes for the repository and cache interfaces. They model just
// enough behavior for the service tests; concurrency guards are driven by
// explicit knobs instead of real row locks.

type fakeCaptainRepo struct {
	captains map[string]*models.Captain
}

func newFakeCaptainRepo(captains ...*models.Captain) *fakeCaptainRepo {
	r := &fakeCaptainRepo{captains: make(map[string]*models.Captain)}
	for _, c := range captains {
		r.captains[c.ID] = c
	}
	return r
}

func (r *fakeCaptainRepo) Create(ctx context.Context, c *models.Captain) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	r.captains[c.ID] = c
	return nil
}

func (r *fakeCaptainRepo) GetByID(ctx context.Context, id string) (*models.Captain, error) {
	return r.captains[id], nil
}

func (r *fakeCaptainRepo) GetByPhone(ctx context.Context, phone string) (*models.Captain, error) {
	for _, c := range r.captains {
		if c.Phone == phone {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeCaptainRepo) UpdateStatus(ctx context.Context, id, status string) error {
	if c, ok := r.captains[id]; ok {
		c.Status = status
	}
	return nil
}

func (r *fakeCaptainRepo) SetStatusIf(ctx context.Context, id, from, to string) (bool, error) {
	c, ok := r.captains[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (r *fakeCaptainRepo) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	if c, ok := r.captains[id]; ok {
		c.CurrentLat, c.CurrentLng = &lat, &lng
	}
	return nil
}

func (r *fakeCaptainRepo) ListOnlineByVehicleType(ctx context.Context, vehicleType, city string) ([]*models.Captain, error) {
	var out []*models.Captain
	for _, c := range r.captains {
		if c.Status == models.CaptainStatusOnline && c.VehicleType == vehicleType && c.City == city &&
			c.Verified && c.VehicleActive && c.CurrentLat != nil && c.CurrentLng != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeRideRepo struct {
	rides            map[string]*models.Ride
	searchProgressOK bool
	progressCalls    []progressCall
}

type progressCall struct {
	rideID   string
	radiusKm float64
	attempts int
}

func newFakeRideRepo(rides ...*models.Ride) *fakeRideRepo {
	r := &fakeRideRepo{rides: make(map[string]*models.Ride), searchProgressOK: true}
	for _, ride := range rides {
		r.rides[ride.ID] = ride
	}
	return r
}

func (r *fakeRideRepo) Create(ctx context.Context, ride *models.Ride) error {
	if ride.ID == "" {
		ride.ID = uuid.New().String()
	}
	ride.Status = models.RideStatusPending
	r.rides[ride.ID] = ride
	return nil
}

func (r *fakeRideRepo) GetByID(ctx context.Context, id string) (*models.Ride, error) {
	return r.rides[id], nil
}

func (r *fakeRideRepo) GetByIdempotencyKey(ctx context.Context, key string) (*models.Ride, error) {
	for _, ride := range r.rides {
		if ride.IdempotencyKey != nil && *ride.IdempotencyKey == key {
			return ride, nil
		}
	}
	return nil, nil
}

func (r *fakeRideRepo) GetActiveByRiderID(ctx context.Context, riderID string) (*models.Ride, error) {
	for _, ride := range r.rides {
		if ride.RiderID == riderID && ride.IsActive() {
			return ride, nil
		}
	}
	return nil, nil
}

func (r *fakeRideRepo) UpdateSearchProgress(ctx context.Context, id string, radiusKm float64, attempts int) (bool, error) {
	r.progressCalls = append(r.progressCalls, progressCall{id, radiusKm, attempts})
	if !r.searchProgressOK {
		return false, nil
	}
	if ride, ok := r.rides[id]; ok {
		ride.Status = models.RideStatusSearching
		ride.CurrentRadiusKm = radiusKm
		ride.MatchingAttempts = attempts
	}
	return true, nil
}

type fakeOfferRepo struct {
	offers map[string]*models.Offer
}

func newFakeOfferRepo(offers ...*models.Offer) *fakeOfferRepo {
	r := &fakeOfferRepo{offers: make(map[string]*models.Offer)}
	for _, o := range offers {
		r.offers[o.ID] = o
	}
	return r
}

func (r *fakeOfferRepo) GetByID(ctx context.Context, id string) (*models.Offer, error) {
	return r.offers[id], nil
}

func (r *fakeOfferRepo) GetPendingByRideID(ctx context.Context, rideID string) (*models.Offer, error) {
	for _, o := range r.offers {
		if o.RideID == rideID && o.Status == models.OfferStatusPending {
			return o, nil
		}
	}
	return nil, nil
}

func (r *fakeOfferRepo) GetPendingByCaptainID(ctx context.Context, captainID string) ([]*models.Offer, error) {
	var out []*models.Offer
	for _, o := range r.offers {
		if o.CaptainID == captainID && o.Status == models.OfferStatusPending {
			out = append(out, o)
		}
	}
	return out, nil
}

type recordedOutcome struct {
	captainID    string
	outcome      string
	responseSecs float64
}

type fakeMetricsRepo struct {
	metrics  map[string]*models.CaptainMetrics
	outcomes []recordedOutcome
}

func newFakeMetricsRepo(metrics ...*models.CaptainMetrics) *fakeMetricsRepo {
	r := &fakeMetricsRepo{metrics: make(map[string]*models.CaptainMetrics)}
	for _, m := range metrics {
		r.metrics[m.CaptainID] = m
	}
	return r
}

func (r *fakeMetricsRepo) Create(ctx context.Context, m *models.CaptainMetrics) error {
	r.metrics[m.CaptainID] = m
	return nil
}

func (r *fakeMetricsRepo) GetByCaptainID(ctx context.Context, captainID string) (*models.CaptainMetrics, error) {
	return r.metrics[captainID], nil
}

func (r *fakeMetricsRepo) GetForCaptains(ctx context.Context, captainIDs []string) (map[string]*models.CaptainMetrics, error) {
	out := make(map[string]*models.CaptainMetrics)
	for _, id := range captainIDs {
		if m, ok := r.metrics[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (r *fakeMetricsRepo) RecordOfferOutcome(ctx context.Context, captainID, outcome string, responseSecs float64) error {
	r.outcomes = append(r.outcomes, recordedOutcome{captainID, outcome, responseSecs})
	return nil
}

type fakeConfigRepo struct {
	cfg   *models.MatchingConfig
	rules []models.CancellationPenalty
}

func (r *fakeConfigRepo) GetMatchingConfig(ctx context.Context, city string) (*models.MatchingConfig, error) {
	if r.cfg != nil {
		return r.cfg, nil
	}
	return models.DefaultMatchingConfig(), nil
}

func (r *fakeConfigRepo) ListPenaltyRules(ctx context.Context, city, cancelledBy, rideStatus string) ([]models.CancellationPenalty, error) {
	var out []models.CancellationPenalty
	for _, rule := range r.rules {
		if (rule.City == city || rule.City == models.DefaultCity) &&
			rule.CancelledBy == cancelledBy && rule.RideStatus == rideStatus {
			out = append(out, rule)
		}
	}
	return out, nil
}

type fakeMatchStore struct {
	assignErrs    map[string]error // keyed by captain id
	assigned      []repository.AssignParams
	acceptApplied bool
	failApplied   bool
	failed        []string // offer ids passed to FailOffer
	cancelParams  *repository.CancelParams
	cancelOutcome *repository.CancelOutcome
	cancelErr     error
	rides         *fakeRideRepo // when set, FailOffer mirrors the ride-side effects
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{
		assignErrs:    make(map[string]error),
		acceptApplied: true,
		failApplied:   true,
		cancelOutcome: &repository.CancelOutcome{CaptainStatus: models.CaptainStatusOnline},
	}
}

func (s *fakeMatchStore) AssignCaptain(ctx context.Context, p repository.AssignParams) (*models.Offer, error) {
	if err := s.assignErrs[p.CaptainID]; err != nil {
		return nil, err
	}
	s.assigned = append(s.assigned, p)
	now := time.Now()
	return &models.Offer{
		ID:        uuid.New().String(),
		RideID:    p.RideID,
		CaptainID: p.CaptainID,
		Status:    models.OfferStatusPending,
		Sequence:  len(s.assigned),
		SentAt:    now,
		ExpiresAt: now.Add(p.OfferTimeout),
	}, nil
}

func (s *fakeMatchStore) AcceptOffer(ctx context.Context, offerID string) (bool, error) {
	return s.acceptApplied, nil
}

func (s *fakeMatchStore) FailOffer(ctx context.Context, offer *models.Offer, status string, declineReason *string) (bool, error) {
	if !s.failApplied {
		return false, nil
	}
	s.failed = append(s.failed, offer.ID)
	offer.Status = status
	if s.rides != nil {
		if ride, ok := s.rides.rides[offer.RideID]; ok && ride.Status == models.RideStatusMatched {
			ride.Status = models.RideStatusSearching
			ride.CaptainID = nil
			if !ride.IsExcluded(offer.CaptainID) {
				ride.ExcludedCaptainIDs = append(ride.ExcludedCaptainIDs, offer.CaptainID)
			}
		}
	}
	return true, nil
}

func (s *fakeMatchStore) CancelRide(ctx context.Context, p repository.CancelParams) (*repository.CancelOutcome, error) {
	s.cancelParams = &p
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return s.cancelOutcome, nil
}

type fakeLocationCache struct {
	nearby    []cache.NearbyCaptain
	locations map[string]*cache.LastKnownLocation
	removed   []string
}

func newFakeLocationCache() *fakeLocationCache {
	return &fakeLocationCache{locations: make(map[string]*cache.LastKnownLocation)}
}

func (c *fakeLocationCache) UpdateLocation(ctx context.Context, captainID, vehicleType string, lat, lng float64, heading, accuracy *float64) error {
	c.locations[captainID] = &cache.LastKnownLocation{Lat: lat, Lng: lng}
	return nil
}

func (c *fakeLocationCache) GetLocation(ctx context.Context, captainID string) (*cache.LastKnownLocation, error) {
	return c.locations[captainID], nil
}

func (c *fakeLocationCache) GetNearby(ctx context.Context, lat, lng, radiusKm float64, vehicleType string) ([]cache.NearbyCaptain, error) {
	var out []cache.NearbyCaptain
	for _, n := range c.nearby {
		if n.DistanceKm <= radiusKm {
			out = append(out, n)
		}
	}
	return out, nil
}

func (c *fakeLocationCache) Remove(ctx context.Context, captainID, vehicleType string) error {
	c.removed = append(c.removed, captainID)
	delete(c.locations, captainID)
	return nil
}

func (c *fakeLocationCache) SetMeta(ctx context.Context, captainID, status, vehicleType string) error {
	return nil
}

func (c *fakeLocationCache) GetMeta(ctx context.Context, captainID string) (map[string]string, error) {
	return nil, nil
}

func onlineCaptain(id, vehicleType, city string, lat, lng float64) *models.Captain {
	return &models.Captain{
		ID:            id,
		Phone:         "9100000000",
		Name:          "Captain " + id,
		City:          city,
		Verified:      true,
		VehicleID:     "v-" + id,
		VehicleType:   vehicleType,
		VehicleActive: true,
		Status:        models.CaptainStatusOnline,
		Rating:        4.5,
		CurrentLat:    &lat,
		CurrentLng:    &lng,
	}
}
