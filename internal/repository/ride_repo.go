package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rideon/dispatch/internal/models"
)

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id string) (*models.Ride, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Ride, error)
	GetActiveByRiderID(ctx context.Context, riderID string) (*models.Ride, error)
	// UpdateSearchProgress persists the radius/attempt counters of a failed
	// attempt and keeps the ride in searching. Returns false when the ride
	// left the matchable states concurrently (e.g. was cancelled).
	UpdateSearchProgress(ctx context.Context, id string, radiusKm float64, attempts int) (bool, error)
}

type rideRepository struct {
	db *sqlx.DB
}

func NewRideRepository(db *sqlx.DB) RideRepository {
	return &rideRepository{db: db}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	if ride.ID == "" {
		ride.ID = uuid.New().String()
	}
	if ride.City == "" {
		ride.City = models.DefaultCity
	}
	ride.CreatedAt = time.Now()
	ride.UpdatedAt = ride.CreatedAt
	ride.Status = models.RideStatusPending
	if ride.ExcludedCaptainIDs == nil {
		ride.ExcludedCaptainIDs = pq.StringArray{}
	}

	query := `
		INSERT INTO rides (id, rider_id, pickup_lat, pickup_lng, drop_lat, drop_lng,
			vehicle_type, city, status, excluded_captain_ids, current_radius_km,
			matching_attempts, estimated_fare, estimated_distance_km, estimated_duration_mins,
			idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := r.db.ExecContext(ctx, query,
		ride.ID, ride.RiderID, ride.PickupLat, ride.PickupLng, ride.DropLat, ride.DropLng,
		ride.VehicleType, ride.City, ride.Status, ride.ExcludedCaptainIDs, ride.CurrentRadiusKm,
		ride.MatchingAttempts, ride.EstimatedFare, ride.EstimatedDistanceKm, ride.EstimatedDurationMin,
		ride.IdempotencyKey, ride.CreatedAt, ride.UpdatedAt)
	return err
}

func (r *rideRepository) GetByID(ctx context.Context, id string) (*models.Ride, error) {
	var ride models.Ride
	query := `SELECT * FROM rides WHERE id = $1`
	err := r.db.GetContext(ctx, &ride, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &ride, err
}

func (r *rideRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Ride, error) {
	var ride models.Ride
	query := `SELECT * FROM rides WHERE idempotency_key = $1`
	err := r.db.GetContext(ctx, &ride, query, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &ride, err
}

func (r *rideRepository) GetActiveByRiderID(ctx context.Context, riderID string) (*models.Ride, error) {
	var ride models.Ride
	query := `
		SELECT * FROM rides
		WHERE rider_id = $1 AND status NOT IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &ride, query, riderID, models.RideStatusCompleted, models.RideStatusCancelled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &ride, err
}

func (r *rideRepository) UpdateSearchProgress(ctx context.Context, id string, radiusKm float64, attempts int) (bool, error) {
	query := `
		UPDATE rides
		SET status = $1, current_radius_km = $2, matching_attempts = $3, updated_at = $4
		WHERE id = $5 AND status IN ($6, $7)
	`
	res, err := r.db.ExecContext(ctx, query,
		models.RideStatusSearching, radiusKm, attempts, time.Now(),
		id, models.RideStatusPending, models.RideStatusSearching)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
