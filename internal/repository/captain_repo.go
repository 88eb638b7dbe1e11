package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rideon/dispatch/internal/models"
)

type CaptainRepository interface {
	Create(ctx context.Context, captain *models.Captain) error
	GetByID(ctx context.Context, id string) (*models.Captain, error)
	GetByPhone(ctx context.Context, phone string) (*models.Captain, error)
	UpdateStatus(ctx context.Context, id, status string) error
	// SetStatusIf flips availability only when the captain is currently in
	// the expected status. Returns false when the guard did not hold.
	SetStatusIf(ctx context.Context, id, from, to string) (bool, error)
	UpdateLocation(ctx context.Context, id string, lat, lng float64) error
	ListOnlineByVehicleType(ctx context.Context, vehicleType, city string) ([]*models.Captain, error)
}

type captainRepository struct {
	db *sqlx.DB
}

func NewCaptainRepository(db *sqlx.DB) CaptainRepository {
	return &captainRepository{db: db}
}

func (r *captainRepository) Create(ctx context.Context, captain *models.Captain) error {
	if captain.ID == "" {
		captain.ID = uuid.New().String()
	}
	if captain.VehicleID == "" {
		captain.VehicleID = uuid.New().String()
	}
	if captain.City == "" {
		captain.City = models.DefaultCity
	}
	captain.CreatedAt = time.Now()
	captain.UpdatedAt = captain.CreatedAt
	captain.Rating = models.NeutralRating
	captain.Status = models.CaptainStatusOffline
	captain.VehicleActive = true

	query := `
		INSERT INTO captains (id, phone, name, email, city, license_number, verified,
			vehicle_id, vehicle_type, vehicle_number, vehicle_active,
			status, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		captain.ID, captain.Phone, captain.Name, captain.Email, captain.City,
		captain.LicenseNumber, captain.Verified, captain.VehicleID, captain.VehicleType,
		captain.VehicleNumber, captain.VehicleActive, captain.Status, captain.Rating,
		captain.CreatedAt, captain.UpdatedAt)
	return err
}

func (r *captainRepository) GetByID(ctx context.Context, id string) (*models.Captain, error) {
	var captain models.Captain
	query := `SELECT * FROM captains WHERE id = $1`
	err := r.db.GetContext(ctx, &captain, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &captain, err
}

func (r *captainRepository) GetByPhone(ctx context.Context, phone string) (*models.Captain, error) {
	var captain models.Captain
	query := `SELECT * FROM captains WHERE phone = $1`
	err := r.db.GetContext(ctx, &captain, query, phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &captain, err
}

func (r *captainRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE captains SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	return err
}

func (r *captainRepository) SetStatusIf(ctx context.Context, id, from, to string) (bool, error) {
	query := `UPDATE captains SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *captainRepository) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	query := `UPDATE captains SET current_lat = $1, current_lng = $2, location_at = $3, updated_at = $3 WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, lat, lng, time.Now(), id)
	return err
}

func (r *captainRepository) ListOnlineByVehicleType(ctx context.Context, vehicleType, city string) ([]*models.Captain, error) {
	var captains []*models.Captain
	query := `
		SELECT * FROM captains
		WHERE status = $1 AND vehicle_type = $2 AND city = $3
		AND verified = TRUE AND vehicle_active = TRUE
		AND current_lat IS NOT NULL AND current_lng IS NOT NULL
	`
	err := r.db.SelectContext(ctx, &captains, query, models.CaptainStatusOnline, vehicleType, city)
	return captains, err
}
