package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/rideon/dispatch/internal/models"
)

// Offer creation and terminal transitions live on MatchStore; they are part
// of multi-row transactions. This repository is the read side.
type OfferRepository interface {
	GetByID(ctx context.Context, id string) (*models.Offer, error)
	GetPendingByRideID(ctx context.Context, rideID string) (*models.Offer, error)
	GetPendingByCaptainID(ctx context.Context, captainID string) ([]*models.Offer, error)
}

type offerRepository struct {
	db *sqlx.DB
}

func NewOfferRepository(db *sqlx.DB) OfferRepository {
	return &offerRepository{db: db}
}

func (r *offerRepository) GetByID(ctx context.Context, id string) (*models.Offer, error) {
	var offer models.Offer
	query := `SELECT * FROM offers WHERE id = $1`
	err := r.db.GetContext(ctx, &offer, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &offer, err
}

// GetPendingByRideID returns the ride's live offer, if any. At most one
// pending offer exists per ride at any instant.
func (r *offerRepository) GetPendingByRideID(ctx context.Context, rideID string) (*models.Offer, error) {
	var offer models.Offer
	query := `
		SELECT * FROM offers
		WHERE ride_id = $1 AND status = $2
		ORDER BY sequence DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &offer, query, rideID, models.OfferStatusPending)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &offer, err
}

func (r *offerRepository) GetPendingByCaptainID(ctx context.Context, captainID string) ([]*models.Offer, error) {
	var offers []*models.Offer
	query := `
		SELECT * FROM offers
		WHERE captain_id = $1 AND status = $2 AND expires_at > NOW()
		ORDER BY sent_at DESC
	`
	err := r.db.SelectContext(ctx, &offers, query, captainID, models.OfferStatusPending)
	return offers, err
}
