package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rideon/dispatch/internal/models"
)

type CaptainMetricsRepository interface {
	Create(ctx context.Context, metrics *models.CaptainMetrics) error
	GetByCaptainID(ctx context.Context, captainID string) (*models.CaptainMetrics, error)
	GetForCaptains(ctx context.Context, captainIDs []string) (map[string]*models.CaptainMetrics, error)
	// RecordOfferOutcome applies one terminal offer transition to the
	// counters. responseSecs is only read for accepted outcomes.
	RecordOfferOutcome(ctx context.Context, captainID, outcome string, responseSecs float64) error
}

type captainMetricsRepository struct {
	db *sqlx.DB
}

func NewCaptainMetricsRepository(db *sqlx.DB) CaptainMetricsRepository {
	return &captainMetricsRepository{db: db}
}

func (r *captainMetricsRepository) Create(ctx context.Context, m *models.CaptainMetrics) error {
	query := `
		INSERT INTO captain_metrics (captain_id, total_offers_received, total_offers_accepted,
			total_offers_declined, total_offers_expired, acceptance_rate, cancellation_rate,
			avg_response_time_secs, total_rides_completed, total_rides_cancelled,
			daily_cancellation_count, daily_cancellation_reset_at, cooldown_until, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		m.CaptainID, m.TotalOffersReceived, m.TotalOffersAccepted, m.TotalOffersDeclined,
		m.TotalOffersExpired, m.AcceptanceRate, m.CancellationRate, m.AvgResponseTimeSecs,
		m.TotalRidesCompleted, m.TotalRidesCancelled, m.DailyCancellationCount,
		m.DailyCancellationResetAt, m.CooldownUntil, m.UpdatedAt)
	return err
}

func (r *captainMetricsRepository) GetByCaptainID(ctx context.Context, captainID string) (*models.CaptainMetrics, error) {
	var m models.CaptainMetrics
	query := `SELECT * FROM captain_metrics WHERE captain_id = $1`
	err := r.db.GetContext(ctx, &m, query, captainID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &m, err
}

func (r *captainMetricsRepository) GetForCaptains(ctx context.Context, captainIDs []string) (map[string]*models.CaptainMetrics, error) {
	result := make(map[string]*models.CaptainMetrics, len(captainIDs))
	if len(captainIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM captain_metrics WHERE captain_id IN (?)`, captainIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var rows []*models.CaptainMetrics
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	for _, m := range rows {
		result[m.CaptainID] = m
	}
	return result, nil
}

// All column references on the right-hand side read the pre-update values, so
// the rate recomputation stays consistent under concurrent outcomes.
func (r *captainMetricsRepository) RecordOfferOutcome(ctx context.Context, captainID, outcome string, responseSecs float64) error {
	var acc, dec, exp int
	switch outcome {
	case models.OfferStatusAccepted:
		acc = 1
	case models.OfferStatusDeclined:
		dec = 1
	case models.OfferStatusExpired:
		exp = 1
	}

	query := `
		UPDATE captain_metrics SET
			total_offers_received = total_offers_received + 1,
			total_offers_accepted = total_offers_accepted + $2,
			total_offers_declined = total_offers_declined + $3,
			total_offers_expired = total_offers_expired + $4,
			acceptance_rate = (total_offers_accepted + $2) * 100.0 / (total_offers_received + 1),
			avg_response_time_secs = CASE WHEN $2 = 1
				THEN (avg_response_time_secs * total_offers_accepted + $5) / (total_offers_accepted + 1)
				ELSE avg_response_time_secs END,
			updated_at = $6
		WHERE captain_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, captainID, acc, dec, exp, responseSecs, time.Now())
	return err
}
