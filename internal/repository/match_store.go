package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	apperrors "github.com/rideon/dispatch/internal/errors"
	"github.com/rideon/dispatch/internal/models"
)

// AssignParams captures one atomic assignment: ride -> matched, captain ->
// on_ride, offer created, all or nothing.
type AssignParams struct {
	RideID       string
	CaptainID    string
	VehicleID    string
	OTP          string
	RadiusKm     float64
	Attempts     int
	OfferTimeout time.Duration
}

// CancelParams carries a committed cancellation decision into the store.
type CancelParams struct {
	RideID      string
	CancelledBy string
	Reason      *string
	Fee         float64
	PenaltyType string
	Cooldown    time.Duration
	CaptainID   *string // assigned captain to release, if any
	Now         time.Time
}

type CancelOutcome struct {
	DailyCancellationCount int
	CooldownUntil          *time.Time
	CaptainStatus          string
}

// MatchStore owns every multi-row mutation of the engine. Each method runs in
// a single transaction with conditional updates keyed on expected prior
// state, so concurrent attempts can never both win the same captain and a
// cancellation racing a match always leaves a consistent pair.
type MatchStore interface {
	AssignCaptain(ctx context.Context, p AssignParams) (*models.Offer, error)
	// AcceptOffer flips the offer pending -> accepted. Returns false when the
	// offer already reached a terminal state (idempotent no-op for callers).
	AcceptOffer(ctx context.Context, offerID string) (bool, error)
	// FailOffer flips the offer pending -> declined|expired, excludes the
	// captain from the ride, returns the ride to searching and the captain to
	// online. Returns false when the offer was already terminal.
	FailOffer(ctx context.Context, offer *models.Offer, status string, declineReason *string) (bool, error)
	CancelRide(ctx context.Context, p CancelParams) (*CancelOutcome, error)
}

type matchStore struct {
	db *sqlx.DB
}

func NewMatchStore(db *sqlx.DB) MatchStore {
	return &matchStore{db: db}
}

func (s *matchStore) AssignCaptain(ctx context.Context, p AssignParams) (*models.Offer, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()

	// Captain first: losing this guard means another dispatch won the race.
	res, err := tx.ExecContext(ctx,
		`UPDATE captains SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		models.CaptainStatusOnRide, now, p.CaptainID, models.CaptainStatusOnline)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, apperrors.ErrCaptainUnavailable
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE rides
		SET status = $1, captain_id = $2, vehicle_id = $3, otp = $4, matched_at = $5,
			current_radius_km = $6, matching_attempts = $7, updated_at = $5
		WHERE id = $8 AND status IN ($9, $10)`,
		models.RideStatusMatched, p.CaptainID, p.VehicleID, p.OTP, now,
		p.RadiusKm, p.Attempts, p.RideID,
		models.RideStatusPending, models.RideStatusSearching)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, apperrors.ErrRideNotMatchable
	}

	var sequence int
	if err := tx.GetContext(ctx, &sequence,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM offers WHERE ride_id = $1`, p.RideID); err != nil {
		return nil, err
	}

	offer := &models.Offer{
		ID:        uuid.New().String(),
		RideID:    p.RideID,
		CaptainID: p.CaptainID,
		Status:    models.OfferStatusPending,
		Sequence:  sequence,
		SentAt:    now,
		ExpiresAt: now.Add(p.OfferTimeout),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO offers (id, ride_id, captain_id, status, sequence, sent_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		offer.ID, offer.RideID, offer.CaptainID, offer.Status, offer.Sequence,
		offer.SentAt, offer.ExpiresAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *matchStore) AcceptOffer(ctx context.Context, offerID string) (bool, error) {
	// A cancellation expires pending offers inside its own transaction, so
	// the pending guard here is the whole cancellation-beats-matching story:
	// a cancelled ride can never be re-activated by a late accept.
	res, err := s.db.ExecContext(ctx,
		`UPDATE offers SET status = $1, responded_at = $2 WHERE id = $3 AND status = $4`,
		models.OfferStatusAccepted, time.Now(), offerID, models.OfferStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *matchStore) FailOffer(ctx context.Context, offer *models.Offer, status string, declineReason *string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	now := time.Now()

	res, err := tx.ExecContext(ctx,
		`UPDATE offers SET status = $1, responded_at = $2, decline_reason = $3 WHERE id = $4 AND status = $5`,
		status, now, declineReason, offer.ID, models.OfferStatusPending)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n == 0 {
		return false, nil
	}

	// The exclusion set only grows; the array guard keeps the append
	// idempotent.
	_, err = tx.ExecContext(ctx, `
		UPDATE rides
		SET status = $1, captain_id = NULL, vehicle_id = NULL, otp = NULL, matched_at = NULL,
			excluded_captain_ids = CASE WHEN $2 = ANY(excluded_captain_ids)
				THEN excluded_captain_ids
				ELSE array_append(excluded_captain_ids, $2) END,
			updated_at = $3
		WHERE id = $4 AND status = $5 AND captain_id = $2`,
		models.RideStatusSearching, offer.CaptainID, now, offer.RideID, models.RideStatusMatched)
	if err != nil {
		return false, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE captains SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		models.CaptainStatusOnline, now, offer.CaptainID, models.CaptainStatusOnRide)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *matchStore) CancelRide(ctx context.Context, p CancelParams) (*CancelOutcome, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var ride models.Ride
	err = tx.GetContext(ctx, &ride, `SELECT * FROM rides WHERE id = $1 FOR UPDATE`, p.RideID)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !ride.IsCancellable() {
		return nil, apperrors.ErrInvalidTransition
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rides
		SET status = $1, cancellation_fee = $2, cancelled_by = $3, cancellation_reason = $4,
			cancelled_at = $5, updated_at = $5
		WHERE id = $6`,
		models.RideStatusCancelled, p.Fee, p.CancelledBy, p.Reason, p.Now, p.RideID)
	if err != nil {
		return nil, err
	}

	// Invalidate any in-flight offer so no late accept can act on it.
	_, err = tx.ExecContext(ctx,
		`UPDATE offers SET status = $1, responded_at = $2 WHERE ride_id = $3 AND status = $4`,
		models.OfferStatusExpired, p.Now, p.RideID, models.OfferStatusPending)
	if err != nil {
		return nil, err
	}

	outcome := &CancelOutcome{}

	if p.CancelledBy == models.CancelledByCaptain && p.CaptainID != nil {
		var m models.CaptainMetrics
		err = tx.GetContext(ctx, &m,
			`SELECT * FROM captain_metrics WHERE captain_id = $1 FOR UPDATE`, *p.CaptainID)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		if err == nil {
			m.RollDailyWindow(p.Now)
			m.DailyCancellationCount++
			m.TotalRidesCancelled++
			m.CancellationRate = cancellationRate(m.TotalRidesCompleted, m.TotalRidesCancelled)

			captainStatus := models.CaptainStatusOnline
			if m.DailyCancellationCount >= models.DailyCancellationLimit && p.PenaltyType == models.PenaltyTypeCooldown {
				until := p.Now.Add(p.Cooldown)
				m.CooldownUntil = &until
				captainStatus = models.CaptainStatusOffline
			}

			_, err = tx.ExecContext(ctx, `
				UPDATE captain_metrics
				SET total_rides_cancelled = $1, cancellation_rate = $2,
					daily_cancellation_count = $3, daily_cancellation_reset_at = $4,
					cooldown_until = $5, updated_at = $6
				WHERE captain_id = $7`,
				m.TotalRidesCancelled, m.CancellationRate, m.DailyCancellationCount,
				m.DailyCancellationResetAt, m.CooldownUntil, p.Now, *p.CaptainID)
			if err != nil {
				return nil, err
			}

			outcome.DailyCancellationCount = m.DailyCancellationCount
			outcome.CooldownUntil = m.CooldownUntil
			outcome.CaptainStatus = captainStatus

			_, err = tx.ExecContext(ctx,
				`UPDATE captains SET status = $1, updated_at = $2 WHERE id = $3`,
				captainStatus, p.Now, *p.CaptainID)
			if err != nil {
				return nil, err
			}
		}
	} else if p.CaptainID != nil {
		// Rider cancelled a matched ride: the captain goes back online.
		outcome.CaptainStatus = models.CaptainStatusOnline
		_, err = tx.ExecContext(ctx,
			`UPDATE captains SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
			models.CaptainStatusOnline, p.Now, *p.CaptainID, models.CaptainStatusOnRide)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return outcome, nil
}

func cancellationRate(completed, cancelled int) float64 {
	total := completed + cancelled
	if total == 0 {
		return 0
	}
	return float64(cancelled) * 100.0 / float64(total)
}
