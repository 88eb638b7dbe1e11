package models

import (
	"time"
)

// Neutral defaults used when a captain has no offer history yet.
const (
	NeutralAcceptanceRate   = 100.0
	NeutralCancellationRate = 0.0
	NeutralRating           = 5.0
)

// CaptainMetrics is the durable per-captain performance row. One row exists
// per captain, created alongside the profile.
type CaptainMetrics struct {
	CaptainID                string     `db:"captain_id" json:"captain_id"`
	TotalOffersReceived      int        `db:"total_offers_received" json:"total_offers_received"`
	TotalOffersAccepted      int        `db:"total_offers_accepted" json:"total_offers_accepted"`
	TotalOffersDeclined      int        `db:"total_offers_declined" json:"total_offers_declined"`
	TotalOffersExpired       int        `db:"total_offers_expired" json:"total_offers_expired"`
	AcceptanceRate           float64    `db:"acceptance_rate" json:"acceptance_rate"`
	CancellationRate         float64    `db:"cancellation_rate" json:"cancellation_rate"`
	AvgResponseTimeSecs      float64    `db:"avg_response_time_secs" json:"avg_response_time_secs"`
	TotalRidesCompleted      int        `db:"total_rides_completed" json:"total_rides_completed"`
	TotalRidesCancelled      int        `db:"total_rides_cancelled" json:"total_rides_cancelled"`
	DailyCancellationCount   int        `db:"daily_cancellation_count" json:"daily_cancellation_count"`
	DailyCancellationResetAt time.Time  `db:"daily_cancellation_reset_at" json:"daily_cancellation_reset_at"`
	CooldownUntil            *time.Time `db:"cooldown_until" json:"cooldown_until,omitempty"`
	UpdatedAt                time.Time  `db:"updated_at" json:"updated_at"`
}

// NewCaptainMetrics returns the fresh row written when a captain profile is
// created.
func NewCaptainMetrics(captainID string, now time.Time) *CaptainMetrics {
	return &CaptainMetrics{
		CaptainID:                captainID,
		AcceptanceRate:           NeutralAcceptanceRate,
		CancellationRate:         NeutralCancellationRate,
		DailyCancellationResetAt: UTCDate(now),
		UpdatedAt:                now,
	}
}

// InCooldown reports whether the captain is under an active cooldown.
func (m *CaptainMetrics) InCooldown(now time.Time) bool {
	return m.CooldownUntil != nil && m.CooldownUntil.After(now)
}

// RollDailyWindow resets the daily cancellation counter when a new UTC day is
// observed. Returns true if a reset happened.
func (m *CaptainMetrics) RollDailyWindow(now time.Time) bool {
	today := UTCDate(now)
	if m.DailyCancellationResetAt.Before(today) {
		m.DailyCancellationCount = 0
		m.DailyCancellationResetAt = today
		return true
	}
	return false
}

// UTCDate truncates a timestamp to its UTC calendar date.
func UTCDate(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
