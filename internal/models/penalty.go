package models

import (
	"time"
)

// Penalty types
const (
	PenaltyTypeFee      = "fee"
	PenaltyTypeCooldown = "cooldown"
	PenaltyTypeWarning  = "warning"
)

const (
	// DailyCancellationLimit is the captain cancellation count at which a
	// cooldown rule takes effect.
	DailyCancellationLimit = 3

	// DefaultCooldownMinutes applies when a cooldown rule has no explicit
	// duration.
	DefaultCooldownMinutes = 30
)

// CancellationPenalty is one row of the externally editable penalty matrix,
// keyed by (city, actor, ride status, elapsed-time window).
type CancellationPenalty struct {
	ID                        int64    `db:"id" json:"id"`
	City                      string   `db:"city" json:"city"`
	CancelledBy               string   `db:"cancelled_by" json:"cancelled_by"`
	RideStatus                string   `db:"ride_status" json:"ride_status"`
	MinTimeAfterMatchSeconds  int      `db:"min_time_after_match_seconds" json:"min_time_after_match_seconds"`
	MaxTimeAfterMatchSeconds  *int     `db:"max_time_after_match_seconds" json:"max_time_after_match_seconds,omitempty"`
	PenaltyAmount             float64  `db:"penalty_amount" json:"penalty_amount"`
	PenaltyType               string   `db:"penalty_type" json:"penalty_type"`
	CooldownMinutes           *int     `db:"cooldown_minutes" json:"cooldown_minutes,omitempty"`
}

// Contains reports whether elapsed falls inside the rule's [min, max) window.
// A nil max means unbounded.
func (p *CancellationPenalty) Contains(elapsed time.Duration) bool {
	secs := int(elapsed / time.Second)
	if secs < p.MinTimeAfterMatchSeconds {
		return false
	}
	return p.MaxTimeAfterMatchSeconds == nil || secs < *p.MaxTimeAfterMatchSeconds
}

// windowWidth is the rule's window size in seconds; unbounded windows sort
// after every bounded one.
func (p *CancellationPenalty) windowWidth() int {
	if p.MaxTimeAfterMatchSeconds == nil {
		return int(^uint(0) >> 1)
	}
	return *p.MaxTimeAfterMatchSeconds - p.MinTimeAfterMatchSeconds
}

// CooldownDuration returns the rule's cooldown span, falling back to the
// default when the row leaves it unset.
func (p *CancellationPenalty) CooldownDuration() time.Duration {
	mins := DefaultCooldownMinutes
	if p.CooldownMinutes != nil && *p.CooldownMinutes > 0 {
		mins = *p.CooldownMinutes
	}
	return time.Duration(mins) * time.Minute
}

// SelectPenaltyRule picks the penalty rule for a cancellation. City-specific
// rows beat default-city rows; among matches the narrowest window wins, then
// the lower window start, then the lowest row id. The matrix has no documented
// tie-break for overlapping windows, so the order here is the engine's own
// deterministic choice.
func SelectPenaltyRule(rules []CancellationPenalty, city string, elapsed time.Duration) *CancellationPenalty {
	var best *CancellationPenalty
	for i := range rules {
		r := &rules[i]
		if !r.Contains(elapsed) {
			continue
		}
		if best == nil || ruleLess(r, best, city) {
			best = r
		}
	}
	return best
}

func ruleLess(a, b *CancellationPenalty, city string) bool {
	aCity, bCity := a.City == city, b.City == city
	if aCity != bCity {
		return aCity
	}
	if aw, bw := a.windowWidth(), b.windowWidth(); aw != bw {
		return aw < bw
	}
	if a.MinTimeAfterMatchSeconds != b.MinTimeAfterMatchSeconds {
		return a.MinTimeAfterMatchSeconds < b.MinTimeAfterMatchSeconds
	}
	return a.ID < b.ID
}
