package models

import (
	"fmt"
	"time"
)

// DefaultCity is the fallback key for city-scoped configuration rows.
const DefaultCity = "default"

// MatchingConfig is an externally editable per-city tuning row. The engine
// reads the current values on every request; nothing is cached.
type MatchingConfig struct {
	City                       string  `db:"city" json:"city"`
	InitialRadiusKm            float64 `db:"initial_radius_km" json:"initial_radius_km"`
	MaxRadiusKm                float64 `db:"max_radius_km" json:"max_radius_km"`
	RadiusExpansionStepKm      float64 `db:"radius_expansion_step_km" json:"radius_expansion_step_km"`
	OfferTimeoutSeconds        int     `db:"offer_timeout_seconds" json:"offer_timeout_seconds"`
	MaxOffersPerRide           int     `db:"max_offers_per_ride" json:"max_offers_per_ride"`
	MaxRetryAttempts           int     `db:"max_retry_attempts" json:"max_retry_attempts"`
	WeightETA                  float64 `db:"weight_eta" json:"weight_eta"`
	WeightAcceptance           float64 `db:"weight_acceptance" json:"weight_acceptance"`
	WeightRating               float64 `db:"weight_rating" json:"weight_rating"`
	WeightCancellation         float64 `db:"weight_cancellation" json:"weight_cancellation"`
	CaptainDelayThresholdMins  int     `db:"captain_delay_threshold_mins" json:"captain_delay_threshold_mins"`
}

// DefaultMatchingConfig is the compiled-in last resort when no row exists for
// either the ride's city or the default city.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		City:                      DefaultCity,
		InitialRadiusKm:           1.5,
		MaxRadiusKm:               5.0,
		RadiusExpansionStepKm:     1.0,
		OfferTimeoutSeconds:       30,
		MaxOffersPerRide:          3,
		MaxRetryAttempts:          5,
		WeightETA:                 0.4,
		WeightAcceptance:          0.2,
		WeightRating:              0.2,
		WeightCancellation:        0.2,
		CaptainDelayThresholdMins: 5,
	}
}

// Validate rejects rows a misconfigured admin console could produce. The raw
// row is untrusted data, not code.
func (c *MatchingConfig) Validate() error {
	if c.InitialRadiusKm <= 0 {
		return fmt.Errorf("matching config %q: initial_radius_km must be positive", c.City)
	}
	if c.MaxRadiusKm < c.InitialRadiusKm {
		return fmt.Errorf("matching config %q: max_radius_km below initial_radius_km", c.City)
	}
	if c.RadiusExpansionStepKm <= 0 {
		return fmt.Errorf("matching config %q: radius_expansion_step_km must be positive", c.City)
	}
	if c.OfferTimeoutSeconds <= 0 {
		return fmt.Errorf("matching config %q: offer_timeout_seconds must be positive", c.City)
	}
	if c.MaxOffersPerRide <= 0 || c.MaxRetryAttempts <= 0 {
		return fmt.Errorf("matching config %q: offer/retry limits must be positive", c.City)
	}
	for name, w := range map[string]float64{
		"weight_eta":          c.WeightETA,
		"weight_acceptance":   c.WeightAcceptance,
		"weight_rating":       c.WeightRating,
		"weight_cancellation": c.WeightCancellation,
	} {
		if w < 0 {
			return fmt.Errorf("matching config %q: %s must not be negative", c.City, name)
		}
	}
	return nil
}

// OfferTimeout returns the offer validity window as a duration.
func (c *MatchingConfig) OfferTimeout() time.Duration {
	return time.Duration(c.OfferTimeoutSeconds) * time.Second
}

// NextRadiusKm steps the search radius for a retry attempt, capped at the
// configured maximum. The radius never decreases.
func (c *MatchingConfig) NextRadiusKm(current float64) float64 {
	next := current + c.RadiusExpansionStepKm
	if next > c.MaxRadiusKm {
		next = c.MaxRadiusKm
	}
	if next < current {
		return current
	}
	return next
}
