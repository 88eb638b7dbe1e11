package models

import (
	"time"

	"github.com/lib/pq"
)

// Ride status constants
const (
	RideStatusPending        = "pending"
	RideStatusSearching      = "searching"
	RideStatusMatched        = "matched"
	RideStatusCaptainArriving = "captain_arriving"
	RideStatusWaitingForRider = "waiting_for_rider"
	RideStatusInProgress     = "in_progress"
	RideStatusCompleted      = "completed"
	RideStatusCancelled      = "cancelled"
)

// Cancellation actors
const (
	CancelledByRider   = "rider"
	CancelledByCaptain = "captain"
)

// Valid ride state transitions
var ValidRideTransitions = map[string][]string{
	RideStatusPending:         {RideStatusSearching, RideStatusCancelled},
	RideStatusSearching:       {RideStatusMatched, RideStatusSearching},
	RideStatusMatched:         {RideStatusSearching, RideStatusCaptainArriving, RideStatusCancelled},
	RideStatusCaptainArriving: {RideStatusWaitingForRider, RideStatusCancelled},
	RideStatusWaitingForRider: {RideStatusInProgress, RideStatusCancelled},
	RideStatusInProgress:      {RideStatusCompleted},
	RideStatusCompleted:       {},
	RideStatusCancelled:       {},
}

// cancellableStatuses is the set of statuses a ride may be cancelled from.
var cancellableStatuses = map[string]bool{
	RideStatusPending:         true,
	RideStatusMatched:         true,
	RideStatusCaptainArriving: true,
	RideStatusWaitingForRider: true,
}

type Ride struct {
	ID                  string         `db:"id" json:"id"`
	RiderID             string         `db:"rider_id" json:"rider_id"`
	CaptainID           *string        `db:"captain_id" json:"captain_id,omitempty"`
	VehicleID           *string        `db:"vehicle_id" json:"vehicle_id,omitempty"`
	PickupLat           float64        `db:"pickup_lat" json:"pickup_lat"`
	PickupLng           float64        `db:"pickup_lng" json:"pickup_lng"`
	DropLat             float64        `db:"drop_lat" json:"drop_lat"`
	DropLng             float64        `db:"drop_lng" json:"drop_lng"`
	VehicleType         string         `db:"vehicle_type" json:"vehicle_type"`
	City                string         `db:"city" json:"city"`
	Status              string         `db:"status" json:"status"`
	ExcludedCaptainIDs  pq.StringArray `db:"excluded_captain_ids" json:"excluded_captain_ids"`
	CurrentRadiusKm     float64        `db:"current_radius_km" json:"current_radius_km"`
	MatchingAttempts    int            `db:"matching_attempts" json:"matching_attempts"`
	OTP                 *string        `db:"otp" json:"otp,omitempty"`
	EstimatedFare       *float64       `db:"estimated_fare" json:"estimated_fare,omitempty"`
	EstimatedDistanceKm *float64       `db:"estimated_distance_km" json:"estimated_distance_km,omitempty"`
	EstimatedDurationMin *int          `db:"estimated_duration_mins" json:"estimated_duration_mins,omitempty"`
	MatchedAt           *time.Time     `db:"matched_at" json:"matched_at,omitempty"`
	CancellationFee     *float64       `db:"cancellation_fee" json:"cancellation_fee,omitempty"`
	CancelledBy         *string        `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason  *string        `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledAt         *time.Time     `db:"cancelled_at" json:"cancelled_at,omitempty"`
	IdempotencyKey      *string        `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

type Location struct {
	Lat float64 `json:"lat" validate:"required,latitude"`
	Lng float64 `json:"lng" validate:"required,longitude"`
}

type CreateRideRequest struct {
	RiderID              string   `json:"rider_id" validate:"required,uuid"`
	Pickup               Location `json:"pickup" validate:"required"`
	Drop                 Location `json:"drop" validate:"required"`
	VehicleType          string   `json:"vehicle_type" validate:"required,oneof=bike auto mini sedan suv"`
	City                 string   `json:"city,omitempty"`
	EstimatedFare        float64  `json:"estimated_fare" validate:"gte=0"`
	EstimatedDistanceKm  float64  `json:"estimated_distance_km" validate:"gte=0"`
	EstimatedDurationMin int      `json:"estimated_duration_mins" validate:"gte=0"`
}

// MatchRideRequest is the dispatch entrypoint payload. Pickup and estimates
// are carried on the request so the caller stays the source of truth for the
// pricing collaborator's opaque outputs.
type MatchRideRequest struct {
	RideID               string  `json:"ride_id" validate:"required,uuid"`
	PickupLat            float64 `json:"pickup_lat" validate:"latitude"`
	PickupLng            float64 `json:"pickup_lng" validate:"longitude"`
	VehicleType          string  `json:"vehicle_type" validate:"required,oneof=bike auto mini sedan suv"`
	City                 string  `json:"city,omitempty"`
	EstimatedFare        float64 `json:"estimated_fare" validate:"gte=0"`
	EstimatedDistanceKm  float64 `json:"estimated_distance_km" validate:"gte=0"`
	EstimatedDurationMin int     `json:"estimated_duration_mins" validate:"gte=0"`
}

type MatchResult struct {
	Matched         bool             `json:"matched"`
	Captain         *CaptainResponse `json:"captain,omitempty"`
	OTP             string           `json:"otp,omitempty"`
	ExpiresAt       *time.Time       `json:"expires_at,omitempty"`
	Retry           bool             `json:"retry"`
	CurrentRadiusKm float64          `json:"current_radius_km,omitempty"`
	Message         string           `json:"message"`
}

type CancelRideRequest struct {
	CancelledBy string `json:"cancelled_by" validate:"required,oneof=rider captain"`
	UserID      string `json:"user_id" validate:"required"`
	CaptainID   string `json:"captain_id,omitempty" validate:"omitempty,uuid"`
	Reason      string `json:"reason,omitempty"`
}

type CancelRideResult struct {
	Success         bool    `json:"success"`
	CancellationFee float64 `json:"cancellation_fee"`
	PenaltyType     string  `json:"penalty_type"`
	Message         string  `json:"message"`
}

type RideResponse struct {
	ID                   string           `json:"id"`
	Status               string           `json:"status"`
	Captain              *CaptainResponse `json:"captain,omitempty"`
	Pickup               Location         `json:"pickup"`
	Drop                 Location         `json:"drop"`
	VehicleType          string           `json:"vehicle_type"`
	City                 string           `json:"city"`
	OTP                  *string          `json:"otp,omitempty"`
	EstimatedFare        *float64         `json:"estimated_fare,omitempty"`
	EstimatedDistanceKm  *float64         `json:"estimated_distance_km,omitempty"`
	EstimatedDurationMin *int             `json:"estimated_duration_mins,omitempty"`
	CurrentRadiusKm      float64          `json:"current_radius_km"`
	MatchingAttempts     int              `json:"matching_attempts"`
	MatchedAt            *time.Time       `json:"matched_at,omitempty"`
	CancellationFee      *float64         `json:"cancellation_fee,omitempty"`
	CancelledBy          *string          `json:"cancelled_by,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

func (r *Ride) ToResponse() *RideResponse {
	return &RideResponse{
		ID:                   r.ID,
		Status:               r.Status,
		Pickup:               Location{Lat: r.PickupLat, Lng: r.PickupLng},
		Drop:                 Location{Lat: r.DropLat, Lng: r.DropLng},
		VehicleType:          r.VehicleType,
		City:                 r.City,
		OTP:                  r.OTP,
		EstimatedFare:        r.EstimatedFare,
		EstimatedDistanceKm:  r.EstimatedDistanceKm,
		EstimatedDurationMin: r.EstimatedDurationMin,
		CurrentRadiusKm:      r.CurrentRadiusKm,
		MatchingAttempts:     r.MatchingAttempts,
		MatchedAt:            r.MatchedAt,
		CancellationFee:      r.CancellationFee,
		CancelledBy:          r.CancelledBy,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

// CanTransitionTo checks if a ride can move to a new status.
func (r *Ride) CanTransitionTo(newStatus string) bool {
	validNextStates, exists := ValidRideTransitions[r.Status]
	if !exists {
		return false
	}
	for _, state := range validNextStates {
		if state == newStatus {
			return true
		}
	}
	return false
}

// IsCancellable reports whether a cancellation request is valid for the
// ride's current status.
func (r *Ride) IsCancellable() bool {
	return cancellableStatuses[r.Status]
}

// IsMatchable reports whether a matching attempt may run for the ride.
func (r *Ride) IsMatchable() bool {
	return r.Status == RideStatusPending || r.Status == RideStatusSearching
}

// IsExcluded reports whether the captain has already produced a terminal
// non-accept response for this ride.
func (r *Ride) IsExcluded(captainID string) bool {
	for _, id := range r.ExcludedCaptainIDs {
		if id == captainID {
			return true
		}
	}
	return false
}

// IsActive returns true if the ride is not in a terminal state.
func (r *Ride) IsActive() bool {
	return r.Status != RideStatusCompleted && r.Status != RideStatusCancelled
}
