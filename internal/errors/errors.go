package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource conflict")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Business errors
	ErrCaptainUnavailable = errors.New("captain no longer available")
	ErrRideNotMatchable   = errors.New("ride is not in a matchable state")
	ErrOfferInFlight      = errors.New("ride already has a pending offer")
	ErrOfferExpired       = errors.New("offer expired")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrRiderHasActiveRide = errors.New("rider already has an active ride")
	ErrCaptainInCooldown  = errors.New("captain is under an active cooldown")
)

// APIError is the structured error surfaced to callers. Internal detail never
// crosses this boundary; it stays in logs.
type APIError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(code, message string, statusCode int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func NotFound(resource string) *APIError {
	return NewAPIError("not_found", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func BadRequest(message string) *APIError {
	return NewAPIError("bad_request", message, http.StatusBadRequest)
}

func Conflict(message string) *APIError {
	return NewAPIError("conflict", message, http.StatusConflict)
}

func InternalError(message string) *APIError {
	return NewAPIError("internal_error", message, http.StatusInternalServerError)
}

// InvalidState covers operations that are not valid for the current
// ride/offer status.
func InvalidState(message string) *APIError {
	return NewAPIError("invalid_state", message, http.StatusConflict)
}

func InvalidTransition(from, to string) *APIError {
	return NewAPIError("invalid_transition", fmt.Sprintf("cannot transition from %s to %s", from, to), http.StatusConflict)
}

func OfferExpired() *APIError {
	return NewAPIError("offer_expired", "this offer has expired", http.StatusGone)
}

func OfferNotForCaptain() *APIError {
	return NewAPIError("forbidden", "offer does not belong to this captain", http.StatusForbidden)
}

func RiderHasActiveRide() *APIError {
	return NewAPIError("active_ride_exists", "rider already has an active ride", http.StatusConflict)
}

func CaptainInCooldown() *APIError {
	return NewAPIError("captain_in_cooldown", "captain is temporarily suspended from going online", http.StatusConflict)
}
