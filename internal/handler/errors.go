package handler

import (
	"net/http"

	apperrors "github.com/rideon/dispatch/internal/errors"
	"github.com/rideon/dispatch/pkg/utils"
)

func handleError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*apperrors.APIError); ok {
		utils.Error(w, apiErr)
		return
	}

	switch err {
	case apperrors.ErrNotFound:
		utils.NotFound(w, "resource")
	case apperrors.ErrOfferExpired:
		utils.Error(w, apperrors.OfferExpired())
	case apperrors.ErrRiderHasActiveRide:
		utils.Error(w, apperrors.RiderHasActiveRide())
	case apperrors.ErrCaptainInCooldown:
		utils.Error(w, apperrors.CaptainInCooldown())
	case apperrors.ErrInvalidTransition:
		utils.Error(w, apperrors.InvalidState("operation is not valid for the current state"))
	default:
		utils.InternalError(w, "internal server error")
	}
}
