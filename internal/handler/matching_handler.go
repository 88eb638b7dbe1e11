package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rideon/dispatch/internal/models"
	"github.com/rideon/dispatch/internal/service"
	"github.com/rideon/dispatch/pkg/utils"
)

type MatchingHandler struct {
	dispatchService service.DispatchService
	validate        *validator.Validate
}

func NewMatchingHandler(dispatchService service.DispatchService) *MatchingHandler {
	return &MatchingHandler{
		dispatchService: dispatchService,
		validate:        validator.New(),
	}
}

func (h *MatchingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/matching", h.Match)
}

// POST /v1/matching
//
// One matching attempt for the ride. The response carries either the
// assignment or a retry/exhausted signal; the caller owns the retry cadence.
func (h *MatchingHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	result, err := h.dispatchService.Match(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	utils.Success(w, http.StatusOK, result)
}
