package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rideon/dispatch/internal/middleware"
	"github.com/rideon/dispatch/internal/models"
	"github.com/rideon/dispatch/internal/service"
	"github.com/rideon/dispatch/pkg/utils"
)

type RideHandler struct {
	rideService         service.RideService
	cancellationService service.CancellationService
	validate            *validator.Validate
}

func NewRideHandler(rideService service.RideService, cancellationService service.CancellationService) *RideHandler {
	return &RideHandler{
		rideService:         rideService,
		cancellationService: cancellationService,
		validate:            validator.New(),
	}
}

func (h *RideHandler) RegisterRoutes(r chi.Router) {
	r.Post("/rides", h.CreateRide)
	r.Get("/rides/{id}", h.GetRide)
	r.Post("/rides/{id}/cancel", h.CancelRide)
}

// POST /v1/rides
func (h *RideHandler) CreateRide(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	idempotencyKey := r.Header.Get(middleware.IdempotencyHeader)

	ride, err := h.rideService.CreateRide(r.Context(), &req, idempotencyKey)
	if err != nil {
		handleError(w, err)
		return
	}
	utils.Created(w, ride)
}

// GET /v1/rides/{id}
func (h *RideHandler) GetRide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "ride id is required")
		return
	}

	ride, err := h.rideService.GetRide(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	utils.Success(w, http.StatusOK, ride)
}

// POST /v1/rides/{id}/cancel
func (h *RideHandler) CancelRide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "ride id is required")
		return
	}

	var req models.CancelRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	result, err := h.cancellationService.Cancel(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	utils.Success(w, http.StatusOK, result)
}
