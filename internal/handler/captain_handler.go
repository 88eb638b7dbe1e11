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

type CaptainHandler struct {
	captainService service.CaptainService
	offerService   service.OfferService
	validate       *validator.Validate
}

func NewCaptainHandler(captainService service.CaptainService, offerService service.OfferService) *CaptainHandler {
	return &CaptainHandler{
		captainService: captainService,
		offerService:   offerService,
		validate:       validator.New(),
	}
}

func (h *CaptainHandler) RegisterRoutes(r chi.Router) {
	r.Post("/captains", h.CreateCaptain)
	r.Get("/captains/{id}", h.GetCaptain)
	r.Post("/captains/{id}/location", h.UpdateLocation)
	r.Post("/captains/{id}/online", h.GoOnline)
	r.Post("/captains/{id}/offline", h.GoOffline)
	r.Get("/captains/{id}/offers", h.PendingOffers)
}

// POST /v1/captains
func (h *CaptainHandler) CreateCaptain(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCaptainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	captain, err := h.captainService.CreateCaptain(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	utils.Created(w, captain.ToResponse())
}

// GET /v1/captains/{id}
func (h *CaptainHandler) GetCaptain(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "captain id is required")
		return
	}

	captain, err := h.captainService.GetCaptain(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	utils.Success(w, http.StatusOK, captain.ToResponse())
}

// POST /v1/captains/{id}/location
func (h *CaptainHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "captain id is required")
		return
	}

	var req models.UpdateCaptainLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	if err := h.captainService.UpdateLocation(r.Context(), id, &req); err != nil {
		handleError(w, err)
		return
	}
	utils.Success(w, http.StatusOK, map[string]string{"status": "updated"})
}

// POST /v1/captains/{id}/online
func (h *CaptainHandler) GoOnline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "captain id is required")
		return
	}

	if err := h.captainService.GoOnline(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	utils.Success(w, http.StatusOK, map[string]string{"status": models.CaptainStatusOnline})
}

// POST /v1/captains/{id}/offline
func (h *CaptainHandler) GoOffline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "captain id is required")
		return
	}

	if err := h.captainService.GoOffline(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	utils.Success(w, http.StatusOK, map[string]string{"status": models.CaptainStatusOffline})
}

// GET /v1/captains/{id}/offers
func (h *CaptainHandler) PendingOffers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "captain id is required")
		return
	}

	offers, err := h.offerService.GetPendingForCaptain(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	utils.Success(w, http.StatusOK, offers)
}
