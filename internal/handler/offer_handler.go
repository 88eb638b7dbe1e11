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

type OfferHandler struct {
	offerService service.OfferService
	validate     *validator.Validate
}

func NewOfferHandler(offerService service.OfferService) *OfferHandler {
	return &OfferHandler{
		offerService: offerService,
		validate:     validator.New(),
	}
}

func (h *OfferHandler) RegisterRoutes(r chi.Router) {
	r.Post("/offers/{id}/respond", h.Respond)
}

// POST /v1/offers/{id}/respond
func (h *OfferHandler) Respond(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "offer id is required")
		return
	}

	var req models.OfferResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	view, err := h.offerService.Respond(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	utils.Success(w, http.StatusOK, view)
}
