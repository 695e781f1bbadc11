package billing

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinova-emr/clinova/internal/platform/httpx"
	"github.com/clinova-emr/clinova/internal/shared"
)

// Handler wires the billing REST endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the billing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/patients/{patientID}/billing", h.get)
	r.Post("/patients/{patientID}/billing/generate-invoice", h.generateInvoice)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	acc, err := h.service.Get(r.Context(), patientID)
	if err != nil {
		h.logger.Error("get billing account", slog.String("patient_id", patientID), slog.Any("error", err))
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) generateInvoice(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	acc, err := h.service.GenerateInvoice(r.Context(), patientID, shared.ActorID(r))
	if err != nil {
		h.logger.Error("generate invoice", slog.String("patient_id", patientID), slog.Any("error", err))
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvoiceAlreadyGenerated):
		httpx.Problem(w, http.StatusBadRequest, "Invoice Already Generated", err.Error())
	case errors.Is(err, ErrNegativeAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
