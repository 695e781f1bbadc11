package pharmacy

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clinova-emr/clinova/internal/catalog"
	"github.com/clinova-emr/clinova/internal/patients"
	"github.com/clinova-emr/clinova/internal/platform/httpx"
	"github.com/clinova-emr/clinova/internal/shared"
	"github.com/clinova-emr/clinova/internal/stock"
)

// Handler wires the dispensation and walk-in sale endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	patients PatientPort
	validate *validator.Validate
}

// NewHandler constructs the pharmacy handler.
func NewHandler(logger *slog.Logger, service *Service, patientDir PatientPort) *Handler {
	return &Handler{logger: logger, service: service, patients: patientDir, validate: validator.New()}
}

// MountRoutes registers pharmacy routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/patients/{patientID}/pharmacy", func(r chi.Router) {
		r.Use(h.requirePatient)
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Patch("/{id}/mark-as-paid", h.markPaid)
		r.Get("/{id}/download-receipt", h.downloadReceipt)
	})
	r.Post("/walkin-sale", h.walkInSale)
	r.Get("/walkin-sale/{receiptNumber}/receipt", h.reprintWalkInReceipt)
}

// requirePatient rejects unknown patient keys at the router so the
// transaction core can trust them.
func (h *Handler) requirePatient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		patientID := chi.URLParam(r, "patientID")
		if _, err := h.patients.Lookup(r.Context(), patientID); err != nil {
			if errors.Is(err, patients.ErrNotFound) {
				httpx.Problem(w, http.StatusNotFound, "Not Found", "patient not found")
				return
			}
			h.logger.Error("patient lookup", slog.String("patient_id", patientID), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListForPatient(r.Context(), chi.URLParam(r, "patientID"))
	if err != nil {
		h.logger.Error("list dispensations", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if records == nil {
		records = []DispensationRecord{}
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Get(r.Context(), patientID, id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")

	var req createDispensationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	rec, err := h.service.CreateDispensation(r.Context(), patientID, req.fields(), req.lines(), shared.ActorID(r))
	if err != nil {
		h.logger.Error("create dispensation", slog.String("patient_id", patientID), slog.Any("error", err))
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	var req updateDispensationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if len(req.DrugOrders) > 0 || req.Total != nil || req.IsPaid != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", ErrLineItemsImmutable.Error())
		return
	}

	rec, err := h.service.UpdateDispensation(r.Context(), patientID, id, UpdateInput{
		MedicationName:   req.MedicationName,
		DosageAndRoute:   req.DosageAndRoute,
		Frequency:        req.Frequency,
		DispensationDate: req.DispensationDate,
	}, shared.ActorID(r))
	if err != nil {
		h.logger.Error("update dispensation", slog.Int64("id", id), slog.Any("error", err))
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDispensation(r.Context(), patientID, id, shared.ActorID(r)); err != nil {
		h.logger.Error("delete dispensation", slog.Int64("id", id), slog.Any("error", err))
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.MarkPaid(r.Context(), patientID, id, shared.ActorID(r))
	if err != nil {
		h.logger.Error("mark paid", slog.Int64("id", id), slog.Any("error", err))
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) downloadReceipt(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	pdf, filename, err := h.service.RenderReceipt(r.Context(), patientID, id, shared.ActorID(r))
	if err != nil {
		h.logger.Error("render receipt", slog.Int64("id", id), slog.Any("error", err))
		h.respondErr(w, err)
		return
	}
	servePDF(w, filename, pdf)
}

func (h *Handler) walkInSale(w http.ResponseWriter, r *http.Request) {
	var req walkInSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	rec, pdf, err := h.service.CreateWalkInSale(r.Context(), req.CustomerName, req.lines(), shared.ActorID(r))
	if err != nil {
		h.logger.Error("walk-in sale", slog.Any("error", err))
		h.respondErr(w, err)
		return
	}
	servePDF(w, fmt.Sprintf("receipt_%s.pdf", rec.ReceiptNumber), pdf)
}

func (h *Handler) reprintWalkInReceipt(w http.ResponseWriter, r *http.Request) {
	receiptNumber := chi.URLParam(r, "receiptNumber")
	pdf, err := h.service.ReprintWalkInReceipt(r.Context(), receiptNumber)
	if err != nil {
		h.logger.Error("reprint walk-in receipt", slog.String("receipt_number", receiptNumber), slog.Any("error", err))
		h.respondErr(w, err)
		return
	}
	servePDF(w, fmt.Sprintf("receipt_%s.pdf", receiptNumber), pdf)
}

func servePDF(w http.ResponseWriter, filename string, pdf []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid record id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	var insufficient *stock.InsufficientStockError
	var itemMissing *ItemNotFoundError
	switch {
	case errors.As(err, &insufficient):
		httpx.ProblemWithMeta(w, http.StatusBadRequest, "Insufficient Stock", insufficient.Error(), map[string]any{
			"drug_id":   insufficient.ItemID,
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
	case errors.As(err, &itemMissing):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", itemMissing.Error())
	case errors.Is(err, stock.ErrStockNotFound):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "no stock entry for requested drug")
	case errors.Is(err, catalog.ErrNotFound):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrRecordNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyPaid), errors.Is(err, ErrNotPaid),
		errors.Is(err, ErrNoLines), errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrLineItemsImmutable):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
