package reports

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/textileflow/textileflow/internal/platform/httpx"
	"github.com/textileflow/textileflow/internal/shared"
)

// Handler exposes report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/summary", h.summary)
		r.Get("/vendors/{id}/ledger.csv", h.vendorLedgerCSV)
		r.Get("/customers/{id}/ledger.csv", h.customerLedgerCSV)
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now.AddDate(0, -12, 0)
	to := now
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: from must be YYYY-MM-DD", shared.ErrValidation))
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: to must be YYYY-MM-DD", shared.ErrValidation))
			return
		}
	}

	summary, err := h.service.BuildSummary(r.Context(), from, to)
	if err != nil {
		h.logger.Error("build summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) vendorLedgerCSV(w http.ResponseWriter, r *http.Request) {
	h.ledgerCSV(w, r, KindVendor)
}

func (h *Handler) customerLedgerCSV(w http.ResponseWriter, r *http.Request) {
	h.ledgerCSV(w, r, KindCustomer)
}

func (h *Handler) ledgerCSV(w http.ResponseWriter, r *http.Request, kind LedgerKind) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid id", shared.ErrValidation))
		return
	}

	payload, err := h.service.LedgerCSV(r.Context(), kind, id)
	if err != nil {
		h.logger.Error("ledger csv", slog.String("kind", string(kind)), slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	filename := fmt.Sprintf("%s-%d-ledger.csv", kind, id)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		h.logger.Warn("write csv response", slog.Any("error", err))
	}
}
