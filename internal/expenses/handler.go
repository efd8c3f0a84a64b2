package expenses

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/textileflow/textileflow/internal/billing"
	"github.com/textileflow/textileflow/internal/platform/httpx"
	"github.com/textileflow/textileflow/internal/shared"
)

// Handler exposes expense endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/expenses", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/summary", h.summary)
		r.Get("/{id}", h.get)
		r.Delete("/{id}", h.delete)
	})
}

type expenseRequest struct {
	Date        string `json:"date" validate:"required"`
	Category    string `json:"category" validate:"required,max=50"`
	Description string `json:"description" validate:"required,max=255"`
	Amount      string `json:"amount" validate:"required"`
	Method      string `json:"payment_method" validate:"required,oneof=Cash Bank Credit"`
	Notes       string `json:"notes" validate:"max=1000"`
}

type expenseResponse struct {
	ID          int64     `json:"id"`
	Date        time.Time `json:"date"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Method      string    `json:"payment_method"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type categoryTotalResponse struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
	Amount   string `json:"amount"`
}

type summaryResponse struct {
	Total      string                  `json:"total"`
	Count      int64                   `json:"count"`
	ByCategory []categoryTotalResponse `json:"by_category"`
}

func toExpenseResponse(e Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Date:        e.Date,
		Category:    string(e.Category),
		Description: e.Description,
		Amount:      e.Amount.StringFixed(2),
		Method:      string(e.Method),
		Notes:       e.Notes,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", shared.ErrValidation, field)
	}
	return t, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}

	input := Input{
		Category:    Category(req.Category),
		Description: req.Description,
		Method:      billing.PaymentMethod(req.Method),
		Notes:       req.Notes,
	}
	var err error
	if input.Date, err = parseDate("date", req.Date); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if input.Amount, err = decimal.NewFromString(req.Amount); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: amount must be a decimal number", shared.ErrValidation))
		return
	}

	e, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Warn("create expense", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toExpenseResponse(e))
}

func (h *Handler) filterFromQuery(r *http.Request) (ListFilter, error) {
	page := shared.ParsePage(r, 50, 200)
	filter := ListFilter{
		Category: Category(r.URL.Query().Get("category")),
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if filter.From, err = parseDate("from", raw); err != nil {
			return ListFilter{}, err
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if filter.To, err = parseDate("to", raw); err != nil {
			return ListFilter{}, err
		}
	}
	return filter, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := h.filterFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]expenseResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toExpenseResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	filter, err := h.filterFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.Summarize(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := summaryResponse{
		Total:      summary.Total.StringFixed(2),
		Count:      summary.Count,
		ByCategory: make([]categoryTotalResponse, 0, len(summary.ByCategory)),
	}
	for _, ct := range summary.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryTotalResponse{
			Category: string(ct.Category),
			Count:    ct.Count,
			Amount:   ct.Amount.StringFixed(2),
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toExpenseResponse(e))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", shared.ErrValidation)
	}
	return id, nil
}
