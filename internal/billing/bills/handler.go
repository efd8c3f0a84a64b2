package bills

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

// Handler exposes bill endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers bill routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/bills", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/overdue", h.listOverdue)
		r.Get("/{id}", h.get)
		r.Post("/{id}/payments", h.addPayment)
	})
}

type lineRequest struct {
	InventoryItemID int64  `json:"inventory_item_id" validate:"required,gt=0"`
	Meters          string `json:"meters" validate:"required"`
	UnitPrice       string `json:"unit_price" validate:"required"`
}

type createRequest struct {
	VendorID int64         `json:"vendor_id" validate:"required,gt=0"`
	Date     string        `json:"date" validate:"required"`
	DueDate  string        `json:"due_date" validate:"required"`
	Notes    string        `json:"notes" validate:"max=1000"`
	Lines    []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type paymentRequest struct {
	Amount         string `json:"amount" validate:"required"`
	Method         string `json:"method" validate:"required,oneof=Cash Bank Credit"`
	Date           string `json:"date" validate:"required"`
	BankName       string `json:"bank_name" validate:"max=200"`
	TransactionID  string `json:"transaction_id" validate:"max=100"`
	IdempotencyKey string `json:"idempotency_key" validate:"max=100"`
}

type lineResponse struct {
	ID              int64  `json:"id"`
	InventoryItemID int64  `json:"inventory_item_id"`
	FabricType      string `json:"fabric_type"`
	LotNumber       string `json:"lot_number"`
	Meters          string `json:"meters"`
	UnitPrice       string `json:"unit_price"`
	Subtotal        string `json:"subtotal"`
}

type paymentResponse struct {
	ID            int64     `json:"id"`
	Reference     string    `json:"reference"`
	Date          time.Time `json:"date"`
	Amount        string    `json:"amount"`
	Method        string    `json:"method"`
	BankName      string    `json:"bank_name,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
}

type billResponse struct {
	ID         int64     `json:"id"`
	Number     string    `json:"number"`
	VendorID   int64     `json:"vendor_id"`
	VendorName string    `json:"vendor_name"`
	Date       time.Time `json:"date"`
	DueDate    time.Time `json:"due_date"`
	Status     string    `json:"status"`
	Total      string    `json:"total"`
	AmountPaid string    `json:"amount_paid"`
	BalanceDue string    `json:"balance_due"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type billDetailResponse struct {
	billResponse
	Lines    []lineResponse    `json:"lines"`
	Payments []paymentResponse `json:"payments"`
}

func toBillResponse(b Bill) billResponse {
	return billResponse{
		ID:         b.ID,
		Number:     b.Number,
		VendorID:   b.VendorID,
		VendorName: b.VendorName,
		Date:       b.Date,
		DueDate:    b.DueDate,
		Status:     string(b.Status),
		Total:      b.Total.StringFixed(2),
		AmountPaid: b.AmountPaid.StringFixed(2),
		BalanceDue: b.BalanceDue().StringFixed(2),
		Notes:      b.Notes,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func toDetailResponse(d BillWithDetails) billDetailResponse {
	out := billDetailResponse{
		billResponse: toBillResponse(d.Bill),
		Lines:        make([]lineResponse, 0, len(d.Lines)),
		Payments:     make([]paymentResponse, 0, len(d.Payments)),
	}
	for _, l := range d.Lines {
		out.Lines = append(out.Lines, lineResponse{
			ID:              l.ID,
			InventoryItemID: l.InventoryItemID,
			FabricType:      l.FabricType,
			LotNumber:       l.LotNumber,
			Meters:          l.Meters.StringFixed(2),
			UnitPrice:       l.UnitPrice.StringFixed(2),
			Subtotal:        l.Subtotal.StringFixed(2),
		})
	}
	for _, p := range d.Payments {
		out.Payments = append(out.Payments, paymentResponse{
			ID:            p.ID,
			Reference:     p.Reference,
			Date:          p.Date,
			Amount:        p.Amount.StringFixed(2),
			Method:        string(p.Method),
			BankName:      p.BankName,
			TransactionID: p.TransactionID,
		})
	}
	return out
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s must be a decimal number", shared.ErrValidation, field)
	}
	return d, nil
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", shared.ErrValidation, field)
	}
	return t, nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", shared.ErrValidation)
	}
	return id, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}

	input := CreateBillInput{VendorID: req.VendorID, Notes: req.Notes}
	var err error
	if input.Date, err = parseDate("date", req.Date); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if input.DueDate, err = parseDate("due_date", req.DueDate); err != nil {
		httpx.RespondError(w, err)
		return
	}
	for i, lr := range req.Lines {
		line := CreateLineInput{InventoryItemID: lr.InventoryItemID}
		if line.Meters, err = parseAmount(fmt.Sprintf("lines[%d].meters", i), lr.Meters); err != nil {
			httpx.RespondError(w, err)
			return
		}
		if line.UnitPrice, err = parseAmount(fmt.Sprintf("lines[%d].unit_price", i), lr.UnitPrice); err != nil {
			httpx.RespondError(w, err)
			return
		}
		input.Lines = append(input.Lines, line)
	}

	detail, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Warn("create bill", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDetailResponse(detail))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 50, 200)
	req := ListRequest{
		Status: billing.Status(r.URL.Query().Get("status")),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	if raw := r.URL.Query().Get("vendor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.RespondError(w, fmt.Errorf("%w: invalid vendor_id", shared.ErrValidation))
			return
		}
		req.VendorID = id
	}

	list, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]billResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBillResponse(b))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listOverdue(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := parseDate("as_of", raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		asOf = t
	}
	list, err := h.service.ListOverdue(r.Context(), asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]billResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBillResponse(b))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDetailResponse(detail))
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}

	input := AddPaymentInput{
		BillID:         id,
		IdempotencyKey: req.IdempotencyKey,
		Payment: billing.PaymentInput{
			Method:        billing.PaymentMethod(req.Method),
			BankName:      req.BankName,
			TransactionID: req.TransactionID,
		},
	}
	if input.Payment.Amount, err = parseAmount("amount", req.Amount); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if input.Payment.Date, err = parseDate("date", req.Date); err != nil {
		httpx.RespondError(w, err)
		return
	}

	bill, err := h.service.AddPayment(r.Context(), input)
	if err != nil {
		h.logger.Warn("add bill payment", slog.Int64("bill_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toBillResponse(bill))
}
