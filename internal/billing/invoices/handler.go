package invoices

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/textileflow/textileflow/internal/billing"
	"github.com/textileflow/textileflow/internal/platform/httpx"
	"github.com/textileflow/textileflow/internal/shared"
)

// Handler exposes invoice endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/overdue", h.listOverdue)
		r.Get("/{id}", h.get)
		r.Post("/{id}/payments", h.addPayment)
		r.Post("/{id}/commission/settle", h.settleCommission)
	})
}

type lineRequest struct {
	InventoryItemID int64  `json:"inventory_item_id" validate:"required,gt=0"`
	Meters          string `json:"meters" validate:"required"`
	UnitPrice       string `json:"unit_price" validate:"required"`
}

type createRequest struct {
	CustomerID      int64         `json:"customer_id" validate:"required,gt=0"`
	BrokerID        *int64        `json:"broker_id" validate:"omitempty,gt=0"`
	CommissionType  string        `json:"commission_type" validate:"omitempty,oneof=Percentage Fixed"`
	CommissionValue string        `json:"commission_value"`
	Date            string        `json:"date" validate:"required"`
	DueDate         string        `json:"due_date" validate:"required"`
	Notes           string        `json:"notes" validate:"max=1000"`
	Lines           []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type paymentRequest struct {
	Amount         string `json:"amount" validate:"required"`
	Method         string `json:"method" validate:"required,oneof=Cash Bank Credit"`
	Date           string `json:"date" validate:"required"`
	BankName       string `json:"bank_name" validate:"max=200"`
	TransactionID  string `json:"transaction_id" validate:"max=100"`
	IdempotencyKey string `json:"idempotency_key" validate:"max=100"`
}

type settleRequest struct {
	Amount string `json:"amount" validate:"required"`
	Method string `json:"method" validate:"required,oneof=Cash Bank Credit"`
	Date   string `json:"date" validate:"required"`
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

type commissionPaymentResponse struct {
	ID     int64     `json:"id"`
	Date   time.Time `json:"date"`
	Amount string    `json:"amount"`
	Method string    `json:"method"`
}

type invoiceResponse struct {
	ID               int64     `json:"id"`
	Number           string    `json:"number"`
	CustomerID       int64     `json:"customer_id"`
	CustomerName     string    `json:"customer_name"`
	BrokerID         *int64    `json:"broker_id,omitempty"`
	BrokerName       string    `json:"broker_name,omitempty"`
	Date             time.Time `json:"date"`
	DueDate          time.Time `json:"due_date"`
	Status           string    `json:"status"`
	Total            string    `json:"total"`
	AmountPaid       string    `json:"amount_paid"`
	BalanceDue       string    `json:"balance_due"`
	CommissionType   string    `json:"commission_type,omitempty"`
	CommissionAmount string    `json:"commission_amount"`
	CommissionPaid   string    `json:"commission_paid"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type invoiceDetailResponse struct {
	invoiceResponse
	Lines              []lineResponse              `json:"lines"`
	Payments           []paymentResponse           `json:"payments"`
	CommissionPayments []commissionPaymentResponse `json:"commission_payments"`
}

func toInvoiceResponse(inv Invoice) invoiceResponse {
	return invoiceResponse{
		ID:               inv.ID,
		Number:           inv.Number,
		CustomerID:       inv.CustomerID,
		CustomerName:     inv.CustomerName,
		BrokerID:         inv.BrokerID,
		BrokerName:       inv.BrokerName,
		Date:             inv.Date,
		DueDate:          inv.DueDate,
		Status:           string(inv.Status),
		Total:            inv.Total.StringFixed(2),
		AmountPaid:       inv.AmountPaid.StringFixed(2),
		BalanceDue:       inv.BalanceDue().StringFixed(2),
		CommissionType:   string(inv.CommissionType),
		CommissionAmount: inv.CommissionAmount.StringFixed(2),
		CommissionPaid:   inv.CommissionPaid.StringFixed(2),
		Notes:            inv.Notes,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
	}
}

func toDetailResponse(d InvoiceWithDetails) invoiceDetailResponse {
	out := invoiceDetailResponse{
		invoiceResponse:    toInvoiceResponse(d.Invoice),
		Lines:              make([]lineResponse, 0, len(d.Lines)),
		Payments:           make([]paymentResponse, 0, len(d.Payments)),
		CommissionPayments: make([]commissionPaymentResponse, 0, len(d.CommissionPayments)),
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
	for _, p := range d.CommissionPayments {
		out.CommissionPayments = append(out.CommissionPayments, commissionPaymentResponse{
			ID:     p.ID,
			Date:   p.Date,
			Amount: p.Amount.StringFixed(2),
			Method: string(p.Method),
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

	input := CreateInvoiceInput{
		CustomerID:     req.CustomerID,
		BrokerID:       req.BrokerID,
		CommissionType: CommissionType(req.CommissionType),
		Notes:          req.Notes,
	}
	var err error
	if input.Date, err = parseDate("date", req.Date); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if input.DueDate, err = parseDate("due_date", req.DueDate); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.CommissionValue != "" {
		if input.CommissionValue, err = parseAmount("commission_value", req.CommissionValue); err != nil {
			httpx.RespondError(w, err)
			return
		}
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
		h.logger.Warn("create invoice", slog.Any("error", err))
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
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.RespondError(w, fmt.Errorf("%w: invalid customer_id", shared.ErrValidation))
			return
		}
		req.CustomerID = id
	}

	list, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, toInvoiceResponse(inv))
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
	out := make([]invoiceResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, toInvoiceResponse(inv))
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
		InvoiceID:      id,
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

	inv, err := h.service.AddPayment(r.Context(), input)
	if err != nil {
		h.logger.Warn("add invoice payment", slog.Int64("invoice_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (h *Handler) settleCommission(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req settleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}

	input := SettleCommissionInput{
		InvoiceID: id,
		Method:    billing.PaymentMethod(req.Method),
	}
	if input.Amount, err = parseAmount("amount", req.Amount); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if input.Date, err = parseDate("date", req.Date); err != nil {
		httpx.RespondError(w, err)
		return
	}

	inv, err := h.service.SettleCommission(r.Context(), input)
	if err != nil {
		h.logger.Warn("settle commission", slog.Int64("invoice_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(inv))
}
