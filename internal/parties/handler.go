package parties

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/textileflow/textileflow/internal/ledger"
	"github.com/textileflow/textileflow/internal/platform/httpx"
	"github.com/textileflow/textileflow/internal/shared"
)

// Handler exposes party endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers vendor, customer and broker routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/vendors", func(r chi.Router) {
		r.Post("/", h.createVendor)
		r.Get("/", h.listVendors)
		r.Get("/{id}", h.getVendor)
		r.Put("/{id}", h.updateVendor)
		r.Delete("/{id}", h.deleteVendor)
		r.Get("/{id}/ledger", h.vendorLedger)
		r.Post("/{id}/recalculate", h.recalculateVendor)
	})
	r.Route("/customers", func(r chi.Router) {
		r.Post("/", h.createCustomer)
		r.Get("/", h.listCustomers)
		r.Get("/{id}", h.getCustomer)
		r.Put("/{id}", h.updateCustomer)
		r.Delete("/{id}", h.deleteCustomer)
		r.Get("/{id}/ledger", h.customerLedger)
		r.Post("/{id}/recalculate", h.recalculateCustomer)
	})
	r.Route("/brokers", func(r chi.Router) {
		r.Post("/", h.createBroker)
		r.Get("/", h.listBrokers)
		r.Get("/{id}", h.getBroker)
		r.Put("/{id}", h.updateBroker)
		r.Delete("/{id}", h.deleteBroker)
	})
}

type partyRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"max=30"`
	Address string `json:"address" validate:"max=500"`
}

type vendorResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type customerResponse vendorResponse

type brokerResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ledgerEntryResponse struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Date        time.Time `json:"date"`
	Amount      string    `json:"amount"`
	Signed      string    `json:"signed_amount"`
	Reference   string    `json:"reference,omitempty"`
	Description string    `json:"description,omitempty"`
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

func toVendorResponse(v Vendor) vendorResponse {
	return vendorResponse{
		ID: v.ID, Name: v.Name, Phone: v.Phone, Address: v.Address,
		Balance:   v.Balance.StringFixed(2),
		CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt,
	}
}

func toCustomerResponse(c Customer) customerResponse {
	return customerResponse{
		ID: c.ID, Name: c.Name, Phone: c.Phone, Address: c.Address,
		Balance:   c.Balance.StringFixed(2),
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func toBrokerResponse(b Broker) brokerResponse {
	return brokerResponse{
		ID: b.ID, Name: b.Name, Phone: b.Phone, Address: b.Address,
		CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
}

func toLedgerResponses(entries []ledger.Entry) []ledgerEntryResponse {
	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerEntryResponse{
			ID:          e.ID,
			Type:        string(e.Type),
			Date:        e.Date,
			Amount:      e.Amount.StringFixed(2),
			Signed:      e.SignedAmount().StringFixed(2),
			Reference:   e.Reference,
			Description: e.Description,
		})
	}
	return out
}

func (h *Handler) decodeParty(r *http.Request) (PartyInput, error) {
	var req partyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return PartyInput{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return PartyInput{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return PartyInput{Name: req.Name, Phone: req.Phone, Address: req.Address}, nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", shared.ErrValidation)
	}
	return id, nil
}

func (h *Handler) createVendor(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodeParty(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.CreateVendor(r.Context(), input)
	if err != nil {
		h.logger.Warn("create vendor", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toVendorResponse(v))
}

func (h *Handler) listVendors(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 50, 200)
	vendors, err := h.service.ListVendors(r.Context(), page.Limit, page.Offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]vendorResponse, 0, len(vendors))
	for _, v := range vendors {
		out = append(out, toVendorResponse(v))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getVendor(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.GetVendor(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toVendorResponse(v))
}

func (h *Handler) updateVendor(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := h.decodeParty(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.UpdateVendor(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toVendorResponse(v))
}

func (h *Handler) deleteVendor(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteVendor(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) vendorLedger(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page := shared.ParsePage(r, 100, 500)
	entries, err := h.service.VendorLedger(r.Context(), id, page.Limit, page.Offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLedgerResponses(entries))
}

func (h *Handler) recalculateVendor(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	balance, err := h.service.RecalculateVendorBalance(r.Context(), id)
	if err != nil {
		h.logger.Error("recalculate vendor balance", slog.Int64("vendor_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{Balance: balance.StringFixed(2)})
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodeParty(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.CreateCustomer(r.Context(), input)
	if err != nil {
		h.logger.Warn("create customer", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCustomerResponse(c))
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 50, 200)
	customers, err := h.service.ListCustomers(r.Context(), page.Limit, page.Offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]customerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, toCustomerResponse(c))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCustomerResponse(c))
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := h.decodeParty(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.UpdateCustomer(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCustomerResponse(c))
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteCustomer(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) customerLedger(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page := shared.ParsePage(r, 100, 500)
	entries, err := h.service.CustomerLedger(r.Context(), id, page.Limit, page.Offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLedgerResponses(entries))
}

func (h *Handler) recalculateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	balance, err := h.service.RecalculateCustomerBalance(r.Context(), id)
	if err != nil {
		h.logger.Error("recalculate customer balance", slog.Int64("customer_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{Balance: balance.StringFixed(2)})
}

func (h *Handler) createBroker(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodeParty(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.CreateBroker(r.Context(), input)
	if err != nil {
		h.logger.Warn("create broker", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toBrokerResponse(b))
}

func (h *Handler) listBrokers(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 50, 200)
	brokers, err := h.service.ListBrokers(r.Context(), page.Limit, page.Offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]brokerResponse, 0, len(brokers))
	for _, b := range brokers {
		out = append(out, toBrokerResponse(b))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getBroker(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.GetBroker(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBrokerResponse(b))
}

func (h *Handler) updateBroker(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := h.decodeParty(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.UpdateBroker(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBrokerResponse(b))
}

func (h *Handler) deleteBroker(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteBroker(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
