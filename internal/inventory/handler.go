package inventory

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/textileflow/textileflow/internal/platform/httpx"
	"github.com/textileflow/textileflow/internal/shared"
)

// Handler exposes inventory endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/items", h.createItem)
	r.Get("/items", h.listItems)
	r.Get("/items/{id}", h.getItem)
	r.Put("/items/{id}", h.updateItem)
	r.Delete("/items/{id}", h.deleteItem)
	r.Get("/summary", h.summary)

	r.Post("/catalog", h.createMasterItem)
	r.Get("/catalog", h.listMasterItems)
	r.Get("/catalog/{id}", h.getMasterItem)
	r.Put("/catalog/{id}", h.updateMasterItem)
	r.Delete("/catalog/{id}", h.deleteMasterItem)
}

type itemRequest struct {
	LotNumber    string `json:"lot_number" validate:"required,max=100"`
	FabricType   string `json:"fabric_type" validate:"required,max=100"`
	Meters       string `json:"meters" validate:"required"`
	UnitPrice    string `json:"unit_price" validate:"required"`
	VendorID     int64  `json:"vendor_id" validate:"required,gt=0"`
	ReceivedDate string `json:"received_date" validate:"required"`
}

type itemResponse struct {
	ID           int64     `json:"id"`
	LotNumber    string    `json:"lot_number"`
	FabricType   string    `json:"fabric_type"`
	Meters       string    `json:"meters"`
	UnitPrice    string    `json:"unit_price"`
	TotalValue   string    `json:"total_value"`
	VendorID     int64     `json:"vendor_id"`
	VendorName   string    `json:"vendor_name,omitempty"`
	ReceivedDate time.Time `json:"received_date"`
	IsBilled     bool      `json:"is_billed"`
	CreatedAt    time.Time `json:"created_at"`
}

type masterItemRequest struct {
	Code          string `json:"code" validate:"required,max=50"`
	Name          string `json:"name" validate:"required,max=200"`
	Category      string `json:"category" validate:"max=100"`
	Unit          string `json:"unit" validate:"max=20"`
	StandardPrice string `json:"standard_price"`
	Active        bool   `json:"active"`
}

type masterItemResponse struct {
	ID            int64  `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Category      string `json:"category,omitempty"`
	Unit          string `json:"unit,omitempty"`
	StandardPrice string `json:"standard_price"`
	Active        bool   `json:"active"`
}

type summaryResponse struct {
	TotalLots      int64  `json:"total_lots"`
	TotalMeters    string `json:"total_meters"`
	UnbilledLots   int64  `json:"unbilled_lots"`
	UnbilledMeters string `json:"unbilled_meters"`
	StockValue     string `json:"stock_value"`
}

func toItemResponse(i Item) itemResponse {
	return itemResponse{
		ID:           i.ID,
		LotNumber:    i.LotNumber,
		FabricType:   i.FabricType,
		Meters:       i.Meters.StringFixed(2),
		UnitPrice:    i.UnitPrice.StringFixed(2),
		TotalValue:   i.TotalValue().StringFixed(2),
		VendorID:     i.VendorID,
		VendorName:   i.VendorName,
		ReceivedDate: i.ReceivedDate,
		IsBilled:     i.IsBilled,
		CreatedAt:    i.CreatedAt,
	}
}

func toMasterItemResponse(m MasterItem) masterItemResponse {
	return masterItemResponse{
		ID: m.ID, Code: m.Code, Name: m.Name, Category: m.Category, Unit: m.Unit,
		StandardPrice: m.StandardPrice.StringFixed(2), Active: m.Active,
	}
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s is not a number", shared.ErrValidation, field)
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

func (h *Handler) decodeItem(r *http.Request) (itemRequest, error) {
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return req, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return req, nil
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeItem(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	meters, err := parseAmount("meters", req.Meters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	price, err := parseAmount("unit_price", req.UnitPrice)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	received, err := parseDate("received_date", req.ReceivedDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.CreateItem(r.Context(), CreateItemInput{
		LotNumber:    req.LotNumber,
		FabricType:   req.FabricType,
		Meters:       meters,
		UnitPrice:    price,
		VendorID:     req.VendorID,
		ReceivedDate: received,
	})
	if err != nil {
		h.logger.Warn("create inventory item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 100, 500)
	filter := ListFilter{
		UnbilledOnly: r.URL.Query().Get("unbilled") == "true",
		FabricType:   r.URL.Query().Get("fabric_type"),
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	if raw := r.URL.Query().Get("vendor_id"); raw != "" {
		filter.VendorID, _ = strconv.ParseInt(raw, 10, 64)
	}
	items, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, i := range items {
		out = append(out, toItemResponse(i))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.decodeItem(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	meters, err := parseAmount("meters", req.Meters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	price, err := parseAmount("unit_price", req.UnitPrice)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	received, err := parseDate("received_date", req.ReceivedDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, UpdateItemInput{
		LotNumber:    req.LotNumber,
		FabricType:   req.FabricType,
		Meters:       meters,
		UnitPrice:    price,
		ReceivedDate: received,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Summarize(r.Context())
	if err != nil {
		h.logger.Error("inventory summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summaryResponse{
		TotalLots:      s.TotalLots,
		TotalMeters:    s.TotalMeters.StringFixed(2),
		UnbilledLots:   s.UnbilledLots,
		UnbilledMeters: s.UnbilledMeters.StringFixed(2),
		StockValue:     s.StockValue.StringFixed(2),
	})
}

func (h *Handler) createMasterItem(w http.ResponseWriter, r *http.Request) {
	var req masterItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	price := decimal.Zero
	if req.StandardPrice != "" {
		var err error
		if price, err = parseAmount("standard_price", req.StandardPrice); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	m, err := h.service.CreateMasterItem(r.Context(), MasterItemInput{
		Code: req.Code, Name: req.Name, Category: req.Category, Unit: req.Unit,
		StandardPrice: price, Active: req.Active,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMasterItemResponse(m))
}

func (h *Handler) listMasterItems(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 100, 500)
	items, err := h.service.ListMasterItems(r.Context(), r.URL.Query().Get("active") == "true", page.Limit, page.Offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]masterItemResponse, 0, len(items))
	for _, m := range items {
		out = append(out, toMasterItemResponse(m))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getMasterItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.GetMasterItem(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMasterItemResponse(m))
}

func (h *Handler) updateMasterItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req masterItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	price := decimal.Zero
	if req.StandardPrice != "" {
		if price, err = parseAmount("standard_price", req.StandardPrice); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	m, err := h.service.UpdateMasterItem(r.Context(), id, MasterItemInput{
		Code: req.Code, Name: req.Name, Category: req.Category, Unit: req.Unit,
		StandardPrice: price, Active: req.Active,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMasterItemResponse(m))
}

func (h *Handler) deleteMasterItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteMasterItem(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
