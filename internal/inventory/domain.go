// Package inventory tracks fabric lots received from vendors and the item
// master catalog. A lot becomes billed exactly when a bill includes it as a
// line item; the billing engine flips the flag inside its own transaction.
package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/textileflow/textileflow/internal/money"
)

// Item is one fabric lot. (LotNumber, FabricType) is unique across the stock.
type Item struct {
	ID           int64
	LotNumber    string
	FabricType   string
	Meters       decimal.Decimal
	UnitPrice    decimal.Decimal
	VendorID     int64
	VendorName   string
	ReceivedDate time.Time
	IsBilled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TotalValue is meters × unit price, derived and never stored.
func (i Item) TotalValue() decimal.Decimal {
	return money.Subtotal(i.Meters, i.UnitPrice)
}

// MasterItem is a catalog entry for a fabric product.
type MasterItem struct {
	ID            int64
	Code          string
	Name          string
	Category      string
	Unit          string
	StandardPrice decimal.Decimal
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateItemInput carries the writable fields of a fabric lot.
type CreateItemInput struct {
	LotNumber    string
	FabricType   string
	Meters       decimal.Decimal
	UnitPrice    decimal.Decimal
	VendorID     int64
	ReceivedDate time.Time
}

// UpdateItemInput mutates an unbilled lot.
type UpdateItemInput struct {
	LotNumber    string
	FabricType   string
	Meters       decimal.Decimal
	UnitPrice    decimal.Decimal
	ReceivedDate time.Time
}

// MasterItemInput carries the writable fields of a catalog entry.
type MasterItemInput struct {
	Code          string
	Name          string
	Category      string
	Unit          string
	StandardPrice decimal.Decimal
	Active        bool
}

// ListFilter narrows lot listings.
type ListFilter struct {
	VendorID     int64
	UnbilledOnly bool
	FabricType   string
	Limit        int
	Offset       int
}

// Summary aggregates the stock position.
type Summary struct {
	TotalLots      int64
	TotalMeters    decimal.Decimal
	UnbilledLots   int64
	UnbilledMeters decimal.Decimal
	StockValue     decimal.Decimal
}
