// Package parties manages vendors, customers and brokers. Vendors and
// customers carry a cached balance maintained by the ledger reconciler;
// brokers have no running account, their commissions live on invoices.
package parties

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vendor supplies fabric lots. Balance convention: positive means the
// business still owes the vendor for billed stock.
type Vendor struct {
	ID        int64
	Name      string
	Phone     string
	Address   string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Customer buys fabric. Balance convention: positive means the customer
// still owes the business.
type Customer struct {
	ID        int64
	Name      string
	Phone     string
	Address   string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Broker mediates invoices for a commission.
type Broker struct {
	ID        int64
	Name      string
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PartyInput carries the writable fields shared by all three kinds.
type PartyInput struct {
	Name    string
	Phone   string
	Address string
}
