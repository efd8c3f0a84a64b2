// Package expenses tracks operating costs outside the party ledger. Rent,
// salaries and utility bills affect profit reports but never a vendor or
// customer balance.
package expenses

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/textileflow/textileflow/internal/billing"
)

// Category is the fixed expense classification set.
type Category string

const (
	CategoryOfficeRent  Category = "Office Rent"
	CategorySalary      Category = "Employees Salary"
	CategoryTransport   Category = "Builty (Transport)"
	CategoryPacking     Category = "Packing"
	CategoryElectricity Category = "Electricity Bill"
	CategoryGas         Category = "Gas Bill"
	CategoryWater       Category = "Water Bill"
	CategoryInternet    Category = "Internet Bill"
	CategoryOther       Category = "Other Expenses"
)

// Valid reports whether the category is known.
func (c Category) Valid() bool {
	switch c {
	case CategoryOfficeRent, CategorySalary, CategoryTransport, CategoryPacking,
		CategoryElectricity, CategoryGas, CategoryWater, CategoryInternet, CategoryOther:
		return true
	}
	return false
}

// Expense is one recorded operating cost.
type Expense struct {
	ID          int64
	Date        time.Time
	Category    Category
	Description string
	Amount      decimal.Decimal
	Method      billing.PaymentMethod
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Input carries a requested expense before validation.
type Input struct {
	Date        time.Time
	Category    Category
	Description string
	Amount      decimal.Decimal
	Method      billing.PaymentMethod
	Notes       string
}

// ListFilter narrows expense listings.
type ListFilter struct {
	Category Category
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// CategoryTotal aggregates spend for one category.
type CategoryTotal struct {
	Category Category
	Count    int64
	Amount   decimal.Decimal
}

// Summary is the spend overview.
type Summary struct {
	Total      decimal.Decimal
	Count      int64
	ByCategory []CategoryTotal
}
