package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SupplierOption struct {
	SupplierID   string
	Name         string
	UnitCost     decimal.Decimal
	LeadTimeDays int
	Preferred    bool
}

type Warehouse struct {
	ID   string
	Name string
}

// PartRecord is a point-in-time snapshot of a part as read from the store.
// Quantity changes made after the snapshot are not reflected; re-resolve to
// observe them.
type PartRecord struct {
	ID              string
	Name            string
	PartNumber      string
	Barcode         string
	CurrentQuantity int
	MinStockLevel   int
	UnitCost        decimal.Decimal
	SupplierOptions []SupplierOption
	Warehouse       Warehouse
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (p PartRecord) LowStock() bool {
	return p.CurrentQuantity <= p.MinStockLevel
}
