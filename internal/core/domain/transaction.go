package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeUsage   TransactionType = "usage"
	TransactionTypeRestock TransactionType = "restock"
)

// SignedQuantity maps an entered (positive) quantity to the delta applied to
// stock: negative for usage, positive for restock.
func (t TransactionType) SignedQuantity(quantity int) int {
	if quantity < 0 {
		quantity = -quantity
	}
	if t == TransactionTypeUsage {
		return -quantity
	}
	return quantity
}

// PendingTransaction lives only between the Menu and Commit steps of one
// session. At most one exists per session outside batch mode.
type PendingTransaction struct {
	Part      PartRecord
	Type      TransactionType
	Quantity  int
	MachineID string
	Notes     string
}

// TransactionRecord is the immutable audit row written on commit.
type TransactionRecord struct {
	ID              string
	PartID          string
	MachineID       string
	Type            TransactionType
	QuantitySigned  int
	UnitCost        decimal.Decimal
	Notes           string
	PerformedBy     string
	PerformedByRole string
	CreatedAt       time.Time
}

type Technician struct {
	ID   string
	Role string
}
