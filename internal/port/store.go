package port

import (
	"context"
	"errors"

	"github.com/rl1809/scan-intake/internal/core/domain"
)

var (
	// ErrStockConflict is returned by CommitTransaction when the guarded
	// update matches no row: the delta would drive stock negative, possibly
	// because a concurrent commit got there first.
	ErrStockConflict = errors.New("stock conflict")

	ErrUnknownPart = errors.New("unknown part")
)

type PartStore interface {
	// LookupByBarcode returns every part assigned the barcode, with nested
	// supplier and warehouse detail. An empty result is not an error.
	LookupByBarcode(ctx context.Context, code string) ([]domain.PartRecord, error)

	// CommitTransaction persists the audit record and applies its signed
	// quantity to the part inside one transactional boundary, guarded so the
	// resulting quantity can never go negative.
	CommitTransaction(ctx context.Context, record domain.TransactionRecord) error

	// InsertTransaction writes an audit record without touching stock.
	InsertTransaction(ctx context.Context, record domain.TransactionRecord) error

	// UpdatePartQuantity sets the absolute stock level for a part.
	UpdatePartQuantity(ctx context.Context, partID string, newQuantity int) error
}
