package port

import (
	"context"

	"github.com/rl1809/scan-intake/internal/core/domain"
)

type ResolutionCache interface {
	// Get returns the snapshot cached for the barcode. The second return is
	// false on a miss or an expired entry.
	Get(ctx context.Context, code string) (domain.PartRecord, bool, error)

	// Put stores a snapshot under the barcode, restarting its TTL.
	Put(ctx context.Context, code string, part domain.PartRecord) error

	// Evict removes the entry for the barcode, if any.
	Evict(ctx context.Context, code string) error
}
