package incidents

import (
	"context"

	"github.com/sentinel-labs/safety-sentinel/internal/domain"
)

// Storage defines the interface for durable collection storage.
//
// Save replaces the stored collection wholesale; there is exactly one
// logical writer, so no partial-write or locking guarantees are required
// of implementations. Load returns ErrNoData when no collection was ever
// saved, which is distinct from a saved empty collection.
type Storage interface {
	Load(ctx context.Context) ([]domain.Incident, error)
	Save(ctx context.Context, collection []domain.Incident) error
}
