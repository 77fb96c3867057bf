package journal

import (
	"context"

	"reserveScope/internal/model"
)

// Journal is a sink for terminal write outcomes.
type Journal interface {
	Record(ctx context.Context, rec model.WriteRecord) error
	List(ctx context.Context, chainID uint64, limit int) ([]model.WriteRecord, error)
}
