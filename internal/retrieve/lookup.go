package retrieve

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// Lookup emits stored retrievables for a fixed id set, unscored and in id order.
// Unknown ids are skipped.
type Lookup struct {
	reader metamodel.RetrievableReader
	ids    []uuid.UUID
}

// NewLookup creates a lookup over ids.
func NewLookup(reader metamodel.RetrievableReader, ids ...uuid.UUID) *Lookup {
	return &Lookup{reader: reader, ids: slices.Clone(ids)}
}

// IDs returns the looked-up ids.
func (l *Lookup) IDs() []uuid.UUID { return slices.Clone(l.ids) }

func (l *Lookup) Emit(ctx context.Context, out chan<- retrievable.Retrieved) error {
	results, err := l.reader.GetAll(ctx, l.ids)
	if err != nil {
		return fmt.Errorf("look up retrievables: %w", err)
	}
	for _, r := range results {
		if err := operator.Send(ctx, out, r); err != nil {
			return err
		}
	}
	return nil
}
