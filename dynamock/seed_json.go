package dynamock

import (
	"context"
	"fmt"
	"io"

	"github.com/nisimpson/dynaval"
)

// SeedFromJSON reads items in DynamoDB JSON from r and writes them to the
// table. The document may be an array of items or an object with an "Items"
// array, as printed by `aws dynamodb scan`. Returns the number of items
// written.
func (s *SeedTestData) SeedFromJSON(ctx context.Context, r io.Reader) (int, error) {
	items, err := dynaval.ReadItemsWire(r)
	if err != nil {
		return 0, fmt.Errorf("failed to parse JSON document: %w", err)
	}

	values := make([]any, len(items))
	for i, item := range items {
		values[i] = item
	}
	if err := s.SeedBatch(ctx, values...); err != nil {
		return 0, err
	}
	return len(items), nil
}
