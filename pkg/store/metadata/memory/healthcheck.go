package memory

import (
	"context"
)

// Healthcheck verifies the store is operational.
//
// For the in-memory implementation there are no external dependencies, so
// the store is healthy unless it was closed or the context is done.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//
// Returns:
//   - error: nil if healthy, context error if cancelled, ErrIOError if closed
func (store *MemoryMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		return errClosed()
	}
	return nil
}
