package ports

import (
	"context"

	"github.com/aretw0/handoff/pkg/domain"
)

// SnapshotStore defines the interface for persisting session context snapshots.
// Snapshots let operators inspect sessions and guard session IDs across replicas.
type SnapshotStore interface {
	// Save persists the snapshot for a given session ID.
	Save(ctx context.Context, sessionID string, snapshot *domain.SessionContext) error

	// Load retrieves the snapshot for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.SessionContext, error)

	// Delete removes the snapshot for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns all persisted session IDs.
	List(ctx context.Context) ([]string, error)
}
