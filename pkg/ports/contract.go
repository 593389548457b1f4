package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore implementation
// adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snap := domain.NewSessionContext(sessionID, "triage", time.Now())
		snap.Values["foo"] = "bar"
		snap.Values["count"] = 42
		snap.TurnCount = 2
		snap.AppendEvent(domain.NewEvent(domain.EventUserMessage, domain.SourceHost, map[string]any{"text": "hi"}))

		err := store.Save(ctx, sessionID, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.CurrentNodeID, loaded.CurrentNodeID)
		assert.Equal(t, 2, loaded.TurnCount)
		assert.Equal(t, "bar", loaded.Values["foo"])
		// JSON persistence converts numbers to float64; only existence is part of the contract.
		assert.NotNil(t, loaded.Values["count"])
		require.Len(t, loaded.History, 1)
		assert.Equal(t, domain.EventUserMessage, loaded.History[0].Type)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewSessionContext(sessionID, "triage", time.Now()))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSessionContext(id1, "triage", time.Now()))
		_ = store.Save(ctx, id2, domain.NewSessionContext(id2, "triage", time.Now()))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
