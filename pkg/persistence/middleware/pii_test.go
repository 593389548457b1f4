package middleware_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/handoff/pkg/adapters/memory"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"password", "ssn"})
	require.NoError(t, err)
	secure := mw(underlying)

	ctx := context.Background()
	snap := domain.NewSessionContext("s1", "triage", time.Now())
	snap.Values["username"] = "jdoe"
	snap.Values["user_password"] = "secret123"
	snap.Values["details"] = map[string]any{
		"address":    "123 St",
		"ssn_number": "999-99-9999",
	}
	snap.AgentDecisions["ssn"] = "999"
	snap.AppendEvent(domain.NewEvent(domain.EventUserMessage, domain.SourceHost, map[string]any{
		"message":  "hi",
		"password": "hunter2",
	}))

	require.NoError(t, secure.Save(ctx, "s1", snap))

	assert.Equal(t, "secret123", snap.Values["user_password"], "live snapshot untouched")
	assert.Equal(t, "999-99-9999", snap.Values["details"].(map[string]any)["ssn_number"])
	assert.Equal(t, "hunter2", snap.History[0].Data["password"])

	stored, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", stored.Values["username"])
	assert.Equal(t, middleware.Mask, stored.Values["user_password"])
	assert.Equal(t, middleware.Mask, stored.Values["details"].(map[string]any)["ssn_number"])
	assert.Equal(t, "123 St", stored.Values["details"].(map[string]any)["address"])
	assert.Equal(t, middleware.Mask, stored.AgentDecisions["ssn"])
	assert.Equal(t, middleware.Mask, stored.History[0].Data["password"])
	assert.Equal(t, "hi", stored.History[0].Data["message"])
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_MasksBeforeEncrypting(t *testing.T) {
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{"password"})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(underlying, pii, enc)

	ctx := context.Background()
	snap := domain.NewSessionContext("s1", "triage", time.Now())
	snap.Values["password"] = "x"
	require.NoError(t, store.Save(ctx, "s1", snap))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Values["password"])
}
