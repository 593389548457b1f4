package registry

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	r.Register("long_conversation", func(_ context.Context, params map[string]any, view *domain.SessionContext) (bool, error) {
		limit, _ := params["turns"].(int)
		return view.TurnCount >= limit, nil
	})
	r.Register("always", func(context.Context, map[string]any, *domain.SessionContext) (bool, error) {
		return true, nil
	})

	assert.Equal(t, []string{"always", "long_conversation"}, r.Names())

	c := domain.NewSessionContext("s", "a", time.Now())
	c.TurnCount = 5

	ok, err := r.Execute(context.Background(), "long_conversation", map[string]any{"turns": 3}, c)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = r.Execute(context.Background(), "missing", nil, c)
	assert.ErrorIs(t, err, ErrPredicateNotFound)
}

func TestRegistry_Overwrite(t *testing.T) {
	r := NewRegistry()
	r.Register("p", func(context.Context, map[string]any, *domain.SessionContext) (bool, error) { return false, nil })
	r.Register("p", func(context.Context, map[string]any, *domain.SessionContext) (bool, error) { return true, nil })

	fn, ok := r.Lookup("p")
	require.True(t, ok)
	res, err := fn(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, res)
}
