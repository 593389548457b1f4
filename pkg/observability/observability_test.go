package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	hooks := m.Hooks()
	ctx := context.Background()
	hooks.OnEvent(ctx, "s1", domain.Event{Type: domain.EventUserMessage})
	hooks.OnEvent(ctx, "s1", domain.Event{Type: domain.EventUserMessage})
	hooks.OnTransition(ctx, &domain.TransitionEvent{SessionID: "s1", From: "a", To: "b", Kind: domain.ConditionUserInput})
	hooks.OnOutcome(ctx, "s1", domain.Success("b"), time.Millisecond)
	hooks.OnOutcome(ctx, "s1", domain.NoTransition(), time.Millisecond)
	hooks.OnConditionFault(ctx, "s1", &domain.ConditionEvaluationFault{Kind: domain.ConditionCustom, Cause: errors.New("boom")})

	count, err := testutil.GatherAndCount(reg, "handoff_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expected := `
# HELP handoff_transitions_total Total number of committed agent transitions
# TYPE handoff_transitions_total counter
handoff_transitions_total{from="a",kind="user_input",to="b"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, bytes.NewBufferString(expected), "handoff_transitions_total"))

	expected = `
# HELP handoff_check_outcomes_total Transition checks by outcome status
# TYPE handoff_check_outcomes_total counter
handoff_check_outcomes_total{status="no_transition"} 1
handoff_check_outcomes_total{status="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, bytes.NewBufferString(expected), "handoff_check_outcomes_total"))

	expected = `
# HELP handoff_condition_faults_total Condition predicates that failed or panicked
# TYPE handoff_condition_faults_total counter
handoff_condition_faults_total{kind="custom"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, bytes.NewBufferString(expected), "handoff_condition_faults_total"))
}

func TestMetrics_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	hooks := observability.LoggingHooks(logger)
	ctx := context.Background()

	hooks.OnEvent(ctx, "s1", domain.Event{Type: domain.EventUserMessage})
	assert.Empty(t, buf.String())

	hooks.OnTransition(ctx, &domain.TransitionEvent{SessionID: "s1", From: "a", To: "b"})
	assert.Contains(t, buf.String(), `"msg":"agent transition"`)
	assert.Contains(t, buf.String(), `"to":"b"`)

	buf.Reset()
	hooks.OnOutcome(ctx, "s1", domain.Failure(errors.New("factory down")), time.Millisecond)
	assert.Contains(t, buf.String(), "factory down")
}

func TestBroadcaster(t *testing.T) {
	b := observability.NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())

	ch := b.Subscribe(ctx, "s1")
	other := b.Subscribe(context.Background(), "s2")
	assert.Equal(t, 1, b.Subscribers("s1"))

	hooks := b.Hooks()
	hooks.OnTransition(ctx, &domain.TransitionEvent{SessionID: "s1", From: "a", To: "b"})

	select {
	case n := <-ch:
		assert.Equal(t, observability.NotifyTransition, n.Kind)
		assert.Equal(t, "b", n.Transition.To)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
	assert.Empty(t, other)

	// Publishing to a full subscriber never blocks.
	for i := 0; i < observability.DefaultBufferSize*2; i++ {
		hooks.OnOutcome(ctx, "s1", domain.NoTransition(), 0)
	}
	assert.Len(t, ch, observability.DefaultBufferSize)

	cancel()
	assert.Eventually(t, func() bool { return b.Subscribers("s1") == 0 }, time.Second, 10*time.Millisecond)
}
