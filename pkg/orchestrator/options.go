package orchestrator

import (
	"log/slog"
	"time"

	"github.com/aretw0/handoff/pkg/condition"
	"github.com/aretw0/handoff/pkg/domain"
)

// DefaultInterval is the period of the background transition check.
const DefaultInterval = time.Second

// DefaultReactiveTriggers lists the event types that trigger a check on Submit.
func DefaultReactiveTriggers() []domain.EventType {
	return []domain.EventType{
		domain.EventUserMessage,
		domain.EventToolResult,
		domain.EventAgentMessage,
	}
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithInterval sets the period of the background check. Zero or negative disables the ticker.
func WithInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.interval = d
	}
}

// WithLogger sets the logger. It is enriched with the session ID.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithHooks registers lifecycle hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithEvaluator replaces the condition evaluator.
func WithEvaluator(e *condition.Evaluator) Option {
	return func(o *Orchestrator) {
		o.evaluator = e
	}
}

// WithClock replaces the time source used for event stamps and metadata.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithReactiveTriggers replaces the event types that trigger a check on Submit.
// Passing none disables reactive checks.
func WithReactiveTriggers(types ...domain.EventType) Option {
	return func(o *Orchestrator) {
		o.triggers = make(map[domain.EventType]bool, len(types))
		for _, t := range types {
			o.triggers[t] = true
		}
	}
}

// WithHistoryCapacity overrides the bound of the event history.
func WithHistoryCapacity(n int) Option {
	return func(o *Orchestrator) {
		o.historyCapacity = n
	}
}
