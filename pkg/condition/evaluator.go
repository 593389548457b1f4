package condition

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/registry"
)

// Evaluator dispatches each edge to the predicate registered for its kind.
type Evaluator struct {
	table    map[domain.ConditionKind]Predicate
	registry *registry.Registry
	logger   *slog.Logger
}

// Option configures the Evaluator.
type Option func(*Evaluator)

// WithRegistry resolves custom conditions against reg.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Evaluator) {
		e.registry = reg
	}
}

// WithLogger sets the logger used for faults and rule-set log actions.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithPredicate replaces the predicate for a kind.
func WithPredicate(kind domain.ConditionKind, fn Predicate) Option {
	return func(e *Evaluator) {
		e.table[kind] = fn
	}
}

// NewEvaluator builds an evaluator covering every condition kind.
// It panics if a kind is left without a predicate, which can only happen
// when a new kind is added without extending the table.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		table:  make(map[domain.ConditionKind]Predicate),
		logger: logging.NewNop(),
	}
	// Defaults first so WithPredicate can override them.
	e.table[domain.ConditionUserInput] = userInput
	e.table[domain.ConditionToolResult] = toolResult
	e.table[domain.ConditionAgentDecision] = agentDecision
	e.table[domain.ConditionEvent] = event

	for _, opt := range opts {
		opt(e)
	}

	if _, ok := e.table[domain.ConditionRuleSet]; !ok {
		e.table[domain.ConditionRuleSet] = ruleSet(e.logRule)
	}
	if _, ok := e.table[domain.ConditionCustom]; !ok {
		e.table[domain.ConditionCustom] = custom(e.registry)
	}

	for _, kind := range domain.ConditionKinds() {
		if e.table[kind] == nil {
			panic(fmt.Sprintf("condition: no predicate for kind %q", kind))
		}
	}
	return e
}

// Evaluate decides whether edge fires against env.
// It never panics: decode errors, predicate errors and panics are reported as a fault
// and the edge counts as not met.
func (e *Evaluator) Evaluate(ctx context.Context, edge domain.TransitionEdge, env Env) (met bool, fault *domain.ConditionEvaluationFault) {
	defer func() {
		if r := recover(); r != nil {
			met = false
			fault = &domain.ConditionEvaluationFault{
				EdgeID: edge.ID,
				Kind:   edge.Kind,
				Cause:  fmt.Errorf("panic: %v", r),
			}
			e.logger.Error("condition predicate panicked",
				"edge_id", edge.ID,
				"kind", edge.Kind,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	fn, ok := e.table[edge.Kind]
	if !ok {
		return false, e.fault(edge, fmt.Errorf("unsupported condition kind %q", edge.Kind))
	}
	if env.Context == nil {
		return false, e.fault(edge, fmt.Errorf("nil session context"))
	}

	met, err := fn(ctx, edge, env)
	if err != nil {
		return false, e.fault(edge, err)
	}
	return met, nil
}

func (e *Evaluator) fault(edge domain.TransitionEdge, err error) *domain.ConditionEvaluationFault {
	e.logger.Warn("condition evaluation failed",
		"edge_id", edge.ID,
		"kind", edge.Kind,
		"error", err)
	return &domain.ConditionEvaluationFault{EdgeID: edge.ID, Kind: edge.Kind, Cause: err}
}

func (e *Evaluator) logRule(edge domain.TransitionEdge, msg string) {
	e.logger.Info(msg, "edge_id", edge.ID, "from", edge.From, "to", edge.To)
}
