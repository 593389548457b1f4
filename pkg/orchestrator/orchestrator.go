package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/condition"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/graph"
	"github.com/aretw0/handoff/pkg/ports"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("orchestrator already started")

// Phase reports what the orchestrator is doing.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseEvaluating
	PhaseCommitting
)

func (p Phase) String() string {
	switch p {
	case PhaseEvaluating:
		return "evaluating"
	case PhaseCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// Callback is invoked after an event was appended and applied.
// Callbacks run outside the session lock and may call CheckAndExecuteTransition.
type Callback func(ctx context.Context, e domain.Event)

// Orchestrator owns one session's context, graph and current agent.
type Orchestrator struct {
	sessionID string

	mu        sync.Mutex
	graph     *graph.Graph
	sc        *domain.SessionContext
	agent     ports.AgentHandle
	callbacks []Callback
	started   bool
	closed    bool
	// version counts state changes a check can observe.
	version uint64

	phase  atomic.Int32
	flight singleflight.Group

	factory         ports.AgentFactory
	evaluator       *condition.Evaluator
	logger          *slog.Logger
	hooks           domain.LifecycleHooks
	interval        time.Duration
	now             func() time.Time
	triggers        map[domain.EventType]bool
	historyCapacity int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an orchestrator positioned at initialNode.
// The initial agent is materialized by Start, not here.
func New(sessionID string, g *graph.Graph, initialNode string, factory ports.AgentFactory, opts ...Option) (*Orchestrator, error) {
	if g == nil {
		return nil, fmt.Errorf("orchestrator: nil graph")
	}
	if factory == nil {
		return nil, fmt.Errorf("orchestrator: nil agent factory")
	}
	if !g.Has(initialNode) {
		return nil, fmt.Errorf("initial agent '%s': %w", initialNode, domain.ErrNodeNotFound)
	}

	o := &Orchestrator{
		sessionID: sessionID,
		graph:     g,
		factory:   factory,
		logger:    logging.NewNop(),
		interval:  DefaultInterval,
		now:       time.Now,
	}
	WithReactiveTriggers(DefaultReactiveTriggers()...)(o)
	for _, opt := range opts {
		opt(o)
	}
	if o.evaluator == nil {
		o.evaluator = condition.NewEvaluator(condition.WithLogger(o.logger))
	}
	o.logger = o.logger.With("session_id", sessionID)

	o.sc = domain.NewSessionContext(sessionID, initialNode, o.now())
	if o.historyCapacity > 0 {
		o.sc.HistoryCapacity = o.historyCapacity
	}

	o.callbacks = append(o.callbacks, o.reactiveCheck)
	return o, nil
}

// SessionID returns the ID of the session.
func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// Start materializes the initial agent and launches the periodic check.
// A materialization failure is returned as a *domain.TargetMaterializationError.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if o.started {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}

	node, err := o.graph.Node(o.sc.CurrentNodeID)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	handle, err := o.factory.Materialize(ctx, node)
	if err != nil {
		o.mu.Unlock()
		return &domain.TargetMaterializationError{NodeID: node.ID, Cause: err}
	}
	o.agent = handle
	o.started = true

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel
	o.mu.Unlock()

	o.logger.Info("session started", "agent", node.ID)

	if o.interval > 0 {
		o.wg.Add(1)
		go o.loop(loopCtx)
	}
	return nil
}

func (o *Orchestrator) loop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.CheckAndExecuteTransition(ctx)
		}
	}
}

// Stop ends the session: no new evaluation starts, the ticker is stopped and
// the current agent handle is closed. An in-flight evaluation is allowed to finish.
// Stop is idempotent.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.sc.Session.Active = false
	if o.sc.Session.EndedAt.IsZero() {
		o.sc.Session.EndedAt = o.now()
	}
	agent := o.agent
	o.agent = nil
	cancel := o.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.wg.Wait()

	o.logger.Info("session stopped")

	if agent != nil {
		if err := agent.Close(ctx); err != nil {
			return fmt.Errorf("failed to close agent '%s': %w", agent.NodeID(), err)
		}
	}
	return nil
}

// Closed reports whether Stop was called.
func (o *Orchestrator) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// OnEvent registers a callback. Callbacks run in registration order after every Submit.
func (o *Orchestrator) OnEvent(cb Callback) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.callbacks = append(o.callbacks, cb)
}

// Submit appends the event to the history, applies its context mutation and then
// runs the registered callbacks. It returns the event as stored, with Seq assigned.
func (o *Orchestrator) Submit(ctx context.Context, e domain.Event) (domain.Event, error) {
	if !e.Type.Valid() {
		return domain.Event{}, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidEvent, e.Type)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = o.now()
	}
	if e.Source == "" {
		e.Source = domain.SourceHost
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return domain.Event{}, domain.ErrSessionClosed
	}
	stored := o.sc.AppendEvent(e)
	apply(o.sc, stored)
	o.version++
	callbacks := append([]Callback(nil), o.callbacks...)
	o.mu.Unlock()

	o.logger.Debug("event submitted", "type", stored.Type, "seq", stored.Seq)
	if o.hooks.OnEvent != nil {
		o.hooks.OnEvent(ctx, o.sessionID, stored)
	}

	for _, cb := range callbacks {
		cb(ctx, stored)
	}
	return stored, nil
}

func (o *Orchestrator) reactiveCheck(ctx context.Context, e domain.Event) {
	if !o.triggers[e.Type] {
		return
	}
	o.CheckAndExecuteTransition(ctx)
}

// RecordDecision stores an agent decision read by agent_decision conditions.
func (o *Orchestrator) RecordDecision(key string, value any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return domain.ErrSessionClosed
	}
	o.sc.AgentDecisions[key] = value
	o.version++
	return nil
}

// CurrentNode returns the ID of the current agent node.
func (o *Orchestrator) CurrentNode() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sc.CurrentNodeID
}

// CurrentAgent returns the handle of the current agent, or nil before Start and after Stop.
func (o *Orchestrator) CurrentAgent() ports.AgentHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.agent
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase {
	return Phase(o.phase.Load())
}

// Snapshot returns a copy of the session context.
func (o *Orchestrator) Snapshot() *domain.SessionContext {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sc.Clone()
}

// Graph returns the installed graph.
func (o *Orchestrator) Graph() *graph.Graph {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.graph
}

// ReloadGraph swaps the graph. The current node must exist in the new graph.
func (o *Orchestrator) ReloadGraph(g *graph.Graph) error {
	if g == nil {
		return fmt.Errorf("orchestrator: nil graph")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return domain.ErrSessionClosed
	}
	if !g.Has(o.sc.CurrentNodeID) {
		return fmt.Errorf("reload: current agent '%s': %w", o.sc.CurrentNodeID, domain.ErrNodeNotFound)
	}
	o.graph = g
	o.version++
	o.logger.Info("graph reloaded", "agents", len(g.Nodes()), "transitions", len(g.Edges()))
	return nil
}
