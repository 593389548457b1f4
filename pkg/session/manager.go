package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/condition"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/graph"
	"github.com/aretw0/handoff/pkg/orchestrator"
	"github.com/aretw0/handoff/pkg/ports"
	"github.com/aretw0/handoff/pkg/registry"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed lifecycle lock may be held.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

type liveSession struct {
	scopeID string
	orch    *orchestrator.Orchestrator
}

// Manager owns the live sessions of a process.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	config  ports.ConfigStore
	factory ports.AgentFactory

	mu    sync.Mutex            // Global lock for the lock map
	locks map[string]*lockEntry // Map of active locks

	smu      sync.RWMutex
	sessions map[string]*liveSession

	store    ports.SnapshotStore     // Optional snapshot persistence
	locker   ports.DistributedLocker // Optional distributed locker
	lockTTL  time.Duration
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	interval time.Duration
	registry *registry.Registry
	orchOpts []orchestrator.Option
}

// Option configures the Manager.
type Option func(*Manager)

// WithSnapshotStore persists a snapshot after creation and after each transition.
func WithSnapshotStore(store ports.SnapshotStore) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithLocker enables distributed locking of lifecycle operations.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager and its sessions.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithHooks registers lifecycle hooks on every session.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithInterval sets the periodic check interval of every session.
func WithInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.interval = d
	}
}

// WithRegistry makes custom predicates available to every session.
func WithRegistry(reg *registry.Registry) Option {
	return func(m *Manager) {
		m.registry = reg
	}
}

// WithOrchestratorOptions appends options applied to every orchestrator.
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(m *Manager) {
		m.orchOpts = append(m.orchOpts, opts...)
	}
}

// NewManager creates a new Session Manager.
func NewManager(config ports.ConfigStore, factory ports.AgentFactory, opts ...Option) *Manager {
	m := &Manager{
		config:   config,
		factory:  factory,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*liveSession),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(), // Default to no-op
		interval: orchestrator.DefaultInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes a function while holding the lifecycle lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// BuildGraph loads and validates the graph of a scope.
func (m *Manager) BuildGraph(ctx context.Context, scopeID string) (*graph.Graph, error) {
	agents, err := m.config.LoadAgents(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agents for scope '%s': %w", scopeID, err)
	}
	transitions, err := m.config.LoadTransitions(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transitions for scope '%s': %w", scopeID, err)
	}
	return graph.New(agents, transitions)
}

// CreateSession builds the scope's graph, starts an orchestrator positioned at initialNode
// and registers it. An empty sessionID is replaced by a generated one; an empty initialNode
// selects the first agent of the scope.
func (m *Manager) CreateSession(ctx context.Context, scopeID, sessionID, initialNode string) (*orchestrator.Orchestrator, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var created *orchestrator.Orchestrator
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if _, err := m.lookup(sessionID); err == nil {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateSession, sessionID)
		}
		if m.store != nil && m.locker != nil {
			// Another replica may own the session.
			if _, err := m.store.Load(ctx, sessionID); err == nil {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateSession, sessionID)
			} else if !errors.Is(err, domain.ErrSessionNotFound) {
				return fmt.Errorf("failed to check session existence: %w", err)
			}
		}

		g, err := m.BuildGraph(ctx, scopeID)
		if err != nil {
			return err
		}
		if initialNode == "" {
			nodes := g.Nodes()
			if len(nodes) == 0 {
				return fmt.Errorf("scope '%s' defines no agents", scopeID)
			}
			initialNode = nodes[0].ID
		}

		o, err := m.newOrchestrator(sessionID, g, initialNode)
		if err != nil {
			return err
		}
		if err := o.Start(ctx); err != nil {
			_ = o.Stop(ctx)
			return fmt.Errorf("failed to start session '%s': %w", sessionID, err)
		}

		m.smu.Lock()
		m.sessions[sessionID] = &liveSession{scopeID: scopeID, orch: o}
		m.smu.Unlock()

		if _, err := o.Submit(ctx, domain.Event{
			Type:   domain.EventSessionCreated,
			Source: domain.SourceEngine,
			Data:   map[string]any{"session_id": sessionID, "scope_id": scopeID},
		}); err != nil {
			return err
		}
		m.persist(ctx, o)

		m.logger.Info("session created", "session_id", sessionID, "scope_id", scopeID, "agent", initialNode)
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (m *Manager) newOrchestrator(sessionID string, g *graph.Graph, initialNode string) (*orchestrator.Orchestrator, error) {
	var o *orchestrator.Orchestrator

	hooks := m.hooks
	if m.store != nil {
		hooks = hooks.Merge(domain.LifecycleHooks{
			OnTransition: func(ctx context.Context, _ *domain.TransitionEvent) {
				m.persist(ctx, o)
			},
		})
	}

	evalOpts := []condition.Option{condition.WithLogger(m.logger)}
	if m.registry != nil {
		evalOpts = append(evalOpts, condition.WithRegistry(m.registry))
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(m.logger),
		orchestrator.WithInterval(m.interval),
		orchestrator.WithHooks(hooks),
		orchestrator.WithEvaluator(condition.NewEvaluator(evalOpts...)),
	}
	opts = append(opts, m.orchOpts...)

	o, err := orchestrator.New(sessionID, g, initialNode, m.factory, opts...)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (m *Manager) persist(ctx context.Context, o *orchestrator.Orchestrator) {
	if m.store == nil || o == nil {
		return
	}
	if err := m.store.Save(ctx, o.SessionID(), o.Snapshot()); err != nil {
		m.logger.Warn("failed to persist session snapshot", "session_id", o.SessionID(), "err", err)
	}
}

// EndSession stops the session's orchestrator and forgets it.
func (m *Manager) EndSession(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		o, err := m.lookup(sessionID)
		if err != nil {
			return err
		}

		if _, err := o.Submit(ctx, domain.Event{Type: domain.EventSessionEnded, Source: domain.SourceEngine}); err != nil {
			m.logger.Debug("session ended event rejected", "session_id", sessionID, "err", err)
		}

		m.smu.Lock()
		delete(m.sessions, sessionID)
		m.smu.Unlock()

		stopErr := o.Stop(ctx)
		if m.store != nil {
			if err := m.store.Delete(ctx, sessionID); err != nil {
				m.logger.Warn("failed to delete session snapshot", "session_id", sessionID, "err", err)
			}
		}
		m.logger.Info("session ended", "session_id", sessionID)
		return stopErr
	})
}

func (m *Manager) lookup(sessionID string) (*orchestrator.Orchestrator, error) {
	m.smu.RLock()
	defer m.smu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return s.orch, nil
}

// Get returns the orchestrator of a live session.
func (m *Manager) Get(sessionID string) (*orchestrator.Orchestrator, error) {
	return m.lookup(sessionID)
}

// GetCurrentNode returns the current agent node ID of a session.
func (m *Manager) GetCurrentNode(sessionID string) (string, error) {
	o, err := m.lookup(sessionID)
	if err != nil {
		return "", err
	}
	return o.CurrentNode(), nil
}

// Submit sanitizes user text and forwards the event to the session.
func (m *Manager) Submit(ctx context.Context, sessionID string, e domain.Event) (domain.Event, error) {
	o, err := m.lookup(sessionID)
	if err != nil {
		return domain.Event{}, err
	}
	e, err = sanitizeEvent(e)
	if err != nil {
		return domain.Event{}, err
	}
	return o.Submit(ctx, e)
}

// CheckAndExecuteTransition runs a transition check on the session.
func (m *Manager) CheckAndExecuteTransition(ctx context.Context, sessionID string) (domain.Outcome, error) {
	o, err := m.lookup(sessionID)
	if err != nil {
		return domain.Outcome{}, err
	}
	return o.CheckAndExecuteTransition(ctx), nil
}

// RecordDecision stores an agent decision on the session.
func (m *Manager) RecordDecision(sessionID, key string, value any) error {
	o, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return o.RecordDecision(key, value)
}

// Snapshot returns a copy of the session context.
func (m *Manager) Snapshot(sessionID string) (*domain.SessionContext, error) {
	o, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return o.Snapshot(), nil
}

// List returns the IDs of live sessions in lexical order.
func (m *Manager) List() []string {
	m.smu.RLock()
	defer m.smu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reload rebuilds the session's graph from the config store and swaps it in.
func (m *Manager) Reload(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.smu.RLock()
		s, ok := m.sessions[sessionID]
		m.smu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		g, err := m.BuildGraph(ctx, s.scopeID)
		if err != nil {
			return err
		}
		return s.orch.ReloadGraph(g)
	})
}

// ReloadScope reloads every live session built from scopeID.
func (m *Manager) ReloadScope(ctx context.Context, scopeID string) error {
	m.smu.RLock()
	var ids []string
	for id, s := range m.sessions {
		if s.scopeID == scopeID {
			ids = append(ids, id)
		}
	}
	m.smu.RUnlock()

	var errs []error
	for _, id := range ids {
		if err := m.Reload(ctx, id); err != nil {
			m.logger.Warn("session reload failed", "session_id", id, "scope_id", scopeID, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close ends every live session.
func (m *Manager) Close(ctx context.Context) error {
	var errs []error
	for _, id := range m.List() {
		if err := m.EndSession(ctx, id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Store returns the snapshot store, or nil.
func (m *Manager) Store() ports.SnapshotStore {
	return m.store
}
