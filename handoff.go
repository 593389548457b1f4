package handoff

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/adapters/file"
	"github.com/aretw0/handoff/pkg/adapters/memory"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/observability"
	"github.com/aretw0/handoff/pkg/ports"
	"github.com/aretw0/handoff/pkg/registry"
	"github.com/aretw0/handoff/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Version is the release of the engine reported by the CLI and the servers.
const Version = "0.3.0"

// Engine is the high-level entry point for the handoff library.
// It wires a session manager with logging, metrics and streaming hooks.
type Engine struct {
	Manager     *session.Manager
	Config      ports.ConfigStore
	Broadcaster *observability.Broadcaster
	Metrics     *observability.Metrics
	Name        string

	logger *slog.Logger
}

type options struct {
	config     ports.ConfigStore
	factory    ports.AgentFactory
	store      ports.SnapshotStore
	locker     ports.DistributedLocker
	registry   *registry.Registry
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	interval   *time.Duration
	registerer prometheus.Registerer
	extra      []session.Option
}

// Option defines a functional option for configuring the Engine.
type Option func(*options)

// WithConfigStore injects a custom ConfigStore, bypassing the default YAML directory store.
func WithConfigStore(c ports.ConfigStore) Option {
	return func(o *options) { o.config = c }
}

// WithAgentFactory sets the factory that materializes agents.
// The default records handles in memory and is meant for dry runs.
func WithAgentFactory(f ports.AgentFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithSnapshotStore persists session snapshots.
func WithSnapshotStore(s ports.SnapshotStore) Option {
	return func(o *options) { o.store = s }
}

// WithLocker serializes session lifecycle across replicas.
func WithLocker(l ports.DistributedLocker) Option {
	return func(o *options) { o.locker = l }
}

// WithRegistry makes custom predicates available to conditions.
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) { o.hooks = hooks }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithInterval sets the periodic check interval; zero disables the ticker.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = &d }
}

// WithMetrics registers Prometheus collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSessionOptions appends raw session manager options.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *options) { o.extra = append(o.extra, opts...) }
}

// New initializes a new Engine.
// By default, it reads YAML scope documents from configDir.
// If WithConfigStore is provided, configDir is only used as a label.
func New(configDir string, opts ...Option) (*Engine, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.config == nil {
		o.config = file.NewConfigStore(configDir)
	}
	if o.factory == nil {
		o.factory = memory.NewFactory()
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if configDir != "" {
		o.logger = o.logger.With("config_dir", configDir)
	}

	eng := &Engine{
		Config:      o.config,
		Broadcaster: observability.NewBroadcaster(),
		Name:        configDir,
		logger:      o.logger,
	}

	hooks := observability.LoggingHooks(o.logger).Merge(eng.Broadcaster.Hooks())
	if o.registerer != nil {
		m, err := observability.NewMetrics(o.registerer)
		if err != nil {
			return nil, err
		}
		eng.Metrics = m
		hooks = hooks.Merge(m.Hooks())
	}
	hooks = hooks.Merge(o.hooks)

	sessOpts := []session.Option{
		session.WithLogger(o.logger),
		session.WithHooks(hooks),
	}
	if o.store != nil {
		sessOpts = append(sessOpts, session.WithSnapshotStore(o.store))
	}
	if o.locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(o.locker))
	}
	if o.registry != nil {
		sessOpts = append(sessOpts, session.WithRegistry(o.registry))
	}
	if o.interval != nil {
		sessOpts = append(sessOpts, session.WithInterval(*o.interval))
	}
	sessOpts = append(sessOpts, o.extra...)

	eng.Manager = session.NewManager(o.config, o.factory, sessOpts...)
	return eng, nil
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// Close ends every live session.
func (e *Engine) Close(ctx context.Context) error {
	return e.Manager.Close(ctx)
}
