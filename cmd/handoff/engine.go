package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/handoff"
	"github.com/aretw0/handoff/internal/config"
	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/adapters/file"
	loamadapter "github.com/aretw0/handoff/pkg/adapters/loam"
	"github.com/aretw0/handoff/pkg/adapters/memory"
	"github.com/aretw0/handoff/pkg/adapters/process"
	redisadapter "github.com/aretw0/handoff/pkg/adapters/redis"
	"github.com/aretw0/handoff/pkg/orchestrator"
	"github.com/aretw0/handoff/pkg/persistence/middleware"
	"github.com/aretw0/handoff/pkg/ports"
	"github.com/aretw0/handoff/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// app bundles what a command needs from the configured engine.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	engine   *handoff.Engine
	loam     *loamadapter.ConfigStore
	registry *prometheus.Registry
	closers  []func() error
}

// loadConfig reads --config and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("dir") {
		cfg.ConfigDir, _ = flags.GetString("dir")
	}
	if v, _ := flags.GetString("source"); v != "" {
		cfg.Source = v
	}
	if v, _ := flags.GetString("store"); v != "" {
		cfg.Store = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) *slog.Logger {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	logger := logging.New(level)
	slog.SetDefault(logger)
	return logger
}

// openConfigStore returns the scope source; the loam store is also returned
// so callers can watch it.
func openConfigStore(cfg config.Config) (ports.ConfigStore, *loamadapter.ConfigStore, error) {
	switch cfg.Source {
	case config.SourceLoam:
		store, err := loamadapter.Open(cfg.ConfigDir)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return file.NewConfigStore(cfg.ConfigDir), nil, nil
	}
}

// openSnapshotStore returns the snapshot store, the locker (redis only) and
// a close function. The store is wrapped by the configured security middleware.
func openSnapshotStore(cfg config.Config) (ports.SnapshotStore, ports.DistributedLocker, func() error, error) {
	var (
		store     ports.SnapshotStore
		locker    ports.DistributedLocker
		closeFunc = func() error { return nil }
	)
	switch cfg.Store {
	case config.StoreFile:
		store = file.NewSnapshotStore(cfg.SessionsDir)
	case config.StoreRedis:
		opts := []redisadapter.Option{redisadapter.WithTTL(cfg.Redis.TTL.Std())}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redisadapter.WithPrefix(cfg.Redis.Prefix))
		}
		rs := redisadapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		store, locker, closeFunc = rs, redisadapter.NewLocker(rs.Client(), cfg.Redis.Prefix), rs.Close
	default:
		store = memory.NewStore()
	}

	mws, err := securityMiddleware(cfg.Security)
	if err != nil {
		_ = closeFunc()
		return nil, nil, nil, err
	}
	return middleware.Chain(store, mws...), locker, closeFunc, nil
}

// securityMiddleware builds PII masking then encryption, when configured.
func securityMiddleware(sec config.Security) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(sec.PIIPatterns) > 0 {
		mw, err := middleware.NewPIIMiddleware(sec.PIIPatterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if sec.EncryptionKey != "" {
		active, err := middleware.ParseKey(sec.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for i, k := range sec.FallbackKeys {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return nil, fmt.Errorf("fallback key %d: %w", i, err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

// newApp builds the engine described by the flags and config file.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		logger:   newLogger(cfg),
		registry: prometheus.NewRegistry(),
	}

	cs, loamStore, err := openConfigStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s source: %w", cfg.Source, err)
	}
	a.loam = loamStore

	store, locker, closeStore, err := openSnapshotStore(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	opts := []handoff.Option{
		handoff.WithConfigStore(cs),
		handoff.WithSnapshotStore(store),
		handoff.WithLogger(a.logger),
		handoff.WithInterval(cfg.Interval.Std()),
		handoff.WithMetrics(a.registry),
		handoff.WithSessionOptions(session.WithOrchestratorOptions(
			orchestrator.WithHistoryCapacity(cfg.HistoryCapacity),
		)),
	}
	if locker != nil {
		opts = append(opts, handoff.WithLocker(locker))
	}
	if cfg.Runtimes != "" {
		runtimes, err := process.LoadRuntimes(cfg.Runtimes)
		if err != nil {
			_ = a.close()
			return nil, err
		}
		opts = append(opts, handoff.WithAgentFactory(process.NewFactory(
			process.WithRegistry(runtimes),
			process.WithBaseDir(cfg.ConfigDir),
			process.WithFallback(memory.NewFactory()),
			process.WithLogger(a.logger),
		)))
	}

	a.engine, err = handoff.New(cfg.ConfigDir, opts...)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	return a, nil
}

// close ends every live session and releases the stores.
func (a *app) close() error {
	var errs []error
	if a.engine != nil {
		errs = append(errs, a.engine.Close(context.Background()))
	}
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// mustApp is newApp for commands that cannot continue without an engine.
func mustApp(cmd *cobra.Command) *app {
	a, err := newApp(cmd)
	if err != nil {
		exitf("Error initializing handoff: %v\n", err)
	}
	return a
}
