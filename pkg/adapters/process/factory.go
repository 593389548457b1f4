package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/ports"
)

// RuntimeKey is the AgentNode.Config key naming the runtime of an agent.
const RuntimeKey = "runtime"

// DefaultGracePeriod is how long Close waits after the interrupt before killing.
const DefaultGracePeriod = 5 * time.Second

var (
	// ErrNoRuntime is returned for agents without a runtime when no fallback is set.
	ErrNoRuntime = errors.New("agent has no runtime")
	// ErrRuntimeNotRegistered is returned for runtimes missing from the allow-list.
	ErrRuntimeNotRegistered = errors.New("runtime not registered")
)

// RegisteredProcess defines an allowed command.
type RegisteredProcess struct {
	Command string
	Args    []string
	Env     map[string]string
}

// Factory implements ports.AgentFactory by starting one worker process per
// materialized agent. Only registered runtimes can be started; the agent
// definition reaches the worker through HANDOFF_* environment variables.
type Factory struct {
	registry map[string]RegisteredProcess
	baseDir  string
	grace    time.Duration
	fallback ports.AgentFactory
	logger   *slog.Logger
}

// Option configures the factory.
type Option func(*Factory)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(runtimes map[string]ProcessConfig) Option {
	return func(f *Factory) {
		for name, rt := range runtimes {
			f.registry[name] = RegisteredProcess{Command: rt.Command, Args: rt.Args, Env: rt.Environment}
		}
	}
}

// WithBaseDir sets the working directory for started processes.
func WithBaseDir(dir string) Option {
	return func(f *Factory) { f.baseDir = dir }
}

// WithGracePeriod sets how long Close waits before killing a worker.
func WithGracePeriod(d time.Duration) Option {
	return func(f *Factory) { f.grace = d }
}

// WithFallback materializes agents that name no runtime.
func WithFallback(fallback ports.AgentFactory) Option {
	return func(f *Factory) { f.fallback = fallback }
}

// WithLogger receives the workers' output and lifecycle logs.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) { f.logger = logger }
}

// NewFactory creates a new process factory.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		registry: make(map[string]RegisteredProcess),
		grace:    DefaultGracePeriod,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register adds a trusted command to the allow-list.
func (f *Factory) Register(name string, command string, args ...string) {
	f.registry[name] = RegisteredProcess{Command: command, Args: args}
}

// Materialize starts the runtime named by node.Config["runtime"].
func (f *Factory) Materialize(ctx context.Context, node domain.AgentNode) (ports.AgentHandle, error) {
	name, _ := node.Config[RuntimeKey].(string)
	if name == "" {
		if f.fallback != nil {
			return f.fallback.Materialize(ctx, node)
		}
		return nil, fmt.Errorf("%w: %s", ErrNoRuntime, node.ID)
	}
	proc, ok := f.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuntimeNotRegistered, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	env, err := nodeEnv(node)
	if err != nil {
		return nil, err
	}
	for k, v := range proc.Env {
		env = append(env, k+"="+v)
	}

	// The worker outlives Materialize, so it is not bound to ctx.
	cmd := exec.Command(proc.Command, proc.Args...)
	cmd.Dir = f.baseDir
	cmd.Env = append(os.Environ(), env...)
	logger := f.logger.With("agent", node.ID, "runtime", name)
	cmd.Stdout = &logWriter{logger: logger, stream: "stdout"}
	cmd.Stderr = &logWriter{logger: logger, stream: "stderr"}
	cmd.WaitDelay = f.grace

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start runtime %s: %w", name, err)
	}
	logger.Debug("agent worker started", "pid", cmd.Process.Pid)

	h := &Handle{
		nodeID: node.ID,
		cmd:    cmd,
		grace:  f.grace,
		done:   make(chan struct{}),
		logger: logger,
	}
	go h.wait()
	return h, nil
}

// nodeEnv flattens the agent definition into environment variables.
func nodeEnv(node domain.AgentNode) ([]string, error) {
	raw, err := json.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent %s: %w", node.ID, err)
	}
	env := []string{
		"HANDOFF_AGENT_ID=" + node.ID,
		"HANDOFF_AGENT_NAME=" + node.DisplayName(),
		"HANDOFF_AGENT_TYPE=" + node.Type,
		"HANDOFF_AGENT_INSTRUCTIONS=" + node.Instructions,
		"HANDOFF_AGENT_TOOLS=" + strings.Join(node.Tools, ","),
		"HANDOFF_PROVIDER_LLM=" + node.Provider.LLM,
		"HANDOFF_PROVIDER_MODEL=" + node.Provider.Model,
		"HANDOFF_AGENT_NODE=" + string(raw),
	}

	keys := make([]string, 0, len(node.Config))
	for k := range node.Config {
		if k != RuntimeKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("HANDOFF_CONFIG_%s=%s", strings.ToUpper(k), envValue(node.Config[k])))
	}
	return env, nil
}

// envValue prints primitives as is and anything else as JSON.
func envValue(v any) string {
	switch v.(type) {
	case string, int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	case nil:
		return ""
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}

// Handle is a running agent worker.
type Handle struct {
	nodeID string
	cmd    *exec.Cmd
	grace  time.Duration
	logger *slog.Logger

	done    chan struct{}
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

func (h *Handle) wait() {
	h.waitErr = h.cmd.Wait()
	h.logger.Debug("agent worker exited", "err", h.waitErr)
	close(h.done)
}

// NodeID returns the node the worker was started for.
func (h *Handle) NodeID() string { return h.nodeID }

// Pid returns the worker process ID.
func (h *Handle) Pid() int { return h.cmd.Process.Pid }

// Done is closed when the worker exits.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Close asks the worker to stop and kills it after the grace period.
// A worker that already exited on its own reports its exit error.
func (h *Handle) Close(ctx context.Context) error {
	h.closeOnce.Do(func() { h.closeErr = h.stop(ctx) })
	return h.closeErr
}

func (h *Handle) stop(ctx context.Context) error {
	select {
	case <-h.done:
		return h.waitErr
	default:
	}

	if err := interrupt(h.cmd.Process); err != nil {
		_ = h.cmd.Process.Kill()
	}

	timer := time.NewTimer(h.grace)
	defer timer.Stop()
	select {
	case <-h.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	h.logger.Warn("agent worker ignored termination, killing")
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-h.done
	return nil
}

func interrupt(p *os.Process) error {
	if runtime.GOOS == "windows" {
		return p.Kill()
	}
	return p.Signal(os.Interrupt)
}

// logWriter forwards worker output line by line.
type logWriter struct {
	logger *slog.Logger
	stream string
	mu     sync.Mutex
	buf    []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logger.Debug(string(bytes.TrimRight(w.buf[:i], "\r")), "stream", w.stream)
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}
