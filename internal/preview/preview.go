package preview

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"

	"convertupload/internal/config"
	"convertupload/internal/logging"
)

// Display is one auxiliary screen the preview loop should cover.
type Display struct {
	Index int
	X     int
	Y     int
}

// Monitors reports the auxiliary displays available for preview playback.
type Monitors interface {
	Auxiliary(ctx context.Context) ([]Display, error)
}

type staticMonitors struct {
	displays []Display
}

func (m staticMonitors) Auxiliary(context.Context) ([]Display, error) {
	return m.displays, nil
}

// StaticMonitors reports a fixed display set.
func StaticMonitors(displays ...Display) Monitors {
	return staticMonitors{displays: displays}
}

// DefaultMonitors assumes one preview surface at the origin. Kiosks with a
// real multi-head layout inject their own Monitors.
func DefaultMonitors() Monitors {
	return StaticMonitors(Display{Index: 0})
}

// Process is one running player the manager can reap. Done is closed once
// the player has exited, whether it finished on its own or was terminated.
type Process interface {
	Terminate() error
	Done() <-chan struct{}
}

// StartFunc launches one player process. Injected in tests.
type StartFunc func(ctx context.Context, binary string, args []string) (Process, error)

// Manager owns the looping preview players. Show swaps the playing source
// atomically: the previous generation is terminated under the same lock
// before the next one starts, so exactly one generation is ever alive.
type Manager struct {
	cfg      config.Preview
	monitors Monitors
	start    StartFunc
	logger   *slog.Logger

	mu     sync.Mutex
	procs  []Process
	source string
}

type ManagerOption func(*Manager)

// WithMonitors overrides display discovery.
func WithMonitors(monitors Monitors) ManagerOption {
	return func(m *Manager) { m.monitors = monitors }
}

// WithStartFunc overrides process launching.
func WithStartFunc(start StartFunc) ManagerOption {
	return func(m *Manager) { m.start = start }
}

func NewManager(cfg *config.Config, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:      cfg.Preview,
		monitors: DefaultMonitors(),
		start:    startPlayer,
		logger:   logging.NewComponentLogger(logger, "preview"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Show starts a looping preview of path on every auxiliary display,
// replacing whatever was playing before. Disabled preview is a no-op.
func (m *Manager) Show(ctx context.Context, path string) error {
	if !m.cfg.Enabled {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.terminateLocked()

	displays, err := m.monitors.Auxiliary(ctx)
	if err != nil {
		return fmt.Errorf("discover displays: %w", err)
	}
	for _, display := range displays {
		proc, err := m.start(ctx, m.cfg.PlayerBinary, m.playerArgs(display, path))
		if err != nil {
			m.logger.Warn("player start failed",
				logging.Int("display", display.Index),
				logging.Error(err),
			)
			continue
		}
		m.procs = append(m.procs, proc)
	}
	m.source = path
	m.logger.Info("preview playing",
		logging.String("source", path),
		logging.Int("players", len(m.procs)),
	)
	return nil
}

// Restart replays the current source, used when the foreground loop sees
// playback end. A manager with nothing showing is a no-op.
func (m *Manager) Restart(ctx context.Context) error {
	m.mu.Lock()
	source := m.source
	m.mu.Unlock()
	if source == "" {
		return nil
	}
	return m.Show(ctx, source)
}

// Playing reports whether any player process is alive. Exited players are
// pruned so the foreground loop can detect playback ending and restart it.
func (m *Manager) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	alive := m.procs[:0]
	for _, proc := range m.procs {
		select {
		case <-proc.Done():
		default:
			alive = append(alive, proc)
		}
	}
	m.procs = alive
	return len(m.procs) > 0
}

// Stop terminates every player.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminateLocked()
	m.source = ""
}

func (m *Manager) terminateLocked() {
	for _, proc := range m.procs {
		if err := proc.Terminate(); err != nil {
			m.logger.Warn("player terminate failed", logging.Error(err))
		}
	}
	m.procs = nil
}

func (m *Manager) playerArgs(display Display, path string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-noborder",
		"-loop", "0",
		"-left", strconv.Itoa(display.X),
		"-top", strconv.Itoa(display.Y),
	}
	if m.cfg.FrameRate > 0 {
		args = append(args, "-vf", fmt.Sprintf("fps=%d", m.cfg.FrameRate))
	}
	return append(args, path)
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *execProcess) Terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *execProcess) Done() <-chan struct{} { return p.done }

func startPlayer(_ context.Context, binary string, args []string) (Process, error) {
	cmd := exec.Command(binary, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	proc := &execProcess{cmd: cmd, done: make(chan struct{})}
	// Reap the process when it exits or is killed.
	go func() {
		_ = cmd.Wait()
		close(proc.done)
	}()
	return proc, nil
}
