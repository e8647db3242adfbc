package render

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"convertupload/internal/services"
)

// Launcher starts the engine process when no session is reachable.
type Launcher interface {
	Launch(ctx context.Context) error
}

// NewProcessLauncher returns a Launcher that spawns the engine binary
// detached from the pipeline process. Launch is idempotent within one run;
// the engine itself tolerates a second headless start when already running.
func NewProcessLauncher(binary string, args []string) Launcher {
	return &processLauncher{binary: strings.TrimSpace(binary), args: args}
}

type processLauncher struct {
	binary string
	args   []string

	mu       sync.Mutex
	launched bool
}

func (l *processLauncher) Launch(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.launched {
		return nil
	}
	if l.binary == "" {
		return services.Wrap(services.ErrEngineMissing, "attach", "launch engine", "no engine binary configured", nil)
	}
	path, err := exec.LookPath(l.binary)
	if err != nil {
		return services.Wrap(services.ErrEngineMissing, "attach", "launch engine", "engine binary not found", err)
	}

	// Not CommandContext: the engine must outlive any per-attempt deadline.
	cmd := exec.Command(path, l.args...)
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrEngineMissing, "attach", "launch engine", "engine failed to start", err)
	}
	go func() { _ = cmd.Wait() }()

	l.launched = true
	return nil
}

// NopLauncher never spawns anything. Used when the engine lifecycle is
// managed externally.
type NopLauncher struct{}

func (NopLauncher) Launch(context.Context) error { return nil }
