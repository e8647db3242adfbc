// Package guard enforces the single-kiosk-process rule with a file lock.
package guard

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"convertupload/internal/config"
	"convertupload/internal/services"
)

// Lock is the process-wide run lock. Exactly one pipeline may run per
// machine; a second invocation fails fast instead of fighting over the
// render engine and displays.
type Lock struct {
	path string
	lock *flock.Flock
}

// New builds the lock under the data directory.
func New(cfg *config.Config) *Lock {
	return NewPath(filepath.Join(cfg.Paths.DataDir, "convertupload.lock"))
}

// NewPath builds the lock at an explicit location.
func NewPath(path string) *Lock {
	return &Lock{path: path, lock: flock.New(path)}
}

// Acquire takes the lock without blocking. A held lock means another
// instance is live.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return services.Wrap(services.ErrConfiguration, "guard", "acquire lock",
			"another instance is already running", nil)
	}
	return nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	return l.lock.Unlock()
}

// Path reports the lock file location.
func (l *Lock) Path() string {
	return l.path
}
