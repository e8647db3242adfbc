package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"convertupload/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Requirement defines an external binary the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// minFreeBytes is the output-directory headroom required before a render
// starts. An enhanced clip plus the trim scratch copy fits comfortably.
const minFreeBytes = 2 << 30

// RunAll executes every applicable check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckInputClip(cfg.Paths.InputVideo))
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckDiskSpace(cfg.Paths.OutputDir))
	results = append(results, CheckBinaries(Requirements(cfg))...)
	return results
}

// Requirements lists the external binaries for the given config.
func Requirements(cfg *config.Config) []Requirement {
	requirements := []Requirement{
		{
			Name:        "Render engine",
			Command:     cfg.Render.EngineBinary,
			Description: "Required for clip enhancement",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for media inspection",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for duration correction",
			Optional:    true,
		},
	}
	if cfg.Preview.Enabled {
		requirements = append(requirements, Requirement{
			Name:        "Preview player",
			Command:     cfg.Preview.PlayerBinary,
			Description: "Required for auxiliary-display playback",
		})
	}
	return requirements
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Result {
	results := make([]Result, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		if cmd == "" {
			results = append(results, Result{Name: req.Name, Detail: "command not configured"})
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			detail := fmt.Sprintf("binary %q not found", cmd)
			results = append(results, Result{Name: req.Name, Passed: req.Optional, Detail: detail})
			continue
		}
		results = append(results, Result{Name: req.Name, Passed: true, Detail: cmd})
	}
	return results
}

// CheckInputClip verifies the captured clip exists and is not empty.
func CheckInputClip(path string) Result {
	const name = "Input clip"
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if info.Size() == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: empty file)", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDirectoryAccess verifies the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies the output filesystem has headroom for a render.
func CheckDiskSpace(path string) Result {
	const name = "Disk space"
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%.1f GiB free on %s", float64(free)/(1<<30), path)
	if free < minFreeBytes {
		return Result{Name: name, Detail: detail + " (need at least 2 GiB)"}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}
