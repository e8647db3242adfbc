// Package postprocess normalizes enhanced output duration with a lossless
// trim. The stage is best-effort: absent tooling degrades to a no-op and
// never fails the pipeline.
package postprocess

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"convertupload/internal/config"
	"convertupload/internal/logging"
	"convertupload/internal/media/ffprobe"
)

// DurationTolerance is the deviation, in seconds, below which output is left
// untouched.
const DurationTolerance = 0.1

// Prober reports a container's duration in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Trimmer writes a copy of src truncated to the given duration at dst,
// without re-encoding.
type Trimmer interface {
	Trim(ctx context.Context, src, dst string, seconds float64) error
}

// Processor runs the duration normalization pass.
type Processor struct {
	prober  Prober
	trimmer Trimmer
	logger  *slog.Logger
}

// NewProcessor wires the ffprobe/ffmpeg implementations when the binaries are
// available; either capability missing leaves the corresponding field nil and
// Normalize a no-op.
func NewProcessor(cfg *config.Config, logger *slog.Logger) *Processor {
	p := &Processor{logger: logging.NewComponentLogger(logger, "postprocess")}
	if ffprobe.Available(cfg.FFprobeBinary()) {
		p.prober = ffprobeProber{binary: cfg.FFprobeBinary()}
	}
	if _, err := exec.LookPath(cfg.FFmpegBinary()); err == nil {
		p.trimmer = ffmpegTrimmer{binary: cfg.FFmpegBinary()}
	}
	return p
}

// NewProcessorWith injects explicit capabilities (tests).
func NewProcessorWith(prober Prober, trimmer Trimmer, logger *slog.Logger) *Processor {
	return &Processor{prober: prober, trimmer: trimmer, logger: logging.NewComponentLogger(logger, "postprocess")}
}

// Normalize trims path to targetSeconds when the actual duration exceeds the
// target by more than the tolerance, atomically replacing the original. It
// never returns an error the pipeline should act on; problems are logged and
// the file left as rendered.
func (p *Processor) Normalize(ctx context.Context, path string, targetSeconds float64) {
	if p.prober == nil || p.trimmer == nil {
		p.logger.Debug("trim tooling unavailable, leaving output untouched")
		return
	}
	if targetSeconds <= 0 {
		return
	}

	actual, err := p.prober.Duration(ctx, path)
	if err != nil {
		p.logger.Warn("duration probe failed, leaving output untouched", logging.Error(err))
		return
	}
	if actual <= targetSeconds+DurationTolerance {
		p.logger.Debug("output duration within tolerance",
			logging.Float64("actual", actual),
			logging.Float64("target", targetSeconds),
		)
		return
	}

	tmp := path + ".trim" + strings.ToLower(extOf(path))
	if err := p.trimmer.Trim(ctx, path, tmp, targetSeconds); err != nil {
		p.logger.Warn("lossless trim failed, leaving output untouched", logging.Error(err))
		_ = os.Remove(tmp)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		p.logger.Warn("trim replace failed, leaving output untouched", logging.Error(err))
		_ = os.Remove(tmp)
		return
	}
	p.logger.Info("output trimmed to target duration",
		logging.Float64("actual", actual),
		logging.Float64("target", targetSeconds),
	)
}

func extOf(path string) string {
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		return path[idx:]
	}
	return ".mp4"
}

type ffprobeProber struct {
	binary string
}

func (p ffprobeProber) Duration(ctx context.Context, path string) (float64, error) {
	result, err := ffprobe.Inspect(ctx, p.binary, path)
	if err != nil {
		return 0, err
	}
	return result.DurationSeconds(), nil
}

type ffmpegTrimmer struct {
	binary string
}

func (t ffmpegTrimmer) Trim(ctx context.Context, src, dst string, seconds float64) error {
	args := []string{
		"-y",
		"-i", src,
		"-t", strconv.FormatFloat(seconds, 'f', 3, 64),
		"-c", "copy",
		dst,
	}
	cmd := exec.CommandContext(ctx, t.binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg trim: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
