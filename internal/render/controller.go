package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"convertupload/internal/config"
	"convertupload/internal/logging"
	"convertupload/internal/retry"
	"convertupload/internal/services"
)

// ProbeFunc reports the dimensions of the input clip. Width and height of
// zero mean the probe tooling is unavailable; the timeline then keeps the
// project's own resolution.
type ProbeFunc func(ctx context.Context, path string) (width, height int, err error)

// maxConsecutivePollErrors bounds transient scripting-service hiccups before
// the render is considered lost.
const maxConsecutivePollErrors = 5

// Controller configures and drives exactly one render job to completion.
type Controller struct {
	cfg     *config.Config
	session Session
	probe   ProbeFunc
	logger  *slog.Logger
	now     func() time.Time
}

// ControllerOption adjusts controller construction.
type ControllerOption func(*Controller)

// WithClock overrides the timestamp source used for job naming (tests).
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController constructs a render job controller bound to a session.
func NewController(cfg *config.Config, session Session, probe ProbeFunc, logger *slog.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		cfg:     cfg,
		session: session,
		probe:   probe,
		logger:  logging.NewComponentLogger(logger, "render"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit prepares the project and submits one render job. It returns the
// opaque job handle and the deterministic output path the engine will write.
func (c *Controller) Submit(ctx context.Context) (JobHandle, string, error) {
	if err := c.ensureProject(ctx); err != nil {
		return "", "", err
	}

	input := c.cfg.Paths.InputVideo
	clips, err := c.session.ImportMedia(ctx, []string{input})
	if err != nil {
		return "", "", services.Wrap(services.ErrExternalTool, "render", "import media", input, err)
	}
	if len(clips) == 0 {
		return "", "", services.Wrap(services.ErrExternalTool, "render", "import media", "engine returned no clips for input", nil)
	}

	stamp := c.now().Format("20060102_150405")
	timelineName := "TempTimeline_" + stamp
	if err := c.session.CreateTimeline(ctx, timelineName, clips); err != nil {
		return "", "", services.Wrap(services.ErrExternalTool, "render", "create timeline", timelineName, err)
	}

	spec := c.buildSpec(ctx, input, stamp)
	if err := c.session.ApplySettings(ctx, spec.Settings); err != nil {
		return "", "", services.Wrap(services.ErrExternalTool, "render", "apply settings", "", err)
	}

	if err := c.session.ClearRenderJobs(ctx); err != nil {
		return "", "", services.Wrap(services.ErrExternalTool, "render", "clear jobs", "", err)
	}
	handle, err := c.session.SubmitJob(ctx)
	if err != nil {
		return "", "", services.Wrap(services.ErrExternalTool, "render", "submit job", "", err)
	}

	outputPath := filepath.Join(spec.OutputDir, spec.BaseName+"."+spec.Format)
	c.logger.Info("render job submitted",
		logging.String("job_id", string(handle)),
		logging.String("output", outputPath),
	)
	return handle, outputPath, nil
}

// AwaitCompletion polls the job at the configured status cadence, emitting a
// progress heartbeat at the coarser log cadence, until the engine reports the
// render finished.
func (c *Controller) AwaitCompletion(ctx context.Context, handle JobHandle) error {
	pollInterval := time.Duration(c.cfg.Render.PollIntervalMS) * time.Millisecond
	logInterval := time.Duration(c.cfg.Render.LogInterval) * time.Second
	pollTimeout := time.Duration(c.cfg.Render.PollTimeout) * time.Second

	lastBeat := c.now()
	pollErrors := 0
	err := retry.Poll(ctx, pollInterval, pollTimeout, func(ctx context.Context) (bool, error) {
		running, err := c.session.JobInProgress(ctx, handle)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false, err
			}
			pollErrors++
			if pollErrors >= maxConsecutivePollErrors {
				return false, services.Wrap(services.ErrExternalTool, "render", "poll job", "engine stopped answering status checks", err)
			}
			c.logger.Warn("render status check failed", logging.Error(err), logging.Int("consecutive", pollErrors))
			return false, nil
		}
		pollErrors = 0

		if now := c.now(); now.Sub(lastBeat) >= logInterval {
			lastBeat = now
			if pct, progressErr := c.session.JobProgress(ctx, handle); progressErr == nil {
				c.logger.Info("render in progress", logging.Int("percent", pct))
			}
		}
		return !running, nil
	})
	if err != nil {
		if errors.Is(err, retry.ErrTimeout) {
			return services.Wrap(services.ErrExternalTool, "render", "await completion", "render exceeded poll timeout", err)
		}
		return err
	}
	c.logger.Info("render complete", logging.String("job_id", string(handle)))
	return nil
}

func (c *Controller) ensureProject(ctx context.Context) error {
	name := c.cfg.Render.ProjectName
	loaded, err := c.session.LoadProject(ctx, name)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "load project", name, err)
	}
	if loaded {
		return nil
	}

	template := strings.TrimSpace(c.cfg.Render.ProjectTemplate)
	if template == "" {
		return services.Wrap(services.ErrProjectUnavailable, "render", "load project", fmt.Sprintf("project %q absent and no template configured", name), nil)
	}
	if err := c.session.ImportProject(ctx, template); err != nil {
		return services.Wrap(services.ErrProjectUnavailable, "render", "import template", template, err)
	}
	loaded, err = c.session.LoadProject(ctx, name)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "load project", name, err)
	}
	if !loaded {
		return services.Wrap(services.ErrProjectUnavailable, "render", "load project", fmt.Sprintf("project %q still absent after template import", name), nil)
	}
	return nil
}

func (c *Controller) buildSpec(ctx context.Context, input, stamp string) JobSpec {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + "_enhanced_" + stamp
	spec := JobSpec{
		InputPath:  input,
		OutputDir:  c.cfg.Paths.OutputDir,
		BaseName:   base,
		Format:     c.cfg.Render.Format,
		VideoCodec: c.cfg.Render.VideoCodec,
		Encoder:    c.cfg.Render.Encoder,
		Quality:    c.cfg.Render.Quality,
	}

	if c.probe != nil {
		if w, h, err := c.probe(ctx, input); err == nil && w > 0 && h > 0 {
			spec.Width = w
			spec.Height = h
		} else if err != nil {
			c.logger.Debug("input dimension probe unavailable", logging.Error(err))
		}
	}

	bundle := SettingsBundle{
		"TargetDir":   spec.OutputDir,
		"CustomName":  spec.BaseName,
		"Format":      spec.Format,
		"VideoCodec":  spec.VideoCodec,
		"Encoder":     spec.Encoder,
		"Quality":     spec.Quality,
		"RateControl": c.cfg.Render.RateControl,
		"Preset":      c.cfg.Render.Preset,
		"ExportVideo": "true",
		"ExportAudio": "true",
	}
	if spec.Width > 0 && spec.Height > 0 {
		bundle["TimelineResolutionWidth"] = strconv.Itoa(spec.Width)
		bundle["TimelineResolutionHeight"] = strconv.Itoa(spec.Height)
		bundle["TimelineOutputResolutionWidth"] = strconv.Itoa(spec.Width)
		bundle["TimelineOutputResolutionHeight"] = strconv.Itoa(spec.Height)
	}
	spec.Settings = bundle
	return spec
}
