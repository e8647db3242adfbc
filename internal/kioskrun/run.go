package kioskrun

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"convertupload/internal/config"
	"convertupload/internal/delivery"
	"convertupload/internal/guard"
	"convertupload/internal/logging"
	"convertupload/internal/media/ffprobe"
	"convertupload/internal/pipeline"
	"convertupload/internal/postprocess"
	"convertupload/internal/preflight"
	"convertupload/internal/preview"
	"convertupload/internal/render"
	"convertupload/internal/services"
	"convertupload/internal/store"
	"convertupload/internal/transfer"
	"convertupload/internal/wizard"
)

// Runner wires the pipeline together and drives one kiosk session from
// console attach to delivered notifications.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	in     io.Reader
	out    io.Writer

	previewOnce sync.Once
	preview     *preview.Manager
}

// New builds the runner. The logger writes to stdout and the run log file
// under the configured log directory.
func New(cfg *config.Config) (*Runner, error) {
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stdout",
			filepath.Join(cfg.Paths.LogDir, "convertupload.log"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Runner{cfg: cfg, logger: logger, in: os.Stdin, out: os.Stdout}, nil
}

// NewWith injects the logger and console streams, used by tests.
func NewWith(cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) *Runner {
	return &Runner{cfg: cfg, logger: logger, in: in, out: out}
}

// Run executes one full kiosk session.
func (r *Runner) Run(ctx context.Context) error {
	lock := guard.New(r.cfg)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	st, err := store.Open(r.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := r.runPreflight(ctx); err != nil {
		return err
	}

	run, err := st.BeginRun(ctx, r.cfg.Paths.InputVideo, pipeline.StateIdle.String())
	if err != nil {
		return err
	}
	ctx = services.WithRunID(ctx, run.ID)
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("run started", logging.String("input", r.cfg.Paths.InputVideo))

	orch := r.buildOrchestrator(st, run.ID, logger)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	orchDone := make(chan error, 1)
	go func() { orchDone <- orch.Run(runCtx) }()
	go r.foregroundLoop(runCtx, r.previewManager(logger), logger)

	wizardDone := make(chan error, 1)
	go func() { wizardDone <- r.runWizard(runCtx, st, run.ID, orch, logger) }()

	var runErr, wizardErr error
	select {
	case runErr = <-orchDone:
		// The pipeline ended before the wizard finished. A blocked
		// console read cannot be interrupted; the process is about to
		// exit anyway, so the wizard goroutine is abandoned.
		cancelRun()
	case wizardErr = <-wizardDone:
		if wizardErr != nil {
			// An abandoned wizard means no consent will ever arrive.
			cancelRun()
		}
		runErr = <-orchDone
	}
	cancelRun()

	r.persistOutcome(st, run.ID, orch, runErr, logger)

	if wizardErr != nil {
		return wizardErr
	}
	return runErr
}

func (r *Runner) runPreflight(ctx context.Context) error {
	results := preflight.RunAll(ctx, r.cfg)
	var failures []string
	for _, result := range results {
		if result.Passed {
			r.logger.Info("preflight ok",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		r.logger.Error("preflight failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
		failures = append(failures, result.Name)
	}
	if len(failures) > 0 {
		return services.Wrap(services.ErrConfiguration, "preflight", "run checks",
			"failed: "+strings.Join(failures, ", "), nil)
	}
	return nil
}

// buildOrchestrator assembles the real collaborators around the pipeline.
// The preview manager used by the orchestrator is separate from the
// foreground restart loop's view only in construction; both share state
// through the same manager instance.
func (r *Runner) buildOrchestrator(st *store.Store, runID string, logger *slog.Logger) *pipeline.Orchestrator {
	cfg := r.cfg

	dial := func(context.Context) (render.Session, error) {
		return render.Dial(cfg.Render.EngineAddress)
	}
	launcher := render.NewProcessLauncher(cfg.Render.EngineBinary, cfg.Render.EngineArgs)
	attach := render.NewAttachClient(dial, launcher,
		cfg.Render.AttachAttempts,
		time.Duration(cfg.Render.AttachInterval)*time.Second,
		logger,
	)

	probeDims := func(ctx context.Context, path string) (int, int, error) {
		result, err := ffprobe.Inspect(ctx, cfg.FFprobeBinary(), path)
		if err != nil {
			return 0, 0, err
		}
		width, height := result.Dimensions()
		return width, height, nil
	}
	probeDuration := func(ctx context.Context, path string) (float64, error) {
		result, err := ffprobe.Inspect(ctx, cfg.FFprobeBinary(), path)
		if err != nil {
			return 0, err
		}
		return result.DurationSeconds(), nil
	}

	deps := pipeline.Deps{
		Attach: attach,
		NewRunner: func(session render.Session) pipeline.JobRunner {
			return render.NewController(cfg, session, probeDims, logger)
		},
		Post:     postprocess.NewProcessor(cfg, logger),
		Preview:  r.previewManager(logger),
		Uploader: transfer.NewUploader(cfg, transfer.NewHTTPStorage(cfg), transfer.NewTracker(), logger),
		Notifier: &recordingNotifier{
			inner:  delivery.NewDispatcher(cfg, delivery.NewSMTPMessenger(cfg), logger),
			st:     st,
			runID:  runID,
			logger: logger,
		},
		Probe: probeDuration,
	}

	lastState := pipeline.StateIdle
	sink := func(status pipeline.Status) {
		if status.State == lastState {
			return
		}
		lastState = status.State
		if err := st.UpdateState(context.Background(), runID, status.State.String()); err != nil {
			logger.Warn("persist state failed", logging.Error(err))
		}
	}
	return pipeline.NewOrchestrator(cfg, deps, logger, pipeline.WithStatusSink(sink))
}

func (r *Runner) previewManager(logger *slog.Logger) *preview.Manager {
	r.previewOnce.Do(func() {
		r.preview = preview.NewManager(r.cfg, logger)
	})
	return r.preview
}

// foregroundLoop keeps the kiosk display alive: it restarts preview
// playback when it ends and emits a periodic keep-alive heartbeat.
func (r *Runner) foregroundLoop(ctx context.Context, previewMgr *preview.Manager, logger *slog.Logger) {
	pollInterval := time.Duration(r.cfg.Workflow.PlaybackPollIntervalMS) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	keepAlive := time.Duration(r.cfg.Workflow.KeepAliveInterval) * time.Second
	if keepAlive <= 0 {
		keepAlive = time.Second
	}

	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	keepAliveTicker := time.NewTicker(keepAlive)
	defer keepAliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			if !previewMgr.Playing() {
				if err := previewMgr.Restart(ctx); err != nil {
					logger.Warn("preview restart failed", logging.Error(err))
				}
			}
		case <-keepAliveTicker.C:
			logger.Debug("keep alive")
		}
	}
}

func (r *Runner) runWizard(ctx context.Context, st *store.Store, runID string, orch *pipeline.Orchestrator, logger *slog.Logger) error {
	w := wizard.New(r.cfg, r.in, r.out, logger)
	result, err := w.Run(ctx, orch)
	if err != nil {
		logger.Warn("wizard aborted", logging.Error(err))
		return err
	}
	if err := st.SetContact(ctx, runID, result.Contact.Email); err != nil {
		logger.Warn("persist contact failed", logging.Error(err))
	}
	if err := st.SetRating(ctx, runID, result.Rating); err != nil {
		logger.Warn("persist rating failed", logging.Error(err))
	}
	return nil
}

// recordingNotifier persists per-recipient outcomes alongside dispatch.
type recordingNotifier struct {
	inner  *delivery.Dispatcher
	st     *store.Store
	runID  string
	logger *slog.Logger
}

func (n *recordingNotifier) Deliver(ctx context.Context, contact delivery.ContactInfo, shareLink string) []delivery.Outcome {
	outcomes := n.inner.Deliver(ctx, contact, shareLink)
	if err := n.st.RecordOutcomes(ctx, n.runID, outcomes); err != nil {
		n.logger.Warn("persist delivery outcomes failed", logging.Error(err))
	}
	return outcomes
}

func (r *Runner) persistOutcome(st *store.Store, runID string, orch *pipeline.Orchestrator, runErr error, logger *slog.Logger) {
	if artifact := orch.Artifact(); artifact != "" {
		if err := st.SetArtifact(context.Background(), runID, artifact); err != nil {
			logger.Warn("persist artifact failed", logging.Error(err))
		}
	}

	errMessage := ""
	if runErr != nil {
		errMessage = runErr.Error()
	}
	shareLink := orch.Snapshot().Upload.ShareLink
	if err := st.FinishRun(context.Background(), runID, orch.State().String(), shareLink, errMessage); err != nil {
		logger.Warn("persist outcome failed", logging.Error(err))
	}
}
