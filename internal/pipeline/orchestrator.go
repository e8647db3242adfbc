package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"convertupload/internal/config"
	"convertupload/internal/delivery"
	"convertupload/internal/logging"
	"convertupload/internal/render"
	"convertupload/internal/services"
	"convertupload/internal/transfer"
)

// JobRunner drives one render job on an attached session.
type JobRunner interface {
	Submit(ctx context.Context) (render.JobHandle, string, error)
	AwaitCompletion(ctx context.Context, handle render.JobHandle) error
}

// Attacher produces a live engine session.
type Attacher interface {
	Attach(ctx context.Context) (render.Session, error)
}

// Normalizer is the post-processing pass over the rendered artifact.
type Normalizer interface {
	Normalize(ctx context.Context, path string, targetSeconds float64)
}

// Previewer owns the auxiliary-display playback loop.
type Previewer interface {
	Show(ctx context.Context, path string) error
	Stop()
}

// ArtifactUploader pushes the artifact to remote storage.
type ArtifactUploader interface {
	Upload(ctx context.Context, path string) (string, error)
	Tracker() *transfer.Tracker
}

// Notifier fans the share link out to the captured contact.
type Notifier interface {
	Deliver(ctx context.Context, contact delivery.ContactInfo, shareLink string) []delivery.Outcome
}

// ProbeDuration reports a clip's duration in seconds.
type ProbeDuration func(ctx context.Context, path string) (float64, error)

// Deps are the collaborators the orchestrator coordinates.
type Deps struct {
	Attach    Attacher
	NewRunner func(session render.Session) JobRunner
	Post      Normalizer
	Preview   Previewer
	Uploader  ArtifactUploader
	Notifier  Notifier
	Probe     ProbeDuration
}

// Status is one published snapshot of pipeline progress.
type Status struct {
	State          State
	EnhancePercent int
	Upload         transfer.Progress
}

// Orchestrator runs exactly one capture→enhance→deliver pipeline. The
// render phase runs as a background task; upload waits on both render
// completion and the wizard's consent signal, in whichever order they
// arrive. Any stage failure is terminal.
type Orchestrator struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	onStatus func(Status)

	mu        sync.Mutex
	state     State
	failure   error
	contact   delivery.ContactInfo
	artifact  string
	estimator *Estimator

	contactSet  chan struct{}
	consent     chan struct{}
	renderDone  chan struct{}
	delivered   chan struct{}
	failed      chan struct{}
	contactOnce sync.Once
	consentOnce sync.Once
	failOnce    sync.Once
}

type OrchestratorOption func(*Orchestrator)

// WithStatusSink registers a callback for published progress snapshots.
func WithStatusSink(sink func(Status)) OrchestratorOption {
	return func(o *Orchestrator) { o.onStatus = sink }
}

// WithOrchestratorClock overrides time for tests.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(cfg *config.Config, deps Deps, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		deps:       deps,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		now:        time.Now,
		state:      StateIdle,
		contactSet: make(chan struct{}),
		consent:    make(chan struct{}),
		renderDone: make(chan struct{}),
		delivered:  make(chan struct{}),
		failed:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State reports the current pipeline state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Err reports the terminal failure, nil before any.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failure
}

// Artifact reports the rendered output path, empty until the render phase
// produced one.
func (o *Orchestrator) Artifact() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.artifact
}

// RenderDone is closed once the artifact is post-processed and ready.
func (o *Orchestrator) RenderDone() <-chan struct{} {
	return o.renderDone
}

// Delivered is closed once notifications have been dispatched.
func (o *Orchestrator) Delivered() <-chan struct{} {
	return o.delivered
}

// ContactCaptured records the wizard's validated contact data. First call
// wins; the contact is immutable once captured.
func (o *Orchestrator) ContactCaptured(contact delivery.ContactInfo) {
	o.contactOnce.Do(func() {
		o.mu.Lock()
		o.contact = contact
		o.mu.Unlock()
		close(o.contactSet)
		o.logger.Info("contact captured",
			logging.String("email", contact.Email),
			logging.Int("sms_targets", len(contact.SMSTargets)),
		)
	})
}

// ConsentGiven unblocks the upload phase. Idempotent. Consent may arrive
// before or after render completion; upload starts only once both hold.
func (o *Orchestrator) ConsentGiven() {
	o.consentOnce.Do(func() {
		close(o.consent)
		o.logger.Info("upload consent received")
	})
}

// Snapshot publishes the current progress figures.
func (o *Orchestrator) Snapshot() Status {
	o.mu.Lock()
	state := o.state
	estimator := o.estimator
	o.mu.Unlock()

	status := Status{State: state}
	if estimator != nil {
		status.EnhancePercent = estimator.Percent(o.now())
	}
	if o.deps.Uploader != nil {
		status.Upload = o.deps.Uploader.Tracker().Snapshot()
	}
	return status
}

// Run drives the pipeline to Delivered or Failed and returns the terminal
// failure, if any.
func (o *Orchestrator) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		o.progressLoop(runCtx)
	}()
	go func() {
		defer wg.Done()
		o.deliverPhase(runCtx)
	}()
	go func() {
		defer wg.Done()
		o.renderPhase(runCtx)
	}()

	select {
	case <-ctx.Done():
	case <-o.delivered:
	case <-o.failed:
	}
	cancel()
	wg.Wait()

	o.deps.Preview.Stop()
	return o.Err()
}

// renderPhase is the attach→submit→await→post-process sequence.
func (o *Orchestrator) renderPhase(ctx context.Context) {
	input := o.cfg.Paths.InputVideo

	expected, err := o.deps.Probe(ctx, input)
	if err != nil {
		o.logger.Warn("input probe failed, progress estimate disabled", logging.Error(err))
		expected = 0
	}
	o.mu.Lock()
	o.estimator = NewEstimator(o.now(), expected)
	o.mu.Unlock()

	if err := o.deps.Preview.Show(ctx, input); err != nil {
		o.logger.Warn("raw preview failed", logging.Error(err))
	}

	if err := o.transition(StateAttaching); err != nil {
		o.fail(err)
		return
	}
	session, err := o.deps.Attach.Attach(ctx)
	if err != nil {
		o.fail(err)
		return
	}
	defer session.Close()

	if err := o.transition(StateRendering); err != nil {
		o.fail(err)
		return
	}
	runner := o.deps.NewRunner(session)
	handle, artifact, err := runner.Submit(ctx)
	if err != nil {
		o.fail(err)
		return
	}
	if err := runner.AwaitCompletion(ctx, handle); err != nil {
		o.fail(err)
		return
	}

	if err := o.transition(StatePostProcessing); err != nil {
		o.fail(err)
		return
	}
	o.deps.Post.Normalize(ctx, artifact, expected)

	if err := o.deps.Preview.Show(ctx, artifact); err != nil {
		o.logger.Warn("enhanced preview failed", logging.Error(err))
	}

	// The engine has done its work; release it without blocking the
	// pipeline on a clean exit.
	if err := session.Quit(ctx); err != nil {
		o.logger.Warn("engine quit failed", logging.Error(err))
	}

	o.mu.Lock()
	o.artifact = artifact
	if o.estimator != nil {
		o.estimator.Complete()
	}
	o.mu.Unlock()

	if err := o.transition(StateReadyForUpload); err != nil {
		o.fail(err)
		return
	}
	close(o.renderDone)
	o.logger.Info("artifact ready", logging.String("artifact", artifact))
}

// deliverPhase waits for render completion and consent, then uploads and
// dispatches notifications.
func (o *Orchestrator) deliverPhase(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-o.renderDone:
	}
	select {
	case <-ctx.Done():
		return
	case <-o.consent:
	}
	select {
	case <-ctx.Done():
		return
	case <-o.contactSet:
	}

	if err := o.transition(StateUploading); err != nil {
		o.fail(err)
		return
	}
	o.mu.Lock()
	artifact := o.artifact
	contact := o.contact
	o.mu.Unlock()

	shareLink, err := o.deps.Uploader.Upload(ctx, artifact)
	if err != nil {
		o.fail(err)
		return
	}

	outcomes := o.deps.Notifier.Deliver(ctx, contact, shareLink)
	sent := 0
	for _, outcome := range outcomes {
		if outcome.Err == nil {
			sent++
		}
	}
	o.logger.Info("notifications dispatched",
		logging.Int("sent", sent),
		logging.Int("attempted", len(outcomes)),
	)

	if err := o.transition(StateDelivered); err != nil {
		o.fail(err)
		return
	}
	close(o.delivered)
}

// progressLoop republishes progress snapshots on a fixed cadence.
func (o *Orchestrator) progressLoop(ctx context.Context) {
	interval := time.Duration(o.cfg.Workflow.ProgressInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := o.Snapshot()
			if o.onStatus != nil {
				o.onStatus(status)
			}
			o.logger.Debug("progress",
				logging.String("state", status.State.String()),
				logging.Int("enhance_percent", status.EnhancePercent),
				logging.Float64("upload_fraction", status.Upload.Fraction),
			)
			if status.State.Terminal() {
				return
			}
		}
	}
}

func (o *Orchestrator) transition(to State) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !canTransition(o.state, to) {
		return services.Wrap(services.ErrValidation, "pipeline", "transition",
			fmt.Sprintf("cannot move from %s to %s", o.state, to), nil)
	}
	o.logger.Info("state change",
		logging.String("from", o.state.String()),
		logging.String("to", to.String()),
	)
	o.state = to
	return nil
}

// fail records the terminal error and moves to Failed. First failure wins.
func (o *Orchestrator) fail(err error) {
	o.failOnce.Do(func() {
		o.mu.Lock()
		o.failure = err
		if canTransition(o.state, StateFailed) {
			o.state = StateFailed
		}
		o.mu.Unlock()
		o.logger.Error("pipeline failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Cause(err)),
		)
		close(o.failed)
	})
}
