package render

import "context"

// JobHandle is the opaque identifier returned by render job submission. It is
// only ever used for progress polling; the engine exposes no cancellation
// call.
type JobHandle string

// SettingsBundle carries one atomic render-settings application. Keys follow
// the engine's settings dictionary.
type SettingsBundle map[string]string

// Session is the scripting surface the pipeline needs from the rendering
// engine. Implementations talk to the engine's local scripting service; tests
// substitute fakes.
type Session interface {
	// LoadProject opens the named project, reporting false when the engine
	// does not know it.
	LoadProject(ctx context.Context, name string) (bool, error)
	// ImportProject imports a project archive so a subsequent LoadProject can
	// succeed.
	ImportProject(ctx context.Context, path string) error
	// ImportMedia registers source clips and returns their identifiers.
	ImportMedia(ctx context.Context, paths []string) ([]string, error)
	// CreateTimeline builds a timeline from the given clips and makes it
	// current.
	CreateTimeline(ctx context.Context, name string, clipIDs []string) error
	// ApplySettings applies one render-settings bundle atomically.
	ApplySettings(ctx context.Context, bundle SettingsBundle) error
	// ClearRenderJobs removes any queued render jobs so at most one job is
	// ever active.
	ClearRenderJobs(ctx context.Context) error
	// SubmitJob queues and starts exactly one render job.
	SubmitJob(ctx context.Context) (JobHandle, error)
	// JobInProgress reports whether the engine is still rendering.
	JobInProgress(ctx context.Context, handle JobHandle) (bool, error)
	// JobProgress returns the engine's own percent-complete for the job.
	JobProgress(ctx context.Context, handle JobHandle) (int, error)
	// Quit asks the engine to exit. Best-effort.
	Quit(ctx context.Context) error
	// Close releases the session transport.
	Close() error
}

// JobSpec describes one render job. It is constructed once before submission
// and never mutated afterwards.
type JobSpec struct {
	InputPath  string
	OutputDir  string
	BaseName   string
	Format     string
	VideoCodec string
	Encoder    string
	Quality    string

	// Timeline dimensions forced from the probed input, zero when unknown.
	Width  int
	Height int

	Settings SettingsBundle
}
