package postprocess_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"convertupload/internal/logging"
	"convertupload/internal/postprocess"
)

type fixedProber struct {
	duration float64
	err      error
}

func (p fixedProber) Duration(context.Context, string) (float64, error) {
	return p.duration, p.err
}

type recordingTrimmer struct {
	calls   int
	seconds float64
	err     error
}

func (t *recordingTrimmer) Trim(_ context.Context, _, dst string, seconds float64) error {
	t.calls++
	t.seconds = seconds
	if t.err != nil {
		return t.err
	}
	return os.WriteFile(dst, []byte("trimmed"), 0o644)
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip_enhanced.mp4")
	if err := os.WriteFile(path, []byte("rendered"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestNormalizeNoopWithinTolerance(t *testing.T) {
	path := writeArtifact(t)
	trimmer := &recordingTrimmer{}
	proc := postprocess.NewProcessorWith(fixedProber{duration: 60.05}, trimmer, logging.NewNop())

	proc.Normalize(context.Background(), path, 60)

	if trimmer.calls != 0 {
		t.Fatalf("trim calls = %d, want 0", trimmer.calls)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "rendered" {
		t.Fatalf("artifact modified: %q, %v", data, err)
	}
}

func TestNormalizeTrimsAndReplacesWhenTooLong(t *testing.T) {
	path := writeArtifact(t)
	trimmer := &recordingTrimmer{}
	proc := postprocess.NewProcessorWith(fixedProber{duration: 61.4}, trimmer, logging.NewNop())

	proc.Normalize(context.Background(), path, 60)

	if trimmer.calls != 1 {
		t.Fatalf("trim calls = %d, want 1", trimmer.calls)
	}
	if trimmer.seconds != 60 {
		t.Fatalf("trim target = %v, want 60", trimmer.seconds)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "trimmed" {
		t.Fatalf("artifact not replaced: %q, %v", data, err)
	}
	if _, err := os.Stat(path + ".trim.mp4"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestNormalizeNoopWithoutTooling(t *testing.T) {
	path := writeArtifact(t)
	proc := postprocess.NewProcessorWith(nil, nil, logging.NewNop())

	// Must not panic or touch the file.
	proc.Normalize(context.Background(), path, 60)

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "rendered" {
		t.Fatalf("artifact modified: %q, %v", data, err)
	}
}

func TestNormalizeKeepsOriginalWhenTrimFails(t *testing.T) {
	path := writeArtifact(t)
	trimmer := &recordingTrimmer{err: errors.New("codec mismatch")}
	proc := postprocess.NewProcessorWith(fixedProber{duration: 90}, trimmer, logging.NewNop())

	proc.Normalize(context.Background(), path, 60)

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "rendered" {
		t.Fatalf("artifact modified after failed trim: %q, %v", data, err)
	}
}

func TestNormalizeKeepsOriginalWhenProbeFails(t *testing.T) {
	path := writeArtifact(t)
	trimmer := &recordingTrimmer{}
	proc := postprocess.NewProcessorWith(fixedProber{err: errors.New("probe exploded")}, trimmer, logging.NewNop())

	proc.Normalize(context.Background(), path, 60)

	if trimmer.calls != 0 {
		t.Fatalf("trim calls = %d, want 0", trimmer.calls)
	}
}
