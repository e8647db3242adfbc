package transfer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"convertupload/internal/config"
	"convertupload/internal/logging"
	"convertupload/internal/services"
	"convertupload/internal/transfer"
)

type fakeSession struct {
	chunks      []int
	failBefore  int // fail with a transient error this many times first
	permanentAt int // chunk index (1-based) that fails permanently, 0 = never
	total       int64
	received    int64
	fileID      string
	onChunk     func()
}

func (s *fakeSession) Put(_ context.Context, chunk []byte, offset, total int64) (transfer.ChunkResult, error) {
	if s.onChunk != nil {
		s.onChunk()
	}
	if s.failBefore > 0 {
		s.failBefore--
		return transfer.ChunkResult{}, services.Wrap(services.ErrTransient, "upload", "put chunk", "flaky network", nil)
	}
	s.chunks = append(s.chunks, len(chunk))
	if s.permanentAt > 0 && len(s.chunks) >= s.permanentAt {
		return transfer.ChunkResult{}, services.Wrap(services.ErrUploadInterrupted, "upload", "put chunk", "service rejected upload", nil)
	}
	s.received = offset + int64(len(chunk))
	if s.received >= total {
		return transfer.ChunkResult{Fraction: 1, FileID: s.fileID}, nil
	}
	return transfer.ChunkResult{Fraction: float64(s.received) / float64(total)}, nil
}

type fakeStorage struct {
	session     *fakeSession
	publicIDs   []string
	publicErr   error
	sessionErrs int
}

func (s *fakeStorage) CreateSession(_ context.Context, name string, size int64) (transfer.UploadSession, error) {
	if s.sessionErrs > 0 {
		s.sessionErrs--
		return nil, services.Wrap(services.ErrTransient, "upload", "create session", "flaky network", nil)
	}
	s.session.total = size
	return s.session, nil
}

func (s *fakeStorage) SetPublic(_ context.Context, fileID string) error {
	s.publicIDs = append(s.publicIDs, fileID)
	return s.publicErr
}

func writeArtifact(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip_enhanced.mp4")
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func newTestUploader(t *testing.T, storage transfer.Storage, tracker *transfer.Tracker) *transfer.Uploader {
	t.Helper()
	cfg := config.Default()
	cfg.Upload.ChunkSizeMiB = 1
	pause := func(context.Context, time.Duration) error { return nil }
	return transfer.NewUploader(&cfg, storage, tracker, logging.NewNop(), transfer.WithRetryPause(pause))
}

func TestUploadProducesOneReferenceAndShareLink(t *testing.T) {
	const mib = 1024 * 1024
	path := writeArtifact(t, 2*mib+512)
	storage := &fakeStorage{session: &fakeSession{fileID: "abc123"}}
	tracker := transfer.NewTracker()

	link, err := newTestUploader(t, storage, tracker).Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if link != "https://drive.google.com/file/d/abc123/view?usp=sharing" {
		t.Fatalf("share link = %q", link)
	}
	if len(storage.session.chunks) != 3 {
		t.Fatalf("chunks = %v, want 3 chunks", storage.session.chunks)
	}
	if storage.session.chunks[0] != mib || storage.session.chunks[2] != 512 {
		t.Fatalf("chunk sizes = %v", storage.session.chunks)
	}

	snap := tracker.Snapshot()
	if !snap.Done || snap.Reference != "abc123" || snap.Fraction != 1 {
		t.Fatalf("final snapshot = %+v", snap)
	}
	if len(storage.publicIDs) != 1 || storage.publicIDs[0] != "abc123" {
		t.Fatalf("public grants = %v, want exactly one", storage.publicIDs)
	}
}

func TestUploadProgressIsMonotonic(t *testing.T) {
	const mib = 1024 * 1024
	path := writeArtifact(t, 4*mib)
	storage := &fakeStorage{session: &fakeSession{fileID: "xyz"}}
	tracker := transfer.NewTracker()

	// Each Put runs before the tracker records that chunk, so the hook
	// observes the snapshot left by the previous chunk.
	var fractions []float64
	storage.session.onChunk = func() {
		fractions = append(fractions, tracker.Snapshot().Fraction)
	}
	uploader := newTestUploader(t, storage, tracker)
	if _, err := uploader.Upload(context.Background(), path); err != nil {
		t.Fatalf("upload: %v", err)
	}
	fractions = append(fractions, tracker.Snapshot().Fraction)
	if len(fractions) < 4 {
		t.Fatalf("expected samples for every chunk, got %v", fractions)
	}

	last := 0.0
	for _, f := range fractions {
		if f < last {
			t.Fatalf("fraction regressed: %v", fractions)
		}
		last = f
	}
	if last != 1 {
		t.Fatalf("final fraction = %v, want 1", last)
	}
}

func TestUploadRetriesTransientChunkFailures(t *testing.T) {
	path := writeArtifact(t, 1024)
	storage := &fakeStorage{session: &fakeSession{fileID: "ok", failBefore: 3}, sessionErrs: 2}
	tracker := transfer.NewTracker()

	if _, err := newTestUploader(t, storage, tracker).Upload(context.Background(), path); err != nil {
		t.Fatalf("upload should survive transient failures: %v", err)
	}
	if !tracker.Snapshot().Done {
		t.Fatal("expected upload to finish")
	}
}

func TestUploadSurfacesPermanentFailure(t *testing.T) {
	path := writeArtifact(t, 1024)
	storage := &fakeStorage{session: &fakeSession{permanentAt: 1}}
	tracker := transfer.NewTracker()

	_, err := newTestUploader(t, storage, tracker).Upload(context.Background(), path)
	if !errors.Is(err, services.ErrUploadInterrupted) {
		t.Fatalf("expected ErrUploadInterrupted, got %v", err)
	}
	if tracker.Snapshot().Done {
		t.Fatal("tracker must not report done after failure")
	}
}

func TestUploadSucceedsWhenPermissionGrantFails(t *testing.T) {
	path := writeArtifact(t, 1024)
	storage := &fakeStorage{session: &fakeSession{fileID: "ok"}, publicErr: errors.New("denied")}
	tracker := transfer.NewTracker()

	link, err := newTestUploader(t, storage, tracker).Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if link == "" {
		t.Fatal("expected share link despite permission failure")
	}
}

func TestUploadRejectsEmptyArtifact(t *testing.T) {
	path := writeArtifact(t, 0)
	storage := &fakeStorage{session: &fakeSession{}}
	_, err := newTestUploader(t, storage, transfer.NewTracker()).Upload(context.Background(), path)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
