package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"convertupload/internal/config"
	"convertupload/internal/logging"
	"convertupload/internal/services"
)

// maxChunkRetries bounds transient per-chunk retries before the upload is
// declared lost.
const maxChunkRetries = 60

// chunkRetryPause separates transient chunk retries.
const chunkRetryPause = time.Second

// Uploader streams one artifact to remote storage in fixed-size chunks,
// publishing Progress as it goes.
type Uploader struct {
	storage      Storage
	chunkSize    int64
	linkTemplate string
	tracker      *Tracker
	logger       *slog.Logger
	now          func() time.Time
	pause        func(ctx context.Context, d time.Duration) error
}

// UploaderOption adjusts uploader construction.
type UploaderOption func(*Uploader)

// WithUploadClock overrides the wall clock used for ETA math (tests).
func WithUploadClock(now func() time.Time) UploaderOption {
	return func(u *Uploader) {
		if now != nil {
			u.now = now
		}
	}
}

// WithRetryPause overrides the pause between transient chunk retries (tests).
func WithRetryPause(pause func(ctx context.Context, d time.Duration) error) UploaderOption {
	return func(u *Uploader) {
		if pause != nil {
			u.pause = pause
		}
	}
}

// NewUploader constructs a chunked uploader.
func NewUploader(cfg *config.Config, storage Storage, tracker *Tracker, logger *slog.Logger, opts ...UploaderOption) *Uploader {
	chunkSize := int64(cfg.Upload.ChunkSizeMiB) * 1024 * 1024
	if chunkSize <= 0 {
		chunkSize = 1024 * 1024
	}
	u := &Uploader{
		storage:      storage,
		chunkSize:    chunkSize,
		linkTemplate: cfg.Upload.ShareLinkTemplate,
		tracker:      tracker,
		logger:       logging.NewComponentLogger(logger, "upload"),
		now:          time.Now,
		pause:        sleepCtx,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Tracker exposes the progress snapshot readers poll.
func (u *Uploader) Tracker() *Tracker {
	return u.tracker
}

// Upload streams path to storage and returns the share link. Exactly one
// durable reference is produced per successful upload; transient chunk
// failures are retried in place.
func (u *Uploader) Upload(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrUploadInterrupted, "upload", "open artifact", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", services.Wrap(services.ErrUploadInterrupted, "upload", "stat artifact", path, err)
	}
	total := info.Size()
	if total == 0 {
		return "", services.Wrap(services.ErrValidation, "upload", "stat artifact", "artifact is empty", nil)
	}

	session, err := u.createSession(ctx, filepath.Base(path), total)
	if err != nil {
		return "", err
	}

	u.logger.Info("upload started",
		logging.String("artifact", path),
		logging.Int64("bytes", total),
		logging.Int64("chunk_bytes", u.chunkSize),
	)

	start := u.now()
	buf := make([]byte, u.chunkSize)
	var offset int64
	var fileID string

	for fileID == "" {
		n, readErr := io.ReadFull(file, buf)
		if readErr == io.EOF {
			return "", services.Wrap(services.ErrUploadInterrupted, "upload", "read artifact", "artifact ended before final chunk", nil)
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF {
			return "", services.Wrap(services.ErrUploadInterrupted, "upload", "read artifact", "", readErr)
		}
		chunk := buf[:n]

		result, putErr := u.putWithRetry(ctx, session, chunk, offset, total)
		if putErr != nil {
			return "", putErr
		}
		offset += int64(n)

		fraction := result.Fraction
		if fraction <= 0 && total > 0 {
			fraction = float64(offset) / float64(total)
		}
		u.tracker.update(fraction, etaSeconds(u.now().Sub(start), fraction))
		fileID = result.FileID
	}

	if err := u.storage.SetPublic(ctx, fileID); err != nil {
		// The link still works for the owner; delivery proceeds.
		u.logger.Warn("public-read grant failed", logging.Error(err))
	}

	shareLink := fmt.Sprintf(u.linkTemplate, fileID)
	u.tracker.finish(fileID, shareLink)
	u.logger.Info("upload complete",
		logging.String("file_id", fileID),
		logging.String("share_link", shareLink),
	)
	return shareLink, nil
}

func (u *Uploader) createSession(ctx context.Context, name string, size int64) (UploadSession, error) {
	var session UploadSession
	attempts := 0
	for {
		var err error
		session, err = u.storage.CreateSession(ctx, name, size)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, services.ErrTransient) {
			return nil, err
		}
		attempts++
		if attempts >= maxChunkRetries {
			return nil, services.Wrap(services.ErrUploadInterrupted, "upload", "create session", "retries exhausted", err)
		}
		u.logger.Warn("create session failed, retrying", logging.Error(err), logging.Int("attempt", attempts))
		if pauseErr := u.pause(ctx, chunkRetryPause); pauseErr != nil {
			return nil, pauseErr
		}
	}
}

func (u *Uploader) putWithRetry(ctx context.Context, session UploadSession, chunk []byte, offset, total int64) (ChunkResult, error) {
	retries := 0
	for {
		result, err := session.Put(ctx, chunk, offset, total)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, services.ErrTransient) {
			return ChunkResult{}, err
		}
		retries++
		if retries >= maxChunkRetries {
			return ChunkResult{}, services.Wrap(services.ErrUploadInterrupted, "upload", "put chunk", "retries exhausted", err)
		}
		u.logger.Warn("chunk failed, retrying",
			logging.Error(err),
			logging.Int64("offset", offset),
			logging.Int("attempt", retries),
		)
		if pauseErr := u.pause(ctx, chunkRetryPause); pauseErr != nil {
			return ChunkResult{}, pauseErr
		}
	}
}

// etaSeconds estimates the remaining wall-clock time linearly from elapsed
// time and completed fraction. Zero until any progress exists.
func etaSeconds(elapsed time.Duration, fraction float64) int {
	if fraction <= 0 {
		return 0
	}
	remaining := elapsed.Seconds() * (1 - fraction) / fraction
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
