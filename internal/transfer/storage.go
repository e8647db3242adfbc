package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"convertupload/internal/config"
	"convertupload/internal/services"
)

// ChunkResult reports the outcome of one chunk write. FileID is empty until
// the final chunk, which yields the durable identifier exactly once.
type ChunkResult struct {
	Fraction float64
	FileID   string
}

// UploadSession is one resumable upload in flight.
type UploadSession interface {
	// Put writes the chunk starting at offset. total is the full object size.
	Put(ctx context.Context, chunk []byte, offset, total int64) (ChunkResult, error)
}

// Storage is the remote storage surface the uploader needs.
type Storage interface {
	CreateSession(ctx context.Context, name string, size int64) (UploadSession, error)
	SetPublic(ctx context.Context, fileID string) error
}

// HTTPDoer describes the HTTP client used by the storage service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPStorage builds the storage client from configuration.
func NewHTTPStorage(cfg *config.Config) Storage {
	timeout := time.Duration(cfg.Upload.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpStorage{
		endpoint: cfg.Upload.Endpoint,
		apiToken: strings.TrimSpace(cfg.Upload.APIToken),
		client:   &http.Client{Timeout: timeout},
	}
}

// NewHTTPStorageWith injects the endpoint and client directly (tests).
func NewHTTPStorageWith(endpoint, apiToken string, client HTTPDoer) Storage {
	return &httpStorage{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		apiToken: strings.TrimSpace(apiToken),
		client:   client,
	}
}

type httpStorage struct {
	endpoint string
	apiToken string
	client   HTTPDoer
}

func (s *httpStorage) authorize(req *http.Request) {
	if s.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiToken)
	}
}

// CreateSession opens a resumable upload and returns its session handle. The
// service answers with the session URI in the Location header.
func (s *httpStorage) CreateSession(ctx context.Context, name string, size int64) (UploadSession, error) {
	createURL := fmt.Sprintf("%s/files?uploadType=resumable&name=%s", s.endpoint, url.QueryEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, createURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build create-session request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("X-Upload-Content-Length", fmt.Sprintf("%d", size))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "upload", "create session", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, classifyStatus(resp.StatusCode, "create session")
	}
	sessionURL := strings.TrimSpace(resp.Header.Get("Location"))
	if sessionURL == "" {
		return nil, services.Wrap(services.ErrUploadInterrupted, "upload", "create session", "service returned no session location", nil)
	}
	return &httpSession{storage: s, sessionURL: sessionURL}, nil
}

// SetPublic grants anyone read access to the uploaded object.
func (s *httpStorage) SetPublic(ctx context.Context, fileID string) error {
	body, err := json.Marshal(map[string]string{"role": "reader", "type": "anyone"})
	if err != nil {
		return fmt.Errorf("encode permission grant: %w", err)
	}
	grantURL := fmt.Sprintf("%s/files/%s/permissions", s.endpoint, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, grantURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build permission request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("grant public read: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("permission grant returned %d", resp.StatusCode)
	}
	return nil
}

type httpSession struct {
	storage    *httpStorage
	sessionURL string
}

func (s *httpSession) Put(ctx context.Context, chunk []byte, offset, total int64) (ChunkResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.sessionURL, bytes.NewReader(chunk))
	if err != nil {
		return ChunkResult{}, fmt.Errorf("build chunk request: %w", err)
	}
	s.storage.authorize(req)
	end := offset + int64(len(chunk)) - 1
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, end, total))
	req.ContentLength = int64(len(chunk))

	resp, err := s.storage.client.Do(req)
	if err != nil {
		return ChunkResult{}, services.Wrap(services.ErrTransient, "upload", "put chunk", "", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPermanentRedirect:
		// Resume incomplete: the service accepted the chunk.
		fraction := 0.0
		if total > 0 {
			fraction = float64(end+1) / float64(total)
		}
		return ChunkResult{Fraction: fraction}, nil
	case resp.StatusCode < http.StatusMultipleChoices:
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return ChunkResult{}, services.Wrap(services.ErrTransient, "upload", "read final response", "", err)
		}
		var final struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &final); err != nil {
			return ChunkResult{}, services.Wrap(services.ErrUploadInterrupted, "upload", "decode final response", "", err)
		}
		if strings.TrimSpace(final.ID) == "" {
			return ChunkResult{}, services.Wrap(services.ErrUploadInterrupted, "upload", "decode final response", "service returned no file identifier", nil)
		}
		return ChunkResult{Fraction: 1, FileID: final.ID}, nil
	default:
		return ChunkResult{}, classifyStatus(resp.StatusCode, "put chunk")
	}
}

// classifyStatus maps HTTP failures: server-side trouble is retryable,
// client-side rejection is permanent.
func classifyStatus(status int, operation string) error {
	marker := services.ErrUploadInterrupted
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		marker = services.ErrTransient
	}
	return services.Wrap(marker, "upload", operation, fmt.Sprintf("service returned %d", status), nil)
}
