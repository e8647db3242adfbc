package transfer_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"convertupload/internal/services"
	"convertupload/internal/transfer"
)

// resumableServer mimics the storage service: session creation via the
// Location header, 308 for accepted intermediate chunks, and a JSON body
// carrying the file identifier on the final one.
func resumableServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var ranges []string
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("POST /files", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("X-Upload-Content-Length") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Location", server.URL+"/session/1")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PUT /session/1", func(w http.ResponseWriter, r *http.Request) {
		ranges = append(ranges, r.Header.Get("Content-Range"))
		if _, err := io.Copy(io.Discard, r.Body); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.Header.Get("Content-Range") == "bytes 512-1023/1024" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"file-42"}`))
			return
		}
		w.WriteHeader(http.StatusPermanentRedirect)
	})
	mux.HandleFunc("POST /files/{id}/permissions", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "file-42" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &ranges
}

func TestHTTPStorageResumableFlow(t *testing.T) {
	server, ranges := resumableServer(t)
	storage := transfer.NewHTTPStorageWith(server.URL, "token", server.Client())

	session, err := storage.CreateSession(context.Background(), "clip.mp4", 1024)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	first, err := session.Put(context.Background(), make([]byte, 512), 0, 1024)
	if err != nil {
		t.Fatalf("first chunk: %v", err)
	}
	if first.Fraction != 0.5 || first.FileID != "" {
		t.Fatalf("first chunk result = %+v", first)
	}

	final, err := session.Put(context.Background(), make([]byte, 512), 512, 1024)
	if err != nil {
		t.Fatalf("final chunk: %v", err)
	}
	if final.Fraction != 1 || final.FileID != "file-42" {
		t.Fatalf("final chunk result = %+v", final)
	}

	want := []string{"bytes 0-511/1024", "bytes 512-1023/1024"}
	if len(*ranges) != len(want) || (*ranges)[0] != want[0] || (*ranges)[1] != want[1] {
		t.Fatalf("content ranges = %v, want %v", *ranges, want)
	}

	if err := storage.SetPublic(context.Background(), "file-42"); err != nil {
		t.Fatalf("set public: %v", err)
	}
}

func TestHTTPStorageMissingLocationIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	storage := transfer.NewHTTPStorageWith(server.URL, "", server.Client())
	_, err := storage.CreateSession(context.Background(), "clip.mp4", 1)
	if !errors.Is(err, services.ErrUploadInterrupted) {
		t.Fatalf("expected ErrUploadInterrupted, got %v", err)
	}
}

func TestHTTPStorageClassifiesChunkFailures(t *testing.T) {
	cases := []struct {
		status int
		marker error
	}{
		{http.StatusInternalServerError, services.ErrTransient},
		{http.StatusTooManyRequests, services.ErrTransient},
		{http.StatusForbidden, services.ErrUploadInterrupted},
	}
	for _, tc := range cases {
		t.Run(strconv.Itoa(tc.status), func(t *testing.T) {
			var server *httptest.Server
			mux := http.NewServeMux()
			mux.HandleFunc("POST /files", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Location", server.URL+"/session/1")
			})
			mux.HandleFunc("PUT /session/1", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})
			server = httptest.NewServer(mux)
			t.Cleanup(server.Close)

			storage := transfer.NewHTTPStorageWith(server.URL, "", server.Client())
			session, err := storage.CreateSession(context.Background(), "clip.mp4", 4)
			if err != nil {
				t.Fatalf("create session: %v", err)
			}
			_, err = session.Put(context.Background(), []byte("data"), 0, 4)
			if !errors.Is(err, tc.marker) {
				t.Fatalf("status %d: expected %v, got %v", tc.status, tc.marker, err)
			}
		})
	}
}
