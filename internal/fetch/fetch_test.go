package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestDownload(t *testing.T) {
	content := []byte("blender archive bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "blender.tar.xz")
	f := New(WithHTTPClient(srv.Client()))

	if err := f.Download(context.Background(), srv.URL, dest, digestOf(content)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("dest content = %q, want %q", got, content)
	}
}

func TestDownloadIntegrityMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tampered"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "tool.tar.xz")
	f := New(WithHTTPClient(srv.Client()))

	err := f.Download(context.Background(), srv.URL, dest, digestOf([]byte("expected")))
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("error = %v, want ErrIntegrity", err)
	}

	// A failed download must not leave anything at dest.
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("dest exists after failed download: %v", statErr)
	}
}

func TestDownloadStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "not found", status: http.StatusNotFound, want: ErrNotFound},
		{name: "rate limited", status: http.StatusTooManyRequests, want: ErrRateLimited},
		{name: "server error", status: http.StatusInternalServerError, want: ErrUpstreamDown},
		{name: "bad gateway", status: http.StatusBadGateway, want: ErrUpstreamDown},
		{name: "unexpected", status: http.StatusForbidden, want: ErrFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			f := New(WithHTTPClient(srv.Client()))
			err := f.Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x"), digestOf(nil))
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDownloadNoRetry(t *testing.T) {
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(WithHTTPClient(srv.Client()))
	err := f.Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x"), digestOf(nil))
	if !errors.Is(err, ErrUpstreamDown) {
		t.Fatalf("error = %v, want ErrUpstreamDown", err)
	}

	if n := hits.Load(); n != 1 {
		t.Fatalf("upstream hit %d times, want exactly 1 (failures are fatal, never retried)", n)
	}
}

func TestFetcherClose(t *testing.T) {
	f := New()

	// Close must terminate the DNS refresh goroutine and tolerate being
	// called again (the server and a deferred cleanup may both reach it).
	f.Close()
	f.Close()
}

func TestDownloadCacheHit(t *testing.T) {
	content := []byte("cached bytes")
	dest := filepath.Join(t.TempDir(), "tool.tar.xz")
	if err := os.WriteFile(dest, content, 0644); err != nil {
		t.Fatal(err)
	}

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(content)
	}))
	defer srv.Close()

	f := New(WithHTTPClient(srv.Client()))
	if err := f.Download(context.Background(), srv.URL, dest, digestOf(content)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := hits.Load(); n != 0 {
		t.Fatalf("upstream hit %d times, want 0 (digest match should skip the network)", n)
	}
}
