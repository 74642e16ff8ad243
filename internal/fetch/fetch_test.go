package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmrzaf/cardbase/internal/domain"
)

func TestDownloadStreamsWithProgress(t *testing.T) {
	t.Parallel()

	// Three full chunks plus a remainder.
	payload := bytes.Repeat([]byte("x"), 3*chunkSize+100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "bulk.json")
	var dones []int64
	var lastTotal int64

	err := Download(context.Background(), srv.Client(), "test-agent", srv.URL, dest, func(done, total int64) {
		dones = append(dones, done)
		lastTotal = total
	})
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("downloaded %d bytes, want %d", len(got), len(payload))
	}

	if len(dones) < 2 {
		t.Fatalf("progress fired %d times, want per-chunk updates", len(dones))
	}
	for i := 1; i < len(dones); i++ {
		if dones[i] < dones[i-1] {
			t.Fatalf("progress went backward: %d after %d", dones[i], dones[i-1])
		}
	}
	if dones[len(dones)-1] != int64(len(payload)) {
		t.Errorf("final progress = %d, want %d", dones[len(dones)-1], len(payload))
	}
	if lastTotal != int64(len(payload)) {
		t.Errorf("total = %d, want %d", lastTotal, len(payload))
	}
}

func TestDownloadNonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "bulk.json")
	err := Download(context.Background(), srv.Client(), "test-agent", srv.URL, dest, nil)

	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("destination file should not exist after a failed download")
	}
}

func TestDownloadLeavesNoTempFileOnFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		w.Write([]byte("short"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "bulk.json")
	if err := Download(context.Background(), srv.Client(), "test-agent", srv.URL, dest, nil); err == nil {
		t.Fatal("expected truncated body to fail")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDownloadSendsUserAgent(t *testing.T) {
	t.Parallel()

	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "f")
	if err := Download(context.Background(), srv.Client(), "cardbase/1.0", srv.URL, dest, nil); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if gotAgent != "cardbase/1.0" {
		t.Errorf("user agent = %q", gotAgent)
	}
}

func TestNewHTTPClientHasFiniteTimeout(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient(30 * time.Second)
	if client.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", client.Timeout)
	}
	if client.Transport == nil {
		t.Error("expected a transport with bounded stages")
	}
}
