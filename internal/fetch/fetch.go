package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mmrzaf/cardbase/internal/domain"
)

// chunkSize is how much of the response body is copied per read; progress is
// reported once per chunk, never for the body as a whole.
const chunkSize = 64 * 1024

// ProgressFunc receives cumulative bytes written and the expected total.
// Total is -1 when the server does not send a Content-Length.
type ProgressFunc func(done, total int64)

// NewHTTPClient builds the client used for all remote calls. Every stage of
// a request is bounded so a stalled remote fails in finite time instead of
// hanging the build.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   15 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          4,
		},
	}
}

// Download streams url to destPath in fixed-size chunks, invoking onProgress
// after each chunk. The body is never held in memory, and the destination is
// written through a uniquely named temp file renamed into place on success,
// so a failed download never leaves a truncated file at destPath. Failures
// are fatal to the caller; there is no retry here.
func Download(ctx context.Context, client *http.Client, userAgent, url, destPath string, onProgress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: "GET", URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.NetworkError{Op: "GET", URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	total := resp.ContentLength

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	tmpPath := destPath + "." + uuid.NewString() + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file %s: %w", tmpPath, err)
	}
	defer func() {
		out.Close()
		os.Remove(tmpPath)
	}()

	buf := make([]byte, chunkSize)
	var done int64
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return fmt.Errorf("write %s: %w", tmpPath, err)
			}
			done += int64(n)
			if onProgress != nil {
				onProgress(done, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return &domain.NetworkError{Op: "GET", URL: url, Err: readErr}
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmpPath, destPath, err)
	}
	return nil
}
