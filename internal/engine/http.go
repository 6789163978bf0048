package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HTTPEngine transfers files with plain HTTP GET, using Range requests to
// resume partial downloads.
type HTTPEngine struct {
	client *http.Client
}

// NewHTTPEngine creates an HTTP download engine. A nil client gets a default
// with no overall timeout: transfers are bounded by ctx, not a fixed clock.
func NewHTTPEngine(client *http.Client) *HTTPEngine {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		}
	}
	return &HTTPEngine{client: client}
}

// Name returns the engine identifier.
func (e *HTTPEngine) Name() string {
	return "http"
}

// Fetch streams the source URL to the target path. With a resume offset the
// request carries a Range header and appends to the existing file; a server
// that ignores the Range falls back to a full overwrite.
func (e *HTTPEngine) Fetch(ctx context.Context, spec Spec) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(spec.TargetPath), 0755); err != nil {
		return nil, fmt.Errorf("create target directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.SourceURL, nil)
	if err != nil {
		return nil, err
	}
	if spec.ResumeOffset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", spec.ResumeOffset))
	}

	res, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", spec.SourceURL, err)
	}
	defer res.Body.Close()

	var out *os.File
	switch res.StatusCode {
	case http.StatusPartialContent:
		out, err = os.OpenFile(spec.TargetPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	case http.StatusOK:
		// Full body: overwrite whatever partial file exists.
		out, err = os.Create(spec.TargetPath)
	default:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", spec.SourceURL, res.StatusCode)
	}
	if err != nil {
		return nil, fmt.Errorf("open target: %w", err)
	}

	written, copyErr := io.Copy(out, res.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return nil, fmt.Errorf("write target: %w", copyErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close target: %w", closeErr)
	}

	return &Result{BytesWritten: written}, nil
}
