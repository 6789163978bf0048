package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Aria2Engine delegates transfers to an aria2c subprocess. aria2 handles
// segmented downloads and resumes partial files on its own (-c).
type Aria2Engine struct {
	// Binary is the aria2c executable; defaults to "aria2c" on PATH.
	Binary string
	// Connections is the per-download connection count (-x/-s).
	Connections int
}

// NewAria2Engine creates an aria2-backed download engine.
func NewAria2Engine() *Aria2Engine {
	return &Aria2Engine{Binary: "aria2c", Connections: 16}
}

// Name returns the engine identifier.
func (e *Aria2Engine) Name() string {
	return "aria2"
}

// Fetch runs one aria2c invocation for the transfer.
func (e *Aria2Engine) Fetch(ctx context.Context, spec Spec) (*Result, error) {
	dir := filepath.Dir(spec.TargetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create target directory: %w", err)
	}

	binary := e.Binary
	if binary == "" {
		binary = "aria2c"
	}
	conns := e.Connections
	if conns <= 0 {
		conns = 16
	}

	args := []string{
		"-x", fmt.Sprint(conns),
		"-s", fmt.Sprint(conns),
		"-k", "1M",
		"-c",
		"--auto-file-renaming=false",
		"--allow-overwrite=true",
		"-d", dir,
		"-o", filepath.Base(spec.TargetPath),
		spec.SourceURL,
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("aria2c: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	st, err := os.Stat(spec.TargetPath)
	if err != nil {
		return nil, fmt.Errorf("aria2c finished but target missing: %w", err)
	}
	return &Result{BytesWritten: st.Size() - spec.ResumeOffset}, nil
}
