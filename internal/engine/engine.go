// Package engine defines the download engine interface consumed by the
// coordinator. The engine is a black box: it receives a task descriptor and
// reports bytes written or a transfer error. Engines are expected to support
// resuming a partial transfer at the target path.
package engine

import "context"

// Spec describes one transfer for the engine.
type Spec struct {
	SourceURL    string `json:"source_url"`
	TargetPath   string `json:"target_path"`
	ResumeOffset int64  `json:"resume_offset,omitempty"`
}

// Result holds the outcome of a successful transfer.
type Result struct {
	BytesWritten int64 `json:"bytes_written"`
}

// Engine performs byte-level file transfers.
type Engine interface {
	// Name returns the engine identifier.
	Name() string

	// Fetch transfers spec.SourceURL to spec.TargetPath, resuming at
	// spec.ResumeOffset when non-zero. It must honor ctx cancellation.
	Fetch(ctx context.Context, spec Spec) (*Result, error)
}
