package portal

import "errors"

// Sentinel errors for portal operations.
var (
	// ErrAuthFailure means the portal rejected the credentials outright.
	ErrAuthFailure = errors.New("authentication failed")

	// ErrAuthExpired means the portal rejected a previously valid session.
	// It is propagated to the caller and never retried here; no further
	// resolution is possible without re-authentication.
	ErrAuthExpired = errors.New("session expired")

	// ErrTransientFetch means a page fetch kept failing after bounded
	// backoff retries.
	ErrTransientFetch = errors.New("transient fetch error")

	// ErrArtifactUnavailable means the portal has no processed media of one
	// kind for the session yet. Recoverable: that kind is treated as absent
	// and the remaining kinds still resolve.
	ErrArtifactUnavailable = errors.New("artifact unavailable")

	// ErrManifestParse means the playback manifest format was unrecognized.
	// Fatal for that session only; the pipeline continues for others.
	ErrManifestParse = errors.New("manifest parse error")
)
