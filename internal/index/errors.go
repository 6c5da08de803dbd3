package index

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	// ErrInitialization indicates the index backing store could not be
	// opened. Retrieval is unavailable for the process, but unrelated
	// request paths must keep working.
	ErrInitialization = errors.New("index initialization failed")

	// ErrArityMismatch indicates Insert was called with mismatched
	// documents/overrides lengths. No writes are performed.
	ErrArityMismatch = errors.New("documents and metadata overrides length mismatch")
)
