package loader

import "errors"

// Fatal load errors. Everything else the pipeline observes (missing,
// unexpected or shape-incompatible keys) is reported as Diagnostics data
// alongside a usable model, never as an error.
var (
	// ErrModelNotFound means the symbolic name is absent from the discovery
	// path table. Recoverable by the caller.
	ErrModelNotFound = errors.New("model not found")

	// ErrUnknownArchitecture means no constructor is registered for the
	// symbolic name. A configuration error, not expected in production.
	ErrUnknownArchitecture = errors.New("unknown architecture")
)
