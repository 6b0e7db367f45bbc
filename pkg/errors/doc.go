// Package errors provides structured error types shared by the launcher,
// the collector and the CLI.
//
// Example usage:
//
//	err := errors.NewWithContext(
//	    errors.ErrCodeUnsupported,
//	    "backend not supported for device assignment",
//	    map[string]any{
//	        "backend": "mpi",
//	    },
//	)
//
//	if errors.IsCode(err, errors.ErrCodeUnsupported) {
//	    // fail fast, nothing was allocated yet
//	}
package errors
