// Package logging provides structured logging for distcollect.
//
// It wraps log/slog with a JSON handler on stderr, a module/version context,
// environment-based level selection (LOG_LEVEL), and source locations for
// debug output.
//
// # Usage
//
//	func main() {
//	    logging.SetDefaultStructuredLoggerWithLevel("distcollect", version, "info")
//	    slog.Info("collector started", "nodes", 4, "backend", "nccl")
//	}
//
// # Log Levels
//
// Supported levels (case-insensitive): debug, info, warn/warning, error.
// Unknown values fall back to info.
//
// # Output Format
//
//	{
//	    "time": "2025-01-15T10:30:00.123Z",
//	    "level": "INFO",
//	    "msg": "batch collected",
//	    "module": "distcollect",
//	    "version": "v0.1.0",
//	    "frames": 800
//	}
package logging
