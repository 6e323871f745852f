// Package logging provides structured logging for the git2doc client.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation. Session and document operations log through it so a
// failed login or a stuck poll loop can be diagnosed after the CLI exits.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer; closing any of
// them closes the file once.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("documents listed", "count", 3)
//
// # Context Propagation
//
//	jobLogger := logger.WithComponent("documents").WithUser(1).WithJob(10)
//	jobLogger.Info("status changed", "status", "completed")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"status changed","component":"documents","user_id":1,"job_id":10,"status":"completed"}
//
// # Log Rotation
//
//	logger, err := logging.NewLoggerWithRotation(dir, "INFO", logging.RotationConfig{
//	    MaxSizeMB:  10,
//	    MaxBackups: 3,
//	    Compress:   true,
//	})
//
// Rotated files are named git2doc.log.1, git2doc.log.2, etc., where .1 is
// the most recent backup.
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] with a
// bytes.Buffer to assert on emitted entries.
package logging
