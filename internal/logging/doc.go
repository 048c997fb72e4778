// Package logging provides structured logging for skillcheck.
//
// It wraps Go's log/slog to write JSON-formatted logs into a size-rotated
// file managed by lumberjack, with child loggers that carry component and
// user context. Secrets (session tokens, passwords) are never passed to the
// logger.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/home/me/.config/skillcheck/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	apiLog := logger.WithComponent("api")
//	apiLog.Info("request completed", "method", "GET", "path", "assessments/", "status", 200)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"request completed","component":"api","method":"GET","path":"assessments/","status":200}
//
// # Log Rotation
//
//	logger, err := logging.NewLoggerWithRotation(dir, "DEBUG", logging.RotationConfig{
//	    MaxSizeMB:  5,
//	    MaxBackups: 2,
//	    Compress:   true,
//	})
//
// # Reading Logs
//
// [ReadLogs], [FilterLogs] and [WriteEntries] back the `skillcheck logs`
// command.
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] with a
// bytes.Buffer to assert on entries.
package logging
