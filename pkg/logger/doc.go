// Package logger provides the structured logging interface used across igavatar.
//
// It wraps zerolog behind a small Logger interface with support for:
//   - Multiple log levels (Debug, Info, Warn, Error, Fatal)
//   - Child loggers carrying fields (WithField, WithFields, WithError)
//   - Colored console output on stderr, plus JSON lines to a file when configured
//   - A global logger for command entry points
//   - NewNopLogger and NewTestLogger for tests
//
// Basic Usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	logger.WithField("username", "jane_doe").Info("Resolving profile picture")
//
// Components take a Logger in their constructors and fall back to
// GetLogger() when given nil.
package logger
