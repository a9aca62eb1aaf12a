// Package logging provides structured logging for HOTAS Relay Core.
//
// It wraps log/slog with configuration-driven handler selection (JSON or
// text), level filtering, and default service attributes. Library packages
// accept a minimal Logger interface instead of importing this package
// directly, keeping them testable with no-op loggers.
package logging
