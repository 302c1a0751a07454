package process

import "log/slog"

// logger is the structured logger used by ProcessHandle for supervision
// transitions, defaulting to slog.Default() until a caller overrides it
// with SetLogger.
var logger = slog.Default()

// SetLogger overrides the package logger. Passing nil restores the default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		logger = slog.Default()
		return
	}
	logger = l
}
