package authclient

import (
	"context"
	"log/slog"
)

// Level is the severity of a user-facing notification.
type Level uint8

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notifier displays user-facing messages. Implementations must not block for
// long; they are called synchronously from Manager and Gateway.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, message string)

func (f NotifierFunc) Notify(level Level, message string) {
	f(level, message)
}

// LogNotifier writes notifications to a slog.Logger. Useful for headless
// clients and CLIs.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(level Level, message string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lvl := slog.LevelInfo
	if level == LevelError {
		lvl = slog.LevelWarn
	}
	logger.Log(context.Background(), lvl, message, slog.String("level", level.String()))
}

type noopNotifier struct{}

func (noopNotifier) Notify(Level, string) {}
