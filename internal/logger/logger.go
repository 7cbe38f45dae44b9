package logger

import (
	"log/slog"
	"os"
)

var Logger *slog.Logger

// Init sets up the process-wide slog logger. Debug level is driven by
// config so one env flag flips verbosity everywhere.
func Init(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	Logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(Logger)
}

// Component returns a logger tagged with the subsystem name, so log
// lines from the feeds, the notifier and the stores stay tellable
// apart in one stream.
func Component(name string) *slog.Logger {
	if Logger == nil {
		Init(false)
	}
	return Logger.With("component", name)
}
