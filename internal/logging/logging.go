package logging

import (
	"log/slog"
	"os"
)

// Init configures the process-wide default slog logger. The gateway is a
// long-running service, so the default level is Info; verbose drops it to
// Debug.
func Init(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
