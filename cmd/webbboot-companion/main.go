package main

import (
	"log/slog"
	"os"

	"github.com/webbboot/companion/cmd/webbboot-companion/commands"
)

func main() {
	// Initialize structured logger with text format for readability. The
	// level is raised or lowered once the configuration has been read.
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	commands.Execute(level)
}
