package main

import (
	"log/slog"
	"os"

	"chaos-story-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		slog.Error("chaos-story exited", "error", err)
		os.Exit(1)
	}
}
