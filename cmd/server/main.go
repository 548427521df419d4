// Package main is the entrypoint for the resumatch API server and job scheduler.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("resumatch failed", "error", err)
		os.Exit(1)
	}
}
