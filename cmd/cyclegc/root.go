package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "cyclegc",
	Short: "Reference-counting cycle collector tooling",
	Long: `cyclegc drives the hybrid refcount + generational cycle collection
engine from recorded mutation traces, for leak hunting and collector tuning
outside a live host runtime.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level: debug, info, warn, error")
	rootCmd.AddCommand(replayCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
