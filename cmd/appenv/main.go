// Package main is the entry point for the appenv command.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/giantswarm/appenv"
	"github.com/giantswarm/appenv/cmd/appenv/app"
)

// getLogLevel parses the APPENV_LOG_LEVEL environment variable and returns
// the corresponding slog.Level. Defaults to slog.LevelInfo if it is unset or
// invalid.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(app.EnvPrefix)
	v.AutomaticEnv()

	switch levelStr := v.GetString("LOG_LEVEL"); strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid APPENV_LOG_LEVEL, using INFO", "value", levelStr)
		return slog.LevelInfo
	}
}

func main() {
	// Logs go to stderr to keep stdout clean for the YAML summaries.
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: getLogLevel()})
	slog.SetDefault(slog.New(handler))
	appenv.SetLogger(nil)

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
