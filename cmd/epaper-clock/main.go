// Command epaper-clock drives a battery powered e-paper clock. Each process
// is one boot: it decides what to show, refreshes the panel and sleeps until
// the next minute.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "epaper-clock",
	Short: "Low power e-paper clock",
	Long: `epaper-clock runs one boot of the clock per process.

A boot reads the retained state, resolves the mode from the wake reason and
the buttons, draws the face and sleeps until the next minute. The sleep ends
by re-executing the binary, so "boot" is normally started once by the
service manager and keeps itself running.

Other commands inspect the retained state, render the face to an image, or
run the whole boot cycle on simulated hardware in the terminal.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger from the persistent flags.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("--log-format: unknown format %q", format)
	}
}

// setupLogger installs the flag-configured logger as the default.
func setupLogger(w io.Writer) (*slog.Logger, error) {
	logger, err := newLogger(w, logLevel, logFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
