// Command pricer reads a limit order book feed and prints, after every event
// that changes it, the income from selling or the expense of buying
// target-size shares against the book.
//
// Usage:
//
//	pricer [flags] target-size [max-messages [input]]
//
// max-messages of -1 (or 0) reads until the end of the input. input may be a
// file path, "-" for stdin, s3://bucket/key, kafka://topic or redis://stream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/alanyoungcy/bookpricer/internal/app"
	"github.com/alanyoungcy/bookpricer/internal/config"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run is main without the process globals.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pricer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(fs, stderr) }

	configPath := fs.String("config", "", "path to TOML configuration file (optional)")
	mode := fs.String("mode", "", "stream, publish or full (overrides config)")
	format := fs.String("format", "", "input format: text or binary (overrides config)")
	logLevel := fs.String("log-level", "", "debug, info, warn or error (overrides config)")
	instrument := fs.String("instrument", "", "instrument name (overrides config)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "pricer: %v\n", err)
		return exitUsage
	}
	if err := applyArgs(cfg, fs.Args()); err != nil {
		fmt.Fprintf(stderr, "pricer: %v\n", err)
		usage(fs, stderr)
		return exitUsage
	}
	setIfNotEmpty(&cfg.Mode, *mode)
	setIfNotEmpty(&cfg.Pricer.Format, strings.ToLower(*format))
	setIfNotEmpty(&cfg.LogLevel, *logLevel)
	setIfNotEmpty(&cfg.Pricer.Instrument, *instrument)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "pricer: %v\n", err)
		return exitUsage
	}

	logger := newLogger(stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, app.IO{Stdin: stdin, Stdout: stdout, Stderr: stderr}, logger)
	defer application.Close()

	runInfo, err := application.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("pricer interrupted", slog.String("run_id", runInfo.ID))
		} else {
			logger.Error("pricer exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(stderr, "pricer: %v\n", err)
		}
		return exitFailure
	}
	return exitOK
}

// applyArgs reads the positional arguments target-size, max-messages and
// input into cfg. target-size may be omitted when the configuration sets it.
func applyArgs(cfg *config.Config, args []string) error {
	if len(args) > 3 {
		return errors.New("too many arguments")
	}
	if len(args) == 0 {
		if cfg.Pricer.TargetSize <= 0 {
			return errors.New("target-size is required")
		}
		return nil
	}

	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || target <= 0 {
		return fmt.Errorf("invalid target-size %q", args[0])
	}
	cfg.Pricer.TargetSize = target

	if len(args) > 1 {
		maxMessages, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || maxMessages < -1 {
			return fmt.Errorf("invalid max-messages %q", args[1])
		}
		cfg.Pricer.MaxMessages = maxMessages
	}
	if len(args) > 2 {
		cfg.Pricer.Input = args[2]
	}
	return nil
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// newLogger writes to w, which must not be the report stream.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "usage: pricer [flags] target-size")
	fmt.Fprintln(w, "   or: pricer [flags] target-size max-messages [input]")
	fmt.Fprintln(w, "\tif max-messages is -1, reads messages until end of input")
	fmt.Fprintln(w, "\tif input is omitted or \"-\", reads messages from stdin")
	fmt.Fprintln(w, "flags:")
	fs.PrintDefaults()
}
