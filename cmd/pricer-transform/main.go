// Command pricer-transform converts a text event feed into the packed binary
// frame format read by "pricer -format binary".
//
// Usage:
//
//	pricer-transform [input [output]]
//
// A missing input or "-" reads stdin; a missing output or "-" writes stdout.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/bookpricer/internal/feed"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) > 2 || (len(args) > 0 && (args[0] == "-h" || args[0] == "--help")) {
		fmt.Fprintln(stderr, "usage: pricer-transform [input [output]]")
		fmt.Fprintln(stderr, "\tinput  - text feed, one event per line (default stdin)")
		fmt.Fprintln(stderr, "\toutput - binary frame file for pricer -format binary (default stdout)")
		return 2
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil)).With(slog.String("component", "transform"))

	in := stdin
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintf(stderr, "can't open input file %s for reading: %v\n", args[0], err)
			return 1
		}
		defer f.Close()
		in = f
	}

	out := stdout
	var outFile *os.File
	if len(args) > 1 && args[1] != "-" {
		f, err := os.Create(args[1])
		if err != nil {
			fmt.Fprintf(stderr, "can't open output file %s for writing: %v\n", args[1], err)
			return 1
		}
		outFile = f
		out = f
	}

	st, err := feed.Transform(ctx, in, out, stderr)
	if outFile != nil {
		if cerr := outFile.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		logger.Error("transform failed", slog.String("error", err.Error()))
		return 1
	}
	logger.Info("transform complete",
		slog.Int64("lines", st.Lines),
		slog.Int64("frames", st.Frames),
		slog.Int64("skipped", st.Skipped),
	)
	return 0
}
