package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/term"
)

// InitLogger installs the process-wide logger writing to stderr.
func InitLogger(level, format string) error {
	h, err := newLogHandler(os.Stderr, level, format, isTerminal(os.Stderr))
	if err != nil {
		return err
	}
	log.SetDefault(log.NewLogger(h))
	return nil
}

func newLogHandler(w io.Writer, level, format string, color bool) (slog.Handler, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "", "terminal":
		return log.NewTerminalHandlerWithLevel(w, lvl, color), nil
	case "logfmt":
		return log.LogfmtHandlerWithLevel(w, lvl), nil
	case "json":
		return log.JSONHandlerWithLevel(w, lvl), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "", "info":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
