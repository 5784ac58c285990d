// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package log provides structured logging utilities.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stderr)
	Service string    // optional service name attached to every log entry
	Version string    // optional build version attached to every log entry
	// Console forces the human readable console format. When nil the
	// format is chosen by whether Output is a terminal.
	Console *bool
}

var (
	mu   sync.RWMutex
	base = zerolog.Nop()
)

// Configure (re)initialises the global zerolog logger. It is safe to call
// again once the run configuration is known.
func Configure(cfg Config) {
	level := resolveLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	writer := cfg.Output
	if writer == nil {
		writer = os.Stderr
	}

	console := false
	if cfg.Console != nil {
		console = *cfg.Console
	} else if f, ok := writer.(*os.File); ok {
		console = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if console {
		writer = zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.TimeOnly,
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}

	service := cfg.Service
	if service == "" {
		service = os.Getenv("LOG_SERVICE")
		if service == "" {
			service = "emtf-tree"
		}
	}

	l := zerolog.New(writer).With().
		Timestamp().
		Str(FieldService, service).
		Str(FieldVersion, cfg.Version).
		Logger().
		Level(level)

	mu.Lock()
	base = l
	mu.Unlock()
}

// resolveLevel picks the level from the explicit setting, then LOG_LEVEL.
// A non-empty DEBUG variable always wins.
func resolveLevel(explicit string) zerolog.Level {
	level := zerolog.InfoLevel
	for _, candidate := range []string{explicit, os.Getenv("LOG_LEVEL")} {
		if candidate == "" {
			continue
		}
		if parsed, err := zerolog.ParseLevel(candidate); err == nil {
			level = parsed
			break
		}
	}
	if os.Getenv("DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	return level
}

func logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	return logger()
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str(FieldComponent, component).Logger()
}

// Derive attaches arbitrary fields to a child logger using the provided builder function.
func Derive(build func(*zerolog.Context)) zerolog.Logger {
	ctx := logger().With()
	if build != nil {
		build(&ctx)
	}
	return ctx.Logger()
}

func init() {
	Configure(Config{})
}
