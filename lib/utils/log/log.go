/*
Copyright 2025 TritonDataCenter, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package log provides the logging facilities used across the mahi
// codebase. All packages log through [log/slog]; this package owns
// configuring the process-wide default logger and deriving
// package-scoped loggers from it.
package log

import (
	"io"
	"log/slog"
	"os"

	"github.com/gravitational/trace"
)

// Config configures the process-wide default logger.
type Config struct {
	// Severity is the level at or above which records are emitted.
	// One of [SupportedLevelsText]; defaults to INFO.
	Severity string
	// Output is where records go: "stderr" (default), "stdout",
	// or "discard".
	Output string
	// Format selects the record encoding, "text" (default) or "json".
	Format string
}

// Initialize configures and installs the process-wide default logger
// and returns it. Loggers previously derived with [NewPackageLogger]
// keep pointing at the old handler; call this before any of them are
// used.
func Initialize(cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Severity)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	var w io.Writer
	switch cfg.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	case "discard":
		w = io.Discard
	default:
		return nil, trace.BadParameter("unsupported log output %q, expected one of stderr, stdout, discard", cfg.Output)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, trace.BadParameter("unsupported log format %q, expected one of text, json", cfg.Format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// NewPackageLogger creates a new [slog.Logger] with the provided key
// value pairs applied to all messages emitted. It is a convenience
// wrapper around [slog.With] meant to be used at package scope.
func NewPackageLogger(args ...any) *slog.Logger {
	return slog.With(args...)
}
