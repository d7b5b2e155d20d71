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

package log

import (
	"log/slog"
	"strings"

	"github.com/gravitational/trace"
)

const (
	// TraceLevel is the logging level when set to Trace verbosity.
	TraceLevel = slog.LevelDebug - 1

	// TraceLevelText is the text representation of Trace verbosity.
	TraceLevelText = "TRACE"
)

// SupportedLevelsText lists the supported log levels in their text
// representation. All strings are in uppercase.
var SupportedLevelsText = []string{
	TraceLevelText,
	slog.LevelDebug.String(),
	slog.LevelInfo.String(),
	slog.LevelWarn.String(),
	slog.LevelError.String(),
}

// ParseLevel converts the text representation of a log level into
// a [slog.Level].
func ParseLevel(text string) (slog.Level, error) {
	switch strings.ToUpper(text) {
	case TraceLevelText:
		return TraceLevel, nil
	case slog.LevelDebug.String():
		return slog.LevelDebug, nil
	case slog.LevelInfo.String(), "":
		return slog.LevelInfo, nil
	case slog.LevelWarn.String(), "WARNING":
		return slog.LevelWarn, nil
	case slog.LevelError.String():
		return slog.LevelError, nil
	}
	return slog.LevelInfo, trace.BadParameter("unsupported log level %q, expected one of %v", text, strings.Join(SupportedLevelsText, ", "))
}
