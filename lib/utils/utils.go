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

// Package utils holds small helpers shared across the mahi codebase.
package utils

import (
	"fmt"
	"os"

	mahi "github.com/TritonDataCenter/mahi-sub003"
	logutils "github.com/TritonDataCenter/mahi-sub003/lib/utils/log"
)

// InitLoggerForTests initializes the process-wide logger for tests.
// Output is discarded unless the debug env var is set, in which case
// everything down to trace level goes to stderr.
func InitLoggerForTests() {
	cfg := logutils.Config{Output: "discard"}
	if os.Getenv(mahi.DebugOutputEnvVar) != "" {
		cfg = logutils.Config{Severity: logutils.TraceLevelText, Output: "stderr"}
	}
	if _, err := logutils.Initialize(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize test logger: %v\n", err)
		os.Exit(1)
	}
}
