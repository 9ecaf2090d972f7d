// Copyright 2024 The KillCode Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package klog is the launcher's logging façade: every line carries
// the "[KillCode]" prefix spec §7 requires on stderr, regardless of
// whether it is emitted by the assembler, the CLI, or the stub.
package klog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var std = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: false,
		FullTimestamp:    true,
	})
	return l
}

// SetLevel adjusts verbosity; used by the CLI's --debug flag.
func SetLevel(level logrus.Level) {
	std.SetLevel(level)
}

func prefixed(format string) string {
	return "[KillCode] " + format
}

// Infof logs an informational decision point.
func Infof(format string, args ...any) {
	std.Infof(prefixed(format), args...)
}

// Warningf logs a non-fatal, recoverable fault (spec §7: logged and
// ignored, never escalated).
func Warningf(format string, args ...any) {
	std.Warnf(prefixed(format), args...)
}

// Errorf logs a fault on a path that is about to abort the launch.
func Errorf(format string, args ...any) {
	std.Errorf(prefixed(format), args...)
}

// Debugf logs verbose diagnostic detail, shown only at debug level.
func Debugf(format string, args ...any) {
	std.Debugf(prefixed(format), args...)
}
