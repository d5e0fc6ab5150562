// Copyright 2026 The Go OIDC Provider Authors
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

// Package logging provides the package-level structured logger every
// component in this module calls through, matching the teacher's
// pkg/logger singleton shape (a swappable *zap.SugaredLogger behind an
// atomic pointer) but backed directly by go.uber.org/zap rather than a
// slog wrapper. Components call the package-level Debugw/Infow/Warnw/Errorw
// functions; Set lets a host process install its own configured logger
// (e.g. zap.NewProduction()) before serving traffic.
package logging

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var current atomic.Pointer[zap.SugaredLogger]

func init() {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	current.Store(l.Sugar())
}

// Set installs logger as the package-level logger. Passing nil restores a
// no-op logger. A host process typically calls this once at startup with a
// zap.NewProduction().Sugar() logger configured for its environment.
func Set(logger *zap.SugaredLogger) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	current.Store(logger)
}

// Get returns the currently installed logger.
func Get() *zap.SugaredLogger {
	return current.Load()
}

// Debugw logs at Debug level with structured key/value pairs. Per spec.md
// §7, expected protocol outcomes (Result failures) are never logged above
// this level.
func Debugw(msg string, keysAndValues ...any) { current.Load().Debugw(msg, keysAndValues...) }

// Infow logs at Info level, used for client-authentication failures and
// other outcomes worth surfacing without treating them as server faults.
func Infow(msg string, keysAndValues ...any) { current.Load().Infow(msg, keysAndValues...) }

// Warnw logs at Warn level, used for recoverable anomalies such as a failed
// best-effort CIBA ping delivery.
func Warnw(msg string, keysAndValues ...any) { current.Load().Warnw(msg, keysAndValues...) }

// Errorw logs at Error level with full cause, used for configuration errors
// and unexpected storage/HTTP failures per spec.md §7.
func Errorw(msg string, keysAndValues ...any) { current.Load().Errorw(msg, keysAndValues...) }
