// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package logger defines a type for writing export progress to logs.
package logger

import (
	"context"
	"fmt"

	baselog "go.astrophena.name/base/logger"
)

// Logf is the basic logger type: a printf-like func. Like log.Printf, the
// format need not end in a newline. Logf functions must be safe for concurrent
// use.
type Logf func(format string, args ...any)

// Discard is a Logf that drops everything.
func Discard(string, ...any) {}

// FromContext returns a Logf writing info-level records to the logger
// carried by ctx.
func FromContext(ctx context.Context) Logf {
	return func(format string, args ...any) {
		baselog.Info(ctx, fmt.Sprintf(format, args...))
	}
}
