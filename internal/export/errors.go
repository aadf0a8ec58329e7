// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package export

import (
	"errors"
	"fmt"
)

// Code is the error code carried by every recognized export failure.
const Code = "EXPORT_ERROR"

// Kind classifies a recognized export failure.
type Kind int

// Kinds of export failures.
const (
	KindConfig      Kind = iota + 1 // invalid site.star
	KindProject                     // project layout problem
	KindOutdir                      // unusable output directory
	KindPage                        // page or template error
	KindUnsupported                 // requested mode isn't supported
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindProject:
		return "project"
	case KindOutdir:
		return "outdir"
	case KindPage:
		return "page"
	case KindUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a recognized export failure. Its message is meant to be shown to
// the user as is.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Code returns [Code].
func (e *Error) Code() string { return Code }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func errorf(kind Kind, format string, args ...any) *Error {
	return newError(kind, fmt.Errorf(format, args...))
}

// IsExportError reports whether err is a recognized export failure: either
// an *Error or any error in its chain whose Code method returns [Code].
func IsExportError(err error) bool {
	var eerr *Error
	if errors.As(err, &eerr) {
		return true
	}
	var coded interface{ Code() string }
	return errors.As(err, &coded) && coded.Code() == Code
}
