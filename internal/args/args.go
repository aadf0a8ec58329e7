// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package args parses command-line arguments according to a declared option
// specification.
//
// Options are GNU-style: long forms (--outdir) with optional one-letter
// aliases (-o), values given either as the next argument or after '=', and
// flags freely interspersed with positional arguments.
package args

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

// Type is the type of value an option expects.
type Type int

// Supported option types.
const (
	Bool   Type = iota // presence flag
	String             // string value
	Number             // integer value
)

func (t Type) String() string {
	switch t {
	case Bool:
		return "boolean"
	case String:
		return "string"
	case Number:
		return "number"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Option declares a single option.
type Option struct {
	Long  string // long form including dashes, e.g. "--outdir"
	Short string // alias including the dash, e.g. "-o", or empty
	Type  Type
	Usage string
}

// Spec is an option specification.
type Spec []Option

// Validate checks that every long form is well-formed and unique and that
// every alias is a single letter referencing a declared long form.
func (s Spec) Validate() error {
	seen := make(map[string]bool)
	for _, o := range s {
		if !strings.HasPrefix(o.Long, "--") || len(o.Long) < 3 {
			return fmt.Errorf("invalid long option %q", o.Long)
		}
		if seen[o.Long] {
			return fmt.Errorf("duplicate option %q", o.Long)
		}
		seen[o.Long] = true
		if o.Short == "" {
			continue
		}
		if len(o.Short) != 2 || o.Short[0] != '-' || o.Short[1] == '-' {
			return fmt.Errorf("invalid alias %q for %s", o.Short, o.Long)
		}
		if seen[o.Short] {
			return fmt.Errorf("duplicate alias %q", o.Short)
		}
		seen[o.Short] = true
	}
	return nil
}

// UnknownOptionError is returned by Parse when an argument looks like an
// option that is not declared in the Spec.
type UnknownOptionError struct {
	Name string // as it appeared on the command line, e.g. "--bogus" or "-x"
}

func (e *UnknownOptionError) Error() string {
	return "unknown or unexpected option: " + e.Name
}

// Result holds parsed arguments.
type Result struct {
	values     map[string]any
	Positional []string
}

// Has reports whether the option with long form name was given.
func (r *Result) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Bool returns the value of a boolean option, false if it wasn't given.
func (r *Result) Bool(name string) bool {
	v, _ := r.values[name].(bool)
	return v
}

// Text returns the value of a string option and whether it was given.
func (r *Result) Text(name string) (string, bool) {
	v, ok := r.values[name].(string)
	return v, ok
}

// Number returns the value of a number option and whether it was given.
func (r *Result) Number(name string) (int, bool) {
	v, ok := r.values[name].(int)
	return v, ok
}

// Parse parses argv according to spec. Unknown options produce an
// *UnknownOptionError; other malformed input (missing or invalid values)
// produces a different error.
func Parse(spec Spec, argv []string) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	fs := pflag.NewFlagSet("args", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.SortFlags = false

	getters := make(map[string]func() any, len(spec))
	for _, o := range spec {
		name := strings.TrimPrefix(o.Long, "--")
		short := strings.TrimPrefix(o.Short, "-")
		switch o.Type {
		case Bool:
			v := fs.BoolP(name, short, false, o.Usage)
			getters[o.Long] = func() any { return *v }
		case String:
			v := fs.StringP(name, short, "", o.Usage)
			getters[o.Long] = func() any { return *v }
		case Number:
			v := fs.IntP(name, short, 0, o.Usage)
			getters[o.Long] = func() any { return *v }
		default:
			return nil, fmt.Errorf("option %s: unsupported type %v", o.Long, o.Type)
		}
	}

	if err := fs.Parse(argv); err != nil {
		var nerr *pflag.NotExistError
		if errors.As(err, &nerr) {
			return nil, &UnknownOptionError{Name: unknownName(nerr)}
		}
		return nil, fmt.Errorf("parsing arguments: %w", err)
	}

	r := &Result{
		values:     make(map[string]any),
		Positional: fs.Args(),
	}
	fs.Visit(func(f *pflag.Flag) {
		long := "--" + f.Name
		if get, ok := getters[long]; ok {
			r.values[long] = get()
		}
	})
	return r, nil
}

func unknownName(err *pflag.NotExistError) string {
	if err.GetSpecifiedShortnames() != "" {
		return "-" + err.GetSpecifiedName()
	}
	return "--" + err.GetSpecifiedName()
}

// Usage formats the option table of spec for help output.
func (s Spec) Usage() string {
	var sb strings.Builder
	for _, o := range s {
		names := o.Long
		if o.Short != "" {
			names = o.Short + ", " + o.Long
		}
		switch o.Type {
		case String:
			names += " <string>"
		case Number:
			names += " <n>"
		}
		fmt.Fprintf(&sb, "  %-24s %s\n", names, o.Usage)
	}
	return sb.String()
}
