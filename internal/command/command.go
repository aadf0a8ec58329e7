// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package command implements the export command: it parses arguments,
// validates the project directory, derives export options and runs the
// export, reporting the outcome as a [Result].
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"go.astrophena.name/base/logger"
	"go.astrophena.name/sitexport/internal/args"
	"go.astrophena.name/sitexport/internal/export"
	progress "go.astrophena.name/sitexport/internal/logger"
	"go.astrophena.name/sitexport/internal/trace"

	"braces.dev/errtrace"
	"github.com/lmittmann/tint"
)

// Exporter exports a project directory.
type Exporter interface {
	Export(ctx context.Context, dir string, opts *export.Options, span *trace.Span) error
}

// ExportFunc adapts a function to the Exporter interface.
type ExportFunc func(ctx context.Context, dir string, opts *export.Options, span *trace.Span) error

// Export calls f.
func (f ExportFunc) Export(ctx context.Context, dir string, opts *export.Options, span *trace.Span) error {
	return f(ctx, dir, opts, span)
}

// Env is the environment the command runs in.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	// Getwd returns the current working directory.
	Getwd func() (string, error)
	// Stat is used to check that the project directory exists.
	Stat func(name string) (fs.FileInfo, error)
	// Tracer starts the command span. If nil, spans are discarded.
	Tracer *trace.Tracer
	// Color enables colored log output.
	Color bool
}

func (e *Env) withDefaults() *Env {
	ne := *e
	if ne.Stdout == nil {
		ne.Stdout = io.Discard
	}
	if ne.Stderr == nil {
		ne.Stderr = io.Discard
	}
	if ne.Getwd == nil {
		ne.Getwd = os.Getwd
	}
	if ne.Stat == nil {
		ne.Stat = os.Stat
	}
	if ne.Tracer == nil {
		ne.Tracer = trace.New(nil)
	}
	return &ne
}

// withLogger returns ctx carrying a logger that writes to e.Stderr.
func (e *Env) withLogger(ctx context.Context) context.Context {
	l := logger.New(nil)
	l.Attach(tint.NewHandler(e.Stderr, &tint.Options{
		Level:   l.Level,
		NoColor: !e.Color,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))
	return logger.Put(ctx, l)
}

// Result is the outcome of a command invocation.
type Result struct {
	// Code is the process exit code.
	Code int
	// Outdir is the output directory of a successful export.
	Outdir string
	// Message is what was reported to the user.
	Message string
}

// OK reports whether the command succeeded.
func (r Result) OK() bool { return r.Code == 0 }

func (e *Env) fail(msg string) Result {
	fmt.Fprintln(e.Stderr, msg)
	return Result{Code: 1, Message: msg}
}

// SpanName is the name of the span wrapping a command invocation.
const SpanName = "export-cli"

// Run runs the command with argv, not including the program name.
//
// All outcomes, including invalid arguments and failed exports, are
// described by the returned Result. A non-nil error means the command
// couldn't run at all, for example because argv is malformed in a way other
// than naming an unknown option.
func Run(ctx context.Context, env *Env, argv []string, exp Exporter) (Result, error) {
	env = env.withDefaults()

	span := env.Tracer.Start(SpanName)
	defer span.Stop()

	parsed, err := args.Parse(Spec, argv)
	var uerr *args.UnknownOptionError
	if errors.As(err, &uerr) {
		return env.fail(uerr.Error()), nil
	} else if err != nil {
		return Result{}, err
	}

	if parsed.Bool("--help") {
		u := Usage()
		fmt.Fprint(env.Stdout, u)
		return Result{Message: u}, nil
	}

	cwd, err := env.Getwd()
	if err != nil {
		return Result{}, err
	}
	var arg string
	if len(parsed.Positional) > 0 {
		arg = parsed.Positional[0]
	}
	dir := resolveDir(cwd, arg)
	if !env.dirExists(dir) {
		return env.fail("> No such directory exists as the project root: " + dir), nil
	}

	opts, err := buildOptions(parsed, dir, cwd)
	if err != nil {
		return env.fail(err.Error()), nil
	}
	ctx = env.withLogger(ctx)
	opts.Logf = progress.FromContext(ctx)
	span.SetAttribute("dir", dir)

	if err := exp.Export(ctx, dir, opts, span); err != nil {
		if export.IsExportError(err) {
			logger.Error(ctx, err.Error())
			return Result{Code: 1, Message: err.Error()}, nil
		}
		detail := strings.TrimSuffix(errtrace.FormatString(err), "\n")
		fmt.Fprintln(env.Stderr, detail)
		return Result{Code: 1, Message: detail}, nil
	}

	msg := "Export successful. Files written to " + opts.Outdir
	fmt.Fprintln(env.Stdout, msg)
	return Result{Outdir: opts.Outdir, Message: msg}, nil
}

// Usage returns the help text.
func Usage() string {
	return `Description
  Exports the project for static deployment

Usage
  $ export [options] <dir>

<dir> represents the directory of the project.
If no directory is provided, the current directory will be used.

Options
` + Spec.Usage()
}
