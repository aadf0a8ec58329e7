// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package command

import (
	"errors"
	"path/filepath"

	"go.astrophena.name/sitexport/internal/args"
	"go.astrophena.name/sitexport/internal/export"
)

// Spec declares the options accepted by the command.
var Spec = args.Spec{
	{Long: "--help", Short: "-h", Type: args.Bool, Usage: "list this help"},
	{Long: "--silent", Short: "-s", Type: args.Bool, Usage: "do not print any messages to console"},
	{Long: "--outdir", Short: "-o", Type: args.String, Usage: "set the output dir (defaults to 'out')"},
	{Long: "--threads", Type: args.Number, Usage: "number of pages rendered at once"},
}

var errThreads = errors.New("--threads must be a positive integer")

// buildOptions derives the export configuration for the project in dir.
// A relative --outdir is resolved against cwd.
func buildOptions(parsed *args.Result, dir, cwd string) (*export.Options, error) {
	opts := &export.Options{
		Silent:           parsed.Bool("--silent"),
		Outdir:           filepath.Join(dir, "out"),
		IsInvokedFromCLI: true,
		HasAppDir:        false,
	}
	if threads, ok := parsed.Number("--threads"); ok {
		if threads < 1 {
			return nil, errThreads
		}
		opts.Threads = threads
	}
	if outdir, ok := parsed.Text("--outdir"); ok && outdir != "" {
		opts.Outdir = resolveDir(cwd, outdir)
		opts.HasOutdirFromCLI = true
	}
	return opts, nil
}
