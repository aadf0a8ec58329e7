// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"fmt"
	"os"

	"go.astrophena.name/sitexport/internal/command"
	"go.astrophena.name/sitexport/internal/export"
	"go.astrophena.name/sitexport/internal/trace"

	"golang.org/x/term"
)

func main() { os.Exit(run()) }

func run() int {
	env := &command.Env{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Color:  term.IsTerminal(int(os.Stderr.Fd())),
	}

	if path := os.Getenv("EXPORT_TRACE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "export: %v\n", err)
			return 2
		}
		defer f.Close()
		r := trace.NewJSONReporter(f)
		env.Tracer = trace.New(r)
		defer func() {
			if err := r.Err(); err != nil {
				fmt.Fprintf(os.Stderr, "export: writing trace: %v\n", err)
			}
		}()
	}

	res, err := command.Run(context.Background(), env, os.Args[1:], command.ExportFunc(export.Export))
	if err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		return 2
	}
	return res.Code
}
