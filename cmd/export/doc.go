// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Export exports a site project for static deployment.

# Usage

	$ export [options] [dir]

Renders the pages of the project in dir into a directory of static files.
If dir is not provided, the current working directory is used.

# Options

	-h, --help      list this help
	-s, --silent    do not print any messages to console
	-o, --outdir    set the output dir (defaults to 'out')
	    --threads   number of pages rendered at once

A relative --outdir is resolved against the current working directory, not
against dir.

# Environment

If EXPORT_TRACE names a file, timing spans of the export are appended to it
as JSON lines.

# Exit Codes

Export exits with 0 on success or when printing help, 1 on unknown options,
a missing project directory or a failed export, and 2 when the arguments
can't be parsed at all.
*/
package main
