// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package export renders a project directory into a static site.

# Directory Structure

A project has the following directories:

	pages      All content lives inside this directory. HTML and Markdown
	           formats can be used. Required.
	public     Files in this directory are copied to the output directory.
	           CSS, JavaScript and JSON files are minified.
	templates  Templates that wrap pages, chosen on a page-by-page basis
	           in the front matter. They must have the '.html' extension.

An optional site.star file configures the export, see [Config].

# Page Layout

Each page must be HTML or Markdown and start with JSON front matter:

	{
	  "title": "Hello, world!",
	  "template": "layout",
	  "permalink": "/hello-world"
	}

See [Page] for all available front matter fields.
*/
package export

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"go.astrophena.name/sitexport/internal/logger"
	"go.astrophena.name/sitexport/internal/trace"

	"braces.dev/errtrace"
	"golang.org/x/sync/errgroup"
)

// Options configures a single export.
type Options struct {
	// Silent disables progress messages.
	Silent bool
	// Threads limits how many pages are rendered at once. Zero means
	// runtime.NumCPU.
	Threads int
	// Outdir is the absolute path of the output directory. Its previous
	// contents are removed. Unless HasOutdirFromCLI is set, the out_dir
	// setting of site.star takes precedence; Export stores the directory it
	// actually wrote to here.
	Outdir string
	// HasOutdirFromCLI reports whether Outdir was chosen explicitly.
	HasOutdirFromCLI bool
	// IsInvokedFromCLI reports whether the export runs on behalf of a
	// command. Progress messages are only written in that case.
	IsInvokedFromCLI bool
	// HasAppDir requests the app routing export mode, which isn't supported.
	HasAppDir bool
	// Logf receives progress messages. If nil, nothing is logged.
	Logf logger.Logf
}

func (o *Options) logf() logger.Logf {
	if o.Silent || !o.IsInvokedFromCLI || o.Logf == nil {
		return logger.Discard
	}
	return o.Logf
}

// Export exports the project in dir according to opts. Work is recorded as
// children of span.
//
// Failures the user can fix, such as a malformed page or an unusable output
// directory, are returned as *[Error]. Anything else is unexpected.
func Export(ctx context.Context, dir string, opts *Options, span *trace.Span) error {
	if opts.HasAppDir {
		return errorf(KindUnsupported, "exporting the app directory is not supported, only pages can be exported")
	}
	if opts.Threads < 0 {
		return errorf(KindConfig, "invalid concurrency %d", opts.Threads)
	}
	if !filepath.IsAbs(opts.Outdir) {
		return errorf(KindOutdir, "output directory must be an absolute path, got %q", opts.Outdir)
	}
	logf := opts.logf()
	span.SetAttribute("dir", dir)
	span.SetAttribute("outdirFromCLI", strconv.FormatBool(opts.HasOutdirFromCLI))

	var b *buildContext
	if err := span.Run("export-load", func(*trace.Span) error {
		c, err := loadConfig(dir, logf)
		if err != nil {
			return err
		}
		if c.OutDir != "" && !opts.HasOutdirFromCLI {
			opts.Outdir = filepath.Join(dir, c.OutDir)
		}
		if err := checkOutdir(dir, opts.Outdir); err != nil {
			return err
		}
		b = newBuildContext(dir, opts.Outdir, c)
		return b.load()
	}); err != nil {
		return wrap(err)
	}
	span.SetAttribute("outdir", opts.Outdir)
	switch {
	case opts.HasOutdirFromCLI:
		logf("Exporting %d pages from %s to %s.", len(b.pages), dir, opts.Outdir)
	case b.c.OutDir != "":
		logf("Exporting %d pages from %s to %s, set by out_dir in %s.", len(b.pages), dir, opts.Outdir, ConfigFile)
	default:
		logf("Exporting %d pages from %s to the default directory %s.", len(b.pages), dir, opts.Outdir)
	}

	if _, err := os.Stat(opts.Outdir); err == nil {
		if err := os.RemoveAll(opts.Outdir); err != nil {
			return errtrace.Wrap(err)
		}
	}
	if err := os.MkdirAll(opts.Outdir, 0o755); err != nil {
		return errtrace.Wrap(err)
	}

	threads := opts.Threads
	if threads == 0 {
		threads = runtime.NumCPU()
	}
	if err := span.Run("export-render", func(s *trace.Span) error {
		s.SetAttribute("threads", strconv.Itoa(threads))
		return b.render(ctx, threads)
	}); err != nil {
		return wrap(err)
	}
	if err := span.Run("export-copy-public", func(*trace.Span) error {
		return b.copyPublic()
	}); err != nil {
		return wrap(err)
	}
	if !b.c.SkipFeed {
		if err := span.Run("export-feed", func(*trace.Span) error {
			return b.buildFeed()
		}); err != nil {
			return wrap(err)
		}
	}
	if err := os.WriteFile(filepath.Join(opts.Outdir, "robots.txt"), []byte(robotsTxt), 0o644); err != nil {
		return errtrace.Wrap(err)
	}

	for _, bl := range b.brokenLinks() {
		logf("Warning: %s links to %s, which wasn't exported.", bl.page, bl.href)
	}
	logf("Exported %d pages and %d public files.", len(b.pages), len(b.public))
	return nil
}

const robotsTxt = `User-agent: *
`

// wrap leaves recognized errors as is and attaches a return trace to
// everything else.
func wrap(err error) error {
	if IsExportError(err) {
		return err
	}
	return errtrace.Wrap(err)
}

// reservedDirs can't be used as an output directory.
var reservedDirs = []string{"pages", "public", "templates"}

func checkOutdir(dir, outdir string) error {
	dir, outdir = filepath.Clean(dir), filepath.Clean(outdir)
	for _, name := range reservedDirs {
		if outdir == filepath.Join(dir, name) {
			return errorf(KindOutdir, "the %q directory is reserved and can't be used as the output directory", name)
		}
	}
	// The output directory is wiped before export, so it must not contain
	// the project.
	rel, err := filepath.Rel(outdir, dir)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errorf(KindOutdir, "the output directory %s contains the project directory %s", outdir, dir)
	}
	return nil
}

// load parses templates and pages and lists public files.
func (b *buildContext) load() error {
	pagesDir := filepath.Join(b.dir, "pages")
	if fi, err := os.Stat(pagesDir); errors.Is(err, fs.ErrNotExist) || (err == nil && !fi.IsDir()) {
		return errorf(KindProject, "couldn't find a pages directory in %s", b.dir)
	} else if err != nil {
		return err
	}

	if err := walkIfExists(filepath.Join(b.dir, "templates"), b.parseTemplate); err != nil {
		return err
	}
	if err := filepath.WalkDir(pagesDir, b.parsePage); err != nil {
		return err
	}
	if err := walkIfExists(filepath.Join(b.dir, "public"), b.listPublic); err != nil {
		return err
	}

	// Newest first, pages without a date last.
	sort.SliceStable(b.pages, func(i, j int) bool {
		di, dj := b.pages[i].Date, b.pages[j].Date
		if di == nil || dj == nil {
			return di != nil
		}
		return di.After(dj.Time)
	})

	byDst := make(map[string]*Page, len(b.pages))
	for _, p := range b.pages {
		if _, ok := b.templates[p.Template]; !ok {
			return errorf(KindPage, "%s: no such template %q", p.path, p.Template)
		}
		p.dstPath = outputPath(p.Permalink, b.c.TrailingSlash)
		if other, ok := byDst[p.dstPath]; ok {
			return errorf(KindPage, "%s and %s are both exported to %s", other.path, p.path, p.dstPath)
		}
		byDst[p.dstPath] = p
	}
	for _, rel := range b.public {
		if p, ok := byDst[rel]; ok {
			return errorf(KindProject, "public file public/%s conflicts with page %s", rel, p.path)
		}
	}
	return nil
}

func walkIfExists(root string, fn fs.WalkDirFunc) error {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(root, fn)
}

// render renders page bodies one by one, then lays out and writes up to
// threads pages at once.
func (b *buildContext) render(ctx context.Context, threads int) error {
	for _, p := range b.pages {
		if err := b.renderBody(p); err != nil {
			return newError(KindPage, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for _, p := range b.pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := p.layout(b, b.templates[p.Template]); err != nil {
				return newError(KindPage, err)
			}
			dst := filepath.Join(b.outdir, filepath.FromSlash(p.dstPath))
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return err
			}
			return os.WriteFile(dst, p.out, 0o644)
		})
	}
	return g.Wait()
}

func (b *buildContext) copyPublic() error {
	for _, rel := range b.public {
		src := filepath.Join(b.dir, "public", filepath.FromSlash(rel))
		buf, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		if mediaType := mediaTypes[filepath.Ext(rel)]; mediaType != "" {
			minified, err := b.min.Bytes(mediaType, buf)
			if err != nil {
				return errorf(KindProject, "public/%s: %v", rel, err)
			}
			buf = minified
		}
		dst := filepath.Join(b.outdir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, buf, 0o644); err != nil {
			return err
		}
	}
	return nil
}

var mediaTypes = map[string]string{
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
}
