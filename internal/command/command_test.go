// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.astrophena.name/base/logger"
	"go.astrophena.name/base/testutil"
	"go.astrophena.name/sitexport/internal/export"
	"go.astrophena.name/sitexport/internal/trace"

	"braces.dev/errtrace"
)

// fakeExporter records calls and returns err.
type fakeExporter struct {
	calls  int
	dir    string
	opts   *export.Options
	ctx    context.Context
	err    error
	logf   string // logged through opts.Logf if set
	outdir string // replaces opts.Outdir if set, as site.star would
}

func (f *fakeExporter) Export(ctx context.Context, dir string, opts *export.Options, span *trace.Span) error {
	f.calls++
	f.dir = dir
	f.opts = opts
	f.ctx = ctx
	if f.outdir != "" {
		opts.Outdir = f.outdir
	}
	if f.logf != "" && !opts.Silent {
		opts.Logf("%s", f.logf)
	}
	if span.Stops() != 0 {
		return errors.New("span stopped before export settled")
	}
	return f.err
}

type spanCounter struct {
	mu    sync.Mutex
	roots int
}

func (c *spanCounter) Report(rec trace.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec.Name == SpanName {
		c.roots++
	}
}

type testEnv struct {
	env    *Env
	stdout bytes.Buffer
	stderr bytes.Buffer
	spans  *spanCounter
	cwd    string
}

func newTestEnv(t *testing.T) *testEnv {
	te := &testEnv{
		spans: new(spanCounter),
		cwd:   t.TempDir(),
	}
	te.env = &Env{
		Stdout: &te.stdout,
		Stderr: &te.stderr,
		Getwd:  func() (string, error) { return te.cwd, nil },
		Tracer: trace.New(te.spans),
	}
	return te
}

func (te *testEnv) run(t *testing.T, exp Exporter, argv ...string) Result {
	t.Helper()
	res, err := Run(context.Background(), te.env, argv, exp)
	if err != nil {
		t.Fatalf("Run(%q): %v", argv, err)
	}
	testutil.AssertEqual(t, te.spans.roots, 1)
	return res
}

func mkdir(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExportScenario(t *testing.T) {
	te := newTestEnv(t)
	proj := mkdir(t, filepath.Join(t.TempDir(), "proj"))
	exp := new(fakeExporter)

	res := te.run(t, exp, proj, "-o", "dist")

	wantOutdir := filepath.Join(te.cwd, "dist")
	testutil.AssertEqual(t, res.Code, 0)
	testutil.AssertEqual(t, res.OK(), true)
	testutil.AssertEqual(t, res.Outdir, wantOutdir)
	testutil.AssertEqual(t, exp.calls, 1)
	testutil.AssertEqual(t, exp.dir, proj)
	testutil.AssertEqual(t, exp.opts.Silent, false)
	testutil.AssertEqual(t, exp.opts.Outdir, wantOutdir)
	testutil.AssertEqual(t, exp.opts.HasOutdirFromCLI, true)
	testutil.AssertEqual(t, exp.opts.IsInvokedFromCLI, true)
	testutil.AssertEqual(t, exp.opts.HasAppDir, false)
	testutil.AssertEqual(t, te.stdout.String(), "Export successful. Files written to "+wantOutdir+"\n")
}

func TestDefaults(t *testing.T) {
	te := newTestEnv(t)
	exp := new(fakeExporter)

	res := te.run(t, exp)

	testutil.AssertEqual(t, res.Code, 0)
	testutil.AssertEqual(t, exp.dir, te.cwd)
	testutil.AssertEqual(t, exp.opts.Outdir, filepath.Join(te.cwd, "out"))
	testutil.AssertEqual(t, exp.opts.HasOutdirFromCLI, false)
	testutil.AssertEqual(t, exp.opts.Silent, false)
	testutil.AssertEqual(t, exp.opts.Threads, 0)
	testutil.AssertEqual(t, exp.opts.IsInvokedFromCLI, true)
	if !strings.Contains(te.stdout.String(), filepath.Join(te.cwd, "out")) {
		t.Fatalf("confirmation doesn't name the output directory: %q", te.stdout.String())
	}
}

func TestOptions(t *testing.T) {
	cases := map[string]struct {
		argv        []string
		wantSilent  bool
		wantThreads int
		wantOutdir  func(cwd string) string
		wantDir     func(cwd string) string
	}{
		"silent": {
			argv:       []string{"--silent"},
			wantSilent: true,
		},
		"silent alias": {
			argv:       []string{"-s"},
			wantSilent: true,
		},
		"threads": {
			argv:        []string{"--threads", "4"},
			wantThreads: 4,
		},
		"absolute outdir": {
			argv:       []string{"--outdir", filepath.Join(os.TempDir(), "site")},
			wantOutdir: func(string) string { return filepath.Join(os.TempDir(), "site") },
		},
		"unclean outdir": {
			argv:       []string{"-o", "a/../b/./"},
			wantOutdir: func(cwd string) string { return filepath.Join(cwd, "b") },
		},
		"relative dir": {
			argv:       []string{"proj"},
			wantDir:    func(cwd string) string { return filepath.Join(cwd, "proj") },
			wantOutdir: func(cwd string) string { return filepath.Join(cwd, "proj", "out") },
		},
		"flags before dir": {
			argv:        []string{"-s", "--threads=2", "proj"},
			wantSilent:  true,
			wantThreads: 2,
			wantDir:     func(cwd string) string { return filepath.Join(cwd, "proj") },
			wantOutdir:  func(cwd string) string { return filepath.Join(cwd, "proj", "out") },
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			te := newTestEnv(t)
			mkdir(t, filepath.Join(te.cwd, "proj"))
			exp := new(fakeExporter)

			res := te.run(t, exp, tc.argv...)
			testutil.AssertEqual(t, res.Code, 0)

			wantDir := te.cwd
			if tc.wantDir != nil {
				wantDir = tc.wantDir(te.cwd)
			}
			wantOutdir := filepath.Join(te.cwd, "out")
			if tc.wantOutdir != nil {
				wantOutdir = tc.wantOutdir(te.cwd)
			}
			testutil.AssertEqual(t, exp.dir, wantDir)
			testutil.AssertEqual(t, exp.opts.Outdir, wantOutdir)
			testutil.AssertEqual(t, exp.opts.Silent, tc.wantSilent)
			testutil.AssertEqual(t, exp.opts.Threads, tc.wantThreads)
			testutil.AssertEqual(t, res.Outdir, wantOutdir)
		})
	}
}

func TestHelp(t *testing.T) {
	cases := map[string][]string{
		"long":              {"--help"},
		"alias":             {"-h"},
		"missing directory": {"-h", filepath.Join(os.TempDir(), "does", "not", "exist")},
		"with other flags":  {"-s", "--outdir", "dist", "--threads", "3", "--help"},
	}

	for name, argv := range cases {
		t.Run(name, func(t *testing.T) {
			te := newTestEnv(t)
			exp := new(fakeExporter)

			res := te.run(t, exp, argv...)

			testutil.AssertEqual(t, res.Code, 0)
			testutil.AssertEqual(t, exp.calls, 0)
			testutil.AssertEqual(t, te.stdout.String(), Usage())
			testutil.AssertEqual(t, te.stderr.String(), "")
		})
	}
}

func TestUnknownOption(t *testing.T) {
	cases := map[string]struct {
		argv     []string
		wantName string
	}{
		"long":            {[]string{"--bogus"}, "--bogus"},
		"short":           {[]string{"-x"}, "-x"},
		"after directory": {[]string{".", "--bogus"}, "--bogus"},
		"with help":       {[]string{"--help", "--bogus"}, "--bogus"},
		"with value":      {[]string{"--bogus=1", "-s"}, "--bogus"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			te := newTestEnv(t)
			exp := new(fakeExporter)

			res := te.run(t, exp, tc.argv...)

			testutil.AssertEqual(t, res.Code, 1)
			testutil.AssertEqual(t, exp.calls, 0)
			if !strings.Contains(te.stderr.String(), tc.wantName) {
				t.Fatalf("stderr %q doesn't mention %s", te.stderr.String(), tc.wantName)
			}
			testutil.AssertEqual(t, te.stdout.String(), "")
		})
	}
}

func TestMalformedArguments(t *testing.T) {
	cases := map[string][]string{
		"missing outdir value": {"-o"},
		"non-numeric threads":  {"--threads", "many"},
	}

	for name, argv := range cases {
		t.Run(name, func(t *testing.T) {
			te := newTestEnv(t)
			exp := new(fakeExporter)

			_, err := Run(context.Background(), te.env, argv, exp)
			if err == nil {
				t.Fatal("want error, got nil")
			}
			testutil.AssertEqual(t, exp.calls, 0)
			testutil.AssertEqual(t, te.spans.roots, 1)
		})
	}
}

func TestInvalidThreads(t *testing.T) {
	for _, n := range []string{"0", "-2"} {
		t.Run(n, func(t *testing.T) {
			te := newTestEnv(t)
			exp := new(fakeExporter)

			res := te.run(t, exp, "--threads="+n)

			testutil.AssertEqual(t, res.Code, 1)
			testutil.AssertEqual(t, exp.calls, 0)
			testutil.AssertEqual(t, te.stderr.String(), errThreads.Error()+"\n")
		})
	}
}

func TestMissingDirectory(t *testing.T) {
	te := newTestEnv(t)
	exp := new(fakeExporter)
	missing := filepath.Join(te.cwd, "nonexistent")

	res := te.run(t, exp, missing)

	testutil.AssertEqual(t, res.Code, 1)
	testutil.AssertEqual(t, exp.calls, 0)
	testutil.AssertEqual(t, te.stderr.String(), "> No such directory exists as the project root: "+missing+"\n")
}

type codedError struct{ msg string }

func (e codedError) Error() string { return e.msg }
func (e codedError) Code() string  { return export.Code }

func TestRecognizedExportError(t *testing.T) {
	pageErr := &export.Error{Kind: export.KindPage, Err: errors.New("pages/a.md: missing frontmatter")}
	cases := map[string]error{
		"kind":    pageErr,
		"code":    codedError{"pages/a.md: missing frontmatter"},
		"wrapped": fmt.Errorf("export: %w", pageErr),
	}

	for name, exportErr := range cases {
		t.Run(name, func(t *testing.T) {
			te := newTestEnv(t)
			exp := &fakeExporter{err: exportErr}

			res := te.run(t, exp)

			testutil.AssertEqual(t, res.Code, 1)
			testutil.AssertEqual(t, exp.calls, 1)
			testutil.AssertEqual(t, te.stdout.String(), "")

			out := strings.TrimSuffix(te.stderr.String(), "\n")
			if strings.Count(out, "\n") != 0 {
				t.Fatalf("want a single log line, got:\n%s", out)
			}
			if !strings.Contains(out, "ERR") || !strings.Contains(out, exportErr.Error()) {
				t.Fatalf("want error-level line with %q, got %q", exportErr.Error(), out)
			}
		})
	}
}

func TestUnrecognizedExportError(t *testing.T) {
	te := newTestEnv(t)
	exportErr := errtrace.Wrap(errors.New("disk on fire"))
	exp := &fakeExporter{err: exportErr}

	res := te.run(t, exp)

	testutil.AssertEqual(t, res.Code, 1)
	testutil.AssertEqual(t, exp.calls, 1)
	testutil.AssertEqual(t, te.stdout.String(), "")
	detail := strings.TrimSuffix(errtrace.FormatString(exportErr), "\n")
	testutil.AssertEqual(t, te.stderr.String(), detail+"\n")
	testutil.AssertEqual(t, res.Message, detail)
	if !strings.Contains(res.Message, "disk on fire") {
		t.Fatalf("full error missing message: %q", res.Message)
	}
	if strings.Contains(te.stderr.String(), "ERR ") {
		t.Fatalf("unrecognized error reported as export error: %q", te.stderr.String())
	}
}

func TestProgressLogging(t *testing.T) {
	cases := map[string]struct {
		argv    []string
		wantLog bool
	}{
		"default": {nil, true},
		"silent":  {[]string{"-s"}, false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			te := newTestEnv(t)
			exp := &fakeExporter{logf: "Rendering pages."}

			res := te.run(t, exp, tc.argv...)

			testutil.AssertEqual(t, res.Code, 0)
			testutil.AssertEqual(t, strings.Contains(te.stderr.String(), "Rendering pages."), tc.wantLog)
		})
	}
}

func TestContextLogger(t *testing.T) {
	te := newTestEnv(t)
	exp := new(fakeExporter)

	res := te.run(t, exp)

	testutil.AssertEqual(t, res.Code, 0)
	if logger.IsDefault(logger.Get(exp.ctx)) {
		t.Fatal("export context doesn't carry the command logger")
	}
	logger.Info(exp.ctx, "from the pipeline", slog.String("page", "index.md"))
	out := te.stderr.String()
	if !strings.Contains(out, "INF from the pipeline") || !strings.Contains(out, "page=index.md") {
		t.Fatalf("unexpected log output: %q", out)
	}
}

func TestOutdirChangedByExport(t *testing.T) {
	te := newTestEnv(t)
	configured := filepath.Join(te.cwd, "build")
	exp := &fakeExporter{outdir: configured}

	res := te.run(t, exp)

	testutil.AssertEqual(t, res.Code, 0)
	testutil.AssertEqual(t, res.Outdir, configured)
	testutil.AssertEqual(t, te.stdout.String(), "Export successful. Files written to "+configured+"\n")
}

func TestExportFunc(t *testing.T) {
	te := newTestEnv(t)
	var gotDir string
	exp := ExportFunc(func(_ context.Context, dir string, _ *export.Options, _ *trace.Span) error {
		gotDir = dir
		return nil
	})

	res := te.run(t, exp)

	testutil.AssertEqual(t, res.Code, 0)
	testutil.AssertEqual(t, gotDir, te.cwd)
}

func TestRealExport(t *testing.T) {
	te := newTestEnv(t)
	proj := mkdir(t, filepath.Join(te.cwd, "proj"))
	for name, content := range map[string]string{
		"templates/layout.html": "<html><body>{{ content . }}</body></html>\n",
		"pages/index.md":        "{\n  \"title\": \"Home\",\n  \"template\": \"layout\",\n  \"permalink\": \"/\"\n}\n\nHello.\n",
	} {
		path := filepath.Join(proj, filepath.FromSlash(name))
		mkdir(t, filepath.Dir(path))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	res := te.run(t, ExportFunc(export.Export), "proj", "--silent")

	testutil.AssertEqual(t, res.Code, 0)
	testutil.AssertEqual(t, res.Outdir, filepath.Join(proj, "out"))
	if _, err := os.Stat(filepath.Join(proj, "out", "index.html")); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, te.stderr.String(), "")
}

func TestResolveDir(t *testing.T) {
	cwd := filepath.Join(os.TempDir(), "work")
	cases := map[string]struct {
		arg, want string
	}{
		"empty":    {"", cwd},
		"relative": {"site", filepath.Join(cwd, "site")},
		"parent":   {"..", filepath.Dir(cwd)},
		"absolute": {filepath.Join(os.TempDir(), "x", "..", "y"), filepath.Join(os.TempDir(), "y")},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, resolveDir(cwd, tc.arg), tc.want)
		})
	}
}
