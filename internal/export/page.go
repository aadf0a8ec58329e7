// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	ttemplate "text/template"
	"time"

	"rsc.io/markdown"
)

// Possible page errors, used in tests.
var (
	errFrontmatterUnterminated = errors.New("frontmatter is not terminated by a closing brace line")
	errFrontmatterParse        = errors.New("failed to parse frontmatter")
	errFrontmatterMissing      = errors.New("missing frontmatter")
	errFrontmatterMissingParam = errors.New("missing required frontmatter parameter (title, template, permalink)")
	errFormatUnsupported       = errors.New("format unsupported")
	errPermalinkInvalid        = errors.New("invalid permalink")
	errContentCycle            = errors.New("pages include each other's content")
)

// Page is a page of the exported project. The exported fields are the front
// matter fields.
type Page struct {
	Title     string            `json:"title"`               // title: Page title, required.
	Permalink string            `json:"permalink"`           // permalink: URL path of the page, required.
	Template  string            `json:"template"`            // template: Template used to render the page, required.
	Date      *date             `json:"date,omitempty"`      // date: Publication date as 2006-01-02, optional.
	Draft     bool              `json:"draft,omitempty"`     // draft: Drafts are never exported.
	MetaTags  map[string]string `json:"meta_tags,omitempty"` // meta_tags: Additional HTML meta tags, optional.
	Summary   string            `json:"summary,omitempty"`   // summary: Used in the feed, optional.
	Type      string            `json:"type,omitempty"`      // type: Kind of page, "page" by default.

	path    string // source path relative to the project
	dstPath string // slash-separated output path relative to outdir
	src     []byte // source without front matter
	body    []byte // rendered body, set once state is bodyDone
	out     []byte // final minified HTML
	state   bodyState
}

type bodyState int

const (
	bodyPending bodyState = iota
	bodyRendering
	bodyDone
)

type date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func (d *date) UnmarshalJSON(p []byte) error {
	s := strings.Trim(string(p), "\"")
	if s == "null" {
		d.Time = time.Time{}
		return nil
	}
	dt, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = dt
	return nil
}

var supportedFormats = []string{".html", ".md"}

func (p *Page) parse(r io.Reader) error {
	if !slices.Contains(supportedFormats, filepath.Ext(p.path)) {
		return fmt.Errorf("%s: %w", p.path, errFormatUnsupported)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%s: %w", p.path, err)
	}
	fm, src, err := splitFrontmatter(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", p.path, err)
	}
	if err := json.Unmarshal(fm, p); err != nil {
		return fmt.Errorf("%s: %w: %v", p.path, errFrontmatterParse, err)
	}
	p.src = src

	if p.Type == "" {
		p.Type = "page"
	}
	if p.Title == "" || p.Template == "" || p.Permalink == "" {
		return fmt.Errorf("%s: %w", p.path, errFrontmatterMissingParam)
	}
	if _, err := url.ParseRequestURI(p.Permalink); err != nil || !strings.HasPrefix(p.Permalink, "/") {
		return fmt.Errorf("%s: %w: %q", p.path, errPermalinkInvalid, p.Permalink)
	}
	return nil
}

// splitFrontmatter separates the JSON front matter of a page source from its
// body. The front matter starts at the first line consisting of "{" and ends
// at the next line consisting of "}"; anything before it, such as an editor
// modeline, is dropped.
func splitFrontmatter(raw []byte) (fm, body []byte, err error) {
	lines := bytes.SplitAfter(raw, []byte("\n"))
	open := slices.IndexFunc(lines, isLine("{"))
	if open < 0 {
		return nil, nil, errFrontmatterMissing
	}
	n := slices.IndexFunc(lines[open+1:], isLine("}"))
	if n < 0 {
		return nil, nil, errFrontmatterUnterminated
	}
	closing := open + 1 + n
	return bytes.Join(lines[open:closing+1], nil), bytes.Join(lines[closing+1:], nil), nil
}

func isLine(s string) func([]byte) bool {
	return func(line []byte) bool {
		return string(bytes.TrimRight(line, "\r\n")) == s
	}
}

// outputPath returns the slash-separated path, relative to the output
// directory, of the file a permalink is written to.
func outputPath(permalink string, trailingSlash bool) string {
	p := path.Clean(permalink)
	switch {
	case strings.HasSuffix(p, ".html"):
	case p == "/":
		p = "/index.html"
	case trailingSlash:
		p += "/index.html"
	default:
		p += ".html"
	}
	return strings.TrimPrefix(p, "/")
}

var htmlCommentRe = regexp.MustCompile("<!--(.*?)-->")

// renderBody executes the page source as a template and renders Markdown.
// Bodies are rendered sequentially; a page including the content of another
// renders that page first.
func (b *buildContext) renderBody(p *Page) error {
	switch p.state {
	case bodyDone:
		return nil
	case bodyRendering:
		return fmt.Errorf("%s: %w", p.path, errContentCycle)
	}
	p.state = bodyRendering

	// text/template, so HTML in Markdown sources isn't escaped.
	ptpl, err := ttemplate.New(p.path).Funcs(ttemplate.FuncMap(b.funcs)).Parse(string(p.src))
	if err != nil {
		return fmt.Errorf("%s: %w", p.path, err)
	}
	var buf bytes.Buffer
	if err := ptpl.Execute(&buf, p); err != nil {
		return fmt.Errorf("%s: failed to execute page template: %w", p.path, err)
	}
	body := buf.Bytes()
	if filepath.Ext(p.path) == ".md" {
		body = []byte(markdown.ToHTML(b.md.Parse(string(body))))
	}
	p.body = htmlCommentRe.ReplaceAll(body, nil)
	p.state = bodyDone
	return nil
}

// layout wraps the rendered body in tpl and minifies the result. It only
// reads bodies, so pages can be laid out concurrently.
func (p *Page) layout(b *buildContext, tpl *template.Template) error {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, p); err != nil {
		return fmt.Errorf("%s: failed to execute template %q: %w", p.path, p.Template, err)
	}
	out, err := b.min.Bytes("text/html", buf.Bytes())
	if err != nil {
		return fmt.Errorf("%s: %w", p.path, err)
	}
	p.out = out
	return nil
}
