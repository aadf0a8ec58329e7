// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package export

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/feeds"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	mjson "github.com/tdewolff/minify/v2/json"
	"rsc.io/markdown"
)

type buildContext struct {
	dir       string
	outdir    string
	c         *Config
	md        *markdown.Parser
	funcs     template.FuncMap
	pages     []*Page
	templates map[string]*template.Template
	public    []string // slash-separated paths relative to public
	min       *minify.M
}

func newBuildContext(dir, outdir string, c *Config) *buildContext {
	b := &buildContext{
		dir:    dir,
		outdir: outdir,
		c:      c,
		md: &markdown.Parser{
			HeadingID:          true,
			Strikethrough:      true,
			TaskList:           true,
			AutoLinkText:       true,
			AutoLinkAssumeHTTP: true,
			Table:              true,
			Emoji:              true,
			SmartDot:           true,
			SmartDash:          true,
			SmartQuote:         true,
			Footnote:           true,
		},
		templates: make(map[string]*template.Template),
		min:       newMinifier(),
	}

	b.funcs = template.FuncMap{
		"content": b.content,
		"site":    func() *Config { return b.c },
		"time":    b.time,
		"pages":   b.pagesByType,
		"url":     b.url,
	}

	return b
}

// content returns the rendered body of p.
func (b *buildContext) content(p *Page) (template.HTML, error) {
	if err := b.renderBody(p); err != nil {
		return "", err
	}
	return template.HTML(p.body), nil
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags:    true,
		KeepDefaultAttrVals: true,
		KeepEndTags:         true,
	})
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("application/json", mjson.Minify)
	return m
}

func (b *buildContext) pagesByType(typ string) []*Page {
	if typ == "" {
		return b.pages
	}
	var pages []*Page
	for _, p := range b.pages {
		if p.Type == typ {
			pages = append(pages, p)
		}
	}
	return pages
}

func (b *buildContext) time(format string, d *date) template.HTML {
	return template.HTML(fmt.Sprintf(`<time datetime="%s">%s</time>`,
		d.Format(time.RFC3339),
		d.Format(format),
	))
}

func isFullURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// url makes base absolute when the project has a base URL.
func (b *buildContext) url(base string) string {
	if isFullURL(base) || b.c.BaseURL == nil {
		return base
	}
	u := *b.c.BaseURL
	u.Path = path.Join(u.Path, base)
	return u.String()
}

func (b *buildContext) parseTemplate(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}
	if d.IsDir() || filepath.Ext(path) != ".html" {
		return nil
	}

	name, err := filepath.Rel(filepath.Join(b.dir, "templates"), path)
	if err != nil {
		return err
	}
	name = filepath.ToSlash(strings.TrimSuffix(name, filepath.Ext(name)))

	bb, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tpl, err := template.New(name).Funcs(b.funcs).Parse(string(bb))
	if err != nil {
		return errorf(KindPage, "templates/%s.html: %v", name, err)
	}
	b.templates[name] = tpl
	return nil
}

func (b *buildContext) parsePage(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}
	if d.IsDir() || isIgnorable(path) {
		return nil
	}

	rel, err := filepath.Rel(b.dir, path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	p := &Page{path: filepath.ToSlash(rel)}
	if err := p.parse(f); err != nil {
		return newError(KindPage, err)
	}
	if !p.Draft {
		b.pages = append(b.pages, p)
	}
	return nil
}

func (b *buildContext) listPublic(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}
	if d.IsDir() || isIgnorable(path) {
		return nil
	}
	rel, err := filepath.Rel(filepath.Join(b.dir, "public"), path)
	if err != nil {
		return err
	}
	b.public = append(b.public, filepath.ToSlash(rel))
	return nil
}

func isIgnorable(path string) bool {
	// Vim backups.
	if strings.HasSuffix(path, "~") {
		return true
	}
	return filepath.Base(path) == ".gitignore" || filepath.Base(path) == ".DS_Store"
}

func (b *buildContext) buildFeed() error {
	link := "/"
	if b.c.BaseURL != nil {
		link = b.c.BaseURL.String() + "/"
	}
	feed := &feeds.Feed{
		Title:   b.c.Title,
		Link:    &feeds.Link{Href: link},
		Created: time.Now(),
	}
	if b.c.Author != "" {
		feed.Author = &feeds.Author{Name: b.c.Author}
	}

	for _, p := range b.pagesByType("post") {
		item := &feeds.Item{
			Title:       p.Title,
			Link:        &feeds.Link{Href: b.url(p.Permalink)},
			Author:      feed.Author,
			Description: p.Summary,
			Content:     string(p.body),
		}
		if p.Date != nil {
			item.Created = p.Date.Time
		}
		feed.Items = append(feed.Items, item)
	}

	atom, err := feed.ToAtom()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(b.outdir, "feed.xml"), []byte(atom), 0o644)
}

type brokenLink struct {
	page string // source path of the linking page
	href string
}

// brokenLinks returns root-relative links in exported pages that point
// neither to an exported page nor to a public file.
func (b *buildContext) brokenLinks() []brokenLink {
	exported := map[string]bool{"/": true, "/feed.xml": !b.c.SkipFeed, "/robots.txt": true}
	for _, p := range b.pages {
		exported[path.Clean(p.Permalink)] = true
		exported["/"+p.dstPath] = true
	}
	for _, rel := range b.public {
		exported["/"+rel] = true
	}

	var broken []brokenLink
	for _, p := range b.pages {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.out))
		if err != nil {
			continue
		}
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			target, ok := localTarget(href, b.c.BaseURL)
			if !ok || exported[target] {
				return
			}
			broken = append(broken, brokenLink{page: p.path, href: href})
		})
	}
	return broken
}

// localTarget returns the cleaned path of href if it points inside the
// exported site.
func localTarget(href string, base *url.URL) (string, bool) {
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Scheme != "" || u.Host != "" {
		if base == nil || u.Host != base.Host {
			return "", false
		}
		p := strings.TrimPrefix(u.Path, base.Path)
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		return path.Clean(p), true
	}
	if !strings.HasPrefix(u.Path, "/") {
		return "", false
	}
	return path.Clean(u.Path), true
}
