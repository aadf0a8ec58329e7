// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package export

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.astrophena.name/sitexport/internal/logger"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ConfigFile is the name of the optional project configuration file.
const ConfigFile = "site.star"

// Config is the project configuration read from site.star.
//
// The file is a Starlark program; its global variables are the settings:
//
//	title = "Example"
//	author = "Jane Doe"
//	base_url = "https://example.com"
//	trailing_slash = True
//	skip_feed = False
//	out_dir = "build"
//
// Globals starting with an underscore and functions are ignored and can be
// used as helpers.
type Config struct {
	Title         string
	Author        string
	BaseURL       *url.URL
	TrailingSlash bool
	SkipFeed      bool
	// OutDir is the output directory relative to the project. It is used
	// only when the command line doesn't choose one.
	OutDir string
}

func loadConfig(dir string, logf logger.Logf) (*Config, error) {
	c := &Config{Title: filepath.Base(dir)}

	path := filepath.Join(dir, ConfigFile)
	src, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	} else if err != nil {
		return nil, err
	}

	thread := &starlark.Thread{
		Name:  ConfigFile,
		Print: func(_ *starlark.Thread, msg string) { logf("%s: %s", ConfigFile, msg) },
	}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{
		TopLevelControl: true,
		GlobalReassign:  true,
	}, thread, path, src, nil)
	if err != nil {
		return nil, errorf(KindConfig, "%s: %v", ConfigFile, err)
	}

	names := globals.Keys()
	sort.Strings(names)
	for _, name := range names {
		v := globals[name]
		if _, ok := v.(starlark.Callable); ok || strings.HasPrefix(name, "_") {
			continue
		}
		if err := c.set(name, v); err != nil {
			return nil, errorf(KindConfig, "%s: %v", ConfigFile, err)
		}
	}
	return c, nil
}

func (c *Config) set(name string, v starlark.Value) error {
	switch name {
	case "title":
		return setString(name, v, &c.Title)
	case "author":
		return setString(name, v, &c.Author)
	case "base_url":
		var s string
		if err := setString(name, v, &s); err != nil {
			return err
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("base_url: want absolute URL, got %q", s)
		}
		c.BaseURL = u
		return nil
	case "trailing_slash":
		return setBool(name, v, &c.TrailingSlash)
	case "skip_feed":
		return setBool(name, v, &c.SkipFeed)
	case "out_dir":
		var s string
		if err := setString(name, v, &s); err != nil {
			return err
		}
		if s == "" || filepath.IsAbs(s) {
			return fmt.Errorf("out_dir: want a path relative to the project, got %q", s)
		}
		c.OutDir = filepath.Clean(s)
		return nil
	}
	return fmt.Errorf("unknown setting %q", name)
}

func setString(name string, v starlark.Value, dst *string) error {
	s, ok := starlark.AsString(v)
	if !ok {
		return fmt.Errorf("%s: want string, got %s", name, v.Type())
	}
	*dst = s
	return nil
}

func setBool(name string, v starlark.Value, dst *bool) error {
	b, ok := v.(starlark.Bool)
	if !ok {
		return fmt.Errorf("%s: want bool, got %s", name, v.Type())
	}
	*dst = bool(b)
	return nil
}
