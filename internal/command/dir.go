// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package command

import "path/filepath"

// resolveDir returns the absolute project directory named by arg, which is
// relative to cwd unless absolute. An empty arg means cwd.
func resolveDir(cwd, arg string) string {
	if arg == "" {
		return filepath.Clean(cwd)
	}
	if filepath.IsAbs(arg) {
		return filepath.Clean(arg)
	}
	return filepath.Join(cwd, arg)
}

// dirExists reports whether dir exists.
func (e *Env) dirExists(dir string) bool {
	_, err := e.Stat(dir)
	return err == nil
}
