// Package prune strips an install prefix of payload that should never ship:
// bundled test suites, IDE and GUI toolkit packages, and bytecode caches
// (which would all be invalidated by relocation anyway).
package prune

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pybundle/pybundle/pkg/manifest"
)

// stdlibDirs are the stdlib subdirectories removed from lib/pythonX.Y.
var stdlibDirs = [][]string{
	{"idlelib"},
	{"tkinter"},
	{"test"},
	{"ctypes", "test"},
	{"distutils", "tests"},
	{"lib2to3", "tests"},
	{"unittest", "test"},
	{"sqlite3", "test"},
}

// Prune removes the unwanted stdlib directories and every *.pyc under
// prefix. Missing directories are not an error; interpreter versions differ
// in which test packages they install.
func Prune(prefix string, version manifest.Version) error {
	libdir := filepath.Join(prefix, "lib", version.PyMinor())
	for _, parts := range stdlibDirs {
		dir := filepath.Join(append([]string{libdir}, parts...)...)
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return removeByteCode(prefix)
}

func removeByteCode(prefix string) error {
	return filepath.WalkDir(prefix, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".pyc") {
			return os.Remove(path)
		}
		return nil
	})
}
