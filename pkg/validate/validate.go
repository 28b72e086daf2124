// Package validate smoke-tests a built archive: it unpacks the tarball to a
// scratch directory and drives the bundled interpreter through the checks
// that historically broke relocated builds (extension imports, TLS, wide
// curses).
package validate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	pberrors "github.com/pybundle/pybundle/pkg/errors"
	"github.com/pybundle/pybundle/pkg/execx"
	"github.com/pybundle/pybundle/pkg/source"
)

// modules is the extension module set every build must provide. Each one
// depends on a vendored library, so a failed import means the closure walk
// missed something.
var modules = []string{
	"_elementtree",
	"_uuid",
	"bz2",
	"ctypes",
	"curses",
	"dbm.ndbm",
	"gzip",
	"hashlib",
	"lzma",
	"readline",
	"sqlite3",
	"ssl",
	"uuid",
	"venv",
	"zlib",
}

// sslProbeURL is fetched to prove the vendored OpenSSL can complete a real
// TLS handshake with system roots.
const sslProbeURL = "https://pypi.org/simple/astpretty"

// Check is a single named validation of the unpacked interpreter.
type Check struct {
	Name string
	run  func(ctx context.Context, r execx.Runner, py string) error
}

// Checks returns the full validation suite in execution order.
func Checks() []Check {
	return []Check{
		{Name: "imports", run: checkImports},
		{Name: "ssl-request", run: checkSSLRequest},
		{Name: "curses-wide", run: checkCursesWide},
	}
}

func checkImports(ctx context.Context, r execx.Runner, py string) error {
	return r.Run(ctx, py, "-c", "import "+strings.Join(modules, ","))
}

func checkSSLRequest(ctx context.Context, r execx.Runner, py string) error {
	prog := fmt.Sprintf("import urllib.request\nurllib.request.urlopen(%q).read()\n", sslProbeURL)
	return r.Run(ctx, py, "-c", prog)
}

func checkCursesWide(ctx context.Context, r execx.Runner, py string) error {
	return r.Run(ctx, py, "-c", "import curses;curses.window.get_wch")
}

// Validator runs the suite against archives.
type Validator struct {
	Run execx.Runner
}

// NewValidator returns a Validator using real processes.
func NewValidator() *Validator {
	return &Validator{Run: execx.New()}
}

// Archive unpacks the tarball at path into a scratch directory and runs
// every check against its bin/python3. The first failing check aborts the
// run.
func (v *Validator) Archive(ctx context.Context, path string) error {
	logger := log.FromContext(ctx)

	tmpdir, err := os.MkdirTemp("", "pybundle-validate-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpdir)

	// The archive wraps everything in its name-derived root directory;
	// strip it the same way source extraction does.
	if err := source.Extract(path, tmpdir); err != nil {
		return err
	}
	py := filepath.Join(tmpdir, "bin", "python3")
	if _, err := os.Stat(py); err != nil {
		return pberrors.New(pberrors.ErrCodeInvalidArchive, "%s has no bin/python3", filepath.Base(path))
	}

	for _, c := range Checks() {
		logger.Info("running check", "check", c.Name)
		if err := c.run(ctx, v.Run, py); err != nil {
			return pberrors.Wrap(pberrors.ErrCodeToolFailed, err, "check %s", c.Name)
		}
	}
	return nil
}
