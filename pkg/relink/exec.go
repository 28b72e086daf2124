package relink

import (
	"context"

	"github.com/pybundle/pybundle/pkg/execx"
)

// Runner executes the external link tools (ldd, patchelf, otool,
// install_name_tool, codesign, dpkg). It exists as an interface so tests can
// substitute canned output and exit codes without any of those tools
// installed.
type Runner interface {
	// Output runs the command and returns its standard output.
	// A non-zero exit is an error.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// Run runs the command with inherited stderr for diagnostics.
	// A non-zero exit is an error.
	Run(ctx context.Context, name string, args ...string) error
}

// NewRunner returns a Runner that executes real processes.
func NewRunner() Runner { return execx.New() }
