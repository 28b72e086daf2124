// Package execx abstracts external process execution behind a small
// interface so packages that shell out (link tools, configure/make, brew,
// the built interpreter itself) can be tested with canned output and exit
// codes instead of the real binaries.
package execx

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Runner executes external commands.
type Runner interface {
	// Output runs the command and returns its standard output.
	// A non-zero exit is an error.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// Run runs the command with inherited stdout/stderr for diagnostics.
	// A non-zero exit is an error.
	Run(ctx context.Context, name string, args ...string) error

	// RunIn behaves like Run with the working directory and environment
	// overridden. A nil env inherits the parent environment.
	RunIn(ctx context.Context, dir string, env []string, name string, args ...string) error
}

type execRunner struct{}

// New returns a Runner that executes real processes.
func New() Runner { return execRunner{} }

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	return execRunner{}.RunIn(ctx, "", nil, name, args...)
}

func (execRunner) RunIn(ctx context.Context, dir string, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// LookPath reports whether name resolves to an executable on PATH.
func LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
