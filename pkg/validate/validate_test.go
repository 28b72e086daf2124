package validate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pybundle/pybundle/pkg/archive"
	pberrors "github.com/pybundle/pybundle/pkg/errors"
)

type fakeRunner struct {
	fail  map[string]error // keyed by check program substring
	calls [][]string
}

func (f *fakeRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return nil, f.Run(ctx, name, args...)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	for substr, err := range f.fail {
		for _, a := range args {
			if strings.Contains(a, substr) {
				return err
			}
		}
	}
	return nil
}

func (f *fakeRunner) RunIn(ctx context.Context, dir string, env []string, name string, args ...string) error {
	return f.Run(ctx, name, args...)
}

// makeArchive builds a minimal valid archive containing bin/python3.
func makeArchive(t *testing.T, withPython bool) string {
	t.Helper()
	prefix := t.TempDir()
	if withPython {
		bin := filepath.Join(prefix, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(bin, "python3"), []byte("elf"), 0o755); err != nil {
			t.Fatal(err)
		}
	} else {
		if err := os.WriteFile(filepath.Join(prefix, "README"), []byte("empty"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	dest := filepath.Join(t.TempDir(), "python-3.10.5-manylinux_2_31_x86_64.tgz")
	if err := archive.Create(prefix, dest); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return dest
}

func TestValidator_Archive(t *testing.T) {
	run := &fakeRunner{}
	v := &Validator{Run: run}

	if err := v.Archive(context.Background(), makeArchive(t, true)); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	if len(run.calls) != len(Checks()) {
		t.Fatalf("ran %d commands, want %d", len(run.calls), len(Checks()))
	}
	for _, call := range run.calls {
		if filepath.Base(call[0]) != "python3" {
			t.Errorf("invoked %q, want the bundled python3", call[0])
		}
		if call[1] != "-c" {
			t.Errorf("args = %v, want -c programs", call[1:])
		}
	}
	if !strings.Contains(run.calls[0][2], "import _elementtree,") {
		t.Errorf("import check program = %q", run.calls[0][2])
	}
	if !strings.Contains(run.calls[1][2], "urllib.request.urlopen") {
		t.Errorf("ssl check program = %q", run.calls[1][2])
	}
	if !strings.Contains(run.calls[2][2], "curses.window.get_wch") {
		t.Errorf("curses check program = %q", run.calls[2][2])
	}
}

func TestValidator_FailingCheckAborts(t *testing.T) {
	run := &fakeRunner{fail: map[string]error{
		"import _elementtree": errors.New("exit status 1"),
	}}
	v := &Validator{Run: run}

	err := v.Archive(context.Background(), makeArchive(t, true))
	if !pberrors.Is(err, pberrors.ErrCodeToolFailed) {
		t.Fatalf("error = %v, want TOOL_FAILED", err)
	}
	if len(run.calls) != 1 {
		t.Errorf("later checks ran after a failure: %d calls", len(run.calls))
	}
}

func TestValidator_MissingInterpreter(t *testing.T) {
	v := &Validator{Run: &fakeRunner{}}
	err := v.Archive(context.Background(), makeArchive(t, false))
	if !pberrors.Is(err, pberrors.ErrCodeInvalidArchive) {
		t.Fatalf("error = %v, want INVALID_ARCHIVE", err)
	}
}
