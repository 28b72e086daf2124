package relink

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	pberrors "github.com/pybundle/pybundle/pkg/errors"
)

// otoolLine matches dependency lines such as
// "\t/usr/lib/libz.1.dylib (compatibility version 1.0.0, current version 1.2.11)".
var otoolLine = regexp.MustCompile(`^\s+(.+) \(compatibility .*, current .*\)$`)

// Darwin inspects binaries with otool and rewrites them with
// install_name_tool, re-signing afterwards with codesign.
type Darwin struct {
	run Runner
}

// NewDarwin returns the Darwin platform using the given runner.
func NewDarwin(run Runner) *Darwin {
	return &Darwin{run: run}
}

// Name returns "darwin".
func (d *Darwin) Name() string { return "darwin" }

// Linked implements Inspector via otool -L.
func (d *Darwin) Linked(ctx context.Context, binary string) ([]string, error) {
	out, err := d.run.Output(ctx, "otool", "-L", binary)
	if err != nil {
		return nil, pberrors.Wrap(pberrors.ErrCodeToolFailed, err, "inspect %s", binary)
	}

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) == 0 || lines[0] != binary+":" {
		return nil, pberrors.New(pberrors.ErrCodeInspectOutput, "unexpected otool output:\n%s", out)
	}

	var linked []string
	for _, line := range lines[1:] {
		m := otoolLine.FindStringSubmatch(line)
		if m == nil {
			return nil, pberrors.New(pberrors.ErrCodeInspectOutput, "unexpected otool line: %q", line)
		}

		switch {
		case m[1] == binary:
			// otool -L sometimes reports a library as linking itself.
		case statFile(m[1]):
			linked = append(linked, m[1])
		default:
			// Mach-O "magics" many libraries into existence; only ones
			// actually on disk were truly linked.
		}
	}
	return linked, nil
}

// Relink implements Relinker via install_name_tool.
//
// Every reference is rewritten individually to an @loader_path form, and the
// binary is re-signed afterwards: the rewrite invalidates any existing
// signature, and SIP kills unsigned binaries outright. The ad-hoc "-"
// signature is sufficient.
func (d *Darwin) Relink(ctx context.Context, binary, libdir string, setName bool) error {
	dir := filepath.Dir(binary)

	if setName {
		id := "@loader_path/" + filepath.Base(binary)
		if err := d.run.Run(ctx, "install_name_tool", "-id", id, binary); err != nil {
			return pberrors.Wrap(pberrors.ErrCodeRelinkFailed, err, "set identity of %s", binary)
		}
	}

	linked, err := d.Linked(ctx, binary)
	if err != nil {
		return err
	}
	for _, link := range linked {
		dest := filepath.Join(libdir, filepath.Base(link))
		rel, err := filepath.Rel(dir, dest)
		if err != nil {
			return err
		}
		replacement := "@loader_path/" + rel
		if err := d.run.Run(ctx, "install_name_tool", "-change", link, replacement, binary); err != nil {
			return pberrors.Wrap(pberrors.ErrCodeRelinkFailed, err, "rewrite %s in %s", link, binary)
		}
	}

	if err := d.run.Run(ctx, "codesign", "--force", "--sign", "-", binary); err != nil {
		return pberrors.Wrap(pberrors.ErrCodeSignFailed, err, "re-sign %s", binary)
	}
	return nil
}
