package relink

import (
	"context"
	"strings"
	"testing"
)

// fakeRunner serves canned tool output and records every invocation.
type fakeRunner struct {
	t *testing.T
	// outputs maps the command name to stdout for Output calls.
	outputs map[string][]byte
	// fail lists command names whose invocation should fail.
	fail map[string]error
	// calls records full command lines in order.
	calls []string
}

func (f *fakeRunner) record(name string, args []string) string {
	line := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, line)
	return line
}

func (f *fakeRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.record(name, args)
	if err := f.fail[name]; err != nil {
		return nil, err
	}
	out, ok := f.outputs[name]
	if !ok {
		f.t.Fatalf("unexpected Output(%s %s)", name, strings.Join(args, " "))
	}
	return out, nil
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) error {
	f.record(name, args)
	return f.fail[name]
}

// countCalls returns how many recorded command lines start with prefix.
func (f *fakeRunner) countCalls(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
