package relink

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pybundle/pybundle/pkg/observability"
)

// fakePlatform serves link tables from memory. Library "files" live in
// srcDir so the walk has something real to copy.
type fakePlatform struct {
	t      *testing.T
	srcDir string
	// links maps a binary's base name to the base names it references.
	links map[string][]string
	// relinked records (base name, setName) in processing order.
	relinked []relinkCall
}

type relinkCall struct {
	base    string
	setName bool
}

func (f *fakePlatform) Name() string { return "fake" }

func (f *fakePlatform) Linked(ctx context.Context, binary string) ([]string, error) {
	var out []string
	for _, base := range f.links[filepath.Base(binary)] {
		out = append(out, filepath.Join(f.srcDir, base))
	}
	return out, nil
}

func (f *fakePlatform) Relink(ctx context.Context, binary, libdir string, setName bool) error {
	f.relinked = append(f.relinked, relinkCall{base: filepath.Base(binary), setName: setName})
	return nil
}

// newFakePlatform creates the platform and a source file per library name.
func newFakePlatform(t *testing.T, links map[string][]string) *fakePlatform {
	t.Helper()
	srcDir := t.TempDir()
	seen := map[string]bool{}
	for _, deps := range links {
		for _, base := range deps {
			if !seen[base] {
				seen[base] = true
				if err := os.WriteFile(filepath.Join(srcDir, base), []byte("lib "+base), 0o755); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	return &fakePlatform{t: t, srcDir: srcDir, links: links}
}

func writeRoot(t *testing.T, name string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(root, []byte("main"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

func libdirEntries(t *testing.T, libdir string) []string {
	t.Helper()
	entries, err := os.ReadDir(libdir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestVendorClosure_Completeness(t *testing.T) {
	// main -> liba -> libc, main -> libb: three distinct names vendored.
	p := newFakePlatform(t, map[string][]string{
		"main":      {"liba.so.1", "libb.so.1"},
		"liba.so.1": {"libc.so.1"},
	})
	root := writeRoot(t, "main")
	libdir := filepath.Join(t.TempDir(), "lib")

	res, err := VendorClosure(context.Background(), p, root, libdir)
	if err != nil {
		t.Fatalf("VendorClosure() failed: %v", err)
	}

	if got := libdirEntries(t, libdir); len(got) != 3 {
		t.Errorf("libdir has %d files %v, want 3", len(got), got)
	}
	if len(res.Vendored) != 3 {
		t.Errorf("Vendored = %v, want 3 entries", res.Vendored)
	}
	if res.Graph.NodeCount() != 4 { // main + 3 libs
		t.Errorf("graph has %d nodes, want 4", res.Graph.NodeCount())
	}
}

func TestVendorClosure_SetNameOnlyForLibraries(t *testing.T) {
	p := newFakePlatform(t, map[string][]string{
		"main": {"liba.so.1"},
	})
	root := writeRoot(t, "main")

	if _, err := VendorClosure(context.Background(), p, root, filepath.Join(t.TempDir(), "lib")); err != nil {
		t.Fatalf("VendorClosure() failed: %v", err)
	}

	want := []relinkCall{
		{base: "main", setName: false},
		{base: "liba.so.1", setName: true},
	}
	if len(p.relinked) != len(want) {
		t.Fatalf("relinked %v, want %v", p.relinked, want)
	}
	for i, w := range want {
		if p.relinked[i] != w {
			t.Errorf("relinked[%d] = %v, want %v", i, p.relinked[i], w)
		}
	}
}

func TestVendorClosure_CycleTerminates(t *testing.T) {
	// liba and libb reference each other; the walk must still terminate.
	p := newFakePlatform(t, map[string][]string{
		"main":      {"liba.so.1"},
		"liba.so.1": {"libb.so.1"},
		"libb.so.1": {"liba.so.1"},
	})
	root := writeRoot(t, "main")
	libdir := filepath.Join(t.TempDir(), "lib")

	res, err := VendorClosure(context.Background(), p, root, libdir)
	if err != nil {
		t.Fatalf("VendorClosure() failed: %v", err)
	}
	if got := libdirEntries(t, libdir); len(got) != 2 {
		t.Errorf("libdir has %v, want liba and libb", got)
	}
	if len(res.Vendored) != 2 {
		t.Errorf("Vendored = %v, want 2 entries", res.Vendored)
	}
}

func TestVendorClosure_DiamondCopiedOnce(t *testing.T) {
	p := newFakePlatform(t, map[string][]string{
		"main":      {"liba.so.1", "libb.so.1"},
		"liba.so.1": {"libz.so.1"},
		"libb.so.1": {"libz.so.1"},
	})
	root := writeRoot(t, "main")
	libdir := filepath.Join(t.TempDir(), "lib")

	res, err := VendorClosure(context.Background(), p, root, libdir)
	if err != nil {
		t.Fatalf("VendorClosure() failed: %v", err)
	}

	count := 0
	for _, v := range res.Vendored {
		if v == "libz.so.1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("libz vendored %d times, want 1", count)
	}
}

func TestVendorClosure_SecondRunIsNoOp(t *testing.T) {
	links := map[string][]string{"main": {"liba.so.1"}}
	p := newFakePlatform(t, links)
	root := writeRoot(t, "main")
	libdir := filepath.Join(t.TempDir(), "lib")

	if _, err := VendorClosure(context.Background(), p, root, libdir); err != nil {
		t.Fatalf("first VendorClosure() failed: %v", err)
	}
	res, err := VendorClosure(context.Background(), p, root, libdir)
	if err != nil {
		t.Fatalf("second VendorClosure() failed: %v", err)
	}

	if len(res.Vendored) != 0 {
		t.Errorf("second run vendored %v, want nothing", res.Vendored)
	}
	if got := libdirEntries(t, libdir); len(got) != 1 {
		t.Errorf("libdir has %v, want exactly one file", got)
	}
}

func TestVendorClosure_NoDependencies(t *testing.T) {
	p := newFakePlatform(t, map[string][]string{})
	root := writeRoot(t, "main")
	libdir := filepath.Join(t.TempDir(), "lib")

	res, err := VendorClosure(context.Background(), p, root, libdir)
	if err != nil {
		t.Fatalf("VendorClosure() failed: %v", err)
	}
	if len(res.Vendored) != 0 {
		t.Errorf("Vendored = %v, want empty", res.Vendored)
	}
	if got := libdirEntries(t, libdir); len(got) != 0 {
		t.Errorf("libdir has %v, want empty", got)
	}
	// Root is still relinked even with no dependencies.
	if len(p.relinked) != 1 || p.relinked[0].setName {
		t.Errorf("relinked = %v, want single setName=false entry", p.relinked)
	}
}

func TestVendorClosure_CopiesVerbatim(t *testing.T) {
	p := newFakePlatform(t, map[string][]string{"main": {"liba.so.1"}})
	root := writeRoot(t, "main")
	libdir := filepath.Join(t.TempDir(), "lib")

	if _, err := VendorClosure(context.Background(), p, root, libdir); err != nil {
		t.Fatalf("VendorClosure() failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(libdir, "liba.so.1"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "lib liba.so.1" {
		t.Errorf("vendored content = %q", data)
	}
	info, err := os.Stat(filepath.Join(libdir, "liba.so.1"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("vendored mode = %v, want 0755", info.Mode().Perm())
	}
}

// recordingRelinkHooks counts the walk events it receives.
type recordingRelinkHooks struct {
	vendored []string
	relinked []string
}

func (h *recordingRelinkHooks) OnVendor(_ context.Context, library, _ string) {
	h.vendored = append(h.vendored, library)
}

func (h *recordingRelinkHooks) OnRelink(_ context.Context, binary string, _ int) {
	h.relinked = append(h.relinked, filepath.Base(binary))
}

func TestVendorClosure_FiresHooks(t *testing.T) {
	hooks := &recordingRelinkHooks{}
	observability.SetRelinkHooks(hooks)
	t.Cleanup(observability.Reset)

	p := newFakePlatform(t, map[string][]string{"main": {"liba.so.1"}})
	root := writeRoot(t, "main")

	if _, err := VendorClosure(context.Background(), p, root, filepath.Join(t.TempDir(), "lib")); err != nil {
		t.Fatalf("VendorClosure() failed: %v", err)
	}

	if len(hooks.vendored) != 1 || hooks.vendored[0] != "liba.so.1" {
		t.Errorf("OnVendor saw %v, want [liba.so.1]", hooks.vendored)
	}
	// Once for the root, once for the vendored copy.
	if len(hooks.relinked) != 2 {
		t.Errorf("OnRelink fired for %v, want main and liba.so.1", hooks.relinked)
	}
}

func TestClosure_InspectOnly(t *testing.T) {
	p := newFakePlatform(t, map[string][]string{
		"main":      {"liba.so.1"},
		"liba.so.1": {"libb.so.1"},
	})
	root := writeRoot(t, "main")

	g, err := Closure(context.Background(), p, root)
	if err != nil {
		t.Fatalf("Closure() failed: %v", err)
	}

	if g.NodeCount() != 3 {
		t.Errorf("graph has %d nodes, want 3", g.NodeCount())
	}
	if g.EdgeCount() != 2 {
		t.Errorf("graph has %d edges, want 2", g.EdgeCount())
	}
	if len(p.relinked) != 0 {
		t.Errorf("Closure() relinked %v, want no mutation", p.relinked)
	}

	n, ok := g.Node("main")
	if !ok || !n.Root {
		t.Error("root node missing or not flagged")
	}
}
