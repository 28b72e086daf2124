package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func newTestCLI() *CLI {
	return New(io.Discard, log.InfoLevel)
}

func TestRootCommandSubcommands(t *testing.T) {
	root := newTestCLI().RootCommand()

	want := []string{"build", "relink", "deps", "versions", "validate", "cache", "completion"}
	have := map[string]bool{}
	for _, cmd := range root.Commands() {
		have[cmd.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("root command is missing subcommand %q", name)
		}
	}
}

func TestVersionsCommand(t *testing.T) {
	c := newTestCLI()
	root := c.RootCommand()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"versions"})

	if err := root.Execute(); err != nil {
		t.Fatalf("versions: %v", err)
	}
	for _, v := range []string{"3.8.13", "3.9.13", "3.10.5"} {
		if !strings.Contains(out.String(), v) {
			t.Errorf("versions output missing %s:\n%s", v, out.String())
		}
	}
}

func TestVersionsCommand_CustomManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "releases.toml")
	src := `[[release]]
version = "3.12.1"
url = "https://www.python.org/ftp/python/3.12.1/Python-3.12.1.tar.xz"
sha256 = "8dfb8f426fcd226657f9e2bd5f1e96e53264965176fa17d32658e873591aeb21"
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	c := newTestCLI()
	root := c.RootCommand()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"versions", "--manifest", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("versions --manifest: %v", err)
	}
	if !strings.Contains(out.String(), "3.12.1") {
		t.Errorf("output missing custom release:\n%s", out.String())
	}
	if strings.Contains(out.String(), "3.10.5") {
		t.Errorf("custom manifest should replace the embedded one:\n%s", out.String())
	}
}

func TestBuildCommand_RejectsBadVersion(t *testing.T) {
	root := newTestCLI().RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"build", "not-a-version"})

	if err := root.Execute(); err == nil {
		t.Fatal("build accepted a malformed version")
	}
}

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir: %v", err)
	}
	if dir != filepath.Join("/tmp/xdg-cache", appName) {
		t.Errorf("cacheDir = %q", dir)
	}
}

func TestCachePathCommand(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	root := newTestCLI().RootCommand()
	root.SetArgs([]string{"cache", "path"})

	if err := root.Execute(); err != nil {
		t.Fatalf("cache path: %v", err)
	}
}
