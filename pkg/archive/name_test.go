package archive

import (
	"context"
	"errors"
	"strings"
	"testing"

	pberrors "github.com/pybundle/pybundle/pkg/errors"
)

func TestPlatformTag_Linux(t *testing.T) {
	tests := []struct {
		banner string
		want   string // glibc part only, machine varies per host
	}{
		{"ldd (Ubuntu GLIBC 2.31-0ubuntu9.9) 2.31\nCopyright (C) 2020", "manylinux_2_31_"},
		{"ldd (GNU libc) 2.17\n", "manylinux_2_17_"},
	}
	for _, tt := range tests {
		run := &fakeRunner{output: []byte(tt.banner)}
		got, err := PlatformTag(context.Background(), "linux", run)
		if err != nil {
			t.Fatalf("PlatformTag: %v", err)
		}
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("PlatformTag = %q, want prefix %q", got, tt.want)
		}
	}
}

func TestPlatformTag_LinuxBadBanner(t *testing.T) {
	run := &fakeRunner{output: []byte("musl libc\n")}
	_, err := PlatformTag(context.Background(), "linux", run)
	if !pberrors.Is(err, pberrors.ErrCodeInspectOutput) {
		t.Fatalf("error = %v, want INSPECT_OUTPUT", err)
	}
}

func TestPlatformTag_Darwin(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"12.5\n", "macosx_12_0_"},
		{"11.0.1\n", "macosx_11_0_"},
		{"10.15.7\n", "macosx_10_15_"},
	}
	for _, tt := range tests {
		run := &fakeRunner{output: []byte(tt.version)}
		got, err := PlatformTag(context.Background(), "darwin", run)
		if err != nil {
			t.Fatalf("PlatformTag(%q): %v", tt.version, err)
		}
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("PlatformTag(%q) = %q, want prefix %q", tt.version, got, tt.want)
		}
	}
}

func TestPlatformTag_ToolFailure(t *testing.T) {
	run := &fakeRunner{err: errors.New("exec: not found")}
	_, err := PlatformTag(context.Background(), "linux", run)
	if !pberrors.Is(err, pberrors.ErrCodeToolFailed) {
		t.Fatalf("error = %v, want TOOL_FAILED", err)
	}
}

func TestPlatformTag_Unsupported(t *testing.T) {
	_, err := PlatformTag(context.Background(), "plan9", &fakeRunner{})
	if !pberrors.Is(err, pberrors.ErrCodeUnsupported) {
		t.Fatalf("error = %v, want UNSUPPORTED", err)
	}
}
