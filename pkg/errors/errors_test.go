package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(ErrCodeInvalidVersion, "unknown version: %s", "9.9.9"),
			want: "INVALID_VERSION: unknown version: 9.9.9",
		},
		{
			name: "with cause",
			err:  Wrap(ErrCodeNetwork, stderrors.New("connection refused"), "fetch failed"),
			want: "NETWORK_ERROR: fetch failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(ErrCodeRelinkFailed, "patchelf exited 1")

	if !Is(err, ErrCodeRelinkFailed) {
		t.Error("Is() = false for matching code")
	}
	if Is(err, ErrCodeNetwork) {
		t.Error("Is() = true for non-matching code")
	}
	if Is(stderrors.New("plain"), ErrCodeRelinkFailed) {
		t.Error("Is() = true for plain error")
	}
}

func TestIs_WrappedChain(t *testing.T) {
	inner := New(ErrCodeChecksum, "digest mismatch")
	outer := fmt.Errorf("download: %w", inner)

	if !Is(outer, ErrCodeChecksum) {
		t.Error("Is() did not find code through wrapped chain")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("exit status 1")
	err := Wrap(ErrCodeToolFailed, cause, "codesign")

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is() did not match the wrapped cause")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeInternal, "boom")); got != ErrCodeInternal {
		t.Errorf("GetCode() = %q, want %q", got, ErrCodeInternal)
	}
	if got := GetCode(stderrors.New("plain")); got != "" {
		t.Errorf("GetCode() = %q, want empty", got)
	}
}
