package relink

import (
	"runtime"

	pberrors "github.com/pybundle/pybundle/pkg/errors"
)

// ForOS returns the Platform for the given GOOS-style name.
func ForOS(goos string, run Runner) (Platform, error) {
	switch goos {
	case "linux":
		return NewLinux(run), nil
	case "darwin":
		return NewDarwin(run), nil
	default:
		return nil, pberrors.New(pberrors.ErrCodeUnsupported, "no relink support for %s", goos)
	}
}

// Host returns the Platform for the operating system this process runs on.
func Host() (Platform, error) {
	return ForOS(runtime.GOOS, NewRunner())
}
