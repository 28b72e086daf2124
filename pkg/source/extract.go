package source

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	pberrors "github.com/pybundle/pybundle/pkg/errors"
)

// Extract unpacks tarball into target, stripping the leading path component
// (upstream tarballs wrap everything in a "Python-X.Y.Z/" directory).
// Gzip and xz compression are detected from the stream's magic bytes.
func Extract(tarball, target string) error {
	f, err := os.Open(tarball)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}

	r, err := decompress(f)
	if err != nil {
		return err
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}

		name, ok := stripComponent(hdr.Name)
		if !ok {
			continue // the wrapping directory itself
		}
		dest, err := securePath(target, name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				_ = out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			_ = os.Remove(dest)
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				return err
			}
		default:
			// Hard links and device nodes do not occur in source tarballs.
		}
	}
}

// decompress sniffs the stream's magic bytes and wraps it in the matching
// decompressor. Plain tar streams pass through untouched.
func decompress(f *os.File) (io.Reader, error) {
	magic := make([]byte, 6)
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, pberrors.Wrap(pberrors.ErrCodeInvalidArchive, err, "read magic of %s", f.Name())
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(magic, []byte{0x1f, 0x8b}):
		return gzip.NewReader(f)
	case bytes.HasPrefix(magic, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}):
		return xz.NewReader(f)
	default:
		return f, nil
	}
}

// stripComponent removes the first path element. Entries that consist only
// of the wrapping directory yield ok=false.
func stripComponent(name string) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	_, rest, found := strings.Cut(name, "/")
	if !found || rest == "" {
		return "", false
	}
	return rest, true
}

// securePath joins name onto target, rejecting entries that would escape it.
func securePath(target, name string) (string, error) {
	dest := filepath.Join(target, name)
	if !strings.HasPrefix(dest, filepath.Clean(target)+string(os.PathSeparator)) {
		return "", pberrors.New(pberrors.ErrCodeInvalidArchive, "entry escapes target: %q", name)
	}
	return dest, nil
}
