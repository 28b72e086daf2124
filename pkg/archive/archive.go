// Package archive writes the distributable tarball. Output is byte-for-byte
// reproducible: entries are sorted, ownership is normalized to root, and
// every timestamp (tar and gzip) is zeroed, so rebuilding the same prefix
// yields an identical archive.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Create archives the tree rooted at src into the tgz at dest. Entries are
// placed under a top-level directory named after dest without its
// extension, so python-3.10.5-....tgz unpacks to python-3.10.5-..../.
func Create(src, dest string) error {
	root := strings.TrimSuffix(filepath.Base(dest), filepath.Ext(dest))

	type arc struct {
		name string // path inside the archive
		path string // path on disk
	}
	arcs := []arc{{name: root, path: src}}
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		arcs = append(arcs, arc{name: filepath.Join(root, rel), path: path})
		return nil
	})
	if err != nil {
		return err
	}
	sort.Slice(arcs, func(i, j int) bool { return arcs[i].name < arcs[j].name })

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	zw.ModTime = time.Unix(0, 0).UTC()
	tw := tar.NewWriter(zw)

	for _, a := range arcs {
		if err := writeEntry(tw, a.name, a.path); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return f.Close()
}

func writeEntry(tw *tar.Writer, name, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}

	var linkname string
	if info.Mode()&os.ModeSymlink != 0 {
		if linkname, err = os.Readlink(path); err != nil {
			return err
		}
	}
	hdr, err := tar.FileInfoHeader(info, linkname)
	if err != nil {
		return err
	}
	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}
	normalize(hdr)

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if hdr.Typeflag != tar.TypeReg {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

// normalize strips everything machine-specific from a header.
func normalize(hdr *tar.Header) {
	hdr.Uid = 0
	hdr.Gid = 0
	hdr.Uname = "root"
	hdr.Gname = "root"
	hdr.ModTime = time.Unix(0, 0).UTC()
	hdr.AccessTime = time.Time{}
	hdr.ChangeTime = time.Time{}
	hdr.Format = tar.FormatGNU
}
