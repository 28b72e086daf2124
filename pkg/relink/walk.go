package relink

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pybundle/pybundle/pkg/graph"
	"github.com/pybundle/pybundle/pkg/observability"
)

// WalkResult describes one completed closure walk.
type WalkResult struct {
	// Vendored lists the base names copied into the library directory
	// during this walk, in processing order. Libraries already present
	// before the walk are not listed (a second run over the same
	// destination vendors nothing).
	Vendored []string

	// Graph is the link graph discovered during the walk: one node per
	// distinct base name, edges from each binary to the libraries it
	// references. The root binary's node carries Root=true.
	Graph *graph.Graph
}

// item is one queued binary awaiting processing.
type item struct {
	path    string
	setName bool
}

// VendorClosure vendors the complete transitive shared-library closure of
// root into libdir and relinks every binary involved.
//
// The walk is breadth-first over an explicit queue. For each binary it
// inspects the direct references, relinks the binary in place, copies every
// reference whose base name is not yet present in libdir (verbatim, link
// metadata still unrewritten), and enqueues each fresh copy for its own
// pass. De-duplication is keyed by base file name: a base name already in
// libdir is treated as fully satisfied and never re-enqueued, which both
// bounds the walk (each distinct name enters the queue at most once, and
// the universe of names on a machine is finite) and keeps mutually
// referencing libraries from recursing forever.
//
// The root is relinked without rewriting its identity; every vendored
// library has its identity rewritten, since other binaries reference it.
//
// Processing is strictly sequential and fail-fast: external tools are
// assumed deterministic, so nothing is retried, and the first failure
// aborts the walk with the prefix considered unshippable.
//
// A root with no external dependencies is valid and yields an empty
// vendored set.
func VendorClosure(ctx context.Context, p Platform, root, libdir string) (*WalkResult, error) {
	if err := os.MkdirAll(libdir, 0o755); err != nil {
		return nil, err
	}

	g := graph.New(graph.Metadata{"root": filepath.Base(root)})
	_ = g.AddNode(graph.Node{ID: filepath.Base(root), Root: true, Meta: graph.Metadata{"path": root}})

	result := &WalkResult{Graph: g}
	queue := []item{{path: root, setName: false}}

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		// Inspect before relinking: the rewrite mutates the very metadata
		// the inspection reads.
		linked, err := p.Linked(ctx, it.path)
		if err != nil {
			return nil, err
		}
		if err := p.Relink(ctx, it.path, libdir, it.setName); err != nil {
			return nil, err
		}
		observability.Relink().OnRelink(ctx, it.path, len(linked))

		from := filepath.Base(it.path)
		for _, link := range linked {
			base := filepath.Base(link)
			if _, ok := g.Node(base); !ok {
				_ = g.AddNode(graph.Node{ID: base, Meta: graph.Metadata{"path": link}})
			}
			_ = g.AddEdge(graph.Edge{From: from, To: base})

			dest := filepath.Join(libdir, base)
			if _, err := os.Lstat(dest); err == nil {
				// Already vendored (this walk or an earlier one): satisfied.
				continue
			}
			if err := copyFile(link, dest); err != nil {
				return nil, err
			}
			observability.Relink().OnVendor(ctx, base, link)
			result.Vendored = append(result.Vendored, base)
			queue = append(queue, item{path: dest, setName: true})
		}
	}

	return result, nil
}

// Closure inspects the transitive non-system dependency graph of root
// without copying or rewriting anything. Used by the deps command to
// preview what a build would vendor.
func Closure(ctx context.Context, p Platform, root string) (*graph.Graph, error) {
	g := graph.New(graph.Metadata{"root": filepath.Base(root)})
	_ = g.AddNode(graph.Node{ID: filepath.Base(root), Root: true, Meta: graph.Metadata{"path": root}})

	queue := []string{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		linked, err := p.Linked(ctx, current)
		if err != nil {
			return nil, err
		}

		from := filepath.Base(current)
		for _, link := range linked {
			base := filepath.Base(link)
			if _, ok := g.Node(base); !ok {
				_ = g.AddNode(graph.Node{ID: base, Meta: graph.Metadata{"path": link}})
				queue = append(queue, link)
			}
			_ = g.AddEdge(graph.Edge{From: from, To: base})
		}
	}
	return g, nil
}

// copyFile copies src to dst verbatim, preserving the file mode.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
