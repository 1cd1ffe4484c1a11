package hnsw

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/google/renameio"
)

// Export writes the graph's image to w, using the same record layout as
// the mmap region but without the fixed-size bound.
func (g *Graph) Export(w io.Writer) error {
	buf := make([]byte, g.imageSize())
	if err := g.storeImage(buf); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	_, err := w.Write(buf)
	return err
}

// Import replaces the graph's contents with an image read from r.
func (g *Graph) Import(r io.Reader) error {
	buf, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return g.loadImage(buf)
}

// SavedGraph is a wrapper around a graph that persists to a file upon
// calls to Save. It is more convenient but less powerful than Store/Load
// against an mmap region: the file is rewritten atomically and is exactly
// the image size.
type SavedGraph struct {
	*Graph
	Path string
}

// LoadSavedGraph opens a graph from a file, reads it, and returns it.
//
// If the file does not exist (i.e. this is a new graph), the equivalent of
// NewGraph is returned.
//
// It does not hold open a file descriptor, so SavedGraph can be forgotten
// without ever calling Save.
func LoadSavedGraph(path string) (*SavedGraph, error) {
	g := NewGraph()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := g.Import(bufio.NewReader(f)); err != nil {
			return nil, fmt.Errorf("import: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	return &SavedGraph{Graph: g, Path: path}, nil
}

// Save writes the graph to the file, replacing it atomically.
func (g *SavedGraph) Save() error {
	tmp, err := renameio.TempFile("", g.Path)
	if err != nil {
		return err
	}
	defer tmp.Cleanup()

	wr := bufio.NewWriter(tmp)
	if err := g.Export(wr); err != nil {
		return fmt.Errorf("exporting: %w", err)
	}
	if err := wr.Flush(); err != nil {
		return fmt.Errorf("flushing: %w", err)
	}

	return tmp.CloseAtomicallyReplace()
}
