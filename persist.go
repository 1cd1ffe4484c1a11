package hnsw

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"golang.org/x/exp/maps"
)

// The image is a process-local cache, not a cross-machine interchange
// format, so it uses the host byte order.
var byteOrder = binary.NativeEndian

// Image layout, from offset 0 of the region:
//
//	u64  num_nodes
//	repeat num_nodes times (ids ascending):
//	    i32  id
//	    i32  level
//	    u64  vec_size
//	    f32  vec[vec_size]
//	repeat num_nodes times (same order):
//	    for l = 0 .. level inclusive:
//	        u64  num_neighbors
//	        i32  neighbor_id[num_neighbors]
//
// Both blocks share one deterministic traversal so the reader can resolve
// the adjacency block positionally. Trailing bytes are undefined.

// imageWriter appends fixed-width values into a bounded byte slice,
// keeping the first error.
type imageWriter struct {
	buf []byte
	off int
	err error
}

func (w *imageWriter) grab(n int) []byte {
	if w.err != nil {
		return nil
	}
	if n > len(w.buf)-w.off {
		w.err = fmt.Errorf("%w: image does not fit in %d bytes", ErrCapacityExceeded, len(w.buf))
		return nil
	}
	b := w.buf[w.off : w.off+n]
	w.off += n
	return b
}

func (w *imageWriter) u64(v uint64) {
	if b := w.grab(8); b != nil {
		byteOrder.PutUint64(b, v)
	}
}

func (w *imageWriter) i32(v int32) {
	if b := w.grab(4); b != nil {
		byteOrder.PutUint32(b, uint32(v))
	}
}

func (w *imageWriter) f32s(vs []float32) {
	b := w.grab(4 * len(vs))
	if b == nil {
		return
	}
	for i, v := range vs {
		byteOrder.PutUint32(b[i*4:], math.Float32bits(v))
	}
}

// imageReader consumes fixed-width values from a byte slice, keeping the
// first error.
type imageReader struct {
	buf []byte
	off int
	err error
}

func (r *imageReader) grab(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n > len(r.buf)-r.off {
		r.err = fmt.Errorf("%w: read past end of %d-byte region", ErrCorruptImage, len(r.buf))
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *imageReader) u64() uint64 {
	b := r.grab(8)
	if b == nil {
		return 0
	}
	return byteOrder.Uint64(b)
}

func (r *imageReader) i32() int32 {
	b := r.grab(4)
	if b == nil {
		return 0
	}
	return int32(byteOrder.Uint32(b))
}

func (r *imageReader) f32s(n int) []float32 {
	b := r.grab(4 * n)
	if b == nil {
		return nil
	}
	vs := make([]float32, n)
	for i := range vs {
		vs[i] = math.Float32frombits(byteOrder.Uint32(b[i*4:]))
	}
	return vs
}

// lengthPrefix reads a u64 count and checks that count elements of
// elemSize bytes fit in the unread remainder of the image.
func (r *imageReader) lengthPrefix(elemSize int) int {
	v := r.u64()
	if r.err != nil {
		return 0
	}
	if v > uint64(len(r.buf)-r.off)/uint64(elemSize) {
		r.err = fmt.Errorf("%w: length prefix %d overruns the region", ErrCorruptImage, v)
		return 0
	}
	return int(v)
}

// Store snapshots the graph into the mapped region, overwriting from
// offset 0. It fails with ErrCapacityExceeded if the image does not fit.
func (g *Graph) Store(r *Region) error {
	return g.storeImage(r.Bytes())
}

func (g *Graph) storeImage(buf []byte) error {
	ids := maps.Keys(g.nodes)
	slices.Sort(ids)

	w := &imageWriter{buf: buf}
	w.u64(uint64(len(ids)))
	for _, id := range ids {
		n := g.nodes[id]
		w.i32(n.ID)
		w.i32(int32(n.Level))
		w.u64(uint64(len(n.Value)))
		w.f32s(n.Value)
	}
	for _, id := range ids {
		for _, nbs := range g.nodes[id].neighbors {
			w.u64(uint64(len(nbs)))
			for _, nb := range nbs {
				w.i32(nb.ID)
			}
		}
	}
	return w.err
}

// imageSize returns the exact byte size of the graph's image.
func (g *Graph) imageSize() int {
	size := 8
	for _, n := range g.nodes {
		size += 4 + 4 + 8 + 4*len(n.Value)
		for _, nbs := range n.neighbors {
			size += 8 + 4*len(nbs)
		}
	}
	return size
}

// Load replaces the graph's contents with the image in the mapped region.
// Construction parameters are left as configured.
//
// Nodes are materialized directly from their stored id, level, and vector,
// and the stored adjacency is wired in a second pass, so the reloaded
// topology is exactly the persisted one. Neighbor ids not present in the
// image are silently dropped. The entry point is the first record with the
// highest level (the smallest such id for images this package writes), and
// the search ceiling grows to that level if it exceeds the configured one.
func (g *Graph) Load(r *Region) error {
	return g.loadImage(r.Bytes())
}

func (g *Graph) loadImage(buf []byte) error {
	if err := g.Validate(); err != nil {
		return err
	}
	g.init()

	rd := &imageReader{buf: buf}
	count := rd.lengthPrefix(4 + 4 + 8) // minimum record: id, level, vec_size
	if rd.err != nil {
		return rd.err
	}

	nodes := make(map[int32]*Node, count)
	order := make([]*Node, 0, count)
	for i := 0; i < count; i++ {
		id := rd.i32()
		level := rd.i32()
		dim := rd.lengthPrefix(4)
		vec := rd.f32s(dim)
		if rd.err != nil {
			return rd.err
		}
		if level < 0 {
			return fmt.Errorf("%w: node %d has negative level %d", ErrCorruptImage, id, level)
		}
		n := newNode(id, int(level), vec)
		nodes[id] = n
		order = append(order, n)
	}

	// Adjacency block, in the same order as the first pass.
	for _, n := range order {
		for l := 0; l <= n.Level; l++ {
			nbs := rd.lengthPrefix(4)
			for j := 0; j < nbs; j++ {
				nb, ok := nodes[rd.i32()]
				if rd.err != nil {
					return rd.err
				}
				if ok {
					n.addNeighbor(l, nb)
				}
			}
		}
	}
	if rd.err != nil {
		return rd.err
	}

	g.nodes = nodes
	g.entry = nil
	g.maxLevel = g.MaxLevel
	for _, n := range order {
		if g.entry == nil || n.Level > g.entry.Level {
			g.entry = n
		}
	}
	if g.entry != nil && g.entry.Level > g.maxLevel {
		g.maxLevel = g.entry.Level
	}
	return nil
}
