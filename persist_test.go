package hnsw

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestRegion(t *testing.T) *Region {
	t.Helper()
	r, err := OpenRegion(filepath.Join(t.TempDir(), DefaultRegionPath))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, r.Close())
	})
	return r
}

func TestStoreLoad_RoundTrip(t *testing.T) {
	g := NewGraph()

	rng := rand.New(rand.NewSource(defaultSeed))
	vecs := make([]Vector, 100)
	for i := range vecs {
		vecs[i] = randVec(rng, 8)
		require.NoError(t, g.Insert(vecs[i], int32(i)))
	}

	region := openTestRegion(t)
	require.NoError(t, g.Store(region))

	reloaded := NewGraph()
	require.NoError(t, reloaded.Load(region))

	// Same id set, bit-identical vectors.
	require.Equal(t, g.Len(), reloaded.Len())
	for i, vec := range vecs {
		got, ok := reloaded.Lookup(int32(i))
		require.True(t, ok)
		require.Equal(t, vec, got)
	}

	// Top-1 stability across the round trip.
	matches := 0
	for q := 0; q < 20; q++ {
		query := randVec(rng, 8)

		before, err := g.Search(query, 1)
		require.NoError(t, err)
		after, err := reloaded.Search(query, 1)
		require.NoError(t, err)

		require.Len(t, before, 1)
		require.Len(t, after, 1)
		if before[0].ID == after[0].ID {
			matches++
		}
	}
	require.GreaterOrEqual(t, matches, 19)
}

func TestLoad_EmptyRegion(t *testing.T) {
	region := openTestRegion(t)

	g := NewGraph()
	require.NoError(t, g.Load(region))
	require.Equal(t, 0, g.Len())

	nearest, err := g.Search(Vector{0, 0}, 3)
	require.NoError(t, err)
	require.Empty(t, nearest)
}

func TestStore_CapacityExceeded(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Insert(Vector{1, 2, 3, 4}, 1))

	tiny := &Region{data: make([]byte, 16)}
	err := g.Store(tiny)
	require.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestLoad_CorruptImage(t *testing.T) {
	g := NewGraph()
	rng := rand.New(rand.NewSource(1))
	for i := int32(0); i < 10; i++ {
		require.NoError(t, g.Insert(randVec(rng, 8), i))
	}

	buf := make([]byte, g.imageSize())
	require.NoError(t, g.storeImage(buf))

	for _, cut := range []int{4, 20, len(buf) / 2, len(buf) - 2} {
		truncated := &Region{data: buf[:cut]}
		err := NewGraph().Load(truncated)
		require.ErrorIs(t, err, ErrCorruptImage, "cut at %d", cut)
	}
}

func TestLoad_DropsUnknownNeighbors(t *testing.T) {
	// Hand-build an image whose adjacency references id 99, which has no
	// record.
	buf := make([]byte, 256)
	w := &imageWriter{buf: buf}
	w.u64(2)
	w.i32(1)
	w.i32(0)
	w.u64(2)
	w.f32s([]float32{0, 0})
	w.i32(2)
	w.i32(0)
	w.u64(2)
	w.f32s([]float32{3, 4})
	w.u64(2) // node 1, level 0: neighbors 2 and 99
	w.i32(2)
	w.i32(99)
	w.u64(1) // node 2, level 0: neighbor 1
	w.i32(1)
	require.NoError(t, w.err)

	g := NewGraph()
	require.NoError(t, g.Load(&Region{data: buf}))
	require.Equal(t, 2, g.Len())

	n1 := g.nodes[1]
	require.Len(t, n1.neighborsAt(0), 1)
	require.Equal(t, int32(2), n1.neighborsAt(0)[0].ID)

	nearest, err := g.Search(Vector{3, 3}, 1)
	require.NoError(t, err)
	require.Equal(t, int32(2), nearest[0].ID)
}

func TestStore_DeterministicOrder(t *testing.T) {
	// Two stores of the same graph emit identical bytes: node iteration
	// is by ascending id, shared by both blocks.
	g := NewGraph()
	rng := rand.New(rand.NewSource(5))
	for i := int32(0); i < 50; i++ {
		require.NoError(t, g.Insert(randVec(rng, 4), i))
	}

	a := make([]byte, g.imageSize())
	b := make([]byte, g.imageSize())
	require.NoError(t, g.storeImage(a))
	require.NoError(t, g.storeImage(b))
	require.Equal(t, a, b)
}
