package heap

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

type Int int

func (i Int) Less(j Int) bool {
	return i < j
}

func TestHeap(t *testing.T) {
	h := Heap[Int]{}

	for i := 0; i < 20; i++ {
		h.Push(Int(rand.Int() % 100))
	}

	require.Equal(t, 20, h.Len())

	var inOrder []Int
	for h.Len() > 0 {
		inOrder = append(inOrder, h.Pop())
	}

	if !slices.IsSorted(inOrder) {
		t.Errorf("Heap did not return sorted elements: %+v", inOrder)
	}
}

func TestHeap_Init(t *testing.T) {
	h := Heap[Int]{}
	h.Init([]Int{5, 1, 4, 2, 3})

	require.Equal(t, 5, h.Len())
	require.Equal(t, Int(1), h.Peek())

	for want := Int(1); want <= 5; want++ {
		require.Equal(t, want, h.Pop())
	}
}

func TestHeap_Bounded(t *testing.T) {
	// Evict the root while over capacity, keeping the 3 elements the
	// ordering ranks last. The graph bounds its result sets this way,
	// with a reversed ordering.
	h := Heap[Int]{}
	for i := 10; i > 0; i-- {
		h.Push(Int(i))
	}
	for h.Len() > 3 {
		_ = h.Pop()
	}
	require.Equal(t, 3, h.Len())

	rest := h.Slice()
	slices.Sort(rest)
	require.Equal(t, []Int{8, 9, 10}, rest)
}
