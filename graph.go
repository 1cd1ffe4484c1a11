// Package hnsw implements an in-memory Hierarchical Navigable Small World
// index over dense float32 vectors under Euclidean distance, with a
// fixed-layout image codec that persists the graph into a memory-mapped
// file so the index survives process restarts without a parse step.
//
// Multi-threaded access must be synchronized externally: the graph holds no
// internal locks, and neither two Inserts nor an Insert and a Search may
// run concurrently.
package hnsw

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/annadex/hnsw/heap"
)

type Vector = []float32

// defaultSeed drives level generation unless the caller supplies a Rng.
// A fixed seed makes a given insertion sequence reproduce the same graph.
const defaultSeed = 1000

// defaultMaxNeighbors caps kept neighbors per level; levels past the end of
// the table reuse the last entry.
var defaultMaxNeighbors = []int{32, 16, 16, 12, 8}

// Node is a vertex of the graph. ID and Level are immutable after
// creation; only the neighbor lists change as later inserts link back.
type Node struct {
	// ID is caller-assigned and unique within a graph.
	ID int32

	// Level is the highest level the node lives on.
	Level int

	// Value is the indexed vector.
	Value Vector

	// neighbors[l] is the ordered neighbor list at level l, present for
	// levels 0..Level inclusive.
	neighbors [][]*Node
}

func newNode(id int32, level int, vec Vector) *Node {
	return &Node{
		ID:        id,
		Level:     level,
		Value:     vec,
		neighbors: make([][]*Node, level+1),
	}
}

// neighborsAt returns the neighbor list at the given level, or nil when
// the node does not live on that level.
func (n *Node) neighborsAt(level int) []*Node {
	if level >= len(n.neighbors) {
		return nil
	}
	return n.neighbors[level]
}

func (n *Node) addNeighbor(level int, o *Node) {
	n.neighbors[level] = append(n.neighbors[level], o)
}

// Graph is a Hierarchical Navigable Small World index.
// All public parameters must be set before the first Insert.
type Graph struct {
	// Distance compares vectors. EuclideanDistance is the reference
	// metric.
	Distance DistanceFunc

	// Rng drives level generation. It defaults to a generator seeded
	// with defaultSeed so that identical insertion sequences build
	// identical graphs.
	Rng *rand.Rand

	// MaxLevel is the initial ceiling for the search descent. A node
	// drawn above it becomes the new entry point and raises the ceiling.
	MaxLevel int

	// Ef is the candidate-list width during insertion's layer search.
	Ef int

	// Ml is the level generation scale factor.
	Ml float64

	// MaxNeighbors caps the neighbors selected per level. Levels past
	// the end of the table reuse the last entry.
	MaxNeighbors []int

	nodes    map[int32]*Node
	entry    *Node
	maxLevel int // current ceiling: starts at MaxLevel, grows on promotion
}

// New returns a graph with the given construction parameters, the
// Euclidean metric, and a deterministic level generator.
func New(maxLevel, ef int, ml float64) *Graph {
	return &Graph{
		Distance:     EuclideanDistance,
		Rng:          rand.New(rand.NewSource(defaultSeed)),
		MaxLevel:     maxLevel,
		Ef:           ef,
		Ml:           ml,
		MaxNeighbors: defaultMaxNeighbors,
		nodes:        make(map[int32]*Node),
		maxLevel:     maxLevel,
	}
}

// NewGraph returns a graph with the reference parameters.
func NewGraph() *Graph {
	return New(16, 32, 0.33)
}

// Validate checks the graph configuration.
func (g *Graph) Validate() error {
	if g.MaxLevel < 0 {
		return fmt.Errorf("hnsw: MaxLevel must not be negative, got %d", g.MaxLevel)
	}
	if g.Ef <= 0 {
		return fmt.Errorf("hnsw: Ef must be greater than 0, got %d", g.Ef)
	}
	if g.Ml <= 0 {
		return fmt.Errorf("hnsw: Ml must be greater than 0, got %f", g.Ml)
	}
	if g.Distance == nil {
		return fmt.Errorf("hnsw: Distance function must be set")
	}
	return nil
}

// init fills in state a zero-value graph is missing, so that struct-literal
// construction keeps working.
func (g *Graph) init() {
	if g.nodes == nil {
		g.nodes = make(map[int32]*Node)
	}
	if g.Rng == nil {
		g.Rng = rand.New(rand.NewSource(defaultSeed))
	}
	if len(g.MaxNeighbors) == 0 {
		g.MaxNeighbors = defaultMaxNeighbors
	}
	if g.maxLevel < g.MaxLevel {
		g.maxLevel = g.MaxLevel
	}
}

// randomLevel draws a level from the exponential law floor(-ln(U) * Ml)
// with U uniform on (0, 1).
func (g *Graph) randomLevel() int {
	u := g.Rng.Float64()
	for u == 0 {
		u = g.Rng.Float64()
	}
	return int(math.Floor(-math.Log(u) * g.Ml))
}

func (g *Graph) maxNeighbors(level int) int {
	if level >= len(g.MaxNeighbors) {
		return g.MaxNeighbors[len(g.MaxNeighbors)-1]
	}
	return g.MaxNeighbors[level]
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Dims returns the dimension of the indexed vectors, or 0 when empty.
func (g *Graph) Dims() int {
	if g.entry == nil {
		return 0
	}
	return len(g.entry.Value)
}

// Lookup returns the vector stored under id.
func (g *Graph) Lookup(id int32) (Vector, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Value, true
}

// nearest orders candidates ascending by distance: the heap root is the
// closest unexpanded node.
type nearest struct {
	node *Node
	dist float32
}

func (c nearest) Less(o nearest) bool {
	return c.dist < o.dist
}

// farthest orders candidates descending by distance: the heap root is the
// worst member of a bounded result set.
type farthest struct {
	node *Node
	dist float32
}

func (c farthest) Less(o farthest) bool {
	return c.dist > o.dist
}

// searchLayer runs the bounded best-first walk over one level, returning
// up to ef nodes ordered ascending by distance to query.
func (g *Graph) searchLayer(query Vector, eps []*Node, ef, level int) ([]*Node, error) {
	var (
		visited    = make(map[int32]bool, 2*ef)
		candidates heap.Heap[nearest]
		results    heap.Heap[farthest] // bounded to ef
	)

	for _, ep := range eps {
		d, err := g.Distance(query, ep.Value)
		if err != nil {
			return nil, err
		}
		visited[ep.ID] = true
		candidates.Push(nearest{node: ep, dist: d})
		results.Push(farthest{node: ep, dist: d})
	}

	for candidates.Len() > 0 {
		c := candidates.Pop()

		// The farthest kept result already beats the best remaining
		// candidate: nothing reachable can improve the result set.
		if results.Len() > 0 && results.Peek().dist < c.dist {
			break
		}

		for _, nb := range c.node.neighborsAt(level) {
			if visited[nb.ID] {
				continue
			}
			visited[nb.ID] = true

			d, err := g.Distance(query, nb.Value)
			if err != nil {
				return nil, err
			}
			if results.Len() >= ef && d >= results.Peek().dist {
				continue
			}
			candidates.Push(nearest{node: nb, dist: d})
			results.Push(farthest{node: nb, dist: d})
			if results.Len() > ef {
				results.Pop()
			}
		}
	}

	// Drain the bounded max-heap; pops come farthest first.
	out := make([]*Node, results.Len())
	for i := results.Len() - 1; i >= 0; i-- {
		out[i] = results.Pop().node
	}
	return out, nil
}

// selectNeighbors keeps the up to k candidates nearest to query, ordered
// ascending. Ties on distance fall to heap order.
func (g *Graph) selectNeighbors(query Vector, k int, candidates []*Node) ([]*Node, error) {
	var pq heap.Heap[farthest]
	for _, c := range candidates {
		d, err := g.Distance(query, c.Value)
		if err != nil {
			return nil, err
		}
		pq.Push(farthest{node: c, dist: d})
		if pq.Len() > k {
			pq.Pop()
		}
	}

	out := make([]*Node, pq.Len())
	for i := pq.Len() - 1; i >= 0; i-- {
		out[i] = pq.Pop().node
	}
	return out, nil
}

// Insert adds vec to the graph under the caller-assigned id. Ids must be
// unique within a graph; reusing one replaces the map entry without
// unlinking the old node.
func (g *Graph) Insert(vec Vector, id int32) error {
	if err := g.Validate(); err != nil {
		return err
	}
	g.init()

	if g.entry != nil && len(vec) != g.Dims() {
		return fmt.Errorf("%w: insert id %d: %d != %d", ErrDimensionMismatch, id, len(vec), g.Dims())
	}

	level := g.randomLevel()
	node := newNode(id, level, vec)
	g.nodes[id] = node

	// The first node becomes the entry point and has no neighbors.
	if g.entry == nil {
		g.entry = node
		if level > g.maxLevel {
			g.maxLevel = level
		}
		return nil
	}

	// Greedy descent from the top of the graph to the new node's own top
	// layer, carrying the single best entry point per level.
	ep := []*Node{g.entry}
	for lc := g.maxLevel; lc > level; lc-- {
		w, err := g.searchLayer(vec, ep, 1, lc)
		if err != nil {
			return err
		}
		if len(w) > 0 {
			ep = w[:1]
		}
	}

	for lc := min(g.maxLevel, level); lc >= 0; lc-- {
		w, err := g.searchLayer(vec, ep, g.Ef, lc)
		if err != nil {
			return err
		}
		selected, err := g.selectNeighbors(vec, g.maxNeighbors(lc), w)
		if err != nil {
			return err
		}

		for _, nb := range selected {
			// An entry point carried down from a sparser prefix of the
			// graph may not live on this level; it cannot be linked here.
			if nb.Level < lc {
				continue
			}
			node.addNeighbor(lc, nb)
			nb.addNeighbor(lc, node)
		}
		ep = w
	}

	if level > g.maxLevel {
		g.entry = node
		g.maxLevel = level
	}
	return nil
}

// Search returns up to k nodes nearest to query, ordered ascending by
// distance. Searching an empty graph is not an error: the result is empty.
// The returned nodes are handles into the graph; callers typically read
// only their IDs.
func (g *Graph) Search(query Vector, k int) ([]*Node, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("hnsw: k must be greater than 0, got %d", k)
	}
	if g.entry == nil {
		return nil, nil
	}

	ep := []*Node{g.entry}
	for lc := g.maxLevel; lc > 0; lc-- {
		w, err := g.searchLayer(query, ep, 1, lc)
		if err != nil {
			return nil, err
		}
		if len(w) > 0 {
			ep = w[:1]
		}
	}

	return g.searchLayer(query, ep, k, 0)
}
