package vectorstore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/coder/hnsw"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrZeroVector is returned for vectors without direction, which cosine distance cannot rank.
var ErrZeroVector = errors.New("zero vector")

// Params configures graph construction and search.
type Params struct {
	// M is the maximum number of neighbors kept per node.
	M int
	// EfSearch is the candidate list size. coder/hnsw also uses it while
	// inserting, so it doubles as the construction quality knob.
	EfSearch int
	// Seed drives level assignment so identical inputs yield identical graphs.
	Seed int64
}

// DefaultParams returns the parameters used when none are configured.
func DefaultParams() Params {
	return Params{M: 32, EfSearch: 200, Seed: 1}
}

// HNSWIndex is a cosine-distance HNSW graph keyed by insertion position.
type HNSWIndex struct {
	graph *hnsw.Graph[uint64]
	dims  int
}

// NewHNSWIndex creates an empty index for vectors of the given dimension.
func NewHNSWIndex(dims int, params Params) *HNSWIndex {
	if params.M <= 0 {
		params.M = DefaultParams().M
	}
	if params.EfSearch <= 0 {
		params.EfSearch = DefaultParams().EfSearch
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = params.M
	graph.EfSearch = params.EfSearch
	graph.Ml = 1 / math.Log(float64(params.M))
	graph.Rng = rand.New(rand.NewSource(params.Seed))

	return &HNSWIndex{graph: graph, dims: dims}
}

// LoadHNSWIndex restores an index previously produced by MarshalBinary.
func LoadHNSWIndex(data []byte, dims int) (*HNSWIndex, error) {
	idx := NewHNSWIndex(dims, DefaultParams())
	// coder/hnsw Import needs an io.ByteReader.
	if err := idx.graph.Import(bufio.NewReader(bytes.NewReader(data))); err != nil {
		return nil, fmt.Errorf("failed to import graph: %w", err)
	}
	return idx, nil
}

// Add appends a vector and returns its ID, which is always the previous Len.
func (x *HNSWIndex) Add(vec []float32) (int, error) {
	if len(vec) != x.dims {
		return 0, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, x.dims, len(vec))
	}
	normalized, ok := normalize(vec)
	if !ok {
		return 0, ErrZeroVector
	}

	id := x.graph.Len()
	x.graph.Add(hnsw.MakeNode(uint64(id), normalized))
	return id, nil
}

// Len returns the number of vectors in the graph.
func (x *HNSWIndex) Len() int {
	return x.graph.Len()
}

// Dimensions returns the vector dimension.
func (x *HNSWIndex) Dimensions() int {
	return x.dims
}

// Search returns up to k neighbors ordered by ascending cosine distance.
// Equal distances are ordered by ID.
//
// Small graphs, and requests for a large share of the graph, are answered by
// an exact scan. Larger graphs are asked for at least EfSearch candidates,
// which are re-ranked by exact distance and cut to k.
func (x *HNSWIndex) Search(query []float32, k int) ([]Neighbor, error) {
	if len(query) != x.dims {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, x.dims, len(query))
	}
	n := x.graph.Len()
	if k <= 0 || n == 0 {
		return []Neighbor{}, nil
	}
	if k > n {
		k = n
	}
	normalized, ok := normalize(query)
	if !ok {
		return nil, ErrZeroVector
	}

	var neighbors []Neighbor
	if n <= x.graph.EfSearch || 2*k >= n {
		neighbors = x.scan(normalized)
	} else {
		neighbors = x.candidates(normalized, min(n, max(k, x.graph.EfSearch)))
	}
	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].ID < neighbors[j].ID
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// scan measures the distance to every stored vector.
func (x *HNSWIndex) scan(query []float32) []Neighbor {
	n := x.graph.Len()
	neighbors := make([]Neighbor, 0, n)
	for id := 0; id < n; id++ {
		vec, ok := x.graph.Lookup(uint64(id))
		if !ok {
			continue
		}
		neighbors = append(neighbors, Neighbor{ID: id, Distance: x.graph.Distance(query, vec)})
	}
	return neighbors
}

// candidates asks the graph for size approximate neighbors.
func (x *HNSWIndex) candidates(query []float32, size int) []Neighbor {
	nodes := x.graph.Search(query, size)
	neighbors := make([]Neighbor, 0, len(nodes))
	for _, node := range nodes {
		neighbors = append(neighbors, Neighbor{
			ID:       int(node.Key),
			Distance: x.graph.Distance(query, node.Value),
		})
	}
	return neighbors
}

// MarshalBinary exports the graph.
func (x *HNSWIndex) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := x.graph.Export(&buf); err != nil {
		return nil, fmt.Errorf("failed to export graph: %w", err)
	}
	return buf.Bytes(), nil
}

// Similarity converts a cosine distance in [0, 2] to a similarity in [-1, 1].
func Similarity(distance float32) float32 {
	return 1 - distance
}

func normalize(v []float32) ([]float32, bool) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return nil, false
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = val * inv
	}
	return out, true
}
