package matcher

import (
	"math"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// HNSW index parameters for face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 100

	// HNSWCandidates is the number of neighbors re-ranked exactly.
	HNSWCandidates = 8

	// DefaultMinIndexedSize is the gallery size from which the graph is used.
	DefaultMinIndexedSize = 256
)

// Indexed answers matches from an HNSW graph built over the gallery snapshot.
// Candidates are re-ranked with the exact distance. Galleries smaller than
// MinSize are matched by linear scan.
//
// Above MinSize the search is approximate: the nearest entry can be missed and
// among equidistant entries the winner is the lowest position among the
// candidates, not necessarily the first in listing order. Use New to get the
// exact matcher unless the gallery is large enough to need this.
type Indexed struct {
	threshold float64
	minSize   int

	mu    sync.Mutex
	built *gallery.Index
	graph *hnsw.Graph[int]
	dims  int
}

// New returns the exact Linear matcher, or an Indexed matcher when hnswMinSize
// is positive.
func New(threshold float64, hnswMinSize int) Matcher {
	if hnswMinSize <= 0 {
		return Linear{Threshold: threshold}
	}
	return NewIndexed(threshold, hnswMinSize)
}

// NewIndexed creates an indexed matcher.
func NewIndexed(threshold float64, minSize int) *Indexed {
	if minSize <= 0 {
		minSize = DefaultMinIndexedSize
	}
	return &Indexed{threshold: threshold, minSize: minSize}
}

// Match implements Matcher.
func (m *Indexed) Match(probe []float32, idx *gallery.Index) Result {
	if idx.Len() < m.minSize {
		return Match(probe, idx, m.threshold)
	}

	graph, dims := m.graphFor(idx)
	if graph == nil || len(probe) != dims {
		return Match(probe, idx, m.threshold)
	}

	best := -1
	bestDist := math.Inf(1)
	for _, n := range graph.Search(probe, min(HNSWCandidates, graph.Len())) {
		d := EuclideanDistance(probe, idx.At(n.Key).Embedding)
		if d < bestDist || (d == bestDist && n.Key < best) {
			best, bestDist = n.Key, d
		}
	}
	return accept(idx, best, bestDist, m.threshold)
}

// graphFor returns the graph for idx, rebuilding it when the snapshot changed.
func (m *Indexed) graphFor(idx *gallery.Index) (*hnsw.Graph[int], int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.built == idx {
		return m.graph, m.dims
	}

	m.built = idx
	m.graph, m.dims = buildGraph(idx)
	return m.graph, m.dims
}

// buildGraph indexes every entry sharing the first entry's dimension. Node
// keys are positions in the snapshot.
func buildGraph(idx *gallery.Index) (*hnsw.Graph[int], int) {
	if idx.Len() == 0 {
		return nil, 0
	}

	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance

	dims := len(idx.At(0).Embedding)
	for i := range idx.Len() {
		emb := idx.At(i).Embedding
		if len(emb) != dims || dims == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, emb))
	}
	if g.Len() == 0 {
		return nil, 0
	}
	return g, dims
}
