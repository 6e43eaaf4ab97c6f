package vecstore

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/syntheo/syntheo/pkg/types"
)

// Tuning defaults for the ANN graph.
const (
	DefaultM               = 16
	DefaultEfConstruction  = 200
	DefaultEfSearch        = 100
	DefaultInitialCapacity = 1_000_000
)

// Options configures the ANN index.
type Options struct {
	Dims            int
	InitialCapacity int
	M               int
	EfConstruction  int
	EfSearch        int
}

// Hit is one nearest-neighbor candidate. Callers translate Label to a block
// through the vector map; labels without a mapping are tombstones and must
// be skipped.
type Hit struct {
	Label    uint64
	Distance float32
}

// Score converts a cosine distance into a ranking score in [0, 1].
func (h Hit) Score() float64 {
	s := 1 - float64(h.Distance)
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Store is the persistent approximate nearest-neighbor index. All graph
// access goes through a single writer lock; readers serialize with the
// writer for the duration of a search.
type Store struct {
	mu    sync.Mutex
	graph *hnsw.Graph[uint64]

	path string
	opts Options

	nextLabel uint64
	capacity  int
	count     int
	deleted   map[uint64]bool
	dirty     bool
}

// Open loads the index at path or initializes a new one. nextLabel is the
// recovered label counter (max persisted label + 1); labels are never
// reused across restarts. If the loaded index outgrew the requested
// capacity, capacity is resized upward.
func Open(path string, opts Options, nextLabel uint64) (*Store, error) {
	if opts.Dims <= 0 {
		return nil, fmt.Errorf("vector dims must be positive")
	}
	if opts.M <= 0 {
		opts.M = DefaultM
	}
	if opts.EfConstruction <= 0 {
		opts.EfConstruction = DefaultEfConstruction
	}
	if opts.EfSearch <= 0 {
		opts.EfSearch = DefaultEfSearch
	}
	if opts.InitialCapacity <= 0 {
		opts.InitialCapacity = DefaultInitialCapacity
	}

	g := hnsw.NewGraph[uint64]()
	g.M = opts.M
	g.EfSearch = opts.EfSearch
	g.Distance = hnsw.CosineDistance

	s := &Store{
		graph:     g,
		path:      path,
		opts:      opts,
		nextLabel: nextLabel,
		capacity:  opts.InitialCapacity,
		deleted:   make(map[uint64]bool),
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := g.Import(bufio.NewReader(f)); err != nil {
		return nil, fmt.Errorf("%w: unreadable vector index %s: %v", types.ErrStoreCorrupt, path, err)
	}
	s.count = g.Len()
	for s.capacity <= s.count {
		s.capacity *= 2
	}
	return s, nil
}

// AllocateLabel reserves the next monotonic label. The caller records the
// label -> block mapping durably before adding the vector.
func (s *Store) AllocateLabel() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	label := s.nextLabel
	s.nextLabel++
	return label
}

// Add inserts a vector under a previously allocated label. The vector is
// normalized for cosine distance. Capacity doubles when the index is one
// short of full; an insert never fails for capacity reasons.
func (s *Store) Add(label uint64, vector []float32) error {
	if len(vector) != s.opts.Dims {
		return fmt.Errorf("vector has %d dims, index expects %d", len(vector), s.opts.Dims)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count >= s.capacity-1 {
		s.capacity *= 2
	}

	s.graph.Add(hnsw.MakeNode(label, normalize(vector)))
	s.count++
	s.dirty = true
	return nil
}

// Delete tombstones a label. The slot is never reused; the mapping row is
// removed by the caller's transaction.
func (s *Store) Delete(label uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted[label] {
		return
	}
	s.deleted[label] = true
	if s.graph.Delete(label) {
		s.count--
		s.dirty = true
	}
}

// Search returns up to k candidates ordered by ascending cosine distance.
// efSearch overrides the runtime search breadth when positive.
func (s *Store) Search(query []float32, k, efSearch int) []Hit {
	if k <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		return nil
	}
	if efSearch > 0 {
		s.graph.EfSearch = efSearch
	}

	q := normalize(query)
	nodes := s.graph.Search(q, k)
	hits := make([]Hit, 0, len(nodes))
	for _, n := range nodes {
		if s.deleted[n.Key] {
			continue
		}
		d := hnsw.CosineDistance(q, n.Value)
		if math.IsNaN(float64(d)) {
			d = 1
		}
		hits = append(hits, Hit{Label: n.Key, Distance: d})
	}
	return hits
}

// Persist flushes the graph to disk if it changed since the last flush.
// The write is atomic: temp file then rename.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := s.graph.Export(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("export index: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Count returns the number of live vectors.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Capacity returns the current growth watermark.
func (s *Store) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

// Dims returns the vector dimensionality baked into the index.
func (s *Store) Dims() int {
	return s.opts.Dims
}

// normalize returns a unit-length copy of v. The zero vector is returned
// unchanged; its distance to everything is treated as maximal.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
