package vecstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Dims == 0 {
		opts.Dims = 4
	}
	s, err := Open(filepath.Join(t.TempDir(), "vectors.hnsw"), opts, 0)
	require.NoError(t, err)
	return s
}

func TestAllocateLabel_Monotonic(t *testing.T) {
	s := openTestStore(t, Options{})
	assert.Equal(t, uint64(0), s.AllocateLabel())
	assert.Equal(t, uint64(1), s.AllocateLabel())
	assert.Equal(t, uint64(2), s.AllocateLabel())
}

func TestOpen_RecoversLabelCounter(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "vectors.hnsw"), Options{Dims: 4}, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), s.AllocateLabel())
}

func TestAddAndSearch(t *testing.T) {
	s := openTestStore(t, Options{})

	require.NoError(t, s.Add(s.AllocateLabel(), []float32{1, 0, 0, 0}))
	require.NoError(t, s.Add(s.AllocateLabel(), []float32{0, 1, 0, 0}))
	require.NoError(t, s.Add(s.AllocateLabel(), []float32{0.9, 0.1, 0, 0}))

	hits := s.Search([]float32{1, 0, 0, 0}, 3, 100)
	require.NotEmpty(t, hits)

	// Nearest is the identical vector; distances ascend.
	assert.Equal(t, uint64(0), hits[0].Label)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}
	assert.InDelta(t, 1.0, hits[0].Score(), 1e-5)
}

func TestAdd_DimensionMismatch(t *testing.T) {
	s := openTestStore(t, Options{})
	assert.Error(t, s.Add(s.AllocateLabel(), []float32{1, 2}))
}

func TestDelete_TombstonesLabel(t *testing.T) {
	s := openTestStore(t, Options{})

	l0 := s.AllocateLabel()
	require.NoError(t, s.Add(l0, []float32{1, 0, 0, 0}))
	require.NoError(t, s.Add(s.AllocateLabel(), []float32{0, 1, 0, 0}))

	s.Delete(l0)
	assert.Equal(t, 1, s.Count())

	hits := s.Search([]float32{1, 0, 0, 0}, 5, 100)
	for _, h := range hits {
		assert.NotEqual(t, l0, h.Label)
	}
}

func TestCapacityDoubling(t *testing.T) {
	s := openTestStore(t, Options{InitialCapacity: 4})

	// Inserting past initial_capacity succeeds; the watermark doubles.
	for i := 0; i < 6; i++ {
		require.NoError(t, s.Add(s.AllocateLabel(), []float32{float32(i + 1), 1, 0, 0}))
	}
	assert.Equal(t, 6, s.Count())
	assert.GreaterOrEqual(t, s.Capacity(), 8)
}

func TestPersistAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	s, err := Open(path, Options{Dims: 4}, 0)
	require.NoError(t, err)
	require.NoError(t, s.Add(s.AllocateLabel(), []float32{1, 0, 0, 0}))
	require.NoError(t, s.Add(s.AllocateLabel(), []float32{0, 1, 0, 0}))
	require.NoError(t, s.Persist())

	reopened, err := Open(path, Options{Dims: 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Count())

	hits := reopened.Search([]float32{0, 1, 0, 0}, 1, 100)
	require.Len(t, hits, 1)
	assert.Equal(t, uint64(1), hits[0].Label)
}

func TestPersist_NoopWhenClean(t *testing.T) {
	s := openTestStore(t, Options{})
	require.NoError(t, s.Persist())

	// Nothing was written for an untouched store.
	_, err := os.Stat(s.path)
	assert.True(t, os.IsNotExist(err), "clean store must not write an index file")

	_, err = Open(s.path, Options{Dims: 4}, 0)
	require.NoError(t, err)
}

func TestZeroVector_LowScore(t *testing.T) {
	s := openTestStore(t, Options{})

	require.NoError(t, s.Add(s.AllocateLabel(), []float32{1, 0, 0, 0}))
	require.NoError(t, s.Add(s.AllocateLabel(), make([]float32, 4)))

	hits := s.Search([]float32{1, 0, 0, 0}, 2, 100)
	require.NotEmpty(t, hits)
	for _, h := range hits {
		if h.Label == 1 {
			assert.Equal(t, 0.0, h.Score())
		}
	}
}
