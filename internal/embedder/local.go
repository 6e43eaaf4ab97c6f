package embedder

import (
	"context"
	"crypto/sha256"
	"math"
)

// LocalEmbedder is the in-process provider: a deterministic hash-projection
// embedding. It carries no semantic signal but keeps the whole pipeline,
// including the ANN index, runnable offline and in tests.
type LocalEmbedder struct {
	dims  int
	cache *Cache
}

// NewLocal creates a local embedder with the given dimensionality.
func NewLocal(dims int, cache *Cache) *LocalEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &LocalEmbedder{dims: dims, cache: cache}
}

func (l *LocalEmbedder) Initialize(ctx context.Context) error {
	return nil
}

func (l *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	truncated := Truncate(text)
	if l.cache != nil {
		if v, ok := l.cache.Get(truncated); ok {
			return v, nil
		}
	}

	// Stretch the content hash across the vector by rehashing with a
	// counter, then normalize.
	v := make([]float32, l.dims)
	seed := []byte(truncated)
	var sum float64
	for i := 0; i < l.dims; {
		h := sha256.Sum256(append(seed, byte(i), byte(i>>8)))
		for _, b := range h {
			if i >= l.dims {
				break
			}
			x := float32(b)/127.5 - 1
			v[i] = x
			sum += float64(x) * float64(x)
			i++
		}
	}
	if sum > 0 {
		norm := float32(math.Sqrt(sum))
		for i := range v {
			v[i] /= norm
		}
	}

	if l.cache != nil {
		l.cache.Set(truncated, v)
	}
	return v, nil
}

func (l *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := l.Embed(ctx, text)
		if err != nil {
			v = ZeroVector(l.dims)
		}
		out[i] = v
	}
	return out, nil
}

func (l *LocalEmbedder) Dimensions() int {
	return l.dims
}

func (l *LocalEmbedder) ModelName() string {
	return "local-hash"
}

func (l *LocalEmbedder) Dispose() error {
	return nil
}
