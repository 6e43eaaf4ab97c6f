package embedder

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/syntheo/syntheo/internal/hasher"
)

// Truncation limits. Texts are capped before they reach the service using a
// chars/4 token approximation (distinct from the chunker's word-based
// estimator, which governs sizing only).
const (
	maxEmbedTokens = 2000
	charsPerToken  = 4
)

// Embedder produces fixed-dimension vectors for text. Exactly one provider
// is active per process; dimensionality is baked into persisted vectors.
type Embedder interface {
	// Initialize verifies the provider is reachable. It fails fast with
	// types.ErrEmbedderUnavailable when the service cannot be reached.
	Initialize(ctx context.Context) error

	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in order. A single text that fails to embed
	// yields a zero vector of the right dimensionality; only total provider
	// failure returns an error.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimensionality.
	Dimensions() int

	// ModelName returns the active model identifier.
	ModelName() string

	// Dispose releases provider resources.
	Dispose() error
}

// Cache is an LRU of embeddings keyed by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	c, err := lru.New[string, []float32](maxLen)
	if err != nil {
		c, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: c}
}

// Get returns a copy of the cached vector, if present.
func (c *Cache) Get(text string) ([]float32, bool) {
	v, ok := c.cache.Get(hasher.HashBytes([]byte(text)))
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a vector under the text's content hash.
func (c *Cache) Set(text string, v []float32) {
	c.cache.Add(hasher.HashBytes([]byte(text)), v)
}

// Len returns the cache population.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// Truncate caps text at the embed limit, preferring to cut at the last
// newline in the final fifth of the window so a fragment ends on a whole
// line.
func Truncate(text string) string {
	maxChars := maxEmbedTokens * charsPerToken
	if len(text) <= maxChars {
		return text
	}

	cut := text[:maxChars]
	if idx := strings.LastIndexByte(cut, '\n'); idx >= maxChars-maxChars/5 {
		cut = cut[:idx]
	}
	return cut
}

// ZeroVector returns the all-zero vector of the given dimensionality, the
// degraded stand-in for a text that failed to embed.
func ZeroVector(dims int) []float32 {
	return make([]float32, dims)
}
