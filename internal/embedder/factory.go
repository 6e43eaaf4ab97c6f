package embedder

import (
	"fmt"

	"github.com/syntheo/syntheo/internal/config"
)

// New builds the embedder selected by configuration. Exactly one provider
// is active per process.
func New(cfg *config.Config) (Embedder, error) {
	cache := NewCache(cfg.Performance.CacheSize)

	switch cfg.Embedder.Provider {
	case "http", "ollama", "":
		return NewHTTP(cfg.Embedder.BaseURL, cfg.Embedder.Model, cfg.Embedder.Dimensions, cache), nil
	case "local":
		return NewLocal(cfg.Embedder.Dimensions, cache), nil
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Embedder.Provider)
	}
}
