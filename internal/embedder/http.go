package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/syntheo/syntheo/pkg/types"
)

// HTTPEmbedder calls a remote embedding service speaking the Ollama-style
// /api/embed protocol.
type HTTPEmbedder struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
	cache   *Cache
}

// NewHTTP creates an embedder targeting the given service.
func NewHTTP(baseURL, model string, dims int, cache *Cache) *HTTPEmbedder {
	return &HTTPEmbedder{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		cache: cache,
	}
}

// Initialize probes the service with a one-word embed so startup fails fast
// when the service is down or the model is missing.
func (e *HTTPEmbedder) Initialize(ctx context.Context) error {
	vecs, err := e.callAPI(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrEmbedderUnavailable, err)
	}
	if len(vecs) == 1 && len(vecs[0]) > 0 {
		e.dims = len(vecs[0])
	}
	return nil
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in a single service call. Per-text anomalies
// (missing or wrong-dimension vectors) degrade to zero vectors; only a
// service-level failure after retries surfaces as an error.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	misses := make([]int, 0, len(texts))
	request := make([]string, 0, len(texts))
	for i, text := range texts {
		truncated := Truncate(text)
		if e.cache != nil {
			if v, ok := e.cache.Get(truncated); ok {
				out[i] = v
				continue
			}
		}
		misses = append(misses, i)
		request = append(request, truncated)
	}
	if len(misses) == 0 {
		return out, nil
	}

	vecs, err := retryWithBackoff(ctx, func() ([][]float32, error) {
		return e.callAPI(ctx, request)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEmbedderUnavailable, err)
	}

	for j, idx := range misses {
		var v []float32
		if j < len(vecs) {
			v = vecs[j]
		}
		if len(v) != e.dims {
			v = ZeroVector(e.dims)
		} else if e.cache != nil {
			e.cache.Set(request[j], v)
		}
		out[idx] = v
	}
	return out, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *HTTPEmbedder) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embed service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	return result.Embeddings, nil
}

func (e *HTTPEmbedder) Dimensions() int {
	return e.dims
}

func (e *HTTPEmbedder) ModelName() string {
	return e.model
}

func (e *HTTPEmbedder) Dispose() error {
	e.client.CloseIdleConnections()
	return nil
}
