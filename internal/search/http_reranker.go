package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
)

// HTTP reranker defaults
const (
	DefaultRerankerEndpoint    = "http://localhost:9659"
	DefaultRerankerModel       = "cross-encoder/ms-marco-MiniLM-L-6-v2"
	DefaultRerankerTimeout     = 30 * time.Second
	rerankerHealthCheckTimeout = 10 * time.Second
)

// HTTPRerankerConfig holds configuration for HTTPReranker.
type HTTPRerankerConfig struct {
	// Endpoint is the rerank server URL (default: http://localhost:9659)
	Endpoint string

	// Model is sent with every request (default: cross-encoder/ms-marco-MiniLM-L-6-v2)
	Model string

	// Timeout applies to each /rerank request (default: 30s)
	Timeout time.Duration

	// SkipHealthCheck skips the /health probe during construction (for testing)
	SkipHealthCheck bool
}

// DefaultHTTPRerankerConfig returns default HTTP reranker configuration.
func DefaultHTTPRerankerConfig() HTTPRerankerConfig {
	return HTTPRerankerConfig{
		Endpoint: DefaultRerankerEndpoint,
		Model:    DefaultRerankerModel,
		Timeout:  DefaultRerankerTimeout,
	}
}

// HTTPReranker is a client for a cross-encoder server exposing
// GET /health and POST /rerank.
type HTTPReranker struct {
	client *http.Client
	config HTTPRerankerConfig
	mu     sync.RWMutex
	closed bool
}

var _ Reranker = (*HTTPReranker)(nil)

// NewHTTPReranker creates a client and verifies the server is healthy.
func NewHTTPReranker(ctx context.Context, cfg HTTPRerankerConfig) (*HTTPReranker, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultRerankerEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRerankerModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRerankerTimeout
	}

	r := &HTTPReranker{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		config: cfg,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, rerankerHealthCheckTimeout)
		defer cancel()

		if err := r.healthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("rerank server health check failed: %w", err)
		}
	}

	slog.Debug("http_reranker_created",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("model", cfg.Model),
		slog.Duration("timeout", cfg.Timeout))

	return r, nil
}

func (r *HTTPReranker) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.config.Endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to rerank server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("rerank server unhealthy (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
	Model            string  `json:"model"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

// Score implements Reranker. The server may return results in any order;
// they are mapped back to input order by index and every input must be
// scored exactly once.
func (r *HTTPReranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	start := time.Now()

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, amerrors.New(amerrors.ErrCodeRerankFailed, "reranker is closed", nil)
	}

	if len(passages) == 0 {
		return []float64{}, nil
	}

	payload, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: passages,
		Model:     r.config.Model,
	})
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeRerankFailed, "failed to marshal rerank request", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, r.config.Endpoint+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeRerankFailed, "failed to create rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeRerankFailed, "rerank request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, amerrors.New(amerrors.ErrCodeRerankFailed,
			fmt.Sprintf("rerank failed (status %d): %s", resp.StatusCode, string(body)), nil)
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeRerankFailed, "failed to decode rerank response", err)
	}

	scores := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, res := range result.Results {
		if res.Index < 0 || res.Index >= len(passages) || seen[res.Index] {
			return nil, amerrors.New(amerrors.ErrCodeRerankFailed,
				fmt.Sprintf("rerank response has invalid or duplicate index %d", res.Index), nil)
		}
		seen[res.Index] = true
		scores[res.Index] = res.Score
	}
	if len(result.Results) != len(passages) {
		return nil, amerrors.New(amerrors.ErrCodeRerankFailed,
			fmt.Sprintf("rerank response scored %d of %d passages", len(result.Results), len(passages)), nil)
	}

	slog.Debug("reranker_http_timing",
		slog.Int("doc_count", len(passages)),
		slog.Int("payload_bytes", len(payload)),
		slog.Duration("total", time.Since(start)),
		slog.Float64("server_time_ms", result.ProcessingTimeMs))

	return scores, nil
}

// ModelName implements Reranker.
func (r *HTTPReranker) ModelName() string { return r.config.Model }

// Close releases idle connections. It is safe to call more than once.
func (r *HTTPReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if transport, ok := r.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
