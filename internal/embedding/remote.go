// Package embedding implements the Embedding Provider: a remote HTTP
// batched embedder with exponential backoff, and a deterministic local
// fallback. Adapted from ternarybob-quaero's
// internal/services/embeddings/embedding_service.go, which issued one
// unbatched Ollama request per document with no retry policy; this
// version batches, retries with jitter, honors Retry-After, and adds the
// rate-limiting and fail-fast behavior the spec requires that the
// teacher's implementation never had.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/sourcevault/ragvault/internal/rerr"
)

const (
	backoffBase   = 250 * time.Millisecond
	backoffFactor = 2.0
	backoffJitter = 0.20
	maxAttempts   = 5
)

// RemoteProvider calls a remote embedding HTTP API in batches, retrying
// transient failures with exponential backoff and jitter.
type RemoteProvider struct {
	apiURL    string
	apiKey    string
	model     string
	dimension int
	batchSize int
	client    *http.Client
	limiter   *rate.Limiter
	logger    arbor.ILogger
}

// NewRemoteProvider builds a RemoteProvider. limiter may be nil to disable
// client-side rate limiting ahead of the retry/backoff layer.
func NewRemoteProvider(apiURL, apiKey, model string, dimension, batchSize int, limiter *rate.Limiter, logger arbor.ILogger) *RemoteProvider {
	if batchSize <= 0 {
		batchSize = 16
	}
	return &RemoteProvider{
		apiURL:    apiURL,
		apiKey:    apiKey,
		model:     model,
		dimension: dimension,
		batchSize: batchSize,
		client:    &http.Client{Timeout: 60 * time.Second},
		limiter:   limiter,
		logger:    logger,
	}
}

// Dimension returns the fixed embedding dimension this provider produces.
func (p *RemoteProvider) Dimension() int { return p.dimension }

// Embed batches texts into groups of at most batchSize and embeds each
// batch with retry.
func (p *RemoteProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := p.embedBatchWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		result = append(result, vecs...)
	}
	return result, nil
}

func (p *RemoteProvider) embedBatchWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, rerr.New(rerr.Cancelled, "embed_rate_limit", err)
			}
		}

		vecs, retryAfter, status, err := p.embedBatch(ctx, batch)
		if err == nil {
			return vecs, nil
		}
		lastErr = err

		if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			return nil, rerr.New(rerr.EmbeddingRejected, "embed", err)
		}

		if attempt == maxAttempts {
			break
		}

		wait := retryAfter
		if wait <= 0 {
			wait = backoffDelay(attempt)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, rerr.New(rerr.Cancelled, "embed", ctx.Err())
		case <-timer.C:
		}
	}
	return nil, rerr.New(rerr.EmbeddingUnavailable, "embed", lastErr)
}

// backoffDelay returns base * factor^(attempt-1), jittered by +/-20%.
func backoffDelay(attempt int) time.Duration {
	d := float64(backoffBase) * math.Pow(backoffFactor, float64(attempt-1))
	jitter := 1 + (rand.Float64()*2-1)*backoffJitter
	return time.Duration(d * jitter)
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// embedBatch performs one HTTP call. retryAfter is non-zero only when the
// response carried a Retry-After header (status 429).
func (p *RemoteProvider) embedBatch(ctx context.Context, batch []string) (vecs [][]float32, retryAfter time.Duration, status int, err error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Input: batch})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return nil, retryAfter, resp.StatusCode, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(data))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, resp.StatusCode, fmt.Errorf("decode embed response: %w", err)
	}
	if len(out.Embeddings) != len(batch) {
		return nil, 0, resp.StatusCode, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(out.Embeddings), len(batch))
	}
	for _, v := range out.Embeddings {
		if len(v) != p.dimension {
			return nil, 0, resp.StatusCode, fmt.Errorf("embedding API returned dimension %d, expected %d", len(v), p.dimension)
		}
	}
	return out.Embeddings, 0, resp.StatusCode, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
