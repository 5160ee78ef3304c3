package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestRemoteProvider_EmbedSuccess(t *testing.T) {
	t.Log("=== Testing Remote Embedding - Success ===")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		vecs := make([][]float32, len(req.Input))
		for i := range vecs {
			vecs[i] = []float32{0.1, 0.2, 0.3}
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: vecs})
	}))
	defer srv.Close()

	p := NewRemoteProvider(srv.URL, "", "test-model", 3, 16, nil, arbor.NewLogger())
	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vecs[0])
}

func TestRemoteProvider_BatchesRequests(t *testing.T) {
	var batchSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		batchSizes = append(batchSizes, len(req.Input))
		vecs := make([][]float32, len(req.Input))
		for i := range vecs {
			vecs[i] = []float32{1}
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: vecs})
	}))
	defer srv.Close()

	p := NewRemoteProvider(srv.URL, "", "test-model", 1, 2, nil, arbor.NewLogger())
	texts := []string{"a", "b", "c", "d", "e"}
	vecs, err := p.Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, []int{2, 2, 1}, batchSizes, "5 texts at batch size 2 should split into 2,2,1")
}

func TestRemoteProvider_FailsFastOn4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewRemoteProvider(srv.URL, "", "test-model", 3, 16, nil, arbor.NewLogger())
	_, err := p.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a non-429 4xx must not be retried")
}

func TestRemoteProvider_RetriesOn500ThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{9}}})
	}))
	defer srv.Close()

	p := NewRemoteProvider(srv.URL, "", "test-model", 1, 16, nil, arbor.NewLogger())
	vecs, err := p.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []float32{9}, vecs[0])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRemoteProvider_HonorsRetryAfter(t *testing.T) {
	var calls int32
	start := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	p := NewRemoteProvider(srv.URL, "", "test-model", 1, 16, nil, arbor.NewLogger())
	_, err := p.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestBackoffDelay_WithinJitterBounds(t *testing.T) {
	d1 := backoffDelay(1)
	assert.InDelta(t, float64(backoffBase), float64(d1), float64(backoffBase)*backoffJitter+1)

	d3 := backoffDelay(3)
	expected := float64(backoffBase) * backoffFactor * backoffFactor
	assert.InDelta(t, expected, float64(d3), expected*backoffJitter+1)
}
