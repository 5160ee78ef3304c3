package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// LocalProvider is a deterministic, dependency-free fallback embedder: it
// derives each vector coordinate from a seeded hash of the input text and
// the coordinate index. It has no teacher analog — quaero's embedding
// service is remote-only — and exists so the pipeline can run end to end
// (and its tests can assert exact-match reproducibility) without a live
// embedding API.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider returns a LocalProvider producing vectors of the given
// dimension.
func NewLocalProvider(dimension int) *LocalProvider {
	return &LocalProvider{dimension: dimension}
}

// Dimension returns the fixed embedding dimension this provider produces.
func (p *LocalProvider) Dimension() int { return p.dimension }

// Embed returns one deterministic unit-ish vector per input text. Equal
// inputs always yield bitwise-identical vectors; distinct inputs yield
// distinct vectors with overwhelming probability.
func (p *LocalProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedOne(t, p.dimension)
	}
	return out, nil
}

// embedOne hashes text concatenated with each coordinate index through
// SHA-256, maps the first 8 bytes of the digest to a float in [-1, 1], and
// L2-normalizes the result so every vector has bounded norm 1.
func embedOne(text string, dimension int) []float32 {
	v := make([]float32, dimension)
	var norm float64

	for i := 0; i < dimension; i++ {
		h := sha256.New()
		h.Write([]byte(text))
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], uint32(i))
		h.Write(idx[:])
		sum := h.Sum(nil)

		raw := binary.LittleEndian.Uint64(sum[:8])
		coord := (float64(raw)/float64(math.MaxUint64))*2 - 1
		v[i] = float32(coord)
		norm += coord * coord
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range v {
			v[i] = float32(float64(v[i]) / norm)
		}
	}
	return v
}
