package ai

import (
	"context"
	"fmt"
	"math"
)

// ToCanonical fits an embedding to Dimensions and L2-normalizes it.
// Longer vectors are truncated, which is only meaningful for Matryoshka-trained
// models; shorter vectors are rejected.
func ToCanonical(vec []float32) ([]float32, error) {
	if len(vec) < Dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, need at least %d", len(vec), Dimensions)
	}

	out := make([]float32, Dimensions)
	copy(out, vec[:Dimensions])

	var sum float64
	for _, v := range out {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return nil, fmt.Errorf("embedding is a zero vector")
	}
	for i, v := range out {
		out[i] = float32(float64(v) / norm)
	}

	return out, nil
}

type canonical struct {
	Backend
}

// Canonical wraps b so every embedding it returns is in canonical form.
func Canonical(b Backend) Backend {
	if _, ok := b.(*canonical); ok {
		return b
	}
	return &canonical{Backend: b}
}

func (c *canonical) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := c.Backend.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%s returned %d embeddings for %d texts", c.Name(), len(vectors), len(texts))
	}

	out := make([][]float32, len(vectors))
	for i, vec := range vectors {
		fitted, err := ToCanonical(vec)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out[i] = fitted
	}
	return out, nil
}

func (c *canonical) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.Backend.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return ToCanonical(vec)
}
