package domain

import "context"

// VectorEncoder turns question or fragment text into embedding vectors.
// Encode preserves input order: texts[i] maps to the i-th vector.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}
