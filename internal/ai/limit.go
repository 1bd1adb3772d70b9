package ai

import (
	"context"

	"golang.org/x/sync/semaphore"
)

type limited struct {
	Backend
	sem *semaphore.Weighted
}

// Limit bounds the number of in-flight calls to b across all goroutines.
// A non-positive n returns b unchanged.
func Limit(b Backend, n int) Backend {
	if n <= 0 {
		return b
	}
	return &limited{Backend: b, sem: semaphore.NewWeighted(int64(n))}
}

func (l *limited) Generate(ctx context.Context, prompt string, schema *Schema) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.sem.Release(1)
	return l.Backend.Generate(ctx, prompt, schema)
}

func (l *limited) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.Backend.EmbedDocuments(ctx, texts)
}

func (l *limited) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.Backend.EmbedQuery(ctx, text)
}
