package ai

import (
	"context"
	"errors"
	"fmt"
)

// Dimensions is the canonical embedding size stored for every chunk.
const Dimensions = 768

// ErrUnsupportedCapability is returned when a backend is asked for something
// it cannot do, such as schema-constrained generation.
var ErrUnsupportedCapability = errors.New("unsupported ai capability")

// Backend is the capability contract the pipeline needs from an LLM provider.
// Embeddings from EmbedDocuments and EmbedQuery must share one vector space.
type Backend interface {
	Name() string
	Model() string
	// Generate returns free text, or JSON conforming to schema when schema is not nil.
	Generate(ctx context.Context, prompt string, schema *Schema) (string, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Unsupported wraps ErrUnsupportedCapability with the backend and capability names.
func Unsupported(backend, capability string) error {
	return fmt.Errorf("%s: %s: %w", backend, capability, ErrUnsupportedCapability)
}

// SchemaValidationError reports a response that does not match the requested schema.
type SchemaValidationError struct {
	Schema string
	Path   string
	Reason string
	Raw    string
}

func (e *SchemaValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s response failed schema validation: %s", e.Schema, e.Reason)
	}
	return fmt.Sprintf("%s response failed schema validation at %s: %s", e.Schema, e.Path, e.Reason)
}
