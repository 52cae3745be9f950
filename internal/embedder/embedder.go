// Package embedder wraps a text-to-vector model behind a narrow interface
// so the rest of the gateway — and its tests — never depend on a concrete
// model.
package embedder

import (
	"context"
	"strings"

	"github.com/redwire/redwire/internal/domain"
)

// Embedder produces fixed-dimension vectors from text. Implementations
// must return the zero vector for empty or whitespace-only input and must
// always return vectors of exactly Dim() length.
type Embedder interface {
	// Embed returns the embedding for a single piece of text.
	Embed(ctx context.Context, text string) (domain.Embedding, error)
	// EmbedBatch returns one embedding per input text, in the same order.
	EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error)
	// Dim returns the fixed vector dimension this embedder produces.
	Dim() int
}

// zero returns a Dim()-length all-zero vector.
func zero(dim int) domain.Embedding {
	return make(domain.Embedding, dim)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
