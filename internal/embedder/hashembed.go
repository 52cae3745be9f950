package embedder

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/redwire/redwire/internal/domain"
)

// HashEmbedder is a deterministic, dependency-free stand-in for the real
// sentence-transformer model: it hashes overlapping token shingles into
// bucketed, L2-normalised float32 vectors, so similarity assertions stay
// reproducible in tests without a real model loaded.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder returns a HashEmbedder producing vectors of the given
// dimension (384 for the default D).
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = domain.EmbeddingDim
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Dim() int { return h.dim }

func (h *HashEmbedder) Embed(_ context.Context, text string) (domain.Embedding, error) {
	if isBlank(text) {
		return zero(h.dim), nil
	}
	vec := make([]float64, h.dim)
	tokens := tokenize(text)
	for _, tok := range tokens {
		sum := fnv.New64a()
		_, _ = sum.Write([]byte(tok))
		bucket := sum.Sum64() % uint64(h.dim)
		sign := 1.0
		if (sum.Sum64()>>1)%2 == 0 {
			sign = -1.0
		}
		vec[bucket] += sign
	}
	return normalize(vec), nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// tokenize splits on non-alphanumeric runs and lowercases, then emits both
// unigrams and bigrams so short, similar phrases land close together in
// cosine space.
func tokenize(text string) []string {
	var words []string
	var cur []byte
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		lr := toLowerASCII(r)
		if isAlnum(lr) {
			cur = append(cur, byte(lr))
		} else {
			flush()
		}
	}
	flush()

	tokens := make([]string, 0, len(words)*2)
	tokens = append(tokens, words...)
	for i := 0; i+1 < len(words); i++ {
		tokens = append(tokens, words[i]+"_"+words[i+1])
	}
	return tokens
}

func toLowerASCII(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

func normalize(vec []float64) domain.Embedding {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make(domain.Embedding, len(vec))
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}
