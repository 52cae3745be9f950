package embedder

import (
	"context"
	"testing"
)

func TestEmptyInputYieldsZeroVector(t *testing.T) {
	e := NewHashEmbedder(384)
	vec, err := e.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vec) != 384 {
		t.Fatalf("len(vec) = %d, want 384", len(vec))
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("vec[%d] = %v, want 0 for blank input", i, v)
		}
	}
}

func TestIdenticalTextProducesIdenticalVector(t *testing.T) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "Unicode SQLi via %u2019")
	b, _ := e.Embed(ctx, "Unicode SQLi via %u2019")
	if CosineSimilarity(a, b) < 0.999 {
		t.Fatalf("identical text should embed identically, got similarity %v", CosineSimilarity(a, b))
	}
}

func TestSimilarTextScoresHigh(t *testing.T) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "Unicode SQLi via %u2019")
	b, _ := e.Embed(ctx, "Unicode SQLi via %u2019 (same)")
	sim := CosineSimilarity(a, b)
	if sim < 0.5 {
		t.Fatalf("near-duplicate text should score reasonably high, got %v", sim)
	}
}

func TestDissimilarTextScoresLower(t *testing.T) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "baseline GET request returned 200 OK")
	b, _ := e.Embed(ctx, "unrelated completely different technique about XML entities")
	sim := CosineSimilarity(a, b)
	same, _ := e.Embed(ctx, "baseline GET request returned 200 OK")
	sameSim := CosineSimilarity(a, same)
	if sim >= sameSim {
		t.Fatalf("dissimilar text (%v) should score lower than identical text (%v)", sim, sameSim)
	}
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	texts := []string{"alpha", "beta", "gamma"}
	batch, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error: %v", err)
	}
	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		if CosineSimilarity(batch[i], single) < 0.999 {
			t.Fatalf("EmbedBatch()[%d] does not match Embed(%q)", i, text)
		}
	}
}
