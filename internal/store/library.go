package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/domain"
	"github.com/redwire/redwire/pkg/jsonutil"
)

// AddLibraryEntry inserts a curated technique into the library.
func (s *Store) AddLibraryEntry(ctx context.Context, title, content string, contentEmb domain.Embedding, category string, tags []string, metadata map[string]any) (*domain.TechniqueLibraryEntry, error) {
	metaJSON, err := jsonutil.Marshal(metadata)
	if err != nil {
		return nil, apperr.InternalWithCorrelation(err)
	}

	var e domain.TechniqueLibraryEntry
	err = s.pool.QueryRow(ctx, `
		INSERT INTO technique_library (title, content, content_embedding, category, tags, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, title, content, category, tags, metadata, usage_count, last_used_at, created_at
	`, title, content, toVector(contentEmb), category, tags, metaJSON,
	).Scan(&e.ID, &e.Title, &e.Content, &e.Category, &e.Tags, &metaJSON, &e.UsageCount, &e.LastUsedAt, &e.CreatedAt)
	if err != nil {
		return nil, apperr.InternalWithCorrelation(err)
	}
	_ = jsonutil.Unmarshal(metaJSON, &e.Metadata)
	return &e, nil
}

// SearchLibraryByText finds the k technique library entries closest by
// cosine similarity to queryEmb, filtering out results below
// minSimilarity. Also bumps usage_count/last_used_at on every returned
// entry, matching the "usage statistics maintained on retrieval" note in
// the data model.
func (s *Store) SearchLibraryByText(ctx context.Context, queryEmb domain.Embedding, k int, minSimilarity float64, category string) ([]ScoredLibraryEntry, error) {
	if k <= 0 {
		k = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, content, category, tags, metadata, usage_count, last_used_at, created_at,
		       1 - (content_embedding <=> $1) AS score
		FROM technique_library
		WHERE content_embedding IS NOT NULL
		  AND 1 - (content_embedding <=> $1) >= $2
		  AND ($4 = '' OR category = $4)
		ORDER BY content_embedding <=> $1
		LIMIT $3
	`, toVector(queryEmb), minSimilarity, k, category)
	if err != nil {
		return nil, s.wrapErr("library.search_by_text", err)
	}
	defer rows.Close()

	var out []ScoredLibraryEntry
	var ids []uuid.UUID
	for rows.Next() {
		var e domain.TechniqueLibraryEntry
		var metaJSON []byte
		var score float64
		if err := rows.Scan(&e.ID, &e.Title, &e.Content, &e.Category, &e.Tags, &metaJSON, &e.UsageCount, &e.LastUsedAt, &e.CreatedAt, &score); err != nil {
			return nil, s.wrapErr("library.search_by_text", err)
		}
		_ = jsonutil.Unmarshal(metaJSON, &e.Metadata)
		out = append(out, ScoredLibraryEntry{Entry: &e, Score: score})
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrapErr("library.search_by_text", err)
	}

	if len(ids) > 0 {
		if _, err := s.pool.Exec(ctx, `
			UPDATE technique_library SET usage_count = usage_count + 1, last_used_at = now()
			WHERE id = ANY($1)
		`, ids); err != nil {
			return nil, s.wrapErr("library.search_by_text", err)
		}
	}

	return out, nil
}

// ScoredLibraryEntry pairs a technique library entry with its similarity
// score against a query vector.
type ScoredLibraryEntry struct {
	Entry *domain.TechniqueLibraryEntry
	Score float64
}

// LibraryStats reports aggregate counts over the technique library.
type LibraryStats struct {
	TotalEntries int
	TotalUsage   int
	Categories   map[string]int
}

// GetLibraryStats computes totals and a per-category breakdown.
func (s *Store) GetLibraryStats(ctx context.Context) (*LibraryStats, error) {
	stats := &LibraryStats{Categories: map[string]int{}}
	if err := s.pool.QueryRow(ctx, `SELECT count(*), coalesce(sum(usage_count), 0) FROM technique_library`).
		Scan(&stats.TotalEntries, &stats.TotalUsage); err != nil {
		return nil, s.wrapErr("library.stats", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT category, count(*) FROM technique_library GROUP BY category`)
	if err != nil {
		return nil, s.wrapErr("library.stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, s.wrapErr("library.stats", err)
		}
		stats.Categories[cat] = n
	}
	return stats, rows.Err()
}
