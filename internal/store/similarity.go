package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/redwire/redwire/internal/domain"
)

// ScoredAction pairs a mission action with its similarity score against a
// query vector.
type ScoredAction struct {
	Action *domain.MissionAction
	Score  float64
}

// FindSimilarActions runs a cosine-distance k-NN search over
// mission_actions.result_embedding, optionally scoped to one mission, and
// returns results sorted by score descending.
func (s *Store) FindSimilarActions(ctx context.Context, queryVec domain.Embedding, missionID *uuid.UUID, k int, minSimilarity float64) ([]ScoredAction, error) {
	if k <= 0 {
		k = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, mission_id, technique, hypothesis, result, success, learning, created_at,
		       1 - (result_embedding <=> $1) AS score
		FROM mission_actions
		WHERE result_embedding IS NOT NULL
		  AND ($2::uuid IS NULL OR mission_id = $2)
		  AND 1 - (result_embedding <=> $1) >= $3
		ORDER BY result_embedding <=> $1
		LIMIT $4
	`, toVector(queryVec), missionID, minSimilarity, k)
	if err != nil {
		return nil, s.wrapErr("similarity.find_similar_actions", err)
	}
	defer rows.Close()

	var out []ScoredAction
	for rows.Next() {
		var a domain.MissionAction
		var success string
		var score float64
		if err := rows.Scan(&a.ID, &a.MissionID, &a.Technique, &a.Hypothesis, &a.Result, &success, &a.Learning, &a.CreatedAt, &score); err != nil {
			return nil, s.wrapErr("similarity.find_similar_actions", err)
		}
		a.Success = domain.ActionResult(success)
		out = append(out, ScoredAction{Action: &a, Score: score})
	}
	return out, rows.Err()
}
