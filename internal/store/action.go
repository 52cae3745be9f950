package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/domain"
)

// AppendAction inserts an immutable MissionAction record.
func (s *Store) AppendAction(ctx context.Context, missionID uuid.UUID, technique string, techniqueEmb domain.Embedding, hypothesis, result string, resultEmb domain.Embedding, success domain.ActionResult, learning string) (*domain.MissionAction, error) {
	var a domain.MissionAction
	var successStr string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO mission_actions (mission_id, technique, technique_embedding, hypothesis, result, result_embedding, success, learning)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, mission_id, technique, hypothesis, result, success, learning, created_at
	`, missionID, technique, toVector(techniqueEmb), hypothesis, result, toVector(resultEmb), string(success), learning,
	).Scan(&a.ID, &a.MissionID, &a.Technique, &a.Hypothesis, &a.Result, &successStr, &a.Learning, &a.CreatedAt)
	if err != nil {
		return nil, apperr.InternalWithCorrelation(err)
	}
	a.Success = domain.ActionResult(successStr)
	return &a, nil
}

// LatestAction returns a mission's most recently created action, ordered
// by created_at with ties broken by id, or nil if the mission has none.
func (s *Store) LatestAction(ctx context.Context, missionID uuid.UUID) (*domain.MissionAction, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, mission_id, technique, hypothesis, result, success, learning, created_at
		FROM mission_actions
		WHERE mission_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, missionID)
	a, err := scanAction(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrapErr("action.latest", err)
	}
	return a, nil
}

// SearchActions filters actions by success, technique substring, and the
// success rate of the mission they belong to, used by search_techniques.
// minSuccessRate of 0 disables the mission success-rate filter.
func (s *Store) SearchActions(ctx context.Context, successOnly *bool, techniqueSubstring *string, minSuccessRate float64, limit int) ([]*domain.MissionAction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.mission_id, a.technique, a.hypothesis, a.result, a.success, a.learning, a.created_at
		FROM mission_actions a
		WHERE ($1::bool IS NULL OR a.success = CASE WHEN $1 THEN 'true' ELSE 'false' END)
		  AND ($2 = '' OR a.technique ILIKE '%' || $2 || '%')
		  AND (
		    $3 <= 0 OR (
		      SELECT avg(CASE WHEN m2.success = 'true' THEN 1.0 ELSE 0.0 END)
		      FROM mission_actions m2 WHERE m2.mission_id = a.mission_id
		    ) >= $3
		  )
		ORDER BY a.created_at DESC
		LIMIT $4
	`, successOnly, derefOr(techniqueSubstring, ""), minSuccessRate, limit)
	if err != nil {
		return nil, s.wrapErr("action.search", err)
	}
	defer rows.Close()

	var out []*domain.MissionAction
	for rows.Next() {
		a, err := scanActionRow(rows)
		if err != nil {
			return nil, s.wrapErr("action.search", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TechniqueStats aggregates usage count, success rate, and last-used time
// for a given technique string (exact match).
type TechniqueStats struct {
	UsageCount  int
	SuccessRate float64
	LastUsed    *domain.MissionAction
}

// GetTechniqueStats computes aggregate stats for a technique across all
// missions.
func (s *Store) GetTechniqueStats(ctx context.Context, technique string) (*TechniqueStats, error) {
	var stats TechniqueStats
	var successCount int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE success = 'true')
		FROM mission_actions WHERE technique = $1
	`, technique).Scan(&stats.UsageCount, &successCount)
	if err != nil {
		return nil, s.wrapErr("action.technique_stats", err)
	}
	if stats.UsageCount > 0 {
		stats.SuccessRate = float64(successCount) / float64(stats.UsageCount)
	}

	row := s.pool.QueryRow(ctx, `
		SELECT id, mission_id, technique, hypothesis, result, success, learning, created_at
		FROM mission_actions WHERE technique = $1
		ORDER BY created_at DESC LIMIT 1
	`, technique)
	last, err := scanAction(row)
	if err == nil {
		stats.LastUsed = last
	} else if err != pgx.ErrNoRows {
		return nil, s.wrapErr("action.technique_stats", err)
	}

	return &stats, nil
}

func scanAction(row pgx.Row) (*domain.MissionAction, error) {
	return scanActionRow(row)
}

func scanActionRow(row rowScanner) (*domain.MissionAction, error) {
	var a domain.MissionAction
	var success string
	if err := row.Scan(&a.ID, &a.MissionID, &a.Technique, &a.Hypothesis, &a.Result, &success, &a.Learning, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Success = domain.ActionResult(success)
	return &a, nil
}
