package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/domain"
)

// CreateMission inserts a new mission with its goal/hypothesis embeddings.
func (s *Store) CreateMission(ctx context.Context, name, goal string, goalEmb domain.Embedding, hypothesis string, hypothesisEmb domain.Embedding, scope domain.MissionScope) (*domain.Mission, error) {
	var m domain.Mission
	var status string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO missions (name, goal, goal_embedding, hypothesis, hypothesis_embedding, scope_in, scope_out)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, name, goal, hypothesis, scope_in, scope_out, status, created_at, completed_at
	`, name, goal, toVector(goalEmb), hypothesis, toVector(hypothesisEmb), scope.InScope, scope.OutScope,
	).Scan(&m.ID, &m.Name, &m.Goal, &m.Hypothesis, &m.Scope.InScope, &m.Scope.OutScope, &status, &m.CreatedAt, &m.CompletedAt)
	if err != nil {
		return nil, apperr.InternalWithCorrelation(err)
	}
	m.Status = domain.MissionStatus(status)
	return &m, nil
}

// GetMission fetches a mission by id.
func (s *Store) GetMission(ctx context.Context, id uuid.UUID) (*domain.Mission, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, goal, hypothesis, scope_in, scope_out, status, created_at, completed_at
		FROM missions WHERE id = $1
	`, id)
	m, err := scanMission(row)
	if err != nil {
		return nil, s.wrapErr("mission.get", err)
	}
	return m, nil
}

// UpdateMissionStatus transitions a mission's status, validating the
// transition against domain.Mission.CanTransition before writing. Moving
// into a terminal status stamps completed_at.
func (s *Store) UpdateMissionStatus(ctx context.Context, id uuid.UUID, next domain.MissionStatus) (*domain.Mission, error) {
	m, err := s.GetMission(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.CanTransition(next) {
		return nil, apperr.New(apperr.Conflict, "mission %s cannot transition from %s to %s", id, m.Status, next)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE missions
		SET status = $2,
		    completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN now() ELSE completed_at END
		WHERE id = $1
		RETURNING id, name, goal, hypothesis, scope_in, scope_out, status, created_at, completed_at
	`, id, string(next))
	updated, err := scanMission(row)
	if err != nil {
		return nil, s.wrapErr("mission.update", err)
	}
	return updated, nil
}

// ListMissions returns missions ordered by creation time, newest first.
func (s *Store) ListMissions(ctx context.Context, status *string, limit int) ([]*domain.Mission, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, goal, hypothesis, scope_in, scope_out, status, created_at, completed_at
		FROM missions
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, derefOr(status, ""), limit)
	if err != nil {
		return nil, s.wrapErr("mission.list", err)
	}
	defer rows.Close()

	var out []*domain.Mission
	for rows.Next() {
		m, err := scanMissionRow(rows)
		if err != nil {
			return nil, s.wrapErr("mission.list", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AssociateTarget links a target to a mission (idempotent).
func (s *Store) AssociateTarget(ctx context.Context, missionID, targetID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mission_targets (mission_id, target_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, missionID, targetID)
	if err != nil {
		return s.wrapErr("mission.associate_target", err)
	}
	return nil
}

// DissociateTarget removes a target's link to a mission (idempotent).
func (s *Store) DissociateTarget(ctx context.Context, missionID, targetID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM mission_targets WHERE mission_id = $1 AND target_id = $2`, missionID, targetID)
	if err != nil {
		return s.wrapErr("mission.dissociate_target", err)
	}
	return nil
}

func toVector(e domain.Embedding) *pgvector.Vector {
	if len(e) == 0 {
		return nil
	}
	v := pgvector.NewVector(e)
	return &v
}

func scanMission(row pgx.Row) (*domain.Mission, error) {
	return scanMissionRow(row)
}

func scanMissionRow(row rowScanner) (*domain.Mission, error) {
	var m domain.Mission
	var status string
	if err := row.Scan(&m.ID, &m.Name, &m.Goal, &m.Hypothesis, &m.Scope.InScope, &m.Scope.OutScope, &status, &m.CreatedAt, &m.CompletedAt); err != nil {
		return nil, err
	}
	m.Status = domain.MissionStatus(status)
	return &m, nil
}
