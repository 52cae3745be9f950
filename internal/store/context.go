package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/domain"
)

// AppendContext adds a new version to a target's context chain. The
// current version row is locked FOR UPDATE inside the transaction so
// concurrent appends for the same target serialise; a unique-constraint
// violation on (target_id, version) — which can still occur under a
// concurrent retry racing this one — is surfaced as a conflict rather than
// an internal error, so the caller knows to retry.
func (s *Store) AppendContext(ctx context.Context, targetID uuid.UUID, userContext, agentContext string, createdBy domain.ContextCreator, changeSummary, changeType string) (*domain.TargetContext, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.InternalWithCorrelation(err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var currentContextID *uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT current_context_id FROM targets WHERE id = $1 FOR UPDATE`, targetID).Scan(&currentContextID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "target not found: %s", targetID)
		}
		return nil, apperr.InternalWithCorrelation(err)
	}

	var nextVersion int
	var parentVersionID *uuid.UUID
	if currentContextID == nil {
		nextVersion = 1
	} else {
		var currentVersion int
		if err := tx.QueryRow(ctx, `
			SELECT version FROM target_contexts WHERE id = $1 FOR UPDATE
		`, *currentContextID).Scan(&currentVersion); err != nil {
			return nil, apperr.InternalWithCorrelation(err)
		}
		nextVersion = currentVersion + 1
		parentVersionID = currentContextID
	}

	var tc domain.TargetContext
	err = tx.QueryRow(ctx, `
		INSERT INTO target_contexts
			(target_id, version, parent_version_id, user_context, agent_context, created_by, change_summary, change_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, target_id, version, parent_version_id, user_context, agent_context, created_by, change_summary, change_type, created_at
	`, targetID, nextVersion, parentVersionID, userContext, agentContext, string(createdBy), changeSummary, changeType,
	).Scan(&tc.ID, &tc.TargetID, &tc.Version, &tc.ParentVersionID, &tc.UserContext, &tc.AgentContext,
		(*string)(&tc.CreatedBy), &tc.ChangeSummary, &tc.ChangeType, &tc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.New(apperr.Conflict, "concurrent context append for target %s, retry", targetID)
		}
		return nil, apperr.InternalWithCorrelation(err)
	}

	if _, err := tx.Exec(ctx, `UPDATE targets SET current_context_id = $1, updated_at = now() WHERE id = $2`, tc.ID, targetID); err != nil {
		return nil, apperr.InternalWithCorrelation(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.InternalWithCorrelation(err)
	}
	return &tc, nil
}

// CurrentContext returns a target's latest context version, if any.
func (s *Store) CurrentContext(ctx context.Context, targetID uuid.UUID) (*domain.TargetContext, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT tc.id, tc.target_id, tc.version, tc.parent_version_id, tc.user_context, tc.agent_context,
		       tc.created_by, tc.change_summary, tc.change_type, tc.created_at
		FROM target_contexts tc
		JOIN targets t ON t.current_context_id = tc.id
		WHERE t.id = $1
	`, targetID)
	tc, err := scanContext(row)
	if err != nil {
		return nil, s.wrapErr("context.current", err)
	}
	return tc, nil
}

// ContextHistory returns up to limit versions for a target, newest first.
func (s *Store) ContextHistory(ctx context.Context, targetID uuid.UUID, limit int) ([]*domain.TargetContext, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, target_id, version, parent_version_id, user_context, agent_context,
		       created_by, change_summary, change_type, created_at
		FROM target_contexts
		WHERE target_id = $1
		ORDER BY version DESC
		LIMIT $2
	`, targetID, limit)
	if err != nil {
		return nil, s.wrapErr("context.history", err)
	}
	defer rows.Close()

	var out []*domain.TargetContext
	for rows.Next() {
		tc, err := scanContextRow(rows)
		if err != nil {
			return nil, s.wrapErr("context.history", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// ContextByID fetches a single context version by id.
func (s *Store) ContextByID(ctx context.Context, id uuid.UUID) (*domain.TargetContext, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, target_id, version, parent_version_id, user_context, agent_context,
		       created_by, change_summary, change_type, created_at
		FROM target_contexts WHERE id = $1
	`, id)
	tc, err := scanContext(row)
	if err != nil {
		return nil, s.wrapErr("context.get", err)
	}
	return tc, nil
}

// ContextDiff returns line-oriented additions/removals between two context
// versions' user_context and agent_context fields.
func (s *Store) ContextDiff(ctx context.Context, aID, bID uuid.UUID) (map[string][]string, map[string][]string, error) {
	a, err := s.ContextByID(ctx, aID)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.ContextByID(ctx, bID)
	if err != nil {
		return nil, nil, err
	}

	additions := map[string][]string{
		"user_context":  lineDiff(a.UserContext, b.UserContext, false),
		"agent_context": lineDiff(a.AgentContext, b.AgentContext, false),
	}
	removals := map[string][]string{
		"user_context":  lineDiff(a.UserContext, b.UserContext, true),
		"agent_context": lineDiff(a.AgentContext, b.AgentContext, true),
	}
	return additions, removals, nil
}

// lineDiff returns the lines present in b but not a (removed=false) or
// present in a but not b (removed=true), preserving b's (or a's) order.
func lineDiff(a, b string, removed bool) []string {
	aLines := splitLines(a)
	bLines := splitLines(b)
	if !removed {
		aLines, bLines = bLines, aLines
	}
	seen := make(map[string]bool, len(bLines))
	for _, l := range bLines {
		seen[l] = true
	}
	var out []string
	for _, l := range aLines {
		if !seen[l] {
			out = append(out, l)
		}
	}
	return out
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func scanContext(row pgx.Row) (*domain.TargetContext, error) {
	return scanContextRow(row)
}

func scanContextRow(row rowScanner) (*domain.TargetContext, error) {
	var tc domain.TargetContext
	var createdBy string
	if err := row.Scan(&tc.ID, &tc.TargetID, &tc.Version, &tc.ParentVersionID, &tc.UserContext, &tc.AgentContext,
		&createdBy, &tc.ChangeSummary, &tc.ChangeType, &tc.CreatedAt); err != nil {
		return nil, err
	}
	tc.CreatedBy = domain.ContextCreator(createdBy)
	return &tc, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), covering both a direct *pgconn.PgError and one wrapped
// by pgx's higher-level error types.
func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if ok := asPgError(err, &pgErr); ok {
		return pgErr.SQLState() == "23505"
	}
	return false
}

func asPgError(err error, target *interface{ SQLState() string }) bool {
	type sqlStater interface{ SQLState() string }
	for err != nil {
		if s, ok := err.(sqlStater); ok {
			*target = s
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
