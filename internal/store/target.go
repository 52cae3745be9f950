package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/domain"
	"github.com/redwire/redwire/pkg/jsonutil"
)

// UpsertTarget inserts a new Target for the (host, port, protocol) triple
// or returns the existing row unchanged on conflict. host is lowercased;
// port is normalised to nil when it equals the scheme default.
func (s *Store) UpsertTarget(ctx context.Context, host string, port *int, protocol domain.Protocol, status domain.TargetStatus, risk domain.RiskLevel, title string) (*domain.Target, bool, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	if port != nil && *port == protocol.DefaultPort() {
		port = nil
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO targets (host, port, protocol, status, risk_level, title)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (host, port, protocol) DO NOTHING
		RETURNING id, host, port, protocol, status, risk_level, title, metadata,
		          current_context_id, last_activity, created_at, updated_at
	`, host, port, string(protocol), string(status), string(risk), title)

	target, err := scanTarget(row)
	if err == nil {
		return target, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, s.wrapErr("target.upsert", err)
	}

	existing, getErr := s.GetTarget(ctx, targetKey{host: host, port: port, protocol: protocol})
	if getErr != nil {
		return nil, false, getErr
	}
	return existing, false, nil
}

type targetKey struct {
	host     string
	port     *int
	protocol domain.Protocol
}

// GetTarget fetches a single target by id.
func (s *Store) GetTarget(ctx context.Context, key any) (*domain.Target, error) {
	switch k := key.(type) {
	case uuid.UUID:
		row := s.pool.QueryRow(ctx, `
			SELECT id, host, port, protocol, status, risk_level, title, metadata,
			       current_context_id, last_activity, created_at, updated_at
			FROM targets WHERE id = $1
		`, k)
		return scanTarget(row)
	case targetKey:
		row := s.pool.QueryRow(ctx, `
			SELECT id, host, port, protocol, status, risk_level, title, metadata,
			       current_context_id, last_activity, created_at, updated_at
			FROM targets WHERE host = $1 AND port IS NOT DISTINCT FROM $2 AND protocol = $3
		`, k.host, k.port, string(k.protocol))
		return scanTarget(row)
	default:
		return nil, apperr.New(apperr.Internal, "unsupported target lookup key type %T", key)
	}
}

// GetTargetByID fetches a single target by its id, wrapping a missing row
// as not_found.
func (s *Store) GetTargetByID(ctx context.Context, id uuid.UUID) (*domain.Target, error) {
	t, err := s.GetTarget(ctx, id)
	if err != nil {
		return nil, s.wrapErr("target.get", err)
	}
	return t, nil
}

// UpdateTargetFields applies the given optional fields to a target. A nil
// pointer leaves the corresponding column unchanged. notes, if set, is
// merged into the target's metadata under the "notes" key rather than
// replacing the whole metadata map.
func (s *Store) UpdateTargetFields(ctx context.Context, id uuid.UUID, status, riskLevel, notes *string) (*domain.Target, error) {
	current, err := s.GetTargetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	newStatus := string(current.Status)
	if status != nil {
		newStatus = *status
	}
	newRisk := string(current.RiskLevel)
	if riskLevel != nil {
		newRisk = *riskLevel
	}
	metadata := current.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	if notes != nil {
		metadata["notes"] = *notes
	}
	metaJSON, err := jsonutil.Marshal(metadata)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "encoding metadata: %v", err)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE targets
		SET status = $2, risk_level = $3, metadata = $4, updated_at = now()
		WHERE id = $1
		RETURNING id, host, port, protocol, status, risk_level, title, metadata,
		          current_context_id, last_activity, created_at, updated_at
	`, id, newStatus, newRisk, metaJSON)
	t, err := scanTarget(row)
	if err != nil {
		return nil, s.wrapErr("target.update_fields", err)
	}
	return t, nil
}

// SearchTargets returns targets matching an optional case-insensitive
// substring on host/title and optional exact filters, sorted by
// last_activity descending (nulls last).
func (s *Store) SearchTargets(ctx context.Context, query, status, riskLevel, protocol *string, limit int) ([]*domain.Target, error) {
	if limit <= 0 {
		limit = 50
	}
	sql := `
		SELECT id, host, port, protocol, status, risk_level, title, metadata,
		       current_context_id, last_activity, created_at, updated_at
		FROM targets
		WHERE ($1 = '' OR host ILIKE '%' || $1 || '%' OR title ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR risk_level = $3)
		  AND ($4 = '' OR protocol = $4)
		ORDER BY last_activity DESC NULLS LAST, created_at DESC
		LIMIT $5
	`
	rows, err := s.pool.Query(ctx, sql, derefOr(query, ""), derefOr(status, ""), derefOr(riskLevel, ""), derefOr(protocol, ""), limit)
	if err != nil {
		return nil, s.wrapErr("target.search", err)
	}
	defer rows.Close()

	var out []*domain.Target
	for rows.Next() {
		t, err := scanTargetRow(rows)
		if err != nil {
			return nil, s.wrapErr("target.search", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrapErr("target.search", err)
	}
	return out, nil
}

// BumpLastActivity sets a target's last_activity to now. Best-effort: used
// by the Logging Pipeline's step 7.
func (s *Store) BumpLastActivity(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE targets SET last_activity = now() WHERE id = $1`, id)
	return err
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row pgx.Row) (*domain.Target, error) {
	return scanTargetRow(row)
}

func scanTargetRow(row rowScanner) (*domain.Target, error) {
	var t domain.Target
	var metaJSON []byte
	var protocol, status, risk string
	if err := row.Scan(
		&t.ID, &t.Host, &t.Port, &protocol, &status, &risk, &t.Title, &metaJSON,
		&t.CurrentContextID, &t.LastActivity, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Protocol = domain.Protocol(protocol)
	t.Status = domain.TargetStatus(status)
	t.RiskLevel = domain.RiskLevel(risk)
	if len(metaJSON) > 0 {
		if err := jsonutil.Unmarshal(metaJSON, &t.Metadata); err != nil {
			return nil, err
		}
	}
	return &t, nil
}
