package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/domain"
)

// AddTargetNote inserts a free-text note for a target.
func (s *Store) AddTargetNote(ctx context.Context, targetID uuid.UUID, noteType domain.NoteType, title, content string, tags []string, confidence domain.Confidence) (*domain.TargetNote, error) {
	var n domain.TargetNote
	var nt, conf string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO target_notes (target_id, note_type, title, content, tags, confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, target_id, note_type, title, content, tags, confidence, created_at
	`, targetID, string(noteType), title, content, tags, string(confidence),
	).Scan(&n.ID, &n.TargetID, &nt, &n.Title, &n.Content, &n.Tags, &conf, &n.CreatedAt)
	if err != nil {
		return nil, apperr.InternalWithCorrelation(err)
	}
	n.NoteType = domain.NoteType(nt)
	n.Confidence = domain.Confidence(conf)
	return &n, nil
}

// ListTargetNotes returns a target's notes, newest first, optionally
// filtered by note type and capped at limit (0 or less means 50).
func (s *Store) ListTargetNotes(ctx context.Context, targetID uuid.UUID, noteType domain.NoteType, limit int) ([]*domain.TargetNote, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, target_id, note_type, title, content, tags, confidence, created_at
		FROM target_notes
		WHERE target_id = $1 AND ($2 = '' OR note_type = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, targetID, string(noteType), limit)
	if err != nil {
		return nil, s.wrapErr("note.list", err)
	}
	defer rows.Close()

	var out []*domain.TargetNote
	for rows.Next() {
		var n domain.TargetNote
		var nt, conf string
		if err := rows.Scan(&n.ID, &n.TargetID, &nt, &n.Title, &n.Content, &n.Tags, &conf, &n.CreatedAt); err != nil {
			return nil, s.wrapErr("note.list", err)
		}
		n.NoteType = domain.NoteType(nt)
		n.Confidence = domain.Confidence(conf)
		out = append(out, &n)
	}
	return out, rows.Err()
}
