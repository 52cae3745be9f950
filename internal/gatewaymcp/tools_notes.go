package gatewaymcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/domain"
	"github.com/redwire/redwire/internal/gatewaymcp/coerce"
)

// registerNoteTools wires the target-notes group: a thin additive layer
// over the versioned context chain rather than folded into it, matching
// the Store's own separation of AppendContext (structured, versioned)
// from AddTargetNote (free-text, additive).
func (s *Server) registerNoteTools() {
	s.addAddTargetNoteTool()
	s.addListTargetNotesTool()
}

// --- add_target_note ---

func (s *Server) addAddTargetNoteTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "add_target_note",
			Title: "Add a free-text note to a target",
			Description: `Attach a free-text observation to a target, classified by type and confidence. Unlike update_target_context, notes are not versioned or chained — they're a flat, additive log of things worth remembering that don't need to supersede each other.

USE when:
- You notice something worth remembering that isn't a structured context update — an odd response header, a partial WAF signature, a login quirk

Example:
  {"target_id": "...", "note_type": "reconnaissance", "title": "Server header", "content": "Server: nginx/1.18.0 (Ubuntu), no further version disclosure elsewhere", "confidence": "high"}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"target_id":  map[string]any{"type": "string"},
					"note_type":  map[string]any{"type": "string", "enum": []string{"reconnaissance", "vulnerability", "configuration", "access", "other"}, "description": "Defaults to other."},
					"title":      map[string]any{"type": "string"},
					"content":    map[string]any{"type": "string"},
					"tags":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"confidence": map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}, "description": "Defaults to medium."},
				},
				"required": []string{"target_id", "title", "content"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: false, Title: "Add Target Note"},
		},
		s.loggedTool("add_target_note", s.handleAddTargetNote),
	)
}

type addTargetNoteArgs struct {
	TargetID   string   `json:"target_id"`
	NoteType   string   `json:"note_type"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	Confidence string   `json:"confidence"`
}

func (s *Server) handleAddTargetNote(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args addTargetNoteArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	if args.Title == "" || args.Content == "" {
		return fail(apperr.New(apperr.ValidationFailed, "title and content are required")), nil
	}

	targetID, err := coerce.TargetID(args.TargetID)
	if err != nil {
		return fail(err), nil
	}

	noteType := domain.NoteType(coerce.StringOr(args.NoteType, string(domain.NoteOther)))
	confidence := domain.Confidence(coerce.StringOr(args.Confidence, string(domain.ConfidenceMedium)))

	note, err := s.cfg.Store.AddTargetNote(ctx, targetID, noteType, args.Title, args.Content, args.Tags, confidence)
	if err != nil {
		return fail(err), nil
	}
	return ok(note, ""), nil
}

// --- list_target_notes ---

func (s *Server) addListTargetNotesTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "list_target_notes",
			Title: "List a target's notes",
			Description: `Return notes recorded against a target, newest first, optionally filtered by note type.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"target_id": map[string]any{"type": "string"},
					"note_type": map[string]any{"type": "string", "enum": []string{"reconnaissance", "vulnerability", "configuration", "access", "other"}},
					"limit":     map[string]any{"type": "integer", "description": "Defaults to 50."},
				},
				"required": []string{"target_id"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, Title: "List Target Notes"},
		},
		s.loggedTool("list_target_notes", s.handleListTargetNotes),
	)
}

type listTargetNotesArgs struct {
	TargetID string `json:"target_id"`
	NoteType string `json:"note_type"`
	Limit    int    `json:"limit"`
}

func (s *Server) handleListTargetNotes(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args listTargetNotesArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	targetID, err := coerce.TargetID(args.TargetID)
	if err != nil {
		return fail(err), nil
	}

	notes, err := s.cfg.Store.ListTargetNotes(ctx, targetID, domain.NoteType(args.NoteType), args.Limit)
	if err != nil {
		return fail(err), nil
	}
	return ok(notes, ""), nil
}
