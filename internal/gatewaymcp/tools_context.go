package gatewaymcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/domain"
	"github.com/redwire/redwire/internal/gatewaymcp/coerce"
)

func (s *Server) registerContextTools() {
	s.addGetTargetContextTool()
	s.addUpdateTargetContextTool()
}

// --- get_target_context ---

func (s *Server) addGetTargetContextTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "get_target_context",
			Title: "Get a target's context",
			Description: `Fetch a target's current versioned context (the latest entry in its append-only user/agent notes chain), a specific prior version, and optionally its version history (the 50 most recent versions).

USE when:
- Resuming work on a target and you need to know what's already been learned

Example:
  {"target_id": "..."}
  {"target_id": "...", "version": "<context version id>"}
  {"target_id": "...", "include_history": true}

Result format: {current, history?}.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"target_id":       map[string]any{"type": "string"},
					"version":         map[string]any{"type": "string", "description": "A context version id; if set, current is that version instead of the latest."},
					"include_history": map[string]any{"type": "boolean", "description": "Also return the version history, newest first, capped at the 50 most recent versions."},
				},
				"required": []string{"target_id"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, Title: "Get Target Context"},
		},
		s.loggedTool("get_target_context", s.handleGetTargetContext),
	)
}

type getTargetContextArgs struct {
	TargetID       string `json:"target_id"`
	Version        string `json:"version"`
	IncludeHistory bool   `json:"include_history"`
}

func (s *Server) handleGetTargetContext(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args getTargetContextArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	targetID, err := coerce.TargetID(args.TargetID)
	if err != nil {
		return fail(err), nil
	}

	var current *domain.TargetContext
	if args.Version != "" {
		versionID, err := coerce.UUID("version", args.Version)
		if err != nil {
			return fail(err), nil
		}
		current, err = s.cfg.Store.ContextByID(ctx, *versionID)
	} else {
		current, err = s.cfg.Store.CurrentContext(ctx, targetID)
	}
	if err != nil {
		return fail(err), nil
	}

	result := struct {
		Current *domain.TargetContext   `json:"current"`
		History []*domain.TargetContext `json:"history,omitempty"`
	}{Current: current}

	if args.IncludeHistory {
		history, err := s.cfg.Store.ContextHistory(ctx, targetID, 0)
		if err != nil {
			return fail(err), nil
		}
		result.History = history
	}
	return ok(result, ""), nil
}

// --- update_target_context ---

func (s *Server) addUpdateTargetContextTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "update_target_context",
			Title: "Append a new target context version",
			Description: `Append a new immutable version to a target's context chain. The chain is append-only: this never overwrites a prior version, it links a new one on top as the current version.

When the target has no context yet, this creates version 1 from whichever of user_context/agent_context you provide. Otherwise, with append_mode=true (the default), the fields you provide are concatenated onto the previous version's corresponding field; fields you omit are left unchanged. With append_mode=false, the new version's fields are exactly what you provide — an omitted field replicates the previous version's value unchanged, it is never blanked.

USE when:
- You've learned something about a target worth recording as durable context (not just a one-off note — use add_target_note for that)

Example:
  {"target_id": "...", "agent_context": "Login form at /login takes a CSRF token from a hidden field named csrf_token.", "change_summary": "documented CSRF flow"}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"target_id":      map[string]any{"type": "string"},
					"user_context":   map[string]any{"type": "string", "description": "Context supplied by the human operator."},
					"agent_context":  map[string]any{"type": "string", "description": "Context authored by the agent."},
					"change_summary": map[string]any{"type": "string", "description": "One-line summary of what changed."},
					"append_mode":    map[string]any{"type": "boolean", "description": "Defaults to true."},
				},
				"required": []string{"target_id", "change_summary"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: false, Title: "Update Target Context"},
		},
		s.loggedTool("update_target_context", s.handleUpdateTargetContext),
	)
}

type updateTargetContextArgs struct {
	TargetID      string `json:"target_id"`
	UserContext   *string `json:"user_context"`
	AgentContext  *string `json:"agent_context"`
	ChangeSummary string  `json:"change_summary"`
	AppendMode    *bool   `json:"append_mode"`
}

func (s *Server) handleUpdateTargetContext(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args updateTargetContextArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	targetID, err := coerce.TargetID(args.TargetID)
	if err != nil {
		return fail(err), nil
	}
	if args.UserContext == nil && args.AgentContext == nil {
		return fail(apperr.New(apperr.ValidationFailed, "either user_context or agent_context must be provided")), nil
	}

	appendMode := coerce.BoolOr(args.AppendMode, true)

	previous, err := s.cfg.Store.CurrentContext(ctx, targetID)
	if err != nil && apperr.As(err).Kind != apperr.NotFound {
		return fail(err), nil
	}

	userContext := mergeContextField(previous, func(p *domain.TargetContext) string { return p.UserContext }, args.UserContext, appendMode)
	agentContext := mergeContextField(previous, func(p *domain.TargetContext) string { return p.AgentContext }, args.AgentContext, appendMode)

	version, err := s.cfg.Store.AppendContext(ctx, targetID, userContext, agentContext, domain.CreatedByAgent, args.ChangeSummary, "")
	if err != nil {
		return fail(err), nil
	}
	return ok(version, ""), nil
}

// mergeContextField computes a context field's new value: create (no
// previous version) just uses the provided value; append_mode concatenates
// onto the previous value; replace mode uses the provided value verbatim,
// falling back to the previous value when the field was omitted entirely.
func mergeContextField(previous *domain.TargetContext, prevField func(*domain.TargetContext) string, provided *string, appendMode bool) string {
	if previous == nil {
		if provided == nil {
			return ""
		}
		return *provided
	}
	prev := prevField(previous)
	if provided == nil {
		return prev
	}
	if !appendMode {
		return *provided
	}
	if prev == "" {
		return *provided
	}
	if *provided == "" {
		return prev
	}
	return prev + "\n" + *provided
}
