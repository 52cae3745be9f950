package gatewaymcp

import (
	"context"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/domain"
	"github.com/redwire/redwire/internal/gatewaymcp/coerce"
	"github.com/redwire/redwire/internal/missionctx"
	"github.com/redwire/redwire/internal/store"
)

func (s *Server) registerMissionTools() {
	s.addCreateMissionTool()
	s.addSetMissionContextTool()
	s.addGetMissionContextTool()
	s.addRecordActionTool()
	s.addUpdateMissionStatusTool()
}

// --- create_mission ---

func (s *Server) addCreateMissionTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "create_mission",
			Title: "Create a mission",
			Description: `Open a bounded testing engagement: a goal, an optional working hypothesis, and an optional scope restricting it to in/out host patterns (e.g. "*.example.com"). The goal and hypothesis are embedded so later find_similar_techniques calls can surface missions that pursued something similar.

USE when:
- Starting a new engagement against one or more targets

Example:
  {"name": "auth bypass sweep", "goal": "find a way to access /admin without valid session cookies", "hypothesis": "the app trusts an X-Forwarded-For header for IP allowlisting", "in_scope": ["*.example.com"]}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":       map[string]any{"type": "string"},
					"goal":       map[string]any{"type": "string"},
					"hypothesis": map[string]any{"type": "string"},
					"in_scope":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"out_scope":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"name", "goal"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: false, Title: "Create Mission"},
		},
		s.loggedTool("create_mission", s.handleCreateMission),
	)
}

type createMissionArgs struct {
	Name       string   `json:"name"`
	Goal       string   `json:"goal"`
	Hypothesis string   `json:"hypothesis"`
	InScope    []string `json:"in_scope"`
	OutScope   []string `json:"out_scope"`
}

func (s *Server) handleCreateMission(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args createMissionArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	if args.Name == "" || args.Goal == "" {
		return fail(apperr.New(apperr.ValidationFailed, "name and goal are required")), nil
	}

	goalEmb, err := s.cfg.Embed.Embed(ctx, args.Goal)
	if err != nil {
		return fail(err), nil
	}
	hypothesisEmb, err := s.cfg.Embed.Embed(ctx, args.Hypothesis)
	if err != nil {
		return fail(err), nil
	}

	scope := domain.MissionScope{InScope: args.InScope, OutScope: args.OutScope}
	mission, err := s.cfg.Store.CreateMission(ctx, args.Name, args.Goal, goalEmb, args.Hypothesis, hypothesisEmb, scope)
	if err != nil {
		return fail(err), nil
	}
	return ok(mission, ""), nil
}

// --- set_mission_context ---

func (s *Server) addSetMissionContextTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "set_mission_context",
			Title: "Set the active mission for this connection",
			Description: `Make a mission (and optionally a cookie profile) the implicit context applied to every subsequent http_request and record_action call on this connection, until cleared or changed. Pass an empty mission_id to clear it.

USE when:
- You're about to do a run of requests/actions against one mission and don't want to repeat its id on every call`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"mission_id":     map[string]any{"type": "string", "description": "Empty string clears the active mission."},
					"cookie_profile": map[string]any{"type": "string", "description": "Named cookie profile to apply implicitly."},
				},
				"required": []string{"mission_id"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: false, IdempotentHint: true, Title: "Set Mission Context"},
		},
		s.loggedTool("set_mission_context", s.handleSetMissionContext),
	)
}

type setMissionContextArgs struct {
	MissionID     string `json:"mission_id"`
	CookieProfile string `json:"cookie_profile"`
}

func (s *Server) handleSetMissionContext(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args setMissionContextArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}

	if args.MissionID == "" {
		s.mission.Clear()
		return ok(struct {
			Cleared bool `json:"cleared"`
		}{true}, ""), nil
	}

	missionID, err := uuid.Parse(args.MissionID)
	if err != nil {
		return fail(apperr.New(apperr.ValidationFailed, "invalid mission_id %q: %v", args.MissionID, err)), nil
	}

	name, err := s.mission.Set(ctx, missionID, args.CookieProfile)
	if err != nil {
		return fail(err), nil
	}
	return ok(struct {
		MissionID     string `json:"mission_id"`
		MissionName   string `json:"mission_name"`
		CookieProfile string `json:"cookie_profile,omitempty"`
	}{missionID.String(), name, args.CookieProfile}, ""), nil
}

// --- get_mission_context ---

func (s *Server) addGetMissionContextTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "get_mission_context",
			Title: "Get the active mission's context",
			Description: `Return the mission and cookie profile currently active on this connection, the mission's latest action (recent_actions holds at most one entry), and — if focus text is given — the actions across all missions most similar to it by embedding.

USE when:
- Resuming a mission and wanting a quick summary of what's been tried
- About to try something and wanting to see what similar attempts (focus) have shown elsewhere first

Example:
  {}
  {"focus": "bypassing an IP allowlist"}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"focus": map[string]any{"type": "string", "description": "Optional text to find similar actions for, across all missions."},
				},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, Title: "Get Mission Context"},
		},
		s.loggedTool("get_mission_context", s.handleGetMissionContext),
	)
}

type getMissionContextArgs struct {
	Focus string `json:"focus"`
}

func (s *Server) handleGetMissionContext(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args getMissionContextArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}

	state, err := s.mission.Get(ctx)
	if err != nil {
		return fail(err), nil
	}

	result := struct {
		Mission               *missionctx.State       `json:"mission"`
		RecentActions         []*domain.MissionAction `json:"recent_actions,omitempty"`
		SimilarActionsIfFocus []store.ScoredAction    `json:"similar_actions_if_focus,omitempty"`
	}{Mission: state}

	if state.ActiveMissionID != nil {
		latest, err := s.cfg.Store.LatestAction(ctx, *state.ActiveMissionID)
		if err != nil {
			return fail(err), nil
		}
		if latest != nil {
			result.RecentActions = []*domain.MissionAction{latest}
		}
	}

	if args.Focus != "" {
		focusEmb, err := s.cfg.Embed.Embed(ctx, args.Focus)
		if err != nil {
			return fail(err), nil
		}
		similar, err := s.cfg.Store.FindSimilarActions(ctx, focusEmb, nil, 10, 0.5)
		if err != nil {
			return fail(err), nil
		}
		result.SimilarActionsIfFocus = similar
	}

	return ok(result, ""), nil
}

// --- record_action ---

func (s *Server) addRecordActionTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "record_action",
			Title: "Record a mission action",
			Description: `Record one immutable attempt within a mission: the technique tried, the hypothesis behind it, the observed result, whether it succeeded, and what was learned. Technique and result text are embedded so later find_similar_techniques and get_technique_stats calls can recall this attempt.

By default, the most recently logged HTTP requests for this mission (regardless of which earlier action they were linked to) are relinked to this new action, so the evidence for a technique stays attached to the action that explains it. Set link_recent_requests to 0 to skip relinking.

USE when:
- You've finished trying something against a mission's target(s) and want it durably recorded

Example:
  {"mission_id": "...", "technique": "X-Forwarded-For spoofing to bypass IP allowlist on /admin", "hypothesis": "app trusts XFF for allowlisting", "result": "403 became 200 with X-Forwarded-For: 127.0.0.1", "success": "true", "learning": "allowlist check reads XFF, not the real peer address"}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"mission_id":          map[string]any{"type": "string", "description": "Overrides the connection's active mission if set."},
					"technique":           map[string]any{"type": "string"},
					"hypothesis":          map[string]any{"type": "string"},
					"result":              map[string]any{"type": "string"},
					"success":             map[string]any{"type": "string", "enum": []string{"true", "false", "unknown"}, "description": "Defaults to unknown."},
					"learning":            map[string]any{"type": "string"},
					"link_recent_requests": map[string]any{"type": "integer", "description": "How many of the mission's most recent requests to relink to this action. Defaults to 3."},
				},
				"required": []string{"technique", "result"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: false, Title: "Record Mission Action"},
		},
		s.loggedTool("record_action", s.handleRecordAction),
	)
}

type recordActionArgs struct {
	MissionID          string `json:"mission_id"`
	Technique          string `json:"technique"`
	Hypothesis         string `json:"hypothesis"`
	Result             string `json:"result"`
	Success            string `json:"success"`
	Learning           string `json:"learning"`
	LinkRecentRequests *int   `json:"link_recent_requests"`
}

func (s *Server) handleRecordAction(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args recordActionArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	if args.Technique == "" || args.Result == "" {
		return fail(apperr.New(apperr.ValidationFailed, "technique and result are required")), nil
	}

	explicitMissionID, err := coerce.MissionID(args.MissionID)
	if err != nil {
		return fail(err), nil
	}
	missionID := s.mission.ResolveMission(explicitMissionID)
	if missionID == nil {
		return fail(apperr.New(apperr.ValidationFailed, "no active mission: pass mission_id or call set_mission_context first")), nil
	}

	techniqueEmb, err := s.cfg.Embed.Embed(ctx, args.Technique)
	if err != nil {
		return fail(err), nil
	}
	resultEmb, err := s.cfg.Embed.Embed(ctx, args.Result)
	if err != nil {
		return fail(err), nil
	}

	success := domain.ActionResult(coerce.StringOr(args.Success, string(domain.ResultUnknown)))

	action, err := s.cfg.Store.AppendAction(ctx, *missionID, args.Technique, techniqueEmb, args.Hypothesis, args.Result, resultEmb, success, args.Learning)
	if err != nil {
		return fail(err), nil
	}

	linkCount := 3
	if args.LinkRecentRequests != nil {
		linkCount = *args.LinkRecentRequests
	}
	relinked := 0
	if linkCount > 0 {
		recent, err := s.cfg.Store.RecentRequestsForMission(ctx, *missionID, linkCount)
		if err != nil {
			s.log.Warn("record_action: fetching recent requests to relink", zap.Error(err))
		} else {
			for _, r := range recent {
				if err := s.cfg.Store.LinkRequestToAction(ctx, r.ID, action.ID); err != nil {
					s.log.Warn("record_action: relinking request", zap.String("request_id", r.ID.String()), zap.Error(err))
					continue
				}
				relinked++
			}
		}
	}

	return ok(struct {
		Action          *domain.MissionAction `json:"action"`
		RelinkedRequests int                   `json:"relinked_requests"`
	}{action, relinked}, s.missionContextNote(ctx, *missionID)), nil
}

// --- update_mission_status ---
//
// Supplements the mission lifecycle (active → paused → active | completed |
// failed) with an explicit transition tool, the mission-side analogue of
// update_target_status.

func (s *Server) addUpdateMissionStatusTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "update_mission_status",
			Title: "Transition a mission's status",
			Description: `Move a mission to a new status. Valid transitions: active ↔ paused, and either into completed or failed (terminal, no further transitions).

USE when:
- Pausing a mission to resume later, or closing one out as completed/failed`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"mission_id": map[string]any{"type": "string"},
					"status":     map[string]any{"type": "string", "enum": []string{"active", "paused", "completed", "failed"}},
				},
				"required": []string{"mission_id", "status"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: false, IdempotentHint: true, Title: "Update Mission Status"},
		},
		s.loggedTool("update_mission_status", s.handleUpdateMissionStatus),
	)
}

type updateMissionStatusArgs struct {
	MissionID string `json:"mission_id"`
	Status    string `json:"status"`
}

func (s *Server) handleUpdateMissionStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args updateMissionStatusArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	if args.Status == "" {
		return fail(apperr.New(apperr.ValidationFailed, "status is required")), nil
	}
	missionID, err := uuid.Parse(args.MissionID)
	if err != nil {
		return fail(apperr.New(apperr.ValidationFailed, "invalid mission_id %q: %v", args.MissionID, err)), nil
	}

	mission, err := s.cfg.Store.UpdateMissionStatus(ctx, missionID, domain.MissionStatus(args.Status))
	if err != nil {
		return fail(err), nil
	}
	return ok(mission, ""), nil
}
