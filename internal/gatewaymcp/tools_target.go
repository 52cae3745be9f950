package gatewaymcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/domain"
	"github.com/redwire/redwire/internal/gatewaymcp/coerce"
	"github.com/redwire/redwire/pkg/strutil"
)

func (s *Server) registerTargetTools() {
	s.addCreateTargetTool()
	s.addUpdateTargetStatusTool()
	s.addGetTargetSummaryTool()
	s.addSearchTargetsTool()
}

// --- create_target ---

func (s *Server) addCreateTargetTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "create_target",
			Title: "Create or update a target",
			Description: `Register a host/port/protocol triple as a target under test (upsert on host+port+protocol). If the triple already exists, its record is returned with status, risk level, and title unchanged.

USE when:
- Beginning work against a new host
- Re-establishing a target you've tested before, to get its record and id back

Example:
  {"host": "example.com", "protocol": "https", "risk_level": "medium"}

Result format: JSON with the target record and a "created" boolean (false if the triple already existed).`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"host":       map[string]any{"type": "string", "description": "Hostname or IP."},
					"port":       map[string]any{"type": "integer", "description": "Port, if non-default for the protocol."},
					"protocol":   map[string]any{"type": "string", "enum": []string{"http", "https"}, "description": "Defaults to https."},
					"title":      map[string]any{"type": "string", "description": "Human-readable label. Only applied on first creation."},
					"status":     map[string]any{"type": "string", "enum": []string{"active", "inactive", "blocked", "completed"}, "description": "Defaults to active."},
					"risk_level": map[string]any{"type": "string", "enum": []string{"low", "medium", "high", "critical"}, "description": "Defaults to low."},
					"notes":      map[string]any{"type": "string", "description": "Free-text note merged into the target's metadata."},
				},
				"required": []string{"host"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: false, IdempotentHint: true, Title: "Create Target"},
		},
		s.loggedTool("create_target", s.handleCreateTarget),
	)
}

type createTargetArgs struct {
	Host      string `json:"host"`
	Port      *int   `json:"port"`
	Protocol  string `json:"protocol"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	RiskLevel string `json:"risk_level"`
	Notes     string `json:"notes"`
}

func (s *Server) handleCreateTarget(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args createTargetArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	if args.Host == "" {
		return fail(apperr.New(apperr.ValidationFailed, "host is required")), nil
	}
	st, err := s.store()
	if err != nil {
		return fail(err), nil
	}

	protocol := domain.Protocol(coerce.StringOr(args.Protocol, string(domain.ProtocolHTTPS)))
	status := domain.TargetStatus(coerce.StringOr(args.Status, string(domain.TargetActive)))
	risk := domain.RiskLevel(coerce.StringOr(args.RiskLevel, string(domain.RiskLow)))

	target, created, err := st.UpsertTarget(ctx, args.Host, args.Port, protocol, status, risk, args.Title)
	if err != nil {
		return fail(err), nil
	}
	if args.Notes != "" {
		notes := args.Notes
		target, err = st.UpdateTargetFields(ctx, target.ID, nil, nil, &notes)
		if err != nil {
			return fail(err), nil
		}
	}
	return ok(struct {
		Target  *domain.Target `json:"target"`
		Created bool           `json:"created"`
	}{target, created}, ""), nil
}

// --- update_target_status ---

func (s *Server) addUpdateTargetStatusTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "update_target_status",
			Title: "Update a target's status, risk, or notes",
			Description: `Update a target's lifecycle status, assessed risk level, and/or a free-text notes field (merged into the target's metadata). Fields omitted are left unchanged.

USE when:
- A target becomes unreachable (status: blocked) or testing concludes (status: completed)
- New findings change the target's assessed risk

Example:
  {"target_id": "...", "status": "completed", "notes": "full assessment done 2026-08-06"}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"target_id":  map[string]any{"type": "string", "description": "Target id."},
					"status":     map[string]any{"type": "string", "enum": []string{"active", "inactive", "blocked", "completed"}},
					"risk_level": map[string]any{"type": "string", "enum": []string{"low", "medium", "high", "critical"}},
					"notes":      map[string]any{"type": "string", "description": "Free-text note merged into the target's metadata."},
				},
				"required": []string{"target_id"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: false, IdempotentHint: true, Title: "Update Target Status"},
		},
		s.loggedTool("update_target_status", s.handleUpdateTargetStatus),
	)
}

type updateTargetStatusArgs struct {
	TargetID  string `json:"target_id"`
	Status    string `json:"status"`
	RiskLevel string `json:"risk_level"`
	Notes     string `json:"notes"`
}

func (s *Server) handleUpdateTargetStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args updateTargetStatusArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	targetID, err := coerce.TargetID(args.TargetID)
	if err != nil {
		return fail(err), nil
	}
	st, err := s.store()
	if err != nil {
		return fail(err), nil
	}

	var status, risk, notes *string
	if args.Status != "" {
		status = &args.Status
	}
	if args.RiskLevel != "" {
		risk = &args.RiskLevel
	}
	if args.Notes != "" {
		notes = &args.Notes
	}

	target, err := st.UpdateTargetFields(ctx, targetID, status, risk, notes)
	if err != nil {
		return fail(err), nil
	}
	return ok(target, ""), nil
}

// --- get_target_summary ---

func (s *Server) addGetTargetSummaryTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "get_target_summary",
			Title: "Get a target's record",
			Description: `Fetch a target's full record by id plus a quick-glance summary: total request count, last activity timestamp, and an excerpt of its current context.

USE when:
- You have a target id and need its current state before deciding what to test next

Result format: {target, request_count, last_activity, current_context_excerpt}.`,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"target_id": map[string]any{"type": "string"}},
				"required":   []string{"target_id"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, Title: "Get Target Summary"},
		},
		s.loggedTool("get_target_summary", s.handleGetTargetSummary),
	)
}

type getTargetSummaryArgs struct {
	TargetID string `json:"target_id"`
}

func (s *Server) handleGetTargetSummary(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args getTargetSummaryArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	targetID, err := coerce.TargetID(args.TargetID)
	if err != nil {
		return fail(err), nil
	}
	st, err := s.store()
	if err != nil {
		return fail(err), nil
	}
	target, err := st.GetTargetByID(ctx, targetID)
	if err != nil {
		return fail(err), nil
	}
	count, err := st.CountRequestsForTarget(ctx, targetID)
	if err != nil {
		return fail(err), nil
	}

	excerpt := ""
	if current, ctxErr := st.CurrentContext(ctx, targetID); ctxErr == nil {
		combined := current.AgentContext
		if current.UserContext != "" {
			combined = current.UserContext + "\n" + combined
		}
		excerpt = strutil.Truncate(combined, 280)
	} else if apperr.As(ctxErr).Kind != apperr.NotFound {
		return fail(ctxErr), nil
	}

	return ok(struct {
		Target                *domain.Target `json:"target"`
		RequestCount          int            `json:"request_count"`
		LastActivity          *time.Time     `json:"last_activity"`
		CurrentContextExcerpt string         `json:"current_context_excerpt"`
	}{target, count, target.LastActivity, excerpt}, ""), nil
}

// --- search_targets ---

func (s *Server) addSearchTargetsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "search_targets",
			Title: "Search targets",
			Description: `Search targets by a case-insensitive substring of their host or title, and/or filter by status, risk level, and protocol.

USE when:
- Resuming a session and you need to find a target by partial hostname
- Listing all targets at a given risk level before triaging`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":      map[string]any{"type": "string", "description": "Substring match against host or title."},
					"status":     map[string]any{"type": "string", "enum": []string{"active", "inactive", "blocked", "completed"}},
					"risk_level": map[string]any{"type": "string", "enum": []string{"low", "medium", "high", "critical"}},
					"protocol":   map[string]any{"type": "string", "enum": []string{"http", "https"}},
					"limit":      map[string]any{"type": "integer", "description": "Defaults to 50."},
				},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, Title: "Search Targets"},
		},
		s.loggedTool("search_targets", s.handleSearchTargets),
	)
}

type searchTargetsArgs struct {
	Query     string `json:"query"`
	Status    string `json:"status"`
	RiskLevel string `json:"risk_level"`
	Protocol  string `json:"protocol"`
	Limit     int    `json:"limit"`
}

func (s *Server) handleSearchTargets(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args searchTargetsArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}

	var query, status, risk, protocol *string
	if args.Query != "" {
		query = &args.Query
	}
	if args.Status != "" {
		status = &args.Status
	}
	if args.RiskLevel != "" {
		risk = &args.RiskLevel
	}
	if args.Protocol != "" {
		protocol = &args.Protocol
	}

	targets, err := s.cfg.Store.SearchTargets(ctx, query, status, risk, protocol, coerce.IntOr(args.Limit, 50))
	if err != nil {
		return fail(err), nil
	}
	return ok(targets, ""), nil
}
