package gatewaymcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/gatewaymcp/coerce"
)

func (s *Server) registerSearchTools() {
	s.addFindSimilarTechniquesTool()
	s.addSearchActionsTool()
	s.addGetTechniqueStatsTool()
}

// --- find_similar_techniques ---

func (s *Server) addFindSimilarTechniquesTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "find_similar_techniques",
			Title: "Find similar mission actions by vector similarity",
			Description: `Embed the query text and return the mission actions whose technique/result text is most similar by cosine similarity, optionally restricted to one mission.

USE when:
- About to try a technique and want to know if something close to it has already been tried, and what happened

Example:
  {"query": "bypass IP allowlist using forwarded headers", "k": 5, "min_similarity": 0.7}

Result format: JSON array of {action, score}, ordered by descending score.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":          map[string]any{"type": "string"},
					"mission_id":     map[string]any{"type": "string", "description": "Restrict to one mission's actions."},
					"k":              map[string]any{"type": "integer", "description": "Max results, defaults to 10."},
					"min_similarity": map[string]any{"type": "number", "description": "Cosine similarity floor, defaults to 0."},
				},
				"required": []string{"query"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, Title: "Find Similar Techniques"},
		},
		s.loggedTool("find_similar_techniques", s.handleFindSimilarTechniques),
	)
}

type findSimilarTechniquesArgs struct {
	Query         string   `json:"query"`
	MissionID     string   `json:"mission_id"`
	K             int      `json:"k"`
	MinSimilarity *float64 `json:"min_similarity"`
}

func (s *Server) handleFindSimilarTechniques(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args findSimilarTechniquesArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	if args.Query == "" {
		return fail(apperr.New(apperr.ValidationFailed, "query is required")), nil
	}

	missionID, err := coerce.UUID("mission_id", args.MissionID)
	if err != nil {
		return fail(err), nil
	}

	queryVec, err := s.cfg.Embed.Embed(ctx, args.Query)
	if err != nil {
		return fail(err), nil
	}

	minSimilarity := 0.0
	if args.MinSimilarity != nil {
		minSimilarity = *args.MinSimilarity
	}

	results, err := s.cfg.Store.FindSimilarActions(ctx, queryVec, missionID, coerce.IntOr(args.K, 10), minSimilarity)
	if err != nil {
		return fail(err), nil
	}
	return ok(results, ""), nil
}

// --- search_techniques ---

func (s *Server) addSearchActionsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "search_techniques",
			Title: "Search mission actions by success and technique substring",
			Description: `Filter recorded mission actions by whether they succeeded, a substring of the technique text, and/or the success rate of the mission they belong to, across all missions.

USE when:
- You want every successful attempt at a category of technique, not just the most similar by embedding
- You only trust techniques drawn from missions that were largely successful overall`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"success_only":        map[string]any{"type": "boolean", "description": "Only return actions marked success=true."},
					"min_success_rate":     map[string]any{"type": "number", "description": "Only return actions from missions whose own action success rate is at least this (0-1)."},
					"technique_substring":  map[string]any{"type": "string"},
					"limit":                map[string]any{"type": "integer", "description": "Defaults to 50."},
				},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, Title: "Search Techniques"},
		},
		s.loggedTool("search_techniques", s.handleSearchActions),
	)
}

// searchActionsArgs intentionally has no mission_type field: nothing
// elsewhere in the mission model defines a mission-type taxonomy (a
// Mission has a name, goal, hypothesis, and scope, not a type), so there
// is nothing for such a filter to match against.
type searchActionsArgs struct {
	SuccessOnly        *bool    `json:"success_only"`
	MinSuccessRate     *float64 `json:"min_success_rate"`
	TechniqueSubstring string   `json:"technique_substring"`
	Limit              int      `json:"limit"`
}

func (s *Server) handleSearchActions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args searchActionsArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}

	var techniqueSubstring *string
	if args.TechniqueSubstring != "" {
		techniqueSubstring = &args.TechniqueSubstring
	}

	actions, err := s.cfg.Store.SearchActions(ctx, args.SuccessOnly, techniqueSubstring, coerce.Float64Or(args.MinSuccessRate, 0), coerce.IntOr(args.Limit, 50))
	if err != nil {
		return fail(err), nil
	}
	return ok(actions, ""), nil
}

// --- get_technique_stats ---

func (s *Server) addGetTechniqueStatsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "get_technique_stats",
			Title: "Get usage stats for an exact technique string",
			Description: `Return how many times a technique (matched exactly) has been recorded, its success rate, and the most recent action that used it.

USE when:
- Deciding whether a specific technique is worth trying again`,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"technique": map[string]any{"type": "string"}},
				"required":   []string{"technique"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, Title: "Get Technique Stats"},
		},
		s.loggedTool("get_technique_stats", s.handleGetTechniqueStats),
	)
}

type getTechniqueStatsArgs struct {
	Technique string `json:"technique"`
}

func (s *Server) handleGetTechniqueStats(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args getTechniqueStatsArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	if args.Technique == "" {
		return fail(apperr.New(apperr.ValidationFailed, "technique is required")), nil
	}

	stats, err := s.cfg.Store.GetTechniqueStats(ctx, args.Technique)
	if err != nil {
		return fail(err), nil
	}
	return ok(stats, ""), nil
}
