package gatewaymcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/gatewaymcp/coerce"
)

func (s *Server) registerLibraryTools() {
	s.addAddToLibraryTool()
	s.addSearchLibraryTool()
	s.addGetLibraryStatsTool()
}

// --- add_to_library ---

func (s *Server) addAddToLibraryTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "add_to_library",
			Title: "Promote a technique to the reusable library",
			Description: `Add a curated, reusable technique entry to the technique library, distinct from mission-scoped actions. Content is embedded so search_library can recall it by similarity later.

USE when:
- A technique you recorded for one mission generalises beyond that target and is worth recalling for future engagements

Example:
  {"title": "XFF-based allowlist bypass", "content": "Spoof X-Forwarded-For with an allowlisted address when the app trusts it over the real peer address.", "category": "access-control", "tags": ["header-spoofing", "allowlist"]}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":    map[string]any{"type": "string"},
					"content":  map[string]any{"type": "string"},
					"category": map[string]any{"type": "string"},
					"tags":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"metadata": map[string]any{"type": "object"},
				},
				"required": []string{"title", "content"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: false, Title: "Add To Library"},
		},
		s.loggedTool("add_to_library", s.handleAddToLibrary),
	)
}

type addToLibraryArgs struct {
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Category string         `json:"category"`
	Tags     []string       `json:"tags"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) handleAddToLibrary(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args addToLibraryArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	if args.Title == "" || args.Content == "" {
		return fail(apperr.New(apperr.ValidationFailed, "title and content are required")), nil
	}

	contentEmb, err := s.cfg.Embed.Embed(ctx, args.Content)
	if err != nil {
		return fail(err), nil
	}

	const duplicateThreshold = 0.9
	existing, err := s.cfg.Store.SearchLibraryByText(ctx, contentEmb, 1, duplicateThreshold, "")
	if err != nil {
		return fail(err), nil
	}
	if len(existing) > 0 {
		return fail(apperr.New(apperr.Duplicate, "content closely matches existing library entry %s (score %.3f)", existing[0].Entry.ID, existing[0].Score)), nil
	}

	entry, err := s.cfg.Store.AddLibraryEntry(ctx, args.Title, args.Content, contentEmb, args.Category, args.Tags, args.Metadata)
	if err != nil {
		return fail(err), nil
	}
	return ok(entry, ""), nil
}

// --- search_library ---

func (s *Server) addSearchLibraryTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "search_library",
			Title: "Search the technique library by similarity",
			Description: `Embed the query text and return the most similar library entries by cosine similarity. Every returned entry's usage count is bumped, surfacing frequently-useful techniques over time.

USE when:
- Facing a new target and want to recall techniques that have proven useful elsewhere

Example:
  {"query": "bypass rate limiting on a login endpoint", "k": 5, "min_similarity": 0.6}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":          map[string]any{"type": "string"},
					"k":              map[string]any{"type": "integer", "description": "Defaults to 10."},
					"min_similarity": map[string]any{"type": "number", "description": "Defaults to 0.5."},
					"category":       map[string]any{"type": "string", "description": "Restrict results to one category."},
				},
				"required": []string{"query"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: false, Title: "Search Library"},
		},
		s.loggedTool("search_library", s.handleSearchLibrary),
	)
}

type searchLibraryArgs struct {
	Query         string   `json:"query"`
	K             int      `json:"k"`
	MinSimilarity *float64 `json:"min_similarity"`
	Category      string   `json:"category"`
}

func (s *Server) handleSearchLibrary(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args searchLibraryArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	if args.Query == "" {
		return fail(apperr.New(apperr.ValidationFailed, "query is required")), nil
	}

	queryEmb, err := s.cfg.Embed.Embed(ctx, args.Query)
	if err != nil {
		return fail(err), nil
	}

	minSimilarity := 0.5
	if args.MinSimilarity != nil {
		minSimilarity = *args.MinSimilarity
	}

	results, err := s.cfg.Store.SearchLibraryByText(ctx, queryEmb, coerce.IntOr(args.K, 10), minSimilarity, args.Category)
	if err != nil {
		return fail(err), nil
	}
	return ok(results, ""), nil
}

// --- get_library_stats ---

func (s *Server) addGetLibraryStatsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "get_library_stats",
			Title: "Get technique library statistics",
			Description: `Return the library's total entry count, total cumulative usage, and a per-category breakdown.`,
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, Title: "Get Library Stats"},
		},
		s.loggedTool("get_library_stats", s.handleGetLibraryStats),
	)
}

func (s *Server) handleGetLibraryStats(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.cfg.Store.GetLibraryStats(ctx)
	if err != nil {
		return fail(err), nil
	}
	return ok(stats, ""), nil
}
