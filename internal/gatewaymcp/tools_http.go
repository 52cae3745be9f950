package gatewaymcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/gatewaymcp/coerce"
	"github.com/redwire/redwire/internal/httpexec"
)

func (s *Server) registerHTTPTools() {
	s.addHTTPRequestTool()
}

func (s *Server) addHTTPRequestTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "http_request",
			Title: "Issue an HTTP request",
			Description: `Issue a single outbound HTTP request through the gateway and receive its response. Every request/response pair is persisted: status, headers, body, timing, and the final URL after redirects, automatically attributed to a target and — if a mission is active — linked to the mission's latest recorded action.

USE when:
- You need to probe, fuzz, or otherwise exercise an HTTP endpoint during testing
- You want the result recorded against a target and mission automatically

DON'T USE when:
- You only want to read back history — use search tools or get_target_context instead

Example:
  {"url": "https://example.com/login", "method": "POST", "headers": {"Content-Type": "application/json"}, "body": "{\"user\":\"a\"}"}

Cookies: the profile named by "cookie_profile", or else the connection's active cookie profile set via set_mission_context, supplies the base cookies; entries in the explicit "cookies" field are merged over them and win by name.

Result format: JSON with fields: status (int), headers (object), body (string, base64-encoded), elapsed_ms (int), final_url (string), error (string, set only on transport failure with no response).`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url":              map[string]any{"type": "string", "description": "Absolute URL, including scheme."},
					"method":           map[string]any{"type": "string", "description": "HTTP method. Defaults to GET.", "enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}},
					"headers":          map[string]any{"type": "object", "description": "Request headers."},
					"query_params":     map[string]any{"type": "object", "description": "Query parameters appended to the URL."},
					"cookies":          map[string]any{"type": "object", "description": "Explicit cookies, overriding any cookie profile."},
					"cookie_profile":   map[string]any{"type": "string", "description": "Named cookie profile to resolve cookies from; explicit cookies override its entries by name."},
					"body":             map[string]any{"type": "string", "description": "Raw request body."},
					"auth_user":        map[string]any{"type": "string", "description": "Basic auth username."},
					"auth_pass":        map[string]any{"type": "string", "description": "Basic auth password."},
					"auth_bearer":      map[string]any{"type": "string", "description": "Bearer token, takes precedence over basic auth if both are set."},
					"follow_redirects": map[string]any{"type": "boolean", "description": "Follow redirects. Defaults to true."},
					"max_redirects":    map[string]any{"type": "integer", "description": "Redirect cap when follow_redirects is true."},
					"timeout_ms":       map[string]any{"type": "integer", "description": "Request timeout in milliseconds."},
					"verify_tls":       map[string]any{"type": "boolean", "description": "Verify TLS certificates. Defaults to true."},
					"proxy_url":        map[string]any{"type": "string", "description": "Upstream proxy to route the request through."},
					"mission_id":       map[string]any{"type": "string", "description": "Mission to attribute this request to, overriding the connection's active mission."},
				},
				"required": []string{"url"},
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: false, OpenWorldHint: boolPtr(true), Title: "HTTP Request"},
		},
		s.loggedTool("http_request", s.handleHTTPRequest),
	)
}

type httpRequestArgs struct {
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	Headers         map[string]string `json:"headers"`
	QueryParams     map[string]string `json:"query_params"`
	Cookies         map[string]string `json:"cookies"`
	CookieProfile   string            `json:"cookie_profile"`
	Body            string            `json:"body"`
	AuthUser        string            `json:"auth_user"`
	AuthPass        string            `json:"auth_pass"`
	AuthBearer      string            `json:"auth_bearer"`
	FollowRedirects *bool             `json:"follow_redirects"`
	MaxRedirects    int               `json:"max_redirects"`
	TimeoutMS       int               `json:"timeout_ms"`
	VerifyTLS       *bool             `json:"verify_tls"`
	ProxyURL        string            `json:"proxy_url"`
	MissionID       string            `json:"mission_id"`
}

func (s *Server) handleHTTPRequest(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args httpRequestArgs
	if err := parseArgs(req, &args); err != nil {
		return fail(err), nil
	}
	if args.URL == "" {
		return fail(apperr.New(apperr.ValidationFailed, "url is required")), nil
	}

	missionID, err := coerce.MissionID(args.MissionID)
	if err != nil {
		return fail(err), nil
	}
	resolvedMission := s.mission.ResolveMission(missionID)
	resolvedCookieProfile := s.mission.ResolveCookieProfile(args.CookieProfile)

	spec := httpexec.RequestSpec{
		URL:             args.URL,
		Method:          httpexec.Method(args.Method),
		Headers:         args.Headers,
		QueryParams:     args.QueryParams,
		Cookies:         args.Cookies,
		Body:            []byte(args.Body),
		FollowRedirects: coerce.BoolOr(args.FollowRedirects, true),
		MaxRedirects:    args.MaxRedirects,
		TimeoutMS:       args.TimeoutMS,
		VerifyTLS:       coerce.BoolOr(args.VerifyTLS, true),
		ProxyURL:        args.ProxyURL,
		CookieProfile:   resolvedCookieProfile,
	}
	if resolvedMission != nil {
		spec.MissionID = resolvedMission.String()
	}
	if args.AuthBearer != "" || args.AuthUser != "" {
		spec.Auth = &httpexec.Auth{User: args.AuthUser, Pass: args.AuthPass, Bearer: args.AuthBearer}
	}

	notifyProgress(ctx, req, 0, 1, "sending request")
	env, err := s.cfg.Exec.Execute(ctx, spec)
	if err != nil {
		return fail(err), nil
	}
	notifyProgress(ctx, req, 1, 1, "request complete")

	note := ""
	if resolvedMission != nil {
		note = s.missionContextNote(ctx, *resolvedMission)
	}
	return ok(env, note), nil
}
