package gatewaymcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"

	"github.com/redwire/redwire/internal/apperr"
)

// registerResources adds the cookie-session and prompt-guide resource
// schemes to the underlying MCP server.
func (s *Server) registerResources() {
	s.addCookieProfilesResource()
	s.addCookieSessionResource()
	s.addPromptGuideResource()
}

// ─────────────────────────────────────────────────────────────────────────
// cookie-profiles://
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) addCookieProfilesResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         "cookie-profiles://",
			Name:        "Cookie Profiles",
			Description: "Every cookie profile declared in the cookie sessions configuration file, by name, without resolving or loading its cookies.",
			MIMEType:    "application/json",
		},
		func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			profiles, err := s.cfg.Cookies.List(context.Background())
			if err != nil {
				return nil, err
			}
			type listedProfile struct {
				Name        string            `json:"name"`
				Description string            `json:"description,omitempty"`
				CacheTTL    int               `json:"cache_ttl"`
				Metadata    map[string]string `json:"metadata,omitempty"`
			}
			out := make([]listedProfile, 0, len(profiles))
			for _, p := range profiles {
				out = append(out, listedProfile{
					Name:        p.Name,
					Description: p.Description,
					CacheTTL:    p.CacheTTL,
					Metadata:    p.Metadata,
				})
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshaling cookie profiles: %w", err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
				},
			}, nil
		},
	)
}

var resourceProfileNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ─────────────────────────────────────────────────────────────────────────
// cookie-session://{profile_name}
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) addCookieSessionResource() {
	s.mcp.AddResourceTemplate(
		&mcp.ResourceTemplate{
			URITemplate: "cookie-session://{profile_name}",
			Name:        "Cookie Session Profile",
			Description: "A named bundle of authentication cookies loaded from disk: {cookies, last_updated, metadata}.",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			uri := req.Params.URI
			name := strings.TrimPrefix(uri, "cookie-session://")
			if name == "" || !resourceProfileNamePattern.MatchString(name) {
				return nil, apperr.New(apperr.ValidationFailed, "profile_name must match %s, got %q", resourceProfileNamePattern.String(), name)
			}

			result, err := s.cfg.Cookies.Get(ctx, name)
			if err != nil {
				return nil, err
			}
			body := struct {
				Cookies     map[string]string `json:"cookies"`
				LastUpdated string            `json:"last_updated"`
				Metadata    map[string]string `json:"metadata,omitempty"`
			}{
				Cookies:     result.Cookies,
				LastUpdated: result.LastUpdated.Format("2006-01-02T15:04:05Z07:00"),
				Metadata:    result.Metadata,
			}
			data, err := json.MarshalIndent(body, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshaling cookie session: %w", err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: uri, MIMEType: "application/json", Text: string(data)},
				},
			}, nil
		},
	)
}

// ─────────────────────────────────────────────────────────────────────────
// prompt://{guide_name}?format=json|yaml|markdown
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) addPromptGuideResource() {
	s.mcp.AddResourceTemplate(
		&mcp.ResourceTemplate{
			URITemplate: "prompt://{guide_name}",
			Name:        "Prompt Guide",
			Description: "A static guidance document. The configured user prompts directory wins over the built-in fallback. Accepts ?format=json|yaml|markdown; defaults to the file's own extension.",
			MIMEType:    "text/markdown",
		},
		func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			uri := req.Params.URI
			rest := strings.TrimPrefix(uri, "prompt://")
			name, format := splitPromptURI(rest)
			if name == "" {
				return nil, apperr.New(apperr.ValidationFailed, "guide_name is required in URI, e.g. prompt://recon-checklist")
			}

			path, raw, err := s.loadPromptGuide(name)
			if err != nil {
				return nil, err
			}

			text, mimeType, err := renderPromptGuide(raw, path, format)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: uri, MIMEType: mimeType, Text: text},
				},
			}, nil
		},
	)
}

// splitPromptURI pulls the guide name and optional format query parameter
// out of the trailing path/query segment of a prompt:// URI.
func splitPromptURI(rest string) (name, format string) {
	name = rest
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		name = rest[:idx]
		query := rest[idx+1:]
		for _, kv := range strings.Split(query, "&") {
			k, v, ok := strings.Cut(kv, "=")
			if ok && k == "format" {
				format = v
			}
		}
	}
	return name, format
}

// loadPromptGuide finds name (extension-agnostic) under the user prompts
// directory, falling back to the built-in directory, and returns its path
// and raw contents.
func (s *Server) loadPromptGuide(name string) (string, []byte, error) {
	dirs := []string{s.cfg.PromptsDir, s.cfg.BuiltinPromptsDir}
	exts := []string{".md", ".markdown", ".yaml", ".yml", ".txt"}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		for _, ext := range exts {
			path := filepath.Join(dir, name+ext)
			data, err := os.ReadFile(path)
			if err == nil {
				return path, data, nil
			}
		}
	}
	return "", nil, apperr.New(apperr.NotFound, "no prompt guide named %q", name)
}

// renderPromptGuide returns raw re-encoded as format, defaulting to the
// source file's own extension when format is empty.
func renderPromptGuide(raw []byte, path, format string) (string, string, error) {
	if format == "" {
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			format = "yaml"
		default:
			format = "markdown"
		}
	}

	switch format {
	case "markdown", "text", "":
		return string(raw), "text/markdown", nil
	case "json":
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			doc = map[string]string{"content": string(raw)}
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return "", "", fmt.Errorf("marshaling guide as json: %w", err)
		}
		return string(data), "application/json", nil
	case "yaml":
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			doc = map[string]string{"content": string(raw)}
		}
		data, err := yaml.Marshal(doc)
		if err != nil {
			return "", "", fmt.Errorf("marshaling guide as yaml: %w", err)
		}
		return string(data), "application/yaml", nil
	default:
		return "", "", apperr.New(apperr.ValidationFailed, "unsupported format %q, want json|yaml|markdown", format)
	}
}
