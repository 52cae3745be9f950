// Package gatewaymcp exposes the Store, HTTP Executor, Cookie Profile
// Cache, and Mission Context Manager as an MCP tool/resource surface: one
// Server per process, wrapping an *mcp.Server with transport plumbing
// (stdio and streamable HTTP/SSE) and a per-connection Mission Context
// Manager, with the CORS/health/panic-recovery/SSE-keep-alive middleware
// stack any long-lived MCP gateway needs regardless of what tools sit
// behind it.
package gatewaymcp

import (
	"context"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/redwire/redwire/internal/cookiecache"
	"github.com/redwire/redwire/internal/embedder"
	"github.com/redwire/redwire/internal/httpexec"
	"github.com/redwire/redwire/internal/logging"
	"github.com/redwire/redwire/internal/missionctx"
	"github.com/redwire/redwire/internal/store"
	"github.com/redwire/redwire/internal/telemetry"
	"github.com/redwire/redwire/pkg/defaults"
)

// Typed logging level constants — the MCP SDK defines LoggingLevel as a raw
// string type without exported constants.
const (
	logInfo    mcp.LoggingLevel = "info"
	logWarning mcp.LoggingLevel = "warning"
)

// Config holds the dependencies a Server wires into every tool and
// resource handler.
type Config struct {
	Store    *store.Store
	Embed    embedder.Embedder
	Cookies  *cookiecache.Cache
	Exec     *httpexec.Executor
	Pipeline *logging.Pipeline
	Dispatch *logging.Dispatcher
	Log      *zap.Logger
	Metrics  *telemetry.Metrics

	// PromptsDir and BuiltinPromptsDir back the prompt:// resource's
	// override-then-fallback lookup.
	PromptsDir        string
	BuiltinPromptsDir string
}

// Server wraps the MCP server with the gateway's tool/resource surface.
type Server struct {
	mcp     *mcp.Server
	cfg     *Config
	log     *zap.Logger
	mission *missionctx.Manager
	metrics *telemetry.Metrics
	ready   atomic.Bool
}

// MCPServer returns the underlying MCP server for direct access (e.g. testing).
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// MarkReady signals that startup (migrations, cache warmup) passed. Until
// called, /health reports 503.
func (s *Server) MarkReady() { s.ready.Store(true) }

// IsReady reports whether the server has completed startup.
func (s *Server) IsReady() bool { return s.ready.Load() }

// New creates a Server with all tools, resources, and prompts registered.
func New(cfg *Config) *Server {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}

	// cfg.Store is a typed nil when the Config carries no Store; assigning
	// it straight to the MissionGetter
	// interface would produce a non-nil interface wrapping a nil pointer,
	// so the Manager's own nil check would never trigger. Pass a literal
	// nil interface instead.
	var missionStore missionctx.MissionGetter
	if cfg.Store != nil {
		missionStore = cfg.Store
	}

	s := &Server{
		cfg:     cfg,
		log:     cfg.Log,
		mission: missionctx.New(missionStore),
		metrics: cfg.Metrics,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "redwire",
			Title:   "Redwire Testing Gateway",
			Version: defaults.Version,
		},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)

	if cfg.Dispatch != nil {
		cfg.Dispatch.Register(newZapHook(cfg.Log))
	}

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// RunStdio runs the MCP server over stdio transport, the mode used by
// single-process agent integrations (IDE extensions, CLI copilots).
func (s *Server) RunStdio(ctx context.Context) error {
	log.Println("[redwire] stdio transport")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns an http.Handler mounting the streamable HTTP and SSE
// transports plus /health, wrapped in the gateway's CORS/recovery/security
// middleware stack.
//
//   - /health  → readiness/liveness probe (GET only)
//   - /metrics → Prometheus scrape endpoint
//   - /sse     → legacy SSE transport for older MCP clients
//   - /mcp     → streamable HTTP transport (2025-03-26 spec)
//   - /        → streamable HTTP transport (default mount)
func (s *Server) HTTPHandler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return s.mcp },
		&mcp.StreamableHTTPOptions{Stateless: false},
	)
	sse := mcp.NewSSEHandler(
		func(_ *http.Request) *mcp.Server { return s.mcp },
		nil,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", telemetry.Handler())
	mux.Handle("/sse", sseKeepAlive(sse))
	mux.Handle("/mcp", streamable)
	mux.Handle("/", streamable)

	return corsMiddleware(recoveryMiddleware(s.log, securityHeaders(mux)))
}

// handleHealth serves a readiness/liveness probe: 503 until MarkReady is
// called, 200 after.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if !s.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting","service":"redwire"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"redwire"}`))
}

// corsMiddleware wraps an http.Handler with permissive CORS headers
// required by browser-based MCP clients and cross-origin integrations.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		w.Header().Add("Vary", "Origin")

		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{
			"Content-Type", "Authorization", "Mcp-Session-Id",
			"MCP-Protocol-Version", "Last-Event-ID", "Accept",
		}, ", "))
		w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id, MCP-Protocol-Version")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const sseKeepAliveInterval = 15 * time.Second

// recoveryMiddleware catches panics in HTTP handlers and returns a 500
// instead of killing the connection.
func recoveryMiddleware(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("panic in HTTP handler", zap.Any("panic", err), zap.ByteString("stack", debug.Stack()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// securityHeaders adds standard defense-in-depth headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

func sseKeepAlive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
			next.ServeHTTP(w, r)
			return
		}
		flusher, isFlusher := w.(http.Flusher)
		if !isFlusher {
			next.ServeHTTP(w, r)
			return
		}
		kw := &keepAliveWriter{ResponseWriter: w, flusher: flusher, done: make(chan struct{})}
		go kw.keepAliveLoop()
		defer close(kw.done)
		next.ServeHTTP(kw, r)
	})
}

// keepAliveWriter wraps http.ResponseWriter to send SSE keep-alive
// comments, serializing writes against the keep-alive goroutine.
type keepAliveWriter struct {
	mu sync.Mutex
	http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
}

func (kw *keepAliveWriter) Write(p []byte) (int, error) {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	return kw.ResponseWriter.Write(p)
}

func (kw *keepAliveWriter) Flush() {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	kw.flusher.Flush()
}

func (kw *keepAliveWriter) Unwrap() http.ResponseWriter { return kw.ResponseWriter }

func (kw *keepAliveWriter) keepAliveLoop() {
	ticker := time.NewTicker(sseKeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-kw.done:
			return
		case <-ticker.C:
			kw.mu.Lock()
			_, err := kw.ResponseWriter.Write([]byte(": keepalive\n\n"))
			if err != nil {
				kw.mu.Unlock()
				return
			}
			kw.flusher.Flush()
			kw.mu.Unlock()
		}
	}
}

// notifyProgress sends a progress notification if the caller supplied a
// progress token. Best-effort: failure has no effect on tool execution.
func notifyProgress(ctx context.Context, req *mcp.CallToolRequest, progress, total float64, message string) {
	token := req.Params.GetProgressToken()
	if token == nil || req.Session == nil {
		return
	}
	_ = req.Session.NotifyProgress(ctx, &mcp.ProgressNotificationParams{
		ProgressToken: token,
		Progress:      progress,
		Total:         total,
		Message:       message,
	})
}

// logToSession sends a structured log message to the MCP client. Best
// effort: failure has no effect on tool execution.
func logToSession(ctx context.Context, req *mcp.CallToolRequest, level mcp.LoggingLevel, data any) {
	if req.Session == nil {
		return
	}
	_ = req.Session.Log(ctx, &mcp.LoggingMessageParams{
		Level:  level,
		Logger: "redwire",
		Data:   data,
	})
}

const serverInstructions = `You are operating redwire, an instrumented HTTP-request gateway for AI-assisted security testing.

Every outbound request you make through http_request is persisted with its full request/response pair, automatically attributed to the target host, and linked to your active mission's latest action if one is set. Nothing you send through this gateway is lost between sessions — use get_target_context and search tools to pick up where a prior session left off rather than re-discovering a target from scratch.

CORE WORKFLOW:
1. create_target (or let http_request auto-create one from a URL) to establish the host/port/protocol triple you're testing.
2. create_mission to open a bounded engagement against one or more targets, with a goal and a working hypothesis.
3. set_mission_context to make that mission (and optionally a cookie profile) the implicit context for every subsequent http_request and record_action call — you no longer need to pass mission_id on every call.
4. http_request to issue requests. Each one is logged, attributed, and — if a mission is active — linked to the mission's latest action.
5. record_action after trying a technique, to capture what you did, why, what happened, and what you learned; this also relinks your most recent requests to the new action so evidence stays attached to the right step.
6. Before repeating a technique, call get_technique_stats or find_similar_techniques to see whether it (or something close to it) has already been tried against this mission or others, and what the outcome was.
7. add_to_library to promote a technique that generalises beyond one target; search_library to recall one later.
8. add_target_note for observations that don't belong in the structured technique/action record (odd headers, partial WAF fingerprints, login quirks).

Cookie profiles are named, cached credential bundles — read the cookie-profiles:// resource to list them before referencing one by name in set_mission_context or http_request's cookie_profile field.

All tools return {"ok": true, "result": ...} on success or {"ok": false, "error": {...}} on failure; a failed tool call never raises a protocol-level error unless the call itself was malformed.`
