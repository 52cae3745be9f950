package gatewaymcp

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/gatewaymcp/coerce"
	"github.com/redwire/redwire/internal/store"
)

// envelope is the success/error shape every tool returns, per the tool
// surface's {ok, result, error, mission_context_note} contract.
type envelope struct {
	OK                 bool               `json:"ok"`
	Result             any                `json:"result,omitempty"`
	Error              *apperr.Structured `json:"error,omitempty"`
	MissionContextNote string             `json:"mission_context_note,omitempty"`
}

// textResult creates a CallToolResult with a single text content block.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// jsonResult marshals v to indented JSON and wraps it in a CallToolResult.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return textResult(string(data)), nil
}

// ok wraps a successful tool result in the envelope, logging and folding
// any marshaling failure into an error result rather than a protocol fault.
func ok(result any, missionNote string) *mcp.CallToolResult {
	res, err := jsonResult(envelope{OK: true, Result: result, MissionContextNote: missionNote})
	if err != nil {
		return errorResult(err.Error())
	}
	return res
}

// fail wraps err into the envelope's error shape, marking the result as an
// MCP error so the calling agent sees it without a protocol-level fault.
func fail(err error) *mcp.CallToolResult {
	res, marshalErr := jsonResult(envelope{OK: false, Error: apperr.As(err)})
	if marshalErr != nil {
		return errorResult(err.Error())
	}
	res.IsError = true
	return res
}

// errorResult creates an IsError CallToolResult so the LLM can see the error
// and self-correct rather than raising a protocol-level exception.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: msg}}, IsError: true}
}

// enrichedError creates a structured error response with recovery guidance
// for AI agents. The JSON envelope matches the enriched success responses so
// LLMs can use the same parsing logic for both success and error paths.
func enrichedError(msg string, recoverySteps []string) *mcp.CallToolResult {
	type errResponse struct {
		Error         string   `json:"error"`
		RecoverySteps []string `json:"recovery_steps"`
	}
	data, _ := json.MarshalIndent(errResponse{Error: msg, RecoverySteps: recoverySteps}, "", "  ")
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(data)}}, IsError: true}
}

// boolPtr returns a pointer to b. Used for optional bool fields in the SDK.
func boolPtr(b bool) *bool { return &b }

// store returns the configured Store, or a StoreUnavailable error if
// s.cfg.Store is nil. The target tools (create_target, update_target_status,
// get_target_summary) and missionContextNote call this before touching the
// Store; the other Store-backed handlers call s.cfg.Store directly and do
// not check it for nil.
func (s *Server) store() (*store.Store, error) {
	if s.cfg.Store == nil {
		return nil, apperr.New(apperr.StoreUnavailable, "the database is not configured; mission, target, and library tools are unavailable")
	}
	return s.cfg.Store, nil
}

// missionContextNote builds the "Logged to mission <id> (<name>)" note
// every mission-attributed tool result carries. Falls back to just the id
// if the mission lookup fails, since a note-formatting hiccup should never
// turn a successful tool call into a failed one.
func (s *Server) missionContextNote(ctx context.Context, missionID uuid.UUID) string {
	st, err := s.store()
	if err != nil {
		return "Logged to mission " + missionID.String()
	}
	m, err := st.GetMission(ctx, missionID)
	if err != nil || m == nil {
		return "Logged to mission " + missionID.String()
	}
	return fmt.Sprintf("Logged to mission %s (%s)", missionID, m.Name)
}

// parseArgs decodes the raw JSON arguments from a tool call into dst,
// applying coerce.Lenient's string-to-bool/int/JSON leniency first.
func parseArgs(req *mcp.CallToolRequest, dst any) error {
	return coerce.Lenient(req.Params.Arguments, dst)
}

// redactedArgKeys are argument fields never written to the per-call log
// line, mirroring the sensitive-header redaction applied to stored
// requests.
var redactedArgKeys = map[string]struct{}{
	"cookies": {}, "cookie": {}, "auth": {}, "password": {}, "token": {}, "authorization": {},
	"auth_pass": {}, "auth_bearer": {},
}

type toolHandlerFunc func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)

// loggedTool wraps handler with panic recovery, structured per-call
// logging (redacting sensitive argument fields), and tool-call metrics.
// Bound to the Server so every registerXTools call site stays a one-liner
// regardless of what cross-cutting concerns this wrapper accumulates.
func (s *Server) loggedTool(name string, handler toolHandlerFunc) mcp.ToolHandler {
	log := s.log
	return func(ctx context.Context, req *mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		start := time.Now()
		outcome := "ok"
		defer func() {
			if r := recover(); r != nil {
				log.Error("tool panic",
					zap.String("tool", name),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				result, err = fail(apperr.New(apperr.Internal, "internal panic in %s", name)), nil
				outcome = "panic"
			}
			if s.metrics != nil {
				s.metrics.ToolCalls.WithLabelValues(name, outcome).Inc()
				s.metrics.ToolCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			}
		}()

		log.Info("tool call", zap.String("tool", name), zap.Any("args", redactArgs(req.Params.Arguments)))
		res, err := handler(ctx, req)
		if err != nil {
			log.Warn("tool call failed", zap.String("tool", name), zap.Error(err))
			outcome = "error"
		} else if res != nil && res.IsError {
			outcome = "error"
		}
		return res, err
	}
}

func redactArgs(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	for k := range m {
		if _, hit := redactedArgKeys[k]; hit {
			m[k] = "[REDACTED]"
		}
	}
	return m
}
