// Package logging implements the Logging Pipeline: the best-effort,
// six-step write path that turns a completed HTTP Executor exchange into
// Store rows (target attribution, the HttpRequest record, and mission
// action linkage) without ever failing the call that produced it.
// Implements httpexec.Sink.
package logging

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/redwire/redwire/internal/domain"
	"github.com/redwire/redwire/internal/httpexec"
	"github.com/redwire/redwire/internal/telemetry"
)

// sensitiveRedactedValue is the fixed sentinel written in place of a
// redacted header's value.
const sensitiveRedactedValue = "[REDACTED]"

// Repository is the subset of *store.Store the pipeline depends on,
// narrowed to an interface so tests can substitute a fake without a
// pgxmock-backed Store.
type Repository interface {
	UpsertTarget(ctx context.Context, host string, port *int, protocol domain.Protocol, status domain.TargetStatus, risk domain.RiskLevel, title string) (*domain.Target, bool, error)
	InsertRequest(ctx context.Context, r *domain.HttpRequest) (*domain.HttpRequest, error)
	LatestAction(ctx context.Context, missionID uuid.UUID) (*domain.MissionAction, error)
	LinkRequestToAction(ctx context.Context, requestID, actionID uuid.UUID) error
	BumpLastActivity(ctx context.Context, id uuid.UUID) error
}

// Pipeline implements httpexec.Sink, persisting every completed exchange
// through a sequence of independently-recovered steps: URL attribution,
// target upsert, request insertion, mission-action linkage, and a
// last-activity bump. A nil Repository degrades the pipeline to a no-op,
// matching the HTTP Executor's "still runs without a Store" mode.
type Pipeline struct {
	repo              Repository
	log               *zap.Logger
	dispatch          *Dispatcher
	metrics           *telemetry.Metrics
	sensitiveHeaders  map[string]struct{}
	bodyTruncateLimit int
}

// WithMetrics attaches Prometheus collectors that fail increments on every
// swallowed step failure. Returns p for chaining; m may be nil to disable.
func (p *Pipeline) WithMetrics(m *telemetry.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// Config configures a Pipeline.
type Config struct {
	SensitiveHeaders  []string
	BodyTruncateLimit int
}

// New builds a Pipeline. dispatch may be nil to disable side-channel event
// reporting (every step still logs through logger regardless).
func New(repo Repository, logger *zap.Logger, dispatch *Dispatcher, cfg Config) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.BodyTruncateLimit
	if limit <= 0 {
		limit = 1 * 1024 * 1024
	}
	sensitive := make(map[string]struct{}, len(cfg.SensitiveHeaders))
	for _, h := range cfg.SensitiveHeaders {
		sensitive[strings.ToLower(h)] = struct{}{}
	}
	return &Pipeline{
		repo:              repo,
		log:               logger.Named("logging"),
		dispatch:          dispatch,
		sensitiveHeaders:  sensitive,
		bodyTruncateLimit: limit,
	}
}

// Record implements httpexec.Sink. Every step is independently recovered:
// a failure in one step is logged and reported on the side channel, and
// the remaining steps still run where they do not depend on its output.
func (p *Pipeline) Record(ctx context.Context, spec *httpexec.RequestSpec, env *httpexec.Envelope) {
	if p.repo == nil {
		return
	}

	record := &domain.HttpRequest{
		Method:           string(spec.Method),
		URL:              spec.URL,
		QueryParams:      spec.QueryParams,
		RequestHeaders:   redactHeaders(spec.Headers, p.sensitiveHeaders),
		RequestCookies:   spec.Cookies,
		RequestBody:      truncate(spec.Body, p.bodyTruncateLimit),
		RequestBodySize:  int64(len(spec.Body)),
		ResponseHeaders:  redactHeaders(env.Headers, p.sensitiveHeaders),
		ResponseBody:     truncate(env.Body, p.bodyTruncateLimit),
		ResponseBodySize: int64(len(env.Body)),
		ElapsedMS:        env.ElapsedMS,
		Error:            env.Error,
	}
	if env.Status != 0 {
		status := env.Status
		record.StatusCode = &status
	}

	// Step 1: parse the final URL (or the request URL, if the transfer
	// never produced one) into host/port/protocol.
	attributionURL := env.FinalURL
	if attributionURL == "" {
		attributionURL = spec.URL
	}
	host, port, protocol, err := httpexec.ParseHostPortProtocol(attributionURL)
	if err != nil {
		p.fail(ctx, "parse_url", "", err)
		host = ""
	} else {
		record.Host = host
		record.Path = pathOf(attributionURL)
	}

	// Step 2: upsert the target, if URL parsing succeeded.
	var target *domain.Target
	if host != "" {
		portPtr := (*int)(nil)
		if port != 0 {
			portPtr = &port
		}
		t, _, err := p.repo.UpsertTarget(ctx, host, portPtr, domain.Protocol(protocol), domain.TargetActive, domain.RiskMedium, "")
		if err != nil {
			p.fail(ctx, "upsert_target", "", err)
		} else {
			target = t
			record.TargetID = &t.ID
		}
	}

	// Steps 3 and 4 (truncation, redaction) already happened while
	// building record above; nothing here can fail independently of the
	// byte slices already in hand.

	// Step 5: insert the request.
	inserted, err := p.repo.InsertRequest(ctx, record)
	if err != nil {
		p.fail(ctx, "insert_request", "", err)
		return // nothing has an id to link or bump against.
	}

	// Step 6: link to the active mission's latest action, if any.
	if spec.MissionID != "" {
		missionID, err := uuid.Parse(spec.MissionID)
		if err != nil {
			p.fail(ctx, "link_action", inserted.ID.String(), err)
		} else if action, err := p.repo.LatestAction(ctx, missionID); err != nil {
			p.fail(ctx, "link_action", inserted.ID.String(), err)
		} else if action != nil {
			if err := p.repo.LinkRequestToAction(ctx, inserted.ID, action.ID); err != nil {
				p.fail(ctx, "link_action", inserted.ID.String(), err)
			}
		}
	}

	// Step 7: bump the target's last_activity.
	if target != nil {
		if err := p.repo.BumpLastActivity(ctx, target.ID); err != nil {
			p.fail(ctx, "bump_last_activity", inserted.ID.String(), err)
		}
	}
}

func (p *Pipeline) fail(ctx context.Context, step, requestID string, err error) {
	p.log.Warn("logging pipeline step failed", zap.String("step", step), zap.Error(err))
	if p.metrics != nil {
		p.metrics.LoggingFailures.WithLabelValues(step).Inc()
	}
	if p.dispatch != nil {
		p.dispatch.Dispatch(ctx, Event{Step: step, RequestID: requestID, Err: err})
	}
}

func redactHeaders(headers map[string]string, sensitive map[string]struct{}) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, hit := sensitive[strings.ToLower(k)]; hit {
			out[k] = sensitiveRedactedValue
		} else {
			out[k] = v
		}
	}
	return out
}

func truncate(body []byte, limit int) []byte {
	if len(body) <= limit {
		return body
	}
	return body[:limit]
}

// pathOf extracts the path component from a URL string, tolerating a
// malformed trailing fragment since the caller has already confirmed the
// URL parses for host/port/protocol purposes.
func pathOf(rawURL string) string {
	idx := strings.Index(rawURL, "://")
	if idx < 0 {
		return ""
	}
	rest := rawURL[idx+3:]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "/"
	}
	path := rest[slash:]
	if q := strings.IndexByte(path, '?'); q >= 0 {
		path = path[:q]
	}
	return path
}
