// Package httpexec performs the gateway's one primitive outbound operation:
// executing a single HTTP request on behalf of an agent and handing the
// completed exchange to a logging sink. Built on net/http with a custom
// CheckRedirect, configurable Timeout, and optional Transport.Proxy.
package httpexec

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/cookiecache"
	"github.com/redwire/redwire/internal/telemetry"
	"github.com/redwire/redwire/pkg/defaults"
)

// Method is one of the HTTP verbs the executor accepts.
type Method string

const (
	MethodGET     Method = "GET"
	MethodPOST    Method = "POST"
	MethodPUT     Method = "PUT"
	MethodPATCH   Method = "PATCH"
	MethodDELETE  Method = "DELETE"
	MethodHEAD    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

var validMethods = map[Method]bool{
	MethodGET: true, MethodPOST: true, MethodPUT: true, MethodPATCH: true,
	MethodDELETE: true, MethodHEAD: true, MethodOptions: true,
}

// Auth carries either basic or bearer credentials for a request. At most
// one of the two forms should be set; Bearer wins if both are.
type Auth struct {
	User   string
	Pass   string
	Bearer string
}

// RequestSpec is the agent-facing description of a single HTTP call,
// mirroring the request_spec fields of the Tool Surface's HTTP-issuing
// tools.
type RequestSpec struct {
	URL             string
	Method          Method
	Headers         map[string]string
	QueryParams     map[string]string
	Cookies         map[string]string
	Auth            *Auth
	Body            []byte
	FollowRedirects bool
	MaxRedirects    int
	TimeoutMS       int
	VerifyTLS       bool
	ProxyURL        string
	CookieProfile   string
	MissionID       string
}

// WithDefaults returns a copy of spec with zero-valued optional fields
// filled from the gateway's canonical defaults.
func (s RequestSpec) WithDefaults() RequestSpec {
	if s.Method == "" {
		s.Method = MethodGET
	}
	if s.TimeoutMS == 0 {
		s.TimeoutMS = defaults.TimeoutMS
	}
	if s.MaxRedirects == 0 {
		s.MaxRedirects = defaults.MaxRedirects
	}
	return s
}

// Envelope is the response the executor returns: status, headers, body
// (possibly truncated upstream by the logging pipeline, not here), timing,
// final URL after redirects, and a transport-level error string set iff
// the transfer failed with no response at all.
type Envelope struct {
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers"`
	Body      []byte            `json:"body"`
	ElapsedMS int64             `json:"elapsed_ms"`
	FinalURL  string            `json:"final_url"`
	Error     string            `json:"error"`
}

// Sink receives the effective request (after defaulting and cookie-profile
// merging) and its envelope after every completed Execute call, success or
// transport failure alike. Implementations must never block Execute's
// caller on anything beyond their own best-effort recording — internal/
// logging.Pipeline implements this so that a logging failure never causes
// Execute itself to fail.
type Sink interface {
	Record(ctx context.Context, spec *RequestSpec, env *Envelope)
}

// Executor performs outbound HTTP calls. One Executor is shared across all
// connections; it holds no per-call mutable state.
type Executor struct {
	cookies *cookiecache.Cache
	sink    Sink
	metrics *telemetry.Metrics
}

// New returns an Executor that resolves cookie_profile via cookies (may be
// nil to disable profile resolution) and hands every completed exchange to
// sink (may be nil to disable logging).
func New(cookies *cookiecache.Cache, sink Sink) *Executor {
	return &Executor{cookies: cookies, sink: sink}
}

// WithMetrics attaches Prometheus collectors that Execute updates on every
// call. Returns e for chaining; m may be nil to disable metrics.
func (e *Executor) WithMetrics(m *telemetry.Metrics) *Executor {
	e.metrics = m
	return e
}

// Execute performs the transfer described by spec and returns its
// envelope. The effective request (after defaulting and profile merging)
// and the envelope are always handed to the Sink, even on transport
// failure; Sink errors never propagate back to the caller.
func (e *Executor) Execute(ctx context.Context, spec RequestSpec) (*Envelope, error) {
	effective := spec.WithDefaults()

	if effective.URL == "" {
		return nil, apperr.New(apperr.ValidationFailed, "url is required")
	}
	if !validMethods[effective.Method] {
		return nil, apperr.New(apperr.ValidationFailed, "unsupported method %q", effective.Method)
	}

	if err := e.mergeCookieProfile(ctx, &effective); err != nil {
		return nil, err
	}

	env := e.doRequest(ctx, &effective)

	if e.metrics != nil {
		result := "success"
		if env.Error != "" {
			result = "error"
		}
		e.metrics.HTTPRequests.WithLabelValues(result).Inc()
		e.metrics.HTTPDuration.Observe(float64(env.ElapsedMS) / 1000)
	}

	if e.sink != nil {
		e.sink.Record(ctx, &effective, env)
	}

	return env, nil
}

// mergeCookieProfile resolves spec.CookieProfile (if set) and merges its
// cookies under the explicit Cookies map, so explicit entries override
// profile entries by key.
func (e *Executor) mergeCookieProfile(ctx context.Context, spec *RequestSpec) error {
	if spec.CookieProfile == "" || e.cookies == nil {
		return nil
	}
	result, err := e.cookies.Get(ctx, spec.CookieProfile)
	if err != nil {
		return err
	}
	merged := make(map[string]string, len(result.Cookies)+len(spec.Cookies))
	for k, v := range result.Cookies {
		merged[k] = v
	}
	for k, v := range spec.Cookies {
		merged[k] = v
	}
	spec.Cookies = merged
	return nil
}

func (e *Executor) doRequest(ctx context.Context, spec *RequestSpec) *Envelope {
	req, err := e.buildRequest(ctx, spec)
	if err != nil {
		return &Envelope{Error: err.Error()}
	}

	client, err := e.buildClient(spec)
	if err != nil {
		return &Envelope{Error: err.Error()}
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return &Envelope{ElapsedMS: elapsed, Error: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Envelope{
			Status:    resp.StatusCode,
			ElapsedMS: elapsed,
			FinalURL:  resp.Request.URL.String(),
			Error:     fmt.Sprintf("reading response body: %v", err),
		}
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &Envelope{
		Status:    resp.StatusCode,
		Headers:   headers,
		Body:      body,
		ElapsedMS: elapsed,
		FinalURL:  resp.Request.URL.String(),
	}
}

func (e *Executor) buildRequest(ctx context.Context, spec *RequestSpec) (*http.Request, error) {
	u, err := url.Parse(spec.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	if len(spec.QueryParams) > 0 {
		q := u.Query()
		for k, v := range spec.QueryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var bodyReader io.Reader
	if len(spec.Body) > 0 {
		bodyReader = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, string(spec.Method), u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", defaults.UAMinimal)
	}
	for name, value := range spec.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	applyAuth(req, spec.Auth)

	return req, nil
}

func applyAuth(req *http.Request, auth *Auth) {
	if auth == nil {
		return
	}
	if auth.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+auth.Bearer)
		return
	}
	if auth.User != "" || auth.Pass != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(auth.User + ":" + auth.Pass))
		req.Header.Set("Authorization", "Basic "+creds)
	}
}

func (e *Executor) buildClient(spec *RequestSpec) (*http.Client, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !spec.VerifyTLS},
	}
	if spec.ProxyURL != "" {
		proxyURL, err := url.Parse(spec.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy_url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   time.Duration(spec.TimeoutMS) * time.Millisecond,
	}

	if !spec.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else {
		maxRedirects := spec.MaxRedirects
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		}
	}

	return client, nil
}

// ParseHostPortProtocol splits a final URL into the (host, port, protocol)
// triple the Logging Pipeline attributes a request to. Returns an error if
// the URL cannot be parsed; callers should treat that as "skip target
// attribution", not a fatal condition.
func ParseHostPortProtocol(rawURL string) (host string, port int, protocol string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, "", err
	}
	if u.Host == "" {
		return "", 0, "", fmt.Errorf("url has no host: %s", rawURL)
	}

	hostname := u.Hostname()
	protocol = strings.ToLower(u.Scheme)
	if protocol == "" {
		protocol = "https"
	}

	if p := u.Port(); p != "" {
		var parsed int
		if _, scanErr := fmt.Sscanf(p, "%d", &parsed); scanErr == nil {
			return hostname, parsed, protocol, nil
		}
	}
	if protocol == "http" {
		return hostname, defaults.PortHTTP, protocol, nil
	}
	return hostname, defaults.PortHTTPS, protocol, nil
}
