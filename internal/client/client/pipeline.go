package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/talentdir/internal/client/identity"
	"github.com/dmitrijs2005/talentdir/internal/client/models"
	"github.com/dmitrijs2005/talentdir/internal/client/session"
	"github.com/dmitrijs2005/talentdir/internal/common"
	"github.com/dmitrijs2005/talentdir/internal/logging"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 8 << 20
	refreshKey   = "refresh"
)

// Navigator performs the client-side redirect to the login entry point.
type Navigator interface {
	RedirectToLogin(ctx context.Context)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context)

func (f NavigatorFunc) RedirectToLogin(ctx context.Context) { f(ctx) }

// RefreshState is the position of one original request in the token
// refresh protocol.
type RefreshState int

const (
	StateInitial RefreshState = iota
	StateRetrying
	StateRefreshed
	StateFailed
)

func (s RefreshState) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateRetrying:
		return "RETRYING"
	case StateRefreshed:
		return "REFRESHED"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("RefreshState(%d)", int(s))
}

// outcome is the decision taken after each send.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeNeedsRefresh
	outcomeFailed
)

// Request describes one logical API call. It is never mutated by the
// pipeline, so the same value can be re-sent after a refresh.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Anonymous requests carry no bearer token and never trigger a refresh.
	Anonymous bool
}

// Response is a successful (2xx) backend response with its body read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// attempt tracks one original request through the refresh protocol.
type attempt struct {
	req   Request
	state RefreshState
	token string
}

// Options configures a Pipeline. Zero values select defaults.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// CoalesceRefresh makes concurrent 401s share one refresh exchange.
	CoalesceRefresh bool
	Transport       http.RoundTripper
	Metrics         *Metrics
	Logger          logging.Logger
}

// Pipeline is the single choke point for backend calls. It injects the
// bearer token and session key, and runs the refresh protocol on 401.
type Pipeline struct {
	baseURL  *url.URL
	http     *http.Client
	timeout  time.Duration
	coalesce bool

	store *identity.Store
	keys  *session.Generator
	nav   Navigator

	refreshes singleflight.Group
	metrics   *Metrics
	log       logging.Logger
}

func NewPipeline(opts Options, store *identity.Store, keys *session.Generator, nav Navigator) (*Pipeline, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	if nav == nil {
		nav = NavigatorFunc(func(context.Context) {})
	}

	return &Pipeline{
		baseURL: base,
		http: &http.Client{
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "talentdir " + r.Method + " " + endpointTemplate(r.URL.Path)
				})),
		},
		timeout:  timeout,
		coalesce: opts.CoalesceRefresh,
		store:    store,
		keys:     keys,
		nav:      nav,
		metrics:  opts.Metrics,
		log:      log.With("component", "pipeline"),
	}, nil
}

// Do sends req and returns its response. A 401 is answered once by a token
// refresh and a re-send with the new token; the caller never sees the
// intermediate 401. When the session cannot be recovered the tokens are
// cleared, the navigator redirects to login and the error is returned.
func (p *Pipeline) Do(ctx context.Context, req Request) (*Response, error) {
	a := &attempt{req: req, state: StateInitial}

	for {
		resp, err := p.send(ctx, a)

		switch p.decide(a, err) {
		case outcomeSuccess:
			return resp, nil

		case outcomeNeedsRefresh:
			a.state = StateRetrying
			token, rerr := p.refresh(ctx, a.token)
			if rerr != nil {
				a.state = StateFailed
				p.endSession(ctx, req, rerr)
				return nil, rerr
			}
			a.state = StateRefreshed
			a.token = token

		default:
			if a.state == StateRefreshed && StatusCode(err) == http.StatusUnauthorized {
				a.state = StateFailed
				p.endSession(ctx, req, err)
			}
			return nil, err
		}
	}
}

// decide maps the result of one send to the next protocol step.
func (p *Pipeline) decide(a *attempt, err error) outcome {
	if err == nil {
		return outcomeSuccess
	}
	if a.req.Anonymous || a.state != StateInitial {
		return outcomeFailed
	}
	if StatusCode(err) != http.StatusUnauthorized {
		return outcomeFailed
	}
	return outcomeNeedsRefresh
}

// send performs the request phase (header injection) and one round trip.
func (p *Pipeline) send(ctx context.Context, a *attempt) (*Response, error) {
	header := http.Header{}

	if !a.req.Anonymous {
		if a.state == StateInitial {
			a.token, _ = p.store.Get(ctx, identity.AccessToken)
		}
		if a.token != "" {
			header.Set(common.AuthorizationHeaderName, common.BearerPrefix+a.token)
		}
	}
	if key := p.keys.GetOrCreate(ctx); key != "" {
		header.Set(common.SessionKeyHeaderName, key)
	}

	return p.roundTrip(ctx, a.req, header)
}

// refresh returns a usable access token for a request that failed with
// stale. If another request already replaced stale in the store, that token
// is reused without a new exchange.
func (p *Pipeline) refresh(ctx context.Context, stale string) (string, error) {
	if cur, ok := p.store.Get(ctx, identity.AccessToken); ok && cur != stale {
		p.metrics.refresh(RefreshReused)
		return cur, nil
	}

	if !p.coalesce {
		return p.exchange(ctx)
	}

	v, err, shared := p.refreshes.Do(refreshKey, func() (any, error) {
		return p.exchange(context.WithoutCancel(ctx))
	})
	if shared {
		p.log.Debug(ctx, "joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// exchange trades the stored refresh token for a new access token.
func (p *Pipeline) exchange(ctx context.Context) (string, error) {
	refresh, ok := p.store.Get(ctx, identity.RefreshToken)
	if !ok {
		p.metrics.refresh(RefreshFailed)
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, ErrNoRefreshToken)
	}

	resp, err := p.roundTrip(ctx, Request{
		Method:    http.MethodPost,
		Path:      common.TokenRefreshPath,
		Body:      models.RefreshRequest{Refresh: refresh},
		Anonymous: true,
	}, http.Header{})
	if err != nil {
		p.metrics.refresh(RefreshFailed)
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	var rr models.RefreshResponse
	if err := resp.Decode(&rr); err != nil || rr.Access == "" {
		p.metrics.refresh(RefreshFailed)
		return "", fmt.Errorf("%w: refresh response carried no access token", ErrSessionExpired)
	}

	p.store.Set(ctx, identity.AccessToken, rr.Access)
	if rr.Refresh != "" {
		p.store.Set(ctx, identity.RefreshToken, rr.Refresh)
	}
	p.metrics.refresh(RefreshSucceeded)
	p.log.Info(ctx, "access token refreshed")
	return rr.Access, nil
}

// endSession is the FAILED transition: tokens go, the session key stays.
func (p *Pipeline) endSession(ctx context.Context, req Request, cause error) {
	p.store.Clear(ctx, identity.Tokens...)
	p.metrics.redirect()
	p.log.Warn(ctx, "session could not be renewed, redirecting to login",
		"method", req.Method, "path", req.Path, "error", cause)
	p.nav.RedirectToLogin(ctx)
}

func (p *Pipeline) roundTrip(ctx context.Context, req Request, header http.Header) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	u := *p.baseURL
	u.Path = u.Path + req.Path
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(b)
		header.Set("Content-Type", "application/json")
	}
	header.Set("Accept", "application/json")

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.Method, req.Path, err)
	}
	httpReq.Header = header

	quiet := isRoutine(req.Path)
	if !quiet {
		p.log.Debug(ctx, "request", "method", req.Method, "path", req.Path)
	}

	res, err := p.http.Do(httpReq)
	if err != nil {
		p.metrics.request(req.Method, req.Path, 0)
		p.log.Error(ctx, "request failed", "method", req.Method, "path", req.Path, "error", err)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, req.Method, req.Path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	p.metrics.request(req.Method, req.Path, res.StatusCode)
	if err != nil {
		p.log.Error(ctx, "reading response failed", "method", req.Method, "path", req.Path, "error", err)
		return nil, fmt.Errorf("%w: read %s %s: %w", ErrUnavailable, req.Method, req.Path, err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		herr := &HTTPError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: res.StatusCode,
			Message:    ExtractMessage(raw),
			Body:       raw,
		}
		if !isExpectedFailure(req.Path, res.StatusCode) {
			p.log.Error(ctx, "response error", "method", req.Method, "path", req.Path,
				"status", res.StatusCode, "message", herr.Message)
		}
		return nil, herr
	}

	if !quiet {
		p.log.Debug(ctx, "response", "method", req.Method, "path", req.Path, "status", res.StatusCode)
	}
	return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: raw}, nil
}

// isRoutine reports the high-volume endpoints whose traffic is not logged.
func isRoutine(path string) bool {
	return strings.Contains(path, common.ViewPathMarker) || strings.Contains(path, common.EndorsePathMarker)
}

// isExpectedFailure reports routine-endpoint failures that are part of normal
// operation ("already acted" 400, unauthenticated 401).
func isExpectedFailure(path string, status int) bool {
	return isRoutine(path) && (status == http.StatusBadRequest || status == http.StatusUnauthorized)
}

// IsTransport reports whether err is a network/timeout failure rather than a
// backend response.
func IsTransport(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
