package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/talentdir/internal/client/identity"
	"github.com/dmitrijs2005/talentdir/internal/client/session"
	"github.com/dmitrijs2005/talentdir/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiPrefix = "/api"

type countingNav struct{ n atomic.Int32 }

func (c *countingNav) RedirectToLogin(context.Context) { c.n.Add(1) }

type pipeEnv struct {
	pipe    *Pipeline
	store   *identity.Store
	nav     *countingNav
	metrics *Metrics
}

func newPipeEnv(t *testing.T, baseURL string, mutate ...func(*Options)) *pipeEnv {
	t.Helper()
	store := identity.NewMemoryStore()
	nav := &countingNav{}
	m := NewMetrics(prometheus.NewRegistry())
	opts := Options{BaseURL: baseURL + apiPrefix, CoalesceRefresh: true, Metrics: m}
	for _, f := range mutate {
		f(&opts)
	}
	p, err := NewPipeline(opts, store, session.NewGenerator(store, nil), nav)
	require.NoError(t, err)
	return &pipeEnv{pipe: p, store: store, nav: nav, metrics: m}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// refreshServer serves a protected endpoint that accepts only "Bearer <valid>"
// and a refresh endpoint that hands out valid.
type refreshServer struct {
	valid string

	mu           sync.Mutex
	refreshCalls int
	refreshBody  []string
	refreshAuth  []string
	seenTokens   []string
	refreshCode  int
}

func (s *refreshServer) handler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case apiPrefix + "/accounts/token/refresh/":
		var body bytes.Buffer
		_, _ = body.ReadFrom(r.Body)
		s.mu.Lock()
		s.refreshCalls++
		s.refreshBody = append(s.refreshBody, body.String())
		s.refreshAuth = append(s.refreshAuth, r.Header.Get("Authorization"))
		code := s.refreshCode
		s.mu.Unlock()
		if code != 0 {
			writeJSON(w, code, map[string]string{"detail": "Token is invalid or expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access": s.valid, "refresh": "R2"})
	default:
		auth := r.Header.Get("Authorization")
		s.mu.Lock()
		s.seenTokens = append(s.seenTokens, auth)
		s.mu.Unlock()
		if auth != "Bearer "+s.valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 7, "nama": "Ayu"})
	}
}

type refreshLog struct {
	refreshCalls int
	refreshBody  []string
	refreshAuth  []string
	seenTokens   []string
}

func (s *refreshServer) snapshot() refreshLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return refreshLog{
		refreshCalls: s.refreshCalls,
		refreshBody:  append([]string(nil), s.refreshBody...),
		refreshAuth:  append([]string(nil), s.refreshAuth...),
		seenTokens:   append([]string(nil), s.seenTokens...),
	}
}

func (s *refreshServer) calls() int       { return s.snapshot().refreshCalls }
func (s *refreshServer) tokens() []string { return s.snapshot().seenTokens }

func TestPipeline_InjectsBearerAndSessionKey(t *testing.T) {
	var gotAuth, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("X-Session-Key")
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	defer srv.Close()

	env := newPipeEnv(t, srv.URL)
	ctx := context.Background()
	env.store.Set(ctx, identity.AccessToken, "A1")

	_, err := env.pipe.Do(ctx, Request{Method: http.MethodGet, Path: "/mahasiswa/1/"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer A1", gotAuth)
	assert.Regexp(t, session.KeyPattern, gotKey)

	stored, ok := env.store.Get(ctx, identity.SessionKey)
	require.True(t, ok)
	assert.Equal(t, stored, gotKey)

	_, err = env.pipe.Do(ctx, Request{Method: http.MethodPost, Path: "/accounts/login/", Anonymous: true})
	require.NoError(t, err)
	assert.Empty(t, gotAuth, "anonymous requests carry no bearer")
	assert.Equal(t, stored, gotKey)
}

func TestPipeline_NoTokenSendsNoAuthorization(t *testing.T) {
	var hasAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		writeJSON(w, http.StatusOK, map[string]any{"counted": true, "total_views": 3})
	}))
	defer srv.Close()

	env := newPipeEnv(t, srv.URL)
	resp, err := env.pipe.Do(context.Background(), Request{Method: http.MethodPost, Path: "/mahasiswa/1/view/"})
	require.NoError(t, err)
	assert.False(t, hasAuth)

	var out struct {
		Counted    bool  `json:"counted"`
		TotalViews int64 `json:"total_views"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.True(t, out.Counted)
	assert.EqualValues(t, 3, out.TotalViews)
}

func TestPipeline_RefreshIsTransparent(t *testing.T) {
	rs := &refreshServer{valid: "A2"}
	srv := httptest.NewServer(http.HandlerFunc(rs.handler))
	defer srv.Close()

	env := newPipeEnv(t, srv.URL)
	ctx := context.Background()
	env.store.Set(ctx, identity.AccessToken, "A1")
	env.store.Set(ctx, identity.RefreshToken, "R1")

	resp, err := env.pipe.Do(ctx, Request{Method: http.MethodGet, Path: "/mahasiswa/7/"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 1, rs.calls())
	assert.JSONEq(t, `{"refresh":"R1"}`, rs.snapshot().refreshBody[0])
	assert.Empty(t, rs.snapshot().refreshAuth[0], "refresh exchange must not carry a bearer")
	assert.Equal(t, []string{"Bearer A1", "Bearer A2"}, rs.tokens())

	access, _ := env.store.Get(ctx, identity.AccessToken)
	refresh, _ := env.store.Get(ctx, identity.RefreshToken)
	assert.Equal(t, "A2", access)
	assert.Equal(t, "R2", refresh)
	assert.Zero(t, env.nav.n.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Refreshes.WithLabelValues(RefreshSucceeded)))
}

func TestPipeline_401AfterRefreshIsTerminal(t *testing.T) {
	var protectedHits atomic.Int32
	rs := &refreshServer{valid: "A2"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/token/refresh/") {
			rs.handler(w, r)
			return
		}
		protectedHits.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "nope"})
	}))
	defer srv.Close()

	env := newPipeEnv(t, srv.URL)
	ctx := context.Background()
	env.store.Set(ctx, identity.AccessToken, "A1")
	env.store.Set(ctx, identity.RefreshToken, "R1")
	key := env.pipe.keys.GetOrCreate(ctx)

	_, err := env.pipe.Do(ctx, Request{Method: http.MethodGet, Path: "/mahasiswa/my-profile/"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.EqualValues(t, 2, protectedHits.Load(), "original send plus exactly one retry")
	assert.Equal(t, 1, rs.calls())
	assert.EqualValues(t, 1, env.nav.n.Load())

	_, ok := env.store.Get(ctx, identity.AccessToken)
	assert.False(t, ok)
	_, ok = env.store.Get(ctx, identity.RefreshToken)
	assert.False(t, ok)
	got, ok := env.store.Get(ctx, identity.SessionKey)
	assert.True(t, ok)
	assert.Equal(t, key, got, "session key survives session loss")
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Redirects))
}

func TestPipeline_MissingRefreshTokenFails(t *testing.T) {
	rs := &refreshServer{valid: "A2"}
	srv := httptest.NewServer(http.HandlerFunc(rs.handler))
	defer srv.Close()

	env := newPipeEnv(t, srv.URL)
	ctx := context.Background()
	env.store.Set(ctx, identity.AccessToken, "A1")

	_, err := env.pipe.Do(ctx, Request{Method: http.MethodGet, Path: "/mahasiswa/7/"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Zero(t, rs.calls())
	assert.EqualValues(t, 1, env.nav.n.Load())

	_, ok := env.store.Get(ctx, identity.AccessToken)
	assert.False(t, ok)
}

func TestPipeline_RejectedRefreshFails(t *testing.T) {
	rs := &refreshServer{valid: "A2", refreshCode: http.StatusUnauthorized}
	srv := httptest.NewServer(http.HandlerFunc(rs.handler))
	defer srv.Close()

	env := newPipeEnv(t, srv.URL)
	ctx := context.Background()
	env.store.Set(ctx, identity.AccessToken, "A1")
	env.store.Set(ctx, identity.RefreshToken, "R1")

	_, err := env.pipe.Do(ctx, Request{Method: http.MethodPost, Path: "/skills/3/endorse/"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, rs.calls())
	assert.Len(t, rs.tokens(), 1, "original request is not re-sent after a failed refresh")
	assert.EqualValues(t, 1, env.nav.n.Load())

	_, ok := env.store.Get(ctx, identity.RefreshToken)
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Refreshes.WithLabelValues(RefreshFailed)))
}

func TestPipeline_Non401PassesThrough(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/token/refresh/") {
			refreshCalls.Add(1)
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Already endorsed"})
	}))
	defer srv.Close()

	env := newPipeEnv(t, srv.URL)
	ctx := context.Background()
	env.store.Set(ctx, identity.AccessToken, "A1")
	env.store.Set(ctx, identity.RefreshToken, "R1")

	_, err := env.pipe.Do(ctx, Request{Method: http.MethodPost, Path: "/skills/3/endorse/"})
	require.Error(t, err)

	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusBadRequest, he.StatusCode)
	assert.Equal(t, "Already endorsed", he.Message)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, refreshCalls.Load())
	assert.Zero(t, env.nav.n.Load())

	access, _ := env.store.Get(ctx, identity.AccessToken)
	assert.Equal(t, "A1", access)
}

func TestPipeline_AnonymousRequestNeverRefreshes(t *testing.T) {
	rs := &refreshServer{valid: "A2"}
	srv := httptest.NewServer(http.HandlerFunc(rs.handler))
	defer srv.Close()

	env := newPipeEnv(t, srv.URL)
	ctx := context.Background()
	env.store.Set(ctx, identity.RefreshToken, "R1")

	_, err := env.pipe.Do(ctx, Request{Method: http.MethodPost, Path: "/accounts/login/", Anonymous: true})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Zero(t, rs.calls())
	assert.Zero(t, env.nav.n.Load())

	refresh, ok := env.store.Get(ctx, identity.RefreshToken)
	assert.True(t, ok)
	assert.Equal(t, "R1", refresh)
}

func TestPipeline_ReusesTokenRefreshedByAnotherRequest(t *testing.T) {
	var env *pipeEnv
	rs := &refreshServer{valid: "A2"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer A1" {
			// a concurrent request finished its refresh meanwhile
			env.store.Set(r.Context(), identity.AccessToken, "A2")
		}
		rs.handler(w, r)
	}))
	defer srv.Close()

	env = newPipeEnv(t, srv.URL)
	ctx := context.Background()
	env.store.Set(ctx, identity.AccessToken, "A1")
	env.store.Set(ctx, identity.RefreshToken, "R1")

	_, err := env.pipe.Do(ctx, Request{Method: http.MethodGet, Path: "/mahasiswa/7/"})
	require.NoError(t, err)
	assert.Zero(t, rs.calls())
	assert.Equal(t, []string{"Bearer A1", "Bearer A2"}, rs.tokens())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Refreshes.WithLabelValues(RefreshReused)))
}

func TestPipeline_ConcurrentRefreshesAreCoalesced(t *testing.T) {
	const callers = 8

	var unauthorized atomic.Int32
	allRejected := make(chan struct{})
	var once sync.Once

	rs := &refreshServer{valid: "A2"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/token/refresh/") {
			select {
			case <-allRejected:
			case <-time.After(2 * time.Second):
			}
			// give the rejected callers time to join the in-flight exchange
			time.Sleep(50 * time.Millisecond)
			rs.handler(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer A2" {
			if unauthorized.Add(1) == callers {
				once.Do(func() { close(allRejected) })
			}
		}
		rs.handler(w, r)
	}))
	defer srv.Close()

	env := newPipeEnv(t, srv.URL)
	ctx := context.Background()
	env.store.Set(ctx, identity.AccessToken, "A1")
	env.store.Set(ctx, identity.RefreshToken, "R1")

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.pipe.Do(ctx, Request{Method: http.MethodGet, Path: "/mahasiswa/7/"})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, rs.calls())
	assert.Zero(t, env.nav.n.Load())
}

func TestPipeline_TransportFailureWrapsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	env := newPipeEnv(t, url)
	_, err := env.pipe.Do(context.Background(), Request{Method: http.MethodGet, Path: "/mahasiswa/"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, IsTransport(err))
	assert.Zero(t, StatusCode(err))
	assert.Zero(t, env.nav.n.Load())
}

func TestPipeline_TimeoutWrapsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	env := newPipeEnv(t, srv.URL, func(o *Options) { o.Timeout = 30 * time.Millisecond })
	_, err := env.pipe.Do(context.Background(), Request{Method: http.MethodGet, Path: "/mahasiswa/"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPipeline_RoutineEndpointsAreQuiet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "already viewed"})
	}))
	defer srv.Close()

	var buf bytes.Buffer
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	env := newPipeEnv(t, srv.URL, func(o *Options) { o.Logger = log })
	ctx := context.Background()

	_, err := env.pipe.Do(ctx, Request{Method: http.MethodPost, Path: "/mahasiswa/4/view/"})
	require.Error(t, err)
	assert.NotContains(t, buf.String(), "/mahasiswa/4/view/")

	_, err = env.pipe.Do(ctx, Request{Method: http.MethodGet, Path: "/mahasiswa/4/"})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "response error")
	assert.Contains(t, buf.String(), "/mahasiswa/4/")
}

func TestPipeline_CountsRequestsByTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	defer srv.Close()

	env := newPipeEnv(t, srv.URL)
	ctx := context.Background()
	for _, id := range []string{"1", "22", "333"} {
		_, err := env.pipe.Do(ctx, Request{Method: http.MethodGet, Path: "/mahasiswa/" + id + "/"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(env.metrics.Requests.WithLabelValues("GET", "/mahasiswa/{id}/", "200")))
}

func TestNewPipeline_RejectsRelativeBaseURL(t *testing.T) {
	_, err := NewPipeline(Options{BaseURL: "/api"}, identity.NewMemoryStore(), nil, nil)
	require.Error(t, err)
}

func TestRefreshState_String(t *testing.T) {
	assert.Equal(t, "INITIAL", StateInitial.String())
	assert.Equal(t, "RETRYING", StateRetrying.String())
	assert.Equal(t, "REFRESHED", StateRefreshed.String())
	assert.Equal(t, "FAILED", StateFailed.String())
	assert.Equal(t, "RefreshState(9)", RefreshState(9).String())
}
