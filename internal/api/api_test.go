package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forgeai/fitness-agent/internal/agent"
	"forgeai/fitness-agent/internal/domain"
	"forgeai/fitness-agent/internal/metrics"
	"forgeai/fitness-agent/internal/reconcile"
	"forgeai/fitness-agent/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth struct {
	tokens map[string]string
}

func (f *fakeAuth) Register(_ context.Context, name, email, _ string) (*domain.User, error) {
	if email == "taken@example.com" {
		return nil, service.ErrUserAlreadyExists
	}
	return &domain.User{Name: name, Email: email}, nil
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (string, *domain.User, error) {
	if password != "correct-horse" {
		return "", nil, service.ErrAuthenticationFailed
	}
	return "token-a", &domain.User{Email: email}, nil
}

func (f *fakeAuth) VerifyToken(token string) (string, error) {
	if id, ok := f.tokens[token]; ok {
		return id, nil
	}
	return "", service.ErrInvalidToken
}

func (f *fakeAuth) GetUser(_ context.Context, userID string) (*domain.User, error) {
	if userID != "user-a" {
		return nil, service.ErrUserNotFound
	}
	return &domain.User{Name: "Ada", Email: "ada@example.com"}, nil
}

type fakeCoach struct {
	state      domain.AppState
	err        error
	signedOut  []string
	lastDevice string
	lastUser   string
	lastCtx    string
}

func (f *fakeCoach) State(_ context.Context, deviceID, identity string) (domain.AppState, error) {
	f.lastDevice, f.lastUser = deviceID, identity
	return f.state, f.err
}

func (f *fakeCoach) Onboard(_ context.Context, deviceID, identity string, _ domain.UserProfile) (*service.PlanResult, error) {
	f.lastDevice, f.lastUser = deviceID, identity
	if f.err != nil {
		return nil, f.err
	}
	return &service.PlanResult{State: f.state, RawText: "raw"}, nil
}

func (f *fakeCoach) NextWorkout(_ context.Context, deviceID, identity, userContext string) (*service.PlanResult, error) {
	f.lastDevice, f.lastUser, f.lastCtx = deviceID, identity, userContext
	if f.err != nil {
		return nil, f.err
	}
	return &service.PlanResult{State: f.state, RawText: "raw"}, nil
}

func (f *fakeCoach) Finish(_ context.Context, _, _ string, _ domain.SessionStatus, _ string, _ int) (*service.FinishResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.FinishResult{State: f.state, HistorySaved: true}, nil
}

func (f *fakeCoach) UpdateWeight(_ context.Context, _, _ string, _ float64) (domain.AppState, error) {
	return f.state, f.err
}

func (f *fakeCoach) History(_ context.Context, _, _ string) ([]domain.HistoryEntry, error) {
	return f.state.History, f.err
}

func (f *fakeCoach) SignOut(_ context.Context, deviceID, identity string) error {
	if f.err != nil {
		return f.err
	}
	f.signedOut = append(f.signedOut, deviceID+"/"+identity)
	return nil
}

type fakeProfiles struct {
	profile *domain.UserProfile
}

func (f *fakeProfiles) GetProfile(_ context.Context, _ string) (*domain.UserProfile, error) {
	if f.profile == nil {
		return nil, service.ErrProfileNotFound
	}
	return f.profile, nil
}

func (f *fakeProfiles) SaveOnboarding(context.Context, *domain.UserProfile) error { return nil }

func (f *fakeProfiles) UpdateWeight(context.Context, string, float64) error { return nil }

type fakeThemes struct {
	themes map[string]domain.Theme
}

func (f *fakeThemes) Theme(_ context.Context, deviceID string) (domain.Theme, error) {
	if t, ok := f.themes[deviceID]; ok {
		return t, nil
	}
	return domain.DefaultTheme, nil
}

func (f *fakeThemes) SetTheme(_ context.Context, deviceID string, theme domain.Theme) error {
	f.themes[deviceID] = theme
	return nil
}

type fakeLimiter struct {
	allowed int
	err     error
}

func (f *fakeLimiter) Allow(_ context.Context, _ string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &redis_rate.Result{Limit: limit, Allowed: f.allowed, RetryAfter: 30 * time.Second}, nil
}

type testServer struct {
	router    *gin.Engine
	coach     *fakeCoach
	profiles  *fakeProfiles
	themes    *fakeThemes
	completer agent.CompleterFunc
	dbErr     error
	limiter   *fakeLimiter
	metrics   *metrics.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		coach:    &fakeCoach{state: domain.NewAppState()},
		profiles: &fakeProfiles{},
		themes:   &fakeThemes{themes: map[string]domain.Theme{}},
		limiter:  &fakeLimiter{allowed: 1},
		metrics:  metrics.NewTestManager(),
	}
	ts.completer = func(context.Context, string) (string, error) { return "ok", nil }

	ts.router = gin.New()
	SetupRoutes(
		ts.router,
		RouterConfig{
			AllowedOrigin:  "http://localhost:3000",
			RateLimiter:    ts.limiter,
			RateLimit:      redis_rate.Limit{Rate: 100, Burst: 100, Period: 15 * time.Minute},
			MetricsManager: ts.metrics,
		},
		&fakeAuth{tokens: map[string]string{"token-a": "user-a"}},
		ts.coach,
		ts.profiles,
		agent.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
			return ts.completer(ctx, prompt)
		}),
		ts.themes,
		PingerFunc(func(context.Context) error { return ts.dbErr }),
	)
	return ts
}

func (ts *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

var authed = map[string]string{
	"Authorization": "Bearer token-a",
	DeviceIDHeader:  "device-1",
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestPing(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pong", decodeBody(t, rr)["message"])
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
}

func TestNoRoute(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Route not found", decodeBody(t, rr)["error"])
}

func TestAgentProxy(t *testing.T) {
	tests := []struct {
		name        string
		body        any
		completeErr error
		wantStatus  int
		wantError   string
		wantDetails string
	}{
		{name: "missing prompt", body: map[string]string{}, wantStatus: http.StatusBadRequest, wantError: "Prompt is required"},
		{name: "no body", body: nil, wantStatus: http.StatusBadRequest, wantError: "Prompt is required"},
		{
			name:        "bad key",
			body:        AgentRequest{Prompt: "hi"},
			completeErr: agent.ErrUpstreamAuth,
			wantStatus:  http.StatusBadRequest,
			wantError:   "Invalid API Key. Please check your configuration.",
		},
		{
			name:        "rate limited",
			body:        AgentRequest{Prompt: "hi"},
			completeErr: agent.ErrRateLimited,
			wantStatus:  http.StatusTooManyRequests,
			wantError:   "Usage Limit Exceeded",
			wantDetails: rateLimitedDetails,
		},
		{
			name:        "upstream failure",
			body:        AgentRequest{Prompt: "hi"},
			completeErr: errors.New("connection reset"),
			wantStatus:  http.StatusInternalServerError,
			wantError:   "Agent Request Failed",
			wantDetails: "connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.completer = func(context.Context, string) (string, error) { return "", tt.completeErr }

			rr := ts.do(http.MethodPost, "/api/ai/agent", tt.body, nil)
			assert.Equal(t, tt.wantStatus, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, tt.wantError, body["error"])
			if tt.wantDetails != "" {
				assert.Equal(t, tt.wantDetails, body["details"])
			}
		})
	}
}

func TestAgentProxy_Success(t *testing.T) {
	ts := newTestServer(t)
	var got string
	ts.completer = func(_ context.Context, prompt string) (string, error) {
		got = prompt
		return `{"title":"Leg Day"}`, nil
	}

	rr := ts.do(http.MethodPost, "/api/ai/agent", AgentRequest{Prompt: "plan", APIKey: "ignored"}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "plan", got)
	assert.Equal(t, `{"title":"Leg Day"}`, decodeBody(t, rr)["text"])
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{name: "missing header", headers: map[string]string{DeviceIDHeader: "d"}, wantStatus: http.StatusUnauthorized},
		{name: "bad format", headers: map[string]string{"Authorization": "token-a", DeviceIDHeader: "d"}, wantStatus: http.StatusUnauthorized},
		{name: "unknown token", headers: map[string]string{"Authorization": "Bearer nope", DeviceIDHeader: "d"}, wantStatus: http.StatusUnauthorized},
		{name: "missing device", headers: map[string]string{"Authorization": "Bearer token-a"}, wantStatus: http.StatusBadRequest},
		{name: "ok", headers: authed, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rr := ts.do(http.MethodGet, "/api/v1/me", nil, tt.headers)
			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "ada@example.com", decodeBody(t, rr)["email"])
			}
		})
	}
}

func TestAuthHandlers(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/v1/auth/register", RegisterRequest{
		Name: "Ada", Email: "ada@example.com", Password: "correct-horse",
	}, nil)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.do(http.MethodPost, "/api/v1/auth/register", RegisterRequest{
		Name: "Ada", Email: "taken@example.com", Password: "correct-horse",
	}, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = ts.do(http.MethodPost, "/api/v1/auth/register", RegisterRequest{
		Name: "Ada", Email: "ada@example.com", Password: "short",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "ada@example.com", Password: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.do(http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "ada@example.com", Password: "correct-horse"}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "token-a", decodeBody(t, rr)["token"])

	rr = ts.do(http.MethodPost, "/api/v1/auth/logout", nil, map[string]string{DeviceIDHeader: "device-9"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, ts.coach.signedOut)

	rr = ts.do(http.MethodPost, "/api/v1/auth/logout", nil, map[string]string{
		"Authorization": "Bearer token-a",
		DeviceIDHeader:  "device-9",
	})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"device-9/user-a"}, ts.coach.signedOut)

	ts.coach.err = reconcile.ErrNotOwner
	rr = ts.do(http.MethodPost, "/api/v1/auth/logout", nil, authed)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCoachState(t *testing.T) {
	ts := newTestServer(t)
	ts.coach.state.Phase = "Hypertrophy"
	ts.coach.state.Consistency = 67

	rr := ts.do(http.MethodGet, "/api/v1/coach/state", nil, authed)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "Hypertrophy", body["globalPhase"])
	assert.Equal(t, float64(67), body["globalConsistency"])
	assert.Equal(t, []any{}, body["history"])
	assert.Equal(t, "device-1", ts.coach.lastDevice)
	assert.Equal(t, "user-a", ts.coach.lastUser)
}

func TestCoachNextWorkout_OptionalBody(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/v1/coach/workout", nil, authed)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, ts.coach.lastCtx)

	rr = ts.do(http.MethodPost, "/api/v1/coach/workout", NextWorkoutRequest{Context: "legs only"}, authed)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "legs only", ts.coach.lastCtx)
	assert.Equal(t, "raw", decodeBody(t, rr)["rawText"])
}

func TestCoachErrorMapping(t *testing.T) {
	parseErr := fmt.Errorf("%w: decode agent json: invalid character 'I'; re-extraction: agent text holds no JSON object", agent.ErrParseWorkout)

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantDetails string
	}{
		{name: "invalid profile", err: service.ErrInvalidProfile, wantStatus: http.StatusBadRequest},
		{name: "invalid difficulty", err: reconcile.ErrInvalidDifficulty, wantStatus: http.StatusBadRequest},
		{name: "onboarding required", err: service.ErrOnboardingRequired, wantStatus: http.StatusConflict},
		{name: "stale plan", err: reconcile.ErrStalePlan, wantStatus: http.StatusConflict},
		{name: "not owner", err: reconcile.ErrNotOwner, wantStatus: http.StatusConflict},
		{name: "no active workout", err: reconcile.ErrNoActiveWorkout, wantStatus: http.StatusConflict},
		{name: "agent rate limited", err: agent.ErrRateLimited, wantStatus: http.StatusTooManyRequests},
		{name: "parse failure", err: parseErr, wantStatus: http.StatusBadGateway, wantDetails: parseErr.Error()},
		{name: "transport", err: agent.ErrTransport, wantStatus: http.StatusBadGateway},
		{name: "timeout", err: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout},
		{
			name:       "agent timeout",
			err:        fmt.Errorf("%w: %w", agent.ErrTransport, context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
		},
		{name: "weight not saved", err: service.ErrWeightNotSaved, wantStatus: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.coach.err = tt.err

			rr := ts.do(http.MethodPost, "/api/v1/coach/workout", NextWorkoutRequest{}, authed)
			assert.Equal(t, tt.wantStatus, rr.Code)
			body := decodeBody(t, rr)
			assert.NotEmpty(t, body["error"])
			if tt.wantDetails != "" {
				assert.Equal(t, "Failed to parse workout", body["error"])
				assert.Equal(t, tt.wantDetails, body["details"])
				assert.Contains(t, body["details"], "re-extraction")
			}
		})
	}
}

func TestCoachFinish_Validation(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/v1/coach/finish", map[string]any{"status": "completed"}, authed)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(http.MethodPost, "/api/v1/coach/finish", FinishRequest{Status: domain.SessionCompleted, Difficulty: 7}, authed)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decodeBody(t, rr)["historySaved"])
}

func TestProfile(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/api/v1/profile", nil, authed)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	ts.profiles.profile = &domain.UserProfile{UserID: "user-a", Goal: "Run a 10k"}
	rr = ts.do(http.MethodGet, "/api/v1/profile", nil, authed)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Run a 10k", decodeBody(t, rr)["goal"])
}

func TestTheme(t *testing.T) {
	ts := newTestServer(t)
	device := map[string]string{DeviceIDHeader: "device-1"}

	rr := ts.do(http.MethodGet, "/api/v1/device/theme", nil, device)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "dark", decodeBody(t, rr)["theme"])

	rr = ts.do(http.MethodPut, "/api/v1/device/theme", ThemeRequest{Theme: "sepia"}, device)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(http.MethodPut, "/api/v1/device/theme", ThemeRequest{Theme: domain.ThemeLight}, device)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.ThemeLight, ts.themes.themes["device-1"])

	rr = ts.do(http.MethodGet, "/api/v1/device/theme", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database"])
	assert.NotEmpty(t, body["timestamp"])

	ts.dbErr = errors.New("no reachable servers")
	rr = ts.do(http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body = decodeBody(t, rr)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "no reachable servers", body["error"])
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t)

	ts.limiter.allowed = 0
	rr := ts.do(http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "31", rr.Header().Get("Retry-After"))

	// /ping is outside /api
	rr = ts.do(http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	ts.limiter.err = errors.New("redis down")
	rr = ts.do(http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCors(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		origin      string
		wantStatus  int
		wantAllowed bool
	}{
		{name: "preflight allowed", method: http.MethodOptions, origin: "http://localhost:3000", wantStatus: http.StatusOK, wantAllowed: true},
		{name: "preflight rejected", method: http.MethodOptions, origin: "https://evil.example", wantStatus: http.StatusForbidden},
		{name: "simple request allowed", method: http.MethodGet, origin: "http://localhost:3000", wantStatus: http.StatusOK, wantAllowed: true},
		{name: "simple request other origin", method: http.MethodGet, origin: "https://evil.example", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rr := ts.do(tt.method, "/ping", nil, map[string]string{"Origin": tt.origin})
			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantAllowed {
				assert.Equal(t, tt.origin, rr.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestPanicRecovery(t *testing.T) {
	m := metrics.NewTestManager()
	router := gin.New()
	router.Use(PanicRecovery(m))
	router.GET("/boom", func(*gin.Context) { panic("YOLO") })
	router.GET("/fine", func(c *gin.Context) { c.Status(http.StatusOK) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/fine", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.CounterHandleRequestPanic))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CounterHandleRequestPanic))
}

func TestRequestMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodGet, "/ping", nil, nil)
	ts.do(http.MethodGet, "/nope", nil, nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.CounterRequests.WithLabelValues("GET", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.CounterRequests.WithLabelValues("GET", "404")))
	assert.Equal(t, float64(0), testutil.ToFloat64(ts.metrics.GaugeRequests))
}
