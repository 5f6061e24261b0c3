package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"finview/internal/auth"
	"finview/internal/core"
	"finview/internal/log"
	"finview/internal/services"
	"finview/internal/session"
	ports "finview/internal/sheets"
	"finview/internal/sheets/memory"
	"finview/internal/view"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	server   *Server
	ledger   *memory.Store
	sessions *session.MemoryStore
	clock    *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := log.New(log.Config{
		Level:  slog.LevelError,
		Output: io.Discard,
	})
	est, err := core.NewEstimator(decimal.RequireFromString("0.07375"), decimal.NewFromInt(25))
	require.NoError(t, err)

	env := &testEnv{
		ledger:   memory.New(memory.SampleLedger()),
		sessions: session.NewMemoryStore(),
		clock:    &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	svc := services.NewLedgerService(env.ledger, time.Minute, services.WithLogger(logger.Logger))

	s, err := NewServer(":0", Deps{
		Ledger:             svc,
		Sessions:           env.sessions,
		Auth:               auth.DevProvider{},
		Views:              view.NewBuilder(est, core.USD()),
		Logger:             logger,
		SessionTTL:         time.Hour,
		RateLimitPerMinute: 1000,
		Now:                env.clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	env.server = s
	return env
}

func (e *testEnv) do(r *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

func (e *testEnv) post(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(r, cookies...)
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// signIn runs the dev authorization flow and returns the session cookie.
func (e *testEnv) signIn(t *testing.T) *http.Cookie {
	t.Helper()

	login := e.get("/auth/login")
	require.Equal(t, http.StatusFound, login.Code)
	state := findCookie(login, stateCookie)
	require.NotNil(t, state)

	callback := e.get(login.Header().Get("Location"), state)
	require.Equal(t, http.StatusSeeOther, callback.Code)
	assert.Equal(t, "/", callback.Header().Get("Location"))

	sc := findCookie(callback, sessionCookie)
	require.NotNil(t, sc)
	assert.True(t, sc.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, sc.SameSite)
	return sc
}

func TestIndex_SignedOutShowsSignIn(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sign in with Google")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, 0, env.ledger.Reads())
}

func TestSignInRendersDashboard(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)
	assert.Equal(t, 1, env.sessions.Len())

	w := env.get("/", sc)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Discretionary Balance")
	assert.Contains(t, body, "$1,204.37")
	assert.Contains(t, body, "$6,850.00")
	assert.Contains(t, body, "Purchase Estimator")
	assert.Contains(t, body, "Groceries")
	assert.NotContains(t, body, "Food shelf donation")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestCallback_RejectsStateMismatch(t *testing.T) {
	env := newTestEnv(t)

	login := env.get("/auth/login")
	state := findCookie(login, stateCookie)
	require.NotNil(t, state)

	w := env.get("/auth/callback?code=dev&state=forged", state)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Authentication failed.")
	assert.Nil(t, findCookie(w, sessionCookie))
	assert.Equal(t, 0, env.sessions.Len())
}

func TestCallback_ProviderError(t *testing.T) {
	env := newTestEnv(t)

	login := env.get("/auth/login")
	state := findCookie(login, stateCookie)

	w := env.get("/auth/callback?error=access_denied&state="+url.QueryEscape(state.Value), state)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Authentication failed.")
	assert.Equal(t, 0, env.sessions.Len())
}

func TestDashboard_UsesCachedSnapshot(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)

	require.Equal(t, http.StatusOK, env.get("/", sc).Code)
	require.Equal(t, http.StatusOK, env.get("/", sc).Code)
	assert.Equal(t, 1, env.ledger.Reads())
}

func TestSync_InvalidatesSnapshot(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)

	env.get("/", sc)
	require.Equal(t, 1, env.ledger.Reads())

	w := env.post("/sync", nil, sc)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	env.get("/", sc)
	assert.Equal(t, 2, env.ledger.Reads())
}

func TestSync_HTMXRefreshes(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)

	r := httptest.NewRequest(http.MethodPost, "/sync", nil)
	r.Header.Set("HX-Request", "true")
	w := env.do(r, sc)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "true", w.Header().Get("HX-Refresh"))
	assert.Contains(t, w.Header().Get("HX-Trigger"), "ledger:synced")
	assert.Contains(t, w.Header().Get("HX-Trigger"), `"type":"success"`)
}

func TestSync_RejectsCrossOrigin(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)

	r := httptest.NewRequest(http.MethodPost, "/sync", nil)
	r.Header.Set("Origin", "https://evil.test")
	w := env.do(r, sc)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSwitchView(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)

	w := env.post("/view", url.Values{"category": {"savings"}}, sc)
	require.Equal(t, http.StatusSeeOther, w.Code)

	page := env.get("/", sc)
	require.Equal(t, http.StatusOK, page.Code)
	body := page.Body.String()
	assert.Contains(t, body, "Reserve Balance")
	assert.Contains(t, body, "Deposit Ledger")
	assert.NotContains(t, body, "Purchase Estimator")

	sess, err := env.sessions.Get(context.Background(), sc.Value)
	require.NoError(t, err)
	assert.Equal(t, core.Savings, sess.ActiveView)
}

func TestSwitchView_HTMX(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)

	r := httptest.NewRequest(http.MethodPost, "/view", strings.NewReader("category=giving"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("HX-Request", "true")
	w := env.do(r, sc)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "true", w.Header().Get("HX-Refresh"))
	assert.Contains(t, w.Header().Get("HX-Trigger"), `"category":"giving"`)
}

func TestSwitchView_UnknownCategory(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)

	w := env.post("/view", url.Values{"category": {"taxes"}}, sc)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	sess, err := env.sessions.Get(context.Background(), sc.Value)
	require.NoError(t, err)
	assert.Equal(t, core.Spending, sess.ActiveView)
}

func TestSwitchView_RequiresSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.post("/view", url.Values{"category": {"savings"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestDashboard_FetchErrorShowsErrorPage(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)
	env.ledger.Fail(errors.New("sheets: 500 backend error"))

	w := env.get("/", sc)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Unable to retrieve account data")
	assert.Contains(t, body, "Try again")
	assert.Equal(t, 1, env.sessions.Len())
}

func TestDashboard_RejectedTokenEndsSession(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)
	env.ledger.Fail(ports.ErrUnauthorized)

	w := env.get("/", sc)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please sign in again.")
	assert.Equal(t, 0, env.sessions.Len())

	cleared := findCookie(w, sessionCookie)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestDashboard_ExpiredSession(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)
	env.clock.Advance(2 * time.Hour)

	w := env.get("/", sc)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sign in with Google")
	assert.Equal(t, 0, env.sessions.Len())
}

func TestDashboard_ActivityKeepsSessionAlive(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)

	for i := 0; i < 3; i++ {
		env.clock.Advance(50 * time.Minute)
		w := env.get("/", sc)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "$1,204.37", "visit %d", i)

		refreshed := findCookie(w, sessionCookie)
		require.NotNil(t, refreshed)
		assert.Equal(t, 3600, refreshed.MaxAge)
	}
	assert.Equal(t, 1, env.sessions.Len())
}

func TestDashboard_PriceQueryActivatesEstimator(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)

	w := env.get("/?price=90", sc)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Remaining balance")
	assert.Contains(t, body, "$1,107.73")
}

func TestLedgerPartial(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)

	w := env.get("/ui/ledger?category=spending&q=COFFEE", sc)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Coffee")
	assert.Contains(t, body, "−$4.75")
	assert.NotContains(t, body, "Rent")
	assert.NotContains(t, body, "<html")

	empty := env.get("/ui/ledger?category=spending&q=zzz", sc)
	assert.Contains(t, empty.Body.String(), "No transactions on record.")

	bad := env.get("/ui/ledger?category=taxes", sc)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestPartials_RequireSession(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/ui/ledger", "/ui/estimate?price=5", "/api/trend"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		r.Header.Set("HX-Request", "true")
		w := env.do(r)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, "/", w.Header().Get("HX-Redirect"), path)
	}
}

func TestPartials_FetchErrorNotifies(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)
	env.ledger.Fail(errors.New("sheets down"))

	r := httptest.NewRequest(http.MethodGet, "/ui/ledger", nil)
	r.Header.Set("HX-Request", "true")
	w := env.do(r, sc)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Header().Get("HX-Trigger"), `"show-notification"`)
	assert.Contains(t, w.Header().Get("HX-Trigger"), `"type":"error"`)
}

func TestUnknownFragmentNotFound(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)

	for _, path := range []string{"/ui/nope", "/api/nope"} {
		w := env.get(path, sc)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Contains(t, w.Body.String(), "Unknown resource", path)
	}

	w := env.post("/ui/ledger", nil, sc)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestEstimatePartial(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)

	w := env.get("/ui/estimate?price=2000", sc)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Shortfall")
	assert.Contains(t, body, "$943.13")

	inactive := env.get("/ui/estimate?price=abc", sc)
	require.Equal(t, http.StatusOK, inactive.Code)
	assert.NotContains(t, inactive.Body.String(), "Total cost")
}

func TestTrendAPI(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)

	w := env.get("/api/trend?category=giving", sc)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var trend struct {
		Category string `json:"category"`
		Points   []struct {
			Name       string `json:"name"`
			Cumulative string `json:"cumulative"`
		} `json:"points"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&trend))
	assert.Equal(t, "giving", trend.Category)
	require.Len(t, trend.Points, 5)
	assert.Equal(t, "Opening balance", trend.Points[0].Name)
	assert.Equal(t, "250", trend.Points[0].Cumulative)
	assert.Equal(t, "Birthday gift", trend.Points[4].Name)
	assert.Equal(t, "412.5", trend.Points[4].Cumulative)
}

func TestSignOut(t *testing.T) {
	env := newTestEnv(t)
	sc := env.signIn(t)
	env.get("/", sc)

	w := env.post("/auth/signout", nil, sc)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, 0, env.sessions.Len())
	assert.Equal(t, 0, env.server.ledger.Entries())

	cleared := findCookie(w, sessionCookie)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	page := env.get("/", sc)
	assert.Contains(t, page.Body.String(), "Sign in with Google")
}

func TestSignOut_RequiresPost(t *testing.T) {
	env := newTestEnv(t)
	w := env.get("/auth/signout")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	health := env.get("/healthz")
	assert.Equal(t, http.StatusOK, health.Code)
	assert.Contains(t, health.Body.String(), `"status":"ok"`)

	ready := env.get("/readyz")
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.Contains(t, ready.Body.String(), `"status":"ready"`)
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.get("/healthz")

	w := env.get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, "ledger_cache_entries 0")
	assert.Contains(t, body, "suspicious_requests_total 0")
}

func TestSuspiciousRequestBlocked(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/wp-admin/setup.php")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/static/app.css")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Cache-Control"), "max-age=3600")
}
