package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tasklist/internal/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWith(t, testConfig())
}

func testConfig() *config.Config {
	return &config.Config{
		Port:         0,
		DBPath:       ":memory:",
		JWTSecret:    "test-secret-at-least-16-chars!!",
		TokenTTL:     time.Minute,
		SessionTTL:   time.Hour,
		BcryptCost:   4,
		SessionStore: config.SessionStoreSQLite,
		LogLevel:     "error",
		LogFormat:    config.LogFormatText,
	}
}

func newTestServerWith(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := New(cfg, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts
}

// apiCall sends a JSON request and decodes the JSON response into out.
func apiCall(t *testing.T, ts *httptest.Server, method, path, token, body string, out any) int {
	t.Helper()

	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type todoJSON struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Done        bool   `json:"done"`
}

// TestAliceScenario walks the canonical API flow end to end.
func TestAliceScenario(t *testing.T) {
	ts := newTestServer(t)

	var created struct {
		Message string `json:"message"`
		ID      int64  `json:"id"`
	}
	status := apiCall(t, ts, http.MethodPost, "/auth/register", "",
		`{"username":"alice","email":"a@x.com","password":"pw1"}`, &created)
	require.Equal(t, http.StatusCreated, status)

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	status = apiCall(t, ts, http.MethodPost, "/auth/login", "",
		`{"username":"alice","password":"pw1"}`, &tok)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, tok.AccessToken)

	var todo struct {
		ID int64 `json:"id"`
	}
	status = apiCall(t, ts, http.MethodPost, "/api/todos", tok.AccessToken, `{"title":"Task1"}`, &todo)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, int64(1), todo.ID)

	var list []todoJSON
	status = apiCall(t, ts, http.MethodGet, "/api/todos", tok.AccessToken, "", &list)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []todoJSON{{ID: 1, Title: "Task1", Description: "", Done: false}}, list)

	status = apiCall(t, ts, http.MethodDelete, "/api/todos/1", tok.AccessToken, "", nil)
	require.Equal(t, http.StatusOK, status)

	list = nil
	status = apiCall(t, ts, http.MethodGet, "/api/todos", tok.AccessToken, "", &list)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, list)
	assert.NotNil(t, list, "empty list must encode as [] not null")
}

// TestBrowserFlow drives the form surface with a cookie jar, the way a
// browser would.
func TestBrowserFlow(t *testing.T) {
	runBrowserFlow(t, newTestServer(t))
}

func TestBrowserFlow_RedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.SessionStore = config.SessionStoreRedis
	cfg.RedisAddr = mr.Addr()
	ts := newTestServerWith(t, cfg)

	runBrowserFlow(t, ts)

	// Logout removed the only session key.
	assert.Empty(t, mr.Keys())

	var health map[string]any
	status := apiCall(t, ts, http.MethodGet, "/healthz", "", "", &health)
	assert.Equal(t, http.StatusOK, status)

	mr.Close()

	status = apiCall(t, ts, http.MethodGet, "/healthz", "", "", &health)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, []any{"redis"}, health["failed"])
}

func TestNew_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.SessionStore = config.SessionStoreRedis
	cfg.RedisAddr = addr

	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func runBrowserFlow(t *testing.T, ts *httptest.Server) {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	resp, err := client.PostForm(ts.URL+"/auth/register", url.Values{
		"username": {"bob"}, "email": {"b@x.com"}, "password": {"pw2"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/auth/login", resp.Request.URL.Path, "register should land on the login page")

	resp, err = client.PostForm(ts.URL+"/auth/login", url.Values{"username": {"b@x.com"}, "password": {"pw2"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "/todos", resp.Request.URL.Path)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.PostForm(ts.URL+"/todos", url.Values{"title": {"Walk the dog"}})
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Walk the dog")

	resp, err = client.PostForm(ts.URL+"/auth/logout", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/auth/login", resp.Request.URL.Path)

	resp, err = client.Get(ts.URL + "/todos")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/auth/login", resp.Request.URL.Path, "logged-out browser must be sent to login")
}

func TestOperationalEndpoints(t *testing.T) {
	ts := newTestServer(t)

	var health map[string]string
	status := apiCall(t, ts, http.MethodGet, "/healthz", "", "", &health)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", health["status"])

	// Generate one rejection so the counter exists.
	apiCall(t, ts, http.MethodGet, "/api/todos", "", "", nil)

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "tasklist_http_requests_total")
	assert.Contains(t, string(body), `tasklist_auth_rejections_total{reason="unauthenticated"} 1`)
}

func TestRootRedirectsToRegister(t *testing.T) {
	ts := newTestServer(t)

	client := ts.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := client.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/register", resp.Header.Get("Location"))
}
