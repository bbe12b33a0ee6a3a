package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"quoteshare/pkg/ai"
	"quoteshare/pkg/auth"
	"quoteshare/pkg/store"
	"quoteshare/services/web/internal/app"
)

type fakeGenerator struct {
	text string
	err  error
}

func (g *fakeGenerator) GenerateText(context.Context, string, string) (string, error) {
	return g.text, g.err
}

type testEnv struct {
	srv *httptest.Server
	app *app.App
}

func newTestEnv(t *testing.T, gen ai.TextGenerator, configure func(*Config)) *testEnv {
	t.Helper()
	gs, err := store.NewGormStore("sqlite://:memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = gs.Close() })
	a, err := app.New(app.Config{
		Store:     gs,
		Sessions:  store.NewMemorySessionStore(time.Hour),
		Generator: gen,
		PageSize:  10,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	signer, err := auth.NewCookieSigner("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	cfg := Config{App: a, Cookies: signer}
	if configure != nil {
		configure(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, app: a}
}

// client keeps cookies and never follows redirects.
func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *testEnv) do(t *testing.T, c *http.Client, method, path string, body io.Reader, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, c *http.Client, path string) *http.Response {
	t.Helper()
	return e.do(t, c, http.MethodGet, path, nil, nil)
}

func (e *testEnv) postForm(t *testing.T, c *http.Client, path string, vals url.Values) *http.Response {
	t.Helper()
	return e.do(t, c, http.MethodPost, path, strings.NewReader(vals.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
}

func (e *testEnv) postJSON(t *testing.T, c *http.Client, path string, payload any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return e.do(t, c, http.MethodPost, path, strings.NewReader(string(raw)), map[string]string{
		"Content-Type": "application/json",
	})
}

// signIn registers username and returns a client holding its session.
func (e *testEnv) signIn(t *testing.T, username string) *http.Client {
	t.Helper()
	c := e.client(t)
	resp := e.postForm(t, c, "/register", url.Values{
		"username": {username},
		"email":    {username + "@example.com"},
		"password": {"pw-" + username},
	})
	expectRedirect(t, resp, "/login")
	resp = e.postForm(t, c, "/login", url.Values{
		"username_or_email": {username},
		"password":          {"pw-" + username},
	})
	expectRedirect(t, resp, "/")
	return c
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func expectRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	expectStatus(t, resp, http.StatusSeeOther)
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("expected redirect to %q, got %q", location, got)
	}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func expectError(t *testing.T, resp *http.Response, status int, code, message string) {
	t.Helper()
	expectStatus(t, resp, status)
	body := decode[map[string]errorBody](t, resp)
	got := body["error"]
	if got.Code != code || (message != "" && got.Message != message) {
		t.Fatalf("expected error %s %q, got %+v", code, message, got)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(raw)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	resp := env.get(t, env.client(t), "/healthz")
	expectStatus(t, resp, http.StatusOK)
	if body := decode[map[string]string](t, resp); body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
	if resp.Header.Get("Content-Security-Policy") == "" {
		t.Fatalf("expected security headers")
	}
}

func TestRegisterLoginLogoutFlow(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	c := env.client(t)

	resp := env.postForm(t, c, "/register", url.Values{
		"username": {"alice"},
		"email":    {"Alice@Example.com"},
		"password": {"pw123"},
	})
	expectRedirect(t, resp, "/login")

	resp = env.get(t, c, "/login")
	expectStatus(t, resp, http.StatusOK)
	if body := readBody(t, resp); !strings.Contains(body, "Registration successful. Please login.") {
		t.Fatalf("expected flash on login page:\n%s", body)
	}
	resp = env.get(t, c, "/login")
	if body := readBody(t, resp); strings.Contains(body, "Registration successful") {
		t.Fatalf("flash must render once")
	}

	resp = env.postForm(t, c, "/login", url.Values{
		"username_or_email": {"alice@example.com"},
		"password":          {"pw123"},
	})
	expectRedirect(t, resp, "/")

	resp = env.get(t, c, "/api/me")
	expectStatus(t, resp, http.StatusOK)
	me := decode[meResponse](t, resp)
	if me.Username != "alice" || me.Email != "alice@example.com" || me.ID == 0 {
		t.Fatalf("unexpected me: %+v", me)
	}

	expectRedirect(t, env.get(t, c, "/login"), "/")

	resp = env.postForm(t, c, "/logout", nil)
	expectRedirect(t, resp, "/")
	expectError(t, env.get(t, c, "/api/me"), http.StatusUnauthorized, "unauthorized", "Login required")
}

func TestRegisterErrors(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.signIn(t, "alice")
	c := env.client(t)

	resp := env.postForm(t, c, "/register", url.Values{"username": {"alice"}, "email": {"x@example.com"}, "password": {"pw"}})
	expectError(t, resp, http.StatusBadRequest, "user_exists", "Username already taken.")

	resp = env.postForm(t, c, "/register", url.Values{"username": {"bob"}, "email": {"ALICE@example.com"}, "password": {"pw"}})
	expectError(t, resp, http.StatusBadRequest, "email_exists", "Email already registered.")

	resp = env.postForm(t, c, "/register", url.Values{"username": {" "}, "email": {"b@example.com"}, "password": {"pw"}})
	expectError(t, resp, http.StatusBadRequest, "invalid_input", "All fields are required.")
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.signIn(t, "alice")
	c := env.client(t)

	for _, vals := range []url.Values{
		{"username_or_email": {"alice"}, "password": {"wrong"}},
		{"username_or_email": {"nobody"}, "password": {"pw-alice"}},
	} {
		resp := env.postForm(t, c, "/login", vals)
		expectError(t, resp, http.StatusUnauthorized, "invalid_credentials", "Invalid username/email or password.")
	}
}

func TestTamperedSessionCookieIsAnonymous(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.signIn(t, "alice")
	resp := env.do(t, env.client(t), http.MethodGet, "/api/me", nil, map[string]string{
		"Cookie": sessionCookieName + "=not-a-valid-token",
	})
	expectError(t, resp, http.StatusUnauthorized, "unauthorized", "")
}

func TestLoginRateLimitedRespondsTooManyRequests(t *testing.T) {
	limiter := newTestLimiter(t, 1)
	env := newTestEnv(t, nil, func(cfg *Config) { cfg.LoginLimiter = limiter })
	c := env.client(t)
	vals := url.Values{"username_or_email": {"alice"}, "password": {"nope"}}

	expectError(t, env.postForm(t, c, "/login", vals), http.StatusUnauthorized, "invalid_credentials", "")
	resp := env.postForm(t, c, "/login", vals)
	expectError(t, resp, http.StatusTooManyRequests, "rate_limited", "")
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestAnonymousMutationsRequireAuth(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	c := env.client(t)
	for _, path := range []string{"/quotes", "/api/quotes", "/api/quotes/1/react", "/api/ai-explanation", "/quotes/1/delete"} {
		resp := env.postForm(t, c, path, url.Values{"content": {"x"}})
		expectError(t, resp, http.StatusUnauthorized, "unauthorized", "Authentication required")
	}
}

func TestPagesRedirectAnonymousToLogin(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	c := env.client(t)
	for _, path := range []string{"/quotes/new", "/me/quotes", "/me/likes", "/me/collections", "/quotes/1/edit"} {
		expectRedirect(t, env.get(t, c, path), "/login")
	}
}
