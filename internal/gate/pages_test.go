package gate

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/docgate/internal/identity"
	"github.com/ashureev/docgate/web"
)

const sitePage = `<!doctype html><html><head><title>page</title></head><body>
<nav class="md-tabs"><ul>
<li><a href="/guide/">Dev Guide</a></li>
<li><a href="/internal/">Dev Guide Internal</a></li>
</ul></nav><main>content</main></body></html>`

func testSite() fstest.MapFS {
	return fstest.MapFS{
		"index.html":          {Data: []byte(sitePage)},
		"guide/index.html":    {Data: []byte(sitePage)},
		"internal/index.html": {Data: []byte(sitePage)},
		"assets/chat.js":      {Data: []byte("// widget")},
	}
}

func newTestHandler(f *fixture) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/login/", f.gate.LoginHandler())
	mux.Handle("/logout/", f.gate.LogoutHandler())
	mux.Handle("/api/ping", f.gate.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})))
	mux.Handle("/", f.gate.Pages(web.SiteHandler(testSite())))
	return identity.Middleware(true)(mux)
}

// browser replays cookies between requests, like a real user agent.
type browser struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, h http.Handler) *browser {
	return &browser{t: t, h: h, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) login(user, pass string) *httptest.ResponseRecorder {
	form := url.Values{"user": {user}, "pass": {pass}}
	req := httptest.NewRequest(http.MethodPost, "/login/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func TestPagesLoginRoundTrip(t *testing.T) {
	f := newFixture(t, testGateConfig())
	b := newBrowser(t, newTestHandler(f))

	rec := b.get("/guide/?tab=2")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login/", rec.Header().Get("Location"))

	rec = b.get("/login/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="login-form"`)

	rec = b.login("ana", "secret")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/guide/?tab=2", rec.Header().Get("Location"))

	device := b.cookies[identity.DeviceCookieName].Value
	assert.Equal(t, []string{"browser-" + device}, f.auth.machineIDs)

	rec = b.get("/guide/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "content")
	assert.NotContains(t, rec.Body.String(), "Dev Guide Internal", "guarded nav hidden without an allowed role")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestPagesLoginWithoutTargetGoesHome(t *testing.T) {
	f := newFixture(t, testGateConfig())
	b := newBrowser(t, newTestHandler(f))

	rec := b.login("ana", "secret")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestPagesBadCredentialsKeepFormUsable(t *testing.T) {
	f := newFixture(t, testGateConfig())
	b := newBrowser(t, newTestHandler(f))

	rec := b.login("ana", "wrong")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Credenciales inválidas")
	assert.Contains(t, body, `value="ana"`)
	assert.Contains(t, body, `id="login-button"`)

	rec = b.login("ana", "secret")
	assert.Equal(t, http.StatusSeeOther, rec.Code, "form stays usable after a failure")
}

func TestPagesLoginThrottled(t *testing.T) {
	cfg := testGateConfig()
	cfg.LoginRate = 0.001
	cfg.LoginBurst = 2
	f := newFixture(t, cfg)
	b := newBrowser(t, newTestHandler(f))

	assert.Equal(t, http.StatusUnauthorized, b.login("ana", "x").Code)
	assert.Equal(t, http.StatusUnauthorized, b.login("ana", "y").Code)
	rec := b.login("ana", "secret")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Demasiados intentos")

	assert.Equal(t, 0, f.gate.PruneLimiters(time.Hour))
	assert.Equal(t, 1, f.gate.PruneLimiters(-time.Second))
}

func TestPagesGuardedSection(t *testing.T) {
	f := newFixture(t, testGateConfig())
	b := newBrowser(t, newTestHandler(f))
	require.Equal(t, http.StatusSeeOther, b.login("ana", "secret").Code)

	rec := b.get("/internal/")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acceso Denegado")

	f.auth.mu.Lock()
	f.auth.roles = []string{"admin"}
	f.auth.mu.Unlock()

	rec = b.get("/internal/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Dev Guide Internal")
}

func TestPagesAssetsBypassGate(t *testing.T) {
	f := newFixture(t, testGateConfig())
	b := newBrowser(t, newTestHandler(f))

	rec := b.get("/assets/chat.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "// widget", rec.Body.String())
}

func TestPagesSessionExpiresAfterTTL(t *testing.T) {
	f := newFixture(t, testGateConfig())
	b := newBrowser(t, newTestHandler(f))
	require.Equal(t, http.StatusSeeOther, b.login("ana", "secret").Code)
	require.Equal(t, http.StatusOK, b.get("/").Code)

	f.clock.Advance(3601 * time.Second)
	rec := b.get("/guide/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login/", rec.Header().Get("Location"))
}

func TestRequireSession(t *testing.T) {
	f := newFixture(t, testGateConfig())
	b := newBrowser(t, newTestHandler(f))

	assert.Equal(t, http.StatusUnauthorized, b.get("/api/ping").Code)
	require.Equal(t, http.StatusSeeOther, b.login("ana", "secret").Code)

	rec := b.get("/api/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestLogout(t *testing.T) {
	f := newFixture(t, testGateConfig())
	b := newBrowser(t, newTestHandler(f))
	require.Equal(t, http.StatusSeeOther, b.login("ana", "secret").Code)

	rec := b.do(httptest.NewRequest(http.MethodPost, "/logout/", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, http.StatusFound, b.get("/").Code)
}

func TestLogoutDropsPendingTarget(t *testing.T) {
	f := newFixture(t, testGateConfig())
	b := newBrowser(t, newTestHandler(f))

	require.Equal(t, http.StatusFound, b.get("/guide/").Code)
	require.Equal(t, 1, f.targets.Len())

	rec := b.do(httptest.NewRequest(http.MethodPost, "/logout/", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 0, f.targets.Len())

	rec = b.login("ana", "secret")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}
