package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, req *http.Request) (Identity, *httptest.ResponseRecorder) {
	t.Helper()
	var got Identity
	h := Middleware(true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return got, rec
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestMiddlewareIssuesCookies(t *testing.T) {
	id, rec := serve(t, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(id.DeviceID)
	require.NoError(t, err)
	_, err = uuid.Parse(id.BrowserSession)
	require.NoError(t, err)
	assert.NotEqual(t, id.DeviceID, id.BrowserSession)
	assert.Equal(t, DefaultTabValue, id.TabID)

	device := cookieNamed(rec, DeviceCookieName)
	require.NotNil(t, device)
	assert.Positive(t, device.MaxAge)
	assert.True(t, device.HttpOnly)

	browser := cookieNamed(rec, BrowserCookieName)
	require.NotNil(t, browser)
	assert.Zero(t, browser.MaxAge, "browser-session cookie must not persist")
}

func TestMiddlewareReusesCookies(t *testing.T) {
	device, browser := uuid.NewString(), uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/?tab=tab-1", nil)
	req.AddCookie(&http.Cookie{Name: DeviceCookieName, Value: device})
	req.AddCookie(&http.Cookie{Name: BrowserCookieName, Value: browser})

	id, rec := serve(t, req)
	assert.Equal(t, device, id.DeviceID)
	assert.Equal(t, browser, id.BrowserSession)
	assert.Equal(t, "tab-1", id.TabID)
	assert.Nil(t, cookieNamed(rec, BrowserCookieName), "existing browser session is not reissued")
}

func TestMiddlewareReplacesInvalidCookies(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DeviceCookieName, Value: "not-a-uuid"})
	req.Header.Set(TabHeaderName, "bad tab id!")

	id, _ := serve(t, req)
	assert.NotEqual(t, "not-a-uuid", id.DeviceID)
	assert.Equal(t, DefaultTabValue, id.TabID)
}

func TestFromContextDefaults(t *testing.T) {
	id := FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.Empty(t, id.DeviceID)
	assert.Equal(t, DefaultTabValue, id.TabID)

	ctx := NewContext(t.Context(), Identity{DeviceID: "d", BrowserSession: "b", TabID: "t"})
	assert.Equal(t, "d", DeviceIDFromContext(ctx))
	assert.Equal(t, "b", BrowserSessionFromContext(ctx))
}
