// Package identity provides anonymous per-device and per-tab identity primitives.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DeviceCookieName   = "docgate_device"
	BrowserCookieName  = "docgate_browser"
	TabHeaderName      = "X-Docgate-Tab"
	TabQueryParam      = "tab"
	DefaultTabValue    = "default"
	deviceCookieMaxAge = 365 * 24 * time.Hour
)

// Identity is who is asking. DeviceID keys the durable session record and is
// sent as the machine id on login; BrowserSession keys volatile redirect
// targets and dies with the browser; TabID keys the chat widget.
type Identity struct {
	DeviceID       string
	BrowserSession string
	TabID          string
}

type contextKey struct{}

var tabIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// NewContext returns ctx carrying id.
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the identity injected by Middleware.
func FromContext(ctx context.Context) Identity {
	if v, ok := ctx.Value(contextKey{}).(Identity); ok {
		return v
	}
	return Identity{TabID: DefaultTabValue}
}

// DeviceIDFromContext extracts the device ID from the request context.
func DeviceIDFromContext(ctx context.Context) string {
	return FromContext(ctx).DeviceID
}

// BrowserSessionFromContext extracts the browser-session ID from the request context.
func BrowserSessionFromContext(ctx context.Context) string {
	return FromContext(ctx).BrowserSession
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

func sanitizeTabID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !tabIDPattern.MatchString(id) {
		return DefaultTabValue
	}
	return id
}

func getOrCreateDeviceID(w http.ResponseWriter, r *http.Request, isDev bool) string {
	id := uuid.NewString()
	if c, err := r.Cookie(DeviceCookieName); err == nil && isValidID(c.Value) {
		id = c.Value
	}

	// Refresh the expiry on every visit.
	http.SetCookie(w, &http.Cookie{
		Name:     DeviceCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(deviceCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(deviceCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
	return id
}

func getOrCreateBrowserSession(w http.ResponseWriter, r *http.Request, isDev bool) string {
	if c, err := r.Cookie(BrowserCookieName); err == nil && isValidID(c.Value) {
		return c.Value
	}

	id := uuid.NewString()
	// No MaxAge: the cookie ends with the browser session.
	http.SetCookie(w, &http.Cookie{
		Name:     BrowserCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
	return id
}

func tabIDFromRequest(r *http.Request) string {
	tab := r.Header.Get(TabHeaderName)
	if tab == "" {
		tab = r.URL.Query().Get(TabQueryParam)
	}
	return sanitizeTabID(tab)
}

// Middleware injects the anonymous device, browser-session and tab identity.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := Identity{
				DeviceID:       getOrCreateDeviceID(w, r, isDev),
				BrowserSession: getOrCreateBrowserSession(w, r, isDev),
				TabID:          tabIDFromRequest(r),
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), id)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
