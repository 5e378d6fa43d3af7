package gate

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ashureev/docgate/internal/authapi"
	"github.com/ashureev/docgate/internal/identity"
	"github.com/ashureev/docgate/web"
)

const (
	msgInvalidCredentials = "Credenciales inválidas"
	msgTooManyAttempts    = "Demasiados intentos. Espera un momento."
	msgLoginUnavailable   = "No se pudo iniciar sesión. Inténtalo de nuevo."
)

type loginLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginHandler serves the credential form on GET and exchanges credentials on POST.
func (g *Gate) LoginHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			g.renderLogin(w, http.StatusOK, web.LoginPage{Action: g.cfg.LoginPath()})
		case http.MethodPost:
			g.handleLogin(w, r)
		default:
			w.Header().Set("Allow", "GET, HEAD, POST")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})
}

func (g *Gate) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := identity.FromContext(ctx)
	page := web.LoginPage{Action: g.cfg.LoginPath()}

	if !g.allowLogin(id.DeviceID) {
		g.metrics.CredentialResult("throttled")
		page.Error = msgTooManyAttempts
		g.renderLogin(w, http.StatusTooManyRequests, page)
		return
	}

	if err := r.ParseForm(); err != nil {
		page.Error = msgInvalidCredentials
		g.renderLogin(w, http.StatusBadRequest, page)
		return
	}
	user := strings.TrimSpace(r.PostFormValue("user"))
	pass := r.PostFormValue("pass")
	page.User = user
	if user == "" || pass == "" {
		page.Error = msgInvalidCredentials
		g.renderLogin(w, http.StatusUnauthorized, page)
		return
	}

	token, err := g.auth.ExchangeCredentials(ctx, user, pass, "browser-"+id.DeviceID)
	if err != nil {
		var ae *authapi.AuthError
		if errors.As(err, &ae) && ae.Status != 0 {
			g.metrics.CredentialResult("rejected")
		} else {
			g.metrics.CredentialResult("error")
		}
		g.logger.Warn("credential exchange failed", "device_id", id.DeviceID, "error", err)
		page.Error = msgInvalidCredentials
		g.renderLogin(w, http.StatusUnauthorized, page)
		return
	}

	if err := g.sessions.StartSession(ctx, id.DeviceID, token); err != nil {
		g.metrics.CredentialResult("error")
		g.logger.Error("failed to start session", "device_id", id.DeviceID, "error", err)
		page.Error = msgLoginUnavailable
		g.renderLogin(w, http.StatusInternalServerError, page)
		return
	}
	g.metrics.CredentialResult("accepted")

	target, ok := g.targets.Pop(id.BrowserSession)
	if !ok {
		target = g.cfg.HomePath()
	}
	g.logger.Info("session started", "device_id", id.DeviceID)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// LogoutHandler clears the device's session and any redirect target pending
// for the browser session, then returns to the login form.
func (g *Gate) LogoutHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := identity.DeviceIDFromContext(r.Context())
		if err := g.sessions.ClearSession(r.Context(), deviceID); err != nil {
			g.logger.Error("failed to clear session", "device_id", deviceID, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		g.targets.Pop(identity.BrowserSessionFromContext(r.Context()))
		http.Redirect(w, r, g.cfg.LoginPath(), http.StatusSeeOther)
	})
}

func (g *Gate) renderLogin(w http.ResponseWriter, status int, page web.LoginPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if g.templates == nil {
		return
	}
	if err := g.templates.ExecuteTemplate(w, web.LoginTemplate, page); err != nil {
		g.logger.Error("failed to render login page", "error", err)
	}
}

func (g *Gate) allowLogin(deviceID string) bool {
	g.limitersMu.Lock()
	defer g.limitersMu.Unlock()

	l, ok := g.limiters[deviceID]
	if !ok {
		l = &loginLimiter{limiter: rate.NewLimiter(rate.Limit(g.cfg.LoginRate), g.cfg.LoginBurst)}
		g.limiters[deviceID] = l
	}
	l.lastSeen = time.Now()
	return l.limiter.Allow()
}

// PruneLimiters drops login limiters idle for longer than maxIdle.
func (g *Gate) PruneLimiters(maxIdle time.Duration) int {
	g.limitersMu.Lock()
	defer g.limitersMu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	n := 0
	for k, l := range g.limiters {
		if l.lastSeen.Before(cutoff) {
			delete(g.limiters, k)
			n++
		}
	}
	return n
}
