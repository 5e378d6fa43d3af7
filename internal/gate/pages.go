package gate

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/docgate/internal/identity"
	"github.com/ashureev/docgate/web"
)

// Pages is middleware that runs the gate on every HTML page request.
// Static assets pass straight through.
func (g *Gate) Pages(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !web.IsPage(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		id := identity.FromContext(r.Context())
		d, err := g.Evaluate(r.Context(), Visit{
			DeviceID:       id.DeviceID,
			BrowserSession: id.BrowserSession,
			Path:           r.URL.Path,
			RawQuery:       r.URL.RawQuery,
		})
		if err != nil {
			g.logger.Error("gate evaluation failed", "device_id", id.DeviceID, "path", r.URL.Path, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		switch d.Action {
		case ActionShowLogin:
			g.LoginHandler().ServeHTTP(w, r)
		case ActionRedirect:
			http.Redirect(w, r, d.Location, http.StatusFound)
		case ActionDeny:
			g.logger.Info("guarded page denied", "device_id", id.DeviceID, "path", r.URL.Path, "ip", identity.IPFromRequest(r))
			g.renderDenied(w)
		default:
			if d.Permitted {
				next.ServeHTTP(w, r)
				return
			}
			g.serveFiltered(w, r, next)
		}
	})
}

// serveFiltered buffers the page and strips guarded navigation from HTML bodies.
func (g *Gate) serveFiltered(w http.ResponseWriter, r *http.Request, next http.Handler) {
	buf := &bufferedResponse{header: make(http.Header), status: http.StatusOK}
	next.ServeHTTP(buf, r)

	for k, v := range buf.header {
		w.Header()[k] = v
	}

	body := buf.body.Bytes()
	if strings.HasPrefix(buf.header.Get("Content-Type"), "text/html") && buf.status == http.StatusOK && r.Method != http.MethodHead {
		var out bytes.Buffer
		if err := HideGuardedNav(&out, bytes.NewReader(body), g.cfg.GuardNavLabels, g.cfg.GuardPrefixes); err != nil {
			g.logger.Warn("failed to filter navigation", "path", r.URL.Path, "error", err)
		} else {
			body = out.Bytes()
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Del("Last-Modified")
	}

	w.WriteHeader(buf.status)
	if _, err := w.Write(body); err != nil {
		g.logger.Debug("failed to write page", "path", r.URL.Path, "error", err)
	}
}

func (g *Gate) renderDenied(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	if g.templates == nil {
		_, _ = w.Write([]byte("<h1>Acceso Denegado</h1><p>No tienes permiso.</p>"))
		return
	}
	if err := g.templates.ExecuteTemplate(w, web.DeniedTemplate, web.DeniedPage{Home: g.cfg.HomePath()}); err != nil {
		g.logger.Error("failed to render denied page", "error", err)
	}
}

type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
	wrote  bool
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wrote {
		return
	}
	b.wrote = true
	b.status = status
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if !b.wrote {
		b.WriteHeader(http.StatusOK)
	}
	return b.body.Write(p)
}
