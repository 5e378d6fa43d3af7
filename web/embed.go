// Package web embeds the sample documentation site and the server-rendered
// gate pages (login form, access denied).
//
// SITE_DIR points the server at a real built site instead; the embedded one
// is enough to exercise the gate and the chat widget locally.
package web

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed all:site
var siteFS embed.FS

//go:embed templates/*.html
var templateFS embed.FS

// Template names.
const (
	LoginTemplate  = "login.html"
	DeniedTemplate = "denied.html"
)

// LoginPage is the data rendered by the login template.
type LoginPage struct {
	Action string
	User   string
	Error  string
}

// DeniedPage is the data rendered by the denied template.
type DeniedPage struct {
	Home string
}

// Templates parses the embedded gate templates.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}

// SiteFS returns dir as a filesystem, or the embedded sample site when dir is empty.
func SiteFS(dir string) (fs.FS, error) {
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, errors.New("web: SITE_DIR is not a directory: " + dir)
		}
		return os.DirFS(dir), nil
	}
	return fs.Sub(siteFS, "site")
}

// IsPage reports whether p names an HTML page: a directory-style or
// extension-less path, or an .html file.
func IsPage(p string) bool {
	ext := path.Ext(p)
	return strings.HasSuffix(p, "/") || ext == "" || ext == ".html"
}

// SiteHandler serves a static documentation site. Pretty URLs resolve to
// index.html; unknown paths get 404.html with a 404 status when present.
func SiteHandler(site fs.FS) http.Handler {
	fileServer := http.FileServer(http.FS(site))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = "."
		}

		if info, err := fs.Stat(site, name); err == nil {
			if !info.IsDir() {
				fileServer.ServeHTTP(w, r)
				return
			}
			if _, err := fs.Stat(site, path.Join(name, "index.html")); err == nil {
				if !strings.HasSuffix(r.URL.Path, "/") {
					http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
					return
				}
				fileServer.ServeHTTP(w, r)
				return
			}
		}

		serveNotFound(w, site)
	})
}

func serveNotFound(w http.ResponseWriter, site fs.FS) {
	f, err := site.Open("404.html")
	if err != nil {
		http.NotFound(w, nil)
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Debug("web: failed to close 404 page", "error", closeErr)
		}
	}()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if _, err := io.Copy(w, f); err != nil {
		slog.Debug("web: failed to write 404 page", "error", err)
	}
}
