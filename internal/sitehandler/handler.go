// Package sitehandler serves the public single-page app from disk.
//
// Files that exist are served as-is. Extensionless paths that match nothing
// are client-side routes and get the app's index.html. Missing files with an
// extension get a 404 page. Without a usable app build every request gets the
// embedded maintenance page with 503.
package sitehandler

import (
	"io/fs"
	"net/http"
)

type Handler struct {
	opts Options
}

func New(opts Options) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Handler{opts: opts}, nil
}

// Ready reports whether an app build is being served.
func (h *Handler) Ready() bool {
	return existsFile(h.opts.SiteFS, h.opts.IndexFile)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !h.Ready() {
		h.serveMaintenance(w, r)
		return
	}
	site := h.opts.SiteFS

	name, res := resolvePath(r.URL.Path, site)
	switch res {
	case resolveRedirect:
		http.Redirect(w, r, name, http.StatusPermanentRedirect)
	case resolveMissing:
		h.serveNotFound(w, r, site)
	case resolveApp:
		w.Header().Set("Cache-Control", h.opts.HTMLCacheControl)
		serveFileWithStatus(w, r, http.StatusOK, site, h.opts.IndexFile)
	default:
		if cc := cacheControlForFile(name, &h.opts); cc != "" {
			w.Header().Set("Cache-Control", cc)
		}
		http.ServeFileFS(w, r, site, name)
	}
}

func (h *Handler) serveMaintenance(w http.ResponseWriter, r *http.Request) {
	h.opts.Logger.Debug(r.Context(), "site build unavailable, serving maintenance page", "url.path", r.URL.Path)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Retry-After", "60")
	serveFileWithStatus(w, r, http.StatusServiceUnavailable, h.opts.FallbackFS, h.opts.MaintenanceFile)
}

func (h *Handler) serveNotFound(w http.ResponseWriter, r *http.Request, site fs.FS) {
	w.Header().Set("Cache-Control", "no-store")
	switch {
	case existsFile(site, h.opts.Site404File):
		serveFileWithStatus(w, r, http.StatusNotFound, site, h.opts.Site404File)
	case existsFile(h.opts.FallbackFS, h.opts.Fallback404File):
		serveFileWithStatus(w, r, http.StatusNotFound, h.opts.FallbackFS, h.opts.Fallback404File)
	default:
		http.Error(w, "404 page not found", http.StatusNotFound)
	}
}

// serveFileWithStatus reads the file itself so conditional request headers
// cannot turn an error page into a 304.
func serveFileWithStatus(w http.ResponseWriter, r *http.Request, status int, fsys fs.FS, name string) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}
