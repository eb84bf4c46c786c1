package sitehandler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func siteFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":               {Data: []byte("<html>lamgara app</html>")},
		"assets/index-4f2a9c.js":   {Data: []byte("console.log(1)")},
		"assets/index-4f2a9c.css":  {Data: []byte("body{}")},
		"robots.txt":               {Data: []byte("User-agent: *")},
		"privacy/index.html":       {Data: []byte("<html>privacy</html>")},
		"images/hero-seafront.jpg": {Data: []byte("jpeg")},
	}
}

func fallbackFS() fstest.MapFS {
	return fstest.MapFS{
		"maintenance.html": {Data: []byte("<html>maintenance</html>")},
		"404.html":         {Data: []byte("<html>not found</html>")},
	}
}

func newHandler(t *testing.T, site fstest.MapFS) *Handler {
	t.Helper()
	opts := Options{FallbackFS: fallbackFS()}
	if site != nil {
		opts.SiteFS = site
	}
	h, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func do(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("nil fallback: err = %v", err)
	}
	_, err := New(Options{FallbackFS: fstest.MapFS{"404.html": {Data: []byte("x")}}})
	if !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("missing maintenance page: err = %v", err)
	}
}

func TestServe(t *testing.T) {
	h := newHandler(t, siteFS())

	cases := []struct {
		name, path string
		status     int
		body       string
		cache      string
	}{
		{"root", "/", http.StatusOK, "lamgara app", "no-cache"},
		{"hashed asset", "/assets/index-4f2a9c.js", http.StatusOK, "console.log", "public, max-age=31536000, immutable"},
		{"image", "/images/hero-seafront.jpg", http.StatusOK, "jpeg", "public, max-age=31536000, immutable"},
		{"other file", "/robots.txt", http.StatusOK, "User-agent", "public, max-age=3600"},
		{"client route", "/listings/sea-view-villa", http.StatusOK, "lamgara app", "no-cache"},
		{"client route with slash", "/blog/", http.StatusOK, "lamgara app", "no-cache"},
		{"directory index", "/privacy/", http.StatusOK, "privacy", "no-cache"},
		{"missing asset", "/assets/index-old.js", http.StatusNotFound, "not found", "no-store"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, tc.path)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if !strings.Contains(rec.Body.String(), tc.body) {
				t.Errorf("body = %q, want %q", rec.Body.String(), tc.body)
			}
			if got := rec.Header().Get("Cache-Control"); got != tc.cache {
				t.Errorf("Cache-Control = %q, want %q", got, tc.cache)
			}
		})
	}
}

func TestServe_RedirectsDirectoryWithoutSlash(t *testing.T) {
	rec := do(newHandler(t, siteFS()), http.MethodGet, "/privacy")
	if rec.Code != http.StatusPermanentRedirect || rec.Header().Get("Location") != "/privacy/" {
		t.Fatalf("status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestServe_Site404WinsOverFallback(t *testing.T) {
	site := siteFS()
	site["404.html"] = &fstest.MapFile{Data: []byte("<html>themed 404</html>")}
	rec := do(newHandler(t, site), http.MethodGet, "/favicon.png")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "themed 404") {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestServe_Maintenance(t *testing.T) {
	for name, site := range map[string]fstest.MapFS{
		"no site":     nil,
		"no index":    {"assets/a.js": {Data: []byte("x")}},
		"empty build": {},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHandler(t, site)
			if h.Ready() {
				t.Fatal("Ready() = true")
			}
			rec := do(h, http.MethodGet, "/listings")
			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d", rec.Code)
			}
			if rec.Header().Get("Retry-After") != "60" || rec.Header().Get("Cache-Control") != "no-store" {
				t.Errorf("headers = %v", rec.Header())
			}
			if !strings.Contains(rec.Body.String(), "maintenance") {
				t.Errorf("body = %q", rec.Body.String())
			}
		})
	}
}

func TestServe_MethodNotAllowed(t *testing.T) {
	rec := do(newHandler(t, siteFS()), http.MethodPost, "/")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET, HEAD" {
		t.Fatalf("status = %d allow = %q", rec.Code, rec.Header().Get("Allow"))
	}
}

func TestServe_HeadHasNoBody(t *testing.T) {
	rec := do(newHandler(t, siteFS()), http.MethodHead, "/listings/1")
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("status = %d body = %d bytes", rec.Code, rec.Body.Len())
	}
}

func TestServe_ErrorPageIgnoresConditionalHeaders(t *testing.T) {
	h := newHandler(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("If-Modified-Since", "Mon, 02 Jan 2090 15:04:05 GMT")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}
