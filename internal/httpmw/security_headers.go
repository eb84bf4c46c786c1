package httpmw

import (
	"net/http"
	"net/url"
	"strings"
)

// Admin requests carry a bearer token in the Authorization header, never a
// cookie, so there is no ambient credential for CSRF to ride on.

// SecurityOptions widens the content security policy for assets that live
// outside this origin.
type SecurityOptions struct {
	// MediaOrigins may serve images and accept the browser's direct upload
	// PUT, e.g. the bucket's public base URL.
	MediaOrigins []string
}

// SecurityHeaders sets browser hardening headers on every response.
func SecurityHeaders(opts SecurityOptions) func(http.Handler) http.Handler {
	csp := buildCSP(opts.MediaOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), geolocation=(), microphone=(), payment=(), usb=()")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Cross-Origin-Resource-Policy", "same-site")
			next.ServeHTTP(w, r)
		})
	}
}

func buildCSP(media []string) string {
	var origins []string
	for _, m := range media {
		if o := Origin(m); o != "" {
			origins = append(origins, o)
		}
	}
	extra := ""
	if len(origins) > 0 {
		extra = " " + strings.Join(origins, " ")
	}
	return "default-src 'self'; " +
		"script-src 'self'; " +
		"style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data: blob:" + extra + "; " +
		"connect-src 'self'" + extra + "; " +
		"font-src 'self' data:; " +
		"base-uri 'self'; form-action 'self'; frame-ancestors 'none'; object-src 'none'"
}

// Origin reduces an absolute URL to scheme://host[:port], or "" when raw is
// not an absolute http(s) URL.
func Origin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
