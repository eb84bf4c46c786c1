package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lamgaraproperties/lamgara-web/internal/httpmw"
	"github.com/lamgaraproperties/lamgara-web/internal/log"
)

// DefaultMaxBodyBytes matches the admin editor's largest content document.
const DefaultMaxBodyBytes = 5 << 20

type Options struct {
	Logger log.Logger
	Port   int

	// APIRoutes mounts the JSON API onto the public router.
	APIRoutes func(chi.Router)
	// SiteHandler serves everything the router does not match.
	SiteHandler http.Handler

	RateLimitMW func(http.Handler) http.Handler
	MetricsMW   func(http.Handler) http.Handler
	OnPanic     func()

	ClientIPOpts httpmw.ClientIPOptions
	MaxBodyBytes int64
	ContentInfo  httpmw.ContentInfo
	Security     httpmw.SecurityOptions
}
