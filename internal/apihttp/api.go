// Package apihttp serves the JSON API under /api: content read and write,
// admin login and upload URL issuance.
package apihttp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/lamgaraproperties/lamgara-web/internal/auth"
	"github.com/lamgaraproperties/lamgara-web/internal/content"
	"github.com/lamgaraproperties/lamgara-web/internal/httpmw"
	"github.com/lamgaraproperties/lamgara-web/internal/log"
	"github.com/lamgaraproperties/lamgara-web/internal/uploads"
)

// ContentStore is the persistence the content routes need. *content.Store
// implements it.
type ContentStore interface {
	Get(ctx context.Context) (content.Snapshot, error)
	Save(ctx context.Context, doc []byte) (content.Snapshot, error)
}

// Uploader issues presigned upload URLs. *uploads.Service implements it.
type Uploader interface {
	Presign(ctx context.Context, req uploads.Request) (uploads.Result, error)
}

// Hooks are optional callbacks for metrics. Results use the metrics
// package's result labels.
type Hooks struct {
	Login         func(result string)
	TokenRejected func(reason string)
	ContentSaved  func(result string, snap content.Snapshot)
	Presign       func(result string)
}

type Options struct {
	Logger  log.Logger
	Content ContentStore
	Auth    *auth.Authenticator
	Uploads Uploader

	// MissingStorageEnv and MissingAuthEnv name unset LAMGARA_* variables.
	MissingStorageEnv func() []string
	MissingAuthEnv    func() []string

	// LoginLimiter wraps the login route only.
	LoginLimiter func(http.Handler) http.Handler

	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string

	Hooks Hooks
}

// API implements the /api endpoints.
type API struct {
	opts Options
}

func NewAPI(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.MissingStorageEnv == nil {
		opts.MissingStorageEnv = func() []string { return nil }
	}
	if opts.MissingAuthEnv == nil {
		opts.MissingAuthEnv = func() []string { return nil }
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &API{opts: opts}
}

// RegisterRoutes mounts the API under /api on r.
func (api *API) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: api.opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "If-None-Match"},
			ExposedHeaders: []string{"ETag", "X-Content-Version", "X-Request-Id"},
			MaxAge:         300,
		}))

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			api.writeError(r.Context(), w, http.StatusNotFound, "Not found")
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			api.writeError(r.Context(), w, http.StatusMethodNotAllowed, "Method not allowed")
		})

		requireAuth := api.requireAuth()

		r.With(httpmw.Scope("api.health")).Get("/health", api.HandleHealth)
		r.With(httpmw.Scope("content.get")).Get("/content", api.HandleGetContent)
		r.With(httpmw.Scope("content.put"), requireAuth).Put("/content", api.HandlePutContent)

		login := r.With(httpmw.Scope("auth.login"))
		if api.opts.LoginLimiter != nil {
			login = login.With(api.opts.LoginLimiter)
		}
		login.Post("/auth/login", api.HandleLogin)
		r.With(httpmw.Scope("auth.me"), requireAuth).Get("/auth/me", api.HandleMe)

		r.With(httpmw.Scope("uploads.presign"), requireAuth).Post("/uploads/presign", api.HandlePresign)
	})
}

func (api *API) requireAuth() func(http.Handler) http.Handler {
	if api.opts.Auth == nil {
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				api.reject(auth.RejectNotConfigured)
				api.writeError(r.Context(), w, http.StatusServiceUnavailable, msgAuthNotConfigured)
			})
		}
	}
	return api.opts.Auth.RequireAuth(api.reject)
}

func (api *API) reject(reason string) {
	if api.opts.Hooks.TokenRejected != nil {
		api.opts.Hooks.TokenRejected(reason)
	}
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-cache")
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(ctx).Warn(ctx, "failed to encode JSON response", "error", err)
	}
}

func (api *API) writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	api.writeJSON(ctx, w, status, errorBody{Error: msg})
}

// decodeBody reads a JSON request body into v. Any failure, including an
// oversized body, is reported as false and treated by callers as missing
// fields.
func decodeBody(r *http.Request, v any) bool {
	if r.Body == nil {
		return false
	}
	return json.NewDecoder(r.Body).Decode(v) == nil
}
