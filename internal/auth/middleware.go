package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lamgaraproperties/lamgara-web/internal/log"
)

// Reject reasons passed to the middleware's onReject hook.
const (
	RejectMissing       = "missing"
	RejectInvalid       = "invalid"
	RejectNotConfigured = "not_configured"
)

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by RequireAuth.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// RequireAuth admits requests carrying a valid token and stores the identity
// in the request context. An unconfigured subsystem yields 503, anything else
// 401. onReject may be nil.
func (a *Authenticator) RequireAuth(onReject func(reason string)) func(http.Handler) http.Handler {
	reject := func(w http.ResponseWriter, r *http.Request, status int, reason, msg string) {
		if onReject != nil {
			onReject(reason)
		}
		log.FromContext(r.Context()).Debug(r.Context(), "admin request rejected", "reason", reason)
		writeError(w, status, msg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Configured() {
				reject(w, r, http.StatusServiceUnavailable, RejectNotConfigured, "Admin auth is not configured")
				return
			}
			tok, ok := BearerToken(r)
			if !ok {
				reject(w, r, http.StatusUnauthorized, RejectMissing, "Unauthorized")
				return
			}

			ctx := r.Context()
			id, err := a.Verify(ctx, tok)
			if err != nil {
				reject(w, r, http.StatusUnauthorized, RejectInvalid, "Unauthorized")
				return
			}

			ctx = WithIdentity(ctx, id)
			ctx = log.WithContext(ctx, log.FromContext(ctx).With("admin.user", id.Username))
			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(attribute.String("app.admin_user", id.Username))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
