package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const shortHashLen = 12

// ContentInfo reports the last stored site-content revision.
// content.Store implements it.
type ContentInfo interface {
	ContentVersion() string
	ContentHash() string
}

// ContentHeaders stamps X-Content-Version and a shortened X-Content-Hash on
// responses once a revision is known, and copies both onto the span.
func ContentHeaders(info ContentInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if info == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			version, hash := info.ContentVersion(), info.ContentHash()
			if version != "" {
				w.Header().Set("X-Content-Version", version)
			}
			if hash != "" {
				short := hash
				if len(short) > shortHashLen {
					short = short[:shortHashLen]
				}
				w.Header().Set("X-Content-Hash", short)
			}
			if span := trace.SpanFromContext(r.Context()); span.IsRecording() && version != "" {
				span.SetAttributes(
					attribute.String("content.version", version),
					attribute.String("content.hash", hash),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}
