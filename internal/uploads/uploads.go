// Package uploads hands out short-lived presigned PUT URLs so the admin UI
// can upload images straight to object storage.
//
// Uploading is two-phase: Presign is stateless and safe to retry, the client
// PUTs the file to storage itself, and the resulting FileURL is persisted
// later by an ordinary content save.
package uploads

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lamgaraproperties/lamgara-web/internal/log"
	"github.com/lamgaraproperties/lamgara-web/internal/otelx"
	"github.com/lamgaraproperties/lamgara-web/internal/pathutil"
	"github.com/lamgaraproperties/lamgara-web/internal/xerrors"
)

// URLTTL is the lifetime of an issued upload URL.
const URLTTL = 5 * time.Minute

// Folders are the key prefixes an upload may target.
var Folders = []string{"hero", "listings", "spotlight", "blogs"}

var (
	ErrMissingFields = errors.New("uploads: filename and folder are required")
	ErrInvalidFolder = errors.New("uploads: invalid folder")
	ErrNotConfigured = errors.New("uploads: storage is not configured")
)

// Presigner signs a single-object PUT against a storage provider.
type Presigner interface {
	// PresignPut returns a URL valid for ttl. contentType is signed only when
	// non-empty.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	// PublicURL is where the object is readable once uploaded.
	PublicURL(key string) string
}

type Request struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Folder      string `json:"folder"`
}

type Result struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
	FileURL   string `json:"fileUrl"`
}

type Service struct {
	presigner Presigner
	now       func() time.Time
	tracer    trace.Tracer
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service; a nil presigner makes every call fail with
// ErrNotConfigured.
func NewService(p Presigner, opts ...Option) *Service {
	s := &Service{presigner: p, now: time.Now, tracer: otelx.Tracer("uploads")}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Configured() bool { return s.presigner != nil }

// ValidFolder reports whether folder is in Folders.
func ValidFolder(folder string) bool {
	return slices.Contains(Folders, folder)
}

// Key builds "<folder>/<unix-millis>-<safe-name>".
func Key(folder, filename string, at time.Time) string {
	return folder + "/" + strconv.FormatInt(at.UnixMilli(), 10) + "-" + pathutil.SafeName(filename)
}

// Presign validates req and returns the upload URL, object key and public
// URL. Validation failures never reach the provider.
func (s *Service) Presign(ctx context.Context, req Request) (Result, error) {
	if !s.Configured() {
		return Result{}, ErrNotConfigured
	}
	if req.Filename == "" || req.Folder == "" {
		return Result{}, ErrMissingFields
	}
	if !ValidFolder(req.Folder) {
		return Result{}, ErrInvalidFolder
	}

	key := Key(req.Folder, req.Filename, s.now())
	contentType := strings.TrimSpace(req.ContentType)

	ctx, span := s.tracer.Start(ctx, "uploads.presign", trace.WithAttributes(
		attribute.String("upload.folder", req.Folder),
		attribute.String("upload.key", key),
	))
	defer span.End()

	uploadURL, err := s.presigner.PresignPut(ctx, key, contentType, URLTTL)
	if err != nil {
		err = xerrors.Wrapf(err, "presign put %s", key)
		span.RecordError(err)
		span.SetStatus(codes.Error, "presign failed")
		return Result{}, err
	}

	log.FromContext(ctx).Info(ctx, "upload url issued", "upload.key", key, "upload.content_type", contentType)
	return Result{UploadURL: uploadURL, Key: key, FileURL: s.presigner.PublicURL(key)}, nil
}

// joinPublic joins a base URL and key with exactly one slash.
func joinPublic(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}
