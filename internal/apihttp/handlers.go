package apihttp

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/lamgaraproperties/lamgara-web/internal/auth"
	"github.com/lamgaraproperties/lamgara-web/internal/content"
	"github.com/lamgaraproperties/lamgara-web/internal/log"
	"github.com/lamgaraproperties/lamgara-web/internal/metrics"
	"github.com/lamgaraproperties/lamgara-web/internal/uploads"
)

// HandleHealth reports 500 with the names of unset variables until storage
// and admin auth are both configured.
func (api *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	missing := slices.Concat(api.opts.MissingStorageEnv(), api.opts.MissingAuthEnv())
	if len(missing) > 0 {
		api.writeJSON(r.Context(), w, http.StatusInternalServerError, HealthResponse{OK: false, MissingEnv: missing})
		return
	}
	api.writeJSON(r.Context(), w, http.StatusOK, HealthResponse{OK: true})
}

func (api *API) HandleGetContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := api.opts.Content.Get(ctx)
	if err != nil {
		log.FromContext(ctx).Error(ctx, err, "content read failed")
		api.writeError(ctx, w, http.StatusInternalServerError, msgReadFailed)
		return
	}

	etag := `"` + snap.Hash + `"`
	setRevisionHeaders(w, snap)
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	resp := ContentResponse{Content: snap.Document}
	if snap.UpdatedAt != "" {
		resp.UpdatedAt = &snap.UpdatedAt
	}
	api.writeJSON(ctx, w, http.StatusOK, resp)
}

// HandlePutContent replaces the document wholesale. The last save wins.
func (api *API) HandlePutContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SaveContentRequest
	if !decodeBody(r, &req) || !content.IsObject(req.Content) {
		api.contentSaved(metrics.ResultInvalid, content.Snapshot{})
		api.writeError(ctx, w, http.StatusBadRequest, msgContentRequired)
		return
	}

	snap, err := api.opts.Content.Save(ctx, req.Content)
	if errors.Is(err, content.ErrInvalidDocument) {
		api.contentSaved(metrics.ResultInvalid, content.Snapshot{})
		api.writeError(ctx, w, http.StatusBadRequest, msgContentRequired)
		return
	}
	if err != nil {
		api.contentSaved(metrics.ResultError, content.Snapshot{})
		log.FromContext(ctx).Error(ctx, err, "content save failed")
		api.writeError(ctx, w, http.StatusInternalServerError, msgSaveFailed)
		return
	}

	api.contentSaved(metrics.ResultOK, snap)
	sum := content.Summarize(snap.Document)
	log.FromContext(ctx).Info(ctx, "content saved",
		"content.updated_at", snap.UpdatedAt,
		"content.bytes", len(snap.Document),
		"content.listings", sum.Listings,
		"content.spotlight", sum.Spotlight,
		"content.blogs", sum.Blogs,
	)
	setRevisionHeaders(w, snap)
	api.writeJSON(ctx, w, http.StatusOK, SaveContentResponse{OK: true, UpdatedAt: snap.UpdatedAt})
}

func (api *API) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if !decodeBody(r, &req) || req.Username == "" || req.Password == "" {
		api.login(metrics.ResultInvalid)
		api.writeError(ctx, w, http.StatusBadRequest, msgLoginFields)
		return
	}
	if api.opts.Auth == nil {
		api.login(metrics.ResultError)
		api.writeError(ctx, w, http.StatusServiceUnavailable, msgAuthNotConfigured)
		return
	}

	tok, err := api.opts.Auth.Login(ctx, req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrNotConfigured):
		api.login(metrics.ResultError)
		api.writeError(ctx, w, http.StatusServiceUnavailable, msgAuthNotConfigured)
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		api.login(metrics.ResultInvalid)
		log.FromContext(ctx).Warn(ctx, "admin login rejected")
		api.writeError(ctx, w, http.StatusUnauthorized, msgInvalidCreds)
		return
	case err != nil:
		api.login(metrics.ResultError)
		log.FromContext(ctx).Error(ctx, err, "admin token signing failed")
		api.writeError(ctx, w, http.StatusInternalServerError, msgTokenFailed)
		return
	}

	api.login(metrics.ResultOK)
	log.FromContext(ctx).Info(ctx, "admin logged in", "admin.user", req.Username)
	w.Header().Set("Cache-Control", "no-store")
	api.writeJSON(ctx, w, http.StatusOK, LoginResponse{
		OK:        true,
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt.UTC().Format(content.StampLayout),
	})
}

func (api *API) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		api.writeError(r.Context(), w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var resp MeResponse
	resp.OK = true
	resp.User.Username = id.Username
	api.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (api *API) HandlePresign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req uploads.Request
	// a malformed body leaves req empty and fails as missing fields
	_ = decodeBody(r, &req)

	if api.opts.Uploads == nil {
		api.presign(metrics.ResultError)
		api.writeMissingEnv(w, r)
		return
	}

	res, err := api.opts.Uploads.Presign(ctx, req)
	switch {
	case errors.Is(err, uploads.ErrNotConfigured):
		api.presign(metrics.ResultError)
		api.writeMissingEnv(w, r)
	case errors.Is(err, uploads.ErrMissingFields):
		api.presign(metrics.ResultInvalid)
		api.writeError(ctx, w, http.StatusBadRequest, msgUploadFields)
	case errors.Is(err, uploads.ErrInvalidFolder):
		api.presign(metrics.ResultInvalid)
		api.writeError(ctx, w, http.StatusBadRequest, msgInvalidFolder)
	case err != nil:
		api.presign(metrics.ResultError)
		log.FromContext(ctx).Error(ctx, err, "presign failed", "upload.folder", req.Folder)
		api.writeError(ctx, w, http.StatusInternalServerError, msgPresignFailed)
	default:
		api.presign(metrics.ResultOK)
		api.writeJSON(ctx, w, http.StatusOK, res)
	}
}

func (api *API) writeMissingEnv(w http.ResponseWriter, r *http.Request) {
	missing := api.opts.MissingStorageEnv()
	if missing == nil {
		missing = []string{}
	}
	api.writeJSON(r.Context(), w, http.StatusInternalServerError, missingEnvBody{Error: msgMissingEnv, MissingEnv: missing})
}

func (api *API) login(result string) {
	if api.opts.Hooks.Login != nil {
		api.opts.Hooks.Login(result)
	}
}

func (api *API) contentSaved(result string, snap content.Snapshot) {
	if api.opts.Hooks.ContentSaved != nil {
		api.opts.Hooks.ContentSaved(result, snap)
	}
}

func (api *API) presign(result string) {
	if api.opts.Hooks.Presign != nil {
		api.opts.Hooks.Presign(result)
	}
}

func setRevisionHeaders(w http.ResponseWriter, snap content.Snapshot) {
	if snap.UpdatedAt != "" {
		w.Header().Set("X-Content-Version", snap.UpdatedAt)
	}
	if len(snap.Hash) >= 12 {
		w.Header().Set("X-Content-Hash", snap.Hash[:12])
	}
}

// etagMatches implements the weak comparison If-None-Match uses, including
// lists and "*".
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
