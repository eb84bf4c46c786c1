package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lamgaraproperties/lamgara-web/internal/auth"
	"github.com/lamgaraproperties/lamgara-web/internal/content"
	"github.com/lamgaraproperties/lamgara-web/internal/uploads"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type stubPresigner struct {
	calls int
	err   error
}

func (s *stubPresigner) PresignPut(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "https://lamgara-media.s3.ap-south-1.amazonaws.com/" + key + "?X-Amz-Signature=abc", nil
}

func (s *stubPresigner) PublicURL(key string) string {
	return "https://media.lamgaraproperties.com/" + key
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context) (content.Snapshot, error) {
	return content.Snapshot{}, f.err
}
func (f failingStore) Save(context.Context, []byte) (content.Snapshot, error) {
	return content.Snapshot{}, f.err
}

type recorded struct {
	logins, rejections, saves, presigns []string
}

type fixture struct {
	router    http.Handler
	store     *content.Store
	presigner *stubPresigner
	authn     *auth.Authenticator
	events    *recorded
}

type fixtureOpts struct {
	store          ContentStore
	authCfg        *auth.Config
	noUploads      bool
	missingStorage []string
	missingAuth    []string
}

func newFixture(t *testing.T, fo fixtureOpts) *fixture {
	t.Helper()
	f := &fixture{presigner: &stubPresigner{}, events: &recorded{}}

	var store ContentStore = fo.store
	if store == nil {
		s, err := content.Open(t.Context(), filepath.Join(t.TempDir(), "lamgara.db"),
			content.WithClock(func() time.Time { return testNow }),
			content.WithDefaults([]byte(`{"brand":{"name":"Lamgara"},"listings":[]}`)))
		if err != nil {
			t.Fatalf("content.Open: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		if err := s.Initialize(t.Context()); err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		f.store, store = s, s
	}

	cfg := auth.Config{Username: "admin", Password: "hunter2", SigningSecret: "test-signing-secret"}
	if fo.authCfg != nil {
		cfg = *fo.authCfg
	}
	f.authn = auth.New(cfg, auth.WithClock(func() time.Time { return testNow }))

	var up Uploader
	if !fo.noUploads {
		up = uploads.NewService(f.presigner, uploads.WithClock(func() time.Time { return testNow }))
	} else {
		up = uploads.NewService(nil)
	}

	api := NewAPI(Options{
		Content:           store,
		Auth:              f.authn,
		Uploads:           up,
		MissingStorageEnv: func() []string { return fo.missingStorage },
		MissingAuthEnv:    func() []string { return fo.missingAuth },
		Hooks: Hooks{
			Login:         func(r string) { f.events.logins = append(f.events.logins, r) },
			TokenRejected: func(r string) { f.events.rejections = append(f.events.rejections, r) },
			ContentSaved:  func(r string, _ content.Snapshot) { f.events.saves = append(f.events.saves, r) },
			Presign:       func(r string) { f.events.presigns = append(f.events.presigns, r) },
		},
	})
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) token(t *testing.T) string {
	t.Helper()
	tok, err := f.authn.Login(t.Context(), "admin", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return tok.Value
}

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	if got := decode[errorBody](t, rec).Error; got != msg {
		t.Fatalf("error = %q, want %q", got, msg)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	rec := f.do(t, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK || !decode[HealthResponse](t, rec).OK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	f = newFixture(t, fixtureOpts{
		missingStorage: []string{"LAMGARA_S3_BUCKET"},
		missingAuth:    []string{"LAMGARA_AUTH_SIGNING_SECRET"},
	})
	rec = f.do(t, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[HealthResponse](t, rec)
	if got.OK || strings.Join(got.MissingEnv, ",") != "LAMGARA_S3_BUCKET,LAMGARA_AUTH_SIGNING_SECRET" {
		t.Fatalf("body = %+v", got)
	}
}

func TestGetContent(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	rec := f.do(t, http.MethodGet, "/api/content", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[ContentResponse](t, rec)
	if string(got.Content) != `{"brand":{"name":"Lamgara"},"listings":[]}` {
		t.Fatalf("content = %s", got.Content)
	}
	if got.UpdatedAt == nil || *got.UpdatedAt != "2026-03-01T10:00:00.000Z" {
		t.Fatalf("updatedAt = %v", got.UpdatedAt)
	}
	if rec.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
	if rec.Header().Get("X-Content-Version") != "2026-03-01T10:00:00.000Z" {
		t.Errorf("X-Content-Version = %q", rec.Header().Get("X-Content-Version"))
	}

	etag := rec.Header().Get("ETag")
	if !strings.HasPrefix(etag, `"`) || len(etag) != 66 {
		t.Fatalf("ETag = %q", etag)
	}
	for _, inm := range []string{etag, "W/" + etag, `"other", ` + etag, "*"} {
		rec = f.do(t, http.MethodGet, "/api/content", "", map[string]string{"If-None-Match": inm})
		if rec.Code != http.StatusNotModified || rec.Body.Len() != 0 {
			t.Fatalf("If-None-Match %s: status = %d", inm, rec.Code)
		}
	}
	rec = f.do(t, http.MethodGet, "/api/content", "", map[string]string{"If-None-Match": `"stale"`})
	if rec.Code != http.StatusOK {
		t.Fatalf("stale etag: status = %d", rec.Code)
	}
}

func TestGetContent_ReadFailure(t *testing.T) {
	f := newFixture(t, fixtureOpts{store: failingStore{err: errors.New("disk I/O error")}})
	rec := f.do(t, http.MethodGet, "/api/content", "", nil)
	wantError(t, rec, http.StatusInternalServerError, msgReadFailed)
	if strings.Contains(rec.Body.String(), "disk") {
		t.Fatal("internal error detail leaked")
	}
}

func TestPutContent_RoundTrip(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	body := `{"content":{"brand":{"name":"Lamgara Properties"},"listings":[{"id":"l1","title":"Sea view"}]}}`

	rec := f.do(t, http.MethodPut, "/api/content", body, bearer(f.token(t)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	saved := decode[SaveContentResponse](t, rec)
	if !saved.OK || saved.UpdatedAt != "2026-03-01T10:00:00.000Z" {
		t.Fatalf("response = %+v", saved)
	}

	got := decode[ContentResponse](t, f.do(t, http.MethodGet, "/api/content", "", nil))
	if string(got.Content) != `{"brand":{"name":"Lamgara Properties"},"listings":[{"id":"l1","title":"Sea view"}]}` {
		t.Fatalf("content = %s", got.Content)
	}
	if strings.Join(f.events.saves, ",") != "ok" {
		t.Fatalf("save events = %v", f.events.saves)
	}
}

func TestPutContent_Rejects(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	tok := f.token(t)

	for _, body := range []string{
		`{}`,
		`{"content":null}`,
		`{"content":"text"}`,
		`{"content":42}`,
		`{"content":[1,2]}`,
		`{"content":`,
		`not json`,
	} {
		t.Run(body, func(t *testing.T) {
			rec := f.do(t, http.MethodPut, "/api/content", body, bearer(tok))
			wantError(t, rec, http.StatusBadRequest, msgContentRequired)
		})
	}

	// the stored document is untouched
	got := decode[ContentResponse](t, f.do(t, http.MethodGet, "/api/content", "", nil))
	if string(got.Content) != `{"brand":{"name":"Lamgara"},"listings":[]}` {
		t.Fatalf("content changed: %s", got.Content)
	}
}

func TestPutContent_SaveFailure(t *testing.T) {
	f := newFixture(t, fixtureOpts{store: failingStore{err: errors.New("database is locked")}})
	rec := f.do(t, http.MethodPut, "/api/content", `{"content":{}}`, bearer(f.token(t)))
	wantError(t, rec, http.StatusInternalServerError, msgSaveFailed)
	if strings.Join(f.events.saves, ",") != "error" {
		t.Fatalf("save events = %v", f.events.saves)
	}
}

func TestPutContent_Auth(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	rec := f.do(t, http.MethodPut, "/api/content", `{"content":{}}`, nil)
	wantError(t, rec, http.StatusUnauthorized, "Unauthorized")

	rec = f.do(t, http.MethodPut, "/api/content", `{"content":{}}`, bearer("a.b.c"))
	wantError(t, rec, http.StatusUnauthorized, "Unauthorized")

	if strings.Join(f.events.rejections, ",") != "missing,invalid" {
		t.Fatalf("rejections = %v", f.events.rejections)
	}

	unconfigured := newFixture(t, fixtureOpts{authCfg: &auth.Config{}})
	rec = unconfigured.do(t, http.MethodPut, "/api/content", `{"content":{}}`, bearer("a.b.c"))
	wantError(t, rec, http.StatusServiceUnavailable, msgAuthNotConfigured)
}

func TestLogin(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	rec := f.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"hunter2"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	got := decode[LoginResponse](t, rec)
	if !got.OK || strings.Count(got.Token, ".") != 2 {
		t.Fatalf("response = %+v", got)
	}
	if got.ExpiresAt != "2026-03-01T22:00:00.000Z" {
		t.Fatalf("expiresAt = %q", got.ExpiresAt)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}

	me := f.do(t, http.MethodGet, "/api/auth/me", "", bearer(got.Token))
	if me.Code != http.StatusOK {
		t.Fatalf("me status = %d", me.Code)
	}
	if u := decode[MeResponse](t, me); !u.OK || u.User.Username != "admin" {
		t.Fatalf("me = %+v", u)
	}
}

func TestLogin_Failures(t *testing.T) {
	cases := []struct {
		name    string
		authCfg *auth.Config
		body    string
		status  int
		msg     string
		result  string
	}{
		{"wrong password", nil, `{"username":"admin","password":"nope"}`, http.StatusUnauthorized, msgInvalidCreds, "invalid"},
		{"wrong user", nil, `{"username":"root","password":"hunter2"}`, http.StatusUnauthorized, msgInvalidCreds, "invalid"},
		{"missing password", nil, `{"username":"admin"}`, http.StatusBadRequest, msgLoginFields, "invalid"},
		{"malformed", nil, `{"username":`, http.StatusBadRequest, msgLoginFields, "invalid"},
		{"not configured", &auth.Config{Username: "admin"}, `{"username":"admin","password":"x"}`, http.StatusServiceUnavailable, msgAuthNotConfigured, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, fixtureOpts{authCfg: tc.authCfg})
			rec := f.do(t, http.MethodPost, "/api/auth/login", tc.body, nil)
			wantError(t, rec, tc.status, tc.msg)
			if strings.Join(f.events.logins, ",") != tc.result {
				t.Fatalf("login events = %v", f.events.logins)
			}
		})
	}
}

func TestLogin_Limiter(t *testing.T) {
	calls := 0
	api := NewAPI(Options{
		Content: failingStore{},
		Auth:    auth.New(auth.Config{Username: "admin", Password: "pw", SigningSecret: "s"}),
		LoginLimiter: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(http.StatusTooManyRequests)
			})
		},
	})
	r := chi.NewRouter()
	api.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`)))
	if rec.Code != http.StatusTooManyRequests || calls != 1 {
		t.Fatalf("status = %d calls = %d", rec.Code, calls)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK || calls != 1 {
		t.Fatalf("limiter must only guard login: status = %d calls = %d", rec.Code, calls)
	}
}

func TestMe_RequiresToken(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	wantError(t, f.do(t, http.MethodGet, "/api/auth/me", "", nil), http.StatusUnauthorized, "Unauthorized")
}

func TestPresign(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	rec := f.do(t, http.MethodPost, "/api/uploads/presign",
		`{"filename":"Sea View.JPG","contentType":"image/jpeg","folder":"listings"}`, bearer(f.token(t)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	got := decode[uploads.Result](t, rec)
	wantKey := "listings/1772359200000-sea-view.jpg"
	if got.Key != wantKey {
		t.Fatalf("key = %q", got.Key)
	}
	if got.FileURL != "https://media.lamgaraproperties.com/"+wantKey {
		t.Fatalf("fileUrl = %q", got.FileURL)
	}
	if !strings.Contains(got.UploadURL, wantKey) {
		t.Fatalf("uploadUrl = %q", got.UploadURL)
	}
}

func TestPresign_Failures(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"missing folder", `{"filename":"a.jpg"}`, http.StatusBadRequest, msgUploadFields},
		{"missing filename", `{"folder":"hero"}`, http.StatusBadRequest, msgUploadFields},
		{"malformed", `{"filename":`, http.StatusBadRequest, msgUploadFields},
		{"bad folder", `{"filename":"a.jpg","folder":"../etc"}`, http.StatusBadRequest, msgInvalidFolder},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, fixtureOpts{})
			rec := f.do(t, http.MethodPost, "/api/uploads/presign", tc.body, bearer(f.token(t)))
			wantError(t, rec, tc.status, tc.msg)
			if f.presigner.calls != 0 {
				t.Fatal("provider must not be called for invalid input")
			}
		})
	}
}

func TestPresign_ProviderError(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.presigner.err = errors.New("AccessDenied: signature expired")
	rec := f.do(t, http.MethodPost, "/api/uploads/presign", `{"filename":"a.jpg","folder":"hero"}`, bearer(f.token(t)))
	wantError(t, rec, http.StatusInternalServerError, msgPresignFailed)
	if strings.Contains(rec.Body.String(), "AccessDenied") {
		t.Fatal("provider detail leaked")
	}
	if strings.Join(f.events.presigns, ",") != "error" {
		t.Fatalf("presign events = %v", f.events.presigns)
	}
}

func TestPresign_NotConfigured(t *testing.T) {
	f := newFixture(t, fixtureOpts{noUploads: true, missingStorage: []string{"LAMGARA_S3_BUCKET", "LAMGARA_S3_REGION"}})
	rec := f.do(t, http.MethodPost, "/api/uploads/presign", `{}`, bearer(f.token(t)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[missingEnvBody](t, rec)
	if got.Error != msgMissingEnv || strings.Join(got.MissingEnv, ",") != "LAMGARA_S3_BUCKET,LAMGARA_S3_REGION" {
		t.Fatalf("body = %+v", got)
	}

	// auth still comes first
	rec = f.do(t, http.MethodPost, "/api/uploads/presign", `{}`, nil)
	wantError(t, rec, http.StatusUnauthorized, "Unauthorized")
}

func TestCORS(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	rec := f.do(t, http.MethodOptions, "/api/content", "", map[string]string{
		"Origin":                         "https://admin.lamgaraproperties.com",
		"Access-Control-Request-Method":  http.MethodPut,
		"Access-Control-Request-Headers": "Authorization, Content-Type",
	})
	if rec.Code != http.StatusOK && rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("preflight headers = %v", rec.Header())
	}
}

func TestUnknownAPIRoute(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	wantError(t, f.do(t, http.MethodGet, "/api/listings", "", nil), http.StatusNotFound, "Not found")
	wantError(t, f.do(t, http.MethodDelete, "/api/content", "", nil), http.StatusMethodNotAllowed, "Method not allowed")
}

func TestEtagMatches(t *testing.T) {
	cases := []struct {
		header string
		want   bool
	}{
		{"", false},
		{`"abc"`, true},
		{`W/"abc"`, true},
		{`"x", "abc"`, true},
		{`"abcd"`, false},
		{"*", true},
	}
	for _, tc := range cases {
		if got := etagMatches(tc.header, `"abc"`); got != tc.want {
			t.Errorf("etagMatches(%q) = %v", tc.header, got)
		}
	}
}
