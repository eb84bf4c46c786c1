package httpmw

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecover(t *testing.T) {
	cases := []struct {
		name  string
		value any
	}{
		{"string panic", "boom"},
		{"error panic", errors.New("nil map write")},
		{"other value", 42},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger := newRecLogger()
			calls := 0
			h := Recover(logger, func() { calls++ })(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic(tc.value)
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/content", nil))

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Fatalf("body = %s", rec.Body.String())
			}
			if calls != 1 {
				t.Fatalf("onPanic calls = %d", calls)
			}
			entries := logger.all()
			if len(entries) != 1 || entries[0].level != "error" || entries[0].msg != "httpserver panic recovered" {
				t.Fatalf("entries = %+v", entries)
			}
			if entries[0].err == nil {
				t.Fatal("panic value should be logged as an error")
			}
			if v, _ := entries[0].field("url.path"); v != "/api/content" {
				t.Fatalf("url.path = %v", v)
			}
		})
	}
}

func TestRecover_PanicErrorIsWrapped(t *testing.T) {
	sentinel := errors.New("sentinel")
	logger := newRecLogger()
	h := Recover(logger, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(sentinel) }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if err := logger.all()[0].err; !errors.Is(err, sentinel) {
		t.Fatalf("err = %v", err)
	}
}

func TestRecover_NoPanic(t *testing.T) {
	logger := newRecLogger()
	rec := httptest.NewRecorder()
	Recover(logger, func() { t.Fatal("onPanic on a clean request") })(okHandler).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || len(logger.all()) != 0 {
		t.Fatalf("status = %d entries = %d", rec.Code, len(logger.all()))
	}
}

func TestRecover_AbortHandlerPropagates(t *testing.T) {
	h := Recover(nil, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Fatalf("recovered %v", v)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	t.Fatal("ErrAbortHandler was swallowed")
}
