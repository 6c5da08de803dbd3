package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/recaplabs/recap/internal/log"
)

func TestIdentityMiddleware(t *testing.T) {
	var gotUser, gotFolder string
	handler := identityMiddleware(log.NewNop())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotUser, _ = userIDFromContext(r.Context())
		gotFolder = folderIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(headerUserID, "alice")
	r.Header.Set(headerFolderID, "folder-a")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if gotUser != "alice" || gotFolder != "folder-a" {
		t.Errorf("identity = (%q, %q)", gotUser, gotFolder)
	}
}

func TestIdentityMiddlewareRejectsAnonymous(t *testing.T) {
	called := false
	handler := identityMiddleware(log.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if called {
		t.Error("handler ran without identity")
	}
}

func TestIdentityMiddlewareFolderOptional(t *testing.T) {
	var gotFolder string
	handler := identityMiddleware(log.NewNop())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotFolder = folderIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(headerUserID, "alice")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if gotFolder != "" {
		t.Errorf("folder = %q, want empty", gotFolder)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(log.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestLoggingWriterFlushPassthrough(t *testing.T) {
	rec := httptest.NewRecorder()
	lw := &loggingWriter{w: rec}

	if _, ok := any(lw).(http.Flusher); !ok {
		t.Fatal("loggingWriter must implement http.Flusher for SSE")
	}
	lw.Flush()
	if !rec.Flushed {
		t.Error("Flush not forwarded to underlying writer")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := requestIDMiddleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}
