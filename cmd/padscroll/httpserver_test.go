package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLoadWebAssets_Minified(t *testing.T) {
	assets, err := loadWebAssets()
	if err != nil {
		t.Fatalf("load assets: %v", err)
	}

	for _, route := range []string{"/", "/padscroll.js"} {
		a, ok := assets[route]
		if !ok {
			t.Fatalf("expected asset for %s", route)
		}
		if len(a.body) == 0 {
			t.Fatalf("expected non-empty body for %s", route)
		}
	}

	raw, err := webFS.ReadFile("web/padscroll.js")
	if err != nil {
		t.Fatalf("read embedded script: %v", err)
	}
	if got := len(assets["/padscroll.js"].body); got >= len(raw) {
		t.Fatalf("expected minified script smaller than %d bytes, got %d", len(raw), got)
	}
}

func newTestMux(t *testing.T) http.Handler {
	t.Helper()
	ws := NewServer(discardLogger(), make(chan Event, 1), ServerConfig{})
	mux, err := newHTTPMux(ws, discardLogger())
	if err != nil {
		t.Fatalf("new mux: %v", err)
	}
	return mux
}

func TestHTTPMux_ServesScript(t *testing.T) {
	mux := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/padscroll.js", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/javascript") {
		t.Fatalf("expected javascript content type, got %q", ct)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS header on script")
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("expected script body")
	}
}

func TestHTTPMux_RejectsUnknownPathsAndMethods(t *testing.T) {
	mux := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope.css", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET, HEAD" {
		t.Fatalf("expected Allow header, got %q", allow)
	}
}

func TestRunHTTPServer_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	mux := newTestMux(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runHTTPServer(ctx, ln, mux, discardLogger()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("get demo page: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "padscroll.js") {
		t.Fatalf("expected demo page referencing padscroll.js, got %d %q", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for HTTP server to stop")
	}
}
