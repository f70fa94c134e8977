package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

// ============================================================================
// HTTP Server
// ============================================================================
// Serves the browser side of padscroll:
//   /ws            scroll websocket
//   /padscroll.js  client script to include in any page
//   /              demo page with a long document to scroll
// ============================================================================

//go:embed web/padscroll.js web/index.html
var webFS embed.FS

const httpShutdownTimeout = 3 * time.Second

// webAsset is a minified static file served from memory.
type webAsset struct {
	contentType string
	body        []byte
}

// loadWebAssets minifies the embedded client files once at startup.
func loadWebAssets() (map[string]webAsset, error) {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("application/javascript", js.Minify)

	files := []struct {
		route       string
		name        string
		contentType string
		mediaType   string
	}{
		{"/padscroll.js", "web/padscroll.js", "application/javascript; charset=utf-8", "application/javascript"},
		{"/", "web/index.html", "text/html; charset=utf-8", "text/html"},
	}

	assets := make(map[string]webAsset, len(files))
	for _, f := range files {
		raw, err := webFS.ReadFile(f.name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.name, err)
		}
		body, err := m.Bytes(f.mediaType, raw)
		if err != nil {
			return nil, fmt.Errorf("minify %s: %w", f.name, err)
		}
		assets[f.route] = webAsset{contentType: f.contentType, body: body}
	}
	return assets, nil
}

// newHTTPMux wires the websocket server and the client assets.
func newHTTPMux(ws *Server, logger *slog.Logger) (*http.ServeMux, error) {
	assets, err := loadWebAssets()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	ws.Register(mux, "/ws")

	for route, a := range assets {
		mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != route {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				w.Header().Set("Allow", "GET, HEAD")
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			w.Header().Set("Content-Type", a.contentType)
			w.Header().Set("Access-Control-Allow-Origin", "*")
			if _, err := w.Write(a.body); err != nil {
				logger.Debug("http write failed", "path", route, "error", err)
			}
		})
	}
	return mux, nil
}

// runHTTPServer serves handler on ln and shuts it down gracefully when ctx
// is canceled.
func runHTTPServer(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	logger.Info("http server listening", "addr", ln.Addr().String())

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		// Serve returns http.ErrServerClosed on Shutdown; treat that as clean exit.
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
