// Package web serves the daemon's state over HTTP: an HTML page, the JSON
// status document and the plain-text matrix grid.
package web

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"

	"github.com/sweeney/keymatrix/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// snapshotHandler renders one point-in-time copy of the daemon state.
type snapshotHandler func(w http.ResponseWriter, snap status.Snapshot) error

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.Handle("/", rootOnly(s.serve("text/html; charset=utf-8", func(w http.ResponseWriter, snap status.Snapshot) error {
		return renderHTML(w, snap)
	})))
	mux.Handle("/index.json", s.serve("application/json", func(w http.ResponseWriter, snap status.Snapshot) error {
		_, err := w.Write(status.FormatJSON(snap))
		return err
	}))
	mux.Handle("/matrix.txt", s.serve("text/plain; charset=utf-8", func(w http.ResponseWriter, snap status.Snapshot) error {
		_, err := io.WriteString(w, snap.Grid())
		return err
	}))

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// serve wraps h with the method check and headers every endpoint shares.
func (s *Server) serve(contentType string, h snapshotHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", contentType)
		// The matrix changes every scan.
		w.Header().Set("Cache-Control", "no-store")
		// Headers are already out, so a failure can only be logged.
		if err := h(w, s.tracker.Snapshot()); err != nil {
			log.Printf("web: %s: %v", r.URL.Path, err)
		}
	})
}

// rootOnly rejects the unknown paths the "/" pattern would otherwise catch.
func rootOnly(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/index.html" {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
