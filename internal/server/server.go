// Package server serves the browser slot machine: the go-app page, the
// websocket each device plays on, and the JSON stats of the round history.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/janpfeifer/GoSlot/internal/frontend"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"k8s.io/klog/v2"
)

// DefaultAddr is used when Run is given an empty address: a free port on localhost.
const DefaultAddr = "127.0.0.1:0"

// Handler returns the HTTP handler of the server: websocket, JSON API and go-app UI.
func (s *ServerState) Handler() http.Handler {
	// Client state for server-side prerendering.
	frontend.InitState()

	// Register go-app routes so the server knows how to prerender them.
	app.Route("/", func() app.Composer { return &frontend.Slot{} })

	// The web assets and the compiled webassembly are served natively by the
	// go-app framework.
	h := &app.Handler{
		Name:        "GoSlot",
		Title:       "GoSlot",
		Description: "A shake-to-spin slot machine",
		Styles: []string{
			"/web/css/pico.min.css",
			"/web/css/main.css",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("GET /api/stats", s.HandleStats)
	mux.HandleFunc("GET /api/recent", s.HandleRecent)
	mux.Handle("/web/", http.StripPrefix("/web/", http.FileServer(http.Dir("web/"))))
	mux.Handle("/", h)
	return mux
}

// Run serves s on addr until ctx is cancelled. Once listening, s (with its
// Address set) is sent on started, if not nil. s is closed when Run returns.
func Run(ctx context.Context, addr string, s *ServerState, started chan *ServerState) error {
	defer s.Close()
	if addr == "" {
		addr = DefaultAddr
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.Address = listener.Addr().String()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		klog.Infof("Server started on %s", s.Address)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	if started != nil {
		started <- s
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown with 5 second timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	klog.Infof("Shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
