// Package server owns the process-wide HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redlantern-games/drawlog/internal/logging"
)

// maxProbePort bounds the upward search when the preferred port is taken.
const maxProbePort = 9000

var (
	mu      sync.Mutex
	current *Server
)

// Server wraps an http.Server bound to the port it actually obtained.
type Server struct {
	httpServer *http.Server
	port       int
	log        *logging.Logger
}

// Port returns the port the server is listening on.
func (s *Server) Port() int { return s.port }

// Start binds the handler to the first free port at or above preferred and
// begins serving. At most one server runs per process; a second call returns
// the running instance. preferred of 0 requests an ephemeral port.
func Start(handler http.Handler, preferred int, log *logging.Logger) (*Server, error) {
	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		log.WithField("port", current.port).Info("server already running")
		return current, nil
	}

	ln, port, err := listen(preferred)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		httpServer: &http.Server{
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		port: port,
		log:  log,
	}

	go func() {
		if err := srv.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped unexpectedly")
		}
	}()

	log.WithField("port", port).Info("server listening")
	current = srv
	return srv, nil
}

// listen tries the preferred port and probes upward until one binds.
func listen(preferred int) (net.Listener, int, error) {
	if preferred == 0 {
		ln, err := net.Listen("tcp", ":0")
		if err != nil {
			return nil, 0, fmt.Errorf("failed to bind ephemeral port: %w", err)
		}
		return ln, ln.Addr().(*net.TCPAddr).Port, nil
	}

	for port := preferred; port <= maxProbePort; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, port, nil
		}
	}
	return nil, 0, fmt.Errorf("no free port in %d-%d", preferred, maxProbePort)
}

// Shutdown drains in-flight requests and releases the singleton so a later
// Start can bind again.
func (s *Server) Shutdown(ctx context.Context) error {
	mu.Lock()
	if current == s {
		current = nil
	}
	mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}
