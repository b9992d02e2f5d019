package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vizcheck/internal/common"
	"github.com/ternarybob/vizcheck/internal/fixtureapp"
	"github.com/ternarybob/vizcheck/internal/storage/badger"
)

// Server hosts the fixture visualization app
type Server struct {
	logger   arbor.ILogger
	config   *common.Config
	db       *badger.BadgerDB
	router   chi.Router
	server   *http.Server
	listener net.Listener
}

// New wires dataset, Badger storage and the fixture app behind a chi router
func New(config *common.Config, logger arbor.ILogger) (*Server, error) {
	dataset, err := fixtureapp.LoadDataset(config.Fixture.Dataset)
	if err != nil {
		return nil, err
	}
	renderDelay, err := config.RenderDelay()
	if err != nil {
		return nil, err
	}

	db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}

	app, err := fixtureapp.New(dataset, badger.NewVisualizationStorage(db, logger), logger, renderDelay)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Server{
		logger: logger,
		config: config,
		db:     db,
	}
	s.router = s.setupRoutes(app)
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler exposes the router, e.g. for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Listen binds the configured address and returns the base URL.
// Port 0 picks a free port.
func (s *Server) Listen() (string, error) {
	addr := net.JoinHostPort(s.config.Fixture.Host, fmt.Sprintf("%d", s.config.Fixture.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	return "http://" + listener.Addr().String(), nil
}

// Serve blocks until the server is shut down
func (s *Server) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("server is not listening")
	}
	s.logger.Info().
		Str("url", "http://"+s.listener.Addr().String()+"/app/visualize").
		Msg("Fixture app available")

	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Start listens and serves in the background, returning the base URL
func (s *Server) Start() (string, error) {
	baseURL, err := s.Listen()
	if err != nil {
		return "", err
	}
	common.SafeGo(s.logger, "fixture-server", func() {
		if err := s.Serve(); err != nil {
			s.logger.Error().Err(err).Msg("Fixture app stopped unexpectedly")
		}
	})
	return baseURL, nil
}

// Shutdown gracefully shuts down the server and closes storage
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down fixture app...")

	err := s.server.Shutdown(ctx)
	if closeErr := s.db.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("Fixture app stopped")
	return nil
}
