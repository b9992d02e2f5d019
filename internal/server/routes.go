package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/ternarybob/vizcheck/internal/fixtureapp"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(app *fixtureapp.App) chi.Router {
	r := chi.NewRouter()
	r.Use(s.recoveryMiddleware)
	r.Use(s.loggingMiddleware)

	app.Routes(r)
	return r
}
