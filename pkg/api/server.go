package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/huddlehq/huddle/pkg/communities"
	"github.com/huddlehq/huddle/pkg/middleware"
	"github.com/huddlehq/huddle/pkg/observability"
	"github.com/huddlehq/huddle/pkg/projects"
	"github.com/huddlehq/huddle/pkg/rbac"
	"github.com/huddlehq/huddle/pkg/tasks"
)

// Server wires domain handlers onto a gorilla/mux router behind the
// authentication and request-ID middleware.
type Server struct {
	router *mux.Router
	logger *observability.Logger
}

// ServerOptions collects the dependencies for NewServer.
type ServerOptions struct {
	Communities communities.Service
	Projects    projects.Service
	Tasks       tasks.Service
	Guard       *rbac.Guard
	Auth        *middleware.AuthMiddleware
	Logger      *observability.Logger
	Metrics     *observability.Metrics
}

// NewServer builds the API router. Every route requires a Bearer token.
func NewServer(opts ServerOptions) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: opts.Logger,
	}

	s.router.Use(mux.MiddlewareFunc(middleware.RequestID))
	if opts.Metrics != nil {
		s.router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(opts.Metrics)))
	}
	s.router.Use(mux.MiddlewareFunc(opts.Auth.Handler))

	NewCommunityHandlers(opts.Communities, opts.Guard, opts.Metrics, opts.Logger).RegisterRoutes(s.router)
	NewProjectHandlers(opts.Projects).RegisterRoutes(s.router)
	NewTaskHandlers(opts.Tasks).RegisterRoutes(s.router)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
