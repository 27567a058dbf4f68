// SPDX-License-Identifier: MPL-2.0

// Package webhook is the HTTP platform adapter. It accepts interaction
// events as JSON, dispatches them through the interaction router and
// returns the collected replies. It also serves the module admin API.
package webhook

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/charmbracelet/log"

	"github.com/modhost/modhost/internal/interaction"
	"github.com/modhost/modhost/internal/journal"
	"github.com/modhost/modhost/internal/lifecycle"
	"github.com/modhost/modhost/internal/serverbase"
	"github.com/modhost/modhost/pkg/module"
)

const (
	maxBodyBytes      = 1 << 20
	readHeaderTimeout = 10 * time.Second
)

type (
	// Modules is the lifecycle surface the admin API drives.
	Modules interface {
		Status() []lifecycle.Status
		Reload(ctx context.Context) (*lifecycle.Report, error)
		Enable(ctx context.Context, id module.ID) error
		Disable(ctx context.Context, id module.ID) error
	}

	// Dispatcher routes interaction events.
	Dispatcher interface {
		Dispatch(ctx context.Context, ev *module.Event)
		Commands() []interaction.CommandInfo
	}

	// History reads the lifecycle journal.
	History interface {
		History(ctx context.Context, q journal.Query) ([]lifecycle.Transition, error)
	}

	// Options configures a Server. Modules and Dispatcher are required.
	Options struct {
		Modules    Modules
		Dispatcher Dispatcher
		// History is optional; without it /api/history answers 404.
		History        History
		AllowedOrigins []string
		Logger         *log.Logger
	}

	// Server serves the webhook and admin API.
	Server struct {
		*serverbase.Base

		opts    Options
		logger  *log.Logger
		handler http.Handler
		http    *http.Server
	}
)

// New creates a Server.
func New(opts Options) (*Server, error) {
	if opts.Modules == nil || opts.Dispatcher == nil {
		return nil, errors.New("webhook: modules and dispatcher are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		Base:   serverbase.NewBase("http", serverbase.WithLogger(logger)),
		opts:   opts,
		logger: logger.WithPrefix("http"),
	}
	s.handler = s.routes()
	s.http = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on addr and serves until Stop.
func (s *Server) Start(ctx context.Context, addr string) error {
	return s.Base.Start(ctx, addr, s.serve, s.http.Shutdown)
}

func (s *Server) serve(l net.Listener) error {
	s.logger.Info("listening", "addr", l.Addr().String())
	if err := s.http.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Post("/interactions", s.interaction)

	r.Route("/api", func(r chi.Router) {
		r.Get("/modules", s.listModules)
		r.Post("/modules/reload", s.reload)
		r.Post("/modules/{id}/enable", s.toggle(true))
		r.Post("/modules/{id}/disable", s.toggle(false))
		r.Get("/commands", s.listCommands)
		r.Get("/history", s.history)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
