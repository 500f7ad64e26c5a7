// Package server exposes sessions over HTTP.
//
// Each session is created from a graph payload and then steered with small
// PUT requests (mode, category selection, time slider, refreshed data).
// Positions are available as snapshots and as a server-sent event stream of
// frames, progress and state transitions:
//
//	srv := server.New(session.NewManager(defaults), server.Options{})
//	err := srv.Run(ctx, ":8080")
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/matzehuels/forceweave/pkg/filter"
	"github.com/matzehuels/forceweave/pkg/graph"
	"github.com/matzehuels/forceweave/pkg/render"
	"github.com/matzehuels/forceweave/pkg/layout"
	"github.com/matzehuels/forceweave/pkg/session"
)

// DefaultTimeout bounds non-streaming requests.
const DefaultTimeout = 30 * time.Second

// ShutdownTimeout bounds graceful shutdown in [Server.Run].
const ShutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	// Timeout bounds every request except event streams.
	Timeout time.Duration
	// CORSOrigins lists allowed origins. Empty allows any origin.
	CORSOrigins []string
	// Metrics, if set, is served at /metrics.
	Metrics http.Handler
	// Renderer draws session images. Nil renders without a cache.
	Renderer *render.Renderer
	Logger   *log.Logger
}

// Server is the HTTP API over a session manager.
type Server struct {
	sessions *session.Manager
	hub      *Hub
	opts     Options
	logger   *log.Logger
}

// New returns a server for the sessions of m.
func New(m *session.Manager, opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Renderer == nil {
		opts.Renderer = render.NewRenderer(nil, opts.Logger)
	}
	return &Server{
		sessions: m,
		hub:      NewHub(opts.Logger),
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Hub returns the event hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics)
	}

	timeout := middleware.Timeout(s.opts.Timeout)
	r.Route("/sessions", func(r chi.Router) {
		r.With(timeout).Get("/", s.listSessions)
		r.With(timeout).Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/events", s.events)

			r.Group(func(r chi.Router) {
				r.Use(timeout)
				r.Get("/", s.getSession)
				r.Delete("/", s.deleteSession)
				r.Put("/data", s.putData)
				r.Put("/mode", s.putMode)
				r.Put("/selection", s.putSelection)
				r.Put("/time", s.putTime)
				r.Get("/stats", s.getStats)
				r.Get("/image", s.getImage)
				r.Post("/drag", s.postDrag)
			})
		})
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully and
// closes every session.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	for _, id := range s.sessions.List() {
		s.hub.Close(id)
	}
	err := srv.Shutdown(shutdownCtx)
	s.sessions.Close()
	return err
}

// Open creates a session whose layout events are published to the hub.
// An empty mode or nil selection keeps the manager defaults.
func (s *Server) Open(mode filter.Mode, sel filter.Selection) *session.Session {
	return s.sessions.Create(func(id string, opts *session.Options) {
		if mode != "" {
			opts.Mode = mode
		}
		if sel != nil {
			opts.Selection = sel
		}
		s.configure(id, opts)
	})
}

// configure binds a new session's controller callbacks to the hub.
func (s *Server) configure(id string, opts *session.Options) {
	prevFrame, prevProgress, prevState := opts.Layout.OnFrame, opts.Layout.OnProgress, opts.Layout.OnState
	opts.Layout.OnFrame = func(f graph.Frame) {
		if prevFrame != nil {
			prevFrame(f)
		}
		s.hub.Publish(id, Event{Type: EventFrame, Data: f})
	}
	opts.Layout.OnProgress = func(p layout.Progress) {
		if prevProgress != nil {
			prevProgress(p)
		}
		s.hub.Publish(id, Event{Type: EventProgress, Data: p})
	}
	opts.Layout.OnState = func(st layout.State) {
		if prevState != nil {
			prevState(st)
		}
		s.hub.Publish(id, Event{Type: EventState, Data: map[string]string{"state": st.String()}})
	}
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
