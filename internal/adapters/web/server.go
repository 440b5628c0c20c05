// Package web exposes search and ranking over HTTP with chi. Range clamping
// belongs to the engines; handlers only parse parameters and shape JSON.
// Store trouble never becomes a 5xx on the list endpoints; it is reported
// through a degraded flag and the X-Degraded header.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/corey/whiskeybar/internal/domain/catalog"
	"github.com/corey/whiskeybar/internal/domain/ranking"
	"github.com/corey/whiskeybar/internal/logging"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Searcher is the search engine as seen by the handlers.
type Searcher interface {
	SearchFiltered(ctx context.Context, query, distillery string, limit int) *catalog.SearchResult
	Lookup(ctx context.Context, id string) (*catalog.Hit, error)
}

// Ranker is the ranking engine as seen by the handlers.
type Ranker interface {
	Rank(ctx context.Context, page, pageSize int) *ranking.Page
	RankDefault(ctx context.Context) ([]ranking.Row, bool)
}

// Options configures a Server.
type Options struct {
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// BreakerState reports the store breaker state for /api/health.
	// Nil when no breaker is configured.
	BreakerState func() string

	// Counts reports stored whiskeys and reviews for /api/health.
	Counts func(ctx context.Context) (whiskeys, reviews int, err error)
}

// Server serves the JSON API over HTTP.
type Server struct {
	search   Searcher
	rank     Ranker
	opts     Options
	log      zerolog.Logger
	listener net.Listener
	httpSrv  *http.Server
	started  time.Time
	stopOnce sync.Once
}

// NewServer creates an HTTP server over the engines.
func NewServer(search Searcher, rank Ranker, opts Options) *Server {
	return &Server{
		search:  search,
		rank:    rank,
		opts:    opts,
		log:     logging.WithComponent("web"),
		started: time.Now(),
	}
}

// SetLogger replaces the server's logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (s *Server) SetLogger(l zerolog.Logger) {
	s.log = l
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.accessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{degradedHeader},
		MaxAge:         300,
	}))

	r.Get("/api/health", s.handleHealth)
	r.Route("/api/whiskeys", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/suggest", s.handleSearch)
		r.Get("/ranking", s.handleRanking)
		r.Get("/{id}", s.handleWhiskey)
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start begins listening on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.started = time.Now()
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http server stopped")
		}
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
	return nil
}

// Stop gracefully shuts down the HTTP server. Idempotent.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		if s.httpSrv != nil {
			err = s.httpSrv.Shutdown(ctx)
		}
	})
	return err
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the base URL of the running server.
func (s *Server) URL() string {
	return "http://" + s.Addr()
}

// accessLog writes one structured line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("request")
	})
}
