// Package htsserver serves htsget tickets and the decrypted file bytes the
// tickets point at.
package htsserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umccr/htsget-archive/internal/htsconfig"
	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/htsdao"
	log "github.com/umccr/htsget-archive/internal/htslog"
	"github.com/umccr/htsget-archive/internal/slice"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	addr        string
	baseURL     string
	corsOrigins []string
	provider    htsdao.Provider
	factory     *slice.Factory
}

func NewServer(cfg htsconfig.ServerConfig, provider htsdao.Provider, factory *slice.Factory) *Server {
	return &Server{
		addr:        cfg.ListenAddr,
		baseURL:     cfg.BaseURL,
		corsOrigins: cfg.CorsOrigins,
		provider:    provider,
		factory:     factory,
	}
}

// Handler returns the router with every endpoint mounted.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Range"},
		ExposedHeaders: []string{"Content-Length", "Content-Range"},
		MaxAge:         300,
	}))

	router.Get(htsconstants.APIEndpointReadsServiceInfo, getReadsServiceInfo)
	router.Get(htsconstants.APIEndpointVariantsServiceInfo, getVariantsServiceInfo)
	router.Get(htsconstants.APIEndpointReadsTicket, s.getReadsTicket)
	router.Get(htsconstants.APIEndpointVariantsTicket, s.getVariantsTicket)
	router.Get(htsconstants.APIEndpointFile, s.getFile)
	router.Head(htsconstants.APIEndpointFile, s.getFile)
	router.Handle(htsconstants.APIEndpointMetrics, promhttp.Handler())
	return router
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	log.Info("htsget archive server listening on %s", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}

// requestLogger tags each request with an id and records its outcome.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		requestSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
		log.WithRequest(id).Infof("%s %s %d %d bytes in %s", r.Method, r.URL.RequestURI(), status, ww.BytesWritten(), time.Since(start))
	})
}
