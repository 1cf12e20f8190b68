package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/crawler"
	"github.com/user/animerank-crawler/internal/domain"
	"github.com/user/animerank-crawler/internal/monitoring"
)

// RunCoordinator starts crawl runs and reports on them.
type RunCoordinator interface {
	Submit(req crawler.RunRequest) error
	Status() crawler.Status
}

// Pinger is a dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FailureLister lists the links whose last crawl attempt failed.
type FailureLister interface {
	ListFailures(ctx context.Context, limit int) ([]domain.FailedLink, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	port       string
	router     http.Handler
	httpServer *http.Server
	runs       RunCoordinator
	checks     map[string]Pinger
	failures   FailureLister
	gatherer   prometheus.Gatherer
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// NewServer wires the router. checks may be empty; gatherer defaults to the
// global Prometheus registry.
func NewServer(port string, runs RunCoordinator, checks map[string]Pinger, gatherer prometheus.Gatherer, m *monitoring.Metrics, l *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if l == nil {
		l = zap.NewNop()
	}
	s := &Server{
		port:     port,
		runs:     runs,
		checks:   checks,
		gatherer: gatherer,
		metrics:  m,
		logger:   l,
	}
	s.router = s.setupRouter()
	return s
}

// WithFailures enables GET /api/failures.
func (s *Server) WithFailures(fl FailureLister) *Server {
	s.failures = fl
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
