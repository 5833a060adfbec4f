package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/freight/internal/auth"
	"github.com/tournevent/freight/internal/graphql"
	"github.com/tournevent/freight/internal/telemetry"
	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/geo"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Config holds server configuration.
type Config struct {
	Port     int
	Metrics  *telemetry.Metrics
	Gatherer prometheus.Gatherer
	Checks   map[string]Pinger
}

// Server is the HTTP server for the freight service.
type Server struct {
	port      int
	estimator graphql.Estimator
	logger    *otelzap.Logger
	metrics   *telemetry.Metrics
	gatherer  prometheus.Gatherer
	checks    map[string]Pinger
	graphql   *graphql.Executor
	validate  *validator.Validate
}

// New creates a new server instance. Metrics are registered on a private
// registry unless cfg provides them.
func New(cfg Config, estimator graphql.Estimator, logger *otelzap.Logger) (*Server, error) {
	if cfg.Metrics == nil {
		reg := prometheus.NewRegistry()
		cfg.Metrics = telemetry.NewMetrics(reg)
		cfg.Gatherer = reg
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	executor, err := graphql.NewExecutor(graphql.NewResolver(estimator, logger, cfg.Metrics), logger)
	if err != nil {
		return nil, err
	}

	return &Server{
		port:      cfg.Port,
		estimator: estimator,
		logger:    logger,
		metrics:   cfg.Metrics,
		gatherer:  cfg.Gatherer,
		checks:    cfg.Checks,
		graphql:   executor,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Post("/freight/estimate", s.handleEstimate)
		r.Handle("/graphql", s.graphql)
	})

	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var (
		mu     sync.Mutex
		status = make(map[string]string, len(s.checks))
		failed bool
	)

	g, ctx := errgroup.WithContext(ctx)
	for name, check := range s.checks {
		g.Go(func() error {
			result := "ok"
			if err := check.Ping(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			status[name] = result
			if result != "ok" {
				failed = true
			}
			return nil
		})
	}
	_ = g.Wait()

	code := http.StatusOK
	overall := "ready"
	if failed {
		code = http.StatusServiceUnavailable
		overall = "unavailable"
	}
	writeJSON(w, code, map[string]any{"status": overall, "checks": status})
}

type estimateRequest struct {
	DestinationPostalCode     string          `json:"destinationPostalCode" validate:"required"`
	DestinationCoordinateHint json.RawMessage `json:"destinationCoordinateHint,omitempty"`
}

type errorResponse struct {
	Error   freight.ErrorCode `json:"error"`
	Code    freight.ErrorCode `json:"code"`
	Message string            `json:"message"`
	Details map[string]any    `json:"details,omitempty"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	est, err := s.estimate(r)
	if err != nil {
		fe := freight.Classify(err)
		s.metrics.RecordEstimate("http", string(fe.Code), time.Since(start).Seconds())

		log := s.logger.Ctx(ctx).WithOptions(zap.Fields(zap.String("code", string(fe.Code)), zap.Int("status", fe.StatusCode)))
		if fe.StatusCode >= http.StatusInternalServerError {
			log.Error("Freight estimate failed", zap.Error(err))
		} else {
			log.Info("Freight estimate rejected", zap.Error(err))
		}

		writeJSON(w, fe.StatusCode, errorResponse{
			Error:   fe.Code,
			Code:    fe.Code,
			Message: fe.Message,
			Details: fe.Details,
		})
		return
	}

	s.metrics.RecordEstimate("http", "OK", time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, est)
}

func (s *Server) estimate(r *http.Request) (*freight.Estimate, error) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, freight.NewError(freight.CodeInvalidRequest, "request body must be a JSON object").WithCause(err)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, freight.NewError(freight.CodeInvalidRequest, "destinationPostalCode is required").WithCause(err)
	}

	return s.estimator.Estimate(r.Context(), freight.EstimateRequest{
		DestinationPostalCode: req.DestinationPostalCode,
		AuthToken:             auth.TokenFromContext(r.Context()),
		DestinationHint:       geo.ParseHint(req.DestinationCoordinateHint),
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Ctx(r.Context()).Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", w.Header().Get("X-Request-ID")))
	})
}

// requestIDMiddleware propagates X-Request-ID or generates one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
