// Package http provides the HTTP API for rerankd.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rerankd/internal/document"
	"github.com/fyrsmithlabs/rerankd/internal/logging"
	"github.com/fyrsmithlabs/rerankd/internal/rerank"
)

// Server provides HTTP endpoints for rerankd.
type Server struct {
	echo    *echo.Echo
	service *rerank.Service
	logger  *logging.Logger
	metrics *HTTPMetrics
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RequestTimeout bounds the handling of one rerank request, including
	// the model call. Defaults to 30s.
	RequestTimeout time.Duration
}

// NewServer creates a new HTTP server.
func NewServer(service *rerank.Service, logger *logging.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// maxRequestBody bounds how much of a rerank request is read into
	// memory before parsing.
	const maxRequestBody = "1M"

	s := &Server{
		echo:    e,
		service: service,
		logger:  logger,
		metrics: NewHTTPMetrics(logger.Underlying()),
		config:  cfg,
	}

	e.HTTPErrorHandler = s.httpErrorHandler

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(maxRequestBody))
	e.Use(middleware.RequestID())
	e.Use(s.requestContext)
	e.Use(s.requestLogger)

	s.registerRoutes()

	return s, nil
}

// requestContext carries the request ID into the request context so
// downstream logs correlate.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		ctx := logging.WithRequestID(c.Request().Context(), requestID)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// requestLogger logs one line per request and records HTTP metrics.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		duration := time.Since(start)

		ctx := c.Request().Context()
		s.logger.Info(ctx, "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", duration),
		)
		s.metrics.RecordRequest(ctx, c.Request().Method, c.Path(), c.Response().Status, duration)

		return err
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and runtime metrics
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Both routes accept the same rerank request body.
	s.echo.POST("/rerank", s.handleRerank)
	s.echo.POST("/v1/rerank", s.handleRerank)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// ErrorResponse is the error body returned for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Model:  s.service.ModelName(),
	})
}

// handleRerank parses a rerank request, runs the ranking pipeline, and
// writes the response envelope.
func (s *Server) handleRerank(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return s.badRequest(c, "malformed_request", "failed to read request body")
	}

	// Probe for required keys before decoding: "query" and "documents" must
	// be present even when empty.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		s.logger.Warn(ctx, "invalid rerank request", zap.Error(err))
		return s.badRequest(c, "malformed_request", "request body must be a JSON object")
	}
	for _, key := range []string{"query", "documents"} {
		if _, ok := probe[key]; !ok {
			return s.badRequest(c, "malformed_request", fmt.Sprintf("missing required field: %s", key))
		}
	}

	var req rerank.RankRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.logger.Warn(ctx, "invalid rerank request", zap.Error(err))
		return s.badRequest(c, "malformed_request", fmt.Sprintf("invalid request body: %v", err))
	}

	rankCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	resp, err := s.service.Rank(rankCtx, &req)
	if err != nil {
		return s.rankError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// rankError maps pipeline errors to HTTP status codes and error bodies.
func (s *Server) rankError(c echo.Context, err error) error {
	ctx := c.Request().Context()

	var unsupported *document.UnsupportedTypeError
	var scoringErr *rerank.ScoringError

	switch {
	case errors.Is(err, rerank.ErrInvalidTopN):
		return s.badRequest(c, "invalid_top_n", err.Error())
	case errors.As(err, &unsupported):
		return s.badRequest(c, "unsupported_document_type", err.Error())
	case errors.As(err, &scoringErr):
		s.logger.Error(ctx, "scoring failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "scoring_failure",
			Message: err.Error(),
			Type:    "internal_server_error",
		})
	default:
		s.logger.Error(ctx, "rerank request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
			Type:    "internal_server_error",
		})
	}
}

// httpErrorHandler renders errors raised outside the rerank handler, such
// as the body limit or unknown routes, in the same error body shape.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = fmt.Sprintf("%v", he.Message)
		}
	}

	errType := "internal_server_error"
	if code >= 400 && code < 500 {
		errType = "invalid_request_error"
	}

	if err := c.JSON(code, ErrorResponse{
		Error:   "request_failed",
		Message: message,
		Type:    errType,
	}); err != nil {
		s.logger.Error(c.Request().Context(), "failed to write error response", zap.Error(err))
	}
}

func (s *Server) badRequest(c echo.Context, code, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   code,
		Message: message,
		Type:    "invalid_request_error",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
