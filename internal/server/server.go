// Package server exposes the API cache over HTTP: cached upstream reads,
// invalidating writes and cache administration.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/vnykmshr/invcache-go/pkg/apicache"
	"github.com/vnykmshr/invcache-go/pkg/invcache"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// BreakerState reports the upstream circuit breaker state
type BreakerState interface {
	State() gobreaker.State
}

// Options holds the server dependencies
type Options struct {
	Cache *invcache.Cache[json.RawMessage]
	API   *apicache.Wrapper

	// Gatherer backs GET /metrics; nil leaves the route unregistered
	Gatherer prometheus.Gatherer

	// Breaker is reported by GET /healthz when set
	Breaker BreakerState

	Logger logrus.FieldLogger
}

// Server routes HTTP requests to the API cache
type Server struct {
	cache   *invcache.Cache[json.RawMessage]
	api     *apicache.Wrapper
	breaker BreakerState
	logger  logrus.FieldLogger
	router  *gin.Engine
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// New builds the router
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Server{
		cache:   opts.Cache,
		api:     opts.API,
		breaker: opts.Breaker,
		logger:  logger,
		router:  gin.New(),
	}

	s.router.Use(requestID())
	s.router.Use(s.accessLog())
	s.router.Use(gin.Recovery())

	s.router.GET("/healthz", s.health)
	if opts.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := s.router.Group("/api")
	{
		api.GET("/*endpoint", s.get)
		api.POST("/*endpoint", s.post)
		api.PUT("/*endpoint", s.put)
		api.DELETE("/*endpoint", s.delete)
	}

	admin := s.router.Group("/cache")
	{
		admin.GET("/stats", s.stats)
		admin.GET("/export", s.export)
		admin.DELETE("/tags/:tag", s.invalidateTag)
		admin.DELETE("/dependencies", s.invalidateDependency)
		admin.DELETE("", s.clear)
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start),
		}).Debug("request handled")
	}
}

// endpoint is the upstream path and query for an /api request
func endpoint(c *gin.Context) string {
	path := c.Param("endpoint")
	if query := c.Request.URL.RawQuery; query != "" {
		values := c.Request.URL.Query()
		for _, name := range []string{"invalidate_tag", "invalidate_dependency"} {
			values.Del(name)
		}
		if encoded := values.Encode(); encoded != "" {
			path += "?" + encoded
		}
	}
	return path
}

func (s *Server) get(c *gin.Context) {
	var opts []apicache.GetOption
	if c.GetHeader("Cache-Control") == "no-cache" {
		opts = append(opts, apicache.Bypass())
	}

	body, err := s.api.Get(c.Request.Context(), endpoint(c), opts...)
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	respond(c, http.StatusOK, body)
}

func (s *Server) post(c *gin.Context) {
	s.mutate(c, func(ctx context.Context, endpoint string, body any, opts []apicache.MutateOption) (json.RawMessage, error) {
		return s.api.Post(ctx, endpoint, body, opts...)
	})
}

func (s *Server) put(c *gin.Context) {
	s.mutate(c, func(ctx context.Context, endpoint string, body any, opts []apicache.MutateOption) (json.RawMessage, error) {
		return s.api.Put(ctx, endpoint, body, opts...)
	})
}

func (s *Server) delete(c *gin.Context) {
	s.mutate(c, func(ctx context.Context, endpoint string, _ any, opts []apicache.MutateOption) (json.RawMessage, error) {
		return s.api.Delete(ctx, endpoint, opts...)
	})
}

type mutateFunc func(ctx context.Context, endpoint string, body any, opts []apicache.MutateOption) (json.RawMessage, error)

func (s *Server) mutate(c *gin.Context, call mutateFunc) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "Failed to read request body"})
		return
	}

	var body any
	if len(raw) > 0 {
		if !json.Valid(raw) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "Request body must be JSON"})
			return
		}
		body = json.RawMessage(raw)
	}

	var opts []apicache.MutateOption
	if tags, ok := c.GetQueryArray("invalidate_tag"); ok {
		opts = append(opts, apicache.InvalidateTags(tags...))
	}
	if deps, ok := c.GetQueryArray("invalidate_dependency"); ok {
		opts = append(opts, apicache.InvalidateDependencies(deps...))
	}

	result, err := call(c.Request.Context(), endpoint(c), body, opts)
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func respond(c *gin.Context, status int, body json.RawMessage) {
	if len(body) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}

func (s *Server) upstreamError(c *gin.Context, err error) {
	var statusErr *apicache.StatusError
	switch {
	case errors.As(err, &statusErr):
		c.JSON(statusErr.StatusCode, ErrorResponse{Error: "upstream_error", Message: statusErr.Body})
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "upstream_unavailable", Message: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "upstream_timeout", Message: err.Error()})
	default:
		s.logger.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Warn("upstream request failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "upstream_error", Message: "Upstream request failed"})
	}
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.cache.GetStats())
}

func (s *Server) export(c *gin.Context) {
	c.JSON(http.StatusOK, s.cache.Export())
}

func (s *Server) invalidateTag(c *gin.Context) {
	removed := s.cache.InvalidateByTagContext(c.Request.Context(), c.Param("tag"))
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) invalidateDependency(c *gin.Context) {
	dep := c.Query("dep")
	if dep == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "dep is required"})
		return
	}
	removed := s.cache.InvalidateByDependencyContext(c.Request.Context(), dep)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) clear(c *gin.Context) {
	s.cache.ClearContext(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (s *Server) health(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
		"entries":   s.cache.Len(),
	}

	status := http.StatusOK
	if s.breaker != nil {
		state := s.breaker.State()
		health["upstream"] = state.String()
		if state == gobreaker.StateOpen {
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, health)
}
