// Package server exposes the report service over HTTP and streams task
// progress over WebSocket.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/luislascano01/Stratvithor/core/report"
)

const serviceName = "stratvithor"

// Server routes HTTP requests to a report service.
type Server struct {
	service        *report.Service
	logger         *slog.Logger
	metrics        http.Handler
	tracerProvider trace.TracerProvider
	allowedOrigins []string
	writeTimeout   time.Duration

	router   *gin.Engine
	upgrader websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(server *Server) { server.logger = logger }
}

// WithMetricsHandler serves handler on GET /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(server *Server) { server.metrics = handler }
}

// WithTracerProvider traces every request with provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(server *Server) { server.tracerProvider = provider }
}

// WithAllowedOrigins restricts WebSocket upgrades and CORS to origins.
// Empty allows every origin.
func WithAllowedOrigins(origins []string) Option {
	return func(server *Server) { server.allowedOrigins = origins }
}

// WithWriteTimeout bounds each WebSocket frame write.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(server *Server) { server.writeTimeout = timeout }
}

// New builds the router.
func New(service *report.Service, opts ...Option) *Server {
	server := &Server{
		service:      service,
		logger:       slog.Default(),
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     server.checkOrigin,
	}
	server.router = server.routes()
	return server
}

func (server *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), server.logRequests(), server.cors())
	if server.tracerProvider != nil {
		router.Use(otelgin.Middleware(serviceName, otelgin.WithTracerProvider(server.tracerProvider)))
	}

	router.GET("/health", server.health)
	router.GET("/get_prompts", server.listDefinitions)
	router.POST("/generate_report", server.generateReport)
	router.GET("/ws/:task_id", server.streamTask)

	tasks := router.Group("/tasks")
	tasks.GET("", server.listTasks)
	tasks.GET("/:task_id", server.taskStatus)
	tasks.POST("/:task_id/cancel", server.cancelTask)
	tasks.POST("/:task_id/save", server.saveTask)
	tasks.DELETE("/:task_id", server.releaseTask)

	router.GET("/saved", server.listSaved)
	router.GET("/saved/:task_id", server.getSaved)

	if server.metrics != nil {
		router.GET("/metrics", gin.WrapH(server.metrics))
	}
	return router
}

// Handler returns the HTTP handler.
func (server *Server) Handler() http.Handler {
	return server.router
}

// ListenAndServe serves on address until ctx ends, then shuts down within
// shutdownTimeout.
func (server *Server) ListenAndServe(ctx context.Context, address string, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:              address,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		server.logger.Info("listening", slog.String("address", address))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	server.logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

func (server *Server) checkOrigin(request *http.Request) bool {
	if len(server.allowedOrigins) == 0 {
		return true
	}
	origin := request.Header.Get("Origin")
	return origin == "" || slices.Contains(server.allowedOrigins, origin)
}

func (server *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && server.checkOrigin(c.Request) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (server *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		server.logger.InfoContext(c.Request.Context(), "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
