package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const headerRequestID = "X-Request-Id"

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

type RouterConfig struct {
	ServiceName  string
	Appointments appointmentsService
	Customers    customersService
	Log          *slog.Logger
	CORSOrigins  []string
	RateLimiter  *RateLimiter
	ReadyChecks  []ReadyCheck
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http"))

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(attachRequestID())
	r.Use(requestLogger(log))
	r.Use(corsMiddleware(cfg.CORSOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", readyHandler(cfg.ReadyChecks))

	api := r.Group("/api")
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.Middleware(log))
	}

	if cfg.Appointments != nil {
		h := &appointmentsHandler{svc: cfg.Appointments, log: log}
		api.POST("/appointments", h.book)
		api.GET("/appointments/range", h.listInRange)
		api.GET("/appointments/stats/today", h.todayStats)
		api.GET("/appointments/:id", h.get)
		api.PATCH("/appointments/:id/status", h.updateStatus)
		api.POST("/appointments/:id/cancel", h.cancel)
		api.DELETE("/appointments/:id", h.delete)
	}

	if cfg.Customers != nil {
		h := &customersHandler{svc: cfg.Customers, log: log}
		api.POST("/customers", h.create)
		api.GET("/customers", h.search)
		api.GET("/customers/:id", h.get)
	}

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "X-Requested-With", "Idempotency-Key", headerRequestID},
		ExposeHeaders: []string{"Location", headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func attachRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set("request_id", reqID)
		c.Writer.Header().Set(headerRequestID, reqID)
		c.Next()
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("request_id", c.GetString("request_id")),
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			log.ErrorContext(ctx, "http request", attrs...)
		case status >= 400:
			log.WarnContext(ctx, "http request", attrs...)
		default:
			log.InfoContext(ctx, "http request", attrs...)
		}
	}
}

func readyHandler(checks []ReadyCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		var failures []string
		for _, check := range checks {
			if check.Check == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err := check.Check(ctx)
			cancel()
			if err != nil {
				name := check.Name
				if name == "" {
					name = "dependency"
				}
				failures = append(failures, name+": "+err.Error())
			}
		}
		if len(failures) > 0 {
			c.String(http.StatusServiceUnavailable, strings.Join(failures, "; "))
			return
		}
		c.String(http.StatusOK, "ok")
	}
}
