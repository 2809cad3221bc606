package http

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RouterOptions configures the router.
type RouterOptions struct {
	// AllowedOrigins lists CORS origins; empty allows all origins.
	AllowedOrigins []string
	Logger         *slog.Logger
}

// SetupRouter creates and configures the Gin router.
func SetupRouter(svc Service, opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger.With("component", "http")))

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()
	if len(opts.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = opts.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.ExposeHeaders = []string{requestIDHeader, "X-Cache"}
	router.Use(cors.New(corsConfig))

	handler := NewHandler(svc)

	// WMS routes.
	datasets := router.Group("/wms/datasets/:dataset")
	datasets.GET("", handler.WMS)
	datasets.GET("/cache", handler.CacheStatus)
	datasets.DELETE("/cache", handler.ClearCache)
	datasets.POST("/update", handler.Update)

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.GET("/datasets", handler.ListDatasets)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	return router
}

// requestLogger assigns a request id, echoes it in the response and logs the outcome.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"request_id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"status_class", statusClass(status),
			"latency", time.Since(start),
		}
		if ds := c.Param("dataset"); ds != "" {
			attrs = append(attrs, "dataset", ds)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.Last().Error())
		}
		switch {
		case status >= 500:
			logger.Error("request failed", attrs...)
		case status >= 400:
			logger.Warn("request rejected", attrs...)
		default:
			logger.Info("request served", attrs...)
		}
	}
}

// requestIDHeader carries the id assigned to each request.
const requestIDHeader = "X-Request-ID"

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
