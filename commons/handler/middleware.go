package handler

import (
	"fmt"
	"net/http"
	"time"

	"simflow/commons/error_handler"
	"simflow/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderService   = "X-Simflow-Service"
)

func ErrorHandlingMiddleware(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		if recovered != nil {
			log.WithContext(c.Request.Context()).Error("panic recovered in middleware",
				logger.String("path", c.Request.URL.Path),
				logger.String("method", c.Request.Method),
				logger.Any("panic", recovered))

			SendErrorResponse(c, error_handler.Internal("Internal server error"))
			c.Abort()
		}
	})
}

// RequestIDMiddleware propagates X-Request-ID (generating one when absent)
// into the request context so loggers pick it up.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(HeaderRequestID, reqID)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), reqID))
		c.Next()
	}
}

// ServiceHeaderMiddleware tags every response with the serving binary, which
// tells coordinator and engine responses apart behind a shared proxy.
func ServiceHeaderMiddleware(name, version string) gin.HandlerFunc {
	value := name + "/" + version
	return func(c *gin.Context) {
		c.Header(HeaderService, value)
		c.Next()
	}
}

// BodyLimitMiddleware rejects bodies larger than limit once they are read.
func BodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			SendErrorResponse(c, error_handler.PayloadTooLarge(
				fmt.Sprintf("request body exceeds %d bytes", limit)))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func LoggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := log.WithContext(c.Request.Context())

		reqLog.Info("request started",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.String("user_agent", c.GetHeader("User-Agent")),
			logger.String("remote_addr", c.ClientIP()))

		c.Next()

		reqLog.Info("request completed",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status_code", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)))
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		SendErrorResponse(c, error_handler.NotFound(
			fmt.Sprintf("The requested route '%s %s' was not found", c.Request.Method, c.Request.URL.Path)))
	}
}

func NoMethodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"detail": fmt.Sprintf("Method '%s' is not allowed for route '%s'", c.Request.Method, c.Request.URL.Path),
		})
	}
}
