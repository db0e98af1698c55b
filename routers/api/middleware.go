package api

import (
	"net/http"
	"strconv"
	"time"

	"scriptslap-server/auth"
	"scriptslap-server/metrics"
	"scriptslap-server/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader      = "X-Request-ID"
	workflowSecretHeader = "X-Workflow-Secret"
)

// RequestLogger logs every request with a request id and counts it.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// Recovery turns panics into 500 responses.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	})
}

// AuthMiddleware resolves the bearer token into a principal. With
// allowQuery the token may also come from the access_token query parameter,
// which browsers need for websockets.
func AuthMiddleware(a auth.Authenticator, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok && allowQuery {
			token = c.Query("access_token")
		}
		p, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			zap.L().Debug("authentication failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
			handleServiceError(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// WorkflowSecret protects the callback routes with the shared workflow secret.
func WorkflowSecret(callbacks *service.CallbackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := callbacks.Authorize(c.GetHeader(workflowSecretHeader)); err != nil {
			zap.L().Warn("workflow callback rejected", zap.String("path", c.Request.URL.Path))
			handleServiceError(c, err)
			return
		}
		c.Next()
	}
}
