package paas

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mlssync/internal/config"
)

// RequireBearerMiddleware rejects /api, /swagger and /docs requests without a
// bearer token. Token validation itself happens at the gateway.
func RequireBearerMiddleware(cfg config.ServerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.AuthDisabled {
			c.Next()
			return
		}
		p := c.Request.URL.Path
		if p == "/healthz" || p == "/readyz" || p == "/metrics" {
			c.Next()
			return
		}
		if strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/swagger") || p == "/docs" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if !strings.HasPrefix(auth, "Bearer ") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
				return
			}
			if cfg.RequireGateway && strings.TrimSpace(c.GetHeader("X-Easyweb3-Project")) == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-Easyweb3-Project"})
				return
			}
		}
		c.Next()
	}
}

// WriteAuditMiddleware logs every non-read /api request to the gateway after
// it completes.
func WriteAuditMiddleware(p *Client, logger *zap.Logger) gin.HandlerFunc {
	if p == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		method := strings.ToUpper(c.Request.Method)
		if !strings.HasPrefix(path, "/api/") {
			return
		}
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return
		}

		status := c.Writer.Status()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := p.CreateLog(ctx, CreateLogRequest{
			Action: "mls_http_write",
			Level:  levelFromStatus(status),
			Details: map[string]any{
				"method":   method,
				"path":     path,
				"status":   status,
				"duration": time.Since(start).String(),
				"request":  c.Writer.Header().Get("X-Request-ID"),
				"project":  strings.TrimSpace(c.GetHeader("X-Easyweb3-Project")),
				"role":     strings.TrimSpace(c.GetHeader("X-Easyweb3-Role")),
			},
		})
		if err != nil && logger != nil {
			logger.Debug("paas audit log failed", zap.Error(err))
		}
	}
}

func levelFromStatus(status int) string {
	if status >= 500 {
		return "error"
	}
	if status >= 400 {
		return "warn"
	}
	return "info"
}
