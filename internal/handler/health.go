package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CredentialsChecker reports whether the upstream credentials are usable.
type CredentialsChecker interface {
	Validate() error
}

type HealthHandler struct {
	DB       *gorm.DB
	Upstream CredentialsChecker
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

// @Summary Health check
// @Tags health
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Readiness check
// @Description Ready when the database answers. Missing upstream credentials are reported but do not fail readiness; read endpoints still work.
// @Tags health
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /readyz [get]
func (h *HealthHandler) ready(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_missing"})
		return
	}
	sqlDB, err := h.DB.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_error"})
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	upstream := "configured"
	if h.Upstream != nil {
		if err := h.Upstream.Validate(); err != nil {
			upstream = "missing_credentials"
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "upstream": upstream})
}
