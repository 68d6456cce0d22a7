package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"gorm.io/datatypes"

	"mlssync/internal/models"
	"mlssync/internal/paas"
	"mlssync/internal/repository"
	"mlssync/internal/service"
)

const switchPrefix = "feature."

// SettingsHandler exposes system settings and the feature switches that gate
// scheduled runs (e.g. feature.sync.cron, feature.sync.property).
type SettingsHandler struct {
	Repo     repository.SettingsRepository
	Settings *service.SystemSettingsService
}

func (h *SettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/settings")
	g.GET("", h.list)
	g.GET("/switches", h.listSwitches)
	g.GET("/switches/:name", h.getSwitch)
	g.PUT("/switches/:name", h.putSwitch)
	g.GET("/:key", h.get)
	g.PUT("/:key", h.put)
}

// @Summary List settings
// @Tags settings
// @Param prefix query string false "key prefix"
// @Success 200 {object} apiResponse
// @Router /api/settings [get]
func (h *SettingsHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 200)
	offset := intQuery(c, "offset", 0)
	params := repository.ListSystemSettingsParams{
		Limit:   limit,
		Offset:  offset,
		Prefix:  strQueryPtr(c, "prefix"),
		OrderBy: "key",
		Asc:     boolPtr(true),
	}
	items, err := h.Repo.ListSystemSettings(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountSystemSettings(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get setting
// @Tags settings
// @Param key path string true "setting key"
// @Success 200 {object} apiResponse
// @Router /api/settings/{key} [get]
func (h *SettingsHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	key := strings.TrimSpace(c.Param("key"))
	item, err := h.Repo.GetSystemSettingByKey(c.Request.Context(), key)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "setting not found", nil)
		return
	}
	Ok(c, item, nil)
}

type putSettingRequest struct {
	Value       any    `json:"value"`
	Description string `json:"description"`
}

// @Summary Put setting
// @Tags settings
// @Param key path string true "setting key"
// @Param body body putSettingRequest true "value"
// @Success 200 {object} apiResponse
// @Router /api/settings/{key} [put]
func (h *SettingsHandler) put(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	key := strings.TrimSpace(c.Param("key"))
	var req putSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	raw, err := json.Marshal(req.Value)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid value", nil)
		return
	}
	now := time.Now().UTC()
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Repo.UpsertSystemSetting(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	next, _ := h.Repo.GetSystemSettingByKey(c.Request.Context(), key)
	Ok(c, next, nil)
}

type switchView struct {
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// @Summary List feature switches
// @Tags settings
// @Success 200 {object} apiResponse
// @Router /api/settings/switches [get]
func (h *SettingsHandler) listSwitches(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	prefix := switchPrefix
	items, err := h.Repo.ListSystemSettings(c.Request.Context(), repository.ListSystemSettingsParams{
		Limit:   500,
		Prefix:  &prefix,
		OrderBy: "key",
		Asc:     boolPtr(true),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]switchView, 0, len(items))
	for _, it := range items {
		var enabled bool
		_ = json.Unmarshal(it.Value, &enabled)
		out = append(out, switchView{
			Name:      strings.TrimPrefix(it.Key, switchPrefix),
			Key:       it.Key,
			Enabled:   enabled,
			UpdatedAt: it.UpdatedAt,
		})
	}
	Ok(c, out, nil)
}

// @Summary Get feature switch
// @Tags settings
// @Param name path string true "switch name without the feature. prefix, e.g. sync.member"
// @Success 200 {object} apiResponse
// @Router /api/settings/switches/{name} [get]
func (h *SettingsHandler) getSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "invalid switch name", nil)
		return
	}
	key := switchPrefix + name
	Ok(c, switchView{
		Name:    name,
		Key:     key,
		Enabled: h.Settings.IsEnabled(c.Request.Context(), key, true),
	}, nil)
}

type putSwitchRequest struct {
	Enabled bool `json:"enabled"`
}

// @Summary Set feature switch
// @Tags settings
// @Param name path string true "switch name"
// @Param body body putSwitchRequest true "state"
// @Success 200 {object} apiResponse
// @Router /api/settings/switches/{name} [put]
func (h *SettingsHandler) putSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "invalid switch name", nil)
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	key := switchPrefix + name
	if err := h.Settings.SetEnabled(c.Request.Context(), key, req.Enabled); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	paas.LogBestEffort(c.Request.Context(), "mls_switch_updated", "info", map[string]any{
		"key":     key,
		"enabled": req.Enabled,
	})
	Ok(c, switchView{Name: name, Key: key, Enabled: req.Enabled}, nil)
}
