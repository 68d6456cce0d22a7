package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mlssync/internal/repository"
	"mlssync/internal/service"
)

// SyncRunner starts orchestrated runs.
type SyncRunner interface {
	RunSync(ctx context.Context, trigger string, names []string) (service.RunReport, error)
}

type SyncHandler struct {
	Runner SyncRunner
	Store  repository.SyncRepository
	Logger *zap.Logger
}

func (h *SyncHandler) Register(r *gin.Engine) {
	g := r.Group("/api/sync")
	g.POST("/all", h.syncAll)
	g.POST("/:resource", h.syncResource)
	g.GET("/cursors", h.listCursors)
	g.GET("/runs", h.listRuns)
}

type syncErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// @Summary Sync one resource
// @Description Drains the resource from its watermark. Listing is accepted for Property.
// @Tags sync
// @Param resource path string true "Property | Listing | Member | Office | OpenHouse"
// @Success 200 {object} service.SyncRunResult
// @Failure 400 {object} syncErrorResponse
// @Failure 409 {object} service.SyncRunResult
// @Failure 502 {object} service.SyncRunResult
// @Router /api/sync/{resource} [post]
func (h *SyncHandler) syncResource(c *gin.Context) {
	if h.Runner == nil {
		c.JSON(http.StatusInternalServerError, syncErrorResponse{Error: "sync unavailable"})
		return
	}
	name := strings.TrimSpace(c.Param("resource"))
	cfg, ok := service.LookupResource(service.DefaultResources(), name)
	if !ok {
		c.JSON(http.StatusBadRequest, syncErrorResponse{Error: "unknown resource: " + name})
		return
	}
	report, err := h.Runner.RunSync(c.Request.Context(), service.TriggerManual, []string{cfg.Name})
	if err != nil {
		h.runFailed(c, err)
		return
	}
	res := report.Results[cfg.Name]
	c.JSON(statusForResult(res), res)
}

// @Summary Sync every resource
// @Tags sync
// @Param resource query []string false "restrict to these resources" collectionFormat(multi)
// @Success 200 {object} service.RunReport
// @Failure 400 {object} syncErrorResponse
// @Failure 502 {object} service.RunReport
// @Router /api/sync/all [post]
func (h *SyncHandler) syncAll(c *gin.Context) {
	if h.Runner == nil {
		c.JSON(http.StatusInternalServerError, syncErrorResponse{Error: "sync unavailable"})
		return
	}
	report, err := h.Runner.RunSync(c.Request.Context(), service.TriggerManual, c.QueryArray("resource"))
	if err != nil {
		h.runFailed(c, err)
		return
	}
	status := http.StatusOK
	if !report.OK {
		status = http.StatusBadGateway
	}
	c.JSON(status, report)
}

func (h *SyncHandler) runFailed(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, service.ErrUnknownResource) {
		status = http.StatusBadRequest
	}
	if h.Logger != nil {
		h.Logger.Warn("sync request rejected", zap.Error(err))
	}
	c.JSON(status, syncErrorResponse{Error: err.Error()})
}

func statusForResult(res service.SyncRunResult) int {
	switch {
	case res.OK:
		return http.StatusOK
	case res.ErrorKind == service.KindLeaseHeld:
		return http.StatusConflict
	case res.ErrorKind == service.KindConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// @Summary List sync cursors
// @Tags sync
// @Success 200 {object} apiResponse
// @Router /api/sync/cursors [get]
func (h *SyncHandler) listCursors(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Store.ListSyncCursors(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

// @Summary List sync runs
// @Tags sync
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Param trigger query string false "manual | cron | cli"
// @Param ok query bool false "only successful or failed runs"
// @Param since query string false "started at or after (RFC 3339)"
// @Param ascending query bool false "oldest first"
// @Success 200 {object} apiResponse
// @Router /api/sync/runs [get]
func (h *SyncHandler) listRuns(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListSyncRunsParams{
		Limit:   limit,
		Offset:  offset,
		Trigger: strQueryPtr(c, "trigger"),
		OK:      boolQueryPtr(c, "ok"),
		Since:   timeQueryPtr(c, "since"),
		OrderBy: "started_at",
		Asc:     boolQueryPtr(c, "ascending"),
	}
	items, err := h.Store.ListSyncRuns(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Store.CountSyncRuns(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}
