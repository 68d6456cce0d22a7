package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mlssync/internal/repository"
	"mlssync/internal/service"
)

// ListingsHandler is the read-only API over the synced tables.
type ListingsHandler struct {
	Service *service.ListingQueryService
	Logger  *zap.Logger
}

func (h *ListingsHandler) Register(r *gin.Engine) {
	r.GET("/api/listings", h.listListings)
	r.GET("/api/listings/:key", h.getListing)
	r.GET("/api/members", h.listMembers)
	r.GET("/api/offices", h.listOffices)
	r.GET("/api/open-houses", h.listOpenHouses)
}

func (h *ListingsHandler) ready(c *gin.Context) bool {
	if h.Service == nil || h.Service.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return false
	}
	return true
}

func (h *ListingsHandler) queryFailed(c *gin.Context, what string, err error) {
	if h.Logger != nil {
		h.Logger.Warn(what+" failed", zap.Error(err))
	}
	Error(c, http.StatusBadGateway, err.Error(), nil)
}

// @Summary List listings
// @Tags listings
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Param status query string false "standard status"
// @Param property_type query string false "property type"
// @Param city query string false "city (case-insensitive)"
// @Param postal_code query string false "postal code"
// @Param agent_key query string false "list agent key"
// @Param office_key query string false "list office key"
// @Param min_price query number false "minimum list price"
// @Param max_price query number false "maximum list price"
// @Param min_bedrooms query int false "minimum bedrooms"
// @Param modified_since query string false "modified at or after (RFC 3339)"
// @Param order_by query string false "modified | price | bedrooms | first_seen"
// @Param ascending query bool false "ascending"
// @Success 200 {object} apiResponse
// @Router /api/listings [get]
func (h *ListingsHandler) listListings(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	result, err := h.Service.ListListings(c.Request.Context(), repository.ListPropertiesParams{
		Limit:         limit,
		Offset:        offset,
		Status:        strQueryPtr(c, "status"),
		PropertyType:  strQueryPtr(c, "property_type"),
		City:          strQueryPtr(c, "city"),
		PostalCode:    strQueryPtr(c, "postal_code"),
		ListAgentKey:  strQueryPtr(c, "agent_key"),
		ListOfficeKey: strQueryPtr(c, "office_key"),
		MinPrice:      decimalQueryPtr(c, "min_price"),
		MaxPrice:      decimalQueryPtr(c, "max_price"),
		MinBedrooms:   intQueryPtr(c, "min_bedrooms"),
		ModifiedSince: timeQueryPtr(c, "modified_since"),
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{
			"modified":   "rf_modification_timestamp",
			"price":      "list_price",
			"bedrooms":   "bedrooms_total",
			"first_seen": "first_seen_at",
		}),
		Asc: boolQueryPtr(c, "ascending"),
	})
	if err != nil {
		h.queryFailed(c, "list listings", err)
		return
	}
	Ok(c, result.Items, paginationMeta(limit, offset, result.Total))
}

// @Summary Get listing
// @Tags listings
// @Param key path string true "listing key"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/listings/{key} [get]
func (h *ListingsHandler) getListing(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		Error(c, http.StatusBadRequest, "invalid listing key", nil)
		return
	}
	item, err := h.Service.GetListing(c.Request.Context(), key)
	if err != nil {
		h.queryFailed(c, "get listing", err)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "listing not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary List members
// @Tags listings
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Param office_key query string false "office key"
// @Param name query string false "full name contains"
// @Param status query string false "member status"
// @Success 200 {object} apiResponse
// @Router /api/members [get]
func (h *ListingsHandler) listMembers(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	result, err := h.Service.ListMembers(c.Request.Context(), repository.ListMembersParams{
		Limit:     limit,
		Offset:    offset,
		OfficeKey: strQueryPtr(c, "office_key"),
		Name:      strQueryPtr(c, "name"),
		Status:    strQueryPtr(c, "status"),
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{
			"modified": "rf_modification_timestamp",
			"name":     "member_full_name",
		}),
		Asc: boolQueryPtr(c, "ascending"),
	})
	if err != nil {
		h.queryFailed(c, "list members", err)
		return
	}
	Ok(c, result.Items, paginationMeta(limit, offset, result.Total))
}

// @Summary List offices
// @Tags listings
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Param name query string false "office name contains"
// @Param city query string false "city"
// @Success 200 {object} apiResponse
// @Router /api/offices [get]
func (h *ListingsHandler) listOffices(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	result, err := h.Service.ListOffices(c.Request.Context(), repository.ListOfficesParams{
		Limit:  limit,
		Offset: offset,
		Name:   strQueryPtr(c, "name"),
		City:   strQueryPtr(c, "city"),
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{
			"modified": "rf_modification_timestamp",
			"name":     "office_name",
		}),
		Asc: boolQueryPtr(c, "ascending"),
	})
	if err != nil {
		h.queryFailed(c, "list offices", err)
		return
	}
	Ok(c, result.Items, paginationMeta(limit, offset, result.Total))
}

// @Summary List open houses
// @Tags listings
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Param listing_key query string false "listing key"
// @Param from query string false "starts at or after (RFC 3339 or date)"
// @Param to query string false "starts before (RFC 3339 or date)"
// @Success 200 {object} apiResponse
// @Router /api/open-houses [get]
func (h *ListingsHandler) listOpenHouses(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	result, err := h.Service.ListOpenHouses(c.Request.Context(), repository.ListOpenHousesParams{
		Limit:      limit,
		Offset:     offset,
		ListingKey: strQueryPtr(c, "listing_key"),
		From:       timeQueryPtr(c, "from"),
		To:         timeQueryPtr(c, "to"),
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{
			"start":    "open_house_start_time",
			"modified": "rf_modification_timestamp",
		}),
		Asc: boolQueryPtr(c, "ascending"),
	})
	if err != nil {
		h.queryFailed(c, "list open houses", err)
		return
	}
	Ok(c, result.Items, paginationMeta(limit, offset, result.Total))
}
