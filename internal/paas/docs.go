package paas

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# MLS Sync Service

Mirrors the Property, Member, Office and OpenHouse collections of an RESO
Web API provider into the local database and serves them back read-only.

## Access via PaaS

Base path (through gateway):
- /api/v1/services/mls-sync/

## Auth

All /api/* routes require a Bearer token (validated by the PaaS gateway).
Health and metrics endpoints are public.

## Routes

- GET /healthz
- GET /readyz
- GET /metrics
- GET /swagger/index.html
- POST /api/sync/all
- POST /api/sync/:resource   (Property, Listing, Member, Office, OpenHouse)
- GET /api/sync/cursors
- GET /api/sync/runs
- GET /api/listings
- GET /api/listings/:key
- GET /api/members
- GET /api/offices
- GET /api/open-houses
- GET /api/settings/switches
- PUT /api/settings/switches/:name
`)
	})
}
