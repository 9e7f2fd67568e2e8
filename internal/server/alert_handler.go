package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"siteguard/internal/config"
	"siteguard/internal/dao"
	"siteguard/internal/ppe"
)

const siteKey = "site"

// SetSiteToContext resolves :site_id against the registry and answers 404 for unknown sites.
func (s *Server) SetSiteToContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		siteId := c.Param("site_id")
		site, ok := s.overview.Registry().Lookup(siteId)
		if !ok {
			s.writeError(c, http.StatusNotFound, fmt.Errorf("%w: %s", ppe.ErrUnknownSite, siteId))
			c.Abort()
			return
		}
		c.Set(siteKey, site)
		c.Next()
	}
}

func siteFromContext(c *gin.Context) config.SiteConfig {
	return c.MustGet(siteKey).(config.SiteConfig)
}

// handleListAlerts
// @Summary Latest alerts of every site grouped by severity
// @Tags alerts
// @Produce json
// @Success 200 {object} dao.ListAlertsResponse
// @Router /api/alerts [get]
func (s *Server) handleListAlerts(c *gin.Context) {
	sites := s.overview.Sites()
	total := 0
	for _, spec := range sites {
		total += spec.ActiveAlerts
	}
	c.JSON(http.StatusOK, dao.ListAlertsResponse{
		Sites: sites,
		Total: total,
	})
}

// handleGetSiteAlerts
// @Summary Latest alerts of one site grouped by severity
// @Tags alerts
// @Produce json
// @Param site_id path string true "site id"
// @Success 200 {object} dao.SiteSpec
// @Failure 404 {object} ErrorResponse "unknown site"
// @Router /api/alerts/{site_id} [get]
func (s *Server) handleGetSiteAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, s.overview.Site(siteFromContext(c)))
}

// handleGetSiteAlertsByType
// @Summary Latest alerts of one site and one severity
// @Tags alerts
// @Produce json
// @Param site_id path string true "site id"
// @Param type path string true "critical, warning or info"
// @Success 200 {object} dao.SiteAlertsByTypeResponse
// @Failure 400 {object} ErrorResponse "invalid alert type"
// @Failure 404 {object} ErrorResponse "unknown site"
// @Router /api/alerts/{site_id}/{type} [get]
func (s *Server) handleGetSiteAlertsByType(c *gin.Context) {
	site := siteFromContext(c)
	sev, err := dao.ParseSeverity(c.Param("type"))
	if err != nil {
		s.writeError(c, http.StatusBadRequest, fmt.Errorf("%w: %q, expect one of critical, warning, info", ppe.ErrInvalidAlertType, c.Param("type")))
		return
	}

	res := s.overview.Result(site.Id)
	alerts := dao.GroupAlerts(res.Alerts).Of(sev)
	c.JSON(http.StatusOK, dao.SiteAlertsByTypeResponse{
		SiteId:    site.Id,
		Type:      sev,
		Alerts:    alerts,
		Total:     len(alerts),
		Simulated: res.Simulated,
	})
}

// handleListSites
// @Summary Configured sites with compliance and risk derived from their latest run
// @Tags sites
// @Produce json
// @Success 200 {object} dao.ListSitesResponse
// @Router /api/sites [get]
func (s *Server) handleListSites(c *gin.Context) {
	items := s.overview.Sites()
	c.JSON(http.StatusOK, dao.ListSitesResponse{
		Items: items,
		Total: len(items),
	})
}

// handleDashboardSummary
// @Summary Totals across all sites
// @Tags sites
// @Produce json
// @Success 200 {object} dao.DashboardSummary
// @Router /api/dashboard/summary [get]
func (s *Server) handleDashboardSummary(c *gin.Context) {
	totalRuns := 0
	runs, err := s.opts.Store.Runs("")
	if err != nil {
		s.logger.WithError(err).Warn("count runs for dashboard")
	} else {
		totalRuns = len(runs)
	}
	c.JSON(http.StatusOK, s.overview.Dashboard(totalRuns, time.Now()))
}
