package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (s *Server) SetUpRouter() *gin.Engine {
	router := gin.New()
	router.Use(RequestId())
	router.Use(Logger())
	router.Use(gin.Recovery())
	router.Use(Cors())

	router.GET("/health", s.handleHealth)
	router.GET("/videos", s.handleListVideos)
	router.GET("/upload_info", s.handleUploadInfo)
	router.GET("/video_feed", s.handleVideoFeed)
	router.GET("/video_feed/:site_id", s.handleVideoFeed)
	router.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
			return
		}
		c.String(http.StatusNotFound, "not found")
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	api := router.Group("/api")
	s.SetUpApiRouter(api)

	return router
}

func (s *Server) SetUpApiRouter(api *gin.RouterGroup) {
	alerts := api.Group("/alerts")
	alerts.GET("", s.handleListAlerts)
	{
		siteAlerts := alerts.Group("/:site_id")
		siteAlerts.Use(s.SetSiteToContext())
		siteAlerts.GET("", s.handleGetSiteAlerts)
		siteAlerts.GET("/:type", s.handleGetSiteAlertsByType)
	}

	api.GET("/sites", s.handleListSites)
	api.GET("/dashboard/summary", s.handleDashboardSummary)

	ppeApi := api.Group("/ppe")
	ppeApi.GET("/results/:site_id", s.handleGetResults)
	ppeApi.GET("/status", s.handlePPEStatus)
	ppeApi.GET("/tasks", s.handleListTasks)
	ppeApi.GET("/tasks/:task_id", s.handleGetTask)

	{
		admin := ppeApi.Group("")
		admin.Use(AdminAuth(s.conf.JwtSecret))

		admin.POST("/analyze/:site_id", s.SetSiteToContext(), s.handleAnalyze)
		admin.POST("/batch-analyze", s.handleBatchAnalyze)
		admin.DELETE("/tasks/:task_id", s.handleCancelTask)
	}
}
