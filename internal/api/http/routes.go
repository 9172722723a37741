package http

import (
	"github.com/gin-gonic/gin"
)

// Register mounts every route on router. stream serves the live feed and may
// be nil.
func Register(router *gin.Engine, h *Handlers, stream gin.HandlerFunc) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	router.GET("/metrics/json", h.MetricsJSON)

	tabs := router.Group("/tabs")
	{
		tabs.GET("", h.ListTabs)
		tabs.POST("", h.OpenTab)
		tabs.GET("/:id", h.GetTab)
		tabs.GET("/:id/html", h.RenderTab)
		tabs.GET("/:id/inspect", h.InspectTab)
		tabs.DELETE("/:id", h.CloseTab)
		tabs.POST("/:id/activate", h.ActivateTab)
		tabs.POST("/:id/navigate", h.NavigateTab)
		tabs.POST("/:id/commands", h.SendCommand)
	}

	router.GET("/fixtures", h.ListFixtures)

	router.GET("/events", h.ListEvents)
	router.GET("/events/export", h.ExportEvents)
	router.GET("/alerts", h.ListAlerts)

	workflows := router.Group("/workflows")
	{
		workflows.GET("", h.ListWorkflows)
		workflows.POST("/run", h.RunWorkflow)
		workflows.GET("/:name", h.GetWorkflow)
		workflows.POST("/:name/run", h.RunNamedWorkflow)
	}

	runs := router.Group("/runs")
	{
		runs.GET("", h.ListRuns)
		runs.GET("/:id", h.GetRun)
		runs.DELETE("/:id", h.CancelRun)
	}

	if stream != nil {
		router.GET("/stream", stream)
	}
}
