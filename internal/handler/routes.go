package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all API routes. reviewerAuth guards the reviewer group.
func RegisterRoutes(r *gin.Engine, reports ReportHandler, reviewer ReviewerHandler, reviewerAuth gin.HandlerFunc) {
	api := r.Group("/api")
	{
		api.POST("/reports", reports.CreateReport)
		api.GET("/reports", reports.ListReports)
		api.GET("/reports/:id", reports.GetReport)
		api.GET("/city-pulse", reports.CityPulse)
	}

	rev := r.Group("/api/reviewer")
	rev.Use(reviewerAuth)
	{
		rev.GET("/reports", reviewer.ListReports)
		rev.GET("/reports/:id/transitions", reviewer.AllowedTransitions)
		rev.POST("/reports/:id/status", reviewer.TransitionStatus)
		rev.POST("/reports/:id/notes", reviewer.AddNote)
		rev.POST("/reports/:id/category", reviewer.OverrideCategory)
		rev.POST("/reports/:id/confidence", reviewer.UpgradeConfidence)
		rev.POST("/reports/:id/escalation", reviewer.SetEscalation)
		rev.POST("/reports/:id/recompute", reviewer.Recompute)
		rev.GET("/escalations", reviewer.EscalationCandidates)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
