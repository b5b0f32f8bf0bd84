package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Sync   *SyncHandler
	Report *ReportHandler
	Query  *QueryHandler
}

// RegisterRoutes mounts every endpoint; defaultSport seeds X-Sport-Context for dashboard calls.
func RegisterRoutes(r *gin.Engine, h Handlers, defaultSport string) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	sync := r.Group("/sync")
	sync.POST("/live", h.Sync.SyncLive)
	sync.POST("/historical", h.Sync.SyncHistorical)
	sync.POST("/seasons", h.Sync.SyncSeasons)
	sync.POST("/scores", h.Sync.SyncScores)
	sync.GET("/jobs/:id", h.Sync.GetJob)

	api := r.Group("/api")
	api.GET("/status", h.Report.Status)
	api.GET("/weeks", h.Report.Weeks)
	api.GET("/weeks/best", h.Report.BestWeek)
	api.GET("/games", h.Report.WeekGames)
	api.GET("/comparison", h.Report.Comparison)
	api.GET("/arbitrage", h.Report.Arbitrage)
	api.GET("/games/:id/timeline", h.Report.Timeline)
	api.GET("/games/:id/movements", h.Report.Movements)
	api.GET("/outcomes", h.Report.Outcomes)
	api.GET("/summary", h.Report.Summary)
	api.GET("/reports/weekly", h.Report.WeeklyReport)
	api.GET("/reports/quick", h.Report.QuickReport)

	query := api.Group("/query", QueryContext(defaultSport))
	query.POST("/sql", h.Query.GenerateSQL)
	query.POST("/execute", h.Query.Execute)
	query.POST("/ask", h.Query.Ask)
	query.POST("/insights", h.Query.Insights)
	query.POST("/chart", h.Query.Chart)
	query.GET("/history", h.Query.History)
	query.GET("/samples", h.Query.Samples)
}
