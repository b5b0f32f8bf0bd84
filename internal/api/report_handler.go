package api

import (
	"net/http"
	"strconv"

	"SpreadSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ReportHandler read-only analysis endpoints.
type ReportHandler struct {
	reports *service.ReportService
	logger  *logrus.Logger
}

func NewReportHandler(reports *service.ReportService, logger *logrus.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		logger:  logger,
	}
}

func wantsText(c *gin.Context) bool {
	return c.Query("format") == "text"
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// weekWindow start/end query params, or the richest stored week with auto_best=true.
func (h *ReportHandler) weekWindow(c *gin.Context) (service.WeekWindow, bool) {
	if c.Query("auto_best") == "true" {
		w, _, err := h.reports.BestWeek(c.Request.Context())
		if err != nil {
			respondError(c, h.logger, "best week", err)
			return service.WeekWindow{}, false
		}
		return w, true
	}
	start := c.Query("start")
	if start == "" {
		badRequest(c, "start is required (YYYY-MM-DD) unless auto_best=true")
		return service.WeekWindow{}, false
	}
	w, err := service.ParseWeek(start, c.Query("end"))
	if err != nil {
		badRequest(c, err.Error())
		return service.WeekWindow{}, false
	}
	return w, true
}

// Status GET /api/status
func (h *ReportHandler) Status(c *gin.Context) {
	status := h.reports.Status(c.Request.Context())
	code := http.StatusOK
	if !status.Connected {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// Weeks GET /api/weeks?limit=10&format=text
func (h *ReportHandler) Weeks(c *gin.Context) {
	weeks, err := h.reports.Weeks(c.Request.Context(), intQuery(c, "limit", 10))
	if err != nil {
		respondError(c, h.logger, "weeks", err)
		return
	}
	if wantsText(c) {
		c.String(http.StatusOK, service.RenderWeeks(weeks))
		return
	}
	c.JSON(http.StatusOK, gin.H{"weeks": weeks})
}

// BestWeek GET /api/weeks/best
func (h *ReportHandler) BestWeek(c *gin.Context) {
	w, summary, err := h.reports.BestWeek(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "best week", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": w, "summary": summary})
}

// WeekGames GET /api/games?start=2024-09-05
func (h *ReportHandler) WeekGames(c *gin.Context) {
	w, ok := h.weekWindow(c)
	if !ok {
		return
	}
	games, err := h.reports.WeekGames(c.Request.Context(), w)
	if err != nil {
		respondError(c, h.logger, "week games", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": w, "games": games})
}

// Comparison GET /api/comparison?start=2024-09-05
func (h *ReportHandler) Comparison(c *gin.Context) {
	w, ok := h.weekWindow(c)
	if !ok {
		return
	}
	games, err := h.reports.Comparison(c.Request.Context(), w)
	if err != nil {
		respondError(c, h.logger, "comparison", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": w, "games": games})
}

// Arbitrage GET /api/arbitrage?start=2024-09-05
func (h *ReportHandler) Arbitrage(c *gin.Context) {
	w, ok := h.weekWindow(c)
	if !ok {
		return
	}
	ops, err := h.reports.Arbitrage(c.Request.Context(), w)
	if err != nil {
		respondError(c, h.logger, "arbitrage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": w, "opportunities": ops})
}

// Timeline GET /api/games/:id/timeline
func (h *ReportHandler) Timeline(c *gin.Context) {
	rows, err := h.reports.Timeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "timeline", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game_id": c.Param("id"), "spreads": rows})
}

// Movements GET /api/games/:id/movements
func (h *ReportHandler) Movements(c *gin.Context) {
	movements, err := h.reports.Movements(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "movements", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game_id": c.Param("id"), "bookmakers": movements})
}

// Outcomes GET /api/outcomes?limit=10
func (h *ReportHandler) Outcomes(c *gin.Context) {
	rows, err := h.reports.Outcomes(c.Request.Context(), intQuery(c, "limit", 10))
	if err != nil {
		respondError(c, h.logger, "outcomes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": rows})
}

// Summary GET /api/summary
func (h *ReportHandler) Summary(c *gin.Context) {
	summary, err := h.reports.Summary(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// WeeklyReport GET /api/reports/weekly?start=...&end=... or ?auto_best=true, text/plain.
func (h *ReportHandler) WeeklyReport(c *gin.Context) {
	w, ok := h.weekWindow(c)
	if !ok {
		return
	}
	text, err := h.reports.WeeklyReport(c.Request.Context(), w)
	if err != nil {
		respondError(c, h.logger, "weekly report", err)
		return
	}
	c.String(http.StatusOK, text)
}

// QuickReport GET /api/reports/quick?start=..., text/plain.
func (h *ReportHandler) QuickReport(c *gin.Context) {
	w, ok := h.weekWindow(c)
	if !ok {
		return
	}
	text, err := h.reports.QuickReport(c.Request.Context(), w)
	if err != nil {
		respondError(c, h.logger, "quick report", err)
		return
	}
	c.String(http.StatusOK, text)
}
