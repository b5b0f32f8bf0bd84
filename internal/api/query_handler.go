package api

import (
	"bytes"
	"net/http"
	"time"

	"SpreadSync/internal/repository"
	"SpreadSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// QueryHandler natural-language dashboard endpoints.
type QueryHandler struct {
	queries *service.QueryService
	logger  *logrus.Logger
}

func NewQueryHandler(queries *service.QueryService, logger *logrus.Logger) *QueryHandler {
	return &QueryHandler{
		queries: queries,
		logger:  logger,
	}
}

type questionRequest struct {
	Question string `json:"question"`
}

type executeRequest struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
	Insights bool   `json:"insights"`
	Chart    bool   `json:"chart"`
}

type executeResponse struct {
	RequestID string                  `json:"request_id"`
	SQL       string                  `json:"sql"`
	Result    *repository.QueryResult `json:"result"`
	Display   *repository.QueryResult `json:"display"`
	Insights  string                  `json:"insights,omitempty"`
	Chart     *service.ChartConfig    `json:"chart,omitempty"`
}

// GenerateSQL POST /api/query/sql {"question": "..."}
func (h *QueryHandler) GenerateSQL(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	qc := queryContext(c)
	sql, err := h.queries.GenerateSQL(c.Request.Context(), qc, req.Question)
	if err != nil {
		respondError(c, h.logger, "generate sql", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": qc.RequestID, "sql": sql})
}

// Execute POST /api/query/execute[?format=csv] {"question", "sql", "insights", "chart"}
func (h *QueryHandler) Execute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	h.execute(c, req)
}

// Ask POST /api/query/ask: generate then execute in one call.
func (h *QueryHandler) Ask(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	sql, err := h.queries.GenerateSQL(c.Request.Context(), queryContext(c), req.Question)
	if err != nil {
		respondError(c, h.logger, "generate sql", err)
		return
	}
	req.SQL = sql
	h.execute(c, req)
}

func (h *QueryHandler) execute(c *gin.Context, req executeRequest) {
	ctx := c.Request.Context()
	qc := queryContext(c)
	result, err := h.queries.Execute(ctx, qc, req.Question, req.SQL)
	if err != nil {
		respondError(c, h.logger, "execute query", err)
		return
	}

	if c.Query("format") == "csv" {
		var buf bytes.Buffer
		if err := service.ExportCSV(&buf, result); err != nil {
			respondError(c, h.logger, "export csv", err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+service.CSVFileName(time.Now())+`"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
		return
	}

	resp := executeResponse{
		RequestID: qc.RequestID,
		SQL:       req.SQL,
		Result:    result,
		Display:   service.FormatForDisplay(result),
	}
	if req.Insights {
		insights, err := h.queries.Insights(ctx, req.Question, result)
		if err != nil {
			h.logger.WithError(err).WithField("request_id", qc.RequestID).Warn("insights unavailable")
		}
		resp.Insights = insights
	}
	if req.Chart {
		resp.Chart = h.queries.SuggestChart(ctx, req.Question, result)
	}
	c.JSON(http.StatusOK, resp)
}

// Insights POST /api/query/insights {"question", "sql"}: runs the statement and summarises the rows.
func (h *QueryHandler) Insights(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	qc := queryContext(c)
	result, err := h.queries.Execute(ctx, qc, req.Question, req.SQL)
	if err != nil {
		respondError(c, h.logger, "execute query", err)
		return
	}
	insights, err := h.queries.Insights(ctx, req.Question, result)
	if err != nil {
		respondError(c, h.logger, "insights", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": qc.RequestID, "insights": insights})
}

// Chart POST /api/query/chart {"question", "sql"}: never fails once the query ran; falls back to a heuristic chart.
func (h *QueryHandler) Chart(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	qc := queryContext(c)
	result, err := h.queries.Execute(ctx, qc, req.Question, req.SQL)
	if err != nil {
		respondError(c, h.logger, "execute query", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": qc.RequestID, "chart": h.queries.SuggestChart(ctx, req.Question, result)})
}

// History GET /api/query/history?limit=10
func (h *QueryHandler) History(c *gin.Context) {
	list, err := h.queries.RecentQueries(c.Request.Context(), intQuery(c, "limit", 10))
	if err != nil {
		respondError(c, h.logger, "query history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": list})
}

// Samples GET /api/query/samples
func (h *QueryHandler) Samples(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"samples": service.SampleQueries(), "model_enabled": h.queries.Enabled()})
}
