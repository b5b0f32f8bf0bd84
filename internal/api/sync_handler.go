package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"SpreadSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// JobStatus background backfill started over HTTP.
type JobStatus struct {
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	State      string      `json:"state"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// finishedJobTTL how long a finished job stays queryable.
const finishedJobTTL = time.Hour

type jobTracker struct {
	mu   sync.Mutex
	jobs map[string]*JobStatus
	ttl  time.Duration
	now  func() time.Time
}

func newJobTracker(ttl time.Duration) *jobTracker {
	return &jobTracker{jobs: make(map[string]*JobStatus), ttl: ttl, now: time.Now}
}

// prune drops jobs that finished more than ttl ago. Callers hold mu.
func (t *jobTracker) prune() {
	cutoff := t.now().Add(-t.ttl)
	for id, job := range t.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(t.jobs, id)
		}
	}
}

// start registers a running job and returns a copy safe to serialise.
func (t *jobTracker) start(kind string) JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune()
	job := &JobStatus{ID: uuid.NewString(), Kind: kind, State: JobRunning, StartedAt: t.now().UTC()}
	t.jobs[job.ID] = job
	return *job
}

func (t *jobTracker) finish(id string, result interface{}, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return
	}
	now := t.now().UTC()
	job.FinishedAt = &now
	job.Result = result
	job.State = JobSucceeded
	if err != nil {
		job.State = JobFailed
		job.Error = err.Error()
	}
}

func (t *jobTracker) get(id string) (JobStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune()
	job, ok := t.jobs[id]
	if !ok {
		return JobStatus{}, false
	}
	return *job, true
}

// SyncHandler ingestion endpoints. Range and season backfills run in the background
// under ctx, so cancelling it stops them.
type SyncHandler struct {
	ctx     context.Context
	sync    *service.SyncService
	seasons *service.SeasonCollector
	scores  *service.ScoreSyncService
	jobs    *jobTracker
	logger  *logrus.Logger
	spawn   func(func())
}

func NewSyncHandler(ctx context.Context, sync *service.SyncService, seasons *service.SeasonCollector, scores *service.ScoreSyncService, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		ctx:     ctx,
		sync:    sync,
		seasons: seasons,
		scores:  scores,
		jobs:    newJobTracker(finishedJobTTL),
		logger:  logger,
		spawn:   func(f func()) { go f() },
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SyncLive POST /sync/live?bookmakers=draftkings,fanduel
func (h *SyncHandler) SyncLive(c *gin.Context) {
	counts, err := h.sync.SyncLive(c.Request.Context(), splitList(c.Query("bookmakers")))
	if err != nil {
		respondError(c, h.logger, "sync live", err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

type historicalRequest struct {
	Timestamp string `json:"timestamp"` // RFC3339; set for a single snapshot
	service.RangeRequest
}

// SyncHistorical POST /sync/historical
// {"timestamp": "..."} fetches one snapshot synchronously; a date range is accepted with 202.
func (h *SyncHandler) SyncHistorical(c *gin.Context) {
	var req historicalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			badRequest(c, "timestamp must be RFC3339")
			return
		}
		counts, err := h.sync.SyncHistorical(c.Request.Context(), ts, req.Bookmakers)
		if err != nil {
			respondError(c, h.logger, "sync historical", err)
			return
		}
		c.JSON(http.StatusOK, counts)
		return
	}

	for _, d := range []string{req.StartDate, req.EndDate} {
		if d == "" {
			continue
		}
		if _, err := service.ParseDate(d); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	job := h.jobs.start("historical_range")
	rangeReq := req.RangeRequest
	h.spawn(func() {
		result, err := h.sync.SyncHistoricalRange(h.ctx, rangeReq)
		h.finish(job.ID, result, err)
	})
	c.JSON(http.StatusAccepted, job)
}

// SyncSeasons POST /sync/seasons
// Dry runs answer with the plan. Runs above the confirmation threshold need "confirm": true.
func (h *SyncHandler) SyncSeasons(c *gin.Context) {
	var req service.SeasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	plan, err := h.seasons.Plan(req)
	if err != nil {
		respondError(c, h.logger, "plan seasons", err)
		return
	}
	if req.DryRun {
		c.JSON(http.StatusOK, &service.SeasonReport{Plan: plan, DryRun: true, Outcomes: []*service.SeasonOutcome{}})
		return
	}
	if plan.TotalCalls > service.ConfirmCallsAbove && !req.Confirm {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrConfirmationRequired.Error(), "plan": plan})
		return
	}

	job := h.jobs.start("seasons")
	h.spawn(func() {
		report, err := h.seasons.Run(h.ctx, req)
		h.finish(job.ID, report, err)
	})
	c.JSON(http.StatusAccepted, gin.H{"job": job, "plan": plan})
}

// SyncScores POST /sync/scores {"season": 2024, "dry_run": true}
func (h *SyncHandler) SyncScores(c *gin.Context) {
	var req service.ReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}
	result, err := h.scores.Run(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, "sync scores", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetJob GET /sync/jobs/:id
func (h *SyncHandler) GetJob(c *gin.Context) {
	job, ok := h.jobs.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *SyncHandler) finish(id string, result interface{}, err error) {
	h.jobs.finish(id, result, err)
	entry := h.logger.WithField("job_id", id)
	if err != nil {
		entry.WithError(err).Error("background sync failed")
		return
	}
	entry.Info("background sync finished")
}
