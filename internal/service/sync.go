package service

import (
	"context"
	"fmt"
	"time"

	"SpreadSync/internal/config"
	"SpreadSync/internal/interfaces"
	"SpreadSync/internal/metrics"
	"SpreadSync/internal/model"
	"SpreadSync/internal/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	dateLayout      = "2006-01-02"
	defaultRangeLen = 7 * 24 * time.Hour
)

// RangeRequest historical range; dates are YYYY-MM-DD anchored at 12:00:00Z.
type RangeRequest struct {
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	IntervalHours int      `json:"interval_hours"`
	Bookmakers    []string `json:"bookmakers"`
}

// RangeResult totals over every timestamp of a range.
type RangeResult struct {
	Games      int `json:"games"`
	Spreads    int `json:"spreads"`
	Moneylines int `json:"moneylines"`
	Totals     int `json:"totals"`
	Snapshots  int `json:"snapshots"`
	Calls      int `json:"calls"`
	Failed     int `json:"failed"`
}

func (r *RangeResult) add(c *repository.IngestCounts) {
	r.Games += c.Games
	r.Spreads += c.Spreads
	r.Moneylines += c.Moneylines
	r.Totals += c.Totals
	r.Snapshots += c.Snapshots
}

// SyncService fetches odds snapshots and hands each payload to the ingestor as one transaction.
type SyncService struct {
	fetcher interfaces.OddsFetcher
	repo    repository.OddsRepository
	cfg     *config.OddsAPIConfig
	logger  *logrus.Logger
	now     func() time.Time
	limiter *rate.Limiter
}

func NewSyncService(fetcher interfaces.OddsFetcher, repo repository.OddsRepository, cfg *config.OddsAPIConfig, logger *logrus.Logger) *SyncService {
	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}
	return &SyncService{
		fetcher: fetcher,
		repo:    repo,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// SyncLive fetches current odds and stores them as a live snapshot taken now.
func (s *SyncService) SyncLive(ctx context.Context, bookmakers []string) (*repository.IngestCounts, error) {
	req := model.OddsRequest{Sport: s.cfg.Sport, Bookmakers: bookmakers}
	games, err := s.fetcher.FetchLiveOdds(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch live odds: %w", err)
	}

	counts, err := s.save(ctx, "live", &model.OddsPayload{
		SportKey:     s.cfg.Sport,
		SnapshotTime: s.now().UTC().Truncate(time.Second),
		Live:         true,
		Games:        games,
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"games":      counts.Games,
		"spreads":    counts.Spreads,
		"moneylines": counts.Moneylines,
		"totals":     counts.Totals,
	}).Info("live odds stored")
	return counts, nil
}

// SyncHistorical fetches and stores the snapshot closest to ts. The provider's echoed
// timestamp becomes the snapshot time.
func (s *SyncService) SyncHistorical(ctx context.Context, ts time.Time, bookmakers []string) (*repository.IngestCounts, error) {
	req := model.OddsRequest{Sport: s.cfg.Sport, Bookmakers: bookmakers, Date: ts.UTC()}
	snapshot, err := s.fetcher.FetchHistoricalOdds(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch historical odds at %s: %w", ts.UTC().Format(time.RFC3339), err)
	}

	snapshotTime := snapshot.Timestamp
	if snapshotTime.IsZero() {
		snapshotTime = ts
	}
	counts, err := s.save(ctx, "historical", &model.OddsPayload{
		SportKey:     s.cfg.Sport,
		SnapshotTime: snapshotTime.UTC(),
		Games:        snapshot.Data,
		Snapshot:     snapshot,
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"snapshot": snapshotTime.UTC().Format(time.RFC3339),
		"games":    counts.Games,
		"spreads":  counts.Spreads,
	}).Info("historical snapshot stored")
	return counts, nil
}

// SyncHistoricalRange walks start..end (inclusive) in interval steps. Every timestamp is
// independent: a failed fetch or store is logged, counted and skipped.
func (s *SyncService) SyncHistoricalRange(ctx context.Context, req RangeRequest) (*RangeResult, error) {
	start, end, err := s.rangeBounds(req)
	if err != nil {
		return nil, err
	}
	interval := req.IntervalHours
	if interval <= 0 {
		interval = s.cfg.IntervalHours
	}
	if interval <= 0 {
		interval = 24
	}
	step := time.Duration(interval) * time.Hour

	result := &RangeResult{}
	for ts := start; !ts.After(end); ts = ts.Add(step) {
		if err := s.limiter.Wait(ctx); err != nil {
			return result, err
		}
		result.Calls++
		counts, err := s.SyncHistorical(ctx, ts, req.Bookmakers)
		if err != nil {
			result.Failed++
			metrics.HistoricalFailuresTotal.Inc()
			s.logger.WithError(err).WithField("timestamp", ts.Format(time.RFC3339)).Warn("historical timestamp failed, skipping")
			continue
		}
		result.add(counts)
	}

	s.logger.WithFields(logrus.Fields{
		"start":     start.Format(time.RFC3339),
		"end":       end.Format(time.RFC3339),
		"calls":     result.Calls,
		"failed":    result.Failed,
		"snapshots": result.Snapshots,
		"games":     result.Games,
		"spreads":   result.Spreads,
	}).Info("historical range complete")
	return result, nil
}

func (s *SyncService) rangeBounds(req RangeRequest) (time.Time, time.Time, error) {
	today := s.now().UTC()
	end := middayUTC(today)
	start := middayUTC(today.Add(-defaultRangeLen))

	var err error
	if req.StartDate != "" {
		if start, err = ParseDate(req.StartDate); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if req.EndDate != "" {
		if end, err = ParseDate(req.EndDate); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date %s is before start_date %s", end.Format(dateLayout), start.Format(dateLayout))
	}
	return start, end, nil
}

func (s *SyncService) save(ctx context.Context, mode string, payload *model.OddsPayload) (*repository.IngestCounts, error) {
	counts, err := s.repo.SavePayload(ctx, payload)
	if err != nil {
		metrics.PayloadsIngestedTotal.WithLabelValues(mode, "rolled_back").Inc()
		return nil, fmt.Errorf("store %s payload: %w", mode, err)
	}
	metrics.PayloadsIngestedTotal.WithLabelValues(mode, "committed").Inc()
	metrics.RowsIngestedTotal.WithLabelValues("games").Add(float64(counts.Games))
	metrics.RowsIngestedTotal.WithLabelValues("spreads").Add(float64(counts.Spreads))
	metrics.RowsIngestedTotal.WithLabelValues("moneylines").Add(float64(counts.Moneylines))
	metrics.RowsIngestedTotal.WithLabelValues("totals").Add(float64(counts.Totals))
	metrics.RowsIngestedTotal.WithLabelValues("api_snapshots").Add(float64(counts.Snapshots))
	return counts, nil
}

// ParseDate parses YYYY-MM-DD and anchors it at 12:00:00Z.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return middayUTC(d), nil
}

func middayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
}
