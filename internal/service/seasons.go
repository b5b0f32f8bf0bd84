package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	creditsPerCall     = 10
	minutesPerCall     = 2
	ConfirmCallsAbove  = 100
	defaultSeasonPause = 10 * time.Second
)

// ErrConfirmationRequired the run exceeds the call budget that may start unattended.
var ErrConfirmationRequired = errors.New("run exceeds 100 historical calls and needs confirmation")

// ErrUnknownSeason the requested year is not in the season table.
var ErrUnknownSeason = errors.New("unknown season")

type Season struct {
	Year      int    `json:"year"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// NFLSeasons regular season plus playoffs, August through February.
var NFLSeasons = []Season{
	{Year: 2021, Name: "2021 NFL Season", StartDate: "2021-08-01", EndDate: "2022-02-28"},
	{Year: 2022, Name: "2022 NFL Season", StartDate: "2022-08-01", EndDate: "2023-02-28"},
	{Year: 2023, Name: "2023 NFL Season", StartDate: "2023-08-01", EndDate: "2024-02-29"},
	{Year: 2024, Name: "2024 NFL Season", StartDate: "2024-08-01", EndDate: "2025-02-28"},
	{Year: 2025, Name: "2025 NFL Season", StartDate: "2025-08-01", EndDate: "2026-02-28"},
}

// FetchStrategy call and credit estimate for one season.
type FetchStrategy struct {
	Season           Season `json:"season"`
	IntervalHours    int    `json:"interval_hours"`
	TotalCalls       int    `json:"total_calls"`
	TotalDays        int    `json:"total_days"`
	EstimatedCredits int    `json:"estimated_credits"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

// CalculateStrategy both dates are anchored at 12:00Z, so the end date is itself a call.
func CalculateStrategy(season Season, intervalHours int) (*FetchStrategy, error) {
	if intervalHours <= 0 {
		intervalHours = 24
	}
	start, err := ParseDate(season.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate(season.EndDate)
	if err != nil {
		return nil, err
	}
	hours := end.Sub(start).Hours()
	calls := int(hours/float64(intervalHours)) + 1
	return &FetchStrategy{
		Season:           season,
		IntervalHours:    intervalHours,
		TotalCalls:       calls,
		TotalDays:        int(hours / 24),
		EstimatedCredits: calls * creditsPerCall,
		EstimatedMinutes: calls * minutesPerCall,
	}, nil
}

// SeasonRequest selects seasons by year range, or one season when Season is set.
type SeasonRequest struct {
	StartYear     int      `json:"start_year"`
	EndYear       int      `json:"end_year"`
	Season        int      `json:"season"`
	IntervalHours int      `json:"interval_hours"`
	Bookmakers    []string `json:"bookmakers"`
	DryRun        bool     `json:"dry_run"`
	Confirm       bool     `json:"confirm"`
}

type SeasonPlan struct {
	Strategies   []*FetchStrategy `json:"strategies"`
	TotalCalls   int              `json:"total_calls"`
	TotalCredits int              `json:"total_credits"`
	TotalMinutes int              `json:"total_minutes"`
}

type SeasonOutcome struct {
	Season int          `json:"season"`
	Result *RangeResult `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

type SeasonReport struct {
	Plan     *SeasonPlan      `json:"plan"`
	DryRun   bool             `json:"dry_run"`
	Outcomes []*SeasonOutcome `json:"outcomes"`
	Totals   RangeResult      `json:"totals"`
}

// SeasonCollector backfills whole seasons through the historical range fetch.
type SeasonCollector struct {
	sync   *SyncService
	logger *logrus.Logger
	pause  time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewSeasonCollector(sync *SyncService, logger *logrus.Logger) *SeasonCollector {
	return &SeasonCollector{
		sync:   sync,
		logger: logger,
		pause:  defaultSeasonPause,
		sleep:  sleepContext,
	}
}

// Plan resolves the selection and estimates its cost without calling the provider.
func (c *SeasonCollector) Plan(req SeasonRequest) (*SeasonPlan, error) {
	seasons, err := SelectSeasons(req)
	if err != nil {
		return nil, err
	}
	plan := &SeasonPlan{}
	for _, s := range seasons {
		st, err := CalculateStrategy(s, req.IntervalHours)
		if err != nil {
			return nil, err
		}
		plan.Strategies = append(plan.Strategies, st)
		plan.TotalCalls += st.TotalCalls
		plan.TotalCredits += st.EstimatedCredits
		plan.TotalMinutes += st.EstimatedMinutes
	}
	return plan, nil
}

// Run fetches each selected season in order. A failed season is recorded and the next one still runs.
func (c *SeasonCollector) Run(ctx context.Context, req SeasonRequest) (*SeasonReport, error) {
	plan, err := c.Plan(req)
	if err != nil {
		return nil, err
	}
	report := &SeasonReport{Plan: plan, DryRun: req.DryRun, Outcomes: []*SeasonOutcome{}}
	c.logger.WithFields(logrus.Fields{
		"seasons": len(plan.Strategies),
		"calls":   plan.TotalCalls,
		"credits": plan.TotalCredits,
		"minutes": plan.TotalMinutes,
		"dry_run": req.DryRun,
	}).Info("season collection plan")
	if req.DryRun {
		return report, nil
	}
	if plan.TotalCalls > ConfirmCallsAbove && !req.Confirm {
		return report, fmt.Errorf("%w (%d calls, %d credits)", ErrConfirmationRequired, plan.TotalCalls, plan.TotalCredits)
	}

	for i, st := range plan.Strategies {
		outcome := &SeasonOutcome{Season: st.Season.Year}
		result, err := c.sync.SyncHistoricalRange(ctx, RangeRequest{
			StartDate:     st.Season.StartDate,
			EndDate:       st.Season.EndDate,
			IntervalHours: st.IntervalHours,
			Bookmakers:    req.Bookmakers,
		})
		if err != nil {
			outcome.Error = err.Error()
			c.logger.WithError(err).WithField("season", st.Season.Year).Warn("season collection failed, moving on")
		}
		if result != nil {
			outcome.Result = result
			report.Totals.Games += result.Games
			report.Totals.Spreads += result.Spreads
			report.Totals.Moneylines += result.Moneylines
			report.Totals.Totals += result.Totals
			report.Totals.Snapshots += result.Snapshots
			report.Totals.Calls += result.Calls
			report.Totals.Failed += result.Failed
		}
		report.Outcomes = append(report.Outcomes, outcome)

		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if i < len(plan.Strategies)-1 {
			if err := c.sleep(ctx, c.pause); err != nil {
				return report, err
			}
		}
	}

	c.logger.WithFields(logrus.Fields{
		"snapshots": report.Totals.Snapshots,
		"games":     report.Totals.Games,
		"spreads":   report.Totals.Spreads,
		"failed":    report.Totals.Failed,
	}).Info("season collection complete")
	return report, nil
}

// SelectSeasons Season wins over the year range; zero bounds are open.
func SelectSeasons(req SeasonRequest) ([]Season, error) {
	if req.Season != 0 {
		for _, s := range NFLSeasons {
			if s.Year == req.Season {
				return []Season{s}, nil
			}
		}
		return nil, fmt.Errorf("%w: %d", ErrUnknownSeason, req.Season)
	}
	var out []Season
	for _, s := range NFLSeasons {
		if req.StartYear != 0 && s.Year < req.StartYear {
			continue
		}
		if req.EndYear != 0 && s.Year > req.EndYear {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no season between %d and %d", ErrUnknownSeason, req.StartYear, req.EndYear)
	}
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
