package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func season(t *testing.T, year int) Season {
	t.Helper()
	seasons, err := SelectSeasons(SeasonRequest{Season: year})
	require.NoError(t, err)
	return seasons[0]
}

func TestCalculateStrategy2024(t *testing.T) {
	st, err := CalculateStrategy(season(t, 2024), 24)
	require.NoError(t, err)
	assert.Equal(t, 211, st.TotalDays)
	assert.Equal(t, 212, st.TotalCalls)
	assert.Equal(t, 2120, st.EstimatedCredits)
	assert.Equal(t, 424, st.EstimatedMinutes)

	twice, err := CalculateStrategy(season(t, 2024), 12)
	require.NoError(t, err)
	assert.Equal(t, 423, twice.TotalCalls)
}

func TestSelectSeasons(t *testing.T) {
	got, err := SelectSeasons(SeasonRequest{StartYear: 2022, EndYear: 2023})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2022, got[0].Year)

	all, err := SelectSeasons(SeasonRequest{})
	require.NoError(t, err)
	assert.Len(t, all, len(NFLSeasons))

	_, err = SelectSeasons(SeasonRequest{Season: 1999})
	assert.ErrorIs(t, err, ErrUnknownSeason)
	_, err = SelectSeasons(SeasonRequest{StartYear: 2030})
	assert.ErrorIs(t, err, ErrUnknownSeason)
}

func newCollector(fetcher *fakeOdds) (*SeasonCollector, *int) {
	c := NewSeasonCollector(newSyncService(fetcher, &recordingRepo{}), quietLogger())
	pauses := 0
	c.sleep = func(ctx context.Context, d time.Duration) error {
		pauses++
		return nil
	}
	return c, &pauses
}

func TestSeasonCollectorDryRunMakesNoCalls(t *testing.T) {
	fetcher := &fakeOdds{}
	c, _ := newCollector(fetcher)

	report, err := c.Run(context.Background(), SeasonRequest{StartYear: 2023, EndYear: 2024, DryRun: true})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 213+212, report.Plan.TotalCalls)
	assert.Empty(t, report.Outcomes)
	assert.Zero(t, fetcher.callCount())
}

func TestSeasonCollectorRequiresConfirmation(t *testing.T) {
	fetcher := &fakeOdds{}
	c, _ := newCollector(fetcher)

	_, err := c.Run(context.Background(), SeasonRequest{Season: 2024})
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Zero(t, fetcher.callCount())
}

func TestSeasonCollectorContinuesAfterFailingSeason(t *testing.T) {
	fetcher := &fakeOdds{failAt: map[string]bool{}}
	for ts := time.Date(2023, 8, 1, 12, 0, 0, 0, time.UTC); ts.Year() < 2025; ts = ts.Add(720 * time.Hour) {
		if ts.Before(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
			fetcher.failAt[ts.Format(time.RFC3339)] = true
		}
	}
	c, pauses := newCollector(fetcher)

	report, err := c.Run(context.Background(), SeasonRequest{StartYear: 2023, EndYear: 2024, IntervalHours: 720})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)

	first, second := report.Outcomes[0].Result, report.Outcomes[1].Result
	assert.Equal(t, first.Calls, first.Failed)
	assert.Zero(t, first.Snapshots)
	assert.Zero(t, second.Failed)
	assert.Equal(t, second.Calls, second.Snapshots)
	assert.Equal(t, first.Calls+second.Calls, report.Totals.Calls)
	assert.Equal(t, 1, *pauses)
}
