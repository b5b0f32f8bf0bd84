package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"SpreadSync/internal/config"
	"SpreadSync/internal/interfaces"
	"SpreadSync/internal/model"
	"SpreadSync/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newQueryService(db *gorm.DB, llm interfaces.LanguageModel, c *memCache) *QueryService {
	return NewQueryService(llm, repository.NewQueryRepository(db), c, config.ReportsConfig{MaxRows: 50}, quietLogger())
}

func testQueryContext() QueryContext {
	return QueryContext{RequestID: "req-1", UserID: "analyst", SportContext: nfl, StartedAt: time.Now()}
}

func TestStripSQLFences(t *testing.T) {
	cases := map[string]string{
		"```sql\nSELECT 1\n```": "SELECT 1",
		"```\nSELECT 2\n```":    "SELECT 2",
		"  SELECT 3  ":          "SELECT 3",
		"```sql SELECT 4```":    "SELECT 4",
		"SELECT 5\n```":         "SELECT 5",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripSQLFences(in), in)
	}
}

func TestValidateSelect(t *testing.T) {
	ok := []string{
		"SELECT 1",
		"select * from games;",
		"WITH latest AS (SELECT 1) SELECT * FROM latest",
		"\n  SELECT 1 ;  ",
	}
	for _, stmt := range ok {
		_, err := ValidateSelect(stmt)
		assert.NoError(t, err, stmt)
	}

	bad := []string{
		"",
		";",
		"DELETE FROM games",
		"DROP TABLE spreads",
		"SELECT 1; DELETE FROM games",
		"UPDATE games SET home_score = 1",
	}
	for _, stmt := range bad {
		_, err := ValidateSelect(stmt)
		assert.ErrorIs(t, err, ErrUnsafeSQL, stmt)
	}
}

func TestGenerateSQLStripsFencesAndCaches(t *testing.T) {
	llm := &fakeLLM{replies: []string{"```sql\nSELECT COUNT(*) AS games FROM games\n```"}}
	c := newMemCache()
	svc := newQueryService(newTestDB(t), llm, c)
	ctx := context.Background()

	sql, err := svc.GenerateSQL(ctx, testQueryContext(), "How many games are stored?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS games FROM games", sql)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "User Request: How many games are stored?")
	assert.Contains(t, llm.prompts[0], "Return ONLY the SQL query")

	again, err := svc.GenerateSQL(ctx, testQueryContext(), "How many games are stored?")
	require.NoError(t, err)
	assert.Equal(t, sql, again)
	assert.Len(t, llm.prompts, 1, "second answer comes from the cache")
}

func TestGenerateSQLErrors(t *testing.T) {
	db := newTestDB(t)

	_, err := newQueryService(db, nil, newMemCache()).GenerateSQL(context.Background(), testQueryContext(), "spreads")
	assert.ErrorIs(t, err, ErrLanguageModelDisabled)

	_, err = newQueryService(db, &fakeLLM{}, newMemCache()).GenerateSQL(context.Background(), testQueryContext(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	failing := &fakeLLM{err: errors.New("upstream 529")}
	_, err = newQueryService(db, failing, newMemCache()).GenerateSQL(context.Background(), testQueryContext(), "spreads")
	assert.ErrorContains(t, err, "upstream 529")
}

func TestExecuteRecordsHistory(t *testing.T) {
	db := newTestDB(t)
	seedMovingGame(t, db)
	svc := newQueryService(db, nil, newMemCache())
	ctx := context.Background()

	result, err := svc.Execute(ctx, testQueryContext(), "How many spreads?", "SELECT COUNT(*) AS spreads FROM spreads;")
	require.NoError(t, err)
	assert.Equal(t, []string{"spreads"}, result.Columns)
	require.Len(t, result.Rows, 1)
	assert.EqualValues(t, 4, result.Rows[0][0])

	_, err = svc.Execute(ctx, testQueryContext(), "drop it", "DROP TABLE spreads")
	assert.ErrorIs(t, err, ErrUnsafeSQL)
	var n int64
	require.NoError(t, db.Model(&model.Spread{}).Count(&n).Error)
	assert.EqualValues(t, 4, n)

	history, err := svc.RecentQueries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "drop it", history[0].Prompt)
	assert.False(t, history[0].ExecutionSuccess)
	assert.Equal(t, "How many spreads?", history[1].Prompt)
	assert.True(t, history[1].ExecutionSuccess)
	assert.Equal(t, "analyst", history[1].UserID)
}

func TestExecuteReportsQueryErrors(t *testing.T) {
	svc := newQueryService(newTestDB(t), nil, newMemCache())
	_, err := svc.Execute(context.Background(), testQueryContext(), "bad", "SELECT nope FROM missing_table")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsafeSQL)
}

func sampleResult() *repository.QueryResult {
	return &repository.QueryResult{
		Columns: []string{"team", "home_spread"},
		Rows: [][]interface{}{
			{"Kansas City Chiefs", -3.0},
			{"Philadelphia Eagles", -1.5},
		},
	}
}

func TestInsights(t *testing.T) {
	llm := &fakeLLM{replies: []string{"  - Chiefs are favored\n"}}
	svc := newQueryService(newTestDB(t), llm, newMemCache())

	text, err := svc.Insights(context.Background(), "spreads", &repository.QueryResult{Columns: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, NoInsights, text)
	assert.Empty(t, llm.prompts)

	text, err = svc.Insights(context.Background(), "spreads", sampleResult())
	require.NoError(t, err)
	assert.Equal(t, "- Chiefs are favored", text)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Total Rows: 2")
	assert.Contains(t, llm.prompts[0], "Kansas City Chiefs")
}

func TestSuggestChartFromModel(t *testing.T) {
	llm := &fakeLLM{replies: []string{"```json\n{\"chart_type\": \"Bar\", \"x\": \"team\", \"y\": \"home_spread\", \"title\": \"Spreads\"}\n```"}}
	svc := newQueryService(newTestDB(t), llm, newMemCache())

	cfg := svc.SuggestChart(context.Background(), "spreads", sampleResult())
	assert.Equal(t, &ChartConfig{ChartType: ChartBar, X: "team", Y: "home_spread", Title: "Spreads", Source: "model"}, cfg)
}

func TestSuggestChartFallsBackOnUnknownColumn(t *testing.T) {
	llm := &fakeLLM{replies: []string{`{"chart_type": "line", "x": "week", "y": "home_spread"}`}}
	svc := newQueryService(newTestDB(t), llm, newMemCache())

	cfg := svc.SuggestChart(context.Background(), "spreads", sampleResult())
	assert.Equal(t, "fallback", cfg.Source)
	assert.Equal(t, ChartBar, cfg.ChartType)
	assert.Equal(t, "team", cfg.X)
	assert.Equal(t, "home_spread", cfg.Y)
}

func TestFallbackChart(t *testing.T) {
	timed := &repository.QueryResult{
		Columns: []string{"snapshot_timestamp", "home_spread"},
		Rows:    [][]interface{}{{time.Date(2024, 9, 5, 12, 0, 0, 0, time.UTC), -3.0}},
	}
	assert.Equal(t, ChartLine, FallbackChart(timed).ChartType)

	textual := &repository.QueryResult{
		Columns: []string{"home_team", "away_team"},
		Rows:    [][]interface{}{{"Kansas City Chiefs", "Baltimore Ravens"}},
	}
	assert.Equal(t, ChartTable, FallbackChart(textual).ChartType)

	stringTimes := &repository.QueryResult{
		Columns: []string{"commence_time", "spreads"},
		Rows:    [][]interface{}{{"2024-09-08T17:00:00Z", int64(4)}},
	}
	cfg := FallbackChart(stringTimes)
	assert.Equal(t, ChartLine, cfg.ChartType)
	assert.Equal(t, "commence_time", cfg.X)
}

func TestFormatForDisplay(t *testing.T) {
	in := &repository.QueryResult{
		Columns: []string{"commence_time", "home_spread", "home_price", "home_score", "team"},
		Rows: [][]interface{}{
			{time.Date(2024, 9, 8, 17, 0, 0, 0, time.UTC), -3.0, 110.0, 24.0, "Kansas City Chiefs"},
			{"2024-09-09T00:15:00Z", "2.5", nil, int64(17), "Baltimore Ravens"},
		},
	}
	out := FormatForDisplay(in)
	assert.Equal(t, []interface{}{"09/08 05:00 PM", "-3.0", "+110.0", "24", "Kansas City Chiefs"}, out.Rows[0])
	assert.Equal(t, []interface{}{"09/09 12:15 AM", "+2.5", "", int64(17), "Baltimore Ravens"}, out.Rows[1])
	assert.Equal(t, -3.0, in.Rows[0][1], "input untouched")
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, sampleResult()))
	assert.Equal(t, "team,home_spread\nKansas City Chiefs,-3\nPhiladelphia Eagles,-1.5\n", buf.String())

	assert.Equal(t, "nfl_report_20240908_170509.csv", CSVFileName(time.Date(2024, 9, 8, 17, 5, 9, 0, time.UTC)))
}

func TestSampleQueries(t *testing.T) {
	samples := SampleQueries()
	require.Len(t, samples, 8)
	assert.Equal(t, "Latest Spreads for This Week", samples[0].Title)
	samples[0].Title = "changed"
	assert.Equal(t, "Latest Spreads for This Week", SampleQueries()[0].Title)
}
