package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"SpreadSync/internal/model"
	"SpreadSync/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const nfl = "americanfootball_nfl"

var (
	kickoff       = time.Date(2024, 9, 8, 17, 0, 0, 0, time.UTC)
	earlySnapshot = time.Date(2024, 9, 4, 12, 0, 0, 0, time.UTC)
	lateSnapshot  = time.Date(2024, 9, 5, 12, 0, 0, 0, time.UTC)
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	require.NoError(t, repository.NewEntityResolver(db).SeedSports(context.Background(), []model.Sport{{SportKey: nfl, SportTitle: "NFL"}}))
	return db
}

func ptr[T any](v T) *T { return &v }

func spreadBook(key, title, home, away string, homePoint, homePrice, awayPrice float64) model.OddsBookmaker {
	return model.OddsBookmaker{
		Key:        key,
		Title:      title,
		LastUpdate: earlySnapshot,
		Markets: []model.OddsMarket{{
			Key: model.MarketSpreads,
			Outcomes: []model.OddsOutcome{
				{Name: home, Price: homePrice, Point: ptr(homePoint)},
				{Name: away, Price: awayPrice, Point: ptr(-homePoint)},
			},
		}},
	}
}

func oddsGame(id, home, away string, commence time.Time, books ...model.OddsBookmaker) model.OddsGame {
	return model.OddsGame{
		ID:           id,
		SportKey:     nfl,
		CommenceTime: commence,
		HomeTeam:     home,
		AwayTeam:     away,
		Bookmakers:   books,
	}
}

// seedMovingGame stores Ravens @ Chiefs twice: DraftKings -3 -> -2.5, FanDuel -3 -> -3.5.
func seedMovingGame(t *testing.T, db *gorm.DB) {
	t.Helper()
	repo := repository.NewOddsRepository(db)
	lines := []struct {
		ts     time.Time
		dk, fd float64
	}{
		{earlySnapshot, -3, -3},
		{lateSnapshot, -2.5, -3.5},
	}
	for _, l := range lines {
		g := oddsGame("g1", "Kansas City Chiefs", "Baltimore Ravens", kickoff,
			spreadBook("draftkings", "DraftKings", "Kansas City Chiefs", "Baltimore Ravens", l.dk, -110, -110),
			spreadBook("fanduel", "FanDuel", "Kansas City Chiefs", "Baltimore Ravens", l.fd, -105, -115),
		)
		_, err := repo.SavePayload(context.Background(), &model.OddsPayload{
			SportKey:     nfl,
			SnapshotTime: l.ts,
			Games:        []model.OddsGame{g},
			Snapshot:     &model.HistoricalOdds{Timestamp: l.ts, Data: []model.OddsGame{g}},
		})
		require.NoError(t, err)
	}
}

// fakeOdds serves canned games; historical calls at failAt timestamps return an error.
type fakeOdds struct {
	mu      sync.Mutex
	games   []model.OddsGame
	failAt  map[string]bool // RFC3339
	failAll bool
	echo    func(time.Time) time.Time
	calls   []time.Time
}

func (f *fakeOdds) FetchLiveOdds(ctx context.Context, req model.OddsRequest) ([]model.OddsGame, error) {
	return f.games, nil
}

func (f *fakeOdds) FetchHistoricalOdds(ctx context.Context, req model.OddsRequest) (*model.HistoricalOdds, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Date)
	f.mu.Unlock()
	if f.failAll || f.failAt[req.Date.UTC().Format(time.RFC3339)] {
		return nil, errors.New("provider returned 500")
	}
	ts := req.Date
	if f.echo != nil {
		ts = f.echo(ts)
	}
	return &model.HistoricalOdds{Timestamp: ts, Data: f.games}, nil
}

func (f *fakeOdds) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recordingRepo counts one game and one snapshot per payload.
type recordingRepo struct {
	mu       sync.Mutex
	payloads []*model.OddsPayload
}

func (r *recordingRepo) SavePayload(ctx context.Context, p *model.OddsPayload) (*repository.IngestCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	return &repository.IngestCounts{Games: len(p.Games), Snapshots: 1}, nil
}

type fakeScores struct {
	records []model.ScoreRecord
	err     error
}

func (f *fakeScores) FetchScores(ctx context.Context, season int) ([]model.ScoreRecord, error) {
	return f.records, f.err
}

// fakeLLM answers every call with the next queued reply, repeating the last one.
type fakeLLM struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeLLM) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

type memCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemCache() *memCache { return &memCache{m: map[string]string{}} }

func (c *memCache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *memCache) Set(ctx context.Context, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}
