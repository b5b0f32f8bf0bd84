package repository

import (
	"context"
	"fmt"
	"time"

	"SpreadSync/internal/model"

	"gorm.io/gorm"
)

// SpreadView one spread row joined with its game, teams and bookmaker.
type SpreadView struct {
	GameID            string    `gorm:"column:game_id" json:"game_id"`
	CommenceTime      time.Time `gorm:"column:commence_time" json:"commence_time"`
	HomeTeam          string    `gorm:"column:home_team" json:"home_team"`
	AwayTeam          string    `gorm:"column:away_team" json:"away_team"`
	HomeScore         *int      `gorm:"column:home_score" json:"home_score"`
	AwayScore         *int      `gorm:"column:away_score" json:"away_score"`
	Status            string    `gorm:"column:status" json:"status"`
	BookmakerKey      string    `gorm:"column:bookmaker_key" json:"bookmaker_key"`
	BookmakerTitle    string    `gorm:"column:bookmaker_title" json:"bookmaker_title"`
	HomeSpread        float64   `gorm:"column:home_spread" json:"home_spread"`
	AwaySpread        float64   `gorm:"column:away_spread" json:"away_spread"`
	HomePrice         float64   `gorm:"column:home_price" json:"home_price"`
	AwayPrice         float64   `gorm:"column:away_price" json:"away_price"`
	SnapshotTimestamp time.Time `gorm:"column:snapshot_timestamp" json:"snapshot_timestamp"`
	IsLatest          bool      `gorm:"column:is_latest" json:"is_latest"`
}

// LatestSpreadFilter From/To bound commence_time (To exclusive).
type LatestSpreadFilter struct {
	From       *time.Time
	To         *time.Time
	ScoredOnly bool // only games with both scores, newest first
	Limit      int
}

// WeekGame per-game coverage inside a date window.
type WeekGame struct {
	GameID         string    `gorm:"column:game_id" json:"game_id"`
	CommenceTime   time.Time `gorm:"column:commence_time" json:"commence_time"`
	SportTitle     string    `gorm:"column:sport_title" json:"sport_title"`
	HomeTeam       string    `gorm:"column:home_team" json:"home_team"`
	AwayTeam       string    `gorm:"column:away_team" json:"away_team"`
	HomeScore      *int      `gorm:"column:home_score" json:"home_score"`
	AwayScore      *int      `gorm:"column:away_score" json:"away_score"`
	Status         string    `gorm:"column:status" json:"status"`
	BookmakerCount int       `gorm:"column:bookmaker_count" json:"bookmaker_count"`
	SpreadCount    int       `gorm:"column:spread_count" json:"spread_count"`
	SnapshotCount  int       `gorm:"column:snapshot_count" json:"snapshot_count"`
}

// WeekSummary one calendar week (Monday start) ranked by richness = spreads x distinct snapshots.
type WeekSummary struct {
	WeekStart    time.Time `gorm:"column:week_start" json:"week_start"`
	Games        int       `gorm:"column:games" json:"games"`
	TotalSpreads int       `gorm:"column:total_spreads" json:"total_spreads"`
	Bookmakers   int       `gorm:"column:bookmakers" json:"bookmakers"`
	Snapshots    int       `gorm:"column:snapshots" json:"snapshots"`
	FirstGame    time.Time `gorm:"column:first_game" json:"first_game"`
	LastGame     time.Time `gorm:"column:last_game" json:"last_game"`
	Richness     int64     `gorm:"column:richness_score" json:"richness_score"`
}

type ScoreStats struct {
	TotalGames      int64 `gorm:"column:total_games" json:"total_games"`
	GamesWithScores int64 `gorm:"column:games_with_scores" json:"games_with_scores"`
	CompletedGames  int64 `gorm:"column:completed_games" json:"completed_games"`
}

// ReportRepository read-only queries behind every report.
type ReportRepository interface {
	// LatestSpreads the row with the greatest snapshot_timestamp per (game, bookmaker); is_latest is not consulted.
	LatestSpreads(ctx context.Context, filter LatestSpreadFilter) ([]*SpreadView, error)
	SpreadTimeline(ctx context.Context, gameID string) ([]*SpreadView, error)
	WeekGames(ctx context.Context, from, to time.Time) ([]*WeekGame, error)
	// AvailableWeeks uses DATE_TRUNC and needs Postgres.
	AvailableWeeks(ctx context.Context, since time.Time, minGames, limit int) ([]*WeekSummary, error)
	ScoreStats(ctx context.Context) (*ScoreStats, error)
	// WindowVersion changes whenever a game kicking off in [from, to) is re-ingested, gains spreads or is scored.
	WindowVersion(ctx context.Context, from, to time.Time) (string, error)
	TableCounts(ctx context.Context) (map[string]int64, error)
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

const spreadViewColumns = `sp.game_id, g.commence_time, ht.team_name AS home_team, awt.team_name AS away_team,
	g.home_score, g.away_score, g.status, b.bookmaker_key, b.bookmaker_title,
	sp.home_spread, sp.away_spread, sp.home_price, sp.away_price, sp.snapshot_timestamp, sp.is_latest`

func (r *reportRepository) spreadView(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("spreads sp").
		Select(spreadViewColumns).
		Joins("JOIN games g ON g.game_id = sp.game_id").
		Joins("JOIN teams ht ON g.home_team_id = ht.team_id").
		Joins("JOIN teams awt ON g.away_team_id = awt.team_id").
		Joins("JOIN bookmakers b ON b.bookmaker_id = sp.bookmaker_id")
}

func (r *reportRepository) LatestSpreads(ctx context.Context, filter LatestSpreadFilter) ([]*SpreadView, error) {
	db := r.spreadView(ctx).
		Where(`sp.snapshot_timestamp = (SELECT MAX(s2.snapshot_timestamp) FROM spreads s2
			WHERE s2.game_id = sp.game_id AND s2.bookmaker_id = sp.bookmaker_id)`)
	if filter.From != nil {
		db = db.Where("g.commence_time >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		db = db.Where("g.commence_time < ?", filter.To.UTC())
	}
	if filter.ScoredOnly {
		db = db.Where("g.home_score IS NOT NULL AND g.away_score IS NOT NULL").
			Order("g.commence_time DESC").Order("b.bookmaker_title")
	} else {
		db = db.Order("g.commence_time").Order("sp.game_id").Order("b.bookmaker_title")
	}
	if filter.Limit > 0 {
		db = db.Limit(filter.Limit)
	}

	var rows []*SpreadView
	if err := db.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *reportRepository) SpreadTimeline(ctx context.Context, gameID string) ([]*SpreadView, error) {
	var rows []*SpreadView
	if err := r.spreadView(ctx).
		Where("sp.game_id = ?", gameID).
		Order("sp.snapshot_timestamp").Order("b.bookmaker_title").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *reportRepository) WeekGames(ctx context.Context, from, to time.Time) ([]*WeekGame, error) {
	var games []*WeekGame
	err := r.db.WithContext(ctx).
		Table("games g").
		Select(`g.game_id, g.commence_time, s.sport_title, ht.team_name AS home_team, awt.team_name AS away_team,
			g.home_score, g.away_score, g.status,
			COUNT(DISTINCT sp.bookmaker_id) AS bookmaker_count,
			COUNT(sp.spread_id) AS spread_count,
			COUNT(DISTINCT sp.snapshot_timestamp) AS snapshot_count`).
		Joins("JOIN sports s ON g.sport_id = s.sport_id").
		Joins("JOIN teams ht ON g.home_team_id = ht.team_id").
		Joins("JOIN teams awt ON g.away_team_id = awt.team_id").
		Joins("LEFT JOIN spreads sp ON g.game_id = sp.game_id").
		Where("g.commence_time >= ? AND g.commence_time < ?", from.UTC(), to.UTC()).
		Group("g.game_id, g.commence_time, s.sport_title, ht.team_name, awt.team_name, g.home_score, g.away_score, g.status").
		Order("g.commence_time").
		Scan(&games).Error
	if err != nil {
		return nil, err
	}
	return games, nil
}

func (r *reportRepository) AvailableWeeks(ctx context.Context, since time.Time, minGames, limit int) ([]*WeekSummary, error) {
	if minGames <= 0 {
		minGames = 5
	}
	if limit <= 0 {
		limit = 10
	}
	var weeks []*WeekSummary
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			DATE_TRUNC('week', g.commence_time) AS week_start,
			COUNT(DISTINCT g.game_id) AS games,
			COUNT(s.spread_id) AS total_spreads,
			COUNT(DISTINCT s.bookmaker_id) AS bookmakers,
			COUNT(DISTINCT s.snapshot_timestamp) AS snapshots,
			MIN(g.commence_time) AS first_game,
			MAX(g.commence_time) AS last_game,
			(COUNT(s.spread_id) * COUNT(DISTINCT s.snapshot_timestamp)) AS richness_score
		FROM games g
		LEFT JOIN spreads s ON g.game_id = s.game_id
		WHERE g.commence_time >= ?
		GROUP BY DATE_TRUNC('week', g.commence_time)
		HAVING COUNT(DISTINCT g.game_id) >= ?
		ORDER BY richness_score DESC
		LIMIT ?`, since.UTC(), minGames, limit).
		Scan(&weeks).Error
	if err != nil {
		return nil, err
	}
	return weeks, nil
}

func (r *reportRepository) ScoreStats(ctx context.Context) (*ScoreStats, error) {
	var stats ScoreStats
	err := r.db.WithContext(ctx).
		Model(&model.Game{}).
		Select(`COUNT(*) AS total_games,
			COUNT(CASE WHEN home_score IS NOT NULL THEN 1 END) AS games_with_scores,
			COUNT(CASE WHEN status = ? THEN 1 END) AS completed_games`, model.GameStatusCompleted).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *reportRepository) WindowVersion(ctx context.Context, from, to time.Time) (string, error) {
	var v struct {
		Games   int64  `gorm:"column:games"`
		Scored  int64  `gorm:"column:scored"`
		Spreads int64  `gorm:"column:spreads"`
		Updated string `gorm:"column:updated"`
	}
	from, to = from.UTC(), to.UTC()
	err := r.db.WithContext(ctx).
		Table("games g").
		Select(`COUNT(*) AS games,
			COUNT(CASE WHEN g.home_score IS NOT NULL THEN 1 END) AS scored,
			(SELECT COUNT(*) FROM spreads sp JOIN games g2 ON g2.game_id = sp.game_id
				WHERE g2.commence_time >= ? AND g2.commence_time < ?) AS spreads,
			COALESCE(CAST(MAX(g.updated_at) AS TEXT), '') AS updated`, from, to).
		Where("g.commence_time >= ? AND g.commence_time < ?", from, to).
		Scan(&v).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%d.%d.%s", v.Games, v.Scored, v.Spreads, v.Updated), nil
}

// TableCounts row count for every table the status page lists.
func (r *reportRepository) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(StatusTables))
	for _, table := range StatusTables {
		var n int64
		if err := r.db.WithContext(ctx).Table(table).Count(&n).Error; err != nil {
			return nil, err
		}
		counts[table] = n
	}
	return counts, nil
}

var StatusTables = []string{
	"sports", "teams", "games", "bookmakers", "moneylines", "spreads", "totals", "api_snapshots", "query_history",
}
