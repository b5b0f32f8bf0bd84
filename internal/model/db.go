package model

import (
	"time"

	"gorm.io/datatypes"
)

type Sport struct {
	ID         uint64 `gorm:"column:sport_id;primaryKey;autoIncrement"`
	SportKey   string `gorm:"column:sport_key;type:varchar(64);uniqueIndex;not null"`
	SportTitle string `gorm:"column:sport_title;type:varchar(128);not null"`
}

// Team identity is the provider's name; a renamed franchise gets a new row.
type Team struct {
	ID        uint64    `gorm:"column:team_id;primaryKey;autoIncrement"`
	TeamName  string    `gorm:"column:team_name;type:varchar(128);not null;uniqueIndex:uq_team_sport"`
	SportID   uint64    `gorm:"column:sport_id;type:bigint;not null;uniqueIndex:uq_team_sport"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

type Bookmaker struct {
	ID             uint64    `gorm:"column:bookmaker_id;primaryKey;autoIncrement"`
	BookmakerKey   string    `gorm:"column:bookmaker_key;type:varchar(64);uniqueIndex;not null"`
	BookmakerTitle string    `gorm:"column:bookmaker_title;type:varchar(128);not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Game scores stay nil until the reconciler sees a final result.
type Game struct {
	GameID       string         `gorm:"column:game_id;primaryKey;type:varchar(64)"`
	SportID      uint64         `gorm:"column:sport_id;type:bigint;not null;index"`
	CommenceTime time.Time      `gorm:"column:commence_time;type:timestamp;not null;index"`
	HomeTeamID   uint64         `gorm:"column:home_team_id;type:bigint;not null"`
	AwayTeamID   uint64         `gorm:"column:away_team_id;type:bigint;not null"`
	HomeScore    *int           `gorm:"column:home_score;type:int"`
	AwayScore    *int           `gorm:"column:away_score;type:int"`
	Status       string         `gorm:"column:status;type:varchar(16);default:scheduled"`
	RawData      datatypes.JSON `gorm:"column:raw_data;type:jsonb"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

const (
	GameStatusScheduled = "scheduled"
	GameStatusCompleted = "completed"
)

type Spread struct {
	ID                uint64         `gorm:"column:spread_id;primaryKey;autoIncrement"`
	GameID            string         `gorm:"column:game_id;type:varchar(64);not null;uniqueIndex:uq_spread_snapshot"`
	BookmakerID       uint64         `gorm:"column:bookmaker_id;type:bigint;not null;uniqueIndex:uq_spread_snapshot"`
	HomeSpread        float64        `gorm:"column:home_spread;type:numeric(6,2);not null"`
	AwaySpread        float64        `gorm:"column:away_spread;type:numeric(6,2);not null"`
	HomePrice         float64        `gorm:"column:home_price;type:numeric(8,2);not null"`
	AwayPrice         float64        `gorm:"column:away_price;type:numeric(8,2);not null"`
	LastUpdate        time.Time      `gorm:"column:last_update;type:timestamp"`
	SnapshotTimestamp time.Time      `gorm:"column:snapshot_timestamp;type:timestamp;not null;uniqueIndex:uq_spread_snapshot"`
	RawOutcomes       datatypes.JSON `gorm:"column:raw_outcomes;type:jsonb"`
	IsLatest          bool           `gorm:"column:is_latest;type:boolean;default:false"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// Moneyline h2h market; DrawPrice only for three-way sports.
type Moneyline struct {
	ID                uint64         `gorm:"column:moneyline_id;primaryKey;autoIncrement"`
	GameID            string         `gorm:"column:game_id;type:varchar(64);not null;uniqueIndex:uq_moneyline_snapshot"`
	BookmakerID       uint64         `gorm:"column:bookmaker_id;type:bigint;not null;uniqueIndex:uq_moneyline_snapshot"`
	HomePrice         float64        `gorm:"column:home_price;type:numeric(8,2);not null"`
	AwayPrice         float64        `gorm:"column:away_price;type:numeric(8,2);not null"`
	DrawPrice         *float64       `gorm:"column:draw_price;type:numeric(8,2)"`
	LastUpdate        time.Time      `gorm:"column:last_update;type:timestamp"`
	SnapshotTimestamp time.Time      `gorm:"column:snapshot_timestamp;type:timestamp;not null;uniqueIndex:uq_moneyline_snapshot"`
	RawOutcomes       datatypes.JSON `gorm:"column:raw_outcomes;type:jsonb"`
	IsLatest          bool           `gorm:"column:is_latest;type:boolean;default:false"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
}

type Total struct {
	ID                uint64         `gorm:"column:total_id;primaryKey;autoIncrement"`
	GameID            string         `gorm:"column:game_id;type:varchar(64);not null;uniqueIndex:uq_total_snapshot"`
	BookmakerID       uint64         `gorm:"column:bookmaker_id;type:bigint;not null;uniqueIndex:uq_total_snapshot"`
	TotalLine         float64        `gorm:"column:total_line;type:numeric(6,2);not null"`
	OverPrice         float64        `gorm:"column:over_price;type:numeric(8,2);not null"`
	UnderPrice        float64        `gorm:"column:under_price;type:numeric(8,2);not null"`
	LastUpdate        time.Time      `gorm:"column:last_update;type:timestamp"`
	SnapshotTimestamp time.Time      `gorm:"column:snapshot_timestamp;type:timestamp;not null;uniqueIndex:uq_total_snapshot"`
	RawOutcomes       datatypes.JSON `gorm:"column:raw_outcomes;type:jsonb"`
	IsLatest          bool           `gorm:"column:is_latest;type:boolean;default:false"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// ApiSnapshot provenance of one fetch; previous/next mirror the provider cursor.
type ApiSnapshot struct {
	ID                uint64         `gorm:"column:snapshot_id;primaryKey;autoIncrement"`
	SportKey          string         `gorm:"column:sport_key;type:varchar(64);not null;uniqueIndex:uq_snapshot_sport_ts"`
	SnapshotTimestamp time.Time      `gorm:"column:snapshot_timestamp;type:timestamp;not null;uniqueIndex:uq_snapshot_sport_ts"`
	PreviousTimestamp *time.Time     `gorm:"column:previous_timestamp;type:timestamp"`
	NextTimestamp     *time.Time     `gorm:"column:next_timestamp;type:timestamp"`
	GamesCount        int            `gorm:"column:games_count;type:int;default:0"`
	RawResponse       datatypes.JSON `gorm:"column:raw_response;type:jsonb"`
	TotalOddsCount    int            `gorm:"column:total_odds_count;type:int;default:0"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// QueryHistory append-only log of dashboard questions.
type QueryHistory struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Prompt           string    `gorm:"column:prompt;type:text;not null"`
	SQLQuery         string    `gorm:"column:sql_query;type:text"`
	UserID           string    `gorm:"column:user_id;type:varchar(64)"`
	SportContext     string    `gorm:"column:sport_context;type:varchar(64)"`
	ExecutionSuccess bool      `gorm:"column:execution_success;type:boolean;default:false"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

func (Sport) TableName() string        { return "sports" }
func (Team) TableName() string         { return "teams" }
func (Bookmaker) TableName() string    { return "bookmakers" }
func (Game) TableName() string         { return "games" }
func (Spread) TableName() string       { return "spreads" }
func (Moneyline) TableName() string    { return "moneylines" }
func (Total) TableName() string        { return "totals" }
func (ApiSnapshot) TableName() string  { return "api_snapshots" }
func (QueryHistory) TableName() string { return "query_history" }

// AllModels in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Sport{},
		&Team{},
		&Bookmaker{},
		&Game{},
		&Spread{},
		&Moneyline{},
		&Total{},
		&ApiSnapshot{},
		&QueryHistory{},
	}
}
