package repository

import (
	"context"
	"fmt"
	"time"

	"SpreadSync/internal/model"

	"gorm.io/gorm"
)

// GameForMatching a stored game with its team names, as the score reconciler sees it.
type GameForMatching struct {
	GameID       string    `gorm:"column:game_id"`
	CommenceTime time.Time `gorm:"column:commence_time"`
	HomeTeam     string    `gorm:"column:home_team"`
	AwayTeam     string    `gorm:"column:away_team"`
	HomeScore    *int      `gorm:"column:home_score"`
	AwayScore    *int      `gorm:"column:away_score"`
	Status       string    `gorm:"column:status"`
}

// ScoreUpdate final score to write onto one game.
type ScoreUpdate struct {
	GameID    string `json:"game_id"`
	Matchup   string `json:"matchup"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
}

type GameRepository interface {
	ListGamesForMatching(ctx context.Context) ([]*GameForMatching, error)
	// ApplyScoreUpdates writes every update in one transaction and marks the games completed.
	ApplyScoreUpdates(ctx context.Context, updates []ScoreUpdate) (int, error)
	GetGame(ctx context.Context, gameID string) (*model.Game, error)
}

type gameRepository struct {
	db *gorm.DB
}

func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepository{db: db}
}

func (r *gameRepository) ListGamesForMatching(ctx context.Context) ([]*GameForMatching, error) {
	var games []*GameForMatching
	err := r.db.WithContext(ctx).
		Table("games g").
		Select("g.game_id, g.commence_time, ht.team_name AS home_team, awt.team_name AS away_team, g.home_score, g.away_score, g.status").
		Joins("JOIN teams ht ON g.home_team_id = ht.team_id").
		Joins("JOIN teams awt ON g.away_team_id = awt.team_id").
		Order("g.commence_time").
		Scan(&games).Error
	if err != nil {
		return nil, err
	}
	return games, nil
}

func (r *gameRepository) ApplyScoreUpdates(ctx context.Context, updates []ScoreUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	now := time.Now().UTC()
	for _, u := range updates {
		if err := tx.Model(&model.Game{}).
			Where("game_id = ?", u.GameID).
			Updates(map[string]interface{}{
				"home_score": u.HomeScore,
				"away_score": u.AwayScore,
				"status":     model.GameStatusCompleted,
				"updated_at": now,
			}).Error; err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("update scores for %s: %w", u.GameID, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return 0, fmt.Errorf("commit score updates: %w", err)
	}
	return len(updates), nil
}

func (r *gameRepository) GetGame(ctx context.Context, gameID string) (*model.Game, error) {
	var g model.Game
	if err := r.db.WithContext(ctx).Where("game_id = ?", gameID).Take(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}
