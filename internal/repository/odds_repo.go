package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"SpreadSync/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IngestCounts rows written for one payload.
type IngestCounts struct {
	Games      int `json:"games"`
	Spreads    int `json:"spreads"`
	Moneylines int `json:"moneylines"`
	Totals     int `json:"totals"`
	Snapshots  int `json:"snapshots"`
}

func (c *IngestCounts) Add(o IngestCounts) {
	c.Games += o.Games
	c.Spreads += o.Spreads
	c.Moneylines += o.Moneylines
	c.Totals += o.Totals
	c.Snapshots += o.Snapshots
}

type OddsRepository interface {
	// SavePayload stores one fetched payload in a single transaction; any game error rolls back everything.
	SavePayload(ctx context.Context, payload *model.OddsPayload) (*IngestCounts, error)
}

type oddsRepository struct {
	db       *gorm.DB
	entities EntityResolver
}

func NewOddsRepository(db *gorm.DB) OddsRepository {
	return &oddsRepository{db: db, entities: NewEntityResolver(db)}
}

func (r *oddsRepository) SavePayload(ctx context.Context, payload *model.OddsPayload) (counts *IngestCounts, err error) {
	if payload == nil {
		return nil, errors.New("nil payload")
	}
	snapshotTime := payload.SnapshotTime.UTC()

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	entities := r.entities.WithTx(tx)
	sportID, err := entities.SportID(ctx, payload.SportKey)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	counts = &IngestCounts{}
	var snapshotID uint64
	if payload.Snapshot != nil {
		if snapshotID, err = upsertSnapshot(tx, payload.SportKey, snapshotTime, payload.Snapshot); err != nil {
			tx.Rollback()
			return nil, err
		}
		counts.Snapshots = 1
	}

	for i := range payload.Games {
		game := &payload.Games[i]
		if err := saveGame(ctx, tx, entities, sportID, snapshotTime, payload.Live, game, counts); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("game %s (%s @ %s): %w", game.ID, game.AwayTeam, game.HomeTeam, err)
		}
	}

	if snapshotID != 0 {
		if err := tx.Model(&model.ApiSnapshot{}).
			Where("snapshot_id = ?", snapshotID).
			Update("total_odds_count", counts.Spreads).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("update total_odds_count: %w", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("commit payload: %w", err)
	}
	return counts, nil
}

func upsertSnapshot(tx *gorm.DB, sportKey string, ts time.Time, h *model.HistoricalOdds) (uint64, error) {
	raw := h.Raw
	if len(raw) == 0 {
		var err error
		if raw, err = json.Marshal(h); err != nil {
			return 0, fmt.Errorf("encode snapshot: %w", err)
		}
	}
	snap := &model.ApiSnapshot{
		SportKey:          sportKey,
		SnapshotTimestamp: ts,
		PreviousTimestamp: utcPtr(h.PreviousTimestamp),
		NextTimestamp:     utcPtr(h.NextTimestamp),
		GamesCount:        len(h.Data),
		RawResponse:       datatypes.JSON(raw),
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sport_key"}, {Name: "snapshot_timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{"previous_timestamp", "next_timestamp", "games_count", "raw_response"}),
	}).Create(snap).Error; err != nil {
		return 0, fmt.Errorf("upsert api snapshot: %w", err)
	}

	var stored model.ApiSnapshot
	if err := tx.Select("snapshot_id").
		Where("sport_key = ? AND snapshot_timestamp = ?", sportKey, ts).
		Take(&stored).Error; err != nil {
		return 0, fmt.Errorf("lookup api snapshot: %w", err)
	}
	return stored.ID, nil
}

func saveGame(ctx context.Context, tx *gorm.DB, entities EntityResolver, sportID uint64, ts time.Time, live bool, g *model.OddsGame, counts *IngestCounts) error {
	if g.ID == "" {
		return errors.New("game without id")
	}
	homeID, err := entities.ResolveTeam(ctx, g.HomeTeam, sportID)
	if err != nil {
		return err
	}
	awayID, err := entities.ResolveTeam(ctx, g.AwayTeam, sportID)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode game: %w", err)
	}
	game := &model.Game{
		GameID:       g.ID,
		SportID:      sportID,
		CommenceTime: g.CommenceTime.UTC(),
		HomeTeamID:   homeID,
		AwayTeamID:   awayID,
		Status:       model.GameStatusScheduled,
		RawData:      datatypes.JSON(raw),
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"commence_time", "raw_data", "updated_at"}),
	}).Create(game).Error; err != nil {
		return fmt.Errorf("upsert game: %w", err)
	}
	counts.Games++

	for i := range g.Bookmakers {
		book := &g.Bookmakers[i]
		bookmakerID, err := entities.ResolveBookmaker(ctx, book.Key, book.Title)
		if err != nil {
			return err
		}
		if err := saveQuotes(tx, g, book, bookmakerID, ts, live, counts); err != nil {
			return fmt.Errorf("bookmaker %s: %w", book.Key, err)
		}
	}
	return nil
}

func saveQuotes(tx *gorm.DB, g *model.OddsGame, book *model.OddsBookmaker, bookmakerID uint64, ts time.Time, live bool, counts *IngestCounts) error {
	lastUpdate := book.LastUpdate.UTC()

	if m := book.Market(model.MarketSpreads); m != nil {
		q, ok, err := m.SpreadQuote(g.HomeTeam, g.AwayTeam)
		if err != nil {
			return err
		}
		if ok {
			row := &model.Spread{
				GameID:            g.ID,
				BookmakerID:       bookmakerID,
				HomeSpread:        q.HomeSpread,
				AwaySpread:        q.AwaySpread,
				HomePrice:         q.HomePrice,
				AwayPrice:         q.AwayPrice,
				LastUpdate:        lastUpdate,
				SnapshotTimestamp: ts,
				RawOutcomes:       outcomesJSON(m),
				IsLatest:          live,
			}
			if err := upsertQuote(tx, &model.Spread{}, row, g.ID, bookmakerID, ts, live,
				"home_spread", "away_spread", "home_price", "away_price"); err != nil {
				return fmt.Errorf("spread: %w", err)
			}
			counts.Spreads++
		}
	}

	if m := book.Market(model.MarketH2H); m != nil {
		if q, ok := m.MoneylineQuote(g.HomeTeam, g.AwayTeam); ok {
			row := &model.Moneyline{
				GameID:            g.ID,
				BookmakerID:       bookmakerID,
				HomePrice:         q.HomePrice,
				AwayPrice:         q.AwayPrice,
				DrawPrice:         q.DrawPrice,
				LastUpdate:        lastUpdate,
				SnapshotTimestamp: ts,
				RawOutcomes:       outcomesJSON(m),
				IsLatest:          live,
			}
			if err := upsertQuote(tx, &model.Moneyline{}, row, g.ID, bookmakerID, ts, live,
				"home_price", "away_price", "draw_price"); err != nil {
				return fmt.Errorf("moneyline: %w", err)
			}
			counts.Moneylines++
		}
	}

	if m := book.Market(model.MarketTotals); m != nil {
		q, ok, err := m.TotalQuote()
		if err != nil {
			return err
		}
		if ok {
			row := &model.Total{
				GameID:            g.ID,
				BookmakerID:       bookmakerID,
				TotalLine:         q.Line,
				OverPrice:         q.OverPrice,
				UnderPrice:        q.UnderPrice,
				LastUpdate:        lastUpdate,
				SnapshotTimestamp: ts,
				RawOutcomes:       outcomesJSON(m),
				IsLatest:          live,
			}
			if err := upsertQuote(tx, &model.Total{}, row, g.ID, bookmakerID, ts, live,
				"total_line", "over_price", "under_price"); err != nil {
				return fmt.Errorf("total: %w", err)
			}
			counts.Totals++
		}
	}
	return nil
}

// upsertQuote writes one row keyed on (game_id, bookmaker_id, snapshot_timestamp).
// A live row first demotes every other row of the same game and bookmaker, so at most one stays is_latest.
func upsertQuote(tx *gorm.DB, table interface{}, row interface{}, gameID string, bookmakerID uint64, ts time.Time, live bool, valueColumns ...string) error {
	if live {
		if err := tx.Model(table).
			Where("game_id = ? AND bookmaker_id = ? AND snapshot_timestamp <> ? AND is_latest = ?", gameID, bookmakerID, ts, true).
			Update("is_latest", false).Error; err != nil {
			return fmt.Errorf("clear is_latest: %w", err)
		}
	}
	updates := append(valueColumns, "last_update", "raw_outcomes", "is_latest")
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "bookmaker_id"}, {Name: "snapshot_timestamp"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(row).Error
}

func outcomesJSON(m *model.OddsMarket) datatypes.JSON {
	raw, err := json.Marshal(m.Outcomes)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
