package repository

import (
	"context"
	"errors"
	"fmt"

	"SpreadSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSportNotFound the sport row an ingestion refers to was never seeded.
var ErrSportNotFound = errors.New("sport not found")

// EntityResolver get-or-create for reference rows. Bind it to the caller's
// transaction with WithTx so a new team commits or rolls back with the rows that use it.
type EntityResolver interface {
	WithTx(tx *gorm.DB) EntityResolver
	SportID(ctx context.Context, sportKey string) (uint64, error)
	ResolveTeam(ctx context.Context, name string, sportID uint64) (uint64, error)
	ResolveBookmaker(ctx context.Context, key, title string) (uint64, error)
	SeedSports(ctx context.Context, sports []model.Sport) error
}

type entityResolver struct {
	db *gorm.DB
}

func NewEntityResolver(db *gorm.DB) EntityResolver {
	return &entityResolver{db: db}
}

func (r *entityResolver) WithTx(tx *gorm.DB) EntityResolver {
	return &entityResolver{db: tx}
}

func (r *entityResolver) SportID(ctx context.Context, sportKey string) (uint64, error) {
	var sport model.Sport
	err := r.db.WithContext(ctx).Where("sport_key = ?", sportKey).Take(&sport).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: %s", ErrSportNotFound, sportKey)
	}
	if err != nil {
		return 0, err
	}
	return sport.ID, nil
}

// ResolveTeam inserts if absent, then reads the id back by natural key. Safe against a concurrent insert of the same name.
func (r *entityResolver) ResolveTeam(ctx context.Context, name string, sportID uint64) (uint64, error) {
	if name == "" {
		return 0, errors.New("empty team name")
	}
	db := r.db.WithContext(ctx)
	team := &model.Team{TeamName: name, SportID: sportID}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "team_name"}, {Name: "sport_id"}},
		DoNothing: true,
	}).Create(team).Error; err != nil {
		return 0, fmt.Errorf("insert team %s: %w", name, err)
	}

	var found model.Team
	if err := db.Where("team_name = ? AND sport_id = ?", name, sportID).Take(&found).Error; err != nil {
		return 0, fmt.Errorf("lookup team %s: %w", name, err)
	}
	return found.ID, nil
}

func (r *entityResolver) ResolveBookmaker(ctx context.Context, key, title string) (uint64, error) {
	if key == "" {
		return 0, errors.New("empty bookmaker key")
	}
	if title == "" {
		title = key
	}
	db := r.db.WithContext(ctx)
	bm := &model.Bookmaker{BookmakerKey: key, BookmakerTitle: title}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bookmaker_key"}},
		DoNothing: true,
	}).Create(bm).Error; err != nil {
		return 0, fmt.Errorf("insert bookmaker %s: %w", key, err)
	}

	var found model.Bookmaker
	if err := db.Where("bookmaker_key = ?", key).Take(&found).Error; err != nil {
		return 0, fmt.Errorf("lookup bookmaker %s: %w", key, err)
	}
	return found.ID, nil
}

// SeedSports idempotent; an existing key only gets its title refreshed.
func (r *entityResolver) SeedSports(ctx context.Context, sports []model.Sport) error {
	for i := range sports {
		if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sport_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"sport_title"}),
		}).Create(&sports[i]).Error; err != nil {
			return fmt.Errorf("seed sport %s: %w", sports[i].SportKey, err)
		}
	}
	return nil
}
