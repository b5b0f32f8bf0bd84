package app

import (
	"context"
	"fmt"

	"SpreadSync/internal/adapter/claude"
	"SpreadSync/internal/adapter/nflverse"
	"SpreadSync/internal/adapter/oddsapi"
	"SpreadSync/internal/cache"
	"SpreadSync/internal/config"
	"SpreadSync/internal/database"
	"SpreadSync/internal/interfaces"
	"SpreadSync/internal/model"
	"SpreadSync/internal/repository"
	"SpreadSync/internal/service"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App the wired service graph shared by the HTTP server and the CLI.
type App struct {
	Config   *config.Config
	Logger   *logrus.Logger
	DB       *gorm.DB
	Sync     *service.SyncService
	Seasons  *service.SeasonCollector
	Scores   *service.ScoreSyncService
	Reports  *service.ReportService
	Queries  *service.QueryService
	closeFns []func() error
}

// New opens the database, migrates, seeds configured sports and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	db, err := database.Open(cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	a, err := Build(ctx, cfg, db, logger)
	if err != nil {
		return nil, err
	}
	a.closeFns = append(a.closeFns, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	return a, nil
}

// Build wires services over an already-migrated database.
func Build(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *logrus.Logger) (*App, error) {
	sports := make([]model.Sport, 0, len(cfg.Sports))
	for _, s := range cfg.Sports {
		sports = append(sports, model.Sport{SportKey: s.Key, SportTitle: s.Title})
	}
	if err := repository.NewEntityResolver(db).SeedSports(ctx, sports); err != nil {
		return nil, fmt.Errorf("seed sports: %w", err)
	}

	c, closeCache := cache.New(cfg.Redis, logger)

	oddsRepo := repository.NewOddsRepository(db)
	gameRepo := repository.NewGameRepository(db)
	syncSvc := service.NewSyncService(oddsapi.NewClient(&cfg.OddsAPI, logger), oddsRepo, &cfg.OddsAPI, logger)

	var llm interfaces.LanguageModel
	if client := claude.NewClient(&cfg.Claude, logger); client.Enabled() {
		llm = client
	} else {
		logger.Warn("claude api key not set, natural-language queries disabled")
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Sync:     syncSvc,
		Seasons:  service.NewSeasonCollector(syncSvc, logger),
		Scores:   service.NewScoreSyncService(nflverse.NewClient(&cfg.Scores, logger), gameRepo, logger),
		Reports:  service.NewReportService(repository.NewReportRepository(db), gameRepo, c, cfg.Reports, logger),
		Queries:  service.NewQueryService(llm, repository.NewQueryRepository(db), c, cfg.Reports, logger),
		closeFns: []func() error{closeCache},
	}, nil
}

// Close releases the cache client and the connection pool.
func (a *App) Close() {
	for _, fn := range a.closeFns {
		if err := fn(); err != nil {
			a.Logger.WithError(err).Warn("close failed")
		}
	}
}
