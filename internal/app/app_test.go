package app

import (
	"context"
	"io"
	"testing"
	"time"

	"SpreadSync/internal/config"
	"SpreadSync/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestBuildSeedsSportsAndWiresServices(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

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

	cfg := &config.Config{
		Sports: []config.SportConfig{
			{Key: "americanfootball_nfl", Title: "NFL"},
			{Key: "basketball_nba", Title: "NBA"},
		},
		Reports: config.ReportsConfig{MaxRows: 10},
	}
	ctx := context.Background()

	a, err := Build(ctx, cfg, db, logger)
	require.NoError(t, err)
	defer a.Close()

	var sports int64
	require.NoError(t, db.Model(&model.Sport{}).Count(&sports).Error)
	assert.EqualValues(t, 2, sports)

	// seeding twice is a no-op
	_, err = Build(ctx, cfg, db, logger)
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.Sport{}).Count(&sports).Error)
	assert.EqualValues(t, 2, sports)

	assert.NotNil(t, a.Sync)
	assert.NotNil(t, a.Seasons)
	assert.NotNil(t, a.Scores)
	assert.False(t, a.Queries.Enabled())
	assert.True(t, a.Reports.Status(ctx).Connected)
}
