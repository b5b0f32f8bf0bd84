package nflverse

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SpreadSync/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gamesCSV = `game_id,season,game_type,week,gameday,weekday,gametime,away_team,away_score,home_team,home_score,location
2023_01_DET_KC,2023,REG,1,2023-09-07,Thursday,20:20,DET,21,KC,20,Home
2024_01_BAL_KC,2024,REG,1,2024-09-05,Thursday,20:20,BAL,20,KC,27,Home
2024_01_GB_PHI,2024,REG,1,2024-09-06,Friday,20:15,GB,29.0,PHI,34.0,Neutral
2024_18_KC_DEN,2024,REG,18,2025-01-05,Sunday,16:25,KC,NA,DEN,NA,Home
`

func TestParseGamesFiltersSeason(t *testing.T) {
	records, err := ParseGames(strings.NewReader(gamesCSV), 2024)
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, 2024, first.Season)
	assert.Equal(t, "KC", first.HomeTeam)
	assert.Equal(t, "BAL", first.AwayTeam)
	assert.True(t, first.GameDay.Equal(time.Date(2024, 9, 5, 0, 0, 0, 0, time.UTC)))
	require.True(t, first.HasFinal())
	assert.Equal(t, 27, *first.HomeScore)
	assert.Equal(t, 20, *first.AwayScore)

	assert.Equal(t, 34, *records[1].HomeScore)
	assert.False(t, records[2].HasFinal())
}

func TestParseGamesAllSeasons(t *testing.T) {
	records, err := ParseGames(strings.NewReader(gamesCSV), 0)
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestParseGamesMissingColumn(t *testing.T) {
	_, err := ParseGames(strings.NewReader("season,gameday,home_team\n2024,2024-09-05,KC\n"), 0)
	assert.Error(t, err)
}

func TestFetchScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(gamesCSV))
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	client := NewClient(&config.HTTPConfig{BaseURL: srv.URL, Timeout: 5}, logger)

	records, err := client.FetchScores(context.Background(), 2023)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "DET", records[0].AwayTeam)
}

func TestFetchScoresStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	_, err := NewClient(&config.HTTPConfig{BaseURL: srv.URL}, logger).FetchScores(context.Background(), 0)
	assert.Error(t, err)
}
