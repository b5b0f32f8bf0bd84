package oddsapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"SpreadSync/internal/config"
	"SpreadSync/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const liveBody = `[{
  "id": "g1",
  "sport_key": "americanfootball_nfl",
  "commence_time": "2024-09-08T17:00:00Z",
  "home_team": "Kansas City Chiefs",
  "away_team": "Baltimore Ravens",
  "bookmakers": [{
    "key": "draftkings",
    "title": "DraftKings",
    "last_update": "2024-09-07T12:00:00Z",
    "markets": [{"key": "spreads", "outcomes": [
      {"name": "Kansas City Chiefs", "price": -110, "point": -3.0},
      {"name": "Baltimore Ravens", "price": -110, "point": 3.0}
    ]}]
  }]
}]`

const historicalBody = `{
  "timestamp": "2024-09-07T12:00:00Z",
  "previous_timestamp": "2024-09-07T11:55:00Z",
  "next_timestamp": null,
  "data": ` + liveBody + `
}`

func testClient(baseURL string) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.OddsAPIConfig{
		HTTPConfig: config.HTTPConfig{BaseURL: baseURL, Timeout: 5},
		APIKey:     "secret",
		Sport:      "americanfootball_nfl",
		Regions:    []string{"us"},
		Markets:    []string{"spreads"},
		Bookmakers: []string{"draftkings", "fanduel"},
	}
	return NewClient(cfg, logger)
}

func TestFetchLiveOdds(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("x-requests-remaining", "480")
		_, _ = w.Write([]byte(liveBody))
	}))
	defer srv.Close()

	games, err := testClient(srv.URL).FetchLiveOdds(context.Background(), model.OddsRequest{})
	require.NoError(t, err)
	require.Len(t, games, 1)

	assert.Equal(t, "/sports/americanfootball_nfl/odds", gotPath)
	assert.Equal(t, "secret", gotQuery["apiKey"][0])
	assert.Equal(t, "spreads", gotQuery["markets"][0])
	assert.Equal(t, "american", gotQuery["oddsFormat"][0])
	assert.Equal(t, "draftkings,fanduel", gotQuery["bookmakers"][0])

	g := games[0]
	assert.Equal(t, "Kansas City Chiefs", g.HomeTeam)
	assert.True(t, g.CommenceTime.Equal(time.Date(2024, 9, 8, 17, 0, 0, 0, time.UTC)))
	q, ok, err := g.Bookmakers[0].Market(model.MarketSpreads).SpreadQuote(g.HomeTeam, g.AwayTeam)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, -3.0, q.HomeSpread)
	assert.Equal(t, 3.0, q.AwaySpread)
}

func TestFetchHistoricalOddsKeepsCursor(t *testing.T) {
	var gotDate string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/historical/sports/americanfootball_nfl/odds", r.URL.Path)
		gotDate = r.URL.Query().Get("date")
		_, _ = w.Write([]byte(historicalBody))
	}))
	defer srv.Close()

	at := time.Date(2024, 9, 7, 12, 0, 0, 0, time.UTC)
	snap, err := testClient(srv.URL).FetchHistoricalOdds(context.Background(), model.OddsRequest{Date: at})
	require.NoError(t, err)

	assert.Equal(t, "2024-09-07T12:00:00Z", gotDate)
	assert.True(t, snap.Timestamp.Equal(at))
	require.NotNil(t, snap.PreviousTimestamp)
	assert.True(t, snap.PreviousTimestamp.Equal(at.Add(-5*time.Minute)))
	assert.Nil(t, snap.NextTimestamp)
	assert.Len(t, snap.Data, 1)
	assert.JSONEq(t, historicalBody, string(snap.Raw))
}

func TestFetchHistoricalOddsRequiresDate(t *testing.T) {
	_, err := testClient("http://127.0.0.1:0").FetchHistoricalOdds(context.Background(), model.OddsRequest{})
	assert.Error(t, err)
}

func TestNon2xxIsErrStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"API key is invalid"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchLiveOdds(context.Background(), model.OddsRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatus)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 1, calls, "no internal retry")
}

func TestHistoricalStatusErrorsDoNotOpenCircuit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 7 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(historicalBody))
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	ctx := context.Background()
	req := model.OddsRequest{Date: time.Date(2024, 9, 7, 12, 0, 0, 0, time.UTC)}
	for i := 0; i < 7; i++ {
		_, err := client.FetchHistoricalOdds(ctx, req)
		require.ErrorIs(t, err, ErrStatus)
	}

	snapshot, err := client.FetchHistoricalOdds(ctx, req)
	require.NoError(t, err)
	assert.Len(t, snapshot.Data, 1)
	assert.EqualValues(t, 8, atomic.LoadInt32(&hits))
}

func TestLiveCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_, err := client.FetchLiveOdds(ctx, model.OddsRequest{})
		require.ErrorIs(t, err, ErrStatus)
	}

	_, err := client.FetchLiveOdds(ctx, model.OddsRequest{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 6, atomic.LoadInt32(&hits))
}
