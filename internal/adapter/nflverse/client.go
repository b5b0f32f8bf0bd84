package nflverse

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"SpreadSync/internal/config"
	"SpreadSync/internal/model"
	"SpreadSync/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

var requiredColumns = []string{"season", "gameday", "home_team", "away_team", "home_score", "away_score"}

// Client reads the nflverse games.csv schedule with final scores.
type Client struct {
	cfg        *config.HTTPConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(cfg *config.HTTPConfig, logger *logrus.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: httpclient.NewHTTPClient(cfg, logger),
		logger:     logger,
	}
}

// FetchScores downloads the whole file and keeps rows of season (all seasons when season <= 0).
func (c *Client) FetchScores(ctx context.Context, season int) ([]model.ScoreRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch scores: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch scores: status %d", resp.StatusCode)
	}

	records, err := ParseGames(resp.Body, season)
	if err != nil {
		return nil, err
	}
	c.logger.WithFields(logrus.Fields{
		"season":  season,
		"records": len(records),
	}).Info("nflverse scores fetched")
	return records, nil
}

// ParseGames reads games.csv by header name. Empty and NA scores become nil.
func ParseGames(r io.Reader, season int) ([]model.ScoreRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("games.csv missing column %q", col)
		}
	}

	var out []model.ScoreRecord
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		field := func(name string) string {
			i := idx[name]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		rowSeason, err := strconv.Atoi(field("season"))
		if err != nil {
			return nil, fmt.Errorf("line %d: season: %w", line, err)
		}
		if season > 0 && rowSeason != season {
			continue
		}
		gameDay, err := time.Parse("2006-01-02", field("gameday"))
		if err != nil {
			return nil, fmt.Errorf("line %d: gameday: %w", line, err)
		}
		out = append(out, model.ScoreRecord{
			Season:    rowSeason,
			GameDay:   gameDay,
			HomeTeam:  field("home_team"),
			AwayTeam:  field("away_team"),
			HomeScore: parseScore(field("home_score")),
			AwayScore: parseScore(field("away_score")),
		})
	}
	return out, nil
}

func parseScore(s string) *int {
	if s == "" || strings.EqualFold(s, "NA") {
		return nil
	}
	// nflverse sometimes writes scores as floats
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v := int(f)
	return &v
}
