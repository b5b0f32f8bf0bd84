package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"SpreadSync/internal/interfaces"
	"SpreadSync/internal/metrics"
	"SpreadSync/internal/model"
	"SpreadSync/internal/repository"

	"github.com/sirupsen/logrus"
)

const (
	matchWindowDays = 1
	dryRunPreview   = 10
)

// teamAbbreviations nflverse codes, including relocated franchises, to current provider names.
var teamAbbreviations = map[string]string{
	"ARI": "Arizona Cardinals",
	"ATL": "Atlanta Falcons",
	"BAL": "Baltimore Ravens",
	"BUF": "Buffalo Bills",
	"CAR": "Carolina Panthers",
	"CHI": "Chicago Bears",
	"CIN": "Cincinnati Bengals",
	"CLE": "Cleveland Browns",
	"DAL": "Dallas Cowboys",
	"DEN": "Denver Broncos",
	"DET": "Detroit Lions",
	"GB":  "Green Bay Packers",
	"HOU": "Houston Texans",
	"IND": "Indianapolis Colts",
	"JAX": "Jacksonville Jaguars",
	"KC":  "Kansas City Chiefs",
	"LV":  "Las Vegas Raiders",
	"LAC": "Los Angeles Chargers",
	"LAR": "Los Angeles Rams",
	"MIA": "Miami Dolphins",
	"MIN": "Minnesota Vikings",
	"NE":  "New England Patriots",
	"NO":  "New Orleans Saints",
	"NYG": "New York Giants",
	"NYJ": "New York Jets",
	"PHI": "Philadelphia Eagles",
	"PIT": "Pittsburgh Steelers",
	"SF":  "San Francisco 49ers",
	"SEA": "Seattle Seahawks",
	"TB":  "Tampa Bay Buccaneers",
	"TEN": "Tennessee Titans",
	"WAS": "Washington Commanders",
	"LA":  "Los Angeles Rams",
	"OAK": "Las Vegas Raiders",
	"SD":  "Los Angeles Chargers",
	"STL": "Los Angeles Rams",
}

// legacyTeamNames old full names still present in stored games.
var legacyTeamNames = map[string]string{
	"Washington Football Team": "Washington Commanders",
	"Washington Redskins":      "Washington Commanders",
	"Oakland Raiders":          "Las Vegas Raiders",
	"San Diego Chargers":       "Los Angeles Chargers",
	"St. Louis Rams":           "Los Angeles Rams",
}

// TeamFromAbbreviation unknown codes pass through unchanged.
func TeamFromAbbreviation(abbr string) string {
	if name, ok := teamAbbreviations[abbr]; ok {
		return name
	}
	return abbr
}

// CanonicalTeamName maps a legacy franchise name to its current one.
func CanonicalTeamName(name string) string {
	if current, ok := legacyTeamNames[name]; ok {
		return current
	}
	return name
}

// ScoreMatch one external record paired with a stored game.
type ScoreMatch struct {
	GameID      string    `json:"game_id"`
	Matchup     string    `json:"matchup"`
	GameDay     time.Time `json:"game_day"`
	DayDelta    int       `json:"day_delta"`
	HomeScore   int       `json:"home_score"`
	AwayScore   int       `json:"away_score"`
	CurrentHome *int      `json:"current_home_score"`
	CurrentAway *int      `json:"current_away_score"`
	NeedsUpdate bool      `json:"needs_update"`
}

func (m *ScoreMatch) update() repository.ScoreUpdate {
	return repository.ScoreUpdate{GameID: m.GameID, Matchup: m.Matchup, HomeScore: m.HomeScore, AwayScore: m.AwayScore}
}

type matchKey struct{ home, away string }

// MatchScores pairs final records with stored games on canonical team names and a
// game day at most one day from commence_time. Among candidates the smallest day delta wins,
// then the earliest commence_time, then the smallest game_id. A game claimed twice keeps the
// closer record. The second return value counts final records left without a game.
func MatchScores(records []model.ScoreRecord, games []*repository.GameForMatching) ([]*ScoreMatch, int) {
	byTeams := make(map[matchKey][]*repository.GameForMatching)
	for _, g := range games {
		k := matchKey{CanonicalTeamName(g.HomeTeam), CanonicalTeamName(g.AwayTeam)}
		byTeams[k] = append(byTeams[k], g)
	}

	var matches []*ScoreMatch
	claimed := make(map[string]int)
	unmatched := 0
	for _, rec := range records {
		if !rec.HasFinal() {
			continue
		}
		home := CanonicalTeamName(TeamFromAbbreviation(rec.HomeTeam))
		away := CanonicalTeamName(TeamFromAbbreviation(rec.AwayTeam))

		var best *repository.GameForMatching
		bestDelta := 0
		for _, g := range byTeams[matchKey{home, away}] {
			delta := dayDelta(rec.GameDay, g.CommenceTime)
			if abs(delta) > matchWindowDays {
				continue
			}
			if best == nil || betterCandidate(delta, g, bestDelta, best) {
				best, bestDelta = g, delta
			}
		}
		if best == nil {
			unmatched++
			continue
		}

		m := &ScoreMatch{
			GameID:      best.GameID,
			Matchup:     Matchup(away, home),
			GameDay:     dateOf(rec.GameDay),
			DayDelta:    bestDelta,
			HomeScore:   *rec.HomeScore,
			AwayScore:   *rec.AwayScore,
			CurrentHome: best.HomeScore,
			CurrentAway: best.AwayScore,
		}
		m.NeedsUpdate = best.HomeScore == nil || best.AwayScore == nil ||
			*best.HomeScore != m.HomeScore || *best.AwayScore != m.AwayScore

		if idx, ok := claimed[m.GameID]; ok {
			unmatched++
			if abs(m.DayDelta) < abs(matches[idx].DayDelta) {
				matches[idx] = m
			}
			continue
		}
		claimed[m.GameID] = len(matches)
		matches = append(matches, m)
	}
	return matches, unmatched
}

func betterCandidate(delta int, g *repository.GameForMatching, bestDelta int, best *repository.GameForMatching) bool {
	if abs(delta) != abs(bestDelta) {
		return abs(delta) < abs(bestDelta)
	}
	if !g.CommenceTime.Equal(best.CommenceTime) {
		return g.CommenceTime.Before(best.CommenceTime)
	}
	return g.GameID < best.GameID
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dayDelta calendar days from the stored game's UTC date to the record's game day.
func dayDelta(gameDay, commence time.Time) int {
	return int(math.Round(dateOf(gameDay).Sub(dateOf(commence)).Hours() / 24))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type ReconcileRequest struct {
	Season int  `json:"season"` // 0 = every season in the feed
	DryRun bool `json:"dry_run"`
}

type ReconcileResult struct {
	Records     int                      `json:"records"`
	Final       int                      `json:"final"`
	Matched     int                      `json:"matched"`
	Unmatched   int                      `json:"unmatched"`
	NeedsUpdate int                      `json:"needs_update"`
	Updated     int                      `json:"updated"`
	DryRun      bool                     `json:"dry_run"`
	Planned     []repository.ScoreUpdate `json:"planned,omitempty"` // first 10 in dry-run mode
	More        int                      `json:"more,omitempty"`
}

// ScoreSyncService writes final scores from the scores feed onto stored games.
type ScoreSyncService struct {
	fetcher  interfaces.ScoreFetcher
	gameRepo repository.GameRepository
	logger   *logrus.Logger
}

func NewScoreSyncService(fetcher interfaces.ScoreFetcher, gameRepo repository.GameRepository, logger *logrus.Logger) *ScoreSyncService {
	return &ScoreSyncService{
		fetcher:  fetcher,
		gameRepo: gameRepo,
		logger:   logger,
	}
}

// Run all updates commit together or not at all.
func (s *ScoreSyncService) Run(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	records, err := s.fetcher.FetchScores(ctx, req.Season)
	if err != nil {
		return nil, fmt.Errorf("fetch scores: %w", err)
	}
	games, err := s.gameRepo.ListGamesForMatching(ctx)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	matches, unmatched := MatchScores(records, games)
	result := &ReconcileResult{
		Records:   len(records),
		Matched:   len(matches),
		Unmatched: unmatched,
		DryRun:    req.DryRun,
	}
	for _, r := range records {
		if r.HasFinal() {
			result.Final++
		}
	}

	var updates []repository.ScoreUpdate
	for _, m := range matches {
		if m.NeedsUpdate {
			updates = append(updates, m.update())
		}
	}
	result.NeedsUpdate = len(updates)
	metrics.ScoresUnmatchedTotal.Add(float64(unmatched))

	fields := logrus.Fields{
		"season":       req.Season,
		"final":        result.Final,
		"matched":      result.Matched,
		"unmatched":    result.Unmatched,
		"needs_update": result.NeedsUpdate,
	}
	if req.DryRun {
		preview := updates
		if len(preview) > dryRunPreview {
			result.More = len(preview) - dryRunPreview
			preview = preview[:dryRunPreview]
		}
		result.Planned = preview
		s.logger.WithFields(fields).Info("score reconciliation dry run")
		return result, nil
	}

	updated, err := s.gameRepo.ApplyScoreUpdates(ctx, updates)
	if err != nil {
		return nil, fmt.Errorf("apply score updates: %w", err)
	}
	result.Updated = updated
	metrics.ScoresUpdatedTotal.Add(float64(updated))
	fields["updated"] = updated
	s.logger.WithFields(fields).Info("score reconciliation complete")
	return result, nil
}
