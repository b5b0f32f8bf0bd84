package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"SpreadSync/internal/cache"
	"SpreadSync/internal/config"
	"SpreadSync/internal/model"
	"SpreadSync/internal/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

var (
	// ErrNoWeeks no week since reports.since has enough games.
	ErrNoWeeks      = errors.New("no weeks available for analysis")
	ErrGameNotFound = errors.New("game not found")
)

const (
	rule               = "============================================================"
	displayTimeLayout  = "01/02 03:04 PM"
	weeklyGamesShown   = 10
	weeklyArbShown     = 5
	comparisonGames    = 5
	spotlightGames     = 5
	spotlightsShown    = 3
	quickSpreadLimit   = 50
	defaultOutcomeRows = 10
)

// WeekWindow [Start, End) on commence_time.
type WeekWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParseWeek dates are YYYY-MM-DD at midnight UTC; an empty end means start + 7 days.
func ParseWeek(start, end string) (WeekWindow, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return WeekWindow{}, fmt.Errorf("invalid week start %q: %w", start, err)
	}
	w := WeekWindow{Start: s.UTC(), End: s.UTC().AddDate(0, 0, 7)}
	if end != "" {
		e, err := time.Parse(dateLayout, end)
		if err != nil {
			return WeekWindow{}, fmt.Errorf("invalid week end %q: %w", end, err)
		}
		w.End = e.UTC()
	}
	if !w.End.After(w.Start) {
		return WeekWindow{}, fmt.Errorf("week end %s must be after start %s", w.End.Format(dateLayout), w.Start.Format(dateLayout))
	}
	return w, nil
}

func (w WeekWindow) filter() repository.LatestSpreadFilter {
	start, end := w.Start, w.End
	return repository.LatestSpreadFilter{From: &start, To: &end}
}

type DatabaseStatus struct {
	Connected bool             `json:"connected"`
	Error     string           `json:"error,omitempty"`
	Tables    map[string]int64 `json:"tables,omitempty"`
}

type SpreadOutcomeRow struct {
	*repository.SpreadView
	ActualMargin *int          `json:"actual_margin"`
	Outcome      SpreadOutcome `json:"spread_outcome"`
}

type ScoreSummary struct {
	TotalGames      int64          `json:"total_games"`
	GamesWithScores int64          `json:"games_with_scores"`
	CompletedGames  int64          `json:"completed_games"`
	ScorePercentage float64        `json:"score_percentage"`
	SpreadOutcomes  []OutcomeCount `json:"spread_outcomes"`
}

// ReportService read-only analysis over stored odds and scores.
type ReportService struct {
	reports repository.ReportRepository
	games   repository.GameRepository
	cache   cache.Cache
	cfg     config.ReportsConfig
	logger  *logrus.Logger
	now     func() time.Time
}

func NewReportService(reports repository.ReportRepository, games repository.GameRepository, c cache.Cache, cfg config.ReportsConfig, logger *logrus.Logger) *ReportService {
	if c == nil {
		c = cache.Noop{}
	}
	return &ReportService{
		reports: reports,
		games:   games,
		cache:   c,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Status never fails; an unreachable database is reported in the result.
func (s *ReportService) Status(ctx context.Context) *DatabaseStatus {
	counts, err := s.reports.TableCounts(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("database status check failed")
		return &DatabaseStatus{Connected: false, Error: err.Error()}
	}
	return &DatabaseStatus{Connected: true, Tables: counts}
}

func (s *ReportService) Weeks(ctx context.Context, limit int) ([]*repository.WeekSummary, error) {
	return s.reports.AvailableWeeks(ctx, s.cfg.SinceTime(), s.cfg.MinGames, limit)
}

// BestWeek the richest week, ending seven days after its start.
func (s *ReportService) BestWeek(ctx context.Context) (WeekWindow, *repository.WeekSummary, error) {
	weeks, err := s.Weeks(ctx, 1)
	if err != nil {
		return WeekWindow{}, nil, err
	}
	if len(weeks) == 0 {
		return WeekWindow{}, nil, ErrNoWeeks
	}
	start := weeks[0].WeekStart.UTC()
	return WeekWindow{Start: start, End: start.AddDate(0, 0, 7)}, weeks[0], nil
}

func (s *ReportService) WeekGames(ctx context.Context, w WeekWindow) ([]*repository.WeekGame, error) {
	return s.reports.WeekGames(ctx, w.Start, w.End)
}

func (s *ReportService) Timeline(ctx context.Context, gameID string) ([]*repository.SpreadView, error) {
	rows, err := s.reports.SpreadTimeline(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		if err := s.ensureGame(ctx, gameID); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (s *ReportService) Movements(ctx context.Context, gameID string) ([]*BookmakerMovements, error) {
	timeline, err := s.Timeline(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return LineMovements(timeline), nil
}

func (s *ReportService) ensureGame(ctx context.Context, gameID string) error {
	_, err := s.games.GetGame(ctx, gameID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return err
}

func (s *ReportService) Comparison(ctx context.Context, w WeekWindow) ([]*GameComparison, error) {
	rows, err := s.reports.LatestSpreads(ctx, w.filter())
	if err != nil {
		return nil, err
	}
	return GroupComparison(rows), nil
}

func (s *ReportService) Arbitrage(ctx context.Context, w WeekWindow) ([]*ArbitrageOpportunity, error) {
	games, err := s.Comparison(ctx, w)
	if err != nil {
		return nil, err
	}
	return FindArbitrage(games), nil
}

// Outcomes latest spread per game and bookmaker for scored games, newest first.
func (s *ReportService) Outcomes(ctx context.Context, limit int) ([]*SpreadOutcomeRow, error) {
	if limit <= 0 {
		limit = defaultOutcomeRows
	}
	rows, err := s.reports.LatestSpreads(ctx, repository.LatestSpreadFilter{ScoredOnly: true, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]*SpreadOutcomeRow, 0, len(rows))
	for _, r := range rows {
		row := &SpreadOutcomeRow{SpreadView: r, Outcome: ClassifySpreadOutcome(r.HomeScore, r.AwayScore, r.HomeSpread)}
		if r.HomeScore != nil && r.AwayScore != nil {
			margin := *r.HomeScore - *r.AwayScore
			row.ActualMargin = &margin
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *ReportService) Summary(ctx context.Context) (*ScoreSummary, error) {
	stats, err := s.reports.ScoreStats(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := s.reports.LatestSpreads(ctx, repository.LatestSpreadFilter{})
	if err != nil {
		return nil, err
	}
	summary := &ScoreSummary{
		TotalGames:      stats.TotalGames,
		GamesWithScores: stats.GamesWithScores,
		CompletedGames:  stats.CompletedGames,
		SpreadOutcomes:  CountOutcomes(latest),
	}
	if stats.TotalGames > 0 {
		summary.ScorePercentage = math.Round(float64(stats.GamesWithScores)/float64(stats.TotalGames)*1000) / 10
	}
	return summary, nil
}

// WeeklyReport full text report for one week.
func (s *ReportService) WeeklyReport(ctx context.Context, w WeekWindow) (string, error) {
	key, err := s.reportKey(ctx, "weekly", w)
	if err != nil {
		return "", err
	}
	if text, ok := s.cache.Get(ctx, key); ok {
		return text, nil
	}

	games, err := s.WeekGames(ctx, w)
	if err != nil {
		return "", err
	}
	comparison, err := s.Comparison(ctx, w)
	if err != nil {
		return "", err
	}

	var spotlights []*MovementSpotlight
	for i, g := range games {
		if i >= spotlightGames {
			break
		}
		timeline, err := s.reports.SpreadTimeline(ctx, g.GameID)
		if err != nil {
			return "", err
		}
		if sp := NewSpotlight(g.GameID, Matchup(g.AwayTeam, g.HomeTeam), LineMovements(timeline)); sp != nil {
			spotlights = append(spotlights, sp)
		}
	}
	SortSpotlights(spotlights)

	text := RenderWeeklyReport(w, games, comparison, FindArbitrage(comparison), spotlights, s.now())
	s.cache.Set(ctx, key, text)
	return text, nil
}

// reportKey includes the window's data version so ingests and score updates invalidate cached text.
func (s *ReportService) reportKey(ctx context.Context, kind string, w WeekWindow) (string, error) {
	version, err := s.reports.WindowVersion(ctx, w.Start, w.End)
	if err != nil {
		return "", err
	}
	return cache.Key("report", kind, w.Start.Format(dateLayout), w.End.Format(dateLayout), version), nil
}

// QuickReport condensed report with the stricter arbitrage screen.
func (s *ReportService) QuickReport(ctx context.Context, w WeekWindow) (string, error) {
	key, err := s.reportKey(ctx, "quick", w)
	if err != nil {
		return "", err
	}
	if text, ok := s.cache.Get(ctx, key); ok {
		return text, nil
	}

	games, err := s.WeekGames(ctx, w)
	if err != nil {
		return "", err
	}
	filter := w.filter()
	filter.Limit = quickSpreadLimit
	rows, err := s.reports.LatestSpreads(ctx, filter)
	if err != nil {
		return "", err
	}
	comparison := GroupComparison(rows)

	text := RenderQuickReport(w, games, comparison, FindQuickArbitrage(comparison), s.now())
	s.cache.Set(ctx, key, text)
	return text, nil
}

func statusIcon(status string) string {
	switch status {
	case model.GameStatusCompleted:
		return "✅"
	case "in_progress":
		return "🔄"
	default:
		return "⏰"
	}
}

func scoreText(g *repository.WeekGame) string {
	if g.AwayScore == nil || g.HomeScore == nil {
		return ""
	}
	return fmt.Sprintf(" (%d-%d)", *g.AwayScore, *g.HomeScore)
}

func writeComparison(b *strings.Builder, games []*GameComparison) {
	for i, g := range games {
		if i >= comparisonGames {
			break
		}
		fmt.Fprintf(b, "\n🏈 %s:\n", g.Matchup)
		for _, q := range g.Bookmakers {
			fmt.Fprintf(b, "   %-12s | Away: %+.1f (%+4.0f) | Home: %+.1f (%+4.0f)\n",
				q.Bookmaker, q.AwaySpread, q.AwayPrice, q.HomeSpread, q.HomePrice)
		}
	}
}

// RenderWeeklyReport lays out header, coverage, games, arbitrage, bookmaker comparison and spotlights.
func RenderWeeklyReport(w WeekWindow, games []*repository.WeekGame, comparison []*GameComparison,
	arbs []*ArbitrageOpportunity, spotlights []*MovementSpotlight, generated time.Time) string {
	var b strings.Builder

	totalSpreads := 0
	for _, g := range games {
		totalSpreads += g.SpreadCount
	}
	fmt.Fprintf(&b, "\n🏈 NFL WEEKLY ANALYSIS REPORT\n%s\n", rule)
	fmt.Fprintf(&b, "📅 Week: %s to %s\n", w.Start.Format(dateLayout), w.End.Format(dateLayout))
	fmt.Fprintf(&b, "📊 Data Summary: %d games, %d total spreads\n\n", len(games), totalSpreads)
	fmt.Fprintf(&b, "🎯 KEY HIGHLIGHTS\n%s\n", rule)

	if len(games) > 0 {
		snapshots, bookmakers := 0, 0
		most := games[0]
		for _, g := range games {
			snapshots += g.SnapshotCount
			bookmakers += g.BookmakerCount
			if g.SpreadCount > most.SpreadCount {
				most = g
			}
		}
		fmt.Fprintf(&b, "\n📈 Data Coverage:\n")
		fmt.Fprintf(&b, "   • %s total snapshots across all games\n", thousands(snapshots))
		fmt.Fprintf(&b, "   • Average %.1f bookmakers per game\n", float64(bookmakers)/float64(len(games)))
		fmt.Fprintf(&b, "   • Most tracked game: %s (%d spreads)\n", Matchup(most.AwayTeam, most.HomeTeam), most.SpreadCount)
		fmt.Fprintf(&b, "\n🏈 Games Overview:\n")
		for i, g := range games {
			if i >= weeklyGamesShown {
				break
			}
			fmt.Fprintf(&b, "   %s %s%s\n", statusIcon(g.Status), Matchup(g.AwayTeam, g.HomeTeam), scoreText(g))
			fmt.Fprintf(&b, "      📅 %s | 📊 %d spreads | 📸 %d snapshots\n",
				g.CommenceTime.UTC().Format(displayTimeLayout), g.SpreadCount, g.SnapshotCount)
		}
	}

	if len(arbs) > 0 {
		fmt.Fprintf(&b, "\n💰 ARBITRAGE OPPORTUNITIES\n%s\n", rule)
		for i, a := range arbs {
			if i >= weeklyArbShown {
				break
			}
			fmt.Fprintf(&b, "\n%d. %s - %.2f%% potential profit\n", i+1, a.Game, a.ProfitMargin)
			fmt.Fprintf(&b, "   🏠 Home: %s %+.1f (%+.0f)\n", a.HomeBet.Bookmaker, a.HomeBet.Spread, a.HomeBet.Price)
			fmt.Fprintf(&b, "   ✈️  Away: %s %+.1f (%+.0f)\n", a.AwayBet.Bookmaker, a.AwayBet.Spread, a.AwayBet.Price)
			fmt.Fprintf(&b, "   📊 Total Implied Probability: %.1f%%\n", a.TotalImpliedProb)
		}
	}

	fmt.Fprintf(&b, "\n📊 BOOKMAKER COMPARISON\n%s\n", rule)
	writeComparison(&b, comparison)

	fmt.Fprintf(&b, "\n📈 LINE MOVEMENT SPOTLIGHTS\n%s\n", rule)
	for i, sp := range spotlights {
		if i >= spotlightsShown {
			break
		}
		fmt.Fprintf(&b, "\n🔥 %s - %.1f point total movement\n", sp.Game, sp.TotalMovement)
		for _, bm := range sp.Details {
			if len(bm.Movements) == 0 {
				continue
			}
			last := bm.Movements[len(bm.Movements)-1]
			fmt.Fprintf(&b, "   %-12s | Home moved %+.1f | Away moved %+.1f\n", bm.Bookmaker, last.HomeMovement, last.AwayMovement)
		}
	}

	fmt.Fprintf(&b, "\n%s\n📊 Report generated on %s\n", rule, generated.Format("2006-01-02 15:04:05"))
	return b.String()
}

// RenderQuickReport games overview, latest spreads of the first five games and the quick arbitrage screen.
func RenderQuickReport(w WeekWindow, games []*repository.WeekGame, comparison []*GameComparison,
	arbs []*ArbitrageOpportunity, generated time.Time) string {
	lines := []string{
		"🏈 NFL WEEKLY SPOTLIGHT REPORT",
		rule,
		fmt.Sprintf("📅 Week: %s to %s", w.Start.Format(dateLayout), w.End.Format(dateLayout)),
		fmt.Sprintf("📊 Data Summary: %d games", len(games)),
		"",
		"🎯 GAMES OVERVIEW",
		rule,
	}
	for _, g := range games {
		lines = append(lines,
			fmt.Sprintf("%s %s%s", statusIcon(g.Status), Matchup(g.AwayTeam, g.HomeTeam), scoreText(g)),
			fmt.Sprintf("   📅 %s | 📊 %d spreads | 📸 %d snapshots", g.CommenceTime.UTC().Format(displayTimeLayout), g.SpreadCount, g.SnapshotCount),
			"",
		)
	}

	if len(comparison) > 0 {
		lines = append(lines, "📊 LATEST SPREADS COMPARISON", rule)
		for i, g := range comparison {
			if i >= comparisonGames {
				break
			}
			lines = append(lines, fmt.Sprintf("🏈 %s:", g.Matchup))
			for _, q := range g.Bookmakers {
				lines = append(lines, fmt.Sprintf("   %-12s | Away: %+.1f (%+.0f) | Home: %+.1f (%+.0f)",
					q.Bookmaker, q.AwaySpread, q.AwayPrice, q.HomeSpread, q.HomePrice))
			}
			lines = append(lines, "")
		}
	}

	if len(arbs) > 0 {
		lines = append(lines, "💰 POTENTIAL ARBITRAGE OPPORTUNITIES", rule)
		for _, a := range arbs {
			lines = append(lines,
				fmt.Sprintf("🎯 %s", a.Game),
				fmt.Sprintf("   💡 Potential %.2f%% profit", a.ProfitMargin),
				fmt.Sprintf("   📊 Best Away: %+.0f | Best Home: %+.0f", a.AwayBet.Price, a.HomeBet.Price),
				"",
			)
		}
	}

	lines = append(lines, rule, "📊 Report generated on "+generated.Format("2006-01-02 15:04:05"))
	return strings.Join(lines, "\n")
}

// RenderWeeks numbered list of candidate weeks.
func RenderWeeks(weeks []*repository.WeekSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Available NFL Weeks for Analysis:\n%s\n", rule)
	for i, w := range weeks {
		fmt.Fprintf(&b, "%2d. %s - %s\n", i+1, w.FirstGame.UTC().Format("Jan 02"), w.LastGame.UTC().Format("Jan 02, 2006"))
		fmt.Fprintf(&b, "    📊 %d games | %d spreads | %d bookmakers | %d snapshots\n", w.Games, w.TotalSpreads, w.Bookmakers, w.Snapshots)
		fmt.Fprintf(&b, "    🎯 Richness Score: %s\n\n", thousands(int(w.Richness)))
	}
	return b.String()
}

var printer = message.NewPrinter(language.English)

// thousands formats n with comma separators.
func thousands(n int) string {
	return printer.Sprintf("%d", n)
}
