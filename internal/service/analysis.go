package service

import (
	"math"
	"sort"
	"time"

	"SpreadSync/internal/repository"
	"SpreadSync/internal/utils/oddsmath"
)

type SpreadOutcome string

const (
	OutcomeHomeCover SpreadOutcome = "Home Cover"
	OutcomeAwayCover SpreadOutcome = "Away Cover"
	OutcomePush      SpreadOutcome = "Push"
	OutcomeNoResult  SpreadOutcome = "No Result"
)

const (
	ArbitrageThreshold      = 1.0
	QuickArbitrageThreshold = 0.98
	quickArbitragePriceMin  = -200.0
	quickArbitrageTop       = 3
	spotlightThreshold      = 0.5
)

// ClassifySpreadOutcome compares the home margin with the magnitude of the home spread.
// Anything that is neither a cover nor missing a score falls through to Push.
func ClassifySpreadOutcome(homeScore, awayScore *int, homeSpread float64) SpreadOutcome {
	if homeScore == nil || awayScore == nil {
		return OutcomeNoResult
	}
	margin := float64(*homeScore - *awayScore)
	line := math.Abs(homeSpread)
	switch {
	case margin > line:
		return OutcomeHomeCover
	case margin < -line:
		return OutcomeAwayCover
	default:
		return OutcomePush
	}
}

type SpreadPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	HomeSpread float64   `json:"home_spread"`
	AwaySpread float64   `json:"away_spread"`
	HomePrice  float64   `json:"home_price"`
	AwayPrice  float64   `json:"away_price"`
}

// Movement change between two consecutive snapshots of one bookmaker.
type Movement struct {
	Timestamp       time.Time `json:"timestamp"`
	HomeMovement    float64   `json:"home_movement"`
	AwayMovement    float64   `json:"away_movement"`
	HomePriceChange float64   `json:"home_price_change"`
	AwayPriceChange float64   `json:"away_price_change"`
}

type BookmakerMovements struct {
	BookmakerKey string        `json:"bookmaker_key"`
	Bookmaker    string        `json:"bookmaker"`
	Spreads      []SpreadPoint `json:"spreads"`
	Movements    []Movement    `json:"movements"`
}

// MaxHomeMovement largest absolute single-step home movement, 0 without movements.
func (b *BookmakerMovements) MaxHomeMovement() float64 {
	max := 0.0
	for _, m := range b.Movements {
		if v := math.Abs(m.HomeMovement); v > max {
			max = v
		}
	}
	return max
}

// LineMovements groups a timeline per bookmaker (in order of first appearance) and
// takes deltas between consecutive snapshots, not from the opening line.
func LineMovements(timeline []*repository.SpreadView) []*BookmakerMovements {
	var out []*BookmakerMovements
	byKey := make(map[string]*BookmakerMovements)
	for _, row := range timeline {
		bm, ok := byKey[row.BookmakerKey]
		if !ok {
			bm = &BookmakerMovements{BookmakerKey: row.BookmakerKey, Bookmaker: row.BookmakerTitle}
			byKey[row.BookmakerKey] = bm
			out = append(out, bm)
		}
		bm.Spreads = append(bm.Spreads, SpreadPoint{
			Timestamp:  row.SnapshotTimestamp,
			HomeSpread: row.HomeSpread,
			AwaySpread: row.AwaySpread,
			HomePrice:  row.HomePrice,
			AwayPrice:  row.AwayPrice,
		})
	}

	for _, bm := range out {
		sort.SliceStable(bm.Spreads, func(i, j int) bool {
			return bm.Spreads[i].Timestamp.Before(bm.Spreads[j].Timestamp)
		})
		bm.Movements = []Movement{}
		for i := 1; i < len(bm.Spreads); i++ {
			prev, curr := bm.Spreads[i-1], bm.Spreads[i]
			bm.Movements = append(bm.Movements, Movement{
				Timestamp:       curr.Timestamp,
				HomeMovement:    curr.HomeSpread - prev.HomeSpread,
				AwayMovement:    curr.AwaySpread - prev.AwaySpread,
				HomePriceChange: curr.HomePrice - prev.HomePrice,
				AwayPriceChange: curr.AwayPrice - prev.AwayPrice,
			})
		}
	}
	return out
}

type BookQuote struct {
	BookmakerKey      string    `json:"bookmaker_key"`
	Bookmaker         string    `json:"bookmaker"`
	HomeSpread        float64   `json:"home_spread"`
	AwaySpread        float64   `json:"away_spread"`
	HomePrice         float64   `json:"home_price"`
	AwayPrice         float64   `json:"away_price"`
	SnapshotTimestamp time.Time `json:"snapshot_timestamp"`
}

// GameComparison latest quote of every bookmaker for one game.
type GameComparison struct {
	GameID       string       `json:"game_id"`
	Matchup      string       `json:"matchup"`
	CommenceTime time.Time    `json:"commence_time"`
	Bookmakers   []*BookQuote `json:"bookmakers"`
}

func Matchup(away, home string) string {
	return away + " @ " + home
}

// GroupComparison groups latest-spread rows by game, keeping row order.
func GroupComparison(rows []*repository.SpreadView) []*GameComparison {
	var out []*GameComparison
	byGame := make(map[string]*GameComparison)
	for _, row := range rows {
		g, ok := byGame[row.GameID]
		if !ok {
			g = &GameComparison{
				GameID:       row.GameID,
				Matchup:      Matchup(row.AwayTeam, row.HomeTeam),
				CommenceTime: row.CommenceTime,
			}
			byGame[row.GameID] = g
			out = append(out, g)
		}
		g.Bookmakers = append(g.Bookmakers, &BookQuote{
			BookmakerKey:      row.BookmakerKey,
			Bookmaker:         row.BookmakerTitle,
			HomeSpread:        row.HomeSpread,
			AwaySpread:        row.AwaySpread,
			HomePrice:         row.HomePrice,
			AwayPrice:         row.AwayPrice,
			SnapshotTimestamp: row.SnapshotTimestamp,
		})
	}
	return out
}

type ArbitrageBet struct {
	Bookmaker string  `json:"bookmaker"`
	Spread    float64 `json:"spread"`
	Price     float64 `json:"price"`
}

type ArbitrageOpportunity struct {
	GameID           string       `json:"game_id"`
	Game             string       `json:"game"`
	ProfitMargin     float64      `json:"profit_margin"`
	TotalImpliedProb float64      `json:"total_implied_prob"` // percent
	HomeBet          ArbitrageBet `json:"home_bet"`
	AwayBet          ArbitrageBet `json:"away_bet"`
}

// bestPrices highest price per side across bookmakers; the first bookmaker wins ties.
func bestPrices(g *GameComparison) (home, away ArbitrageBet) {
	home.Price, away.Price = math.Inf(-1), math.Inf(-1)
	for _, q := range g.Bookmakers {
		if q.HomePrice > home.Price {
			home = ArbitrageBet{Bookmaker: q.Bookmaker, Spread: q.HomeSpread, Price: q.HomePrice}
		}
		if q.AwayPrice > away.Price {
			away = ArbitrageBet{Bookmaker: q.Bookmaker, Spread: q.AwaySpread, Price: q.AwayPrice}
		}
	}
	return home, away
}

func arbitrageFor(g *GameComparison, threshold float64, priceFloor *float64) *ArbitrageOpportunity {
	if len(g.Bookmakers) < 2 {
		return nil
	}
	home, away := bestPrices(g)
	if priceFloor != nil && (home.Price <= *priceFloor || away.Price <= *priceFloor) {
		return nil
	}
	sum, err := oddsmath.ImpliedSum(home.Price, away.Price)
	if err != nil || !oddsmath.IsArbitrage(sum, threshold) {
		return nil
	}
	return &ArbitrageOpportunity{
		GameID:           g.GameID,
		Game:             g.Matchup,
		ProfitMargin:     oddsmath.ProfitPercent(sum),
		TotalImpliedProb: sum * 100,
		HomeBet:          home,
		AwayBet:          away,
	}
}

func sortByProfit(ops []*ArbitrageOpportunity) {
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].ProfitMargin > ops[j].ProfitMargin })
}

// FindArbitrage games with at least two bookmakers whose best prices imply a sum below 1.0, best first.
func FindArbitrage(games []*GameComparison) []*ArbitrageOpportunity {
	ops := []*ArbitrageOpportunity{}
	for _, g := range games {
		if op := arbitrageFor(g, ArbitrageThreshold, nil); op != nil {
			ops = append(ops, op)
		}
	}
	sortByProfit(ops)
	return ops
}

// FindQuickArbitrage the stricter screen: both best prices above -200, sum below 0.98, top three.
func FindQuickArbitrage(games []*GameComparison) []*ArbitrageOpportunity {
	floor := quickArbitragePriceMin
	ops := []*ArbitrageOpportunity{}
	for _, g := range games {
		if op := arbitrageFor(g, QuickArbitrageThreshold, &floor); op != nil {
			ops = append(ops, op)
		}
	}
	sortByProfit(ops)
	if len(ops) > quickArbitrageTop {
		ops = ops[:quickArbitrageTop]
	}
	return ops
}

// MovementSpotlight a game whose summed per-bookmaker max home movement passed the threshold.
type MovementSpotlight struct {
	GameID        string                `json:"game_id"`
	Game          string                `json:"game"`
	TotalMovement float64               `json:"total_movement"`
	Details       []*BookmakerMovements `json:"details"`
}

// NewSpotlight nil when the movement total does not exceed 0.5 points.
func NewSpotlight(gameID, matchup string, movements []*BookmakerMovements) *MovementSpotlight {
	total := 0.0
	for _, bm := range movements {
		total += bm.MaxHomeMovement()
	}
	if total <= spotlightThreshold {
		return nil
	}
	return &MovementSpotlight{GameID: gameID, Game: matchup, TotalMovement: total, Details: movements}
}

func SortSpotlights(s []*MovementSpotlight) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].TotalMovement > s[j].TotalMovement })
}

// OutcomeCount one bucket of the outcome histogram.
type OutcomeCount struct {
	Outcome SpreadOutcome `json:"outcome"`
	Count   int           `json:"count"`
}

// CountOutcomes classifies every row and sorts buckets by count, descending.
func CountOutcomes(rows []*repository.SpreadView) []OutcomeCount {
	counts := make(map[SpreadOutcome]int)
	var order []SpreadOutcome
	for _, row := range rows {
		o := ClassifySpreadOutcome(row.HomeScore, row.AwayScore, row.HomeSpread)
		if _, ok := counts[o]; !ok {
			order = append(order, o)
		}
		counts[o]++
	}
	out := make([]OutcomeCount, 0, len(order))
	for _, o := range order {
		out = append(out, OutcomeCount{Outcome: o, Count: counts[o]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
