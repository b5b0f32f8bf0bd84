package model

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	MarketSpreads = "spreads"
	MarketH2H     = "h2h"
	MarketTotals  = "totals"
)

// OddsGame one event as returned by the odds provider.
type OddsGame struct {
	ID           string          `json:"id"`
	SportKey     string          `json:"sport_key"`
	SportTitle   string          `json:"sport_title,omitempty"`
	CommenceTime time.Time       `json:"commence_time"`
	HomeTeam     string          `json:"home_team"`
	AwayTeam     string          `json:"away_team"`
	Bookmakers   []OddsBookmaker `json:"bookmakers"`
}

type OddsBookmaker struct {
	Key        string       `json:"key"`
	Title      string       `json:"title"`
	LastUpdate time.Time    `json:"last_update"`
	Markets    []OddsMarket `json:"markets"`
}

type OddsMarket struct {
	Key        string        `json:"key"`
	LastUpdate *time.Time    `json:"last_update,omitempty"`
	Outcomes   []OddsOutcome `json:"outcomes"`
}

type OddsOutcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// HistoricalOdds envelope of /historical/sports/{sport}/odds. Raw keeps the body verbatim.
type HistoricalOdds struct {
	Timestamp         time.Time       `json:"timestamp"`
	PreviousTimestamp *time.Time      `json:"previous_timestamp"`
	NextTimestamp     *time.Time      `json:"next_timestamp"`
	Data              []OddsGame      `json:"data"`
	Raw               json.RawMessage `json:"-"`
}

// OddsRequest query for one fetch. Date is only used for historical calls.
type OddsRequest struct {
	Sport      string
	Regions    []string
	Markets    []string
	Bookmakers []string
	Date       time.Time
}

// OddsPayload unit of ingestion: everything in it commits or rolls back together.
type OddsPayload struct {
	SportKey     string
	SnapshotTime time.Time
	Live         bool
	Games        []OddsGame
	Snapshot     *HistoricalOdds // nil for live fetches
}

type SpreadQuote struct {
	HomeSpread, AwaySpread float64
	HomePrice, AwayPrice   float64
}

type MoneylineQuote struct {
	HomePrice, AwayPrice float64
	DrawPrice            *float64
}

type TotalQuote struct {
	Line                  float64
	OverPrice, UnderPrice float64
}

// Market returns the first market with the given key.
func (b *OddsBookmaker) Market(key string) *OddsMarket {
	for i := range b.Markets {
		if b.Markets[i].Key == key {
			return &b.Markets[i]
		}
	}
	return nil
}

// SpreadQuote picks the outcomes named exactly after the home and away teams.
// Unmatched names are ignored; ok is false unless both sides were found.
func (m *OddsMarket) SpreadQuote(home, away string) (q SpreadQuote, ok bool, err error) {
	var foundHome, foundAway bool
	for _, o := range m.Outcomes {
		switch o.Name {
		case home:
			if o.Point == nil {
				return q, false, fmt.Errorf("spread outcome %q has no point", o.Name)
			}
			q.HomeSpread, q.HomePrice, foundHome = *o.Point, o.Price, true
		case away:
			if o.Point == nil {
				return q, false, fmt.Errorf("spread outcome %q has no point", o.Name)
			}
			q.AwaySpread, q.AwayPrice, foundAway = *o.Point, o.Price, true
		}
	}
	return q, foundHome && foundAway, nil
}

func (m *OddsMarket) MoneylineQuote(home, away string) (q MoneylineQuote, ok bool) {
	var foundHome, foundAway bool
	for _, o := range m.Outcomes {
		switch o.Name {
		case home:
			q.HomePrice, foundHome = o.Price, true
		case away:
			q.AwayPrice, foundAway = o.Price, true
		case "Draw":
			price := o.Price
			q.DrawPrice = &price
		}
	}
	return q, foundHome && foundAway
}

func (m *OddsMarket) TotalQuote() (q TotalQuote, ok bool, err error) {
	var foundOver, foundUnder bool
	for _, o := range m.Outcomes {
		if o.Name != "Over" && o.Name != "Under" {
			continue
		}
		if o.Point == nil {
			return q, false, fmt.Errorf("total outcome %q has no point", o.Name)
		}
		q.Line = *o.Point
		if o.Name == "Over" {
			q.OverPrice, foundOver = o.Price, true
		} else {
			q.UnderPrice, foundUnder = o.Price, true
		}
	}
	return q, foundOver && foundUnder, nil
}

// ScoreRecord one final (or pending) game from the scores feed, keyed by team abbreviations.
type ScoreRecord struct {
	Season    int
	GameDay   time.Time
	HomeTeam  string
	AwayTeam  string
	HomeScore *int
	AwayScore *int
}

// HasFinal both scores present.
func (r ScoreRecord) HasFinal() bool {
	return r.HomeScore != nil && r.AwayScore != nil
}
