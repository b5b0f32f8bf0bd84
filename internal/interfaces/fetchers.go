package interfaces

import (
	"context"

	"SpreadSync/internal/model"
)

// OddsFetcher odds provider client; one call per fetch, no internal retry.
type OddsFetcher interface {
	FetchLiveOdds(ctx context.Context, req model.OddsRequest) ([]model.OddsGame, error)
	FetchHistoricalOdds(ctx context.Context, req model.OddsRequest) (*model.HistoricalOdds, error)
}

// ScoreFetcher final scores feed. season <= 0 means every season.
type ScoreFetcher interface {
	FetchScores(ctx context.Context, season int) ([]model.ScoreRecord, error)
}

// LanguageModel single-turn completion.
type LanguageModel interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}
