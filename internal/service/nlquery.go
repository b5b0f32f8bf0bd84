package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"SpreadSync/internal/cache"
	"SpreadSync/internal/config"
	"SpreadSync/internal/interfaces"
	"SpreadSync/internal/metrics"
	"SpreadSync/internal/model"
	"SpreadSync/internal/repository"

	"github.com/sirupsen/logrus"
)

var (
	ErrLanguageModelDisabled = errors.New("language model is not configured")
	ErrUnsafeSQL             = errors.New("only a single SELECT or WITH statement can be executed")
	ErrEmptyQuestion         = errors.New("question is empty")
)

const (
	NoInsights        = "No insights available."
	insightSampleRows = 10
	sqlMaxTokens      = 1000
	insightMaxTokens  = 500
	chartMaxTokens    = 300
)

// QueryContext request-scoped identity for one dashboard call.
type QueryContext struct {
	RequestID    string
	UserID       string
	SportContext string
	StartedAt    time.Time
}

type SampleQuery struct {
	Title string `json:"title"`
	Query string `json:"query"`
}

var sampleQueries = []SampleQuery{
	{Title: "Latest Spreads for This Week", Query: "Show me the latest spreads for all games this week with team names and bookmaker names"},
	{Title: "Line Movements", Query: "Show me games where the spread has moved more than 1 point with DraftKings or FanDuel"},
	{Title: "Arbitrage Opportunities", Query: "Find games where different bookmakers have significantly different spreads for the same game"},
	{Title: "Completed Games Analysis", Query: "Show me completed games from last week with final scores and spread results"},
	{Title: "Bookmaker Comparison", Query: "Compare spreads between DraftKings and FanDuel for upcoming games"},
	{Title: "High Scoring Games", Query: "Show me games with totals over 50 points and their over/under lines"},
	{Title: "Recent Line Updates", Query: "Show me the most recent spread updates in the last 24 hours"},
	{Title: "Team Performance", Query: "Show me how the Chiefs have performed against the spread this season"},
}

const schemaDescription = `NFL Betting Analytics Database Schema (PostgreSQL, all timestamps UTC):

1. games: game_id, sport_id, commence_time, home_team_id, away_team_id, home_score, away_score, status ('scheduled' or 'completed')
2. spreads: spread_id, game_id, bookmaker_id, home_spread, away_spread, home_price, away_price, last_update, snapshot_timestamp, is_latest
3. teams: team_id, team_name, sport_id
4. bookmakers: bookmaker_id, bookmaker_key, bookmaker_title
5. moneylines: moneyline_id, game_id, bookmaker_id, home_price, away_price, draw_price, snapshot_timestamp
6. totals: total_id, game_id, bookmaker_id, total_line, over_price, under_price, snapshot_timestamp
7. sports: sport_id, sport_key, sport_title
8. api_snapshots: snapshot_id, sport_key, snapshot_timestamp, previous_timestamp, next_timestamp, games_count, total_odds_count

Relationships:
- games.home_team_id -> teams.team_id
- games.away_team_id -> teams.team_id
- spreads/moneylines/totals.game_id -> games.game_id
- spreads/moneylines/totals.bookmaker_id -> bookmakers.bookmaker_id
- The current line for a game and bookmaker is the row with the greatest snapshot_timestamp.`

const sqlSystemPrompt = "You are an expert SQL developer for an NFL betting analytics database. You answer with a single PostgreSQL SELECT statement and nothing else."

// QueryService natural-language questions to read-only SQL, plus insights and chart hints.
type QueryService struct {
	llm     interfaces.LanguageModel
	queries repository.QueryRepository
	cache   cache.Cache
	maxRows int
	logger  *logrus.Logger
}

// NewQueryService llm may be nil; model-backed calls then return ErrLanguageModelDisabled.
func NewQueryService(llm interfaces.LanguageModel, queries repository.QueryRepository, c cache.Cache, cfg config.ReportsConfig, logger *logrus.Logger) *QueryService {
	if c == nil {
		c = cache.Noop{}
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 1000
	}
	return &QueryService{
		llm:     llm,
		queries: queries,
		cache:   c,
		maxRows: maxRows,
		logger:  logger,
	}
}

func (s *QueryService) Enabled() bool {
	return s.llm != nil
}

func SampleQueries() []SampleQuery {
	out := make([]SampleQuery, len(sampleQueries))
	copy(out, sampleQueries)
	return out
}

// GenerateSQL asks the model for a statement; answers are cached per question.
func (s *QueryService) GenerateSQL(ctx context.Context, qc QueryContext, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if s.llm == nil {
		return "", ErrLanguageModelDisabled
	}

	key := cache.Key("sql", promptHash(qc.SportContext, question))
	if sql, ok := s.cache.Get(ctx, key); ok {
		return sql, nil
	}

	answer, err := s.llm.Complete(ctx, sqlSystemPrompt, buildSQLPrompt(question, qc.SportContext), sqlMaxTokens)
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}
	sql := StripSQLFences(answer)
	if sql == "" {
		return "", errors.New("language model returned an empty statement")
	}
	s.cache.Set(ctx, key, sql)
	s.logger.WithFields(logrus.Fields{
		"request_id": qc.RequestID,
		"user_id":    qc.UserID,
	}).Debug("generated sql")
	return sql, nil
}

func buildSQLPrompt(question, sportContext string) string {
	var b strings.Builder
	b.WriteString("Convert the following request into a PostgreSQL query.\n\nDatabase Schema:\n")
	b.WriteString(schemaDescription)
	if sportContext != "" {
		fmt.Fprintf(&b, "\n\nSport context: %s", sportContext)
	}
	fmt.Fprintf(&b, "\n\nUser Request: %s\n\n", question)
	b.WriteString(`Requirements:
1. Return ONLY the SQL query, no explanations
2. Use proper JOINs for team names and bookmaker names
3. Include appropriate date filters and ordering
4. Limit results to reasonable amounts (usually <= 100 rows)
5. Use descriptive column aliases for better readability
6. Handle time zones appropriately (data is in UTC)

SQL Query:`)
	return b.String()
}

func promptHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// StripSQLFences removes a leading ```sql or ``` and a trailing ``` from a model answer.
func StripSQLFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```sql") {
		s = s[len("```sql"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ValidateSelect accepts exactly one SELECT or WITH statement; a single trailing semicolon is dropped.
func ValidateSelect(statement string) (string, error) {
	stmt := strings.TrimSpace(statement)
	stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
	if stmt == "" || strings.Contains(stmt, ";") {
		return "", ErrUnsafeSQL
	}
	fields := strings.Fields(stmt)
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
		return stmt, nil
	default:
		return "", ErrUnsafeSQL
	}
}

// Execute runs the statement read-only and records the attempt in query history.
func (s *QueryService) Execute(ctx context.Context, qc QueryContext, prompt, statement string) (*repository.QueryResult, error) {
	stmt, err := ValidateSelect(statement)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("rejected").Inc()
		s.recordHistory(ctx, qc, prompt, statement, false)
		return nil, err
	}

	result, err := s.queries.ExecuteReadOnly(ctx, stmt, s.maxRows)
	s.recordHistory(ctx, qc, prompt, stmt, err == nil)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("execute query: %w", err)
	}
	metrics.QueriesTotal.WithLabelValues("ok").Inc()
	s.logger.WithFields(logrus.Fields{
		"request_id": qc.RequestID,
		"rows":       len(result.Rows),
		"truncated":  result.Truncated,
		"elapsed_ms": time.Since(qc.StartedAt).Milliseconds(),
	}).Info("query executed")
	return result, nil
}

// recordHistory failures are logged only.
func (s *QueryService) recordHistory(ctx context.Context, qc QueryContext, prompt, statement string, success bool) {
	err := s.queries.InsertHistory(ctx, &model.QueryHistory{
		Prompt:           prompt,
		SQLQuery:         statement,
		UserID:           qc.UserID,
		SportContext:     qc.SportContext,
		ExecutionSuccess: success,
	})
	if err != nil {
		s.logger.WithError(err).WithField("request_id", qc.RequestID).Warn("failed to record query history")
	}
}

func (s *QueryService) RecentQueries(ctx context.Context, limit int) ([]*model.QueryHistory, error) {
	return s.queries.RecentHistory(ctx, limit)
}

// Insights asks the model for 3-5 bullet points on the first rows of a result.
func (s *QueryService) Insights(ctx context.Context, question string, result *repository.QueryResult) (string, error) {
	if result == nil || len(result.Rows) == 0 {
		return NoInsights, nil
	}
	if s.llm == nil {
		return "", ErrLanguageModelDisabled
	}

	prompt := fmt.Sprintf(`Analyze this NFL betting data and provide 3-5 key insights. Be specific and actionable.

Original Query: %s

Data Sample:
%s
Total Rows: %d

Provide insights in bullet points focusing on:
- Notable trends or patterns
- Significant line movements
- Potential betting opportunities
- Anomalies or interesting findings

Keep insights concise and relevant to NFL betting analysis.`, question, RenderTable(result, insightSampleRows), len(result.Rows))

	answer, err := s.llm.Complete(ctx, "", prompt, insightMaxTokens)
	if err != nil {
		return "", fmt.Errorf("generate insights: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// RenderTable aligned text table of at most limit rows.
func RenderTable(result *repository.QueryResult, limit int) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(result.Columns, "\t"))
	for i, row := range result.Rows {
		if limit > 0 && i >= limit {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = cellString(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()
	return buf.String()
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// CSVFileName export name stamped with t.
func CSVFileName(t time.Time) string {
	return "nfl_report_" + t.Format("20060102_150405") + ".csv"
}

// ExportCSV header row then one record per result row.
func ExportCSV(w io.Writer, result *repository.QueryResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(result.Columns); err != nil {
		return err
	}
	for _, row := range result.Rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = cellString(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const (
	ChartLine    = "line"
	ChartBar     = "bar"
	ChartScatter = "scatter"
	ChartPie     = "pie"
	ChartTable   = "table"
)

var chartTypes = map[string]bool{ChartLine: true, ChartBar: true, ChartScatter: true, ChartPie: true, ChartTable: true}

type ChartConfig struct {
	ChartType string `json:"chart_type"`
	X         string `json:"x,omitempty"`
	Y         string `json:"y,omitempty"`
	Title     string `json:"title,omitempty"`
	Source    string `json:"source"` // model or fallback
}

// SuggestChart asks the model for a visualisation and falls back to column-kind rules
// when the model is absent, fails, or names columns the result does not have.
func (s *QueryService) SuggestChart(ctx context.Context, question string, result *repository.QueryResult) *ChartConfig {
	if result == nil || len(result.Rows) == 0 {
		return &ChartConfig{ChartType: ChartTable, Title: question, Source: "fallback"}
	}
	if s.llm != nil {
		cfg, err := s.modelChart(ctx, question, result)
		if err == nil {
			return cfg
		}
		s.logger.WithError(err).Debug("chart suggestion rejected, using fallback")
	}
	cfg := FallbackChart(result)
	cfg.Title = question
	return cfg
}

func (s *QueryService) modelChart(ctx context.Context, question string, result *repository.QueryResult) (*ChartConfig, error) {
	prompt := fmt.Sprintf(`Suggest one chart for this query result.

Question: %s
Columns: %s
Sample:
%s
Answer with JSON only: {"chart_type": "line|bar|scatter|pie|table", "x": "<column>", "y": "<column>", "title": "<title>"}`,
		question, strings.Join(result.Columns, ", "), RenderTable(result, 5))

	answer, err := s.llm.Complete(ctx, "", prompt, chartMaxTokens)
	if err != nil {
		return nil, err
	}
	raw := StripSQLFences(strings.TrimPrefix(strings.TrimSpace(answer), "```json"))
	var cfg ChartConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("decode chart config: %w", err)
	}
	if err := validateChart(&cfg, result.Columns); err != nil {
		return nil, err
	}
	cfg.Source = "model"
	return &cfg, nil
}

func validateChart(cfg *ChartConfig, columns []string) error {
	cfg.ChartType = strings.ToLower(strings.TrimSpace(cfg.ChartType))
	if !chartTypes[cfg.ChartType] {
		return fmt.Errorf("unknown chart type %q", cfg.ChartType)
	}
	if cfg.ChartType == ChartTable {
		return nil
	}
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	if !known[cfg.X] {
		return fmt.Errorf("unknown x column %q", cfg.X)
	}
	if !known[cfg.Y] {
		return fmt.Errorf("unknown y column %q", cfg.Y)
	}
	return nil
}

type columnKind int

const (
	kindOther columnKind = iota
	kindTime
	kindNumeric
	kindText
)

// FallbackChart time-like + numeric -> line, text + numeric -> bar, otherwise table.
func FallbackChart(result *repository.QueryResult) *ChartConfig {
	var timeCol, textCol, numCol string
	for i, col := range result.Columns {
		switch columnKindOf(col, result, i) {
		case kindTime:
			if timeCol == "" {
				timeCol = col
			}
		case kindNumeric:
			if numCol == "" {
				numCol = col
			}
		case kindText:
			if textCol == "" {
				textCol = col
			}
		}
	}
	switch {
	case timeCol != "" && numCol != "":
		return &ChartConfig{ChartType: ChartLine, X: timeCol, Y: numCol, Source: "fallback"}
	case textCol != "" && numCol != "":
		return &ChartConfig{ChartType: ChartBar, X: textCol, Y: numCol, Source: "fallback"}
	default:
		return &ChartConfig{ChartType: ChartTable, Source: "fallback"}
	}
}

func isTimeColumn(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "time") || strings.Contains(lower, "date")
}

func columnKindOf(name string, result *repository.QueryResult, idx int) columnKind {
	for _, row := range result.Rows {
		if idx >= len(row) || row[idx] == nil {
			continue
		}
		switch v := row[idx].(type) {
		case time.Time:
			return kindTime
		case int, int32, int64, float32, float64:
			if isTimeColumn(name) {
				return kindOther
			}
			return kindNumeric
		case bool:
			return kindOther
		case string:
			if isTimeColumn(name) {
				if _, ok := parseTimeValue(v); ok {
					return kindTime
				}
			}
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				return kindNumeric
			}
			return kindText
		default:
			return kindOther
		}
	}
	return kindOther
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05", "2006-01-02"}

func parseTimeValue(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatForDisplay renders time-like columns as 01/02 03:04 PM, price and spread numbers
// as signed one-decimal values and scores as integers. The input is not modified.
func FormatForDisplay(result *repository.QueryResult) *repository.QueryResult {
	out := &repository.QueryResult{Columns: result.Columns, Truncated: result.Truncated, Rows: make([][]interface{}, len(result.Rows))}
	for r, row := range result.Rows {
		formatted := make([]interface{}, len(row))
		for i, v := range row {
			name := ""
			if i < len(result.Columns) {
				name = result.Columns[i]
			}
			formatted[i] = formatCell(name, v)
		}
		out.Rows[r] = formatted
	}
	return out
}

func formatCell(column string, v interface{}) interface{} {
	if v == nil {
		return ""
	}
	lower := strings.ToLower(column)
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(displayTimeLayout)
	}
	if strings.Contains(lower, "time") {
		if s, ok := v.(string); ok {
			if t, ok := parseTimeValue(s); ok {
				return t.UTC().Format(displayTimeLayout)
			}
		}
	}

	f, isFloat := floatValue(v)
	if !isFloat {
		return v
	}
	switch {
	case strings.Contains(lower, "price") || strings.Contains(lower, "spread"):
		return fmt.Sprintf("%+.1f", f)
	case strings.Contains(lower, "score"):
		return fmt.Sprintf("%d", int(f))
	default:
		return v
	}
}

// floatValue floats and numeric strings (NUMERIC columns may arrive as text).
func floatValue(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
