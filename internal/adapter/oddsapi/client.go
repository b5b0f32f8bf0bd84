package oddsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"SpreadSync/internal/config"
	"SpreadSync/internal/metrics"
	"SpreadSync/internal/model"
	"SpreadSync/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ErrStatus the provider answered with a non-2xx status.
var ErrStatus = errors.New("odds api returned non-2xx status")

// Client The Odds API v4. Each call is a single GET; retries belong to the caller.
// Live and historical calls sit behind separate breakers: a historical range treats every
// timestamp as its own attempt, so provider status errors there never open the circuit.
type Client struct {
	cfg               *config.OddsAPIConfig
	httpClient        *http.Client
	breaker           *gobreaker.CircuitBreaker
	historicalBreaker *gobreaker.CircuitBreaker
	logger            *logrus.Logger
}

func NewClient(cfg *config.OddsAPIConfig, logger *logrus.Logger) *Client {
	return &Client{
		cfg:               cfg,
		httpClient:        httpclient.NewHTTPClient(&cfg.HTTPConfig, logger),
		breaker:           httpclient.NewBreaker("odds-api", 5, 30*time.Second, logger),
		historicalBreaker: httpclient.NewTolerantBreaker("odds-api-historical", 5, 30*time.Second, logger, attemptError),
		logger:            logger,
	}
}

// attemptError errors that belong to one request rather than to the provider's health.
func attemptError(err error) bool {
	return errors.Is(err, ErrStatus) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// FetchLiveOdds GET /sports/{sport}/odds
func (c *Client) FetchLiveOdds(ctx context.Context, req model.OddsRequest) ([]model.OddsGame, error) {
	req = c.withDefaults(req)
	body, err := c.get(ctx, c.breaker, "live", fmt.Sprintf("/sports/%s/odds", url.PathEscape(req.Sport)), c.params(req))
	if err != nil {
		return nil, err
	}
	var games []model.OddsGame
	if err := json.Unmarshal(body, &games); err != nil {
		return nil, fmt.Errorf("decode live odds: %w", err)
	}
	return games, nil
}

// FetchHistoricalOdds GET /historical/sports/{sport}/odds?date=...; the cursor fields are kept as returned.
func (c *Client) FetchHistoricalOdds(ctx context.Context, req model.OddsRequest) (*model.HistoricalOdds, error) {
	req = c.withDefaults(req)
	if req.Date.IsZero() {
		return nil, errors.New("historical fetch requires a date")
	}
	params := c.params(req)
	params.Set("date", req.Date.UTC().Format(time.RFC3339))

	body, err := c.get(ctx, c.historicalBreaker, "historical", fmt.Sprintf("/historical/sports/%s/odds", url.PathEscape(req.Sport)), params)
	if err != nil {
		return nil, err
	}
	var snapshot model.HistoricalOdds
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("decode historical odds: %w", err)
	}
	snapshot.Raw = body
	return &snapshot, nil
}

func (c *Client) withDefaults(req model.OddsRequest) model.OddsRequest {
	if req.Sport == "" {
		req.Sport = c.cfg.Sport
	}
	if len(req.Regions) == 0 {
		req.Regions = c.cfg.Regions
	}
	if len(req.Markets) == 0 {
		req.Markets = c.cfg.Markets
	}
	if len(req.Bookmakers) == 0 {
		req.Bookmakers = c.cfg.Bookmakers
	}
	return req
}

func (c *Client) params(req model.OddsRequest) url.Values {
	params := url.Values{}
	params.Set("apiKey", c.cfg.APIKey)
	params.Set("regions", strings.Join(req.Regions, ","))
	params.Set("markets", strings.Join(req.Markets, ","))
	params.Set("dateFormat", "iso")
	params.Set("oddsFormat", "american")
	if len(req.Bookmakers) > 0 {
		params.Set("bookmakers", strings.Join(req.Bookmakers, ","))
	}
	return params
}

func (c *Client) get(ctx context.Context, breaker *gobreaker.CircuitBreaker, endpoint, path string, params url.Values) ([]byte, error) {
	endpointURL := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + params.Encode()

	result, err := breaker.Execute(func() (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", path, err)
		}
		defer resp.Body.Close()

		c.recordQuota(resp.Header)
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, excerpt(body))
		}
		return body, nil
	})
	if err != nil {
		metrics.OddsAPIRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}
	metrics.OddsAPIRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return result.([]byte), nil
}

func (c *Client) recordQuota(h http.Header) {
	remaining := h.Get("x-requests-remaining")
	if remaining == "" {
		return
	}
	c.logger.WithFields(logrus.Fields{
		"requests_remaining": remaining,
		"requests_used":      h.Get("x-requests-used"),
	}).Info("odds api quota")
	if v, err := strconv.ParseFloat(remaining, 64); err == nil {
		metrics.OddsAPIRequestsRemaining.Set(v)
	}
}

func excerpt(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
