package xrplmeta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/songzhibin97/xrplfeed/internal/data"
	"github.com/songzhibin97/xrplfeed/internal/data/normalizer"
	"github.com/songzhibin97/xrplfeed/internal/models"
	"github.com/songzhibin97/xrplfeed/internal/utils/request"
)

const (
	DefaultBaseURL   = "https://s2.xrplmeta.org"
	DefaultPageLimit = 100
	DefaultBatchSize = 100
	DefaultMaxTokens = 1000
)

type Logger interface {
	Error(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
}

// Options 拉取分页参数
type Options struct {
	PageLimit int
	BatchSize int
	MaxTokens int
}

// Client implements data.TokenFetcher against the xrplmeta REST API.
type Client struct {
	baseURL    string
	httpClient *resty.Client
	oracle     data.RateOracle
	logger     Logger
	opts       Options
}

func NewClient(baseURL string, oracle data.RateOracle, logger Logger, opts Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = DefaultPageLimit
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: request.Request,
		oracle:     oracle,
		logger:     logger,
		opts:       opts,
	}
}

type tokensResponse struct {
	Tokens *[]models.RawToken `json:"tokens"`
}

// FetchTokenPage implements data.TokenFetcher
func (c *Client) FetchTokenPage(ctx context.Context, params data.PageParams) ([]models.Token, error) {
	limit := params.Limit
	if limit <= 0 || limit > c.opts.PageLimit {
		limit = c.opts.PageLimit
	}

	raw, err := c.getTokens(ctx, params.Search, params.Offset, limit, false)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tokens: %w", err)
	}

	tokens := c.normalizeAll(ctx, raw)
	if len(tokens) > limit {
		tokens = tokens[:limit]
	}
	return tokens, nil
}

// FetchAllTokens implements data.TokenFetcher. The sweep stops at the first
// short batch or once MaxTokens records are collected; any failed batch
// aborts the whole sweep.
func (c *Client) FetchAllTokens(ctx context.Context, search string) ([]models.Token, error) {
	var all []models.RawToken

	for offset := 0; offset < c.opts.MaxTokens; offset += c.opts.BatchSize {
		batch, err := c.getTokens(ctx, search, offset, c.opts.BatchSize, true)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch all tokens at offset %d: %w", offset, err)
		}
		if len(batch) == 0 {
			break
		}

		all = append(all, batch...)
		if len(batch) < c.opts.BatchSize || len(all) >= c.opts.MaxTokens {
			break
		}
	}

	if len(all) > c.opts.MaxTokens {
		all = all[:c.opts.MaxTokens]
	}

	tokens := c.normalizeAll(ctx, all)
	c.logger.Info("fetched token sweep", "count", len(tokens), "search", search)
	return tokens, nil
}

func (c *Client) getTokens(ctx context.Context, search string, offset, limit int, sweep bool) ([]models.RawToken, error) {
	query := map[string]string{
		"sort_by":         "volume_24h",
		"limit":           strconv.Itoa(limit),
		"include_changes": "true",
		"expand_meta":     "true",
	}
	if offset > 0 || sweep {
		query["offset"] = strconv.Itoa(offset)
	}
	if sweep {
		query["min_trustlines"] = "0"
		query["min_volume_24h"] = "0"
	}
	if search != "" {
		query["name_like"] = search
		query["currency_like"] = search
		query["issuer_like"] = search
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(c.baseURL + "/tokens")
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var result tokensResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrMalformedResponse, err)
	}
	if result.Tokens == nil {
		return nil, fmt.Errorf("%w: missing tokens array", data.ErrMalformedResponse)
	}

	return *result.Tokens, nil
}

// normalizeAll resolves the reference rate once and sorts by 24h volume.
// An unavailable rate degrades priceXRP to the upstream value.
func (c *Client) normalizeAll(ctx context.Context, raw []models.RawToken) []models.Token {
	var rate float64
	if c.oracle != nil {
		r, err := c.oracle.ReferenceRate(ctx)
		if err != nil {
			c.logger.Error("reference rate unavailable", "error", err)
		} else {
			rate = r
		}
	}

	tokens := make([]models.Token, 0, len(raw))
	for _, r := range raw {
		tokens = append(tokens, normalizer.Normalize(r, rate))
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Volume24h > tokens[j].Volume24h
	})
	return tokens
}

// FetchServerStatus reads /server/status, filling defaults for absent fields.
func (c *Client) FetchServerStatus(ctx context.Context) (*models.ServerStatus, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(c.baseURL + "/server/status")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch server status: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch server status: unexpected status code: %d", resp.StatusCode())
	}

	var raw struct {
		Status          string  `json:"status"`
		Version         string  `json:"version"`
		Uptime          int64   `json:"uptime"`
		LedgerIndex     int64   `json:"ledger_index"`
		LedgerHash      string  `json:"ledger_hash"`
		CloseTime       string  `json:"close_time"`
		LoadFactor      float64 `json:"load_factor"`
		LedgerCloseTime float64 `json:"ledger_close_time"`
	}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch server status: %w: %v", data.ErrMalformedResponse, err)
	}

	now := time.Now().UTC()
	status := &models.ServerStatus{
		Status:    orDefault(raw.Status, "unknown"),
		Version:   orDefault(raw.Version, "0.0.0"),
		Uptime:    raw.Uptime,
		FetchedAt: now,
	}
	status.Ledger.Index = raw.LedgerIndex
	status.Ledger.Hash = raw.LedgerHash
	status.Ledger.CloseTime = orDefault(raw.CloseTime, now.Format(time.RFC3339))
	status.Load.Transactions = raw.LoadFactor
	if status.Load.Transactions == 0 {
		status.Load.Transactions = 1
	}
	status.Load.LedgerCloseTime = raw.LedgerCloseTime
	if status.Load.LedgerCloseTime == 0 {
		status.Load.LedgerCloseTime = 4
	}

	return status, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
