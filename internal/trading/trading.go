// Package trading is the client for the paper-trading control backend.
package trading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"livechart/internal/api"
	"livechart/internal/interfaces"
	"livechart/internal/types"
)

type Client struct {
	http  *api.Client
	retry *api.RetryConfig
}

var _ interfaces.TradingControl = (*Client)(nil)

// New returns a backend client. Reads are retried up to maxRetries extra
// times; start and stop commands are sent once.
func New(baseURL string, timeout time.Duration, maxRetries int, opts ...api.ClientOption) *Client {
	all := append([]api.ClientOption{
		api.WithBaseURL(strings.TrimRight(baseURL, "/")),
		api.WithTimeout(timeout),
		api.WithName("backend"),
	}, opts...)
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		http: api.NewClient(all...),
		retry: &api.RetryConfig{
			MaxAttempts: maxRetries + 1,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     2 * time.Second,
		},
	}
}

func (c *Client) Start(ctx context.Context, instrument, resolution string) (string, error) {
	body := map[string]string{"symbol": instrument, "timeframe": resolution}
	return c.command(ctx, "/live/start", body)
}

func (c *Client) Stop(ctx context.Context, instrument string) (string, error) {
	return c.command(ctx, "/live/stop", map[string]string{"symbol": instrument})
}

// command posts a control request. A reply carrying "error" is a rejection
// whatever the HTTP status.
func (c *Client) command(ctx context.Context, path string, body any) (string, error) {
	resp, err := c.http.POST(ctx, path, body)
	if err != nil {
		if he, ok := api.AsHTTPError(err); ok {
			var reply controlReply
			if json.Unmarshal(he.Body, &reply) == nil && reply.Error != "" {
				return "", &types.ControlRejectedError{Reason: reply.Error}
			}
		}
		return "", fmt.Errorf("%s: %w", path, err)
	}

	var reply controlReply
	if err := resp.ParseJSON(&reply); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	if reply.Error != "" {
		return "", &types.ControlRejectedError{Reason: reply.Error}
	}
	if reply.Message == "" {
		return "", fmt.Errorf("%s: %w: empty reply", path, types.ErrMalformedResponse)
	}
	return reply.Message, nil
}

func (c *Client) Status(ctx context.Context) (types.Status, error) {
	resp, err := c.get(ctx, "/live/status")
	if err != nil {
		return types.Status{}, err
	}

	var w wireStatus
	if err := json.Unmarshal(sanitizeJSON(resp.Body), &w); err != nil {
		return types.Status{}, fmt.Errorf("/live/status: %w: %v", types.ErrMalformedResponse, err)
	}
	return w.toStatus()
}

func (c *Client) ListLogs(ctx context.Context, source types.LogSource) ([]types.LogFile, error) {
	switch source {
	case types.LogSourceLive:
		resp, err := c.get(ctx, "/live-logs")
		if err != nil {
			return nil, err
		}
		var names []string
		if err := resp.ParseJSON(&names); err != nil {
			return nil, fmt.Errorf("/live-logs: %w", err)
		}
		out := make([]types.LogFile, 0, len(names))
		for _, n := range names {
			sym, tf := parseLogName(n)
			out = append(out, types.LogFile{ID: n, Source: source, Symbol: sym, Timeframe: tf})
		}
		return out, nil

	case types.LogSourceBacktest:
		resp, err := c.get(ctx, "/backtest-history")
		if err != nil {
			return nil, err
		}
		var runs []wireBacktestRun
		if err := resp.ParseJSON(&runs); err != nil {
			return nil, fmt.Errorf("/backtest-history: %w", err)
		}
		out := make([]types.LogFile, 0, len(runs))
		for _, r := range runs {
			out = append(out, types.LogFile{ID: r.File, Source: source, Symbol: r.Symbol, Timeframe: r.Timeframe, RunID: r.Timestamp})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown log source %q", source)
}

func (c *Client) ReadLog(ctx context.Context, source types.LogSource, fileID string) (types.LogContent, error) {
	if fileID == "" || strings.ContainsAny(fileID, `/\`) {
		return types.LogContent{}, fmt.Errorf("%w: invalid log name %q", types.ErrNotFound, fileID)
	}

	var path string
	switch source {
	case types.LogSourceLive:
		path = "/read-live-log/" + url.PathEscape(fileID)
	case types.LogSourceBacktest:
		path = "/read-log/" + url.PathEscape(fileID)
	default:
		return types.LogContent{}, fmt.Errorf("unknown log source %q", source)
	}

	resp, err := c.get(ctx, path)
	if err != nil {
		return types.LogContent{}, err
	}

	var w wireLog
	if err := json.Unmarshal(sanitizeJSON(resp.Body), &w); err != nil {
		return types.LogContent{}, fmt.Errorf("%s: %w: %v", path, types.ErrMalformedResponse, err)
	}

	content := types.LogContent{
		Trades:     make([]types.TradeRecord, 0, len(w.Trades)),
		Statistics: w.Statistics,
	}
	for i, t := range w.Trades {
		rec, err := t.toRecord(source)
		if err != nil {
			return types.LogContent{}, fmt.Errorf("%s: %w: trade %d: %v", path, types.ErrMalformedResponse, i, err)
		}
		content.Trades = append(content.Trades, rec)
	}
	return content, nil
}

func (c *Client) get(ctx context.Context, path string) (*api.Response, error) {
	req := api.NewRequest(http.MethodGet, path).WithContext(ctx)
	resp, err := c.http.DoWithRetry(req, c.retry)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", path, types.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return resp, nil
}
