// Package airtable implements the source-table client against the Airtable
// REST API: paginated list-all and single-record field updates.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"air2graph/internal/domain"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.airtable.com/v0"

// The API allows 5 requests per second per base; exceeding it triggers a
// 30-second penalty window.
const (
	requestsPerSecond = 5
	retryAfter429     = 30 * time.Second
)

// Client talks to one base. Safe for concurrent use: the shared limiter
// serializes request admission across goroutines.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	baseID     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a client for the given base.
func NewClient(apiKey, baseID string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		baseID:     baseID,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listResponse struct {
	Records []recordPayload `json:"records"`
	Offset  string          `json:"offset"`
}

type recordPayload struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

func (r recordPayload) toDomain() domain.SourceRecord {
	return domain.SourceRecord{
		ID:          r.ID,
		Fields:      r.Fields,
		CreatedTime: r.CreatedTime,
	}
}

// ListAllRecords fetches every record of a table, following the offset cursor
// until the API stops returning one.
func (c *Client) ListAllRecords(ctx context.Context, table string) ([]domain.SourceRecord, error) {
	var records []domain.SourceRecord
	offset := ""
	for {
		page, err := c.listPage(ctx, table, offset)
		if err != nil {
			return nil, err
		}
		for _, rec := range page.Records {
			records = append(records, rec.toDomain())
		}
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

// UpdateRecord patches the given fields of one record and returns the
// post-update state.
func (c *Client) UpdateRecord(ctx context.Context, table, id string, fields map[string]any) (domain.SourceRecord, error) {
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return domain.SourceRecord{}, fmt.Errorf("encode update: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table), url.PathEscape(id))
	respBody, err := c.do(ctx, http.MethodPatch, endpoint, body)
	if err != nil {
		return domain.SourceRecord{}, err
	}

	var rec recordPayload
	if err := json.Unmarshal(respBody, &rec); err != nil {
		return domain.SourceRecord{}, fmt.Errorf("decode record %s/%s: %w", table, id, err)
	}
	return rec.toDomain(), nil
}

func (c *Client) listPage(ctx context.Context, table, offset string) (*listResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table))
	if offset != "" {
		endpoint += "?offset=" + url.QueryEscape(offset)
	}

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var page listResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode table %q page: %w", table, err)
	}
	return &page, nil
}

// do issues one rate-limited request. A 429 waits out the penalty window and
// retries once; any other non-2xx status is an error.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close() //nolint:errcheck
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			c.logger.Warn("rate limited by source API, backing off",
				"endpoint", endpoint, "wait", retryAfter429)
			select {
			case <-time.After(retryAfter429):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, truncate(respBody, 256))
		}
		return respBody, nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Compile-time check that Client implements the table-client port.
var _ domain.TableClient = (*Client)(nil)
