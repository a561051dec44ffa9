// Package apiclient implements the External API Client from spec.md §4.4:
// point and batch calls against a third-party HTTP elevation API, with
// token-bucket rate limiting, a daily quota counter, and capped-backoff
// retries. No generic retry library in the retrieved corpus matches the
// specific policy here closely enough to be worth wrapping (see
// DESIGN.md), so the retry loop is hand-rolled against net/http.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jcom-dev/elevresolve/internal/model"
	"github.com/jcom-dev/elevresolve/internal/quota"
	"github.com/jcom-dev/elevresolve/internal/ratelimit"
)

const (
	maxRetries       = 2
	baseBackoff      = 100 * time.Millisecond
	maxTotalBackoff  = 2 * time.Second
)

// Client calls one configured HTTP elevation API provider.
type Client struct {
	provider model.Provider
	http     *http.Client
	limiters *ratelimit.Limiters
	quota    *quota.Counter
	logger   *slog.Logger
}

func New(provider model.Provider, httpClient *http.Client, limiters *ratelimit.Limiters, quotaCounter *quota.Counter, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{provider: provider, http: httpClient, limiters: limiters, quota: quotaCounter, logger: logger}
}

type pointRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type pointResponse struct {
	ElevationM *float64 `json:"elevation_m"`
}

type batchRequest struct {
	Points []pointRequest `json:"points"`
}

type batchResponse struct {
	Elevations []*float64 `json:"elevations"`
}

// Point implements the §4.4 point contract. A nil elevation with nil error
// means the API answered with an explicit no-data value.
func (c *Client) Point(ctx context.Context, lat, lon float64, deadline time.Time) (*float64, error) {
	if err := c.admit(ctx, deadline); err != nil {
		return nil, err
	}

	body, err := json.Marshal(pointRequest{Lat: lat, Lon: lon})
	if err != nil {
		return nil, model.NewError(model.KindLogicError, "encoding point request", err)
	}

	var resp pointResponse
	if err := c.doWithRetry(ctx, "/v1/point", body, &resp, deadline); err != nil {
		return nil, err
	}
	return resp.ElevationM, nil
}

// Batch implements the §4.4 batch contract: same length as points,
// order-preserving, NoData entries allowed as nil.
func (c *Client) Batch(ctx context.Context, points [][2]float64, deadline time.Time) ([]*float64, error) {
	limit := c.provider.BatchLimit
	if limit <= 0 {
		limit = 512
	}
	out := make([]*float64, 0, len(points))

	for start := 0; start < len(points); start += limit {
		end := start + limit
		if end > len(points) {
			end = len(points)
		}
		chunk := points[start:end]

		if err := c.admit(ctx, deadline); err != nil {
			return nil, err
		}

		req := batchRequest{Points: make([]pointRequest, len(chunk))}
		for i, p := range chunk {
			req.Points[i] = pointRequest{Lat: p[0], Lon: p[1]}
		}
		body, err := json.Marshal(req)
		if err != nil {
			return nil, model.NewError(model.KindLogicError, "encoding batch request", err)
		}

		var resp batchResponse
		if err := c.doWithRetry(ctx, "/v1/batch", body, &resp, deadline); err != nil {
			return nil, err
		}
		if len(resp.Elevations) != len(chunk) {
			return nil, model.NewError(model.KindLogicError,
				fmt.Sprintf("batch response length %d != request length %d", len(resp.Elevations), len(chunk)), nil)
		}
		out = append(out, resp.Elevations...)
	}

	return out, nil
}

// admit enforces the token bucket and daily quota ahead of issuing any
// HTTP call, per §4.4: a rate-limited or quota-exhausted request never
// reaches the network.
func (c *Client) admit(ctx context.Context, deadline time.Time) error {
	if c.limiters != nil && c.provider.RateLimitRPS > 0 {
		if err := c.limiters.Acquire(ctx, c.provider.ID, c.provider.RateLimitRPS, deadline); err != nil {
			return err
		}
	}
	if c.quota != nil && c.provider.DailyQuota > 0 {
		exhausted, err := c.quota.Increment(ctx, c.provider.ID, c.provider.DailyQuota, time.Now())
		if err != nil {
			c.logger.Warn("quota check failed, proceeding", "provider", c.provider.ID, "error", err)
		} else if exhausted {
			return model.NewError(model.KindQuotaExhausted, fmt.Sprintf("provider %s exhausted daily quota", c.provider.ID), nil)
		}
	}
	return nil
}

// doWithRetry issues one HTTP POST, retrying idempotent failures per
// §4.4: up to 2 retries on 5xx/network errors, exponential backoff from
// 100ms with full jitter, capped at 2s of total added latency; 4xx other
// than 429 is never retried.
func (c *Client) doWithRetry(ctx context.Context, path string, body []byte, out interface{}, deadline time.Time) error {
	correlationID := uuid.New().String()
	var totalBackoff time.Duration
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return model.NewError(model.KindTransient, "deadline exceeded before retry attempt", lastErr)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.Endpoint+path, bytes.NewReader(body))
		if err != nil {
			return model.NewError(model.KindLogicError, "building request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Correlation-ID", correlationID)
		if c.provider.AuthToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.provider.AuthToken)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if !c.shouldRetry(attempt, &totalBackoff) {
				return model.NewError(model.KindTransient, "calling external elevation API", err)
			}
			continue
		}

		status := resp.StatusCode
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if status >= 200 && status < 300 {
			if readErr != nil {
				return model.NewError(model.KindTransient, "reading response body", readErr)
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return model.NewError(model.KindLogicError, "decoding response JSON", err)
			}
			return nil
		}

		if status == http.StatusTooManyRequests {
			lastErr = model.NewError(model.KindRateLimited, "external API returned 429", nil)
			if !c.shouldRetry(attempt, &totalBackoff) {
				return lastErr
			}
			continue
		}
		if status >= 500 {
			lastErr = model.NewError(model.KindTransient, fmt.Sprintf("external API returned %d", status), nil)
			if !c.shouldRetry(attempt, &totalBackoff) {
				return lastErr
			}
			continue
		}

		// 4xx other than 429: not retryable, per §4.4.
		return model.NewError(model.KindLogicError, fmt.Sprintf("external API returned %d", status), nil)
	}

	return lastErr
}

// shouldRetry sleeps for this attempt's backoff (exponential from
// baseBackoff with full jitter) if another attempt remains and the total
// backoff budget (maxTotalBackoff) hasn't been exhausted; returns false
// when the caller should give up instead.
func (c *Client) shouldRetry(attempt int, totalBackoff *time.Duration) bool {
	if attempt >= maxRetries {
		return false
	}
	capDur := baseBackoff * time.Duration(math.Pow(2, float64(attempt)))
	jittered := time.Duration(rand.Int63n(int64(capDur) + 1))
	if *totalBackoff+jittered > maxTotalBackoff {
		return false
	}
	*totalBackoff += jittered
	time.Sleep(jittered)
	return true
}
