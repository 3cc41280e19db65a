package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxErrorBody      = 512
)

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// Client talks to a rankboard server.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: timeout},
	}
}

// Health checks that the server answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/healthz", nil, nil, http.StatusOK)
}

// UpdateScore sends one update and returns the resulting score as sent by
// the server.
func (c *Client) UpdateScore(ctx context.Context, u Update) (json.Number, error) {
	path := "/customer/" + strconv.FormatInt(u.CustomerID, 10) + "/score/" + url.PathEscape(u.Delta)
	var score json.Number
	hdr := http.Header{}
	if u.IdempotencyKey != "" {
		hdr.Set(idempotencyHeader, u.IdempotencyKey)
	}
	err := c.doHeader(ctx, "update score", http.MethodPost, path, hdr, nil, &score, http.StatusOK)
	return score, err
}

// SubmitBatch queues updates through /scores/batch and returns how many the
// server accepted, including on a partial refusal.
func (c *Client) SubmitBatch(ctx context.Context, updates []Update) (int, error) {
	var resp struct {
		Accepted int `json:"accepted"`
	}
	body := struct {
		Updates []Update `json:"updates"`
	}{Updates: updates}
	err := c.do(ctx, "submit batch", http.MethodPost, "/scores/batch", body, &resp, http.StatusAccepted)
	// Refused batches still report how many updates were queued.
	var se *StatusError
	if errors.As(err, &se) {
		_ = json.Unmarshal([]byte(se.Body), &resp)
	}
	return resp.Accepted, err
}

// Rebuild asks the server to publish a snapshot now.
func (c *Client) Rebuild(ctx context.Context) (RebuildResult, error) {
	var out RebuildResult
	err := c.do(ctx, "rebuild", http.MethodPost, "/leaderboard/rebuild", nil, &out, http.StatusOK)
	return out, err
}

// RebuildResult mirrors the rebuild response.
type RebuildResult struct {
	Rebuilt    bool   `json:"rebuilt"`
	Generation uint64 `json:"generation"`
	Ranked     int    `json:"ranked"`
}

// Range fetches ranks start..end.
func (c *Client) Range(ctx context.Context, start, end int) ([]Entry, error) {
	var out []Entry
	path := fmt.Sprintf("/leaderboard?start=%d&end=%d", start, end)
	err := c.do(ctx, "range", http.MethodGet, path, nil, &out, http.StatusOK)
	return out, err
}

// Customer fetches one customer's entry.
func (c *Client) Customer(ctx context.Context, id int64) (Entry, error) {
	var out Entry
	err := c.do(ctx, "customer", http.MethodGet, "/customer/"+strconv.FormatInt(id, 10), nil, &out, http.StatusOK)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any, want int) error {
	return c.doHeader(ctx, op, method, path, nil, in, out, want)
}

func (c *Client) doHeader(ctx context.Context, op, method, path string, hdr http.Header, in, out any, want int) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}
