// Package scalebridge talks to the HTTP bridge that exposes a counting scale
// attached to a warehouse station.
package scalebridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
)

const weightPath = "get_weight"

const responseBodyReadLimit int64 = 1024

var (
	errBaseURLRequired = errors.New("scale bridge url is required")

	// ErrNoData is returned when the bridge has no reading to report yet.
	ErrNoData = errors.New("scale bridge has no reading")
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Client wraps the bridge's weight endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	now        func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClock overrides the clock used when a reading carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a bridge client for baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: timeout},
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Reading is one weighing as reported by the bridge. Pointer fields are
// null when the scale did not report them.
type Reading struct {
	NetKg           *float64  `json:"net_kg"`
	Pieces          *int      `json:"pcs"`
	UnitWeightGrams *float64  `json:"unit_weight_g"`
	SerialNo        string    `json:"serial_no"`
	Timestamp       time.Time `json:"-"`
}

// Current fetches the latest reading. A 204 or empty body is ErrNoData.
func (c *Client) Current(ctx context.Context) (*Reading, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "scale bridge client not configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+weightPath, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build scale request")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute scale request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, ErrNoData
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "scale request failed")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit*4))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read scale response")
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return nil, ErrNoData
	}

	var apiResp struct {
		Reading
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode scale response")
	}

	reading := apiResp.Reading
	reading.SerialNo = strings.TrimSpace(reading.SerialNo)
	reading.Timestamp = c.parseTimestamp(apiResp.Timestamp)
	return &reading, nil
}

func (c *Client) parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return c.now()
}
