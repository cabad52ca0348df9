package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/verte-zerg/streamdash/internal/logging"
	"github.com/verte-zerg/streamdash/internal/model"
)

const (
	defaultAPITimeout = 60 * time.Second
	maxResponseBytes  = 64 << 20
)

// APIConfig configures the remote viewership source.
type APIConfig struct {
	Endpoint string
	Key      string
	Timeout  time.Duration
	// Delay is waited before every request.
	Delay time.Duration
}

// APIRecord is one event as returned by the viewership API.
type APIRecord struct {
	Timestamp flexString `json:"Timestamp"`
	IPAddress flexString `json:"ip_address"`
	UserID    flexString `json:"user_id"`
	Country   flexString `json:"country"`
	Sport     flexString `json:"sport"`
	Duration  flexString `json:"duration"`
	Device    flexString `json:"device"`
	Channel   flexString `json:"channel"`
}

// flexString accepts JSON strings, numbers and null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		return fmt.Errorf("unexpected json value %s", data)
	}
	*f = flexString(data)
	return nil
}

// APIClient fetches viewing events over HTTP behind a circuit breaker.
type APIClient struct {
	cfg    APIConfig
	client *http.Client
	cb     *gobreaker.CircuitBreaker[[]APIRecord]
}

// NewAPIClient creates a client for the configured endpoint.
func NewAPIClient(cfg APIConfig) *APIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}
	cb := gobreaker.NewCircuitBreaker[[]APIRecord](gobreaker.Settings{
		Name:        "viewership-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return &APIClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		cb:     cb,
	}
}

// Name implements Provider.
func (c *APIClient) Name() string {
	return "api"
}

// Load implements Provider. Any transport or status failure is reported as ErrNoData.
func (c *APIClient) Load(ctx context.Context) (model.Dataset, LoadStats, error) {
	if strings.TrimSpace(c.cfg.Endpoint) == "" || strings.TrimSpace(c.cfg.Key) == "" {
		logging.Warn().Msg("api key or endpoint not provided")
		return model.Dataset{}, LoadStats{}, fmt.Errorf("api key or endpoint not provided: %w", ErrNoData)
	}
	if err := wait(ctx, c.cfg.Delay); err != nil {
		return model.Dataset{}, LoadStats{}, err
	}
	records, err := c.cb.Execute(func() ([]APIRecord, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		logging.Warn().Err(err).Str("endpoint", c.cfg.Endpoint).Msg("api source unavailable")
		return model.Dataset{}, LoadStats{}, fmt.Errorf("failed to fetch %s: %w: %w", c.cfg.Endpoint, ErrNoData, err)
	}
	if len(records) == 0 {
		return model.Dataset{}, LoadStats{}, fmt.Errorf("empty api response: %w", ErrNoData)
	}
	events, stats := clean(recordsToRows(records))
	logging.Debug().Int("read", stats.Read).Int("kept", stats.Kept).Msg("loaded api records")
	return model.NewDataset(events), stats, nil
}

func (c *APIClient) fetch(ctx context.Context) ([]APIRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Key)
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected api status: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read api response: %w", err)
	}
	var records []APIRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode api response: %w", err)
	}
	return records, nil
}

func recordsToRows(records []APIRecord) []rawRow {
	rows := make([]rawRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, rawRow{
			timestamp: string(r.Timestamp),
			viewerIP:  string(r.IPAddress),
			userID:    string(r.UserID),
			country:   string(r.Country),
			sport:     string(r.Sport),
			duration:  string(r.Duration),
			device:    string(r.Device),
			channel:   string(r.Channel),
		})
	}
	return rows
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsNoData reports whether err means the source had nothing to offer.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}
