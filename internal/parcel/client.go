package parcel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/circuitbreaker"
	"github.com/rs/zerolog"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxFailures int
	OpenTimeout time.Duration
}

// Client calls the provider behind a circuit breaker. A missing parcel is
// not an upstream failure and does not trip the breaker.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	breaker    *circuitbreaker.Breaker
	logger     zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:        "parcel",
			MaxFailures: cfg.MaxFailures,
			Timeout:     cfg.OpenTimeout,
			IsFailure: func(err error) bool {
				return !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled)
			},
		}, logger),
		logger: logger.With().Str("component", "parcel").Logger(),
	}
}

func (c *Client) SearchByAPN(ctx context.Context, q APNQuery) ([]Parcel, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("apn is required")
	}

	params := url.Values{}
	params.Set("parcelnumb", strings.TrimSpace(q.APN))
	if p := q.path(); p != "" {
		params.Set("path", p)
	}

	return c.search(ctx, "/parcels/apn", params)
}

func (c *Client) SearchByAddress(ctx context.Context, address string) ([]Parcel, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}

	params := url.Values{}
	params.Set("query", address)

	return c.search(ctx, "/parcels/address", params)
}

func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

func (c *Client) Breaker() *circuitbreaker.Breaker {
	return c.breaker
}

func (c *Client) search(ctx context.Context, path string, params url.Values) ([]Parcel, error) {
	var parcels []Parcel

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		parcels, err = c.do(ctx, path, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	return parcels, nil
}

func (c *Client) do(ctx context.Context, path string, params url.Values) ([]Parcel, error) {
	params.Set("token", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to parcel provider: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Parcel provider call")

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("parcel provider returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(decoded.Parcels.Features) == 0 {
		return nil, ErrNotFound
	}

	parcels := make([]Parcel, 0, len(decoded.Parcels.Features))
	for _, f := range decoded.Parcels.Features {
		parcels = append(parcels, f.Properties.Fields.normalize())
	}
	return parcels, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
