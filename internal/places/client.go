// Package places wraps the address-autocomplete provider behind a short
// lived in-process cache keyed by the normalized input.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// Inputs shorter than this return no suggestions without calling out.
const minQueryLength = 3

type Suggestion struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

type Config struct {
	BaseURL  string
	APIKey   string
	CacheTTL time.Duration
	Timeout  time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cache      *cache.Cache
	logger     zerolog.Logger
}

type autocompleteResponse struct {
	Status      string `json:"status"`
	Predictions []struct {
		PlaceID     string `json:"place_id"`
		Description string `json:"description"`
	} `json:"predictions"`
	ErrorMessage string `json:"error_message"`
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		cache:      cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger:     logger.With().Str("component", "places").Logger(),
	}
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func (c *Client) Autocomplete(ctx context.Context, input string) ([]Suggestion, error) {
	key := normalizeQuery(input)
	if len(key) < minQueryLength {
		return []Suggestion{}, nil
	}

	if cached, found := c.cache.Get(key); found {
		return cached.([]Suggestion), nil
	}

	suggestions, err := c.fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, suggestions, cache.DefaultExpiration)
	return suggestions, nil
}

func (c *Client) fetch(ctx context.Context, input string) ([]Suggestion, error) {
	params := url.Values{}
	params.Set("input", input)
	params.Set("types", "address")
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/autocomplete/json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to places provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places provider returned status %d", resp.StatusCode)
	}

	var decoded autocompleteResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	switch decoded.Status {
	case "OK", "ZERO_RESULTS", "":
	default:
		c.logger.Error().Str("status", decoded.Status).Str("message", decoded.ErrorMessage).Msg("Places provider rejected request")
		return nil, fmt.Errorf("places provider status %s", decoded.Status)
	}

	suggestions := make([]Suggestion, 0, len(decoded.Predictions))
	for _, p := range decoded.Predictions {
		suggestions = append(suggestions, Suggestion{PlaceID: p.PlaceID, Description: p.Description})
	}
	return suggestions, nil
}
