package parcel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/circuitbreaker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "parcels": {
    "features": [{
      "properties": {
        "fields": {
          "parcelnumb": " 5432-011-023 ",
          "address": "123 MAIN ST",
          "scity": "LOS ANGELES",
          "county": "Los Angeles",
          "state2": "ca",
          "szip": "90012",
          "owner": "ACME HOLDINGS LLC",
          "usedesc": "Commercial",
          "ll_gissqft": 7405.5,
          "ll_bldg_footprint_sqft": 3200,
          "yearbuilt": 1962,
          "parval": 1850000,
          "lat": "34.0522",
          "lon": "-118.2437"
        }
      }
    }]
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:     srv.URL,
		APIKey:      "test-token",
		Timeout:     time.Second,
		MaxFailures: 2,
		OpenTimeout: time.Minute,
	}, zerolog.Nop())
}

func TestSearchByAPN(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parcels/apn", r.URL.Path)
		assert.Equal(t, "5432-011-023", r.URL.Query().Get("parcelnumb"))
		assert.Equal(t, "/us/ca/los-angeles", r.URL.Query().Get("path"))
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))
		w.Write([]byte(sampleResponse))
	})

	parcels, err := client.SearchByAPN(context.Background(), APNQuery{APN: "5432-011-023", County: "Los Angeles", State: "CA"})
	require.NoError(t, err)
	require.Len(t, parcels, 1)

	p := parcels[0]
	assert.Equal(t, "5432-011-023", p.APN)
	assert.Equal(t, "CA", p.State)
	assert.Equal(t, "ACME HOLDINGS LLC", p.Owner)
	assert.Equal(t, 1962, p.YearBuilt)
	assert.InDelta(t, 34.0522, p.Latitude, 1e-9)
	assert.InDelta(t, -118.2437, p.Longitude, 1e-9)
}

func TestSearchByAddress_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1 Nowhere Rd", r.URL.Query().Get("query"))
		w.Write([]byte(`{"parcels":{"features":[]}}`))
	})

	for i := 0; i < 5; i++ {
		_, err := client.SearchByAddress(context.Background(), "1 Nowhere Rd")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, circuitbreaker.StateClosed, client.BreakerState())
}

func TestSearch_ValidatesInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})

	_, err := client.SearchByAPN(context.Background(), APNQuery{APN: "  "})
	assert.Error(t, err)
	_, err = client.SearchByAddress(context.Background(), "")
	assert.Error(t, err)
}

func TestSearch_BreakerOpensOnUpstreamErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	for i := 0; i < 2; i++ {
		_, err := client.SearchByAddress(context.Background(), "123 Main St")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	}

	_, err := client.SearchByAddress(context.Background(), "123 Main St")
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}
