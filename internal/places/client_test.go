package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "k"}, zerolog.Nop())
}

func TestAutocomplete_CachesNormalizedInput(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/autocomplete/json", r.URL.Path)
		assert.Equal(t, "123 main", r.URL.Query().Get("input"))
		w.Write([]byte(`{"status":"OK","predictions":[{"place_id":"abc","description":"123 Main St, Springfield"}]}`))
	})

	first, err := client.Autocomplete(context.Background(), "123 Main")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "abc", first[0].PlaceID)

	second, err := client.Autocomplete(context.Background(), "  123   MAIN ")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAutocomplete_ShortInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})

	res, err := client.Autocomplete(context.Background(), "12")
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestAutocomplete_ProviderErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(`{"status":"OVER_QUERY_LIMIT","error_message":"slow down"}`))
			return
		}
		w.Write([]byte(`{"status":"ZERO_RESULTS","predictions":[]}`))
	})

	_, err := client.Autocomplete(context.Background(), "500 Elm")
	assert.Error(t, err)

	res, err := client.Autocomplete(context.Background(), "500 Elm")
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Equal(t, int32(2), calls.Load())
}
