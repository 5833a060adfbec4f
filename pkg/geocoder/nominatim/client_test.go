package nominatim_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/freight/pkg/geocoder"
	"github.com/tournevent/freight/pkg/geocoder/nominatim"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(api nominatim.APIClient) *nominatim.Client {
	return nominatim.NewWithAPIClient(nominatim.Config{}, api, otelzap.New(zap.NewNop()), nil)
}

func TestClient_Geocode_Success(t *testing.T) {
	mockAPI := nominatim.NewMockAPIClient()
	var got *nominatim.SearchRequest
	mockAPI.OnSearch = func(ctx context.Context, req *nominatim.SearchRequest) ([]nominatim.Place, error) {
		got = req
		return []nominatim.Place{{Lat: "-22.9068", Lon: "-43.1729"}}, nil
	}

	coord, err := newTestClient(mockAPI).Geocode(context.Background(), "Rio de Janeiro, RJ, Brasil")

	require.NoError(t, err)
	require.NotNil(t, coord)
	assert.InDelta(t, -22.9068, coord.Lat, 1e-9)
	assert.InDelta(t, -43.1729, coord.Lng, 1e-9)
	assert.Equal(t, 1, got.Limit)
	assert.Equal(t, "br", got.CountryCodes)
}

func TestClient_Geocode_Empty(t *testing.T) {
	mockAPI := nominatim.NewMockAPIClient()
	mockAPI.OnSearch = func(ctx context.Context, req *nominatim.SearchRequest) ([]nominatim.Place, error) {
		return nil, nil
	}

	coord, err := newTestClient(mockAPI).Geocode(context.Background(), "nowhere")

	require.NoError(t, err)
	assert.Nil(t, coord)
}

func TestClient_Geocode_RateLimited(t *testing.T) {
	mockAPI := nominatim.NewMockAPIClient()
	mockAPI.SimulateRateLimit = true

	_, err := newTestClient(mockAPI).Geocode(context.Background(), "anything")

	assert.ErrorIs(t, err, geocoder.ErrRateLimited)
}

func TestClient_Geocode_ServerError(t *testing.T) {
	mockAPI := nominatim.NewMockAPIClient()
	mockAPI.SimulateErrors = true

	_, err := newTestClient(mockAPI).Geocode(context.Background(), "anything")

	require.Error(t, err)
	assert.NotErrorIs(t, err, geocoder.ErrRateLimited)
}

func TestHTTPAPIClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Avenida Paulista, São Paulo, Brasil", q.Get("q"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "1", q.Get("limit"))
		assert.Equal(t, "br", q.Get("countrycodes"))
		assert.Equal(t, "freight-test", r.Header.Get("User-Agent"))
		w.Write([]byte(`[{"place_id":42,"lat":"-23.5614","lon":"-46.6559","display_name":"Avenida Paulista"}]`))
	}))
	defer srv.Close()

	api := nominatim.NewHTTPAPIClient(nominatim.HTTPAPIClientConfig{BaseURL: srv.URL, UserAgent: "freight-test"})
	coord, err := newTestClient(api).Geocode(context.Background(), "Avenida Paulista, São Paulo, Brasil")

	require.NoError(t, err)
	assert.InDelta(t, -23.5614, coord.Lat, 1e-9)
}

func TestHTTPAPIClient_ForbiddenIsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	api := nominatim.NewHTTPAPIClient(nominatim.HTTPAPIClientConfig{BaseURL: srv.URL})
	_, err := newTestClient(api).Geocode(context.Background(), "x")

	assert.ErrorIs(t, err, geocoder.ErrRateLimited)
}
