package viacep_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/freight/pkg/geo"
	"github.com/tournevent/freight/pkg/geocoder"
	"github.com/tournevent/freight/pkg/geocoder/viacep"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var paulista = geo.MustPostalCode("01310100")

func newTestClient(mockClient viacep.APIClient) *viacep.Client {
	return viacep.NewWithAPIClient(viacep.Config{}, mockClient, otelzap.New(zap.NewNop()), nil)
}

func TestClient_LookupAddress_Success(t *testing.T) {
	client := newTestClient(viacep.NewMockAPIClient())

	addr, err := client.LookupAddress(context.Background(), paulista)

	require.NoError(t, err)
	assert.Equal(t, "Avenida Paulista", addr.Street)
	assert.Equal(t, "Bela Vista", addr.Neighborhood)
	assert.Equal(t, "São Paulo", addr.City)
	assert.Equal(t, "SP", addr.State)
	assert.Equal(t, paulista, addr.PostalCode)
}

func TestClient_LookupAddress_Erro(t *testing.T) {
	mockAPI := viacep.NewMockAPIClient()
	mockAPI.OnGetAddress = func(ctx context.Context, cep string) (*viacep.AddressResponse, error) {
		return &viacep.AddressResponse{Erro: true}, nil
	}

	_, err := newTestClient(mockAPI).LookupAddress(context.Background(), paulista)

	assert.ErrorIs(t, err, geocoder.ErrNotFound)
}

func TestClient_LookupAddress_APIError(t *testing.T) {
	mockAPI := viacep.NewMockAPIClient()
	mockAPI.SimulateErrors = true

	_, err := newTestClient(mockAPI).LookupAddress(context.Background(), paulista)

	require.Error(t, err)
	assert.NotErrorIs(t, err, geocoder.ErrNotFound)
}

func TestHTTPAPIClient_GetAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/01310100/json/", r.URL.Path)
		w.Write([]byte(`{"cep":"01310-100","logradouro":"Avenida Paulista","complemento":"de 612 a 1510 - lado par",
			"bairro":"Bela Vista","localidade":"São Paulo","uf":"SP","ibge":"3550308","ddd":"11"}`))
	}))
	defer srv.Close()

	api := viacep.NewHTTPAPIClient(viacep.HTTPAPIClientConfig{BaseURL: srv.URL})
	resp, err := api.GetAddress(context.Background(), "01310100")

	require.NoError(t, err)
	assert.Equal(t, "Avenida Paulista", resp.Logradouro)
	assert.False(t, bool(resp.Erro))
}

func TestHTTPAPIClient_ErroFlagVariants(t *testing.T) {
	for _, body := range []string{`{"erro": true}`, `{"erro": "true"}`} {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			client := newTestClient(viacep.NewHTTPAPIClient(viacep.HTTPAPIClientConfig{BaseURL: srv.URL}))
			_, err := client.LookupAddress(context.Background(), paulista)

			assert.ErrorIs(t, err, geocoder.ErrNotFound)
		})
	}
}

func TestHTTPAPIClient_BadRequestIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(viacep.NewHTTPAPIClient(viacep.HTTPAPIClientConfig{BaseURL: srv.URL}))
	_, err := client.LookupAddress(context.Background(), paulista)

	assert.ErrorIs(t, err, geocoder.ErrNotFound)
}
