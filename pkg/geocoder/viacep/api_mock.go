package viacep

import (
	"context"
	"net/http"
	"time"
)

// MockAPIClient is a mock implementation of APIClient.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetAddress func(ctx context.Context, cep string) (*AddressResponse, error)
}

// NewMockAPIClient creates a mock that answers every code with Avenida Paulista.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// GetAddress returns a canned record.
func (m *MockAPIClient) GetAddress(ctx context.Context, cep string) (*AddressResponse, error) {
	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: http.StatusServiceUnavailable, Message: "Simulated API error"}
	}

	if m.OnGetAddress != nil {
		return m.OnGetAddress(ctx, cep)
	}

	return &AddressResponse{
		CEP:        cep[:5] + "-" + cep[5:],
		Logradouro: "Avenida Paulista",
		Bairro:     "Bela Vista",
		Localidade: "São Paulo",
		UF:         "SP",
		IBGE:       "3550308",
		DDD:        "11",
	}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
