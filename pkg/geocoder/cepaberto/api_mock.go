package cepaberto

import (
	"context"
	"net/http"
	"time"
)

// MockAPIClient is a mock implementation of APIClient.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetCEP func(ctx context.Context, cep string) (*CEPResponse, error)
}

// NewMockAPIClient creates a mock that answers every code with Praça da Sé.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// GetCEP returns a canned record.
func (m *MockAPIClient) GetCEP(ctx context.Context, cep string) (*CEPResponse, error) {
	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: http.StatusInternalServerError, Message: "Simulated API error"}
	}

	if m.OnGetCEP != nil {
		return m.OnGetCEP(ctx, cep)
	}

	return &CEPResponse{
		CEP:        cep,
		Latitude:   "-23.5503099",
		Longitude:  "-46.6342009",
		Logradouro: "Praça da Sé",
		Bairro:     "Sé",
		Cidade:     &City{Nome: "São Paulo", IBGE: "3550308", DDD: 11},
		Estado:     &State{Sigla: "SP"},
	}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
