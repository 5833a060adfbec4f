package viacep

import (
	"bytes"
	"context"
	"fmt"
)

// APIClient defines the ViaCEP operations used by the geocoder.
type APIClient interface {
	// GetAddress fetches GET /ws/{cep}/json/.
	GetAddress(ctx context.Context, cep string) (*AddressResponse, error)
}

// AddressResponse is a ViaCEP record. Unknown codes answer {"erro": true}.
type AddressResponse struct {
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Complemento string `json:"complemento,omitempty"`
	Bairro      string `json:"bairro"`
	Localidade  string `json:"localidade"`
	UF          string `json:"uf"`
	IBGE        string `json:"ibge,omitempty"`
	DDD         string `json:"ddd,omitempty"`
	Erro        Flag   `json:"erro,omitempty"`
}

// Flag decodes both true and "true".
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	*f = Flag(bytes.Equal(data, []byte("true")))
	return nil
}

// APIError is a non-2xx answer from ViaCEP.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("viacep: HTTP %d: %s", e.StatusCode, e.Message)
}
