package cepaberto

import (
	"context"
	"encoding/json"
	"fmt"
)

// APIClient defines the CEP Aberto operations used by the geocoder.
type APIClient interface {
	// GetCEP fetches the record for an 8-digit postal code.
	GetCEP(ctx context.Context, cep string) (*CEPResponse, error)
}

// CEPResponse is the body of GET /api/v3/cep. Unknown codes come back as an
// empty object with status 200.
type CEPResponse struct {
	CEP        string      `json:"cep"`
	Latitude   json.Number `json:"latitude"` // sent as a quoted decimal
	Longitude  json.Number `json:"longitude"`
	Altitude   float64     `json:"altitude,omitempty"`
	Logradouro string      `json:"logradouro,omitempty"`
	Bairro     string      `json:"bairro,omitempty"`
	Cidade     *City       `json:"cidade,omitempty"`
	Estado     *State      `json:"estado,omitempty"`
}

// City is the municipality block of a CEP record.
type City struct {
	Nome string `json:"nome"`
	IBGE string `json:"ibge,omitempty"`
	DDD  int    `json:"ddd,omitempty"`
}

// State is the federative unit block of a CEP record.
type State struct {
	Sigla string `json:"sigla"`
}

// APIError is a non-2xx answer from CEP Aberto.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cepaberto: HTTP %d: %s", e.StatusCode, e.Message)
}
