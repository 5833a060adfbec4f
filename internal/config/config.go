package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/geo"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/chacha20poly1305"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Pricing defaults
	DefaultOriginCEP string        `envconfig:"DEFAULT_ORIGIN_CEP" default:"06653010"`
	DefaultRatePerKm float64       `envconfig:"DEFAULT_RATE_PER_KM" default:"2.00"`
	OutboundTimeout  time.Duration `envconfig:"OUTBOUND_TIMEOUT" default:"10s"`
	RequestBudget    time.Duration `envconfig:"REQUEST_BUDGET" default:"45s"`

	// CEP Aberto
	CEPAbertoToken   string `envconfig:"CEPABERTO_TOKEN"`
	CEPAbertoBaseURL string `envconfig:"CEPABERTO_BASE_URL" default:"https://www.cepaberto.com/api/v3"`
	CEPAbertoUseMock bool   `envconfig:"CEPABERTO_USE_MOCK" default:"false"`

	// ViaCEP
	ViaCEPBaseURL string `envconfig:"VIACEP_BASE_URL" default:"https://viacep.com.br"`
	ViaCEPUseMock bool   `envconfig:"VIACEP_USE_MOCK" default:"false"`

	// Nominatim
	NominatimBaseURL   string `envconfig:"NOMINATIM_BASE_URL" default:"https://nominatim.openstreetmap.org"`
	NominatimUserAgent string `envconfig:"NOMINATIM_USER_AGENT" default:"tournevent-freight/1.0"`
	NominatimUseMock   bool   `envconfig:"NOMINATIM_USE_MOCK" default:"false"`

	// Google Maps geocoding, replaces Nominatim when set
	GoogleMapsAPIKey string `envconfig:"GOOGLE_MAPS_API_KEY"`

	// OpenRouteService
	ORSAPIKey  string `envconfig:"ORS_API_KEY"`
	ORSBaseURL string `envconfig:"ORS_BASE_URL" default:"https://api.openrouteservice.org"`
	ORSProfile string `envconfig:"ORS_PROFILE" default:"driving-car"`
	ORSUseMock bool   `envconfig:"ORS_USE_MOCK" default:"false"`

	// Storage
	DatabaseURL         string        `envconfig:"DATABASE_URL"`
	RedisURL            string        `envconfig:"REDIS_URL"`
	DestinationCacheTTL time.Duration `envconfig:"DESTINATION_CACHE_TTL" default:"2160h"`

	// Auth and secrets
	TokenSymmetricKey      string `envconfig:"TOKEN_SYMMETRIC_KEY"`
	SecretsManagerSecretID string `envconfig:"SECRETS_MANAGER_SECRET_ID"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"tournevent-freight"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from a .env file, when present, and then from
// environment variables. Real environment variables win over .env entries.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// ApplySecrets overrides credentials with values keyed by their environment
// variable name. It returns the names that were applied, sorted.
func (c *Config) ApplySecrets(values map[string]string) []string {
	fields := map[string]*string{
		"CEPABERTO_TOKEN":     &c.CEPAbertoToken,
		"GOOGLE_MAPS_API_KEY": &c.GoogleMapsAPIKey,
		"ORS_API_KEY":         &c.ORSAPIKey,
		"DATABASE_URL":        &c.DatabaseURL,
		"REDIS_URL":           &c.RedisURL,
		"TOKEN_SYMMETRIC_KEY": &c.TokenSymmetricKey,
	}

	var applied []string
	for name, value := range values {
		field, ok := fields[name]
		if !ok || value == "" {
			continue
		}
		*field = value
		applied = append(applied, name)
	}
	sort.Strings(applied)
	return applied
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.ORSAPIKey == "" && !c.ORSUseMock {
		errs = append(errs, errors.New("ORS_API_KEY is required"))
	}
	if _, err := geo.NormalizePostalCode(c.DefaultOriginCEP); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_ORIGIN_CEP: %w", err))
	}
	if !(c.DefaultRatePerKm > 0) {
		errs = append(errs, fmt.Errorf("DEFAULT_RATE_PER_KM must be positive, got %v", c.DefaultRatePerKm))
	}
	if c.OutboundTimeout <= 0 {
		errs = append(errs, errors.New("OUTBOUND_TIMEOUT must be positive"))
	}
	if c.RequestBudget <= 0 {
		errs = append(errs, errors.New("REQUEST_BUDGET must be positive"))
	}
	if c.TokenSymmetricKey != "" && len(c.TokenSymmetricKey) != chacha20poly1305.KeySize {
		errs = append(errs, fmt.Errorf("TOKEN_SYMMETRIC_KEY must be exactly %d characters", chacha20poly1305.KeySize))
	}

	if err := errors.Join(errs...); err != nil {
		return freight.NewError(freight.CodeConfiguration, "invalid configuration").WithCause(err)
	}
	return nil
}

// Defaults returns the pricing defaults. Call Validate first.
func (c *Config) Defaults() freight.Defaults {
	cep, _ := geo.NormalizePostalCode(c.DefaultOriginCEP)
	return freight.Defaults{
		OriginPostalCode: cep,
		RatePerKm:        c.DefaultRatePerKm,
	}
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("cepaberto.enabled", c.CEPAbertoToken != "" || c.CEPAbertoUseMock),
		attribute.Bool("googlemaps.enabled", c.GoogleMapsAPIKey != ""),
		attribute.Bool("store.enabled", c.DatabaseURL != ""),
		attribute.Bool("cache.enabled", c.RedisURL != ""),
	}
}
