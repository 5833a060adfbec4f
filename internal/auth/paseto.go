// Package auth verifies PASETO bearer tokens carrying a tenant identity.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/o1egl/paseto"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrInvalidToken = errors.New("token is invalid")
	ErrExpiredToken = errors.New("token has expired")
	ErrNoTenant     = errors.New("token carries no tenant")
)

// Payload is the claim set of a freight token.
type Payload struct {
	ID        uuid.UUID `json:"id"`
	TenantID  string    `json:"tenant_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiredAt time.Time `json:"expired_at"`
}

// NewPayload creates a payload for tenantID valid for ttl.
func NewPayload(tenantID string, ttl time.Duration) (*Payload, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Payload{
		ID:        id,
		TenantID:  tenantID,
		IssuedAt:  now,
		ExpiredAt: now.Add(ttl),
	}, nil
}

// Valid checks expiry and tenant presence.
func (p *Payload) Valid() error {
	if time.Now().After(p.ExpiredAt) {
		return ErrExpiredToken
	}
	if strings.TrimSpace(p.TenantID) == "" {
		return ErrNoTenant
	}
	return nil
}

// PasetoMaker issues and verifies v2.local tokens.
type PasetoMaker struct {
	paseto       *paseto.V2
	symmetricKey []byte
}

// NewPasetoMaker creates a maker. The key must be exactly 32 bytes.
func NewPasetoMaker(symmetricKey string) (*PasetoMaker, error) {
	if len(symmetricKey) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("invalid key size: must be exactly %d characters", chacha20poly1305.KeySize)
	}
	return &PasetoMaker{
		paseto:       paseto.NewV2(),
		symmetricKey: []byte(symmetricKey),
	}, nil
}

// CreateToken issues a token for tenantID.
func (m *PasetoMaker) CreateToken(tenantID string, ttl time.Duration) (string, *Payload, error) {
	payload, err := NewPayload(tenantID, ttl)
	if err != nil {
		return "", nil, err
	}
	token, err := m.paseto.Encrypt(m.symmetricKey, payload, nil)
	if err != nil {
		return "", nil, err
	}
	return token, payload, nil
}

// VerifyToken decrypts and validates a token.
func (m *PasetoMaker) VerifyToken(token string) (*Payload, error) {
	payload := &Payload{}
	if err := m.paseto.Decrypt(token, m.symmetricKey, payload, nil); err != nil {
		return nil, ErrInvalidToken
	}
	if err := payload.Valid(); err != nil {
		return nil, err
	}
	return payload, nil
}

// TenantID returns the tenant a valid token was issued for.
func (m *PasetoMaker) TenantID(token string) (string, error) {
	payload, err := m.VerifyToken(token)
	if err != nil {
		return "", err
	}
	return payload.TenantID, nil
}

// BearerToken extracts the token from an Authorization header value.
// A header without the Bearer scheme is taken as the raw token.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
