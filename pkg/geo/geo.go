// Package geo holds the value types shared by the geocoding, routing and
// pricing packages: postal codes, coordinates and client-side coordinate hints.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// PostalCodeLength is the number of digits in a Brazilian CEP.
const PostalCodeLength = 8

// ErrInvalidPostalCode indicates the input does not normalize to exactly 8 digits.
var ErrInvalidPostalCode = errors.New("invalid postal code")

// PostalCode is a normalized CEP: exactly 8 ASCII digits.
type PostalCode string

// NormalizePostalCode strips every non-digit character and validates the result.
func NormalizePostalCode(raw string) (PostalCode, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if len(digits) != PostalCodeLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidPostalCode, raw)
	}
	return PostalCode(digits), nil
}

// MustPostalCode is NormalizePostalCode for constants and tests.
func MustPostalCode(raw string) PostalCode {
	pc, err := NormalizePostalCode(raw)
	if err != nil {
		panic(err)
	}
	return pc
}

// Valid reports whether the code is already in normalized form.
func (p PostalCode) Valid() bool {
	if len(p) != PostalCodeLength {
		return false
	}
	for _, r := range string(p) {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String returns the 8 digits.
func (p PostalCode) String() string {
	return string(p)
}

// Formatted returns the conventional "NNNNN-NNN" rendering.
func (p PostalCode) Formatted() string {
	if !p.Valid() {
		return string(p)
	}
	return string(p[:5]) + "-" + string(p[5:])
}

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both components are finite and in range.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Equal compares both components exactly.
func (c Coordinate) Equal(other Coordinate) bool {
	return c.Lat == other.Lat && c.Lng == other.Lng
}

// String renders the coordinate as "lat,lng".
func (c Coordinate) String() string {
	return fmt.Sprintf("%f,%f", c.Lat, c.Lng)
}
