package geo

import (
	"encoding/json"
	"math"
)

// Hint is a destination coordinate supplied by the caller from its own cache.
// It is untrusted: fields may be absent, non-numeric or out of range.
type Hint struct {
	Lat *float64
	Lng *float64
}

// ParseHint decodes a raw JSON hint leniently. Anything that is not an object
// with numeric lat and lng yields an empty hint, never an error.
func ParseHint(raw json.RawMessage) Hint {
	if len(raw) == 0 {
		return Hint{}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Hint{}
	}

	return Hint{
		Lat: parseNumber(fields["lat"]),
		Lng: parseNumber(fields["lng"]),
	}
}

func parseNumber(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

// NewHint builds a hint with both fields present.
func NewHint(lat, lng float64) Hint {
	return Hint{Lat: &lat, Lng: &lng}
}

// Coordinate returns the hinted coordinate when it is well formed.
// A malformed hint is a cache miss.
func (h Hint) Coordinate() (Coordinate, bool) {
	if h.Lat == nil || h.Lng == nil {
		return Coordinate{}, false
	}
	lat, lng := *h.Lat, *h.Lng
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return Coordinate{}, false
	}

	c := Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return Coordinate{}, false
	}
	return c, true
}
