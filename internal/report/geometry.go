package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

const (
	GeometryPolygon      = "Polygon"
	GeometryMultiPolygon = "MultiPolygon"
)

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// featureError is a per-feature parsing problem; it becomes a Warning.
type featureError struct {
	kind WarningKind
	msg  string
}

func (e *featureError) Error() string { return e.msg }

func featureErrorf(kind WarningKind, format string, args ...any) *featureError {
	return &featureError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// DecodeGeometryValue unwraps a geometry that was stored as a JSON string.
// Object values are returned unchanged.
func DecodeGeometryValue(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return trimmed, nil
	}
	var encoded string
	if err := json.Unmarshal(trimmed, &encoded); err != nil {
		return nil, err
	}
	inner := bytes.TrimSpace([]byte(encoded))
	if !json.Valid(inner) {
		return nil, fmt.Errorf("geometry string is not valid JSON")
	}
	return inner, nil
}

// outerRing returns the first ring of a Polygon or MultiPolygon as {lat,lng}
// pairs, swapping from the GeoJSON [lng, lat] order.
func outerRing(regionID string, raw json.RawMessage) ([]LatLng, *featureError) {
	decoded, err := DecodeGeometryValue(raw)
	if err != nil {
		return nil, featureErrorf(WarnInvalidGeometryJSON,
			"Region '%s': The 'geometry' field is a string but is not valid JSON.", regionID)
	}

	var g geometry
	if len(decoded) == 0 || isJSONNull(decoded) || json.Unmarshal(decoded, &g) != nil || !isJSONArray(g.Coordinates) {
		return nil, featureErrorf(WarnMissingCoordinates,
			"Region '%s': The 'geometry' object is missing or has an invalid 'coordinates' property.", regionID)
	}

	var ring json.RawMessage
	switch g.Type {
	case GeometryMultiPolygon:
		polygon, ok := firstElement(g.Coordinates)
		if ok {
			ring, ok = firstElement(polygon)
		}
		if !ok {
			return nil, featureErrorf(WarnMalformedPolygon,
				"Region '%s': The 'MultiPolygon' geometry data is structured incorrectly.", regionID)
		}
	case GeometryPolygon:
		var ok bool
		ring, ok = firstElement(g.Coordinates)
		if !ok {
			return nil, featureErrorf(WarnMalformedPolygon,
				"Region '%s': The 'Polygon' geometry data is structured incorrectly.", regionID)
		}
	default:
		return nil, featureErrorf(WarnUnsupportedGeometry,
			"Region '%s': Has an unsupported geometry type '%s'. Expected 'Polygon' or 'MultiPolygon'.", regionID, g.Type)
	}

	var vertices []json.RawMessage
	if err := json.Unmarshal(ring, &vertices); err != nil {
		return nil, featureErrorf(WarnMalformedPolygon,
			"Region '%s': The '%s' geometry data is structured incorrectly.", regionID, g.Type)
	}
	if len(vertices) == 0 {
		return nil, featureErrorf(WarnEmptyPolygon, "Region '%s': The polygon has no vertices.", regionID)
	}

	out := make([]LatLng, 0, len(vertices))
	for _, v := range vertices {
		p, ok := parseVertex(v)
		if !ok {
			return nil, featureErrorf(WarnInvalidCoordinates,
				"Region '%s': Contains invalid or non-numeric coordinate values.", regionID)
		}
		out = append(out, p)
	}
	return out, nil
}

func parseVertex(raw json.RawMessage) (LatLng, bool) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) < 2 {
		return LatLng{}, false
	}
	var lng, lat float64
	if json.Unmarshal(pair[0], &lng) != nil || json.Unmarshal(pair[1], &lat) != nil {
		return LatLng{}, false
	}
	if isJSONNull(pair[0]) || isJSONNull(pair[1]) || !finite(lat) || !finite(lng) {
		return LatLng{}, false
	}
	return LatLng{Lat: lat, Lng: lng}, true
}

// Centroid is the arithmetic mean of the vertices. It is not area-weighted and
// is only meant for marker placement. The mean is accumulated incrementally so
// it stays finite for any finite input.
func Centroid(coords []LatLng) LatLng {
	var mean LatLng
	for i, c := range coords {
		n := float64(i + 1)
		mean.Lat += c.Lat/n - mean.Lat/n
		mean.Lng += c.Lng/n - mean.Lng/n
	}
	return mean
}

func firstElement(raw json.RawMessage) (json.RawMessage, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil, false
	}
	if isJSONNull(items[0]) || !isJSONArray(items[0]) {
		return nil, false
	}
	return items[0], true
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
