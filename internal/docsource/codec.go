package docsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/joelkehle/roimap/internal/report"
)

// GeometryEncoding describes how a backend stores feature geometry.
type GeometryEncoding string

const (
	// GeometryNested stores geometry as a regular JSON object.
	GeometryNested GeometryEncoding = "nested"
	// GeometryString stores each feature's geometry as a JSON-encoded string,
	// for backends that cap nested array depth.
	GeometryString GeometryEncoding = "string"
)

func ParseGeometryEncoding(s string) (GeometryEncoding, error) {
	switch GeometryEncoding(s) {
	case "", GeometryNested:
		return GeometryNested, nil
	case GeometryString:
		return GeometryString, nil
	default:
		return "", fmt.Errorf("unknown geometry encoding %q (want nested or string)", s)
	}
}

// Codec converts geojson documents between their stored and canonical shape.
// Report documents pass through untouched.
type Codec struct {
	Encoding GeometryEncoding
}

// Encode prepares a canonical document for storage.
func (c Codec) Encode(collection string, body []byte) ([]byte, error) {
	if collection != CollectionGeoJSON || c.Encoding != GeometryString {
		return body, nil
	}
	return transformGeometries(body, func(geom json.RawMessage) (json.RawMessage, error) {
		trimmed := bytes.TrimSpace(geom)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return geom, nil
		}
		return json.Marshal(string(trimmed))
	})
}

// Decode restores object geometry from string-encoded storage. Geometry
// strings that fail to decode are left in place so the assembler can report
// them per feature.
func (c Codec) Decode(collection string, body []byte) ([]byte, error) {
	if collection != CollectionGeoJSON || c.Encoding != GeometryString {
		return body, nil
	}
	return transformGeometries(body, func(geom json.RawMessage) (json.RawMessage, error) {
		decoded, err := report.DecodeGeometryValue(geom)
		if err != nil {
			return geom, nil
		}
		return decoded, nil
	})
}

// transformGeometries rewrites the geometry member of every feature in a
// FeatureCollection, a single Feature, or any object with a features array.
// Documents of any other shape are returned unchanged.
func transformGeometries(body []byte, fn func(json.RawMessage) (json.RawMessage, error)) ([]byte, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil || top == nil {
		return body, nil
	}

	rewriteFeature := func(f map[string]json.RawMessage) error {
		geom, ok := f["geometry"]
		if !ok {
			return nil
		}
		out, err := fn(geom)
		if err != nil {
			return err
		}
		f["geometry"] = out
		return nil
	}

	if raw, ok := top["features"]; ok {
		var features []json.RawMessage
		if err := json.Unmarshal(raw, &features); err != nil {
			return body, nil
		}
		for i, fraw := range features {
			var f map[string]json.RawMessage
			if err := json.Unmarshal(fraw, &f); err != nil || f == nil {
				continue
			}
			if err := rewriteFeature(f); err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			blob, err := json.Marshal(f)
			if err != nil {
				return nil, err
			}
			features[i] = blob
		}
		blob, err := json.Marshal(features)
		if err != nil {
			return nil, err
		}
		top["features"] = blob
		return json.Marshal(top)
	}

	var typ string
	_ = json.Unmarshal(top["type"], &typ)
	if typ != "Feature" {
		return body, nil
	}
	if err := rewriteFeature(top); err != nil {
		return nil, err
	}
	return json.Marshal(top)
}

// CodecSource decodes documents read from a backend with a non-nested
// geometry encoding.
type CodecSource struct {
	Source Source
	Codec  Codec
}

func (c CodecSource) Fetch(ctx context.Context, collection, id string) ([]byte, error) {
	blob, err := c.Source.Fetch(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	return c.Codec.Decode(collection, blob)
}
