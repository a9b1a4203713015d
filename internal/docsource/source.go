// Package docsource fetches the raw geometry and report documents for a city
// from local files or a remote key-value document store.
package docsource

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	CollectionGeoJSON = "geojson"
	CollectionReport  = "report"
)

// ErrNotFound is returned when a source has no document for the requested
// collection and id. Any other error means the source failed or the document
// could not be read, and must not trigger a fallback.
var ErrNotFound = errors.New("document not found")

// Source returns raw document bytes addressed by collection and id.
type Source interface {
	Fetch(ctx context.Context, collection, id string) ([]byte, error)
}

// Store is a writable Source.
type Store interface {
	Source
	Put(ctx context.Context, collection, id string, body []byte) error
	Close() error
}

func notFound(collection, id string) error {
	return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
}

func validateKey(collection, id string) error {
	switch collection {
	case CollectionGeoJSON, CollectionReport:
	default:
		return fmt.Errorf("unknown collection %q", collection)
	}
	if strings.TrimSpace(id) == "" {
		return errors.New("document id is required")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}
