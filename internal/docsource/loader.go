package docsource

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Documents is the raw input pair for one city.
type Documents struct {
	Geometry []byte
	Report   []byte
}

// Loader fetches both documents for a city concurrently.
type Loader struct {
	source Source
}

func NewLoader(source Source) *Loader {
	return &Loader{source: source}
}

func (l *Loader) Load(ctx context.Context, cityKey string) (Documents, error) {
	var docs Documents
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		blob, err := l.source.Fetch(gctx, CollectionGeoJSON, cityKey)
		if err != nil {
			return fmt.Errorf("load geojson for %s: %w", cityKey, err)
		}
		docs.Geometry = blob
		return nil
	})
	g.Go(func() error {
		blob, err := l.source.Fetch(gctx, CollectionReport, cityKey)
		if err != nil {
			return fmt.Errorf("load report for %s: %w", cityKey, err)
		}
		docs.Report = blob
		return nil
	})
	if err := g.Wait(); err != nil {
		return Documents{}, err
	}
	return docs, nil
}
