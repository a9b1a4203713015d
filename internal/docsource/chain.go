package docsource

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// FetchObserver is told the outcome of every per-source fetch attempt.
type FetchObserver interface {
	ObserveFetch(source, collection string, err error)
}

type Named struct {
	Name   string
	Source Source
}

// Chain tries each source in order. It falls through to the next source only
// when the current one reports ErrNotFound.
type Chain struct {
	sources  []Named
	log      zerolog.Logger
	observer FetchObserver
}

func NewChain(log zerolog.Logger, observer FetchObserver, sources ...Named) *Chain {
	return &Chain{sources: sources, log: log, observer: observer}
}

func (c *Chain) Fetch(ctx context.Context, collection, id string) ([]byte, error) {
	for _, s := range c.sources {
		blob, err := s.Source.Fetch(ctx, collection, id)
		if c.observer != nil {
			c.observer.ObserveFetch(s.Name, collection, err)
		}
		if err == nil {
			c.log.Debug().Str("source", s.Name).Str("collection", collection).Str("id", id).Msg("document fetched")
			return blob, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		c.log.Debug().Str("source", s.Name).Str("collection", collection).Str("id", id).Msg("document not in source, trying next")
	}
	return nil, notFound(collection, id)
}
