// Package seed copies city documents from a local data directory into a
// remote document store.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joelkehle/roimap/internal/docsource"
	"github.com/rs/zerolog"
)

// Item is the outcome for one document.
type Item struct {
	Collection string
	ID         string
	Err        error
}

type Summary struct {
	Uploaded []Item
	Skipped  []Item // no local file
	Failed   []Item
}

type Uploader struct {
	src   docsource.Source
	dst   docsource.Store
	codec docsource.Codec
	log   zerolog.Logger
}

func NewUploader(src docsource.Source, dst docsource.Store, codec docsource.Codec, log zerolog.Logger) *Uploader {
	return &Uploader{src: src, dst: dst, codec: codec, log: log.With().Str("component", "seed").Logger()}
}

// Upload copies the geojson and report documents of every city. A missing
// local file is skipped; an unreadable or invalid one is recorded as failed
// and the remaining documents are still processed. The returned error joins
// every failure.
func (u *Uploader) Upload(ctx context.Context, cityIDs []string) (Summary, error) {
	var sum Summary
	for _, collection := range []string{docsource.CollectionGeoJSON, docsource.CollectionReport} {
		for _, id := range cityIDs {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			item := Item{Collection: collection, ID: id}
			err := u.uploadOne(ctx, collection, id)
			switch {
			case err == nil:
				sum.Uploaded = append(sum.Uploaded, item)
				u.log.Info().Str("collection", collection).Str("id", id).Msg("document uploaded")
			case errors.Is(err, docsource.ErrNotFound):
				sum.Skipped = append(sum.Skipped, item)
				u.log.Info().Str("collection", collection).Str("id", id).Msg("no local file, skipping")
			default:
				item.Err = err
				sum.Failed = append(sum.Failed, item)
				u.log.Error().Err(err).Str("collection", collection).Str("id", id).Msg("document upload failed")
			}
		}
	}

	var errs []error
	for _, f := range sum.Failed {
		errs = append(errs, fmt.Errorf("%s/%s: %w", f.Collection, f.ID, f.Err))
	}
	return sum, errors.Join(errs...)
}

func (u *Uploader) uploadOne(ctx context.Context, collection, id string) error {
	blob, err := u.src.Fetch(ctx, collection, id)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(blob)) == 0 {
		blob = []byte("{}")
	}
	if !json.Valid(blob) {
		return fmt.Errorf("invalid JSON")
	}
	encoded, err := u.codec.Encode(collection, blob)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := u.dst.Put(ctx, collection, id, encoded); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return nil
}
