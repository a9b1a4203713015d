package docsource

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSource reads documents from a data directory:
//
//	<dir>/<id>.geojson, falling back to <dir>/<id>.json
//	<dir>/<id>.report.json
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (f *FileSource) Fetch(ctx context.Context, collection, id string) ([]byte, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}
	for _, name := range f.candidates(collection, id) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		blob, err := os.ReadFile(filepath.Join(f.dir, name))
		if err == nil {
			return blob, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, notFound(collection, id)
}

func (f *FileSource) candidates(collection, id string) []string {
	if collection == CollectionReport {
		return []string{id + ".report.json"}
	}
	return []string{id + ".geojson", id + ".json"}
}
