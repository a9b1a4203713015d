package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/joelkehle/roimap/internal/config"
	"github.com/joelkehle/roimap/internal/docsource"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithLocalFilesAndSQLite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cities.yaml"), []byte("cities:\n  - id: rome\n    name: Rome\n    center: {lat: 41.9, lng: 12.5}\n    zoom: 12\n"), 0o644))

	cfg := &config.Config{
		DataDir:          dir,
		CitiesFile:       filepath.Join(dir, "cities.yaml"),
		StoreBackend:     docsource.BackendSQLite,
		StoreDSN:         filepath.Join(dir, "docs.db"),
		GeometryEncoding: "string",
	}
	a, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })

	assert.Equal(t, []string{"rome"}, a.Cities.Keys())
	assert.Equal(t, docsource.GeometryString, a.Codec.Encoding)
	require.NotNil(t, a.Store)

	ctx := context.Background()
	geo := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"id":"trastevere"},"geometry":{"type":"Polygon","coordinates":[[[12.46,41.88],[12.48,41.88],[12.48,41.89]]]}}]}`
	encoded, err := a.Codec.Encode(docsource.CollectionGeoJSON, []byte(geo))
	require.NoError(t, err)
	require.NoError(t, a.Store.Put(ctx, docsource.CollectionGeoJSON, "rome", encoded))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rome.report.json"), []byte(`{"ranked_opportunities":[{"sub_area_name":"Trastevere"}]}`), 0o644))

	res, err := a.View.Report(ctx, "rome")
	require.NoError(t, err)
	assert.Equal(t, "Rome", res.Report.City)
	assert.Equal(t, 12.0, res.Report.MapZoom)
	require.Len(t, res.Report.Regions, 1)
}

func TestOpenRejectsBadEncoding(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{GeometryEncoding: "gzip"}, zerolog.Nop())
	assert.Error(t, err)
}
