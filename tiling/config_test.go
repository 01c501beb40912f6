package tiling

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_UnmarshalJSON_Defaults(t *testing.T) {
	var opts Options
	err := json.Unmarshal([]byte(`{"tileWidth": 100}`), &opts)
	require.NoError(t, err)

	assert.Equal(t, 100., opts.TileWidth)
	assert.Equal(t, 50., opts.TileOverlap)
	assert.Equal(t, 4, opts.Workers)
	assert.False(t, opts.UsePrior)
}

func TestOptions_UnmarshalJSON_Overrides(t *testing.T) {
	var opts Options
	err := json.Unmarshal([]byte(`{
		"tileWidth": 200,
		"tileOverlap": 0,
		"cellKey": "cell_id",
		"unassignedValue": "-1",
		"usePrior": true,
		"workers": 8
	}`), &opts)
	require.NoError(t, err)

	assert.Equal(t, 200., opts.TileWidth)
	assert.Equal(t, 0., opts.TileOverlap)
	assert.Equal(t, "cell_id", opts.CellKey)
	assert.Equal(t, "-1", opts.UnassignedValue)
	assert.True(t, opts.UsePrior)
	assert.Equal(t, 8, opts.Workers)
}

func TestOptions_UnmarshalJSON_Invalid(t *testing.T) {
	var opts Options
	assert.Error(t, json.Unmarshal([]byte(`{}`), &opts), "tile width is required")
	assert.Error(t, json.Unmarshal([]byte(`{"tileWidth": -5}`), &opts))
	assert.Error(t, json.Unmarshal([]byte(`{"tileWidth": 100, "tileOverlap": -1}`), &opts))
	assert.Error(t, json.Unmarshal([]byte(`{"tileWidth": 100, "workers": 0}`), &opts))
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tileWidth": 64, "tileOverlap": 16}`), 0o644))

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 64., opts.TileWidth)
	assert.Equal(t, 16., opts.TileOverlap)
	assert.Equal(t, 4, opts.Workers)

	_, err = LoadOptions(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
