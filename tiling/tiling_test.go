package tiling

import (
	"fmt"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geocover/patchgrid/geomhelp"
)

type fakeElement struct {
	name string
	kind Kind
	x, y Span
}

func (e fakeElement) Name() string {
	return e.name
}

func (e fakeElement) Kind() Kind {
	return e.kind
}

func (e fakeElement) Footprint() (Span, Span, error) {
	return e.x, e.y, nil
}

type fakeDataset struct {
	elements map[string]Element
	roi      geom.Polygon
	hasROI   bool
}

func (d fakeDataset) Element(name string) (Element, error) {
	element, ok := d.elements[name]
	if !ok {
		return nil, fmt.Errorf("no element named %q", name)
	}
	return element, nil
}

func (d fakeDataset) ROI(_ string) (geom.Polygon, bool, error) {
	return d.roi, d.hasROI, nil
}

func rasterDataset(name string, width, height int) fakeDataset {
	return fakeDataset{elements: map[string]Element{
		name: fakeElement{
			name: name,
			kind: KindRaster,
			x:    Span{Min: 0, Max: float64(width)},
			y:    Span{Min: 0, Max: float64(height)},
		},
	}}
}

func pointCloudDataset(name string, x, y Span) fakeDataset {
	return fakeDataset{elements: map[string]Element{
		name: fakeElement{name: name, kind: KindPointCloud, x: x, y: y},
	}}
}

func TestNewGrid_Validation(t *testing.T) {
	ds := rasterDataset("image", 100, 100)

	_, err := NewGrid(ds, "image", Options{TileWidth: 10, TileOverlap: 10, Workers: 1})
	assert.ErrorIs(t, err, ErrTileWidth)

	_, err = NewGrid(ds, "image", Options{TileWidth: 10, TileOverlap: 20, Workers: 1})
	assert.ErrorIs(t, err, ErrTileWidth)

	_, err = NewGrid(ds, "image", Options{TileOverlap: 5, Workers: 1})
	assert.Error(t, err, "tile width is required")
}

func TestNewGrid_UnsupportedElement(t *testing.T) {
	ds := fakeDataset{elements: map[string]Element{
		"mesh": fakeElement{name: "mesh", kind: Kind(99)},
	}}
	_, err := NewGrid(ds, "mesh", Options{TileWidth: 10, TileOverlap: 5, Workers: 1})
	assert.ErrorIs(t, err, ErrUnsupportedElement)
}

func TestNewGrid_RasterFullCover(t *testing.T) {
	ds := rasterDataset("image", 100, 80)
	g, err := NewGrid(ds, "image", Options{TileWidth: 30, TileOverlap: 10, Workers: 1})
	require.NoError(t, err)

	// 5 x 4 tiles, no roi, nothing filtered
	assert.Equal(t, 20, g.Len())
	// row-major enumeration order fixes the tile numbering
	assert.Equal(t, TileIndex{X: 0, Y: 0}, g.Index(0))
	assert.Equal(t, TileIndex{X: 1, Y: 0}, g.Index(1))
	assert.Equal(t, TileIndex{X: 0, Y: 1}, g.Index(5))
	assert.Equal(t, TileIndex{X: 4, Y: 3}, g.Index(19))

	assert.Equal(t, geom.Extent{0, 0, 30, 30}, g.Bounds(0))
	assert.Equal(t, geom.Extent{20, 0, 50, 30}, g.Bounds(1))

	// raster tiling is not tight, the requested width is kept
	assert.Equal(t, 30., g.TileWidth())

	// no gaps: every tile starts no later than where the previous one ends
	for i := 1; i < 5; i++ {
		cur := g.Bounds(i)
		prev := g.Bounds(i - 1)
		assert.LessOrEqual(t, cur.MinX(), prev.MaxX())
	}
}

func TestNewGrid_PointCloudTight(t *testing.T) {
	ds := pointCloudDataset("transcripts", Span{Min: 0, Max: 100}, Span{Min: 0, Max: 50})
	g, err := NewGrid(ds, "transcripts", Options{TileWidth: 30, TileOverlap: 10, Workers: 1})
	require.NoError(t, err)

	// x needs 5 tiles, y needs 2; widths are corrected to the larger tight width
	assert.Equal(t, 10, g.Len())
	assert.Equal(t, 30., g.TileWidth())

	// tight mode: the last tile reaches the end of the span on both axes
	last := g.Bounds(g.Len() - 1)
	assert.GreaterOrEqual(t, last.MaxX(), 100.)
	assert.GreaterOrEqual(t, last.MaxY(), 50.)
}

func TestNewGrid_ROIFiltersTiles(t *testing.T) {
	ds := rasterDataset("image", 100, 100)
	ds.roi = geom.Polygon{{{0, 0}, {40, 0}, {40, 40}, {0, 40}}}
	ds.hasROI = true

	g, err := NewGrid(ds, "image", Options{TileWidth: 50, TileOverlap: 0, Workers: 1})
	require.NoError(t, err)

	// only the lower-left tile of the 2x2 grid touches the roi
	require.Equal(t, 1, g.Len())
	assert.Equal(t, TileIndex{X: 0, Y: 0}, g.Index(0))
	assert.True(t, g.Contains(0, 0))
	assert.False(t, g.Contains(1, 1))

	// every kept tile intersects the roi
	for i := 0; i < g.Len(); i++ {
		bounds := g.Bounds(i)
		assert.True(t, geomhelp.PolygonIntersectsExtent(ds.roi, bounds))
	}
}

func TestGrid_Polygon(t *testing.T) {
	ds := rasterDataset("image", 100, 100)
	g, err := NewGrid(ds, "image", Options{TileWidth: 50, TileOverlap: 0, Workers: 1})
	require.NoError(t, err)
	require.Equal(t, 4, g.Len())

	// no roi: the polygon is the plain tile rectangle
	assert.Equal(t, geomhelp.ExtentPolygon(geom.Extent{0, 0, 50, 50}), g.Polygon(0))
	assert.Len(t, g.Polygons(), 4)

	// a roi diagonal through the tile halves its polygon area
	ds.roi = geom.Polygon{{{0, 0}, {100, 0}, {0, 100}}}
	ds.hasROI = true
	g, err = NewGrid(ds, "image", Options{TileWidth: 50, TileOverlap: 0, Workers: 1})
	require.NoError(t, err)
	require.Equal(t, 4, g.Len())

	clipped := g.Polygon(0)
	assert.InDelta(t, 2500, geomhelp.PolygonArea(clipped), 1e-9)
	assert.InDelta(t, 1250, geomhelp.PolygonArea(g.Polygon(1)), 1e-9)
}
