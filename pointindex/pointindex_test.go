package pointindex

import (
	"testing"

	"github.com/go-spatial/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Empty(t *testing.T) {
	ix := Build(nil)
	assert.Equal(t, 0, ix.Len())
	assert.Nil(t, ix.Query(geom.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}))
	assert.Empty(t, ix.AssignCells([]geom.Polygon{{{{0, 0}, {1, 0}, {1, 1}}}}))
}

func TestBuild_SinglePoint(t *testing.T) {
	ix := Build([][2]float64{{5, 5}})
	require.Equal(t, 1, ix.Len())
	assert.Equal(t, []int{0}, ix.Query(geom.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}))
	assert.Nil(t, ix.Query(geom.Polygon{{{20, 20}, {30, 20}, {30, 30}, {20, 30}}}))
}

func TestQuery(t *testing.T) {
	points := [][2]float64{
		{1, 1},   // 0: inside
		{5, 5},   // 1: inside
		{9, 9},   // 2: inside
		{15, 5},  // 3: outside, within the indexed extent
		{10, 5},  // 4: on the query boundary
		{0, 0},   // 5: on the query vertex
		{20, 20}, // 6: far away
	}
	ix := Build(points)
	square := geom.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}

	got := ix.Query(square)
	assert.Equal(t, []int{0, 1, 2, 4, 5}, got, "boundary points count as intersecting, result is ascending")
}

func TestQuery_PolygonOutsideIndexedExtent(t *testing.T) {
	ix := Build([][2]float64{{0, 0}, {10, 10}})
	assert.Nil(t, ix.Query(geom.Polygon{{{100, 100}, {110, 100}, {110, 110}, {100, 110}}}))
	assert.Nil(t, ix.Query(geom.Polygon{{{-10, -10}, {-5, -10}, {-5, -5}, {-10, -5}}}))
}

func TestQuery_Triangle(t *testing.T) {
	// points spread over the unit square; only those with x+y <= 1 fall
	// inside the triangle
	points := [][2]float64{
		{0.1, 0.1}, // 0
		{0.9, 0.9}, // 1
		{0.4, 0.5}, // 2
		{0.7, 0.4}, // 3
		{0.5, 0.5}, // 4: on the hypotenuse
	}
	ix := Build(points)
	triangle := geom.Polygon{{{0, 0}, {1, 0}, {0, 1}}}

	assert.Equal(t, []int{0, 2, 4}, ix.Query(triangle))
}

func TestQuery_ManyPoints(t *testing.T) {
	// enough points for a multi-cell grid, on a 32x32 lattice
	var points [][2]float64
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			points = append(points, [2]float64{float64(x), float64(y)})
		}
	}
	ix := Build(points)

	got := ix.Query(geom.Polygon{{{10, 10}, {13, 10}, {13, 13}, {10, 13}}})
	// 4x4 lattice points fall in the closed query box
	assert.Len(t, got, 16)
	for _, i := range got {
		pt := points[i]
		assert.GreaterOrEqual(t, pt[0], 10.)
		assert.LessOrEqual(t, pt[0], 13.)
		assert.GreaterOrEqual(t, pt[1], 10.)
		assert.LessOrEqual(t, pt[1], 13.)
	}
}

func TestAssignCells(t *testing.T) {
	points := [][2]float64{
		{1, 1},   // 0: in the first boundary
		{5, 5},   // 1: in both boundaries, the first one wins
		{8, 8},   // 2: in the second boundary
		{20, 20}, // 3: in no boundary
	}
	ix := Build(points)
	boundaries := []geom.Polygon{
		{{{0, 0}, {6, 0}, {6, 6}, {0, 6}}},
		{{{4, 4}, {10, 4}, {10, 10}, {4, 10}}},
	}

	assert.Equal(t, []int64{1, 1, 2, 0}, ix.AssignCells(boundaries))
}
