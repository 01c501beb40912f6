package shard

import (
	"fmt"

	"github.com/go-spatial/geom"

	"github.com/geocover/patchgrid/geomhelp"
)

// boundsAssigner is the bulk point-to-cell mapping for rectangular tiles.
// It tests boundary extents first so the exact ray cast only runs for
// plausible candidates; no index is built.
type boundsAssigner struct{}

func (boundsAssigner) Assign(points [][2]float64, boundaries []geom.Polygon) []int64 {
	extents := make([]*geom.Extent, len(boundaries))
	for b := range boundaries {
		extent, err := geom.NewExtentFromGeometry(boundaries[b])
		if err != nil {
			panic(fmt.Errorf("could not take the extent of boundary %d: %w", b, err))
		}
		extents[b] = extent
	}

	ids := make([]int64, len(points))
	for i, pt := range points {
		for b, boundary := range boundaries {
			if !extents[b].ContainsPoint(pt) {
				continue
			}
			if geomhelp.PolygonContainsPoint(boundary, pt) {
				ids[i] = int64(b) + 1
				break
			}
		}
	}
	return ids
}
