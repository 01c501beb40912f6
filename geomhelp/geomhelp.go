// Package geomhelp holds the small planar helpers the tiling core needs:
// ring areas, point-in-polygon tests and clipping a polygon to an
// axis-aligned extent.
package geomhelp

import (
	"math"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/go-spatial/geom/planar"
	"github.com/muesli/reflow/truncate"
)

// https://en.wikipedia.org/wiki/Shoelace_formula
func Shoelace(pts [][2]float64) float64 {
	sum := 0.
	if len(pts) == 0 {
		return 0.
	}

	p0 := pts[len(pts)-1]
	for _, p1 := range pts {
		sum += p0[1]*p1[0] - p0[0]*p1[1]
		p0 = p1
	}
	return math.Abs(sum / 2)
}

// PolygonArea is the area of the exterior ring minus the areas of the holes.
func PolygonArea(p geom.Polygon) float64 {
	if len(p) == 0 {
		return 0.
	}
	area := Shoelace(p[0])
	for _, hole := range p[1:] {
		area -= Shoelace(hole)
	}
	return area
}

// from paulmach/orb
// Original implementation: http://rosettacode.org/wiki/Ray-casting_algorithm#Go
//
//nolint:cyclop,nestif
func RayIntersect(pt, start, end [2]float64) (intersects, on bool) {
	if start[0] > end[0] {
		start, end = end, start
	}

	if pt[0] == start[0] {
		if pt[1] == start[1] {
			// pt == start
			return false, true
		} else if start[0] == end[0] {
			// vertical segment (start -> end)
			// return true if within the line, check to see if start or end is greater.
			if start[1] > end[1] && start[1] >= pt[1] && pt[1] >= end[1] {
				return false, true
			}

			if end[1] > start[1] && end[1] >= pt[1] && pt[1] >= start[1] {
				return false, true
			}
		}

		// Move the y coordinate to deal with degenerate case
		pt[0] = math.Nextafter(pt[0], math.Inf(1))
	} else if pt[0] == end[0] {
		if pt[1] == end[1] {
			// matching the end point
			return false, true
		}

		pt[0] = math.Nextafter(pt[0], math.Inf(1))
	}

	if pt[0] < start[0] || pt[0] > end[0] {
		return false, false
	}

	if start[1] > end[1] {
		if pt[1] > start[1] {
			return false, false
		} else if pt[1] < end[1] {
			return true, false
		}
	} else {
		if pt[1] > end[1] {
			return false, false
		} else if pt[1] < start[1] {
			return true, false
		}
	}

	rs := (pt[1] - start[1]) / (pt[0] - start[0])
	ds := (end[1] - start[1]) / (end[0] - start[0])

	if rs == ds {
		return false, true
	}

	return rs <= ds, false
}

// ringContains reports whether pt lies inside or on the ring.
func ringContains(ring [][2]float64, pt [2]float64) (contains, on bool) {
	if len(ring) < 3 {
		return false, false
	}
	crossings := 0
	p0 := ring[len(ring)-1]
	for _, p1 := range ring {
		intersects, onEdge := RayIntersect(pt, p0, p1)
		if onEdge {
			return true, true
		}
		if intersects {
			crossings++
		}
		p0 = p1
	}
	return crossings%2 == 1, false
}

// PolygonContainsPoint reports whether pt lies inside or on the polygon.
// A point on a hole boundary still counts as contained.
func PolygonContainsPoint(p geom.Polygon, pt [2]float64) bool {
	if len(p) == 0 {
		return false
	}
	contains, _ := ringContains(p[0], pt)
	if !contains {
		return false
	}
	for _, hole := range p[1:] {
		inHole, onHole := ringContains(hole, pt)
		if onHole {
			return true
		}
		if inHole {
			return false
		}
	}
	return true
}

// ExtentPolygon is the axis-aligned rectangle of e as a single-ring polygon,
// wound counterclockwise.
func ExtentPolygon(e geom.Extent) geom.Polygon {
	return geom.Polygon{{
		{e.MinX(), e.MinY()},
		{e.MaxX(), e.MinY()},
		{e.MaxX(), e.MaxY()},
		{e.MinX(), e.MaxY()},
	}}
}

// PolygonIntersectsExtent reports whether the polygon and the extent share
// at least one point. Either shape may fully contain the other.
func PolygonIntersectsExtent(p geom.Polygon, e geom.Extent) bool {
	if len(p) == 0 || len(p[0]) == 0 {
		return false
	}
	for _, ring := range p {
		for _, pt := range ring {
			if e.ContainsPoint(pt) {
				return true
			}
		}
	}
	box := ExtentPolygon(e)
	for _, corner := range box[0] {
		if PolygonContainsPoint(p, corner) {
			return true
		}
	}
	// no vertex of one inside the other, edges can still cross
	for _, ring := range p {
		r0 := ring[len(ring)-1]
		for _, r1 := range ring {
			b0 := box[0][len(box[0])-1]
			for _, b1 := range box[0] {
				if _, intersects := planar.SegmentIntersect(geom.Line{r0, r1}, geom.Line{b0, b1}); intersects {
					return true
				}
				b0 = b1
			}
			r0 = r1
		}
	}
	return false
}

// ClipToExtent clips every ring of p to the extent using
// Sutherland-Hodgman. Holes are clipped like the exterior ring; rings that
// vanish are dropped. An empty polygon is returned when nothing overlaps.
func ClipToExtent(p geom.Polygon, e geom.Extent) geom.Polygon {
	var clipped geom.Polygon
	for ringIdx, ring := range p {
		newRing := clipRing(ring, e)
		if len(newRing) < 3 {
			if ringIdx == 0 {
				return geom.Polygon{}
			}
			continue
		}
		clipped = append(clipped, newRing)
	}
	return clipped
}

type clipEdge struct {
	axis  int // 0 = x, 1 = y
	bound float64
	keep  func(ord, bound float64) bool
}

func clipRing(ring [][2]float64, e geom.Extent) [][2]float64 {
	lte := func(ord, bound float64) bool { return ord <= bound }
	gte := func(ord, bound float64) bool { return ord >= bound }
	edges := []clipEdge{
		{0, e.MinX(), gte},
		{0, e.MaxX(), lte},
		{1, e.MinY(), gte},
		{1, e.MaxY(), lte},
	}
	out := ring
	for _, edge := range edges {
		in := out
		out = nil
		if len(in) == 0 {
			break
		}
		prev := in[len(in)-1]
		for _, cur := range in {
			curInside := edge.keep(cur[edge.axis], edge.bound)
			prevInside := edge.keep(prev[edge.axis], edge.bound)
			if curInside {
				if !prevInside {
					out = append(out, edgeCrossing(prev, cur, edge))
				}
				out = append(out, cur)
			} else if prevInside {
				out = append(out, edgeCrossing(prev, cur, edge))
			}
			prev = cur
		}
	}
	return dedupeRing(out)
}

// edgeCrossing interpolates the point where the segment prev->cur crosses
// the clip edge. Callers guarantee the segment straddles the edge, so the
// denominator is never zero.
func edgeCrossing(prev, cur [2]float64, edge clipEdge) [2]float64 {
	t := (edge.bound - prev[edge.axis]) / (cur[edge.axis] - prev[edge.axis])
	var pt [2]float64
	pt[edge.axis] = edge.bound
	other := 1 - edge.axis
	pt[other] = prev[other] + t*(cur[other]-prev[other])
	return pt
}

func dedupeRing(ring [][2]float64) [][2]float64 {
	if len(ring) < 2 {
		return ring
	}
	deduped := ring[:1]
	for _, pt := range ring[1:] {
		if pt != deduped[len(deduped)-1] {
			deduped = append(deduped, pt)
		}
	}
	if len(deduped) > 1 && deduped[0] == deduped[len(deduped)-1] {
		deduped = deduped[:len(deduped)-1]
	}
	return deduped
}

func FloatPolygonToGeomPolygon(floater [][][2]float64) geom.Polygon {
	return floater
}

func WktMustEncode(g geom.Geometry, maxLen uint) string {
	if maxLen == 0 {
		return wkt.MustEncode(g)
	}
	return truncate.StringWithTail(wkt.MustEncode(g), maxLen, "...")
}
