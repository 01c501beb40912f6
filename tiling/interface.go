package tiling

import (
	"github.com/go-spatial/geom"
)

// Kind is the closed set of element kinds a grid can be derived from.
type Kind int

const (
	KindRaster Kind = iota
	KindPointCloud
)

func (k Kind) String() string {
	switch k {
	case KindRaster:
		return "raster"
	case KindPointCloud:
		return "pointcloud"
	default:
		return "unknown"
	}
}

// Span is the closed interval covered by an element along one axis.
type Span struct {
	Min, Max float64
}

func (s Span) Delta() float64 {
	return s.Max - s.Min
}

// Element is a named 2D element in a dataset with a resolvable footprint.
// Raster elements have integral pixel extents starting at 0. Point-cloud
// elements derive their footprint from a min/max reduction over the
// coordinate columns, which may run on an out-of-core engine.
type Element interface {
	Name() string
	Kind() Kind
	Footprint() (x, y Span, err error)
}

// Dataset looks up elements and the optional region of interest.
// The ROI polygon is returned already resolved into the coordinate space of
// the named element.
type Dataset interface {
	Element(name string) (Element, error)
	ROI(elementName string) (roi geom.Polygon, ok bool, err error)
}
