// Package gpkg backs the tiling core with a GeoPackage: element lookup,
// the optional region of interest, prior segmentation boundaries, the
// out-of-core point table and the persisted tile layer all live in one
// GeoPackage file.
package gpkg

import (
	"fmt"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"

	"github.com/geocover/patchgrid/tiling"
)

const (
	// ROILayerName is the reserved layer holding the region of interest.
	ROILayerName = "region_of_interest"
	// BoundariesLayerName is the reserved layer holding prior segmentation
	// boundaries; a boundary's 1-based position is its cell id.
	BoundariesLayerName = "cell_boundaries"
	// TileLayerName is the reserved layer the tile grid is written to.
	TileLayerName = "grid_tiles"
)

// TransformResolver reprojects a polygon into the coordinate space of a
// named element. Coordinate-transformation chains live outside this core.
type TransformResolver interface {
	ToElement(p geom.Polygon, elementName string) (geom.Polygon, error)
}

// IdentityTransform is the resolver for datasets where all elements share
// one coordinate space.
type IdentityTransform struct{}

func (IdentityTransform) ToElement(p geom.Polygon, _ string) (geom.Polygon, error) {
	return p, nil
}

// Dataset is a GeoPackage-backed implementation of tiling.Dataset.
type Dataset struct {
	handle    *gpkg.Handle
	path      string
	Transform TransformResolver
}

func Open(path string) (*Dataset, error) {
	handle, err := gpkg.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening GeoPackage %v: %w", path, err)
	}
	return &Dataset{handle: handle, path: path, Transform: IdentityTransform{}}, nil
}

func (ds *Dataset) Close() {
	ds.handle.Close()
}

// Element looks up the named element in gpkg_contents. Tile pyramids
// resolve to raster elements with the pixel extents of the finest zoom
// level; feature tables with numeric x/y columns resolve to point clouds.
func (ds *Dataset) Element(name string) (tiling.Element, error) {
	query := fmt.Sprintf(`SELECT data_type FROM gpkg_contents WHERE table_name = '%v';`, name)
	var dataType string
	err := ds.handle.QueryRow(query).Scan(&dataType)
	if err != nil {
		return nil, fmt.Errorf("no element named %q in %v: %w", name, ds.path, err)
	}

	switch dataType {
	case "tiles":
		return ds.rasterElement(name)
	case "features":
		table, err := ds.PointTable(name)
		if err != nil {
			return nil, err
		}
		return &pointCloudElement{name: name, table: table}, nil
	default:
		return nil, fmt.Errorf("%w: %q has data type %q", tiling.ErrUnsupportedElement, name, dataType)
	}
}

func (ds *Dataset) rasterElement(name string) (tiling.Element, error) {
	query := fmt.Sprintf(
		`SELECT matrix_width * tile_width, matrix_height * tile_height
		 FROM gpkg_tile_matrix WHERE table_name = '%v'
		 ORDER BY zoom_level DESC LIMIT 1;`, name)
	var width, height int
	err := ds.handle.QueryRow(query).Scan(&width, &height)
	if err != nil {
		return nil, fmt.Errorf("could not read the tile matrix of %q: %w", name, err)
	}
	return &rasterElement{name: name, width: width, height: height}, nil
}

// ROI returns the region of interest, reprojected into the element's
// coordinate space, when the reserved layer is present.
func (ds *Dataset) ROI(elementName string) (geom.Polygon, bool, error) {
	gcolumn, _, ok, err := ds.geometryColumn(ROILayerName)
	if err != nil || !ok {
		return nil, false, err
	}

	polygons, err := ds.readPolygons(ROILayerName, gcolumn)
	if err != nil {
		return nil, false, err
	}
	if len(polygons) == 0 {
		return nil, false, nil
	}

	roi, err := ds.Transform.ToElement(polygons[0], elementName)
	if err != nil {
		return nil, false, fmt.Errorf("could not resolve the roi into the space of %q: %w", elementName, err)
	}
	return roi, true, nil
}

// Boundaries reads the prior segmentation boundaries in feature order.
func (ds *Dataset) Boundaries() ([]geom.Polygon, error) {
	gcolumn, _, ok, err := ds.geometryColumn(BoundariesLayerName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no %q layer in %v", BoundariesLayerName, ds.path)
	}
	return ds.readPolygons(BoundariesLayerName, gcolumn)
}

func (ds *Dataset) geometryColumn(table string) (gcolumn string, srsID int, ok bool, err error) {
	query := fmt.Sprintf(
		`SELECT column_name, srs_id FROM gpkg_geometry_columns WHERE table_name = '%v';`, table)
	rows, err := ds.handle.Query(query)
	if err != nil {
		return "", 0, false, fmt.Errorf("error reading gpkg_geometry_columns: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return "", 0, false, rows.Err()
	}
	err = rows.Scan(&gcolumn, &srsID)
	return gcolumn, srsID, err == nil, err
}

func (ds *Dataset) readPolygons(table, gcolumn string) ([]geom.Polygon, error) {
	query := fmt.Sprintf(`SELECT "%v" FROM "%v" ORDER BY ROWID;`, gcolumn, table)
	rows, err := ds.handle.Query(query)
	if err != nil {
		return nil, fmt.Errorf("error reading the %q layer: %w", table, err)
	}
	defer rows.Close()

	var polygons []geom.Polygon
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		decoded, err := gpkg.DecodeGeometry(blob)
		if err != nil {
			return nil, fmt.Errorf("error decoding a %q geometry: %w", table, err)
		}
		switch g := decoded.Geometry.(type) {
		case geom.Polygon:
			polygons = append(polygons, g)
		case geom.MultiPolygon:
			for _, p := range g {
				polygons = append(polygons, p)
			}
		default:
			return nil, fmt.Errorf("unexpected geometry type %T in the %q layer", g, table)
		}
	}
	return polygons, rows.Err()
}
