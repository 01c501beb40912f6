package gpkg

import (
	"fmt"
	"log"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"

	"github.com/geocover/patchgrid/tiling"
)

// WriteTileLayer persists the grid as a geometric layer under the reserved
// name: one row per tile, in tile order, holding the (possibly ROI-clipped)
// polygon and the raw bounding box, in the spatial reference system of the
// source element. An existing layer is only replaced when overwrite is set.
func (ds *Dataset) WriteTileLayer(g *tiling.Grid, overwrite bool) error {
	srs, err := ds.spatialReferenceSystem(g.Element().Name())
	if err != nil {
		return err
	}

	_, _, exists, err := ds.geometryColumn(TileLayerName)
	if err != nil {
		return err
	}
	if exists {
		if !overwrite {
			return fmt.Errorf("layer %q already exists in %v", TileLayerName, ds.path)
		}
		if err := ds.dropLayer(TileLayerName); err != nil {
			return err
		}
	}

	err = ds.handle.UpdateSRS(srs)
	if err != nil {
		return err
	}
	err = ds.buildTileTable(srs)
	if err != nil {
		return err
	}

	tx, err := ds.handle.Begin()
	if err != nil {
		return fmt.Errorf("could not start a transaction: %w", err)
	}
	stmt, err := tx.Prepare(fmt.Sprintf(
		`INSERT INTO "%v"(fid, xmin, ymin, xmax, ymax, geom) VALUES(?,?,?,?,?,?)`, TileLayerName))
	if err != nil {
		return fmt.Errorf("could not prepare a statement: %w", err)
	}

	var ext *geom.Extent
	for i := 0; i < g.Len(); i++ {
		polygon := g.Polygon(i)
		bounds := g.Bounds(i)

		sb, err := gpkg.NewBinary(int32(srs.ID), polygon)
		if err != nil {
			return fmt.Errorf("could not create a binary geometry for tile %d: %w", i, err)
		}
		_, err = stmt.Exec(i, bounds.MinX(), bounds.MinY(), bounds.MaxX(), bounds.MaxY(), sb)
		if err != nil {
			return fmt.Errorf("could not insert tile %d: %w", i, err)
		}

		if ext == nil {
			ext, err = geom.NewExtentFromGeometry(polygon)
			if err != nil {
				ext = nil
				log.Println("Failed to create new extent:", err)
				continue
			}
		} else {
			ext.AddGeometry(polygon)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit the tile layer: %w", err)
	}

	err = ds.handle.UpdateGeometryExtent(TileLayerName, ext)
	if err != nil {
		return fmt.Errorf("failed to update the tile layer extent: %w", err)
	}

	log.Printf("  wrote %d tiles to layer %q", g.Len(), TileLayerName)
	return nil
}

func (ds *Dataset) buildTileTable(srs gpkg.SpatialReferenceSystem) error {
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS "%v" (fid INTEGER PRIMARY KEY, xmin REAL, ymin REAL, xmax REAL, ymax REAL, geom POLYGON);`,
		TileLayerName)
	_, err := ds.handle.Exec(query)
	if err != nil {
		return fmt.Errorf("error building the tile table: %w", err)
	}

	err = ds.handle.AddGeometryTable(gpkg.TableDescription{
		Name:          TileLayerName,
		ShortName:     TileLayerName,
		Description:   "tile grid with per-tile bounding boxes",
		GeometryField: "geom",
		GeometryType:  gpkg.Polygon,
		SRS:           int32(srs.ID),
		//
		Z: gpkg.Prohibited,
		M: gpkg.Prohibited,
	})
	if err != nil {
		return fmt.Errorf("error adding the tile geometry table: %w", err)
	}
	return nil
}

func (ds *Dataset) dropLayer(table string) error {
	statements := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS "%v";`, table),
		fmt.Sprintf(`DELETE FROM gpkg_geometry_columns WHERE table_name = '%v';`, table),
		fmt.Sprintf(`DELETE FROM gpkg_contents WHERE table_name = '%v';`, table),
	}
	for _, statement := range statements {
		if _, err := ds.handle.Exec(statement); err != nil {
			return fmt.Errorf("could not replace layer %q: %w", table, err)
		}
	}
	return nil
}

// spatialReferenceSystem resolves the SRS of the named element so the tile
// layer carries the same coordinate reference as its source.
func (ds *Dataset) spatialReferenceSystem(elementName string) (gpkg.SpatialReferenceSystem, error) {
	var srs gpkg.SpatialReferenceSystem
	var srsID int
	query := fmt.Sprintf(`SELECT srs_id FROM gpkg_contents WHERE table_name = '%v';`, elementName)
	err := ds.handle.QueryRow(query).Scan(&srsID)
	if err != nil {
		return srs, fmt.Errorf("could not read the srs of %q: %w", elementName, err)
	}

	query = fmt.Sprintf(
		`SELECT srs_name, srs_id, organization, organization_coordsys_id, definition, description
		 FROM gpkg_spatial_ref_sys WHERE srs_id = %v;`, srsID)
	row := ds.handle.QueryRow(query)
	var description *string
	err = row.Scan(&srs.Name, &srs.ID, &srs.Organization, &srs.OrganizationCoordsysID, &srs.Definition, &description)
	if err != nil {
		return srs, fmt.Errorf("could not read srs %v: %w", srsID, err)
	}
	if description != nil {
		srs.Description = *description
	}
	return srs, nil
}
