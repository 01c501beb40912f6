package gpkg

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"

	"github.com/geocover/patchgrid/shard"
	"github.com/geocover/patchgrid/tiling"
)

type column struct {
	cid       int
	name      string
	ctype     string
	notnull   int
	dfltValue *string
	pk        int
}

type rasterElement struct {
	name   string
	width  int
	height int
}

func (e *rasterElement) Name() string {
	return e.name
}

func (e *rasterElement) Kind() tiling.Kind {
	return tiling.KindRaster
}

func (e *rasterElement) Footprint() (x, y tiling.Span, err error) {
	return tiling.Span{Min: 0, Max: float64(e.width)}, tiling.Span{Min: 0, Max: float64(e.height)}, nil
}

type pointCloudElement struct {
	name  string
	table *PointTable
}

func (e *pointCloudElement) Name() string {
	return e.name
}

func (e *pointCloudElement) Kind() tiling.Kind {
	return tiling.KindPointCloud
}

func (e *pointCloudElement) Footprint() (x, y tiling.Span, err error) {
	return e.table.MinMax()
}

// PointTable is an out-of-core point table in the GeoPackage; filtering and
// min/max reductions are pushed down into SQL. It implements shard.Source.
type PointTable struct {
	handle  *gpkg.Handle
	name    string
	columns []column
	// xIdx and yIdx are positions of the coordinate columns within names
	names []string
	xIdx  int
	yIdx  int
}

// PointTable opens the named feature table. The table must have numeric
// x and y columns; a registered geometry column is left out of the tabular
// reads.
func (ds *Dataset) PointTable(name string) (*PointTable, error) {
	columns, err := getTableColumns(ds.handle, name)
	if err != nil {
		return nil, err
	}
	gcolumn, _, _, err := ds.geometryColumn(name)
	if err != nil {
		return nil, err
	}

	pt := &PointTable{handle: ds.handle, name: name, xIdx: -1, yIdx: -1}
	for _, c := range columns {
		if c.name == gcolumn {
			continue
		}
		switch strings.ToLower(c.name) {
		case "x":
			pt.xIdx = len(pt.names)
		case "y":
			pt.yIdx = len(pt.names)
		}
		pt.columns = append(pt.columns, c)
		pt.names = append(pt.names, c.name)
	}
	if pt.xIdx < 0 || pt.yIdx < 0 {
		return nil, fmt.Errorf("table %q has no x/y point columns", name)
	}
	return pt, nil
}

func (pt *PointTable) Columns() ([]string, error) {
	return pt.names, nil
}

// MinMax reduces the coordinate columns to their global bounds in a single
// full scan on the database side.
func (pt *PointTable) MinMax() (x, y tiling.Span, err error) {
	query := fmt.Sprintf(
		`SELECT min("%v"), max("%v"), min("%v"), max("%v") FROM "%v";`,
		pt.names[pt.xIdx], pt.names[pt.xIdx], pt.names[pt.yIdx], pt.names[pt.yIdx], pt.name)
	err = pt.handle.QueryRow(query).Scan(&x.Min, &x.Max, &y.Min, &y.Max)
	if err != nil {
		return x, y, fmt.Errorf("could not reduce the bounds of %q: %w", pt.name, err)
	}
	return x, y, nil
}

// ReadBounded streams the rows inside the extent, bounding-box filter
// included in the query. The rows channel is closed when the read is done,
// also on failure.
func (pt *PointTable) ReadBounded(extent geom.Extent, rows chan<- shard.Row) error {
	defer close(rows)

	quoted := make([]string, len(pt.names))
	for i, name := range pt.names {
		quoted[i] = `"` + name + `"`
	}
	query := fmt.Sprintf(
		`SELECT %v FROM "%v" WHERE "%v" >= %v AND "%v" <= %v AND "%v" >= %v AND "%v" <= %v;`,
		strings.Join(quoted, `,`), pt.name,
		pt.names[pt.xIdx], extent.MinX(), pt.names[pt.xIdx], extent.MaxX(),
		pt.names[pt.yIdx], extent.MinY(), pt.names[pt.yIdx], extent.MaxY())

	result, err := pt.handle.Query(query)
	if err != nil {
		return fmt.Errorf("error reading rows from %q: %w", pt.name, err)
	}
	defer result.Close()

	for result.Next() {
		vals := make([]interface{}, len(pt.names))
		valPtrs := make([]interface{}, len(pt.names))
		for i := range vals {
			valPtrs[i] = &vals[i]
		}
		if err = result.Scan(valPtrs...); err != nil {
			return fmt.Errorf("error reading row values from %q: %w", pt.name, err)
		}

		row := shard.Row{Values: make([]interface{}, len(vals))}
		for i, val := range vals {
			switch v := val.(type) {
			case []uint8:
				row.Values[i] = string(v)
			case int64, float64, time.Time, string, nil:
				row.Values[i] = v
			default:
				return fmt.Errorf("unexpected type for sqlite column data: %v: %T", pt.names[i], v)
			}
		}
		if row.X, err = ordToFloat(row.Values[pt.xIdx]); err != nil {
			return fmt.Errorf("column %q: %w", pt.names[pt.xIdx], err)
		}
		if row.Y, err = ordToFloat(row.Values[pt.yIdx]); err != nil {
			return fmt.Errorf("column %q: %w", pt.names[pt.yIdx], err)
		}
		rows <- row
	}
	return result.Err()
}

func ordToFloat(val interface{}) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", val, val)
	}
}

// getTableColumns collects the column information of a given table
func getTableColumns(h *gpkg.Handle, table string) ([]column, error) {
	var columns []column
	query := fmt.Sprintf(`PRAGMA table_info('%v');`, table)
	rows, err := h.Query(query)
	if err != nil {
		return nil, fmt.Errorf("error reading the columns of %q: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c column
		err := rows.Scan(&c.cid, &c.name, &c.ctype, &c.notnull, &c.dfltValue, &c.pk)
		if err != nil {
			return nil, fmt.Errorf("error getting the column information: %w", err)
		}
		columns = append(columns, c)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no table %q in the GeoPackage", table)
	}
	return columns, rows.Err()
}
