// Package shard partitions a large point dataset into one output file per
// tile of a grid. Tiles are sharded concurrently by a bounded worker pool;
// the tile numbering is the deterministic tile order fixed at grid
// construction, independent of execution order.
package shard

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-spatial/geom"
	"github.com/umpc/go-sortedmap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/geocover/patchgrid/geomhelp"
	"github.com/geocover/patchgrid/pointindex"
	"github.com/geocover/patchgrid/tiling"
)

const (
	// TranscriptsFileName is the reserved name of the per-tile output file.
	TranscriptsFileName = "transcripts.csv"
	// CellColumn is the name of the appended cell-id column.
	CellColumn = "cell"
)

// areaTolerance guards the rectangular/clipped decision against floating
// point noise in the clipped area.
const areaTolerance = 1e-12

// Sharder writes one shard of the point dataset per grid tile. The zero
// capabilities are filled in by New; both can be overridden.
type Sharder struct {
	Grid   *tiling.Grid
	Source Source
	// Boundaries is only consulted when sharding with prior segmentation.
	Boundaries BoundarySource
	BuildIndex IndexBuilder
	Bulk       Assigner
}

func New(g *tiling.Grid, source Source) *Sharder {
	return &Sharder{
		Grid:   g,
		Source: source,
		BuildIndex: func(points [][2]float64) pointindex.Querier {
			return pointindex.Build(points)
		},
		Bulk: boundsAssigner{},
	}
}

type tileJob struct {
	outDir     string
	columns    []string
	cellIdx    int
	unassigned string
	usePrior   bool
	boundaries []geom.Polygon
}

type tileResult struct {
	tile int
	rows int
	err  error
}

// Run shards every tile of the grid into outDir/<tile ordinal>/ using a
// bounded worker pool. Tiles may complete in any order; per-tile failures
// are collected and reported together, never silently dropped.
func (s *Sharder) Run(outDir string, opts tiling.Options) error {
	columns, err := s.Source.Columns()
	if err != nil {
		return fmt.Errorf("could not read source columns: %w", err)
	}

	job := tileJob{
		outDir:     outDir,
		columns:    columns,
		cellIdx:    -1,
		unassigned: opts.UnassignedValue,
		usePrior:   opts.UsePrior,
	}
	if opts.CellKey != "" {
		job.cellIdx = slices.Index(columns, opts.CellKey)
		if job.cellIdx < 0 {
			return fmt.Errorf("cell key column %q not found in source columns %v", opts.CellKey, columns)
		}
	}
	if opts.UsePrior {
		if s.Boundaries == nil {
			return fmt.Errorf("sharding with prior segmentation requested but no boundary source given")
		}
		job.boundaries, err = s.Boundaries.Boundaries()
		if err != nil {
			return fmt.Errorf("could not read prior boundaries: %w", err)
		}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	log.Printf("  sharding %d tiles into %v", s.Grid.Len(), outDir)

	jobs := make(chan int)
	results := make(chan tileResult)

	wg := sync.WaitGroup{}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results <- s.shardTile(i, job)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	go func() {
		for i := 0; i < s.Grid.Len(); i++ {
			jobs <- i
		}
		close(jobs)
	}()

	// workers finish out of order, collect into a sorted map for a stable report
	summary := sortedmap.New(s.Grid.Len(), func(x, y interface{}) bool {
		return x.(tileResult).tile < y.(tileResult).tile
	})
	failures := make(map[int]error)
	totalRows := 0
	for result := range results {
		if result.err != nil {
			failures[result.tile] = result.err
			continue
		}
		summary.Insert(result.tile, result)
		totalRows += result.rows
	}

	resultByTile := summary.Map()
	for _, key := range summary.Keys() {
		result := resultByTile[key].(tileResult)
		log.Printf("    tile %d: %d rows", result.tile, result.rows)
	}
	log.Printf("  total rows written: %d", totalRows)

	if len(failures) > 0 {
		tiles := maps.Keys(failures)
		slices.Sort(tiles)
		errs := make([]error, 0, len(tiles)+1)
		errs = append(errs, fmt.Errorf("%d of %d tiles failed", len(tiles), s.Grid.Len()))
		for _, tile := range tiles {
			errs = append(errs, fmt.Errorf("tile %d: %w", tile, failures[tile]))
		}
		return errors.Join(errs...)
	}
	return nil
}

//nolint:funlen,cyclop
func (s *Sharder) shardTile(i int, job tileJob) tileResult {
	result := tileResult{tile: i}

	dir := filepath.Join(job.outDir, strconv.Itoa(i))
	// sibling directories can be created concurrently, MkdirAll tolerates that
	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.err = fmt.Errorf("could not create tile directory %v: %w", dir, err)
		return result
	}

	bounds := s.Grid.Bounds(i)
	polygon := s.Grid.Polygon(i)
	_, hasROI := s.Grid.ROI()
	boxArea := bounds.XSpan() * bounds.YSpan()
	// strictly smaller area means the roi clipped this tile
	clipped := hasROI && geomhelp.PolygonArea(polygon) < boxArea*(1-areaTolerance)

	file, err := os.Create(filepath.Join(dir, TranscriptsFileName))
	if err != nil {
		result.err = fmt.Errorf("could not create tile output file: %w", err)
		return result
	}
	defer file.Close()
	out := csv.NewWriter(file)

	header := job.columns
	if job.usePrior {
		header = append(slices.Clone(header), CellColumn)
	}
	if err := out.Write(header); err != nil {
		result.err = err
		return result
	}

	rows := make(chan Row, 64)
	readErr := make(chan error, 1)
	go func() {
		readErr <- s.Source.ReadBounded(bounds, rows)
	}()

	var writeErr error
	if !clipped && !job.usePrior {
		// rectangular tile without prior boundaries, stream straight through
		for row := range rows {
			remapSentinel(row, job)
			if writeErr != nil {
				continue // keep draining
			}
			if writeErr = out.Write(formatRow(row, nil)); writeErr == nil {
				result.rows++
			}
		}
	} else {
		var buffered []Row
		var points [][2]float64
		for row := range rows {
			remapSentinel(row, job)
			buffered = append(buffered, row)
			points = append(points, [2]float64{row.X, row.Y})
		}
		result.rows, writeErr = s.writeMaterialized(out, buffered, points, polygon, clipped, job)
	}

	if err := <-readErr; err != nil {
		result.err = fmt.Errorf("could not read rows for tile %d: %w", i, err)
		return result
	}
	if writeErr != nil {
		result.err = writeErr
		return result
	}
	out.Flush()
	if err := out.Error(); err != nil {
		result.err = err
		return result
	}
	if err := file.Close(); err != nil {
		result.err = err
	}
	return result
}

// writeMaterialized handles the tiles that cannot be streamed: ROI-clipped
// tiles need exact point-in-polygon filtering through the spatial index, and
// prior-boundary sharding needs a cell id per surviving row.
func (s *Sharder) writeMaterialized(out *csv.Writer, buffered []Row, points [][2]float64,
	polygon geom.Polygon, clipped bool, job tileJob) (int, error) {
	kept := make([]int, len(buffered))
	for i := range kept {
		kept[i] = i
	}
	var ids []int64

	if clipped {
		index := s.BuildIndex(points)
		kept = index.Query(polygon)
		if job.usePrior {
			ids = index.AssignCells(job.boundaries)
		}
	} else if job.usePrior {
		ids = s.Bulk.Assign(points, job.boundaries)
	}

	for _, i := range kept {
		var cell *int64
		if ids != nil {
			cell = &ids[i]
		}
		if err := out.Write(formatRow(buffered[i], cell)); err != nil {
			return 0, err
		}
	}
	return len(kept), nil
}

// remapSentinel normalizes the "unassigned" sentinel in the cell-assignment
// column to 0 before the row is written.
func remapSentinel(row Row, job tileJob) {
	if job.cellIdx < 0 || job.unassigned == "" {
		return
	}
	if formatValue(row.Values[job.cellIdx]) == job.unassigned {
		row.Values[job.cellIdx] = int64(0)
	}
}

func formatRow(row Row, cell *int64) []string {
	record := make([]string, len(row.Values), len(row.Values)+1)
	for i, value := range row.Values {
		record[i] = formatValue(value)
	}
	if cell != nil {
		record = append(record, strconv.FormatInt(*cell, 10))
	}
	return record
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
