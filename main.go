package main

import (
	"log"
	"os"

	"github.com/carlmjohnson/versioninfo"

	"github.com/geocover/patchgrid/gpkg"
	"github.com/geocover/patchgrid/shard"
	"github.com/geocover/patchgrid/tiling"

	"github.com/iancoleman/strcase"
	"github.com/urfave/cli/v2"
)

const SOURCE string = `sourceGpkg`
const ELEMENT string = `element`
const OUTDIR string = `outputDir`
const CONFIG string = `config`
const TILEWIDTH string = `tileWidth`
const TILEOVERLAP string = `tileOverlap`
const OVERWRITE string = `overwrite`
const CELLKEY string = `cellKey`
const UNASSIGNED string = `unassignedValue`
const USEPRIOR string = `usePrior`
const WORKERS string = `workers`

//nolint:funlen
func main() {
	app := cli.NewApp()
	app.Name = "patchgrid"
	app.Usage = "A Golang spatial tiling and transcript sharding application"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     SOURCE,
			Aliases:  []string{"s"},
			Usage:    "Source GPKG holding the elements, the optional region of interest and optional prior boundaries",
			Required: true,
			EnvVars:  []string{strcase.ToScreamingSnake(SOURCE)},
		},
		&cli.StringFlag{
			Name:     ELEMENT,
			Aliases:  []string{"e"},
			Usage:    "Name of the element to tile: a tile pyramid (raster) or a feature table with x/y columns (point cloud)",
			Required: true,
			EnvVars:  []string{strcase.ToScreamingSnake(ELEMENT)},
		},
		&cli.StringFlag{
			Name:     OUTDIR,
			Aliases:  []string{"d"},
			Usage:    "Output directory root for the per-tile transcript shards. Tiling metadata only when omitted",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(OUTDIR)},
		},
		&cli.StringFlag{
			Name:     CONFIG,
			Aliases:  []string{"c"},
			Usage:    "JSON file with tiling options, overrides the individual flags",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(CONFIG)},
		},
		&cli.Float64Flag{
			Name:     TILEWIDTH,
			Aliases:  []string{"w"},
			Usage:    "Tile width in element coordinates (pixels for rasters)",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(TILEWIDTH)},
		},
		&cli.Float64Flag{
			Name:     TILEOVERLAP,
			Usage:    "Width shared between two axis-adjacent tiles",
			Value:    50,
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(TILEOVERLAP)},
		},
		&cli.BoolFlag{
			Name:     OVERWRITE,
			Aliases:  []string{"o"},
			Usage:    "Overwrite the tile layer in the source GPKG if it exists",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(OVERWRITE)},
		},
		&cli.StringFlag{
			Name:     CELLKEY,
			Usage:    "Name of an existing cell-assignment column in the point table",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(CELLKEY)},
		},
		&cli.StringFlag{
			Name:     UNASSIGNED,
			Usage:    "Sentinel value in the cell-assignment column meaning unassigned, remapped to 0",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(UNASSIGNED)},
		},
		&cli.BoolFlag{
			Name:     USEPRIOR,
			Usage:    "Propagate the prior segmentation boundaries into the shards",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(USEPRIOR)},
		},
		&cli.IntFlag{
			Name:     WORKERS,
			Aliases:  []string{"j"},
			Usage:    "How many tiles are sharded concurrently",
			Value:    4,
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(WORKERS)},
		},
	}

	app.Action = func(c *cli.Context) error {
		opts, err := resolveOptions(c)
		if err != nil {
			return err
		}

		_, err = os.Stat(c.String(SOURCE))
		if os.IsNotExist(err) {
			log.Fatalf("error opening source GeoPackage: %s", err)
		}

		dataset, err := gpkg.Open(c.String(SOURCE))
		if err != nil {
			return err
		}
		defer dataset.Close()

		log.Println("=== start tiling ===")

		grid, err := tiling.NewGrid(dataset, c.String(ELEMENT), opts)
		if err != nil {
			return err
		}
		err = dataset.WriteTileLayer(grid, c.Bool(OVERWRITE))
		if err != nil {
			return err
		}

		if outDir := c.String(OUTDIR); outDir != "" {
			table, err := dataset.PointTable(c.String(ELEMENT))
			if err != nil {
				return err
			}
			sharder := shard.New(grid, table)
			sharder.Boundaries = dataset
			err = sharder.Run(outDir, opts)
			if err != nil {
				return err
			}
		}

		log.Println("=== done ===")
		return nil
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func resolveOptions(c *cli.Context) (tiling.Options, error) {
	if configPath := c.String(CONFIG); configPath != "" {
		return tiling.LoadOptions(configPath)
	}
	opts := tiling.Options{
		TileWidth:       c.Float64(TILEWIDTH),
		TileOverlap:     c.Float64(TILEOVERLAP),
		CellKey:         c.String(CELLKEY),
		UnassignedValue: c.String(UNASSIGNED),
		UsePrior:        c.Bool(USEPRIOR),
		Workers:         c.Int(WORKERS),
	}
	return opts, opts.Validate()
}
