package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mappichat/regions-atlas/src/cache"
	"github.com/mappichat/regions-atlas/src/colorscale"
	"github.com/mappichat/regions-atlas/src/database"
	"github.com/mappichat/regions-atlas/src/engine"
	"github.com/mappichat/regions-atlas/src/explore"
	"github.com/mappichat/regions-atlas/src/fileio"
	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/mappichat/regions-atlas/src/render"
	"github.com/mappichat/regions-atlas/src/server"
	"github.com/mappichat/regions-atlas/src/utils"
)

const usage = "run using one of these subcommands: render, cartogram, hexgrid, coverage, serve, dbwrite, explore"

func loadOptions(configPath string) project_types.RenderOptions {
	if configPath == "" {
		return project_types.DefaultRenderOptions
	}
	options, err := fileio.LoadRenderOptions(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return options
}

func loadRegions(geojsonPath string, level string) project_types.RegionCollection {
	l, ok := project_types.ParseLevel(level)
	if !ok {
		log.Fatalf("unknown level %s", level)
	}
	log.Printf("loading %s regions from %s", l, geojsonPath)
	collection, err := fileio.ReadRegionsFile(context.Background(), geojsonPath, l)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("%d regions", collection.Len())
	return collection
}

func loadData(dataPath string) fileio.VisualizationData {
	if dataPath == "" {
		return fileio.VisualizationData{}
	}
	log.Printf("loading dataset %s", dataPath)
	data, err := fileio.LoadDatasetFile(dataPath)
	if err != nil {
		log.Fatal(err)
	}
	return data
}

// set replaces a default only when the flag was given.
func set(cmd *flag.FlagSet, name string, apply func()) {
	cmd.Visit(func(f *flag.Flag) {
		if f.Name == name {
			apply()
		}
	})
}

func main() {
	startTime := time.Now()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("reading .env: %s", err)
	}
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	switch os.Args[1] {
	case "render":
		if len(os.Args) < 3 {
			log.Fatal("render subcommand has one argument: [regions-geojson-path]")
		}
		geojsonPath := os.Args[2]

		cmd := flag.NewFlagSet("render", flag.ExitOnError)
		var level, dataPath, configPath, outPath, mapType, mode, scheme, highlight string
		var width, height, hexSize float64
		var classes int
		cmd.StringVar(&level, "l", "sido", "administrative level of the geojson (sido, sigungu)")
		cmd.StringVar(&dataPath, "d", "", "path to dataset file (json or csv)")
		cmd.StringVar(&configPath, "c", "", "path to render options file (json)")
		cmd.StringVar(&outPath, "o", "map.svg", "output file, .svg or .png")
		cmd.StringVar(&mapType, "t", "", "map type: geographic, cartogram, hexagonal")
		cmd.StringVar(&mode, "m", "", "cartogram mode: dorling, scaled")
		cmd.StringVar(&scheme, "s", "", "color scheme")
		cmd.StringVar(&highlight, "highlight", "", "region code or name to highlight")
		cmd.Float64Var(&width, "w", 0, "canvas width")
		cmd.Float64Var(&height, "h", 0, "canvas height")
		cmd.Float64Var(&hexSize, "size", 0, "hex size")
		cmd.IntVar(&classes, "classes", 0, "quantile classes (0 for a continuous scale)")
		cmd.Parse(os.Args[3:])

		options := loadOptions(configPath)
		set(cmd, "t", func() { options.MapType = project_types.MapType(mapType) })
		set(cmd, "m", func() { options.Mode = project_types.CartogramMode(mode) })
		set(cmd, "s", func() { options.Scheme = scheme })
		set(cmd, "w", func() { options.Width = width })
		set(cmd, "h", func() { options.Height = height })
		set(cmd, "size", func() { options.HexSize = hexSize })
		set(cmd, "classes", func() { options.Classes = classes })

		collection := loadRegions(geojsonPath, level)
		data := loadData(dataPath)
		if options.Scheme == "" {
			options.Scheme = data.ColorScheme
		}

		input := render.Input{
			MapType: options.MapType,
			Regions: &collection,
			Data:    data.Data,
			Scheme:  colorscale.ParseScheme(options.Scheme),
			Classes: options.Classes,
			Width:   options.Width,
			Height:  options.Height,
			HexSize: options.HexSize,
		}
		if options.MapType == project_types.MapCartogram {
			log.Printf("generating %s cartogram", options.Mode)
			cartogram, err := engine.GenerateCartogram(options.Mode, collection, data.Data, project_types.CartogramOptions{ScaleFactor: options.ScaleFactor})
			if err != nil {
				log.Printf("cartogram %s: %s", options.Mode, err)
			} else {
				input.Cartogram = &cartogram
			}
		}

		m := render.NewMap()
		m.SetHighlight(highlight)
		log.Printf("rendering %s map", input.MapType)
		if err := m.Render(input); err != nil {
			log.Fatal(err)
		}
		var buf bytes.Buffer
		var err error
		if strings.EqualFold(filepath.Ext(outPath), ".png") {
			err = m.WritePNG(&buf, m.Attach())
		} else {
			err = m.WriteSVG(&buf, m.Attach())
		}
		if err != nil {
			log.Fatal(err)
		}
		if err := utils.WriteFile(buf.Bytes(), outPath); err != nil {
			log.Fatal(err)
		}

		log.Print(time.Since(startTime))
	case "cartogram":
		if len(os.Args) < 3 {
			log.Fatal("cartogram subcommand has one argument: [regions-geojson-path]")
		}
		geojsonPath := os.Args[2]

		cmd := flag.NewFlagSet("cartogram", flag.ExitOnError)
		var level, dataPath, outPath, mode string
		var scaleFactor float64
		cmd.StringVar(&level, "l", "sido", "administrative level of the geojson (sido, sigungu)")
		cmd.StringVar(&dataPath, "d", "", "path to dataset file (json or csv)")
		cmd.StringVar(&outPath, "o", "cartogram.geojson", "output geojson file")
		cmd.StringVar(&mode, "m", string(project_types.CartogramDorling), "cartogram mode: dorling, scaled")
		cmd.Float64Var(&scaleFactor, "f", 1, "scale factor")
		cmd.Parse(os.Args[3:])

		if dataPath == "" {
			log.Fatal("cartogram needs a dataset: -d [dataset-file]")
		}
		collection := loadRegions(geojsonPath, level)
		data := loadData(dataPath)

		log.Printf("generating %s cartogram", mode)
		cartogram, err := engine.GenerateCartogram(project_types.CartogramMode(mode), collection, data.Data, project_types.CartogramOptions{ScaleFactor: scaleFactor})
		if err != nil {
			log.Fatal(err)
		}
		if err := utils.WriteAsJsonFile(fileio.ToFeatureCollection(cartogram.Collection), outPath); err != nil {
			log.Fatal(err)
		}

		log.Print(time.Since(startTime))
	case "hexgrid":
		if len(os.Args) < 3 {
			log.Fatal("hexgrid subcommand has one argument: [regions-geojson-path]")
		}
		geojsonPath := os.Args[2]

		cmd := flag.NewFlagSet("hexgrid", flag.ExitOnError)
		var level, outPath string
		var hexSize float64
		cmd.StringVar(&level, "l", "sido", "administrative level of the geojson (sido, sigungu)")
		cmd.StringVar(&outPath, "o", "hexgrid.json", "output json file")
		cmd.Float64Var(&hexSize, "size", project_types.DefaultRenderOptions.HexSize, "hex size")
		cmd.Parse(os.Args[3:])

		collection := loadRegions(geojsonPath, level)
		log.Print("generating hex grid")
		cells := engine.GenerateHexGrid(collection.Names(), hexSize, &collection)
		if err := utils.WriteAsJsonFile(cells, outPath); err != nil {
			log.Fatal(err)
		}

		log.Print(time.Since(startTime))
	case "coverage":
		if len(os.Args) < 3 {
			log.Fatal("coverage subcommand has one argument: [regions-geojson-path]")
		}
		geojsonPath := os.Args[2]

		cmd := flag.NewFlagSet("coverage", flag.ExitOnError)
		var level, outPath string
		var resolution, fill int
		cmd.StringVar(&level, "l", "sido", "administrative level of the geojson (sido, sigungu)")
		cmd.StringVar(&outPath, "o", "coverage.json", "output json file")
		cmd.IntVar(&resolution, "r", engine.DefaultCoverageResolution, "h3 resolution used to cover regions")
		cmd.IntVar(&fill, "f", 0, "rings of unclaimed cells grown around each region border")
		cmd.Parse(os.Args[3:])

		collection := loadRegions(geojsonPath, level)
		coverage := engine.RegionCoverage(collection, resolution, fill)
		log.Printf("%d cells assigned", len(coverage.CellToRegion))
		if err := utils.WriteAsJsonFile(coverage, outPath); err != nil {
			log.Fatal(err)
		}

		log.Print(time.Since(startTime))
	case "serve":
		if len(os.Args) < 3 {
			log.Fatal("serve subcommand has one argument: [data-directory]")
		}
		dataDir := os.Args[2]

		cmd := flag.NewFlagSet("serve", flag.ExitOnError)
		var port int
		cmd.IntVar(&port, "p", 8080, "serving port")
		cmd.Parse(os.Args[3:])

		cfg := server.Config{
			Collections: map[project_types.Level]project_types.RegionCollection{},
			Cache:       cache.FromEnv(),
			Logging:     true,
		}

		source := fileio.DirSource{Base: dataDir}
		for _, level := range project_types.Levels {
			log.Printf("reading %s regions", level)
			collection, err := source.Load(context.Background(), level)
			if err != nil {
				log.Printf("skipping %s: %s", level, err)
				continue
			}
			cfg.Collections[level] = collection
		}
		if len(cfg.Collections) == 0 {
			log.Fatalf("no region files found in %s", dataDir)
		}

		if url := os.Getenv("DATABASE_URL"); url != "" {
			db, err := database.SqlInitialize(url)
			if err != nil {
				log.Fatal(err)
			}
			if err := database.CreateTables(db); err != nil {
				log.Fatal(err)
			}
			cfg.Datasets = database.Store{DB: db}
		}

		if jwksURL := os.Getenv("JWKS_URL"); jwksURL != "" {
			jwks, err := utils.JwksCreatePublicKey(jwksURL, time.Hour)
			if err != nil {
				log.Fatal(err)
			}
			cfg.KeyFunc = jwks.Keyfunc
		}

		log.Print(time.Since(startTime))

		server.RunServer(cfg, port)
	case "dbwrite":
		if len(os.Args) < 4 {
			log.Fatal("dbwrite subcommand has two arguments: [dataset-file] [sql-connection-string]")
		}
		datasetPath := os.Args[2]
		connectionString := os.Args[3]

		cmd := flag.NewFlagSet("dbwrite", flag.ExitOnError)
		var name string
		cmd.StringVar(&name, "n", "", "dataset name (defaults to the file name)")
		cmd.Parse(os.Args[4:])

		data := loadData(datasetPath)
		if name != "" {
			data.Name = name
		}
		if data.Name == "" {
			data.Name = strings.TrimSuffix(filepath.Base(datasetPath), filepath.Ext(datasetPath))
		}

		db, err := database.SqlInitialize(connectionString)
		if err != nil {
			log.Fatal(err)
		}
		log.Print("creating tables")
		if err := database.CreateTables(db); err != nil {
			log.Fatal(err)
		}
		log.Printf("populating dataset %s", data.Name)
		id, err := database.SaveDataset(db, data)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(id)

		log.Print(time.Since(startTime))
	case "explore":
		if len(os.Args) < 3 {
			log.Fatal("explore subcommand has one argument: [data-directory]")
		}
		e := explore.New(fileio.DirSource{Base: os.Args[2]}, os.Stdout)
		fmt.Println(`type "help" for commands`)
		if err := e.Run(context.Background(), os.Stdin); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatal(usage)
	}
}
