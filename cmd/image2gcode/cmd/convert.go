package cmd

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"image2gcode/gcode"
	"image2gcode/heightmap"
	"image2gcode/stock"
	"image2gcode/toolpath"
)

// convert flags
var (
	outputPath string

	pixelSize   float64
	renderWidth int
	depth       float64
	invert      bool
	rgb         bool
	bottom      bool

	toolShape    string
	toolDiameter float64

	pixelStep    int
	safetyHeight float64
	tolerance    float64
	feedRate     float64
	plungeFeed   float64
	rapidFeed    float64
	spindleSpeed float64
	units        string

	roughingOffset float64
	roughingDelta  float64
	roughingFeed   float64

	rowScan      string
	colScan      string
	colsFirst    bool
	laceBounds   string
	contactAngle float64

	entry     string
	arcRadius float64

	xOffset float64
	yOffset float64
	zOffset float64
	maxVel  float64

	writeStockPath    string
	writeStockSTLPath string

	workers int
)

var convertCmd = &cobra.Command{
	Use:   "convert <heightmap>",
	Short: "Generate G-code that mills a height map",
	Long: `Generate G-code that mills the surface described by a height map.

The height map may be a PNG, JPEG, GIF, TIFF or BMP image, an SVG drawing or
an STL mesh. Images are scaled so that white is the top of the stock and
black is --depth below it; meshes keep their own dimensions.

The surface is milled along rows (X), columns (Y) or both, optionally after
a series of roughing passes that step down by --roughing-delta while leaving
--roughing-offset of material on the finished surface.

Examples:
  # finish a relief with a 3mm ball nose, rows then columns
  image2gcode convert --pixel-size 0.1 --depth 3 --tool-diameter 3 \
      --rows alternating --cols alternating relief.png -o relief.ngc

  # rough in 1mm steps first, and keep a picture of what was cut
  image2gcode convert --roughing-offset 0.5 --roughing-delta 1 \
      --write-stock stock.png relief.png -o relief.ngc`,
	Args:    cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error { return loadConfig(cmd) },
	RunE:    runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	f := convertCmd.Flags()

	f.StringVarP(&outputPath, "output", "o", "-",
		"G-code output file, - for stdout")

	f.Float64Var(&pixelSize, "pixel-size", 0.1,
		"size of one image pixel in output units")
	f.IntVar(&renderWidth, "resolution", 0,
		"width in pixels to render SVG and STL input at (default: SVG viewbox, 400 for STL)")
	f.Float64Var(&depth, "depth", 10,
		"depth of a black pixel below the top of the stock")
	f.BoolVar(&invert, "invert", false,
		"treat black as the top of the stock instead of white")
	f.BoolVar(&rgb, "rgb", false,
		"read 24-bit heights from all three colour channels, as written by --write-stock and render --rgb")
	f.BoolVar(&bottom, "bottom", false,
		"mill an STL mesh as seen from underneath")

	f.StringVar(&toolShape, "tool-shape", "ball",
		"shape of the end mill (ball, flat, v30, v45, v60)")
	f.Float64Var(&toolDiameter, "tool-diameter", 6,
		"diameter of the end mill")

	f.IntVar(&pixelStep, "pixel-step", 1,
		"number of pixels between milled columns")
	f.Float64Var(&safetyHeight, "safety-height", 5,
		"Z height for rapid moves")
	f.Float64Var(&tolerance, "tolerance", 0.001,
		"path blending tolerance (G64 P), also used to merge collinear cuts")
	f.Float64Var(&feedRate, "feed-rate", 400,
		"cutting feed rate in units/min")
	f.Float64Var(&plungeFeed, "plunge-feed", 0,
		"feed rate for the plunge into each cut; 0 moves straight to the first cut point")
	f.Float64Var(&rapidFeed, "rapid-feed-rate", 10000,
		"feed rate of rapid moves, for the cycle time estimate")
	f.Float64Var(&spindleSpeed, "speed", 10000,
		"spindle speed in RPM")
	f.StringVar(&units, "units", "mm",
		"output units (mm or in)")

	f.Float64Var(&roughingOffset, "roughing-offset", 0,
		"material to leave on the surface during roughing; roughing needs this and --roughing-delta")
	f.Float64Var(&roughingDelta, "roughing-delta", 0,
		"depth of each roughing pass")
	f.Float64Var(&roughingFeed, "roughing-feed", 0,
		"feed rate for roughing passes (default --feed-rate)")

	f.StringVar(&rowScan, "rows", "alternating",
		"scan order along rows: increasing, decreasing, alternating, upmill, downmill or none")
	f.StringVar(&colScan, "cols", "none",
		"scan order along columns: increasing, decreasing, alternating, upmill, downmill or none")
	f.BoolVar(&colsFirst, "cols-first", false,
		"mill columns before rows")
	f.StringVar(&laceBounds, "lace-bounds", "none",
		"split the surface between the axes by slope: none, secondary (the second axis cuts only steep ground) or full")
	f.Float64Var(&contactAngle, "contact-angle", 45,
		"slope in degrees at which --lace-bounds hands ground to the second axis")

	f.StringVar(&entry, "entry", "simple",
		"how each cut is entered: simple (plunge) or arc")
	f.Float64Var(&arcRadius, "arc-radius", 0,
		"largest arc used by --entry arc (default: tool radius)")

	f.Float64Var(&xOffset, "x-offset", 0, "offset to add to X coordinates")
	f.Float64Var(&yOffset, "y-offset", 0, "offset to add to Y coordinates")
	f.Float64Var(&zOffset, "z-offset", 0, "offset to add to Z coordinates")
	f.Float64Var(&maxVel, "max-vel", 4000,
		"max. velocity in units/min for cycle time estimation")

	f.StringVar(&writeStockPath, "write-stock", "",
		"write the simulated stock to a PNG height map")
	f.StringVar(&writeStockSTLPath, "write-stock-stl", "",
		"write the simulated stock surface to an STL file")

	f.IntVar(&workers, "workers", runtime.GOMAXPROCS(0),
		"goroutines used to build the roughing surface")
}

func loadHeightmap(path string) (*toolpath.HeightField, error) {
	return heightmap.Load(path, heightmap.Options{
		PixelSize: pixelSize,
		Depth:     depth,
		Invert:    invert,
		RGB:       rgb,
		Width:     renderWidth,
		Bottom:    bottom,
	})
}

// scanStrategies resolves --rows, --cols and --lace-bounds. The second axis
// milled is the one --lace-bounds=secondary restricts.
func scanStrategies() (rows, cols toolpath.ScanStrategy, err error) {
	pick := func(name string) (toolpath.ScanStrategy, error) {
		if name == "none" || name == "" {
			return nil, nil
		}
		return toolpath.NewScan(name)
	}

	if rows, err = pick(rowScan); err != nil {
		return nil, nil, err
	}
	if cols, err = pick(colScan); err != nil {
		return nil, nil, err
	}
	if rows == nil && cols == nil {
		return nil, nil, fmt.Errorf("nothing to mill: both --rows and --cols are none")
	}

	slope := math.Tan(contactAngle * math.Pi / 180)
	lace := func(s toolpath.ScanStrategy) toolpath.ScanStrategy {
		if s == nil {
			return nil
		}
		return &toolpath.Lace{Inner: s, Slope: slope, Keep: pixelStep + 1}
	}

	switch laceBounds {
	case "none", "":
	case "secondary":
		if colsFirst {
			rows = lace(rows)
		} else {
			cols = lace(cols)
		}
	case "full":
		rows, cols = lace(rows), lace(cols)
	default:
		return nil, nil, fmt.Errorf("unrecognised lace bounds: %s", laceBounds)
	}

	return rows, cols, nil
}

func entryStrategy(tool toolpath.Tool) (toolpath.EntryCutStrategy, error) {
	switch entry {
	case "simple", "plunge":
		return toolpath.SimpleEntry{PlungeFeed: plungeFeed}, nil
	case "arc":
		r := arcRadius
		if r <= 0 {
			r = tool.Radius()
		}
		return toolpath.ArcEntry{PlungeFeed: plungeFeed, MaxRadius: r}, nil
	default:
		return nil, fmt.Errorf("unrecognised entry: %s", entry)
	}
}

func progressPrinter(label string) func(int, int) {
	if quiet {
		return nil
	}
	return func(cur, total int) {
		pct := 100 * float64(cur) / float64(total)
		fmt.Fprintf(os.Stderr, "   \r%s: %.0f%%", label, pct)
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	if units != "mm" && units != "in" {
		return fmt.Errorf("unrecognised units: %s", units)
	}

	tool, err := toolpath.NewTool(toolShape, toolDiameter)
	if err != nil {
		return err
	}
	rows, cols, err := scanStrategies()
	if err != nil {
		return err
	}
	entryCut, err := entryStrategy(tool)
	if err != nil {
		return err
	}

	field, err := loadHeightmap(inputPath)
	if err != nil {
		return fmt.Errorf("failed to load height map: %w", err)
	}

	if !quiet {
		fmt.Fprintf(os.Stderr, "%dx%d px height map. %gx%g %s work piece.\n",
			field.W, field.H, float64(field.W-1)*field.PixelSize, float64(field.H-1)*field.PixelSize, units)
		fmt.Fprintf(os.Stderr, "Deepest point is %g %s below the top.\n", -field.Min(), units)
	}

	// the program is only written out once it is complete
	buf := &bytes.Buffer{}
	writer := gcode.NewWriter(buf, gcode.Options{
		Imperial:     units == "in",
		SafetyHeight: safetyHeight,
		SpindleSpeed: spindleSpeed,
		Tolerance:    tolerance,
		XOffset:      xOffset,
		YOffset:      yOffset,
		ZOffset:      zOffset,
		RapidFeed:    rapidFeed,
		MaxVel:       maxVel,
	})

	sinks := []toolpath.Sink{writer}
	var sim *stock.Stock
	if writeStockPath != "" || writeStockSTLPath != "" {
		sim = stock.New(field.W, field.H, field.PixelSize, tool, safetyHeight)
		sinks = append(sinks, sim)
	}

	conv, err := toolpath.NewConverter(field, toolpath.Options{
		Tool:           tool,
		PixelStep:      pixelStep,
		SafetyHeight:   safetyHeight,
		Tolerance:      tolerance,
		Feed:           feedRate,
		RoughingOffset: roughingOffset,
		RoughingDelta:  roughingDelta,
		RoughingFeed:   roughingFeed,
		Rows:           rows,
		Cols:           cols,
		ColsFirst:      colsFirst,
		Entry:          entryCut,
		Progress:       progressPrinter("Generating path"),
		Workers:        workers,
	}, toolpath.Tee(sinks...))
	if err != nil {
		return err
	}

	if err := conv.Convert(); err != nil {
		return fmt.Errorf("failed to generate path: %w", err)
	}
	if !quiet {
		fmt.Fprintf(os.Stderr, "   \rGenerating path: done\n")
	}

	if err := writeOutput(outputPath, buf); err != nil {
		return err
	}

	if sim != nil {
		if err := writeStock(sim); err != nil {
			return err
		}
	}

	if !quiet {
		cycle := time.Duration(writer.CycleTime() * float64(time.Second)).Round(time.Second)
		fmt.Fprintf(os.Stderr, "Estimated cycle time: %v\n", cycle)
	}

	return nil
}

// writeOutput writes data to path through a temporary file in the same
// directory, so a failed run never leaves a partial program behind.
func writeOutput(path string, data io.Reader) error {
	if path == "-" || path == "" {
		_, err := io.Copy(os.Stdout, data)
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

func writeStock(sim *stock.Stock) error {
	if writeStockPath != "" {
		if !quiet {
			fmt.Fprintf(os.Stderr, "Writing stock: %s\n", writeStockPath)
		}
		buf := &bytes.Buffer{}
		if err := sim.WritePNG(buf, depth, rgb); err != nil {
			return fmt.Errorf("failed to encode stock: %w", err)
		}
		if err := writeOutput(writeStockPath, buf); err != nil {
			return err
		}
	}

	if writeStockSTLPath != "" {
		if !quiet {
			fmt.Fprintf(os.Stderr, "Writing stock: %s\n", writeStockSTLPath)
		}
		if err := sim.WriteSTL(writeStockSTLPath); err != nil {
			return fmt.Errorf("failed to write stock: %w", err)
		}
	}

	return nil
}
