package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/hschendel/stl"
	"github.com/spf13/cobra"

	"image2gcode/heightmap"
)

// render flags
var (
	renderOutput string
	renderRGB    bool
	renderBottom bool
	renderPixels int
)

var renderCmd = &cobra.Command{
	Use:   "render <stl-file>",
	Short: "Render an STL mesh to a PNG height map",
	Long: `Render an STL mesh, seen from above, to a PNG height map that convert can
mill. The highest point of the mesh is white and the lowest is black.

Examples:
  image2gcode render part.stl                 # writes part.stl.png
  image2gcode render --rgb --width 1000 part.stl -o part.png
  image2gcode render --bottom part.stl -o underside.png`,
	Args:    cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error { return loadConfig(cmd) },
	RunE:    runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	f := renderCmd.Flags()
	f.StringVarP(&renderOutput, "output", "o", "",
		"output PNG filename (default <stl-file>.png)")
	f.IntVar(&renderPixels, "width", heightmap.DefaultWidth,
		"width of the height map in pixels")
	f.BoolVar(&renderRGB, "rgb", false,
		"use all 24 bits of colour for height, for use with convert --rgb")
	f.BoolVar(&renderBottom, "bottom", false,
		"draw the bottom side instead of the top")
}

func runRender(cmd *cobra.Command, args []string) error {
	stlFile := args[0]
	if renderOutput == "" {
		renderOutput = stlFile + ".png"
	}
	if strings.EqualFold(renderOutput, stlFile) {
		return fmt.Errorf("refusing to overwrite %s", stlFile)
	}

	solid, err := stl.ReadFile(stlFile)
	if err != nil {
		return fmt.Errorf("failed to read mesh: %w", err)
	}

	r, err := heightmap.RenderSTL(solid, renderPixels, renderBottom, progressPrinter("Drawing triangles"))
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintf(os.Stderr, "   \rDrawing triangles: done.\n")
		fmt.Fprintf(os.Stderr, "%dx%d px depth map. %gx%g mm work piece.\n",
			r.W, r.H, float64(r.W-1)*r.PixelSize, float64(r.H-1)*r.PixelSize)
		fmt.Fprintf(os.Stderr, "Work piece is %g tall in Z axis.\n", r.Depth)
		fmt.Fprintf(os.Stderr, "Resolution is %g px/mm. Use convert --pixel-size %g --depth %g.\n",
			1/r.PixelSize, r.PixelSize, r.Depth)
	}

	buf := &bytes.Buffer{}
	if err := r.WritePNG(buf, renderRGB); err != nil {
		return fmt.Errorf("failed to encode %s: %w", renderOutput, err)
	}
	return writeOutput(renderOutput, buf)
}
