package heightmap

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"os"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"image2gcode/toolpath"
)

// RenderSVG rasterises an SVG drawing onto a white background. The image is
// opt.Width pixels wide, or the size of the viewbox if that is 0.
func RenderSVG(r io.Reader, opt Options) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(r)
	if err != nil {
		return nil, err
	}

	viewBoxW := icon.ViewBox.W
	viewBoxH := icon.ViewBox.H
	if viewBoxW <= 0 || viewBoxH <= 0 {
		return nil, fmt.Errorf("svg has an empty viewbox (%gx%g)", viewBoxW, viewBoxH)
	}

	width := int(viewBoxW)
	height := int(viewBoxH)
	if opt.Width > 0 {
		width = opt.Width
		height = int(viewBoxH*float64(width)/viewBoxW + 0.5)
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("svg renders to %dx%d px", width, height)
	}

	icon.SetTarget(0, 0, float64(width), float64(height))

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	scanner.SetClip(img.Bounds())
	raster := rasterx.NewDasher(width, height, scanner)

	icon.Draw(raster, 1.0)
	return img, nil
}

func LoadSVG(path string, opt Options) (*toolpath.HeightField, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	img, err := RenderSVG(bytes.NewReader(data), opt)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", path, err)
	}

	return FromImage(img, opt)
}
