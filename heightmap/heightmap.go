// Package heightmap turns images, SVG drawings and STL meshes into height
// fields for the toolpath converter. White is the top of the stock (Z=0) and
// black is Depth below it.
package heightmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"image2gcode/toolpath"
)

var ErrNoDepth = errors.New("depth must be positive")

type Options struct {
	// PixelSize is the physical size of one pixel. Meshes work it out from
	// their own extent instead.
	PixelSize float64

	// Depth is how far below the top surface black is.
	Depth float64

	Invert bool

	// RGB reads brightness from all 24 bits of colour, as written by the
	// stock simulator and the mesh renderer, instead of from gray level.
	RGB bool

	// Width is the rendering width in pixels for SVG and STL input; 0 keeps
	// the SVG viewbox size.
	Width int

	// Bottom renders a mesh from underneath.
	Bottom bool
}

// Load reads a height field from path, choosing the decoder by extension.
func Load(path string, opt Options) (*toolpath.HeightField, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".stl":
		return LoadSTL(path, opt)
	case ".svg":
		return LoadSVG(path, opt)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return FromImage(img, opt)
}

// Brightness is the 0..1 brightness of c; in rgb mode the red, green and
// blue channels are the high, middle and low bytes of one 24-bit value.
func Brightness(c color.Color, rgb bool) float64 {
	if rgb {
		// XXX: why 257? https://stackoverflow.com/a/41185404
		r, g, b, _ := c.RGBA()
		r /= 257
		g /= 257
		b /= 257
		return float64(65536*r+256*g+b) / 16777215
	}

	gray := color.Gray16Model.Convert(c).(color.Gray16)
	return float64(gray.Y) / 65535
}

func FromImage(img image.Image, opt Options) (*toolpath.HeightField, error) {
	if opt.Depth <= 0 {
		return nil, ErrNoDepth
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	data := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			brightness := Brightness(img.At(b.Min.X+x, b.Min.Y+y), opt.RGB)
			if opt.Invert {
				brightness = 1 - brightness
			}
			data[y*w+x] = brightness*opt.Depth - opt.Depth
		}
	}

	return toolpath.NewHeightField(w, h, opt.PixelSize, data)
}
