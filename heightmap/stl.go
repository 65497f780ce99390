package heightmap

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/hschendel/stl"

	"image2gcode/toolpath"
)

const DefaultWidth = 400

var ErrFlatMesh = errors.New("mesh has no extent in X")

const (
	X = 0
	Y = 1
	Z = 2
)

// Raster is a mesh drawn from above: each pixel holds the highest point of
// the mesh over it, from 0 (the lowest point of the mesh, or nothing there)
// to 1 (the highest).
type Raster struct {
	W int
	H int

	// PixelSize and Depth are the mesh units per pixel and the height of
	// the mesh.
	PixelSize float64
	Depth     float64

	height []float32
}

// RenderSTL draws solid onto a raster width pixels across. The mesh is moved
// so its lowest corner is at the origin; with bottom set it is turned over
// first. Progress, if not nil, is called once per triangle.
func RenderSTL(solid *stl.Solid, width int, bottom bool, progress func(int, int)) (*Raster, error) {
	if width < 2 {
		width = DefaultWidth
	}

	// rotate to the required side
	if bottom {
		solid.Rotate(stl.Vec3{0, 0, 0}, stl.Vec3{0, 1, 0}, stl.Pi)
	}

	var min, max stl.Vec3
	for i := range min {
		min[i] = float32(math.Inf(1))
		max[i] = float32(math.Inf(-1))
	}
	for _, t := range solid.Triangles {
		for _, v := range t.Vertices {
			for i := range v {
				min[i] = float32(math.Min(float64(min[i]), float64(v[i])))
				max[i] = float32(math.Max(float64(max[i]), float64(v[i])))
			}
		}
	}

	mmWidth := max[X] - min[X]
	mmHeight := max[Y] - min[Y]
	mmDepth := max[Z] - min[Z]
	if len(solid.Triangles) == 0 || !(mmWidth > 0) {
		return nil, ErrFlatMesh
	}

	// translate to origin
	solid.Translate(stl.Vec3{-min[X], -min[Y], -min[Z]})

	// both edges of the mesh land on pixel centres
	scale := float32(width-1) / mmWidth
	height := int(mmHeight*scale+0.5) + 1

	r := &Raster{
		W:         width,
		H:         height,
		PixelSize: float64(mmWidth) / float64(width-1),
		Depth:     float64(mmDepth),
		height:    make([]float32, width*height),
	}

	toPx := func(v stl.Vec3) [3]float32 {
		z := float32(1)
		if mmDepth > 0 {
			z = v[Z] / mmDepth
		}
		return [3]float32{v[X] * scale, float32(height-1) - v[Y]*scale, z}
	}

	for i, t := range solid.Triangles {
		r.DrawTriangle(toPx(t.Vertices[0]), toPx(t.Vertices[1]), toPx(t.Vertices[2]))
		if progress != nil {
			progress(i+1, len(solid.Triangles))
		}
	}

	return r, nil
}

func (r *Raster) At(x, y int) float32 {
	return r.height[y*r.W+x]
}

// X,Y should be in pixels
// Z should range from 0..1
func (r *Raster) DrawTriangle(a, b, c [3]float32) {
	// min/max X position for each Y position, and the Z there
	leftX := make(map[int]int)
	rightX := make(map[int]int)
	leftZ := make(map[int]float32)
	rightZ := make(map[int]float32)

	minY := r.H
	maxY := -1

	// 1. work out where the outline of the triangle is
	perimeterCb := func(x, y int, z float32) {
		cur, got := leftX[y]
		if !got || x < cur {
			leftX[y] = x
			leftZ[y] = z
		}
		cur, got = rightX[y]
		if !got || x > cur {
			rightX[y] = x
			rightZ[y] = z
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	IterateLine(a, b, perimeterCb)
	IterateLine(b, c, perimeterCb)
	IterateLine(c, a, perimeterCb)

	// 2. fill in scanlines
	for y := minY; y <= maxY; y++ {
		startX, ok := leftX[y]
		if !ok {
			continue
		}
		endX := rightX[y]
		startZ := leftZ[y]
		dz := rightZ[y] - startZ
		dx := float32(endX - startX)
		for x := startX; x <= endX; x++ {
			k := float32(1.0)
			if dx != 0 {
				k = float32(x-startX) / dx
			}
			r.PlotPixel(x, y, startZ+dz*k)
		}
	}
}

func (r *Raster) PlotPixel(x, y int, z float32) {
	if x < 0 || x >= r.W || y < 0 || y >= r.H {
		return
	}

	n := y*r.W + x
	if z > r.height[n] {
		r.height[n] = z
	}
}

// IterateLine calls cb for each pixel from a to b, stepping 1px at a time.
func IterateLine(a, b [3]float32, cb func(int, int, float32)) {
	// visit the first point
	cb(int(a[X]), int(a[Y]), a[Z])

	dx := b[X] - a[X]
	dy := b[Y] - a[Y]
	dz := b[Z] - a[Z]
	length := float32(math.Sqrt(float64(dx*dx + dy*dy))) // 2d length

	// if the line has 0px length, only plot the 1st pixel, and avoid dividing by 0
	if length < 1 {
		return
	}

	dx /= length
	dy /= length
	dz /= length

	x, y, z := a[X], a[Y], a[Z]
	for i := 1; i <= int(length); i++ {
		x += dx
		y += dy
		z += dz
		cb(int(x), int(y), z)
	}

	// land exactly on the last point
	cb(int(b[X]), int(b[Y]), b[Z])
}

// Image renders the raster as a heightmap, in 24-bit colour if rgb is set.
func (r *Raster) Image(rgb bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.W, r.H))

	for n, z := range r.height {
		z = float32(math.Max(0, math.Min(1, float64(z))))
		brightness := int(16777215 * z)

		if rgb {
			img.Pix[n*4] = uint8(brightness >> 16)
			img.Pix[n*4+1] = uint8((brightness >> 8) & 0xff)
			img.Pix[n*4+2] = uint8(brightness & 0xff)
		} else {
			img.Pix[n*4] = uint8(brightness >> 16)
			img.Pix[n*4+1] = uint8(brightness >> 16)
			img.Pix[n*4+2] = uint8(brightness >> 16)
		}
		img.Pix[n*4+3] = 255
	}

	return img
}

func (r *Raster) WritePNG(w io.Writer, rgb bool) error {
	return png.Encode(w, r.Image(rgb))
}

// HeightField converts the raster to mesh units, with the top of the mesh at
// Z=0.
func (r *Raster) HeightField() (*toolpath.HeightField, error) {
	data := make([]float64, len(r.height))
	for i, z := range r.height {
		data[i] = float64(z)*r.Depth - r.Depth
	}
	return toolpath.NewHeightField(r.W, r.H, r.PixelSize, data)
}

func LoadSTL(path string, opt Options) (*toolpath.HeightField, error) {
	solid, err := stl.ReadFile(path)
	if err != nil {
		return nil, err
	}

	r, err := RenderSTL(solid, opt.Width, opt.Bottom, nil)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", path, err)
	}

	return r.HeightField()
}
