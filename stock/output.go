package stock

import (
	"image"
	"image/png"
	"io"
	"math"

	"github.com/hschendel/stl"
)

// Image renders the stock as a heightmap: white is the top of the stock and
// black is depth below it. If depth is not positive the deepest cut is used.
// In rgb mode the brightness is spread over all 24 bits of colour.
func (m *Stock) Image(depth float64, rgb bool) *image.RGBA {
	if depth <= 0 {
		depth = -m.Min()
	}

	img := image.NewRGBA(image.Rect(0, 0, m.W, m.H))

	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			n := y*m.W + x

			brightness := 16777215
			if depth > 0 {
				z := math.Max(-depth, math.Min(0, m.height[n]))
				brightness = int(16777215 * (z/depth + 1))
			}

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
	}

	return img
}

func (m *Stock) WritePNG(w io.Writer, depth float64, rgb bool) error {
	return png.Encode(w, m.Image(depth, rgb))
}

// Solid meshes the top surface of the stock, one quad per pair of
// neighbouring pixel centres, in the same coordinates as the toolpath.
func (m *Stock) Solid(name string) *stl.Solid {
	solid := &stl.Solid{Name: name}

	vertex := func(x, y int) stl.Vec3 {
		xMm, yMm := m.PxToMm(x, y)
		return stl.Vec3{float32(xMm), float32(yMm), float32(m.At(x, y))}
	}

	for y := 0; y+1 < m.H; y++ {
		for x := 0; x+1 < m.W; x++ {
			// image rows run towards -Y, so this winding faces +Z
			a := vertex(x, y)
			b := vertex(x, y+1)
			c := vertex(x+1, y+1)
			d := vertex(x+1, y)

			solid.Triangles = append(solid.Triangles, triangle(a, b, c), triangle(a, c, d))
		}
	}

	return solid
}

func (m *Stock) WriteSTL(path string) error {
	return m.Solid("stock").WriteFile(path)
}

func triangle(a, b, c stl.Vec3) stl.Triangle {
	return stl.Triangle{
		Normal:   normal(a, b, c),
		Vertices: [3]stl.Vec3{a, b, c},
	}
}

func normal(a, b, c stl.Vec3) stl.Vec3 {
	u := [3]float64{float64(b[0] - a[0]), float64(b[1] - a[1]), float64(b[2] - a[2])}
	v := [3]float64{float64(c[0] - a[0]), float64(c[1] - a[1]), float64(c[2] - a[2])}

	n := [3]float64{
		u[1]*v[2] - u[2]*v[1],
		u[2]*v[0] - u[0]*v[2],
		u[0]*v[1] - u[1]*v[0],
	}
	l := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if l == 0 {
		return stl.Vec3{0, 0, 1}
	}
	return stl.Vec3{float32(n[0] / l), float32(n[1] / l), float32(n[2] / l)}
}
