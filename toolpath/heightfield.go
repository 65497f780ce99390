package toolpath

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

var ErrEmptyField = errors.New("height field has no samples")

// HeightField is a row-major grid of surface depths. Row 0 is the top of the
// image; depths are <= 0 with 0 at the top of the stock.
type HeightField struct {
	W         int
	H         int
	PixelSize float64

	data []float64
	min  float64
}

func NewHeightField(w, h int, pixelSize float64, data []float64) (*HeightField, error) {
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyField
	}
	if len(data) != w*h {
		return nil, fmt.Errorf("height field is %dx%d but has %d samples", w, h, len(data))
	}
	if pixelSize <= 0 {
		return nil, fmt.Errorf("pixel size must be positive, got %g", pixelSize)
	}

	f := &HeightField{
		W:         w,
		H:         h,
		PixelSize: pixelSize,
		data:      make([]float64, len(data)),
	}
	copy(f.data, data)
	f.min = lowest(f.data)

	return f, nil
}

func lowest(data []float64) float64 {
	m := math.Inf(1)
	for _, z := range data {
		if z < m {
			m = z
		}
	}
	return m
}

// At returns the depth at pixel (x,y), clamping out-of-range coordinates to
// the nearest edge pixel.
func (f *HeightField) At(x, y int) float64 {
	x = clampInt(x, 0, f.W-1)
	y = clampInt(y, 0, f.H-1)
	return f.data[y*f.W+x]
}

func (f *HeightField) Min() float64 { return f.min }

// PxToMm converts a pixel coordinate to machine X/Y. The image Y axis points
// down, machine Y points up.
func (f *HeightField) PxToMm(x, y int) (float64, float64) {
	return float64(x) * f.PixelSize, float64(f.H-1-y) * f.PixelSize
}

// dilateAt is the height the tool tip must sit at, centred over (x,y), so
// that no part of the kernel dips below the surface. Window cells beyond the
// field read as pad, or as the nearest edge pixel when pad is NaN.
func (f *HeightField) dilateAt(k *Kernel, x, y int, pad float64) float64 {
	x0 := x - k.Size/2
	y0 := y - k.Size/2

	best := math.Inf(-1)

	for ky := 0; ky < k.Size; ky++ {
		py := y0 + ky
		for kx := 0; kx < k.Size; kx++ {
			kz := k.data[ky*k.Size+kx]
			if math.IsInf(kz, 1) {
				continue
			}

			px := x0 + kx
			var z float64
			if px < 0 || py < 0 || px >= f.W || py >= f.H {
				if math.IsNaN(pad) {
					z = f.At(px, py)
				} else {
					z = pad
				}
			} else {
				z = f.data[py*f.W+px]
			}

			if d := z - kz; d > best {
				best = d
			}
		}
	}

	return best
}

// Dilate sweeps k over every pixel and returns the resulting surface. Pixels
// outside the field are treated as being at the field minimum. Rows are
// shared out between up to workers goroutines; progress is reported from
// the calling goroutine only.
func (f *HeightField) Dilate(k *Kernel, workers int, progress func(int, int)) *HeightField {
	out := &HeightField{
		W:         f.W,
		H:         f.H,
		PixelSize: f.PixelSize,
		data:      make([]float64, len(f.data)),
	}

	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for y := 0; y < f.H; y++ {
		if progress != nil {
			progress(y, f.H)
		}
		g.Go(func() error {
			row := out.data[y*f.W : (y+1)*f.W]
			for x := range row {
				row[x] = f.dilateAt(k, x, y, f.min)
			}
			return nil
		})
	}
	g.Wait()

	out.min = lowest(out.data)

	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
