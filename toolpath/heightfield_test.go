package toolpath

import (
	"errors"
	"math"
	"testing"
)

func flatField(t *testing.T, w, h int, pixelSize float64) *HeightField {
	t.Helper()
	f, err := NewHeightField(w, h, pixelSize, make([]float64, w*h))
	if err != nil {
		t.Fatalf("can't make height field: %v", err)
	}
	return f
}

// stepField is flat at 0 up to column step, then drops by drop.
func stepField(t *testing.T, w, h, step int, pixelSize, drop float64) *HeightField {
	t.Helper()
	data := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := step; x < w; x++ {
			data[y*w+x] = -drop
		}
	}
	f, err := NewHeightField(w, h, pixelSize, data)
	if err != nil {
		t.Fatalf("can't make height field: %v", err)
	}
	return f
}

func TestNewHeightField(t *testing.T) {
	if _, err := NewHeightField(0, 3, 1, nil); !errors.Is(err, ErrEmptyField) {
		t.Errorf("expected ErrEmptyField, got %v", err)
	}
	if _, err := NewHeightField(2, 2, 1, []float64{0, 0, 0}); err == nil {
		t.Errorf("expected error for short data")
	}
	if _, err := NewHeightField(1, 1, 0, []float64{0}); err == nil {
		t.Errorf("expected error for zero pixel size")
	}

	data := []float64{0, -1, -2, -3}
	f, err := NewHeightField(2, 2, 1, data)
	if err != nil {
		t.Fatalf("can't make height field: %v", err)
	}
	data[0] = -10
	if f.At(0, 0) != 0 {
		t.Errorf("height field should copy its samples")
	}
	if f.Min() != -3 {
		t.Errorf("min should be -3, got %v", f.Min())
	}
}

func TestHeightFieldClamps(t *testing.T) {
	f, _ := NewHeightField(2, 2, 1, []float64{0, -1, -2, -3})

	checkAt(t, f, -5, 0, 0)
	checkAt(t, f, 7, 0, -1)
	checkAt(t, f, 0, 9, -2)
	checkAt(t, f, 4, 4, -3)
}

func checkAt(t *testing.T, f *HeightField, x, y int, want float64) {
	t.Helper()
	if z := f.At(x, y); z != want {
		t.Errorf("At(%d,%d) should be %v, got %v", x, y, want, z)
	}
}

func TestFlatSurfaceHasNoDilation(t *testing.T) {
	f := flatField(t, 9, 7, 0.5)

	for _, shape := range ToolShapes {
		tool, _ := NewTool(shape, 1.5)
		c, err := NewConverter(f, Options{Tool: tool}, &Recorder{})
		if err != nil {
			t.Fatalf("can't make converter: %v", err)
		}

		for y := 0; y < f.H; y++ {
			for x := 0; x < f.W; x++ {
				if z := c.Z(x, y); z != 0 {
					t.Errorf("%s: Z(%d,%d) on flat surface should be 0, got %v", shape, x, y, z)
				}
			}
		}
	}
}

func TestDilationKeepsToolAboveSurface(t *testing.T) {
	f := stepField(t, 12, 5, 6, 0.5, 2)
	tool, _ := NewTool("ball", 2)

	c, _ := NewConverter(f, Options{Tool: tool}, &Recorder{})
	k := c.Kernel()

	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			z := c.Z(x, y)
			if z < f.At(x, y) {
				t.Errorf("Z(%d,%d)=%v is below the surface %v", x, y, z, f.At(x, y))
			}
			// nowhere under the footprint may the tool dip into the surface
			for ky := 0; ky < k.Size; ky++ {
				for kx := 0; kx < k.Size; kx++ {
					kz := k.At(kx, ky)
					if math.IsInf(kz, 1) {
						continue
					}
					sx, sy := x-k.Size/2+kx, y-k.Size/2+ky
					if z+kz < f.At(sx, sy)-1e-9 {
						t.Errorf("tool at (%d,%d) gouges (%d,%d)", x, y, sx, sy)
					}
				}
			}
		}
	}

	// far from the step the tool sits on the lower floor
	if z := c.Z(11, 2); z != -2 {
		t.Errorf("Z(11,2) should be -2, got %v", z)
	}
	// right next to the wall the ball can't reach the floor
	if z := c.Z(6, 2); z <= -2 {
		t.Errorf("Z(6,2) should be held up by the wall, got %v", z)
	}
}

func TestGradientClamps(t *testing.T) {
	data := []float64{
		0, -1, -2,
		0, -1, -2,
	}
	f, _ := NewHeightField(3, 2, 1, data)
	tool, _ := NewTool("flat", 0.1)

	c, _ := NewConverter(f, Options{Tool: tool}, &Recorder{})

	// a 2x2 kernel reaches one pixel up and left, so work out expected depths
	// from Z itself and check the differences
	checkSlope(t, "DzDx(0,0)", c.DzDx(0, 0), (c.Z(1, 0)-c.Z(0, 0))/1)
	checkSlope(t, "DzDx(1,0)", c.DzDx(1, 0), (c.Z(2, 0)-c.Z(0, 0))/2)
	checkSlope(t, "DzDx(2,0)", c.DzDx(2, 0), (c.Z(2, 0)-c.Z(1, 0))/1)
	checkSlope(t, "DzDy(1,0)", c.DzDy(1, 0), (c.Z(1, 1)-c.Z(1, 0))/1)

	single, _ := NewHeightField(1, 1, 1, []float64{-1})
	c, _ = NewConverter(single, Options{Tool: tool}, &Recorder{})
	checkSlope(t, "DzDx on 1px field", c.DzDx(0, 0), 0)
	checkSlope(t, "DzDy on 1px field", c.DzDy(0, 0), 0)
}

func checkSlope(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s should be %v, got %v", name, want, got)
	}
}

func TestDilateRaisesSurface(t *testing.T) {
	f := stepField(t, 10, 4, 5, 1, 3)
	ball := &BallEndMill{radius: 1}
	k := MakeKernel(ball, 1)

	for _, workers := range []int{0, 1, 4} {
		calls := 0
		d := f.Dilate(k, workers, func(cur, total int) {
			calls++
			if total != f.H {
				t.Errorf("progress total should be %d, got %d", f.H, total)
			}
		})

		if calls != f.H {
			t.Errorf("progress should be called %d times, got %d", f.H, calls)
		}

		for y := 0; y < f.H; y++ {
			for x := 0; x < f.W; x++ {
				if d.At(x, y) < f.At(x, y) {
					t.Errorf("dilated surface below input at (%d,%d)", x, y)
				}
			}
		}
		if d.Min() < f.Min() {
			t.Errorf("dilated minimum %v below input minimum %v", d.Min(), f.Min())
		}
		if d.At(9, 0) != -3 {
			t.Errorf("dilated floor away from the wall should stay at -3, got %v", d.At(9, 0))
		}
	}
}
