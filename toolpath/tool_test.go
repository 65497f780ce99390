package toolpath

import (
	"errors"
	"math"
	"testing"
)

func TestToolProfiles(t *testing.T) {
	inf := math.Inf(1)

	tests := []struct {
		shape   string
		heights map[float64]float64 // radius -> height above the tip
	}{
		{"ball", map[float64]float64{0: 0, 1: 0.1010205, 3: 1, 5: 5, 6: inf}},
		{"flat", map[float64]float64{0: 0, 1: 0, 3: 0, 5: 0, 6: inf}},
		// vN is the included angle of the cutter
		{"v60", map[float64]float64{0: 0, 1: math.Sqrt(3), 5: 5 * math.Sqrt(3), 6: inf}},
		{"v30", map[float64]float64{1: 1 / math.Tan(15*math.Pi/180), 6: inf}},
		{"v45", map[float64]float64{2: 2 / math.Tan(22.5*math.Pi/180), 6: inf}},
	}

	for _, tt := range tests {
		tool, err := NewTool(tt.shape, 10)
		if err != nil {
			t.Fatalf("can't create %s tool: %v", tt.shape, err)
		}
		if tool.Radius() != 5 {
			t.Errorf("%s: radius %v, expected 5", tt.shape, tool.Radius())
		}
		for r, h := range tt.heights {
			checkHeightAtRadius(t, tool, r, h)
		}
	}
}

func TestUnknownTool(t *testing.T) {
	_, err := NewTool("drill", 3)
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func checkHeightAtRadius(t *testing.T, tool Tool, r float64, wantheight float64) {
	t.Helper()

	epsilon := 0.00001

	h := tool.HeightAtRadius(r)

	if math.IsInf(wantheight, 1) {
		if !math.IsInf(h, 1) {
			t.Errorf("height at radius %v should be +Inf, got %v", r, h)
		}
		return
	}

	if math.Abs(h-wantheight) > epsilon {
		t.Errorf("height at radius %v should be %v, got %v", r, wantheight, h)
	}
}

func TestKernelSize(t *testing.T) {
	pixelSize := 0.5

	for _, shape := range ToolShapes {
		for _, d := range []float64{0.01, 0.4, 0.5, 0.9, 1, 1.5, 2.2, 3, 6.3} {
			tool, err := NewTool(shape, d)
			if err != nil {
				t.Fatalf("can't create %s tool: %v", shape, err)
			}

			k := MakeKernel(tool, pixelSize)

			want := int(math.Round(d / pixelSize))
			if want < 2 {
				want = 2
			}
			if k.Size != want {
				t.Errorf("%s d=%v: kernel side %d, expected %d", shape, d, k.Size, want)
			}
			if k.Min() != 0 {
				t.Errorf("%s d=%v: kernel minimum %v, expected 0", shape, d, k.Min())
			}
		}
	}
}

func TestKernelShape(t *testing.T) {
	tool, _ := NewTool("ball", 1.5)
	k := MakeKernel(tool, 0.5)

	if k.Size != 3 {
		t.Fatalf("kernel side %d, expected 3", k.Size)
	}

	// centre cell is the tip, edge cells sit 0.5mm out on a 0.75mm radius ball
	if k.At(1, 1) != 0 {
		t.Errorf("centre of ball kernel should be 0, got %v", k.At(1, 1))
	}
	want := 0.75 - math.Sqrt(0.75*0.75-0.25)
	if math.Abs(k.At(0, 1)-want) > 1e-9 {
		t.Errorf("edge of ball kernel should be %v, got %v", want, k.At(0, 1))
	}

	tool, _ = NewTool("flat", 2)
	k = MakeKernel(tool, 0.5)
	if !math.IsInf(k.At(0, 0), 1) {
		t.Errorf("corner of flat kernel should be outside the tool, got %v", k.At(0, 0))
	}
	if k.At(1, 1) != 0 {
		t.Errorf("inside of flat kernel should be 0, got %v", k.At(1, 1))
	}
}
