package toolpath

import (
	"errors"
	"fmt"
	"math"
)

var ErrUnknownTool = errors.New("unrecognised tool type")

type Tool interface {
	Radius() float64
	HeightAtRadius(float64) float64
}

type BallEndMill struct{ radius float64 }
type FlatEndMill struct{ radius float64 }

// VBit is a conical engraving cutter; angle is the included angle in degrees.
type VBit struct {
	radius float64
	angle  float64
}

// ToolShapes lists the names accepted by NewTool.
var ToolShapes = []string{"ball", "flat", "v30", "v45", "v60"}

func NewTool(shape string, diameter float64) (Tool, error) {
	switch shape {
	case "ball":
		return &BallEndMill{radius: diameter / 2}, nil
	case "flat", "endmill":
		return &FlatEndMill{radius: diameter / 2}, nil
	case "v30":
		return &VBit{radius: diameter / 2, angle: 30}, nil
	case "v45":
		return &VBit{radius: diameter / 2, angle: 45}, nil
	case "v60":
		return &VBit{radius: diameter / 2, angle: 60}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, shape)
	}
}

func (t *BallEndMill) Radius() float64 { return t.radius }
func (t *FlatEndMill) Radius() float64 { return t.radius }
func (t *VBit) Radius() float64        { return t.radius }

func (t *BallEndMill) HeightAtRadius(r float64) float64 {
	if r > t.radius {
		return math.Inf(1)
	}

	return t.radius - math.Sqrt(t.radius*t.radius-r*r)
}

func (t *FlatEndMill) HeightAtRadius(r float64) float64 {
	if r > t.radius {
		return math.Inf(1)
	}

	return 0
}

func (t *VBit) HeightAtRadius(r float64) float64 {
	if r > t.radius {
		return math.Inf(1)
	}

	halfAngle := t.angle / 2 * math.Pi / 180
	return r / math.Tan(halfAngle)
}

// Kernel is the square footprint of a tool sampled on the pixel grid. Each
// cell holds the height of the tool surface above its lowest point; cells
// outside the tool radius are +Inf.
type Kernel struct {
	Size int
	data []float64
}

// MakeKernel samples tool at the centre of every cell of a Size x Size grid,
// where Size is the tool diameter in pixels (at least 2).
func MakeKernel(tool Tool, pixelSize float64) *Kernel {
	ts := int(math.Floor(2*tool.Radius()/pixelSize + 0.5))
	if ts < 2 {
		ts = 2
	}

	k := &Kernel{Size: ts, data: make([]float64, ts*ts)}

	half := float64(ts) / 2
	lowest := math.Inf(1)

	for y := 0; y < ts; y++ {
		for x := 0; x < ts; x++ {
			r := math.Hypot(float64(x)-half+0.5, float64(y)-half+0.5) * pixelSize
			h := math.Inf(1)
			if r < tool.Radius() {
				h = tool.HeightAtRadius(r)
			}
			k.data[y*ts+x] = h
			if h < lowest {
				lowest = h
			}
		}
	}

	// a tool narrower than the smallest kernel doesn't reach any cell centre,
	// so treat the whole kernel as the tip
	if math.IsInf(lowest, 1) {
		for i := range k.data {
			k.data[i] = 0
		}
		return k
	}

	for i := range k.data {
		k.data[i] -= lowest
	}

	return k
}

func (k *Kernel) At(x, y int) float64 {
	return k.data[y*k.Size+x]
}

func (k *Kernel) Min() float64 {
	lowest := math.Inf(1)
	for _, h := range k.data {
		if h < lowest {
			lowest = h
		}
	}
	return lowest
}
