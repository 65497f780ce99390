// Package stock simulates the material left behind by a toolpath on a
// pixel grid matching the source height field.
package stock

import (
	"math"

	"image2gcode/toolpath"
)

// Stock is a toolpath.Sink that sweeps the tool along every move and keeps
// the lowest point it reached in each pixel. Uncut stock is at Z=0.
type Stock struct {
	W         int
	H         int
	PixelSize float64

	tool   toolpath.Tool
	safety float64
	height []float64

	pos   toolpath.Point
	plane int
}

func New(w, h int, pixelSize float64, tool toolpath.Tool, safetyHeight float64) *Stock {
	return &Stock{
		W:         w,
		H:         h,
		PixelSize: pixelSize,
		tool:      tool,
		safety:    safetyHeight,
		height:    make([]float64, w*h),
		pos:       toolpath.Point{X: math.NaN(), Y: math.NaN(), Z: safetyHeight},
		plane:     toolpath.PlaneXY,
	}
}

// At is the stock height at pixel (x, y), or 0 outside the grid.
func (m *Stock) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return 0
	}
	return m.height[y*m.W+x]
}

// Min is the lowest point cut anywhere.
func (m *Stock) Min() float64 {
	lowest := 0.0
	for _, z := range m.height {
		if z < lowest {
			lowest = z
		}
	}
	return lowest
}

func (m *Stock) MmToPx(x, y float64) (int, int) {
	px := int(math.Round(x / m.PixelSize))
	py := m.H - 1 - int(math.Round(y/m.PixelSize))
	return px, py
}

func (m *Stock) PxToMm(x, y int) (float64, float64) {
	return float64(x) * m.PixelSize, float64(m.H-1-y) * m.PixelSize
}

func (m *Stock) plotPixel(px, py int, z float64) {
	if px < 0 || py < 0 || px >= m.W || py >= m.H {
		return
	}
	if z < m.height[py*m.W+px] {
		m.height[py*m.W+px] = z
	}
}

// PlotToolShape lowers every pixel under the tool with its tip at (x, y, z).
func (m *Stock) PlotToolShape(x, y, z float64) {
	xPx, yPx := m.MmToPx(x, y)

	r := m.tool.Radius()
	rPx := int(r/m.PixelSize) + 1

	for sy := -rPx; sy <= rPx; sy++ {
		for sx := -rPx; sx <= rPx; sx++ {
			dist := math.Hypot(float64(sx), float64(sy)) * m.PixelSize
			if dist > r {
				continue
			}
			m.plotPixel(xPx+sx, yPx+sy, z+m.tool.HeightAtRadius(dist))
		}
	}
}

// PlotLine sweeps the tool in a straight line, one pixel at a time.
func (m *Stock) PlotLine(from, to toolpath.Point) {
	dx := to.X - from.X
	dy := to.Y - from.Y
	dz := to.Z - from.Z

	xyDist := math.Sqrt(dx*dx + dy*dy)
	steps := int(math.Ceil(xyDist / m.PixelSize))
	if steps == 0 {
		// vertical move: only the lower end matters
		m.PlotToolShape(to.X, to.Y, math.Min(from.Z, to.Z))
		return
	}

	for k := 0; k <= steps; k++ {
		t := float64(k) / float64(steps)
		m.PlotToolShape(from.X+dx*t, from.Y+dy*t, from.Z+dz*t)
	}
}

func (m *Stock) moveTo(p toolpath.Point) {
	if math.IsNaN(p.X) {
		p.X = m.pos.X
	}
	if math.IsNaN(p.Y) {
		p.Y = m.pos.Y
	}
	if math.IsNaN(p.Z) {
		p.Z = m.pos.Z
	}

	// nothing to sweep until the first XY position is known, and nothing
	// above the top of the stock gets cut
	known := !math.IsNaN(m.pos.X) && !math.IsNaN(m.pos.Y)
	if known && (p.Z < 0 || m.pos.Z < 0) {
		m.PlotLine(m.pos, p)
	}
	m.pos = p
}

func (m *Stock) Begin()                 {}
func (m *Stock) End()                   {}
func (m *Stock) Continuous(tol float64) {}
func (m *Stock) SetFeed(rate float64)   {}
func (m *Stock) Flush()                 {}
func (m *Stock) Err() error             { return nil }

func (m *Stock) SetPlane(code int) { m.plane = code }

func (m *Stock) Safety() { m.moveTo(toolpath.AtZ(m.safety)) }

func (m *Stock) Rapid(x, y float64) {
	m.moveTo(toolpath.Point{X: x, Y: y, Z: math.NaN()})
}

func (m *Stock) Cut(p toolpath.Point) { m.moveTo(p) }

// Arc sweeps the tool along a circular arc in the current plane, split into
// pixel-sized straight pieces.
func (m *Stock) Arc(clockwise bool, end toolpath.Point, radius float64) {
	start := m.pos
	if math.IsNaN(end.X) {
		end.X = start.X
	}
	if math.IsNaN(end.Y) {
		end.Y = start.Y
	}
	if math.IsNaN(end.Z) {
		end.Z = start.Z
	}

	get, set := planeAxes(m.plane)
	su, sv := get(start)
	eu, ev := get(end)

	du, dv := eu-su, ev-sv
	chord := math.Hypot(du, dv)
	if chord == 0 || radius <= 0 {
		m.moveTo(end)
		return
	}

	// centre is to the right of the chord for clockwise arcs
	h := math.Sqrt(math.Max(0, radius*radius-chord*chord/4))
	side := 1.0
	if !clockwise {
		side = -1
	}
	cu := su + du/2 + side*h*dv/chord
	cv := sv + dv/2 - side*h*du/chord

	a0 := math.Atan2(sv-cv, su-cu)
	a1 := math.Atan2(ev-cv, eu-cu)
	sweep := a1 - a0
	if clockwise && sweep > 0 {
		sweep -= 2 * math.Pi
	}
	if !clockwise && sweep < 0 {
		sweep += 2 * math.Pi
	}

	r := math.Hypot(su-cu, sv-cv)
	steps := int(math.Ceil(math.Abs(sweep) * r / m.PixelSize))
	if steps < 4 {
		steps = 4
	}

	for k := 1; k < steps; k++ {
		a := a0 + sweep*float64(k)/float64(steps)
		m.moveTo(set(start, cu+r*math.Cos(a), cv+r*math.Sin(a)))
	}
	m.moveTo(end)
}

// planeAxes returns accessors for the in-plane coordinates of a point, in the
// order that makes G2 clockwise in that plane.
func planeAxes(plane int) (func(toolpath.Point) (float64, float64), func(toolpath.Point, float64, float64) toolpath.Point) {
	switch plane {
	case toolpath.PlaneXZ:
		return func(p toolpath.Point) (float64, float64) { return p.Z, p.X },
			func(p toolpath.Point, u, v float64) toolpath.Point { p.Z, p.X = u, v; return p }
	case toolpath.PlaneYZ:
		return func(p toolpath.Point) (float64, float64) { return p.Y, p.Z },
			func(p toolpath.Point, u, v float64) toolpath.Point { p.Y, p.Z = u, v; return p }
	default:
		return func(p toolpath.Point) (float64, float64) { return p.X, p.Y },
			func(p toolpath.Point, u, v float64) toolpath.Point { p.X, p.Y = u, v; return p }
	}
}
