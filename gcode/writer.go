package gcode

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"image2gcode/toolpath"
)

type Options struct {
	Imperial     bool
	SafetyHeight float64
	SpindleSpeed float64

	// Tolerance is how far buffered cuts may be straightened out before
	// being written.
	Tolerance float64

	XOffset float64
	YOffset float64
	ZOffset float64

	// RapidFeed and MaxVel are only used for the cycle time estimate.
	RapidFeed float64
	MaxVel    float64
}

// Writer is a toolpath.Sink producing RS274 text. Cuts are buffered per line
// and straightened on Flush; modal words are only written when they change.
type Writer struct {
	w   *bufio.Writer
	opt Options

	pos      toolpath.Point
	lastCode string
	plane    int
	feed     float64

	cuts []toolpath.Point

	cycleTime float64
	err       error
}

func NewWriter(w io.Writer, opt Options) *Writer {
	return &Writer{
		w:   bufio.NewWriter(w),
		opt: opt,
		pos: toolpath.Point{X: math.NaN(), Y: math.NaN(), Z: opt.SafetyHeight},
	}
}

func (g *Writer) write(format string, args ...any) {
	if g.err != nil {
		return
	}
	_, g.err = fmt.Fprintf(g.w, format, args...)
}

func (g *Writer) Err() error { return g.err }

// CycleTime is the estimated run time in seconds of everything written so far.
func (g *Writer) CycleTime() float64 { return g.cycleTime }

func (g *Writer) Begin() {
	if g.opt.Imperial {
		g.write("G20\n") // inches
	} else {
		g.write("G21\n") // mm
	}
	g.write("G90\n") // absolute coordinates
	g.write("G54\n") // work coordinate system
	g.write("G40 G49 G94\n")
	g.write("M3 S%g\n", g.opt.SpindleSpeed)
}

func (g *Writer) End() {
	g.Flush()
	g.Safety()
	g.write("M5\nM2\n") // stop spindle, end program
	if g.err == nil {
		g.err = g.w.Flush()
	}
}

func (g *Writer) Continuous(tolerance float64) {
	if tolerance > 0 {
		g.write("G64 P%.4f\n", tolerance)
	} else {
		g.write("G64\n")
	}
}

func (g *Writer) Safety() {
	g.Flush()
	g.move("G0", toolpath.AtZ(g.opt.SafetyHeight))
}

func (g *Writer) SetPlane(code int) {
	if code == g.plane {
		return
	}
	g.Flush()
	g.plane = code
	g.write("G%d\n", code)
}

func (g *Writer) SetFeed(rate float64) {
	g.Flush()
	g.feed = rate
	g.write("F%.4f\n", rate)
}

func (g *Writer) Rapid(x, y float64) {
	g.Flush()
	g.move("G0", toolpath.Point{X: x, Y: y, Z: math.NaN()})
}

func (g *Writer) Cut(p toolpath.Point) {
	last := g.pos
	if len(g.cuts) > 0 {
		last = g.cuts[len(g.cuts)-1]
	}
	g.cuts = append(g.cuts, fill(p, last))
}

func (g *Writer) Flush() {
	if len(g.cuts) == 0 {
		return
	}
	for _, p := range Simplify(g.cuts, g.opt.Tolerance) {
		g.move("G1", p)
	}
	g.cuts = g.cuts[:0]
}

// Arc writes a G2/G3 move in the current plane, naming only the two in-plane
// axes of the end point.
func (g *Writer) Arc(clockwise bool, end toolpath.Point, radius float64) {
	g.Flush()

	code := "G3"
	if clockwise {
		code = "G2"
	}

	end = fill(end, g.pos)

	var words string
	switch g.plane {
	case toolpath.PlaneXZ:
		words = fmt.Sprintf("X%.4f Z%.4f", end.X+g.opt.XOffset, end.Z+g.opt.ZOffset)
	case toolpath.PlaneYZ:
		words = fmt.Sprintf("Y%.4f Z%.4f", end.Y+g.opt.YOffset, end.Z+g.opt.ZOffset)
	default:
		words = fmt.Sprintf("X%.4f Y%.4f", end.X+g.opt.XOffset, end.Y+g.opt.YOffset)
	}
	g.write("%s %s R%.4f\n", code, words, radius)

	// quarter circle
	g.account(math.Pi/2*radius, g.feed)

	g.pos = end
	g.lastCode = "" // force the next move to restate its G word
}

func fill(p, from toolpath.Point) toolpath.Point {
	if math.IsNaN(p.X) {
		p.X = from.X
	}
	if math.IsNaN(p.Y) {
		p.Y = from.Y
	}
	if math.IsNaN(p.Z) {
		p.Z = from.Z
	}
	return p
}

func (g *Writer) move(code string, p toolpath.Point) {
	p = fill(p, g.pos)

	cmd := strings.Builder{}
	if p.X != g.pos.X && !math.IsNaN(p.X) {
		fmt.Fprintf(&cmd, " X%.4f", p.X+g.opt.XOffset)
	}
	if p.Y != g.pos.Y && !math.IsNaN(p.Y) {
		fmt.Fprintf(&cmd, " Y%.4f", p.Y+g.opt.YOffset)
	}
	if p.Z != g.pos.Z && !math.IsNaN(p.Z) {
		fmt.Fprintf(&cmd, " Z%.4f", p.Z+g.opt.ZOffset)
	}
	if cmd.Len() == 0 {
		return
	}

	feed := g.feed
	if code == "G0" {
		feed = g.opt.RapidFeed
	}
	g.account(distance(g.pos, p), feed)

	if code != g.lastCode {
		g.write("%s%s\n", code, cmd.String())
		g.lastCode = code
	} else {
		g.write("%s\n", strings.TrimPrefix(cmd.String(), " "))
	}

	g.pos = p
}

func distance(a, b toolpath.Point) float64 {
	d := 0.0
	for _, v := range [3]float64{b.X - a.X, b.Y - a.Y, b.Z - a.Z} {
		// unknown start position: count nothing for that axis
		if !math.IsNaN(v) {
			d += v * v
		}
	}
	return math.Sqrt(d)
}

func (g *Writer) account(dist, feed float64) {
	if g.opt.MaxVel > 0 && feed > g.opt.MaxVel {
		feed = g.opt.MaxVel
	}
	if feed <= 0 {
		return
	}
	g.cycleTime += 60 * (dist / feed)
}
