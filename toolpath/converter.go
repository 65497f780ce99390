package toolpath

import (
	"fmt"
	"log"
	"math"
)

// Options configures a Converter. Zero values are normalised by NewConverter:
// a missing roughing feed falls back to Feed, a PixelStep below 1 becomes 1,
// a nil Entry becomes SimpleEntry.
type Options struct {
	Tool Tool

	// PixelStep is the stride between milled columns.
	PixelStep int

	SafetyHeight float64
	Tolerance    float64
	Feed         float64

	// Roughing is enabled when both RoughingOffset and RoughingDelta are
	// positive.
	RoughingOffset float64
	RoughingDelta  float64
	RoughingFeed   float64

	// Rows and Cols select the scan order for each axis; nil skips the axis.
	Rows      ScanStrategy
	Cols      ScanStrategy
	ColsFirst bool

	Entry EntryCutStrategy

	// Epsilon absorbs rounding when counting roughing passes.
	Epsilon float64

	// Progress, when set, is called with (current, total) as lines are
	// milled and while the roughing surface is built.
	Progress func(int, int)

	// Workers bounds the goroutines used to build the roughing surface.
	Workers int
}

// PassConfig holds what changes between roughing and finishing passes.
type PassConfig struct {
	Feed float64
	// Offset is added to every depth (ro).
	Offset float64
	// Floor is the deepest depth allowed (rd).
	Floor float64
}

type Converter struct {
	base   *HeightField
	field  *HeightField
	kernel *Kernel
	opts   Options
	sink   Sink

	// raw dilated depth per pixel of field; only valid for the field it was
	// computed from
	cache map[[2]int]float64
	pass  PassConfig
}

func NewConverter(field *HeightField, opts Options, sink Sink) (*Converter, error) {
	if field == nil {
		return nil, ErrEmptyField
	}
	if opts.Tool == nil {
		return nil, fmt.Errorf("no tool given")
	}
	if sink == nil {
		return nil, fmt.Errorf("no output sink given")
	}

	if opts.PixelStep < 1 {
		opts.PixelStep = 1
	}
	if opts.RoughingFeed <= 0 {
		opts.RoughingFeed = opts.Feed
	}
	if opts.Entry == nil {
		opts.Entry = SimpleEntry{}
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = 1e-5
	}

	c := &Converter{
		base:   field,
		field:  field,
		kernel: MakeKernel(opts.Tool, field.PixelSize),
		opts:   opts,
		sink:   sink,
		cache:  make(map[[2]int]float64),
	}
	c.pass = PassConfig{Feed: opts.Feed, Floor: field.Min()}

	return c, nil
}

func (c *Converter) Sink() Sink              { return c.sink }
func (c *Converter) PixelSize() float64      { return c.field.PixelSize }
func (c *Converter) SafetyHeight() float64   { return c.opts.SafetyHeight }
func (c *Converter) Feed() float64           { return c.pass.Feed }
func (c *Converter) Kernel() *Kernel         { return c.kernel }
func (c *Converter) Pass() PassConfig        { return c.pass }
func (c *Converter) Bounds() (w int, h int)  { return c.field.W, c.field.H }
func (c *Converter) SetPass(pass PassConfig) { c.pass = pass }

// ClearCache forgets every memoised depth. It must be called whenever the
// surface being milled changes.
func (c *Converter) ClearCache() {
	clear(c.cache)
}

// Z is the tool tip depth at pixel (x,y) for the current pass.
func (c *Converter) Z(x, y int) float64 {
	key := [2]int{x, y}
	d, ok := c.cache[key]
	if !ok {
		d = c.field.dilateAt(c.kernel, x, y, math.NaN())
		c.cache[key] = d
	}
	return math.Min(0, math.Max(c.pass.Floor, d)+c.pass.Offset)
}

func (c *Converter) DzDx(x, y int) float64 {
	x1 := max(0, x-1)
	x2 := min(c.field.W-1, x+1)
	if x1 == x2 {
		return 0
	}
	return (c.Z(x2, y) - c.Z(x1, y)) / (c.field.PixelSize * float64(x2-x1))
}

func (c *Converter) DzDy(x, y int) float64 {
	y1 := max(0, y-1)
	y2 := min(c.field.H-1, y+1)
	if y1 == y2 {
		return 0
	}
	return (c.Z(x, y2) - c.Z(x, y1)) / (c.field.PixelSize * float64(y2-y1))
}

// Position is the machine coordinate of the tool tip over pixel (x,y).
func (c *Converter) Position(x, y int) Point {
	px, py := c.field.PxToMm(x, y)
	return Point{X: px, Y: py, Z: c.Z(x, y)}
}

func (c *Converter) progress(cur, total int) {
	if c.opts.Progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("progress callback: %v", r)
		}
	}()
	c.opts.Progress(cur, total)
}

// RoughingPasses is the number of step-downs of delta needed to reach depth
// from the top surface.
func RoughingPasses(depth, delta, epsilon float64) int {
	if delta <= 0 || depth >= 0 {
		return 0
	}
	return int(math.Ceil(-depth/delta - epsilon))
}

func (c *Converter) roughing() bool {
	return c.opts.RoughingDelta > 0 && c.opts.RoughingOffset > 0
}

// Convert emits the whole program: roughing passes (if configured) followed
// by one finishing pass. It returns the sink's error, if any.
func (c *Converter) Convert() error {
	s := c.sink

	s.Begin()
	s.Continuous(c.opts.Tolerance)
	s.Safety()

	if c.roughing() {
		c.rough()
	}

	c.pass = PassConfig{Feed: c.opts.Feed, Offset: 0, Floor: c.base.Min()}
	c.onePass()

	s.End()

	return s.Err()
}

func (c *Converter) rough() {
	ball := &BallEndMill{radius: c.opts.RoughingOffset}
	shape := MakeKernel(ball, c.base.PixelSize)

	c.field = c.base.Dilate(shape, c.opts.Workers, c.progress)
	c.ClearCache()

	deepest := c.field.Min()
	n := RoughingPasses(deepest, c.opts.RoughingDelta, c.opts.Epsilon)

	for k := 1; k <= n; k++ {
		c.pass = PassConfig{
			Feed:   c.opts.RoughingFeed,
			Offset: c.opts.RoughingOffset,
			Floor:  math.Max(deepest, -float64(k)*c.opts.RoughingDelta),
		}
		c.onePass()
		if c.sink.Err() != nil {
			break
		}
	}

	c.field = c.base
	c.ClearCache()
}

func (c *Converter) onePass() {
	s := c.sink
	rows, cols := c.opts.Rows, c.opts.Cols

	s.SetFeed(c.pass.Feed)

	colsFirst := c.opts.ColsFirst && cols != nil

	if colsFirst {
		s.SetPlane(PlaneYZ)
		c.millCols(cols, true)
		if rows != nil {
			s.Safety()
		}
	}

	if rows != nil {
		s.SetPlane(PlaneXZ)
		c.millRows(rows, !colsFirst)
	}

	if cols != nil && !colsFirst {
		s.SetPlane(PlaneYZ)
		if rows != nil {
			s.Safety()
		}
		c.millCols(cols, rows == nil)
	}

	if cols != nil {
		cols.Reset()
	}
	if rows != nil {
		rows.Reset()
	}

	s.Safety()
}

// millRows cuts every row. Rows are not thinned by PixelStep.
func (c *Converter) millRows(scan ScanStrategy, primary bool) {
	w, h := c.field.W, c.field.H

	for j := 0; j < h; j++ {
		c.progress(j, h)

		line := make(Scanline, 0, w)
		for i := 0; i < w; i++ {
			line = append(line, Sample{
				Index: i,
				Pos:   c.Position(i, j),
				Along: c.DzDx(i, j),
				Cross: c.DzDy(i, j),
			})
		}

		for span := range scan.Scan(primary, line) {
			if len(span.Samples) == 0 {
				continue
			}
			if span.Entry {
				c.opts.Entry.Enter(c, span.Samples[0].Index, j, span.Samples)
			}
			c.cut(span.Samples)
		}
		c.sink.Flush()
	}
}

// columns lists the columns to mill: every PixelStep-th one plus the last,
// from right to left.
func (c *Converter) columns() []int {
	w := c.field.W

	var cols []int
	for i := 0; i < w; i += c.opts.PixelStep {
		cols = append(cols, i)
	}
	if cols[len(cols)-1] != w-1 {
		cols = append(cols, w-1)
	}

	for a, b := 0, len(cols)-1; a < b; a, b = a+1, b-1 {
		cols[a], cols[b] = cols[b], cols[a]
	}

	return cols
}

func (c *Converter) millCols(scan ScanStrategy, primary bool) {
	h := c.field.H
	cols := c.columns()

	for n, i := range cols {
		c.progress(n, len(cols))

		line := make(Scanline, 0, h)
		for j := 0; j < h; j++ {
			line = append(line, Sample{
				Index: j,
				Pos:   c.Position(i, j),
				Along: c.DzDy(i, j),
				Cross: c.DzDx(i, j),
			})
		}

		for span := range scan.Scan(primary, line) {
			if len(span.Samples) == 0 {
				continue
			}
			if span.Entry {
				c.opts.Entry.Enter(c, i, span.Samples[0].Index, span.Samples)
			}
			c.cut(span.Samples)
		}
		c.sink.Flush()
	}
}

func (c *Converter) cut(span Scanline) {
	for _, p := range span {
		c.sink.Cut(p.Pos)
	}
}
