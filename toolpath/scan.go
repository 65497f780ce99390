package toolpath

import (
	"errors"
	"fmt"
	"iter"
	"math"
)

var ErrUnknownScan = errors.New("unrecognised scan order")

// DefaultSlop is how far a slope may run against the current direction
// before Upmill/Downmill start a new span.
var DefaultSlop = math.Sin(math.Pi / 18)

// Sample is one point of a raster line. Along is the surface slope in the
// direction of increasing Index, Cross is the slope across the line.
type Sample struct {
	Index int
	Pos   Point
	Along float64
	Cross float64
}

type Scanline []Sample

// Span is a run of samples to be cut in order. Entry is set when the tool
// has to be brought down to the first sample rather than carrying on from
// wherever the previous span left it.
type Span struct {
	Entry   bool
	Samples Scanline
}

// ScanStrategy decides the order in which the samples of a line are cut.
// primary is set for the first axis milled in a pass.
type ScanStrategy interface {
	Scan(primary bool, line Scanline) iter.Seq[Span]
	Reset()
}

// NewScan builds a strategy by name: increasing, decreasing, alternating,
// upmill or downmill.
func NewScan(name string) (ScanStrategy, error) {
	switch name {
	case "increasing", "positive":
		return Increasing{}, nil
	case "decreasing", "negative":
		return Decreasing{}, nil
	case "alternating":
		return &Alternating{}, nil
	case "upmill", "up":
		return &Upmill{Slop: DefaultSlop}, nil
	case "downmill", "down":
		return &Downmill{Slop: DefaultSlop}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownScan, name)
	}
}

func (l Scanline) Reversed() Scanline {
	out := make(Scanline, len(l))
	for i := range l {
		out[len(l)-1-i] = l[i]
	}
	return out
}

func single(entry bool, line Scanline) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		if len(line) == 0 {
			return
		}
		yield(Span{Entry: entry, Samples: line})
	}
}

type Increasing struct{}

func (Increasing) Scan(primary bool, line Scanline) iter.Seq[Span] { return single(true, line) }
func (Increasing) Reset()                                          {}

type Decreasing struct{}

func (Decreasing) Scan(primary bool, line Scanline) iter.Seq[Span] {
	return single(true, line.Reversed())
}
func (Decreasing) Reset() {}

// Alternating zig-zags: every call runs the opposite way to the one before,
// and only the first line after Reset needs an entry move.
type Alternating struct {
	passes int
}

func (a *Alternating) Scan(primary bool, line Scanline) iter.Seq[Span] {
	a.passes++
	if a.passes%2 == 0 {
		line = line.Reversed()
	}
	return single(a.passes == 1, line)
}

func (a *Alternating) Reset() { a.passes = 0 }

type signGroup struct {
	sign    float64
	samples Scanline
}

// groupBySign splits line where Along turns against the current direction by
// more than slop. The sample where the direction flips ends one group and
// starts the next. Zero slopes never flip the direction.
func groupBySign(line Scanline, slop float64) []signGroup {
	if len(line) == 0 {
		return nil
	}

	var groups []signGroup

	sign := 0.0
	start := 0

	for i, s := range line {
		k := s.Along
		if sign == 0 {
			if k != 0 {
				sign = math.Copysign(1, k)
			}
			continue
		}
		if sign*k < -slop {
			groups = append(groups, signGroup{sign: sign, samples: line[start : i+1]})
			start = i
			sign = math.Copysign(1, k)
		}
	}

	return append(groups, signGroup{sign: sign, samples: line[start:]})
}

// Upmill cuts every span uphill (conventional milling).
type Upmill struct {
	Slop float64
}

func (u *Upmill) Scan(primary bool, line Scanline) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		for _, g := range groupBySign(line, u.Slop) {
			span := g.samples
			if g.sign < 0 {
				span = span.Reversed()
			}
			if !yield(Span{Entry: true, Samples: span}) {
				return
			}
		}
	}
}

func (u *Upmill) Reset() {}

// Downmill cuts every span downhill (climb milling).
type Downmill struct {
	Slop float64
}

func (d *Downmill) Scan(primary bool, line Scanline) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		for _, g := range groupBySign(line, d.Slop) {
			span := g.samples
			if g.sign > 0 {
				span = span.Reversed()
			}
			if !yield(Span{Entry: true, Samples: span}) {
				return
			}
		}
	}
}

func (d *Downmill) Reset() {}

// Lace narrows the spans of Inner so the two axes of a pass share the
// surface between them. The primary axis keeps the ground that is no steeper
// than Slope across the line. The secondary axis keeps what is at least Slope
// steep along its own line, which is the same gradient seen from the other
// axis, so every sample is cut by one axis or the other. Gaps of fewer than
// Keep samples are bridged, and each kept run is widened to multiples of Keep.
type Lace struct {
	Inner ScanStrategy
	Slope float64
	Keep  int
}

func (l *Lace) Scan(primary bool, line Scanline) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		for span := range l.Inner.Scan(primary, line) {
			for _, run := range l.runs(primary, span.Samples) {
				if !yield(Span{Entry: true, Samples: run}) {
					return
				}
			}
		}
	}
}

func (l *Lace) Reset() { l.Inner.Reset() }

func (l *Lace) keeps(primary bool, s Sample) bool {
	if primary {
		return math.Abs(s.Cross) <= l.Slope
	}
	return math.Abs(s.Along) >= l.Slope
}

func (l *Lace) runs(primary bool, span Scanline) []Scanline {
	keep := l.Keep
	if keep < 1 {
		keep = 1
	}

	startOf := func(j int) int { return j - j%keep }
	endOf := func(j int) int {
		if j%keep != 0 {
			j += keep - j%keep
		}
		return min(j, len(span))
	}

	var out []Scanline

	a, b := -1, -1
	for i, s := range span {
		if a < 0 {
			if l.keeps(primary, s) {
				a, b = i, i
			}
			continue
		}
		if l.keeps(primary, s) {
			b = i
			continue
		}
		if i-b < keep {
			continue
		}
		out = append(out, span[startOf(a):endOf(b+1)])
		a = -1
	}

	if a >= 0 {
		out = append(out, span[startOf(a):])
	}

	return out
}
