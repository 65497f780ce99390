package toolpath

import (
	"fmt"
	"math"
	"strings"
)

// Plane select codes, as in G17/G18/G19.
const (
	PlaneXY = 17
	PlaneXZ = 18
	PlaneYZ = 19
)

type Point struct {
	X float64
	Y float64
	Z float64
}

// AtZ is a point that only moves the Z axis; NaN coordinates leave the
// corresponding axis where it is.
func AtZ(z float64) Point {
	return Point{X: math.NaN(), Y: math.NaN(), Z: z}
}

// Sink receives the motion produced by a Converter, in order. Implementations
// keep the first error they hit and report it from Err.
type Sink interface {
	Begin()
	End()
	Continuous(tolerance float64)
	Safety()
	SetPlane(code int)
	SetFeed(rate float64)
	Rapid(x, y float64)
	Cut(p Point)
	Flush()
	Arc(clockwise bool, end Point, radius float64)
	Err() error
}

type MoveKind int

const (
	MoveBegin MoveKind = iota
	MoveEnd
	MoveContinuous
	MoveSafety
	MovePlane
	MoveFeed
	MoveRapid
	MoveCut
	MoveFlush
	MoveArc
)

var moveNames = [...]string{"begin", "end", "continuous", "safety", "plane", "feed", "rapid", "cut", "flush", "arc"}

func (k MoveKind) String() string {
	if int(k) < len(moveNames) {
		return moveNames[k]
	}
	return fmt.Sprintf("MoveKind(%d)", int(k))
}

// Move is one recorded Sink call. Value carries the tolerance, plane code,
// feed rate or arc radius depending on Kind.
type Move struct {
	Kind      MoveKind
	P         Point
	Value     float64
	Clockwise bool
}

func (m Move) String() string {
	switch m.Kind {
	case MoveRapid:
		return fmt.Sprintf("rapid(%g,%g)", m.P.X, m.P.Y)
	case MoveCut:
		return fmt.Sprintf("cut(%g,%g,%g)", m.P.X, m.P.Y, m.P.Z)
	case MoveArc:
		return fmt.Sprintf("arc(cw=%v,%g,%g,%g,r=%g)", m.Clockwise, m.P.X, m.P.Y, m.P.Z, m.Value)
	case MoveContinuous, MovePlane, MoveFeed:
		return fmt.Sprintf("%s(%g)", m.Kind, m.Value)
	default:
		return m.Kind.String() + "()"
	}
}

// Recorder is a Sink that keeps every call in memory.
type Recorder struct {
	Moves []Move
}

func (r *Recorder) add(m Move) { r.Moves = append(r.Moves, m) }

func (r *Recorder) Begin()                 { r.add(Move{Kind: MoveBegin}) }
func (r *Recorder) End()                   { r.add(Move{Kind: MoveEnd}) }
func (r *Recorder) Continuous(tol float64) { r.add(Move{Kind: MoveContinuous, Value: tol}) }
func (r *Recorder) Safety()                { r.add(Move{Kind: MoveSafety}) }
func (r *Recorder) SetPlane(code int)      { r.add(Move{Kind: MovePlane, Value: float64(code)}) }
func (r *Recorder) SetFeed(rate float64)   { r.add(Move{Kind: MoveFeed, Value: rate}) }
func (r *Recorder) Rapid(x, y float64)     { r.add(Move{Kind: MoveRapid, P: Point{x, y, math.NaN()}}) }
func (r *Recorder) Cut(p Point)            { r.add(Move{Kind: MoveCut, P: p}) }
func (r *Recorder) Flush()                 { r.add(Move{Kind: MoveFlush}) }
func (r *Recorder) Err() error             { return nil }
func (r *Recorder) Arc(cw bool, end Point, radius float64) {
	r.add(Move{Kind: MoveArc, P: end, Value: radius, Clockwise: cw})
}

// Count returns how many recorded moves are of the given kind.
func (r *Recorder) Count(kind MoveKind) int {
	n := 0
	for _, m := range r.Moves {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Recorder) String() string {
	sb := strings.Builder{}
	for _, m := range r.Moves {
		sb.WriteString(m.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

type tee []Sink

// Tee returns a Sink that forwards every call to each of sinks in turn.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

func (t tee) Begin() {
	for _, s := range t {
		s.Begin()
	}
}

func (t tee) End() {
	for _, s := range t {
		s.End()
	}
}

func (t tee) Continuous(tol float64) {
	for _, s := range t {
		s.Continuous(tol)
	}
}

func (t tee) Safety() {
	for _, s := range t {
		s.Safety()
	}
}

func (t tee) SetPlane(code int) {
	for _, s := range t {
		s.SetPlane(code)
	}
}

func (t tee) SetFeed(rate float64) {
	for _, s := range t {
		s.SetFeed(rate)
	}
}

func (t tee) Rapid(x, y float64) {
	for _, s := range t {
		s.Rapid(x, y)
	}
}

func (t tee) Cut(p Point) {
	for _, s := range t {
		s.Cut(p)
	}
}

func (t tee) Flush() {
	for _, s := range t {
		s.Flush()
	}
}

func (t tee) Arc(cw bool, end Point, radius float64) {
	for _, s := range t {
		s.Arc(cw, end, radius)
	}
}

func (t tee) Err() error {
	for _, s := range t {
		if err := s.Err(); err != nil {
			return err
		}
	}
	return nil
}
