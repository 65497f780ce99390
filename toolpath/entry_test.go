package toolpath

import (
	"math"
	"testing"
)

// tip is a tool small enough to collapse to a 2x2 kernel of zeros.
func tip(t *testing.T) Tool {
	t.Helper()
	tool, err := NewTool("flat", 0.01)
	if err != nil {
		t.Fatalf("can't create tool: %v", err)
	}
	return tool
}

func rowSpan(c *Converter, j, from, to int) Scanline {
	var line Scanline
	step := 1
	if to < from {
		step = -1
	}
	for i := from; ; i += step {
		line = append(line, Sample{Index: i, Pos: c.Position(i, j), Along: c.DzDx(i, j), Cross: c.DzDy(i, j)})
		if i == to {
			break
		}
	}
	return line
}

func colSpan(c *Converter, i, from, to int) Scanline {
	var line Scanline
	step := 1
	if to < from {
		step = -1
	}
	for j := from; ; j += step {
		line = append(line, Sample{Index: j, Pos: c.Position(i, j), Along: c.DzDy(i, j), Cross: c.DzDx(i, j)})
		if j == to {
			break
		}
	}
	return line
}

func rampField(t *testing.T, w, h int, pixelSize, slope float64) *HeightField {
	t.Helper()
	data := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			data[y*w+x] = -slope * float64(x)
		}
	}
	f, err := NewHeightField(w, h, pixelSize, data)
	if err != nil {
		t.Fatalf("can't make height field: %v", err)
	}
	return f
}

func lastArc(t *testing.T, rec *Recorder) (Move, int) {
	t.Helper()
	for i := len(rec.Moves) - 1; i >= 0; i-- {
		if rec.Moves[i].Kind == MoveArc {
			return rec.Moves[i], i
		}
	}
	t.Fatalf("no arc emitted:\n%s", rec)
	return Move{}, -1
}

func TestSimpleEntry(t *testing.T) {
	f := flatField(t, 4, 4, 0.5)
	rec := &Recorder{}
	c, _ := NewConverter(f, Options{Tool: tip(t), SafetyHeight: 10, Feed: 300}, rec)

	span := rowSpan(c, 1, 0, 3)
	SimpleEntry{}.Enter(c, 0, 1, span)

	if rec.String() != "safety()\nrapid(0,1)\n" {
		t.Errorf("unexpected simple entry:\n%s", rec)
	}

	rec.Moves = nil
	SimpleEntry{PlungeFeed: 50}.Enter(c, 0, 1, span)

	want := "safety()\nrapid(0,1)\nfeed(50)\ncut(NaN,NaN,0)\nfeed(300)\n"
	if rec.String() != want {
		t.Errorf("unexpected plunging entry:\n%s\nwant:\n%s", rec, want)
	}
}

func TestArcEntryAgainstWall(t *testing.T) {
	// flat then a 1.0 drop at column 5; with the 2x2 tip kernel Z(x) is
	// the higher of columns x-1 and x, so the first low point is column 6
	f := stepField(t, 10, 3, 5, 0.08, 1)
	rec := &Recorder{}
	c, _ := NewConverter(f, Options{Tool: tip(t), SafetyHeight: 10, Feed: 300}, rec)

	span := rowSpan(c, 1, 6, 9)
	ArcEntry{MaxRadius: 0.5}.Enter(c, 6, 1, span)

	arc, _ := lastArc(t, rec)
	if math.Abs(arc.Value-0.08) > 1e-9 {
		t.Errorf("wall right behind the start should limit the radius to one pixel, got %v", arc.Value)
	}
	if arc.P != span[0].Pos {
		t.Errorf("arc should end on the first cut point %v, got %v", span[0].Pos, arc.P)
	}
	if !arc.Clockwise {
		t.Errorf("arc into a +X cut should be clockwise")
	}

	// the rapid sits one radius back along the row, the plunge one radius up
	rapid := rec.Moves[1]
	if rapid.Kind != MoveRapid || math.Abs(rapid.P.X-(span[0].Pos.X-0.08)) > 1e-9 || rapid.P.Y != span[0].Pos.Y {
		t.Errorf("unexpected rapid %v", rapid)
	}
	plunge := rec.Moves[2]
	if plunge.Kind != MoveCut || math.Abs(plunge.P.Z-(span[0].Pos.Z+0.08)) > 1e-9 {
		t.Errorf("unexpected plunge %v", plunge)
	}
}

func TestArcEntryOnRamp(t *testing.T) {
	f := rampField(t, 12, 3, 0.08, 0.01)
	rec := &Recorder{}
	c, _ := NewConverter(f, Options{Tool: tip(t), SafetyHeight: 10, Feed: 300}, rec)

	span := rowSpan(c, 1, 5, 11)
	ArcEntry{MaxRadius: 0.5}.Enter(c, 5, 1, span)

	// rising 0.01 per 0.08 behind the start: the tightest tangent circle is
	// the one through the first pixel back
	arc, _ := lastArc(t, rec)
	want := (0.08*0.08/0.01 + 0.01) / 2
	if math.Abs(arc.Value-want) > 1e-9 {
		t.Errorf("arc radius should be %v, got %v", want, arc.Value)
	}
	if arc.Value > 0.5 {
		t.Errorf("arc radius %v exceeds the maximum", arc.Value)
	}
}

func TestArcEntryStepSurface(t *testing.T) {
	f := stepField(t, 8, 4, 3, 0.08, 1)
	rec := &Recorder{}
	c, err := NewConverter(f, Options{
		Tool:         tip(t),
		SafetyHeight: 10,
		Feed:         300,
		Rows:         Increasing{},
		Cols:         Decreasing{},
		Entry:        ArcEntry{MaxRadius: 0.125},
	}, rec)
	if err != nil {
		t.Fatalf("can't make converter: %v", err)
	}
	if err := c.Convert(); err != nil {
		t.Fatalf("convert: %v", err)
	}

	arcs := 0
	for i, m := range rec.Moves {
		if m.Kind != MoveArc {
			continue
		}
		arcs++
		if m.Value > 0.125 || m.Value <= 0 {
			t.Errorf("arc radius %v outside (0, 0.125]", m.Value)
		}
		next := rec.Moves[i+1]
		if next.Kind != MoveCut || next.P != m.P {
			t.Errorf("arc ends at %v but the first cut is %v", m.P, next)
		}
	}
	if arcs == 0 {
		t.Errorf("no entry arcs emitted")
	}
}

func TestArcEntryColumn(t *testing.T) {
	f := flatField(t, 3, 10, 0.1)
	rec := &Recorder{}
	c, _ := NewConverter(f, Options{Tool: tip(t), SafetyHeight: 10, Feed: 300}, rec)

	// columns run down the image, which is towards -Y
	span := colSpan(c, 1, 2, 9)
	ArcEntry{MaxRadius: 0.3}.Enter(c, 1, 2, span)

	arc, _ := lastArc(t, rec)
	if arc.Value != 0.3 {
		t.Errorf("flat ground shouldn't shrink the radius, got %v", arc.Value)
	}
	if !arc.Clockwise {
		t.Errorf("arc into a -Y cut should be clockwise")
	}
	rapid := rec.Moves[1]
	if math.Abs(rapid.P.Y-(span[0].Pos.Y+0.3)) > 1e-9 || rapid.P.X != span[0].Pos.X {
		t.Errorf("rapid should sit 0.3 behind the start in Y, got %v", rapid)
	}
}

func TestArcEntryShortSpan(t *testing.T) {
	f := flatField(t, 3, 3, 0.5)
	rec := &Recorder{}
	c, _ := NewConverter(f, Options{Tool: tip(t), SafetyHeight: 10}, rec)

	ArcEntry{MaxRadius: 1}.Enter(c, 2, 0, rowSpan(c, 0, 2, 2))

	if rec.Count(MoveArc) != 0 || rec.Count(MoveRapid) != 1 || rec.Count(MoveSafety) != 1 {
		t.Errorf("single point span should fall back to a plunge:\n%s", rec)
	}
}

func TestSign(t *testing.T) {
	for _, c := range []struct {
		v    float64
		want int
	}{{-3, -1}, {0, 0}, {0.001, 1}} {
		if got := sign(c.v); got != c.want {
			t.Errorf("sign(%v) = %d, expected %d", c.v, got, c.want)
		}
	}
}
