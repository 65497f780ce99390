package toolpath

import "math"

// EntryCutStrategy brings the tool down to the first sample of span. (i0,j0)
// is the pixel of that sample.
type EntryCutStrategy interface {
	Enter(c *Converter, i0, j0 int, span Scanline)
}

// SimpleEntry lifts to the safety height, rapids over the first point and
// lets the first cut plunge straight down. With a PlungeFeed the plunge is
// made explicitly at that feed.
type SimpleEntry struct {
	PlungeFeed float64
}

func (e SimpleEntry) Enter(c *Converter, i0, j0 int, span Scanline) {
	plunge(c, e.PlungeFeed, span[0].Pos)
}

func plunge(c *Converter, feed float64, p Point) {
	s := c.Sink()
	s.Safety()
	s.Rapid(p.X, p.Y)
	if feed > 0 {
		s.SetFeed(feed)
		s.Cut(AtZ(p.Z))
		s.SetFeed(c.Feed())
	}
}

// ArcEntry rolls into the cut along a quarter circle tangent to the first
// move, sized so the arc stays clear of the surface behind the start point
// and never larger than MaxRadius.
type ArcEntry struct {
	PlungeFeed float64
	MaxRadius  float64
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func (e ArcEntry) Enter(c *Converter, i0, j0 int, span Scanline) {
	if len(span) < 2 {
		plunge(c, e.PlungeFeed, span[0].Pos)
		return
	}

	s := c.Sink()
	ps := c.PixelSize()

	p1 := span[0].Pos
	p2 := span[1].Pos
	z0 := p1.Z

	// pixels to look at behind the start point
	back := sign(float64(span[0].Index - span[1].Index))

	cx := sign(p1.X - p2.X)
	cy := sign(p1.Y - p2.Y)

	if e.PlungeFeed > 0 {
		s.SetFeed(e.PlungeFeed)
	}
	s.Safety()

	radius := e.MaxRadius
	lim := int(math.Ceil(e.MaxRadius / ps))

	w, h := c.Bounds()

	for d := 1; d < lim; d++ {
		run := float64(d) * ps

		i, j := i0, j0
		if cx != 0 {
			i += back * d
		} else {
			j += back * d
		}
		if i < 0 || j < 0 || i >= w || j >= h {
			break
		}

		rise := c.Z(i, j) - z0
		if rise <= 0 {
			continue
		}
		if rise > run {
			radius = run
			break
		}
		if r := (run*run/rise + rise) / 2; r < radius {
			radius = r
		}
		if run > radius {
			break
		}
	}

	z1 := math.Min(z0+radius, c.SafetyHeight())

	var clockwise bool
	if cx != 0 {
		s.Rapid(p1.X+float64(cx)*radius, p1.Y)
		clockwise = cx < 0
	} else {
		s.Rapid(p1.X, p1.Y+float64(cy)*radius)
		clockwise = cy > 0
	}
	s.Cut(AtZ(z1))
	s.Arc(clockwise, p1, radius)

	if e.PlungeFeed > 0 {
		s.SetFeed(c.Feed())
	}
}
