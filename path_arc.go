package rsvg

import "math"

// Flattened returns a copy of p with every SegArc replaced by a run of
// SegCubicTo approximations, per the SVG endpoint-to-center arc
// conversion. Paths without arcs are returned as-is.
func (p Path) Flattened() Path {
	hasArc := false
	for _, s := range p.Segments {
		if s.Kind == SegArc {
			hasArc = true
			break
		}
	}
	if !hasArc {
		return p
	}

	out := Path{Warning: p.Warning, Segments: make([]Segment, 0, len(p.Segments))}
	var curX, curY float64
	var startX, startY float64
	for _, s := range p.Segments {
		switch s.Kind {
		case SegArc:
			out.Segments = append(out.Segments, arcToCubics(curX, curY, s)...)
			curX, curY = s.X, s.Y
			continue
		case SegMoveTo:
			startX, startY = s.X, s.Y
		case SegClose:
			curX, curY = startX, startY
			out.Segments = append(out.Segments, s)
			continue
		}
		out.Segments = append(out.Segments, s)
		curX, curY = s.X, s.Y
	}
	return out
}

// arcToCubics converts one elliptical-arc segment starting at (x0, y0)
// into cubic Bezier segments, following the endpoint-to-center
// parameterization in the SVG arc implementation notes: out-of-range
// radii are scaled up, a zero radius degenerates to a straight line,
// and the sweep is split into quarter-circle-or-smaller cubics.
func arcToCubics(x0, y0 float64, s Segment) []Segment {
	rx, ry := math.Abs(s.Rx), math.Abs(s.Ry)
	if rx == 0 || ry == 0 || (x0 == s.X && y0 == s.Y) {
		return []Segment{{Kind: SegLineTo, X: s.X, Y: s.Y}}
	}

	phi := s.XAxisRotation * math.Pi / 180
	cosPhi, sinPhi := math.Cos(phi), math.Sin(phi)

	// Transform to the ellipse-aligned frame.
	dx2, dy2 := (x0-s.X)/2, (y0-s.Y)/2
	x1p := cosPhi*dx2 + sinPhi*dy2
	y1p := -sinPhi*dx2 + cosPhi*dy2

	// Scale radii up if the endpoints cannot be joined with them.
	lambda := x1p*x1p/(rx*rx) + y1p*y1p/(ry*ry)
	if lambda > 1 {
		f := math.Sqrt(lambda)
		rx *= f
		ry *= f
	}

	// Center in the aligned frame.
	num := rx*rx*ry*ry - rx*rx*y1p*y1p - ry*ry*x1p*x1p
	den := rx*rx*y1p*y1p + ry*ry*x1p*x1p
	radicand := num / den
	if radicand < 0 {
		radicand = 0
	}
	coef := math.Sqrt(radicand)
	if s.LargeArc == s.Sweep {
		coef = -coef
	}
	cxp := coef * rx * y1p / ry
	cyp := -coef * ry * x1p / rx

	cx := cosPhi*cxp - sinPhi*cyp + (x0+s.X)/2
	cy := sinPhi*cxp + cosPhi*cyp + (y0+s.Y)/2

	theta1 := angleBetween(1, 0, (x1p-cxp)/rx, (y1p-cyp)/ry)
	dTheta := angleBetween((x1p-cxp)/rx, (y1p-cyp)/ry, (-x1p-cxp)/rx, (-y1p-cyp)/ry)
	if !s.Sweep && dTheta > 0 {
		dTheta -= 2 * math.Pi
	} else if s.Sweep && dTheta < 0 {
		dTheta += 2 * math.Pi
	}

	segments := int(math.Ceil(math.Abs(dTheta) / (math.Pi / 2)))
	if segments < 1 {
		segments = 1
	}
	delta := dTheta / float64(segments)

	// Control-point distance for a cubic approximating a delta-wide
	// elliptical arc.
	t := 4.0 / 3.0 * math.Tan(delta/4)

	out := make([]Segment, 0, segments)
	theta := theta1
	px, py := arcPoint(cx, cy, rx, ry, cosPhi, sinPhi, theta)
	for i := 0; i < segments; i++ {
		next := theta + delta
		nx, ny := arcPoint(cx, cy, rx, ry, cosPhi, sinPhi, next)

		dx1, dy1 := arcTangent(rx, ry, cosPhi, sinPhi, theta)
		dxn, dyn := arcTangent(rx, ry, cosPhi, sinPhi, next)

		out = append(out, Segment{
			Kind: SegCubicTo,
			X1:   px + t*dx1, Y1: py + t*dy1,
			X2: nx - t*dxn, Y2: ny - t*dyn,
			X: nx, Y: ny,
		})
		theta = next
		px, py = nx, ny
	}
	// Land exactly on the commanded endpoint regardless of rounding.
	out[len(out)-1].X, out[len(out)-1].Y = s.X, s.Y
	return out
}

func arcPoint(cx, cy, rx, ry, cosPhi, sinPhi, theta float64) (float64, float64) {
	x := rx * math.Cos(theta)
	y := ry * math.Sin(theta)
	return cx + cosPhi*x - sinPhi*y, cy + sinPhi*x + cosPhi*y
}

// arcTangent is the derivative of arcPoint with respect to theta.
func arcTangent(rx, ry, cosPhi, sinPhi, theta float64) (float64, float64) {
	x := -rx * math.Sin(theta)
	y := ry * math.Cos(theta)
	return cosPhi*x - sinPhi*y, sinPhi*x + cosPhi*y
}

func angleBetween(ux, uy, vx, vy float64) float64 {
	dot := ux*vx + uy*vy
	lu := math.Sqrt(ux*ux + uy*uy)
	lv := math.Sqrt(vx*vx + vy*vy)
	if lu == 0 || lv == 0 {
		return 0
	}
	c := dot / (lu * lv)
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	a := math.Acos(c)
	if ux*vy-uy*vx < 0 {
		return -a
	}
	return a
}
