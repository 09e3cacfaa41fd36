package rsvg

import "math"

// PaintSourceKind tags the resolved form a fill/stroke paint reduces
// to once currentColor, paint-server references and fallbacks have all
// been worked out.
type PaintSourceKind int

const (
	PaintSrcNone PaintSourceKind = iota
	PaintSrcSolid
	PaintSrcLinearGradient
	PaintSrcRadialGradient
	PaintSrcPattern
)

// GradientStop is a resolved gradient stop: currentColor already
// substituted, opacity already folded into ARGB's alpha channel.
type GradientStop struct {
	Offset float64
	ARGB   uint32
}

// PaintSource is what a Backend actually paints with: a flattened,
// backend-agnostic description of a solid color, linear/radial
// gradient or tiled pattern, already positioned in the node's local
// user space.
type PaintSource struct {
	Kind PaintSourceKind

	ARGB uint32 // PaintSrcSolid

	// PaintSrcLinearGradient / PaintSrcRadialGradient
	X1, Y1, X2, Y2    float64
	Cx, Cy, R, Fx, Fy float64
	Stops             []GradientStop
	Spread            string
	GradientTransform Matrix

	// PaintSrcPattern
	PatternTile      Rect
	PatternViewBox   *ViewBox
	PatternPAR       PreserveAspectRatio
	PatternTransform Matrix
	PatternContent   *Node
}

// resolvePaint reduces a Paint spec to a PaintSource, following
// url(#id) references to gradients/patterns, substituting currentColor,
// and falling back to the paint's fallback color (or none) when the
// reference doesn't resolve.
func resolvePaint(doc *Document, p Paint, state *ComputedState, bbox Rect, diag *diagSink, elementID string) PaintSource {
	switch p.Kind {
	case PaintNone, PaintInherit:
		return PaintSource{Kind: PaintSrcNone}
	case PaintCurrentColor:
		return solidSource(state.CurrentColor, state)
	case PaintColorValue:
		return solidSource(p.Color, state)
	case PaintServerRef:
		target, ok := resolveRef(doc, p.ServerID, diag, elementID, KindLinearGradient, KindRadialGradient, KindPattern)
		if !ok {
			return fallbackSource(p, state)
		}
		switch target.Kind {
		case KindLinearGradient, KindRadialGradient:
			return gradientSource(doc, target, state, bbox, diag)
		case KindPattern:
			return patternSource(doc, target, bbox)
		}
	}
	return PaintSource{Kind: PaintSrcNone}
}

func solidSource(c ColorValue, state *ComputedState) PaintSource {
	if c.Kind == ColorCurrentColor {
		c = state.CurrentColor
	}
	if c.Kind != ColorARGB {
		return PaintSource{Kind: PaintSrcNone}
	}
	return PaintSource{Kind: PaintSrcSolid, ARGB: withAlpha(c.ARGB, state.FillOpacity)}
}

func fallbackSource(p Paint, state *ComputedState) PaintSource {
	if p.Fallback == nil {
		return PaintSource{Kind: PaintSrcNone}
	}
	return solidSource(*p.Fallback, state)
}

func withAlpha(c uint32, opacity float64) uint32 {
	a := uint8(c >> 24)
	newA := uint8(float64(a) * clamp01(opacity))
	return uint32(newA)<<24 | (c & 0x00ffffff)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func gradientSource(doc *Document, n *Node, state *ComputedState, bbox Rect, diag *diagSink) PaintSource {
	g := resolvedGradient(doc, n, diag)
	if g == nil || len(g.Stops) == 0 {
		return PaintSource{Kind: PaintSrcNone}
	}

	box := Rect{X: 0, Y: 0, W: 1, H: 1}
	if g.ObjectBoundingBox {
		box = bbox
	}

	stops := make([]GradientStop, len(g.Stops))
	for i, s := range g.Stops {
		c := resolvePaint(doc, s.Color, state, bbox, diag, n.ID)
		argb := c.ARGB
		stops[i] = GradientStop{Offset: clamp01(s.Offset), ARGB: withAlpha(argb, s.Opacity)}
	}

	src := PaintSource{Stops: stops, Spread: g.Spread, GradientTransform: g.Transform}
	if g.ObjectBoundingBox {
		src.GradientTransform = translate(box.X, box.Y).Mul(scale(box.W, box.H)).Mul(src.GradientTransform)
	}

	if g.Radial {
		src.Kind = PaintSrcRadialGradient
		src.Cx, src.Cy = valOr(g.HasCx, g.Cx, 0.5), valOr(g.HasCy, g.Cy, 0.5)
		src.R = valOr(g.HasR, g.R, 0.5)
		src.Fx = valOr(g.HasFx, g.Fx, src.Cx)
		src.Fy = valOr(g.HasFy, g.Fy, src.Cy)
		src.Fx, src.Fy = clampFocal(src.Fx, src.Fy, src.Cx, src.Cy, src.R)
	} else {
		src.Kind = PaintSrcLinearGradient
		src.X1, src.Y1 = valOr(g.HasX1, g.X1, 0), valOr(g.HasY1, g.Y1, 0)
		src.X2, src.Y2 = valOr(g.HasX2, g.X2, 1), valOr(g.HasY2, g.Y2, 0)
	}
	return src
}

// clampFocal moves a focal point that lies outside the end circle back
// onto its boundary; a focal point at the circle edge or beyond would
// otherwise put every pixel at a negative or infinite offset.
func clampFocal(fx, fy, cx, cy, r float64) (float64, float64) {
	dx, dy := fx-cx, fy-cy
	dist := math.Sqrt(dx*dx + dy*dy)
	if dist <= r || dist == 0 {
		return fx, fy
	}
	f := r / dist
	return cx + dx*f, cy + dy*f
}

func valOr(has bool, l Length, def float64) float64 {
	if !has {
		return def
	}
	if l.Unit == UnitPercent {
		return l.Value / 100
	}
	return l.Value
}

func patternSource(doc *Document, n *Node, bbox Rect) PaintSource {
	p := n.Pattern
	if p == nil {
		return PaintSource{Kind: PaintSrcNone}
	}
	box := Rect{X: 0, Y: 0, W: 1, H: 1}
	if p.ObjectBoundingBox {
		box = bbox
	}
	tile := Rect{
		X: box.X + valOr(true, p.X, 0)*boxScale(p.ObjectBoundingBox, box.W),
		Y: box.Y + valOr(true, p.Y, 0)*boxScale(p.ObjectBoundingBox, box.H),
		W: valOr(true, p.Width, 0) * boxScale(p.ObjectBoundingBox, box.W),
		H: valOr(true, p.Height, 0) * boxScale(p.ObjectBoundingBox, box.H),
	}
	return PaintSource{
		Kind:             PaintSrcPattern,
		PatternTile:      tile,
		PatternViewBox:   p.ViewBox,
		PatternPAR:       p.PAR,
		PatternTransform: p.Transform,
		PatternContent:   n,
	}
}

func boxScale(objBox bool, extent float64) float64 {
	if objBox {
		return extent
	}
	return 1
}
