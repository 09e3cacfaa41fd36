package rsvg

import "math"

// Rect is an axis-aligned rectangle in user-space units.
type Rect struct {
	X, Y, W, H float64
}

// fitViewBox computes the matrix that maps a ViewBox into a viewport
// rectangle under a PreserveAspectRatio. The algorithm mirrors the
// SVG preserveAspectRatio rules: align "none" stretches
// independently; otherwise a uniform scale is chosen (min for "meet",
// max for "slice") and the box is centered/aligned per the two-letter
// X/Y token.
func fitViewBox(vb ViewBox, par PreserveAspectRatio, viewport Rect) Matrix {
	if vb.W <= 0 || vb.H <= 0 {
		return translate(viewport.X, viewport.Y)
	}

	if par.Align == "none" {
		sx, sy := viewport.W/vb.W, viewport.H/vb.H
		return translate(viewport.X, viewport.Y).Mul(scale(sx, sy)).Mul(translate(-vb.X, -vb.Y))
	}

	sx, sy := viewport.W/vb.W, viewport.H/vb.H
	s := sx
	if (par.Slice && sy > sx) || (!par.Slice && sy < sx) {
		s = sy
	}

	tx, ty := viewport.X, viewport.Y
	extraX := viewport.W - vb.W*s
	extraY := viewport.H - vb.H*s
	switch alignX(par.Align) {
	case "Mid":
		tx += extraX / 2
	case "Max":
		tx += extraX
	}
	switch alignY(par.Align) {
	case "Mid":
		ty += extraY / 2
	case "Max":
		ty += extraY
	}

	return translate(tx, ty).Mul(scale(s, s)).Mul(translate(-vb.X, -vb.Y))
}

func alignX(align string) string {
	if len(align) < 4 {
		return "Mid"
	}
	switch align[1:4] {
	case "Min", "Mid", "Max":
		return align[1:4]
	}
	return "Mid"
}

func alignY(align string) string {
	idx := len("xMid") // fixed offset: "x" + 3-letter token + "Y" + 3-letter token
	if len(align) < idx+4 {
		return "Mid"
	}
	switch align[idx+1 : idx+4] {
	case "Min", "Mid", "Max":
		return align[idx+1 : idx+4]
	}
	return "Mid"
}

// Dimensions is the natural (intrinsic) size of a document or
// sub-node. Em and Ex carry the same extents as floating-point values,
// mirroring the historical dimension record.
type Dimensions struct {
	Width, Height float64
	Em, Ex        float64
	HasViewBox    bool
	ViewBox       ViewBox
}

// naturalSize resolves the root <svg>'s intrinsic size: absolute
// width/height first, falling back to the viewBox's own extent, and
// finally a 100x100 default.
func naturalSize(doc *Document, dpiX, dpiY float64) Dimensions {
	root := doc.Node(doc.Root)
	if root == nil {
		return Dimensions{Width: 100, Height: 100}
	}

	var dim Dimensions
	if root.ViewBox != nil {
		dim.HasViewBox = true
		dim.ViewBox = *root.ViewBox
	}

	wl, wok := root.Attrs["width"]
	hl, hok := root.Attrs["height"]
	width, widthOK := parseDimLength(wl, wok, dpiX)
	height, heightOK := parseDimLength(hl, hok, dpiY)

	switch {
	case widthOK && heightOK:
		dim.Width, dim.Height = width, height
	case widthOK && dim.HasViewBox:
		dim.Width = width
		dim.Height = width * dim.ViewBox.H / dim.ViewBox.W
	case heightOK && dim.HasViewBox:
		dim.Height = height
		dim.Width = height * dim.ViewBox.W / dim.ViewBox.H
	case dim.HasViewBox:
		dim.Width, dim.Height = dim.ViewBox.W, dim.ViewBox.H
	default:
		dim.Width, dim.Height = 100, 100
	}
	dim.Em, dim.Ex = dim.Width, dim.Height
	return dim
}

func parseDimLength(s string, present bool, dpi float64) (float64, bool) {
	if !present {
		return 0, false
	}
	l, ok := ParseLength(s)
	if !ok || l.Unit == UnitPercent {
		return 0, false // percent width/height on the root has no outer reference; treated as absent
	}
	return l.Resolve(dpi, 0, 0), true
}

// BBox is an axis-aligned bounding box accumulator; Empty reports
// whether any point has been unioned in yet.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
	Empty                  bool
}

func newBBox() BBox {
	return BBox{Empty: true}
}

func (b *BBox) addPoint(x, y float64) {
	if b.Empty {
		b.MinX, b.MaxX, b.MinY, b.MaxY = x, x, y, y
		b.Empty = false
		return
	}
	b.MinX, b.MaxX = math.Min(b.MinX, x), math.Max(b.MaxX, x)
	b.MinY, b.MaxY = math.Min(b.MinY, y), math.Max(b.MaxY, y)
}

func (b *BBox) union(o BBox) {
	if o.Empty {
		return
	}
	b.addPoint(o.MinX, o.MinY)
	b.addPoint(o.MaxX, o.MaxY)
}

func (b BBox) rect() Rect {
	if b.Empty {
		return Rect{}
	}
	return Rect{X: b.MinX, Y: b.MinY, W: b.MaxX - b.MinX, H: b.MaxY - b.MinY}
}

// geomWalker accumulates ink and logical bounding boxes over a subtree,
// in the coordinate space the subtree root sits in (the root's own
// transform is applied) — the read-only,
// non-drawing counterpart of driver (render.go). Bounding boxes come
// in two flavours: ink (stroke included) and logical (fill geometry).
type geomWalker struct {
	doc        *Document
	dpiX, dpiY float64
	guard      *refGuard
	ink, logic BBox
}

func computeGeometry(doc *Document, n *Node, dpiX, dpiY float64) (ink, logical Rect) {
	w := &geomWalker{doc: doc, dpiX: dpiX, dpiY: dpiY, guard: newRefGuard(), ink: newBBox(), logic: newBBox()}
	if ok, _ := w.guard.enter(n.Index); ok {
		w.walk(n, Identity)
		w.guard.leave(n.Index)
	}
	return w.ink.rect(), w.logic.rect()
}

func (w *geomWalker) len(l Length, state *ComputedState) float64 {
	fontSize := 16.0
	if state != nil {
		fontSize = state.FontSize.Resolve(w.dpiY, 0, 16)
	}
	return l.Resolve(w.dpiX, 0, fontSize)
}

func (w *geomWalker) walk(n *Node, transform Matrix) {
	state := n.Computed
	if state == nil || !state.Display {
		return
	}
	local := transform
	if n.HasTransform {
		local = local.Mul(n.Transform)
	}
	if n.Kind == KindSVG || n.Kind == KindSymbol {
		if n.ViewBox != nil {
			local = local.Mul(fitViewBox(*n.ViewBox, n.PAR, Rect{W: 100, H: 100}))
		}
	}

	switch n.Kind {
	case KindPath, KindRect, KindCircle, KindEllipse, KindLine, KindPolyline, KindPolygon:
		path := nodeShapePath(n, w.dpiX, w.dpiY)
		if path == nil {
			return
		}
		logical := pathLogicalBBox(*path)
		w.unionTransformed(&w.logic, logical, local)

		inkBBox := logical
		if state.Stroke.Kind != PaintNone {
			pad := w.strokePad(state)
			inkBBox.MinX -= pad
			inkBBox.MinY -= pad
			inkBBox.MaxX += pad
			inkBBox.MaxY += pad
		}
		w.unionTransformed(&w.ink, inkBBox, local)
	case KindUse:
		if n.Use == nil {
			return
		}
		target, ok := resolveRef(w.doc, n.Use.Href, nil, n.ID, KindSymbol, KindSVG, KindG, KindDefs,
			KindPath, KindRect, KindCircle, KindEllipse, KindLine, KindPolyline, KindPolygon,
			KindText, KindUse, KindImage)
		if !ok {
			return
		}
		if ok, _ := w.guard.enter(target.Index); !ok {
			return
		}
		defer w.guard.leave(target.Index)
		used := local.Mul(translate(w.len(n.Use.X, state), w.len(n.Use.Y, state)))
		w.walk(target, used)
	case KindG, KindSVG, KindSymbol, KindSwitch:
		for _, c := range w.doc.NodeChildren(n) {
			if c == nil {
				continue
			}
			switch c.Kind {
			case KindLinearGradient, KindRadialGradient, KindPattern, KindMarker,
				KindClipPath, KindMask, KindFilter, KindStop, KindStyle,
				KindTitle, KindDesc, KindMetadata, KindUnknown, KindDefs:
				continue
			}
			w.walk(c, local)
		}
	}
}

// strokePad approximates the half-width a stroke extends a shape's ink
// bbox by: half the stroke width, plus extra for miter joins up to the
// configured miter-limit.
func (w *geomWalker) strokePad(state *ComputedState) float64 {
	width := w.len(state.StrokeWidth, state)
	pad := width / 2
	if state.Join == JoinMiter && state.MiterLimit > 1 {
		pad = width * state.MiterLimit / 2
	}
	return pad
}

func (w *geomWalker) unionTransformed(dst *BBox, b BBox, m Matrix) {
	if b.Empty {
		return
	}
	corners := [4][2]float64{
		{b.MinX, b.MinY}, {b.MaxX, b.MinY}, {b.MaxX, b.MaxY}, {b.MinX, b.MaxY},
	}
	for _, c := range corners {
		x, y := m.Apply(c[0], c[1])
		dst.addPoint(x, y)
	}
}

// pathLogicalBBox computes a Path's logical bounding box in the path's
// own coordinate space. It bounds the segment endpoints together with
// the control points of cubic and quadratic segments, so for a curve
// the box can extend past the curve itself. geomWalker.unionTransformed
// maps it into the caller's space.
func pathLogicalBBox(p Path) BBox {
	b := newBBox()
	for _, seg := range p.Segments {
		switch seg.Kind {
		case SegCubicTo:
			b.addPoint(seg.X1, seg.Y1)
			b.addPoint(seg.X2, seg.Y2)
			b.addPoint(seg.X, seg.Y)
		case SegQuadTo:
			b.addPoint(seg.X1, seg.Y1)
			b.addPoint(seg.X, seg.Y)
		default:
			b.addPoint(seg.X, seg.Y)
		}
	}
	return b
}
