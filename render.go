package rsvg

import "math"

// Backend is the drawing collaborator the render driver emits calls
// to. The surface is deliberately small and backend-agnostic so
// concrete implementations (backend/gg, backend/draw2d) can sit on top
// of very different immediate-mode 2D APIs.
type Backend interface {
	Save()
	Restore()
	SetTransform(m Matrix)

	ClipPath(p Path, rule FillRule)

	FillPath(p Path, rule FillRule, src PaintSource)
	StrokePath(p Path, state *ComputedState, src PaintSource)

	// PushLayer starts a fresh, fully transparent surface sized to the
	// current clip; PopLayer composites it onto the parent layer with
	// opacity/mask/compositingOp already resolved by the driver into
	// concrete values.
	PushLayer()
	PopLayer(opacity float64, compositingOp string)

	// PushMask begins accumulating mask content; PopMask consumes the
	// top layer pushed since (via PushLayer) as a luminance mask applied
	// to the layer beneath it.
	PushMask()
	PopMask()

	DrawImage(data []byte, m Matrix)

	Shaper() Shaper
	DrawGlyphRun(run GlyphRun, m Matrix, src PaintSource)
}

// driver walks a resolved Document and emits Backend calls in
// rendering-tree order.
type driver struct {
	doc          *Document
	backend      Backend
	diag         *diagSink
	guard        *refGuard
	dpiX         float64
	dpiY         float64
	rootViewport *Rect // consumed by the first <svg> with a viewBox
}

// RenderOptions configures a single Render call.
type RenderOptions struct {
	DPIX, DPIY float64

	// Viewport, when non-nil, overrides the destination rectangle the
	// root <svg>'s viewBox is fitted into. Nil means the
	// document's own natural size.
	Viewport *Rect
}

// Render walks the document rooted at n (or the whole document if n is
// nil) and draws it through backend.
func Render(doc *Document, n *Node, backend Backend, diag *diagSink, opts RenderOptions) error {
	if opts.DPIX == 0 {
		opts.DPIX = 96
	}
	if opts.DPIY == 0 {
		opts.DPIY = 96
	}
	if n == nil {
		n = doc.Node(doc.Root)
	}
	if n == nil {
		return newError(ErrNotReady, "", errNoRoot)
	}
	d := &driver{doc: doc, backend: backend, diag: diag, guard: newRefGuard(), dpiX: opts.DPIX, dpiY: opts.DPIY, rootViewport: opts.Viewport}
	if ok, reason := d.guard.enter(n.Index); !ok {
		return newError(ErrInstancingLimit, n.ID, reason)
	}
	defer d.guard.leave(n.Index)
	d.renderNode(n, Identity, Rect{})
	return nil
}

var errNoRoot = errNoRootSentinel{}

type errNoRootSentinel struct{}

func (errNoRootSentinel) Error() string { return "document has no root element" }

func (d *driver) fontSize(state *ComputedState) float64 {
	return state.FontSize.Resolve(d.dpiY, 0, 16)
}

func (d *driver) len(l Length, against float64, state *ComputedState) float64 {
	return l.Resolve(d.dpiX, against, d.fontSize(state))
}

// renderNode renders n and its descendants under the accumulated
// transform parentTransform, with bbox the current object bounding box
// (for objectBoundingBox-relative children such as gradient stops).
func (d *driver) renderNode(n *Node, parentTransform Matrix, bbox Rect) {
	state := n.Computed
	if state == nil || !state.Display {
		return
	}

	local := parentTransform
	if n.HasTransform {
		local = local.Mul(n.Transform)
	}

	switch n.Kind {
	case KindSVG, KindSymbol:
		if n.ViewBox != nil {
			vp := Rect{W: d.viewportWidth(n), H: d.viewportHeight(n)}
			if d.rootViewport != nil {
				vp = *d.rootViewport
				d.rootViewport = nil
			}
			local = local.Mul(fitViewBox(*n.ViewBox, n.PAR, vp))
		}
	}

	needsLayer := state.Opacity < 1 || state.MaskRef != "" || state.FilterRef != "" ||
		state.ClipPathRef != "" || state.CompositingOp != "" && state.CompositingOp != "src-over"

	d.backend.Save()
	defer d.backend.Restore()

	if needsLayer {
		d.backend.PushLayer()
	}
	d.backend.SetTransform(local)

	if state.ClipPathRef != "" {
		d.applyClipPath(n, state.ClipPathRef, local, bbox)
	}

	switch n.Kind {
	case KindPath, KindRect, KindCircle, KindEllipse, KindLine, KindPolyline, KindPolygon:
		d.renderShape(n, state, local)
	case KindText, KindTSpan, KindTRef:
		d.renderText(n, state, local)
	case KindImage:
		d.renderImage(n, state, local)
	case KindUse:
		d.renderUse(n, state, local)
	case KindG, KindSVG, KindSymbol, KindSwitch, KindDefs:
		d.renderChildren(d.selectChildren(n), local, d.nodeBBox(n, local))
	}

	if needsLayer {
		if state.MaskRef != "" {
			d.applyMask(n, state.MaskRef, local, bbox)
		}
		op := state.CompositingOp
		if op == "" {
			op = "src-over"
		}
		d.backend.PopLayer(state.Opacity, op)
	}
}

// selectChildren filters n's children per the <switch> conditional
// processing rules (switch.go) when n is a <switch>, and skips
// non-visual bookkeeping kinds (defs content is never rendered directly
// — only through references) otherwise.
func (d *driver) selectChildren(n *Node) []*Node {
	kids := d.doc.NodeChildren(n)
	if n.Kind == KindSwitch {
		if pick := firstMatchingSwitchChild(kids); pick != nil {
			return []*Node{pick}
		}
		return nil
	}
	if n.Kind == KindDefs {
		return nil // defs render nothing directly; children render only via reference
	}
	var out []*Node
	for _, c := range kids {
		switch c.Kind {
		case KindLinearGradient, KindRadialGradient, KindPattern, KindMarker,
			KindClipPath, KindMask, KindFilter, KindStop, KindStyle,
			KindTitle, KindDesc, KindMetadata, KindUnknown:
			continue
		}
		out = append(out, c)
	}
	return out
}

func (d *driver) renderChildren(kids []*Node, transform Matrix, bbox Rect) {
	for _, c := range kids {
		d.renderNode(c, transform, bbox)
	}
}

// viewportWidth and viewportHeight resolve the viewport an <svg>/
// <symbol>'s viewBox maps into: an absolute width/height attribute when
// present, else the viewBox's own extent (so a viewBox-only <svg> maps
// 1:1).
func (d *driver) viewportWidth(n *Node) float64 {
	if v, ok := parseDimLength(n.Attrs["width"], n.Attrs["width"] != "", d.dpiX); ok {
		return v
	}
	if n.ViewBox != nil {
		return n.ViewBox.W
	}
	return 100
}

func (d *driver) viewportHeight(n *Node) float64 {
	if v, ok := parseDimLength(n.Attrs["height"], n.Attrs["height"] != "", d.dpiY); ok {
		return v
	}
	if n.ViewBox != nil {
		return n.ViewBox.H
	}
	return 100
}

func (d *driver) nodeBBox(n *Node, transform Matrix) Rect {
	b := newBBox()
	for _, ci := range n.Children {
		c := d.doc.Node(ci)
		if c == nil {
			continue
		}
		if path := d.shapePath(c); path != nil {
			b.union(pathLogicalBBox(*path))
		}
	}
	return b.rect()
}

func (d *driver) renderShape(n *Node, state *ComputedState, transform Matrix) {
	path := d.shapePath(n)
	if path == nil {
		return
	}
	bbox := pathLogicalBBox(*path).rect()

	if state.Fill.Kind != PaintNone {
		src := resolvePaint(d.doc, state.Fill, state, bbox, d.diag, n.ID)
		switch src.Kind {
		case PaintSrcNone:
		case PaintSrcPattern:
			d.paintPattern(path, state.FillRule, src, transform, bbox)
		default:
			d.backend.FillPath(*path, state.FillRule, src)
		}
	}
	if state.Stroke.Kind != PaintNone {
		src := resolvePaint(d.doc, state.Stroke, state, bbox, d.diag, n.ID)
		switch src.Kind {
		case PaintSrcNone:
		case PaintSrcPattern:
			// A pattern stroke would need the stroke outline as a clip
			// region, which the Backend surface doesn't expose; the
			// stroke is skipped, matching the missing-reference
			// "renders as empty" policy.
			d.diag.warn(ErrUnresolvedReference, n.ID, "pattern strokes are not supported")
		default:
			d.backend.StrokePath(*path, state, src)
		}
	}
	d.renderMarkers(n, state, path, transform)
}

func (d *driver) shapePath(n *Node) *Path {
	return nodeShapePath(n, d.dpiX, d.dpiY)
}

// nodeShapePath converts any shape node (rect/circle/ellipse/line/
// polyline/polygon/path) into its equivalent Path. Free of driver
// state so both the render driver and the geometry bbox walker (geometry.go)
// can share it.
func nodeShapePath(n *Node, dpiX, dpiY float64) *Path {
	switch n.Kind {
	case KindPath:
		if n.PathData == nil {
			return nil
		}
		flat := n.PathData.Flattened()
		return &flat
	case KindRect:
		return rectPath(n, dpiX, dpiY)
	case KindCircle:
		return ellipsePath(n.Shape.Cx.Resolve(dpiX, 0, 0), n.Shape.Cy.Resolve(dpiY, 0, 0),
			n.Shape.R.Resolve(dpiX, 0, 0), n.Shape.R.Resolve(dpiY, 0, 0))
	case KindEllipse:
		return ellipsePath(n.Shape.Cx.Resolve(dpiX, 0, 0), n.Shape.Cy.Resolve(dpiY, 0, 0),
			n.Shape.Rx.Resolve(dpiX, 0, 0), n.Shape.Ry.Resolve(dpiY, 0, 0))
	case KindLine:
		s := n.Shape
		p := Path{Segments: []Segment{
			{Kind: SegMoveTo, X: s.X1.Resolve(dpiX, 0, 0), Y: s.Y1.Resolve(dpiY, 0, 0), NewSubpath: true},
			{Kind: SegLineTo, X: s.X2.Resolve(dpiX, 0, 0), Y: s.Y2.Resolve(dpiY, 0, 0)},
		}}
		return &p
	case KindPolyline, KindPolygon:
		return polyPath(n.Shape.Points, n.Kind == KindPolygon)
	}
	return nil
}

func rectPath(n *Node, dpiX, dpiY float64) *Path {
	s := n.Shape
	x, y := s.X.Resolve(dpiX, 0, 0), s.Y.Resolve(dpiY, 0, 0)
	w, h := s.Width.Resolve(dpiX, 0, 0), s.Height.Resolve(dpiY, 0, 0)
	if w <= 0 || h <= 0 {
		return nil
	}
	rx, ry := resolveRxRy(s, dpiX, dpiY)
	if rx <= 0 || ry <= 0 {
		p := Path{Segments: []Segment{
			{Kind: SegMoveTo, X: x, Y: y, NewSubpath: true},
			{Kind: SegLineTo, X: x + w, Y: y},
			{Kind: SegLineTo, X: x + w, Y: y + h},
			{Kind: SegLineTo, X: x, Y: y + h},
			{Kind: SegClose, X: x, Y: y},
		}}
		return &p
	}

	const k = 0.5522847498 // cubic approximation constant for a quarter ellipse
	p := Path{Segments: []Segment{
		{Kind: SegMoveTo, X: x + rx, Y: y, NewSubpath: true},
		{Kind: SegLineTo, X: x + w - rx, Y: y},
		{Kind: SegCubicTo, X1: x + w - rx + k*rx, Y1: y, X2: x + w, Y2: y + ry - k*ry, X: x + w, Y: y + ry},
		{Kind: SegLineTo, X: x + w, Y: y + h - ry},
		{Kind: SegCubicTo, X1: x + w, Y1: y + h - ry + k*ry, X2: x + w - rx + k*rx, Y2: y + h, X: x + w - rx, Y: y + h},
		{Kind: SegLineTo, X: x + rx, Y: y + h},
		{Kind: SegCubicTo, X1: x + rx - k*rx, Y1: y + h, X2: x, Y2: y + h - ry + k*ry, X: x, Y: y + h - ry},
		{Kind: SegLineTo, X: x, Y: y + ry},
		{Kind: SegCubicTo, X1: x, Y1: y + ry - k*ry, X2: x + rx - k*rx, Y2: y, X: x + rx, Y: y},
		{Kind: SegClose, X: x + rx, Y: y},
	}}
	return &p
}

func resolveRxRy(s *ShapeData, dpiX, dpiY float64) (float64, float64) {
	rx, ry := 0.0, 0.0
	if s.HasRx {
		rx = s.Rx.Resolve(dpiX, 0, 0)
	}
	if s.HasRy {
		ry = s.Ry.Resolve(dpiY, 0, 0)
	}
	switch {
	case s.HasRx && !s.HasRy:
		ry = rx
	case s.HasRy && !s.HasRx:
		rx = ry
	}
	return rx, ry
}

func ellipsePath(cx, cy, rx, ry float64) *Path {
	if rx <= 0 || ry <= 0 {
		return nil
	}
	const k = 0.5522847498
	p := Path{Segments: []Segment{
		{Kind: SegMoveTo, X: cx + rx, Y: cy, NewSubpath: true},
		{Kind: SegCubicTo, X1: cx + rx, Y1: cy + k*ry, X2: cx + k*rx, Y2: cy + ry, X: cx, Y: cy + ry},
		{Kind: SegCubicTo, X1: cx - k*rx, Y1: cy + ry, X2: cx - rx, Y2: cy + k*ry, X: cx - rx, Y: cy},
		{Kind: SegCubicTo, X1: cx - rx, Y1: cy - k*ry, X2: cx - k*rx, Y2: cy - ry, X: cx, Y: cy - ry},
		{Kind: SegCubicTo, X1: cx + k*rx, Y1: cy - ry, X2: cx + rx, Y2: cy - k*ry, X: cx + rx, Y: cy},
		{Kind: SegClose, X: cx + rx, Y: cy},
	}}
	return &p
}

func polyPath(pts []Point, closed bool) *Path {
	if len(pts) == 0 {
		return nil
	}
	segs := make([]Segment, 0, len(pts)+1)
	segs = append(segs, Segment{Kind: SegMoveTo, X: pts[0].X, Y: pts[0].Y, NewSubpath: true})
	for _, p := range pts[1:] {
		segs = append(segs, Segment{Kind: SegLineTo, X: p.X, Y: p.Y})
	}
	if closed {
		segs = append(segs, Segment{Kind: SegClose, X: pts[0].X, Y: pts[0].Y})
	}
	return &Path{Segments: segs}
}

// maxPatternTiles bounds the tile grid a single pattern fill may
// replicate, the same class of guard as maxExpandedNodes.
const maxPatternTiles = 64

// paintPattern fills a shape with a <pattern>'s replicated tile by
// clipping to the shape and re-rendering the pattern content once per
// tile position, the fallback for backends without a native pattern
// feature.
func (d *driver) paintPattern(path *Path, rule FillRule, src PaintSource, transform Matrix, bbox Rect) {
	tile := src.PatternTile
	if tile.W <= 0 || tile.H <= 0 || src.PatternContent == nil {
		return
	}
	if ok, reason := d.guard.enter(src.PatternContent.Index); !ok {
		d.diag.warn(ErrCycleDetected, src.PatternContent.ID, reason.Error())
		return
	}
	defer d.guard.leave(src.PatternContent.Index)

	d.backend.Save()
	defer d.backend.Restore()
	d.backend.SetTransform(transform)
	d.backend.ClipPath(*path, rule)

	area := bbox
	if area.W <= 0 || area.H <= 0 {
		area = pathLogicalBBox(*path).rect()
	}
	col0 := int(math.Floor((area.X - tile.X) / tile.W))
	row0 := int(math.Floor((area.Y - tile.Y) / tile.H))
	cols := int(math.Ceil(area.W/tile.W)) + 1
	rows := int(math.Ceil(area.H/tile.H)) + 1
	if cols > maxPatternTiles {
		cols = maxPatternTiles
	}
	if rows > maxPatternTiles {
		rows = maxPatternTiles
	}

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			origin := translate(tile.X+float64(col0+col)*tile.W, tile.Y+float64(row0+row)*tile.H)
			local := transform.Mul(src.PatternTransform).Mul(origin)
			if src.PatternViewBox != nil {
				local = local.Mul(fitViewBox(*src.PatternViewBox, src.PatternPAR, Rect{W: tile.W, H: tile.H}))
			}
			d.renderChildren(d.selectChildren(src.PatternContent), local, Rect{})
		}
	}
}

// renderText draws a <text>/<tspan>/<tref> and its nested spans. The
// cursor starts at the element's first x/y position and advances by
// each run's shaped width; a <tspan> with its own x/y restarts the
// cursor there.
func (d *driver) renderText(n *Node, state *ComputedState, transform Matrix) {
	cur := Point{}
	d.positionCursor(n, state, &cur)
	d.renderTextRuns(n, state, transform, &cur)
}

func (d *driver) positionCursor(n *Node, state *ComputedState, cur *Point) {
	if len(n.TextPos.X) > 0 {
		cur.X = d.len(n.TextPos.X[0], 0, state)
	}
	if len(n.TextPos.Y) > 0 {
		cur.Y = d.len(n.TextPos.Y[0], 0, state)
	}
	if len(n.TextPos.Dx) > 0 {
		cur.X += d.len(n.TextPos.Dx[0], 0, state)
	}
	if len(n.TextPos.Dy) > 0 {
		cur.Y += d.len(n.TextPos.Dy[0], 0, state)
	}
}

func (d *driver) renderTextRuns(n *Node, state *ComputedState, transform Matrix, cur *Point) {
	text := n.CharData
	if n.Kind == KindTRef {
		if target, ok := resolveRef(d.doc, refAttr(n.Attrs), d.diag, n.ID, KindText, KindTSpan); ok {
			text = target.CharData
		}
	}
	if text != "" {
		d.drawTextRun(n, state, transform, cur, text)
	}
	for _, c := range d.doc.NodeChildren(n) {
		if c == nil || c.Computed == nil {
			continue
		}
		if c.Kind != KindTSpan && c.Kind != KindTRef {
			continue
		}
		d.positionCursor(c, c.Computed, cur)
		d.renderTextRuns(c, c.Computed, transform, cur)
	}
}

func (d *driver) drawTextRun(n *Node, state *ComputedState, transform Matrix, cur *Point, text string) {
	shaper := d.backend.Shaper()
	if shaper == nil {
		shaper = NopShaper{}
	}
	face := FontSpec{Family: state.FontFamily, Size: d.fontSize(state), Style: state.FontStyle, Weight: state.FontWeight, Stretch: state.FontStretch}
	run, err := shaper.Shape(collapseSpace(text, state.XMLSpace), face)
	if err != nil {
		d.diag.warn(ErrBackendFailure, n.ID, "text shaping failed: "+err.Error())
		return
	}
	width := sumAdvances(run.Advances)
	x := cur.X
	switch state.TextAnchor {
	case "middle":
		x -= width / 2
	case "end":
		x -= width
	}
	bbox := Rect{X: x, Y: cur.Y - face.Size, W: width, H: face.Size}
	src := resolvePaint(d.doc, state.Fill, state, bbox, d.diag, n.ID)
	d.backend.DrawGlyphRun(run, transform.Mul(translate(x, cur.Y)), src)
	cur.X += width
}

func sumAdvances(a []float64) float64 {
	var s float64
	for _, v := range a {
		s += v
	}
	return s
}

func collapseSpace(s, xmlSpace string) string {
	if xmlSpace == "preserve" {
		return s
	}
	var b []rune
	prevSpace := false
	for _, r := range s {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if isSpace {
			if prevSpace {
				continue
			}
			r = ' '
		}
		prevSpace = isSpace
		b = append(b, r)
	}
	return string(b)
}

func (d *driver) renderImage(n *Node, state *ComputedState, transform Matrix) {
	// Image data acquisition (data: URIs, external fetch) is resolved
	// once at Close time by resolveImages (acquire.go); render.go only
	// positions whatever bytes were already resolved onto Image.Data.
	if n.Image == nil || len(n.Image.Data) == 0 {
		return
	}
	x, y := d.len(n.Image.X, 0, state), d.len(n.Image.Y, 0, state)
	local := transform.Mul(translate(x, y))
	d.backend.DrawImage(n.Image.Data, local)
}

// renderUse splices a <use> element's referenced element in at the
// <use> position. The referenced element renders with a copy of its own
// computed state into which reinherit (cascade.go) copies every
// property marked explicit in the <use> state and not in the referenced
// element's, so the referenced element's own explicit styling wins.
// Descendants of the referenced element render with their own computed
// states from the document tree; the <use> state does not reach them.
func (d *driver) renderUse(n *Node, state *ComputedState, transform Matrix) {
	if n.Use == nil {
		return
	}
	target, ok := resolveRef(d.doc, n.Use.Href, d.diag, n.ID, KindSymbol, KindSVG, KindG, KindDefs,
		KindPath, KindRect, KindCircle, KindEllipse, KindLine, KindPolyline, KindPolygon,
		KindText, KindUse, KindImage)
	if !ok {
		return
	}
	if ok, reason := d.guard.enter(target.Index); !ok {
		d.diag.warn(ErrCycleDetected, n.ID, reason.Error())
		return
	}
	defer d.guard.leave(target.Index)

	shadow := *target.Computed
	reinherit(&shadow, state)

	local := transform
	local = local.Mul(translate(d.len(n.Use.X, 0, state), d.len(n.Use.Y, 0, state)))

	saved := target.Computed
	target.Computed = &shadow
	defer func() { target.Computed = saved }()

	if target.Kind == KindSymbol || target.Kind == KindSVG {
		d.renderChildren(d.selectChildren(target), local, Rect{})
		return
	}
	d.renderNode(target, local, Rect{})
}

func (d *driver) renderMarkers(n *Node, state *ComputedState, path *Path, transform Matrix) {
	if state.MarkerStart == "" && state.MarkerMid == "" && state.MarkerEnd == "" {
		return
	}
	verts := pathVertices(path)
	for i, v := range verts {
		var ref string
		switch {
		case i == 0:
			ref = state.MarkerStart
		case i == len(verts)-1:
			ref = state.MarkerEnd
		default:
			ref = state.MarkerMid
		}
		if ref == "" {
			continue
		}
		d.drawMarker(ref, n, v, transform)
	}
}

type pathVertex struct {
	X, Y  float64
	Angle float64
}

func pathVertices(p *Path) []pathVertex {
	var verts []pathVertex
	var prevX, prevY float64
	for _, s := range p.Segments {
		if s.Kind == SegClose {
			continue
		}
		angle := math.Atan2(s.Y-prevY, s.X-prevX)
		verts = append(verts, pathVertex{X: s.X, Y: s.Y, Angle: angle})
		prevX, prevY = s.X, s.Y
	}
	return verts
}

func (d *driver) drawMarker(ref string, owner *Node, at pathVertex, transform Matrix) {
	target, ok := resolveRef(d.doc, ref, d.diag, owner.ID, KindMarker)
	if !ok || target.Marker == nil {
		return
	}
	m := target.Marker
	angle := at.Angle
	if !m.OrientAuto {
		angle = m.OrientAngle * math.Pi / 180
	}
	local := transform.Mul(translate(at.X, at.Y)).Mul(rotateMatrix(angle * 180 / math.Pi))
	if m.ViewBox != nil {
		vp := Rect{W: m.MarkerWidth.Resolve(d.dpiX, 0, 0), H: m.MarkerHeight.Resolve(d.dpiY, 0, 0)}
		local = local.Mul(fitViewBox(*m.ViewBox, m.PAR, vp))
	}
	local = local.Mul(translate(-m.RefX.Resolve(d.dpiX, 0, 0), -m.RefY.Resolve(d.dpiY, 0, 0)))
	d.renderChildren(d.selectChildren(target), local, Rect{})
}

func (d *driver) applyClipPath(n *Node, ref string, transform Matrix, bbox Rect) {
	target, ok := resolveRef(d.doc, ref, d.diag, n.ID, KindClipPath)
	if !ok {
		return
	}
	for _, ci := range target.Children {
		c := d.doc.Node(ci)
		if c == nil || c.Computed == nil {
			continue
		}
		if path := d.shapePath(c); path != nil {
			d.backend.ClipPath(*path, c.Computed.ClipRule)
		}
	}
}

func (d *driver) applyMask(n *Node, ref string, transform Matrix, bbox Rect) {
	target, ok := resolveRef(d.doc, ref, d.diag, n.ID, KindMask)
	if !ok {
		return
	}
	d.backend.PushMask()
	d.renderChildren(d.selectChildren(target), transform, bbox)
	d.backend.PopMask()
}
