// Package draw2d implements rsvg.Backend on top of
// github.com/llgcode/draw2d's raster graphic context.
// draw2d rasterizes solid fills and strokes (with caps, joins and
// dashes) natively, but has no gradient or clip support, so this
// backend supplies both in software: paths are rasterized to alpha
// coverage with golang.org/x/image/vector, gradients are evaluated
// per-pixel into a color ramp, and the ramp is composited through the
// coverage mask — the mask-fill fallback the render driver's contract
// allows for backends without a native gradient feature.
package draw2d

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/vectorgraphics/rsvg"
)

// FaceSource is the optional Shaper extension this backend uses to
// obtain real glyph outlines (same contract as backend/gg's).
type FaceSource interface {
	Face(spec rsvg.FontSpec) (font.Face, error)
}

// Option configures a Backend.
type Option func(*Backend)

// WithShaper sets the Shaper returned from Backend.Shaper.
func WithShaper(s rsvg.Shaper) Option {
	return func(b *Backend) { b.shaper = s }
}

type layer struct {
	img    *image.RGBA
	gc     *draw2dimg.GraphicContext
	isMask bool
}

type gstate struct {
	matrix rsvg.Matrix
	clip   *image.Alpha // nil means unclipped
}

// Backend draws rsvg render-driver calls onto an RGBA image.
type Backend struct {
	width, height int
	layers        []*layer

	cur   gstate
	saved []gstate

	shaper rsvg.Shaper
}

// New wraps dst; the caller reads the rendered pixels from it after
// Handle.Render returns.
func New(dst *image.RGBA) *Backend {
	b := &Backend{
		width:  dst.Bounds().Dx(),
		height: dst.Bounds().Dy(),
		cur:    gstate{matrix: rsvg.Identity},
		shaper: rsvg.NopShaper{},
	}
	b.layers = []*layer{{img: dst, gc: draw2dimg.NewGraphicContext(dst)}}
	return b
}

// NewWithOptions is New plus configuration.
func NewWithOptions(dst *image.RGBA, opts ...Option) *Backend {
	b := New(dst)
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Backend) top() *layer { return b.layers[len(b.layers)-1] }

func (b *Backend) Save() {
	b.saved = append(b.saved, b.cur)
}

func (b *Backend) Restore() {
	if n := len(b.saved); n > 0 {
		b.cur = b.saved[n-1]
		b.saved = b.saved[:n-1]
	}
}

func (b *Backend) SetTransform(m rsvg.Matrix) { b.cur.matrix = m }

// ClipPath intersects the current clip with p's coverage.
func (b *Backend) ClipPath(p rsvg.Path, rule rsvg.FillRule) {
	mask := b.rasterize(p)
	if b.cur.clip == nil {
		b.cur.clip = mask
		return
	}
	combined := image.NewAlpha(image.Rect(0, 0, b.width, b.height))
	for i := range combined.Pix {
		combined.Pix[i] = uint8(uint32(b.cur.clip.Pix[i]) * uint32(mask.Pix[i]) / 255)
	}
	b.cur.clip = combined
}

// rasterize computes p's device-space alpha coverage. The vector
// rasterizer accumulates nonzero winding; even-odd fills degrade to
// nonzero through this path.
func (b *Backend) rasterize(p rsvg.Path) *image.Alpha {
	r := vector.NewRasterizer(b.width, b.height)
	m := b.cur.matrix
	var startX, startY float32
	open := false
	for _, s := range p.Flattened().Segments {
		switch s.Kind {
		case rsvg.SegMoveTo:
			if open {
				r.ClosePath()
			}
			x, y := m.Apply(s.X, s.Y)
			startX, startY = float32(x), float32(y)
			r.MoveTo(startX, startY)
			open = true
		case rsvg.SegLineTo:
			x, y := m.Apply(s.X, s.Y)
			r.LineTo(float32(x), float32(y))
		case rsvg.SegQuadTo:
			x1, y1 := m.Apply(s.X1, s.Y1)
			x, y := m.Apply(s.X, s.Y)
			r.QuadTo(float32(x1), float32(y1), float32(x), float32(y))
		case rsvg.SegCubicTo:
			x1, y1 := m.Apply(s.X1, s.Y1)
			x2, y2 := m.Apply(s.X2, s.Y2)
			x, y := m.Apply(s.X, s.Y)
			r.CubeTo(float32(x1), float32(y1), float32(x2), float32(y2), float32(x), float32(y))
		case rsvg.SegClose:
			r.ClosePath()
			open = false
		}
	}
	if open {
		r.ClosePath()
	}
	dst := image.NewAlpha(image.Rect(0, 0, b.width, b.height))
	r.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})
	return dst
}

func (b *Backend) FillPath(p rsvg.Path, rule rsvg.FillRule, src rsvg.PaintSource) {
	switch src.Kind {
	case rsvg.PaintSrcSolid:
		b.fillSolid(p, rule, src.ARGB)
	case rsvg.PaintSrcLinearGradient, rsvg.PaintSrcRadialGradient:
		mask := b.maskWithClip(b.rasterize(p))
		ramp := b.gradientImage(src)
		draw.DrawMask(b.top().img, b.top().img.Bounds(), ramp, image.Point{}, mask, image.Point{}, draw.Over)
	}
}

func (b *Backend) fillSolid(p rsvg.Path, rule rsvg.FillRule, argb uint32) {
	if b.cur.clip != nil {
		// Rasterize coverage and composite the flat color through the
		// clip instead of asking draw2d, which has no clip region.
		mask := b.maskWithClip(b.rasterize(p))
		draw.DrawMask(b.top().img, b.top().img.Bounds(), image.NewUniform(nrgba(argb)), image.Point{}, mask, image.Point{}, draw.Over)
		return
	}
	gc := b.top().gc
	gc.Save()
	defer gc.Restore()
	gc.SetMatrixTransform(toDraw2DMatrix(b.cur.matrix))
	if rule == rsvg.FillRuleEvenOdd {
		gc.SetFillRule(draw2d.FillRuleEvenOdd)
	} else {
		gc.SetFillRule(draw2d.FillRuleWinding)
	}
	gc.SetFillColor(nrgba(argb))
	b.tracePath(gc, p)
	gc.Fill()
}

func (b *Backend) tracePath(gc *draw2dimg.GraphicContext, p rsvg.Path) {
	gc.BeginPath()
	for _, s := range p.Flattened().Segments {
		switch s.Kind {
		case rsvg.SegMoveTo:
			gc.MoveTo(s.X, s.Y)
		case rsvg.SegLineTo:
			gc.LineTo(s.X, s.Y)
		case rsvg.SegQuadTo:
			gc.QuadCurveTo(s.X1, s.Y1, s.X, s.Y)
		case rsvg.SegCubicTo:
			gc.CubicCurveTo(s.X1, s.Y1, s.X2, s.Y2, s.X, s.Y)
		case rsvg.SegClose:
			gc.Close()
		}
	}
}

func (b *Backend) StrokePath(p rsvg.Path, state *rsvg.ComputedState, src rsvg.PaintSource) {
	solid := src.Kind == rsvg.PaintSrcSolid
	target := b.top().img
	var scratch *image.RGBA
	if !solid || b.cur.clip != nil {
		scratch = image.NewRGBA(image.Rect(0, 0, b.width, b.height))
		target = scratch
	}

	gc := draw2dimg.NewGraphicContext(target)
	gc.SetMatrixTransform(toDraw2DMatrix(b.cur.matrix))
	if solid {
		gc.SetStrokeColor(nrgba(src.ARGB))
	} else {
		gc.SetStrokeColor(color.White)
	}
	gc.SetLineWidth(state.StrokeWidth.Resolve(96, 0, 16))

	switch state.Cap {
	case rsvg.CapRound:
		gc.SetLineCap(draw2d.RoundCap)
	case rsvg.CapSquare:
		gc.SetLineCap(draw2d.SquareCap)
	default:
		gc.SetLineCap(draw2d.ButtCap)
	}
	switch state.Join {
	case rsvg.JoinRound:
		gc.SetLineJoin(draw2d.RoundJoin)
	case rsvg.JoinBevel:
		gc.SetLineJoin(draw2d.BevelJoin)
	default:
		gc.SetLineJoin(draw2d.MiterJoin)
	}
	if !state.Dash.None && len(state.Dash.Lengths) > 0 {
		dashes := make([]float64, len(state.Dash.Lengths))
		for i, l := range state.Dash.Lengths {
			dashes[i] = l.Resolve(96, 0, 16)
		}
		gc.SetLineDash(dashes, state.DashOffset.Resolve(96, 0, 16))
	}

	b.tracePath(gc, p)
	gc.Stroke()

	if scratch == nil {
		return
	}
	mask := b.maskWithClip(alphaOf(scratch))
	var paint image.Image
	if solid {
		paint = image.NewUniform(nrgba(src.ARGB))
	} else {
		paint = b.gradientImage(src)
	}
	draw.DrawMask(b.top().img, b.top().img.Bounds(), paint, image.Point{}, mask, image.Point{}, draw.Over)
}

// maskWithClip multiplies mask by the current clip coverage.
func (b *Backend) maskWithClip(mask *image.Alpha) *image.Alpha {
	if b.cur.clip == nil {
		return mask
	}
	out := image.NewAlpha(mask.Bounds())
	for i := range out.Pix {
		out.Pix[i] = uint8(uint32(mask.Pix[i]) * uint32(b.cur.clip.Pix[i]) / 255)
	}
	return out
}

func alphaOf(img *image.RGBA) *image.Alpha {
	out := image.NewAlpha(img.Bounds())
	for i := range out.Pix {
		out.Pix[i] = img.Pix[i*4+3]
	}
	return out
}

// gradientImage evaluates src at every device pixel, producing the
// color ramp composited through coverage masks.
func (b *Backend) gradientImage(src rsvg.PaintSource) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	toGradient := b.cur.matrix.Mul(src.GradientTransform).Invert()

	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			gx, gy := toGradient.Apply(float64(x)+0.5, float64(y)+0.5)
			t := gradientOffset(src, gx, gy)
			t = applySpread(t, src.Spread)
			c := interpolateStops(src.Stops, t)
			out.SetRGBA(x, y, premultiply(c))
		}
	}
	return out
}

func gradientOffset(src rsvg.PaintSource, x, y float64) float64 {
	if src.Kind == rsvg.PaintSrcLinearGradient {
		dx, dy := src.X2-src.X1, src.Y2-src.Y1
		den := dx*dx + dy*dy
		if den == 0 {
			return 0
		}
		return ((x-src.X1)*dx + (y-src.Y1)*dy) / den
	}

	// Radial: offset 0 sits at the focal point and offset 1 where the
	// ray from the focal point through the pixel crosses the end
	// circle. The quadratic solves |f + s(p-f) - c| = r for the ray
	// scale s; the pixel's offset is 1/s. With the focal point on the
	// center this reduces to plain distance over radius.
	if src.R == 0 {
		return 0
	}
	dx, dy := x-src.Fx, y-src.Fy
	if dx == 0 && dy == 0 {
		return 0
	}
	fcx, fcy := src.Fx-src.Cx, src.Fy-src.Cy
	a := dx*dx + dy*dy
	b := dx*fcx + dy*fcy
	c := fcx*fcx + fcy*fcy - src.R*src.R
	disc := b*b - a*c
	if disc < 0 {
		return 1
	}
	s := (-b + math.Sqrt(disc)) / a
	if s <= 0 {
		return 1
	}
	return 1 / s
}

func applySpread(t float64, spread string) float64 {
	switch spread {
	case "repeat":
		t -= math.Floor(t)
		return t
	case "reflect":
		t = math.Abs(t)
		period := math.Mod(t, 2)
		if period > 1 {
			period = 2 - period
		}
		return period
	}
	// pad
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

func interpolateStops(stops []rsvg.GradientStop, t float64) color.NRGBA {
	if len(stops) == 0 {
		return color.NRGBA{}
	}
	if t <= stops[0].Offset {
		return nrgba(stops[0].ARGB)
	}
	last := stops[len(stops)-1]
	if t >= last.Offset {
		return nrgba(last.ARGB)
	}
	for i := 1; i < len(stops); i++ {
		if t > stops[i].Offset {
			continue
		}
		lo, hi := stops[i-1], stops[i]
		span := hi.Offset - lo.Offset
		if span == 0 {
			return nrgba(hi.ARGB)
		}
		f := (t - lo.Offset) / span
		a, z := nrgba(lo.ARGB), nrgba(hi.ARGB)
		return color.NRGBA{
			R: lerpByte(a.R, z.R, f),
			G: lerpByte(a.G, z.G, f),
			B: lerpByte(a.B, z.B, f),
			A: lerpByte(a.A, z.A, f),
		}
	}
	return nrgba(last.ARGB)
}

func lerpByte(a, b uint8, f float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*f + 0.5)
}

func premultiply(c color.NRGBA) color.RGBA {
	a := uint32(c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: c.A,
	}
}

func nrgba(argb uint32) color.NRGBA {
	return color.NRGBA{
		A: uint8(argb >> 24),
		R: uint8(argb >> 16),
		G: uint8(argb >> 8),
		B: uint8(argb),
	}
}

func toDraw2DMatrix(m rsvg.Matrix) draw2d.Matrix {
	return draw2d.Matrix{m.A, m.B, m.C, m.D, m.E, m.F}
}

func (b *Backend) PushLayer() {
	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	b.layers = append(b.layers, &layer{img: img, gc: draw2dimg.NewGraphicContext(img)})
}

func (b *Backend) PopLayer(opacity float64, compositingOp string) {
	n := len(b.layers)
	if n <= 1 {
		return
	}
	top := b.layers[n-1]
	b.layers = b.layers[:n-1]
	if opacity < 1 {
		scaleAlpha(top.img, opacity)
	}
	// Only source-over is expressible here; other operators degrade.
	draw.Draw(b.top().img, b.top().img.Bounds(), top.img, image.Point{}, draw.Over)
}

func (b *Backend) PushMask() {
	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	b.layers = append(b.layers, &layer{img: img, gc: draw2dimg.NewGraphicContext(img), isMask: true})
}

func (b *Backend) PopMask() {
	n := len(b.layers)
	if n <= 1 || !b.layers[n-1].isMask {
		return
	}
	mask := b.layers[n-1]
	b.layers = b.layers[:n-1]
	applyLuminanceMask(b.top().img, mask.img)
}

func scaleAlpha(img *image.RGBA, opacity float64) {
	if opacity < 0 {
		opacity = 0
	}
	f := uint32(opacity * 256)
	for i := range img.Pix {
		img.Pix[i] = uint8(uint32(img.Pix[i]) * f >> 8)
	}
}

func applyLuminanceMask(dst, mask *image.RGBA) {
	bounds := dst.Bounds().Intersect(mask.Bounds())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		di := dst.PixOffset(bounds.Min.X, y)
		mi := mask.PixOffset(bounds.Min.X, y)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			mr := uint32(mask.Pix[mi])
			mg := uint32(mask.Pix[mi+1])
			mb := uint32(mask.Pix[mi+2])
			lum := (mr*54 + mg*182 + mb*19) / 255
			for c := 0; c < 4; c++ {
				dst.Pix[di+c] = uint8(uint32(dst.Pix[di+c]) * lum / 255)
			}
			di += 4
			mi += 4
		}
	}
}

func (b *Backend) DrawImage(data []byte, m rsvg.Matrix) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return
	}
	xdraw.ApproxBiLinear.Transform(b.top().img,
		f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F},
		src, src.Bounds(), xdraw.Over, nil)
}

func (b *Backend) Shaper() rsvg.Shaper { return b.shaper }

func (b *Backend) DrawGlyphRun(run rsvg.GlyphRun, m rsvg.Matrix, src rsvg.PaintSource) {
	if src.Kind != rsvg.PaintSrcSolid {
		return
	}
	fs, ok := b.shaper.(FaceSource)
	if !ok {
		return
	}
	face, err := fs.Face(run.Face)
	if err != nil {
		return
	}
	x, y := m.Apply(0, 0)
	d := font.Drawer{
		Dst:  b.top().img,
		Src:  image.NewUniform(nrgba(src.ARGB)),
		Face: face,
		Dot:  fixed.P(int(x), int(y)),
	}
	d.DrawString(run.Text)
}
