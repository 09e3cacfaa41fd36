// Package gg implements rsvg.Backend on top of github.com/fogleman/gg,
// an immediate-mode 2D raster context.
// gg has no arbitrary-matrix API, so the backend keeps its own current
// transform and maps every path coordinate into device space before
// emitting it; gg is left at its identity matrix throughout. Discrete
// layers (opacity groups, masks) are separate gg contexts composited
// back by pixel operations on their underlying RGBA images.
package gg

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	fgg "github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"

	"github.com/vectorgraphics/rsvg"
)

// FaceSource is an optional interface a Shaper may implement to hand
// this backend real glyph outlines. shaper/gofont implements it; a
// Shaper that doesn't still measures text, but glyph runs draw nothing.
type FaceSource interface {
	Face(spec rsvg.FontSpec) (font.Face, error)
}

// Option configures a Backend.
type Option func(*Backend)

// WithShaper sets the Shaper returned from Backend.Shaper, used by the
// render driver to measure text and by this backend to obtain faces.
func WithShaper(s rsvg.Shaper) Option {
	return func(b *Backend) { b.shaper = s }
}

type layer struct {
	ctx    *fgg.Context
	isMask bool
}

// Backend draws rsvg render-driver calls onto a gg.Context.
type Backend struct {
	base   *fgg.Context
	layers []*layer

	matrix rsvg.Matrix
	saved  []rsvg.Matrix

	shaper rsvg.Shaper
}

// New wraps ctx. The caller keeps ownership of ctx and reads the
// rendered image from it afterwards.
func New(ctx *fgg.Context, opts ...Option) *Backend {
	b := &Backend{base: ctx, matrix: rsvg.Identity, shaper: rsvg.NopShaper{}}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Backend) ctx() *fgg.Context {
	if n := len(b.layers); n > 0 {
		return b.layers[n-1].ctx
	}
	return b.base
}

func (b *Backend) Save() {
	b.saved = append(b.saved, b.matrix)
	b.ctx().Push()
}

func (b *Backend) Restore() {
	if n := len(b.saved); n > 0 {
		b.matrix = b.saved[n-1]
		b.saved = b.saved[:n-1]
	}
	b.ctx().Pop()
}

func (b *Backend) SetTransform(m rsvg.Matrix) {
	b.matrix = m
}

// buildPath replays p onto the gg context in device coordinates.
func (b *Backend) buildPath(ctx *fgg.Context, p rsvg.Path) {
	ctx.ClearPath()
	m := b.matrix
	for _, s := range p.Flattened().Segments {
		switch s.Kind {
		case rsvg.SegMoveTo:
			x, y := m.Apply(s.X, s.Y)
			ctx.NewSubPath()
			ctx.MoveTo(x, y)
		case rsvg.SegLineTo:
			x, y := m.Apply(s.X, s.Y)
			ctx.LineTo(x, y)
		case rsvg.SegCubicTo:
			x1, y1 := m.Apply(s.X1, s.Y1)
			x2, y2 := m.Apply(s.X2, s.Y2)
			x, y := m.Apply(s.X, s.Y)
			ctx.CubicTo(x1, y1, x2, y2, x, y)
		case rsvg.SegQuadTo:
			x1, y1 := m.Apply(s.X1, s.Y1)
			x, y := m.Apply(s.X, s.Y)
			ctx.QuadraticTo(x1, y1, x, y)
		case rsvg.SegClose:
			ctx.ClosePath()
		}
	}
}

func setFillRule(ctx *fgg.Context, rule rsvg.FillRule) {
	if rule == rsvg.FillRuleEvenOdd {
		ctx.SetFillRule(fgg.FillRuleEvenOdd)
	} else {
		ctx.SetFillRule(fgg.FillRuleWinding)
	}
}

func (b *Backend) ClipPath(p rsvg.Path, rule rsvg.FillRule) {
	ctx := b.ctx()
	b.buildPath(ctx, p)
	setFillRule(ctx, rule)
	ctx.Clip()
	ctx.ClearPath()
}

func (b *Backend) FillPath(p rsvg.Path, rule rsvg.FillRule, src rsvg.PaintSource) {
	ctx := b.ctx()
	pattern := b.pattern(src)
	if pattern == nil {
		return
	}
	b.buildPath(ctx, p)
	setFillRule(ctx, rule)
	ctx.SetFillStyle(pattern)
	ctx.Fill()
}

func (b *Backend) StrokePath(p rsvg.Path, state *rsvg.ComputedState, src rsvg.PaintSource) {
	ctx := b.ctx()
	pattern := b.pattern(src)
	if pattern == nil {
		return
	}
	b.buildPath(ctx, p)
	ctx.SetStrokeStyle(pattern)
	ctx.SetLineWidth(b.deviceWidth(state.StrokeWidth.Resolve(96, 0, 16)))

	switch state.Cap {
	case rsvg.CapRound:
		ctx.SetLineCap(fgg.LineCapRound)
	case rsvg.CapSquare:
		ctx.SetLineCap(fgg.LineCapSquare)
	default:
		ctx.SetLineCap(fgg.LineCapButt)
	}
	switch state.Join {
	case rsvg.JoinRound:
		ctx.SetLineJoin(fgg.LineJoinRound)
	default:
		// gg has no miter join; bevel is its closest shape.
		ctx.SetLineJoin(fgg.LineJoinBevel)
	}

	if !state.Dash.None && len(state.Dash.Lengths) > 0 {
		dashes := make([]float64, len(state.Dash.Lengths))
		for i, l := range state.Dash.Lengths {
			dashes[i] = b.deviceWidth(l.Resolve(96, 0, 16))
		}
		// gg applies dashes from the path start; the dash offset is not
		// representable through its public surface and is dropped here.
		ctx.SetDash(dashes...)
	} else {
		ctx.SetDash()
	}

	ctx.Stroke()
}

// deviceWidth scales a user-space stroke width by the current
// transform's average scale factor.
func (b *Backend) deviceWidth(w float64) float64 {
	det := b.matrix.A*b.matrix.D - b.matrix.B*b.matrix.C
	return w * math.Sqrt(math.Abs(det))
}

func (b *Backend) pattern(src rsvg.PaintSource) fgg.Pattern {
	switch src.Kind {
	case rsvg.PaintSrcSolid:
		return fgg.NewSolidPattern(nrgba(src.ARGB))
	case rsvg.PaintSrcLinearGradient:
		m := b.matrix.Mul(src.GradientTransform)
		x1, y1 := m.Apply(src.X1, src.Y1)
		x2, y2 := m.Apply(src.X2, src.Y2)
		g := fgg.NewLinearGradient(x1, y1, x2, y2)
		for _, s := range src.Stops {
			g.AddColorStop(s.Offset, nrgba(s.ARGB))
		}
		return g
	case rsvg.PaintSrcRadialGradient:
		m := b.matrix.Mul(src.GradientTransform)
		cx, cy := m.Apply(src.Cx, src.Cy)
		fx, fy := m.Apply(src.Fx, src.Fy)
		det := m.A*m.D - m.B*m.C
		r := src.R * math.Sqrt(math.Abs(det))
		g := fgg.NewRadialGradient(fx, fy, 0, cx, cy, r)
		for _, s := range src.Stops {
			g.AddColorStop(s.Offset, nrgba(s.ARGB))
		}
		return g
	}
	return nil
}

func nrgba(argb uint32) color.NRGBA {
	return color.NRGBA{
		A: uint8(argb >> 24),
		R: uint8(argb >> 16),
		G: uint8(argb >> 8),
		B: uint8(argb),
	}
}

func (b *Backend) newLayerContext() *fgg.Context {
	return fgg.NewContext(b.base.Width(), b.base.Height())
}

func (b *Backend) PushLayer() {
	b.layers = append(b.layers, &layer{ctx: b.newLayerContext()})
}

func (b *Backend) PopLayer(opacity float64, compositingOp string) {
	n := len(b.layers)
	if n == 0 {
		return
	}
	top := b.layers[n-1]
	b.layers = b.layers[:n-1]

	img, ok := top.ctx.Image().(*image.RGBA)
	if !ok {
		return
	}
	if opacity < 1 {
		scaleAlpha(img, opacity)
	}
	// Only source-over compositing is expressible through gg; other
	// operators degrade to it.
	b.ctx().DrawImage(img, 0, 0)
}

func (b *Backend) PushMask() {
	b.layers = append(b.layers, &layer{ctx: b.newLayerContext(), isMask: true})
}

// PopMask consumes the mask layer pushed by PushMask and multiplies its
// luminance into the layer below, per the SVG mask model (luminance
// times alpha becomes the coverage of the masked content).
func (b *Backend) PopMask() {
	n := len(b.layers)
	if n == 0 || !b.layers[n-1].isMask {
		return
	}
	mask := b.layers[n-1]
	b.layers = b.layers[:n-1]

	maskImg, ok := mask.ctx.Image().(*image.RGBA)
	if !ok {
		return
	}
	dst, ok := b.ctx().Image().(*image.RGBA)
	if !ok {
		return
	}
	applyLuminanceMask(dst, maskImg)
}

// scaleAlpha multiplies every premultiplied channel of img by opacity.
func scaleAlpha(img *image.RGBA, opacity float64) {
	if opacity < 0 {
		opacity = 0
	}
	f := uint32(opacity * 256)
	pix := img.Pix
	for i := range pix {
		pix[i] = uint8(uint32(pix[i]) * f >> 8)
	}
}

// applyLuminanceMask multiplies dst's premultiplied channels by the
// mask's per-pixel luminance-times-alpha. On premultiplied storage the
// weighted channel sum is already luminance times alpha.
func applyLuminanceMask(dst, mask *image.RGBA) {
	bounds := dst.Bounds().Intersect(mask.Bounds())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		di := dst.PixOffset(bounds.Min.X, y)
		mi := mask.PixOffset(bounds.Min.X, y)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			mr := uint32(mask.Pix[mi])
			mg := uint32(mask.Pix[mi+1])
			mb := uint32(mask.Pix[mi+2])
			// Rec. 709-ish luminance coefficients scaled to /255.
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
	src, err := decodeImageBytes(data)
	if err != nil {
		return
	}
	dst, ok := b.ctx().Image().(*image.RGBA)
	if !ok {
		return
	}
	// m is the absolute placement transform, already composed by the
	// render driver.
	xdraw.ApproxBiLinear.Transform(dst,
		f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F},
		src, src.Bounds(), xdraw.Over, nil)
}

func (b *Backend) Shaper() rsvg.Shaper { return b.shaper }

func (b *Backend) DrawGlyphRun(run rsvg.GlyphRun, m rsvg.Matrix, src rsvg.PaintSource) {
	if src.Kind != rsvg.PaintSrcSolid {
		// Gradient/pattern text would need per-glyph masking; solid
		// fills cover the overwhelming majority of SVG text.
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
	ctx := b.ctx()
	x, y := m.Apply(0, 0)
	ctx.SetFontFace(face)
	ctx.SetColor(nrgba(src.ARGB))
	ctx.DrawString(run.Text, x, y)
}

func decodeImageBytes(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
