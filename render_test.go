package rsvg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paintCall struct {
	path Path
	rule FillRule
	src  PaintSource
}

// recordingBackend captures the render driver's calls so tests can
// assert on the emitted drawing sequence without a raster backend.
type recordingBackend struct {
	fills      []paintCall
	strokes    []paintCall
	clips      []Path
	pushes     int
	popOpacity []float64
	maskPushes int
	maskPops   int
	images     int
	glyphs     []GlyphRun
	transform  Matrix
}

func (b *recordingBackend) Save()                 {}
func (b *recordingBackend) Restore()              {}
func (b *recordingBackend) SetTransform(m Matrix) { b.transform = m }

func (b *recordingBackend) ClipPath(p Path, rule FillRule) { b.clips = append(b.clips, p) }

func (b *recordingBackend) FillPath(p Path, rule FillRule, src PaintSource) {
	b.fills = append(b.fills, paintCall{path: p, rule: rule, src: src})
}

func (b *recordingBackend) StrokePath(p Path, state *ComputedState, src PaintSource) {
	b.strokes = append(b.strokes, paintCall{path: p, src: src})
}

func (b *recordingBackend) PushLayer() { b.pushes++ }
func (b *recordingBackend) PopLayer(opacity float64, compositingOp string) {
	b.popOpacity = append(b.popOpacity, opacity)
}

func (b *recordingBackend) PushMask() { b.maskPushes++ }
func (b *recordingBackend) PopMask()  { b.maskPops++ }

func (b *recordingBackend) DrawImage(data []byte, m Matrix) { b.images++ }

func (b *recordingBackend) Shaper() Shaper { return NopShaper{} }
func (b *recordingBackend) DrawGlyphRun(run GlyphRun, m Matrix, src PaintSource) {
	b.glyphs = append(b.glyphs, run)
}

func renderRecorded(t *testing.T, src string) *recordingBackend {
	t.Helper()
	doc := buildTestDoc(t, src)
	backend := &recordingBackend{}
	require.NoError(t, Render(doc, nil, backend, newDiagSink(NopLogger), RenderOptions{}))
	return backend
}

func TestRenderShapeFillsThenStrokes(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<rect width="10" height="10" fill="red" stroke="blue"/>
	</svg>`)
	require.Len(t, b.fills, 1)
	require.Len(t, b.strokes, 1)
	assert.Equal(t, uint32(0xffff0000), b.fills[0].src.ARGB)
	assert.Equal(t, uint32(0xff0000ff), b.strokes[0].src.ARGB)
}

func TestRenderSkipsDisplayNone(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<rect width="10" height="10" fill="red" display="none"/>
	</svg>`)
	assert.Empty(t, b.fills)
}

func TestRenderDefsContentNotDrawnInPlace(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs><rect width="10" height="10" fill="red"/></defs>
	</svg>`)
	assert.Empty(t, b.fills)
}

func TestRenderOpacityGroupPushesLayer(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<g opacity="0.25"><rect width="10" height="10" fill="red"/></g>
	</svg>`)
	assert.Equal(t, 1, b.pushes)
	require.Len(t, b.popOpacity, 1)
	assert.Equal(t, 0.25, b.popOpacity[0])
}

func TestRenderFullOpacitySkipsLayer(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<g><rect width="10" height="10" fill="red"/></g>
	</svg>`)
	assert.Zero(t, b.pushes, "no discrete layer without opacity/mask/filter/clip")
	require.Len(t, b.fills, 1)
}

func TestRenderUseSplicesReferencedShape(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs><rect id="box" width="10" height="10" fill="red"/></defs>
		<use href="#box" x="5" y="5"/>
	</svg>`)
	require.Len(t, b.fills, 1)
}

func TestRenderUseMissingReferenceDrawsNothing(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<use href="#nothing"/>
	</svg>`)
	assert.Empty(t, b.fills)
}

func TestRenderUseCycleRendersEmpty(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<g id="a"><use href="#b"/></g>
		<g id="b"><use href="#a"/></g>
	</svg>`)
	backend := &recordingBackend{}
	// The cycle is absorbed, not surfaced: the render succeeds and the
	// offending subtree contributes nothing.
	require.NoError(t, Render(doc, nil, backend, newDiagSink(NopLogger), RenderOptions{}))
	assert.Empty(t, backend.fills)
}

func TestRenderSwitchPicksFirstMatch(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<switch>
			<rect requiredExtensions="http://example.com/ext" width="10" height="10" fill="red"/>
			<rect width="10" height="10" fill="blue"/>
			<rect width="10" height="10" fill="green"/>
		</switch>
	</svg>`)
	require.Len(t, b.fills, 1, "a switch renders exactly one branch")
	assert.Equal(t, uint32(0xff0000ff), b.fills[0].src.ARGB)
}

func TestRenderSwitchSystemLanguage(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<switch>
			<rect systemLanguage="fr" width="10" height="10" fill="red"/>
			<rect systemLanguage="en-US, de" width="10" height="10" fill="blue"/>
		</switch>
	</svg>`)
	require.Len(t, b.fills, 1)
	assert.Equal(t, uint32(0xff0000ff), b.fills[0].src.ARGB)
}

func TestRenderClipPathEmitsClip(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs><clipPath id="c"><rect width="5" height="5"/></clipPath></defs>
		<rect width="10" height="10" fill="red" clip-path="url(#c)"/>
	</svg>`)
	assert.Len(t, b.clips, 1)
	assert.Len(t, b.fills, 1)
	assert.Equal(t, 1, b.pushes, "clip-path forces a discrete layer")
}

func TestRenderMaskWrapsContent(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs><mask id="m"><rect width="10" height="10" fill="white"/></mask></defs>
		<rect width="10" height="10" fill="red" mask="url(#m)"/>
	</svg>`)
	assert.Equal(t, 1, b.maskPushes)
	assert.Equal(t, 1, b.maskPops)
	require.Len(t, b.fills, 2, "content fill plus mask content fill")
}

func TestRenderGradientPaintSource(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs>
			<linearGradient id="g">
				<stop offset="0" stop-color="red"/>
				<stop offset="1" stop-color="blue" stop-opacity="0.5"/>
			</linearGradient>
		</defs>
		<rect width="10" height="10" fill="url(#g)"/>
	</svg>`)
	require.Len(t, b.fills, 1)
	src := b.fills[0].src
	assert.Equal(t, PaintSrcLinearGradient, src.Kind)
	require.Len(t, src.Stops, 2)
	assert.Equal(t, uint32(0xffff0000), src.Stops[0].ARGB)
	assert.Equal(t, uint8(0x7f), uint8(src.Stops[1].ARGB>>24))
}

func TestRenderGradientHrefInheritsStops(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs>
			<linearGradient id="base">
				<stop offset="0" stop-color="red"/>
				<stop offset="1" stop-color="blue"/>
			</linearGradient>
			<linearGradient id="derived" href="#base" x1="0" x2="1"/>
		</defs>
		<rect width="10" height="10" fill="url(#derived)"/>
	</svg>`)
	require.Len(t, b.fills, 1)
	assert.Len(t, b.fills[0].src.Stops, 2)
}

func TestRenderMissingPaintServerUsesFallback(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<rect width="10" height="10" fill="url(#ghost) green"/>
	</svg>`)
	require.Len(t, b.fills, 1)
	assert.Equal(t, PaintSrcSolid, b.fills[0].src.Kind)
	assert.Equal(t, uint32(0xff008000), b.fills[0].src.ARGB)
}

func TestRenderMissingPaintServerWithoutFallbackDrawsNothing(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<rect width="10" height="10" fill="url(#ghost)"/>
	</svg>`)
	assert.Empty(t, b.fills)
}

func TestRenderCurrentColorResolution(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<g color="purple"><rect width="10" height="10" fill="currentColor"/></g>
	</svg>`)
	require.Len(t, b.fills, 1)
	assert.Equal(t, uint32(0xff800080), b.fills[0].src.ARGB)
}

func TestRenderMarkersPlacedAtVertices(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs>
			<marker id="dot" markerWidth="4" markerHeight="4">
				<circle cx="2" cy="2" r="2" fill="red"/>
			</marker>
		</defs>
		<path d="M 0 0 L 10 0 L 20 10" fill="none" stroke="black"
			marker-start="url(#dot)" marker-mid="url(#dot)" marker-end="url(#dot)"/>
	</svg>`)
	// One stroke for the path, one fill per marker instance.
	assert.Len(t, b.strokes, 1)
	assert.Len(t, b.fills, 3)
}

func TestRenderPatternTilesContent(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs>
			<pattern id="p" width="10" height="10" patternUnits="userSpaceOnUse">
				<rect width="5" height="5" fill="red"/>
			</pattern>
		</defs>
		<rect width="20" height="20" fill="url(#p)"/>
	</svg>`)
	assert.Len(t, b.clips, 1, "pattern paint clips to the shape")
	assert.GreaterOrEqual(t, len(b.fills), 4, "tile content repeats across the shape")
}

func TestRenderTextEmitsGlyphRun(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<text x="5" y="10">hi</text>
	</svg>`)
	require.Len(t, b.glyphs, 1)
	assert.Equal(t, "hi", b.glyphs[0].Text)
}

func TestRenderTextTSpanRuns(t *testing.T) {
	b := renderRecorded(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<text x="0" y="10">a<tspan x="20">b</tspan></text>
	</svg>`)
	require.Len(t, b.glyphs, 2)
	assert.Equal(t, "a", b.glyphs[0].Text)
	assert.Equal(t, "b", b.glyphs[1].Text)
}

func TestRenderViewportOverride(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10">
		<rect width="10" height="10" fill="red"/>
	</svg>`)
	backend := &recordingBackend{}
	vp := &Rect{W: 20, H: 20}
	require.NoError(t, Render(doc, nil, backend, newDiagSink(NopLogger), RenderOptions{Viewport: vp}))
	// The viewBox maps 10 user units onto the 20-pixel viewport.
	assert.InDelta(t, 2.0, backend.transform.A, 1e-9)
}

func TestRenderSubElementOnly(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<rect id="one" width="10" height="10" fill="red"/>
		<rect id="two" width="10" height="10" fill="blue"/>
	</svg>`)
	n, ok := doc.Lookup("two")
	require.True(t, ok)
	backend := &recordingBackend{}
	require.NoError(t, Render(doc, n, backend, newDiagSink(NopLogger), RenderOptions{}))
	require.Len(t, backend.fills, 1)
	assert.Equal(t, uint32(0xff0000ff), backend.fills[0].src.ARGB)
}
