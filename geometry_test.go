package rsvg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitViewBoxMeet(t *testing.T) {
	// A 10x10 box into a 20x40 viewport under xMidYMid meet: scale 2,
	// centered vertically.
	m := fitViewBox(ViewBox{W: 10, H: 10}, DefaultPAR, Rect{W: 20, H: 40})
	x, y := m.Apply(0, 0)
	assert.InDelta(t, 0, x, 1e-9)
	assert.InDelta(t, 10, y, 1e-9)
	x, y = m.Apply(10, 10)
	assert.InDelta(t, 20, x, 1e-9)
	assert.InDelta(t, 30, y, 1e-9)
}

func TestFitViewBoxSlice(t *testing.T) {
	// Slice picks the larger scale: 10x10 into 20x40 scales by 4.
	par := PreserveAspectRatio{Align: "xMidYMid", Slice: true}
	m := fitViewBox(ViewBox{W: 10, H: 10}, par, Rect{W: 20, H: 40})
	x0, _ := m.Apply(0, 0)
	x1, _ := m.Apply(10, 0)
	assert.InDelta(t, 40, x1-x0, 1e-9)
}

func TestFitViewBoxNoneStretches(t *testing.T) {
	m := fitViewBox(ViewBox{W: 10, H: 10}, PreserveAspectRatio{Align: "none"}, Rect{W: 20, H: 40})
	x, y := m.Apply(10, 10)
	assert.InDelta(t, 20, x, 1e-9)
	assert.InDelta(t, 40, y, 1e-9)
}

func TestFitViewBoxAlignments(t *testing.T) {
	vb := ViewBox{W: 10, H: 10}
	vp := Rect{W: 40, H: 20} // scale 2, 20 extra horizontal pixels

	min := fitViewBox(vb, PreserveAspectRatio{Align: "xMinYMin"}, vp)
	x, _ := min.Apply(0, 0)
	assert.InDelta(t, 0, x, 1e-9)

	mid := fitViewBox(vb, PreserveAspectRatio{Align: "xMidYMid"}, vp)
	x, _ = mid.Apply(0, 0)
	assert.InDelta(t, 10, x, 1e-9)

	max := fitViewBox(vb, PreserveAspectRatio{Align: "xMaxYMax"}, vp)
	x, _ = max.Apply(0, 0)
	assert.InDelta(t, 20, x, 1e-9)
}

func TestFitViewBoxOffsetOrigin(t *testing.T) {
	m := fitViewBox(ViewBox{X: 5, Y: 5, W: 10, H: 10}, DefaultPAR, Rect{W: 10, H: 10})
	x, y := m.Apply(5, 5)
	assert.InDelta(t, 0, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)
}

func TestFitViewBoxDegenerateBox(t *testing.T) {
	// Zero-extent viewBox degenerates to a translation, drawing nothing
	// scaled rather than dividing by zero.
	m := fitViewBox(ViewBox{W: 0, H: 10}, DefaultPAR, Rect{X: 3, Y: 4, W: 10, H: 10})
	x, y := m.Apply(0, 0)
	assert.Equal(t, 3.0, x)
	assert.Equal(t, 4.0, y)
}

func TestNaturalSizeFallbackChain(t *testing.T) {
	// width/height win over the viewBox.
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg" width="50" height="60" viewBox="0 0 10 10"/>`)
	dim := naturalSize(doc, 96, 96)
	assert.Equal(t, 50.0, dim.Width)
	assert.Equal(t, 60.0, dim.Height)
	assert.True(t, dim.HasViewBox)

	// One explicit dimension derives the other from the viewBox ratio.
	doc = buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg" width="50" viewBox="0 0 10 20"/>`)
	dim = naturalSize(doc, 96, 96)
	assert.Equal(t, 50.0, dim.Width)
	assert.Equal(t, 100.0, dim.Height)

	// Percent sizes on the root behave as absent.
	doc = buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg" width="100%" height="100%" viewBox="0 0 8 4"/>`)
	dim = naturalSize(doc, 96, 96)
	assert.Equal(t, 8.0, dim.Width)
	assert.Equal(t, 4.0, dim.Height)

	// Nothing at all: the 100x100 default.
	doc = buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg"/>`)
	dim = naturalSize(doc, 96, 96)
	assert.Equal(t, 100.0, dim.Width)
}

func TestBBoxAccumulator(t *testing.T) {
	b := newBBox()
	assert.Equal(t, Rect{}, b.rect(), "empty bbox reports zero geometry")

	b.addPoint(1, 2)
	b.addPoint(5, -3)
	r := b.rect()
	assert.Equal(t, Rect{X: 1, Y: -3, W: 4, H: 5}, r)

	other := newBBox()
	other.addPoint(10, 10)
	b.union(other)
	assert.Equal(t, 9.0, b.rect().W)
}

func TestGeometryTransformEquivariance(t *testing.T) {
	// bbox(apply(T, tree)) == apply(T, bbox(tree)) for an affine T.
	plain := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<rect id="r" x="1" y="2" width="3" height="4"/>
	</svg>`)
	moved := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<rect id="r" x="1" y="2" width="3" height="4" transform="translate(10 20) scale(2)"/>
	</svg>`)

	// Query the parent <svg> so the element transform participates.
	_, logicalPlain := computeGeometry(plain, plain.Node(plain.Root), 96, 96)
	_, logicalMoved := computeGeometry(moved, moved.Node(moved.Root), 96, 96)

	assert.Equal(t, Rect{X: 1, Y: 2, W: 3, H: 4}, logicalPlain)
	assert.Equal(t, Rect{X: 12, Y: 24, W: 6, H: 8}, logicalMoved)
}

func TestGeometryGroupUnionsChildren(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<g id="g">
			<rect x="0" y="0" width="10" height="10"/>
			<rect x="20" y="20" width="10" height="10"/>
		</g>
	</svg>`)
	g, ok := doc.Lookup("g")
	require.True(t, ok)
	_, logical := computeGeometry(doc, g, 96, 96)
	assert.Equal(t, Rect{X: 0, Y: 0, W: 30, H: 30}, logical)
}

func TestGeometryUseFollowsReference(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs><rect id="box" width="10" height="10"/></defs>
		<use id="u" href="#box" x="5" y="5"/>
	</svg>`)
	u, ok := doc.Lookup("u")
	require.True(t, ok)
	_, logical := computeGeometry(doc, u, 96, 96)
	assert.Equal(t, Rect{X: 5, Y: 5, W: 10, H: 10}, logical)
}

func TestMatrixInvertRoundTrip(t *testing.T) {
	m := ParseTransform("translate(3 4) rotate(30) scale(2 5)")
	inv := m.Invert()
	x, y := inv.Apply(m.Apply(7, 9))
	assert.InDelta(t, 7, x, 1e-9)
	assert.InDelta(t, 9, y, 1e-9)

	assert.Equal(t, Identity, Matrix{}.Invert(), "singular matrices invert to identity")
}
