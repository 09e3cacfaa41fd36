package rsvg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefGuardDetectsCycle(t *testing.T) {
	g := newRefGuard()
	ok, _ := g.enter(1)
	require.True(t, ok)
	ok, _ = g.enter(2)
	require.True(t, ok)

	ok, reason := g.enter(1)
	assert.False(t, ok)
	assert.Contains(t, reason.Error(), "cycle")

	g.leave(2)
	g.leave(1)
	ok, _ = g.enter(1)
	assert.True(t, ok, "leaving clears the active chain")
}

func TestRefGuardDepthLimit(t *testing.T) {
	g := newRefGuard()
	for i := 0; i < maxUseDepth; i++ {
		ok, _ := g.enter(i)
		require.True(t, ok)
	}
	ok, reason := g.enter(maxUseDepth)
	assert.False(t, ok)
	assert.Contains(t, reason.Error(), "depth")
}

func TestRefGuardInstanceBudget(t *testing.T) {
	g := newRefGuard()
	g.instances = maxExpandedNodes
	ok, reason := g.enter(1)
	assert.False(t, ok)
	assert.Contains(t, reason.Error(), "node count")
}

func TestLookupKindRejectsMismatch(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs><linearGradient id="g"/></defs>
	</svg>`)

	// A mask="url(#g)" resolving to a gradient must fail.
	_, ok := doc.LookupKind("g", KindMask)
	assert.False(t, ok)
	_, ok = doc.LookupKind("g", KindLinearGradient, KindRadialGradient)
	assert.True(t, ok)
}

func TestResolveRefReportsDiagnostic(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg"/>`)

	var got []Diagnostic
	sink := newDiagSink(func(d Diagnostic) { got = append(got, d) })
	_, ok := resolveRef(doc, "ghost", sink, "caller", KindRect)
	assert.False(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, ErrUnresolvedReference, got[0].Kind)
}

func TestGradientStopsFollowHrefChain(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs>
			<linearGradient id="base">
				<stop offset="0" stop-color="red"/>
				<stop offset="0.5" stop-color="lime"/>
				<stop offset="1" stop-color="blue"/>
			</linearGradient>
			<linearGradient id="derived" href="#base"/>
		</defs>
	</svg>`)

	n, ok := doc.Lookup("derived")
	require.True(t, ok)
	stops := gradientStops(doc, n, newDiagSink(NopLogger))
	require.Len(t, stops, 3)
	assert.Equal(t, 0.0, stops[0].Offset)
	assert.Equal(t, 0.5, stops[1].Offset)
	assert.Equal(t, 1.0, stops[2].Offset)
}

func TestGradientHrefCycleYieldsNoStops(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs>
			<linearGradient id="a" href="#b"/>
			<linearGradient id="b" href="#a"/>
		</defs>
	</svg>`)

	n, ok := doc.Lookup("a")
	require.True(t, ok)
	stops := gradientStops(doc, n, newDiagSink(NopLogger))
	assert.Empty(t, stops)
}

func TestStopOffsetPercentForm(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs>
			<linearGradient id="g">
				<stop offset="50%" stop-color="red"/>
			</linearGradient>
		</defs>
	</svg>`)

	n, _ := doc.Lookup("g")
	stops := gradientStops(doc, n, newDiagSink(NopLogger))
	require.Len(t, stops, 1)
	assert.Equal(t, 0.5, stops[0].Offset)
}

func TestRadialGradientFocalOutsideCircleClampsToBoundary(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs>
			<radialGradient id="g" gradientUnits="userSpaceOnUse" cx="16" cy="16" r="8" fx="40" fy="16">
				<stop offset="0" stop-color="red"/>
				<stop offset="1" stop-color="blue"/>
			</radialGradient>
		</defs>
		<rect id="r" width="32" height="32" fill="url(#g)"/>
	</svg>`)

	backend := &recordingBackend{}
	require.NoError(t, Render(doc, nil, backend, newDiagSink(NopLogger), RenderOptions{}))
	require.Len(t, backend.fills, 1)
	src := backend.fills[0].src
	require.Equal(t, PaintSrcRadialGradient, src.Kind)
	assert.InDelta(t, 24.0, src.Fx, 1e-9, "focal clamps onto the circle boundary")
	assert.InDelta(t, 16.0, src.Fy, 1e-9)
	dx, dy := src.Fx-src.Cx, src.Fy-src.Cy
	assert.InDelta(t, src.R*src.R, dx*dx+dy*dy, 1e-6)
}

func TestRadialGradientFocalInsideCircleKept(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs>
			<radialGradient id="g" gradientUnits="userSpaceOnUse" cx="16" cy="16" r="8" fx="20" fy="14">
				<stop offset="0" stop-color="red"/>
				<stop offset="1" stop-color="blue"/>
			</radialGradient>
		</defs>
		<rect id="r" width="32" height="32" fill="url(#g)"/>
	</svg>`)

	backend := &recordingBackend{}
	require.NoError(t, Render(doc, nil, backend, newDiagSink(NopLogger), RenderOptions{}))
	require.Len(t, backend.fills, 1)
	src := backend.fills[0].src
	assert.Equal(t, 20.0, src.Fx)
	assert.Equal(t, 14.0, src.Fy)
}

func TestRadialGradientFocalDefaultsToCenter(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<defs>
			<radialGradient id="g" cx="0.3" cy="0.4" r="0.5">
				<stop offset="0" stop-color="red"/>
				<stop offset="1" stop-color="blue"/>
			</radialGradient>
		</defs>
		<rect id="r" width="10" height="10" fill="url(#g)"/>
	</svg>`)

	backend := &recordingBackend{}
	require.NoError(t, Render(doc, nil, backend, newDiagSink(NopLogger), RenderOptions{}))
	require.Len(t, backend.fills, 1)
	src := backend.fills[0].src
	assert.Equal(t, PaintSrcRadialGradient, src.Kind)
	assert.Equal(t, src.Cx, src.Fx)
	assert.Equal(t, src.Cy, src.Fy)
}
