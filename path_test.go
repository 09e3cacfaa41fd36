package rsvg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segKinds(p Path) []SegmentKind {
	out := make([]SegmentKind, len(p.Segments))
	for i, s := range p.Segments {
		out[i] = s.Kind
	}
	return out
}

func TestParsePathBasicCommands(t *testing.T) {
	p := ParsePath("M 10 20 L 30 40 Z")
	require.Len(t, p.Segments, 3)
	assert.Equal(t, []SegmentKind{SegMoveTo, SegLineTo, SegClose}, segKinds(p))
	assert.Equal(t, 10.0, p.Segments[0].X)
	assert.Equal(t, 20.0, p.Segments[0].Y)
	assert.True(t, p.Segments[0].NewSubpath)
	assert.False(t, p.Warning)
}

func TestParsePathRelativeCommands(t *testing.T) {
	p := ParsePath("m 10 10 l 5 5 l 5 -5")
	require.Len(t, p.Segments, 3)
	assert.Equal(t, 15.0, p.Segments[1].X)
	assert.Equal(t, 15.0, p.Segments[1].Y)
	assert.Equal(t, 20.0, p.Segments[2].X)
	assert.Equal(t, 10.0, p.Segments[2].Y)
}

func TestParsePathImplicitLineToAfterMove(t *testing.T) {
	// Repeated coordinate pairs after M become LineTo.
	p := ParsePath("M 0 0 10 0 10 10")
	require.Len(t, p.Segments, 3)
	assert.Equal(t, []SegmentKind{SegMoveTo, SegLineTo, SegLineTo}, segKinds(p))
}

func TestParsePathHorizontalVertical(t *testing.T) {
	p := ParsePath("M 1 2 H 10 V 20 h 5 v 5")
	require.Len(t, p.Segments, 5)
	assert.Equal(t, 10.0, p.Segments[1].X)
	assert.Equal(t, 2.0, p.Segments[1].Y)
	assert.Equal(t, 10.0, p.Segments[2].X)
	assert.Equal(t, 20.0, p.Segments[2].Y)
	assert.Equal(t, 15.0, p.Segments[3].X)
	assert.Equal(t, 25.0, p.Segments[4].Y)
}

func TestParsePathSmoothCubicReflection(t *testing.T) {
	p := ParsePath("M 0 0 C 10 0 20 10 30 10 S 50 20 60 10")
	require.Len(t, p.Segments, 3)
	s := p.Segments[2]
	require.Equal(t, SegCubicTo, s.Kind)
	// Reflection of (20,10) about (30,10) is (40,10).
	assert.Equal(t, 40.0, s.X1)
	assert.Equal(t, 10.0, s.Y1)
}

func TestParsePathSmoothWithoutPriorCubicUsesCurrentPoint(t *testing.T) {
	p := ParsePath("M 5 5 S 10 10 20 20")
	require.Len(t, p.Segments, 2)
	s := p.Segments[1]
	require.Equal(t, SegCubicTo, s.Kind)
	assert.Equal(t, 5.0, s.X1)
	assert.Equal(t, 5.0, s.Y1)
}

func TestParsePathQuadReflection(t *testing.T) {
	p := ParsePath("M 0 0 Q 10 10 20 0 T 40 0")
	require.Len(t, p.Segments, 3)
	s := p.Segments[2]
	require.Equal(t, SegQuadTo, s.Kind)
	// Reflection of (10,10) about (20,0) is (30,-10).
	assert.Equal(t, 30.0, s.X1)
	assert.Equal(t, -10.0, s.Y1)
}

func TestParsePathArc(t *testing.T) {
	p := ParsePath("M 0 0 A 10 10 0 0 1 20 0")
	require.Len(t, p.Segments, 2)
	s := p.Segments[1]
	require.Equal(t, SegArc, s.Kind)
	assert.Equal(t, 10.0, s.Rx)
	assert.False(t, s.LargeArc)
	assert.True(t, s.Sweep)
	assert.Equal(t, 20.0, s.X)
}

func TestParsePathErrorKeepsValidPrefix(t *testing.T) {
	p := ParsePath("M 0 0 L 10 10 L bogus")
	assert.True(t, p.Warning)
	require.Len(t, p.Segments, 2)
	assert.Equal(t, []SegmentKind{SegMoveTo, SegLineTo}, segKinds(p))
}

func TestParsePathCompactSyntax(t *testing.T) {
	// No separators where the grammar allows none.
	p := ParsePath("M0,0L10,0 10,10z")
	require.GreaterOrEqual(t, len(p.Segments), 3)
	assert.False(t, p.Warning)
	assert.Equal(t, SegClose, p.Segments[len(p.Segments)-1].Kind)
}

func TestFlattenedConvertsArcsToCubics(t *testing.T) {
	p := ParsePath("M 0 0 A 10 10 0 0 1 20 0").Flattened()
	require.NotEmpty(t, p.Segments)
	for _, s := range p.Segments {
		assert.NotEqual(t, SegArc, s.Kind)
	}
	// The flattened arc still ends exactly at the commanded endpoint.
	last := p.Segments[len(p.Segments)-1]
	assert.Equal(t, 20.0, last.X)
	assert.Equal(t, 0.0, last.Y)
}

func TestFlattenedArcStaysOnCircle(t *testing.T) {
	p := ParsePath("M 0 0 A 10 10 0 0 1 20 0").Flattened()
	// The half circle from (0,0) to (20,0) has center (10,0); every
	// cubic endpoint must sit on the radius-10 circle.
	for _, s := range p.Segments {
		if s.Kind != SegCubicTo {
			continue
		}
		dx, dy := s.X-10, s.Y-0
		assert.InDelta(t, 100, dx*dx+dy*dy, 1.0)
	}
}

func TestFlattenedZeroRadiusArcBecomesLine(t *testing.T) {
	p := ParsePath("M 0 0 A 0 10 0 0 1 20 0").Flattened()
	require.Len(t, p.Segments, 2)
	assert.Equal(t, SegLineTo, p.Segments[1].Kind)
}

func TestFlattenedNoArcsReturnsSameSegments(t *testing.T) {
	p := ParsePath("M 0 0 L 10 10")
	assert.Equal(t, p.Segments, p.Flattened().Segments)
}
