package draw2d

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorgraphics/rsvg"
)

func renderToImage(t *testing.T, src string, w, h int) *image.RGBA {
	t.Helper()
	handle := rsvg.NewHandle(rsvg.WithLogger(rsvg.NopLogger))
	_, err := handle.Write([]byte(src))
	require.NoError(t, err)
	require.NoError(t, handle.Close())

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	require.NoError(t, handle.Render(New(img)))
	return img
}

func TestFillSolidRect(t *testing.T) {
	img := renderToImage(t, `<svg xmlns="http://www.w3.org/2000/svg" width="16" height="16">
		<rect width="16" height="16" fill="#ff0000"/>
	</svg>`, 16, 16)

	r, g, _, a := img.At(8, 8).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)
	assert.Equal(t, uint32(0xffff), a)
}

func TestStrokeCircleLeavesCenterEmpty(t *testing.T) {
	img := renderToImage(t, `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32">
		<circle cx="16" cy="16" r="12" fill="none" stroke="#000000" stroke-width="2"/>
	</svg>`, 32, 32)

	_, _, _, a := img.At(16, 16).RGBA()
	assert.Zero(t, a, "circle interior should stay unpainted")
	_, _, _, a = img.At(16, 4).RGBA()
	assert.NotZero(t, a, "stroke should cover the circle's top edge")
}

func TestLinearGradientRamp(t *testing.T) {
	img := renderToImage(t, `<svg xmlns="http://www.w3.org/2000/svg" width="64" height="8">
		<defs>
			<linearGradient id="g" x1="0" y1="0" x2="64" y2="0" gradientUnits="userSpaceOnUse">
				<stop offset="0" stop-color="#000000"/>
				<stop offset="1" stop-color="#ffffff"/>
			</linearGradient>
		</defs>
		<rect width="64" height="8" fill="url(#g)"/>
	</svg>`, 64, 8)

	rl, _, _, _ := img.At(2, 4).RGBA()
	rm, _, _, _ := img.At(32, 4).RGBA()
	rr, _, _, _ := img.At(61, 4).RGBA()
	assert.Less(t, rl, rm)
	assert.Less(t, rm, rr)
}

func TestRadialGradientFocalPoint(t *testing.T) {
	img := renderToImage(t, `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32">
		<defs>
			<radialGradient id="g" gradientUnits="userSpaceOnUse" cx="16" cy="16" r="16" fx="28" fy="16">
				<stop offset="0" stop-color="#000000"/>
				<stop offset="1" stop-color="#ffffff"/>
			</radialGradient>
		</defs>
		<rect width="32" height="32" fill="url(#g)"/>
	</svg>`, 32, 32)

	nearFocal, _, _, _ := img.At(27, 16).RGBA()
	farSide, _, _, _ := img.At(4, 16).RGBA()
	assert.Less(t, nearFocal, farSide, "pixels near the focal point take the first stop")
}

func TestRadialGradientFocalClamped(t *testing.T) {
	// An out-of-circle fx clamps to the boundary during paint
	// resolution; the ramp's darkest region lands at the right edge.
	img := renderToImage(t, `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32">
		<defs>
			<radialGradient id="g" gradientUnits="userSpaceOnUse" cx="16" cy="16" r="16" fx="64" fy="16">
				<stop offset="0" stop-color="#000000"/>
				<stop offset="1" stop-color="#ffffff"/>
			</radialGradient>
		</defs>
		<rect width="32" height="32" fill="url(#g)"/>
	</svg>`, 32, 32)

	nearClamped, _, _, _ := img.At(30, 16).RGBA()
	farSide, _, _, _ := img.At(2, 16).RGBA()
	assert.Less(t, nearClamped, farSide)
}

func TestClipPathRestrictsFill(t *testing.T) {
	img := renderToImage(t, `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32">
		<defs>
			<clipPath id="c"><rect width="16" height="32"/></clipPath>
		</defs>
		<rect width="32" height="32" fill="#00ff00" clip-path="url(#c)"/>
	</svg>`, 32, 32)

	_, g, _, _ := img.At(8, 16).RGBA()
	assert.Equal(t, uint32(0xffff), g, "inside the clip")
	_, g, _, _ = img.At(24, 16).RGBA()
	assert.Zero(t, g, "outside the clip")
}

func TestSpreadHelpers(t *testing.T) {
	assert.Equal(t, 0.0, applySpread(-0.5, "pad"))
	assert.Equal(t, 1.0, applySpread(1.5, "pad"))
	assert.InDelta(t, 0.25, applySpread(1.25, "repeat"), 1e-9)
	assert.InDelta(t, 0.75, applySpread(1.25, "reflect"), 1e-9)
	assert.InDelta(t, 0.25, applySpread(2.25, "reflect"), 1e-9)
}

func TestInterpolateStops(t *testing.T) {
	stops := []rsvg.GradientStop{
		{Offset: 0, ARGB: 0xff000000},
		{Offset: 1, ARGB: 0xffffffff},
	}
	mid := interpolateStops(stops, 0.5)
	assert.InDelta(t, 128, int(mid.R), 2)
	assert.Equal(t, uint8(0xff), mid.A)
}
