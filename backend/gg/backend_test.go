package gg

import (
	"bytes"
	"image"
	"path/filepath"
	"strings"
	"testing"

	fgg "github.com/fogleman/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorgraphics/rsvg"
)

func loadHandle(t *testing.T, src string) *rsvg.Handle {
	t.Helper()
	h := rsvg.NewHandle(rsvg.WithLogger(rsvg.NopLogger))
	_, err := h.Write([]byte(src))
	require.NoError(t, err)
	require.NoError(t, h.Close())
	return h
}

func TestRenderEmptyDocumentIsTransparent(t *testing.T) {
	h := loadHandle(t, `<svg xmlns="http://www.w3.org/2000/svg" width="16" height="16"/>`)

	ctx := fgg.NewContext(16, 16)
	require.NoError(t, h.Render(New(ctx)))

	img := ctx.Image().(*image.RGBA)
	for _, p := range img.Pix {
		assert.Zero(t, p)
	}
}

func TestRenderFilledRect(t *testing.T) {
	h := loadHandle(t, `<svg xmlns="http://www.w3.org/2000/svg" width="16" height="16">
		<rect x="0" y="0" width="16" height="16" fill="#ff0000"/>
	</svg>`)

	ctx := fgg.NewContext(16, 16)
	require.NoError(t, h.Render(New(ctx)))

	r, g, b, a := ctx.Image().At(8, 8).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)
	assert.Zero(t, b)
	assert.Equal(t, uint32(0xffff), a)
}

func TestRenderRespectsGroupOpacity(t *testing.T) {
	h := loadHandle(t, `<svg xmlns="http://www.w3.org/2000/svg" width="16" height="16">
		<g opacity="0.5"><rect width="16" height="16" fill="#0000ff"/></g>
	</svg>`)

	ctx := fgg.NewContext(16, 16)
	require.NoError(t, h.Render(New(ctx)))

	_, _, _, a := ctx.Image().At(8, 8).RGBA()
	assert.InDelta(t, 0x8000, int(a), 0x400)
}

func TestRenderLinearGradient(t *testing.T) {
	h := loadHandle(t, `<svg xmlns="http://www.w3.org/2000/svg" width="64" height="16">
		<defs>
			<linearGradient id="g" x1="0" y1="0" x2="64" y2="0" gradientUnits="userSpaceOnUse">
				<stop offset="0" stop-color="#000000"/>
				<stop offset="1" stop-color="#ffffff"/>
			</linearGradient>
		</defs>
		<rect width="64" height="16" fill="url(#g)"/>
	</svg>`)

	ctx := fgg.NewContext(64, 16)
	require.NoError(t, h.Render(New(ctx)))

	rl, _, _, _ := ctx.Image().At(2, 8).RGBA()
	rr, _, _, _ := ctx.Image().At(61, 8).RGBA()
	assert.Less(t, rl, rr, "gradient should brighten left to right")
}

func TestRenderRadialGradientFocalPoint(t *testing.T) {
	h := loadHandle(t, `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32">
		<defs>
			<radialGradient id="g" gradientUnits="userSpaceOnUse" cx="16" cy="16" r="16" fx="28" fy="16">
				<stop offset="0" stop-color="#000000"/>
				<stop offset="1" stop-color="#ffffff"/>
			</radialGradient>
		</defs>
		<rect width="32" height="32" fill="url(#g)"/>
	</svg>`)

	ctx := fgg.NewContext(32, 32)
	require.NoError(t, h.Render(New(ctx)))

	nearFocal, _, _, _ := ctx.Image().At(27, 16).RGBA()
	farSide, _, _, _ := ctx.Image().At(4, 16).RGBA()
	assert.Less(t, nearFocal, farSide, "pixels near the focal point take the first stop")
}

func TestRenderRadialGradientFocalClamped(t *testing.T) {
	// fx far outside the circle clamps to its boundary, so the darkest
	// region sits at the right edge rather than vanishing off-canvas.
	h := loadHandle(t, `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32">
		<defs>
			<radialGradient id="g" gradientUnits="userSpaceOnUse" cx="16" cy="16" r="16" fx="64" fy="16">
				<stop offset="0" stop-color="#000000"/>
				<stop offset="1" stop-color="#ffffff"/>
			</radialGradient>
		</defs>
		<rect width="32" height="32" fill="url(#g)"/>
	</svg>`)

	ctx := fgg.NewContext(32, 32)
	require.NoError(t, h.Render(New(ctx)))

	nearClamped, _, _, _ := ctx.Image().At(30, 16).RGBA()
	farSide, _, _, _ := ctx.Image().At(2, 16).RGBA()
	assert.Less(t, nearClamped, farSide)
}

func TestRenderTransformedRect(t *testing.T) {
	h := loadHandle(t, `<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20">
		<rect x="0" y="0" width="5" height="5" fill="#00ff00" transform="translate(10 10)"/>
	</svg>`)

	ctx := fgg.NewContext(20, 20)
	require.NoError(t, h.Render(New(ctx)))

	_, g, _, _ := ctx.Image().At(12, 12).RGBA()
	assert.Equal(t, uint32(0xffff), g)
	_, g, _, _ = ctx.Image().At(2, 2).RGBA()
	assert.Zero(t, g)
}

func TestDecodeRegisteredFormat(t *testing.T) {
	src := `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="12"/>`

	cfg, format, err := image.DecodeConfig(bytes.NewReader([]byte(src)))
	require.NoError(t, err)
	assert.Equal(t, "svg", format)
	assert.Equal(t, 10, cfg.Width)
	assert.Equal(t, 12, cfg.Height)

	img, _, err := image.Decode(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
}

func TestDecodeFile(t *testing.T) {
	img, err := DecodeFile(filepath.Join("..", "..", "testdata", "dimensions", "explicit-16x16.svg"))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestImageScale(t *testing.T) {
	img, err := Decode(strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg" width="8" height="8" viewBox="0 0 8 8">
		<rect width="8" height="8" fill="#ff0000"/>
	</svg>`))
	require.NoError(t, err)

	scaled, err := img.(*Image).Scale(2)
	require.NoError(t, err)
	assert.Equal(t, 16, scaled.Bounds().Dx())
	r, _, _, _ := scaled.At(8, 8).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}
