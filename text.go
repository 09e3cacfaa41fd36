package rsvg

// GlyphRun is one shaped run of text ready for a Backend to draw:
// positioned glyph advances for a single font face/size/style
// combination.
type GlyphRun struct {
	Text     string
	Face     FontSpec
	Advances []float64 // per-rune advance width, in font units already scaled to FontSpec.Size
}

// FontSpec names the face a Shaper should resolve, mirroring the
// cascaded font-* properties a <text>/<tspan> carries (cascade.go).
type FontSpec struct {
	Family  []string
	Size    float64
	Style   string
	Weight  string
	Stretch string
}

// Shaper turns cascaded font properties and a string into a measured
// glyph run, and exposes line-layout metrics. Concrete shapers (e.g.
// shaper/gofont) resolve FontSpec.Family against installed/bundled
// fonts and load glyph outlines; rsvg itself stays font-backend
// agnostic, mirroring the Backend split in render.go.
type Shaper interface {
	// Shape measures text under face, returning per-rune advances in
	// user-space units.
	Shape(text string, face FontSpec) (GlyphRun, error)

	// LineHeight reports the recommended baseline-to-baseline distance
	// for face.
	LineHeight(face FontSpec) float64
}

// NopShaper measures every rune as a fixed advance equal to the font
// size's 0.6 em-box approximation; it never fails and needs no font
// files, useful as a default when no real Shaper is configured and for
// tests that don't assert on glyph shapes.
type NopShaper struct{}

func (NopShaper) Shape(text string, face FontSpec) (GlyphRun, error) {
	advances := make([]float64, 0, len(text))
	adv := face.Size * 0.6
	for range text {
		advances = append(advances, adv)
	}
	return GlyphRun{Text: text, Face: face, Advances: advances}, nil
}

func (NopShaper) LineHeight(face FontSpec) float64 { return face.Size * 1.2 }
