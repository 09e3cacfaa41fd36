// Package gofont implements rsvg.Shaper over the Go font family and
// golang.org/x/image/font/opentype, with system font discovery through
// github.com/flopp/go-findfont. The bundled Go fonts back the generic
// CSS families (serif, sans-serif, monospace, …) so shaping always
// succeeds even on hosts with no font files installed.
package gofont

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/flopp/go-findfont"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomediumitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/vectorgraphics/rsvg"
)

type weightEntry struct {
	weight font.Weight
	normal *sfnt.Font
	italic *sfnt.Font
}

// family is an ordered set of weights; lookup picks the first entry at
// or above the requested weight, falling back to the heaviest.
type family struct {
	weights []weightEntry
}

func (f *family) pick(weight font.Weight, italic bool) *sfnt.Font {
	var chosen *weightEntry
	for i := range f.weights {
		w := &f.weights[i]
		if w.weight >= weight {
			chosen = w
			break
		}
	}
	if chosen == nil {
		chosen = &f.weights[len(f.weights)-1]
	}
	if italic && chosen.italic != nil {
		return chosen.italic
	}
	return chosen.normal
}

type ttfPair struct {
	weight         font.Weight
	normal, italic []byte
}

func mustFamily(entries ...ttfPair) *family {
	f := &family{}
	for _, e := range entries {
		we := weightEntry{weight: e.weight}
		we.normal = mustParse(e.normal)
		if e.italic != nil {
			we.italic = mustParse(e.italic)
		}
		f.weights = append(f.weights, we)
	}
	return f
}

func mustParse(ttf []byte) *sfnt.Font {
	f, err := opentype.Parse(ttf)
	if err != nil {
		panic(err)
	}
	return f
}

var (
	buildOnce      sync.Once
	goProportional *family
	goMonospace    *family
)

func builtinFamilies() (*family, *family) {
	buildOnce.Do(func() {
		goProportional = mustFamily(
			ttfPair{font.WeightNormal, goregular.TTF, goitalic.TTF},
			ttfPair{font.WeightMedium, gomedium.TTF, gomediumitalic.TTF},
			ttfPair{font.WeightBold, gobold.TTF, gobolditalic.TTF},
		)
		goMonospace = mustFamily(
			ttfPair{font.WeightNormal, gomono.TTF, gomonoitalic.TTF},
			ttfPair{font.WeightBold, gomonobold.TTF, gomonobolditalic.TTF},
		)
	})
	return goProportional, goMonospace
}

type faceKey struct {
	font *sfnt.Font
	size float64
}

// Shaper resolves rsvg.FontSpec values to concrete faces and measures
// text with them. Safe for use from a single render at a time, like
// the Handle that owns it.
type Shaper struct {
	mu       sync.Mutex
	families map[string]*family
	missing  map[string]bool // system lookups that already failed
	faces    map[faceKey]font.Face
}

// New builds a Shaper preloaded with the Go fonts for every generic
// CSS family name.
func New() *Shaper {
	prop, mono := builtinFamilies()
	return &Shaper{
		families: map[string]*family{
			"serif":      prop,
			"sans-serif": prop,
			"monospace":  mono,
			"cursive":    prop,
			"fantasy":    prop,
			"system-ui":  prop,
			"go":         prop,
			"go mono":    mono,
		},
		missing: map[string]bool{},
		faces:   map[faceKey]font.Face{},
	}
}

// resolve walks spec's family list, trying loaded families first and
// then the host's installed fonts via findfont; the Go proportional
// family is the final fallback.
func (s *Shaper) resolve(spec rsvg.FontSpec) *family {
	for _, name := range spec.Family {
		key := strings.ToLower(strings.TrimSpace(name))
		if f, ok := s.families[key]; ok {
			return f
		}
		if s.missing[key] {
			continue
		}
		if f := loadSystemFamily(name); f != nil {
			s.families[key] = f
			return f
		}
		s.missing[key] = true
	}
	prop, _ := builtinFamilies()
	return prop
}

func loadSystemFamily(name string) *family {
	path, err := findfont.Find(name + ".ttf")
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil
	}
	return &family{weights: []weightEntry{{weight: font.WeightNormal, normal: f}}}
}

func parseWeight(w string) font.Weight {
	switch w {
	case "", "normal":
		return font.WeightNormal
	case "bold":
		return font.WeightBold
	case "bolder":
		return font.WeightExtraBold
	case "lighter":
		return font.WeightLight
	}
	if n, err := strconv.Atoi(w); err == nil {
		// CSS weights are 100..900 with 400 normal; font.Weight is an
		// offset from normal in steps of 100.
		return font.Weight((n - 400) / 100)
	}
	return font.WeightNormal
}

// Face returns the concrete font face for spec, satisfying the
// FaceSource extension the raster backends use to draw glyphs.
func (s *Shaper) Face(spec rsvg.FontSpec) (font.Face, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fam := s.resolve(spec)
	italic := spec.Style == "italic" || spec.Style == "oblique"
	sf := fam.pick(parseWeight(spec.Weight), italic)

	size := spec.Size
	if size <= 0 {
		size = 12
	}
	key := faceKey{font: sf, size: size}
	if face, ok := s.faces[key]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(sf, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	s.faces[key] = face
	return face, nil
}

// Shape measures text rune by rune, returning advances in user units.
func (s *Shaper) Shape(text string, spec rsvg.FontSpec) (rsvg.GlyphRun, error) {
	face, err := s.Face(spec)
	if err != nil {
		return rsvg.GlyphRun{}, err
	}
	advances := make([]float64, 0, len(text))
	for _, r := range text {
		adv, ok := face.GlyphAdvance(r)
		if !ok {
			adv, _ = face.GlyphAdvance('?')
		}
		advances = append(advances, fixedToFloat(adv))
	}
	return rsvg.GlyphRun{Text: text, Face: spec, Advances: advances}, nil
}

// LineHeight reports the face's natural baseline-to-baseline distance.
func (s *Shaper) LineHeight(spec rsvg.FontSpec) float64 {
	face, err := s.Face(spec)
	if err != nil {
		return spec.Size * 1.2
	}
	return fixedToFloat(face.Metrics().Height)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
