package rsvg

import (
	"strconv"
	"strings"
)

// PropSet is a bitmask over the cascadable properties of ComputedState,
// used to track which properties a given state explicitly set (as
// opposed to carrying a default or inherited value) and which were set
// by an !important declaration.
type PropSet uint64

const (
	PropFill PropSet = 1 << iota
	PropStroke
	PropFillOpacity
	PropStrokeOpacity
	PropOpacity
	PropStrokeWidth
	PropMiterLimit
	PropCap
	PropJoin
	PropDash
	PropFillRule
	PropClipRule
	PropFontFamily
	PropFontSize
	PropFontStyle
	PropFontVariant
	PropFontWeight
	PropFontStretch
	PropTextDecoration
	PropTextDirection
	PropTextAnchor
	PropLetterSpacing
	PropVisibility
	PropDisplay
	PropClipPathRef
	PropMaskRef
	PropFilterRef
	PropCompositingOp
	PropEnableBackground
	PropMarkerStart
	PropMarkerMid
	PropMarkerEnd
	PropColor
	PropFloodColor
	PropFloodOpacity
	PropStopColor
	PropStopOpacity
	PropXMLLang
	PropXMLSpace
	PropShapeRendering
	PropTextRendering
)

// inheritableProps is the subset of properties SVG flags inheritable.
// Markers, masks, filters, clip-path, opacity,
// the compositing op and enable-background are explicitly NOT
// inherited.
const inheritableProps = PropFill | PropStroke | PropFillOpacity | PropStrokeOpacity |
	PropStrokeWidth | PropMiterLimit | PropCap | PropJoin | PropDash | PropFillRule |
	PropClipRule | PropFontFamily | PropFontSize | PropFontStyle | PropFontVariant |
	PropFontWeight | PropFontStretch | PropTextDecoration | PropTextDirection |
	PropTextAnchor | PropLetterSpacing | PropVisibility | PropColor | PropXMLLang |
	PropXMLSpace | PropShapeRendering | PropTextRendering

// LineCap is the stroke-linecap value a Backend must render.
type LineCap int

const (
	CapButt LineCap = iota
	CapRound
	CapSquare
)

// LineJoin is the stroke-linejoin value a Backend must render.
type LineJoin int

const (
	JoinMiter LineJoin = iota
	JoinRound
	JoinBevel
)

// FillRule selects the interior-point test a Backend uses for
// FillPath/ClipPath.
type FillRule int

const (
	FillRuleNonzero FillRule = iota
	FillRuleEvenOdd
)

const (
	TextDecorUnderline = 1 << iota
	TextDecorOverline
	TextDecorStrike
)

type textDirection int

const (
	DirLTR textDirection = iota
	DirRTL
	DirTTB
)

// ComputedState is the resolved style record each node owns after
// cascade.
type ComputedState struct {
	Fill, Stroke               Paint
	FillOpacity, StrokeOpacity float64
	Opacity                    float64
	StrokeWidth                Length
	MiterLimit                 float64
	Cap                        LineCap
	Join                       LineJoin
	Dash                       DashArray
	DashOffset                 Length
	FillRule, ClipRule         FillRule

	FontFamily  []string
	FontSize    Length
	FontStyle   string
	FontVariant string
	FontWeight  string
	FontStretch string

	TextDecoration int
	TextDirection  textDirection
	TextAnchor     string
	LetterSpacing  Length

	Visible bool
	Display bool

	ClipPathRef, MaskRef, FilterRef string
	CompositingOp                   string
	EnableBackgroundNew             bool

	MarkerStart, MarkerMid, MarkerEnd string

	CurrentColor ColorValue
	FloodColor   ColorValue
	FloodOpacity float64
	StopColor    Paint
	StopOpacity  float64

	XMLLang, XMLSpace string

	ShapeRendering, TextRendering string

	// Explicit records which properties were set by a declaration,
	// either on this node or on an ancestor whose value it inherited
	// (copyProps carries the bits along with the values), as opposed to
	// still holding an SVG initial value;
	// Important records which of those came from an !important
	// declaration. Both travel with the state so <use> shadow-tree
	// combinators (below) can consult them.
	Explicit  PropSet
	Important PropSet
}

// defaultState is the SVG initial value set.
func defaultState() ComputedState {
	return ComputedState{
		Fill:           Paint{Kind: PaintColorValue, Color: ColorValue{Kind: ColorARGB, ARGB: argb(255, 0, 0, 0)}},
		Stroke:         Paint{Kind: PaintNone},
		FillOpacity:    1,
		StrokeOpacity:  1,
		Opacity:        1,
		StrokeWidth:    Length{Value: 1},
		MiterLimit:     4,
		Cap:            CapButt,
		Join:           JoinMiter,
		FillRule:       FillRuleNonzero,
		ClipRule:       FillRuleNonzero,
		FontFamily:     []string{"sans-serif"},
		FontSize:       Length{Value: 12},
		FontStyle:      "normal",
		FontVariant:    "normal",
		FontWeight:     "normal",
		FontStretch:    "normal",
		TextDirection:  DirLTR,
		TextAnchor:     "start",
		Visible:        true,
		Display:        true,
		CompositingOp:  "src-over",
		CurrentColor:   ColorValue{Kind: ColorARGB, ARGB: argb(255, 0, 0, 0)},
		FloodColor:     ColorValue{Kind: ColorARGB, ARGB: argb(255, 0, 0, 0)},
		FloodOpacity:   1,
		StopColor:      Paint{Kind: PaintColorValue, Color: ColorValue{Kind: ColorARGB, ARGB: argb(255, 0, 0, 0)}},
		StopOpacity:    1,
		XMLSpace:       "default",
		ShapeRendering: "auto",
		TextRendering:  "auto",
	}
}

func has(set PropSet, bit PropSet) bool { return set&bit != 0 }

// reinherit copies each property from src into dst only where dst does
// not already explicitly set it.
func reinherit(dst, src *ComputedState) {
	copyProps(dst, src, src.Explicit&^dst.Explicit)
}

// dominate is reinherit, plus: where both dst and src explicitly set a
// property, src wins.
func dominate(dst, src *ComputedState) {
	copyProps(dst, src, src.Explicit)
}

// override unconditionally copies every explicit property of src into
// dst.
func override(dst, src *ComputedState) {
	copyProps(dst, src, src.Explicit)
}

// inherit copies every property of src into dst. When inheritableOnly
// is true only the SVG-inheritable subset is copied (the normal
// parent->child step of §4.E's 5-step algorithm); when false every
// property is copied, matching the §4.E text "(copy everything
// including uninheritable values)" used when a <use> shadow root needs
// to adopt a referenced subtree's full computed state wholesale.
func inherit(dst, src *ComputedState, inheritableOnly bool) {
	mask := PropSet(^uint64(0))
	if inheritableOnly {
		mask = inheritableProps
	}
	copyProps(dst, src, mask)
	dst.CurrentColor = src.CurrentColor
}

// copyProps copies the fields named by mask from src into dst and
// merges the corresponding Explicit/Important bits.
func copyProps(dst, src *ComputedState, mask PropSet) {
	if has(mask, PropFill) {
		dst.Fill = src.Fill
	}
	if has(mask, PropStroke) {
		dst.Stroke = src.Stroke
	}
	if has(mask, PropFillOpacity) {
		dst.FillOpacity = src.FillOpacity
	}
	if has(mask, PropStrokeOpacity) {
		dst.StrokeOpacity = src.StrokeOpacity
	}
	if has(mask, PropOpacity) {
		dst.Opacity = src.Opacity
	}
	if has(mask, PropStrokeWidth) {
		dst.StrokeWidth = src.StrokeWidth
	}
	if has(mask, PropMiterLimit) {
		dst.MiterLimit = src.MiterLimit
	}
	if has(mask, PropCap) {
		dst.Cap = src.Cap
	}
	if has(mask, PropJoin) {
		dst.Join = src.Join
	}
	if has(mask, PropDash) {
		dst.Dash, dst.DashOffset = src.Dash, src.DashOffset
	}
	if has(mask, PropFillRule) {
		dst.FillRule = src.FillRule
	}
	if has(mask, PropClipRule) {
		dst.ClipRule = src.ClipRule
	}
	if has(mask, PropFontFamily) {
		dst.FontFamily = src.FontFamily
	}
	if has(mask, PropFontSize) {
		dst.FontSize = src.FontSize
	}
	if has(mask, PropFontStyle) {
		dst.FontStyle = src.FontStyle
	}
	if has(mask, PropFontVariant) {
		dst.FontVariant = src.FontVariant
	}
	if has(mask, PropFontWeight) {
		dst.FontWeight = src.FontWeight
	}
	if has(mask, PropFontStretch) {
		dst.FontStretch = src.FontStretch
	}
	if has(mask, PropTextDecoration) {
		dst.TextDecoration = src.TextDecoration
	}
	if has(mask, PropTextDirection) {
		dst.TextDirection = src.TextDirection
	}
	if has(mask, PropTextAnchor) {
		dst.TextAnchor = src.TextAnchor
	}
	if has(mask, PropLetterSpacing) {
		dst.LetterSpacing = src.LetterSpacing
	}
	if has(mask, PropVisibility) {
		dst.Visible = src.Visible
	}
	if has(mask, PropDisplay) {
		dst.Display = src.Display
	}
	if has(mask, PropClipPathRef) {
		dst.ClipPathRef = src.ClipPathRef
	}
	if has(mask, PropMaskRef) {
		dst.MaskRef = src.MaskRef
	}
	if has(mask, PropFilterRef) {
		dst.FilterRef = src.FilterRef
	}
	if has(mask, PropCompositingOp) {
		dst.CompositingOp = src.CompositingOp
	}
	if has(mask, PropEnableBackground) {
		dst.EnableBackgroundNew = src.EnableBackgroundNew
	}
	if has(mask, PropMarkerStart) {
		dst.MarkerStart = src.MarkerStart
	}
	if has(mask, PropMarkerMid) {
		dst.MarkerMid = src.MarkerMid
	}
	if has(mask, PropMarkerEnd) {
		dst.MarkerEnd = src.MarkerEnd
	}
	if has(mask, PropColor) {
		dst.CurrentColor = src.CurrentColor
	}
	if has(mask, PropFloodColor) {
		dst.FloodColor = src.FloodColor
	}
	if has(mask, PropFloodOpacity) {
		dst.FloodOpacity = src.FloodOpacity
	}
	if has(mask, PropStopColor) {
		dst.StopColor = src.StopColor
	}
	if has(mask, PropStopOpacity) {
		dst.StopOpacity = src.StopOpacity
	}
	if has(mask, PropXMLLang) {
		dst.XMLLang = src.XMLLang
	}
	if has(mask, PropXMLSpace) {
		dst.XMLSpace = src.XMLSpace
	}
	if has(mask, PropShapeRendering) {
		dst.ShapeRendering = src.ShapeRendering
	}
	if has(mask, PropTextRendering) {
		dst.TextRendering = src.TextRendering
	}
	dst.Explicit |= mask & src.Explicit
	dst.Important |= mask & src.Important
}

// propertyBit maps a CSS/SVG property name to its PropSet bit, or 0 if
// unrecognized.
func propertyBit(name string) PropSet {
	switch name {
	case "fill":
		return PropFill
	case "stroke":
		return PropStroke
	case "fill-opacity":
		return PropFillOpacity
	case "stroke-opacity":
		return PropStrokeOpacity
	case "opacity":
		return PropOpacity
	case "stroke-width":
		return PropStrokeWidth
	case "stroke-miterlimit":
		return PropMiterLimit
	case "stroke-linecap":
		return PropCap
	case "stroke-linejoin":
		return PropJoin
	case "stroke-dasharray", "stroke-dashoffset":
		return PropDash
	case "fill-rule":
		return PropFillRule
	case "clip-rule":
		return PropClipRule
	case "font-family":
		return PropFontFamily
	case "font-size":
		return PropFontSize
	case "font-style":
		return PropFontStyle
	case "font-variant":
		return PropFontVariant
	case "font-weight":
		return PropFontWeight
	case "font-stretch":
		return PropFontStretch
	case "text-decoration":
		return PropTextDecoration
	case "direction", "writing-mode":
		return PropTextDirection
	case "text-anchor":
		return PropTextAnchor
	case "letter-spacing":
		return PropLetterSpacing
	case "visibility":
		return PropVisibility
	case "display":
		return PropDisplay
	case "clip-path":
		return PropClipPathRef
	case "mask":
		return PropMaskRef
	case "filter":
		return PropFilterRef
	case "mix-blend-mode":
		return PropCompositingOp
	case "enable-background":
		return PropEnableBackground
	case "marker-start":
		return PropMarkerStart
	case "marker-mid":
		return PropMarkerMid
	case "marker-end":
		return PropMarkerEnd
	case "color":
		return PropColor
	case "flood-color":
		return PropFloodColor
	case "flood-opacity":
		return PropFloodOpacity
	case "stop-color":
		return PropStopColor
	case "stop-opacity":
		return PropStopOpacity
	case "shape-rendering":
		return PropShapeRendering
	case "text-rendering":
		return PropTextRendering
	default:
		return 0
	}
}

// applyDeclaration parses value for property prop and, if valid, sets
// the matching field on state along with its Explicit/Important bits.
// Unknown properties and unparsable values are ignored after a single
// diagnostic: accept as much of the document as possible.
func applyDeclaration(state *ComputedState, prop, value string, important bool, diag *diagSink, elementID string) {
	bit := propertyBit(prop)
	if bit == 0 {
		return
	}
	if state.Explicit&bit != 0 && state.Important&bit != 0 && !important {
		return // an !important declaration already won this property
	}

	value = strings.TrimSpace(value)
	ok := true
	switch prop {
	case "fill":
		state.Fill = ParsePaint(value)
	case "stroke":
		state.Stroke = ParsePaint(value)
	case "fill-opacity":
		state.FillOpacity, ok = ParseOpacity(value)
	case "stroke-opacity":
		state.StrokeOpacity, ok = ParseOpacity(value)
	case "opacity":
		state.Opacity, ok = ParseOpacity(value)
	case "stroke-width":
		state.StrokeWidth, ok = ParseLength(value)
	case "stroke-miterlimit":
		ok = parseFloatInto(&state.MiterLimit, value)
	case "stroke-linecap":
		switch value {
		case "butt":
			state.Cap = CapButt
		case "round":
			state.Cap = CapRound
		case "square":
			state.Cap = CapSquare
		default:
			ok = false
		}
	case "stroke-linejoin":
		switch value {
		case "miter":
			state.Join = JoinMiter
		case "round":
			state.Join = JoinRound
		case "bevel":
			state.Join = JoinBevel
		default:
			ok = false
		}
	case "stroke-dasharray":
		state.Dash, ok = ParseDashArray(value)
	case "stroke-dashoffset":
		state.DashOffset, ok = ParseLength(value)
	case "fill-rule":
		state.FillRule, ok = parseFillRule(value)
	case "clip-rule":
		state.ClipRule, ok = parseFillRule(value)
	case "font-family":
		state.FontFamily, ok = ParseFontFamily(value)
	case "font-size":
		state.FontSize, ok = ParseLength(value)
	case "font-style":
		state.FontStyle = value
	case "font-variant":
		state.FontVariant = value
	case "font-weight":
		state.FontWeight = value
	case "font-stretch":
		state.FontStretch = value
	case "text-decoration":
		state.TextDecoration = parseTextDecoration(value)
	case "direction":
		switch value {
		case "rtl":
			state.TextDirection = DirRTL
		default:
			state.TextDirection = DirLTR
		}
	case "writing-mode":
		if strings.HasPrefix(value, "tb") || strings.HasPrefix(value, "vertical") {
			state.TextDirection = DirTTB
		}
	case "text-anchor":
		state.TextAnchor = value
	case "letter-spacing":
		if value == "normal" {
			state.LetterSpacing = Length{}
		} else {
			state.LetterSpacing, ok = ParseLength(value)
		}
	case "visibility":
		switch value {
		case "visible":
			state.Visible = true
		case "hidden", "collapse":
			state.Visible = false
		case "inherit":
			state.Explicit &^= PropVisibility
			bit = 0 // inherit clears the explicit bit; the parent's value stands
		default:
			ok = false
		}
	case "display":
		if value == "inherit" {
			state.Explicit &^= PropDisplay
			bit = 0
		} else {
			state.Display = value != "none"
		}
	case "clip-path":
		state.ClipPathRef = refID(value)
	case "mask":
		state.MaskRef = refID(value)
	case "filter":
		state.FilterRef = refID(value)
	case "mix-blend-mode":
		state.CompositingOp = value
	case "enable-background":
		state.EnableBackgroundNew = strings.HasPrefix(value, "new")
	case "marker-start":
		state.MarkerStart = refID(value)
	case "marker-mid":
		state.MarkerMid = refID(value)
	case "marker-end":
		state.MarkerEnd = refID(value)
	case "color":
		c := ParseColor(value)
		if c.Kind == ColorARGB {
			state.CurrentColor = c
		} else {
			ok = false
		}
	case "flood-color":
		c := ParseColor(value)
		if c.Kind == ColorARGB || c.Kind == ColorCurrentColor {
			state.FloodColor = c
		} else {
			ok = false
		}
	case "flood-opacity":
		state.FloodOpacity, ok = ParseOpacity(value)
	case "stop-color":
		state.StopColor = ParsePaint(value)
	case "stop-opacity":
		state.StopOpacity, ok = ParseOpacity(value)
	case "shape-rendering":
		state.ShapeRendering = value
	case "text-rendering":
		state.TextRendering = value
	}

	if !ok {
		if diag != nil {
			diag.warnOnce(elementID, prop, "invalid value "+strconv.Quote(value))
		}
		return
	}
	if bit == 0 {
		return
	}
	state.Explicit |= bit
	if important {
		state.Important |= bit
	}
}

func parseFloatInto(dst *float64, s string) bool {
	n, ok := ParseNumberList(s)
	if !ok || len(n) != 1 {
		return false
	}
	*dst = n[0]
	return true
}

func parseFillRule(s string) (FillRule, bool) {
	switch s {
	case "nonzero":
		return FillRuleNonzero, true
	case "evenodd":
		return FillRuleEvenOdd, true
	default:
		return FillRuleNonzero, false
	}
}

func parseTextDecoration(s string) int {
	bits := 0
	for _, f := range strings.Fields(s) {
		switch f {
		case "underline":
			bits |= TextDecorUnderline
		case "overline":
			bits |= TextDecorOverline
		case "line-through":
			bits |= TextDecorStrike
		}
	}
	return bits
}

func refID(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "url(") {
		return ""
	}
	end := strings.IndexByte(s, ')')
	if end < 0 {
		return ""
	}
	ref := strings.TrimSpace(s[4:end])
	ref = strings.Trim(ref, `'"`)
	return strings.TrimPrefix(ref, "#")
}

// presentationAttrs lists the node attribute names that double as CSS
// properties.
var presentationAttrs = []string{
	"fill", "stroke", "fill-opacity", "stroke-opacity", "opacity",
	"stroke-width", "stroke-miterlimit", "stroke-linecap", "stroke-linejoin",
	"stroke-dasharray", "stroke-dashoffset", "fill-rule", "clip-rule",
	"font-family", "font-size", "font-style", "font-variant", "font-weight",
	"font-stretch", "text-decoration", "direction", "writing-mode",
	"text-anchor", "letter-spacing", "visibility", "display", "clip-path",
	"mask", "filter", "mix-blend-mode", "enable-background",
	"marker-start", "marker-mid", "marker-end", "color", "flood-color",
	"flood-opacity", "stop-color", "stop-opacity", "shape-rendering",
	"text-rendering",
}

// resolveDocument computes every node's ComputedState in document
// order: defaults, inheritance, presentation attributes, stylesheet
// rules, then inline style, with !important promotions.
func resolveDocument(doc *Document, diag *diagSink) {
	var walk func(idx int, parent *ComputedState)
	walk = func(idx int, parent *ComputedState) {
		n := doc.Node(idx)
		state := defaultState()
		if parent != nil {
			inherit(&state, parent, true)
			// Importance does not travel with inherited values: a
			// child's own declarations beat anything it merely
			// inherited, however the parent came by it.
			state.Important = 0
		}

		// Presentation attributes are the lowest-specificity styling
		// source: any stylesheet rule or inline declaration beats them.
		for _, name := range presentationAttrs {
			if v, ok := n.Attrs[name]; ok {
				applyDeclaration(&state, name, v, false, diag, n.ID)
			}
		}
		for _, d := range matchingDeclarations(doc, doc.Stylesheet, n) {
			applyDeclaration(&state, d.Property, d.Value, d.Important, diag, n.ID)
		}
		for _, d := range ParseDeclarations(n.InlineStyle) {
			applyDeclaration(&state, d.Property, d.Value, d.Important, diag, n.ID)
		}

		n.Computed = &state

		for _, c := range n.Children {
			walk(c, &state)
		}
	}
	if doc.Root >= 0 && len(doc.Nodes) > 0 {
		walk(doc.Root, nil)
	}
}
