package rsvg

import (
	"math"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2/css"

	"github.com/vectorgraphics/rsvg/internal/csstok"
)

// Unit is a CSS/SVG length unit.
type Unit int

const (
	UnitUser Unit = iota
	UnitPx
	UnitPt
	UnitPc
	UnitIn
	UnitCm
	UnitMm
	UnitPercent
	UnitEm
	UnitEx
)

// Length is a (value, unit) pair. em/ex require a font size from the
// active cascaded state; percent is resolved against the viewport or
// bounding-box axis named by the owning attribute.
type Length struct {
	Value float64
	Unit  Unit
}

// Resolve converts l to user-space pixels. dpiAxis is the DPI for the
// relevant axis (x or y), against is the value a percent length is
// relative to, and fontSize is the current font-size in pixels (for
// em/ex). Absolute units scale linearly in DPI.
func (l Length) Resolve(dpiAxis, against, fontSize float64) float64 {
	switch l.Unit {
	case UnitPx, UnitUser:
		return l.Value
	case UnitPt:
		return l.Value * dpiAxis / 72
	case UnitPc:
		return l.Value * dpiAxis / 6
	case UnitIn:
		return l.Value * dpiAxis
	case UnitCm:
		return l.Value * dpiAxis / 2.54
	case UnitMm:
		return l.Value * dpiAxis / 25.4
	case UnitPercent:
		return l.Value / 100 * against
	case UnitEm:
		return l.Value * fontSize
	case UnitEx:
		return l.Value * fontSize * 0.5
	default:
		return l.Value
	}
}

func unitFromSuffix(s string) (Unit, bool) {
	switch strings.ToLower(s) {
	case "":
		return UnitUser, true
	case "px":
		return UnitPx, true
	case "pt":
		return UnitPt, true
	case "pc":
		return UnitPc, true
	case "in":
		return UnitIn, true
	case "cm":
		return UnitCm, true
	case "mm":
		return UnitMm, true
	case "%":
		return UnitPercent, true
	case "em":
		return UnitEm, true
	case "ex":
		return UnitEx, true
	default:
		return UnitUser, false
	}
}

// lengthFromToken converts a single number/dimension/percentage token
// into a Length. Dimension values carry their unit as a suffix of the
// token text; the numeric prefix is snipped off the way the CSS
// tokenizer left it.
func lengthFromToken(t csstok.Token) (Length, bool) {
	switch t.Type {
	case css.NumberToken:
		n, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return Length{}, false
		}
		return Length{Value: n}, true
	case css.PercentageToken:
		n, err := strconv.ParseFloat(strings.TrimSuffix(t.Value, "%"), 64)
		if err != nil {
			return Length{}, false
		}
		return Length{Value: n, Unit: UnitPercent}, true
	case css.DimensionToken:
		v, suffix := t.Value, ""
		for i := len(v) - 1; i >= 0; i-- {
			if c := v[i]; c >= '0' && c <= '9' {
				v, suffix = v[:i+1], v[i+1:]
				break
			}
		}
		unit, ok := unitFromSuffix(suffix)
		if !ok {
			return Length{}, false
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Length{}, false
		}
		return Length{Value: n, Unit: unit}, true
	default:
		return Length{}, false
	}
}

// ParseLength reads a signed decimal followed by an optional unit;
// a missing unit is user units. Malformed input returns ok=false so
// the caller can fall back to its documented default.
func ParseLength(s string) (Length, bool) {
	tokens, err := csstok.TokenizeNonWS(s)
	if err != nil || len(tokens) != 1 {
		return Length{}, false
	}
	return lengthFromToken(tokens[0])
}

// ParseOpacity parses an SVG/CSS opacity value: a decimal, optionally
// followed by '%' (divide by 100), clamped to [0,1].
func ParseOpacity(s string) (float64, bool) {
	tokens, err := csstok.TokenizeNonWS(s)
	if err != nil || len(tokens) != 1 {
		return 0, false
	}

	var n float64
	switch tokens[0].Type {
	case css.NumberToken:
		v, err := strconv.ParseFloat(tokens[0].Value, 64)
		if err != nil {
			return 0, false
		}
		n = v
	case css.PercentageToken:
		v, err := strconv.ParseFloat(strings.TrimSuffix(tokens[0].Value, "%"), 64)
		if err != nil {
			return 0, false
		}
		n = v / 100
	default:
		return 0, false
	}

	if n < 0 {
		n = 0
	}
	if n > 1 {
		n = 1
	}
	return n, true
}

// QuantizeOpacity maps an opacity in [0,1] to an 8-bit alpha with
// round-half-up.
func QuantizeOpacity(o float64) uint8 {
	if o <= 0 {
		return 0
	}
	if o >= 1 {
		return 255
	}
	return uint8(o*255 + 0.5)
}

// ColorKind tags the sum type a color attribute parses to.
type ColorKind int

const (
	ColorARGB ColorKind = iota
	ColorCurrentColor
	ColorInherit
	ColorParseError
)

// ColorValue is the parsed form of a color attribute.
type ColorValue struct {
	Kind ColorKind
	ARGB uint32 // 0xAARRGGBB, valid when Kind == ColorARGB
}

func argb(a, r, g, b uint8) uint32 {
	return uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// cssColors is the 16-entry CSS1 color-name table.
var cssColors = map[string]uint32{
	"black":   argb(255, 0, 0, 0),
	"silver":  argb(255, 192, 192, 192),
	"gray":    argb(255, 128, 128, 128),
	"white":   argb(255, 255, 255, 255),
	"maroon":  argb(255, 128, 0, 0),
	"red":     argb(255, 255, 0, 0),
	"purple":  argb(255, 128, 0, 128),
	"fuchsia": argb(255, 255, 0, 255),
	"green":   argb(255, 0, 128, 0),
	"lime":    argb(255, 0, 255, 0),
	"olive":   argb(255, 128, 128, 0),
	"yellow":  argb(255, 255, 255, 0),
	"navy":    argb(255, 0, 0, 128),
	"blue":    argb(255, 0, 0, 255),
	"teal":    argb(255, 0, 128, 128),
	"aqua":    argb(255, 0, 255, 255),
}

func clampPercentByte(f float64) uint8 {
	if f < 0 {
		f = 0
	}
	if f > 100 {
		f = 100
	}
	return uint8(f / 100 * 255)
}

// ParseColor parses #rgb, #rrggbb, rgb(...), rgb(...%), the 16-entry
// named-color table, "inherit", and "currentColor".
func ParseColor(s string) ColorValue {
	tokens, err := csstok.TokenizeNonWS(s)
	if err != nil || len(tokens) == 0 {
		return ColorValue{Kind: ColorParseError}
	}
	return colorFromTokens(tokens)
}

func colorFromTokens(tokens []csstok.Token) ColorValue {
	if tokens[0].Type == css.FunctionToken {
		return parseRGBFunction(tokens)
	}
	if len(tokens) != 1 {
		return ColorValue{Kind: ColorParseError}
	}

	switch tokens[0].Type {
	case css.IdentToken:
		ident := tokens[0].Value
		switch strings.ToLower(ident) {
		case "inherit":
			return ColorValue{Kind: ColorInherit}
		case "currentcolor":
			return ColorValue{Kind: ColorCurrentColor}
		}
		if v, ok := cssColors[strings.ToLower(ident)]; ok {
			return ColorValue{Kind: ColorARGB, ARGB: v}
		}
		return ColorValue{Kind: ColorParseError}
	case css.HashToken:
		return parseHexColor(strings.TrimPrefix(tokens[0].Value, "#"))
	default:
		return ColorValue{Kind: ColorParseError}
	}
}

func parseHexColor(hex string) ColorValue {
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
		// ok
	default:
		return ColorValue{Kind: ColorParseError}
	}
	var r, g, b uint64
	var err error
	if r, err = parseHexByte(hex[0:2]); err != nil {
		return ColorValue{Kind: ColorParseError}
	}
	if g, err = parseHexByte(hex[2:4]); err != nil {
		return ColorValue{Kind: ColorParseError}
	}
	if b, err = parseHexByte(hex[4:6]); err != nil {
		return ColorValue{Kind: ColorParseError}
	}
	return ColorValue{Kind: ColorARGB, ARGB: argb(255, uint8(r), uint8(g), uint8(b))}
}

func parseHexByte(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 8)
}

// parseRGBFunction consumes an rgb(/rgba( function-token argument list:
// numbers clamp to [0,255], percentages to [0,100] before scaling, and
// an rgba alpha quantizes like any other opacity.
func parseRGBFunction(tokens []csstok.Token) ColorValue {
	fn := strings.ToLower(tokens[0].Value)
	var arity int
	switch fn {
	case "rgb(":
		arity = 3
	case "rgba(":
		arity = 4
	default:
		return ColorValue{Kind: ColorParseError}
	}
	tokens = tokens[1:]

	args := make([]float64, 0, arity)
	percents := make([]bool, 0, arity)
	for {
		if len(tokens) == 0 {
			return ColorValue{Kind: ColorParseError}
		}
		switch tokens[0].Type {
		case css.NumberToken:
			n, err := strconv.ParseFloat(tokens[0].Value, 64)
			if err != nil {
				return ColorValue{Kind: ColorParseError}
			}
			args, percents = append(args, n), append(percents, false)
		case css.PercentageToken:
			n, err := strconv.ParseFloat(strings.TrimSuffix(tokens[0].Value, "%"), 64)
			if err != nil {
				return ColorValue{Kind: ColorParseError}
			}
			args, percents = append(args, n), append(percents, true)
		default:
			return ColorValue{Kind: ColorParseError}
		}
		tokens = tokens[1:]

		if len(tokens) == 0 {
			return ColorValue{Kind: ColorParseError}
		}
		if tokens[0].Type == css.RightParenthesisToken {
			tokens = tokens[1:]
			break
		}
		if tokens[0].Type != css.CommaToken {
			return ColorValue{Kind: ColorParseError}
		}
		tokens = tokens[1:]
	}
	if len(tokens) != 0 || len(args) != arity {
		return ColorValue{Kind: ColorParseError}
	}

	comp := func(i int) uint8 {
		if percents[i] {
			return clampPercentByte(args[i])
		}
		n := args[i]
		if n < 0 {
			n = 0
		}
		if n > 255 {
			n = 255
		}
		return uint8(n)
	}

	a := uint8(255)
	if arity == 4 {
		a = QuantizeOpacity(args[3])
	}
	return ColorValue{Kind: ColorARGB, ARGB: argb(a, comp(0), comp(1), comp(2))}
}

// PaintKind tags a paint specification.
type PaintKind int

const (
	PaintNone PaintKind = iota
	PaintCurrentColor
	PaintColorValue
	PaintServerRef
	PaintInherit
)

// Paint is a fill or stroke paint specification: none | currentColor |
// a solid color | a url(#id) paint-server reference with an optional
// fallback color.
type Paint struct {
	Kind     PaintKind
	Color    ColorValue
	ServerID string
	Fallback *ColorValue
}

// ParsePaint parses a fill/stroke attribute value.
func ParsePaint(s string) Paint {
	tokens, err := csstok.TokenizeNonWS(s)
	if err != nil || len(tokens) == 0 {
		return Paint{Kind: PaintNone}
	}

	if tokens[0].Type == css.URLToken {
		p := Paint{Kind: PaintServerRef, ServerID: urlTokenFragment(tokens[0].Value)}
		tokens = tokens[1:]
		if len(tokens) == 0 {
			return p
		}
		if tokens[0].Type == css.IdentToken && strings.EqualFold(tokens[0].Value, "none") {
			c := ColorValue{Kind: ColorARGB, ARGB: 0}
			p.Fallback = &c
			return p
		}
		if c := colorFromTokens(tokens); c.Kind != ColorParseError {
			p.Fallback = &c
		}
		return p
	}

	if tokens[0].Type == css.IdentToken && len(tokens) == 1 {
		switch strings.ToLower(tokens[0].Value) {
		case "none":
			return Paint{Kind: PaintNone}
		case "currentcolor":
			return Paint{Kind: PaintCurrentColor}
		case "inherit":
			return Paint{Kind: PaintInherit}
		}
	}

	c := colorFromTokens(tokens)
	if c.Kind == ColorParseError {
		return Paint{Kind: PaintNone}
	}
	if c.Kind == ColorCurrentColor {
		return Paint{Kind: PaintCurrentColor}
	}
	if c.Kind == ColorInherit {
		return Paint{Kind: PaintInherit}
	}
	return Paint{Kind: PaintColorValue, Color: c}
}

// urlTokenFragment unwraps a url(...) token's target down to the bare
// fragment id: quotes and the leading '#' are shed.
func urlTokenFragment(v string) string {
	v = strings.TrimPrefix(v, "url(")
	v = strings.TrimSuffix(v, ")")
	v = strings.Trim(strings.TrimSpace(v), `'"`)
	return strings.TrimPrefix(v, "#")
}

// DashArray is a parsed stroke-dasharray: an odd-length list is
// duplicated per SVG, and an all-zero list degrades to "none".
type DashArray struct {
	Lengths []Length
	None    bool
}

// ParseDashArray parses a comma-or-whitespace separated list of
// lengths.
func ParseDashArray(s string) (DashArray, bool) {
	tokens, err := csstok.TokenizeNonWS(s)
	if err != nil {
		return DashArray{}, false
	}
	if len(tokens) == 0 {
		return DashArray{None: true}, true
	}
	if len(tokens) == 1 && tokens[0].Type == css.IdentToken && strings.EqualFold(tokens[0].Value, "none") {
		return DashArray{None: true}, true
	}

	lengths := make([]Length, 0, len(tokens))
	allZero := true
	for _, t := range tokens {
		if t.Type == css.CommaToken {
			continue
		}
		l, ok := lengthFromToken(t)
		if !ok {
			return DashArray{}, false
		}
		if l.Value != 0 {
			allZero = false
		}
		lengths = append(lengths, l)
	}
	if len(lengths) == 0 {
		return DashArray{None: true}, true
	}
	if len(lengths)%2 == 1 {
		lengths = append(lengths, lengths...)
	}
	if allZero {
		return DashArray{None: true}, true
	}
	return DashArray{Lengths: lengths}, true
}

// splitListValues splits on commas and/or runs of whitespace, as SVG's
// length-list grammar (x/y/dx/dy attribute lists) requires.
func splitListValues(s string) []string {
	var fields []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return fields
}

// ParseNumberList parses a comma-or-whitespace separated list of
// floats, accepting either an exact or bounded length depending on the
// caller's validation.
func ParseNumberList(s string) ([]float64, bool) {
	tokens, err := csstok.TokenizeNonWS(s)
	if err != nil {
		return nil, false
	}
	out := make([]float64, 0, len(tokens))
	for _, t := range tokens {
		switch t.Type {
		case css.CommaToken:
			continue
		case css.NumberToken:
			n, err := strconv.ParseFloat(t.Value, 64)
			if err != nil {
				return nil, false
			}
			out = append(out, n)
		default:
			return nil, false
		}
	}
	return out, true
}

// ParseFontFamily parses a font-family list: comma-separated quoted
// strings or bare identifier runs.
func ParseFontFamily(s string) ([]string, bool) {
	tokens, err := csstok.TokenizeNonWS(s)
	if err != nil {
		return nil, false
	}

	var values []string
	for len(tokens) > 0 {
		switch tokens[0].Type {
		case css.StringToken:
			v := strings.Trim(tokens[0].Value, `'"`)
			values = append(values, v)
			tokens = tokens[1:]
		case css.IdentToken:
			var b strings.Builder
			for len(tokens) > 0 && tokens[0].Type != css.CommaToken {
				if tokens[0].Type != css.IdentToken {
					return nil, false
				}
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(tokens[0].Value)
				tokens = tokens[1:]
			}
			values = append(values, b.String())
		default:
			return nil, false
		}

		if len(tokens) == 0 {
			break
		}
		if tokens[0].Type != css.CommaToken {
			return nil, false
		}
		tokens = tokens[1:]
	}
	return values, true
}

// transformOp is one parsed "keyword(args)" term of a transform list.
type transformOp struct {
	kind string
	args []float64
}

// ParseTransform parses a whitespace-insensitive sequence of
// matrix/translate/scale/rotate/skewX/skewY terms and composes them by
// right-multiplication in source order. Malformed input
// yields the identity matrix.
func ParseTransform(s string) Matrix {
	ops, ok := parseTransformOps(s)
	if !ok {
		return Identity
	}

	m := Identity
	for _, op := range ops {
		var term Matrix
		switch op.kind {
		case "matrix":
			if len(op.args) != 6 {
				return Identity
			}
			a := op.args
			term = Matrix{A: a[0], B: a[1], C: a[2], D: a[3], E: a[4], F: a[5]}
		case "translate":
			switch len(op.args) {
			case 1:
				term = translate(op.args[0], 0)
			case 2:
				term = translate(op.args[0], op.args[1])
			default:
				return Identity
			}
		case "scale":
			switch len(op.args) {
			case 1:
				term = scale(op.args[0], op.args[0])
			case 2:
				term = scale(op.args[0], op.args[1])
			default:
				return Identity
			}
		case "rotate":
			switch len(op.args) {
			case 1:
				term = rotateMatrix(op.args[0])
			case 3:
				cx, cy := op.args[1], op.args[2]
				term = translate(cx, cy).Mul(rotateMatrix(op.args[0])).Mul(translate(-cx, -cy))
			default:
				return Identity
			}
		case "skewx":
			if len(op.args) != 1 {
				return Identity
			}
			term = Matrix{A: 1, D: 1, C: math.Tan(op.args[0] * math.Pi / 180)}
		case "skewy":
			if len(op.args) != 1 {
				return Identity
			}
			term = Matrix{A: 1, D: 1, B: math.Tan(op.args[0] * math.Pi / 180)}
		default:
			return Identity
		}
		// Source order composes on the right: "A B" yields A·B, so B
		// transforms a point first and A second.
		m = m.Mul(term)
	}
	return m
}

func rotateMatrix(deg float64) Matrix {
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	return Matrix{A: cos, B: sin, C: -sin, D: cos}
}

// parseTransformOps tokenizes a transform list into function-call
// terms: each op is a function token followed by numbers (with
// optional comma separators) and a closing parenthesis; ops themselves
// may be comma-separated.
func parseTransformOps(s string) ([]transformOp, bool) {
	tokens, err := csstok.TokenizeNonWS(s)
	if err != nil {
		return nil, false
	}

	var ops []transformOp
	for len(tokens) > 0 {
		if tokens[0].Type == css.CommaToken {
			tokens = tokens[1:]
			continue
		}
		if tokens[0].Type != css.FunctionToken {
			return nil, false
		}
		op := transformOp{kind: strings.ToLower(strings.TrimSuffix(tokens[0].Value, "("))}
		tokens = tokens[1:]

		closed := false
		for len(tokens) > 0 {
			t := tokens[0]
			tokens = tokens[1:]
			if t.Type == css.RightParenthesisToken {
				closed = true
				break
			}
			switch t.Type {
			case css.CommaToken:
				continue
			case css.NumberToken:
				n, err := strconv.ParseFloat(t.Value, 64)
				if err != nil {
					return nil, false
				}
				op.args = append(op.args, n)
			default:
				return nil, false
			}
		}
		if !closed {
			return nil, false
		}
		ops = append(ops, op)
	}
	return ops, true
}
