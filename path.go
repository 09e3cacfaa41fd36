package rsvg

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// SegmentKind tags one entry of a parsed path.
type SegmentKind int

const (
	SegMoveTo SegmentKind = iota
	SegLineTo
	SegCubicTo
	SegQuadTo
	SegArc
	SegClose
)

// Segment is one command of a resolved path: S/s and T/t reflection and
// relative-coordinate accumulation have already been applied, so a
// renderer can walk Segments without tracking parser state.
type Segment struct {
	Kind SegmentKind

	X, Y float64 // endpoint, for every kind except Close

	X1, Y1 float64 // first control point (CubicTo), or the only control point (QuadTo)
	X2, Y2 float64 // second control point (CubicTo)

	Rx, Ry, XAxisRotation float64
	LargeArc, Sweep       bool

	NewSubpath bool // true on the MoveTo that starts each subpath
}

// Point is a single (x, y) user-space coordinate, used for the vertex
// lists of polyline/polygon and other plain coordinate pairs.
type Point struct {
	X, Y float64
}

// Path is the parsed form of an SVG "d" attribute.
type Path struct {
	Segments []Segment
	// Warning is set when the source had a syntax error; Segments
	// holds the longest valid prefix parsed before the error.
	Warning bool
}

// ParsePath parses SVG path-data grammar (M/m L/l H/h V/v C/c S/s Q/q
// T/t A/a Z/z), reflecting S/T control points and resolving relative
// commands against the running current point so the result needs no
// parser state to replay.
func ParsePath(d string) Path {
	p := pathParser{r: bufio.NewReader(strings.NewReader(d))}
	p.run()
	return Path{Segments: p.segs, Warning: p.warn}
}

type pathParser struct {
	r    *bufio.Reader
	segs []Segment
	warn bool

	x, y             float64 // current point
	subStartX, subY  float64
	haveCubicCtl     bool
	lastCubicCtlX    float64
	lastCubicCtlY    float64
	haveQuadCtl      bool
	lastQuadCtlX     float64
	lastQuadCtlY     float64
	lastWasCubicKind bool
	lastWasQuadKind  bool
}

func (p *pathParser) fail() {
	p.warn = true
}

func (p *pathParser) run() {
	skipWhitespaceCommas(p.r)
	first := true
	for {
		b, err := p.r.ReadByte()
		if err == io.EOF {
			return
		}
		if err != nil {
			p.fail()
			return
		}

		switch b {
		case 'Z', 'z':
			p.segs = append(p.segs, Segment{Kind: SegClose, X: p.subStartX, Y: p.subY})
			p.x, p.y = p.subStartX, p.subY
			p.resetReflection()
			skipWhitespaceCommas(p.r)
			first = false
			continue
		}

		skipWhitespace(p.r)
		abs := b >= 'A' && b <= 'Z'
		var ok bool
		switch b {
		case 'M', 'm':
			ok = p.moveTo(abs)
		case 'L', 'l':
			ok = p.lineTo(abs)
		case 'H', 'h':
			ok = p.lineAxis(abs, true)
		case 'V', 'v':
			ok = p.lineAxis(abs, false)
		case 'C', 'c':
			ok = p.cubic(abs, false)
		case 'S', 's':
			ok = p.cubic(abs, true)
		case 'Q', 'q':
			ok = p.quad(abs, false)
		case 'T', 't':
			ok = p.quad(abs, true)
		case 'A', 'a':
			ok = p.arc(abs)
		default:
			if first {
				p.fail()
				return
			}
			p.fail()
			return
		}
		if !ok {
			p.fail()
			return
		}
		first = false
		skipWhitespaceCommas(p.r)
	}
}

func (p *pathParser) resetReflection() {
	p.haveCubicCtl, p.haveQuadCtl = false, false
}

func (p *pathParser) moveTo(abs bool) bool {
	x, y, ok := readCoordPair(p.r)
	if !ok {
		return false
	}
	if abs {
		p.x, p.y = x, y
	} else {
		p.x, p.y = p.x+x, p.y+y
	}
	p.subStartX, p.subY = p.x, p.y
	p.segs = append(p.segs, Segment{Kind: SegMoveTo, X: p.x, Y: p.y, NewSubpath: true})
	p.resetReflection()

	// Repeated coordinate pairs after M/m are implicit LineTo.
	for moreCoordinatesFollow(p.r) {
		x, y, ok := readCoordPair(p.r)
		if !ok {
			return false
		}
		if abs {
			p.x, p.y = x, y
		} else {
			p.x, p.y = p.x+x, p.y+y
		}
		p.segs = append(p.segs, Segment{Kind: SegLineTo, X: p.x, Y: p.y})
	}
	return true
}

func (p *pathParser) lineTo(abs bool) bool {
	for {
		x, y, ok := readCoordPair(p.r)
		if !ok {
			return false
		}
		if abs {
			p.x, p.y = x, y
		} else {
			p.x, p.y = p.x+x, p.y+y
		}
		p.segs = append(p.segs, Segment{Kind: SegLineTo, X: p.x, Y: p.y})
		p.resetReflection()
		if !moreCoordinatesFollow(p.r) {
			return true
		}
	}
}

func (p *pathParser) lineAxis(abs, horiz bool) bool {
	for {
		v, ok := readCoordinate(p.r)
		if !ok {
			return false
		}
		if horiz {
			if abs {
				p.x = v
			} else {
				p.x += v
			}
		} else {
			if abs {
				p.y = v
			} else {
				p.y += v
			}
		}
		p.segs = append(p.segs, Segment{Kind: SegLineTo, X: p.x, Y: p.y})
		p.resetReflection()
		if !moreCoordinatesFollow(p.r) {
			return true
		}
	}
}

func (p *pathParser) cubic(abs, smooth bool) bool {
	for {
		var x1, y1 float64
		if smooth {
			if p.haveCubicCtl {
				x1, y1 = 2*p.x-p.lastCubicCtlX, 2*p.y-p.lastCubicCtlY
			} else {
				x1, y1 = p.x, p.y
			}
		} else {
			rx1, ry1, ok := readCoordPair(p.r)
			if !ok {
				return false
			}
			if abs {
				x1, y1 = rx1, ry1
			} else {
				x1, y1 = p.x+rx1, p.y+ry1
			}
		}

		rx2, ry2, ok := readCoordPair(p.r)
		if !ok {
			return false
		}
		var x2, y2 float64
		if abs {
			x2, y2 = rx2, ry2
		} else {
			x2, y2 = p.x+rx2, p.y+ry2
		}

		ex, ey, ok := readCoordPair(p.r)
		if !ok {
			return false
		}
		var fx, fy float64
		if abs {
			fx, fy = ex, ey
		} else {
			fx, fy = p.x+ex, p.y+ey
		}

		p.segs = append(p.segs, Segment{Kind: SegCubicTo, X1: x1, Y1: y1, X2: x2, Y2: y2, X: fx, Y: fy})
		p.x, p.y = fx, fy
		p.haveCubicCtl, p.lastCubicCtlX, p.lastCubicCtlY = true, x2, y2
		p.haveQuadCtl = false

		if !moreCoordinatesFollow(p.r) {
			return true
		}
	}
}

func (p *pathParser) quad(abs, smooth bool) bool {
	for {
		var x1, y1 float64
		if smooth {
			if p.haveQuadCtl {
				x1, y1 = 2*p.x-p.lastQuadCtlX, 2*p.y-p.lastQuadCtlY
			} else {
				x1, y1 = p.x, p.y
			}
		} else {
			rx1, ry1, ok := readCoordPair(p.r)
			if !ok {
				return false
			}
			if abs {
				x1, y1 = rx1, ry1
			} else {
				x1, y1 = p.x+rx1, p.y+ry1
			}
		}

		ex, ey, ok := readCoordPair(p.r)
		if !ok {
			return false
		}
		var fx, fy float64
		if abs {
			fx, fy = ex, ey
		} else {
			fx, fy = p.x+ex, p.y+ey
		}

		p.segs = append(p.segs, Segment{Kind: SegQuadTo, X1: x1, Y1: y1, X: fx, Y: fy})
		p.x, p.y = fx, fy
		p.haveQuadCtl, p.lastQuadCtlX, p.lastQuadCtlY = true, x1, y1
		p.haveCubicCtl = false

		if !moreCoordinatesFollow(p.r) {
			return true
		}
	}
}

func (p *pathParser) arc(abs bool) bool {
	for {
		rx, ry, ok := readCoordPair(p.r)
		if !ok {
			return false
		}
		rot, ok := readCoordinate(p.r)
		if !ok {
			return false
		}
		large, ok := readFlag(p.r)
		if !ok {
			return false
		}
		sweep, ok := readFlag(p.r)
		if !ok {
			return false
		}
		ex, ey, ok := readCoordPair(p.r)
		if !ok {
			return false
		}
		var fx, fy float64
		if abs {
			fx, fy = ex, ey
		} else {
			fx, fy = p.x+ex, p.y+ey
		}

		p.segs = append(p.segs, Segment{
			Kind: SegArc, X: fx, Y: fy,
			Rx: rx, Ry: ry, XAxisRotation: rot,
			LargeArc: large, Sweep: sweep,
		})
		p.x, p.y = fx, fy
		p.resetReflection()

		if !moreCoordinatesFollow(p.r) {
			return true
		}
	}
}

func isPathWS(b byte) bool {
	switch b {
	case 0x09, 0x0a, 0x0c, 0x0d, 0x20:
		return true
	}
	return false
}

func skipWhitespace(r *bufio.Reader) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		if !isPathWS(b) {
			r.UnreadByte()
			return
		}
	}
}

func skipWhitespaceCommas(r *bufio.Reader) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		if !isPathWS(b) && b != ',' {
			r.UnreadByte()
			return
		}
	}
}

func moreCoordinatesFollow(r *bufio.Reader) bool {
	skipWhitespaceCommas(r)
	b, err := r.ReadByte()
	if err != nil {
		return false
	}
	r.UnreadByte()
	return b == '-' || b == '+' || b == '.' || (b >= '0' && b <= '9')
}

func readCoordinate(r *bufio.Reader) (float64, bool) {
	skipWhitespaceCommas(r)
	var b strings.Builder
	sign, err := r.ReadByte()
	if err != nil {
		return 0, false
	}
	if sign == '+' || sign == '-' {
		b.WriteByte(sign)
	} else {
		r.UnreadByte()
	}

	sawDigit := false
	for {
		c, err := r.ReadByte()
		if err != nil {
			break
		}
		if c >= '0' && c <= '9' {
			sawDigit = true
			b.WriteByte(c)
			continue
		}
		if c == '.' {
			b.WriteByte(c)
			continue
		}
		if (c == 'e' || c == 'E') && sawDigit {
			b.WriteByte(c)
			continue
		}
		if (c == '+' || c == '-') && b.Len() > 0 {
			last := b.String()[b.Len()-1]
			if last == 'e' || last == 'E' {
				b.WriteByte(c)
				continue
			}
		}
		r.UnreadByte()
		break
	}
	if !sawDigit {
		return 0, false
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func readCoordPair(r *bufio.Reader) (float64, float64, bool) {
	x, ok := readCoordinate(r)
	if !ok {
		return 0, 0, false
	}
	skipWhitespaceCommas(r)
	y, ok := readCoordinate(r)
	if !ok {
		return 0, 0, false
	}
	return x, y, true
}

func readFlag(r *bufio.Reader) (bool, bool) {
	skipWhitespaceCommas(r)
	b, err := r.ReadByte()
	if err != nil {
		return false, false
	}
	switch b {
	case '0':
		return false, true
	case '1':
		return true, true
	default:
		return false, false
	}
}
