package rsvg

// Kind is the closed tagged variant of element kinds. Unrecognized tags
// become KindUnknown inert containers that still retain their children;
// elements in a foreign namespace are dropped by the loader together
// with their content.
type Kind int

const (
	KindUnknown Kind = iota
	KindSVG
	KindG
	KindDefs
	KindSymbol
	KindUse
	KindSwitch
	KindPath
	KindRect
	KindCircle
	KindEllipse
	KindLine
	KindPolyline
	KindPolygon
	KindText
	KindTSpan
	KindTRef
	KindImage
	KindLinearGradient
	KindRadialGradient
	KindPattern
	KindStop
	KindClipPath
	KindMask
	KindMarker
	KindFilter
	KindFilterPrimitive
	KindStyle
	KindTitle
	KindDesc
	KindMetadata
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindSVG:             "svg",
	KindG:               "g",
	KindDefs:            "defs",
	KindSymbol:          "symbol",
	KindUse:             "use",
	KindSwitch:          "switch",
	KindPath:            "path",
	KindRect:            "rect",
	KindCircle:          "circle",
	KindEllipse:         "ellipse",
	KindLine:            "line",
	KindPolyline:        "polyline",
	KindPolygon:         "polygon",
	KindText:            "text",
	KindTSpan:           "tspan",
	KindTRef:            "tref",
	KindImage:           "image",
	KindLinearGradient:  "linearGradient",
	KindRadialGradient:  "radialGradient",
	KindPattern:         "pattern",
	KindStop:            "stop",
	KindClipPath:        "clipPath",
	KindMask:            "mask",
	KindMarker:          "marker",
	KindFilter:          "filter",
	KindFilterPrimitive: "filter-primitive",
	KindStyle:           "style",
	KindTitle:           "title",
	KindDesc:            "desc",
	KindMetadata:        "metadata",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

var tagToKind = map[string]Kind{
	"svg":            KindSVG,
	"g":              KindG,
	"a":              KindG, // hyperlink container behaves as a group for rendering purposes
	"defs":           KindDefs,
	"symbol":         KindSymbol,
	"use":            KindUse,
	"switch":         KindSwitch,
	"path":           KindPath,
	"rect":           KindRect,
	"circle":         KindCircle,
	"ellipse":        KindEllipse,
	"line":           KindLine,
	"polyline":       KindPolyline,
	"polygon":        KindPolygon,
	"text":           KindText,
	"tspan":          KindTSpan,
	"tref":           KindTRef,
	"image":          KindImage,
	"linearGradient": KindLinearGradient,
	"radialGradient": KindRadialGradient,
	"pattern":        KindPattern,
	"stop":           KindStop,
	"clipPath":       KindClipPath,
	"mask":           KindMask,
	"marker":         KindMarker,
	"filter":         KindFilter,
	"style":          KindStyle,
	"title":          KindTitle,
	"desc":           KindDesc,
	"metadata":       KindMetadata,
}

func kindForTag(tag string) Kind {
	if k, ok := tagToKind[tag]; ok {
		return k
	}
	if len(tag) > 2 && tag[:2] == "fe" && tag[2] >= 'A' && tag[2] <= 'Z' {
		return KindFilterPrimitive
	}
	return KindUnknown
}

// ViewBox is the source rectangle of an <svg>/<symbol>/<pattern>/
// <marker>, mapped onto its viewport via PreserveAspectRatio.
type ViewBox struct {
	X, Y, W, H float64
}

// PreserveAspectRatio is the parsed form of the preserveAspectRatio
// attribute.
type PreserveAspectRatio struct {
	Align string // "none" or one of the 9 xMin/Mid/Max Y combinations
	Slice bool   // true = "slice", false = "meet" (the default)
}

// DefaultPAR is preserveAspectRatio's initial value: "xMidYMid meet".
var DefaultPAR = PreserveAspectRatio{Align: "xMidYMid"}

// Stop is one parsed <stop> child of a gradient.
type Stop struct {
	Offset  float64
	Color   Paint
	Opacity float64
}

// GradientData holds the fields common to <linearGradient> and
// <radialGradient>, plus the axis-specific ones.
type GradientData struct {
	Radial bool

	ObjectBoundingBox bool // gradientUnits; false = userSpaceOnUse
	Transform         Matrix
	HasTransform      bool
	Spread            string // "pad" (default), "reflect", "repeat"
	Href              string // xlink:href chain for stop/attribute inheritance

	X1, Y1, X2, Y2             Length // linearGradient
	HasX1, HasY1, HasX2, HasY2 bool

	Cx, Cy, R, Fx, Fy, Fr            Length // radialGradient
	HasCx, HasCy, HasR, HasFx, HasFy bool

	Stops []Stop
}

// PatternData holds <pattern> attributes.
type PatternData struct {
	ObjectBoundingBox        bool
	ContentObjectBoundingBox bool
	Transform                Matrix
	HasTransform             bool
	X, Y, Width, Height      Length
	ViewBox                  *ViewBox
	PAR                      PreserveAspectRatio
	Href                     string
}

// MarkerData holds <marker> attributes.
type MarkerData struct {
	RefX, RefY                Length
	MarkerWidth, MarkerHeight Length
	StrokeWidthUnits          bool // markerUnits == "strokeWidth" (default)
	Orient                    string
	OrientAngle               float64
	OrientAuto                bool
	OrientAutoStartReverse    bool
	ViewBox                   *ViewBox
	PAR                       PreserveAspectRatio
}

// UseData holds <use> attributes.
type UseData struct {
	Href                string
	X, Y                Length
	Width, Height       Length
	HasWidth, HasHeight bool
}

// ImageData holds <image> attributes. Href is the raw xlink:href/href
// source text; Data/MIME are filled in by resolveImages (acquire.go) once
// the Acquirer has fetched (or decoded, for data: URIs) the referenced
// bytes — render.go never interprets Href itself.
type ImageData struct {
	Href                string
	Data                []byte
	MIME                string
	X, Y, Width, Height Length
	PAR                 PreserveAspectRatio
}

// FilterData holds <filter> region attributes; the primitive graph
// itself is represented by the node's FilterPrimitive children walked
// at render time.
type FilterData struct {
	ObjectBoundingBox          bool
	PrimitiveObjectBoundingBox bool
	X, Y, Width, Height        Length
	HasRegion                  bool
}

// MaskData holds <mask> attributes.
type MaskData struct {
	ObjectBoundingBox        bool
	ContentObjectBoundingBox bool
	X, Y, Width, Height      Length
	HasRegion                bool
}

// ClipPathData holds <clipPath> attributes.
type ClipPathData struct {
	ObjectBoundingBox bool
}

// TextPosition holds the x/y/dx/dy/rotate lists of a <text>/<tspan>.
type TextPosition struct {
	X, Y, Dx, Dy []Length
	Rotate       []float64
}

// Node is one element of the document tree. Nodes live in a
// Document's arena and are addressed by Index; Parent/Children are
// indices rather than pointers so the tree can be built, and
// <use>-expanded, without creating reference cycles.
type Node struct {
	Index int
	Kind  Kind
	Tag   string // raw tag name, used for CSS type-selector matching and KindUnknown passthrough

	ID    string
	Class []string

	// Attrs holds every attribute's raw source text, keyed by local
	// name, so presentation-attribute cascade
	// can re-read anything not eagerly decoded below.
	Attrs map[string]string

	InlineStyle string // style="…" source text
	XMLSpace    string // "default" or "preserve", resolved at parse time

	Transform    Matrix
	HasTransform bool

	Parent   int
	Children []int

	ViewBox *ViewBox // <svg>/<symbol>
	PAR     PreserveAspectRatio

	PathData *Path
	Shape    *ShapeData
	Gradient *GradientData
	Pattern  *PatternData
	Marker   *MarkerData
	Use      *UseData
	Image    *ImageData
	Filter   *FilterData
	Mask     *MaskData
	ClipPath *ClipPathData

	TextPos  TextPosition
	CharData string // accumulated character data for text/tspan/style/title/desc/metadata

	RequiredFeatures   []string
	RequiredExtensions []string
	SystemLanguage     []string

	Computed *ComputedState

	Warning bool
}

// ShapeData holds the geometric attributes of rect/circle/ellipse/
// line/polyline/polygon.
type ShapeData struct {
	X, Y, Width, Height Length
	Rx, Ry              Length
	HasRx, HasRy        bool

	Cx, Cy, R Length

	X1, Y1, X2, Y2 Length

	Points []Point
}

// Document is the parsed, rooted element tree, plus the indices id
// lookup and definition resolution need.
type Document struct {
	Nodes []*Node
	Root  int

	// Defs maps id -> node index. First declaration wins.
	Defs map[string]int

	Stylesheet Stylesheet

	Title, Desc, Metadata string
}

func newDocument() *Document {
	return &Document{Defs: map[string]int{}}
}

func (d *Document) newNode(parent int, kind Kind, tag string) *Node {
	n := &Node{
		Index:  len(d.Nodes),
		Kind:   kind,
		Tag:    tag,
		Parent: parent,
		Attrs:  map[string]string{},
		PAR:    DefaultPAR,
	}
	d.Nodes = append(d.Nodes, n)
	if parent >= 0 {
		d.Nodes[parent].Children = append(d.Nodes[parent].Children, n.Index)
	}
	return n
}

// Node returns the node at index i, or nil if i is out of range (e.g.
// a resolved -1 "no parent").
func (d *Document) Node(i int) *Node {
	if i < 0 || i >= len(d.Nodes) {
		return nil
	}
	return d.Nodes[i]
}

// Lookup resolves an id to a node.
func (d *Document) Lookup(id string) (*Node, bool) {
	i, ok := d.Defs[id]
	if !ok {
		return nil, false
	}
	return d.Node(i), true
}

// LookupKind resolves id and additionally rejects a match whose Kind
// is not among kinds, so a mask="url(#g)" naming a gradient fails the
// lookup instead of rendering garbage.
func (d *Document) LookupKind(id string, kinds ...Kind) (*Node, bool) {
	n, ok := d.Lookup(id)
	if !ok {
		return nil, false
	}
	for _, k := range kinds {
		if n.Kind == k {
			return n, true
		}
	}
	return nil, false
}

// Ancestors returns n's ancestor chain, closest first, root last.
func (d *Document) Ancestors(n *Node) []*Node {
	var out []*Node
	for p := d.Node(n.Parent); p != nil; p = d.Node(p.Parent) {
		out = append(out, p)
	}
	return out
}

// NodeChildren returns n's child nodes in document order.
func (d *Document) NodeChildren(n *Node) []*Node {
	out := make([]*Node, len(n.Children))
	for i, c := range n.Children {
		out[i] = d.Node(c)
	}
	return out
}
