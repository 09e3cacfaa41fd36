package rsvg

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// loadState tracks which special parsing mode the streaming loader is
// in: inside <style>, or inside a skipped foreign-namespace subtree.
// Character data of text and other elements is kept by element kind in
// charData.
type loadState int

const (
	stateOuter loadState = iota
	stateStyle
	stateForeign
)

// loader incrementally builds a Document from XML tokens fed to it by
// Handle.Write, structured around Decoder.Token() so parsing can
// proceed across multiple Write calls instead of one blocking Decode.
type loader struct {
	doc  *Document
	diag *diagSink

	stack []int // open element indices, root-to-current
	state loadState

	foreignDepth int

	elementCount int
	maxElements  int

	base     string
	acquirer Acquirer

	ruleOrder int // source order across all sheets, imported ones included
}

const defaultMaxElements = 500000

func newLoader(diag *diagSink) *loader {
	doc := newDocument()
	doc.Root = -1
	return &loader{doc: doc, diag: diag, maxElements: defaultMaxElements}
}

func (l *loader) current() int {
	if len(l.stack) == 0 {
		return -1
	}
	return l.stack[len(l.stack)-1]
}

// run decodes tokens from r until it is exhausted (io.EOF), blocking
// on each Token() call as needed. Handle runs this in a background
// goroutine fed by an io.Pipe, so that Handle.Write can hand bytes to
// a live xml.Decoder across many calls without re-parsing from
// scratch each time.
func (l *loader) run(r io.Reader) error {
	gz, err := sniffGzip(r)
	if err != nil {
		return newError(ErrParse, "", err)
	}

	dec := xml.NewDecoder(gz)
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xmlPredefinedEntities

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return newError(ErrParse, "", err)
		}
		if err := l.handleToken(tok); err != nil {
			return err
		}
	}
}

var xmlPredefinedEntities = map[string]string{
	"lt":   "<",
	"gt":   ">",
	"amp":  "&",
	"apos": "'",
	"quot": "\"",
}

func (l *loader) handleToken(tok xml.Token) error {
	switch t := tok.(type) {
	case xml.StartElement:
		return l.startElement(t)
	case xml.EndElement:
		return l.endElement(t)
	case xml.CharData:
		l.charData(t)
	}
	return nil
}

func (l *loader) startElement(t xml.StartElement) error {
	if l.state == stateForeign {
		l.foreignDepth++
		return nil
	}

	tag := t.Name.Local
	kind := kindForTag(tag)

	if kind == KindUnknown && t.Name.Space != "" && t.Name.Space != svgNamespace && t.Name.Space != "xml" {
		// Foreign-namespace content (e.g. embedded HTML/MathML) is kept
		// out of the render tree entirely.
		l.state = stateForeign
		l.foreignDepth = 1
		return nil
	}

	l.elementCount++
	if l.elementCount > l.maxElements {
		return newError(ErrInstancingLimit, tag, fmt.Errorf("document exceeds %d elements", l.maxElements))
	}

	n := l.doc.newNode(l.current(), kind, tag)
	n.XMLSpace = "default"
	if p := l.doc.Node(n.Parent); p != nil {
		n.XMLSpace = p.XMLSpace
	}

	for _, a := range t.Attr {
		name := attrLocalName(a.Name)
		val := a.Value
		switch name {
		case "id":
			n.ID = val
			if _, exists := l.doc.Defs[val]; !exists {
				l.doc.Defs[val] = n.Index
			}
		case "class":
			n.Class = strings.Fields(val)
		case "style":
			n.InlineStyle = val
		case "transform", "gradientTransform", "patternTransform":
			m := ParseTransform(val)
			n.Transform, n.HasTransform = m, true
		case "space":
			if isXMLNamespace(a.Name.Space) && (val == "default" || val == "preserve") {
				n.XMLSpace = val
			}
		case "requiredFeatures":
			n.RequiredFeatures = strings.Fields(val)
		case "requiredExtensions":
			n.RequiredExtensions = strings.Fields(val)
		case "systemLanguage":
			n.SystemLanguage = splitCommaList(val)
		}
		n.Attrs[name] = val
	}

	decodeKindSpecificAttrs(n, l.diag)

	if len(l.stack) == 0 {
		l.doc.Root = n.Index
	}
	l.stack = append(l.stack, n.Index)

	if kind == KindStyle {
		l.state = stateStyle
	}
	return nil
}

func (l *loader) endElement(t xml.EndElement) error {
	if l.state == stateForeign {
		l.foreignDepth--
		if l.foreignDepth <= 0 {
			l.state = stateOuter
		}
		return nil
	}

	idx := l.current()
	n := l.doc.Node(idx)
	if n == nil {
		return nil // unbalanced; tolerate per §4.D's "accept as much as possible"
	}

	switch n.Kind {
	case KindStyle:
		imports, css := ExtractImports(n.CharData)
		for _, uri := range imports {
			l.importStylesheet(uri, n.ID)
		}
		sheet, err := ParseStylesheet(css)
		if err != nil {
			l.diag.warn(ErrParse, n.ID, "malformed stylesheet: "+err.Error())
		} else {
			l.appendRules(sheet.Rules)
		}
		l.state = stateOuter
	case KindTitle:
		if l.doc.Node(n.Parent) != nil && n.Parent == l.doc.Root && l.doc.Title == "" {
			l.doc.Title = n.CharData
		}
	case KindDesc:
		if l.doc.Node(n.Parent) != nil && n.Parent == l.doc.Root && l.doc.Desc == "" {
			l.doc.Desc = n.CharData
		}
	case KindMetadata:
		l.doc.Metadata += n.CharData
	}

	l.stack = l.stack[:len(l.stack)-1]
	return nil
}

func (l *loader) charData(t xml.CharData) {
	idx := l.current()
	n := l.doc.Node(idx)
	if n == nil {
		return
	}
	switch n.Kind {
	case KindStyle, KindTitle, KindDesc, KindMetadata, KindText, KindTSpan, KindTRef:
		n.CharData += string(t)
	}
}

// The XML decoder reports an attribute's namespace as the declared URI
// when the prefix is bound, or as the raw prefix when it isn't; both
// spellings occur in the wild, so both are recognized.
const (
	svgNamespace   = "http://www.w3.org/2000/svg"
	xlinkNamespace = "http://www.w3.org/1999/xlink"
	xmlNamespace   = "http://www.w3.org/XML/1998/namespace"
)

func isXMLNamespace(space string) bool {
	return space == "xml" || space == xmlNamespace
}

// importStylesheet fetches an @import target through the Acquirer and
// folds its rules into the document sheet. Refusals degrade to an
// empty import; the local rules still apply.
func (l *loader) importStylesheet(uri, elementID string) {
	acq := l.acquirer
	if acq == nil {
		acq = DefaultAcquirer{}
	}
	data, _, err := acq.Acquire(uri, l.base, []string{"text/css"})
	if err != nil {
		l.diag.warn(ErrExternalResourceDenied, elementID, "stylesheet not imported: "+err.Error())
		return
	}
	sheet, err := ParseStylesheet(string(data))
	if err != nil {
		l.diag.warn(ErrParse, elementID, "malformed imported stylesheet: "+err.Error())
		return
	}
	l.appendRules(sheet.Rules)
}

// appendRules renumbers incoming rules so source order stays globally
// monotonic across multiple <style> elements and imports.
func (l *loader) appendRules(rules []Rule) {
	for i := range rules {
		rules[i].Order = l.ruleOrder
		l.ruleOrder++
	}
	l.doc.Stylesheet.Rules = append(l.doc.Stylesheet.Rules, rules...)
}

func attrLocalName(n xml.Name) string {
	if n.Space == "xlink" || n.Space == xlinkNamespace {
		return "xlink:" + n.Local
	}
	return n.Local
}

func splitCommaList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// sniffGzip transparently decompresses input that leads with the gzip
// magic bytes.
func sniffGzip(r io.Reader) (io.Reader, error) {
	br := newPeekReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(br)
	}
	return br, nil
}

// peekReader is a tiny io.Reader wrapper that supports peeking a
// handful of leading bytes without consuming them, enough for gzip
// sniffing without pulling in bufio's larger buffer semantics across
// incremental Write calls.
type peekReader struct {
	r    io.Reader
	buf  bytes.Buffer
	done bool
}

func newPeekReader(r io.Reader) *peekReader { return &peekReader{r: r} }

func (p *peekReader) Peek(n int) ([]byte, error) {
	for p.buf.Len() < n {
		b := make([]byte, n-p.buf.Len())
		m, err := p.r.Read(b)
		p.buf.Write(b[:m])
		if err != nil {
			return p.buf.Bytes(), err
		}
	}
	return p.buf.Bytes(), nil
}

func (p *peekReader) Read(b []byte) (int, error) {
	if p.buf.Len() > 0 {
		return p.buf.Read(b)
	}
	return p.r.Read(b)
}
