package rsvg

import (
	"sort"
	"strings"

	"github.com/tdewolff/parse/v2/css"

	"github.com/vectorgraphics/rsvg/internal/csstok"
)

// Declaration is one "property: value" pair from a rule or inline
// style, with its !important flag.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// SimpleSelector is one compound selector term: a type name (empty or
// "*" for universal), an id, and a set of classes: universal *, type
// tag, class .c, id #id, and concatenations like tag.c#id.
type SimpleSelector struct {
	Type    string // "" means universal
	ID      string
	Classes []string
}

// Selector is a descendant-combinator chain of compound selectors,
// outermost ancestor first, target element last.
type Selector []SimpleSelector

// Specificity is the (id-count, class-count, type-count) triple CSS
// defines; lower sorts first when rules are ranked, so the most
// specific declaration is applied last and wins.
type Specificity struct {
	IDs, Classes, Types int
}

// Less reports whether s sorts before o (lower specificity).
func (s Specificity) Less(o Specificity) bool {
	if s.IDs != o.IDs {
		return s.IDs < o.IDs
	}
	if s.Classes != o.Classes {
		return s.Classes < o.Classes
	}
	return s.Types < o.Types
}

func (sel Selector) specificity() Specificity {
	var s Specificity
	for _, c := range sel {
		if c.ID != "" {
			s.IDs++
		}
		s.Classes += len(c.Classes)
		if c.Type != "" {
			s.Types++
		}
	}
	return s
}

// Rule is one "selector-list { declarations }" ruleset.
type Rule struct {
	Selectors    []Selector
	Declarations []Declaration
	Order        int // source order, used to break specificity ties
}

// Stylesheet is the parsed form of a <style> element's text (or an
// @import'd sheet).
type Stylesheet struct {
	Rules []Rule
}

// ParseStylesheet parses CSS source into a Stylesheet. It tokenizes
// with the CSS3 tokenizer (internal/csstok) and hand-rolls ruleset
// structure on top; only the selector forms SVG styling needs are
// recognized.
func ParseStylesheet(src string) (Stylesheet, error) {
	toks, err := csstok.Tokenize(src)
	if err != nil {
		return Stylesheet{}, err
	}
	p := &cssParser{toks: toks}
	return p.parseStylesheet(), nil
}

type cssParser struct {
	toks []csstok.Token
	pos  int
	next int // rule source-order counter
}

func (p *cssParser) peek() (csstok.Token, bool) {
	if p.pos >= len(p.toks) {
		return csstok.Token{}, false
	}
	return p.toks[p.pos], true
}

func (p *cssParser) advance() (csstok.Token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *cssParser) skipWS() {
	for {
		t, ok := p.peek()
		if !ok || t.Type != css.WhitespaceToken {
			return
		}
		p.pos++
	}
}

func (p *cssParser) parseStylesheet() Stylesheet {
	var sheet Stylesheet
	for {
		p.skipWS()
		t, ok := p.peek()
		if !ok {
			break
		}
		if t.Type == css.AtKeywordToken {
			p.skipAtRule()
			continue
		}
		if t.Type == css.CommentToken {
			p.pos++
			continue
		}
		rule, ok := p.parseRule()
		if !ok {
			break
		}
		sheet.Rules = append(sheet.Rules, rule)
	}
	return sheet
}

// ExtractImports splits the leading @import statements off a
// stylesheet's source, returning the referenced URIs and the remaining
// CSS. The loader fetches each URI through the Acquirer (text/css only)
// and parses the fetched sheets ahead of the local rules.
func ExtractImports(src string) (uris []string, rest string) {
	rest = src
	for {
		trimmed := strings.TrimLeft(rest, " \t\r\n")
		if !strings.HasPrefix(trimmed, "@import") {
			return uris, rest
		}
		end := strings.IndexByte(trimmed, ';')
		if end < 0 {
			return uris, rest
		}
		stmt := strings.TrimSpace(trimmed[len("@import"):end])
		rest = trimmed[end+1:]
		if uri := importURI(stmt); uri != "" {
			uris = append(uris, uri)
		}
	}
}

// importURI unwraps `url("x")`, `url(x)`, `"x"` or `'x'`.
func importURI(s string) string {
	if strings.HasPrefix(s, "url(") {
		end := strings.IndexByte(s, ')')
		if end < 0 {
			return ""
		}
		s = s[4:end]
	}
	return strings.Trim(strings.TrimSpace(s), `'"`)
}

// skipAtRule consumes a non-import @-rule (@media, @font-face, …): a
// bare parse only needs to skip balanced braces/semicolons.
func (p *cssParser) skipAtRule() {
	p.pos++ // the @keyword
	depth := 0
	for {
		t, ok := p.advance()
		if !ok {
			return
		}
		switch t.Type {
		case css.LeftBraceToken:
			depth++
		case css.RightBraceToken:
			depth--
			if depth <= 0 {
				return
			}
		case css.SemicolonToken:
			if depth == 0 {
				return
			}
		}
	}
}

func (p *cssParser) parseRule() (Rule, bool) {
	selStart := p.pos
	for {
		t, ok := p.peek()
		if !ok {
			return Rule{}, false
		}
		if t.Type == css.LeftBraceToken {
			break
		}
		p.pos++
	}
	selectorText := tokensText(p.toks[selStart:p.pos])
	p.pos++ // consume '{'

	declStart := p.pos
	depth := 1
	for {
		t, ok := p.advance()
		if !ok {
			break
		}
		if t.Type == css.LeftBraceToken {
			depth++
		} else if t.Type == css.RightBraceToken {
			depth--
			if depth == 0 {
				break
			}
		}
	}
	declEnd := p.pos - 1
	if declEnd < declStart {
		declEnd = declStart
	}
	declText := tokensText(p.toks[declStart:declEnd])

	selectors := parseSelectorList(selectorText)
	if len(selectors) == 0 {
		return Rule{}, true // malformed selector: skip, keep parsing
	}

	rule := Rule{
		Selectors:    selectors,
		Declarations: ParseDeclarations(declText),
		Order:        p.next,
	}
	p.next++
	return rule, true
}

func tokensText(toks []csstok.Token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Value)
	}
	return b.String()
}

// ParseDeclarations parses a "property: value; property: value !important"
// block, as found in an inline style="…" attribute or a ruleset body.
func ParseDeclarations(src string) []Declaration {
	var decls []Declaration
	for _, stmt := range strings.Split(src, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		colon := strings.IndexByte(stmt, ':')
		if colon < 0 {
			continue
		}
		prop := strings.TrimSpace(stmt[:colon])
		val := strings.TrimSpace(stmt[colon+1:])
		important := false
		if idx := strings.LastIndex(strings.ToLower(val), "!important"); idx >= 0 {
			important = true
			val = strings.TrimSpace(val[:idx])
		}
		if prop == "" {
			continue
		}
		decls = append(decls, Declaration{Property: prop, Value: val, Important: important})
	}
	return decls
}

// parseSelectorList parses a comma-separated selector list, each a
// whitespace-separated descendant-combinator chain of compound
// selectors.
func parseSelectorList(src string) []Selector {
	var out []Selector
	for _, part := range strings.Split(src, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var chain Selector
		for _, compound := range strings.Fields(part) {
			ss, ok := parseSimpleSelector(compound)
			if !ok {
				chain = nil
				break
			}
			chain = append(chain, ss)
		}
		if chain != nil {
			out = append(out, chain)
		}
	}
	return out
}

func parseSimpleSelector(s string) (SimpleSelector, bool) {
	var ss SimpleSelector
	i := 0
	n := len(s)
	if i < n && s[i] != '.' && s[i] != '#' {
		start := i
		for i < n && s[i] != '.' && s[i] != '#' {
			i++
		}
		typ := s[start:i]
		if typ != "*" {
			ss.Type = typ
		}
	}
	for i < n {
		switch s[i] {
		case '#':
			j := i + 1
			for j < n && s[j] != '.' && s[j] != '#' {
				j++
			}
			ss.ID = s[i+1 : j]
			i = j
		case '.':
			j := i + 1
			for j < n && s[j] != '.' && s[j] != '#' {
				j++
			}
			ss.Classes = append(ss.Classes, s[i+1:j])
			i = j
		default:
			return SimpleSelector{}, false
		}
	}
	return ss, true
}

func matchesSimple(ss SimpleSelector, n *Node) bool {
	if ss.Type != "" && ss.Type != n.Tag {
		return false
	}
	if ss.ID != "" && ss.ID != n.ID {
		return false
	}
	for _, c := range ss.Classes {
		found := false
		for _, nc := range n.Class {
			if nc == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// matches reports whether sel matches n within doc, honoring the
// descendant combinator: every selector element but the last must be
// satisfied by some strict ancestor, in order.
func (sel Selector) matches(doc *Document, n *Node) bool {
	if len(sel) == 0 {
		return false
	}
	if !matchesSimple(sel[len(sel)-1], n) {
		return false
	}

	ancestors := doc.Ancestors(n)
	ai := 0
	for i := len(sel) - 2; i >= 0; i-- {
		found := false
		for ; ai < len(ancestors); ai++ {
			if matchesSimple(sel[i], ancestors[ai]) {
				ai++
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// matchingDeclarations returns every declaration from sheet whose
// selector matches n, ordered by (specificity, source order) so the
// cascade (cascade.go) can apply them least-specific first and let
// later declarations win ties.
func matchingDeclarations(doc *Document, sheet Stylesheet, n *Node) []Declaration {
	type ranked struct {
		spec  Specificity
		order int
		decls []Declaration
	}
	var matches []ranked
	for _, rule := range sheet.Rules {
		var best Specificity
		matched := false
		for _, sel := range rule.Selectors {
			if sel.matches(doc, n) {
				matched = true
				if sp := sel.specificity(); !sp.Less(best) {
					best = sp
				}
			}
		}
		if matched {
			matches = append(matches, ranked{spec: best, order: rule.Order, decls: rule.Declarations})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.spec.Less(b.spec) != b.spec.Less(a.spec) {
			return a.spec.Less(b.spec)
		}
		return a.order < b.order
	})

	var out []Declaration
	for _, m := range matches {
		out = append(out, m.decls...)
	}
	return out
}
