package rsvg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStylesheetBasicRule(t *testing.T) {
	sheet, err := ParseStylesheet(`rect { fill: red; stroke: blue }`)
	require.NoError(t, err)
	require.Len(t, sheet.Rules, 1)
	rule := sheet.Rules[0]
	require.Len(t, rule.Selectors, 1)
	assert.Equal(t, "rect", rule.Selectors[0][0].Type)
	require.Len(t, rule.Declarations, 2)
	assert.Equal(t, "fill", rule.Declarations[0].Property)
	assert.Equal(t, "red", rule.Declarations[0].Value)
}

func TestParseStylesheetImportant(t *testing.T) {
	sheet, err := ParseStylesheet(`rect { fill: red !important; }`)
	require.NoError(t, err)
	require.Len(t, sheet.Rules, 1)
	d := sheet.Rules[0].Declarations[0]
	assert.True(t, d.Important)
	assert.Equal(t, "red", d.Value)
}

func TestParseStylesheetSelectorList(t *testing.T) {
	sheet, err := ParseStylesheet(`rect, circle.big, #star { fill: green }`)
	require.NoError(t, err)
	require.Len(t, sheet.Rules, 1)
	sels := sheet.Rules[0].Selectors
	require.Len(t, sels, 3)
	assert.Equal(t, "rect", sels[0][0].Type)
	assert.Equal(t, "circle", sels[1][0].Type)
	assert.Equal(t, []string{"big"}, sels[1][0].Classes)
	assert.Equal(t, "star", sels[2][0].ID)
}

func TestParseStylesheetSkipsAtRules(t *testing.T) {
	sheet, err := ParseStylesheet(`@media print { rect { fill: black } } circle { fill: red }`)
	require.NoError(t, err)
	require.Len(t, sheet.Rules, 1)
	assert.Equal(t, "circle", sheet.Rules[0].Selectors[0][0].Type)
}

func TestSpecificityOrdering(t *testing.T) {
	universal := parseSelectorList("*")[0]
	typ := parseSelectorList("rect")[0]
	class := parseSelectorList(".c")[0]
	id := parseSelectorList("#i")[0]
	compound := parseSelectorList("rect.c#i")[0]

	assert.True(t, universal.specificity().Less(typ.specificity()))
	assert.True(t, typ.specificity().Less(class.specificity()))
	assert.True(t, class.specificity().Less(id.specificity()))
	assert.True(t, id.specificity().Less(compound.specificity()))
}

func TestParseSimpleSelectorCompound(t *testing.T) {
	ss, ok := parseSimpleSelector("rect.a.b#x")
	require.True(t, ok)
	assert.Equal(t, "rect", ss.Type)
	assert.Equal(t, "x", ss.ID)
	assert.Equal(t, []string{"a", "b"}, ss.Classes)

	ss, ok = parseSimpleSelector("*")
	require.True(t, ok)
	assert.Empty(t, ss.Type)
}

func buildTestDoc(t *testing.T, src string) *Document {
	t.Helper()
	h := NewHandle(WithLogger(NopLogger))
	_, err := h.Write([]byte(src))
	require.NoError(t, err)
	require.NoError(t, h.Close())
	return h.doc
}

func TestSelectorDescendantMatching(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<g class="outer"><g><rect id="r"/></g></g>
		<rect id="other"/>
	</svg>`)

	sel := parseSelectorList(".outer rect")[0]
	r, ok := doc.Lookup("r")
	require.True(t, ok)
	other, ok := doc.Lookup("other")
	require.True(t, ok)

	assert.True(t, sel.matches(doc, r))
	assert.False(t, sel.matches(doc, other))
}

func TestMatchingDeclarationsSpecificityBeatsOrder(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<style>
			#r { fill: red }
			rect { fill: blue }
		</style>
		<rect id="r"/>
	</svg>`)

	r, ok := doc.Lookup("r")
	require.True(t, ok)
	decls := matchingDeclarations(doc, doc.Stylesheet, r)
	require.NotEmpty(t, decls)
	// Least specific first; the id rule's declaration lands last and wins.
	assert.Equal(t, "blue", decls[0].Value)
	assert.Equal(t, "red", decls[len(decls)-1].Value)
}

func TestExtractImports(t *testing.T) {
	uris, rest := ExtractImports(`@import url("a.css"); @import 'b.css'; rect { fill: red }`)
	assert.Equal(t, []string{"a.css", "b.css"}, uris)
	assert.Contains(t, rest, "rect")

	uris, rest = ExtractImports("rect { fill: red }")
	assert.Empty(t, uris)
	assert.Contains(t, rest, "rect")
}

func TestImportedStylesheetApplies(t *testing.T) {
	h := NewHandle(
		WithLogger(NopLogger),
		WithAcquirer(&stubAcquirer{data: []byte("rect { fill: red }"), mime: "text/css"}),
	)
	_, err := h.Write([]byte(`<svg xmlns="http://www.w3.org/2000/svg">
		<style>@import url("theme.css");</style>
		<rect id="r"/>
	</svg>`))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	state := computedOf(t, h.doc, "r")
	assert.Equal(t, uint32(0xffff0000), state.Fill.Color.ARGB)
}

func TestImportDeniedIsAbsorbed(t *testing.T) {
	doc := buildTestDoc(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<style>@import url("https://example.com/x.css"); rect { fill: blue }</style>
		<rect id="r"/>
	</svg>`)
	state := computedOf(t, doc, "r")
	assert.Equal(t, uint32(0xff0000ff), state.Fill.Color.ARGB, "local rules still apply")
}

func TestParseDeclarationsInline(t *testing.T) {
	decls := ParseDeclarations("fill: red; stroke-width: 2;; bogus")
	require.Len(t, decls, 2)
	assert.Equal(t, "fill", decls[0].Property)
	assert.Equal(t, "stroke-width", decls[1].Property)
	assert.Equal(t, "2", decls[1].Value)
}
