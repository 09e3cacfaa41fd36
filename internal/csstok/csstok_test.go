package csstok

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdewolff/parse/v2/css"
)

func TestTokenizeKeepsWhitespace(t *testing.T) {
	toks, err := Tokenize("fill: red")
	require.NoError(t, err)

	var types []css.TokenType
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Contains(t, types, css.WhitespaceToken)
	assert.Contains(t, types, css.IdentToken)
	assert.Contains(t, types, css.ColonToken)
}

func TestTokenizeNonWSDropsWhitespace(t *testing.T) {
	toks, err := TokenizeNonWS(`"Fira Sans", serif`)
	require.NoError(t, err)
	require.NotEmpty(t, toks)
	for _, tok := range toks {
		assert.NotEqual(t, css.WhitespaceToken, tok.Type)
	}
	assert.Equal(t, css.StringToken, toks[0].Type)
}

func TestTokenizeEmptyInput(t *testing.T) {
	toks, err := Tokenize("")
	require.NoError(t, err)
	assert.Empty(t, toks)
}
