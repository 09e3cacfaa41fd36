// Package csstok tokenizes CSS source — attribute values, inline
// style="…" text, and <style> sheet bodies — using the CSS3 tokenizer
// from github.com/tdewolff/parse/v2/css. It is the one place every
// other parser in this module goes to turn a string into CSS tokens.
package csstok

import (
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// Token is a single CSS token with its decoded type and source text.
type Token struct {
	Type  css.TokenType
	Value string
}

// Tokenize lexes s into a flat token slice. Whitespace tokens are kept
// so callers needing source-faithful reconstruction (font-family lists)
// can see them; callers that don't care filter them out themselves.
func Tokenize(s string) ([]Token, error) {
	var tokens []Token

	l := css.NewLexer(parse.NewInput(strings.NewReader(s)))
	for {
		typ, value := l.Next()
		if typ == css.ErrorToken {
			if l.Err() == io.EOF {
				break
			}
			return nil, l.Err()
		}
		tokens = append(tokens, Token{Type: typ, Value: string(value)})
	}

	return tokens, nil
}

// TokenizeNonWS is Tokenize with whitespace tokens dropped, the form
// every primitive-value parser wants.
func TokenizeNonWS(s string) ([]Token, error) {
	tokens, err := Tokenize(s)
	if err != nil {
		return nil, err
	}
	out := tokens[:0]
	for _, t := range tokens {
		if t.Type != css.WhitespaceToken {
			out = append(out, t)
		}
	}
	return out, nil
}
