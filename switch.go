package rsvg

import "golang.org/x/text/language"

// UserLanguages is the ordered set of BCP-47 tags considered "the
// user's language" for systemLanguage matching; defaults to English
// ("en").
var UserLanguages = []string{"en"}

// firstMatchingSwitchChild returns the first child of a <switch> that
// passes its requiredFeatures/requiredExtensions/systemLanguage tests,
// or nil if none do. requiredFeatures is treated as
// always-satisfied (the feature-string registry it references is
// obsolete in modern SVG); requiredExtensions always fails (no
// extension namespaces are implemented, so any requirement is
// necessarily unmet) and systemLanguage is matched against
// UserLanguages using BCP-47 prefix matching.
func firstMatchingSwitchChild(kids []*Node) *Node {
	for _, c := range kids {
		if len(c.RequiredExtensions) > 0 {
			continue
		}
		if len(c.SystemLanguage) > 0 && !anyLanguageMatches(c.SystemLanguage) {
			continue
		}
		return c
	}
	return nil
}

func anyLanguageMatches(tags []string) bool {
	for _, want := range tags {
		wantTag, err := language.Parse(want)
		if err != nil {
			continue
		}
		for _, have := range UserLanguages {
			haveTag, err := language.Parse(have)
			if err != nil {
				continue
			}
			if tagPrefixMatches(haveTag, wantTag) {
				return true
			}
		}
	}
	return false
}

// tagPrefixMatches reports whether the user preference have equals the
// attribute tag want or is one of its BCP-47 ancestors — systemLanguage
// "en-US" matches a user preference of "en", per the attribute's
// prefix-matching rule.
func tagPrefixMatches(have, want language.Tag) bool {
	for t := want; ; {
		if t == have {
			return true
		}
		parent := t.Parent()
		if parent == t {
			return false
		}
		t = parent
	}
}
