package rsvg

import "log"

// Diagnostic is one entry routed through a Logger: a single recoverable
// condition encountered while loading or rendering a document.
type Diagnostic struct {
	Kind    ErrorKind
	Element string // id or tag name the diagnostic is about, if any
	Message string
}

// Logger receives diagnostics. It must not panic or block; callers that
// need buffering should do it themselves.
type Logger func(Diagnostic)

// DefaultLogger routes diagnostics to the standard library's default
// logger.
func DefaultLogger(d Diagnostic) {
	if d.Element != "" {
		log.Printf("rsvg: %s (%s): %s", d.Kind, d.Element, d.Message)
		return
	}
	log.Printf("rsvg: %s: %s", d.Kind, d.Message)
}

// NopLogger discards every diagnostic.
func NopLogger(Diagnostic) {}

type diagSink struct {
	log  Logger
	seen map[string]bool // dedupe "once per attribute per document"
}

func newDiagSink(logger Logger) *diagSink {
	if logger == nil {
		logger = NopLogger
	}
	return &diagSink{log: logger, seen: map[string]bool{}}
}

func (s *diagSink) warn(kind ErrorKind, element, message string) {
	s.log(Diagnostic{Kind: kind, Element: element, Message: message})
}

// warnOnce reports InvalidAttribute diagnostics at most once per
// (element, attribute) pair per document.
func (s *diagSink) warnOnce(element, attr, message string) {
	key := element + "\x00" + attr
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.warn(ErrInvalidAttribute, element, attr+": "+message)
}
