package rsvg

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
)

// Acquirer is the data-acquisition collaborator:
// given a URI, a base URI and a set of acceptable MIME prefixes, it
// returns bytes and a MIME type or a hard error. It is the one hook
// through which <image xlink:href> and CSS @import reach outside the
// document.
type Acquirer interface {
	Acquire(uri, base string, allowedMIME []string) ([]byte, string, error)
}

// DefaultAcquirer decodes data: URIs inline and refuses everything
// else: fetching is opt-in, so the conservative default is to deny
// network/file access until a client supplies its own Acquirer.
type DefaultAcquirer struct{}

var errExternalDenied = errors.New("external resource acquisition denied by default policy")

func (DefaultAcquirer) Acquire(uri, base string, allowedMIME []string) ([]byte, string, error) {
	if data, mime, ok := decodeDataURI(uri); ok {
		if !mimeAllowed(mime, allowedMIME) {
			return nil, "", errExternalDenied
		}
		return data, mime, nil
	}
	return nil, "", errExternalDenied
}

func mimeAllowed(mime string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.HasPrefix(mime, a) {
			return true
		}
	}
	return false
}

// decodeDataURI decodes a "data:[<mime>][;base64],<data>" URI per RFC
// 2397. Returns ok=false for anything else (http(s):, relative paths,
// …), which the caller routes through the full Acquirer.
func decodeDataURI(uri string) (data []byte, mime string, ok bool) {
	const prefix = "data:"
	if !strings.HasPrefix(uri, prefix) {
		return nil, "", false
	}
	rest := uri[len(prefix):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, "", false
	}
	meta, payload := rest[:comma], rest[comma+1:]

	mime = "text/plain"
	isBase64 := false
	for _, part := range strings.Split(meta, ";") {
		switch {
		case part == "base64":
			isBase64 = true
		case part == "":
		default:
			mime = part
		}
	}

	if isBase64 {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", false
		}
		return b, mime, true
	}
	unescaped, err := url.QueryUnescape(payload)
	if err != nil {
		unescaped = payload
	}
	return []byte(unescaped), mime, true
}

// resolveImages fetches every <image> node's referenced bytes through
// acq, storing the result on ImageData.Data/MIME. A
// denied or failed acquisition leaves Data nil: render.go's renderImage
// then draws nothing, so a denied resource leaves its node empty
// without failing the document.
func resolveImages(doc *Document, acq Acquirer, base string, diag *diagSink) {
	if acq == nil {
		acq = DefaultAcquirer{}
	}
	for _, n := range doc.Nodes {
		if n.Kind != KindImage || n.Image == nil || n.Image.Href == "" {
			continue
		}
		data, mime, err := acq.Acquire(n.Image.Href, base, []string{"image/"})
		if err != nil {
			diag.warn(ErrExternalResourceDenied, n.ID, "image not acquired: "+err.Error())
			continue
		}
		n.Image.Data, n.Image.MIME = data, mime
	}
}
