package rsvg

import (
	"errors"
	"io"
	"sync"
)

// handleState is the Handle lifecycle: a handle
// starts in Start, moves to Loading on the first Write, and ends in
// either ClosedOk or ClosedError once Close runs.
type handleState int

const (
	handleStart handleState = iota
	handleLoading
	handleClosedOk
	handleClosedError
)

// HandleFlags is the bit set a Handle is created with.
type HandleFlags uint32

const (
	// FlagKeepImageData retains decoded <image> pixel data for the
	// handle's lifetime instead of allowing it to be dropped after
	// rendering.
	FlagKeepImageData HandleFlags = 1 << iota
	// FlagUnlimitedSize disables the element-count cap on loading. It
	// is not passed to the Acquirer.
	FlagUnlimitedSize
)

// Process-wide default DPI, settable once at startup before handles are
// created.
var defaultDPIX, defaultDPIY = 96.0, 96.0

// SetDefaultDPI changes the DPI newly created handles start with.
// Values <= 0 reset to 96.
func SetDefaultDPI(x, y float64) {
	if x <= 0 {
		x = 96
	}
	if y <= 0 {
		y = 96
	}
	defaultDPIX, defaultDPIY = x, y
}

// HandleOption configures a Handle at construction.
type HandleOption func(*Handle)

// WithFlags sets the handle's flag bits.
func WithFlags(f HandleFlags) HandleOption {
	return func(h *Handle) { h.flags = f }
}

// WithLogger routes diagnostics to logger instead of DefaultLogger.
func WithLogger(logger Logger) HandleOption {
	return func(h *Handle) { h.logger = logger }
}

// WithShaper stores s on the Handle. Render, RenderViewport and
// RenderSub do not pass it on: text is measured with the Backend's own
// Shaper (Backend.Shaper), or with NopShaper when that returns nil.
func WithShaper(s Shaper) HandleOption {
	return func(h *Handle) { h.shaper = s }
}

// WithAcquirer installs the data-acquisition collaborator used to
// resolve <image> references during Close. Defaults
// to DefaultAcquirer, which only decodes data: URIs.
func WithAcquirer(a Acquirer) HandleOption {
	return func(h *Handle) { h.acquirer = a }
}

// Handle is the public entry point: write SVG bytes to it incrementally,
// Close it, then query geometry or Render it.
// Internally, Write feeds a pipe that a background goroutine drains
// through a single long-lived xml.Decoder (loader.run, loader.go) —
// the decoder blocks on Token() exactly as it would reading a slow
// network socket, which is what lets Write be called any number of
// times without restarting the parse.
type Handle struct {
	mu sync.Mutex

	state    handleState
	err      error
	flags    HandleFlags
	logger   Logger
	shaper   Shaper
	acquirer Acquirer

	pw   *io.PipeWriter
	done chan error

	loader *loader
	diag   *diagSink

	dpiX, dpiY float64
	base       string

	doc *Document
}

// NewHandle creates an unloaded Handle in the Start state.
func NewHandle(opts ...HandleOption) *Handle {
	h := &Handle{dpiX: defaultDPIX, dpiY: defaultDPIY, logger: DefaultLogger}
	for _, o := range opts {
		o(h)
	}
	h.diag = newDiagSink(h.logger)
	h.loader = newLoader(h.diag)
	h.loader.acquirer = h.acquirer
	if h.flags&FlagUnlimitedSize != 0 {
		h.loader.maxElements = int(^uint(0) >> 1)
	}
	return h
}

// SetBase sets the base URI used to resolve relative xlink:href targets
// for external resources. Must be called
// before the first Write.
func (h *Handle) SetBase(uri string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.base = uri
	h.loader.base = uri
}

// SetDPI sets the DPI used to resolve absolute-unit lengths (pt, in,
// cm, mm, pc). Values <= 0 mean "use the process default".
func (h *Handle) SetDPI(x, y float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if x <= 0 {
		x = defaultDPIX
	}
	if y <= 0 {
		y = defaultDPIY
	}
	h.dpiX, h.dpiY = x, y
}

// Write feeds len(p) bytes of SVG source into the handle. It may be
// called any number of times before Close.
func (h *Handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	if h.state == handleClosedOk || h.state == handleClosedError {
		h.mu.Unlock()
		return 0, newError(ErrAlreadyClosed, "", errAlreadyClosed)
	}
	if h.state == handleStart {
		h.state = handleLoading
		pr, pw := io.Pipe()
		h.pw = pw
		h.done = make(chan error, 1)
		go func() {
			err := h.loader.run(pr)
			// Unblock any Write still waiting on pw once the token loop
			// stops reading, whether it stopped because of an error or
			// because Close() signaled EOF.
			pr.CloseWithError(err)
			h.done <- err
		}()
	}
	pw := h.pw
	h.mu.Unlock()

	n, err := pw.Write(p)
	if err != nil {
		h.mu.Lock()
		// The pipe hands back whatever error the token loop died with;
		// keep its kind (e.g. an element-count limit) when it is
		// already one of ours.
		var rerr *Error
		if errors.As(err, &rerr) {
			h.fail(rerr)
		} else {
			h.fail(newError(ErrParse, "", err))
		}
		h.mu.Unlock()
		return n, h.err
	}
	return n, nil
}

func (h *Handle) fail(err error) {
	h.state = handleClosedError
	h.err = err
	if rerr, ok := err.(*Error); ok {
		h.diag.warn(rerr.Kind, rerr.Context, rerr.Error())
	}
}

// Close finalizes the document: the parser is signaled end-of-input,
// the background token loop is drained, and the CSS cascade is
// resolved across the whole tree.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.state == handleClosedOk || h.state == handleClosedError {
		defer h.mu.Unlock()
		return h.err
	}
	if h.state == handleStart {
		// Close with no prior Write: nothing was ever parsed.
		h.fail(newError(ErrParse, "", errEmptyDocument))
		h.mu.Unlock()
		return h.err
	}
	pw, done := h.pw, h.done
	h.mu.Unlock()

	pw.Close()
	runErr := <-done

	h.mu.Lock()
	defer h.mu.Unlock()
	if runErr != nil {
		h.fail(runErr)
		return h.err
	}
	if h.loader.doc.Root < 0 {
		h.fail(newError(ErrParse, "", errEmptyDocument))
		return h.err
	}

	h.doc = h.loader.doc
	resolveDocument(h.doc, h.diag)
	resolveImages(h.doc, h.acquirer, h.base, h.diag)
	h.state = handleClosedOk
	return nil
}

var errAlreadyClosed = simpleErr("handle already closed")
var errEmptyDocument = simpleErr("no root element parsed")
var errNotClosed = simpleErr("handle not closed")

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func (h *Handle) ready() error {
	if h.state != handleClosedOk {
		return newError(ErrNotReady, "", errNotClosed)
	}
	return nil
}

// GetDimensions returns the document's natural (intrinsic) size.
func (h *Handle) GetDimensions() (Dimensions, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ready(); err != nil {
		return Dimensions{}, err
	}
	return naturalSize(h.doc, h.dpiX, h.dpiY), nil
}

// HasSub reports whether id names an element in the document.
func (h *Handle) HasSub(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != handleClosedOk {
		return false
	}
	_, ok := h.doc.Lookup(id)
	return ok
}

// GetDimensionsSub returns a size for the sub-element named by id: its
// viewBox extent when it has a viewBox, and otherwise the whole
// document's natural size. The element's own geometry is not measured.
func (h *Handle) GetDimensionsSub(id string) (Dimensions, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ready(); err != nil {
		return Dimensions{}, err
	}
	n, ok := h.doc.Lookup(id)
	if !ok {
		return Dimensions{}, newError(ErrUnresolvedReference, id, errSubNotFound(id))
	}
	if n.ViewBox != nil {
		return Dimensions{Width: n.ViewBox.W, Height: n.ViewBox.H, Em: n.ViewBox.W, Ex: n.ViewBox.H, HasViewBox: true, ViewBox: *n.ViewBox}, nil
	}
	return naturalSize(h.doc, h.dpiX, h.dpiY), nil
}

type errSubNotFound string

func (e errSubNotFound) Error() string { return "no element with id " + string(e) }

// GetGeometrySub returns the ink and logical bounding boxes of the
// sub-element named by id (or the whole document if id is empty), in
// the user space of that element's parent: the element's own transform
// is applied.
func (h *Handle) GetGeometrySub(id string) (ink, logical Rect, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ready(); err != nil {
		return Rect{}, Rect{}, err
	}
	n := h.doc.Node(h.doc.Root)
	if id != "" {
		var ok bool
		n, ok = h.doc.Lookup(id)
		if !ok {
			return Rect{}, Rect{}, newError(ErrUnresolvedReference, id, errSubNotFound(id))
		}
	}
	ink, logical = computeGeometry(h.doc, n, h.dpiX, h.dpiY)
	return ink, logical, nil
}

// GetPositionSub returns the translation component of the sub-element
// named by id, relative to its parent's user space.
func (h *Handle) GetPositionSub(id string) (x, y float64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ready(); err != nil {
		return 0, 0, err
	}
	n, ok := h.doc.Lookup(id)
	if !ok {
		return 0, 0, newError(ErrUnresolvedReference, id, errSubNotFound(id))
	}
	if !n.HasTransform {
		return 0, 0, nil
	}
	return n.Transform.E, n.Transform.F, nil
}

// GetTitle, GetDesc and GetMetadata return the document's top-level
// <title>/<desc>/<metadata> text, if present.
func (h *Handle) GetTitle() string { return h.docString(func(d *Document) string { return d.Title }) }
func (h *Handle) GetDesc() string  { return h.docString(func(d *Document) string { return d.Desc }) }
func (h *Handle) GetMetadata() string {
	return h.docString(func(d *Document) string { return d.Metadata })
}

func (h *Handle) docString(get func(*Document) string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != handleClosedOk {
		return ""
	}
	return get(h.doc)
}

// Render draws the whole document through backend.
func (h *Handle) Render(backend Backend) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ready(); err != nil {
		return err
	}
	return Render(h.doc, nil, backend, h.diag, RenderOptions{DPIX: h.dpiX, DPIY: h.dpiY})
}

// RenderViewport draws the whole document scaled into viewport instead
// of its natural size.
func (h *Handle) RenderViewport(backend Backend, viewport Rect) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ready(); err != nil {
		return err
	}
	return Render(h.doc, nil, backend, h.diag, RenderOptions{DPIX: h.dpiX, DPIY: h.dpiY, Viewport: &viewport})
}

// RenderSub draws only the sub-element named by id, positioned as if
// it were the document root.
func (h *Handle) RenderSub(backend Backend, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ready(); err != nil {
		return err
	}
	n, ok := h.doc.Lookup(id)
	if !ok {
		return newError(ErrUnresolvedReference, id, errSubNotFound(id))
	}
	return Render(h.doc, n, backend, h.diag, RenderOptions{DPIX: h.dpiX, DPIY: h.dpiY})
}
