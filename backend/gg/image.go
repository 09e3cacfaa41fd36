package gg

import (
	"image"
	"image/color"
	"io"
	"os"

	fgg "github.com/fogleman/gg"

	"github.com/vectorgraphics/rsvg"
)

// NewContext creates a raster context sized to doc's natural
// dimensions, falling back to 1024x1024 when the document reports no
// usable size.
func NewContext(h *rsvg.Handle) (*fgg.Context, error) {
	dim, err := h.GetDimensions()
	if err != nil {
		return nil, err
	}
	w, ht := int(dim.Width), int(dim.Height)
	if w <= 0 || ht <= 0 {
		w, ht = 1024, 1024
	}
	return fgg.NewContext(w, ht), nil
}

// NewScaledContext creates a raster context for doc scaled by factor.
// The returned context carries no transform; pass the matching viewport
// to Handle.RenderViewport instead.
func NewScaledContext(h *rsvg.Handle, factor float64) (*fgg.Context, rsvg.Rect, error) {
	dim, err := h.GetDimensions()
	if err != nil {
		return nil, rsvg.Rect{}, err
	}
	w, ht := dim.Width*factor, dim.Height*factor
	if w <= 0 || ht <= 0 {
		w, ht = 1024, 1024
	}
	return fgg.NewContext(int(w), int(ht)), rsvg.Rect{W: w, H: ht}, nil
}

// Image is a rendered SVG document exposed as an image.Image, keeping
// its Handle around so the vector source can be re-rasterized at
// another scale.
type Image struct {
	handle *rsvg.Handle
	ctx    *fgg.Context
}

func (i *Image) Handle() *rsvg.Handle  { return i.handle }
func (i *Image) Context() *fgg.Context { return i.ctx }

func (i *Image) ColorModel() color.Model { return i.ctx.Image().ColorModel() }
func (i *Image) Bounds() image.Rectangle { return i.ctx.Image().Bounds() }
func (i *Image) At(x, y int) color.Color { return i.ctx.Image().At(x, y) }

// Scale re-renders the document at the given zoom factor.
func (i *Image) Scale(factor float64) (*Image, error) {
	ctx, viewport, err := NewScaledContext(i.handle, factor)
	if err != nil {
		return nil, err
	}
	if err := i.handle.RenderViewport(New(ctx), viewport); err != nil {
		return nil, err
	}
	return &Image{handle: i.handle, ctx: ctx}, nil
}

// Decode reads a complete SVG document from r and rasterizes it at its
// natural size. It satisfies the image.RegisterFormat contract, so
// image.Decode recognizes uncompressed SVG sources once this package
// is imported.
func Decode(r io.Reader) (image.Image, error) {
	h := rsvg.NewHandle()
	if _, err := io.Copy(h, r); err != nil {
		return nil, err
	}
	if err := h.Close(); err != nil {
		return nil, err
	}

	ctx, err := NewContext(h)
	if err != nil {
		return nil, err
	}
	if err := h.Render(New(ctx)); err != nil {
		return nil, err
	}
	return &Image{handle: h, ctx: ctx}, nil
}

// DecodeFile is the acquire-write-close-render pipeline as one call:
// it reads path (stdin-style streaming is Decode's job) and rasterizes
// the document at its natural size.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// DecodeConfig reports the natural pixel size of an SVG stream without
// rasterizing it.
func DecodeConfig(r io.Reader) (image.Config, error) {
	h := rsvg.NewHandle()
	if _, err := io.Copy(h, r); err != nil {
		return image.Config{}, err
	}
	if err := h.Close(); err != nil {
		return image.Config{}, err
	}
	dim, err := h.GetDimensions()
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{
		ColorModel: color.RGBAModel,
		Width:      int(dim.Width),
		Height:     int(dim.Height),
	}, nil
}

func init() {
	image.RegisterFormat("svg", "<svg", Decode, DecodeConfig)
	image.RegisterFormat("svg", "<?xml", Decode, DecodeConfig)
}
