// Package compositor turns a source bitmap and a crop region into a
// fixed-size encoded raster.  The selection rectangle IS the visible
// area: the region is scaled to fill the output surface exactly, with
// no letterboxing.
package compositor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"github.com/cardex-app/imagekit/core"
	apperrors "github.com/cardex-app/imagekit/errors"
	"github.com/cardex-app/imagekit/utils"
)

// Compositor is the pure-Go Rasterizer.  Stateless apart from its
// configuration; safe for concurrent use.
type Compositor struct {
	reg            core.Registry
	defaultQuality int
	resampler      xdraw.Interpolator
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithResampler overrides the scaling interpolator (default CatmullRom).
func WithResampler(r xdraw.Interpolator) Option {
	return func(c *Compositor) { c.resampler = r }
}

// New creates a Compositor bound to the given codec registry.
func New(reg core.Registry, defaultQuality int, opts ...Option) *Compositor {
	if defaultQuality <= 0 {
		defaultQuality = 90
	}
	c := &Compositor{
		reg:            reg,
		defaultQuality: defaultQuality,
		resampler:      xdraw.CatmullRom,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ core.Rasterizer = (*Compositor)(nil)

// Rasterize draws the sub-rectangle region of src scaled to fill the
// output surface exactly and encodes the result.  Output dimensions
// default to the region's own size.  Sampling is clamped to the source
// bounds, never wrapped.
func (c *Compositor) Rasterize(ctx context.Context, src *core.SourceImage, region core.CropRegion, opts core.RasterOptions) (*core.EncodedAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategorySurface, "rasterize", err)
	}
	if src == nil || (src.Image == nil && len(src.Data) == 0) {
		return nil, apperrors.New(apperrors.CategoryDecode, "rasterize", apperrors.ErrEmptyInput)
	}

	bitmap := src.Image
	if bitmap == nil {
		decoded, err := c.decode(ctx, src.Data)
		if err != nil {
			return nil, err
		}
		bitmap = decoded.Image
		src.Image = decoded.Image
		src.Width = decoded.Width
		src.Height = decoded.Height
		if src.Format == "" || src.Format == core.FormatUnknown {
			src.Format = decoded.Format
		}
	}

	if err := region.Validate(src.Width, src.Height); err != nil {
		return nil, apperrors.New(apperrors.CategorySurface, "rasterize", apperrors.ErrInvalidRegion)
	}

	outW, outH := opts.OutputWidth, opts.OutputHeight
	if outW == 0 && outH == 0 {
		outW, outH = region.Width, region.Height
	}
	if outW <= 0 || outH <= 0 {
		return nil, apperrors.New(apperrors.CategorySurface, "rasterize", apperrors.ErrZeroSurface)
	}

	// Clamp sampling to the bitmap even though Validate passed; a source
	// whose bounds do not start at (0,0) must still never wrap.
	sample := region.Rect().Add(bitmap.Bounds().Min).Intersect(bitmap.Bounds())
	if sample.Empty() {
		return nil, apperrors.New(apperrors.CategorySurface, "rasterize", apperrors.ErrInvalidRegion)
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	c.resampler.Scale(dst, dst.Bounds(), bitmap, sample, xdraw.Src, nil)

	format := opts.Format
	if format == "" || format == core.FormatUnknown {
		format = core.FormatJPEG
	}
	return c.encode(ctx, dst, format, opts.Quality)
}

// CompositeWithBackground paints fill as the base plate, draws bg scaled
// to cover the square canvas at the given opacity, then draws fg at full
// opacity on top and encodes to PNG.  Used for the logo-behind-QR
// decoration, which the QR renderer cannot alpha-blend itself.
func (c *Compositor) CompositeWithBackground(ctx context.Context, fg, bg image.Image, opacity float64, size int, fill color.Color) (*core.EncodedAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategorySurface, "composite", err)
	}
	if size <= 0 {
		return nil, apperrors.New(apperrors.CategorySurface, "composite", apperrors.ErrZeroSurface)
	}
	if fg == nil {
		return nil, apperrors.New(apperrors.CategorySurface, "composite", apperrors.ErrEmptyInput)
	}
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}

	base := imaging.New(size, size, fill)
	if bg != nil {
		plate := imaging.Fill(bg, size, size, imaging.Center, imaging.Lanczos)
		base = imaging.Overlay(base, plate, image.Pt(0, 0), opacity)
	}

	top := fg
	if fb := fg.Bounds(); fb.Dx() != size || fb.Dy() != size {
		top = imaging.Resize(fg, size, size, imaging.Lanczos)
	}
	out := imaging.Overlay(base, top, image.Pt(0, 0), 1.0)

	return c.encode(ctx, out, core.FormatPNG, 0)
}

// decode sniffs the format of raw bytes and runs the registered decoder.
func (c *Compositor) decode(ctx context.Context, data []byte) (*core.SourceImage, error) {
	format := core.Format(utils.DetectFormat(data))
	dec, ok := c.reg.DecoderFor(format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryDecode, "rasterize.decode", apperrors.ErrUnsupportedFormat)
	}
	decoded, err := dec.Decode(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

func (c *Compositor) encode(ctx context.Context, img draw.Image, format core.Format, quality int) (*core.EncodedAsset, error) {
	enc, ok := c.reg.EncoderFor(format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryEncode, "rasterize.encode", apperrors.ErrUnsupportedFormat)
	}
	if quality <= 0 {
		quality = c.defaultQuality
	}
	data, err := enc.Encode(ctx, img, core.EncodeOptions{Quality: quality})
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &core.EncodedAsset{
		Bytes:    data,
		MIMEType: format.MIME(),
		Format:   format,
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}
