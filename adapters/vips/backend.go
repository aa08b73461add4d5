// Package vips is a libvips-backed Rasterizer.  It works on the encoded
// source bytes directly, so the full bitmap is never materialised on the
// Go heap; crop and scale happen inside libvips.
package vips

import (
	"context"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/cardex-app/imagekit/core"
	apperrors "github.com/cardex-app/imagekit/errors"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	DefaultQuality int
	MaxCacheSize   int
	MaxWorkers     int
	ReportLeaks    bool
}

// Backend is the libvips-powered core.Rasterizer.
// Safe for concurrent use across goroutines.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = 90
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
		CollectStats:     true,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

var _ core.Rasterizer = (*Backend)(nil)

// Rasterize extracts region from the encoded source bytes, scales it to
// the output size, and exports it in the requested format.
func (b *Backend) Rasterize(ctx context.Context, src *core.SourceImage, region core.CropRegion, opts core.RasterOptions) (*core.EncodedAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategorySurface, "vips.rasterize", err)
	}
	if src == nil || len(src.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "vips.rasterize", apperrors.ErrEmptyInput)
	}

	ref, err := govips.NewImageFromBuffer(src.Data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.rasterize.decode", err)
	}
	defer ref.Close()

	srcW, srcH := ref.Width(), ref.Height()
	src.Width, src.Height = srcW, srcH
	if err := region.Validate(srcW, srcH); err != nil {
		return nil, apperrors.New(apperrors.CategorySurface, "vips.rasterize", apperrors.ErrInvalidRegion)
	}

	outW, outH := opts.OutputWidth, opts.OutputHeight
	if outW == 0 && outH == 0 {
		outW, outH = region.Width, region.Height
	}
	if outW <= 0 || outH <= 0 {
		return nil, apperrors.New(apperrors.CategorySurface, "vips.rasterize", apperrors.ErrZeroSurface)
	}

	if err := ref.ExtractArea(region.X, region.Y, region.Width, region.Height); err != nil {
		return nil, apperrors.Wrap(apperrors.CategorySurface, "vips.rasterize.extract", err)
	}

	if outW != region.Width || outH != region.Height {
		hscale := float64(outW) / float64(region.Width)
		vscale := float64(outH) / float64(region.Height)
		if err := ref.ResizeWithVScale(hscale, vscale, govips.KernelLanczos3); err != nil {
			return nil, apperrors.Wrap(apperrors.CategorySurface, "vips.rasterize.resize", err)
		}
	}

	format := opts.Format
	if format == "" || format == core.FormatUnknown {
		format = core.FormatJPEG
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = b.cfg.DefaultQuality
	}

	data, err := b.export(ref, format, quality)
	if err != nil {
		return nil, err
	}
	return &core.EncodedAsset{
		Bytes:    data,
		MIMEType: format.MIME(),
		Format:   format,
		Width:    outW,
		Height:   outH,
	}, nil
}

func (b *Backend) export(ref *govips.ImageRef, format core.Format, quality int) ([]byte, error) {
	switch format {
	case core.FormatJPEG:
		ep := govips.NewJpegExportParams()
		ep.Quality = quality
		ep.StripMetadata = true
		buf, _, err := ref.ExportJpeg(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.export.jpeg", err)
		}
		return buf, nil

	case core.FormatPNG:
		ep := govips.NewPngExportParams()
		ep.StripMetadata = true
		buf, _, err := ref.ExportPng(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.export.png", err)
		}
		return buf, nil

	case core.FormatWebP:
		ep := govips.NewWebpExportParams()
		ep.Quality = quality
		ep.StripMetadata = true
		buf, _, err := ref.ExportWebp(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.export.webp", err)
		}
		return buf, nil

	default:
		return nil, apperrors.New(apperrors.CategoryEncode, "vips.export", apperrors.ErrUnsupportedFormat)
	}
}
