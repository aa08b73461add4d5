package decoder

import (
	"context"
	"io"

	"golang.org/x/image/webp"

	"github.com/cardex-app/imagekit/core"
	apperrors "github.com/cardex-app/imagekit/errors"
)

// WebP decodes WebP images via golang.org/x/image/webp (lossy and lossless).
type WebP struct{}

// NewWebP returns an initialised WebP decoder.
func NewWebP() *WebP { return &WebP{} }

func (w *WebP) CanDecode(format core.Format) bool {
	return format == core.FormatWebP
}

func (w *WebP) Decode(ctx context.Context, r io.Reader) (*core.SourceImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "webp.decode", err)
	}

	img, err := webp.Decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "webp.decode", err)
	}

	bounds := img.Bounds()
	return &core.SourceImage{
		Image:  img,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: core.FormatWebP,
	}, nil
}
