package decoder

import (
	"context"
	"image/png"
	"io"

	"github.com/cardex-app/imagekit/core"
	apperrors "github.com/cardex-app/imagekit/errors"
)

// PNG decodes PNG images using the standard library.
type PNG struct{}

// NewPNG returns an initialised PNG decoder.
func NewPNG() *PNG { return &PNG{} }

func (p *PNG) CanDecode(format core.Format) bool {
	return format == core.FormatPNG || format == core.FormatUnknown
}

func (p *PNG) Decode(ctx context.Context, r io.Reader) (*core.SourceImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "png.decode", err)
	}

	img, err := png.Decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "png.decode", err)
	}

	bounds := img.Bounds()
	return &core.SourceImage{
		Image:  img,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: core.FormatPNG,
	}, nil
}
