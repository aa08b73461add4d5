package core

import (
	"fmt"
	"image"
	"strings"
)

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatUnknown Format = "unknown"
)

// MIME returns the MIME type for the format.
func (f Format) MIME() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	}
	return "application/octet-stream"
}

// Ext returns the canonical file extension, including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	case FormatWebP:
		return ".webp"
	}
	return ".bin"
}

// FormatFromMIME maps a MIME type to a Format value.
func FormatFromMIME(ct string) Format {
	switch ct {
	case "image/jpeg", "image/jpg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/webp":
		return FormatWebP
	}
	return FormatUnknown
}

// SourceImage is an in-memory decoded bitmap plus its natural dimensions.
// It is owned exclusively by one editing session and discarded when the
// session ends.  Data retains the encoded bytes the bitmap was decoded
// from so byte-oriented backends (libvips) can skip a re-encode.
type SourceImage struct {
	Image  image.Image
	Width  int
	Height int
	Format Format
	Data   []byte
}

// Bounds returns the natural pixel bounds of the source.
func (s *SourceImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.Width, s.Height)
}

// Release drops the pixel buffer and raw bytes so the session cannot leak
// a decoded bitmap past its lifetime.
func (s *SourceImage) Release() {
	s.Image = nil
	s.Data = nil
}

// CropRegion is a rectangle in source-pixel coordinates.
type CropRegion struct {
	X, Y, Width, Height int
}

// Rect converts the region to an image.Rectangle.
func (r CropRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Validate checks the region invariant against source dimensions:
// positive size, non-negative origin, fully inside the source.
func (r CropRegion) Validate(srcW, srcH int) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("region %dx%d has non-positive size", r.Width, r.Height)
	}
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("region origin (%d,%d) is negative", r.X, r.Y)
	}
	if r.X+r.Width > srcW || r.Y+r.Height > srcH {
		return fmt.Errorf("region %v exceeds source bounds %dx%d", r.Rect(), srcW, srcH)
	}
	return nil
}

// EncodedAsset is the compositor's output: encoded bytes plus metadata.
// Immutable once produced.
type EncodedAsset struct {
	Bytes    []byte
	MIMEType string
	Format   Format
	Width    int
	Height   int
}

// StoredImageRef identifies a persisted asset.  The owning record holds
// only the URL; Bucket and Path exist for the remove flow.
type StoredImageRef struct {
	URL    string
	Bucket string
	Path   string
}

// ── Aspect decision table ─────────────────────────────────────────────────────

// FieldKind tags the image-field flavour a crop is being produced for.
type FieldKind string

const (
	FieldCover  FieldKind = "cover"
	FieldAvatar FieldKind = "avatar"
)

// AspectPreset is the enumerated aspect-lock decision for a field kind.
type AspectPreset struct {
	Kind   FieldKind
	W, H   int
}

// Ratio returns width/height as a float.
func (a AspectPreset) Ratio() float64 { return float64(a.W) / float64(a.H) }

var (
	AspectCover  = AspectPreset{Kind: FieldCover, W: 16, H: 9}
	AspectAvatar = AspectPreset{Kind: FieldAvatar, W: 1, H: 1}
)

// coverWords are the label fragments that select the wide preset.
var coverWords = []string{"cover", "banner", "header"}

// ResolveAspect maps a field label to its aspect preset.  Labels containing
// "cover", "banner" or "header" (case-insensitive) get 16:9; everything
// else gets the square avatar preset.  Callers with an explicit override
// should bypass this and set the ratio directly on the crop surface.
func ResolveAspect(fieldLabel string) AspectPreset {
	label := strings.ToLower(fieldLabel)
	for _, w := range coverWords {
		if strings.Contains(label, w) {
			return AspectCover
		}
	}
	return AspectAvatar
}
