package core

import (
	"context"
	"image"
	"io"
	"time"
)

// Decoder converts raw bytes / a reader into an in-memory SourceImage.
// Implementations live in adapters/decoder/.
type Decoder interface {
	// Decode reads from r and returns a decoded SourceImage.
	Decode(ctx context.Context, r io.Reader) (*SourceImage, error)
	// CanDecode reports whether this decoder handles the given format hint.
	CanDecode(format Format) bool
}

// Encoder serialises a pixel buffer to bytes in a target format.
// Implementations live in adapters/encoder/.
type Encoder interface {
	Encode(ctx context.Context, img image.Image, opts EncodeOptions) ([]byte, error)
	CanEncode(format Format) bool
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality  int  // 1-100; 0 = use encoder default
	Lossless bool // WebP lossless mode
}

// RasterOptions controls a single rasterize call.
type RasterOptions struct {
	// Output dimensions; zero means "same as the crop region".
	OutputWidth  int
	OutputHeight int
	// Target format; FormatUnknown means JPEG for photographic crops.
	Format  Format
	Quality int // 0 = compositor default
}

// Rasterizer produces a fixed-size encoded raster from a source image and
// a crop region.  Implementations: compositor.Compositor (pure Go) and
// adapters/vips.Backend (libvips).
type Rasterizer interface {
	Rasterize(ctx context.Context, src *SourceImage, region CropRegion, opts RasterOptions) (*EncodedAsset, error)
}

// BlobStore persists encoded assets and retrieves nothing — reads happen
// over the public URL.  Implementations live in adapters/storage/.
type BlobStore interface {
	// Store writes data under bucket/path with the given content type.
	Store(ctx context.Context, bucket, path string, data []byte, contentType string) error
	// PublicURL is pure and deterministic given bucket and path.
	PublicURL(bucket, path string) string
	// Remove deletes the given paths.  Best-effort; the session logs and
	// swallows failures during the remove flow.
	Remove(ctx context.Context, bucket string, paths []string) error
}

// Identity supplies the authenticated user identifier used to scope blob
// paths.  An empty id or an error means the upload must fail with an
// auth-category error before any store call.
type Identity interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Hook is an optional observer invoked around upload-session stages.
type Hook interface {
	BeforeStage(ctx context.Context, sessionID, stage string)
	AfterStage(ctx context.Context, sessionID, stage string, d time.Duration, err error)
}

// Registry maps Format values to Decoder/Encoder implementations.
type Registry interface {
	DecoderFor(format Format) (Decoder, bool)
	EncoderFor(format Format) (Encoder, bool)
	RegisterDecoder(format Format, d Decoder)
	RegisterEncoder(format Format, e Encoder)
}
