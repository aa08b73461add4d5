// Package imagekit implements the image capture-and-crop pipeline behind
// Card-Ex image fields: validate a picked file, crop/zoom interactively,
// rasterize the selection to a fixed-size asset, persist it to a blob
// store under the user's namespace, and guard the stored URL at render
// time.
package imagekit

import (
	"context"
	"image"
	"image/color"
	"os"

	"github.com/cardex-app/imagekit/adapters/decoder"
	"github.com/cardex-app/imagekit/adapters/encoder"
	"github.com/cardex-app/imagekit/adapters/storage"
	"github.com/cardex-app/imagekit/compositor"
	"github.com/cardex-app/imagekit/config"
	"github.com/cardex-app/imagekit/core"
	"github.com/cardex-app/imagekit/display"
	"github.com/cardex-app/imagekit/session"
)

// Re-export Format constants for convenience.
const (
	JPEG = core.FormatJPEG
	PNG  = core.FormatPNG
	WebP = core.FormatWebP
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// ResolveAspect maps a field label to its aspect preset; see core.ResolveAspect.
func ResolveAspect(fieldLabel string) core.AspectPreset { return core.ResolveAspect(fieldLabel) }

// Client is the primary entry point.  It owns the codec registry, the
// rasterizer, and the shared collaborators, and mints per-field upload
// sessions and display guards.
type Client struct {
	cfg      config.Config
	reg      *core.DefaultRegistry
	comp     *compositor.Compositor
	raster   core.Rasterizer
	store    core.BlobStore
	identity core.Identity
	logger   core.Logger
	hooks    []core.Hook
}

// New creates a fully wired Client with JPEG, PNG, and WebP codecs
// registered and the pure-Go compositor as the default rasterizer.
func New(cfg config.Config, store core.BlobStore, identity core.Identity) *Client {
	reg := core.NewRegistry()
	reg.RegisterDecoder(core.FormatJPEG, decoder.NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, decoder.NewPNG())
	reg.RegisterDecoder(core.FormatWebP, decoder.NewWebP())
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(cfg.JPEGQuality))
	reg.RegisterEncoder(core.FormatPNG, encoder.NewPNG())
	reg.RegisterEncoder(core.FormatWebP, encoder.NewWebP(cfg.JPEGQuality))

	comp := compositor.New(reg, cfg.JPEGQuality)
	return &Client{
		cfg:      cfg,
		reg:      reg,
		comp:     comp,
		raster:   comp,
		store:    store,
		identity: identity,
	}
}

// SetLogger attaches a structured logger shared by new sessions.
func (c *Client) SetLogger(l core.Logger) { c.logger = l }

// AddHook registers an observer for session stage events.
func (c *Client) AddHook(h core.Hook) { c.hooks = append(c.hooks, h) }

// SetRasterizer swaps the rasterizer backend, e.g. for the libvips
// fast path in adapters/vips.
func (c *Client) SetRasterizer(r core.Rasterizer) { c.raster = r }

// Registry returns the codec registry so callers can register custom
// decoders/encoders after construction.
func (c *Client) Registry() core.Registry { return c.reg }

// NewSession mints an upload session for one image field.
func (c *Client) NewSession(opts session.Options) *session.Session {
	return session.New(c.cfg, session.Deps{
		Raster:   c.raster,
		Registry: c.reg,
		Store:    c.store,
		Identity: c.identity,
		Logger:   c.logger,
		Hooks:    c.hooks,
	}, opts)
}

// NewDisplayGuard mints a guard for rendering a stored URL.
func (c *Client) NewDisplayGuard() *display.Guard {
	return display.NewGuard(c.cfg.ProbeTimeout)
}

// Rasterize exposes the configured rasterizer directly, for callers that
// already hold a source and region outside a session.
func (c *Client) Rasterize(ctx context.Context, src *core.SourceImage, region core.CropRegion, opts core.RasterOptions) (*core.EncodedAsset, error) {
	return c.raster.Rasterize(ctx, src, region, opts)
}

// CompositeWithBackground produces the logo-behind-QR decoration: fill
// colour base, background plate at the given opacity, foreground at full
// opacity, PNG-encoded.
func (c *Client) CompositeWithBackground(ctx context.Context, fg, bg image.Image, opacity float64, size int, fill color.Color) (*core.EncodedAsset, error) {
	return c.comp.CompositeWithBackground(ctx, fg, bg, opacity, size, fill)
}

// NewStore builds the blob store selected by cfg.Storage.
func NewStore(cfg config.Config) (core.BlobStore, error) {
	switch cfg.Storage {
	case config.StorageMinio:
		return storage.NewMinio(cfg.Minio)
	default:
		return storage.NewLocal(cfg.Local.RootDir, os.FileMode(cfg.Local.Permissions))
	}
}

// StaticIdentity is a fixed-user Identity, useful for tests and for
// callers that resolve the user before constructing the client.
type StaticIdentity string

func (s StaticIdentity) CurrentUserID(ctx context.Context) (string, error) {
	return string(s), nil
}
