package compositor_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"testing"

	"github.com/cardex-app/imagekit/adapters/decoder"
	"github.com/cardex-app/imagekit/adapters/encoder"
	"github.com/cardex-app/imagekit/compositor"
	"github.com/cardex-app/imagekit/core"
	apperrors "github.com/cardex-app/imagekit/errors"
)

func newRegistry() *core.DefaultRegistry {
	reg := core.NewRegistry()
	reg.RegisterDecoder(core.FormatJPEG, decoder.NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, decoder.NewPNG())
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(90))
	reg.RegisterEncoder(core.FormatPNG, encoder.NewPNG())
	return reg
}

func newGradientSource(t *testing.T, w, h int) *core.SourceImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 77, A: 255})
		}
	}
	return &core.SourceImage{Image: img, Width: w, Height: h, Format: core.FormatPNG}
}

func TestRasterize_DefaultOutputSize(t *testing.T) {
	comp := compositor.New(newRegistry(), 90)
	src := newGradientSource(t, 400, 400)

	asset, err := comp.Rasterize(context.Background(), src,
		core.CropRegion{X: 10, Y: 10, Width: 200, Height: 200}, core.RasterOptions{})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if asset.Width != 200 || asset.Height != 200 {
		t.Errorf("dimensions: got %dx%d, want 200x200", asset.Width, asset.Height)
	}
	if asset.MIMEType != "image/jpeg" {
		t.Errorf("mime: got %s, want image/jpeg", asset.MIMEType)
	}

	decoded, _, err := image.Decode(bytes.NewReader(asset.Bytes))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Errorf("decoded dimensions: got %dx%d, want 200x200", b.Dx(), b.Dy())
	}
}

func TestRasterize_OutputSizeOverride(t *testing.T) {
	comp := compositor.New(newRegistry(), 90)
	src := newGradientSource(t, 300, 300)

	asset, err := comp.Rasterize(context.Background(), src,
		core.CropRegion{X: 0, Y: 0, Width: 300, Height: 300},
		core.RasterOptions{OutputWidth: 100, OutputHeight: 50})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if asset.Width != 100 || asset.Height != 50 {
		t.Errorf("dimensions: got %dx%d, want 100x50", asset.Width, asset.Height)
	}
}

func TestRasterize_Determinism(t *testing.T) {
	comp := compositor.New(newRegistry(), 90)
	src := newGradientSource(t, 256, 256)
	region := core.CropRegion{X: 32, Y: 16, Width: 128, Height: 128}

	a, err := comp.Rasterize(context.Background(), src, region, core.RasterOptions{})
	if err != nil {
		t.Fatalf("first Rasterize: %v", err)
	}
	b, err := comp.Rasterize(context.Background(), src, region, core.RasterOptions{})
	if err != nil {
		t.Fatalf("second Rasterize: %v", err)
	}

	imgA, _, err := image.Decode(bytes.NewReader(a.Bytes))
	if err != nil {
		t.Fatalf("decode a: %v", err)
	}
	imgB, _, err := image.Decode(bytes.NewReader(b.Bytes))
	if err != nil {
		t.Fatalf("decode b: %v", err)
	}

	bounds := imgA.Bounds()
	if bounds != imgB.Bounds() {
		t.Fatalf("bounds differ: %v vs %v", bounds, imgB.Bounds())
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if imgA.At(x, y) != imgB.At(x, y) {
				t.Fatalf("pixel (%d,%d) differs", x, y)
			}
		}
	}
}

func TestRasterize_InvalidRegion(t *testing.T) {
	comp := compositor.New(newRegistry(), 90)
	src := newGradientSource(t, 100, 100)

	cases := []core.CropRegion{
		{X: -1, Y: 0, Width: 50, Height: 50},
		{X: 0, Y: 0, Width: 0, Height: 50},
		{X: 60, Y: 0, Width: 50, Height: 50},
		{X: 0, Y: 90, Width: 10, Height: 20},
	}
	for _, region := range cases {
		_, err := comp.Rasterize(context.Background(), src, region, core.RasterOptions{})
		if !apperrors.IsCategory(err, apperrors.CategorySurface) {
			t.Errorf("region %v: got %v, want surface-category error", region, err)
		}
	}
}

func TestRasterize_ZeroSurface(t *testing.T) {
	comp := compositor.New(newRegistry(), 90)
	src := newGradientSource(t, 100, 100)

	_, err := comp.Rasterize(context.Background(), src,
		core.CropRegion{X: 0, Y: 0, Width: 50, Height: 50},
		core.RasterOptions{OutputWidth: 0, OutputHeight: 40})
	if !apperrors.IsCategory(err, apperrors.CategorySurface) {
		t.Fatalf("got %v, want surface-category error", err)
	}
}

func TestRasterize_DecodeErrorFromBytes(t *testing.T) {
	comp := compositor.New(newRegistry(), 90)
	src := &core.SourceImage{Data: []byte("definitely not an image")}

	_, err := comp.Rasterize(context.Background(), src,
		core.CropRegion{X: 0, Y: 0, Width: 10, Height: 10}, core.RasterOptions{})
	if !apperrors.IsCategory(err, apperrors.CategoryDecode) {
		t.Fatalf("got %v, want decode-category error", err)
	}
}

func TestRasterize_DecodesRawBytesLazily(t *testing.T) {
	// A source holding only encoded bytes is decoded on demand.
	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	src := &core.SourceImage{Data: buf.Bytes()}

	comp := compositor.New(newRegistry(), 90)
	asset, err := comp.Rasterize(context.Background(), src,
		core.CropRegion{X: 0, Y: 0, Width: 80, Height: 60}, core.RasterOptions{})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if asset.Width != 80 || asset.Height != 60 {
		t.Errorf("dimensions: got %dx%d, want 80x60", asset.Width, asset.Height)
	}
	if src.Width != 80 || src.Height != 60 {
		t.Errorf("source dims not backfilled: %dx%d", src.Width, src.Height)
	}
}

func TestCompositeWithBackground(t *testing.T) {
	comp := compositor.New(newRegistry(), 90)

	fg := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			fg.Set(x, y, color.RGBA{A: 255})
		}
	}
	bg := newGradientSource(t, 640, 480).Image

	asset, err := comp.CompositeWithBackground(context.Background(), fg, bg, 0.3, 256, color.White)
	if err != nil {
		t.Fatalf("CompositeWithBackground: %v", err)
	}
	if asset.Format != core.FormatPNG {
		t.Errorf("format: got %s, want png", asset.Format)
	}
	if asset.Width != 256 || asset.Height != 256 {
		t.Errorf("dimensions: got %dx%d, want 256x256", asset.Width, asset.Height)
	}
	decoded, err := png.Decode(bytes.NewReader(asset.Bytes))
	if err != nil {
		t.Fatalf("decode png output: %v", err)
	}
	// Foreground is opaque black and covers the whole canvas.
	r, g, b, _ := decoded.At(128, 128).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("foreground not on top: got rgb(%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestCompositeWithBackground_NoBackground(t *testing.T) {
	comp := compositor.New(newRegistry(), 90)
	fg := image.NewRGBA(image.Rect(0, 0, 64, 64)) // fully transparent

	asset, err := comp.CompositeWithBackground(context.Background(), fg, nil, 0.5, 64, color.White)
	if err != nil {
		t.Fatalf("CompositeWithBackground: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(asset.Bytes))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// With a transparent foreground the white fill plate shows through.
	r, g, b, _ := decoded.At(32, 32).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("fill plate not visible: got rgb(%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestCompositeWithBackground_Errors(t *testing.T) {
	comp := compositor.New(newRegistry(), 90)
	fg := image.NewRGBA(image.Rect(0, 0, 8, 8))

	if _, err := comp.CompositeWithBackground(context.Background(), fg, nil, 1, 0, color.White); err == nil {
		t.Error("zero size: expected error")
	}
	if _, err := comp.CompositeWithBackground(context.Background(), nil, nil, 1, 64, color.White); err == nil {
		t.Error("nil foreground: expected error")
	}
}
