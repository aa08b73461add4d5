package imagekit_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	imagekit "github.com/cardex-app/imagekit"
	"github.com/cardex-app/imagekit/display"
	"github.com/cardex-app/imagekit/hooks"
	"github.com/cardex-app/imagekit/session"
)

func newClient(t *testing.T) (*imagekit.Client, string) {
	t.Helper()
	cfg := imagekit.DefaultConfig()
	root := t.TempDir()
	cfg.Local.RootDir = root

	store, err := imagekit.NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return imagekit.New(cfg, store, imagekit.StaticIdentity("user-7")), root
}

func jpegFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

// TestUploadEndToEnd runs the full flow against the local store: pick,
// crop, confirm, and verify the stored asset on disk.
func TestUploadEndToEnd(t *testing.T) {
	client, root := newClient(t)

	metrics := hooks.NewInMemoryMetrics()
	client.AddHook(hooks.NewMetricsHook(metrics))

	var changes []string
	sess := client.NewSession(session.Options{
		FieldLabel: "Profile Photo",
		OnChange:   func(url string) { changes = append(changes, url) },
	})

	raw := jpegFixture(t, 640, 480)
	ctx := context.Background()
	if err := sess.Begin(ctx, "me.jpg", "image/jpeg", int64(len(raw)), bytes.NewReader(raw)); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	surface := sess.Surface()
	surface.SetZoom(1.5)
	surface.Pan(30, -20)
	surface.Release()

	ref, err := sess.Confirm(ctx)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if !strings.HasPrefix(ref.Path, "user-7/") || !strings.HasSuffix(ref.Path, ".jpg") {
		t.Errorf("path: %s", ref.Path)
	}
	if len(changes) != 1 || changes[0] != ref.URL {
		t.Errorf("onChange calls: %v", changes)
	}

	data, err := os.ReadFile(filepath.Join(root, ref.Bucket, ref.Path))
	if err != nil {
		t.Fatalf("stored object missing: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode stored object: %v", err)
	}
	// Avatar field: square crop, aspect-fitted into 640x480 at zoom 1.5.
	b := decoded.Bounds()
	if b.Dx() != b.Dy() {
		t.Errorf("stored crop not square: %dx%d", b.Dx(), b.Dy())
	}

	if calls := metrics.Snapshot().StageCalls[session.StagePersist]; calls != 1 {
		t.Errorf("persist stage calls: %d", calls)
	}

	// Remove round trip.
	cleanup := client.NewSession(session.Options{
		OnChange: func(url string) { changes = append(changes, url) },
	})
	cleanup.Remove(ctx, *ref)
	if _, err := os.Stat(filepath.Join(root, ref.Bucket, ref.Path)); err == nil {
		t.Error("object still on disk after Remove")
	}
	if changes[len(changes)-1] != "" {
		t.Errorf("remove must clear the reference, got %q", changes[len(changes)-1])
	}
}

func TestDisplayGuardSelfHeal(t *testing.T) {
	client, _ := newClient(t)

	img := jpegFixture(t, 32, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/new.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(img)
	}))
	defer srv.Close()

	guard := client.NewDisplayGuard()
	guard.SetURL(srv.URL + "/deleted.jpg")
	if mode := guard.Check(context.Background()); mode != display.ModeBroken {
		t.Fatalf("mode for deleted object: %s", mode)
	}

	guard.SetURL(srv.URL + "/new.jpg")
	if mode := guard.Check(context.Background()); mode != display.ModeOk {
		t.Fatalf("mode after re-upload: %s", mode)
	}
}

func TestClientComposite(t *testing.T) {
	client, _ := newClient(t)

	fg := image.NewRGBA(image.Rect(0, 0, 64, 64))
	asset, err := client.CompositeWithBackground(context.Background(), fg, nil, 0.3, 128, color.White)
	if err != nil {
		t.Fatalf("CompositeWithBackground: %v", err)
	}
	if asset.Width != 128 || asset.Height != 128 {
		t.Errorf("dimensions: %dx%d", asset.Width, asset.Height)
	}
	if asset.MIMEType != "image/png" {
		t.Errorf("mime: %s", asset.MIMEType)
	}
}
