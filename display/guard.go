// Package display verifies stored image URLs at render time.  A URL
// whose backing object was deleted out-of-band moves the guard into a
// controlled Broken state, letting the surrounding UI offer re-upload
// instead of a broken-image icon.
package display

import (
	"context"
	"image"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	// Header-only decode support for the probe.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Mode is the guard's display state for the current URL.
type Mode string

const (
	ModeUnknown Mode = "unknown" // not probed yet
	ModeOk      Mode = "ok"
	ModeBroken  Mode = "broken"
)

// probeReadLimit caps how much of the body the probe reads; decoding the
// image header does not need the full payload.
const probeReadLimit = 256 * 1024

// Guard tracks the load state of one image URL.  Setting a new URL
// clears any previously recorded Broken state, so a successful re-upload
// self-heals the display.
type Guard struct {
	client *http.Client

	mu   sync.Mutex
	url  string
	mode Mode

	// DisplayMode is a pass-through rendering hint ("contain"/"cover")
	// for the consumer; the guard itself ignores it.
	DisplayMode string
}

// NewGuard creates a Guard with the given probe timeout.
func NewGuard(timeout time.Duration) *Guard {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Guard{
		client: &http.Client{Timeout: timeout},
		mode:   ModeUnknown,
	}
}

// SetURL points the guard at a new URL and resets the mode.  Must be
// called whenever the rendered URL prop changes.
func (g *Guard) SetURL(url string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if url == g.url {
		return
	}
	g.url = url
	g.mode = ModeUnknown
}

// URL returns the URL currently guarded.
func (g *Guard) URL() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.url
}

// Mode returns the recorded display mode for the current URL.
func (g *Guard) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// Check probes the current URL and records Ok or Broken.  A load failure
// is any transport error, non-200 status, non-image content type, or an
// undecodable image header.  The result is discarded if the URL changed
// while the probe was in flight.
func (g *Guard) Check(ctx context.Context) Mode {
	g.mu.Lock()
	url := g.url
	g.mu.Unlock()

	if url == "" {
		return ModeUnknown
	}

	mode := ModeOk
	if err := g.probe(ctx, url); err != nil {
		mode = ModeBroken
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.url != url {
		return g.mode
	}
	g.mode = mode
	return mode
}

func (g *Guard) probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, probeReadLimit))
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return errStatus(resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return errContentType(ct)
	}

	_, _, err = image.DecodeConfig(io.LimitReader(resp.Body, probeReadLimit))
	return err
}

type errStatus int

func (e errStatus) Error() string { return http.StatusText(int(e)) }

type errContentType string

func (e errContentType) Error() string { return "not an image: " + string(e) }
