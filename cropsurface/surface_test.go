package cropsurface_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cardex-app/imagekit/cropsurface"
)

func TestLifecycle(t *testing.T) {
	s := cropsurface.New(1, 3)
	if s.State() != cropsurface.StateIdle {
		t.Fatalf("initial state: %s", s.State())
	}
	if s.CurrentRegion() != nil {
		t.Fatal("CurrentRegion must be nil in Idle")
	}

	if err := s.Load(800, 600); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.State() != cropsurface.StatePreviewing {
		t.Fatalf("after Load: %s", s.State())
	}
	r := s.CurrentRegion()
	if r == nil {
		t.Fatal("CurrentRegion nil after Load")
	}
	// Default crop at zoom 1 with no aspect lock is the whole source.
	if r.X != 0 || r.Y != 0 || r.Width != 800 || r.Height != 600 {
		t.Errorf("default region: %+v", *r)
	}

	s.SetZoom(2)
	if s.State() != cropsurface.StateAdjusting {
		t.Fatalf("after SetZoom: %s", s.State())
	}

	s.Release()
	if s.State() != cropsurface.StateReady {
		t.Fatalf("after Release: %s", s.State())
	}
	region, err := s.Confirm()
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if region.Width != 400 || region.Height != 300 {
		t.Errorf("zoom-2 region: %+v", region)
	}

	s.Close()
	if s.State() != cropsurface.StateClosed {
		t.Fatalf("after Close: %s", s.State())
	}
	if s.CurrentRegion() != nil {
		t.Error("CurrentRegion must be nil in Closed")
	}
}

func TestConfirmGatedOnReady(t *testing.T) {
	s := cropsurface.New(1, 3)
	if _, err := s.Confirm(); err == nil {
		t.Error("Confirm in Idle must fail")
	}

	if err := s.Load(100, 100); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := s.Confirm(); err == nil {
		t.Error("Confirm in Previewing must fail")
	}

	s.SetZoom(1.5)
	if _, err := s.Confirm(); err == nil {
		t.Error("Confirm in Adjusting must fail")
	}

	s.Release()
	if _, err := s.Confirm(); err != nil {
		t.Errorf("Confirm in Ready: %v", err)
	}
}

func TestLoadResetsPriorCropMath(t *testing.T) {
	s := cropsurface.New(1, 3)
	if err := s.Load(1000, 1000); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.SetZoom(3)
	s.Pan(-300, -300)
	s.Release()

	// Loading a different image must start from a fresh default.
	if err := s.Load(640, 480); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if s.State() != cropsurface.StatePreviewing {
		t.Fatalf("state after reload: %s", s.State())
	}
	if z := s.Zoom(); z != 1 {
		t.Errorf("zoom after reload: %v", z)
	}
	r := s.CurrentRegion()
	if r.X != 0 || r.Y != 0 || r.Width != 640 || r.Height != 480 {
		t.Errorf("region after reload: %+v", *r)
	}
}

func TestZoomClamped(t *testing.T) {
	s := cropsurface.New(1, 3)
	if err := s.Load(100, 100); err != nil {
		t.Fatalf("Load: %v", err)
	}

	s.SetZoom(10)
	if z := s.Zoom(); z != 3 {
		t.Errorf("zoom above max: got %v, want 3", z)
	}
	s.SetZoom(0.2)
	if z := s.Zoom(); z != 1 {
		t.Errorf("zoom below min: got %v, want 1", z)
	}
}

func TestAspectLock(t *testing.T) {
	s := cropsurface.New(1, 3)
	if err := s.Load(1000, 1000); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.SetAspect(16.0 / 9.0)
	s.Release()

	region, err := s.Confirm()
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	got := float64(region.Width) / float64(region.Height)
	if math.Abs(got-16.0/9.0) > 0.01 {
		t.Errorf("aspect ratio: got %v, want %v", got, 16.0/9.0)
	}
	if region.Width != 1000 {
		t.Errorf("16:9 frame in a square source should span full width, got %d", region.Width)
	}
}

// TestRegionInvariant drives the surface with random gestures and checks
// that every emitted region stays inside the source.
func TestRegionInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		srcW := 50 + rng.Intn(2000)
		srcH := 50 + rng.Intn(2000)

		s := cropsurface.New(1, 3)
		if err := s.Load(srcW, srcH); err != nil {
			t.Fatalf("Load %dx%d: %v", srcW, srcH, err)
		}
		switch trial % 3 {
		case 1:
			s.SetAspect(16.0 / 9.0)
		case 2:
			s.SetAspect(1)
		}

		for gesture := 0; gesture < 40; gesture++ {
			if rng.Intn(2) == 0 {
				s.SetZoom(1 + rng.Float64()*4)
			} else {
				s.Pan(rng.Float64()*2000-1000, rng.Float64()*2000-1000)
			}

			r := s.CurrentRegion()
			if r == nil {
				t.Fatal("nil region while loaded")
			}
			if r.Width <= 0 || r.Height <= 0 ||
				r.X < 0 || r.Y < 0 ||
				r.X+r.Width > srcW || r.Y+r.Height > srcH {
				t.Fatalf("invariant violated: src %dx%d region %+v", srcW, srcH, *r)
			}
		}

		s.Release()
		if _, err := s.Confirm(); err != nil {
			t.Fatalf("Confirm after gestures: %v", err)
		}
	}
}

func TestLoadRejectsBadDimensions(t *testing.T) {
	s := cropsurface.New(1, 3)
	if err := s.Load(0, 100); err == nil {
		t.Error("zero width must fail")
	}
	if err := s.Load(100, -1); err == nil {
		t.Error("negative height must fail")
	}
}
