// Package cropsurface holds the crop/zoom/pan view-state for one editing
// session.  It is a bounded state machine over numeric input clamped to
// always-valid ranges; it performs no I/O and has no failure modes of
// its own beyond state-ordering violations.
package cropsurface

import (
	"math"

	"github.com/cardex-app/imagekit/core"
	apperrors "github.com/cardex-app/imagekit/errors"
)

// State is the surface lifecycle state.
type State string

const (
	StateIdle       State = "idle"       // no image loaded
	StatePreviewing State = "previewing" // image loaded, default crop/zoom
	StateAdjusting  State = "adjusting"  // a gesture is in progress
	StateReady      State = "ready"      // a valid region is frozen
	StateClosed     State = "closed"     // terminal
)

// Surface tracks the crop frame over a source bitmap.  The frame is kept
// in float source-pixel coordinates; CurrentRegion rounds and clamps it
// into an integer CropRegion that always satisfies the region invariant.
type Surface struct {
	state State

	srcW, srcH int

	// Aspect lock: width/height ratio; 0 means unlocked (frame follows
	// the source's own shape).
	aspect float64

	zoom             float64
	minZoom, maxZoom float64

	// Frame centre in source coordinates.
	cx, cy float64

	// Region frozen at the last gesture release; nil before the first.
	frozen *core.CropRegion
}

// New returns a Surface in Idle with the given zoom bounds.
func New(minZoom, maxZoom float64) *Surface {
	if minZoom < 1 {
		minZoom = 1
	}
	if maxZoom < minZoom {
		maxZoom = minZoom
	}
	return &Surface{
		state:   StateIdle,
		minZoom: minZoom,
		maxZoom: maxZoom,
		zoom:    minZoom,
	}
}

// State returns the current lifecycle state.
func (s *Surface) State() State { return s.state }

// Load resets the surface for a new source bitmap: centered
// viewport-fitting frame, zoom at minimum.  Loading always starts from a
// fresh default regardless of prior state, so crop math can never leak
// between images.  Loading into a Closed surface is an error; closed
// surfaces are discarded, not reused.
func (s *Surface) Load(srcW, srcH int) error {
	if s.state == StateClosed {
		return apperrors.New(apperrors.CategorySurface, "surface.load", apperrors.ErrSessionState)
	}
	if srcW <= 0 || srcH <= 0 {
		return apperrors.New(apperrors.CategorySurface, "surface.load", apperrors.ErrZeroSurface)
	}
	s.srcW, s.srcH = srcW, srcH
	s.zoom = s.minZoom
	s.cx = float64(srcW) / 2
	s.cy = float64(srcH) / 2
	s.frozen = nil
	s.state = StatePreviewing
	return nil
}

// SetAspect locks the frame's width/height ratio.  Zero unlocks.  The
// frame recenters but keeps the current zoom.
func (s *Surface) SetAspect(ratio float64) {
	if s.state == StateIdle || s.state == StateClosed {
		return
	}
	if ratio < 0 {
		ratio = 0
	}
	s.aspect = ratio
	s.clampCenter()
}

// SetZoom clamps z into [minZoom, maxZoom] and applies it.  Any zoom
// change counts as a gesture: Previewing/Ready move to Adjusting.
func (s *Surface) SetZoom(z float64) {
	if s.state == StateIdle || s.state == StateClosed {
		return
	}
	if z < s.minZoom {
		z = s.minZoom
	}
	if z > s.maxZoom {
		z = s.maxZoom
	}
	s.zoom = z
	s.clampCenter()
	s.state = StateAdjusting
}

// Zoom returns the current zoom level.
func (s *Surface) Zoom() float64 { return s.zoom }

// Pan moves the frame centre by (dx, dy) source pixels, clamped so the
// frame stays inside the source.  Counts as a gesture.
func (s *Surface) Pan(dx, dy float64) {
	if s.state == StateIdle || s.state == StateClosed {
		return
	}
	s.cx += dx
	s.cy += dy
	s.clampCenter()
	s.state = StateAdjusting
}

// Release ends the current gesture: the source-pixel region is recomputed
// from the viewport transform and frozen, and the surface becomes Ready.
// Releasing from Previewing freezes the default frame.
func (s *Surface) Release() {
	if s.state != StateAdjusting && s.state != StatePreviewing {
		return
	}
	r := s.computeRegion()
	s.frozen = &r
	s.state = StateReady
}

// CurrentRegion returns the selected source-pixel rectangle, or nil in
// Idle/Closed.  While a gesture is in progress the region tracks the live
// frame; in Ready it is the frozen copy.
func (s *Surface) CurrentRegion() *core.CropRegion {
	switch s.state {
	case StateIdle, StateClosed:
		return nil
	case StateReady:
		r := *s.frozen
		return &r
	default:
		r := s.computeRegion()
		return &r
	}
}

// Confirm returns the frozen region.  It fails unless the surface is
// Ready — callers disable their confirm action otherwise.
func (s *Surface) Confirm() (core.CropRegion, error) {
	if s.state != StateReady || s.frozen == nil {
		return core.CropRegion{}, apperrors.New(apperrors.CategorySurface, "surface.confirm", apperrors.ErrSessionState)
	}
	return *s.frozen, nil
}

// Close moves the surface to its terminal state.  The instance is
// discarded by the owning session afterwards.
func (s *Surface) Close() {
	s.state = StateClosed
	s.frozen = nil
}

// ── geometry ──────────────────────────────────────────────────────────────────

// frameSize returns the frame dimensions at the current zoom.  The base
// frame is the largest rectangle of the locked aspect that fits inside
// the source; zooming in shrinks the frame (selecting fewer source
// pixels renders them larger).
func (s *Surface) frameSize() (fw, fh float64) {
	w := float64(s.srcW)
	h := float64(s.srcH)
	if s.aspect > 0 {
		if w/h > s.aspect {
			w = h * s.aspect
		} else {
			h = w / s.aspect
		}
	}
	return w / s.zoom, h / s.zoom
}

func (s *Surface) clampCenter() {
	fw, fh := s.frameSize()
	s.cx = clamp(s.cx, fw/2, float64(s.srcW)-fw/2)
	s.cy = clamp(s.cy, fh/2, float64(s.srcH)-fh/2)
}

// computeRegion rounds the float frame into an integer region that
// always satisfies the invariant: positive size, fully inside the source.
func (s *Surface) computeRegion() core.CropRegion {
	fw, fh := s.frameSize()

	w := int(math.Round(fw))
	h := int(math.Round(fh))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if w > s.srcW {
		w = s.srcW
	}
	if h > s.srcH {
		h = s.srcH
	}

	x := int(math.Round(s.cx - fw/2))
	y := int(math.Round(s.cy - fh/2))
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x+w > s.srcW {
		x = s.srcW - w
	}
	if y+h > s.srcH {
		y = s.srcH - h
	}

	return core.CropRegion{X: x, Y: y, Width: w, Height: h}
}

func clamp(v, lo, hi float64) float64 {
	if lo > hi {
		// Frame larger than source on this axis; pin to the midpoint.
		return (lo + hi) / 2
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
