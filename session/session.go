// Package session orchestrates one user-initiated image change end to
// end: select source, validate, crop, rasterize, persist, notify the
// owning form.
//
// Stored blobs are named {userID}/{folderPrefix}/{unixMillis}{ext}.  The
// user prefix partitions the namespace between users; within one user the
// millisecond timestamp is the sole collision-avoidance mechanism, so two
// uploads completing in the same millisecond could overwrite each other.
// That is an accepted limitation of the current naming scheme.
package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cardex-app/imagekit/config"
	"github.com/cardex-app/imagekit/core"
	"github.com/cardex-app/imagekit/cropsurface"
	apperrors "github.com/cardex-app/imagekit/errors"
	"github.com/cardex-app/imagekit/utils"
)

// State is the session lifecycle state.
type State string

const (
	StateAwaitingInput State = "awaiting_input"
	StateValidating    State = "validating"
	StateEditing       State = "editing"
	StateRejected      State = "rejected"
	StateRasterizing   State = "rasterizing"
	StatePersisting    State = "persisting"
	StateCommitted     State = "committed"
	StateFailed        State = "failed"
)

// Stage names reported to hooks.
const (
	StageValidate  = "validate"
	StageDecode    = "decode"
	StageFetch     = "fetch"
	StageRasterize = "rasterize"
	StagePersist   = "persist"
	StageRemove    = "remove"
)

// Options is the per-field caller configuration surface.  Zero values
// fall back to the session's Config.
type Options struct {
	// FieldLabel drives the aspect-lock decision table when AspectRatio
	// is zero ("Cover Photo" → 16:9, "Profile Avatar" → 1:1).
	FieldLabel string

	MaxSizeBytes int64
	Bucket       string
	FolderPrefix string

	// AspectRatio overrides the label heuristic when non-zero.
	AspectRatio float64

	// DisplayMode is a rendering hint ("contain" or "cover") carried for
	// the display guard; the compositor ignores it.
	DisplayMode string

	// OnChange receives the public URL at commit, or "" when the remove
	// flow clears the reference.  Called exactly once per commit and
	// never on failure.
	OnChange func(url string)
}

// Deps are the collaborators a session calls out to.
type Deps struct {
	Raster   core.Rasterizer
	Registry core.Registry
	Store    core.BlobStore
	Identity core.Identity
	Logger   core.Logger
	Hooks    []core.Hook
}

// Session is the upload state machine.  Stages run strictly
// sequentially; Confirm is rejected while a prior async step for the
// same session is still in flight.  Independent sessions (several image
// fields on one form) run concurrently without shared state.
type Session struct {
	id   string
	cfg  config.Config
	opts Options
	deps Deps

	mu      sync.Mutex
	state   State
	busy    bool
	lastErr error

	src     *core.SourceImage
	surface *cropsurface.Surface

	now func() time.Time
}

// New creates a session in AwaitingInput.
func New(cfg config.Config, deps Deps, opts Options) *Session {
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	return &Session{
		id:    uuid.New().String(),
		cfg:   cfg,
		opts:  opts,
		deps:  deps,
		state: StateAwaitingInput,
		now:   time.Now,
	}
}

// ID returns the session identifier used for log correlation.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error recorded by the last rejected or failed stage.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Surface returns the crop surface, or nil outside Editing.
func (s *Session) Surface() *cropsurface.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// maxSize resolves the effective upload ceiling.
func (s *Session) maxSize() int64 {
	if s.opts.MaxSizeBytes > 0 {
		return s.opts.MaxSizeBytes
	}
	return s.cfg.MaxSizeBytes
}

func (s *Session) bucket() string {
	if s.opts.Bucket != "" {
		return s.opts.Bucket
	}
	return s.cfg.Bucket
}

func (s *Session) folderPrefix() string {
	if s.opts.FolderPrefix != "" {
		return s.opts.FolderPrefix
	}
	return s.cfg.FolderPrefix
}

func (s *Session) aspectRatio() float64 {
	if s.opts.AspectRatio > 0 {
		return s.opts.AspectRatio
	}
	return core.ResolveAspect(s.opts.FieldLabel).Ratio()
}

// Begin validates a freshly picked file and opens the crop surface.
// Type is checked before size; either rejection ends the session
// immediately and control returns to AwaitingInput so the same file can
// be reselected.
func (s *Session) Begin(ctx context.Context, filename, contentType string, declaredSize int64, r io.Reader) error {
	s.mu.Lock()
	if !s.canAcceptInput() {
		s.mu.Unlock()
		return apperrors.New(apperrors.CategoryValidate, "session.begin", apperrors.ErrSessionState)
	}
	s.state = StateValidating
	s.mu.Unlock()

	var raw []byte
	err := s.runStage(ctx, StageValidate, func() error {
		if !strings.HasPrefix(contentType, "image/") {
			return apperrors.New(apperrors.CategoryValidate, "session.validate",
				fmt.Errorf("%w: %s (%s)", apperrors.ErrInvalidType, filename, contentType))
		}
		max := s.maxSize()
		if declaredSize > max {
			return apperrors.New(apperrors.CategoryValidate, "session.validate",
				fmt.Errorf("%w: %d > %d bytes", apperrors.ErrTooLarge, declaredSize, max))
		}
		var readErr error
		raw, readErr = s.readAll(ctx, r, max)
		return readErr
	})
	if err != nil {
		s.reject(err)
		return err
	}

	return s.openEditor(ctx, raw)
}

// canAcceptInput reports whether a new source may be picked.  Rejected
// and Failed both behave as AwaitingInput for retry purposes; a
// committed session is finished.
func (s *Session) canAcceptInput() bool {
	switch s.state {
	case StateAwaitingInput, StateRejected, StateFailed:
		return true
	}
	return false
}

// readAll drains r into memory enforcing the size ceiling during the read,
// so a lying declared size cannot smuggle an oversize body through.
func (s *Session) readAll(ctx context.Context, r io.Reader, max int64) ([]byte, error) {
	lr := &utils.LimitedReader{R: r, Max: max}
	buf, err := utils.DrainReader(ctx, lr, 32*1024)
	if err != nil {
		if err == utils.ErrLimitExceeded {
			return nil, apperrors.New(apperrors.CategoryValidate, "session.validate",
				fmt.Errorf("%w: over %d bytes", apperrors.ErrTooLarge, max))
		}
		return nil, apperrors.Wrap(apperrors.CategoryValidate, "session.read", err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)
	if len(raw) == 0 {
		return nil, apperrors.New(apperrors.CategoryValidate, "session.read", apperrors.ErrEmptyInput)
	}
	return raw, nil
}

// openEditor decodes raw bytes and hands them to a fresh crop surface.
func (s *Session) openEditor(ctx context.Context, raw []byte) error {
	var src *core.SourceImage
	err := s.runStage(ctx, StageDecode, func() error {
		format := core.Format(utils.DetectFormat(raw))
		dec, ok := s.deps.Registry.DecoderFor(format)
		if !ok {
			return apperrors.New(apperrors.CategoryDecode, "session.decode", apperrors.ErrUnsupportedFormat)
		}
		decoded, decErr := dec.Decode(ctx, bytes.NewReader(raw))
		if decErr != nil {
			return decErr
		}
		decoded.Data = raw
		src = decoded
		return nil
	})
	if err != nil {
		s.fail(err)
		return err
	}

	surface := cropsurface.New(s.cfg.MinZoom, s.cfg.MaxZoom)
	if err := surface.Load(src.Width, src.Height); err != nil {
		s.fail(err)
		return err
	}
	surface.SetAspect(s.aspectRatio())

	s.mu.Lock()
	s.src = src
	s.surface = surface
	s.state = StateEditing
	s.lastErr = nil
	s.mu.Unlock()

	s.deps.Logger.Debug("session.editing",
		"session", s.id, "width", src.Width, "height", src.Height, "format", string(src.Format))
	return nil
}

// Confirm freezes the crop, rasterizes it, persists the bytes under the
// authenticated user's namespace and reports the public URL through
// OnChange.  It is rejected while a prior Confirm for this session is
// still in flight.
func (s *Session) Confirm(ctx context.Context) (*core.StoredImageRef, error) {
	s.mu.Lock()
	if s.state != StateEditing || s.busy {
		s.mu.Unlock()
		return nil, apperrors.New(apperrors.CategoryValidate, "session.confirm", apperrors.ErrSessionState)
	}
	region, err := s.surface.Confirm()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	src := s.src
	s.busy = true
	s.state = StateRasterizing
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	var asset *core.EncodedAsset
	err = s.runStage(ctx, StageRasterize, func() error {
		var rerr error
		asset, rerr = s.deps.Raster.Rasterize(ctx, src, region, core.RasterOptions{
			Quality: s.cfg.JPEGQuality,
		})
		return rerr
	})
	if err != nil {
		s.fail(err)
		return nil, err
	}

	s.mu.Lock()
	s.state = StatePersisting
	s.mu.Unlock()

	var ref *core.StoredImageRef
	err = s.runStage(ctx, StagePersist, func() error {
		userID, idErr := s.deps.Identity.CurrentUserID(ctx)
		if idErr != nil || userID == "" {
			return apperrors.New(apperrors.CategoryAuth, "session.persist", apperrors.ErrUnauthenticated)
		}

		path := s.objectPath(userID, asset.Format)
		bucket := s.bucket()

		storeCtx := ctx
		if s.cfg.StoreTimeout > 0 {
			var cancel context.CancelFunc
			storeCtx, cancel = context.WithTimeout(ctx, s.cfg.StoreTimeout)
			defer cancel()
		}
		if storeErr := s.deps.Store.Store(storeCtx, bucket, path, asset.Bytes, asset.MIMEType); storeErr != nil {
			return storeErr
		}
		ref = &core.StoredImageRef{
			URL:    s.deps.Store.PublicURL(bucket, path),
			Bucket: bucket,
			Path:   path,
		}
		return nil
	})
	if err != nil {
		s.fail(err)
		return nil, err
	}

	// Commit: notify the owning form exactly once, then tear down.
	if s.opts.OnChange != nil {
		s.opts.OnChange(ref.URL)
	}
	s.teardown(StateCommitted)
	s.deps.Logger.Info("session.committed", "session", s.id, "url", ref.URL)
	return ref, nil
}

// Cancel discards the source and crop state with no side effects.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCommitted || s.busy {
		return
	}
	if s.surface != nil {
		s.surface.Close()
		s.surface = nil
	}
	if s.src != nil {
		s.src.Release()
		s.src = nil
	}
	s.state = StateAwaitingInput
	s.lastErr = nil
}

// Remove deletes the blob behind ref best-effort and clears the owning
// record's reference regardless of the outcome.  A storage failure is
// logged, never returned: cleanup must not block the user from clearing
// the reference.
func (s *Session) Remove(ctx context.Context, ref core.StoredImageRef) {
	_ = s.runStage(ctx, StageRemove, func() error {
		rmCtx := ctx
		if s.cfg.StoreTimeout > 0 {
			var cancel context.CancelFunc
			rmCtx, cancel = context.WithTimeout(ctx, s.cfg.StoreTimeout)
			defer cancel()
		}
		if err := s.deps.Store.Remove(rmCtx, ref.Bucket, []string{ref.Path}); err != nil {
			s.deps.Logger.Warn("session.remove.storage_failed",
				"session", s.id, "bucket", ref.Bucket, "path", ref.Path, "error", err.Error())
			return err
		}
		return nil
	})

	if s.opts.OnChange != nil {
		s.opts.OnChange("")
	}
}

// objectPath builds {userID}/{folderPrefix}/{unixMillis}{ext}.
func (s *Session) objectPath(userID string, format core.Format) string {
	millis := s.now().UnixMilli()
	if prefix := s.folderPrefix(); prefix != "" {
		return fmt.Sprintf("%s/%s/%d%s", userID, strings.Trim(prefix, "/"), millis, format.Ext())
	}
	return fmt.Sprintf("%s/%d%s", userID, millis, format.Ext())
}

// reject records a validation failure.  The session is immediately
// usable again: Rejected accepts new input like AwaitingInput.
func (s *Session) reject(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.state = StateRejected
}

// fail records a stage failure, discards any held source, and returns
// the session to AwaitingInput.  No partial state survives: OnChange is
// never called on a failure path.
func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if s.surface != nil {
		s.surface.Close()
		s.surface = nil
	}
	if s.src != nil {
		s.src.Release()
		s.src = nil
	}
	s.state = StateAwaitingInput
}

// teardown releases session-scoped resources and records the terminal state.
func (s *Session) teardown(final State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surface != nil {
		s.surface.Close()
		s.surface = nil
	}
	if s.src != nil {
		s.src.Release()
		s.src = nil
	}
	s.state = final
}

// runStage executes fn bracketed by hook notifications.
func (s *Session) runStage(ctx context.Context, stage string, fn func() error) error {
	for _, h := range s.deps.Hooks {
		h.BeforeStage(ctx, s.id, stage)
	}
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	for _, h := range s.deps.Hooks {
		h.AfterStage(ctx, s.id, stage, elapsed, err)
	}
	return err
}

// nopLogger discards everything; keeps the call sites nil-safe.
type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
