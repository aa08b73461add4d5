package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/cardex-app/imagekit/errors"
)

// BeginFromURL opens the crop editor on an already-stored image, the
// re-edit flow.  The stored URL is trusted enough to skip MIME/size
// validation of the original upload, but the fetch itself still enforces
// the content-type prefix and the size ceiling so a repointed URL cannot
// smuggle arbitrary bytes into the editor.
func (s *Session) BeginFromURL(ctx context.Context, imageURL string) error {
	s.mu.Lock()
	if !s.canAcceptInput() {
		s.mu.Unlock()
		return apperrors.New(apperrors.CategoryValidate, "session.begin_url", apperrors.ErrSessionState)
	}
	s.state = StateValidating
	s.mu.Unlock()

	var raw []byte
	err := s.runStage(ctx, StageFetch, func() error {
		var fetchErr error
		raw, fetchErr = s.fetch(ctx, imageURL)
		return fetchErr
	})
	if err != nil {
		s.fail(err)
		return err
	}

	return s.openEditor(ctx, raw)
}

func (s *Session) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryValidate, "session.fetch",
			fmt.Errorf("invalid url: %w", err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, apperrors.New(apperrors.CategoryValidate, "session.fetch",
			fmt.Errorf("unsupported url scheme %q", parsed.Scheme))
	}

	fetchCtx := ctx
	if s.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.ProbeTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryValidate, "session.fetch", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, apperrors.Transient("session.fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Transient("session.fetch",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, apperrors.New(apperrors.CategoryValidate, "session.fetch",
			fmt.Errorf("%w: %s", apperrors.ErrInvalidType, ct))
	}

	return s.readAll(fetchCtx, resp.Body, s.maxSize())
}
