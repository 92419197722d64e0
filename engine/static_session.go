package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/use-agent/specgrab/dom"
	"github.com/use-agent/specgrab/models"
)

// StaticLauncher opens sessions backed by HTTPEngine and dom.StaticPage.
type StaticLauncher struct {
	engine *HTTPEngine
}

// NewStaticLauncher returns a launcher that fetches through e.
func NewStaticLauncher(e *HTTPEngine) *StaticLauncher {
	return &StaticLauncher{engine: e}
}

func (l *StaticLauncher) Open(ctx context.Context) (dom.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeLaunch, "static session not opened", err)
	}
	empty, _ := dom.ParseStaticPage("")
	return &staticSession{engine: l.engine, page: empty}, nil
}

type staticSession struct {
	engine *HTTPEngine

	mu     sync.Mutex
	page   *dom.StaticPage
	closed bool
}

func (s *staticSession) Navigate(ctx context.Context, url string, opts dom.NavigateOptions) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	doc, err := s.engine.Fetch(ctx, url)
	if err != nil {
		return navigationError(err)
	}
	if models.IsBlockingStatus(doc.StatusCode) {
		return navigationError(fmt.Errorf("target responded with status %d", doc.StatusCode))
	}

	page, err := dom.ParseStaticPage(doc.HTML)
	if err != nil {
		return navigationError(err)
	}

	if opts.WaitSelector != "" {
		found, err := page.DeepQueryAll(ctx, opts.WaitSelector)
		if err != nil {
			return navigationError(err)
		}
		if len(found) == 0 {
			return navigationError(fmt.Errorf("element %q not present", opts.WaitSelector))
		}
	}

	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
	return nil
}

func (s *staticSession) Page() dom.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

func (s *staticSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		slog.Debug("static session closed")
	}
}

func navigationError(err error) *models.ScrapeError {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("navigation timed out: %w", err)
	}
	return models.NewScrapeError(models.ErrCodeNavigation, models.MsgNavigationFailed, err)
}

var _ dom.Launcher = (*StaticLauncher)(nil)
