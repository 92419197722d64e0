// Package browser drives a real Chromium through go-rod. Each Session owns
// one browser process and one page and is torn down exactly once.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/specgrab/config"
	"github.com/use-agent/specgrab/dom"
	"github.com/use-agent/specgrab/models"
	"github.com/ysmood/gson"
)

// Launcher starts one sandboxed browser per Open call.
type Launcher struct {
	cfg config.BrowserConfig
}

// NewLauncher returns a Launcher using the given launch and viewport config.
func NewLauncher(cfg config.BrowserConfig) *Launcher {
	return &Launcher{cfg: cfg}
}

// Session is a single browser process with a single page.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter

	closeOnce sync.Once
}

// Open launches the browser and prepares the page.
//
// Order matters: stealth JS, extra headers and the request filter only
// apply to navigations that happen after they are installed, so all of
// them are set up here, before Navigate is ever called.
func (l *Launcher) Open(ctx context.Context) (dom.Session, error) {
	ln := launcher.New().
		Headless(l.cfg.Headless).
		NoSandbox(l.cfg.NoSandbox)

	if l.cfg.BrowserBin != "" {
		ln = ln.Bin(l.cfg.BrowserBin)
	}
	if l.cfg.Proxy != "" {
		ln = ln.Proxy(l.cfg.Proxy)
	}

	ln.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	ln.Delete(flags.Flag("enable-automation"))
	ln.Set(flags.Flag("disable-dev-shm-usage"))
	ln.Set(flags.Flag("disable-extensions"))
	ln.Set(flags.Flag("disable-component-update"))
	ln.Set(flags.Flag("disable-default-apps"))
	ln.Set(flags.Flag("no-first-run"))
	ln.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", l.cfg.ViewportWidth, l.cfg.ViewportHeight))

	controlURL, err := launch(ln)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeLaunch, "failed to launch browser", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	s := &Session{launcher: ln}

	s.browser = rod.New().ControlURL(controlURL).Context(ctx)
	if err := s.browser.Connect(); err != nil {
		s.browser = nil
		s.Close()
		return nil, models.NewScrapeError(models.ErrCodeLaunch, "failed to connect to browser", err)
	}
	// Detach from the request context so teardown still works after it expires.
	s.browser = s.browser.Context(context.Background())

	if err := s.preparePage(l.cfg); err != nil {
		s.Close()
		return nil, models.NewScrapeError(models.ErrCodeLaunch, "failed to prepare page", err)
	}
	return s, nil
}

// launch starts the browser process. On failure it kills whatever was
// started and removes the user data dir. launcher.Cleanup is not used here:
// it blocks until the process exits, and some failure paths return before
// the launcher ever watches the process.
func launch(ln *launcher.Launcher) (string, error) {
	u, err := ln.Launch()
	if err == nil {
		return u, nil
	}
	if ln.PID() != 0 {
		ln.Kill()
	}
	if dir := ln.Get(flags.UserDataDir); dir != "" {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			slog.Warn("failed to remove browser user data dir", "dir", dir, "error", rmErr)
		}
	}
	return "", err
}

// preparePage opens the page and applies viewport, user agent, stealth,
// headers and the request filter.
func (s *Session) preparePage(cfg config.BrowserConfig) error {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return err
	}
	s.page = page

	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}

	if cfg.UserAgent != "" {
		if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}

	if cfg.Stealth {
		if _, err := s.page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if cfg.AcceptLanguage != "" {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{"Accept-Language": gson.New(cfg.AcceptLanguage)},
		}).Call(s.page); err != nil {
			slog.Warn("failed to set extra headers", "error", err)
		}
	}

	s.router = mountRequestFilter(s.page, newRequestFilter(cfg.BlockedResourceTypes, cfg.BlockAds))
	return nil
}

// Page returns the session's page.
func (s *Session) Page() dom.Page {
	return &rodPage{page: s.page}
}

// Navigate loads url and waits for opts.WaitSelector, all within opts.Timeout.
// Every failure, including the timeout, is a navigation failure.
func (s *Session) Navigate(ctx context.Context, url string, opts dom.NavigateOptions) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	p := s.page.Context(ctx)

	if err := p.Navigate(url); err != nil {
		return navigationError(err)
	}
	if err := p.WaitLoad(); err != nil {
		return navigationError(err)
	}

	if status := responseStatus(p); models.IsBlockingStatus(status) {
		return navigationError(fmt.Errorf("target responded with status %d", status))
	}

	if opts.WaitSelector != "" {
		if _, err := p.Element(opts.WaitSelector); err != nil {
			return navigationError(fmt.Errorf("waiting for %q: %w", opts.WaitSelector, err))
		}
	}
	return nil
}

// Close tears the session down once. Failures are logged only.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.router != nil {
			if err := s.router.Stop(); err != nil {
				slog.Warn("session teardown: failed to stop request filter", "error", err)
			}
		}
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				slog.Warn("session teardown: failed to close page", "error", err)
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				slog.Warn("session teardown: failed to close browser", "error", err)
			}
		}
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
		slog.Debug("browser session closed")
	})
}

// responseStatus reads the main document status without CDP listeners.
// Zero means unknown.
func responseStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

func navigationError(err error) *models.ScrapeError {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("navigation timed out: %w", err)
	}
	return models.NewScrapeError(models.ErrCodeNavigation, models.MsgNavigationFailed, err)
}

var _ dom.Launcher = (*Launcher)(nil)
var _ dom.Session = (*Session)(nil)
