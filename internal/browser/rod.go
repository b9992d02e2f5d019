package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ternarybob/arbor"
)

// setValueJS assigns the value and fires change so listeners see the edit
const setValueJS = `function (v) {
	this.value = v;
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
	return this.value;
}`

// RodSession drives Chrome with go-rod
type RodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	opts     Options
	logger   arbor.ILogger
}

// NewRodSession launches Chrome with go-rod's launcher and opens a blank page
func NewRodSession(opts Options, logger arbor.ILogger) (*RodSession, error) {
	l := launcher.New().
		Headless(opts.Headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("window-size", fmt.Sprintf("%d,%d", opts.WindowWidth, opts.WindowHeight))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  opts.WindowWidth,
		Height: opts.WindowHeight,
	}); err != nil {
		logger.Warn().Err(err).Msg("Failed to set viewport")
	}

	return &RodSession{
		launcher: l,
		browser:  browser,
		page:     page,
		opts:     opts,
		logger:   logger,
	}, nil
}

// bound returns a page clone bounded by ctx and the session timeout.
// Callers must call CancelTimeout on the result.
func (s *RodSession) bound(ctx context.Context) *rod.Page {
	return s.page.Context(ctx).Timeout(s.opts.Timeout)
}

func (s *RodSession) element(page *rod.Page, selector string) (*rod.Element, error) {
	els, err := page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	if els.Empty() {
		return nil, notFound(selector)
	}
	return els.First(), nil
}

func (s *RodSession) Navigate(ctx context.Context, url string) error {
	page := s.bound(ctx)
	defer page.CancelTimeout()

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed waiting for %s to load: %w", url, err)
	}
	return nil
}

func (s *RodSession) Click(ctx context.Context, selector string) error {
	page := s.bound(ctx)
	defer page.CancelTimeout()

	el, err := s.element(page, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

func (s *RodSession) SetValue(ctx context.Context, selector, value string) error {
	page := s.bound(ctx)
	defer page.CancelTimeout()

	el, err := s.element(page, selector)
	if err != nil {
		return err
	}
	res, err := el.Eval(setValueJS, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", selector, err)
	}
	if got := res.Value.Str(); got != value {
		return fmt.Errorf("%w: option %q in %s", ErrElementNotFound, value, selector)
	}
	return nil
}

func (s *RodSession) WaitVisible(ctx context.Context, selector string) error {
	page := s.bound(ctx)
	defer page.CancelTimeout()

	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("%s not found: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("%s not visible: %w", selector, err)
	}
	return nil
}

func (s *RodSession) HTML(ctx context.Context) (string, error) {
	page := s.bound(ctx)
	defer page.CancelTimeout()

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return html, nil
}

func (s *RodSession) URL(ctx context.Context) (string, error) {
	page := s.bound(ctx)
	defer page.CancelTimeout()

	info, err := page.Info()
	if err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return info.URL, nil
}

func (s *RodSession) Screenshot(ctx context.Context) ([]byte, error) {
	page := s.bound(ctx)
	defer page.CancelTimeout()

	buf, err := page.Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (s *RodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Cleanup()
	s.logger.Debug().Msg("Rod session closed")
	return err
}
