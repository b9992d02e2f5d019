package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// ChromedpSession drives Chrome through the DevTools protocol with chromedp
type ChromedpSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        Options
	logger      arbor.ILogger
}

// NewChromedpSession launches Chrome and opens one tab
func NewChromedpSession(opts Options, logger arbor.ILogger) (*ChromedpSession, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		logger.Debug().Msg(fmt.Sprintf(format, args...))
	}))

	// Start the browser eagerly so launch failures surface here
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &ChromedpSession{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		opts:        opts,
		logger:      logger,
	}, nil
}

// run executes actions on the tab, bounded by the session timeout and the caller's context
func (s *ChromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (s *ChromedpSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *ChromedpSession) Click(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return fmt.Errorf("failed to query %s: %w", selector, err)
	}
	if len(nodes) == 0 {
		return notFound(selector)
	}
	if err := s.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

func (s *ChromedpSession) SetValue(ctx context.Context, selector, value string) error {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return fmt.Errorf("failed to query %s: %w", selector, err)
	}
	if len(nodes) == 0 {
		return notFound(selector)
	}

	var got string
	err := s.run(ctx,
		chromedp.SetValue(selector, value, chromedp.ByQuery),
		chromedp.Value(selector, &got, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", selector, err)
	}
	// A select silently clears when the option does not exist
	if got != value {
		return fmt.Errorf("%w: option %q in %s", ErrElementNotFound, value, selector)
	}
	return nil
}

func (s *ChromedpSession) WaitVisible(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%s not visible: %w", selector, err)
	}
	return nil
}

func (s *ChromedpSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return html, nil
}

func (s *ChromedpSession) URL(ctx context.Context) (string, error) {
	var location string
	if err := s.run(ctx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return location, nil
}

func (s *ChromedpSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (s *ChromedpSession) Close() error {
	s.cancel()
	s.allocCancel()
	s.logger.Debug().Msg("Chrome session closed")
	return nil
}
