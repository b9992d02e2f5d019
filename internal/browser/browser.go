package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vizcheck/internal/common"
	"github.com/ternarybob/vizcheck/internal/interfaces"
)

// Driver names accepted in [browser].driver
const (
	DriverChromedp = "chromedp"
	DriverRod      = "rod"
	DriverHTTP     = "http"
)

var (
	// ErrUnsupported is returned for operations a driver cannot perform
	ErrUnsupported = interfaces.ErrUnsupported

	// ErrElementNotFound is returned when a selector matches nothing
	ErrElementNotFound = errors.New("element not found")
)

// Options are the driver independent launch settings
type Options struct {
	Headless     bool
	WindowWidth  int
	WindowHeight int
	Timeout      time.Duration
}

// OptionsFromConfig converts the [browser] section
func OptionsFromConfig(cfg *common.Config) (Options, error) {
	timeout, err := cfg.BrowserTimeout()
	if err != nil {
		return Options{}, err
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return Options{
		Headless:     cfg.Browser.Headless,
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
		Timeout:      timeout,
	}, nil
}

// New opens a session with the configured driver
func New(cfg *common.Config, logger arbor.ILogger) (interfaces.Session, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("driver", cfg.Browser.Driver).
		Bool("headless", opts.Headless).
		Str("timeout", opts.Timeout.String()).
		Msg("Opening browser session")

	switch cfg.Browser.Driver {
	case DriverChromedp:
		return NewChromedpSession(opts, logger)
	case DriverRod:
		return NewRodSession(opts, logger)
	case DriverHTTP:
		return NewHTTPSession(opts, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Browser.Driver)
	}
}

func notFound(selector string) error {
	return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
}
