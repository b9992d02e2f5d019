package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/vizcheck/internal/models"
)

// ErrUnsupported is returned by sessions that cannot perform an operation (e.g. screenshots without a browser)
var ErrUnsupported = errors.New("operation not supported by this browser driver")

// Session is the browser seam all page objects are written against.
// Selectors are CSS selectors. Implementations own one page at a time and are
// not safe for concurrent use.
type Session interface {
	// Navigate loads url and waits for the document to be ready
	Navigate(ctx context.Context, url string) error

	// Click clicks the first element matching selector
	Click(ctx context.Context, selector string) error

	// SetValue sets the value of an input, textarea or select
	SetValue(ctx context.Context, selector, value string) error

	// WaitVisible waits until an element matching selector is present and visible
	WaitVisible(ctx context.Context, selector string) error

	// HTML returns the current serialized document
	HTML(ctx context.Context) (string, error)

	// URL returns the current location
	URL(ctx context.Context) (string, error)

	// Screenshot captures the viewport as PNG
	Screenshot(ctx context.Context) ([]byte, error)

	// Close releases the browser
	Close() error
}

// Navigator drives the interactive surface. Every call either completes or
// returns an error; nothing here is retried.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
	ClickControl(ctx context.Context, id string) error
	SelectOption(ctx context.Context, field, value string) error
	SetRange(ctx context.Context, from, to string) error
}

// Extractor reads data back from the rendered chart
type Extractor interface {
	WaitUntilIdle(ctx context.Context) error
	ExtractSeries(ctx context.Context) ([]float64, error)
	ExtractLegend(ctx context.Context) ([]string, error)
	ExtractTable(ctx context.Context) ([]models.TableRow, error)
}

// Persister saves and reloads visualizations by name
type Persister interface {
	Save(ctx context.Context, name string) (string, error)
	Load(ctx context.Context, name string) error
}
