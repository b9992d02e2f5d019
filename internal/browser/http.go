package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

// HTTPSession is a JavaScript-free driver. It keeps the last document in
// memory, edits form controls in place and submits forms over net/http when a
// submit button is clicked. Pages must work without scripts.
type HTTPSession struct {
	client *http.Client
	logger arbor.ILogger
	doc    *goquery.Document
	url    *url.URL
}

// NewHTTPSession creates an HTTP session
func NewHTTPSession(opts Options, logger arbor.ILogger) *HTTPSession {
	return &HTTPSession{
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger,
	}
}

func (s *HTTPSession) Navigate(ctx context.Context, target string) error {
	u, err := s.resolve(target)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return s.load(req)
}

func (s *HTTPSession) Click(ctx context.Context, selector string) error {
	el, err := s.find(selector)
	if err != nil {
		return err
	}
	if _, disabled := el.Attr("disabled"); disabled {
		return fmt.Errorf("cannot click %s: element is disabled", selector)
	}

	switch goquery.NodeName(el) {
	case "a":
		href, ok := el.Attr("href")
		if !ok {
			return fmt.Errorf("%w: link %s has no href", ErrUnsupported, selector)
		}
		return s.Navigate(ctx, href)
	case "button", "input":
		kind := strings.ToLower(el.AttrOr("type", "submit"))
		if kind != "submit" {
			return fmt.Errorf("%w: clicking a %s control without JavaScript", ErrUnsupported, kind)
		}
		return s.submit(ctx, el)
	}
	return fmt.Errorf("%w: clicking <%s> without JavaScript", ErrUnsupported, goquery.NodeName(el))
}

func (s *HTTPSession) SetValue(ctx context.Context, selector, value string) error {
	el, err := s.find(selector)
	if err != nil {
		return err
	}

	switch goquery.NodeName(el) {
	case "select":
		option := el.Find("option").FilterFunction(func(_ int, o *goquery.Selection) bool {
			return optionValue(o) == value
		}).First()
		if option.Length() == 0 {
			return fmt.Errorf("%w: option %q in %s", ErrElementNotFound, value, selector)
		}
		el.Find("option").RemoveAttr("selected")
		option.SetAttr("selected", "selected")
	case "textarea":
		el.SetText(value)
	case "input":
		el.SetAttr("value", value)
	default:
		return fmt.Errorf("%w: cannot set value on <%s>", ErrUnsupported, goquery.NodeName(el))
	}
	return nil
}

// WaitVisible checks the current document. Without scripts the document
// never changes on its own, so there is nothing to wait for.
func (s *HTTPSession) WaitVisible(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el, err := s.find(selector)
	if err != nil {
		return err
	}
	if _, hidden := el.Attr("hidden"); hidden {
		return fmt.Errorf("%s not visible: hidden", selector)
	}
	if style := strings.ReplaceAll(el.AttrOr("style", ""), " ", ""); strings.Contains(style, "display:none") {
		return fmt.Errorf("%s not visible: display none", selector)
	}
	return nil
}

func (s *HTTPSession) HTML(ctx context.Context) (string, error) {
	if s.doc == nil {
		return "", fmt.Errorf("no page loaded")
	}
	return goquery.OuterHtml(s.doc.Selection)
}

func (s *HTTPSession) URL(ctx context.Context) (string, error) {
	if s.url == nil {
		return "about:blank", nil
	}
	return s.url.String(), nil
}

func (s *HTTPSession) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, ErrUnsupported
}

func (s *HTTPSession) Close() error {
	s.client.CloseIdleConnections()
	s.doc = nil
	return nil
}

func (s *HTTPSession) find(selector string) (*goquery.Selection, error) {
	if s.doc == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	el := s.doc.Find(selector).First()
	if el.Length() == 0 {
		return nil, notFound(selector)
	}
	return el, nil
}

func (s *HTTPSession) resolve(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", target, err)
	}
	if s.url != nil {
		u = s.url.ResolveReference(u)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("relative url %q without a loaded page", target)
	}
	return u, nil
}

// submit serializes the button's form the way a browser would and sends it
func (s *HTTPSession) submit(ctx context.Context, button *goquery.Selection) error {
	form := button.Closest("form")
	if form.Length() == 0 {
		return fmt.Errorf("%w: submit button outside a form", ErrUnsupported)
	}

	action := button.AttrOr("formaction", form.AttrOr("action", ""))
	method := strings.ToUpper(button.AttrOr("formmethod", form.AttrOr("method", http.MethodGet)))

	u, err := s.resolve(action)
	if err != nil {
		return err
	}

	values := formValues(form)
	if name, ok := button.Attr("name"); ok && name != "" {
		values.Add(name, button.AttrOr("value", ""))
	}

	var req *http.Request
	switch method {
	case http.MethodPost:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	case http.MethodGet:
		u.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	default:
		return fmt.Errorf("%w: form method %s", ErrUnsupported, method)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	s.logger.Debug().Str("method", method).Str("url", u.String()).Msg("Submitting form")
	return s.load(req)
}

func (s *HTTPSession) load(req *http.Request) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("failed to load %s: status %d: %s", req.URL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", req.URL, err)
	}

	s.doc = doc
	s.url = resp.Request.URL
	return nil
}

// formValues collects successful controls, excluding submit buttons
func formValues(form *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input, select, textarea").Each(func(_ int, el *goquery.Selection) {
		name, ok := el.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := el.Attr("disabled"); disabled {
			return
		}

		switch goquery.NodeName(el) {
		case "select":
			selected := el.Find("option[selected]")
			if selected.Length() == 0 {
				if _, multiple := el.Attr("multiple"); multiple {
					return
				}
				selected = el.Find("option").First()
			}
			selected.Each(func(_ int, o *goquery.Selection) {
				values.Add(name, optionValue(o))
			})
		case "textarea":
			values.Add(name, el.Text())
		default:
			switch strings.ToLower(el.AttrOr("type", "text")) {
			case "submit", "button", "image", "reset", "file":
				return
			case "checkbox", "radio":
				if _, checked := el.Attr("checked"); !checked {
					return
				}
				values.Add(name, el.AttrOr("value", "on"))
			default:
				values.Add(name, el.AttrOr("value", ""))
			}
		}
	})
	return values
}

func optionValue(o *goquery.Selection) string {
	if v, ok := o.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(o.Text())
}
