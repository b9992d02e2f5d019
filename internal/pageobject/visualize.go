// Package pageobject drives the visualize app through a browser session.
// Controls are addressed by their data-test-subj attribute.
package pageobject

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vizcheck/internal/extract"
	"github.com/ternarybob/vizcheck/internal/interfaces"
	"github.com/ternarybob/vizcheck/internal/models"
	"github.com/ternarybob/vizcheck/internal/retry"
)

// Control identifiers (data-test-subj values)
const (
	SubjVisType          = "visType-"
	SubjNewSearch        = "newSearch"
	SubjRangeStart       = "superDatePickerAbsoluteStart"
	SubjRangeEnd         = "superDatePickerAbsoluteEnd"
	SubjRangeApply       = "superDatePickerApplyTimeButton"
	SubjAddBucket        = "visEditorAddBucketButton"
	SubjBucketType       = "visEditorAddBucket-"
	SubjAggToggle        = "visEditorAggToggle-"
	SubjAggDisable       = "toggleDisableAggregationBtn-"
	SubjAggSelect        = "visEditorAggSelect-"
	SubjFieldSelect      = "visEditorFieldSelect-"
	SubjRender           = "visualizeEditorRenderButton"
	SubjInspect          = "openInspectorButton"
	SubjSave             = "visualizeSaveButton"
	SubjSaveTitle        = "savedObjectTitle"
	SubjSaveConfirm      = "confirmSaveSavedObjectButton"
	SubjToastSaved       = "toastSaved"
	SubjEditorError      = "visEditorError"
	SubjBreadcrumbTitle  = "breadcrumbPageTitle"
	SubjListingTitleLink = "visListingTitleLink-"
)

var (
	_ interfaces.Navigator = (*Visualize)(nil)
	_ interfaces.Extractor = (*Visualize)(nil)
	_ interfaces.Persister = (*Visualize)(nil)
)

// ErrEditor is returned when the editor reports a problem after an action
var ErrEditor = errors.New("editor error")

// Visualize is the page object for the visualize app
type Visualize struct {
	session interfaces.Session
	baseURL string
	logger  arbor.ILogger
	wait    retry.Policy
}

// New creates the page object. wait bounds page loads and render completion.
func New(session interfaces.Session, baseURL string, logger arbor.ILogger, wait retry.Policy) *Visualize {
	return &Visualize{
		session: session,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		wait:    wait,
	}
}

// TestSubj builds the CSS selector for a data-test-subj value
func TestSubj(id string) string {
	return fmt.Sprintf("[data-test-subj=%q]", id)
}

// Navigate opens an app path such as "visualize/new", or an absolute URL
func (v *Visualize) Navigate(ctx context.Context, target string) error {
	url := target
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		url = v.baseURL + "/app/" + strings.TrimPrefix(target, "/")
	}
	v.logger.Debug().Str("url", url).Msg("Navigate")

	if err := v.session.Navigate(ctx, url); err != nil {
		return err
	}
	return v.waitForPage(ctx, "")
}

// ClickControl clicks a control and waits for the resulting page
func (v *Visualize) ClickControl(ctx context.Context, id string) error {
	prev, err := v.pageID(ctx)
	if err != nil {
		return err
	}
	v.logger.Debug().Str("control", id).Msg("Click")

	if err := v.session.Click(ctx, TestSubj(id)); err != nil {
		return err
	}
	return v.waitForPage(ctx, prev)
}

// SelectOption picks value in the select identified by field
func (v *Visualize) SelectOption(ctx context.Context, field, value string) error {
	v.logger.Debug().Str("field", field).Str("value", value).Msg("Select option")
	return v.session.SetValue(ctx, TestSubj(field), value)
}

// SetRange sets the absolute time range and applies it
func (v *Visualize) SetRange(ctx context.Context, from, to string) error {
	v.logger.Debug().Str("from", from).Str("to", to).Msg("Set absolute time range")
	if err := v.session.SetValue(ctx, TestSubj(SubjRangeStart), from); err != nil {
		return err
	}
	if err := v.session.SetValue(ctx, TestSubj(SubjRangeEnd), to); err != nil {
		return err
	}
	return v.ClickControl(ctx, SubjRangeApply)
}

// WaitUntilIdle waits for the chart to finish rendering.
// A missing chart or a render error ends the wait at once.
func (v *Visualize) WaitUntilIdle(ctx context.Context) error {
	return retry.Do(ctx, v.wait, func(ctx context.Context) error {
		doc, err := v.document(ctx)
		if err != nil {
			return err
		}
		if err := editorError(doc); err != nil {
			return retry.Stop(err)
		}
		err = extract.Ready(doc)
		if err != nil && !errors.Is(err, extract.ErrNotRendered) {
			return retry.Stop(err)
		}
		return err
	})
}

// ExtractSeries reads the bar values once
func (v *Visualize) ExtractSeries(ctx context.Context) ([]float64, error) {
	doc, err := v.document(ctx)
	if err != nil {
		return nil, err
	}
	if err := renderFailed(doc); err != nil {
		return nil, err
	}
	return extract.Series(doc)
}

// ExtractLegend reads the legend entries once
func (v *Visualize) ExtractLegend(ctx context.Context) ([]string, error) {
	doc, err := v.document(ctx)
	if err != nil {
		return nil, err
	}
	if err := renderFailed(doc); err != nil {
		return nil, err
	}
	return extract.Legend(doc), nil
}

// renderFailed returns ErrNoChart, or a permanent error when the chart
// reported a render error. A read on such a page can never succeed.
func renderFailed(doc *goquery.Document) error {
	state, err := extract.RenderState(doc)
	if err != nil {
		return err
	}
	if state == extract.RenderError {
		return retry.Stop(extract.Ready(doc))
	}
	return nil
}

// ExtractTable reads the visible inspector rows once
func (v *Visualize) ExtractTable(ctx context.Context) ([]models.TableRow, error) {
	doc, err := v.document(ctx)
	if err != nil {
		return nil, err
	}
	return extract.Table(doc)
}

// Save stores the visualization under name and returns the confirmation toast
func (v *Visualize) Save(ctx context.Context, name string) (string, error) {
	if err := v.ClickControl(ctx, SubjSave); err != nil {
		return "", err
	}
	if err := v.session.SetValue(ctx, TestSubj(SubjSaveTitle), name); err != nil {
		return "", err
	}
	if err := v.ClickControl(ctx, SubjSaveConfirm); err != nil {
		return "", err
	}

	doc, err := v.document(ctx)
	if err != nil {
		return "", err
	}
	toast := strings.TrimSpace(doc.Find(TestSubj(SubjToastSaved)).Text())
	if toast == "" {
		return "", fmt.Errorf("no save confirmation for %q", name)
	}
	v.logger.Debug().Str("toast", toast).Msg("Visualization saved")
	return toast, nil
}

// Load opens a saved visualization from the listing and waits for it to render
func (v *Visualize) Load(ctx context.Context, name string) error {
	if err := v.Navigate(ctx, "visualize"); err != nil {
		return err
	}
	if err := v.ClickControl(ctx, SubjListingTitleLink+strings.Join(strings.Fields(name), "-")); err != nil {
		return fmt.Errorf("failed to open saved visualization %q: %w", name, err)
	}
	return v.WaitUntilIdle(ctx)
}

// ClickVerticalBarChart picks the vertical bar type in the new visualization wizard
func (v *Visualize) ClickVerticalBarChart(ctx context.Context) error {
	return v.ClickControl(ctx, SubjVisType+models.VisTypeHistogram)
}

// ClickNewSearch starts from a new search on the default index pattern
func (v *Visualize) ClickNewSearch(ctx context.Context) error {
	return v.ClickControl(ctx, SubjNewSearch)
}

// ClickBucket picks the bucket type in the add bucket panel
func (v *Visualize) ClickBucket(ctx context.Context, schema models.SchemaType) error {
	return v.ClickControl(ctx, SubjBucketType+string(schema))
}

// ClickAddBucket opens the add bucket panel
func (v *Visualize) ClickAddBucket(ctx context.Context) error {
	return v.ClickControl(ctx, SubjAddBucket)
}

// SelectAggregation picks the aggregation of the last open editor
func (v *Visualize) SelectAggregation(ctx context.Context, agg models.AggType) error {
	id, err := v.activeAgg(ctx)
	if err != nil {
		return err
	}
	return v.SelectOption(ctx, SubjAggSelect+strconv.Itoa(id), string(agg))
}

// SelectField picks the field of the last open editor
func (v *Visualize) SelectField(ctx context.Context, field string) error {
	id, err := v.activeAgg(ctx)
	if err != nil {
		return err
	}
	return v.SelectOption(ctx, SubjFieldSelect+strconv.Itoa(id), field)
}

// ToggleOpenEditor opens or closes an aggregation editor, clicking only when needed
func (v *Visualize) ToggleOpenEditor(ctx context.Context, id int, open bool) error {
	doc, err := v.document(ctx)
	if err != nil {
		return err
	}
	agg := doc.Find(TestSubj(fmt.Sprintf("visEditorAgg%d", id)))
	if agg.Length() == 0 {
		return fmt.Errorf("no aggregation editor %d", id)
	}
	if (agg.AttrOr("data-open", "false") == "true") == open {
		return nil
	}
	return v.ClickControl(ctx, SubjAggToggle+strconv.Itoa(id))
}

// ToggleDisabledAgg enables or disables an aggregation
func (v *Visualize) ToggleDisabledAgg(ctx context.Context, id int) error {
	return v.ClickControl(ctx, SubjAggDisable+strconv.Itoa(id))
}

// ClickGo applies the pending editor changes
func (v *Visualize) ClickGo(ctx context.Context) error {
	return v.ClickControl(ctx, SubjRender)
}

// IsInspectorEnabled reports whether the inspect button can be used
func (v *Visualize) IsInspectorEnabled(ctx context.Context) (bool, error) {
	doc, err := v.document(ctx)
	if err != nil {
		return false, err
	}
	button := doc.Find(TestSubj(SubjInspect))
	if button.Length() == 0 {
		return false, nil
	}
	_, disabled := button.Attr("disabled")
	return !disabled, nil
}

// OpenInspector opens the inspector data table
func (v *Visualize) OpenInspector(ctx context.Context) error {
	return v.ClickControl(ctx, SubjInspect)
}

// BreadcrumbTitle returns the page title shown in the breadcrumbs
func (v *Visualize) BreadcrumbTitle(ctx context.Context) (string, error) {
	doc, err := v.document(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Find(TestSubj(SubjBreadcrumbTitle)).Text()), nil
}

func (v *Visualize) document(ctx context.Context) (*goquery.Document, error) {
	html, err := v.session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return extract.Parse(html)
}

func (v *Visualize) pageID(ctx context.Context) (string, error) {
	doc, err := v.document(ctx)
	if err != nil {
		return "", err
	}
	return doc.Find("body").AttrOr("data-page-id", ""), nil
}

// waitForPage waits until a page other than prev is loaded, then surfaces
// any error the editor reported for the action
func (v *Visualize) waitForPage(ctx context.Context, prev string) error {
	return retry.Do(ctx, v.wait, func(ctx context.Context) error {
		doc, err := v.document(ctx)
		if err != nil {
			return err
		}
		id := doc.Find("body").AttrOr("data-page-id", "")
		if id == "" || id == prev {
			return fmt.Errorf("page has not loaded yet")
		}
		return retry.Stop(editorError(doc))
	})
}

// activeAgg returns the ID of the last open aggregation editor
func (v *Visualize) activeAgg(ctx context.Context) (int, error) {
	doc, err := v.document(ctx)
	if err != nil {
		return 0, err
	}
	open := doc.Find(`.vis-agg[data-open="true"]`)
	if open.Length() == 0 {
		return 0, fmt.Errorf("no aggregation editor is open")
	}
	raw := open.Last().AttrOr("data-agg-id", "")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid aggregation id %q", raw)
	}
	return id, nil
}

func editorError(doc *goquery.Document) error {
	msg := strings.TrimSpace(doc.Find(TestSubj(SubjEditorError)).Text())
	if msg == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrEditor, msg)
}
