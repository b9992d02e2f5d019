// Package fixtureapp is a server-rendered visualization editor serving canned
// data. It honours the page contract the visualize page object drives, works
// without JavaScript, and persists saved visualizations in Badger.
package fixtureapp

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vizcheck/internal/interfaces"
	"github.com/ternarybob/vizcheck/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// App serves the fixture visualization pages
type App struct {
	dataset     *Dataset
	storage     interfaces.VisualizationStorage
	logger      arbor.ILogger
	renderDelay time.Duration
	templates   *template.Template
}

// New creates the fixture app. A positive renderDelay draws bars at zero
// height first and grows them client side, so reads race the render.
func New(dataset *Dataset, storage interfaces.VisualizationStorage, logger arbor.ILogger, renderDelay time.Duration) (*App, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &App{
		dataset:     dataset,
		storage:     storage,
		logger:      logger,
		renderDelay: renderDelay,
		templates:   templates,
	}, nil
}

// Slug converts a title into its listing link suffix, e.g. "Visualization-VerticalBarChart"
func Slug(title string) string {
	return strings.Join(strings.Fields(title), "-")
}

type page struct {
	PageID string
	Title  string
	Toast  string
	Error  string
}

func newPage(title string) page {
	return page{PageID: uuid.New().String(), Title: title}
}

type listingItem struct {
	ID      string
	Title   string
	Slug    string
	Updated string
}

type listingView struct {
	page
	Saved []listingItem
}

type visTypeView struct {
	Name  string
	Label string
}

type newView struct {
	page
	Types []visTypeView
}

type sourcesView struct {
	page
	VisType      string
	VisLabel     string
	IndexPattern string
}

type optionView struct {
	Value    string
	Label    string
	Selected bool
}

type aggView struct {
	ID          int
	Schema      models.SchemaType
	SchemaLabel string
	Summary     string
	Open        bool
	Enabled     bool
	TypeName    string
	FieldName   string
	Types       []optionView
	Fields      []optionView
}

type pageButton struct {
	Index   int
	Number  int
	Current bool
}

type chartView struct {
	RenderState string
	Pending     bool
	DelayMS     int64
	Error       string
	Geometry    Geometry
	Legend      []string
	XLabel      string
	Columns     []string
	Rows        [][]string
	Page        int
	Pages       int
	PageButtons []pageButton
}

type editorView struct {
	page
	State            string
	From             string
	To               string
	Metrics          []aggView
	Buckets          []aggView
	Choices          []optionView
	Chart            *chartView
	Inspector        bool
	InspectorEnabled bool
	Saving           bool
	SaveTitle        string
}

func (a *App) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := a.templates.ExecuteTemplate(w, name, data); err != nil {
		a.logger.Error().Err(err).Str("template", name).Msg("Failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// editorPage builds the editor view for st
func (a *App) editorPage(st *editorState, errMsg, toast string) editorView {
	title := "Create"
	if st.ID != "" && st.Vis.Title != "" {
		title = st.Vis.Title
	}

	v := editorView{
		page:             newPage(title),
		State:            st.encode(),
		From:             st.Vis.TimeRange.From,
		To:               st.Vis.TimeRange.To,
		Inspector:        st.Inspector,
		InspectorEnabled: st.Applied != nil,
		Saving:           st.Saving,
		SaveTitle:        st.Vis.Title,
	}
	v.Error = errMsg
	v.Toast = toast

	for _, agg := range st.Vis.Aggs {
		av := a.aggView(agg)
		if agg.Schema == models.SchemaMetric {
			v.Metrics = append(v.Metrics, av)
		} else {
			v.Buckets = append(v.Buckets, av)
		}
	}

	if st.showBucketChooser() {
		for _, s := range st.bucketChoices() {
			v.Choices = append(v.Choices, optionView{Value: string(s), Label: s.Label()})
		}
	}

	if st.Applied != nil {
		v.Chart = a.chartView(st)
	}
	return v
}

func (a *App) aggView(agg models.Agg) aggView {
	av := aggView{
		ID:          agg.ID,
		Schema:      agg.Schema,
		SchemaLabel: agg.Schema.Label(),
		Summary:     agg.Type.Label(),
		Open:        agg.Open,
		Enabled:     agg.Enabled,
		TypeName:    aggTypeName(agg.ID),
		FieldName:   aggFieldName(agg.ID),
	}
	if agg.Type == "" {
		av.Summary = "not configured"
	} else if agg.Field != "" {
		av.Summary = fmt.Sprintf("%s %s", agg.Type.Label(), agg.Field)
	}

	for _, t := range models.AggTypes {
		if t.IsMetric() != (agg.Schema == models.SchemaMetric) {
			continue
		}
		av.Types = append(av.Types, optionView{Value: string(t), Label: t.Label(), Selected: t == agg.Type})
	}

	if agg.Schema != models.SchemaMetric {
		fields := models.FieldsFor(agg.Type)
		if agg.Type == "" {
			fields = append(models.FieldsFor(models.AggDateHistogram), models.FieldsFor(models.AggTerms)...)
		}
		for _, f := range fields {
			av.Fields = append(av.Fields, optionView{Value: f, Label: f, Selected: f == agg.Field})
		}
	}
	return av
}

func (a *App) chartView(st *editorState) *chartView {
	cv := &chartView{RenderState: "done"}

	chart, err := Compute(a.dataset, *st.Applied)
	if err != nil {
		cv.RenderState = "error"
		cv.Error = err.Error()
		return cv
	}

	cv.Geometry = Layout(chart)
	cv.Legend = chart.Legend()
	cv.XLabel = chart.XLabel
	cv.Columns = chart.Columns()

	if a.renderDelay > 0 {
		cv.RenderState = "pending"
		cv.Pending = true
		cv.DelayMS = a.renderDelay.Milliseconds()
	}

	rows := chart.Rows()
	cv.Pages = (len(rows) + RowsPerPage - 1) / RowsPerPage
	cv.Page = st.Page
	if cv.Page >= cv.Pages {
		cv.Page = max(cv.Pages-1, 0)
	}
	start := cv.Page * RowsPerPage
	end := min(start+RowsPerPage, len(rows))
	cv.Rows = rows[start:end]
	for i := 0; i < cv.Pages; i++ {
		cv.PageButtons = append(cv.PageButtons, pageButton{Index: i, Number: i + 1, Current: i == cv.Page})
	}
	return cv
}
