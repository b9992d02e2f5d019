package fixtureapp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ternarybob/vizcheck/internal/models"
)

// Editor actions carried by the submit button's action value
const (
	ActionApplyTimeRange = "applyTimeRange"
	ActionAddBucket      = "addBucket"
	ActionBucket         = "bucket"        // bucket:<schema>
	ActionToggleOpen     = "toggleOpen"    // toggleOpen:<agg id>
	ActionToggleEnabled  = "toggleEnabled" // toggleEnabled:<agg id>
	ActionRender         = "render"
	ActionInspect        = "inspect"
	ActionCloseInspector = "closeInspector"
	ActionPage           = "page" // page:<n>
	ActionOpenSave       = "openSave"
	ActionCancelSave     = "cancelSave"
)

// RowsPerPage is the inspector table page size
const RowsPerPage = 10

// editorState is everything the editor page round-trips in its hidden state field.
// Vis holds pending edits, Applied is what the chart currently shows.
type editorState struct {
	ID        string           `json:"id,omitempty"`
	Vis       models.VisState  `json:"vis"`
	Applied   *models.VisState `json:"applied,omitempty"`
	Adding    bool             `json:"adding,omitempty"`
	Inspector bool             `json:"inspector,omitempty"`
	Page      int              `json:"page,omitempty"`
	Saving    bool             `json:"saving,omitempty"`
}

func newEditorState() *editorState {
	return &editorState{Vis: models.NewVisState()}
}

func decodeEditorState(raw string) (*editorState, error) {
	if strings.TrimSpace(raw) == "" {
		return newEditorState(), nil
	}
	var st editorState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("invalid editor state: %w", err)
	}
	if st.Vis.Type == "" {
		st.Vis.Type = models.VisTypeHistogram
	}
	return &st, nil
}

func (st *editorState) encode() string {
	data, _ := json.Marshal(st)
	return string(data)
}

// applyForm copies the visible controls into the pending state
func (st *editorState) applyForm(form url.Values) error {
	if v, ok := form["from"]; ok {
		st.Vis.TimeRange.From = strings.TrimSpace(v[0])
	}
	if v, ok := form["to"]; ok {
		st.Vis.TimeRange.To = strings.TrimSpace(v[0])
	}

	for i := range st.Vis.Aggs {
		agg := &st.Vis.Aggs[i]
		if v, ok := form[aggTypeName(agg.ID)]; ok {
			if v[0] == "" {
				agg.Type = ""
			} else {
				t, err := models.ParseAggType(v[0])
				if err != nil {
					return err
				}
				if t != agg.Type {
					agg.Field = ""
				}
				agg.Type = t
			}
		}
		if v, ok := form[aggFieldName(agg.ID)]; ok {
			agg.Field = v[0]
		}
	}
	return nil
}

// dispatch applies one editor action. Validation errors are returned for
// display and leave the applied chart untouched.
func (st *editorState) dispatch(action string) error {
	name, arg, _ := strings.Cut(action, ":")
	switch name {
	case "":
		return nil
	case ActionApplyTimeRange:
		if _, _, err := st.Vis.TimeRange.Bounds(); err != nil {
			return err
		}
		if st.Applied != nil {
			st.Applied.TimeRange = st.Vis.TimeRange
			st.Page = 0
		}
	case ActionAddBucket:
		st.Adding = true
	case ActionBucket:
		schema, err := models.ParseSchema(arg)
		if err != nil || schema == models.SchemaMetric {
			return fmt.Errorf("unknown bucket type %q", arg)
		}
		if schema == models.SchemaSegment {
			if st.hasSchema(models.SchemaSegment) {
				return fmt.Errorf("only one X-Axis bucket is allowed")
			}
		}
		st.Vis.AddAgg(schema)
		st.Adding = false
	case ActionToggleOpen, ActionToggleEnabled:
		id, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid aggregation id %q", arg)
		}
		agg, ok := st.Vis.Agg(id)
		if !ok {
			return fmt.Errorf("no aggregation with id %d", id)
		}
		if name == ActionToggleOpen {
			agg.Open = !agg.Open
		} else {
			agg.Enabled = !agg.Enabled
		}
	case ActionRender:
		if err := st.Vis.Validate(); err != nil {
			return err
		}
		applied := st.Vis.Clone()
		st.Applied = &applied
		st.Page = 0
	case ActionInspect:
		if st.Applied == nil {
			return fmt.Errorf("nothing to inspect, apply the visualization first")
		}
		st.Inspector = true
		st.Page = 0
	case ActionCloseInspector:
		st.Inspector = false
	case ActionPage:
		page, err := strconv.Atoi(arg)
		if err != nil || page < 0 {
			return fmt.Errorf("invalid page %q", arg)
		}
		st.Page = page
	case ActionOpenSave:
		st.Saving = true
	case ActionCancelSave:
		st.Saving = false
	default:
		return fmt.Errorf("unknown editor action %q", action)
	}
	return nil
}

// bucketChoices are the schemas offered by the add bucket panel
func (st *editorState) bucketChoices() []models.SchemaType {
	var choices []models.SchemaType
	if !st.hasSchema(models.SchemaSegment) {
		choices = append(choices, models.SchemaSegment)
	}
	return append(choices, models.SchemaGroup)
}

func (st *editorState) hasSchema(schema models.SchemaType) bool {
	for _, a := range st.Vis.Aggs {
		if a.Schema == schema {
			return true
		}
	}
	return false
}

// showBucketChooser is true while adding, or when no bucket exists yet
func (st *editorState) showBucketChooser() bool {
	return st.Adding || (!st.hasSchema(models.SchemaSegment) && !st.hasSchema(models.SchemaGroup))
}

func aggTypeName(id int) string  { return fmt.Sprintf("agg-%d-type", id) }
func aggFieldName(id int) string { return fmt.Sprintf("agg-%d-field", id) }
