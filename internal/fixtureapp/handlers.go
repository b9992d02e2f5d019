package fixtureapp

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ternarybob/vizcheck/internal/interfaces"
	"github.com/ternarybob/vizcheck/internal/models"
)

// Routes mounts the fixture pages on r
func (a *App) Routes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/app/visualize", http.StatusFound)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/app/visualize", func(r chi.Router) {
		r.Get("/", a.ListingHandler)
		r.Get("/new", a.NewHandler)
		r.Get("/new/{type}", a.SourcesHandler)
		r.Get("/edit", a.NewEditorHandler)
		r.Post("/edit", a.EditorActionHandler)
		r.Get("/edit/{id}", a.SavedEditorHandler)
		r.Post("/save", a.SaveHandler)
	})
}

// ListingHandler lists saved visualizations
func (a *App) ListingHandler(w http.ResponseWriter, r *http.Request) {
	saved, err := a.storage.List(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to list visualizations")
		http.Error(w, "failed to list visualizations", http.StatusInternalServerError)
		return
	}

	view := listingView{page: newPage("Visualize")}
	for _, v := range saved {
		view.Saved = append(view.Saved, listingItem{
			ID:      v.ID,
			Title:   v.Title,
			Slug:    Slug(v.Title),
			Updated: v.UpdatedAt.Format("Jan 2, 2006 @ 15:04:05"),
		})
	}
	a.render(w, "listing.html", view)
}

// NewHandler offers the visualization types
func (a *App) NewHandler(w http.ResponseWriter, r *http.Request) {
	a.render(w, "new.html", newView{
		page:  newPage("Create"),
		Types: []visTypeView{{Name: models.VisTypeHistogram, Label: "Vertical Bar"}},
	})
}

// SourcesHandler offers the search sources for a visualization type
func (a *App) SourcesHandler(w http.ResponseWriter, r *http.Request) {
	visType := chi.URLParam(r, "type")
	if visType != models.VisTypeHistogram {
		http.Error(w, fmt.Sprintf("unknown visualization type %q", visType), http.StatusNotFound)
		return
	}
	a.render(w, "sources.html", sourcesView{
		page:         newPage("Create"),
		VisType:      visType,
		VisLabel:     "Vertical Bar",
		IndexPattern: a.dataset.IndexPattern,
	})
}

// NewEditorHandler opens an empty editor
func (a *App) NewEditorHandler(w http.ResponseWriter, r *http.Request) {
	if t := r.URL.Query().Get("type"); t != "" && t != models.VisTypeHistogram {
		http.Error(w, fmt.Sprintf("unknown visualization type %q", t), http.StatusNotFound)
		return
	}
	a.render(w, "editor.html", a.editorPage(newEditorState(), "", ""))
}

// EditorActionHandler applies the submitted controls and one action
func (a *App) EditorActionHandler(w http.ResponseWriter, r *http.Request) {
	st, ok := a.parseEditor(w, r)
	if !ok {
		return
	}

	action := r.PostForm.Get("action")
	errMsg := ""
	if err := st.dispatch(action); err != nil {
		errMsg = err.Error()
		a.logger.Debug().Str("action", action).Err(err).Msg("Editor action rejected")
	}
	a.render(w, "editor.html", a.editorPage(st, errMsg, ""))
}

// SavedEditorHandler opens a saved visualization and renders it
func (a *App) SavedEditorHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	saved, err := a.storage.Get(r.Context(), id)
	if errors.Is(err, interfaces.ErrVisualizationNotFound) {
		http.Error(w, fmt.Sprintf("visualization %s not found", id), http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("id", id).Msg("Failed to load visualization")
		http.Error(w, "failed to load visualization", http.StatusInternalServerError)
		return
	}

	st := &editorState{ID: saved.ID, Vis: saved.State.Clone()}
	errMsg := ""
	if err := st.dispatch(ActionRender); err != nil {
		errMsg = err.Error()
	}

	toast := ""
	if r.URL.Query().Get("saved") != "" {
		toast = fmt.Sprintf("Saved '%s'", saved.Title)
	}
	a.render(w, "editor.html", a.editorPage(st, errMsg, toast))
}

// SaveHandler persists the editor state under the submitted title
func (a *App) SaveHandler(w http.ResponseWriter, r *http.Request) {
	st, ok := a.parseEditor(w, r)
	if !ok {
		return
	}

	title := strings.TrimSpace(r.PostForm.Get("title"))
	if title == "" {
		st.Saving = true
		a.render(w, "editor.html", a.editorPage(st, "title is required", ""))
		return
	}

	st.Vis.Title = title
	vis := &models.SavedVisualization{ID: st.ID, Title: title, State: st.Vis}
	if err := a.storage.Save(r.Context(), vis); err != nil {
		a.logger.Error().Err(err).Str("title", title).Msg("Failed to save visualization")
		st.Saving = true
		a.render(w, "editor.html", a.editorPage(st, err.Error(), ""))
		return
	}

	a.logger.Info().Str("id", vis.ID).Str("title", title).Msg("Visualization saved")
	http.Redirect(w, r, "/app/visualize/edit/"+vis.ID+"?saved=1", http.StatusSeeOther)
}

func (a *App) parseEditor(w http.ResponseWriter, r *http.Request) (*editorState, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return nil, false
	}
	st, err := decodeEditorState(r.PostForm.Get("state"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if err := st.applyForm(r.PostForm); err != nil {
		a.render(w, "editor.html", a.editorPage(st, err.Error(), ""))
		return nil, false
	}
	return st, true
}
