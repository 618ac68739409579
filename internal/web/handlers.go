package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/timecapsule/internal/capsule"
	"github.com/hpungsan/timecapsule/internal/config"
	"github.com/hpungsan/timecapsule/internal/errors"
	"github.com/hpungsan/timecapsule/internal/manager"
)

// maxFormBytes bounds request bodies; messages are capped far below this.
const maxFormBytes = 1 << 20

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	mgr      *manager.Manager
	cfg      *config.Config
	renderer *Renderer
	log      *slog.Logger
}

// HandleList handles GET /capsules: the capsule list plus the create form.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.mgr.List(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}

	h.renderer.renderPage(w, r, "list", h.listPage(items, capsule.Fields{}, ""))
}

// HandleCountdowns handles GET /capsules/countdowns: the list fragment the
// page polls every second.
func (h *Handlers) HandleCountdowns(w http.ResponseWriter, r *http.Request) {
	items, err := h.mgr.List(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderer.renderBlock(w, http.StatusOK, "list", "countdowns", h.listPage(items, capsule.Fields{}, ""))
}

// HandleCreate handles POST /capsules from the form or a JSON body.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	c, err := h.mgr.Create(r.Context(), fields)
	if err != nil {
		// A plain form post re-renders the page with the inputs kept
		if !isHTMX(r) && !wantsJSON(r) {
			items, listErr := h.mgr.List(r.Context())
			if listErr != nil {
				h.renderer.renderError(w, r, listErr)
				return
			}
			cErr := errors.As(err)
			h.renderer.renderPageStatus(w, r, cErr.Status, "list", h.listPage(items, fields, cErr.Message))
			return
		}
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusCreated, h.mgr.Describe(c))
		return
	}

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/capsules")
		w.WriteHeader(http.StatusOK)
		return
	}

	// Redirect clears the form
	http.Redirect(w, r, "/capsules", http.StatusSeeOther)
}

// HandleDetail handles GET /capsules/{id}.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("capsule ID is required"))
		return
	}

	c, err := h.mgr.Get(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	item := h.mgr.Describe(c)

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, item)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   "Capsule for " + c.RecipientName,
			Version: h.renderer.version,
			Nav:     "capsules",
		},
		Item:         item,
		RenderedHTML: renderMessage(c.Message),
	})
}

// HandleDelete handles DELETE /capsules/{id} and POST /capsules/{id}/delete.
// Deleting an unknown capsule is not an error.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("capsule ID is required"))
		return
	}

	result, err := h.mgr.Delete(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/capsules")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/capsules", http.StatusSeeOther)
}

// HandleDispatch handles POST /capsules/{id}/dispatch. A due capsule's
// deep link is returned as a redirect so the browser opens it (the form
// targets a new tab); JSON clients get the URL.
func (h *Handlers) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("capsule ID is required"))
		return
	}

	out, err := h.mgr.Dispatch(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", out.URL)
		w.WriteHeader(http.StatusOK)
		return
	}

	http.Redirect(w, r, out.URL, http.StatusSeeOther)
}

// HandleExportForm handles GET /export.
func (h *Handlers) HandleExportForm(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, r, "export", h.exportPage(capsule.Fields{}, ""))
}

// HandleExport handles POST /export: the capsule document as a download.
// Nothing is retained server side.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if err := fields.Validate(); err != nil {
		if !isHTMX(r) && !wantsJSON(r) {
			cErr := errors.As(err)
			h.renderer.renderPageStatus(w, r, cErr.Status, "export", h.exportPage(fields, cErr.Message))
			return
		}
		h.renderer.renderError(w, r, err)
		return
	}

	doc := capsule.ExportDocument(fields, capsule.ExportOptions{EscapeNewlines: h.cfg.ExportEscapeNewlines})
	filename := capsule.ExportFilename(fields.Name, h.mgr.Now())

	w.Header().Set("Content-Type", capsule.ExportContentType)
	w.Header().Set("Content-Disposition", contentDisposition(filename))
	w.Header().Set("Content-Length", fmt.Sprint(len(doc)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))

	h.log.Info("capsule exported", "filename", filename, "bytes", len(doc))
}

func (h *Handlers) listPage(items []manager.Item, form capsule.Fields, msg string) ListPageData {
	return ListPageData{
		PageData: PageData{
			Title:   "Capsules",
			Version: h.renderer.version,
			Nav:     "capsules",
		},
		Items: items,
		Form:  form,
		Error: msg,
	}
}

func (h *Handlers) exportPage(form capsule.Fields, msg string) ExportPageData {
	return ExportPageData{
		PageData: PageData{
			Title:   "Export",
			Version: h.renderer.version,
			Nav:     "export",
		},
		Form:  form,
		Error: msg,
	}
}

// contentDisposition quotes plain ASCII names and falls back to RFC 2231
// encoding for anything else.
func contentDisposition(filename string) string {
	for _, r := range filename {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
		}
	}
	return `attachment; filename="` + filename + `"`
}

// readFields reads the five capsule fields from a JSON body or a form.
func readFields(w http.ResponseWriter, r *http.Request) (capsule.Fields, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var f capsule.Fields
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			return capsule.Fields{}, errors.NewInvalidRequest("invalid JSON body")
		}
		return f, nil
	}

	if err := r.ParseForm(); err != nil {
		return capsule.Fields{}, errors.NewInvalidRequest("invalid form data")
	}
	return capsule.Fields{
		Name:    r.PostFormValue(capsule.FieldName),
		Contact: r.PostFormValue(capsule.FieldContact),
		Message: r.PostFormValue(capsule.FieldMessage),
		Date:    r.PostFormValue(capsule.FieldDate),
		Time:    r.PostFormValue(capsule.FieldTime),
	}, nil
}
