package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"filecrate.org/internal/audit"
	"filecrate.org/internal/resource"
)

type createFormFieldRequest struct {
	Label        string `json:"label"`
	Description  string `json:"description"`
	Required     bool   `json:"required"`
	Kind         string `json:"kind"`
	Options      string `json:"options"`
	NumberBounds string `json:"number_bounds"`
	TextBounds   string `json:"text_bounds"`
}

type createFormRequest struct {
	Label       string                   `json:"label"`
	Description string                   `json:"description"`
	Protected   bool                     `json:"protected"`
	Fields      []createFormFieldRequest `json:"fields"`
}

func (a *API) handleForms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.handleFormCreate(w, r)
	case http.MethodGet:
		a.handleFormList(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleFormCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	var req createFormRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in := resource.CreateFormInput{
		Label:       req.Label,
		Description: req.Description,
		Protected:   req.Protected,
	}
	for _, f := range req.Fields {
		in.Fields = append(in.Fields, resource.FormFieldInput{
			Label:        f.Label,
			Description:  f.Description,
			Required:     f.Required,
			Kind:         f.Kind,
			Options:      f.Options,
			NumberBounds: f.NumberBounds,
			TextBounds:   f.TextBounds,
		})
	}
	form, err := a.resources.CreateForm(r.Context(), userID, in)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "form.create", map[string]any{
		"form_id": form.ID.String(),
		"label":   form.Label,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/forms/%s", form.ID))
	writeJSON(w, http.StatusCreated, form)
}

func (a *API) handleFormList(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	forms, err := a.resources.ListForms(r.Context(), userID, offset, limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if forms == nil {
		forms = []*resource.Form{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"forms": forms})
}

func (a *API) handleFormResource(w http.ResponseWriter, r *http.Request) {
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/forms/"), "/")
	id, err := uuid.Parse(raw)
	if err != nil || strings.Contains(raw, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	userID, _ := userFromRequest(r)

	switch r.Method {
	case http.MethodGet:
		form, err := a.resources.GetForm(r.Context(), userID, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, form)
	case http.MethodDelete:
		if err := a.resources.DeleteForm(r.Context(), userID, id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "form.delete", map[string]any{
			"form_id": id.String(),
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}
