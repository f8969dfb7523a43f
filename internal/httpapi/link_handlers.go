package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"filecrate.org/internal/audit"
	"filecrate.org/internal/resource"
)

type createLinkRequest struct {
	Label       string `json:"label"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Protected   bool   `json:"protected"`
}

func (a *API) handleLinks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.handleLinkCreate(w, r)
	case http.MethodGet:
		a.handleLinkList(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleLinkCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	var req createLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	l, err := a.resources.CreateLink(r.Context(), userID, resource.CreateLinkInput{
		Label:       req.Label,
		URL:         req.URL,
		Description: req.Description,
		Protected:   req.Protected,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "link.create", map[string]any{
		"link_id": l.ID,
		"label":   l.Label,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/links/%s", l.ID))
	writeJSON(w, http.StatusCreated, l)
}

func (a *API) handleLinkList(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	links, err := a.resources.ListLinks(r.Context(), userID, offset, limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if links == nil {
		links = []*resource.Link{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": links})
}

func (a *API) handleLinkResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/links/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	userID, _ := userFromRequest(r)

	switch r.Method {
	case http.MethodGet:
		l, err := a.resources.GetLink(r.Context(), userID, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	case http.MethodDelete:
		if err := a.resources.DeleteLink(r.Context(), userID, id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "link.delete", map[string]any{
			"link_id": id,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}
