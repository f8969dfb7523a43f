package httpapi

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"filecrate.org/internal/audit"
	"filecrate.org/internal/resource"
)

const multipartMemory = 8 << 20

func (a *API) handleFiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.handleFileUpload(w, r)
	case http.MethodGet:
		a.handleFileList(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart form required")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file part is required")
		return
	}
	defer part.Close()

	in := fileInput(part, header, formBool(r, "protected"))
	f, err := a.resources.CreateFile(r.Context(), userID, in)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "file.create", map[string]any{
		"file_id": f.ID.String(),
		"name":    f.Name,
		"size":    f.Size,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/files/%s", f.ID))
	writeJSON(w, http.StatusCreated, f)
}

func (a *API) handleFilesBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart form required")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, r, http.StatusBadRequest, "at least one files part is required")
		return
	}

	protected := formBool(r, "protected")
	ins := make([]resource.CreateFileInput, 0, len(headers))
	parts := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, p := range parts {
			_ = p.Close()
		}
	}()
	for _, h := range headers {
		part, err := h.Open()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "unreadable file part")
			return
		}
		parts = append(parts, part)
		ins = append(ins, fileInput(part, h, protected))
	}

	files, err := a.resources.CreateFiles(r.Context(), userID, ins)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "file.create_batch", map[string]any{
		"count": len(files),
	})
	writeJSON(w, http.StatusCreated, map[string]any{"files": files})
}

func (a *API) handleFileList(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	files, err := a.resources.ListFiles(r.Context(), userID, offset, limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if files == nil {
		files = []*resource.File{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (a *API) handleFileResource(w http.ResponseWriter, r *http.Request) {
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/files/"), "/")
	if raw == "" || strings.Contains(raw, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	// actor may be empty: unprotected files are world-readable
	userID, _ := userFromRequest(r)

	switch r.Method {
	case http.MethodGet:
		f, rc, err := a.resources.OpenFile(r.Context(), userID, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", f.ContentType)
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, rc)
	case http.MethodDelete:
		if err := a.resources.DeleteFile(r.Context(), userID, id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "file.delete", map[string]any{
			"file_id": id.String(),
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func fileInput(part io.Reader, header *multipart.FileHeader, protected bool) resource.CreateFileInput {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return resource.CreateFileInput{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Protected:   protected,
		Content:     part,
	}
}

func formBool(r *http.Request, field string) bool {
	v, _ := strconv.ParseBool(r.FormValue(field))
	return v
}

func pageParams(r *http.Request) (offset, limit int, err error) {
	offset, err = parsePositiveInt(r.URL.Query().Get("offset"), 0, 0, 1<<30)
	if err != nil {
		return 0, 0, err
	}
	limit, err = parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 200)
	if err != nil {
		return 0, 0, err
	}
	return offset, limit, nil
}
