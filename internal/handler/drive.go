package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ebeckert/letterwell/internal/apperr"
	"github.com/ebeckert/letterwell/internal/drive"
)

// DriveHandler serves the Google Drive bridge endpoints. All routes sit
// behind RequireAuth; provider auth failures carry the broker's codes so the
// client can distinguish "connect" from "reconnect".
type DriveHandler struct {
	responder
	bridge *drive.Bridge
}

// NewDriveHandler wires the Drive endpoints.
func NewDriveHandler(b *drive.Bridge, dev bool) *DriveHandler {
	return &DriveHandler{responder: responder{dev: dev}, bridge: b}
}

// Files lists the caller's Google Docs, paged.
// GET /api/drive/files?pageSize=&pageToken=
func (h *DriveHandler) Files(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	pageSize, _ := strconv.ParseInt(r.URL.Query().Get("pageSize"), 10, 64)
	pageToken := r.URL.Query().Get("pageToken")

	list, err := h.bridge.ListFiles(r.Context(), user, pageSize, pageToken)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, list)
}

// FileContent returns a document's plain-text export.
// GET /api/drive/files/{fileId}
func (h *DriveHandler) FileContent(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	content, err := h.bridge.ExportText(r.Context(), user, chi.URLParam(r, "fileId"))
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]string{"content": content})
}

// Upload creates a Google Doc from a letter's title and HTML content.
// POST /api/drive/upload
func (h *DriveHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, apperr.New(apperr.CodeValidation, "Invalid request body"))
		return
	}
	if req.Title == "" || req.Content == "" {
		h.error(w, apperr.New(apperr.CodeValidation, "Title and content are required"))
		return
	}

	file, err := h.bridge.CreateDocument(r.Context(), user, req.Title, req.Content)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, file)
}

// UpdateFile overwrites a document's content.
// PUT /api/drive/files/{fileId}
func (h *DriveHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, apperr.New(apperr.CodeValidation, "Invalid request body"))
		return
	}
	if req.Content == "" {
		h.error(w, apperr.New(apperr.CodeValidation, "Content is required"))
		return
	}

	if err := h.bridge.UpdateDocument(r.Context(), user, chi.URLParam(r, "fileId"), req.Content); err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]string{"message": "File updated successfully"})
}

// DeleteFile removes a Drive file.
// DELETE /api/drive/files/{fileId}
func (h *DriveHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	if err := h.bridge.DeleteFile(r.Context(), user, chi.URLParam(r, "fileId")); err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]string{"message": "File deleted successfully"})
}

// Storage returns the account's Drive quota in bytes.
// GET /api/drive/storage
func (h *DriveHandler) Storage(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	quota, err := h.bridge.Storage(r.Context(), user)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, quota)
}
