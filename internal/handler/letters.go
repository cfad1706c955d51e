package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ebeckert/letterwell/internal/apperr"
	"github.com/ebeckert/letterwell/internal/model"
	"github.com/ebeckert/letterwell/internal/store"
)

const recentLetterLimit = 5

// LetterHandler serves the owner-scoped letter CRUD endpoints. All routes
// sit behind RequireAuth.
type LetterHandler struct {
	responder
	store *store.Store
}

// NewLetterHandler wires the letter endpoints.
func NewLetterHandler(s *store.Store, dev bool) *LetterHandler {
	return &LetterHandler{responder: responder{dev: dev}, store: s}
}

// List returns all of the caller's letters, most recently updated first.
// GET /api/letters
func (h *LetterHandler) List(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	letters, err := h.store.LettersByUser(r.Context(), user.ID)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]any{"letters": letters})
}

// Count returns how many letters the caller owns.
// GET /api/letters/count
func (h *LetterHandler) Count(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	count, err := h.store.CountLetters(r.Context(), user.ID)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]int64{"count": count})
}

// Recent returns the caller's five most recently updated letters.
// GET /api/letters/recent
func (h *LetterHandler) Recent(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	letters, err := h.store.RecentLetters(r.Context(), user.ID, recentLetterLimit)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]any{"letters": letters})
}

// Get returns one letter. Unowned and missing letters are both 404 so the
// response never confirms another account's letter exists.
// GET /api/letters/{id}
func (h *LetterHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	id, ok := letterID(r)
	if !ok {
		h.error(w, apperr.New(apperr.CodeNotFound, "Letter not found"))
		return
	}

	letter, err := h.store.LetterByID(r.Context(), user.ID, id)
	if err != nil {
		h.letterError(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]any{"letter": letter})
}

type createLetterRequest struct {
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Status      string         `json:"status"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata"`
	DriveFileID string         `json:"driveFileId"`
}

// Create saves a new letter.
// POST /api/letters
func (h *LetterHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var req createLetterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, apperr.New(apperr.CodeValidation, "Invalid request body"))
		return
	}
	if strings.TrimSpace(req.Title) == "" || req.Content == "" {
		h.error(w, apperr.New(apperr.CodeValidation, "Title and content are required"))
		return
	}
	if req.Status != "" && req.Status != model.StatusDraft && req.Status != model.StatusPublished {
		h.error(w, apperr.New(apperr.CodeValidation, "Status must be draft or published"))
		return
	}

	letter := &model.Letter{
		UserID:      user.ID,
		Title:       req.Title,
		Content:     req.Content,
		Status:      req.Status,
		DriveFileID: req.DriveFileID,
	}
	letter.SetTagList(req.Tags)
	letter.SetMetadataMap(req.Metadata)

	if err := h.store.CreateLetter(r.Context(), letter); err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusCreated, map[string]any{"letter": letter})
}

type updateLetterRequest struct {
	Title       *string         `json:"title"`
	Content     *string         `json:"content"`
	Status      *string         `json:"status"`
	Tags        *[]string       `json:"tags"`
	Metadata    *map[string]any `json:"metadata"`
	DriveFileID *string         `json:"driveFileId"`
}

// Update applies a partial update; omitted fields keep their prior values.
// Two concurrent updates are last-write-wins.
// PUT /api/letters/{id}
func (h *LetterHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	id, ok := letterID(r)
	if !ok {
		h.error(w, apperr.New(apperr.CodeNotFound, "Letter not found"))
		return
	}

	var req updateLetterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, apperr.New(apperr.CodeValidation, "Invalid request body"))
		return
	}

	letter, err := h.store.LetterByID(r.Context(), user.ID, id)
	if err != nil {
		h.letterError(w, err)
		return
	}

	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		letter.Title = *req.Title
	}
	if req.Content != nil && *req.Content != "" {
		letter.Content = *req.Content
	}
	if req.Status != nil {
		if *req.Status != model.StatusDraft && *req.Status != model.StatusPublished {
			h.error(w, apperr.New(apperr.CodeValidation, "Status must be draft or published"))
			return
		}
		letter.Status = *req.Status
	}
	if req.Tags != nil {
		letter.SetTagList(*req.Tags)
	}
	if req.Metadata != nil {
		letter.SetMetadataMap(*req.Metadata)
	}
	if req.DriveFileID != nil {
		letter.DriveFileID = *req.DriveFileID
	}

	if err := h.store.SaveLetter(r.Context(), letter); err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]any{"letter": letter})
}

// Delete removes a letter.
// DELETE /api/letters/{id}
func (h *LetterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	id, ok := letterID(r)
	if !ok {
		h.error(w, apperr.New(apperr.CodeNotFound, "Letter not found"))
		return
	}

	if err := h.store.DeleteLetter(r.Context(), user.ID, id); err != nil {
		h.letterError(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]string{"message": "Letter deleted successfully"})
}

func (h *LetterHandler) letterError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		h.error(w, apperr.New(apperr.CodeNotFound, "Letter not found"))
		return
	}
	h.error(w, err)
}

func letterID(r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
