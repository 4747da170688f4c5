package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/httpx"
	"github.com/inkwell-labs/inkwell/libs/pagination"
	"github.com/inkwell-labs/inkwell/services/posts-service/internal/model"
	"github.com/inkwell-labs/inkwell/services/posts-service/internal/storage"
)

type PostHandler struct {
	repo storage.PostRepository
}

func NewPostHandler(repo storage.PostRepository) *PostHandler {
	return &PostHandler{repo: repo}
}

func (h *PostHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/posts", h.Create)
	mux.HandleFunc("GET /api/v1/posts", h.List)
	mux.HandleFunc("GET /api/v1/posts/{id}", h.Get)
	mux.HandleFunc("PUT /api/v1/posts/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/posts/{id}", h.Delete)
}

type createPostRequest struct {
	AuthorID string `json:"author_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

type updatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	authorID, err := parseID("author_id", req.AuthorID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		httpx.WriteError(w, apperr.Validation("posts.create", "title is required"))
		return
	}

	post, err := h.repo.Create(r.Context(), model.Post{AuthorID: authorID, Title: title, Content: req.Content})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("id", r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	post, err := h.repo.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, post)
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromQuery(r.URL.Query())
	posts, total, err := h.repo.List(r.Context(), page)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pagination.NewResponse(posts, total, page))
}

func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("id", r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req updatePostRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		httpx.WriteError(w, apperr.Validation("posts.update", "title is required"))
		return
	}

	post, err := h.repo.Update(r.Context(), model.Post{ID: id, Title: title, Content: req.Content})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, post)
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("id", r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperr.Validation("posts.parse", field+" must be a valid uuid")
	}
	return id, nil
}
