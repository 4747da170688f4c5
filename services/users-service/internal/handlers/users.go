package handlers

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/httpx"
	"github.com/inkwell-labs/inkwell/libs/pagination"
	"github.com/inkwell-labs/inkwell/services/users-service/internal/model"
	"github.com/inkwell-labs/inkwell/services/users-service/internal/storage"
)

const maxUsernameLen = 64

type UserHandler struct {
	repo storage.UserRepository
}

func NewUserHandler(repo storage.UserRepository) *UserHandler {
	return &UserHandler{repo: repo}
}

func (h *UserHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/users", h.Create)
	mux.HandleFunc("GET /api/v1/users", h.List)
	mux.HandleFunc("GET /api/v1/users/by-name/{username}", h.GetByUsername)
	mux.HandleFunc("GET /api/v1/users/{id}", h.Get)
	mux.HandleFunc("PUT /api/v1/users/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/users/{id}", h.Delete)
}

type userRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

func (req userRequest) validate(op string) (model.User, error) {
	email := strings.TrimSpace(req.Email)
	username := strings.TrimSpace(req.Username)
	if username == "" || len(username) > maxUsernameLen || strings.ContainsAny(username, " /") {
		return model.User{}, apperr.Validation(op, "username must be 1-64 characters without spaces or slashes")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return model.User{}, apperr.Validation(op, "email is invalid")
	}
	return model.User{Email: strings.ToLower(email), Username: username}, nil
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	u, err := req.validate("users.create")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	created, err := h.repo.Create(r.Context(), u)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, apperr.Validation("users.get", "id must be a valid uuid"))
		return
	}
	u, err := h.repo.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (h *UserHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	u, err := h.repo.GetByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromQuery(r.URL.Query())
	users, total, err := h.repo.List(r.Context(), page)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pagination.NewResponse(users, total, page))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, apperr.Validation("users.update", "id must be a valid uuid"))
		return
	}
	var req userRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	u, err := req.validate("users.update")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	u.ID = id
	updated, err := h.repo.Update(r.Context(), u)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, apperr.Validation("users.delete", "id must be a valid uuid"))
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
