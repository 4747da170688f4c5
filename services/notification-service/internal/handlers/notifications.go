package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/fanout"
	"github.com/inkwell-labs/inkwell/libs/httpx"
	"github.com/inkwell-labs/inkwell/libs/pagination"
	"github.com/inkwell-labs/inkwell/services/notification-service/internal/model"
	"github.com/inkwell-labs/inkwell/services/notification-service/internal/processor"
	"github.com/inkwell-labs/inkwell/services/notification-service/internal/storage"
)

type Config struct {
	// WSBuffer is the per-connection queue of pending live events.
	WSBuffer int
	// WSOriginPatterns lists extra hosts allowed to open cross-origin
	// WebSocket connections.
	WSOriginPatterns []string
}

type NotificationHandler struct {
	repo   storage.NotificationRepository
	hub    *fanout.Hub[processor.NotificationEvent]
	logger *slog.Logger
	cfg    Config
}

func NewNotificationHandler(repo storage.NotificationRepository, hub *fanout.Hub[processor.NotificationEvent], logger *slog.Logger, cfg Config) *NotificationHandler {
	if cfg.WSBuffer <= 0 {
		cfg.WSBuffer = fanout.DefaultBuffer
	}
	return &NotificationHandler{repo: repo, hub: hub, logger: logger, cfg: cfg}
}

// Register adds the REST routes and the WebSocket stream to mux. The
// stream route must not sit behind httpx.WithTimeout.
func (h *NotificationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/notifications", h.Create)
	mux.HandleFunc("GET /api/v1/notifications/{id}", h.Get)
	mux.HandleFunc("POST /api/v1/notifications/{id}/read", h.MarkRead)
	mux.HandleFunc("PUT /api/v1/notifications/{id}/read", h.MarkRead)
	mux.HandleFunc("DELETE /api/v1/notifications/{id}", h.Delete)
	mux.HandleFunc("GET /api/v1/users/{user_id}/notifications", h.ListForUser)
	mux.HandleFunc("GET /ws/notifications/{user_id}", h.Stream)
}

type createNotificationRequest struct {
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Create stores a notification and pushes it to the user's live streams.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		httpx.WriteError(w, apperr.Validation("notifications.create", "user_id must be a valid uuid"))
		return
	}
	if strings.TrimSpace(req.Kind) == "" || strings.TrimSpace(req.Title) == "" {
		httpx.WriteError(w, apperr.Validation("notifications.create", "kind and title are required"))
		return
	}

	n, err := h.repo.Create(r.Context(), model.Notification{
		UserID:  userID,
		Kind:    req.Kind,
		Title:   req.Title,
		Message: req.Message,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	h.hub.Publish(processor.NotificationEvent{UserID: n.UserID, Kind: n.Kind, Title: n.Title, Message: n.Message})
	httpx.WriteJSON(w, http.StatusCreated, n)
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	n, err := h.repo.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	page := pagination.FromQuery(r.URL.Query())
	items, total, err := h.repo.ListForUser(r.Context(), userID, page)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pagination.NewResponse(items, total, page))
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.repo.MarkRead(r.Context(), id); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		httpx.WriteError(w, apperr.Validation("notifications.path", name+" must be a valid uuid"))
		return uuid.Nil, false
	}
	return id, true
}
