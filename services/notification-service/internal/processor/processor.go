// Package processor turns domain events into stored notifications and live
// pushes.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/fanout"
	"github.com/inkwell-labs/inkwell/libs/outbox"
	"github.com/inkwell-labs/inkwell/services/notification-service/internal/model"
)

const (
	EventPostCreated    = "post_created"
	EventUserRegistered = "user_registered"
)

// NotificationEvent is pushed to live listeners. It is never persisted.
type NotificationEvent struct {
	UserID  uuid.UUID `json:"user_id"`
	Kind    string    `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
}

// Creator is the part of the notification store the processor writes to.
type Creator interface {
	Create(ctx context.Context, n model.Notification) (model.Notification, error)
}

// EventCreator stores a notification together with the id of the event
// that produced it, atomically. The bool is false for an event seen before.
type EventCreator interface {
	CreateForEvent(ctx context.Context, eventID uuid.UUID, eventType string, n model.Notification) (model.Notification, bool, error)
}

type Processor struct {
	store  Creator
	dedupe EventCreator
	hub    *fanout.Hub[NotificationEvent]
	logger *slog.Logger
}

func New(store Creator, hub *fanout.Hub[NotificationEvent], logger *slog.Logger) *Processor {
	return &Processor{store: store, hub: hub, logger: logger}
}

// Deduplicate switches writes to store, which records the event id with the
// notification. A redelivered event then produces neither a row nor a push.
func (p *Processor) Deduplicate(store EventCreator) *Processor {
	p.dedupe = store
	return p
}

// Process handles one event. Unknown event types and events without a
// usable target user are ignored. The live push happens even when the write
// fails.
func (p *Processor) Process(ctx context.Context, rec outbox.Record) {
	evt, ok := toNotification(rec)
	if !ok {
		p.logger.DebugContext(ctx, "event ignored", "event_id", rec.ID, "event_type", rec.EventType)
		return
	}

	n := model.Notification{
		UserID:  evt.UserID,
		Kind:    evt.Kind,
		Title:   evt.Title,
		Message: evt.Message,
	}
	var err error
	if p.dedupe != nil {
		var created bool
		n, created, err = p.dedupe.CreateForEvent(ctx, rec.ID, rec.EventType, n)
		if err == nil && !created {
			p.logger.InfoContext(ctx, "duplicate event ignored", "event_id", rec.ID, "event_type", rec.EventType)
			return
		}
	} else {
		n, err = p.store.Create(ctx, n)
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "notification write failed", "err", err, "event_id", rec.ID, "user_id", evt.UserID)
	} else {
		p.logger.InfoContext(ctx, "notification created", "notification_id", n.ID, "user_id", evt.UserID, "kind", evt.Kind)
	}
	p.hub.Publish(evt)
}

type eventPayload struct {
	AuthorID string `json:"author_id"`
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
	Username string `json:"username"`
}

func toNotification(rec outbox.Record) (NotificationEvent, bool) {
	var payload eventPayload
	if len(rec.Payload) > 0 {
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return NotificationEvent{}, false
		}
	}

	switch rec.EventType {
	case EventPostCreated:
		userID, err := uuid.Parse(payload.AuthorID)
		if err != nil {
			return NotificationEvent{}, false
		}
		title := payload.Title
		if title == "" {
			title = "Untitled"
		}
		return NotificationEvent{
			UserID:  userID,
			Kind:    model.KindPostCreated,
			Title:   "New Post Published",
			Message: fmt.Sprintf("Your post '%s' has been published!", title),
		}, true
	case EventUserRegistered:
		userID, err := uuid.Parse(payload.UserID)
		if err != nil {
			return NotificationEvent{}, false
		}
		username := payload.Username
		if username == "" {
			username = "User"
		}
		return NotificationEvent{
			UserID:  userID,
			Kind:    model.KindWelcome,
			Title:   "Welcome to Our Blog",
			Message: fmt.Sprintf("Hello %s, welcome to our blog! Start sharing your thoughts", username),
		}, true
	default:
		return NotificationEvent{}, false
	}
}
