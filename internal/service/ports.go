package service

import (
	"context"
	"time"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageStore persists chat messages. Implementations return
// domain.ErrNotFound for absent documents.
type MessageStore interface {
	Insert(ctx context.Context, m *domain.Message) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Message, error)
	Conversation(ctx context.Context, a, b primitive.ObjectID) ([]*domain.Message, error)
	Inbox(ctx context.Context, userID primitive.ObjectID, all bool) ([]*domain.Message, error)
	GroupTimeline(ctx context.Context, groupKey string) ([]*domain.Message, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteThread(ctx context.Context, a, b primitive.ObjectID) (int64, error)
	DeleteGroup(ctx context.Context, groupKey string) (int64, error)
	MarkRead(ctx context.Context, userID primitive.ObjectID, ids []primitive.ObjectID, at time.Time) (int64, error)
}

// UnreadStore answers the aggregation queries behind unread badges.
type UnreadStore interface {
	UnreadDirect(ctx context.Context, userID primitive.ObjectID) (map[primitive.ObjectID]int64, error)
	UnreadGroup(ctx context.Context, userID primitive.ObjectID, groupKey string) (int64, error)
}

// UserDirectory resolves public sender summaries.
type UserDirectory interface {
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.SenderSummary, error)
}

// Emitter delivers an event to every live connection in a room.
type Emitter interface {
	Emit(room, event string, payload any) error
}

// Pusher schedules best-effort device pushes. Calls never block on delivery.
type Pusher interface {
	PushAsync(userIDs []primitive.ObjectID, n domain.Notification)
	BroadcastAsync(exclude primitive.ObjectID, n domain.Notification)
}

// EventPublisher forwards persisted messages to downstream consumers.
type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, m *domain.Message) error
}
