package api

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rudhramentertainment/RBackend/internal/auth"
	"github.com/rudhramentertainment/RBackend/internal/domain"
	redisstore "github.com/rudhramentertainment/RBackend/internal/redis"
	"github.com/rudhramentertainment/RBackend/internal/service"
	"github.com/rudhramentertainment/RBackend/internal/storage"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

type Messages interface {
	SendDirect(ctx context.Context, senderID primitive.ObjectID, receivers []string, body string, attachments []domain.Attachment, clientID string) (*domain.Message, error)
	SendGroup(ctx context.Context, senderID primitive.ObjectID, body string, attachments []domain.Attachment, clientID string) (*domain.Message, error)
	ListConversation(ctx context.Context, userA, userB primitive.ObjectID) ([]*domain.Message, error)
	ListInbox(ctx context.Context, userID primitive.ObjectID, role domain.Role) ([]*domain.Message, error)
	ListGroup(ctx context.Context) ([]*domain.Message, error)
	DeleteMessage(ctx context.Context, id, requester primitive.ObjectID, role domain.Role) error
	DeleteThread(ctx context.Context, userA, userB primitive.ObjectID, role domain.Role) (int64, error)
	ClearGroup(ctx context.Context, role domain.Role) (int64, error)
	MarkRead(ctx context.Context, userID primitive.ObjectID, messageIDs []string) (int64, error)
}

type UnreadCounter interface {
	UnreadCounts(ctx context.Context, userID primitive.ObjectID) (*service.UnreadCounts, error)
}

type Notifier interface {
	RegisterToken(ctx context.Context, userID primitive.ObjectID, token string) error
	RemoveToken(ctx context.Context, userID primitive.ObjectID, token string) error
	ListTokens(ctx context.Context, userID primitive.ObjectID) ([]string, error)
	PushAsync(userIDs []primitive.ObjectID, n domain.Notification)
}

type NotificationLog interface {
	ListForUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]*domain.NotificationRecord, error)
}

type PresenceReader interface {
	GetPresence(ctx context.Context, userID string) (*redisstore.Presence, error)
}

type SendLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Attachments interface {
	SaveAll(ctx context.Context, uploads []storage.Upload) ([]domain.Attachment, error)
	MaxFiles() int
}
