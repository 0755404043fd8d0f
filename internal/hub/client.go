package hub

import (
	"time"

	"github.com/google/uuid"
	"github.com/rudhramentertainment/RBackend/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Client is one live socket. Send is owned by the hub: it is closed exactly
// once when the client leaves or the hub shuts down.
type Client struct {
	ID        string
	UserID    primitive.ObjectID
	Role      domain.Role
	Send      chan []byte
	Connected time.Time
}

func NewClient(userID primitive.ObjectID, role domain.Role, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		ID:        uuid.New().String(),
		UserID:    userID,
		Role:      role,
		Send:      make(chan []byte, buffer),
		Connected: time.Now().UTC(),
	}
}
