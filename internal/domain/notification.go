package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification is a push payload. Data values are strings because push
// transports only carry string maps; unknown keys must be ignorable by clients.
type Notification struct {
	Title string            `json:"title" validate:"required"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// WithDefaults returns a copy whose data carries a type, "generic" when absent.
func (n Notification) WithDefaults() Notification {
	data := make(map[string]string, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	if data["type"] == "" {
		data["type"] = "generic"
	}
	n.Data = data
	return n
}

type PushResult struct {
	SuccessCount int `json:"successCount"`
	FailureCount int `json:"failureCount"`
}

// NotificationRecord is the persisted log entry of one push attempt.
type NotificationRecord struct {
	ID            primitive.ObjectID   `bson:"_id" json:"id"`
	UserIDs       []primitive.ObjectID `bson:"userIds" json:"userIds"`
	Title         string               `bson:"title" json:"title"`
	Body          string               `bson:"body" json:"body"`
	Data          map[string]string    `bson:"data,omitempty" json:"data,omitempty"`
	SuccessCount  int                  `bson:"successCount" json:"successCount"`
	FailureCount  int                  `bson:"failureCount" json:"failureCount"`
	InvalidTokens int                  `bson:"invalidTokens" json:"invalidTokens"`
	Error         string               `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
}
