package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Channel string

const (
	ChannelDirect Channel = "direct"
	ChannelGroup  Channel = "group"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindFile  Kind = "file"
	KindMixed Kind = "mixed"
)

// EventMessageNew is the realtime event carrying a freshly persisted message.
const EventMessageNew = "message:new"

type Attachment struct {
	URL       string `bson:"url" json:"url"`
	Name      string `bson:"name" json:"name"`
	MimeType  string `bson:"mime" json:"mimeType"`
	SizeBytes int64  `bson:"size" json:"sizeBytes"`
	Width     int    `bson:"width,omitempty" json:"width,omitempty"`
	Height    int    `bson:"height,omitempty" json:"height,omitempty"`
	ThumbURL  string `bson:"thumbUrl,omitempty" json:"thumbUrl,omitempty"`
}

func (a Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(a.MimeType), "image/")
}

type ReadReceipt struct {
	UserID primitive.ObjectID `bson:"user" json:"userId"`
	ReadAt time.Time          `bson:"readAt" json:"readAt"`
}

type Message struct {
	ID          primitive.ObjectID   `bson:"_id" json:"id"`
	SenderID    primitive.ObjectID   `bson:"sender" json:"senderId"`
	Sender      *SenderSummary       `bson:"-" json:"sender,omitempty"`
	Channel     Channel              `bson:"channel" json:"channel"`
	Receivers   []primitive.ObjectID `bson:"receivers" json:"receivers"`
	GroupKey    string               `bson:"groupKey,omitempty" json:"groupKey,omitempty"`
	Body        string               `bson:"message" json:"message"`
	Attachments []Attachment         `bson:"attachments" json:"attachments"`
	Kind        Kind                 `bson:"kind" json:"kind"`
	ReadBy      []ReadReceipt        `bson:"readBy" json:"readBy"`
	ClientID    string               `bson:"clientId,omitempty" json:"clientId,omitempty"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// DeriveKind computes the message kind from its content. A non-image
// attachment always yields KindFile.
func DeriveKind(body string, attachments []Attachment) Kind {
	if len(attachments) == 0 {
		return KindText
	}
	for _, a := range attachments {
		if !a.IsImage() {
			return KindFile
		}
	}
	if strings.TrimSpace(body) != "" {
		return KindMixed
	}
	return KindImage
}

// ReadByUser reports whether userID has acknowledged the message.
func (m *Message) ReadByUser(userID primitive.ObjectID) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// Involves reports whether userID sent or received the message.
func (m *Message) Involves(userID primitive.ObjectID) bool {
	if m.SenderID == userID {
		return true
	}
	for _, r := range m.Receivers {
		if r == userID {
			return true
		}
	}
	return false
}

// Normalize fills nil slices so the document always encodes arrays.
func (m *Message) Normalize() {
	if m.Receivers == nil {
		m.Receivers = []primitive.ObjectID{}
	}
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}
	if m.ReadBy == nil {
		m.ReadBy = []ReadReceipt{}
	}
}

func UserRoom(id primitive.ObjectID) string { return "user:" + id.Hex() }
func GroupRoom(key string) string          { return "group:" + key }

// Envelope is the frame written to websocket clients.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// MessageEvent is the payload of EventMessageNew.
type MessageEvent struct {
	Type    Channel  `json:"type"`
	Message *Message `json:"message"`
}
