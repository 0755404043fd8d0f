package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rudhramentertainment/RBackend/internal/auth"
	"github.com/rudhramentertainment/RBackend/internal/domain"
	"github.com/rudhramentertainment/RBackend/internal/hub"
	"github.com/rudhramentertainment/RBackend/internal/metrics"
)

// LocalsIdentity is the fiber Locals key the upgrade middleware stores the
// authenticated *auth.Identity under.
const LocalsIdentity = "identity"

const (
	EventRead    = "message:read"
	EventReadAck = "message:read:ack"
	EventPing    = "ping"
	EventPong    = "pong"
	EventError   = "error"
)

// Inbound is a client frame.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type PresenceTracker interface {
	AddConnection(ctx context.Context, userID, socketID string, ttl time.Duration) error
	RemoveConnection(ctx context.Context, userID, socketID string) error
	Refresh(ctx context.Context, userID string, ttl time.Duration) error
}

type ReadMarker interface {
	MarkRead(ctx context.Context, userID primitive.ObjectID, messageIDs []string) (int64, error)
}

type WSOptions struct {
	GroupKey      string
	PingInterval  time.Duration
	WriteDeadline time.Duration
	MaxMsgSize    int64
	SendBuffer    int
	InboundRPS    int
	PresenceTTL   time.Duration
}

type WSHandler struct {
	hub      *hub.Hub
	presence PresenceTracker
	reads    ReadMarker
	logger   *zap.SugaredLogger
	opts     WSOptions
}

func NewWSHandler(h *hub.Hub, presence PresenceTracker, reads ReadMarker, opts WSOptions, logger *zap.SugaredLogger) *WSHandler {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.WriteDeadline <= 0 {
		opts.WriteDeadline = 10 * time.Second
	}
	if opts.InboundRPS <= 0 {
		opts.InboundRPS = 10
	}
	if opts.PresenceTTL <= 0 {
		opts.PresenceTTL = 24 * time.Hour
	}
	return &WSHandler{hub: h, presence: presence, reads: reads, logger: logger, opts: opts}
}

// Serve runs one authenticated connection: it joins the user and group rooms,
// pumps outbound frames, and handles inbound events until the socket closes.
func (w *WSHandler) Serve(c *websocket.Conn) {
	id, ok := c.Locals(LocalsIdentity).(*auth.Identity)
	if !ok || id == nil {
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"))
		return
	}

	client := hub.NewClient(id.UserID, id.Role, w.opts.SendBuffer)
	if err := w.hub.Join(client, domain.UserRoom(id.UserID), domain.GroupRoom(w.opts.GroupKey)); err != nil {
		w.logger.Warnw("join rejected", "user_id", id.UserID.Hex(), "err", err)
		return
	}
	metrics.Connections.Inc()
	w.trackPresence(true, id.UserID.Hex(), client.ID)
	w.logger.Infow("socket connected", "user_id", id.UserID.Hex(), "socket_id", client.ID)

	writerDone := make(chan struct{})
	go w.writePump(c, client, id.UserID.Hex(), writerDone)

	w.readPump(c, client, id)

	w.hub.Leave(client)
	<-writerDone
	metrics.Connections.Dec()
	w.trackPresence(false, id.UserID.Hex(), client.ID)
	w.logger.Infow("socket disconnected", "user_id", id.UserID.Hex(), "socket_id", client.ID)
}

func (w *WSHandler) writePump(c *websocket.Conn, client *hub.Client, userID string, done chan<- struct{}) {
	ticker := time.NewTicker(w.opts.PingInterval)
	defer func() {
		ticker.Stop()
		close(done)
	}()
	for {
		select {
		case b, ok := <-client.Send:
			_ = c.SetWriteDeadline(time.Now().Add(w.opts.WriteDeadline))
			if !ok {
				_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
				w.logger.Warnw("write error", "socket_id", client.ID, "err", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.SetWriteDeadline(time.Now().Add(w.opts.WriteDeadline))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				w.logger.Warnw("ping error", "socket_id", client.ID, "err", err)
				_ = c.Close()
				return
			}
			w.refreshPresence(userID)
		}
	}
}

func (w *WSHandler) readPump(c *websocket.Conn, client *hub.Client, id *auth.Identity) {
	if w.opts.MaxMsgSize > 0 {
		c.SetReadLimit(w.opts.MaxMsgSize)
	}
	idle := 2 * w.opts.PingInterval
	_ = c.SetReadDeadline(time.Now().Add(idle))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(idle))
	})
	limiter := rate.NewLimiter(rate.Limit(w.opts.InboundRPS), w.opts.InboundRPS*2)

	for {
		mt, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		_ = c.SetReadDeadline(time.Now().Add(idle))
		if mt != websocket.TextMessage {
			continue
		}
		if !limiter.Allow() {
			_ = w.hub.SendTo(client, EventError, map[string]string{"message": "rate limit exceeded"})
			continue
		}
		var in Inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			_ = w.hub.SendTo(client, EventError, map[string]string{"message": "invalid frame"})
			continue
		}
		w.dispatch(client, id, in)
	}
}

func (w *WSHandler) dispatch(client *hub.Client, id *auth.Identity, in Inbound) {
	switch in.Event {
	case EventPing:
		_ = w.hub.SendTo(client, EventPong, map[string]int64{"at": time.Now().UnixMilli()})
	case EventRead:
		var body struct {
			IDs []string `json:"ids"`
		}
		if err := json.Unmarshal(in.Data, &body); err != nil {
			_ = w.hub.SendTo(client, EventError, map[string]string{"message": "invalid read payload"})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n, err := w.reads.MarkRead(ctx, id.UserID, body.IDs)
		if err != nil {
			w.logger.Warnw("mark read failed", "user_id", id.UserID.Hex(), "err", err)
			_ = w.hub.SendTo(client, EventError, map[string]string{"message": "mark read failed"})
			return
		}
		_ = w.hub.SendTo(client, EventReadAck, map[string]any{"ids": body.IDs, "modified": n})
	default:
		// unknown events are ignored
	}
}

func (w *WSHandler) trackPresence(online bool, userID, socketID string) {
	if w.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var err error
	if online {
		err = w.presence.AddConnection(ctx, userID, socketID, w.opts.PresenceTTL)
	} else {
		err = w.presence.RemoveConnection(ctx, userID, socketID)
	}
	if err != nil {
		w.logger.Warnw("presence update failed", "user_id", userID, "online", online, "err", err)
	}
}

// refreshPresence keeps a long-lived socket's presence keys from expiring.
func (w *WSHandler) refreshPresence(userID string) {
	if w.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.presence.Refresh(ctx, userID, w.opts.PresenceTTL); err != nil {
		w.logger.Warnw("presence refresh failed", "user_id", userID, "err", err)
	}
}
