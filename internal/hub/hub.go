package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"github.com/rudhramentertainment/RBackend/internal/metrics"
	"go.uber.org/zap"
)

// Relay forwards frames to other instances sharing the same rooms.
type Relay interface {
	Publish(ctx context.Context, room string, frame []byte) error
}

const relayQueueSize = 256

type relayFrame struct {
	room  string
	frame []byte
}

type Hub struct {
	mu        sync.RWMutex
	rooms     map[string]map[*Client]struct{}
	joined    map[*Client][]string
	closed    bool
	relayQ    chan relayFrame
	relayDone chan struct{}
	logger    *zap.SugaredLogger
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		joined: make(map[*Client][]string),
		logger: logger,
	}
}

// SetRelay starts forwarding emitted frames to r. Publishing happens on a
// background goroutine so a slow relay never delays local delivery.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.relayQ != nil {
		return
	}
	h.relayQ = make(chan relayFrame, relayQueueSize)
	h.relayDone = make(chan struct{})
	go h.runRelay(r, h.relayQ, h.relayDone)
}

func (h *Hub) runRelay(r Relay, q <-chan relayFrame, done chan<- struct{}) {
	defer close(done)
	for f := range q {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := r.Publish(ctx, f.room, f.frame)
		cancel()
		if err != nil {
			metrics.RelayFrames.WithLabelValues("failed").Inc()
			h.logger.Warnw("relay publish failed", "room", f.room, "err", err)
			continue
		}
		metrics.RelayFrames.WithLabelValues("published").Inc()
	}
}

func (h *Hub) Join(c *Client, rooms ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return domain.ErrTransport
	}
	for _, room := range rooms {
		set, ok := h.rooms[room]
		if !ok {
			set = make(map[*Client]struct{})
			h.rooms[room] = set
		}
		if _, dup := set[c]; dup {
			continue
		}
		set[c] = struct{}{}
		h.joined[c] = append(h.joined[c], room)
	}
	return nil
}

// Leave removes c from every room and closes its send channel.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.joined[c]
	if !ok {
		return
	}
	for _, room := range rooms {
		if set, ok := h.rooms[room]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.joined, c)
	close(c.Send)
}

// Emit delivers an event to local members of room and queues it for other
// instances. A room with no members is not an error.
func (h *Hub) Emit(room, event string, payload any) error {
	frame, err := json.Marshal(domain.Envelope{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return domain.ErrTransport
	}

	h.Deliver(room, frame)
	h.enqueueRelay(room, frame)
	return nil
}

func (h *Hub) enqueueRelay(room string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed || h.relayQ == nil {
		return
	}
	select {
	case h.relayQ <- relayFrame{room: room, frame: frame}:
	default:
		metrics.RelayFrames.WithLabelValues("dropped").Inc()
		h.logger.Warnw("relay queue full, dropping frame", "room", room)
	}
}

// Deliver writes a pre-encoded frame to local members only. Slow clients
// lose the frame rather than stalling the sender.
func (h *Hub) Deliver(room string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.rooms[room] {
		select {
		case c.Send <- frame:
			n++
		default:
			metrics.DroppedFrames.Inc()
			h.logger.Warnw("dropping frame for slow client", "room", room, "client", c.ID, "user_id", c.UserID.Hex())
		}
	}
	return n
}

// SendTo writes a frame to a single client if it is still joined.
func (h *Hub) SendTo(c *Client, event string, payload any) error {
	frame, err := json.Marshal(domain.Envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.joined[c]; !ok {
		return domain.ErrTransport
	}
	select {
	case c.Send <- frame:
		return nil
	default:
		metrics.DroppedFrames.Inc()
		return domain.ErrTransport
	}
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close disconnects every client and flushes queued relay frames. Later
// emits fail with ErrTransport.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.joined {
		close(c.Send)
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.joined = make(map[*Client][]string)
	done := h.relayDone
	if h.relayQ != nil {
		close(h.relayQ)
	}
	h.mu.Unlock()

	if done != nil {
		<-done
	}
}
