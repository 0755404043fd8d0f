package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type recordingRelay struct {
	mu    sync.Mutex
	rooms []string
	err   error
	block chan struct{}
}

func (r *recordingRelay) Publish(ctx context.Context, room string, _ []byte) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = append(r.rooms, room)
	return r.err
}

func newClient(buf int) *Client {
	return NewClient(primitive.NewObjectID(), domain.RoleTeamMember, buf)
}

func TestEmitReachesRoomMembersOnly(t *testing.T) {
	h := NewHub(zap.NewNop().Sugar())
	a, b := newClient(4), newClient(4)
	_ = h.Join(a, domain.UserRoom(a.UserID), domain.GroupRoom("RUDHRAM"))
	_ = h.Join(b, domain.UserRoom(b.UserID), domain.GroupRoom("RUDHRAM"))

	if err := h.Emit(domain.UserRoom(a.UserID), domain.EventMessageNew, map[string]string{"k": "v"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(a.Send) != 1 || len(b.Send) != 0 {
		t.Fatalf("a=%d b=%d", len(a.Send), len(b.Send))
	}
	var env struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	if err := json.Unmarshal(<-a.Send, &env); err != nil {
		t.Fatal(err)
	}
	if env.Event != domain.EventMessageNew || env.Data["k"] != "v" {
		t.Fatalf("frame %+v", env)
	}

	_ = h.Emit(domain.GroupRoom("RUDHRAM"), domain.EventMessageNew, 1)
	if len(a.Send) != 1 || len(b.Send) != 1 {
		t.Fatal("group emit missed a member")
	}
	if err := h.Emit("user:nobody", domain.EventMessageNew, 1); err != nil {
		t.Fatalf("empty room should not fail: %v", err)
	}
}

func TestSlowClientDropsFrames(t *testing.T) {
	h := NewHub(zap.NewNop().Sugar())
	c := newClient(1)
	_ = h.Join(c, "r")
	if n := h.Deliver("r", []byte("1")); n != 1 {
		t.Fatalf("delivered %d", n)
	}
	if n := h.Deliver("r", []byte("2")); n != 0 {
		t.Fatalf("full buffer should drop, delivered %d", n)
	}
}

func TestLeaveClosesSendAndEmptiesRooms(t *testing.T) {
	h := NewHub(zap.NewNop().Sugar())
	c := newClient(1)
	_ = h.Join(c, "a", "b", "a")
	if h.RoomSize("a") != 1 {
		t.Fatalf("duplicate join counted twice")
	}
	h.Leave(c)
	h.Leave(c)
	if _, ok := <-c.Send; ok {
		t.Fatal("send channel still open")
	}
	if h.RoomSize("a") != 0 || h.RoomSize("b") != 0 {
		t.Fatal("rooms not emptied")
	}
	if err := h.SendTo(c, "pong", nil); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("send to departed client: %v", err)
	}
}

func TestRelayAndClose(t *testing.T) {
	h := NewHub(zap.NewNop().Sugar())
	relay := &recordingRelay{err: errors.New("redis down")}
	h.SetRelay(relay)
	if err := h.Emit("group:X", "e", nil); err != nil {
		t.Fatalf("relay failure must not fail the emit: %v", err)
	}

	c := newClient(1)
	_ = h.Join(c, "r")
	h.Close()
	if _, ok := <-c.Send; ok {
		t.Fatal("close left client open")
	}
	relay.mu.Lock()
	if len(relay.rooms) != 1 || relay.rooms[0] != "group:X" {
		t.Fatalf("relay saw %v", relay.rooms)
	}
	relay.mu.Unlock()
	if err := h.Emit("r", "e", nil); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("emit after close: %v", err)
	}
	if err := h.Join(newClient(1), "r"); !errors.Is(err, domain.ErrTransport) {
		t.Fatal("join after close accepted")
	}
}

func TestSlowRelayDoesNotDelayLocalDelivery(t *testing.T) {
	h := NewHub(zap.NewNop().Sugar())
	relay := &recordingRelay{block: make(chan struct{})}
	h.SetRelay(relay)
	c := newClient(4)
	_ = h.Join(c, "r")

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := h.Emit("r", "e", nil); err != nil {
			t.Fatal(err)
		}
	}
	if d := time.Since(start); d > 500*time.Millisecond {
		t.Fatalf("emit blocked on relay for %v", d)
	}
	if len(c.Send) != 3 {
		t.Fatalf("local frames %d", len(c.Send))
	}
	close(relay.block)
	h.Close()
	relay.mu.Lock()
	defer relay.mu.Unlock()
	if len(relay.rooms) != 3 {
		t.Fatalf("relay flushed %d frames", len(relay.rooms))
	}
}
