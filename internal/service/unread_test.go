package service

import (
	"context"
	"testing"

	"github.com/rudhramentertainment/RBackend/internal/domain"
)

func TestUnreadCountsGroup(t *testing.T) {
	u, other := user("u", ""), user("o", "")
	f := newFixture(u, other)
	ctx := context.Background()
	unread := NewUnreadService(f.store, "RUDHRAM")

	const k = 4
	var first *domain.Message
	for i := 0; i < k; i++ {
		m, err := f.svc.SendGroup(ctx, other.ID, "hello", nil, "")
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = m
		}
	}
	if _, err := f.svc.SendGroup(ctx, u.ID, "own", nil, ""); err != nil {
		t.Fatal(err)
	}

	got, err := unread.UnreadCounts(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Group["RUDHRAM"] != k {
		t.Fatalf("group unread %d want %d", got.Group["RUDHRAM"], k)
	}

	n, err := f.svc.MarkRead(ctx, u.ID, []string{first.ID.Hex()})
	if err != nil || n != 1 {
		t.Fatalf("mark read n=%d err=%v", n, err)
	}
	if n, _ := f.svc.MarkRead(ctx, u.ID, []string{first.ID.Hex()}); n != 0 {
		t.Fatalf("second ack must be a no-op, modified %d", n)
	}
	got, _ = unread.UnreadCounts(ctx, u.ID)
	if got.Group["RUDHRAM"] != k-1 {
		t.Fatalf("group unread after read %d want %d", got.Group["RUDHRAM"], k-1)
	}
}

func TestUnreadCountsDirectPerSender(t *testing.T) {
	u, a, b := user("u", ""), user("a", ""), user("b", "")
	f := newFixture(u, a, b)
	ctx := context.Background()
	unread := NewUnreadService(f.store, "RUDHRAM")

	_, _ = f.svc.SendDirect(ctx, a.ID, []string{u.ID.Hex()}, "1", nil, "")
	_, _ = f.svc.SendDirect(ctx, a.ID, []string{u.ID.Hex()}, "2", nil, "")
	mb, _ := f.svc.SendDirect(ctx, b.ID, []string{u.ID.Hex()}, "3", nil, "")
	_, _ = f.svc.SendDirect(ctx, u.ID, []string{a.ID.Hex()}, "reply", nil, "")

	got, err := unread.UnreadCounts(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Direct[a.ID.Hex()] != 2 || got.Direct[b.ID.Hex()] != 1 || len(got.Direct) != 2 {
		t.Fatalf("direct counts %v", got.Direct)
	}

	// the sender never counts its own messages, even when acking them
	if n, _ := f.svc.MarkRead(ctx, b.ID, []string{mb.ID.Hex()}); n != 0 {
		t.Fatalf("sender read receipt recorded")
	}
	if n, _ := f.svc.MarkRead(ctx, a.ID, []string{mb.ID.Hex()}); n != 0 {
		t.Fatalf("outsider read receipt recorded")
	}
	_, _ = f.svc.MarkRead(ctx, u.ID, []string{mb.ID.Hex()})
	got, _ = unread.UnreadCounts(ctx, u.ID)
	if _, ok := got.Direct[b.ID.Hex()]; ok {
		t.Fatalf("read peer should drop out: %v", got.Direct)
	}
	if got.Group["RUDHRAM"] != 0 {
		t.Fatalf("group key must always be reported")
	}
}
