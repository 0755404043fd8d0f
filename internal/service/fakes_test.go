package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type memStore struct {
	mu   sync.Mutex
	msgs map[primitive.ObjectID]*domain.Message
	fail error
}

func newMemStore() *memStore {
	return &memStore{msgs: make(map[primitive.ObjectID]*domain.Message)}
}

func (s *memStore) Insert(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	cp := *m
	s.msgs[m.ID] = &cp
	return nil
}

func (s *memStore) FindByID(_ context.Context, id primitive.ObjectID) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) filter(keep func(*domain.Message) bool, asc bool) []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.Message{}
	for _, m := range s.msgs {
		if keep(m) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if asc {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func pairMatches(m *domain.Message, a, b primitive.ObjectID) bool {
	if m.Channel != domain.ChannelDirect {
		return false
	}
	has := func(id primitive.ObjectID) bool {
		for _, r := range m.Receivers {
			if r == id {
				return true
			}
		}
		return false
	}
	return (m.SenderID == a && has(b)) || (m.SenderID == b && has(a))
}

func (s *memStore) Conversation(_ context.Context, a, b primitive.ObjectID) ([]*domain.Message, error) {
	return s.filter(func(m *domain.Message) bool { return pairMatches(m, a, b) }, true), nil
}

func (s *memStore) Inbox(_ context.Context, userID primitive.ObjectID, all bool) ([]*domain.Message, error) {
	return s.filter(func(m *domain.Message) bool { return all || m.Involves(userID) }, false), nil
}

func (s *memStore) GroupTimeline(_ context.Context, key string) ([]*domain.Message, error) {
	return s.filter(func(m *domain.Message) bool {
		return m.Channel == domain.ChannelGroup && m.GroupKey == key
	}, true), nil
}

func (s *memStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.msgs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.msgs, id)
	return nil
}

func (s *memStore) deleteWhere(match func(*domain.Message) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.msgs {
		if match(m) {
			delete(s.msgs, id)
			n++
		}
	}
	return n
}

func (s *memStore) DeleteThread(_ context.Context, a, b primitive.ObjectID) (int64, error) {
	return s.deleteWhere(func(m *domain.Message) bool { return pairMatches(m, a, b) }), nil
}

func (s *memStore) DeleteGroup(_ context.Context, key string) (int64, error) {
	return s.deleteWhere(func(m *domain.Message) bool {
		return m.Channel == domain.ChannelGroup && m.GroupKey == key
	}), nil
}

func (s *memStore) MarkRead(_ context.Context, userID primitive.ObjectID, ids []primitive.ObjectID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		m, ok := s.msgs[id]
		if !ok || m.SenderID == userID || m.ReadByUser(userID) {
			continue
		}
		if m.Channel == domain.ChannelDirect && !m.Involves(userID) {
			continue
		}
		m.ReadBy = append(m.ReadBy, domain.ReadReceipt{UserID: userID, ReadAt: at})
		n++
	}
	return n, nil
}

func (s *memStore) UnreadDirect(_ context.Context, userID primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[primitive.ObjectID]int64{}
	for _, m := range s.msgs {
		if m.Channel == domain.ChannelDirect && m.SenderID != userID && m.Involves(userID) && !m.ReadByUser(userID) {
			out[m.SenderID]++
		}
	}
	return out, nil
}

func (s *memStore) UnreadGroup(_ context.Context, userID primitive.ObjectID, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.msgs {
		if m.Channel == domain.ChannelGroup && m.GroupKey == key && m.SenderID != userID && !m.ReadByUser(userID) {
			n++
		}
	}
	return n, nil
}

type stubDirectory struct {
	users map[primitive.ObjectID]domain.SenderSummary
}

func (d *stubDirectory) Summaries(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.SenderSummary, error) {
	out := map[primitive.ObjectID]domain.SenderSummary{}
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type emission struct {
	room    string
	event   string
	payload any
}

type recordingEmitter struct {
	mu    sync.Mutex
	calls []emission
	err   error
}

func (e *recordingEmitter) Emit(room, event string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, emission{room, event, payload})
	return e.err
}

func (e *recordingEmitter) rooms() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.calls))
	for _, c := range e.calls {
		out = append(out, c.room)
	}
	return out
}

type recordingPusher struct {
	mu        sync.Mutex
	direct    [][]primitive.ObjectID
	broadcast []primitive.ObjectID
	last      domain.Notification
}

func (p *recordingPusher) PushAsync(ids []primitive.ObjectID, n domain.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.direct = append(p.direct, ids)
	p.last = n
}

func (p *recordingPusher) BroadcastAsync(exclude primitive.ObjectID, n domain.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcast = append(p.broadcast, exclude)
	p.last = n
}

var errBoom = errors.New("boom")

type fixture struct {
	store   *memStore
	emitter *recordingEmitter
	pusher  *recordingPusher
	svc     *MessageService
	clock   time.Time
}

func newFixture(users ...domain.SenderSummary) *fixture {
	f := &fixture{
		store:   newMemStore(),
		emitter: &recordingEmitter{},
		pusher:  &recordingPusher{},
		clock:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	dir := &stubDirectory{users: map[primitive.ObjectID]domain.SenderSummary{}}
	for _, u := range users {
		dir.users[u.ID] = u
	}
	tick := func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	f.svc = NewMessageService(f.store, dir, f.emitter, zap.NewNop().Sugar(),
		WithPusher(f.pusher), WithGroupKey("RUDHRAM"), WithClock(tick))
	return f
}
