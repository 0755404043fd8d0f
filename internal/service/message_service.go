package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"github.com/rudhramentertainment/RBackend/internal/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const previewRunes = 120

type MessageService struct {
	store     MessageStore
	users     UserDirectory
	emitter   Emitter
	pusher    Pusher
	publisher EventPublisher
	logger    *zap.SugaredLogger

	groupKey  string
	pushGroup bool
	now       func() time.Time
}

type Option func(*MessageService)

func WithPusher(p Pusher) Option { return func(s *MessageService) { s.pusher = p } }

func WithPublisher(p EventPublisher) Option { return func(s *MessageService) { s.publisher = p } }

func WithGroupKey(key string) Option { return func(s *MessageService) { s.groupKey = key } }

// WithGroupPush controls whether group messages are pushed to every user holding tokens.
func WithGroupPush(enabled bool) Option { return func(s *MessageService) { s.pushGroup = enabled } }

func WithClock(now func() time.Time) Option { return func(s *MessageService) { s.now = now } }

func NewMessageService(store MessageStore, users UserDirectory, emitter Emitter, logger *zap.SugaredLogger, opts ...Option) *MessageService {
	s := &MessageService{
		store:     store,
		users:     users,
		emitter:   emitter,
		logger:    logger,
		groupKey:  "RUDHRAM",
		pushGroup: true,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *MessageService) GroupKey() string { return s.groupKey }

func (s *MessageService) SendDirect(ctx context.Context, senderID primitive.ObjectID, receivers []string, body string, attachments []domain.Attachment, clientID string) (*domain.Message, error) {
	ids, err := ParseIDs(receivers)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: receivers required", domain.ErrValidation)
	}
	m, err := s.newMessage(senderID, domain.ChannelDirect, body, attachments, clientID)
	if err != nil {
		return nil, err
	}
	m.Receivers = ids

	if err := s.store.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	s.afterPersist(ctx, m, directRooms(senderID, ids))
	return m, nil
}

func (s *MessageService) SendGroup(ctx context.Context, senderID primitive.ObjectID, body string, attachments []domain.Attachment, clientID string) (*domain.Message, error) {
	m, err := s.newMessage(senderID, domain.ChannelGroup, body, attachments, clientID)
	if err != nil {
		return nil, err
	}
	m.GroupKey = s.groupKey

	if err := s.store.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	s.afterPersist(ctx, m, []string{domain.GroupRoom(s.groupKey)})
	return m, nil
}

func (s *MessageService) newMessage(senderID primitive.ObjectID, ch domain.Channel, body string, attachments []domain.Attachment, clientID string) (*domain.Message, error) {
	if senderID.IsZero() {
		return nil, fmt.Errorf("%w: sender required", domain.ErrValidation)
	}
	body = strings.TrimSpace(body)
	if body == "" && len(attachments) == 0 {
		return nil, fmt.Errorf("%w: message or attachments required", domain.ErrValidation)
	}
	now := s.now()
	m := &domain.Message{
		ID:          primitive.NewObjectIDFromTimestamp(now),
		SenderID:    senderID,
		Channel:     ch,
		Body:        body,
		Attachments: attachments,
		Kind:        domain.DeriveKind(body, attachments),
		ClientID:    strings.TrimSpace(clientID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.Normalize()
	return m, nil
}

// afterPersist runs the side channels of a committed send. None of them
// can fail the request.
func (s *MessageService) afterPersist(ctx context.Context, m *domain.Message, rooms []string) {
	metrics.MessagesSent.WithLabelValues(string(m.Channel)).Inc()

	if sum, err := s.users.Summaries(ctx, []primitive.ObjectID{m.SenderID}); err != nil {
		s.logger.Warnw("sender lookup failed", "message_id", m.ID.Hex(), "err", err)
	} else if v, ok := sum[m.SenderID]; ok {
		m.Sender = &v
	}

	ev := domain.MessageEvent{Type: m.Channel, Message: m}
	for _, room := range rooms {
		if err := s.emitter.Emit(room, domain.EventMessageNew, ev); err != nil {
			metrics.Emissions.WithLabelValues("error").Inc()
			s.logger.Warnw("emit failed", "room", room, "message_id", m.ID.Hex(), "err", errors.Join(domain.ErrTransport, err))
			continue
		}
		metrics.Emissions.WithLabelValues("ok").Inc()
	}

	if s.publisher != nil {
		go func(m *domain.Message) {
			pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.publisher.PublishMessageCreated(pctx, m); err != nil {
				s.logger.Warnw("publish message.created failed", "message_id", m.ID.Hex(), "err", err)
			}
		}(m)
	}

	s.schedulePush(m)
}

func (s *MessageService) schedulePush(m *domain.Message) {
	if s.pusher == nil {
		return
	}
	n := chatNotification(m)
	switch m.Channel {
	case domain.ChannelDirect:
		targets := make([]primitive.ObjectID, 0, len(m.Receivers))
		for _, r := range m.Receivers {
			if r != m.SenderID {
				targets = append(targets, r)
			}
		}
		if len(targets) > 0 {
			s.pusher.PushAsync(targets, n)
		}
	case domain.ChannelGroup:
		if s.pushGroup {
			s.pusher.BroadcastAsync(m.SenderID, n)
		}
	}
}

func chatNotification(m *domain.Message) domain.Notification {
	title := "New message"
	if m.Sender != nil && m.Sender.DisplayName != "" {
		title = m.Sender.DisplayName
	}
	if m.Channel == domain.ChannelGroup {
		title = fmt.Sprintf("%s in %s", title, m.GroupKey)
	}
	data := map[string]string{
		"type":      "chat",
		"channel":   string(m.Channel),
		"messageId": m.ID.Hex(),
		"senderId":  m.SenderID.Hex(),
	}
	if m.GroupKey != "" {
		data["groupKey"] = m.GroupKey
	}
	return domain.Notification{Title: title, Body: preview(m), Data: data}
}

func preview(m *domain.Message) string {
	if m.Body != "" {
		if utf8.RuneCountInString(m.Body) <= previewRunes {
			return m.Body
		}
		r := []rune(m.Body)
		return string(r[:previewRunes]) + "..."
	}
	switch m.Kind {
	case domain.KindImage:
		return "Sent an image"
	default:
		return "Sent a file"
	}
}

// directRooms lists each distinct user room among the sender and receivers,
// sender first.
func directRooms(sender primitive.ObjectID, receivers []primitive.ObjectID) []string {
	seen := map[primitive.ObjectID]struct{}{sender: {}}
	rooms := []string{domain.UserRoom(sender)}
	for _, r := range receivers {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		rooms = append(rooms, domain.UserRoom(r))
	}
	return rooms
}

func (s *MessageService) ListConversation(ctx context.Context, userA, userB primitive.ObjectID) ([]*domain.Message, error) {
	msgs, err := s.store.Conversation(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	return s.withSenders(ctx, msgs)
}

func (s *MessageService) ListInbox(ctx context.Context, userID primitive.ObjectID, role domain.Role) ([]*domain.Message, error) {
	msgs, err := s.store.Inbox(ctx, userID, role.IsPrivileged())
	if err != nil {
		return nil, err
	}
	return s.withSenders(ctx, msgs)
}

func (s *MessageService) ListGroup(ctx context.Context) ([]*domain.Message, error) {
	msgs, err := s.store.GroupTimeline(ctx, s.groupKey)
	if err != nil {
		return nil, err
	}
	return s.withSenders(ctx, msgs)
}

func (s *MessageService) withSenders(ctx context.Context, msgs []*domain.Message) ([]*domain.Message, error) {
	if len(msgs) == 0 {
		return msgs, nil
	}
	ids := make([]primitive.ObjectID, 0, len(msgs))
	seen := make(map[primitive.ObjectID]struct{})
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			ids = append(ids, m.SenderID)
		}
	}
	sums, err := s.users.Summaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve senders: %w", err)
	}
	for _, m := range msgs {
		if v, ok := sums[m.SenderID]; ok {
			v := v
			m.Sender = &v
		}
	}
	return msgs, nil
}

func (s *MessageService) DeleteMessage(ctx context.Context, id, requester primitive.ObjectID, role domain.Role) error {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if m.SenderID != requester && !role.IsPrivileged() {
		return fmt.Errorf("%w: only the sender or an administrator may delete this message", domain.ErrForbidden)
	}
	return s.store.Delete(ctx, id)
}

func (s *MessageService) DeleteThread(ctx context.Context, userA, userB primitive.ObjectID, role domain.Role) (int64, error) {
	if !role.IsPrivileged() {
		return 0, fmt.Errorf("%w: thread deletion requires an administrator", domain.ErrForbidden)
	}
	return s.store.DeleteThread(ctx, userA, userB)
}

func (s *MessageService) ClearGroup(ctx context.Context, role domain.Role) (int64, error) {
	if !role.IsPrivileged() {
		return 0, fmt.Errorf("%w: clearing the group requires an administrator", domain.ErrForbidden)
	}
	return s.store.DeleteGroup(ctx, s.groupKey)
}

// MarkRead appends a read receipt for userID on each listed message the
// user did not send and has not read yet.
func (s *MessageService) MarkRead(ctx context.Context, userID primitive.ObjectID, messageIDs []string) (int64, error) {
	ids, err := ParseIDs(messageIDs)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: ids required", domain.ErrValidation)
	}
	return s.store.MarkRead(ctx, userID, ids, s.now())
}
