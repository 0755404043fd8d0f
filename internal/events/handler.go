package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rudhramentertainment/RBackend/internal/domain"
	"github.com/rudhramentertainment/RBackend/internal/metrics"
	"github.com/rudhramentertainment/RBackend/internal/notify"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var errMalformed = errors.New("malformed event")

type Pusher interface {
	PushToUsers(ctx context.Context, userIDs []primitive.ObjectID, n domain.Notification) (domain.PushResult, error)
	BroadcastAsync(exclude primitive.ObjectID, n domain.Notification)
}

type DeadLetter interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type Handler struct {
	pusher         Pusher
	dlq            DeadLetter
	validate       *validator.Validate
	logger         *zap.SugaredLogger
	maxRetries     int
	retryBackoffMs int
}

func NewHandler(pusher Pusher, dlq DeadLetter, maxRetries, backoffMs int, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		pusher:         pusher,
		dlq:            dlq,
		validate:       validator.New(),
		logger:         logger,
		maxRetries:     maxRetries,
		retryBackoffMs: backoffMs,
	}
}

// Translate turns an event into its audience and payload.
func Translate(ev *Event) ([]primitive.ObjectID, domain.Notification, error) {
	ids := make([]primitive.ObjectID, 0, len(ev.UserIDs))
	for _, s := range ev.UserIDs {
		id, err := domain.ParseID(s)
		if err != nil {
			return nil, domain.Notification{}, err
		}
		ids = append(ids, id)
	}

	var n domain.Notification
	missing := func(what string) error { return fmt.Errorf("%w: %s payload missing", errMalformed, what) }
	switch ev.Type {
	case TypeTaskAssigned:
		if ev.Task == nil {
			return nil, n, missing("task")
		}
		n = notify.TaskAssigned(ev.Task.ID, ev.Task.Title, ev.Task.Deadline)
	case TypeTaskDeadline:
		if ev.Task == nil {
			return nil, n, missing("task")
		}
		n = notify.TaskDeadline(ev.Task.ID, ev.Task.Title, ev.Task.Deadline, ev.Task.DaysLeft)
	case TypeMeetingCreated:
		if ev.Meeting == nil {
			return nil, n, missing("meeting")
		}
		n = notify.MeetingCreated(ev.Meeting.ID, ev.Meeting.Title, ev.Meeting.StartTime)
	case TypeLeadConverted:
		if ev.Lead == nil {
			return nil, n, missing("lead")
		}
		n = notify.LeadConverted(ev.Lead.ID, ev.Lead.Name)
	case TypeGeneric:
		if ev.Notification == nil {
			return nil, n, missing("notification")
		}
		n = *ev.Notification
	default:
		return nil, n, fmt.Errorf("%w: unknown type %q", errMalformed, ev.Type)
	}
	return ids, n.WithDefaults(), nil
}

// HandleEvent decodes and dispatches one event. Malformed events go straight
// to the dead letter topic; store failures are retried with backoff first.
// Push transport failures are final and only logged.
func (h *Handler) HandleEvent(ctx context.Context, key, raw []byte) error {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return h.deadLetter(ctx, key, raw, "unknown", fmt.Errorf("%w: %v", errMalformed, err))
	}
	if err := h.validate.Struct(&ev); err != nil {
		return h.deadLetter(ctx, key, raw, ev.Type, fmt.Errorf("%w: %v", errMalformed, err))
	}
	ids, n, err := Translate(&ev)
	if err != nil {
		return h.deadLetter(ctx, key, raw, ev.Type, err)
	}

	if ev.Broadcast || (len(ids) == 0 && ev.Type == TypeLeadConverted) {
		h.pusher.BroadcastAsync(primitive.NilObjectID, n)
		metrics.DomainEvents.WithLabelValues(ev.Type, "broadcast").Inc()
		return nil
	}
	if len(ids) == 0 {
		metrics.DomainEvents.WithLabelValues(ev.Type, "empty").Inc()
		return nil
	}

	var lastErr error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			sleep := time.Duration(h.retryBackoffMs*(1<<uint(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
		}
		res, err := h.pusher.PushToUsers(ctx, ids, n)
		if err == nil {
			metrics.DomainEvents.WithLabelValues(ev.Type, "ok").Inc()
			h.logger.Infow("domain event pushed", "type", ev.Type, "success", res.SuccessCount, "failure", res.FailureCount)
			return nil
		}
		if errors.Is(err, domain.ErrPushDelivery) {
			metrics.DomainEvents.WithLabelValues(ev.Type, "push_failed").Inc()
			h.logger.Warnw("domain event push failed", "type", ev.Type, "err", err)
			return nil
		}
		lastErr = err
		h.logger.Warnw("domain event attempt failed", "type", ev.Type, "attempt", attempt, "err", err)
	}
	return h.deadLetter(ctx, key, raw, ev.Type, lastErr)
}

func (h *Handler) deadLetter(ctx context.Context, key, raw []byte, typ string, cause error) error {
	metrics.DomainEvents.WithLabelValues(typ, "dead_letter").Inc()
	h.logger.Errorw("sending event to DLQ", "type", typ, "err", cause)
	if h.dlq == nil {
		return cause
	}
	if err := h.dlq.Publish(ctx, string(key), raw); err != nil {
		return errors.Join(cause, fmt.Errorf("dlq publish: %w", err))
	}
	return cause
}
