package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"github.com/rudhramentertainment/RBackend/internal/metrics"
	"github.com/rudhramentertainment/RBackend/internal/push"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// TokenRegistry is the per-user device token store.
type TokenRegistry interface {
	AddToken(ctx context.Context, userID primitive.ObjectID, token string) error
	RemoveToken(ctx context.Context, userID primitive.ObjectID, token string) error
	Tokens(ctx context.Context, userID primitive.ObjectID) ([]string, error)
	TokensForUsers(ctx context.Context, ids []primitive.ObjectID) ([]string, error)
	UserIDsWithTokens(ctx context.Context, exclude primitive.ObjectID) ([]primitive.ObjectID, error)
	PruneTokens(ctx context.Context, tokens []string) (int64, error)
}

// Recorder keeps a log of push attempts.
type Recorder interface {
	Insert(ctx context.Context, rec *domain.NotificationRecord) error
}

type job struct {
	userIDs   []primitive.ObjectID
	broadcast bool
	exclude   primitive.ObjectID
	n         domain.Notification
}

// Service resolves users to tokens, sends, and prunes tokens the transport
// reports as invalid. Asynchronous work runs on a fixed worker pool.
type Service struct {
	registry TokenRegistry
	sender   push.Sender
	recorder Recorder
	logger   *zap.SugaredLogger
	timeout  time.Duration

	jobs    chan job
	workers int
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

func NewService(registry TokenRegistry, sender push.Sender, recorder Recorder, logger *zap.SugaredLogger, timeout time.Duration, workers, queueSize int) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Service{
		registry: registry,
		sender:   sender,
		recorder: recorder,
		logger:   logger,
		timeout:  timeout,
		jobs:     make(chan job, queueSize),
		workers:  workers,
	}
}

func (s *Service) RegisterToken(ctx context.Context, userID primitive.ObjectID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token required", domain.ErrValidation)
	}
	return s.registry.AddToken(ctx, userID, token)
}

func (s *Service) RemoveToken(ctx context.Context, userID primitive.ObjectID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token required", domain.ErrValidation)
	}
	return s.registry.RemoveToken(ctx, userID, token)
}

func (s *Service) ListTokens(ctx context.Context, userID primitive.ObjectID) ([]string, error) {
	return s.registry.Tokens(ctx, userID)
}

// PushToUsers sends n to every token of userIDs within the service timeout.
// Transport failures come back as domain.ErrPushDelivery alongside the counts.
func (s *Service) PushToUsers(ctx context.Context, userIDs []primitive.ObjectID, n domain.Notification) (domain.PushResult, error) {
	n = n.WithDefaults()
	ids := dedupeIDs(userIDs)
	if len(ids) == 0 {
		return domain.PushResult{}, nil
	}

	tokens, err := s.registry.TokensForUsers(ctx, ids)
	if err != nil {
		return domain.PushResult{}, fmt.Errorf("resolve tokens: %w", err)
	}
	if len(tokens) == 0 {
		return domain.PushResult{}, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	results, sendErr := s.sender.Send(sendCtx, tokens, n)
	cancel()

	tally := push.Count(results)
	metrics.PushTokens.WithLabelValues(push.Delivered.String()).Add(float64(tally.Delivered))
	metrics.PushTokens.WithLabelValues(push.Transient.String()).Add(float64(tally.Transient))
	metrics.PushTokens.WithLabelValues(push.Invalid.String()).Add(float64(tally.Invalid))

	bad := push.InvalidTokens(results)
	if len(bad) > 0 {
		s.prune(ctx, bad)
	}

	res := domain.PushResult{SuccessCount: tally.Delivered, FailureCount: tally.Transient + tally.Invalid}
	s.record(ctx, ids, n, res, len(bad), sendErr)

	if sendErr != nil {
		return res, fmt.Errorf("%w: %v", domain.ErrPushDelivery, sendErr)
	}
	return res, nil
}

func (s *Service) prune(ctx context.Context, bad []string) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	n, err := s.registry.PruneTokens(pctx, bad)
	if err != nil {
		s.logger.Errorw("prune invalid tokens failed", "tokens", len(bad), "err", err)
		return
	}
	metrics.PrunedTokens.Add(float64(len(bad)))
	s.logger.Infow("pruned invalid device tokens", "tokens", maskTokens(bad), "users_modified", n)
}

func (s *Service) record(ctx context.Context, ids []primitive.ObjectID, n domain.Notification, res domain.PushResult, invalid int, sendErr error) {
	if s.recorder == nil {
		return
	}
	rec := &domain.NotificationRecord{
		UserIDs:       ids,
		Title:         n.Title,
		Body:          n.Body,
		Data:          n.Data,
		SuccessCount:  res.SuccessCount,
		FailureCount:  res.FailureCount,
		InvalidTokens: invalid,
		CreatedAt:     time.Now().UTC(),
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.recorder.Insert(rctx, rec); err != nil {
		s.logger.Warnw("record notification failed", "err", err)
	}
}

// Start launches the worker pool. Workers exit after Close drains the queue.
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for j := range s.jobs {
				s.run(ctx, j)
			}
		}()
	}
}

func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Service) PushAsync(userIDs []primitive.ObjectID, n domain.Notification) {
	s.enqueue(job{userIDs: userIDs, n: n})
}

// BroadcastAsync pushes n to every user holding a token except exclude.
func (s *Service) BroadcastAsync(exclude primitive.ObjectID, n domain.Notification) {
	s.enqueue(job{broadcast: true, exclude: exclude, n: n})
}

func (s *Service) enqueue(j job) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.jobs <- j:
		return true
	default:
		metrics.PushQueueDropped.Inc()
		s.logger.Warnw("push queue full, dropping job", "title", j.n.Title)
		return false
	}
}

func (s *Service) run(ctx context.Context, j job) {
	ids := j.userIDs
	if j.broadcast {
		var err error
		ids, err = s.registry.UserIDsWithTokens(ctx, j.exclude)
		if err != nil {
			s.report(j, fmt.Errorf("resolve broadcast audience: %w", err))
			return
		}
	}
	res, err := s.PushToUsers(ctx, ids, j.n)
	if err != nil {
		s.report(j, err)
		return
	}
	s.logger.Debugw("push delivered", "title", j.n.Title, "success", res.SuccessCount, "failure", res.FailureCount)
}

func (s *Service) report(j job, err error) {
	metrics.PushErrors.Inc()
	if errors.Is(err, domain.ErrPushDelivery) {
		s.logger.Warnw("push delivery failed", "title", j.n.Title, "err", err)
		return
	}
	s.logger.Errorw("push job failed", "title", j.n.Title, "err", err)
}

func dedupeIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func maskTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		if len(t) > 10 {
			t = t[len(t)-10:]
		}
		out[i] = "..." + t
	}
	return out
}
