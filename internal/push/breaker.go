package push

import (
	"context"
	"time"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSender stops calling the transport after repeated whole-call
// failures. Per-token failures do not count against it.
type BreakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerSender(next Sender, maxFailures uint32, openFor time.Duration, logger *zap.SugaredLogger) *BreakerSender {
	if maxFailures == 0 {
		maxFailures = 5
	}
	st := gobreaker.Settings{
		Name:    "push",
		Timeout: openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("push breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerSender{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *BreakerSender) Send(ctx context.Context, tokens []string, n domain.Notification) ([]TokenResult, error) {
	var results []TokenResult
	_, err := b.cb.Execute(func() (interface{}, error) {
		r, err := b.next.Send(ctx, tokens, n)
		results = r
		return nil, err
	})
	if err != nil && len(results) != len(tokens) {
		results = AllTransient(tokens, err)
	}
	return results, err
}

func (b *BreakerSender) State() gobreaker.State { return b.cb.State() }
