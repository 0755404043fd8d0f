package push

import (
	"context"
	"errors"

	"github.com/rudhramentertainment/RBackend/internal/domain"
)

// Outcome classifies the delivery of one token.
type Outcome int

const (
	Delivered Outcome = iota
	// Transient failures are logged and left for the next push.
	Transient
	// Invalid tokens will never deliver again and must be pruned.
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Invalid:
		return "invalid"
	default:
		return "transient"
	}
}

type TokenResult struct {
	Token   string
	Outcome Outcome
	Err     error
}

// Sender delivers one notification to many tokens. It returns one result per
// token even when the call as a whole fails.
type Sender interface {
	Send(ctx context.Context, tokens []string, n domain.Notification) ([]TokenResult, error)
}

var ErrDisabled = errors.New("push transport disabled")

// InvalidTokens selects the tokens the registry should forget.
func InvalidTokens(results []TokenResult) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, r := range results {
		if r.Outcome != Invalid {
			continue
		}
		if _, ok := seen[r.Token]; ok {
			continue
		}
		seen[r.Token] = struct{}{}
		out = append(out, r.Token)
	}
	return out
}

type Tally struct {
	Delivered int
	Transient int
	Invalid   int
}

func Count(results []TokenResult) Tally {
	var t Tally
	for _, r := range results {
		switch r.Outcome {
		case Delivered:
			t.Delivered++
		case Invalid:
			t.Invalid++
		default:
			t.Transient++
		}
	}
	return t
}

// AllTransient marks every token as a transient failure caused by err.
func AllTransient(tokens []string, err error) []TokenResult {
	out := make([]TokenResult, len(tokens))
	for i, t := range tokens {
		out[i] = TokenResult{Token: t, Outcome: Transient, Err: err}
	}
	return out
}

// NoopSender stands in when no push transport is configured.
type NoopSender struct{}

func (NoopSender) Send(_ context.Context, tokens []string, _ domain.Notification) ([]TokenResult, error) {
	return AllTransient(tokens, ErrDisabled), ErrDisabled
}
