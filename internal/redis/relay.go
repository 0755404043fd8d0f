package redis

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deliverer writes an encoded frame to local room members.
type Deliverer interface {
	Deliver(room string, frame []byte) int
}

type relayFrame struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Frame  json.RawMessage `json:"frame"`
}

// Relay fans room frames out to every instance over Redis pub/sub.
type Relay struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.SugaredLogger
}

func NewRelay(r *redis.Client, prefix string, logger *zap.SugaredLogger) *Relay {
	return &Relay{client: r, channel: prefix + ":rooms", origin: uuid.New().String(), logger: logger}
}

func (r *Relay) Publish(ctx context.Context, room string, frame []byte) error {
	b, err := json.Marshal(relayFrame{Origin: r.origin, Room: room, Frame: frame})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, b).Err()
}

// Run delivers frames published by other instances until ctx ends.
func (r *Relay) Run(ctx context.Context, d Deliverer) {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var f relayFrame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				r.logger.Warnw("bad relay frame", "err", err)
				continue
			}
			if f.Origin == r.origin {
				continue
			}
			d.Deliver(f.Room, f.Frame)
		}
	}
}
