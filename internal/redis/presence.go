package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store tracks live sockets per user so any instance can answer presence.
// Keys:
//   - <prefix>:conn:<userID>     hash socketID -> ConnMeta JSON
//   - <prefix>:presence:<userID> Presence JSON
type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

type ConnMeta struct {
	SocketID    string `json:"socketId"`
	ConnectedAt int64  `json:"connectedAt"`
}

type Presence struct {
	UserID      string    `json:"userId"`
	Online      bool      `json:"online"`
	Connections int64     `json:"connections"`
	LastSeen    time.Time `json:"lastSeen,omitempty"`
}

func NewStore(r *redis.Client, prefix string) *Store {
	return &Store{client: r, prefix: prefix, now: time.Now}
}

func (s *Store) connKey(userID string) string     { return fmt.Sprintf("%s:conn:%s", s.prefix, userID) }
func (s *Store) presenceKey(userID string) string { return fmt.Sprintf("%s:presence:%s", s.prefix, userID) }

func (s *Store) AddConnection(ctx context.Context, userID, socketID string, ttl time.Duration) error {
	now := s.now().UTC()
	meta, _ := json.Marshal(ConnMeta{SocketID: socketID, ConnectedAt: now.Unix()})
	pres, _ := json.Marshal(Presence{UserID: userID, Online: true, LastSeen: now})

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.connKey(userID), socketID, meta)
	pipe.Expire(ctx, s.connKey(userID), ttl)
	pipe.Set(ctx, s.presenceKey(userID), pres, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveConnection drops one socket and marks the user offline when it was
// the last one.
func (s *Store) RemoveConnection(ctx context.Context, userID, socketID string) error {
	key := s.connKey(userID)
	if err := s.client.HDel(ctx, key, socketID).Err(); err != nil {
		return err
	}
	left, err := s.client.HLen(ctx, key).Result()
	if err != nil {
		return err
	}
	if left > 0 {
		return nil
	}
	pres, _ := json.Marshal(Presence{UserID: userID, Online: false, LastSeen: s.now().UTC()})
	return s.client.Set(ctx, s.presenceKey(userID), pres, 0).Err()
}

// Refresh extends the TTL of a live user's keys.
func (s *Store) Refresh(ctx context.Context, userID string, ttl time.Duration) error {
	pipe := s.client.Pipeline()
	pipe.Expire(ctx, s.connKey(userID), ttl)
	pipe.Expire(ctx, s.presenceKey(userID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) GetPresence(ctx context.Context, userID string) (*Presence, error) {
	out := &Presence{UserID: userID}
	b, err := s.client.Get(ctx, s.presenceKey(userID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return out, nil
	case err != nil:
		return nil, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return nil, err
	}
	n, err := s.client.HLen(ctx, s.connKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out.Connections = n
	out.Online = n > 0
	return out, nil
}
