package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UnreadCounts struct {
	Direct map[string]int64 `json:"direct"`
	Group  map[string]int64 `json:"group"`
}

// UnreadService recomputes badge counts from the message store on every call.
type UnreadService struct {
	store    UnreadStore
	groupKey string
}

func NewUnreadService(store UnreadStore, groupKey string) *UnreadService {
	return &UnreadService{store: store, groupKey: groupKey}
}

func (u *UnreadService) UnreadCounts(ctx context.Context, userID primitive.ObjectID) (*UnreadCounts, error) {
	direct, err := u.store.UnreadDirect(ctx, userID)
	if err != nil {
		return nil, err
	}
	group, err := u.store.UnreadGroup(ctx, userID, u.groupKey)
	if err != nil {
		return nil, err
	}
	out := &UnreadCounts{
		Direct: make(map[string]int64, len(direct)),
		Group:  map[string]int64{u.groupKey: group},
	}
	for peer, n := range direct {
		if n > 0 {
			out.Direct[peer.Hex()] = n
		}
	}
	return out, nil
}
