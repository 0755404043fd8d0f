package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestConversationFilterIsSymmetric(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	ab := conversationFilter(a, b)["$or"].([]bson.M)
	ba := conversationFilter(b, a)["$or"].([]bson.M)
	if len(ab) != 2 || len(ba) != 2 {
		t.Fatalf("expected two branches")
	}
	if ab[0]["sender"] != ba[1]["sender"] || ab[1]["sender"] != ba[0]["sender"] {
		t.Fatalf("branches are not mirrored: %v vs %v", ab, ba)
	}
	if conversationFilter(a, b)["channel"] != domain.ChannelDirect {
		t.Fatalf("conversation must be restricted to direct messages")
	}
}

func TestInboxFilter(t *testing.T) {
	u := primitive.NewObjectID()
	if len(inboxFilter(u, true)) != 0 {
		t.Fatalf("privileged inbox should be unfiltered")
	}
	if _, ok := inboxFilter(u, false)["$or"]; !ok {
		t.Fatalf("member inbox must match sender or receiver")
	}
}

func TestUnreadByExcludesSenderAndReaders(t *testing.T) {
	u := primitive.NewObjectID()
	f := unreadBy(groupFilter("RUDHRAM"), u)
	if f["sender"].(bson.M)["$ne"] != u || f["readBy.user"].(bson.M)["$ne"] != u {
		t.Fatalf("unexpected filter %v", f)
	}
	p := unreadDirectPipeline(u)
	if len(p) != 2 || p[0][0].Key != "$match" || p[1][0].Key != "$group" {
		t.Fatalf("unexpected pipeline %v", p)
	}
}

func TestMarkReadFilterRequiresParticipant(t *testing.T) {
	u := primitive.NewObjectID()
	f := unreadBy(markReadFilter([]primitive.ObjectID{primitive.NewObjectID()}, u), u)
	or, ok := f["$or"].([]bson.M)
	if !ok || len(or) != 2 {
		t.Fatalf("expected participant branches, got %v", f)
	}
	if or[0]["channel"] != domain.ChannelGroup || or[1]["receivers"] != u {
		t.Fatalf("unexpected branches %v", or)
	}
	if f["sender"].(bson.M)["$ne"] != u {
		t.Fatalf("sender exclusion lost: %v", f)
	}
}

func TestMessageRepositoryWrites(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("clear group returns deleted count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 5}))
		repo := NewMessageRepository(mt.DB, time.Second)
		n, err := repo.DeleteGroup(context.Background(), "RUDHRAM")
		if err != nil || n != 5 {
			mt.Fatalf("deleted %d err %v", n, err)
		}
	})

	mt.Run("delete missing message is not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		repo := NewMessageRepository(mt.DB, time.Second)
		if err := repo.Delete(context.Background(), primitive.NewObjectID()); !errors.Is(err, domain.ErrNotFound) {
			mt.Fatalf("expected not found, got %v", err)
		}
	})

	mt.Run("find by id maps no documents", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.messages", mtest.FirstBatch))
		repo := NewMessageRepository(mt.DB, time.Second)
		if _, err := repo.FindByID(context.Background(), primitive.NewObjectID()); !errors.Is(err, domain.ErrNotFound) {
			mt.Fatalf("expected not found, got %v", err)
		}
	})

	mt.Run("mark read reports modified", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}, bson.E{Key: "nModified", Value: 2}))
		repo := NewMessageRepository(mt.DB, time.Second)
		n, err := repo.MarkRead(context.Background(), primitive.NewObjectID(),
			[]primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()}, time.Now())
		if err != nil || n != 2 {
			mt.Fatalf("modified %d err %v", n, err)
		}
	})

	mt.Run("unread direct decodes groups", func(mt *mtest.T) {
		peer := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.messages", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: peer}, {Key: "count", Value: int32(3)}}))
		repo := NewMessageRepository(mt.DB, time.Second)
		got, err := repo.UnreadDirect(context.Background(), primitive.NewObjectID())
		if err != nil || got[peer] != 3 {
			mt.Fatalf("got %v err %v", got, err)
		}
	})

	mt.Run("insert normalizes arrays", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewMessageRepository(mt.DB, time.Second)
		m := &domain.Message{ID: primitive.NewObjectID(), SenderID: primitive.NewObjectID(), Channel: domain.ChannelGroup}
		if err := repo.Insert(context.Background(), m); err != nil {
			mt.Fatalf("insert: %v", err)
		}
		if m.ReadBy == nil || m.Attachments == nil || m.Receivers == nil {
			mt.Fatalf("arrays should be normalized before write")
		}
	})
}

