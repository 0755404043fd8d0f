package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messagesCollection = "messages"

type MessageRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMessageRepository(db *mongo.Database, timeout time.Duration) *MessageRepository {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &MessageRepository{coll: db.Collection(messagesCollection), timeout: timeout}
}

func (r *MessageRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*r.timeout)
	defer cancel()
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "channel", Value: 1}, {Key: "groupKey", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "receivers", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "clientId", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return err
}

func conversationFilter(a, b primitive.ObjectID) bson.M {
	return bson.M{
		"channel": domain.ChannelDirect,
		"$or": []bson.M{
			{"sender": a, "receivers": b},
			{"sender": b, "receivers": a},
		},
	}
}

func inboxFilter(userID primitive.ObjectID, all bool) bson.M {
	if all {
		return bson.M{}
	}
	return bson.M{"$or": []bson.M{{"sender": userID}, {"receivers": userID}}}
}

func groupFilter(groupKey string) bson.M {
	return bson.M{"channel": domain.ChannelGroup, "groupKey": groupKey}
}

// unreadBy narrows a filter to messages userID neither sent nor acknowledged.
func unreadBy(filter bson.M, userID primitive.ObjectID) bson.M {
	filter["sender"] = bson.M{"$ne": userID}
	filter["readBy.user"] = bson.M{"$ne": userID}
	return filter
}

// markReadFilter limits receipts to group messages and direct messages
// addressed to userID.
func markReadFilter(ids []primitive.ObjectID, userID primitive.ObjectID) bson.M {
	return bson.M{
		"_id": bson.M{"$in": ids},
		"$or": []bson.M{
			{"channel": domain.ChannelGroup},
			{"receivers": userID},
		},
	}
}

func unreadDirectPipeline(userID primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: unreadBy(bson.M{"channel": domain.ChannelDirect, "receivers": userID}, userID)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$sender"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}

func (r *MessageRepository) Insert(ctx context.Context, m *domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	m.Normalize()
	_, err := r.coll.InsertOne(ctx, m)
	return err
}

func (r *MessageRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	var m domain.Message
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	m.Normalize()
	return &m, nil
}

func (r *MessageRepository) find(ctx context.Context, filter bson.M, sortDir int) ([]*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: sortDir}, {Key: "_id", Value: sortDir}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for _, m := range out {
		m.Normalize()
	}
	return out, nil
}

func (r *MessageRepository) Conversation(ctx context.Context, a, b primitive.ObjectID) ([]*domain.Message, error) {
	return r.find(ctx, conversationFilter(a, b), 1)
}

func (r *MessageRepository) Inbox(ctx context.Context, userID primitive.ObjectID, all bool) ([]*domain.Message, error) {
	return r.find(ctx, inboxFilter(userID, all), -1)
}

func (r *MessageRepository) GroupTimeline(ctx context.Context, groupKey string) ([]*domain.Message, error) {
	return r.find(ctx, groupFilter(groupKey), 1)
}

func (r *MessageRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MessageRepository) deleteMany(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	res, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *MessageRepository) DeleteThread(ctx context.Context, a, b primitive.ObjectID) (int64, error) {
	return r.deleteMany(ctx, conversationFilter(a, b))
}

func (r *MessageRepository) DeleteGroup(ctx context.Context, groupKey string) (int64, error) {
	return r.deleteMany(ctx, groupFilter(groupKey))
}

// MarkRead pushes one receipt per message. The filter excludes messages
// already acknowledged, so concurrent acks cannot duplicate an entry.
func (r *MessageRepository) MarkRead(ctx context.Context, userID primitive.ObjectID, ids []primitive.ObjectID, at time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	filter := unreadBy(markReadFilter(ids, userID), userID)
	update := bson.M{
		"$push": bson.M{"readBy": domain.ReadReceipt{UserID: userID, ReadAt: at}},
		"$set":  bson.M{"updatedAt": at},
	}
	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *MessageRepository) UnreadDirect(ctx context.Context, userID primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	cur, err := r.coll.Aggregate(ctx, unreadDirectPipeline(userID))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Peer  primitive.ObjectID `bson:"_id"`
		Count int64              `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]int64, len(rows))
	for _, row := range rows {
		out[row.Peer] = row.Count
	}
	return out, nil
}

func (r *MessageRepository) UnreadGroup(ctx context.Context, userID primitive.ObjectID, groupKey string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.coll.CountDocuments(ctx, unreadBy(groupFilter(groupKey), userID))
}
