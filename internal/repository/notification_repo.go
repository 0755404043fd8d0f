package repository

import (
	"context"
	"time"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const notificationsCollection = "notifications"

type NotificationRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewNotificationRepository(db *mongo.Database, timeout time.Duration) *NotificationRepository {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &NotificationRepository{coll: db.Collection(notificationsCollection), timeout: timeout}
}

func (r *NotificationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*r.timeout)
	defer cancel()
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userIds", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

func (r *NotificationRepository) Insert(ctx context.Context, rec *domain.NotificationRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := r.coll.InsertOne(ctx, rec)
	return err
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]*domain.NotificationRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, bson.M{"userIds": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*domain.NotificationRecord{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
