package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go-approvals/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "notifications"

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepository interface {
	Create(ctx context.Context, notification Notification) error
	// FindByAudience returns a page of the audience's inbox, newest first, and the inbox size
	FindByAudience(ctx context.Context, audience string, limit, offset int64) ([]Notification, int64, error)
	MarkAsRead(ctx context.Context, id string, at time.Time) error
}

func NewNotificationRepository(db *database.Database) (NotificationRepository, error) {
	switch {
	case db.Mongo != nil:
		return &NotificationRepositoryImpl{Collection: db.Mongo.DB.Collection(collectionName)}, nil
	case db.Postgres != nil:
		if err := db.Postgres.EnsureTable(context.Background(), collectionName); err != nil {
			return nil, err
		}
		return &postgresNotificationRepository{pg: db.Postgres}, nil
	default:
		return NewMemoryNotificationRepository(), nil
	}
}

type NotificationRepositoryImpl struct {
	Collection *mongo.Collection
}

func (r *NotificationRepositoryImpl) Create(ctx context.Context, notification Notification) error {
	_, err := r.Collection.InsertOne(ctx, notification)
	return err
}

func (r *NotificationRepositoryImpl) FindByAudience(ctx context.Context, audience string, limit, offset int64) ([]Notification, int64, error) {
	filter := bson.M{"audience": audience}
	total, err := r.Collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(offset).
		SetLimit(limit)
	cursor, err := r.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	notifications := []Notification{}
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *NotificationRepositoryImpl) MarkAsRead(ctx context.Context, id string, at time.Time) error {
	res, err := r.Collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_read": true, "read_at": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

type postgresNotificationRepository struct {
	pg *database.PostgresDB
}

func (r *postgresNotificationRepository) Create(ctx context.Context, notification Notification) error {
	return r.pg.Put(ctx, collectionName, notification.ID, notification)
}

func (r *postgresNotificationRepository) FindByAudience(ctx context.Context, audience string, limit, offset int64) ([]Notification, int64, error) {
	var inbox []Notification
	err := r.pg.Each(ctx, collectionName, func(body []byte) error {
		var n Notification
		if err := json.Unmarshal(body, &n); err != nil {
			return err
		}
		if n.Audience == audience {
			inbox = append(inbox, n)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return newestFirst(inbox, limit, offset), int64(len(inbox)), nil
}

func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, id string, at time.Time) error {
	var n Notification
	found, err := r.pg.Get(ctx, collectionName, id, &n)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotificationNotFound
	}
	n.IsRead = true
	n.ReadAt = &at
	return r.pg.Put(ctx, collectionName, id, n)
}

type memoryNotificationRepository struct {
	mu    sync.RWMutex
	items []Notification
}

func NewMemoryNotificationRepository() NotificationRepository {
	return &memoryNotificationRepository{}
}

func (r *memoryNotificationRepository) Create(_ context.Context, notification Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, notification)
	return nil
}

func (r *memoryNotificationRepository) FindByAudience(_ context.Context, audience string, limit, offset int64) ([]Notification, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var inbox []Notification
	for _, n := range r.items {
		if n.Audience == audience {
			inbox = append(inbox, n)
		}
	}
	return newestFirst(inbox, limit, offset), int64(len(inbox)), nil
}

func (r *memoryNotificationRepository) MarkAsRead(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.items {
		if r.items[i].ID == id {
			r.items[i].IsRead = true
			r.items[i].ReadAt = &at
			return nil
		}
	}
	return ErrNotificationNotFound
}

// newestFirst pages an inbox stored in insertion order
func newestFirst(inbox []Notification, limit, offset int64) []Notification {
	page := []Notification{}
	for i := int64(len(inbox)) - 1 - offset; i >= 0 && int64(len(page)) < limit; i-- {
		page = append(page, inbox[i])
	}
	return page
}
