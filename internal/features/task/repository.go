package task

import (
	"context"
	"encoding/json"
	"sync"

	"go-approvals/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "tasks"

type TaskRepository interface {
	Create(ctx context.Context, task Task) error
	// List returns tasks in creation order; an empty requestID matches all
	List(ctx context.Context, requestID string) ([]Task, error)
}

func NewTaskRepository(db *database.Database) (TaskRepository, error) {
	switch {
	case db.Mongo != nil:
		return &TaskRepositoryImpl{Collection: db.Mongo.DB.Collection(collectionName)}, nil
	case db.Postgres != nil:
		if err := db.Postgres.EnsureTable(context.Background(), collectionName); err != nil {
			return nil, err
		}
		return &postgresTaskRepository{pg: db.Postgres}, nil
	default:
		return NewMemoryTaskRepository(), nil
	}
}

type TaskRepositoryImpl struct {
	Collection *mongo.Collection
}

func (r *TaskRepositoryImpl) Create(ctx context.Context, task Task) error {
	_, err := r.Collection.InsertOne(ctx, task)
	return err
}

func (r *TaskRepositoryImpl) List(ctx context.Context, requestID string) ([]Task, error) {
	filter := bson.M{}
	if requestID != "" {
		filter["request_id"] = requestID
	}
	cursor, err := r.Collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tasks := []Task{}
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

type postgresTaskRepository struct {
	pg *database.PostgresDB
}

func (r *postgresTaskRepository) Create(ctx context.Context, task Task) error {
	return r.pg.Put(ctx, collectionName, task.ID, task)
}

func (r *postgresTaskRepository) List(ctx context.Context, requestID string) ([]Task, error) {
	tasks := []Task{}
	err := r.pg.Each(ctx, collectionName, func(body []byte) error {
		var t Task
		if err := json.Unmarshal(body, &t); err != nil {
			return err
		}
		if requestID == "" || t.RequestID == requestID {
			tasks = append(tasks, t)
		}
		return nil
	})
	return tasks, err
}

type memoryTaskRepository struct {
	mu    sync.RWMutex
	tasks []Task
}

func NewMemoryTaskRepository() TaskRepository {
	return &memoryTaskRepository{}
}

func (r *memoryTaskRepository) Create(_ context.Context, task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *memoryTaskRepository) List(_ context.Context, requestID string) ([]Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := []Task{}
	for _, t := range r.tasks {
		if requestID == "" || t.RequestID == requestID {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}
