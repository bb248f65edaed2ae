package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"go-approvals/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "approval_requests"

// Filter narrows List; empty fields match everything
type Filter struct {
	Statuses   []RequestStatus
	DocumentID string
}

func (f Filter) matches(r *Request) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	return f.DocumentID == "" || r.DocumentID == f.DocumentID
}

type RequestRepository interface {
	// Get returns ErrRequestNotFound when id is unknown
	Get(ctx context.Context, id string) (*Request, error)
	// List returns requests in creation order
	List(ctx context.Context, filter Filter) ([]Request, error)
	// Save inserts or replaces the request; it returns once the write is durable
	Save(ctx context.Context, request Request) error
}

// NewRequestRepository picks the implementation matching the configured storage driver
func NewRequestRepository(db *database.Database) (RequestRepository, error) {
	switch {
	case db.Mongo != nil:
		return &RequestRepositoryImpl{Collection: db.Mongo.DB.Collection(collectionName)}, nil
	case db.Postgres != nil:
		if err := db.Postgres.EnsureTable(context.Background(), collectionName); err != nil {
			return nil, err
		}
		return &postgresRequestRepository{pg: db.Postgres}, nil
	default:
		return NewMemoryRequestRepository(), nil
	}
}

type RequestRepositoryImpl struct {
	Collection *mongo.Collection
}

func (r *RequestRepositoryImpl) Get(ctx context.Context, id string) (*Request, error) {
	var request Request
	err := r.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
		}
		return nil, err
	}
	return &request, nil
}

func (r *RequestRepositoryImpl) List(ctx context.Context, filter Filter) ([]Request, error) {
	query := bson.M{}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.DocumentID != "" {
		query["document_id"] = filter.DocumentID
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	requests := []Request{}
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *RequestRepositoryImpl) Save(ctx context.Context, request Request) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.Collection.ReplaceOne(ctx, bson.M{"_id": request.ID}, request, opts)
	return err
}

type postgresRequestRepository struct {
	pg *database.PostgresDB
}

func (r *postgresRequestRepository) Get(ctx context.Context, id string) (*Request, error) {
	var request Request
	found, err := r.pg.Get(ctx, collectionName, id, &request)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	return &request, nil
}

func (r *postgresRequestRepository) List(ctx context.Context, filter Filter) ([]Request, error) {
	requests := []Request{}
	err := r.pg.Each(ctx, collectionName, func(body []byte) error {
		var request Request
		if err := json.Unmarshal(body, &request); err != nil {
			return err
		}
		if filter.matches(&request) {
			requests = append(requests, request)
		}
		return nil
	})
	return requests, err
}

func (r *postgresRequestRepository) Save(ctx context.Context, request Request) error {
	return r.pg.Put(ctx, collectionName, request.ID, request)
}

// memoryRequestRepository keeps requests in insertion order with an id index
type memoryRequestRepository struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Request
}

func NewMemoryRequestRepository() RequestRepository {
	return &memoryRequestRepository{byID: make(map[string]Request)}
}

func (r *memoryRequestRepository) Get(_ context.Context, id string) (*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	request, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	c := request.Clone()
	return &c, nil
}

func (r *memoryRequestRepository) List(_ context.Context, filter Filter) ([]Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requests := []Request{}
	for _, id := range r.order {
		request := r.byID[id]
		if filter.matches(&request) {
			requests = append(requests, request.Clone())
		}
	}
	return requests, nil
}

func (r *memoryRequestRepository) Save(_ context.Context, request Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[request.ID]; !ok {
		r.order = append(r.order, request.ID)
	}
	r.byID[request.ID] = request.Clone()
	return nil
}
