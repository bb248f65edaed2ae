package audit

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	common_models "go-approvals/internal/common/models"
	"go-approvals/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "audit_logs"

type AuditRepository interface {
	Create(ctx context.Context, log common_models.AuditLog) error
	// List returns newest entries first
	List(ctx context.Context, filter Filter, limit, offset int64) ([]common_models.AuditLog, error)
}

// NewAuditRepository picks the implementation matching the configured storage driver
func NewAuditRepository(db *database.Database) (AuditRepository, error) {
	switch {
	case db.Mongo != nil:
		return &AuditRepositoryImpl{Collection: db.Mongo.DB.Collection(collectionName)}, nil
	case db.Postgres != nil:
		if err := db.Postgres.EnsureTable(context.Background(), collectionName); err != nil {
			return nil, err
		}
		return &postgresAuditRepository{pg: db.Postgres}, nil
	default:
		return NewMemoryAuditRepository(), nil
	}
}

type AuditRepositoryImpl struct {
	Collection *mongo.Collection
}

func (r *AuditRepositoryImpl) Create(ctx context.Context, log common_models.AuditLog) error {
	_, err := r.Collection.InsertOne(ctx, log)
	return err
}

func (r *AuditRepositoryImpl) List(ctx context.Context, filter Filter, limit, offset int64) ([]common_models.AuditLog, error) {
	opts := options.Find().SetLimit(limit).SetSkip(offset).SetSort(bson.M{"timestamp": -1})

	query := bson.M{}
	if filter.Module != "" {
		query["module"] = filter.Module
	}
	if filter.RecordID != "" {
		query["record_id"] = filter.RecordID
	}
	if filter.Action != "" {
		query["action"] = filter.Action
	}

	cursor, err := r.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []common_models.AuditLog{}
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

type postgresAuditRepository struct {
	pg *database.PostgresDB
}

func (r *postgresAuditRepository) Create(ctx context.Context, log common_models.AuditLog) error {
	return r.pg.Put(ctx, collectionName, log.ID, log)
}

func (r *postgresAuditRepository) List(ctx context.Context, filter Filter, limit, offset int64) ([]common_models.AuditLog, error) {
	var all []common_models.AuditLog
	err := r.pg.Each(ctx, collectionName, func(body []byte) error {
		var log common_models.AuditLog
		if err := json.Unmarshal(body, &log); err != nil {
			return err
		}
		if filter.matches(log) {
			all = append(all, log)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(all)
	return page(all, limit, offset), nil
}

type memoryAuditRepository struct {
	mu   sync.RWMutex
	logs []common_models.AuditLog
}

func NewMemoryAuditRepository() AuditRepository {
	return &memoryAuditRepository{}
}

func (r *memoryAuditRepository) Create(_ context.Context, log common_models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *memoryAuditRepository) List(_ context.Context, filter Filter, limit, offset int64) ([]common_models.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []common_models.AuditLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		if filter.matches(r.logs[i]) {
			matched = append(matched, r.logs[i])
		}
	}
	return page(matched, limit, offset), nil
}

func page(logs []common_models.AuditLog, limit, offset int64) []common_models.AuditLog {
	if offset >= int64(len(logs)) {
		return []common_models.AuditLog{}
	}
	end := offset + limit
	if end > int64(len(logs)) {
		end = int64(len(logs))
	}
	return logs[offset:end]
}
