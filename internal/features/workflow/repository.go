package workflow

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"go-approvals/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "workflow_templates"

type TemplateRepository interface {
	// List returns templates ordered by Sequence
	List(ctx context.Context) ([]Template, error)
	Save(ctx context.Context, template Template) error
	Delete(ctx context.Context, id string) error
}

// NewTemplateRepository picks the implementation matching the configured storage driver
func NewTemplateRepository(db *database.Database) (TemplateRepository, error) {
	switch {
	case db.Mongo != nil:
		return &TemplateRepositoryImpl{Collection: db.Mongo.DB.Collection(collectionName)}, nil
	case db.Postgres != nil:
		if err := db.Postgres.EnsureTable(context.Background(), collectionName); err != nil {
			return nil, err
		}
		return &postgresTemplateRepository{pg: db.Postgres}, nil
	default:
		return NewMemoryTemplateRepository(), nil
	}
}

type TemplateRepositoryImpl struct {
	Collection *mongo.Collection
}

func (r *TemplateRepositoryImpl) List(ctx context.Context) ([]Template, error) {
	cursor, err := r.Collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"sequence": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []Template
	if err = cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *TemplateRepositoryImpl) Save(ctx context.Context, template Template) error {
	_, err := r.Collection.ReplaceOne(ctx, bson.M{"_id": template.ID}, template, options.Replace().SetUpsert(true))
	return err
}

func (r *TemplateRepositoryImpl) Delete(ctx context.Context, id string) error {
	_, err := r.Collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

type postgresTemplateRepository struct {
	pg *database.PostgresDB
}

func (r *postgresTemplateRepository) List(ctx context.Context) ([]Template, error) {
	var templates []Template
	err := r.pg.Each(ctx, collectionName, func(body []byte) error {
		var t Template
		if err := json.Unmarshal(body, &t); err != nil {
			return err
		}
		templates = append(templates, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortBySequence(templates)
	return templates, nil
}

func (r *postgresTemplateRepository) Save(ctx context.Context, template Template) error {
	return r.pg.Put(ctx, collectionName, template.ID, template)
}

func (r *postgresTemplateRepository) Delete(ctx context.Context, id string) error {
	return r.pg.Delete(ctx, collectionName, id)
}

type memoryTemplateRepository struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewMemoryTemplateRepository() TemplateRepository {
	return &memoryTemplateRepository{templates: make(map[string]Template)}
}

func (r *memoryTemplateRepository) List(_ context.Context) ([]Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	templates := make([]Template, 0, len(r.templates))
	for _, t := range r.templates {
		templates = append(templates, t.Clone())
	}
	sortBySequence(templates)
	return templates, nil
}

func (r *memoryTemplateRepository) Save(_ context.Context, template Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[template.ID] = template.Clone()
	return nil
}

func (r *memoryTemplateRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.templates, id)
	return nil
}

func sortBySequence(templates []Template) {
	slices.SortStableFunc(templates, func(a, b Template) int {
		switch {
		case a.Sequence < b.Sequence:
			return -1
		case a.Sequence > b.Sequence:
			return 1
		}
		return 0
	})
}
