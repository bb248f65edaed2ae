package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go-approvals/internal/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
)

// MongodbDB wraps the selected Mongo database
type MongodbDB struct {
	DB *mongo.Database
}

// Database holds the connection for the configured storage driver.
// Exactly one of Mongo and Postgres is set unless the driver is "memory".
type Database struct {
	Driver   string
	Mongo    *MongodbDB
	Postgres *PostgresDB
}

// NewDatabase opens the connection selected by STORAGE_DRIVER with lifecycle management
func NewDatabase(lc fx.Lifecycle, cfg *config.Config) (*Database, error) {
	db := &Database{Driver: cfg.StorageDriver}

	switch cfg.StorageDriver {
	case config.StorageMemory, "":
		db.Driver = config.StorageMemory
		log.Println("Using in-memory storage")
		return db, nil
	case config.StorageMongo:
		mongodb, client, err := connectMongo(cfg)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Println("Disconnecting from MongoDB...")
				return client.Disconnect(ctx)
			},
		})
		db.Mongo = mongodb
		return db, nil
	case config.StoragePostgres:
		pg, err := NewPostgresDB(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Println("Closing PostgreSQL pool...")
				return pg.Close()
			},
		})
		db.Postgres = pg
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func connectMongo(cfg *config.Config) (*MongodbDB, *mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, err
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}

	log.Println("Connected to MongoDB!")

	return &MongodbDB{DB: client.Database(cfg.DBName)}, client, nil
}
