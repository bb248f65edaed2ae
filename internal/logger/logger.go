package logger

import (
	"go-approvals/internal/config"
	"go-approvals/internal/database"

	"go.uber.org/zap"
)

// NewLogger builds the zap logger; with LOG_TO_DB on a Mongo deployment every
// entry is also copied to the "logs" collection.
func NewLogger(cfg *config.Config, db *database.Database) (*zap.Logger, error) {

	// 1. Setup Base Config (Console/JSON)
	var zapConfig zap.Config
	if cfg.Environment == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Important: Enable Caller to get Function Name
	zapConfig.EncoderConfig.FunctionKey = "func"

	baseLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	if !cfg.LogToDB || db == nil || db.Mongo == nil {
		return baseLogger, nil
	}

	// 2. Create our Async DB Writer
	dbWriter := NewDBLogWriter(NewMongoLogSink(db.Mongo), cfg)

	// 3. Wrap the Core so entries go to both console and DB
	finalCore := NewDBCore(baseLogger.Core(), dbWriter)

	return zap.New(finalCore, zap.AddCaller()), nil
}
