package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Storage drivers understood by the repository constructors.
const (
	StorageMemory   = "memory"
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
)

type Config struct {
	Port        string
	JWTSecret   string
	SkipAuth    bool
	Environment string
	AppId       string

	StorageDriver string
	MongoURI      string
	DBName        string
	PostgresDSN   string
	LogToDB       bool

	EscalationSchedule   string
	EscalationAudience   string
	SeedDefaultTemplates bool
	CompletionScript     string // Path to a tengo script run on final approval
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:                 getEnv("PORT", "8080"),
		JWTSecret:            getEnv("JWT_SECRET", "secret"),
		SkipAuth:             getEnv("SKIP_AUTH", "false") == "true",
		Environment:          getEnv("ENVIRONMENT", "development"),
		AppId:                getEnv("APP_ID", "go-approvals"),
		StorageDriver:        strings.ToLower(getEnv("STORAGE_DRIVER", StorageMemory)),
		MongoURI:             getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:               getEnv("DB_NAME", "go-approvals"),
		PostgresDSN:          getEnv("POSTGRES_DSN", "postgres://localhost:5432/approvals?sslmode=disable"),
		LogToDB:              getEnv("LOG_TO_DB", "false") == "true",
		EscalationSchedule:   getEnv("ESCALATION_SCHEDULE", "@hourly"),
		EscalationAudience:   getEnv("ESCALATION_AUDIENCE", "management"),
		SeedDefaultTemplates: getEnv("SEED_DEFAULT_TEMPLATES", "true") == "true",
		CompletionScript:     getEnv("COMPLETION_SCRIPT", ""),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
