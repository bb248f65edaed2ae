package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ESCALATION_SCHEDULE", "@every 30m")
	t.Setenv("SKIP_AUTH", "true")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "@every 30m", cfg.EscalationSchedule)
	assert.True(t, cfg.SkipAuth)
	assert.True(t, cfg.SeedDefaultTemplates)
	assert.Equal(t, "management", cfg.EscalationAudience)
}

func TestLoadConfigStorageDriverIsLowercased(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Mongo")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StorageMongo, cfg.StorageDriver)
}
