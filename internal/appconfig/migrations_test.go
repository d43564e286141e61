package appconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMigrationsFromScratch(t *testing.T) {
	cfg := &AppConfig{
		Configurations: []ConfigEntry{
			{ConfigurationID: "cfg-1", ConfigurationName: "keep"},
			{ConfigurationName: "legacy entry without id"},
		},
	}

	applied := ApplyMigrations(cfg)

	assert.True(t, applied)
	assert.Equal(t, LatestMigration, cfg.LastMigration)
	assert.NotNil(t, cfg.ChannelToConfigurationID)
	require.Len(t, cfg.Configurations, 1)
	assert.Equal(t, "cfg-1", cfg.Configurations[0].ConfigurationID)
}

func TestApplyMigrationsNoopWhenCurrent(t *testing.T) {
	cfg := DefaultAppConfig()
	assert.False(t, ApplyMigrations(cfg))
	assert.Equal(t, LatestMigration, cfg.LastMigration)
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	cfg := &AppConfig{Configurations: []ConfigEntry{{ConfigurationID: "cfg-1"}}}

	assert.True(t, ApplyMigrations(cfg))
	assert.False(t, ApplyMigrations(cfg))
}
