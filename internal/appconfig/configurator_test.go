package appconfig

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saleorbridge/payment-bridge/internal/cache"
	"github.com/saleorbridge/payment-bridge/internal/metadata"
)

// countingManager records writes so tests can assert that no-op operations
// skip the remote store.
type countingManager struct {
	metadata.Manager
	sets int
}

func (m *countingManager) Set(ctx context.Context, key, value string) error {
	m.sets++
	return m.Manager.Set(ctx, key, value)
}

func newTestConfigurator() (*Configurator, *countingManager) {
	manager := &countingManager{Manager: metadata.NewMemoryManager()}
	return NewConfigurator(manager, cache.NewLocalLease(), ConfigKey), manager
}

func validEntry(name string) ConfigEntry {
	return ConfigEntry{
		ConfigurationName: name,
		APIURL:            "https://api.playground.example.com",
		Username:          "merchant_user",
		Password:          "merchant_password",
		MerchantID:        "M-1",
	}
}

func TestGetConfigDefaultsWhenAbsent(t *testing.T) {
	configurator, _ := newTestConfigurator()

	cfg, err := configurator.GetConfig(context.Background())

	require.NoError(t, err)
	assert.Empty(t, cfg.Configurations)
	assert.Empty(t, cfg.ChannelToConfigurationID)
	assert.Equal(t, LatestMigration, cfg.LastMigration)
}

func TestGetConfigMalformedBlobIsParseError(t *testing.T) {
	configurator, manager := newTestConfigurator()
	require.NoError(t, manager.Manager.Set(context.Background(), ConfigKey, "{not json"))

	_, err := configurator.GetConfig(context.Background())

	require.Error(t, err)
	assert.True(t, IsKind(err, ErrorParse))
}

func TestSetConfigEmptyPatchSkipsWrite(t *testing.T) {
	configurator, manager := newTestConfigurator()

	require.NoError(t, configurator.SetConfig(context.Background(), Patch{}))

	assert.Equal(t, 0, manager.sets)
}

func TestAddEntryAssignsIDAndObfuscates(t *testing.T) {
	configurator, _ := newTestConfigurator()
	ctx := context.Background()

	created, err := configurator.AddEntry(ctx, validEntry("playground"))

	require.NoError(t, err)
	require.NotNil(t, created)
	_, parseErr := uuid.Parse(created.ConfigurationID)
	assert.NoError(t, parseErr)
	assert.Equal(t, MaskToken+"word", created.Password)

	// The stored value keeps the real password.
	stored, err := configurator.GetConfig(ctx)
	require.NoError(t, err)
	require.Len(t, stored.Configurations, 1)
	assert.Equal(t, "merchant_password", stored.Configurations[0].Password)
}

func TestAddEntryRejectsSuppliedID(t *testing.T) {
	configurator, _ := newTestConfigurator()

	entry := validEntry("playground")
	entry.ConfigurationID = "attacker-chosen"
	_, err := configurator.AddEntry(context.Background(), entry)

	require.Error(t, err)
	assert.True(t, IsKind(err, ErrorValidation))
}

func TestAddEntryValidatesFields(t *testing.T) {
	configurator, _ := newTestConfigurator()

	entry := validEntry("playground")
	entry.APIURL = "not a url"
	_, err := configurator.AddEntry(context.Background(), entry)

	require.Error(t, err)
	assert.True(t, IsKind(err, ErrorValidation))
}

func TestUpdateEntryMergesOverStored(t *testing.T) {
	configurator, _ := newTestConfigurator()
	ctx := context.Background()

	created, err := configurator.AddEntry(ctx, validEntry("playground"))
	require.NoError(t, err)

	updated, err := configurator.UpdateEntry(ctx, ConfigEntry{
		ConfigurationID:   created.ConfigurationID,
		ConfigurationName: "renamed",
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.ConfigurationName)

	stored, err := configurator.GetConfig(ctx)
	require.NoError(t, err)
	entry := stored.EntryByID(created.ConfigurationID)
	require.NotNil(t, entry)
	assert.Equal(t, "renamed", entry.ConfigurationName)
	// Fields absent from the update keep their stored values.
	assert.Equal(t, "merchant_password", entry.Password)
}

func TestUpdateEntryUnknownIDIsNotFound(t *testing.T) {
	configurator, _ := newTestConfigurator()

	_, err := configurator.UpdateEntry(context.Background(), ConfigEntry{ConfigurationID: "missing"})

	require.Error(t, err)
	assert.True(t, IsKind(err, ErrorNotFound))
}

func TestDeleteEntryPrunesMappings(t *testing.T) {
	configurator, _ := newTestConfigurator()
	ctx := context.Background()

	created, err := configurator.AddEntry(ctx, validEntry("playground"))
	require.NoError(t, err)
	other, err := configurator.AddEntry(ctx, validEntry("production"))
	require.NoError(t, err)

	require.NoError(t, configurator.SetMapping(ctx, "channel-a", created.ConfigurationID))
	require.NoError(t, configurator.SetMapping(ctx, "channel-b", created.ConfigurationID))
	require.NoError(t, configurator.SetMapping(ctx, "channel-c", other.ConfigurationID))

	require.NoError(t, configurator.DeleteEntry(ctx, created.ConfigurationID))

	stored, err := configurator.GetConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored.EntryByID(created.ConfigurationID))
	// Mappings to the deleted entry are gone, others survive.
	assert.NotContains(t, stored.ChannelToConfigurationID, "channel-a")
	assert.NotContains(t, stored.ChannelToConfigurationID, "channel-b")
	require.Contains(t, stored.ChannelToConfigurationID, "channel-c")
	assert.Equal(t, other.ConfigurationID, *stored.ChannelToConfigurationID["channel-c"])
}

func TestDeleteEntryUnknownIDIsNotFound(t *testing.T) {
	configurator, _ := newTestConfigurator()

	err := configurator.DeleteEntry(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, IsKind(err, ErrorNotFound))
}

func TestSetMappingRequiresExistingEntry(t *testing.T) {
	configurator, _ := newTestConfigurator()

	err := configurator.SetMapping(context.Background(), "channel-a", "missing")

	require.Error(t, err)
	assert.True(t, IsKind(err, ErrorNotFound))
}

func TestSetMappingEmptyIDDisablesChannel(t *testing.T) {
	configurator, _ := newTestConfigurator()
	ctx := context.Background()

	require.NoError(t, configurator.SetMapping(ctx, "channel-a", ""))

	stored, err := configurator.GetConfig(ctx)
	require.NoError(t, err)
	require.Contains(t, stored.ChannelToConfigurationID, "channel-a")
	assert.Nil(t, stored.ChannelToConfigurationID["channel-a"])
	assert.Nil(t, ConfigurationForChannel(stored, "channel-a"))
}

func TestDeleteMappingRemovesChannel(t *testing.T) {
	configurator, manager := newTestConfigurator()
	ctx := context.Background()

	require.NoError(t, configurator.SetMapping(ctx, "channel-a", ""))
	require.NoError(t, configurator.DeleteMapping(ctx, "channel-a"))

	stored, err := configurator.GetConfig(ctx)
	require.NoError(t, err)
	assert.NotContains(t, stored.ChannelToConfigurationID, "channel-a")

	// Deleting an unknown channel is a no-op without a write.
	writes := manager.sets
	require.NoError(t, configurator.DeleteMapping(ctx, "channel-unknown"))
	assert.Equal(t, writes, manager.sets)
}

func TestClearConfigResetsToDefault(t *testing.T) {
	configurator, _ := newTestConfigurator()
	ctx := context.Background()

	_, err := configurator.AddEntry(ctx, validEntry("playground"))
	require.NoError(t, err)

	require.NoError(t, configurator.ClearConfig(ctx))

	stored, err := configurator.GetConfig(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored.Configurations)
	assert.Empty(t, stored.ChannelToConfigurationID)
}

func TestMigratePersistsPendingMigrations(t *testing.T) {
	configurator, manager := newTestConfigurator()
	ctx := context.Background()

	legacy, err := json.Marshal(&AppConfig{
		Configurations: []ConfigEntry{
			{ConfigurationID: "cfg-1", ConfigurationName: "keep"},
			{ConfigurationName: "no id"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, manager.Manager.Set(ctx, ConfigKey, string(legacy)))

	changed, err := configurator.Migrate(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	raw, found, err := manager.Manager.Get(ctx, ConfigKey)
	require.NoError(t, err)
	require.True(t, found)
	persisted, err := ParseAppConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, LatestMigration, persisted.LastMigration)
	require.Len(t, persisted.Configurations, 1)

	// A second run finds nothing to do.
	changed, err = configurator.Migrate(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMigrateNoStoredConfigIsNoop(t *testing.T) {
	configurator, manager := newTestConfigurator()

	changed, err := configurator.Migrate(context.Background())

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 0, manager.sets)
}

func TestAddEntryConcurrentWritersBothSurvive(t *testing.T) {
	configurator, _ := newTestConfigurator()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < len(errs); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = configurator.AddEntry(ctx, validEntry("writer"))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	stored, err := configurator.GetConfig(ctx)
	require.NoError(t, err)
	// Serialized read-modify-write cycles must not drop each other's entries.
	assert.Len(t, stored.Configurations, len(errs))
}

func TestGetConfigObfuscatedMasksSecrets(t *testing.T) {
	configurator, _ := newTestConfigurator()
	ctx := context.Background()

	_, err := configurator.AddEntry(ctx, validEntry("playground"))
	require.NoError(t, err)

	cfg, err := configurator.GetConfigObfuscated(ctx)
	require.NoError(t, err)
	require.Len(t, cfg.Configurations, 1)
	assert.Equal(t, MaskToken+"word", cfg.Configurations[0].Password)
}
