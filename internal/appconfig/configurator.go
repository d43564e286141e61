package appconfig

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/saleorbridge/payment-bridge/internal/logger"
	"github.com/saleorbridge/payment-bridge/internal/metadata"
)

// Lease serializes configuration writes for one tenant. Every
// read-modify-write cycle in the configurator runs under the tenant's lease
// so concurrent writers cannot drop each other's changes.
type Lease interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Configurator is a thin, non-caching façade over the metadata store for one
// tenant's AppConfig blob.
type Configurator struct {
	manager  metadata.Manager
	lease    Lease
	key      string
	logger   *logger.Logger
	validate *validator.Validate
}

func NewConfigurator(manager metadata.Manager, lease Lease, key string) *Configurator {
	return &Configurator{
		manager:  manager,
		lease:    lease,
		key:      key,
		logger:   logger.New("configurator"),
		validate: validator.New(),
	}
}

// GetConfig fetches the stored blob, parses it and applies schema defaults.
// A tenant with no stored value gets the default config. Pending migrations
// are applied in memory so callers always see the current shape; use Migrate
// to persist them.
func (c *Configurator) GetConfig(ctx context.Context) (*AppConfig, error) {
	raw, found, err := c.manager.Get(ctx, c.key)
	if err != nil {
		return nil, &ConfigError{Kind: ErrorStore, Message: "failed to read configuration", Err: err}
	}
	if !found {
		return DefaultAppConfig(), nil
	}

	cfg, err := ParseAppConfig(raw)
	if err != nil {
		return nil, err
	}

	ApplyMigrations(cfg)
	return cfg, nil
}

// GetConfigObfuscated is GetConfig with every sensitive field masked.
func (c *Configurator) GetConfigObfuscated(ctx context.Context) (*AppConfig, error) {
	cfg, err := c.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	return ObfuscateConfig(cfg), nil
}

// SetConfig deep-merges the patch onto the stored value. An empty patch
// skips the remote write entirely.
func (c *Configurator) SetConfig(ctx context.Context, patch Patch) error {
	if patch.IsEmpty() {
		return nil
	}

	release, err := c.lease.Acquire(ctx, c.key)
	if err != nil {
		return &ConfigError{Kind: ErrorStore, Message: "failed to acquire config lease", Err: err}
	}
	defer release()

	return c.setConfigLocked(ctx, patch)
}

// ReplaceConfig overwrites the stored value wholesale.
func (c *Configurator) ReplaceConfig(ctx context.Context, cfg *AppConfig) error {
	release, err := c.lease.Acquire(ctx, c.key)
	if err != nil {
		return &ConfigError{Kind: ErrorStore, Message: "failed to acquire config lease", Err: err}
	}
	defer release()

	return c.writeLocked(ctx, cfg)
}

// ClearConfig resets the tenant to the schema default.
func (c *Configurator) ClearConfig(ctx context.Context) error {
	return c.ReplaceConfig(ctx, DefaultAppConfig())
}

// AddEntry validates a fresh credential set, assigns its configurationId and
// persists the merged configuration. The returned entry has its sensitive
// fields obfuscated for display.
func (c *Configurator) AddEntry(ctx context.Context, entry ConfigEntry) (*ConfigEntry, error) {
	if entry.ConfigurationID != "" {
		return nil, &ConfigError{Kind: ErrorValidation, Message: "configurationId is assigned at creation and cannot be supplied"}
	}
	if err := c.validate.Struct(entry); err != nil {
		return nil, &ConfigError{Kind: ErrorValidation, Message: "invalid configuration entry", Err: err}
	}

	entry.ConfigurationID = uuid.New().String()

	release, err := c.lease.Acquire(ctx, c.key)
	if err != nil {
		return nil, &ConfigError{Kind: ErrorStore, Message: "failed to acquire config lease", Err: err}
	}
	defer release()

	if err := c.setConfigLocked(ctx, Patch{Configurations: []ConfigEntry{entry}}); err != nil {
		return nil, err
	}

	c.logger.Info("configuration entry added", "configurationId", entry.ConfigurationID)
	obfuscated := ObfuscateEntry(entry)
	return &obfuscated, nil
}

// UpdateEntry merges non-empty fields of entry over the stored entry with
// the same configurationId.
func (c *Configurator) UpdateEntry(ctx context.Context, entry ConfigEntry) (*ConfigEntry, error) {
	if entry.ConfigurationID == "" {
		return nil, &ConfigError{Kind: ErrorValidation, Message: "configurationId is required"}
	}

	release, err := c.lease.Acquire(ctx, c.key)
	if err != nil {
		return nil, &ConfigError{Kind: ErrorStore, Message: "failed to acquire config lease", Err: err}
	}
	defer release()

	cfg, err := c.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.EntryByID(entry.ConfigurationID) == nil {
		return nil, &ConfigError{Kind: ErrorNotFound, Message: fmt.Sprintf("configuration %s does not exist", entry.ConfigurationID)}
	}

	merged := MergeConfig(cfg, Patch{Configurations: []ConfigEntry{entry}})
	if err := c.writeLocked(ctx, merged); err != nil {
		return nil, err
	}

	obfuscated := ObfuscateEntry(*merged.EntryByID(entry.ConfigurationID))
	return &obfuscated, nil
}

// DeleteEntry removes a credential set and prunes every channel mapping that
// references it, in a single replace write of the recomputed state.
func (c *Configurator) DeleteEntry(ctx context.Context, configurationID string) error {
	release, err := c.lease.Acquire(ctx, c.key)
	if err != nil {
		return &ConfigError{Kind: ErrorStore, Message: "failed to acquire config lease", Err: err}
	}
	defer release()

	cfg, err := c.GetConfig(ctx)
	if err != nil {
		return err
	}

	kept := make([]ConfigEntry, 0, len(cfg.Configurations))
	found := false
	for _, entry := range cfg.Configurations {
		if entry.ConfigurationID == configurationID {
			found = true
			continue
		}
		kept = append(kept, entry)
	}
	if !found {
		return &ConfigError{Kind: ErrorNotFound, Message: fmt.Sprintf("configuration %s does not exist", configurationID)}
	}
	cfg.Configurations = kept

	for channel, id := range cfg.ChannelToConfigurationID {
		if id != nil && *id == configurationID {
			delete(cfg.ChannelToConfigurationID, channel)
		}
	}

	c.logger.Info("configuration entry deleted", "configurationId", configurationID)
	return c.writeLocked(ctx, cfg)
}

// SetMapping points a sales channel at a credential set. An empty
// configurationID stores an explicit nil, disabling the channel.
func (c *Configurator) SetMapping(ctx context.Context, channelID, configurationID string) error {
	release, err := c.lease.Acquire(ctx, c.key)
	if err != nil {
		return &ConfigError{Kind: ErrorStore, Message: "failed to acquire config lease", Err: err}
	}
	defer release()

	var value *string
	if configurationID != "" {
		cfg, err := c.GetConfig(ctx)
		if err != nil {
			return err
		}
		if cfg.EntryByID(configurationID) == nil {
			return &ConfigError{Kind: ErrorNotFound, Message: fmt.Sprintf("configuration %s does not exist", configurationID)}
		}
		value = &configurationID
	}

	return c.setConfigLocked(ctx, Patch{
		ChannelToConfigurationID: map[string]*string{channelID: value},
	})
}

// DeleteMapping removes a channel from the mapping entirely.
func (c *Configurator) DeleteMapping(ctx context.Context, channelID string) error {
	release, err := c.lease.Acquire(ctx, c.key)
	if err != nil {
		return &ConfigError{Kind: ErrorStore, Message: "failed to acquire config lease", Err: err}
	}
	defer release()

	cfg, err := c.GetConfig(ctx)
	if err != nil {
		return err
	}
	if _, ok := cfg.ChannelToConfigurationID[channelID]; !ok {
		return nil
	}

	delete(cfg.ChannelToConfigurationID, channelID)
	return c.writeLocked(ctx, cfg)
}

// Migrate persists any pending schema migrations for the tenant and reports
// whether a write happened.
func (c *Configurator) Migrate(ctx context.Context) (bool, error) {
	release, err := c.lease.Acquire(ctx, c.key)
	if err != nil {
		return false, &ConfigError{Kind: ErrorStore, Message: "failed to acquire config lease", Err: err}
	}
	defer release()

	raw, found, err := c.manager.Get(ctx, c.key)
	if err != nil {
		return false, &ConfigError{Kind: ErrorStore, Message: "failed to read configuration", Err: err}
	}
	if !found {
		return false, nil
	}

	cfg, err := ParseAppConfig(raw)
	if err != nil {
		return false, err
	}
	if !ApplyMigrations(cfg) {
		return false, nil
	}

	c.logger.Info("configuration migrated", "lastMigration", cfg.LastMigration)
	return true, c.writeLocked(ctx, cfg)
}

func (c *Configurator) setConfigLocked(ctx context.Context, patch Patch) error {
	if patch.IsEmpty() {
		return nil
	}

	cfg, err := c.GetConfig(ctx)
	if err != nil {
		return err
	}

	return c.writeLocked(ctx, MergeConfig(cfg, patch))
}

func (c *Configurator) writeLocked(ctx context.Context, cfg *AppConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return &ConfigError{Kind: ErrorStore, Message: "failed to serialize configuration", Err: err}
	}

	if err := c.manager.Set(ctx, c.key, string(data)); err != nil {
		return &ConfigError{Kind: ErrorStore, Message: "failed to write configuration", Err: err}
	}

	return nil
}
