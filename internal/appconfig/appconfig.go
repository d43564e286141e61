// Package appconfig implements the per-channel encrypted configuration store
// shared by the connector apps: one JSON blob per tenant, persisted through
// the metadata store, holding provider credential sets and the mapping from
// sales channels to credential sets.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ConfigKey is the well-known metadata key the configuration blob lives
// under.
const ConfigKey = "payment-app-config-private"

// ConfigEntry is one provider credential set. ConfigurationID is generated
// at creation and immutable afterwards. Password is sensitive: stored
// encrypted at rest, shown obfuscated.
type ConfigEntry struct {
	ConfigurationID   string `json:"configurationId"`
	ConfigurationName string `json:"configurationName" validate:"required"`
	APIURL            string `json:"apiUrl" validate:"required,url"`
	Username          string `json:"username" validate:"required"`
	Password          string `json:"password" validate:"required"`
	MerchantID        string `json:"merchantId,omitempty"`
}

// AppConfig is the aggregate root, one per tenant/installation.
// ChannelToConfigurationID maps a channel id to a configuration id; a nil
// value means the channel is explicitly disabled for this provider.
type AppConfig struct {
	Configurations           []ConfigEntry      `json:"configurations"`
	ChannelToConfigurationID map[string]*string `json:"channelToConfigurationId"`
	LastMigration            int                `json:"lastMigration"`
}

// DefaultAppConfig is the lazily-created value for tenants that have never
// stored a configuration. New installs start at the latest migration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Configurations:           []ConfigEntry{},
		ChannelToConfigurationID: map[string]*string{},
		LastMigration:            LatestMigration,
	}
}

// ParseAppConfig decodes a stored blob. A malformed blob is a structured
// parse error, never silently replaced by the default.
func ParseAppConfig(raw string) (*AppConfig, error) {
	var cfg AppConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, &ConfigError{Kind: ErrorParse, Message: "stored configuration is not valid JSON", Err: err}
	}

	if cfg.Configurations == nil {
		cfg.Configurations = []ConfigEntry{}
	}
	if cfg.ChannelToConfigurationID == nil {
		cfg.ChannelToConfigurationID = map[string]*string{}
	}

	return &cfg, nil
}

// EntryByID returns the entry with the given configuration id, or nil.
func (c *AppConfig) EntryByID(configurationID string) *ConfigEntry {
	for i := range c.Configurations {
		if c.Configurations[i].ConfigurationID == configurationID {
			return &c.Configurations[i]
		}
	}
	return nil
}

// ErrorKind tags a ConfigError so handler boundaries can match on it
// explicitly instead of walking a subclass chain.
type ErrorKind string

const (
	ErrorParse      ErrorKind = "parse"
	ErrorValidation ErrorKind = "validation"
	ErrorNotFound   ErrorKind = "not_found"
	ErrorStore      ErrorKind = "store"
)

type ConfigError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is, or wraps, a ConfigError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr) && cfgErr.Kind == kind
}
