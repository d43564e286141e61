package appconfig

import (
	"github.com/saleorbridge/payment-bridge/internal/logger"
)

var resolverLog = logger.New("channel-resolver")

// ConfigurationForChannel resolves which credential set applies to a sales
// channel. A channel that is unmapped, explicitly disabled, or mapped to a
// configuration that no longer exists resolves to nil: the channel is simply
// not configured for this provider, which is not a fault.
func ConfigurationForChannel(cfg *AppConfig, channelID string) *ConfigEntry {
	mapped, ok := cfg.ChannelToConfigurationID[channelID]
	if !ok || mapped == nil {
		return nil
	}

	entry := cfg.EntryByID(*mapped)
	if entry == nil {
		// Dangling mapping: the referenced entry was deleted by an older
		// build that did not prune mappings. Tolerated at read time.
		resolverLog.Warn("channel mapping references missing configuration",
			"channelId", channelID, "configurationId", *mapped)
		return nil
	}

	return entry
}
