package appconfig

// Patch is a partial AppConfig applied with merge semantics: entries are
// diffed by configurationId, the channel mapping is merged key-wise, and
// LastMigration is only touched when set.
type Patch struct {
	Configurations           []ConfigEntry
	ChannelToConfigurationID map[string]*string
	LastMigration            *int
}

// IsEmpty reports whether applying the patch would change nothing. Empty
// patches skip the remote write entirely.
func (p Patch) IsEmpty() bool {
	return len(p.Configurations) == 0 &&
		len(p.ChannelToConfigurationID) == 0 &&
		p.LastMigration == nil
}

// MergeConfig deep-merges patch onto base and returns the result. Entries
// matched by configurationId are merged field-wise (empty patch fields keep
// the stored value), unmatched entries are appended in order. Channel
// mappings overwrite key-wise, including explicit nils.
func MergeConfig(base *AppConfig, patch Patch) *AppConfig {
	merged := &AppConfig{
		Configurations:           make([]ConfigEntry, len(base.Configurations)),
		ChannelToConfigurationID: make(map[string]*string, len(base.ChannelToConfigurationID)),
		LastMigration:            base.LastMigration,
	}
	copy(merged.Configurations, base.Configurations)
	for channel, id := range base.ChannelToConfigurationID {
		merged.ChannelToConfigurationID[channel] = id
	}

	for _, patchEntry := range patch.Configurations {
		existing := merged.EntryByID(patchEntry.ConfigurationID)
		if existing == nil {
			merged.Configurations = append(merged.Configurations, patchEntry)
			continue
		}
		mergeEntry(existing, patchEntry)
	}

	for channel, id := range patch.ChannelToConfigurationID {
		merged.ChannelToConfigurationID[channel] = id
	}

	if patch.LastMigration != nil {
		merged.LastMigration = *patch.LastMigration
	}

	return merged
}

func mergeEntry(dst *ConfigEntry, src ConfigEntry) {
	if src.ConfigurationName != "" {
		dst.ConfigurationName = src.ConfigurationName
	}
	if src.APIURL != "" {
		dst.APIURL = src.APIURL
	}
	if src.Username != "" {
		dst.Username = src.Username
	}
	if src.Password != "" {
		dst.Password = src.Password
	}
	if src.MerchantID != "" {
		dst.MerchantID = src.MerchantID
	}
}
