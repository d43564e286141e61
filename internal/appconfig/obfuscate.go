package appconfig

// MaskToken replaces the hidden part of a sensitive value.
const MaskToken = "••••"

// Obfuscate masks a sensitive value for display. Values of up to 4
// characters become the mask token alone; longer values keep a trailing
// suffix that grows from 1 up to at most 4 visible characters.
func Obfuscate(value string) string {
	runes := []rune(value)
	n := len(runes)
	if n <= 4 {
		return MaskToken
	}

	visible := n - 4
	if visible > 4 {
		visible = 4
	}

	return MaskToken + string(runes[n-visible:])
}

// ObfuscateEntry returns a copy of the entry with every sensitive field
// masked.
func ObfuscateEntry(entry ConfigEntry) ConfigEntry {
	entry.Password = Obfuscate(entry.Password)
	return entry
}

// ObfuscateConfig returns a deep copy of cfg with every sensitive field of
// every entry masked.
func ObfuscateConfig(cfg *AppConfig) *AppConfig {
	obfuscated := &AppConfig{
		Configurations:           make([]ConfigEntry, len(cfg.Configurations)),
		ChannelToConfigurationID: make(map[string]*string, len(cfg.ChannelToConfigurationID)),
		LastMigration:            cfg.LastMigration,
	}

	for i, entry := range cfg.Configurations {
		obfuscated.Configurations[i] = ObfuscateEntry(entry)
	}
	for channel, id := range cfg.ChannelToConfigurationID {
		obfuscated.ChannelToConfigurationID[channel] = id
	}

	return obfuscated
}
