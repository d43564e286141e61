package appconfig

// LatestMigration is the schema version new installs start at. Stored blobs
// with a lower lastMigration get the remaining migrations applied in order.
const LatestMigration = 2

type migration struct {
	version int
	apply   func(cfg *AppConfig)
}

var migrations = []migration{
	{
		// Blobs written before the channel mapping existed stored a bare
		// configurations list; make sure the mapping is present.
		version: 1,
		apply: func(cfg *AppConfig) {
			if cfg.ChannelToConfigurationID == nil {
				cfg.ChannelToConfigurationID = map[string]*string{}
			}
		},
	},
	{
		// Early builds allowed saving entries without a generated id; those
		// entries can never be referenced by a mapping and are dropped.
		version: 2,
		apply: func(cfg *AppConfig) {
			kept := cfg.Configurations[:0]
			for _, entry := range cfg.Configurations {
				if entry.ConfigurationID != "" {
					kept = append(kept, entry)
				}
			}
			cfg.Configurations = kept
		},
	},
}

// ApplyMigrations runs every migration newer than cfg.LastMigration and
// returns true when anything was applied. The caller decides whether to
// persist the migrated value.
func ApplyMigrations(cfg *AppConfig) bool {
	applied := false
	for _, m := range migrations {
		if cfg.LastMigration >= m.version {
			continue
		}
		m.apply(cfg)
		cfg.LastMigration = m.version
		applied = true
	}
	return applied
}
