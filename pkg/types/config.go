package types

import "time"

// RuntimeConfig holds the recognized runtime options.
type RuntimeConfig struct {
	SnapshotInterval  int64         `yaml:"snapshot_interval"`
	DedupMaxEntries   int           `yaml:"dedup_max_entries"`
	DedupTTL          time.Duration `yaml:"dedup_ttl"`
	MailboxCapacity   int           `yaml:"mailbox_capacity"` // 0 = unbounded
	AutoConfirmEvents bool          `yaml:"auto_confirm_events"`
	MaxReplayBatch    int           `yaml:"max_replay_batch"`
	AllowUnknownOnReplay bool       `yaml:"allow_unknown_on_replay"`
}

// DefaultRuntimeConfig returns the documented option defaults.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		SnapshotInterval:     100,
		DedupMaxEntries:      10000,
		DedupTTL:             5 * time.Minute,
		MailboxCapacity:      0,
		AutoConfirmEvents:    true,
		MaxReplayBatch:       1000,
		AllowUnknownOnReplay: true,
	}
}

// WithDefaults fills zero-valued fields in cfg with the package defaults.
// Used by loaders so a partial YAML file only overrides what it sets.
func (cfg RuntimeConfig) WithDefaults() RuntimeConfig {
	d := DefaultRuntimeConfig()
	if cfg.SnapshotInterval == 0 {
		cfg.SnapshotInterval = d.SnapshotInterval
	}
	if cfg.DedupMaxEntries == 0 {
		cfg.DedupMaxEntries = d.DedupMaxEntries
	}
	if cfg.DedupTTL == 0 {
		cfg.DedupTTL = d.DedupTTL
	}
	if cfg.MaxReplayBatch == 0 {
		cfg.MaxReplayBatch = d.MaxReplayBatch
	}
	return cfg
}
