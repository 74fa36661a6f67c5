package config

import (
	"fmt"

	"github.com/randalmurphal/eventfold/pkg/eventfold/reduce"
	"github.com/randalmurphal/eventfold/pkg/eventfold/store"
)

// Settings is the resolved engine configuration block.
type Settings struct {
	// NodeID identifies this node in every event it emits.
	NodeID string

	// Mode is the default anomaly-handling mode for folds.
	Mode reduce.Mode

	// AnomalyCapacity bounds the in-memory anomaly log.
	AnomalyCapacity int

	// StorePath is the SQLite file path, or empty for in-memory storage.
	StorePath string

	// ClockSeed overrides the persisted clock when it is larger. Useful
	// when restoring a node whose clock store was lost.
	ClockSeed uint64
}

// SettingsFrom extracts and validates the "engine" section of a Config.
// Top-level maps without an "engine" section are read directly.
func SettingsFrom(cfg Config) (Settings, error) {
	section := cfg
	if cfg.Has("engine") {
		section = cfg.Section("engine")
	}

	s := Settings{
		NodeID:          section.String("node_id", ""),
		Mode:            reduce.Mode(section.String("mode", string(reduce.ModePermissive))),
		AnomalyCapacity: section.Int("anomaly_capacity", store.DefaultAnomalyCapacity),
		StorePath:       section.String("store_path", ""),
		ClockSeed:       section.Uint64("clock_seed", 0),
	}

	if s.NodeID == "" {
		return Settings{}, fmt.Errorf("node_id is required")
	}
	if s.Mode != reduce.ModePermissive && s.Mode != reduce.ModeStrict {
		return Settings{}, fmt.Errorf("unknown mode %q", s.Mode)
	}
	if s.AnomalyCapacity <= 0 {
		return Settings{}, fmt.Errorf("anomaly_capacity must be positive")
	}
	return s, nil
}
