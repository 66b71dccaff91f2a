// Package state persists the bridge's operator-configurable settings --
// which device to use, whether to auto-connect and auto-stream, and any
// per-sentence overrides -- as a single JSON document, written
// write-then-rename so a crash mid-write never corrupts it.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/blue-robotics/nmea-bridge/sentence"
)

// DefaultSelectedMessageTypes is the wire-type set a fresh install starts
// streaming once a device is connected.
var DefaultSelectedMessageTypes = []string{
	"HCHDG", "CHDG", "HCHDT", "WIMWD", "WIMWV", "GPGGA", "GPGA", "WIMDA",
}

// PersistedConfig is the bridge's saved configuration document.
type PersistedConfig struct {
	DevicePath           string                              `json:"device_path"`
	PreferredBaud        int                                 `json:"preferred_baud"`
	AutoConnect          bool                                `json:"auto_connect"`
	AutoStream           bool                                `json:"auto_stream"`
	SentenceConfig       map[string]sentence.SentenceConfig `json:"sentence_config"`
	SelectedMessageTypes []string                            `json:"selected_message_types"`
}

// Default returns a fresh, never-configured document.
func Default() PersistedConfig {
	return PersistedConfig{
		SentenceConfig:       make(map[string]sentence.SentenceConfig),
		SelectedMessageTypes: append([]string(nil), DefaultSelectedMessageTypes...),
	}
}

func (c PersistedConfig) clone() PersistedConfig {
	cfg := c
	cfg.SentenceConfig = make(map[string]sentence.SentenceConfig, len(c.SentenceConfig))
	for k, v := range c.SentenceConfig {
		cfg.SentenceConfig[k] = v
	}
	cfg.SelectedMessageTypes = append([]string(nil), c.SelectedMessageTypes...)
	return cfg
}

// Store guards one PersistedConfig backed by a file on disk.
type Store struct {
	mu     sync.Mutex
	path   string
	config PersistedConfig
}

// Open loads path if it exists, or starts from Default() if it does not.
// A malformed existing file is reported as an error rather than silently
// discarded.
func Open(path string) (*Store, error) {
	s := &Store{path: path, config: Default()}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: reading %s: %w", path, err)
	}

	var cfg PersistedConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("state: parsing %s: %w", path, err)
	}
	if cfg.SentenceConfig == nil {
		cfg.SentenceConfig = make(map[string]sentence.SentenceConfig)
	}
	s.config = cfg
	return s, nil
}

// Get returns a deep copy of the current configuration.
func (s *Store) Get() PersistedConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.clone()
}

// Update runs fn against the live configuration and persists the result.
// fn observes the config under lock, so callers must not block inside it.
func (s *Store) Update(fn func(*PersistedConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.config)
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.config, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshaling config: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("state: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("state: renaming %s to %s: %w", tmp, s.path, err)
	}
	return nil
}
