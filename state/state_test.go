package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blue-robotics/nmea-bridge/sentence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingFileReturnsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	require.NoError(t, err)

	cfg := s.Get()
	assert.Equal(t, DefaultSelectedMessageTypes, cfg.SelectedMessageTypes)
	assert.Empty(t, cfg.DevicePath)
}

func TestOpenMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestUpdatePersistsAndSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	require.NoError(t, err)

	err = s.Update(func(c *PersistedConfig) {
		c.DevicePath = "/dev/ttyUSB0"
		c.PreferredBaud = 38400
		c.AutoConnect = true
		c.SentenceConfig["ZDA"] = sentence.SentenceConfig{Enabled: true, IntervalTenths: 10}
	})
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)
	cfg := reopened.Get()
	assert.Equal(t, "/dev/ttyUSB0", cfg.DevicePath)
	assert.Equal(t, 38400, cfg.PreferredBaud)
	assert.True(t, cfg.AutoConnect)
	assert.Equal(t, sentence.SentenceConfig{Enabled: true, IntervalTenths: 10}, cfg.SentenceConfig["ZDA"])
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	require.NoError(t, err)

	cfg := s.Get()
	cfg.SelectedMessageTypes[0] = "MUTATED"

	fresh := s.Get()
	assert.NotEqual(t, "MUTATED", fresh.SelectedMessageTypes[0])
}

func TestUpdateWritesThenRenamesNoStaleTempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Update(func(c *PersistedConfig) { c.AutoStream = true }))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
