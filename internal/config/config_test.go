package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
bus:
  port: /dev/ttyUSB3
  baud: 57600
sim:
  sensors: 8
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB3", cfg.Bus.Port)
	assert.Equal(t, 57600, cfg.Bus.Baud)
	assert.Equal(t, 8, cfg.Sim.Sensors)
	// untouched sections keep their defaults
	assert.Equal(t, Default().Admin.Listen, cfg.Admin.Listen)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "bus: [not a map"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty bus port", func(c *Config) { c.Bus.Port = "" }},
		{"zero bus baud", func(c *Config) { c.Bus.Baud = 0 }},
		{"console port without baud", func(c *Config) { c.Console.Port = "/dev/ttyAMA0"; c.Console.Baud = 0 }},
		{"zero sensors", func(c *Config) { c.Sim.Sensors = 0 }},
		{"negative scan period", func(c *Config) { c.Sim.ScanPeriod = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestStringMentionsKeyFields(t *testing.T) {
	s := Default().String()
	assert.Contains(t, s, "/dev/ttySC1")
	assert.Contains(t, s, "stdout")
}
