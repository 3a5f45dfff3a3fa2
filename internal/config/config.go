// Package config loads the hub's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/capsense.hub/internal/capsense"
)

// Config represents the hub configuration.
type Config struct {
	Bus     BusConfig          `yaml:"bus"`
	Console ConsoleConfig      `yaml:"console"`
	Admin   AdminConfig        `yaml:"admin"`
	Sim     capsense.SimConfig `yaml:"sim"`
}

// BusConfig configures the serial link the bus masters read from.
type BusConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// ConsoleConfig configures the debug console. An empty port sends the
// mirror output to stdout.
type ConsoleConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// AdminConfig configures the admin debug HTTP listener.
type AdminConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Bus:     BusConfig{Port: "/dev/ttySC1", Baud: 115200},
		Console: ConsoleConfig{Baud: 115200},
		Admin:   AdminConfig{Listen: ":8080"},
		Sim:     capsense.DefaultSimConfig(),
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the hub cannot run with.
func (c *Config) Validate() error {
	if c.Bus.Port == "" {
		return fmt.Errorf("bus port is required")
	}
	if c.Bus.Baud <= 0 {
		return fmt.Errorf("bus baud rate %d, must be positive", c.Bus.Baud)
	}
	if c.Console.Port != "" && c.Console.Baud <= 0 {
		return fmt.Errorf("console baud rate %d, must be positive", c.Console.Baud)
	}
	if c.Sim.Sensors < 1 {
		return fmt.Errorf("sim sensor count %d, need at least 1", c.Sim.Sensors)
	}
	if c.Sim.ScanPeriod < 0 {
		return fmt.Errorf("sim scan period %v, must not be negative", c.Sim.ScanPeriod)
	}
	return nil
}

// String summarises the config for startup logging.
func (c *Config) String() string {
	console := c.Console.Port
	if console == "" {
		console = "stdout"
	}
	return fmt.Sprintf("bus=%s@%d console=%s admin=%s sensors=%d period=%s",
		c.Bus.Port, c.Bus.Baud, console, c.Admin.Listen, c.Sim.Sensors, c.Sim.ScanPeriod)
}
