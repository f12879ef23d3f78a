// Package config loads the YAML file the demo CLI runs from.
package config

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of a redisreplica-demo config file.
type Config struct {
	Master struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"master"`

	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`

	IsDiscardRDB bool `yaml:"discardRdb"`
	IsAOF        bool `yaml:"aof"`

	ReplID     string `yaml:"replId"`
	ReplOffset int64  `yaml:"replOffset"`

	CaptureRDBPath    string `yaml:"captureRdbPath"`
	CaptureStreamPath string `yaml:"captureStreamPath"`

	Log struct {
		Dir              string  `yaml:"dir"`
		Level            string  `yaml:"level"`
		TraceEventsPerSec float64 `yaml:"traceEventsPerSec"`
		TraceBurst        int     `yaml:"traceBurst"`
	} `yaml:"log"`
}

// Load reads and parses a YAML config file at path, applying defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, cfg.validate()
}

func (c *Config) applyDefaults() {
	if c.ReplID == "" {
		c.ReplID = "?"
	}
	if c.ReplOffset == 0 && c.ReplID == "?" {
		c.ReplOffset = -1
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
	if c.Log.Level == "" {
		c.Log.Level = "INFO"
	}
	if c.Log.TraceEventsPerSec == 0 {
		c.Log.TraceEventsPerSec = 5
	}
	if c.Log.TraceBurst == 0 {
		c.Log.TraceBurst = 5
	}
}

func (c *Config) validate() error {
	if c.Master.Addr == "" {
		return fmt.Errorf("config: master.addr is required")
	}
	return nil
}

// TraceLimit builds the rate.Limit the decoder's per-object tracing uses.
func (c *Config) TraceLimit() (rate.Limit, int) {
	return rate.Limit(c.Log.TraceEventsPerSec), c.Log.TraceBurst
}
