package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env string `yaml:"env"`

	HTTP struct {
		Addr string `yaml:"addr"` // ":7080"
	} `yaml:"http"`

	Upstream struct {
		Base    string        `yaml:"base"` // origin the agent fronts, e.g. "http://127.0.0.1:8080"
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"upstream"`

	Origin struct {
		Self    string   `yaml:"self"`    // the agent's own origin
		Allowed []string `yaml:"allowed"` // trusted cross-origin services, exact match
	} `yaml:"origin"`

	// Version drives partition names; bumping it orphans the old partitions
	// for the next activation sweep.
	Version string `yaml:"version"`

	Cache struct {
		MaxEntries  int    `yaml:"max_entries"` // per partition, 0 = unbounded
		FallbackKey string `yaml:"fallback_key"`
	} `yaml:"cache"`

	Install struct {
		Essential []string `yaml:"essential"`
		Optional  []string `yaml:"optional"`
	} `yaml:"install"`

	Sync struct {
		Queues    []string      `yaml:"queues"`
		Collector string        `yaml:"collector"` // remote endpoint for drained items
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"sync"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		Database int    `yaml:"database"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Breaker struct {
		Enabled   bool          `yaml:"enabled"`
		Threshold int           `yaml:"threshold"`
		Window    time.Duration `yaml:"window"`
		OpenFor   time.Duration `yaml:"open_for"`
	} `yaml:"breaker"`

	Notify struct {
		Title         string `yaml:"title"`
		Body          string `yaml:"body"`
		Icon          string `yaml:"icon"`
		DismissAction string `yaml:"dismiss_action"`
		EntryPath     string `yaml:"entry_path"`
		Actions       []struct {
			ID    string `yaml:"id"`
			Label string `yaml:"label"`
		} `yaml:"actions"`
	} `yaml:"notify"`

	WriteTimeout time.Duration `yaml:"write_timeout"` // ws write deadline
}

// Load supports comma-separated config files: "-c common.yml,offagent.yml"
func Load(pathList string) (*Config, error) {
	if strings.TrimSpace(pathList) == "" {
		return nil, errors.New("config path required (e.g. -c ./config.yml or -c common.yml,offagent.yml)")
	}

	var c Config
	paths := strings.Split(pathList, ",")
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// defaults
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":7080"
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = 10 * time.Second
	}
	if c.Version == "" {
		c.Version = "v1"
	}
	if c.Cache.FallbackKey == "" {
		c.Cache.FallbackKey = "/"
	}
	if len(c.Install.Essential) == 0 {
		c.Install.Essential = []string{"/"}
	}
	if len(c.Sync.Queues) == 0 {
		c.Sync.Queues = []string{"save-test-data", "submit-quiz"}
	}
	if c.Sync.Timeout == 0 {
		c.Sync.Timeout = 5 * time.Second
	}
	if c.Breaker.Threshold <= 0 {
		c.Breaker.Threshold = 5
	}
	if c.Breaker.Window == 0 {
		c.Breaker.Window = 10 * time.Second
	}
	if c.Breaker.OpenFor == 0 {
		c.Breaker.OpenFor = 5 * time.Second
	}
	if c.Notify.Title == "" {
		c.Notify.Title = "Update available"
	}
	if c.Notify.DismissAction == "" {
		c.Notify.DismissAction = "dismiss"
	}
	if c.Notify.EntryPath == "" {
		c.Notify.EntryPath = "/"
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return &c, nil
}

// StaticName is the full versioned name of the static partition.
func (c *Config) StaticName() string { return "static-" + c.Version }

// RuntimeName is the full versioned name of the runtime partition.
func (c *Config) RuntimeName() string { return "runtime-" + c.Version }
