// Package daemon loads the on-disk configuration for the epidemicd binary
// and turns it into a gossip.Config the reactor understands.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	epidemic "github.com/epidemic-mesh/epidemic"
)

// Config is the on-disk shape of ~/.epidemic/config.toml, parsed with
// human-friendly duration strings rather than raw nanosecond counts.
type Config struct {
	Listen struct {
		Addr string `toml:"addr"`
	} `toml:"listen"`

	Cluster struct {
		Key string `toml:"key"`
	} `toml:"cluster"`

	Probe struct {
		Interval      string `toml:"interval"`
		Timeout       string `toml:"timeout"`
		IndirectHosts int    `toml:"indirect_hosts"`
		NetworkMTU    int    `toml:"network_mtu"`
	} `toml:"probe"`

	Status struct {
		Addr string `toml:"addr"`
	} `toml:"status"`
}

// DefaultConfig mirrors gossip.DefaultConfig in string form.
func DefaultConfig() Config {
	def := epidemic.DefaultConfig()

	var cfg Config
	cfg.Listen.Addr = def.ListenAddr
	cfg.Cluster.Key = string(def.ClusterKey)
	cfg.Probe.Interval = def.PingInterval.String()
	cfg.Probe.Timeout = def.PingTimeout.String()
	cfg.Probe.IndirectHosts = def.PingRequestHostCount
	cfg.Probe.NetworkMTU = def.NetworkMTU
	cfg.Status.Addr = "127.0.0.1:7947"
	return cfg
}

// Load reads and parses a TOML config file at path, falling back to
// DefaultConfig when path does not exist.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// ToGossipConfig converts the on-disk representation into gossip.Config,
// parsing duration strings via time.ParseDuration.
func (c Config) ToGossipConfig() (epidemic.Config, error) {
	cfg := epidemic.DefaultConfig()
	cfg.ListenAddr = c.Listen.Addr
	cfg.ClusterKey = []byte(c.Cluster.Key)

	if c.Probe.Interval != "" {
		d, err := time.ParseDuration(c.Probe.Interval)
		if err != nil {
			return epidemic.Config{}, fmt.Errorf("parse probe.interval %q: %w", c.Probe.Interval, err)
		}
		cfg.PingInterval = d
	}
	if c.Probe.Timeout != "" {
		d, err := time.ParseDuration(c.Probe.Timeout)
		if err != nil {
			return epidemic.Config{}, fmt.Errorf("parse probe.timeout %q: %w", c.Probe.Timeout, err)
		}
		cfg.PingTimeout = d
	}
	if c.Probe.IndirectHosts > 0 {
		cfg.PingRequestHostCount = c.Probe.IndirectHosts
	}
	if c.Probe.NetworkMTU > 0 {
		cfg.NetworkMTU = c.Probe.NetworkMTU
	}
	return cfg, nil
}

// DefaultConfigPath returns ~/.epidemic/config.toml, or
// $EPIDEMIC_HOME/config.toml when the $EPIDEMIC_HOME environment variable
// is set (it replaces the ~/.epidemic directory).
func DefaultConfigPath() string {
	if env := os.Getenv("EPIDEMIC_HOME"); env != "" {
		return filepath.Join(env, "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".epidemic", "config.toml")
}
