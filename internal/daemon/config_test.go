package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Listen.Addr != "0.0.0.0:7946" {
		t.Errorf("Listen.Addr = %q, want %q", cfg.Listen.Addr, "0.0.0.0:7946")
	}
	if cfg.Probe.IndirectHosts != 3 {
		t.Errorf("Probe.IndirectHosts = %d, want 3", cfg.Probe.IndirectHosts)
	}
	if cfg.Probe.NetworkMTU != 1400 {
		t.Errorf("Probe.NetworkMTU = %d, want 1400", cfg.Probe.NetworkMTU)
	}
}

func TestLoad_MissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen.Addr != DefaultConfig().Listen.Addr {
		t.Errorf("Listen.Addr = %q, want default", cfg.Listen.Addr)
	}
}

func TestLoad_ParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[listen]
addr = "0.0.0.0:9000"

[cluster]
key = "test-cluster"

[probe]
interval = "2s"
timeout = "750ms"
indirect_hosts = 5
network_mtu = 1200
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen.Addr != "0.0.0.0:9000" {
		t.Errorf("Listen.Addr = %q, want 0.0.0.0:9000", cfg.Listen.Addr)
	}
	if cfg.Cluster.Key != "test-cluster" {
		t.Errorf("Cluster.Key = %q, want test-cluster", cfg.Cluster.Key)
	}

	gossipCfg, err := cfg.ToGossipConfig()
	if err != nil {
		t.Fatalf("ToGossipConfig: %v", err)
	}
	if gossipCfg.PingInterval != 2*time.Second {
		t.Errorf("PingInterval = %v, want 2s", gossipCfg.PingInterval)
	}
	if gossipCfg.PingTimeout != 750*time.Millisecond {
		t.Errorf("PingTimeout = %v, want 750ms", gossipCfg.PingTimeout)
	}
	if gossipCfg.PingRequestHostCount != 5 {
		t.Errorf("PingRequestHostCount = %d, want 5", gossipCfg.PingRequestHostCount)
	}
	if gossipCfg.NetworkMTU != 1200 {
		t.Errorf("NetworkMTU = %d, want 1200", gossipCfg.NetworkMTU)
	}
}

func TestToGossipConfig_RejectsBadDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Probe.Interval = "not-a-duration"

	if _, err := cfg.ToGossipConfig(); err == nil {
		t.Error("expected error for malformed interval")
	}
}
