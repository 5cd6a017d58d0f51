// Package gossip implements the membership reactor: the single-threaded
// state machine that drives probing, failure suspicion, dissemination and
// merge of remote membership state.
package gossip

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/epidemic-mesh/epidemic/internal/domain"
)

// Config carries the timings, MTU, cluster key and bind address recognized
// by the reactor. The root package re-exports this type by alias rather
// than redeclaring it.
type Config struct {
	// ListenAddr is the UDP bind address, e.g. "127.0.0.1:7946".
	ListenAddr string

	// ClusterKey is an opaque byte string included in every datagram.
	// Datagrams whose cluster_key does not match are dropped — a cheap
	// demultiplexer for colocated clusters, not a cryptographic
	// authentication mechanism.
	ClusterKey []byte

	// PingInterval is the period of the timer tick.
	PingInterval time.Duration

	// PingTimeout is the deadline from Ping to expected Ack.
	PingTimeout time.Duration

	// PingRequestHostCount is the fanout for indirect probes.
	PingRequestHostCount int

	// NetworkMTU is the hard upper bound on encoded datagram length.
	NetworkMTU int
}

// DefaultConfig returns conservative defaults suitable for a LAN.
func DefaultConfig() Config {
	return Config{
		ListenAddr:           "0.0.0.0:7946",
		ClusterKey:           []byte("epidemic"),
		PingInterval:         1 * time.Second,
		PingTimeout:          500 * time.Millisecond,
		PingRequestHostCount: 3,
		NetworkMTU:           1400,
	}
}

// Validate aggregates every invalid field instead of stopping at the
// first, via hashicorp/go-multierror, then wraps the aggregate as a
// KindConfig domain error.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.ListenAddr == "" {
		result = multierror.Append(result, fmt.Errorf("listen address must not be empty"))
	}
	if c.PingInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("ping interval must be positive"))
	}
	if c.PingTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("ping timeout must be positive"))
	}
	if c.PingRequestHostCount < 0 {
		result = multierror.Append(result, fmt.Errorf("ping request host count must not be negative"))
	}
	if c.NetworkMTU <= 0 {
		result = multierror.Append(result, fmt.Errorf("network MTU must be positive"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return domain.NewError(domain.KindConfig, "validate", err)
	}
	return nil
}
