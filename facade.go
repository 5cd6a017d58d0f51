package epidemic

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/epidemic-mesh/epidemic/internal/domain"
	"github.com/epidemic-mesh/epidemic/internal/gossip"
	"github.com/epidemic-mesh/epidemic/internal/infra/observability"
)

// Re-exported types. The root package is the library's public surface;
// internal/gossip and internal/domain hold the implementation, aliased
// out here instead of redeclared.
type (
	Config       = gossip.Config
	Member       = domain.Member
	MemberState  = domain.MemberState
	Event        = gossip.Event
	EventKind    = gossip.EventKind
	ClusterEvent = gossip.ClusterEvent
)

const (
	MemberJoined        = gossip.MemberJoined
	MemberWentUp        = gossip.MemberWentUp
	MemberSuspectedDown = gossip.MemberSuspectedDown
	MemberWentDown      = gossip.MemberWentDown
	MemberLeft          = gossip.MemberLeft
)

const (
	Alive   = domain.Alive
	Suspect = domain.Suspect
	Down    = domain.Down
	Left    = domain.Left
)

// DefaultConfig returns conservative LAN defaults.
func DefaultConfig() Config { return gossip.DefaultConfig() }

// Cluster is a running membership reactor bound to one local host key.
type Cluster struct {
	hostKey uuid.UUID
	reactor *gossip.Reactor
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

// New binds a UDP socket per cfg, constructs the reactor and starts its
// event loop in the background. The caller owns the returned Cluster and
// must call Close when finished with it.
func New(hostKey uuid.UUID, cfg Config, reg prometheus.Registerer) (*Cluster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, domain.NewError(domain.KindConfig, "resolve_listen_addr", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, domain.NewError(domain.KindIO, "bind", err)
	}

	tracer := observability.NewTracer(observability.DefaultTracerConfig())
	var metrics *observability.Metrics
	if reg != nil {
		metrics = observability.NewMetrics(reg)
	}

	reactor := gossip.NewReactor(hostKey, cfg, conn, tracer, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cluster{hostKey: hostKey, reactor: reactor, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(c.done)
		c.runErr = reactor.Run(ctx)
	}()

	return c, nil
}

// HostKey returns the cluster's local identity.
func (c *Cluster) HostKey() uuid.UUID { return c.hostKey }

// AddSeedNode registers a peer address to probe for cluster entry.
func (c *Cluster) AddSeedNode(addr netip.AddrPort) {
	c.reactor.AddSeed(addr)
}

// SendPayload is a placeholder for application-data delivery between
// members. The reactor has no data plane: a future release would route
// this through a dedicated channel instead of the membership protocol
// itself.
func (c *Cluster) SendPayload(target uuid.UUID, payload []byte) error {
	return fmt.Errorf("epidemic: payload delivery is not implemented; membership only")
}

// LeaveCluster transitions self to the Left state and gossips it.
func (c *Cluster) LeaveCluster() {
	c.reactor.Leave()
}

// Events returns the channel of membership transitions.
func (c *Cluster) Events() <-chan ClusterEvent {
	return c.reactor.Events()
}

// Members returns a snapshot of the currently available members.
func (c *Cluster) Members() []Member {
	return c.reactor.Snapshot()
}

// Close stops the reactor and waits for its event loop to exit.
func (c *Cluster) Close() error {
	c.reactor.Exit()
	c.cancel()
	<-c.done
	return c.runErr
}
