package gossip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/epidemic-mesh/epidemic/internal/domain"
	obs "github.com/epidemic-mesh/epidemic/internal/infra/observability"
)

// commandKind discriminates the four command variants the reactor accepts
// from the outside. As with Request, Go's lack of tagged unions means the
// discriminant plus per-variant fields stand in for a sum type.
type commandKind uint8

const (
	cmdAddSeed commandKind = iota
	cmdRespond
	cmdLeaveCluster
	cmdExit
)

type command struct {
	kind commandKind

	// cmdAddSeed
	seedAddr netip.AddrPort

	// cmdRespond
	from netip.AddrPort
	msg  Message

	// cmdExit
	ack chan struct{}
}

// pendingExpiry is an outstanding Ping or indirect probe awaiting a
// response, swept by pruneTimedOutResponses. digest is a private copy of
// the outgoing digest that was sent alongside the request this entry is
// waiting on — ackResponse prunes against this recorded snapshot, not
// against whatever digest the Ack happens to carry back.
type pendingExpiry struct {
	addr     netip.AddrPort
	deadline time.Time
	digest   []domain.StateChange
}

// Reactor is the single-threaded membership state machine. One goroutine
// — the one running Run — owns table, outgoingDigest, pending, waitList
// and seedQueue exclusively; a second goroutine only reads the UDP socket
// and forwards decoded datagrams over cmdCh, keeping all mutable state
// behind a single serialized command loop instead of mutex-guarded
// shared fields.
type Reactor struct {
	self    uuid.UUID
	config  Config
	conn    *net.UDPConn
	table   *Table
	log     *slog.Logger
	tracer  *obs.Tracer
	metrics *obs.Metrics

	cmdCh   chan command
	eventCh chan ClusterEvent
	readErr chan error

	outgoingDigest []domain.StateChange
	pending        []pendingExpiry
	waitList       map[netip.AddrPort][]netip.AddrPort
	seedQueue      []netip.AddrPort
}

// NewReactor constructs a reactor bound to conn. Callers must call Run to
// start the event loop.
func NewReactor(self uuid.UUID, cfg Config, conn *net.UDPConn, tracer *obs.Tracer, metrics *obs.Metrics) *Reactor {
	selfAddr := netip.AddrPort{}
	if a, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		selfAddr = a.AddrPort()
	}
	return &Reactor{
		self:     self,
		config:   cfg,
		conn:     conn,
		table:    NewTable(self, selfAddr),
		log:      slog.Default().With("component", "reactor", "self", self),
		tracer:   tracer,
		metrics:  metrics,
		cmdCh:    make(chan command, 256),
		eventCh:  make(chan ClusterEvent, 256),
		readErr:  make(chan error, 1),
		waitList: make(map[netip.AddrPort][]netip.AddrPort),
	}
}

// Events returns the channel clients receive ClusterEvent values from.
func (r *Reactor) Events() <-chan ClusterEvent { return r.eventCh }

// Snapshot returns the current available members. Safe to call
// concurrently with Run: Table guards its own state with a mutex.
func (r *Reactor) Snapshot() []domain.Member { return r.table.AvailableNodes() }

// AddSeed enqueues a seed address to probe.
func (r *Reactor) AddSeed(addr netip.AddrPort) {
	r.cmdCh <- command{kind: cmdAddSeed, seedAddr: addr}
}

// Leave tells the reactor to transition self to Left and gossip it.
func (r *Reactor) Leave() {
	r.cmdCh <- command{kind: cmdLeaveCluster}
}

// Exit stops the reactor loop and blocks until it has drained.
func (r *Reactor) Exit() {
	ack := make(chan struct{})
	r.cmdCh <- command{kind: cmdExit, ack: ack}
	<-ack
}

// Run drives the reactor until ctx is cancelled or Exit is called.
// Returns a fatal domain.Error, if one terminated the loop early.
func (r *Reactor) Run(ctx context.Context) error {
	go r.readLoop()

	ticker := time.NewTicker(r.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.conn.Close()
			return nil

		case err := <-r.readErr:
			r.conn.Close()
			return err

		case cmd := <-r.cmdCh:
			if stop, err := r.handleCommand(cmd); stop {
				r.conn.Close()
				return err
			}

		case <-ticker.C:
			if err := r.tick(); err != nil {
				var derr *domain.Error
				if errors.As(err, &derr) && derr.Kind.Fatal() {
					r.conn.Close()
					return err
				}
				r.log.Warn("tick error", "error", err)
			}
		}
	}
}

// handleCommand dispatches one externally-originated command. stop is
// true when Run should return (Exit only).
func (r *Reactor) handleCommand(cmd command) (stop bool, err error) {
	switch cmd.kind {
	case cmdAddSeed:
		r.seedQueue = append(r.seedQueue, cmd.seedAddr)
		if err := r.react(cmd.seedAddr, Request{Kind: RequestPing}); err != nil {
			r.log.Warn("seed ping failed", "addr", cmd.seedAddr, "error", err)
		}
		return false, nil

	case cmdRespond:
		r.handleRespond(cmd.from, cmd.msg)
		return false, nil

	case cmdLeaveCluster:
		r.leave()
		return false, nil

	case cmdExit:
		close(cmd.ack)
		return true, nil
	}
	return false, nil
}

// tick fires once per PingInterval: re-probe pending seeds, probe one
// random member, and sweep expired responses.
func (r *Reactor) tick() error {
	for _, addr := range r.seedQueue {
		if err := r.react(addr, Request{Kind: RequestPing}); err != nil {
			return err
		}
	}

	if target := r.table.NextRandom(); target != nil {
		if err := r.react(target.RemoteHost, Request{Kind: RequestPing}); err != nil {
			return err
		}
	}

	if r.metrics != nil {
		r.metrics.TableSize.Set(float64(len(r.table.AvailableNodes())))
	}

	return r.pruneTimedOutResponses()
}

// react builds, encodes and transmits a datagram to target. Ping requests
// register a pending-expiry entry so pruneTimedOutResponses can notice a
// missed Ack.
func (r *Reactor) react(target netip.AddrPort, req Request) error {
	msg, ok := BuildMessage(r.self, r.config.ClusterKey, req, r.outgoingDigest, r.config.NetworkMTU)
	if !ok {
		return domain.NewError(domain.KindPrecondition, "react",
			fmt.Errorf("message to %s exceeds network MTU %d bytes even with an empty digest", target, r.config.NetworkMTU))
	}
	if len(msg.StateChanges) < len(r.outgoingDigest) && r.metrics != nil {
		r.metrics.DigestTruncations.Inc()
	}

	encoded, err := Encode(msg)
	if err != nil {
		return domain.NewError(domain.KindIO, "encode", err)
	}

	if _, err := r.conn.WriteToUDPAddrPort(encoded, target); err != nil {
		return domain.NewError(domain.KindIO, "write", err)
	}

	if req.Kind == RequestPing {
		r.pending = append(r.pending, pendingExpiry{
			addr:     target,
			deadline: time.Now().Add(r.config.PingTimeout),
			digest:   copyDigest(msg.StateChanges),
		})
	}
	r.metrics.RecordSent(req.Kind.String())
	return nil
}

// copyDigest detaches a digest slice from whatever backing array it was
// sliced from. msg.StateChanges is a sub-slice of r.outgoingDigest, and
// r.outgoingDigest's entries are replaced in place by enqueueDigest, so a
// pendingExpiry recording the digest sent with a request must hold its
// own copy rather than alias a slice that will keep changing underneath it.
func copyDigest(d []domain.StateChange) []domain.StateChange {
	return append([]domain.StateChange(nil), d...)
}

// handleRespond processes one decoded inbound datagram.
func (r *Reactor) handleRespond(src netip.AddrPort, msg Message) {
	if string(msg.ClusterKey) != string(r.config.ClusterKey) {
		r.log.Debug("dropping datagram with mismatched cluster key", "from", src)
		return
	}
	r.metrics.RecordReceived(msg.Request.Kind.String())

	span := r.tracer.Start("handle_respond")
	defer span.End(nil)

	newlySeen, changed, selfDefense := r.table.ApplyStateChanges(msg.StateChanges, src)
	for _, m := range newlySeen {
		r.enqueueDigest(m)
		r.publish(Event{Kind: MemberJoined, Member: m})
	}
	for _, m := range changed {
		r.enqueueDigest(m)
		r.publish(eventForState(m))
	}
	if selfDefense != nil {
		r.enqueueDigest(*selfDefense)
	}

	r.removeFromSeedQueue(src)
	r.ensureMember(msg.Sender, src)

	switch msg.Request.Kind {
	case RequestPing:
		if err := r.react(src, Request{Kind: RequestAck}); err != nil {
			r.log.Warn("ack reply failed", "to", src, "error", err)
		}

	case RequestAck:
		r.ackResponse(src)
		r.markAlive(src)

	case RequestPingRequest:
		target := msg.Request.PingRequestTarget
		r.waitList[target] = append(r.waitList[target], src)
		if err := r.react(target, Request{Kind: RequestPing}); err != nil {
			r.log.Warn("relayed ping failed", "target", target, "error", err)
		}

	case RequestAckHost:
		member := msg.Request.AckHostMember
		if member == nil {
			return
		}
		r.ackResponse(member.RemoteHost)
		r.markAlive(member.RemoteHost)
	}
}

// ensureMember guarantees sender is present in the table even when the
// piggybacked digest this datagram carried did not happen to mention it.
// Kept as an independent check run on every inbound datagram rather than
// folded into the digest merge, since the two can disagree: a datagram
// may arrive before its sender's own state change has propagated.
func (r *Reactor) ensureMember(sender uuid.UUID, src netip.AddrPort) {
	if sender == r.self || r.table.Has(sender) {
		return
	}
	m := r.table.Add(domain.Member{
		HostKey:     sender,
		RemoteHost:  src,
		Incarnation: 0,
		State:       domain.Alive,
	})
	r.enqueueDigest(m)
	r.publish(Event{Kind: MemberJoined, Member: m})
}

// ackResponse clears pending-expiry entries targeting src and prunes the
// outgoing digest of any host key that appeared in the digest snapshot we
// recorded when the matched request was sent — once a peer has
// acknowledged a Ping or PingRequest we sent it, it has heard whatever
// changes we piggybacked on that request, so there is no need to keep
// re-disseminating them to it. This prunes against what WE sent and it
// acked, not against the Ack's own independent piggybacked digest (which
// reflects the replier's unrelated knowledge, not confirmation of
// anything it was just told).
func (r *Reactor) ackResponse(src netip.AddrPort) {
	var ackedDigests [][]domain.StateChange
	kept := r.pending[:0]
	for _, p := range r.pending {
		if p.addr == src {
			ackedDigests = append(ackedDigests, p.digest)
		} else {
			kept = append(kept, p)
		}
	}
	r.pending = kept

	if len(ackedDigests) == 0 {
		return
	}
	known := make(map[uuid.UUID]struct{})
	for _, digest := range ackedDigests {
		for _, sc := range digest {
			known[sc.Member.HostKey] = struct{}{}
		}
	}
	if len(known) == 0 {
		return
	}
	prunedDigest := r.outgoingDigest[:0]
	for _, sc := range r.outgoingDigest {
		if _, ok := known[sc.Member.HostKey]; !ok {
			prunedDigest = append(prunedDigest, sc)
		}
	}
	r.outgoingDigest = prunedDigest
}

// markAlive promotes src to Alive and drains any relays waiting on it.
func (r *Reactor) markAlive(src netip.AddrPort) {
	m := r.table.MarkAlive(src)
	if m == nil {
		return
	}
	r.enqueueDigest(*m)
	r.publish(Event{Kind: MemberWentUp, Member: *m})
	if r.metrics != nil {
		r.metrics.Confirmations.Inc()
	}

	relays := r.waitList[src]
	delete(r.waitList, src)
	for _, relay := range relays {
		if err := r.react(relay, Request{Kind: RequestAckHost, AckHostMember: m}); err != nil {
			r.log.Warn("ack-host notify failed", "relay", relay, "error", err)
		}
	}
}

// pruneTimedOutResponses sweeps pending expiry entries whose deadline has
// passed, applies the table timeout transition, and for freshly-suspected
// members kicks off an indirect probe fanout with a fresh deadline.
// Expiry uses deadline <= now: a pending entry is due the instant its
// deadline is reached, not strictly after.
func (r *Reactor) pruneTimedOutResponses() error {
	now := time.Now()
	var expired []netip.AddrPort
	kept := r.pending[:0]
	for _, p := range r.pending {
		if p.deadline.Compare(now) <= 0 {
			expired = append(expired, p.addr)
		} else {
			kept = append(kept, p)
		}
	}
	r.pending = kept

	if len(expired) == 0 {
		return nil
	}

	suspect, down := r.table.TimeOut(expired)

	for _, m := range down {
		r.enqueueDigest(m)
		r.publish(Event{Kind: MemberWentDown, Member: m})
		delete(r.waitList, m.RemoteHost)
	}

	for _, m := range suspect {
		r.enqueueDigest(m)
		r.publish(Event{Kind: MemberSuspectedDown, Member: m})
		if r.metrics != nil {
			r.metrics.SuspicionsRaised.Inc()
		}

		relays := r.table.HostsForIndirectPing(r.config.PingRequestHostCount, m.RemoteHost)
		if r.metrics != nil && len(relays) > 0 {
			r.metrics.IndirectRescues.Inc()
		}
		probe := Request{Kind: RequestPingRequest, PingRequestTarget: m.RemoteHost}
		for _, relay := range relays {
			r.waitList[m.RemoteHost] = append(r.waitList[m.RemoteHost], relay.RemoteHost)
			if err := r.react(relay.RemoteHost, probe); err != nil {
				return err
			}
		}
		var sent []domain.StateChange
		if len(relays) > 0 {
			msg, _ := BuildMessage(r.self, r.config.ClusterKey, probe, r.outgoingDigest, r.config.NetworkMTU)
			sent = msg.StateChanges
		}
		r.pending = append(r.pending, pendingExpiry{
			addr:     m.RemoteHost,
			deadline: now.Add(r.config.PingTimeout),
			digest:   copyDigest(sent),
		})
	}

	return nil
}

// leave transitions self to Left and enqueues the resulting self-change.
// No further transmission is forced: the Left state disseminates on the
// next scheduled Ping, the same as any other state change.
func (r *Reactor) leave() {
	self := r.table.Leave()
	r.enqueueDigest(self)
}

// enqueueDigest replaces any existing outgoing entry for m's host key in
// place, keeping the digest free of duplicate or stale records for the
// same member.
func (r *Reactor) enqueueDigest(m domain.Member) {
	sc := domain.NewStateChange(m)
	for i, existing := range r.outgoingDigest {
		if existing.Member.HostKey == m.HostKey {
			r.outgoingDigest[i] = sc
			return
		}
	}
	r.outgoingDigest = append(r.outgoingDigest, sc)
}

func (r *Reactor) removeFromSeedQueue(addr netip.AddrPort) {
	kept := r.seedQueue[:0]
	for _, s := range r.seedQueue {
		if s != addr {
			kept = append(kept, s)
		}
	}
	r.seedQueue = kept
}

// publish delivers e to Events(). The send blocks when the channel's
// buffer is full: a slow embedder applies backpressure to the reactor
// loop rather than silently losing transitions. No event is ever
// dropped.
func (r *Reactor) publish(e Event) {
	r.eventCh <- ClusterEvent{AvailableNodes: r.table.AvailableNodes(), Event: e}
}

// readLoop owns the socket's read side exclusively: it decodes inbound
// datagrams and forwards them as cmdRespond commands over a dedicated
// blocking-read goroutine, keeping the reactor's own state machine free
// of any socket I/O.
func (r *Reactor) readLoop() {
	buf := make([]byte, 65536)
	for {
		n, from, err := r.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.readErr <- domain.NewError(domain.KindUnexpected, "read", err)
			return
		}

		msg, err := Decode(buf[:n])
		if err != nil {
			r.log.Debug("dropping malformed datagram", "from", from, "error", err)
			continue
		}

		r.cmdCh <- command{kind: cmdRespond, from: from, msg: msg}
	}
}
