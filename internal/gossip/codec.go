package gossip

import (
	"encoding/json"
	"net/netip"

	"github.com/google/uuid"

	"github.com/epidemic-mesh/epidemic/internal/domain"
)

// RequestKind identifies which of the four request variants a Message
// carries. Go has no tagged-union syntax, so the sum type is emulated
// with a Kind discriminant plus the fields each variant needs.
type RequestKind uint8

const (
	RequestPing RequestKind = iota
	RequestAck
	RequestPingRequest
	RequestAckHost
)

func (k RequestKind) String() string {
	switch k {
	case RequestPing:
		return "ping"
	case RequestAck:
		return "ack"
	case RequestPingRequest:
		return "ping_request"
	case RequestAckHost:
		return "ack_host"
	default:
		return "unknown"
	}
}

// Request is the tagged union of the four inbound/outbound request
// variants. Only the field(s) relevant to Kind are populated.
type Request struct {
	Kind RequestKind `json:"kind"`

	// PingRequestTarget is set when Kind == RequestPingRequest.
	PingRequestTarget netip.AddrPort `json:"ping_request_target,omitzero"`

	// AckHostMember is set when Kind == RequestAckHost.
	AckHostMember *domain.Member `json:"ack_host_member,omitempty"`
}

// Message is the wire record carried by every datagram: sender, an opaque
// cluster-key demultiplexer, the request, and the piggybacked digest.
type Message struct {
	Sender       uuid.UUID            `json:"sender"`
	ClusterKey   []byte               `json:"cluster_key"`
	Request      Request              `json:"request"`
	StateChanges []domain.StateChange `json:"state_changes,omitempty"`
}

// Encode serializes m as self-describing JSON text.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a datagram into a Message. Failure is non-fatal —
// callers log and drop.
func Decode(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}

// BuildMessage selects the largest prefix of changes whose encoding fits
// strictly under mtu. It scans i in 0..=len(changes) — including the
// untruncated digest as the final candidate — rather than stopping one
// short, so a digest that fits in full is never needlessly truncated.
// ok is false only when not even the empty digest fits: the caller's
// precondition failure, not this function's to fix. msg then carries the
// full, untruncated digest.
func BuildMessage(sender uuid.UUID, clusterKey []byte, req Request, changes []domain.StateChange, mtu int) (msg Message, ok bool) {
	best := Message{Sender: sender, ClusterKey: clusterKey, Request: req}

	for i := 0; i <= len(changes); i++ {
		candidate := Message{
			Sender:       sender,
			ClusterKey:   clusterKey,
			Request:      req,
			StateChanges: changes[:i],
		}
		encoded, err := Encode(candidate)
		if err != nil || len(encoded) >= mtu {
			if i == 0 {
				best.StateChanges = changes
				return best, false
			}
			return best, true
		}
		best = candidate
	}
	return best, true
}
