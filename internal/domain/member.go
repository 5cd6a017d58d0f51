package domain

import (
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// MemberState is the lifecycle state of a Member as observed locally.
// Precedence at equal incarnation, highest first: Left > Down > Suspect >
// Alive. Left is a definite user action; Down is a confirmed failure;
// Suspect is a hypothesis; Alive is reversible.
type MemberState int

const (
	Alive MemberState = iota
	Suspect
	Down
	Left
)

func (s MemberState) String() string {
	switch s {
	case Alive:
		return "alive"
	case Suspect:
		return "suspect"
	case Down:
		return "down"
	case Left:
		return "left"
	default:
		return "unknown"
	}
}

// precedence ranks states for the equal-incarnation merge rule. Higher
// wins.
func (s MemberState) precedence() int {
	switch s {
	case Left:
		return 3
	case Down:
		return 2
	case Suspect:
		return 1
	default: // Alive
		return 0
	}
}

// Outranks reports whether s takes precedence over other at equal
// incarnation.
func (s MemberState) Outranks(other MemberState) bool {
	return s.precedence() > other.precedence()
}

// Member is a single entry in the member table. RemoteHost is the zero
// value (invalid) only for the local member when no externally-visible
// address is known yet.
type Member struct {
	HostKey         uuid.UUID
	RemoteHost      netip.AddrPort
	Incarnation     uint64
	State           MemberState
	LastStateChange time.Time
}

// HasAddr reports whether RemoteHost carries a usable address.
func (m Member) HasAddr() bool { return m.RemoteHost.IsValid() }

// StateChange pairs a Member snapshot with the time it entered that state
// locally — the unit of gossip dissemination.
type StateChange struct {
	Member Member
	At     time.Time
}

// NewStateChange wraps m with the current wall-clock time.
func NewStateChange(m Member) StateChange {
	return StateChange{Member: m, At: time.Now()}
}
