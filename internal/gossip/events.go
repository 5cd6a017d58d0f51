package gossip

import "github.com/epidemic-mesh/epidemic/internal/domain"

// EventKind enumerates the five membership transitions the reactor raises.
type EventKind int

const (
	MemberJoined EventKind = iota
	MemberWentUp
	MemberSuspectedDown
	MemberWentDown
	MemberLeft
)

func (k EventKind) String() string {
	switch k {
	case MemberJoined:
		return "joined"
	case MemberWentUp:
		return "went_up"
	case MemberSuspectedDown:
		return "suspected_down"
	case MemberWentDown:
		return "went_down"
	case MemberLeft:
		return "left"
	default:
		return "unknown"
	}
}

// Event is a single observed membership transition, always published
// alongside the member it concerns.
type Event struct {
	Kind   EventKind
	Member domain.Member
}

// ClusterEvent pairs an Event with the table's available-nodes snapshot
// taken at publication time.
type ClusterEvent struct {
	AvailableNodes []domain.Member
	Event          Event
}

// eventForState maps a post-merge member state to the event that reports
// entering it (used by apply_state_changes handling in the reactor).
func eventForState(m domain.Member) Event {
	switch m.State {
	case domain.Alive:
		return Event{Kind: MemberWentUp, Member: m}
	case domain.Suspect:
		return Event{Kind: MemberSuspectedDown, Member: m}
	case domain.Down:
		return Event{Kind: MemberWentDown, Member: m}
	default: // Left
		return Event{Kind: MemberLeft, Member: m}
	}
}
