package gossip

import (
	"math/rand"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/epidemic-mesh/epidemic/internal/domain"
)

// Table is the member table: an indexed collection with merge, random
// selection, and timeout sweep. A mutex guards it even though only the
// reactor goroutine mutates it, since callers outside the reactor (the
// HTTP status surface, tests) read it concurrently via
// AvailableNodes/Current.
type Table struct {
	mu      sync.RWMutex
	self    uuid.UUID
	members map[uuid.UUID]*domain.Member
}

// NewTable constructs a table whose only entry is self, Alive, at
// incarnation 0.
func NewTable(self uuid.UUID, selfAddr netip.AddrPort) *Table {
	t := &Table{
		self:    self,
		members: make(map[uuid.UUID]*domain.Member),
	}
	t.members[self] = &domain.Member{
		HostKey:         self,
		RemoteHost:      selfAddr,
		Incarnation:     0,
		State:           domain.Alive,
		LastStateChange: time.Now(),
	}
	return t
}

// Current returns a snapshot of the self member.
func (t *Table) Current() domain.Member {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return *t.members[t.self]
}

// Has reports whether hostKey is already present.
func (t *Table) Has(hostKey uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.members[hostKey]
	return ok
}

// Add inserts a brand-new member. Precondition: hostKey not present.
func (t *Table) Add(m domain.Member) domain.Member {
	t.mu.Lock()
	defer t.mu.Unlock()
	m.LastStateChange = time.Now()
	cp := m
	t.members[m.HostKey] = &cp
	return cp
}

// ApplyStateChanges merges incoming state changes per MemberState's
// precedence rule. from is substituted for any newly-seen member whose
// RemoteHost is absent. Returns the members newly inserted and the
// members whose state or incarnation actually changed, plus a self-change
// when self-defense fires.
func (t *Table) ApplyStateChanges(changes []domain.StateChange, from netip.AddrPort) (newlySeen, changed []domain.Member, selfDefense *domain.Member) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, sc := range changes {
		incoming := sc.Member
		local, ok := t.members[incoming.HostKey]

		if !ok {
			if !incoming.HasAddr() {
				incoming.RemoteHost = from
			}
			incoming.LastStateChange = time.Now()
			cp := incoming
			t.members[incoming.HostKey] = &cp
			newlySeen = append(newlySeen, cp)
			continue
		}

		if incoming.HostKey == t.self {
			if incoming.State != domain.Alive {
				local.Incarnation++
				local.State = domain.Alive
				local.LastStateChange = time.Now()
				cp := *local
				selfDefense = &cp
			}
			continue
		}

		switch {
		case incoming.Incarnation > local.Incarnation:
			local.Incarnation = incoming.Incarnation
			local.State = incoming.State
			local.LastStateChange = time.Now()
			changed = append(changed, *local)
		case incoming.Incarnation == local.Incarnation && incoming.State.Outranks(local.State):
			local.State = incoming.State
			local.LastStateChange = time.Now()
			changed = append(changed, *local)
		default:
			// Lower incarnation, or equal incarnation with no-higher
			// precedence: ignore.
		}
	}

	return newlySeen, changed, selfDefense
}

// MarkAlive promotes Suspect to Alive without bumping incarnation. Returns
// the updated member if a transition occurred.
func (t *Table) MarkAlive(addr netip.AddrPort) *domain.Member {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range t.members {
		if m.RemoteHost != addr {
			continue
		}
		if m.State != domain.Suspect {
			return nil
		}
		m.State = domain.Alive
		m.LastStateChange = time.Now()
		cp := *m
		return &cp
	}
	return nil
}

// TimeOut applies the expiry sweep: Alive -> Suspect, Suspect -> Down.
// Alive -> Down never happens directly in one call.
func (t *Table) TimeOut(expired []netip.AddrPort) (suspect, down []domain.Member) {
	t.mu.Lock()
	defer t.mu.Unlock()

	expiredSet := make(map[netip.AddrPort]struct{}, len(expired))
	for _, a := range expired {
		expiredSet[a] = struct{}{}
	}

	for _, m := range t.members {
		if m.HostKey == t.self {
			continue
		}
		if _, ok := expiredSet[m.RemoteHost]; !ok {
			continue
		}
		switch m.State {
		case domain.Alive:
			m.State = domain.Suspect
			m.LastStateChange = time.Now()
			suspect = append(suspect, *m)
		case domain.Suspect:
			m.State = domain.Down
			m.LastStateChange = time.Now()
			down = append(down, *m)
		}
	}
	return suspect, down
}

// Leave sets self to Left, bumps self's incarnation, and returns the
// snapshot.
func (t *Table) Leave() domain.Member {
	t.mu.Lock()
	defer t.mu.Unlock()

	self := t.members[t.self]
	self.Incarnation++
	self.State = domain.Left
	self.LastStateChange = time.Now()
	return *self
}

// NextRandom returns a uniformly random peer with state Alive or Suspect,
// excluding self. A nil return means no eligible peer exists.
func (t *Table) NextRandom() *domain.Member {
	t.mu.RLock()
	defer t.mu.RUnlock()

	candidates := t.snapshotExcludingSelfLocked(func(m *domain.Member) bool {
		return m.State == domain.Alive || m.State == domain.Suspect
	})
	if len(candidates) == 0 {
		return nil
	}
	return &candidates[rand.Intn(len(candidates))]
}

// HostsForIndirectPing returns up to k uniformly-chosen Alive peers whose
// address is not exclude.
func (t *Table) HostsForIndirectPing(k int, exclude netip.AddrPort) []domain.Member {
	t.mu.RLock()
	defer t.mu.RUnlock()

	candidates := t.snapshotExcludingSelfLocked(func(m *domain.Member) bool {
		return m.State == domain.Alive && m.RemoteHost != exclude
	})
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k]
}

// AvailableNodes returns a snapshot of every member whose state is
// neither Down nor Left.
func (t *Table) AvailableNodes() []domain.Member {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.Member, 0, len(t.members))
	for _, m := range t.members {
		if m.State != domain.Down && m.State != domain.Left {
			out = append(out, *m)
		}
	}
	return out
}

// snapshotExcludingSelfLocked must be called with mu held (read or write).
func (t *Table) snapshotExcludingSelfLocked(keep func(*domain.Member) bool) []domain.Member {
	out := make([]domain.Member, 0, len(t.members))
	for _, m := range t.members {
		if m.HostKey == t.self {
			continue
		}
		if keep(m) {
			out = append(out, *m)
		}
	}
	return out
}
