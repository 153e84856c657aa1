package runtime

import (
	"sync"

	"github.com/samber/lo"

	"video2tool/domain"
)

type Set map[domain.Identity]struct{}

// Membership maps a project room to the set of identities currently
// joined. Rooms are created lazily on first join and deleted when the
// last member leaves, so abandoned projects never leak memory.
type Membership struct {
	mu    sync.RWMutex
	rooms map[domain.ProjectID]Set
}

func NewMembership() *Membership {
	return &Membership{rooms: make(map[domain.ProjectID]Set)}
}

func (m *Membership) Join(project domain.ProjectID, id domain.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[project]; !ok {
		m.rooms[project] = make(Set)
	}
	m.rooms[project][id] = struct{}{}
}

// Leave removes the identity from the room. Leaving a room the identity
// never joined is a no-op.
func (m *Membership) Leave(project domain.ProjectID, id domain.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(project, id)
}

// MembersOf returns a copy of the room's member set, empty if the room
// does not exist.
func (m *Membership) MembersOf(project domain.ProjectID) []domain.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Keys(m.rooms[project])
}

// LeaveAll removes the identity from every room it belongs to and
// returns the vacated rooms. It runs under a single lock acquisition so
// a concurrent join of the same identity cannot interleave mid-cleanup
// and leave a dangling membership.
func (m *Membership) LeaveAll(id domain.Identity) []domain.ProjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var vacated []domain.ProjectID
	for project, members := range m.rooms {
		if _, ok := members[id]; ok {
			vacated = append(vacated, project)
		}
	}
	for _, project := range vacated {
		m.remove(project, id)
	}
	return vacated
}

func (m *Membership) Rooms() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// remove expects m.mu to be held. It deletes the room entry entirely
// when the last member leaves.
func (m *Membership) remove(project domain.ProjectID, id domain.Identity) {
	members, ok := m.rooms[project]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(m.rooms, project)
	}
}
