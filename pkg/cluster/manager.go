package cluster

import (
	"sort"
	"sync"

	"github.com/emberql/emberql/pkg/errs"
)

// Member is a cluster peer's identity as known to the local manager.
type Member struct {
	ID      string
	Address string
}

// Info is the snapshot returned by Manager.Info.
type Info struct {
	Local      string
	Members    []Member
	Partitions int
}

// Manager holds local node identity, the membership list, and the
// partition ring, rebuilding the ring on every membership change.
type Manager struct {
	mu      sync.RWMutex
	local   string
	members map[string]Member
	ring    *Ring
}

// New constructs a Manager whose local identity is localID, initially a
// cluster of one.
func New(localID, localAddr string) *Manager {
	m := &Manager{
		local:   localID,
		members: map[string]Member{localID: {ID: localID, Address: localAddr}},
	}
	m.rebuildRingLocked()
	return m
}

// Join reconciles a peer's arrival into the membership list and rebuilds
// the ring.
func (m *Manager) Join(peer Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[peer.ID] = peer
	m.rebuildRingLocked()
}

// Depart removes a peer (detected failed by the health monitor) from
// membership and rebuilds the ring.
func (m *Manager) Depart(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, peerID)
	m.rebuildRingLocked()
}

func (m *Manager) rebuildRingLocked() {
	ids := make([]string, 0, len(m.members))
	for id := range m.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	m.ring = BuildRing(ids)
}

// Info returns the current local identity, membership list, and
// partition count.
func (m *Manager) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := make([]Member, 0, len(m.members))
	for _, mem := range m.members {
		members = append(members, mem)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	return Info{Local: m.local, Members: members, Partitions: m.ring.Size()}
}

// Owner returns the member that owns key under the current ring.
func (m *Manager) Owner(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.ring.Owner(key)
	if !ok {
		return "", errs.ErrClusterUnavailable
	}
	return owner, nil
}

// OwnerAt returns the owner of the i-th hash variant of key, used for
// replica placement.
func (m *Manager) OwnerAt(key string, i int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.ring.OwnerAt(key, i)
	if !ok {
		return "", errs.ErrClusterUnavailable
	}
	return owner, nil
}

// Members returns a snapshot of every known member id, including local.
func (m *Manager) Members() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.members))
	for id := range m.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Local returns the local member id.
func (m *Manager) Local() string { return m.local }
