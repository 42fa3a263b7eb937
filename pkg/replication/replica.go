package replication

import (
	"sync"
	"time"

	"github.com/emberql/emberql/pkg/errs"
)

// Policy is the closed set of replication policies.
type Policy string

const (
	PolicyMinimal  Policy = "minimal"
	PolicyBalanced Policy = "balanced"
	PolicyMaximum  Policy = "maximum"
	PolicyAdaptive Policy = "adaptive"
)

// Role distinguishes the primary replica from the rest of a replica set.
type Role string

const (
	RolePrimary Role = "primary"
	RoleReplica Role = "replica"
)

// Replica is one member's copy of a key's payload.
type Replica struct {
	Member      string
	Payload     any
	Version     uint64
	VectorClock VectorClock
	LastUpdated time.Time
	Role        Role
	Conflicts   []Replica
}

// ReplicaSet is the full replication state for one key.
type ReplicaSet struct {
	Key           string
	Strategy      Policy
	PrimaryMember string
	Replicas      map[string]*Replica
	LastSync      time.Time
}

// ReplicaCountRange returns the [min,max] replica count a policy allows,
// (adaptive is resolved dynamically, so its range is
// reported as the union of the other three).
func ReplicaCountRange(p Policy) (min, max int) {
	switch p {
	case PolicyMinimal:
		return 1, 2
	case PolicyBalanced:
		return 2, 3
	case PolicyMaximum:
		return 3, 5
	case PolicyAdaptive:
		return 1, 5
	}
	return 1, 1
}

// AdaptiveReplicaCount derives a replica count from access rate and
// payload size: hotter, smaller payloads replicate further (cheap to
// copy, valuable to keep close); colder or larger payloads replicate
// less (expensive relative to benefit).
func AdaptiveReplicaCount(accessPerMinute float64, payloadSizeBytes int) int {
	switch {
	case accessPerMinute >= 10 && payloadSizeBytes < 4096:
		return 5
	case accessPerMinute >= 5:
		return 3
	case accessPerMinute >= 1:
		return 2
	default:
		return 1
	}
}

// ResolverFor picks the conflict resolver a policy implies; adaptive
// chooses by payload shape (node/edge-shaped payloads get smart merge,
// everything else falls back to vector-clock resolution).
func ResolverFor(p Policy, samplePayload any) func([]Replica) Replica {
	switch p {
	case PolicyMinimal:
		return LastWriteWins
	case PolicyBalanced:
		return VectorClockResolve
	case PolicyMaximum:
		return Consensus
	case PolicyAdaptive:
		if isNodeShaped(samplePayload) || isEdgeShaped(samplePayload) {
			return SmartMerge
		}
		return VectorClockResolve
	}
	return LastWriteWins
}

// Manager tracks replica sets and runs the update/conflict-resolution
// protocol. It does not talk to peers itself: Update returns the updated
// replica, the caller propagates it (with whatever async dispatch it
// chooses, so the writer never blocks on acknowledgement), and each peer
// applies it with ApplyFromPeer.
type Manager struct {
	mu   sync.Mutex
	sets map[string]*ReplicaSet
}

// NewManager constructs an empty replication manager.
func NewManager() *Manager {
	return &Manager{sets: make(map[string]*ReplicaSet)}
}

// CreateSet registers a new replica set for key with the given policy
// and member list (first member is primary).
func (m *Manager) CreateSet(key string, policy Policy, members []string) (*ReplicaSet, error) {
	if len(members) == 0 {
		return nil, errs.New(errs.CodeValidationError, "replica set for %q needs at least one member", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rs := &ReplicaSet{
		Key:           key,
		Strategy:      policy,
		PrimaryMember: members[0],
		Replicas:      make(map[string]*Replica, len(members)),
	}
	for i, mem := range members {
		role := RoleReplica
		if i == 0 {
			role = RolePrimary
		}
		rs.Replicas[mem] = &Replica{Member: mem, Role: role, VectorClock: VectorClock{}}
	}
	m.sets[key] = rs
	return rs, nil
}

// Get returns the replica set for key, if tracked.
func (m *Manager) Get(key string) (*ReplicaSet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs, ok := m.sets[key]
	return rs, ok
}

// Keys returns every replica-set key currently tracked, in no
// particular order. Used by the background consistency-check sweep,
// which needs to scan the whole table rather than check one key.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.sets))
	for k := range m.sets {
		keys = append(keys, k)
	}
	return keys
}

// Update applies a write from writerMember: advances its vector clock
// component, merges the payload into its own replica (map fields merge,
// anything else replaces wholesale), and returns the updated replica so
// the caller can propagate it to peers.
func (m *Manager) Update(key, writerMember string, payload any, now time.Time) (Replica, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, ok := m.sets[key]
	if !ok {
		return Replica{}, errs.New(errs.CodeNodeNotFound, "no replica set for key %q", key)
	}
	r, ok := rs.Replicas[writerMember]
	if !ok {
		return Replica{}, errs.New(errs.CodeNodeNotFound, "member %q not in replica set for %q", writerMember, key)
	}

	r.VectorClock.Advance(writerMember)
	r.Payload = mergePayload(r.Payload, payload)
	r.Version++
	r.LastUpdated = now

	return *r, nil
}

// ApplyFromPeer is what a peer runs on receipt of a propagated update: if
// its local replica and the incoming one don't conflict (one
// dominates), the update is applied in place; otherwise it is appended
// to the replica's Conflicts list for later resolution.
func (m *Manager) ApplyFromPeer(key, member string, incoming Replica) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, ok := m.sets[key]
	if !ok {
		return errs.New(errs.CodeNodeNotFound, "no replica set for key %q", key)
	}
	r, ok := rs.Replicas[member]
	if !ok {
		return errs.New(errs.CodeNodeNotFound, "member %q not in replica set for %q", member, key)
	}

	switch Compare(incoming.VectorClock, r.VectorClock) {
	case Dominates, Equal:
		r.Payload = incoming.Payload
		r.VectorClock = incoming.VectorClock.Clone()
		r.Version = incoming.Version
		r.LastUpdated = incoming.LastUpdated
	case Dominated:
		// local is already ahead; nothing to do.
	default: // Concurrent
		r.Conflicts = append(r.Conflicts, incoming)
	}
	return nil
}

// Resolve runs the replica set's conflict resolver over every replica
// (including conflicts folded in) and returns the winning payload.
func (rs *ReplicaSet) Resolve() Replica {
	resolver := ResolverFor(rs.Strategy, firstPayload(rs.Replicas))
	var all []Replica
	for _, r := range rs.Replicas {
		if r.Payload == nil {
			continue
		}
		all = append(all, *r)
		all = append(all, r.Conflicts...)
	}
	return resolver(all)
}

func firstPayload(replicas map[string]*Replica) any {
	for _, r := range replicas {
		if r.Payload != nil {
			return r.Payload
		}
	}
	return nil
}

// HandlePeerFailure removes failedMember's replica from every affected
// set, promoting a new primary (highest last_updated among survivors) if
// the failed member was primary, and reports sets that dropped below
// minReplicas so the caller can request fresh replicas elsewhere.
func (m *Manager) HandlePeerFailure(failedMember string, minReplicas int) (needsNewReplicas []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, rs := range m.sets {
		if _, ok := rs.Replicas[failedMember]; !ok {
			continue
		}
		wasPrimary := rs.PrimaryMember == failedMember
		delete(rs.Replicas, failedMember)

		if wasPrimary {
			var newest *Replica
			for _, r := range rs.Replicas {
				if newest == nil || r.LastUpdated.After(newest.LastUpdated) {
					newest = r
				}
			}
			if newest != nil {
				newest.Role = RolePrimary
				rs.PrimaryMember = newest.Member
			}
		}

		if len(rs.Replicas) < minReplicas {
			needsNewReplicas = append(needsNewReplicas, key)
		}
	}
	return needsNewReplicas
}

// ConsistencyCheck enumerates distinct payload versions across a set's
// replicas; more than one indicates an inconsistency requiring
// resolution.
func (rs *ReplicaSet) ConsistencyCheck() (inconsistent bool, distinctVersions int) {
	seen := map[uint64]struct{}{}
	for _, r := range rs.Replicas {
		seen[r.Version] = struct{}{}
	}
	return len(seen) > 1, len(seen)
}
