// Package lifecycle implements the distributed data-lifecycle manager of
// classification, placement computation over a cluster
// ring, access tracking, and TTL-driven periodic cleanup.
//
// Mutations to a Manager's record table run through a writer lock
// distinct from pkg/store's — lifecycle records and the graph store are
// independent subsystems with independent serialization domains, per
// SPEC_FULL.md's resolution of the "who locks what" open question.
package lifecycle

import (
	"sync"
	"time"

	"github.com/emberql/emberql/pkg/cluster"
	"github.com/emberql/emberql/pkg/errs"
)

// Tag is the four-value lifecycle classification assumed
// every record carries.
type Tag string

const (
	TagEphemeral     Tag = "ephemeral"
	TagSession       Tag = "session"
	TagComputational Tag = "computational"
	TagPersistent    Tag = "persistent"
)

// Policy bundles the rules a Tag implies: how long an untouched record
// survives, how many replicas it wants, and which tier it should start
// in. TTL of 0 means "never expires".
type Policy struct {
	TTL      time.Duration
	Replicas int
	Tier     string
}

// DefaultPolicies returns the tag->policy table SPEC_FULL.md's §4.7
// expansion assigns, modeled on a named-policy-table idiom
// table-of-named-rules pattern.
func DefaultPolicies() map[Tag]Policy {
	return map[Tag]Policy{
		// Ephemeral never expires via TTL — it's evicted by idle/space
		// pressure elsewhere, not dropped out from under CleanupExpired.
		TagEphemeral:     {TTL: 0, Replicas: 1, Tier: "hot"},
		TagSession:       {TTL: 30 * time.Minute, Replicas: 1, Tier: "hot"},
		TagComputational: {TTL: 3600 * time.Second, Replicas: 2, Tier: "warm"},
		TagPersistent:    {TTL: 0, Replicas: 3, Tier: "cold"},
	}
}

// Placement is the primary/replica assignment a classification computes.
type Placement struct {
	Primary  string
	Replicas []string
}

// Record is one tracked key's lifecycle state.
type Record struct {
	Key          string
	Tag          Tag
	Metadata     map[string]any
	Placement    Placement
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  uint64
}

// Manager tracks lifecycle records for a cluster, computing placement
// against the given ring owner.
type Manager struct {
	mu       sync.Mutex
	mgr      *cluster.Manager
	policies map[Tag]Policy
	records  map[string]*Record
	now      func() time.Time
}

// NewManager constructs a lifecycle manager backed by mgr's ring for
// placement decisions.
func NewManager(mgr *cluster.Manager) *Manager {
	return &Manager{
		mgr:      mgr,
		policies: DefaultPolicies(),
		records:  make(map[string]*Record),
		now:      time.Now,
	}
}

// Classify records (key -> {tag, policy, metadata, ...}) and computes the
// initial placement: primary by consistent-hashing key onto the ring,
// replicas by hashing (key, i) for i in [1, replicas-1] and taking the
// top distinct non-primary members.
func (m *Manager) Classify(key string, tag Tag, metadata map[string]any) (Placement, error) {
	policy, ok := m.policies[tag]
	if !ok {
		return Placement{}, errs.New(errs.CodeValidationError, "unknown lifecycle tag %q", tag)
	}

	primary, err := m.mgr.Owner(key)
	if err != nil {
		return Placement{}, err
	}

	seen := map[string]struct{}{primary: {}}
	var replicas []string
	for i := 1; len(replicas) < policy.Replicas-1 && i < policy.Replicas*8; i++ {
		member, err := m.mgr.OwnerAt(key, i)
		if err != nil {
			return Placement{}, err
		}
		if _, dup := seen[member]; dup {
			continue
		}
		seen[member] = struct{}{}
		replicas = append(replicas, member)
	}

	placement := Placement{Primary: primary, Replicas: replicas}
	now := m.now()

	m.mu.Lock()
	m.records[key] = &Record{
		Key:          key,
		Tag:          tag,
		Metadata:     metadata,
		Placement:    placement,
		CreatedAt:    now,
		LastAccessed: now,
	}
	m.mu.Unlock()

	return placement, nil
}

// Touch bumps a record's access_count and last_accessed.
func (m *Manager) Touch(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return errs.New(errs.CodeNodeNotFound, "no lifecycle record for key %q", key)
	}
	rec.AccessCount++
	rec.LastAccessed = m.now()
	return nil
}

// ReplicaNodes returns the primary plus up to n-1 replicas for key.
func (m *Manager) ReplicaNodes(key string, n int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, errs.New(errs.CodeNodeNotFound, "no lifecycle record for key %q", key)
	}
	out := []string{rec.Placement.Primary}
	for i := 0; i < len(rec.Placement.Replicas) && len(out) < n; i++ {
		out = append(out, rec.Placement.Replicas[i])
	}
	return out, nil
}

// HandlePeerDeparture recomputes placement for every record whose
// placement includes the departed peer, against the remaining
// membership (the caller is expected to have already removed the peer
// from the cluster.Manager).
func (m *Manager) HandlePeerDeparture(peerID string) {
	m.mu.Lock()
	affected := make([]*Record, 0)
	for _, rec := range m.records {
		if rec.Placement.Primary == peerID || contains(rec.Placement.Replicas, peerID) {
			affected = append(affected, rec)
		}
	}
	m.mu.Unlock()

	for _, rec := range affected {
		placement, err := m.recomputePlacement(rec.Key, rec.Tag)
		if err != nil {
			continue
		}
		m.mu.Lock()
		if current, ok := m.records[rec.Key]; ok {
			current.Placement = placement
		}
		m.mu.Unlock()
	}
}

func (m *Manager) recomputePlacement(key string, tag Tag) (Placement, error) {
	policy := m.policies[tag]
	primary, err := m.mgr.Owner(key)
	if err != nil {
		return Placement{}, err
	}
	seen := map[string]struct{}{primary: {}}
	var replicas []string
	for i := 1; len(replicas) < policy.Replicas-1 && i < policy.Replicas*8; i++ {
		member, err := m.mgr.OwnerAt(key, i)
		if err != nil {
			return Placement{}, err
		}
		if _, dup := seen[member]; dup {
			continue
		}
		seen[member] = struct{}{}
		replicas = append(replicas, member)
	}
	return Placement{Primary: primary, Replicas: replicas}, nil
}

// CleanupExpired drops any record with a finite TTL whose
// now-last_accessed exceeds it. Runs every 30s in production (see
// SPEC_FULL.md's background-timer table); exposed directly here so
// tests and the CLI can invoke a tick on demand.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	dropped := 0
	for key, rec := range m.records {
		policy, ok := m.policies[rec.Tag]
		if !ok || policy.TTL == 0 {
			continue
		}
		if now.Sub(rec.LastAccessed) > policy.TTL {
			delete(m.records, key)
			dropped++
		}
	}
	return dropped
}

// Keys returns every key currently tracked, in no particular order. Used
// by callers (orchestrator drain) that need to scan the whole record
// table rather than look up a single key.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	return keys
}

// Get returns a copy of the record for key, if tracked.
func (m *Manager) Get(key string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// PolicyFor returns the policy a tag resolves to, for callers (tier
// monitoring, migration planning) that need a record's target tier
// without re-deriving placement.
func (m *Manager) PolicyFor(tag Tag) Policy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policies[tag]
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
