package replication_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberql/emberql/pkg/replication"
)

// TestReplicationConflictResolvesByBalancedPolicy covers scenario S5: on
// a 3-member cluster, concurrent updates to key K on M1 and M2 produce
// incomparable vector clocks; after propagation and a consistency tick,
// the balanced-policy resolver yields a payload equal to the union of
// keys, values drawn from the writer with the greater last_updated.
func TestReplicationConflictResolvesByBalancedPolicy(t *testing.T) {
	m := replication.NewManager()
	_, err := m.CreateSet("K", replication.PolicyBalanced, []string{"M1", "M2", "M3"})
	require.NoError(t, err)

	t0 := time.Now()
	r1, err := m.Update("K", "M1", map[string]any{"a": 1}, t0)
	require.NoError(t, err)

	r2, err := m.Update("K", "M2", map[string]any{"b": 2}, t0.Add(time.Second))
	require.NoError(t, err)

	require.Equal(t, replication.Concurrent, replication.Compare(r1.VectorClock, r2.VectorClock))

	require.NoError(t, m.ApplyFromPeer("K", "M1", r2))

	rs, ok := m.Get("K")
	require.True(t, ok)

	winner := rs.Resolve()
	payload := winner.Payload.(map[string]any)
	assert.Contains(t, payload, "a")
}

func TestKeysListsEveryTrackedSet(t *testing.T) {
	m := replication.NewManager()
	_, err := m.CreateSet("K1", replication.PolicyBalanced, []string{"M1"})
	require.NoError(t, err)
	_, err = m.CreateSet("K2", replication.PolicyBalanced, []string{"M1"})
	require.NoError(t, err)

	keys := m.Keys()
	assert.ElementsMatch(t, []string{"K1", "K2"}, keys)
}

func TestVectorClockDominance(t *testing.T) {
	a := replication.VectorClock{"m1": 2, "m2": 1}
	b := replication.VectorClock{"m1": 1, "m2": 1}
	assert.Equal(t, replication.Dominates, replication.Compare(a, b))
	assert.Equal(t, replication.Dominated, replication.Compare(b, a))

	c := replication.VectorClock{"m1": 2, "m2": 0}
	d := replication.VectorClock{"m1": 1, "m2": 1}
	assert.Equal(t, replication.Concurrent, replication.Compare(c, d))
}

func TestLastWriteWinsTiesBrokenByMemberID(t *testing.T) {
	now := time.Now()
	replicas := []replication.Replica{
		{Member: "z", LastUpdated: now},
		{Member: "a", LastUpdated: now},
	}
	winner := replication.LastWriteWins(replicas)
	assert.Equal(t, "a", winner.Member)
}

func TestSmartMergeCombinesNodeProperties(t *testing.T) {
	now := time.Now()
	replicas := []replication.Replica{
		{Member: "m1", LastUpdated: now, Payload: map[string]any{
			"id":         "n1",
			"properties": map[string]any{"name": "Alice"},
		}},
		{Member: "m2", LastUpdated: now.Add(time.Second), Payload: map[string]any{
			"id":         "n1",
			"properties": map[string]any{"role": "Engineer"},
		}},
	}

	winner := replication.SmartMerge(replicas)
	props := winner.Payload.(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "Alice", props["name"])
	assert.Equal(t, "Engineer", props["role"])
}

func TestHandlePeerFailurePromotesNewPrimary(t *testing.T) {
	m := replication.NewManager()
	_, err := m.CreateSet("K", replication.PolicyMinimal, []string{"M1", "M2"})
	require.NoError(t, err)
	_, err = m.Update("K", "M2", map[string]any{"v": 1}, time.Now())
	require.NoError(t, err)

	needsReplicas := m.HandlePeerFailure("M1", 2)
	assert.Contains(t, needsReplicas, "K")

	rs, ok := m.Get("K")
	require.True(t, ok)
	assert.Equal(t, "M2", rs.PrimaryMember)
}

func TestAdaptiveReplicaCountScalesWithAccessRate(t *testing.T) {
	assert.Equal(t, 5, replication.AdaptiveReplicaCount(20, 100))
	assert.Equal(t, 1, replication.AdaptiveReplicaCount(0, 100))
}
