package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberql/emberql/pkg/cluster"
	"github.com/emberql/emberql/pkg/lifecycle"
	"github.com/emberql/emberql/pkg/orchestrator"
	"github.com/emberql/emberql/pkg/placement"
)

func newOrchestrator(t *testing.T) (*orchestrator.Orchestrator, *cluster.Manager, *lifecycle.Manager, placement.Store, placement.Store, placement.Store) {
	t.Helper()
	cm := cluster.New("n1", "localhost:1")
	cm.Join(cluster.Member{ID: "n2", Address: "localhost:2"})
	lm := lifecycle.NewManager(cm)
	hot := placement.NewMemoryTier()
	warm := placement.NewMemoryTier()
	snapshots := placement.NewMemoryTier()
	return orchestrator.New(cm, lm, hot, warm, snapshots), cm, lm, hot, warm, snapshots
}

// TestShutdownPromotesEphemeralAndPersistsSnapshot covers the drain and
// persist phases of scenario S6: an ephemeral key living in hot storage
// is promoted to warm, and the snapshot written at persist round-trips
// through Startup's initialize phase.
func TestShutdownPromotesEphemeralAndPersistsSnapshot(t *testing.T) {
	o, _, lm, hot, warm, _ := newOrchestrator(t)

	_, err := lm.Classify("e1", lifecycle.TagEphemeral, nil)
	require.NoError(t, err)
	require.NoError(t, hot.Put("e1", []byte("ephemeral-payload")))

	report := o.Shutdown(context.Background(), orchestrator.ModePlanned)
	require.NoError(t, report.Err)
	require.Len(t, report.Phases, 5)
	require.NotNil(t, report.Snapshot)
	assert.ElementsMatch(t, []string{"n1", "n2"}, report.Snapshot.Nodes)

	_, stillHot, _ := hot.Get("e1")
	assert.False(t, stillHot)
	v, inWarm, _ := warm.Get("e1")
	require.True(t, inWarm)
	assert.Equal(t, "ephemeral-payload", string(v))
}

// TestStartupRestoresMembershipFromSnapshot simulates a restart: a fresh
// cluster of one rejoins the peers named in the snapshot written by a
// prior Shutdown.
func TestStartupRestoresMembershipFromSnapshot(t *testing.T) {
	o, _, _, _, _, snapshots := newOrchestrator(t)
	shutdownReport := o.Shutdown(context.Background(), orchestrator.ModePlanned)
	require.NoError(t, shutdownReport.Err)

	freshCluster := cluster.New("n1", "localhost:1")
	freshLifecycle := lifecycle.NewManager(freshCluster)
	freshHot := placement.NewMemoryTier()
	freshWarm := placement.NewMemoryTier()
	restarted := orchestrator.New(freshCluster, freshLifecycle, freshHot, freshWarm, snapshots)

	startupReport := restarted.Startup(context.Background(), orchestrator.ModeStandard)
	require.NoError(t, startupReport.Err)
	require.NotNil(t, startupReport.Snapshot)
	assert.Contains(t, freshCluster.Members(), "n2")
}

// TestShutdownDeadlineExpiryRecordsRollback exercises the deadline ->
// rollback path: an already-expired drain deadline must surface as a
// timed-out phase carrying the partial_rollback plan, and the sequence
// must stop rather than continue to persist.
func TestShutdownDeadlineExpiryRecordsRollback(t *testing.T) {
	o, _, _, _, _, _ := newOrchestrator(t)
	o.SetShutdownDeadlines(orchestrator.PhaseDeadlines{
		string(orchestrator.PhaseDrain): -1 * time.Second,
	})

	report := o.Shutdown(context.Background(), orchestrator.ModePlanned)
	require.Error(t, report.Err)
	require.Len(t, report.Phases, 2) // prepare succeeds, drain fails and halts the sequence
	drainResult := report.Phases[1]
	assert.True(t, drainResult.TimedOut)
	assert.Equal(t, orchestrator.RollbackPartialRollback, drainResult.Rollback)
}

// TestEmergencyFailoverSkipsSnapshotAndRecomputesPlacement covers
// the condensed emergency path: no snapshot is touched, and the
// departed peer's records move to the surviving member.
func TestEmergencyFailoverSkipsSnapshotAndRecomputesPlacement(t *testing.T) {
	o, cm, lm, _, _, snapshots := newOrchestrator(t)

	placementBefore, err := lm.Classify("p1", lifecycle.TagPersistent, nil)
	require.NoError(t, err)

	var departed string
	for _, id := range cm.Members() {
		if id != placementBefore.Primary {
			departed = id
		}
	}
	if departed == "" {
		departed = cm.Members()[0]
	}

	report := o.EmergencyFailover(context.Background(), departed)
	require.NoError(t, report.Err)
	assert.Equal(t, orchestrator.ModeEmergency, report.Mode)
	assert.Nil(t, report.Snapshot)

	_, found, _ := snapshots.Get("cluster_state")
	assert.False(t, found)

	rec, ok := lm.Get("p1")
	require.True(t, ok)
	assert.NotContains(t, append([]string{rec.Placement.Primary}, rec.Placement.Replicas...), departed)
}
