// Package orchestrator implements the two ordered phase
// sequences that carry a cluster member through a coordinated shutdown
// and back through startup, plus the condensed emergency-failover path.
//
// Phase sequencing generalizes a single signal.NotifyContext-driven
// teardown (one server Stop call guarded by a context deadline) into a
// five-phase
// prepare -> drain -> persist -> coordinate -> shutdown sequence, each
// phase carrying its own deadline and falling back to a rollback plan
// on expiry instead of just giving up.
package orchestrator

import (
	"context"
	"time"

	"github.com/emberql/emberql/pkg/cluster"
	"github.com/emberql/emberql/pkg/lifecycle"
	"github.com/emberql/emberql/pkg/placement"
)

// ShutdownPhase is one step of the ordered shutdown sequence.
type ShutdownPhase string

const (
	PhasePrepare    ShutdownPhase = "prepare"
	PhaseDrain      ShutdownPhase = "drain"
	PhasePersist    ShutdownPhase = "persist"
	PhaseCoordinate ShutdownPhase = "coordinate"
	PhaseShutdown   ShutdownPhase = "shutdown"
)

var shutdownSequence = []ShutdownPhase{PhasePrepare, PhaseDrain, PhasePersist, PhaseCoordinate, PhaseShutdown}

// StartupPhase is one step of the ordered startup sequence.
type StartupPhase string

const (
	PhaseInitialize  StartupPhase = "initialize"
	PhaseDiscover    StartupPhase = "discover"
	PhaseSynchronize StartupPhase = "synchronize"
	PhaseActivate    StartupPhase = "activate"
	PhaseReady       StartupPhase = "ready"
)

var startupSequence = []StartupPhase{PhaseInitialize, PhaseDiscover, PhaseSynchronize, PhaseActivate, PhaseReady}

// RollbackPlan is the closed set of recovery strategies a phase deadline
// expiry can invoke.
type RollbackPlan string

const (
	RollbackEmergencyStop   RollbackPlan = "emergency_stop"
	RollbackPartialRollback RollbackPlan = "partial_rollback"
	RollbackDataRecovery    RollbackPlan = "data_recovery"
)

// Mode distinguishes a planned transition from an emergency one. It is
// recorded in the Report only: Shutdown and Startup run every phase, the
// snapshot included, whatever the mode; EmergencyFailover is the path
// that skips the cluster-state snapshot.
type Mode string

const (
	ModePlanned   Mode = "planned"
	ModeStandard  Mode = "standard"
	ModeEmergency Mode = "emergency"
)

// PhaseDeadlines assigns a deadline to every named phase; phases absent
// from the map never time out.
type PhaseDeadlines map[string]time.Duration

// DefaultShutdownDeadlines mirrors a 30s graceful-shutdown
// ctx.WithTimeout convention, split across the five phases so no single
// phase can stall the whole sequence.
func DefaultShutdownDeadlines() PhaseDeadlines {
	return PhaseDeadlines{
		string(PhasePrepare):    2 * time.Second,
		string(PhaseDrain):      10 * time.Second,
		string(PhasePersist):    5 * time.Second,
		string(PhaseCoordinate): 10 * time.Second,
		string(PhaseShutdown):   3 * time.Second,
	}
}

// DefaultStartupDeadlines is the startup-side counterpart.
func DefaultStartupDeadlines() PhaseDeadlines {
	return PhaseDeadlines{
		string(PhaseInitialize):  2 * time.Second,
		string(PhaseDiscover):    5 * time.Second,
		string(PhaseSynchronize): 10 * time.Second,
		string(PhaseActivate):    5 * time.Second,
		string(PhaseReady):       2 * time.Second,
	}
}

// PhaseResult records what happened during one phase.
type PhaseResult struct {
	Phase    string
	Started  time.Time
	Duration time.Duration
	TimedOut bool
	Rollback RollbackPlan
	Err      error
}

// Report is the outcome of a full shutdown or startup run.
type Report struct {
	Mode     Mode
	Phases   []PhaseResult
	Snapshot *ClusterState
	Err      error
}

// ClusterState is the persisted snapshot format, named exactly:
// {nodes: [string], partitions: int, timestamp: int}.
type ClusterState struct {
	Nodes      []string `json:"nodes"`
	Partitions int      `json:"partitions"`
	Timestamp  int64    `json:"timestamp"`
}

// SnapshotStore persists and retrieves the cluster-state snapshot. A
// placement.Store (the same interface the tier layer uses) satisfies
// this with a fixed well-known key, so the orchestrator does not need a
// bespoke persistence mechanism.
type SnapshotStore interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
}

const snapshotKey = "cluster_state"

// Orchestrator sequences shutdown and startup across a cluster manager,
// a lifecycle manager, and the tier stores data is promoted between
// during drain.
type Orchestrator struct {
	cluster    *cluster.Manager
	lifecycle  *lifecycle.Manager
	hot        placement.Store
	warm       placement.Store
	snapshots  SnapshotStore
	now        func() time.Time
	shutdownDL PhaseDeadlines
	startupDL  PhaseDeadlines
}

// SetShutdownDeadlines overrides the phase deadline table used by
// Shutdown and EmergencyFailover's drain phase; exposed for tests that
// need to exercise rollback behavior deterministically.
func (o *Orchestrator) SetShutdownDeadlines(d PhaseDeadlines) { o.shutdownDL = d }

// SetStartupDeadlines overrides the phase deadline table used by Startup.
func (o *Orchestrator) SetStartupDeadlines(d PhaseDeadlines) { o.startupDL = d }

// New constructs an Orchestrator. hot/warm back the drain-phase
// promotion of ephemeral data; snapshots backs the persist/initialize
// cluster-state round trip.
func New(cm *cluster.Manager, lm *lifecycle.Manager, hot, warm placement.Store, snapshots SnapshotStore) *Orchestrator {
	return &Orchestrator{
		cluster:    cm,
		lifecycle:  lm,
		hot:        hot,
		warm:       warm,
		snapshots:  snapshots,
		now:        time.Now,
		shutdownDL: DefaultShutdownDeadlines(),
		startupDL:  DefaultStartupDeadlines(),
	}
}

// runPhase executes fn under the phase's deadline (if any), classifying
// a context.DeadlineExceeded as a timeout and asking chooseRollback for
// the recovery plan to record.
func runPhase(ctx context.Context, name string, deadline time.Duration, fn func(context.Context) error) PhaseResult {
	started := time.Now()
	if deadline != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	err := fn(ctx)
	if err == nil {
		err = ctx.Err()
	}
	res := PhaseResult{Phase: name, Started: started, Duration: time.Since(started), Err: err}
	if err != nil && (err == context.DeadlineExceeded || err == ctx.Err()) {
		res.TimedOut = true
		res.Rollback = chooseRollback(name)
	}
	return res
}

// chooseRollback maps a timed-out phase to the rollback plan
// §4.10 names: persist-side failures need data recovery (the snapshot
// may be partial), drain/coordinate failures are safer to partially
// unwind, and anything else escalates to a full emergency stop.
func chooseRollback(phase string) RollbackPlan {
	switch phase {
	case string(PhasePersist):
		return RollbackDataRecovery
	case string(PhaseDrain), string(PhaseCoordinate):
		return RollbackPartialRollback
	default:
		return RollbackEmergencyStop
	}
}

