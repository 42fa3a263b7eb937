package cluster

import (
	"sync"
	"time"
)

// Health classifications.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthCritical Health = "critical"
	HealthUnknown  Health = "unknown"
)

// Default health thresholds.
const (
	HeartbeatInterval = 5 * time.Second
	FailureThreshold  = 3
	RecoveryTimeout   = 30 * time.Second
)

// peerState tracks one monitored peer's failure count and recovery
// window.
type peerState struct {
	failures  int
	failed    bool
	recoverBy time.Time
}

// HealthMonitor tracks the heartbeat outcomes its callers report for
// peers of a Manager, escalating repeated failures to a permanently-failed
// state and invoking onFail so the ring can be rebuilt. It sends no
// heartbeats itself; the caller's own timer does that and reports each
// result.
//
// now is the monitor's clock for the recovery window; NewHealthMonitor
// always sets it to time.Now.
type HealthMonitor struct {
	mu     sync.Mutex
	mgr    *Manager
	peers  map[string]*peerState
	now    func() time.Time
	onFail func(peerID string)
}

// NewHealthMonitor constructs a monitor bound to mgr. onFail, if non-nil,
// is invoked (outside the monitor's lock) when a peer is declared
// permanently failed — callers typically wire this to Manager.Depart.
func NewHealthMonitor(mgr *Manager, onFail func(peerID string)) *HealthMonitor {
	return &HealthMonitor{
		mgr:    mgr,
		peers:  make(map[string]*peerState),
		now:    time.Now,
		onFail: onFail,
	}
}

// ReportDown increments peerID's failure counter. At FailureThreshold
// the peer enters its recovery window; if that window has already
// elapsed without a ReportUp, it is declared permanently failed.
func (h *HealthMonitor) ReportDown(peerID string) {
	h.mu.Lock()
	st, ok := h.peers[peerID]
	if !ok {
		st = &peerState{}
		h.peers[peerID] = st
	}
	if st.failed {
		h.mu.Unlock()
		return
	}
	st.failures++
	var notify bool
	if st.failures >= FailureThreshold {
		if st.recoverBy.IsZero() {
			st.recoverBy = h.now().Add(RecoveryTimeout)
		} else if h.now().After(st.recoverBy) {
			st.failed = true
			notify = true
		}
	}
	h.mu.Unlock()

	if notify && h.onFail != nil {
		h.onFail(peerID)
	}
}

// ReportUp resets peerID's failure counter and clears any pending
// recovery window.
func (h *HealthMonitor) ReportUp(peerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.peers[peerID]; ok {
		st.failures = 0
		st.recoverBy = time.Time{}
	}
}

// Classify returns the cluster-wide health classification: healthy (zero
// failed), degraded (fewer than half failed), critical (half or more),
// unknown (no peers monitored yet).
func (h *HealthMonitor) Classify() Health {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.peers) == 0 {
		return HealthUnknown
	}

	failed := 0
	for _, st := range h.peers {
		if st.failed {
			failed++
		}
	}

	switch {
	case failed == 0:
		return HealthHealthy
	case failed*2 < len(h.peers):
		return HealthDegraded
	default:
		return HealthCritical
	}
}
