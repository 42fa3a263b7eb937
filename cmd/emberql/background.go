package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/emberql/emberql/pkg/cluster"
	"github.com/emberql/emberql/pkg/lifecycle"
	"github.com/emberql/emberql/pkg/placement"
	"github.com/emberql/emberql/pkg/scheduler"
)

// Background task cadences. Heartbeat reuses the cluster package's own
// constant; the rest are independent of any health-monitor threshold.
const (
	heartbeatInterval        = cluster.HeartbeatInterval
	lifecycleCleanupInterval = 30 * time.Second
	consistencyCheckInterval = 15 * time.Second
	tierMonitorInterval      = 20 * time.Second
	migrationDrainInterval   = 45 * time.Second
)

// backgroundTasks builds the scheduler.Task set a running node keeps
// ticking for as long as it's up: member heartbeats, lifecycle TTL
// cleanup, replication consistency checks, and placement tier
// monitoring/migration.
func (a *app) backgroundTasks() []scheduler.Task {
	return []scheduler.Task{
		{Name: "heartbeat", Interval: heartbeatInterval, Run: a.runHeartbeat},
		{Name: "lifecycle_cleanup", Interval: lifecycleCleanupInterval, Run: a.runLifecycleCleanup},
		{Name: "consistency_check", Interval: consistencyCheckInterval, Run: a.runConsistencyCheck},
		{Name: "tier_monitor", Interval: tierMonitorInterval, Run: a.runTierMonitor},
		{Name: "migration_drain", Interval: migrationDrainInterval, Run: a.runMigrationDrain},
	}
}

// runHeartbeat pings every known peer and lets sendRPC feed the result
// into the health monitor; failures accumulate there rather than here.
func (a *app) runHeartbeat(ctx context.Context) error {
	local := a.cluster.Local()
	for _, peer := range a.cluster.Members() {
		if peer == local {
			continue
		}
		a.sendRPC(ctx, peer, "health.ping", nil)
	}
	return nil
}

// runLifecycleCleanup drops expired lifecycle records.
func (a *app) runLifecycleCleanup(ctx context.Context) error {
	a.lifecycle.CleanupExpired()
	return nil
}

// runConsistencyCheck sweeps every tracked replica set, resolving any
// that have diverged across replicas.
func (a *app) runConsistencyCheck(ctx context.Context) error {
	for _, key := range a.replication.Keys() {
		rs, ok := a.replication.Get(key)
		if !ok {
			continue
		}
		if inconsistent, _ := rs.ConsistencyCheck(); inconsistent {
			rs.Resolve()
		}
	}
	return nil
}

// runTierMonitor scores every lifecycle record against the tier
// profiles and reports records whose best-fit tier has drifted from
// the one their policy assigned them.
func (a *app) runTierMonitor(ctx context.Context) error {
	profiles := placement.DefaultProfiles()
	for _, key := range a.lifecycle.Keys() {
		rec, ok := a.lifecycle.Get(key)
		if !ok {
			continue
		}
		best := placement.BestTier(recordFor(rec), profiles)
		if wantTier := a.lifecycle.PolicyFor(rec.Tag).Tier; wantTier != "" && string(best) != wantTier {
			// Drift is only reported here; migration_drain is the task
			// that actually moves data.
			fmt.Printf("tier drift for %s: policy=%s best-fit=%s\n", key, wantTier, best)
		}
	}
	return nil
}

// runMigrationDrain migrates the oldest-accessed hot-tier keys down to
// warm (and, under high pressure, warm down to cold) following the same
// plan-for-pressure proportions placement.PlanForPressure defines.
func (a *app) runMigrationDrain(ctx context.Context) error {
	var hotKeys, warmKeys []lifecycle.Record
	for _, key := range a.lifecycle.Keys() {
		rec, ok := a.lifecycle.Get(key)
		if !ok {
			continue
		}
		switch a.lifecycle.PolicyFor(rec.Tag).Tier {
		case "hot":
			hotKeys = append(hotKeys, rec)
		case "warm":
			warmKeys = append(warmKeys, rec)
		}
	}

	severity := pressureSeverity(len(hotKeys))
	plan := placement.PlanForPressure(severity, oldestFirst(hotKeys), oldestFirst(warmKeys))

	for _, key := range plan.HotToWarm {
		if err := placement.Migrate(a.hot, a.warm, key); err != nil {
			fmt.Printf("migration_drain: hot->warm %s: %v\n", key, err)
		}
	}
	for _, key := range plan.WarmToCold {
		if err := placement.Migrate(a.warm, a.cold, key); err != nil {
			fmt.Printf("migration_drain: warm->cold %s: %v\n", key, err)
		}
	}
	return nil
}

func recordFor(rec lifecycle.Record) placement.Record {
	sizeMB := 1.0
	if v, ok := rec.Metadata["size_mb"].(float64); ok {
		sizeMB = v
	}
	accessFreq := float64(rec.AccessCount)

	latencyReq, durabilityReq := 0, 0
	switch rec.Tag {
	case lifecycle.TagSession, lifecycle.TagComputational:
		latencyReq, durabilityReq = 1, 1
	case lifecycle.TagPersistent:
		latencyReq, durabilityReq = 2, 2
	}

	return placement.Record{
		Key:                   rec.Key,
		SizeMB:                sizeMB,
		AccessFreq:            accessFreq,
		LatencyRequirement:    latencyReq,
		DurabilityRequirement: durabilityReq,
	}
}

func pressureSeverity(hotCount int) placement.PressureSeverity {
	switch {
	case hotCount > 50:
		return placement.PressureHigh
	case hotCount > 20:
		return placement.PressureMedium
	default:
		return placement.PressureLow
	}
}

func oldestFirst(records []lifecycle.Record) []string {
	sorted := append([]lifecycle.Record{}, records...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LastAccessed.Before(sorted[j].LastAccessed)
	})
	keys := make([]string, len(sorted))
	for i, r := range sorted {
		keys[i] = r.Key
	}
	return keys
}
