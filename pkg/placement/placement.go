// Package placement implements the tier-scoring and migration engine of
// weighted component scoring drives which of hot/warm/cold
// a record belongs in, and a simple read->write->verify->delete protocol
// moves it there.
//
// The scoring weights and the MinMax-style component normalization follow
// the same shape as a normalize-then-weight scoring function (Normalize, MinMax),
// generalized from "score a vector" to "score a record against a tier".
package placement

import (
	"github.com/emberql/emberql/pkg/errs"
)

// Tier is one of the three storage tiers the placement engine
// targets.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// tierProfile describes a tier's latency/durability class and
// utilization, used by the scoring functions below.
type tierProfile struct {
	latencyRank    int // lower is faster: hot=0, warm=1, cold=2
	durabilityRank int // higher is more durable: hot=0, warm=1, cold=2
	used, capacity float64
	memoryCostPerMB float64
	accessCost      float64
	maintenanceCost float64
}

// DefaultProfiles returns the built-in tier characteristics SPEC_FULL.md
// assumes absent an explicit cluster configuration.
func DefaultProfiles() map[Tier]tierProfile {
	return map[Tier]tierProfile{
		TierHot:  {latencyRank: 0, durabilityRank: 0, used: 40, capacity: 100, memoryCostPerMB: 0.50, accessCost: 0.05, maintenanceCost: 2},
		TierWarm: {latencyRank: 1, durabilityRank: 1, used: 50, capacity: 200, memoryCostPerMB: 0.10, accessCost: 0.15, maintenanceCost: 1},
		TierCold: {latencyRank: 2, durabilityRank: 2, used: 30, capacity: 1000, memoryCostPerMB: 0.01, accessCost: 0.40, maintenanceCost: 0.5},
	}
}

// Record is what the scoring function and migration protocol operate on.
type Record struct {
	Key               string
	SizeMB            float64
	AccessFreq        float64 // accesses per minute
	LatencyRequirement int     // 0=hot-class, 1=warm-class, 2=cold-class, lower is stricter
	DurabilityRequirement int  // 0=low, 1=medium, 2=high, higher is stricter
}

// Scoring weights for tier selection.
const (
	weightPerformance = 0.3
	weightCost        = 0.3
	weightDurability  = 0.2
	weightUtilization = 0.2
)

// ScoreTier computes the weighted four-component score for placing rec
// in tier t.
func ScoreTier(rec Record, t Tier, profiles map[Tier]tierProfile) float64 {
	p := profiles[t]

	performance := performanceScore(p.latencyRank, rec.LatencyRequirement)
	cost := costScore(rec, p)
	durability := durabilityScore(p.durabilityRank, rec.DurabilityRequirement)
	utilization := utilizationPenalty(p)

	return weightPerformance*performance + weightCost*cost + weightDurability*durability + weightUtilization*utilization
}

// performanceScore rewards a tier whose latency class is at least as
// fast as required; a slower tier is penalized proportionally to how far
// it misses the requirement.
func performanceScore(tierLatencyRank, requirement int) float64 {
	if tierLatencyRank <= requirement {
		return 100
	}
	gap := tierLatencyRank - requirement
	return 100 - float64(gap)*40
}

// costScore is 100 - (size*memCost + freq*accessCost + maintenance),
// floored at 0.
func costScore(rec Record, p tierProfile) float64 {
	raw := 100 - (rec.SizeMB*p.memoryCostPerMB + rec.AccessFreq*p.accessCost + p.maintenanceCost)
	if raw < 0 {
		return 0
	}
	return raw
}

func durabilityScore(tierDurabilityRank, requirement int) float64 {
	if tierDurabilityRank >= requirement {
		return 100
	}
	gap := requirement - tierDurabilityRank
	return 100 - float64(gap)*40
}

// utilizationPenalty is 100 - 50*(used/capacity).
func utilizationPenalty(p tierProfile) float64 {
	if p.capacity == 0 {
		return 100
	}
	return 100 - 50*(p.used/p.capacity)
}

// BestTier returns the highest-scoring tier for rec, breaking ties in
// favor of the tier listed first in tierOrder (hot, warm, cold).
func BestTier(rec Record, profiles map[Tier]tierProfile) Tier {
	tierOrder := []Tier{TierHot, TierWarm, TierCold}
	best := tierOrder[0]
	bestScore := ScoreTier(rec, best, profiles)
	for _, t := range tierOrder[1:] {
		score := ScoreTier(rec, t, profiles)
		if score > bestScore {
			bestScore = score
			best = t
		}
	}
	return best
}

// Store is the minimal per-tier storage contract the migration protocol
// needs: read, write, delete. Concrete tiers (in-memory hot/warm, a
// badger-backed cold store) implement it.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// Migrate implements the read -> write -> verify -> delete protocol: if
// the source delete fails (tier unreachable), the error is returned but
// the write already succeeded, so the copy is at-least-once and a retry
// is safe (duplicate entries on either side are tolerated until the next
// consistency pass reconciles them).
func Migrate(from, to Store, key string) error {
	value, ok, err := from.Get(key)
	if err != nil {
		return errs.Wrap(errs.CodeConnectionFailed, err)
	}
	if !ok {
		return errs.New(errs.CodeNodeNotFound, "key %q not found in source tier", key)
	}

	if err := to.Put(key, value); err != nil {
		return errs.Wrap(errs.CodeConnectionFailed, err)
	}

	verified, ok, err := to.Get(key)
	if err != nil || !ok || string(verified) != string(value) {
		return errs.New(errs.CodeConstraintViolation, "migration verify failed for key %q", key)
	}

	if err := from.Delete(key); err != nil {
		return errs.WithRecovery(errs.Wrap(errs.CodeConnectionFailed, err), "retry delete on source; write already committed")
	}
	return nil
}

// PressureSeverity is the memory-pressure signal placement reacts to.
type PressureSeverity string

const (
	PressureLow    PressureSeverity = "low"
	PressureMedium PressureSeverity = "medium"
	PressureHigh   PressureSeverity = "high"
)

// MigrationPlan names which keys should move and in which direction, in
// response to a pressure signal.
type MigrationPlan struct {
	HotToWarm []string
	WarmToCold []string
}

// PlanForPressure selects, by age (oldest first), the fraction of hot
// (and, for high severity, warm) items to migrate down a tier.
// hotItemsByAge/warmItemsByAge are assumed oldest-first.
func PlanForPressure(severity PressureSeverity, hotItemsByAge, warmItemsByAge []string) MigrationPlan {
	var hotFraction, warmFraction float64
	switch severity {
	case PressureLow:
		hotFraction = 0.10
	case PressureMedium:
		hotFraction = 0.25
	case PressureHigh:
		hotFraction = 0.50
		warmFraction = 0.30
	}

	plan := MigrationPlan{
		HotToWarm:  takeFraction(hotItemsByAge, hotFraction),
		WarmToCold: takeFraction(warmItemsByAge, warmFraction),
	}
	return plan
}

func takeFraction(items []string, frac float64) []string {
	if frac <= 0 || len(items) == 0 {
		return nil
	}
	n := int(float64(len(items))*frac + 0.5)
	if n > len(items) {
		n = len(items)
	}
	return append([]string{}, items[:n]...)
}
