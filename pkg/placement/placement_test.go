package placement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberql/emberql/pkg/placement"
)

func TestBestTierFavorsHotForLowLatencyRequirement(t *testing.T) {
	profiles := placement.DefaultProfiles()
	rec := placement.Record{Key: "k", SizeMB: 1, AccessFreq: 10, LatencyRequirement: 0, DurabilityRequirement: 0}

	tier := placement.BestTier(rec, profiles)
	assert.Equal(t, placement.TierHot, tier)
}

func TestBestTierFavorsColdForBulkDurableData(t *testing.T) {
	profiles := placement.DefaultProfiles()
	rec := placement.Record{Key: "k", SizeMB: 5000, AccessFreq: 0.01, LatencyRequirement: 2, DurabilityRequirement: 2}

	tier := placement.BestTier(rec, profiles)
	assert.Equal(t, placement.TierCold, tier)
}

func TestMigrateMovesValueBetweenTiers(t *testing.T) {
	hot := placement.NewMemoryTier()
	warm := placement.NewMemoryTier()
	require.NoError(t, hot.Put("k", []byte("payload")))

	err := placement.Migrate(hot, warm, "k")
	require.NoError(t, err)

	_, okHot, _ := hot.Get("k")
	assert.False(t, okHot)

	v, okWarm, _ := warm.Get("k")
	require.True(t, okWarm)
	assert.Equal(t, "payload", string(v))
}

func TestMigrateMissingKeyFails(t *testing.T) {
	hot := placement.NewMemoryTier()
	warm := placement.NewMemoryTier()
	err := placement.Migrate(hot, warm, "missing")
	assert.Error(t, err)
}

func TestPlanForPressureScalesWithSeverity(t *testing.T) {
	hotItems := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}

	low := placement.PlanForPressure(placement.PressureLow, hotItems, nil)
	assert.Len(t, low.HotToWarm, 1)

	medium := placement.PlanForPressure(placement.PressureMedium, hotItems, nil)
	assert.Len(t, medium.HotToWarm, 3)

	high := placement.PlanForPressure(placement.PressureHigh, hotItems, hotItems)
	assert.Len(t, high.HotToWarm, 5)
	assert.Len(t, high.WarmToCold, 3)
}
