package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberql/emberql/pkg/errs"
	"github.com/emberql/emberql/pkg/store"
)

func TestCreateNodeRoundTrip(t *testing.T) {
	s := store.New()
	props := map[string]any{"name": "Alice", "role": "Engineer"}

	id, err := s.CreateNode(props)
	require.NoError(t, err)
	assert.Positive(t, uint64(id))

	got, err := s.GetNode(id)
	require.NoError(t, err)
	assert.Equal(t, props, got.Properties)
}

func TestCreateEdgeRequiresLiveEndpoints(t *testing.T) {
	s := store.New()
	a, _ := s.CreateNode(nil)

	_, err := s.CreateEdge(a, 999999, "x", nil)
	assert.True(t, errs.Is(err, errs.CodeNodeNotFound))
}

func TestCreateEdgeIndexesLabel(t *testing.T) {
	s := store.New()
	a, _ := s.CreateNode(nil)
	b, _ := s.CreateNode(nil)

	eid, err := s.CreateEdge(a, b, "reports_to", nil)
	require.NoError(t, err)

	edges := s.FindEdgesByLabel("reports_to")
	assert.Contains(t, edges, eid)
}

func TestFindNodesByProperty(t *testing.T) {
	s := store.New()
	a, _ := s.CreateNode(map[string]any{"role": "Engineer"})
	b, _ := s.CreateNode(map[string]any{"role": "Manager"})
	c, _ := s.CreateNode(map[string]any{"role": "Engineer"})

	got := s.FindNodesByProperty("role", "Engineer")
	gotU := make([]uint64, len(got))
	for i, id := range got {
		gotU[i] = uint64(id)
	}
	assert.ElementsMatch(t, []uint64{uint64(a), uint64(c)}, gotU)
	assert.NotContains(t, gotU, uint64(b))
}

func TestDeleteNodeCascadesEdges(t *testing.T) {
	s := store.New()
	a, _ := s.CreateNode(nil)
	b, _ := s.CreateNode(nil)
	eid, _ := s.CreateEdge(a, b, "knows", nil)

	require.NoError(t, s.DeleteNode(a))

	_, err := s.GetEdge(eid)
	assert.True(t, errs.Is(err, errs.CodeEdgeNotFound))

	// idempotent
	require.NoError(t, s.DeleteNode(a))
}

func TestStatsTracksLiveCounts(t *testing.T) {
	s := store.New()
	a, _ := s.CreateNode(nil)
	s.CreateNode(nil)
	s.DeleteNode(a)

	stats := s.Stats()
	assert.Equal(t, 1, stats.TotalNodes)
}

func TestIdentitiesStrictlyIncreasing(t *testing.T) {
	s := store.New()
	a, _ := s.CreateNode(nil)
	b, _ := s.CreateNode(nil)
	assert.Less(t, uint64(a), uint64(b))
}

func TestInvalidPropertiesRejected(t *testing.T) {
	s := store.New()

	_, err := s.CreateNode(map[string]any{"bad-key": 1})
	assert.True(t, errs.Is(err, errs.CodeInvalidProperties))

	_, err = s.CreateNode(map[string]any{"name": nil})
	assert.True(t, errs.Is(err, errs.CodeInvalidProperties))
}
