package traversal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberql/emberql/pkg/graph"
	"github.com/emberql/emberql/pkg/store"
	"github.com/emberql/emberql/pkg/traversal"
)

func buildSocialNetwork(t *testing.T) (*store.Store, map[string]graph.NodeID) {
	t.Helper()
	s := store.New()
	ids := map[string]graph.NodeID{}

	a, _ := s.CreateNode(map[string]any{"name": "Alice", "role": "Engineer"})
	b, _ := s.CreateNode(map[string]any{"name": "Bob", "role": "Manager"})
	c, _ := s.CreateNode(map[string]any{"name": "Carol", "role": "Engineer"})
	d, _ := s.CreateNode(map[string]any{"name": "David", "role": "Director"})
	ids["A"], ids["B"], ids["C"], ids["D"] = a, b, c, d

	_, err := s.CreateEdge(a, b, "reports_to", nil)
	require.NoError(t, err)
	_, err = s.CreateEdge(c, b, "reports_to", nil)
	require.NoError(t, err)
	_, err = s.CreateEdge(b, d, "reports_to", nil)
	require.NoError(t, err)
	_, err = s.CreateEdge(a, c, "collaborates", nil)
	require.NoError(t, err)

	return s, ids
}

func TestScenarioS1(t *testing.T) {
	s, ids := buildSocialNetwork(t)

	engineers := s.FindNodesByProperty("role", "Engineer")
	assert.ElementsMatch(t, []graph.NodeID{ids["A"], ids["C"]}, engineers)

	reportsTo := s.FindEdgesByLabel("reports_to")
	assert.Len(t, reportsTo, 3)

	reached, err := traversal.Traverse(s, ids["D"], traversal.In, 2)
	require.NoError(t, err)
	assert.Equal(t, map[graph.NodeID]struct{}{ids["A"]: {}, ids["B"]: {}, ids["C"]: {}}, reached)

	path, err := traversal.FindPath(s, ids["A"], ids["D"], 5)
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeID{ids["A"], ids["B"], ids["D"]}, path)
}

func TestTraverseZeroDepthIsEmpty(t *testing.T) {
	s, ids := buildSocialNetwork(t)
	reached, err := traversal.Traverse(s, ids["A"], traversal.Out, 0)
	require.NoError(t, err)
	assert.Empty(t, reached)
}

func TestTraverseMonotonic(t *testing.T) {
	s, ids := buildSocialNetwork(t)
	r1, _ := traversal.Traverse(s, ids["A"], traversal.Out, 1)
	r2, _ := traversal.Traverse(s, ids["A"], traversal.Out, 2)
	for id := range r1 {
		_, ok := r2[id]
		assert.True(t, ok)
	}
}

func TestFindPathSameNode(t *testing.T) {
	s, ids := buildSocialNetwork(t)
	path, err := traversal.FindPath(s, ids["A"], ids["A"], 5)
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeID{ids["A"]}, path)
}

func TestFindPathNotFound(t *testing.T) {
	s := store.New()
	a, _ := s.CreateNode(nil)
	b, _ := s.CreateNode(nil)
	_, err := traversal.FindPath(s, a, b, 5)
	assert.Error(t, err)
}
