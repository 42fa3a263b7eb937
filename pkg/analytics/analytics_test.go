package analytics_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberql/emberql/pkg/analytics"
	"github.com/emberql/emberql/pkg/store"
)

// TestTriangleClustering covers scenario S2: nodes 1,2,3 with edges
// 1->2, 2->3, 3->1 (treated as undirected for clustering). Expected:
// global clustering coefficient 1.0, every node's local coefficient 1.0,
// one connected component containing all three nodes.
func TestTriangleClustering(t *testing.T) {
	s := store.New()
	a, _ := s.CreateNode(nil)
	b, _ := s.CreateNode(nil)
	c, _ := s.CreateNode(nil)
	_, err := s.CreateEdge(a, b, "x", nil)
	require.NoError(t, err)
	_, err = s.CreateEdge(b, c, "x", nil)
	require.NoError(t, err)
	_, err = s.CreateEdge(c, a, "x", nil)
	require.NoError(t, err)

	global, local := analytics.ClusteringCoefficients(s)
	assert.InDelta(t, 1.0, global, 1e-9)
	for _, id := range []uint64{uint64(a), uint64(b), uint64(c)} {
		assert.InDelta(t, 1.0, local[id], 1e-9)
	}

	components := analytics.ConnectedComponents(s)
	require.Len(t, components, 1)
	assert.ElementsMatch(t, []uint64{uint64(a), uint64(b), uint64(c)}, components[0])

	perNode, total := analytics.TriangleCount(s)
	assert.Equal(t, 1, total)
	for _, id := range []uint64{uint64(a), uint64(b), uint64(c)} {
		assert.Equal(t, 1, perNode[id])
	}
}

// TestPageRankStar covers scenario S3: center C with leaves L1..L4, each
// Li->C. After PageRank with defaults, rank(C) exceeds every rank(Li),
// and all leaf ranks are equal within tolerance.
func TestPageRankStar(t *testing.T) {
	s := store.New()
	center, _ := s.CreateNode(nil)
	leaves := make([]uint64, 4)
	for i := range leaves {
		l, _ := s.CreateNode(nil)
		leaves[i] = uint64(l)
		_, err := s.CreateEdge(l, center, "points_to", nil)
		require.NoError(t, err)
	}

	opts := analytics.DefaultPageRankOptions()
	ranks := analytics.PageRank(s, opts)

	centerRank := ranks[uint64(center)]
	for _, l := range leaves {
		assert.Greater(t, centerRank, ranks[l])
	}
	for i := 1; i < len(leaves); i++ {
		assert.InDelta(t, ranks[leaves[0]], ranks[leaves[i]], opts.Tol*10)
	}

	var sum float64
	for _, r := range ranks {
		sum += r
	}
	assert.InDelta(t, 1.0, sum, opts.Tol*10)
}

func TestDensityAndDegreeDistribution(t *testing.T) {
	s := store.New()
	a, _ := s.CreateNode(nil)
	b, _ := s.CreateNode(nil)
	_, err := s.CreateEdge(a, b, "x", nil)
	require.NoError(t, err)

	density := analytics.Density(s)
	assert.InDelta(t, 1.0/2.0, density, 1e-9)

	dist := analytics.DegreeDistribution(s)
	assert.Equal(t, 1, dist.PerNode[uint64(a)])
	assert.Equal(t, 1, dist.PerNode[uint64(b)])
	assert.Equal(t, 1, dist.Min)
	assert.Equal(t, 1, dist.Max)
	assert.InDelta(t, 1.0, dist.Median, 1e-9)
	assert.InDelta(t, 0.0, dist.StdDev, 1e-9)
}

func TestDegreeDistributionMedianAndStdDev(t *testing.T) {
	s := store.New()
	a, _ := s.CreateNode(nil)
	b, _ := s.CreateNode(nil)
	c, _ := s.CreateNode(nil)
	d, _ := s.CreateNode(nil)
	// a: degree 3 (hub), b/c/d: degree 1 each.
	_, err := s.CreateEdge(a, b, "x", nil)
	require.NoError(t, err)
	_, err = s.CreateEdge(a, c, "x", nil)
	require.NoError(t, err)
	_, err = s.CreateEdge(a, d, "x", nil)
	require.NoError(t, err)

	dist := analytics.DegreeDistribution(s)
	// Degrees sorted: [1, 1, 1, 3] -> median of middle two = 1.
	assert.InDelta(t, 1.0, dist.Median, 1e-9)

	// mean = 6/4 = 1.5; sample variance = ((1-1.5)^2*3 + (3-1.5)^2) / 3 = 1.0
	assert.InDelta(t, 1.5, dist.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(1.0), dist.StdDev, 1e-9)
}

func TestKCoreOnTriangle(t *testing.T) {
	s := store.New()
	a, _ := s.CreateNode(nil)
	b, _ := s.CreateNode(nil)
	c, _ := s.CreateNode(nil)
	s.CreateEdge(a, b, "x", nil)
	s.CreateEdge(b, c, "x", nil)
	s.CreateEdge(c, a, "x", nil)

	core := analytics.KCore(s)
	for _, id := range []uint64{uint64(a), uint64(b), uint64(c)} {
		assert.Equal(t, 2, core[id])
	}
}

func TestLouvainSeparatesDisjointTriangles(t *testing.T) {
	s := store.New()
	a, _ := s.CreateNode(nil)
	b, _ := s.CreateNode(nil)
	c, _ := s.CreateNode(nil)
	s.CreateEdge(a, b, "x", nil)
	s.CreateEdge(b, c, "x", nil)
	s.CreateEdge(c, a, "x", nil)

	d, _ := s.CreateNode(nil)
	e, _ := s.CreateNode(nil)
	f, _ := s.CreateNode(nil)
	s.CreateEdge(d, e, "x", nil)
	s.CreateEdge(e, f, "x", nil)
	s.CreateEdge(f, d, "x", nil)

	communities := analytics.Louvain(s)
	assert.Equal(t, communities[uint64(a)], communities[uint64(b)])
	assert.Equal(t, communities[uint64(b)], communities[uint64(c)])
	assert.Equal(t, communities[uint64(d)], communities[uint64(e)])
	assert.Equal(t, communities[uint64(e)], communities[uint64(f)])
	assert.NotEqual(t, communities[uint64(a)], communities[uint64(d)])
}

func TestBetweennessAndClosenessOnPath(t *testing.T) {
	s := store.New()
	a, _ := s.CreateNode(nil)
	b, _ := s.CreateNode(nil)
	c, _ := s.CreateNode(nil)
	s.CreateEdge(a, b, "x", nil)
	s.CreateEdge(b, c, "x", nil)

	bc := analytics.Betweenness(s)
	assert.Greater(t, bc[uint64(b)], bc[uint64(a)])
	assert.Greater(t, bc[uint64(b)], bc[uint64(c)])

	closeness := analytics.Closeness(s)
	assert.Greater(t, closeness[uint64(b)], 0.0)
}

func TestDiameterOnPath(t *testing.T) {
	s := store.New()
	a, _ := s.CreateNode(nil)
	b, _ := s.CreateNode(nil)
	c, _ := s.CreateNode(nil)
	s.CreateEdge(a, b, "x", nil)
	s.CreateEdge(b, c, "x", nil)

	assert.Equal(t, 2, analytics.Diameter(s))
}

func TestEigenvectorCentralityFavorsHub(t *testing.T) {
	s := store.New()
	hub, _ := s.CreateNode(nil)
	for i := 0; i < 3; i++ {
		leaf, _ := s.CreateNode(nil)
		s.CreateEdge(leaf, hub, "x", nil)
	}

	ev := analytics.EigenvectorCentrality(s, 100, 1e-6)
	for id, score := range ev {
		if id != uint64(hub) {
			assert.Less(t, score, ev[uint64(hub)])
		}
	}
	assert.False(t, math.IsNaN(ev[uint64(hub)]))
}
