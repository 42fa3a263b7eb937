package analytics

import (
	"math"
	"sort"

	"github.com/emberql/emberql/pkg/store"
)

// unionFind is a union-by-rank, path-compressing disjoint-set structure,
// used by ConnectedComponents.
type unionFind struct {
	parent map[uint64]uint64
	rank   map[uint64]int
}

func newUnionFind(ids []uint64) *unionFind {
	uf := &unionFind{parent: make(map[uint64]uint64, len(ids)), rank: make(map[uint64]int, len(ids))}
	for _, id := range ids {
		uf.parent[id] = id
	}
	return uf
}

func (uf *unionFind) find(x uint64) uint64 {
	if uf.parent[x] != x {
		uf.parent[x] = uf.find(uf.parent[x])
	}
	return uf.parent[x]
}

func (uf *unionFind) union(a, b uint64) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}

// ConnectedComponents treats every edge as undirected and returns the
// components as node-id lists, sorted descending by size (ties broken by
// ascending smallest member id, for determinism).
func ConnectedComponents(s *store.Store) [][]uint64 {
	snap := newSnapshot(s)
	uf := newUnionFind(snap.nodeIDs)
	for _, id := range snap.nodeIDs {
		for _, nb := range snap.undirectedNeighbors(id) {
			uf.union(id, nb)
		}
	}

	groups := map[uint64][]uint64{}
	for _, id := range snap.nodeIDs {
		root := uf.find(id)
		groups[root] = append(groups[root], id)
	}

	out := make([][]uint64, 0, len(groups))
	for _, members := range groups {
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}

// edgeCountAmong counts undirected edges present among members of set.
func edgeCountAmong(snap *snapshot, set map[uint64]struct{}) int {
	count := 0
	for id := range set {
		for _, nb := range snap.undirectedNeighbors(id) {
			if nb <= id {
				continue
			}
			if _, ok := set[nb]; ok {
				count++
			}
		}
	}
	return count
}

// ClusteringCoefficients returns the global coefficient (3*triangles /
// connected-triples) and, per node, the local coefficient
// 2*E(N(v)) / (|N(v)|*(|N(v)|-1)).
func ClusteringCoefficients(s *store.Store) (global float64, local map[uint64]float64) {
	snap := newSnapshot(s)
	local = make(map[uint64]float64, snap.n())

	var triangles, triples float64
	for _, id := range snap.nodeIDs {
		neighbors := snap.undirectedNeighbors(id)
		k := len(neighbors)
		if k < 2 {
			local[id] = 0
			continue
		}
		neighborSet := make(map[uint64]struct{}, k)
		for _, nb := range neighbors {
			neighborSet[nb] = struct{}{}
		}
		edgesAmongNeighbors := edgeCountAmong(snap, neighborSet)
		local[id] = 2 * float64(edgesAmongNeighbors) / float64(k*(k-1))
		triples += float64(k * (k - 1) / 2)
		triangles += float64(edgesAmongNeighbors)
	}

	if triples > 0 {
		global = triangles / triples
	}
	return global, local
}

// TriangleCount returns the per-node triangle participation count and the
// graph total. Each triangle is found once from every one of its three
// vertices, so the total is sum(perNode)/3.
func TriangleCount(s *store.Store) (perNode map[uint64]int, total int) {
	snap := newSnapshot(s)
	perNode = make(map[uint64]int, snap.n())

	adjSet := make(map[uint64]map[uint64]struct{}, snap.n())
	for _, id := range snap.nodeIDs {
		neighbors := snap.undirectedNeighbors(id)
		set := make(map[uint64]struct{}, len(neighbors))
		for _, nb := range neighbors {
			set[nb] = struct{}{}
		}
		adjSet[id] = set
	}

	sum := 0
	for _, id := range snap.nodeIDs {
		neighbors := snap.undirectedNeighbors(id)
		count := 0
		for i := 0; i < len(neighbors); i++ {
			for j := i + 1; j < len(neighbors); j++ {
				if _, ok := adjSet[neighbors[i]][neighbors[j]]; ok {
					count++
				}
			}
		}
		perNode[id] = count
		sum += count
	}
	return perNode, sum / 3
}

// Density computes |E| / (|V|*(|V|-1)) treating edges as directed; 0 when
// |V| < 2.
func Density(s *store.Store) float64 {
	snap := newSnapshot(s)
	n := snap.n()
	if n < 2 {
		return 0
	}
	edges := s.Stats().TotalEdges
	return float64(edges) / float64(n*(n-1))
}

// Diameter returns the longest shortest path over the undirected view of
// the graph, considering only pairs within the same component (an
// infinite-diameter disconnected graph is reported as the max over finite
// pairs, given the disconnected-case ambiguity).
func Diameter(s *store.Store) int {
	snap := newSnapshot(s)
	maxDist := 0
	for _, src := range snap.nodeIDs {
		dist := map[uint64]int{src: 0}
		queue := []uint64{src}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for _, nb := range snap.undirectedNeighbors(v) {
				if _, seen := dist[nb]; !seen {
					dist[nb] = dist[v] + 1
					queue = append(queue, nb)
					if dist[nb] > maxDist {
						maxDist = dist[nb]
					}
				}
			}
		}
	}
	return maxDist
}

// DegreeStats summarizes the degree distribution: total (in+out) degree
// per node plus min/max/arithmetic-mean/median/sample-standard-deviation
// across the graph.
type DegreeStats struct {
	PerNode map[uint64]int
	Min     int
	Max     int
	Mean    float64
	Median  float64
	StdDev  float64
}

func DegreeDistribution(s *store.Store) DegreeStats {
	snap := newSnapshot(s)
	stats := DegreeStats{PerNode: make(map[uint64]int, snap.n())}
	if snap.n() == 0 {
		return stats
	}

	degrees := make([]int, 0, snap.n())
	first := true
	var sum int
	for _, id := range snap.nodeIDs {
		d := len(snap.outAdj[id]) + len(snap.inAdj[id])
		stats.PerNode[id] = d
		degrees = append(degrees, d)
		sum += d
		if first || d < stats.Min {
			stats.Min = d
		}
		if first || d > stats.Max {
			stats.Max = d
		}
		first = false
	}
	n := len(degrees)
	stats.Mean = float64(sum) / float64(n)

	sort.Ints(degrees)
	if n%2 == 1 {
		stats.Median = float64(degrees[n/2])
	} else {
		stats.Median = float64(degrees[n/2-1]+degrees[n/2]) / 2
	}

	if n > 1 {
		var sqDiff float64
		for _, d := range degrees {
			diff := float64(d) - stats.Mean
			sqDiff += diff * diff
		}
		stats.StdDev = math.Sqrt(sqDiff / float64(n-1))
	}

	return stats
}
