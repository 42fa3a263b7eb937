package analytics

import (
	"sort"

	"github.com/emberql/emberql/pkg/store"
)

// louvainGraph is a weighted, undirected multigraph used internally by
// Louvain: the finest level is built directly from the store (weight 1
// per undirected edge); each contraction phase produces a coarser
// louvainGraph whose self-loop weights record intra-community edges.
type louvainGraph struct {
	nodes   []uint64
	weight  map[uint64]map[uint64]float64 // symmetric; weight[a][a] = self-loop
	degree  map[uint64]float64            // sum of incident weights, including 2x self-loop
	totalW  float64                       // sum of all edge weights (2m)
}

func louvainFromSnapshot(snap *snapshot) *louvainGraph {
	g := &louvainGraph{
		nodes:  append([]uint64{}, snap.nodeIDs...),
		weight: make(map[uint64]map[uint64]float64),
		degree: make(map[uint64]float64),
	}
	for _, id := range g.nodes {
		g.weight[id] = make(map[uint64]float64)
	}
	for _, id := range g.nodes {
		for _, nb := range snap.undirectedNeighbors(id) {
			if nb <= id {
				continue
			}
			g.addEdge(id, nb, 1)
		}
	}
	return g
}

func (g *louvainGraph) addEdge(a, b uint64, w float64) {
	if a == b {
		g.weight[a][a] += w
		g.degree[a] += 2 * w
		g.totalW += 2 * w
		return
	}
	g.weight[a][b] += w
	g.weight[b][a] += w
	g.degree[a] += w
	g.degree[b] += w
	g.totalW += 2 * w
}

// louvainPhase1 runs greedy local moving: each node joins the neighboring
// community yielding the greatest positive modularity gain, iterating
// until a full pass produces no move. Returns node -> community id.
func louvainPhase1(g *louvainGraph) map[uint64]uint64 {
	community := make(map[uint64]uint64, len(g.nodes))
	commWeight := make(map[uint64]float64, len(g.nodes)) // sum of degrees in community
	for _, id := range g.nodes {
		community[id] = id
		commWeight[id] = g.degree[id]
	}

	if g.totalW == 0 {
		return community
	}

	m2 := g.totalW
	changed := true
	for changed {
		changed = false
		ordered := append([]uint64{}, g.nodes...)
		sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

		for _, node := range ordered {
			cur := community[node]
			commWeight[cur] -= g.degree[node]

			neighborComm := map[uint64]float64{}
			for nb, w := range g.weight[node] {
				if nb == node {
					continue
				}
				neighborComm[community[nb]] += w
			}

			bestComm := cur
			bestGain := neighborComm[cur] - commWeight[cur]*g.degree[node]/m2

			candidates := make([]uint64, 0, len(neighborComm))
			for c := range neighborComm {
				candidates = append(candidates, c)
			}
			sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

			for _, c := range candidates {
				gain := neighborComm[c] - commWeight[c]*g.degree[node]/m2
				if gain > bestGain {
					bestGain = gain
					bestComm = c
				}
			}

			community[node] = bestComm
			commWeight[bestComm] += g.degree[node]
			if bestComm != cur {
				changed = true
			}
		}
	}

	return community
}

// contract builds the next-level graph by collapsing each community to a
// single super-node (named by its lowest member id), carrying inter- and
// intra-community weights as edges/self-loops.
func contract(g *louvainGraph, community map[uint64]uint64) (*louvainGraph, map[uint64]uint64) {
	repOf := map[uint64]uint64{}
	for _, id := range g.nodes {
		c := community[id]
		if rep, ok := repOf[c]; !ok || id < rep {
			repOf[c] = id
		}
	}

	next := &louvainGraph{weight: make(map[uint64]map[uint64]float64), degree: make(map[uint64]float64)}
	seen := map[uint64]struct{}{}
	for _, id := range g.nodes {
		rep := repOf[community[id]]
		if _, ok := seen[rep]; !ok {
			seen[rep] = struct{}{}
			next.nodes = append(next.nodes, rep)
			next.weight[rep] = make(map[uint64]float64)
		}
	}
	sort.Slice(next.nodes, func(i, j int) bool { return next.nodes[i] < next.nodes[j] })

	for a, neighbors := range g.weight {
		ra := repOf[community[a]]
		for b, w := range neighbors {
			rb := repOf[community[b]]
			if a == b {
				// self-loop entries appear once per node, not pair-wise.
				next.addEdge(ra, ra, w)
				continue
			}
			// every other (a,b) pair is visited twice (once as a->b, once
			// as b->a) because g.weight is kept symmetric, so halve here.
			if ra == rb {
				next.addEdge(ra, ra, w/2)
			} else {
				next.weight[ra][rb] += w / 2
			}
		}
	}
	// Rebuild degree/totalW cleanly from the accumulated weight map to
	// avoid double-counting from the symmetric iteration above.
	next.degree = make(map[uint64]float64)
	next.totalW = 0
	for a, neighbors := range next.weight {
		for b, w := range neighbors {
			if a == b {
				next.degree[a] += 2 * w
				next.totalW += 2 * w
			} else {
				next.degree[a] += w
				next.totalW += w
			}
		}
	}

	// nodeToRep maps every node of g to its rep in this contracted graph,
	// via the community assignment passed in.
	nodeToRep := map[uint64]uint64{}
	for _, id := range g.nodes {
		nodeToRep[id] = repOf[community[id]]
	}
	return next, nodeToRep
}

// Louvain detects communities via the standard two-phase algorithm:
// repeat local-moving (phase 1) then contraction (phase 2) until a pass
// of phase 1 over the contracted graph produces no moves. Ties within
// phase 1 break toward the lowest community id, and ties in naming a
// contracted super-node break toward its lowest member id, so the result
// is deterministic for a given adjacency iteration order.
func Louvain(s *store.Store) map[uint64]uint64 {
	snap := newSnapshot(s)
	if snap.n() == 0 {
		return map[uint64]uint64{}
	}

	g := louvainFromSnapshot(snap)
	finalAssignment := make(map[uint64]uint64, snap.n())
	for _, id := range snap.nodeIDs {
		finalAssignment[id] = id
	}

	for {
		community := louvainPhase1(g)

		moved := false
		for _, id := range g.nodes {
			if community[id] != id {
				moved = true
				break
			}
		}

		if !moved || len(g.nodes) <= 1 {
			// Propagate this level's assignment back to original node ids.
			for orig, cur := range finalAssignment {
				finalAssignment[orig] = community[cur]
			}
			break
		}

		// The contracted graph names each super-node by its lowest member
		// id, so original ids follow nodeToRep into the next level.
		next, nodeToRep := contract(g, community)
		for orig, cur := range finalAssignment {
			finalAssignment[orig] = nodeToRep[cur]
		}
		if len(next.nodes) == len(g.nodes) {
			break
		}
		g = next
	}

	return finalAssignment
}

// KCore performs k-core decomposition: repeatedly remove the
// lowest-degree remaining node, recording its degree at removal time as
// its core number. Each round finds that node by a linear scan over the
// remaining nodes, so the cost is quadratic in the node count; no bucket
// queue is used.
func KCore(s *store.Store) map[uint64]int {
	snap := newSnapshot(s)
	core := make(map[uint64]int, snap.n())
	degree := make(map[uint64]int, snap.n())
	neighbors := make(map[uint64]map[uint64]struct{}, snap.n())

	for _, id := range snap.nodeIDs {
		nbs := snap.undirectedNeighbors(id)
		set := make(map[uint64]struct{}, len(nbs))
		for _, nb := range nbs {
			set[nb] = struct{}{}
		}
		neighbors[id] = set
		degree[id] = len(nbs)
	}

	remaining := make(map[uint64]struct{}, snap.n())
	for _, id := range snap.nodeIDs {
		remaining[id] = struct{}{}
	}

	maxSoFar := 0
	for len(remaining) > 0 {
		// Find lowest-degree remaining node (ties: lowest id) — a linear
		// scan is adequate at this graph scale; comparable scoring helpers
		// use a similar "good enough" approach over a bucket-sortable set.
		var pick uint64
		found := false
		minDeg := 0
		for id := range remaining {
			if !found || degree[id] < minDeg || (degree[id] == minDeg && id < pick) {
				pick = id
				minDeg = degree[id]
				found = true
			}
		}

		if minDeg > maxSoFar {
			maxSoFar = minDeg
		}
		core[pick] = maxSoFar

		delete(remaining, pick)
		for nb := range neighbors[pick] {
			if _, ok := remaining[nb]; ok {
				degree[nb]--
			}
		}
	}

	return core
}
