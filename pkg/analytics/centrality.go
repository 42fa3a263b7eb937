package analytics

import (
	"math"

	"github.com/emberql/emberql/pkg/store"
)

// PageRankOptions carries the power-iteration parameters analytics
// defines defaults for.
type PageRankOptions struct {
	Damping  float64
	MaxIter  int
	Tol      float64
}

// DefaultPageRankOptions returns the spec-mandated defaults: damping 0.85,
// max_iter 100, tol 1e-4.
func DefaultPageRankOptions() PageRankOptions {
	return PageRankOptions{Damping: 0.85, MaxIter: 100, Tol: 1e-4}
}

// PageRank runs power iteration to convergence (or MaxIter, whichever
// comes first), redistributing dangling mass uniformly across every node
// each round. The returned map's values sum to 1 within opts.Tol.
func PageRank(s *store.Store, opts PageRankOptions) map[uint64]float64 {
	snap := newSnapshot(s)
	n := snap.n()
	if n == 0 {
		return map[uint64]float64{}
	}

	rank := make(map[uint64]float64, n)
	for _, id := range snap.nodeIDs {
		rank[id] = 1.0 / float64(n)
	}

	outDegree := make(map[uint64]int, n)
	for _, id := range snap.nodeIDs {
		outDegree[id] = len(snap.outAdj[id])
	}

	for iter := 0; iter < opts.MaxIter; iter++ {
		var danglingMass float64
		for _, id := range snap.nodeIDs {
			if outDegree[id] == 0 {
				danglingMass += rank[id]
			}
		}

		next := make(map[uint64]float64, n)
		base := (1 - opts.Damping) / float64(n)
		danglingShare := opts.Damping * danglingMass / float64(n)
		for _, id := range snap.nodeIDs {
			next[id] = base + danglingShare
		}
		for _, id := range snap.nodeIDs {
			if outDegree[id] == 0 {
				continue
			}
			share := opts.Damping * rank[id] / float64(outDegree[id])
			for _, to := range snap.outAdj[id] {
				next[to] += share
			}
		}

		delta := 0.0
		for _, id := range snap.nodeIDs {
			delta += math.Abs(next[id] - rank[id])
		}
		rank = next
		if delta < opts.Tol {
			break
		}
	}

	return rank
}

// EigenvectorCentrality runs the same power-iteration shape as PageRank
// without damping or teleportation, L2-normalizing the vector after each
// step and using the same convergence criterion.
func EigenvectorCentrality(s *store.Store, maxIter int, tol float64) map[uint64]float64 {
	snap := newSnapshot(s)
	n := snap.n()
	score := make(map[uint64]float64, n)
	if n == 0 {
		return score
	}
	for _, id := range snap.nodeIDs {
		score[id] = 1.0 / math.Sqrt(float64(n))
	}

	for iter := 0; iter < maxIter; iter++ {
		next := make(map[uint64]float64, n)
		for _, id := range snap.nodeIDs {
			var sum float64
			for _, from := range snap.inAdj[id] {
				sum += score[from]
			}
			next[id] = sum
		}

		var norm float64
		for _, v := range next {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			// The vector has collapsed to zero (no scored node has an
			// out-edge left to feed); keep the previous step's scores.
			break
		}
		for id := range next {
			next[id] /= norm
		}

		delta := 0.0
		for _, id := range snap.nodeIDs {
			delta += math.Abs(next[id] - score[id])
		}
		score = next
		if delta < tol {
			break
		}
	}

	return score
}

// Betweenness computes Brandes' betweenness centrality over the directed
// graph: for every source, BFS builds a layered predecessor DAG, then
// dependencies are accumulated backward from the BFS stack order.
func Betweenness(s *store.Store) map[uint64]float64 {
	snap := newSnapshot(s)
	cb := make(map[uint64]float64, snap.n())
	for _, id := range snap.nodeIDs {
		cb[id] = 0
	}

	for _, source := range snap.nodeIDs {
		stack := []uint64{}
		pred := map[uint64][]uint64{}
		sigma := map[uint64]float64{}
		dist := map[uint64]int{}
		for _, id := range snap.nodeIDs {
			sigma[id] = 0
			dist[id] = -1
		}
		sigma[source] = 1
		dist[source] = 0

		queue := []uint64{source}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range snap.outAdj[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					pred[w] = append(pred[w], v)
				}
			}
		}

		delta := map[uint64]float64{}
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range pred[w] {
				if sigma[w] != 0 {
					delta[v] += (sigma[v] / sigma[w]) * (1 + delta[w])
				}
			}
			if w != source {
				cb[w] += delta[w]
			}
		}
	}

	return cb
}

// Closeness returns, for every reachable-from-itself node, (R-1)/sum(d)
// where R is the size of the reachable set (including the node) and the
// sum runs over reachable others. Isolated nodes score 0.
func Closeness(s *store.Store) map[uint64]float64 {
	snap := newSnapshot(s)
	out := make(map[uint64]float64, snap.n())

	for _, source := range snap.nodeIDs {
		dist := map[uint64]int{source: 0}
		queue := []uint64{source}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for _, w := range snap.outAdj[v] {
				if _, seen := dist[w]; !seen {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
			}
		}

		var sum float64
		reachable := 0
		for other, d := range dist {
			if other == source {
				continue
			}
			sum += float64(d)
			reachable++
		}

		if reachable == 0 || sum == 0 {
			out[source] = 0
			continue
		}
		out[source] = float64(reachable) / sum
	}

	return out
}
